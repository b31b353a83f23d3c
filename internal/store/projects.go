// projects.go covers users, projects and interviewees.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mabel-stories/mabel/internal/progress"
)

// CreateUser registers a user and issues an API token.
func (s *Store) CreateUser(ctx context.Context, email, name string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, fmt.Errorf("email is required")
	}
	user := &User{
		Email:    email,
		Name:     strings.TrimSpace(name),
		APIToken: uuid.NewString(),
	}
	if err := s.conn(ctx).Create(user).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("user %q: %w", email, ErrDuplicate)
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

// UserByToken resolves an API token to its user.
func (s *Store) UserByToken(ctx context.Context, token string) (*User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrUserNotFound
	}
	var user User
	if err := s.conn(ctx).First(&user, "api_token = ?", token).Error; err != nil {
		return nil, mapNotFound(err, ErrUserNotFound)
	}
	return &user, nil
}

// UserByEmail looks a user up by email.
func (s *Store) UserByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	err := s.conn(ctx).First(&user, "email = ?", strings.ToLower(strings.TrimSpace(email))).Error
	if err != nil {
		return nil, mapNotFound(err, ErrUserNotFound)
	}
	return &user, nil
}

// CreateProject creates a project in DRAFT together with its first module.
func (s *Store) CreateProject(ctx context.Context, userID, title string) (*Project, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("project title is required")
	}
	project := &Project{
		UserID:              userID,
		Title:               title,
		Status:              progress.ProjectDraft,
		CurrentModuleNumber: 1,
		BookStatus:          progress.BookNotStarted,
	}
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(project).Error; err != nil {
			return fmt.Errorf("insert project: %w", err)
		}
		first := &Module{
			ProjectID:    project.ID,
			ModuleNumber: 1,
			Title:        progress.ModuleTheme(1),
			Status:       progress.ModuleDraft,
		}
		if err := tx.Create(first).Error; err != nil {
			return fmt.Errorf("insert first module: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return project, nil
}

// GetProject loads a project by ID.
func (s *Store) GetProject(ctx context.Context, projectID string) (*Project, error) {
	var project Project
	if err := s.conn(ctx).First(&project, "id = ?", projectID).Error; err != nil {
		return nil, mapNotFound(err, progress.ErrProjectNotFound)
	}
	return &project, nil
}

// ProjectForUser loads a project only if userID owns it.
func (s *Store) ProjectForUser(ctx context.Context, userID, projectID string) (*Project, error) {
	var project Project
	err := s.conn(ctx).First(&project, "id = ? AND user_id = ?", projectID, userID).Error
	if err != nil {
		return nil, mapNotFound(err, progress.ErrProjectNotFound)
	}
	return &project, nil
}

// ListProjects returns a user's projects, newest first.
func (s *Store) ListProjects(ctx context.Context, userID string) ([]Project, error) {
	var projects []Project
	err := s.conn(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&projects).Error
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	return projects, nil
}

// IntervieweeInput is the editable part of an Interviewee.
type IntervieweeInput struct {
	Name         string `json:"name"`
	Relationship string `json:"relationship"`
	BirthYear    int    `json:"birthYear"`
	Birthplace   string `json:"birthplace"`
	Notes        string `json:"notes"`
}

// SaveInterviewee creates or replaces the project's interviewee and moves
// the project to RECORDING_INFO.
func (s *Store) SaveInterviewee(ctx context.Context, projectID string, in IntervieweeInput) (*Interviewee, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("interviewee name is required")
	}

	var saved Interviewee
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		var project Project
		if err := tx.First(&project, "id = ?", projectID).Error; err != nil {
			return mapNotFound(err, progress.ErrProjectNotFound)
		}

		err := tx.First(&saved, "project_id = ?", projectID).Error
		if err != nil && err != gorm.ErrRecordNotFound {
			return fmt.Errorf("query interviewee: %w", err)
		}
		saved.ProjectID = projectID
		saved.Name = name
		saved.Relationship = strings.TrimSpace(in.Relationship)
		saved.BirthYear = in.BirthYear
		saved.Birthplace = strings.TrimSpace(in.Birthplace)
		saved.Notes = strings.TrimSpace(in.Notes)
		if err := tx.Save(&saved).Error; err != nil {
			return fmt.Errorf("save interviewee: %w", err)
		}

		return advanceProject(tx, &project, progress.ProjectRecordingInfo)
	})
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

// GetInterviewee returns the project's interviewee, or nil if none is set.
func (s *Store) GetInterviewee(ctx context.Context, projectID string) (*Interviewee, error) {
	var interviewee Interviewee
	err := s.conn(ctx).First(&interviewee, "project_id = ?", projectID).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query interviewee: %w", err)
	}
	return &interviewee, nil
}

// MarkBookExported records that the book was rendered for download.
func (s *Store) MarkBookExported(ctx context.Context, projectID string) error {
	err := s.conn(ctx).Model(&Project{}).
		Where("id = ?", projectID).
		Update("book_status", progress.BookExported).Error
	if err != nil {
		return fmt.Errorf("update book status: %w", err)
	}
	return nil
}

// advanceProject moves the project's status forward inside tx. It never
// moves it backwards.
func advanceProject(tx *gorm.DB, project *Project, next progress.ProjectStatus) error {
	status := progress.AdvanceProject(project.Status, next)
	if status == project.Status {
		return nil
	}
	if err := tx.Model(&Project{}).Where("id = ?", project.ID).Update("status", status).Error; err != nil {
		return fmt.Errorf("advance project status: %w", err)
	}
	project.Status = status
	return nil
}
