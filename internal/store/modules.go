// modules.go holds read queries for modules, questions and chapters.
package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/mabel-stories/mabel/internal/progress"
)

// QA is one answered question, used as context for later generation.
type QA struct {
	ModuleNumber int    `json:"moduleNumber"`
	Question     string `json:"question"`
	Response     string `json:"response"`
}

// BookChapter is the latest chapter of one approved module.
type BookChapter struct {
	ModuleNumber int    `json:"moduleNumber"`
	Title        string `json:"title"`
	Version      int    `json:"version"`
	Content      string `json:"content"`
	WordCount    int    `json:"wordCount"`
}

func ownedProjects(tx *gorm.DB, userID string) *gorm.DB {
	return tx.Model(&Project{}).Select("id").Where("user_id = ?", userID)
}

// GetModule loads a module by ID.
func (s *Store) GetModule(ctx context.Context, moduleID string) (*Module, error) {
	var module Module
	if err := s.conn(ctx).First(&module, "id = ?", moduleID).Error; err != nil {
		return nil, mapNotFound(err, progress.ErrModuleNotFound)
	}
	return &module, nil
}

// ModuleForUser loads a module only if its project belongs to userID.
func (s *Store) ModuleForUser(ctx context.Context, userID, moduleID string) (*Module, error) {
	db := s.conn(ctx)
	var module Module
	err := db.Where("id = ? AND project_id IN (?)", moduleID, ownedProjects(db, userID)).
		First(&module).Error
	if err != nil {
		return nil, mapNotFound(err, progress.ErrModuleNotFound)
	}
	return &module, nil
}

// ModuleByNumber loads module n of a project.
func (s *Store) ModuleByNumber(ctx context.Context, projectID string, n int) (*Module, error) {
	var module Module
	err := s.conn(ctx).First(&module, "project_id = ? AND module_number = ?", projectID, n).Error
	if err != nil {
		return nil, mapNotFound(err, progress.ErrModuleNotFound)
	}
	return &module, nil
}

// ListModules returns a project's modules in number order.
func (s *Store) ListModules(ctx context.Context, projectID string) ([]Module, error) {
	var modules []Module
	err := s.conn(ctx).
		Where("project_id = ?", projectID).
		Order("module_number ASC").
		Find(&modules).Error
	if err != nil {
		return nil, fmt.Errorf("query modules: %w", err)
	}
	return modules, nil
}

// Questions returns a module's questions in display order.
func (s *Store) Questions(ctx context.Context, moduleID string) ([]ModuleQuestion, error) {
	var questions []ModuleQuestion
	err := s.conn(ctx).
		Where("module_id = ?", moduleID).
		Order("position ASC").
		Find(&questions).Error
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	return questions, nil
}

// GetQuestion loads a question by ID.
func (s *Store) GetQuestion(ctx context.Context, questionID string) (*ModuleQuestion, error) {
	var question ModuleQuestion
	if err := s.conn(ctx).First(&question, "id = ?", questionID).Error; err != nil {
		return nil, mapNotFound(err, ErrQuestionNotFound)
	}
	return &question, nil
}

// QuestionForUser loads a question only if userID owns its project.
func (s *Store) QuestionForUser(ctx context.Context, userID, questionID string) (*ModuleQuestion, error) {
	db := s.conn(ctx)
	modules := db.Model(&Module{}).Select("id").
		Where("project_id IN (?)", ownedProjects(db, userID))
	var question ModuleQuestion
	err := db.Where("id = ? AND module_id IN (?)", questionID, modules).First(&question).Error
	if err != nil {
		return nil, mapNotFound(err, ErrQuestionNotFound)
	}
	return &question, nil
}

// Chapters returns every version of a module's chapter, newest first.
func (s *Store) Chapters(ctx context.Context, moduleID string) ([]ModuleChapter, error) {
	var chapters []ModuleChapter
	err := s.conn(ctx).
		Where("module_id = ?", moduleID).
		Order("version DESC").
		Find(&chapters).Error
	if err != nil {
		return nil, fmt.Errorf("query chapters: %w", err)
	}
	return chapters, nil
}

// LatestChapter returns the highest chapter version, or nil when none exist.
func (s *Store) LatestChapter(ctx context.Context, moduleID string) (*ModuleChapter, error) {
	var chapter ModuleChapter
	err := s.conn(ctx).
		Where("module_id = ?", moduleID).
		Order("version DESC").
		Limit(1).
		Find(&chapter).Error
	if err != nil {
		return nil, fmt.Errorf("query latest chapter: %w", err)
	}
	if chapter.ID == "" {
		return nil, nil
	}
	return &chapter, nil
}

// PreviousAnswers returns answered questions from modules numbered below
// beforeModule, oldest first.
func (s *Store) PreviousAnswers(ctx context.Context, projectID string, beforeModule int) ([]QA, error) {
	var rows []QA
	err := s.conn(ctx).
		Table("module_questions").
		Select("modules.module_number AS module_number, module_questions.question AS question, module_questions.response AS response").
		Joins("JOIN modules ON modules.id = module_questions.module_id").
		Where("modules.project_id = ? AND modules.module_number < ?", projectID, beforeModule).
		Where("module_questions.response IS NOT NULL AND TRIM(module_questions.response) != ''").
		Order("modules.module_number ASC, module_questions.position ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query previous answers: %w", err)
	}
	return rows, nil
}

// Readiness reports how many of a module's questions are answered.
func (s *Store) Readiness(ctx context.Context, moduleID string) (progress.Readiness, error) {
	total, answered, err := countAnswers(s.conn(ctx), moduleID)
	if err != nil {
		return progress.Readiness{}, err
	}
	return progress.ComputeReadiness(int(total), int(answered)), nil
}

// CheckChapterGeneration reports whether a chapter can be generated for the
// module now. It is the same check SaveChapter applies.
func (s *Store) CheckChapterGeneration(ctx context.Context, moduleID string) error {
	db := s.conn(ctx)
	var module Module
	if err := db.First(&module, "id = ?", moduleID).Error; err != nil {
		return mapNotFound(err, progress.ErrModuleNotFound)
	}
	return checkChapterAllowed(db, &module)
}

// BookChapters returns the latest chapter of every approved module of a
// project, in module order.
func (s *Store) BookChapters(ctx context.Context, projectID string) ([]BookChapter, error) {
	return bookChapters(s.conn(ctx), projectID)
}

func bookChapters(tx *gorm.DB, projectID string) ([]BookChapter, error) {
	latest := tx.Model(&ModuleChapter{}).
		Select("module_id, MAX(version) AS version").
		Group("module_id")

	var rows []BookChapter
	err := tx.Table("modules").
		Select("modules.module_number AS module_number, modules.title AS title, module_chapters.version AS version, module_chapters.content AS content, module_chapters.word_count AS word_count").
		Joins("JOIN (?) AS latest ON latest.module_id = modules.id", latest).
		Joins("JOIN module_chapters ON module_chapters.module_id = latest.module_id AND module_chapters.version = latest.version").
		Where("modules.project_id = ? AND modules.status = ?", projectID, progress.ModuleApproved).
		Order("modules.module_number ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query book chapters: %w", err)
	}
	return rows, nil
}

func countAnswers(tx *gorm.DB, moduleID string) (total, answered int64, err error) {
	if err := tx.Model(&ModuleQuestion{}).Where("module_id = ?", moduleID).Count(&total).Error; err != nil {
		return 0, 0, fmt.Errorf("count questions: %w", err)
	}
	err = tx.Model(&ModuleQuestion{}).
		Where("module_id = ? AND response IS NOT NULL AND TRIM(response) != ''", moduleID).
		Count(&answered).Error
	if err != nil {
		return 0, 0, fmt.Errorf("count answers: %w", err)
	}
	return total, answered, nil
}

// checkChapterAllowed reports readiness before the status transition, so a
// module without questions or answers fails with the readiness error.
func checkChapterAllowed(tx *gorm.DB, module *Module) error {
	if module.Status == progress.ModuleApproved {
		return progress.ErrModuleLocked
	}
	total, answered, err := countAnswers(tx, module.ID)
	if err != nil {
		return err
	}
	if err := progress.CheckChapterReadiness(int(total), int(answered)); err != nil {
		return err
	}
	_, err = progress.Transition(module.Status, progress.ModuleChapterGenerated)
	return err
}
