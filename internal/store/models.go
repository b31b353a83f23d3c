// Package store persists Mabel's records with gorm on SQLite.
// This file declares the table models.
package store

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/mabel-stories/mabel/internal/progress"
)

// User owns projects and authenticates with an API token.
type User struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Email     string    `gorm:"uniqueIndex;not null" json:"email"`
	Name      string    `gorm:"not null" json:"name"`
	APIToken  string    `gorm:"uniqueIndex;not null" json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}

// Project is one memoir effort for one interviewee.
type Project struct {
	ID                    string                 `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID                string                 `gorm:"type:varchar(36);not null;index" json:"userId"`
	User                  *User                  `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Title                 string                 `gorm:"not null" json:"title"`
	Status                progress.ProjectStatus `gorm:"type:varchar(32);not null;default:'DRAFT'" json:"status"`
	CurrentModuleNumber   int                    `gorm:"not null;default:1" json:"currentModuleNumber"`
	TotalModulesCompleted int                    `gorm:"not null;default:0" json:"totalModulesCompleted"`
	BookStatus            progress.BookStatus    `gorm:"type:varchar(32);not null;default:'NOT_STARTED'" json:"bookStatus"`
	CreatedAt             time.Time              `json:"createdAt"`
	UpdatedAt             time.Time              `json:"updatedAt"`
}

// Interviewee is the person whose story the project tells.
type Interviewee struct {
	ID           string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ProjectID    string    `gorm:"type:varchar(36);not null;uniqueIndex" json:"projectId"`
	Project      *Project  `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Name         string    `gorm:"not null" json:"name"`
	Relationship string    `json:"relationship"`
	BirthYear    int       `json:"birthYear,omitempty"`
	Birthplace   string    `json:"birthplace,omitempty"`
	Notes        string    `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Module is one themed block of questions plus its chapter.
type Module struct {
	ID           string                `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ProjectID    string                `gorm:"type:varchar(36);not null;uniqueIndex:idx_module_number" json:"projectId"`
	Project      *Project              `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	ModuleNumber int                   `gorm:"not null;uniqueIndex:idx_module_number" json:"moduleNumber"`
	Title        string                `gorm:"not null" json:"title"`
	Status       progress.ModuleStatus `gorm:"type:varchar(32);not null;default:'DRAFT';index" json:"status"`
	ApprovedAt   *time.Time            `json:"approvedAt"`
	CreatedAt    time.Time             `json:"createdAt"`
	UpdatedAt    time.Time             `json:"updatedAt"`
}

// ModuleQuestion is one interview question and its optional response.
type ModuleQuestion struct {
	ID            string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ModuleID      string     `gorm:"type:varchar(36);not null;index" json:"moduleId"`
	Module        *Module    `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Position      int        `gorm:"not null" json:"order"`
	Question      string     `gorm:"type:text;not null" json:"question"`
	Response      *string    `gorm:"type:text" json:"response"`
	RespondedAt   *time.Time `json:"respondedAt"`
	AudioUploadID *string    `gorm:"type:varchar(36)" json:"audioUploadId,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// ModuleChapter is one generated version of a module's prose. Rows are never
// updated; a regeneration appends a higher version.
type ModuleChapter struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ModuleID  string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_chapter_version" json:"moduleId"`
	Module    *Module   `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Version   int       `gorm:"not null;uniqueIndex:idx_chapter_version" json:"version"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	WordCount int       `gorm:"not null" json:"wordCount"`
	CreatedAt time.Time `json:"createdAt"`
}

// Narrative is a compiled manuscript built from approved chapters.
type Narrative struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ProjectID string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_narrative_version" json:"projectId"`
	Project   *Project  `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Version   int       `gorm:"not null;uniqueIndex:idx_narrative_version" json:"version"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	WordCount int       `gorm:"not null" json:"wordCount"`
	Chapters  int       `gorm:"not null" json:"chapters"`
	CreatedAt time.Time `json:"createdAt"`
}

// AudioUpload records a recorded answer held in object storage.
type AudioUpload struct {
	ID         string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ProjectID  string    `gorm:"type:varchar(36);not null;index" json:"projectId"`
	Project    *Project  `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	QuestionID string    `gorm:"type:varchar(36);not null;index" json:"questionId"`
	StorageKey string    `gorm:"not null" json:"storageKey"`
	Filename   string    `json:"filename"`
	MimeType   string    `json:"mimeType"`
	SizeBytes  int64     `json:"sizeBytes"`
	Transcript *string   `gorm:"type:text" json:"transcript,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// JobType names the kind of asynchronous work a Job represents.
type JobType string

const (
	JobTranscribeAudio         JobType = "transcribe-audio"
	JobGenerateModuleQuestions JobType = "generate-module-questions"
	JobGenerateModuleChapter   JobType = "generate-module-chapter"
)

// JobStatus is the lifecycle stage of a Job.
type JobStatus string

const (
	JobPending   JobStatus = "PENDING"
	JobRunning   JobStatus = "RUNNING"
	JobCompleted JobStatus = "COMPLETED"
	JobFailed    JobStatus = "FAILED"
)

// Terminal reports whether no further transition is possible.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// Job tracks one asynchronous generation request. Clients poll it for status.
type Job struct {
	ID            string         `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ProjectID     string         `gorm:"type:varchar(36);not null;index" json:"projectId"`
	Project       *Project       `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	ModuleID      *string        `gorm:"type:varchar(36);index" json:"moduleId,omitempty"`
	Type          JobType        `gorm:"type:varchar(48);not null" json:"type"`
	Status        JobStatus      `gorm:"type:varchar(16);not null;default:'PENDING';index" json:"status"`
	Progress      int            `gorm:"not null;default:0" json:"progress"`
	Input         datatypes.JSON `json:"input,omitempty"`
	Result        datatypes.JSON `json:"result,omitempty"`
	Error         string         `gorm:"type:text" json:"error,omitempty"`
	ErrorCategory string         `gorm:"type:varchar(32)" json:"errorCategory,omitempty"`
	Attempts      int            `gorm:"not null;default:0" json:"attempts"`
	CreatedAt     time.Time      `gorm:"index" json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
	StartedAt     *time.Time     `json:"startedAt,omitempty"`
	FinishedAt    *time.Time     `json:"finishedAt,omitempty"`
}

func ensureID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

func (m *User) BeforeCreate(*gorm.DB) error           { ensureID(&m.ID); return nil }
func (m *Project) BeforeCreate(*gorm.DB) error        { ensureID(&m.ID); return nil }
func (m *Interviewee) BeforeCreate(*gorm.DB) error    { ensureID(&m.ID); return nil }
func (m *Module) BeforeCreate(*gorm.DB) error         { ensureID(&m.ID); return nil }
func (m *ModuleQuestion) BeforeCreate(*gorm.DB) error { ensureID(&m.ID); return nil }
func (m *ModuleChapter) BeforeCreate(*gorm.DB) error  { ensureID(&m.ID); return nil }
func (m *Narrative) BeforeCreate(*gorm.DB) error      { ensureID(&m.ID); return nil }
func (m *AudioUpload) BeforeCreate(*gorm.DB) error    { ensureID(&m.ID); return nil }
func (m *Job) BeforeCreate(*gorm.DB) error            { ensureID(&m.ID); return nil }

// allModels lists every table in migration order.
func allModels() []any {
	return []any{
		&User{},
		&Project{},
		&Interviewee{},
		&Module{},
		&ModuleQuestion{},
		&ModuleChapter{},
		&Narrative{},
		&AudioUpload{},
		&Job{},
	}
}
