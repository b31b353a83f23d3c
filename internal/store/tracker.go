// tracker.go applies progress transitions atomically. Every operation runs in
// one transaction and re-derives counters from stored rows.
package store

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/mabel-stories/mabel/internal/progress"
)

// ApproveResult is the outcome of a successful approval.
type ApproveResult struct {
	ApprovedModule         *Module  `json:"approvedModule"`
	NextModule             *Module  `json:"nextModule"`
	CompletedCount         int64    `json:"completedCount"`
	SuggestBookCompilation bool     `json:"suggestBookCompilation"`
	Project                *Project `json:"project"`
}

// UnapproveResult is the outcome of an unapproval. Changed is false when the
// module was not approved and nothing was touched.
type UnapproveResult struct {
	Module  *Module  `json:"module"`
	Project *Project `json:"project"`
	Changed bool     `json:"changed"`
	Warning string   `json:"warning,omitempty"`
}

// AnswerResult is the outcome of recording a response.
type AnswerResult struct {
	Question  *ModuleQuestion    `json:"question"`
	Module    *Module            `json:"module"`
	Promoted  bool               `json:"promoted"`
	Readiness progress.Readiness `json:"readiness"`
}

func loadModuleInProject(tx *gorm.DB, projectID, moduleID string) (*Project, *Module, error) {
	var project Project
	if err := tx.First(&project, "id = ?", projectID).Error; err != nil {
		return nil, nil, mapNotFound(err, progress.ErrProjectNotFound)
	}
	var module Module
	if err := tx.First(&module, "id = ? AND project_id = ?", moduleID, projectID).Error; err != nil {
		return nil, nil, mapNotFound(err, progress.ErrModuleNotFound)
	}
	return &project, &module, nil
}

func countApproved(tx *gorm.DB, projectID string) (int64, error) {
	var n int64
	err := tx.Model(&Module{}).
		Where("project_id = ? AND status = ?", projectID, progress.ModuleApproved).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count approved modules: %w", err)
	}
	return n, nil
}

// moveModule performs a conditional status update and reports whether this
// call won the transition.
func moveModule(tx *gorm.DB, moduleID string, from, to progress.ModuleStatus, extra map[string]any) (bool, error) {
	if !progress.CanTransition(from, to) {
		return false, fmt.Errorf("%w: %s -> %s", progress.ErrInvalidTransition, from, to)
	}
	updates := map[string]any{"status": to}
	for k, v := range extra {
		updates[k] = v
	}
	res := tx.Model(&Module{}).
		Where("id = ? AND status = ?", moduleID, from).
		Updates(updates)
	if res.Error != nil {
		return false, fmt.Errorf("update module status: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// ApproveModule approves a module that has at least one chapter, updates the
// project counters from a fresh count and opens the next module.
func (s *Store) ApproveModule(ctx context.Context, projectID, moduleID string) (*ApproveResult, error) {
	var result ApproveResult
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		project, module, err := loadModuleInProject(tx, projectID, moduleID)
		if err != nil {
			return err
		}

		var chapterCount int64
		if err := tx.Model(&ModuleChapter{}).Where("module_id = ?", module.ID).Count(&chapterCount).Error; err != nil {
			return fmt.Errorf("count chapters: %w", err)
		}
		if err := progress.CheckApproval(progress.ApprovalCheck{Status: module.Status, ChapterCount: chapterCount}); err != nil {
			return err
		}

		now := s.now()
		won, err := moveModule(tx, module.ID, module.Status, progress.ModuleApproved, map[string]any{"approved_at": now})
		if err != nil {
			return err
		}
		if !won {
			return progress.ErrAlreadyApproved
		}

		completed, err := countApproved(tx, project.ID)
		if err != nil {
			return err
		}
		plan := progress.PlanAfterApproval(project.Status, completed)

		err = tx.Model(&Project{}).Where("id = ?", project.ID).Updates(map[string]any{
			"total_modules_completed": completed,
			"current_module_number":   gorm.Expr("current_module_number + 1"),
			"status":                  plan.ProjectStatus,
		}).Error
		if err != nil {
			return fmt.Errorf("update project counters: %w", err)
		}

		if plan.CreateNextModule {
			next, err := openNextModule(tx, project.ID)
			if err != nil {
				return err
			}
			result.NextModule = next
		}

		approved, reloaded, err := reloadModuleAndProject(tx, module.ID, project.ID)
		if err != nil {
			return err
		}
		result.ApprovedModule = approved
		result.Project = reloaded
		result.CompletedCount = plan.CompletedCount
		result.SuggestBookCompilation = plan.SuggestBookCompilation
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// reloadModuleAndProject reads both rows into fresh values. Scanning into an
// already populated struct leaves pointer fields set when the column is NULL.
func reloadModuleAndProject(tx *gorm.DB, moduleID, projectID string) (*Module, *Project, error) {
	var module Module
	if err := tx.First(&module, "id = ?", moduleID).Error; err != nil {
		return nil, nil, fmt.Errorf("reload module: %w", err)
	}
	var project Project
	if err := tx.First(&project, "id = ?", projectID).Error; err != nil {
		return nil, nil, fmt.Errorf("reload project: %w", err)
	}
	return &module, &project, nil
}

// openNextModule returns the project's lowest unapproved module, creating a
// DRAFT one numbered after the highest existing module when none is open.
func openNextModule(tx *gorm.DB, projectID string) (*Module, error) {
	var open Module
	err := tx.Where("project_id = ? AND status != ?", projectID, progress.ModuleApproved).
		Order("module_number ASC").
		Limit(1).
		Find(&open).Error
	if err != nil {
		return nil, fmt.Errorf("query open module: %w", err)
	}
	if open.ID != "" {
		return &open, nil
	}

	var maxNumber int
	err = tx.Model(&Module{}).
		Where("project_id = ?", projectID).
		Select("COALESCE(MAX(module_number), 0)").
		Scan(&maxNumber).Error
	if err != nil {
		return nil, fmt.Errorf("query max module number: %w", err)
	}
	if maxNumber >= progress.MaxModulesPerProject {
		return nil, nil
	}

	next := &Module{
		ProjectID:    projectID,
		ModuleNumber: maxNumber + 1,
		Title:        progress.ModuleTheme(maxNumber + 1),
		Status:       progress.ModuleDraft,
	}
	if err := tx.Create(next).Error; err != nil {
		return nil, fmt.Errorf("insert next module: %w", err)
	}
	return next, nil
}

// UnapproveModule moves an approved module back to CHAPTER_GENERATED. A module
// that is not approved is left alone and a warning is returned.
func (s *Store) UnapproveModule(ctx context.Context, projectID, moduleID string) (*UnapproveResult, error) {
	var result UnapproveResult
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		project, module, err := loadModuleInProject(tx, projectID, moduleID)
		if err != nil {
			return err
		}
		result.Project = project
		result.Module = module

		notApproved := fmt.Sprintf("module %d is %s, not %s; nothing to unapprove",
			module.ModuleNumber, module.Status, progress.ModuleApproved)
		if module.Status != progress.ModuleApproved {
			result.Warning = notApproved
			return nil
		}

		won, err := moveModule(tx, module.ID, progress.ModuleApproved, progress.ModuleChapterGenerated,
			map[string]any{"approved_at": nil})
		if err != nil {
			return err
		}
		if !won {
			result.Warning = notApproved
			return nil
		}

		completed, err := countApproved(tx, project.ID)
		if err != nil {
			return err
		}
		err = tx.Model(&Project{}).Where("id = ?", project.ID).Updates(map[string]any{
			"total_modules_completed": completed,
			"current_module_number":   progress.PreviousModuleNumber(project.CurrentModuleNumber),
		}).Error
		if err != nil {
			return fmt.Errorf("update project counters: %w", err)
		}

		result.Module, result.Project, err = reloadModuleAndProject(tx, module.ID, project.ID)
		if err != nil {
			return err
		}
		result.Changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// RecordAnswer stores a response. The first answer on a module with fresh
// questions promotes it to IN_PROGRESS. Blank text clears the response.
func (s *Store) RecordAnswer(ctx context.Context, questionID, text string) (*AnswerResult, error) {
	var result AnswerResult
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		var question ModuleQuestion
		if err := tx.First(&question, "id = ?", questionID).Error; err != nil {
			return mapNotFound(err, ErrQuestionNotFound)
		}
		var module Module
		if err := tx.First(&module, "id = ?", question.ModuleID).Error; err != nil {
			return mapNotFound(err, progress.ErrModuleNotFound)
		}
		if module.Status == progress.ModuleApproved {
			return progress.ErrModuleLocked
		}

		text = strings.TrimSpace(text)
		updates := map[string]any{"response": nil, "responded_at": nil}
		if text != "" {
			updates["response"] = text
			updates["responded_at"] = s.now()
		}
		if err := tx.Model(&ModuleQuestion{}).Where("id = ?", question.ID).Updates(updates).Error; err != nil {
			return fmt.Errorf("update response: %w", err)
		}

		if text != "" && module.Status == progress.ModuleQuestionsGenerated {
			won, err := moveModule(tx, module.ID, progress.ModuleQuestionsGenerated, progress.ModuleInProgress, nil)
			if err != nil {
				return err
			}
			if won {
				var project Project
				if err := tx.First(&project, "id = ?", module.ProjectID).Error; err != nil {
					return mapNotFound(err, progress.ErrProjectNotFound)
				}
				if err := advanceProject(tx, &project, progress.ProjectInProgress); err != nil {
					return err
				}
			}
			result.Promoted = won
		}

		total, answered, err := countAnswers(tx, module.ID)
		if err != nil {
			return err
		}
		var saved ModuleQuestion
		if err := tx.First(&saved, "id = ?", question.ID).Error; err != nil {
			return fmt.Errorf("reload question: %w", err)
		}
		var current Module
		if err := tx.First(&current, "id = ?", module.ID).Error; err != nil {
			return fmt.Errorf("reload module: %w", err)
		}
		result.Question = &saved
		result.Module = &current
		result.Readiness = progress.ComputeReadiness(int(total), int(answered))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// SaveGeneratedQuestions appends questions to a module. A DRAFT module moves
// to QUESTIONS_GENERATED.
func (s *Store) SaveGeneratedQuestions(ctx context.Context, moduleID string, texts []string) ([]ModuleQuestion, error) {
	var cleaned []string
	for _, t := range texts {
		if t = strings.TrimSpace(t); t != "" {
			cleaned = append(cleaned, t)
		}
	}
	if len(cleaned) == 0 {
		return nil, fmt.Errorf("save questions: no question text")
	}

	var saved []ModuleQuestion
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		var module Module
		if err := tx.First(&module, "id = ?", moduleID).Error; err != nil {
			return mapNotFound(err, progress.ErrModuleNotFound)
		}
		if module.Status == progress.ModuleApproved {
			return progress.ErrModuleLocked
		}

		var maxPosition int
		err := tx.Model(&ModuleQuestion{}).
			Where("module_id = ?", module.ID).
			Select("COALESCE(MAX(position), 0)").
			Scan(&maxPosition).Error
		if err != nil {
			return fmt.Errorf("query max position: %w", err)
		}

		saved = make([]ModuleQuestion, len(cleaned))
		for i, t := range cleaned {
			saved[i] = ModuleQuestion{ModuleID: module.ID, Position: maxPosition + i + 1, Question: t}
		}
		if err := tx.Create(&saved).Error; err != nil {
			return fmt.Errorf("insert questions: %w", err)
		}

		if module.Status == progress.ModuleDraft {
			if _, err := moveModule(tx, module.ID, progress.ModuleDraft, progress.ModuleQuestionsGenerated, nil); err != nil {
				return err
			}
		}

		var project Project
		if err := tx.First(&project, "id = ?", module.ProjectID).Error; err != nil {
			return mapNotFound(err, progress.ErrProjectNotFound)
		}
		return advanceProject(tx, &project, progress.ProjectQuestionsGenerated)
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// SaveChapter appends a new chapter version. The module must have enough
// answers; an IN_PROGRESS module moves to CHAPTER_GENERATED.
func (s *Store) SaveChapter(ctx context.Context, moduleID, content string) (*ModuleChapter, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("save chapter: empty content")
	}

	var chapter ModuleChapter
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		var module Module
		if err := tx.First(&module, "id = ?", moduleID).Error; err != nil {
			return mapNotFound(err, progress.ErrModuleNotFound)
		}
		if err := checkChapterAllowed(tx, &module); err != nil {
			return err
		}

		var maxVersion int
		err := tx.Model(&ModuleChapter{}).
			Where("module_id = ?", module.ID).
			Select("COALESCE(MAX(version), 0)").
			Scan(&maxVersion).Error
		if err != nil {
			return fmt.Errorf("query max version: %w", err)
		}

		chapter = ModuleChapter{
			ModuleID:  module.ID,
			Version:   maxVersion + 1,
			Content:   content,
			WordCount: progress.WordCount(content),
		}
		if err := tx.Create(&chapter).Error; err != nil {
			return fmt.Errorf("insert chapter: %w", err)
		}

		if module.Status == progress.ModuleInProgress {
			if _, err := moveModule(tx, module.ID, progress.ModuleInProgress, progress.ModuleChapterGenerated, nil); err != nil {
				return err
			}
		}

		var project Project
		if err := tx.First(&project, "id = ?", module.ProjectID).Error; err != nil {
			return mapNotFound(err, progress.ErrProjectNotFound)
		}
		return advanceProject(tx, &project, progress.ProjectChapterGenerated)
	})
	if err != nil {
		return nil, err
	}
	return &chapter, nil
}

// CompileNarrative joins the latest chapter of every approved module into a
// new narrative version and marks the book compiled.
func (s *Store) CompileNarrative(ctx context.Context, projectID string) (*Narrative, error) {
	var narrative Narrative
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		var project Project
		if err := tx.First(&project, "id = ?", projectID).Error; err != nil {
			return mapNotFound(err, progress.ErrProjectNotFound)
		}

		chapters, err := bookChapters(tx, project.ID)
		if err != nil {
			return err
		}
		if len(chapters) == 0 {
			return progress.ErrNothingToCompile
		}

		var b strings.Builder
		words := 0
		for i, ch := range chapters {
			if i > 0 {
				b.WriteString("\n\n")
			}
			fmt.Fprintf(&b, "Chapter %d: %s\n\n%s", ch.ModuleNumber, ch.Title, ch.Content)
			words += ch.WordCount
		}

		var maxVersion int
		err = tx.Model(&Narrative{}).
			Where("project_id = ?", project.ID).
			Select("COALESCE(MAX(version), 0)").
			Scan(&maxVersion).Error
		if err != nil {
			return fmt.Errorf("query max narrative version: %w", err)
		}

		narrative = Narrative{
			ProjectID: project.ID,
			Version:   maxVersion + 1,
			Content:   b.String(),
			WordCount: words,
			Chapters:  len(chapters),
		}
		if err := tx.Create(&narrative).Error; err != nil {
			return fmt.Errorf("insert narrative: %w", err)
		}

		err = tx.Model(&Project{}).Where("id = ?", project.ID).
			Update("book_status", progress.BookCompiled).Error
		if err != nil {
			return fmt.Errorf("update book status: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &narrative, nil
}

// LatestNarrative returns the newest compiled narrative, or nil.
func (s *Store) LatestNarrative(ctx context.Context, projectID string) (*Narrative, error) {
	var narrative Narrative
	err := s.conn(ctx).
		Where("project_id = ?", projectID).
		Order("version DESC").
		Limit(1).
		Find(&narrative).Error
	if err != nil {
		return nil, fmt.Errorf("query narrative: %w", err)
	}
	if narrative.ID == "" {
		return nil, nil
	}
	return &narrative, nil
}
