// rules.go implements the readiness and approval rules applied by the store.
package progress

import (
	"fmt"
	"strings"
)

const (
	// ChapterReadyRatio is the minimum answered fraction (inclusive) before a
	// chapter can be generated.
	ChapterReadyRatio = 0.5

	// BookSuggestionThreshold is how many approved modules it takes before the
	// user is nudged to compile the book.
	BookSuggestionThreshold = 3

	// MaxModulesPerProject caps how many modules a project can hold.
	MaxModulesPerProject = 8
)

// Readiness summarises how far along a module's questions are.
type Readiness struct {
	Total    int     `json:"total"`
	Answered int     `json:"answered"`
	Ratio    float64 `json:"ratio"`
	Ready    bool    `json:"ready"`
}

// ComputeReadiness builds a Readiness from question counts.
func ComputeReadiness(total, answered int) Readiness {
	r := Readiness{Total: total, Answered: answered}
	if total > 0 {
		r.Ratio = float64(answered) / float64(total)
	}
	r.Ready = CanGenerateChapter(total, answered)
	return r
}

// CanGenerateChapter reports whether enough questions have responses.
// A module without questions is never ready.
func CanGenerateChapter(total, answered int) bool {
	if total <= 0 {
		return false
	}
	// Integer form of answered/total >= 0.5 avoids float rounding at the boundary.
	return answered*2 >= total
}

// CheckChapterReadiness is CanGenerateChapter with a reason attached.
func CheckChapterReadiness(total, answered int) error {
	if total <= 0 {
		return ErrNoQuestionsYet
	}
	if !CanGenerateChapter(total, answered) {
		return fmt.Errorf("%w: %d of %d answered", ErrInsufficientResponses, answered, total)
	}
	return nil
}

// IsAnswered reports whether a stored response counts towards progress.
func IsAnswered(response *string) bool {
	return response != nil && strings.TrimSpace(*response) != ""
}

// ApprovalCheck carries the facts needed to decide whether a module can be
// approved.
type ApprovalCheck struct {
	Status       ModuleStatus
	ChapterCount int64
}

// CheckApproval validates an approval request against stored facts.
func CheckApproval(c ApprovalCheck) error {
	if c.Status == ModuleApproved {
		return ErrAlreadyApproved
	}
	if c.ChapterCount <= 0 {
		return ErrChapterMissing
	}
	if !CanTransition(c.Status, ModuleApproved) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.Status, ModuleApproved)
	}
	return nil
}

// ApprovalPlan is what follows from a successful approval.
type ApprovalPlan struct {
	CompletedCount         int64
	SuggestBookCompilation bool
	CreateNextModule       bool
	ProjectStatus          ProjectStatus
}

// PlanAfterApproval decides follow-up effects from a freshly counted number of
// approved modules.
func PlanAfterApproval(current ProjectStatus, completedCount int64) ApprovalPlan {
	plan := ApprovalPlan{
		CompletedCount:         completedCount,
		SuggestBookCompilation: completedCount >= BookSuggestionThreshold,
		CreateNextModule:       completedCount < MaxModulesPerProject,
	}
	if plan.CreateNextModule {
		plan.ProjectStatus = AdvanceProject(current, ProjectChapterGenerated)
	} else {
		plan.ProjectStatus = AdvanceProject(current, ProjectApproved)
	}
	return plan
}

// PreviousModuleNumber decrements a module pointer without dropping below one.
func PreviousModuleNumber(n int) int {
	if n <= 1 {
		return 1
	}
	return n - 1
}

// WordCount counts whitespace-separated words in generated prose.
func WordCount(content string) int {
	return len(strings.Fields(content))
}

var moduleThemes = [MaxModulesPerProject]string{
	"Early Childhood",
	"Family & Home",
	"School Years",
	"Young Adulthood",
	"Work & Career",
	"Love & Relationships",
	"Parenthood & Family Life",
	"Reflections & Legacy",
}

// ModuleTheme returns the default title for module n.
func ModuleTheme(n int) string {
	if n < 1 || n > len(moduleThemes) {
		return fmt.Sprintf("Module %d", n)
	}
	return moduleThemes[n-1]
}
