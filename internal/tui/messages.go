package tui

import (
	"github.com/mabel-stories/mabel/internal/progress"
	"github.com/mabel-stories/mabel/internal/store"
)

// QuestionsLoadedMsg carries a module's questions and readiness.
type QuestionsLoadedMsg struct {
	Questions []store.ModuleQuestion
	Readiness progress.Readiness
}

// AnswerSavedMsg reports a stored response.
type AnswerSavedMsg struct {
	Result *store.AnswerResult
}

// ErrMsg reports a failed backend call.
type ErrMsg struct {
	Err error
}
