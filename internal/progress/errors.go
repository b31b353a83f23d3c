package progress

import "errors"

// Validation failures raised by the tracker. None of them is retryable; the
// caller turns them into user-facing messages.
var (
	ErrAlreadyApproved       = errors.New("module already approved")
	ErrChapterMissing        = errors.New("module has no chapter to approve")
	ErrModuleNotFound        = errors.New("module not found")
	ErrProjectNotFound       = errors.New("project not found")
	ErrNoQuestionsYet        = errors.New("module has no questions yet")
	ErrInsufficientResponses = errors.New("not enough questions answered to write a chapter")
	ErrInvalidTransition     = errors.New("invalid module transition")
	ErrModuleLocked          = errors.New("module is approved; unapprove it first")
	ErrNothingToCompile      = errors.New("no approved modules to compile")
)
