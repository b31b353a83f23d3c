package api

import (
	"errors"
	"net/http"

	"github.com/mabel-stories/mabel/internal/ai"
	"github.com/mabel-stories/mabel/internal/export"
	"github.com/mabel-stories/mabel/internal/log"
	"github.com/mabel-stories/mabel/internal/progress"
	"github.com/mabel-stories/mabel/internal/storage"
	"github.com/mabel-stories/mabel/internal/store"
)

type errorBody struct {
	Error  string `json:"error"`
	Code   string `json:"code"`
	Reason string `json:"reason,omitempty"`
}

type errorMapping struct {
	target error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{progress.ErrProjectNotFound, http.StatusNotFound, "project_not_found"},
	{progress.ErrModuleNotFound, http.StatusNotFound, "module_not_found"},
	{store.ErrQuestionNotFound, http.StatusNotFound, "question_not_found"},
	{store.ErrJobNotFound, http.StatusNotFound, "job_not_found"},
	{store.ErrUploadNotFound, http.StatusNotFound, "upload_not_found"},
	{store.ErrUserNotFound, http.StatusNotFound, "user_not_found"},

	{progress.ErrAlreadyApproved, http.StatusConflict, "already_approved"},
	{progress.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
	{progress.ErrModuleLocked, http.StatusConflict, "module_locked"},
	{store.ErrDuplicate, http.StatusConflict, "duplicate"},

	{progress.ErrChapterMissing, http.StatusUnprocessableEntity, "chapter_missing"},
	{progress.ErrNoQuestionsYet, http.StatusUnprocessableEntity, "no_questions"},
	{progress.ErrInsufficientResponses, http.StatusUnprocessableEntity, "insufficient_responses"},
	{progress.ErrNothingToCompile, http.StatusUnprocessableEntity, "nothing_to_compile"},
	{export.ErrEmptyBook, http.StatusUnprocessableEntity, "empty_book"},

	{export.ErrUnsupportedFormat, http.StatusBadRequest, "unsupported_format"},
	{storage.ErrTooLarge, http.StatusRequestEntityTooLarge, "too_large"},
}

// StatusForCategory maps an AI failure category to an HTTP status.
func StatusForCategory(c ai.Category) int {
	switch c {
	case ai.CategoryQuota:
		return http.StatusPaymentRequired
	case ai.CategoryRateLimited:
		return http.StatusTooManyRequests
	case ai.CategoryUnauthorized:
		return http.StatusServiceUnavailable
	case ai.CategoryTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

// writeError maps domain errors to statuses. Anything unrecognised is a 500
// and is logged.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			writeJSON(w, m.status, errorBody{Error: err.Error(), Code: m.code})
			return
		}
	}

	var aiErr *ai.Error
	if errors.As(err, &aiErr) {
		writeJSON(w, StatusForCategory(aiErr.Category), errorBody{
			Error:  aiErr.Error(),
			Code:   string(aiErr.Category),
			Reason: aiErr.Category.Reason(),
		})
		return
	}

	s.logger.Emit(log.LogEvent{Event: log.EventWarning, Error: err.Error()})
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error", Code: "internal"})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg, Code: "bad_request"})
}
