package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// Category groups generation failures by what the user can do about them.
type Category string

const (
	CategoryQuota        Category = "quota"
	CategoryRateLimited  Category = "rate_limited"
	CategoryUnauthorized Category = "unauthorized"
	CategoryTimeout      Category = "timeout"
	CategoryGeneric      Category = "generic"
)

// Reason is the user-facing explanation for a category.
func (c Category) Reason() string {
	switch c {
	case CategoryQuota:
		return "The AI provider reports the account is out of credit. Check billing and try again."
	case CategoryRateLimited:
		return "The AI provider is busy. Please wait a minute and try again."
	case CategoryUnauthorized:
		return "The AI provider rejected the API key. Check the server configuration."
	case CategoryTimeout:
		return "The AI provider took too long to respond. Please try again."
	default:
		return "The AI provider could not complete the request."
	}
}

// Error is a categorized failure from the generation service.
type Error struct {
	Category   Category
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("ai %s (%d): %s", e.Category, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("ai %s: %s", e.Category, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether the same request may succeed later.
func (e *Error) Retryable() bool {
	switch e.Category {
	case CategoryRateLimited, CategoryTimeout:
		return true
	case CategoryGeneric:
		return e.StatusCode == 0 || e.StatusCode >= 500
	}
	return false
}

// Classify maps an HTTP status and provider message to a category.
func Classify(status int, message string) Category {
	msg := strings.ToLower(message)
	switch {
	case status == http.StatusPaymentRequired,
		strings.Contains(msg, "insufficient_quota"),
		strings.Contains(msg, "quota"),
		strings.Contains(msg, "billing"),
		strings.Contains(msg, "credit"):
		return CategoryQuota
	case status == http.StatusTooManyRequests:
		return CategoryRateLimited
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return CategoryUnauthorized
	case status == http.StatusRequestTimeout, status == http.StatusGatewayTimeout:
		return CategoryTimeout
	}
	return CategoryGeneric
}

// CategoryOf extracts the category from any error. Deadline and network
// timeouts count as CategoryTimeout.
func CategoryOf(err error) Category {
	if err == nil {
		return ""
	}
	var aiErr *Error
	if errors.As(err, &aiErr) {
		return aiErr.Category
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CategoryTimeout
	}
	return CategoryGeneric
}

// IsRetryable reports whether err is worth retrying.
func IsRetryable(err error) bool {
	var aiErr *Error
	if errors.As(err, &aiErr) {
		return aiErr.Retryable()
	}
	return CategoryOf(err) == CategoryTimeout
}

func wrapTransport(err error) error {
	if CategoryOf(err) == CategoryTimeout {
		return &Error{Category: CategoryTimeout, Message: "request timed out", Err: err}
	}
	return &Error{Category: CategoryGeneric, Message: "request failed", Err: err}
}
