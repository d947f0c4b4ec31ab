package models

import (
	"errors"
	"fmt"
)

// Error codes used in API responses and internal error handling.
const (
	// Transient page failures: the current candidate is skipped.
	ErrCodeTimeout         = "SCRAPE_TIMEOUT"
	ErrCodeNavigation      = "NAVIGATION_FAILED"
	ErrCodeElementNotFound = "ELEMENT_NOT_FOUND"
	ErrCodeStaleReference  = "STALE_REFERENCE"

	// Session-fatal failures: the current scrape call is aborted.
	ErrCodeSessionLost  = "SESSION_LOST"
	ErrCodeBrowserCrash = "BROWSER_CRASH"

	// Relevance gate failures.
	ErrCodeLLMFailure     = "LLM_FAILURE"
	ErrCodeLLMUnavailable = "LLM_UNAVAILABLE"
	ErrCodeLLMAuthFailure = "LLM_AUTH_FAILURE"
	ErrCodeLLMRateLimited = "LLM_RATE_LIMITED"
	ErrCodeLLMBadOutput   = "LLM_BAD_OUTPUT"

	ErrCodeConfig      = "CONFIGURATION_ERROR"
	ErrCodeConversion  = "CONVERSION_FAILED"
	ErrCodeSinkFailure = "SINK_FAILURE"

	// HTTP API.
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeRateLimited  = "RATE_LIMITED"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeRunActive    = "RUN_IN_PROGRESS"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ScrapeError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type ScrapeError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// NewScrapeError creates a new ScrapeError.
func NewScrapeError(code, message string, err error) *ScrapeError {
	return &ScrapeError{Code: code, Message: message, Err: err}
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *ScrapeError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Message}
}

// CodeOf returns the code of the first ScrapeError in err's chain,
// or ErrCodeInternal when there is none.
func CodeOf(err error) string {
	var se *ScrapeError
	if errors.As(err, &se) {
		return se.Code
	}
	return ErrCodeInternal
}

// IsSessionFatal reports whether err means the browser session is gone.
func IsSessionFatal(err error) bool {
	if err == nil {
		return false
	}
	switch CodeOf(err) {
	case ErrCodeSessionLost, ErrCodeBrowserCrash:
		return true
	}
	return false
}

// IsTransient reports whether err only affects the current page.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	switch CodeOf(err) {
	case ErrCodeTimeout, ErrCodeNavigation, ErrCodeElementNotFound, ErrCodeStaleReference:
		return true
	}
	return false
}

// ToErrorDetail converts any error into an ErrorDetail, keeping the code of
// a wrapped ScrapeError.
func ToErrorDetail(err error) *ErrorDetail {
	var se *ScrapeError
	if errors.As(err, &se) {
		return se.ToDetail()
	}
	return &ErrorDetail{Code: ErrCodeInternal, Message: err.Error()}
}
