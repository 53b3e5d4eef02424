package models

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Error codes used in tool results and internal error handling.
const (
	ErrCodeNetwork          = "NETWORK_ERROR"
	ErrCodeParse            = "PARSE_ERROR"
	ErrCodeBlocked          = "BLOCKED"
	ErrCodeTimeout          = "TIMEOUT"
	ErrCodeSessionNotActive = "SESSION_NOT_ACTIVE"
	ErrCodeElementNotFound  = "ELEMENT_NOT_FOUND"
	ErrCodeScriptEvaluation = "SCRIPT_EVALUATION_FAILED"
	ErrCodeBrowserCrash     = "BROWSER_CRASH"
	ErrCodeInvalidInput     = "INVALID_INPUT"
	ErrCodeRateLimited      = "RATE_LIMITED"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeInternal         = "INTERNAL_ERROR"
)

// ErrorDetail is the structured error in tool result payloads.
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

// ToDetail converts an internal error to a caller-facing ErrorDetail.
func (e *ScrapeError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Message}
}

// AsDetail extracts an ErrorDetail from any error. Non-ScrapeError values
// are reported as INTERNAL_ERROR with their message preserved.
func AsDetail(err error) *ErrorDetail {
	if err == nil {
		return nil
	}
	var se *ScrapeError
	if errors.As(err, &se) {
		return se.ToDetail()
	}
	return &ErrorDetail{Code: ErrCodeInternal, Message: err.Error()}
}

// CodeOf returns the error code of err, or INTERNAL_ERROR when err carries
// no code. A nil err returns the empty string.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	var se *ScrapeError
	if errors.As(err, &se) {
		return se.Code
	}
	return ErrCodeInternal
}

// IsTransient reports whether err is worth retrying within the same
// strategy rung. Network failures and deadline overruns are transient;
// blocks, parse failures, and usage errors are not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	switch CodeOf(err) {
	case ErrCodeNetwork, ErrCodeTimeout:
		return true
	}
	return false
}

// Categorize wraps a raw fetch/navigation error into the taxonomy.
// Already-categorized errors pass through unchanged.
func Categorize(err error, msg string) *ScrapeError {
	if err == nil {
		return nil
	}
	var se *ScrapeError
	if errors.As(err, &se) {
		return se
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewScrapeError(ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return NewScrapeError(ErrCodeTimeout, msg+" (canceled)", err)
	}
	var ne net.Error
	if errors.As(err, &ne) {
		if ne.Timeout() {
			return NewScrapeError(ErrCodeTimeout, msg, err)
		}
		return NewScrapeError(ErrCodeNetwork, msg, err)
	}
	return NewScrapeError(ErrCodeNetwork, msg, err)
}
