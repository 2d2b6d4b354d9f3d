package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorType represents different kinds of upstream failures
type ErrorType string

const (
	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeRateLimit   ErrorType = "rate_limit"
	ErrorTypeAuth        ErrorType = "auth"
	ErrorTypeParsing     ErrorType = "parsing"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeServerError ErrorType = "server_error"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// Error represents an upstream API error with type information
type Error struct {
	Type    ErrorType
	Message string
	Code    int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
}

// TypeOf returns the ErrorType of err, or ErrorTypeUnknown
func TypeOf(err error) ErrorType {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Type
	}
	return ErrorTypeUnknown
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServerError:
		return true
	default:
		return false
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0, http.StatusTooManyRequests:
		return true
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return false
	default:
		return statusCode >= 500
	}
}

// Stage identifies where in the pipeline a per-handle failure happened
type Stage string

const (
	StageFetch  Stage = "fetch"
	StageExpand Stage = "expand"
	StageSink   Stage = "sink"
)

// StageError is a recoverable, per-handle failure. The crawler counts and
// logs these and moves on to the next handle.
type StageError struct {
	Stage  Stage
	Handle string
	Err    error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Stage, e.Handle, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// NewFetchError wraps a profile fetch failure
func NewFetchError(handle string, err error) error {
	return &StageError{Stage: StageFetch, Handle: handle, Err: err}
}

// NewExpandError wraps a neighbor discovery failure
func NewExpandError(handle string, err error) error {
	return &StageError{Stage: StageExpand, Handle: handle, Err: err}
}

// NewSinkWriteError wraps a result sink failure
func NewSinkWriteError(handle string, err error) error {
	return &StageError{Stage: StageSink, Handle: handle, Err: err}
}

// IsStage reports whether err is a StageError for the given stage
func IsStage(err error, stage Stage) bool {
	var se *StageError
	return errors.As(err, &se) && se.Stage == stage
}

// ConfigError is returned before any work starts when the run cannot be
// bounded: no seeds, negative depth, a zero profile limit and so on.
type ConfigError struct {
	Problems []error
}

// NewConfigError returns nil when there are no problems
func NewConfigError(problems ...error) error {
	var kept []error
	for _, p := range problems {
		if p != nil {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	return &ConfigError{Problems: kept}
}

func (e *ConfigError) Error() string {
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.Error()
	}
	return "invalid configuration: " + strings.Join(msgs, "; ")
}

func (e *ConfigError) Unwrap() []error {
	return e.Problems
}

// IsConfigError reports whether err carries a ConfigError
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
