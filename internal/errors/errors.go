// Package errors provides the structured error type used across the
// ingestion and query pipeline. Every error carries a stable code so
// callers can branch on failure class without string matching.
package errors

import (
	"fmt"
)

// PipelineError is the structured error type for corpusqa.
type PipelineError struct {
	// Code is the unique error code (e.g. "ERR_101_PARSING_IMPOSSIBLE").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Ingestion, Provider, ...).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// Is matches errors by code so errors.Is works with PipelineError targets.
func (e *PipelineError) Is(target error) bool {
	if t, ok := target.(*PipelineError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error. Returns the error for
// method chaining.
func (e *PipelineError) WithDetail(key, value string) *PipelineError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a PipelineError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *PipelineError {
	return &PipelineError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Newf creates a PipelineError with a formatted message and no cause.
func Newf(code string, format string, args ...any) *PipelineError {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// Wrap creates a PipelineError from an existing error. Returns nil for a
// nil error so call sites can wrap unconditionally.
func Wrap(code string, err error) *PipelineError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ParsingImpossible reports a document that parsed to nothing.
func ParsingImpossible(docname string) *PipelineError {
	return Newf(ErrCodeParsingImpossible,
		"no text was parsed from the document named %q, either empty or corrupted", docname)
}

// ProviderError creates a provider-call error. These are retryable and
// tolerated inside the evidence map step.
func ProviderError(message string, cause error) *PipelineError {
	return New(ErrCodeProviderCall, message, cause)
}

// ConfigError creates a configuration error.
func ConfigError(message string, cause error) *PipelineError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// IsRetryable reports whether the error is a PipelineError marked retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if pe, ok := err.(*PipelineError); ok {
		return pe.Retryable
	}
	return false
}

// GetCode extracts the code from a PipelineError, or "" for other errors.
func GetCode(err error) string {
	if pe, ok := err.(*PipelineError); ok {
		return pe.Code
	}
	return ""
}
