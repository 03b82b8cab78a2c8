package errors

import (
	"errors"
	"fmt"
)

// Error is the structured error carried through the system and rendered
// into tool envelopes as {code, message, details, suggestions}.
type Error struct {
	// Code is one of the stable codes in codes.go.
	Code string

	// Message is the human-readable error message.
	Message string

	// Details contains additional context as key-value pairs.
	Details map[string]any

	// Suggestions are actionable hints for the caller, canonical ones first.
	Suggestions []string

	// Cause is the underlying error, if any.
	Cause error

	// Retryable indicates the operation may succeed on retry.
	Retryable bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches errors by code, enabling errors.Is against sentinel values.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail. Returns the error for chaining.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion appends an actionable suggestion. Returns the error for chaining.
func (e *Error) WithSuggestion(s string) *Error {
	e.Suggestions = append(e.Suggestions, s)
	return e
}

// New creates an Error with the given code and message. The retryable flag
// and canonical suggestions derive from the code.
func New(code, message string) *Error {
	return &Error{
		Code:        code,
		Message:     message,
		Suggestions: append([]string(nil), canonicalSuggestions[code]...),
		Retryable:   isRetryableCode(code),
	}
}

// Newf creates an Error with a formatted message.
func Newf(code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap creates an Error from an existing error, keeping it as the cause.
// Returns nil when err is nil. Wrapping an *Error with the same code
// returns it unchanged.
func Wrap(code string, err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) && e.Code == code {
		return e
	}
	wrapped := New(code, err.Error())
	wrapped.Cause = err
	return wrapped
}

// Validation creates a VALIDATION_ERROR.
func Validation(format string, args ...any) *Error {
	return Newf(CodeValidation, format, args...)
}

// PointNotFound creates a POINT_NOT_FOUND for the given id.
func PointNotFound(id uint64) *Error {
	return Newf(CodePointNotFound, "point %d not found", id).
		WithDetail("id", fmt.Sprintf("%d", id))
}

// DimensionMismatch creates a DIMENSION_MISMATCH with both dimensions attached.
func DimensionMismatch(want, got int) *Error {
	return Newf(CodeDimensionMismatch, "expected dimension %d, got %d", want, got).
		WithDetail("expected", want).
		WithDetail("actual", got)
}

// BatchLimitExceeded creates a BATCH_LIMIT_EXCEEDED reporting the cap.
func BatchLimitExceeded(size, limit int) *Error {
	return Newf(CodeBatchLimitExceeded, "batch of %d exceeds limit of %d", size, limit).
		WithDetail("size", size).
		WithDetail("limit", limit)
}

// StoreUnavailable wraps a vector store transport failure.
func StoreUnavailable(err error) *Error {
	return Wrap(CodeStoreUnavailable, err)
}

// EmbedFailed wraps an embedding call failure.
func EmbedFailed(err error) *Error {
	return Wrap(CodeEmbedFailed, err)
}

// ParseFailed creates a PARSE_FAILED for the given file.
func ParseFailed(path string, err error) *Error {
	e := Wrap(CodeParseFailed, err)
	e.Message = fmt.Sprintf("failed to parse %s: %s", path, err)
	return e.WithDetail("file_path", path)
}

// Config creates a CONFIG_ERROR.
func Config(format string, args ...any) *Error {
	return Newf(CodeConfig, format, args...)
}

// CodeOf extracts the stable code from an error chain.
// Returns empty string for plain errors.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsRetryable reports whether the error chain contains a retryable Error.
// Plain errors are treated as retryable so transport-level failures that
// have not been classified yet still go through the backoff loop.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return true
}

// AsError extracts the *Error from a chain, wrapping plain errors under
// the given fallback code so every envelope entry carries a stable code.
func AsError(err error, fallbackCode string) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(fallbackCode, err)
}
