package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorCode is the machine-readable failure kind recorded on a job and
// returned by the HTTP API.
type ErrorCode string

const (
	CodeInvalidInput  ErrorCode = "INVALID_INPUT"
	CodeInvalidLink   ErrorCode = "INVALID_LINK"
	CodeResolveFailed ErrorCode = "RESOLVE_FAILED"
	CodeASRTimeout    ErrorCode = "ASR_TIMEOUT"
	CodeASRFailed     ErrorCode = "ASR_FAILED"
	CodeModelTimeout  ErrorCode = "MODEL_TIMEOUT"
	CodeQCFailed      ErrorCode = "QC_FAILED"
	CodeNotFound      ErrorCode = "NOT_FOUND"
	CodeInternal      ErrorCode = "INTERNAL_ERROR"
)

var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrInvalidLink   = errors.New("invalid link")
	ErrResolveFailed = errors.New("resolve failed")
	ErrASRTimeout    = errors.New("asr timeout")
	ErrASRFailed     = errors.New("asr failed")
	ErrModelTimeout  = errors.New("model timeout")
	ErrQCFailed      = errors.New("quality gate failed")
	ErrNotFound      = errors.New("not found")
	ErrConfiguration = errors.New("configuration error")
	ErrInternal      = errors.New("internal error")
)

var markerCodes = []struct {
	marker error
	code   ErrorCode
}{
	{ErrInvalidInput, CodeInvalidInput},
	{ErrInvalidLink, CodeInvalidLink},
	{ErrResolveFailed, CodeResolveFailed},
	{ErrASRTimeout, CodeASRTimeout},
	{ErrASRFailed, CodeASRFailed},
	{ErrModelTimeout, CodeModelTimeout},
	{ErrQCFailed, CodeQCFailed},
	{ErrNotFound, CodeNotFound},
	{ErrInternal, CodeInternal},
}

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later code classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrInternal
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Error is a failure whose Message is safe to show to API callers. The marker
// classifies it and Cause keeps the underlying detail for logs.
type Error struct {
	Marker  error
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return e.Message + ": " + e.Cause.Error()
}

func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Marker != nil {
		errs = append(errs, e.Marker)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

// Fail returns an *Error tagged with marker.
func Fail(marker error, message string, cause error) error {
	if marker == nil {
		marker = ErrInternal
	}
	return &Error{Marker: marker, Message: strings.TrimSpace(message), Cause: cause}
}

// Message returns the caller-facing text for err. Errors built with Fail keep
// their message; anything else falls back to the full error string.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var svcErr *Error
	if errors.As(err, &svcErr) && svcErr.Message != "" {
		return svcErr.Message
	}
	return err.Error()
}

// Code maps an error to the code persisted on the failed job. The first
// matching marker wins; unmarked errors are internal errors.
func Code(err error) ErrorCode {
	if err == nil {
		return ""
	}
	for _, mc := range markerCodes {
		if errors.Is(err, mc.marker) {
			return mc.code
		}
	}
	return CodeInternal
}

// IsTimeout reports whether err is a deadline expiry rather than a caller
// cancellation.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var timeoutErr interface{ Timeout() bool }
	return errors.As(err, &timeoutErr) && timeoutErr.Timeout()
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
