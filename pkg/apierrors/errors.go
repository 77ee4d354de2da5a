// Package apierrors defines the closed error taxonomy used across the
// simulator: validation, lifecycle, matching, persistence, and per-request
// failures. Each kind maps to exactly one HTTP status and one CLI exit code.
package apierrors

import (
	"errors"
	"fmt"
)

// Kind identifies a taxonomy member. Every error produced by the core
// belongs to exactly one Kind.
type Kind string

const (
	KindInvalidSpec           Kind = "invalid_spec"
	KindServiceNotFound       Kind = "service_not_found"
	KindServiceAlreadyExists  Kind = "service_already_exists"
	KindServiceAlreadyRunning Kind = "service_already_running"
	KindServiceNotRunning     Kind = "service_not_running"
	KindServiceNameMismatch   Kind = "service_name_mismatch"
	KindPortRangeExhausted    Kind = "port_range_exhausted"
	KindPortBindFailed        Kind = "port_bind_failed"
	KindNoMatch               Kind = "no_match"
	KindNoResponseConfigured  Kind = "no_response_configured"
	KindScriptTimeout         Kind = "script_timeout"
	KindScriptFailure         Kind = "script_failure"
	KindUpstreamUnreachable   Kind = "upstream_unreachable"
	KindUpstreamTimeout       Kind = "upstream_timeout"
	KindYamlTooLarge          Kind = "yaml_too_large"
	KindFileWriteError        Kind = "file_write_error"
	KindFileReadError         Kind = "file_read_error"
	KindLogDropped            Kind = "log_dropped"
	KindBodyTooLarge          Kind = "body_too_large"
)

// Error is the concrete error type carrying a Kind plus context.
type Error struct {
	Kind   Kind
	Entity string // offending file, service name, etc.
	Reason string
	Hint   string
	Err    error // wrapped cause, if any
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s", e.Kind)
	if e.Entity != "" {
		msg += fmt.Sprintf(": %s", e.Entity)
	}
	if e.Reason != "" {
		msg += fmt.Sprintf(": %s", e.Reason)
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error of the given kind.
func New(kind Kind, entity, reason string) *Error {
	return &Error{Kind: kind, Entity: entity, Reason: reason}
}

// Wrap builds an *Error of the given kind around an existing error.
func Wrap(kind Kind, entity string, err error) *Error {
	return &Error{Kind: kind, Entity: entity, Err: err}
}

// WithHint attaches a one-line remediation hint and returns the receiver.
func (e *Error) WithHint(hint string) *Error {
	e.Hint = hint
	return e
}

// Is reports whether err (or any error it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind == kind
	}
	return false
}

// HTTPStatus maps a Kind to the status code the server should answer with
// for a per-request failure. Lifecycle/validation kinds that never reach
// the request boundary return 0.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindNoMatch:
		return 404
	case KindNoResponseConfigured, KindScriptTimeout, KindScriptFailure:
		return 500
	case KindUpstreamUnreachable:
		return 502
	case KindUpstreamTimeout:
		return 504
	case KindBodyTooLarge:
		return 413
	default:
		return 0
	}
}

// ExitCode maps a Kind to the CLI's stable exit code:
// 0 success, 1 validation, 2 lifecycle, 3 internal/unexpected.
func ExitCode(kind Kind) int {
	switch kind {
	case KindInvalidSpec, KindYamlTooLarge:
		return 1
	case KindServiceNotFound, KindServiceAlreadyExists, KindServiceAlreadyRunning,
		KindServiceNotRunning, KindServiceNameMismatch, KindPortRangeExhausted,
		KindPortBindFailed:
		return 2
	default:
		return 3
	}
}

// InvalidSpec is a validation failure attributable to one service file. The
// loader accumulates these across a single pass instead of failing fast.
type InvalidSpec struct {
	File   string
	Reason string
	Hint   string
}

func (e *InvalidSpec) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s (hint: %s)", e.File, e.Reason, e.Hint)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Reason)
}

// InvalidSpecList aggregates validation errors collected while validating a
// single file or directory.
type InvalidSpecList []*InvalidSpec

func (l InvalidSpecList) Error() string {
	if len(l) == 0 {
		return "no errors"
	}
	if len(l) == 1 {
		return l[0].Error()
	}
	return fmt.Sprintf("%d validation errors, first: %s", len(l), l[0].Error())
}

func (l InvalidSpecList) HasErrors() bool { return len(l) > 0 }
