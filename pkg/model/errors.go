// Package model defines the tenant-scoped entities shared across the
// orchestration engine: agents, playbooks, dependency graphs, jobs,
// invocations, status events and result artifacts.
package model

import (
	"errors"
	"fmt"
)

// Code is a closed-set error taxonomy. Every Code carries a fixed
// Retryable hint (see CodeRetryable) so callers never have to guess.
type Code string

// Validation errors — non-retryable, reported to the caller verbatim.
const (
	CodeSchemaViolation  Code = "schema_violation"
	CodeBadReference     Code = "bad_reference"
	CodeClassMismatch    Code = "class_mismatch"
	CodeCycle            Code = "cycle"
	CodeMultiParent      Code = "multi_parent"
	CodeMultiLevel       Code = "multi_level"
	CodeDanglingEdge     Code = "dangling_edge"
	CodeBuiltinImmutable Code = "builtin_immutable"
	CodeOutputValidation Code = "output_validation"
)

// Authorization errors — non-retryable.
const (
	CodeUnauthorized Code = "unauthorized"
	CodeToolDenied   Code = "tool_denied"
	CodeCrossTenant  Code = "cross_tenant"
)

// Runtime (agent-local) errors — recorded on the AgentInvocation, never
// surfaced as a job failure.
const (
	CodeParseError   Code = "parse_error"
	CodeAgentTimeout Code = "agent_timeout"
	CodeToolFailed   Code = "tool_failed"
)

// Job-fatal errors.
const (
	CodeNoViableAgents  Code = "no_viable_agents"
	CodeSynthesisRefused Code = "synthesis_refused"
	CodeInternal        Code = "internal"
)

// Capacity errors — retryable with a hint.
const (
	CodeAtCapacity   Code = "at_capacity"
	CodeBackpressure Code = "backpressure"
)

// Lifecycle — terminal but not a failure.
const (
	CodeCancelled Code = "cancelled"
)

// retryableCodes is the exhaustive set of codes a caller may retry.
var retryableCodes = map[Code]bool{
	CodeAtCapacity:   true,
	CodeBackpressure: true,
}

// Retryable reports whether operations failing with this code may be
// safely retried by the caller.
func (c Code) Retryable() bool {
	return retryableCodes[c]
}

// Error is the envelope carried by every error the engine returns across
// a component boundary: {code, message, retryable, details}.
type Error struct {
	Code      Code
	Message   string
	Details   map[string]any
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports the error's retry hint.
func (e *Error) Retryable() bool { return e.Code.Retryable() }

// NewError constructs an Error without a wrapped cause.
func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap constructs an Error that wraps an underlying cause.
func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// WithDetails attaches structured detail fields and returns the receiver
// for chaining at the call site.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// CodeOf extracts the Code from err if it (or something it wraps) is an
// *Error, and ok=false otherwise.
func CodeOf(err error) (Code, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return "", false
}
