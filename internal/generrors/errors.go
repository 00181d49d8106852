// Package generrors implements the Genesis error taxonomy (spec §7). Error
// preserves a Kind alongside a chained Cause so callers can branch on
// taxonomy with errors.Is/As while the human-readable Message still
// serializes cleanly into an RPC Reply's error field.
package generrors

import (
	"errors"
	"fmt"
)

// Kind enumerates the error taxonomy of spec.md §7. Kind is a closed set:
// new failure modes should map onto an existing Kind rather than grow this
// list, since RPC Replies and Orchestrator final errors both key off Kind.
type Kind string

const (
	// KindTransportUnavailable means the participant cannot publish/subscribe
	// at all; fatal for the offending participant.
	KindTransportUnavailable Kind = "TransportUnavailable"
	// KindNotRouted means a request was issued to a service_class/participant
	// that is not currently known.
	KindNotRouted Kind = "NotRouted"
	// KindTimeout means a deadline was exceeded awaiting a reply.
	KindTimeout Kind = "Timeout"
	// KindToolCallFailed means an RPC tool call returned non-zero status or
	// exhausted its retry budget.
	KindToolCallFailed Kind = "ToolCallFailed"
	// KindToolLoopExceeded means the orchestrator hit max hops without a
	// terminal text response.
	KindToolLoopExceeded Kind = "ToolLoopExceeded"
	// KindNoCapableProvider means no function, agent, or default_capable
	// agent matched the request.
	KindNoCapableProvider Kind = "NoCapableProvider"
	// KindLLMUnavailable means the LLM adapter signaled a provider-level
	// failure.
	KindLLMUnavailable Kind = "LLMUnavailable"
	// KindSchemaViolation means an advertisement payload or RPC argument
	// failed JSON-schema validation.
	KindSchemaViolation Kind = "SchemaViolation"
	// KindDegraded means the participant has entered the DEGRADED state.
	KindDegraded Kind = "Degraded"
)

// Error is a structured Genesis failure that preserves a taxonomy Kind and a
// wrapped cause, following the pattern of the teacher's ToolError chain
// (Message/Cause/Unwrap) generalized with a Kind field.
type Error struct {
	// Kind is the taxonomy bucket this error belongs to.
	Kind Kind
	// Message is the human-readable summary of the failure.
	Message string
	// Cause links to the underlying error, enabling error chains with
	// errors.Is/As.
	Cause error
}

// New constructs an Error of the given Kind with the provided message.
func New(kind Kind, message string) *Error {
	if message == "" {
		message = string(kind)
	}
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an Error of the given Kind that wraps an underlying error.
// If message is empty, the cause's Error() text is used as the message.
func Wrap(kind Kind, message string, cause error) *Error {
	if message == "" && cause != nil {
		message = cause.Error()
	}
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Errorf formats according to a format specifier and returns the result as
// an Error of the given Kind.
func Errorf(kind Kind, format string, args ...any) *Error {
	return New(kind, fmt.Sprintf(format, args...))
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the wrapped cause to support errors.Is/As.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// KindOf extracts the Kind of err if it is (or wraps) a *Error. The second
// return value is false when no Error is found in the chain.
func KindOf(err error) (Kind, bool) {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind, true
	}
	return "", false
}

// Is reports whether err carries the given Kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
