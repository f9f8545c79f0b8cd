package task

import "fmt"

// ErrorKind classifies task failures. Every error is contained at the task
// boundary; the kind decides retry and reporting behavior.
type ErrorKind string

const (
	// ErrPlanningFailed marks a malformed or unavailable planning inference.
	// Recovered by the keyword fallback, never attached to a task.
	ErrPlanningFailed ErrorKind = "planning_failed"
	// ErrDependencyFailed marks a task short-circuited because one of its
	// dependencies failed. The capability is never invoked.
	ErrDependencyFailed ErrorKind = "dependency_failed"
	// ErrTimeout marks a capability call that exceeded its per-call budget,
	// distinct from backend-reported errors.
	ErrTimeout ErrorKind = "timeout"
	// ErrTransientBackend marks rate limits and transient network failures.
	// The invoker retries these.
	ErrTransientBackend ErrorKind = "transient_backend"
	// ErrPermanentBackend marks invalid input or policy rejections. Not
	// retried, surfaced as a failed task.
	ErrPermanentBackend ErrorKind = "permanent_backend"
	// ErrCancelled marks a task abandoned at the orchestration deadline.
	ErrCancelled ErrorKind = "cancelled"
)

// Error is a structured task failure: a kind plus a human-readable message.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewError builds a task error from a kind and an underlying cause.
func NewError(kind ErrorKind, err error) *Error {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return &Error{Kind: kind, Message: msg}
}

// Errorf builds a task error with a formatted message.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the kind from an error, defaulting to permanent backend
// for untyped errors.
func KindOf(err error) ErrorKind {
	if te, ok := err.(*Error); ok {
		return te.Kind
	}
	return ErrPermanentBackend
}

// Retryable reports whether the invoker should retry a failure of this kind.
func (k ErrorKind) Retryable() bool {
	return k == ErrTransientBackend || k == ErrTimeout
}
