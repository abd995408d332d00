package consent

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes consent failures.
type ErrorCode string

const (
	// ErrCodeNotFound indicates the workflow id is unknown (never existed or pruned).
	ErrCodeNotFound ErrorCode = "WORKFLOW_NOT_FOUND"

	// ErrCodeNotPending indicates the workflow already resolved. Benign:
	// transports may deliver stale responses.
	ErrCodeNotPending ErrorCode = "WORKFLOW_NOT_PENDING"

	// ErrCodeIgnored indicates a response from someone other than the
	// responder, or with a choice outside accept/reject.
	ErrCodeIgnored ErrorCode = "RESPONSE_IGNORED"

	// ErrCodeAlreadyPending indicates a participant is already in a pending workflow.
	ErrCodeAlreadyPending ErrorCode = "ALREADY_PENDING"

	// ErrCodeInvalid indicates bad Begin arguments.
	ErrCodeInvalid ErrorCode = "INVALID_WORKFLOW"
)

// Error is a typed consent failure.
type Error struct {
	Code       ErrorCode
	Message    string
	WorkflowID string
}

// Sentinels for errors.Is.
var (
	ErrNotFound       = &Error{Code: ErrCodeNotFound}
	ErrNotPending     = &Error{Code: ErrCodeNotPending}
	ErrIgnored        = &Error{Code: ErrCodeIgnored}
	ErrAlreadyPending = &Error{Code: ErrCodeAlreadyPending}
	ErrInvalid        = &Error{Code: ErrCodeInvalid}
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.WorkflowID != "" {
		return fmt.Sprintf("%s: %s (workflow=%s)", e.Code, e.Message, e.WorkflowID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// IsBenign reports whether err only signals a stale or irrelevant event.
func IsBenign(err error) bool {
	return errors.Is(err, ErrNotPending) || errors.Is(err, ErrIgnored) || errors.Is(err, ErrNotFound)
}

func newError(code ErrorCode, workflowID, format string, args ...any) *Error {
	return &Error{Code: code, WorkflowID: workflowID, Message: fmt.Sprintf(format, args...)}
}
