package errors

import (
	"fmt"

	crdb "github.com/cockroachdb/errors"
)

// ErrorCode represents a jobtracker error code.
type ErrorCode string

const (
	ErrInvalidRequest          ErrorCode = "INVALID_REQUEST"          // 400
	ErrNotFound                ErrorCode = "NOT_FOUND"                // 404
	ErrConflict                ErrorCode = "CONFLICT"                 // 409
	ErrBatchInProgress         ErrorCode = "BATCH_IN_PROGRESS"        // 409
	ErrStoreConflict           ErrorCode = "STORE_CONFLICT"           // 409
	ErrCancelled               ErrorCode = "CANCELLED"                // 499
	ErrInternal                ErrorCode = "INTERNAL"                 // 500
	ErrCollaboratorUnavailable ErrorCode = "COLLABORATOR_UNAVAILABLE" // 503
)

// Wrapping helpers re-exported so callers never import two errors packages.
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithHint     = crdb.WithHint
	WithHintf    = crdb.WithHintf
	FlattenHints = crdb.FlattenHints
	Unwrap       = crdb.Unwrap
	WithStack    = crdb.WithStack
)

// Inspection of plain causes such as transport or driver errors. Is and As
// below are reserved for JobError codes.
var (
	IsCause = crdb.Is
	AsCause = crdb.As
)

// JobError represents a structured error with code, status, and details.
// The optional cause carries a stack trace for internal failures.
type JobError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any

	cause error
}

// Error implements the error interface.
func (e *JobError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause, if any.
func (e *JobError) Unwrap() error {
	return e.cause
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *JobError {
	return &JobError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a missing entity of the given kind.
func NewNotFound(kind, id string) *JobError {
	return &JobError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("%s not found: %s", kind, id),
		Details: map[string]any{"kind": kind, "id": id},
	}
}

// NewConflict creates a 409 error for general conflicts.
func NewConflict(msg string) *JobError {
	return &JobError{
		Code:    ErrConflict,
		Status:  409,
		Message: msg,
	}
}

// NewBatchInProgress creates a 409 error when another batch run holds the account lock.
func NewBatchInProgress(account, holder string, expiresAt int64) *JobError {
	return &JobError{
		Code:    ErrBatchInProgress,
		Status:  409,
		Message: fmt.Sprintf("a batch run is already in progress for account %q", account),
		Details: map[string]any{"account": account, "holder": holder, "expires_at": expiresAt},
	}
}

// NewStoreConflict creates a 409 error for a concurrent mutation detected by the store.
func NewStoreConflict(err error) *JobError {
	msg := "concurrent modification detected"
	if err != nil {
		msg = err.Error()
	}
	return &JobError{
		Code:    ErrStoreConflict,
		Status:  409,
		Message: msg,
		cause:   crdb.WithStack(err),
	}
}

// NewCancelled creates an error for a cancelled operation.
func NewCancelled(operation string) *JobError {
	return &JobError{
		Code:    ErrCancelled,
		Status:  499,
		Message: fmt.Sprintf("%s cancelled", operation),
		Details: map[string]any{"operation": operation},
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *JobError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &JobError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
		cause:   crdb.WithStack(err),
	}
}

// NewCollaboratorUnavailable creates a 503 error when the mailbox or store cannot be reached.
func NewCollaboratorUnavailable(collaborator string, err error) *JobError {
	msg := fmt.Sprintf("%s unavailable", collaborator)
	if err != nil {
		msg = fmt.Sprintf("%s unavailable: %v", collaborator, err)
	}
	return &JobError{
		Code:    ErrCollaboratorUnavailable,
		Status:  503,
		Message: msg,
		Details: map[string]any{"collaborator": collaborator},
		cause:   crdb.WithStack(err),
	}
}

// As returns the first JobError in err's chain.
func As(err error) (*JobError, bool) {
	var jErr *JobError
	if crdb.As(err, &jErr) {
		return jErr, true
	}
	return nil, false
}

// Is checks if an error is, or wraps, a JobError with the given code.
func Is(err error, code ErrorCode) bool {
	if jErr, ok := As(err); ok {
		return jErr.Code == code
	}
	return false
}
