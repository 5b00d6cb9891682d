// Package fleeterr defines the structured error type the engine's public
// API returns, pairing a wire-visible code with a human message and the
// underlying cause.
package fleeterr

import (
	"errors"
	"fmt"
)

// Code classifies an Error for automation that branches on error type
// rather than parsing messages.
type Code string

// Code values are the wire-visible string error codes from spec.md §6.
// Capability-specific codes (WORKTREE_*, CLAUDE_*, ...) are passed through
// by the capability implementations, not enumerated here.
const (
	CodeDatabaseInsertFailed    Code = "DATABASE_INSERT_FAILED"
	CodeDatabaseUpdateFailed    Code = "DATABASE_UPDATE_FAILED"
	CodeDatabaseDeleteFailed    Code = "DATABASE_DELETE_FAILED"
	CodeDatabaseOperationFailed Code = "DATABASE_OPERATION_FAILED"

	CodeInstanceNotFound   Code = "WORKFLOW_INSTANCE_NOT_FOUND"
	CodeInvalidState       Code = "WORKFLOW_INVALID_STATE"
	CodeMaxReviewsExceeded Code = "WORKFLOW_MAX_REVIEWS_EXCEEDED"
	CodeReviewInProgress   Code = "WORKFLOW_REVIEW_IN_PROGRESS"
	CodeCleanupFailed      Code = "WORKFLOW_CLEANUP_FAILED"
	CodeAllocationFailed   Code = "WORKFLOW_ALLOCATION_FAILED"

	// CodeInvalidInput covers validation errors rejected at the API
	// boundary before any state change (spec.md §7 taxonomy item 1).
	CodeInvalidInput Code = "VALIDATION_FAILED"

	// CodeInternal is used for conditions the spec does not assign a
	// dedicated code to.
	CodeInternal Code = "INTERNAL"
)

// Error is the structured error the engine returns across its public API.
// It pairs a stable Code for automation with a Message for humans, while
// Unwrap keeps errors.Is/errors.As working against the original sentinel.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds an Error, using err's message as Message when message is empty.
func New(code Code, message string, err error) *Error {
	if message == "" && err != nil {
		message = err.Error()
	}
	return &Error{Code: code, Message: message, Err: err}
}

// Wrap attaches code and stage context to err, unless err already carries a
// fleeterr.Error — mirroring the teacher's wrapCycleFailure, which refuses
// to double-wrap an error that is already classified.
func Wrap(code Code, stage string, err error) error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		return err
	}
	if stage != "" {
		err = fmt.Errorf("%s: %w", stage, err)
	}
	return &Error{Code: code, Message: err.Error(), Err: err}
}

// CodeOf returns the Code carried by err, or CodeInternal if err is not (or
// does not wrap) a *Error.
func CodeOf(err error) Code {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return CodeInternal
}
