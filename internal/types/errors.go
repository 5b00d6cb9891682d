package types

import "errors"

// Sentinel errors for the workflow engine and persistence store. Callers
// match these with errors.Is rather than comparing strings. Only
// ErrInstanceNotFound, ErrParentNotStarted, ErrMaxReviewsExceeded and
// ErrReviewInProgress are returned (by internal/engine); the store reports
// failures as *store.Error values carrying DATABASE_* codes, and the remaining
// sentinels below are not returned by any code in this module.
var (
	// ErrInstanceNotFound is returned when an instance id has no row.
	ErrInstanceNotFound = errors.New("instance not found")

	// ErrInstanceExists names a createInstance collision with an existing
	// id. Not returned: the store reports it as a *store.Error.
	ErrInstanceExists = errors.New("instance already exists")

	// ErrInvalidStatusTransition names a status change that is not a legal
	// edge in the instance lifecycle. Not returned: no code checks edges.
	ErrInvalidStatusTransition = errors.New("invalid status transition")

	// ErrInstanceTerminated names an operation that targets an instance
	// already in a terminal status. Not returned.
	ErrInstanceTerminated = errors.New("instance already terminated")

	// ErrParentNotStarted is returned by requestReview when the parent
	// instance is not in the started status.
	ErrParentNotStarted = errors.New("parent instance is not in started status")

	// ErrMaxReviewsExceeded is returned by requestReview when the parent
	// has already reached its review limit.
	ErrMaxReviewsExceeded = errors.New("parent instance has reached its review limit")

	// ErrReviewInProgress is returned by requestReview when a
	// non-terminal review instance already exists for the parent.
	ErrReviewInProgress = errors.New("a review is already in progress for this instance")

	// ErrRelationshipNotFound names a relationship id with no row. Not
	// returned: the store reports it as a *store.Error.
	ErrRelationshipNotFound = errors.New("relationship not found")

	// ErrGitHubIssueNotFound names an absent github_issue row. Not
	// returned: GetGitHubIssue reports absence as found=false.
	ErrGitHubIssueNotFound = errors.New("github issue not found")

	// ErrConfigNotFound names a config key with no row. Not returned:
	// GetConfig reports absence as found=false.
	ErrConfigNotFound = errors.New("config key not found")

	// ErrAllocationFailed names a failed resource-allocation step. Not
	// returned: the allocator returns the capability error itself and the
	// engine wraps it with code WORKFLOW_ALLOCATION_FAILED.
	ErrAllocationFailed = errors.New("resource allocation failed")

	// ErrCleanupFailed names a compensating teardown that could not fully
	// undo a partial allocation. Not returned: teardown failures are only
	// logged.
	ErrCleanupFailed = errors.New("resource cleanup failed")

	// ErrCapabilityUnavailable names a capability whose circuit breaker is
	// open. Not returned: an open breaker surfaces gobreaker's own
	// ErrOpenState.
	ErrCapabilityUnavailable = errors.New("capability unavailable")

	// ErrInvalidID names a caller-supplied id that fails validation (empty,
	// contains shell metacharacters, wrong format). Not returned: no code
	// validates ids.
	ErrInvalidID = errors.New("invalid id")

	// ErrStoreClosed names an operation attempted on a disconnected store.
	// Not returned: the store reports it as a *store.Error.
	ErrStoreClosed = errors.New("store is closed")
)
