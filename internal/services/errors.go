package services

import "fmt"

// The service error taxonomy. Every error here is per-request and
// recoverable by the caller; none is fatal to the process.

// ValidationError indicates malformed input, such as duplicate step orders
// or a non-positive approval count. Never worth retrying unchanged.
type ValidationError struct {
	Detail string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Detail
}

// NotFoundError indicates an unknown workflow, step or task id.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

// ForbiddenError indicates the actor lacks permission for the operation.
// Distinct from an authentication failure: the caller is known, just not
// allowed.
type ForbiddenError struct {
	Detail string
}

func (e *ForbiddenError) Error() string {
	return "forbidden: " + e.Detail
}

// ConflictError indicates an illegal state transition, a lost concurrent
// update, or an operation against a workflow in the wrong status. Current
// and Attempted carry enough detail for the caller to decide whether to
// retry with fresh data; the service itself never retries.
type ConflictError struct {
	Detail    string
	Current   string
	Attempted string
}

func (e *ConflictError) Error() string {
	if e.Current != "" || e.Attempted != "" {
		return fmt.Sprintf("conflict: %s (current=%s, attempted=%s)", e.Detail, e.Current, e.Attempted)
	}
	return "conflict: " + e.Detail
}
