package app

import "errors"

// Error taxonomy surfaced to callers. Handlers map these to HTTP statuses
// with errors.Is; messages are safe to show to end users.
var (
	// ErrValidation indicates malformed or missing input.
	ErrValidation = errors.New("invalid input")

	// ErrNotFound indicates the order, session, book, or identity is absent.
	ErrNotFound = errors.New("not found")

	// ErrForbidden indicates a role or purchase-eligibility check failed.
	ErrForbidden = errors.New("forbidden")

	// ErrConflict indicates a settled-state conflict: double order,
	// cancel-after-paid, or a confirmation for a cancelled order.
	ErrConflict = errors.New("conflict")

	// ErrInvalidTransition indicates a status change that skips, regresses,
	// or otherwise leaves the pending -> shipped -> delivered path.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrUpstreamUnavailable indicates an external collaborator could not be
	// reached. Safe to retry; all other errors are not.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)
