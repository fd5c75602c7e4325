package types

import "errors"

// Sentinel errors shared across the repositories, worker, and manager.
var (
	// ErrValidation is returned when a record or summary fails construction
	// checks (empty message, out-of-range confidence, empty error-id set).
	// Invalid values are rejected before they reach storage.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a record or summary ID has no entry.
	ErrNotFound = errors.New("not found")

	// ErrEndpoint is returned when the summarization endpoint fails
	// (network error, timeout, or unusable response). It triggers backoff
	// but never corrupts repository state.
	ErrEndpoint = errors.New("summarization endpoint failed")

	// ErrTimeout is returned to a caller whose bounded wait for a
	// summarization result expired. Distinct from ErrEndpoint: the request
	// may still complete later, it just is no longer awaited.
	ErrTimeout = errors.New("summarization request timed out")
)
