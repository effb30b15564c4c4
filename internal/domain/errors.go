package domain

import "errors"

// Sentinel errors shared by every layer. Callers match them with errors.Is;
// producers wrap them with context using fmt.Errorf("...: %w", err).
var (
	// ErrNotFound: an asset has no price, a quote could not be produced,
	// a snapshot or pending trade does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUpstreamUnavailable: a price or quote source failed (timeout,
	// HTTP error, malformed payload). Never surfaces to the session layer
	// directly; the resolver degrades to the next source.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrInvalidStateTransition: the requested session transition is not
	// allowed from the current state. The session is left unchanged.
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// ErrValidation: caller input out of range (profit-lock percentage,
	// withdrawal amount, malformed asset).
	ErrValidation = errors.New("validation error")

	// ErrPersistence: snapshot read or write failed.
	ErrPersistence = errors.New("persistence failure")
)
