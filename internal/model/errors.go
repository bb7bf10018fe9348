package model

import "errors"

// Failure taxonomy shared across the engine and its collaborators. Callers
// wrap these with fmt.Errorf("...: %w", err) and match with errors.Is.
var (
	// ErrMalformedForecast indicates the producer returned structurally
	// invalid output (missing fields, confidence outside [0,1]).
	ErrMalformedForecast = errors.New("malformed forecast")
	// ErrMalformedReview is the reviewer-side equivalent.
	ErrMalformedReview = errors.New("malformed review")
	// ErrProducerUnavailable indicates a transient producer failure.
	ErrProducerUnavailable = errors.New("producer unavailable")
	// ErrReviewerUnavailable indicates a transient reviewer failure.
	ErrReviewerUnavailable = errors.New("reviewer unavailable")
	// ErrPriceUnavailable indicates the price feed had no data at or near
	// the requested instant.
	ErrPriceUnavailable = errors.New("price unavailable")
	// ErrInvalidOutcome indicates outcome data that violates an invariant,
	// such as a zero realized price.
	ErrInvalidOutcome = errors.New("invalid outcome")
	// ErrImmutableViolation indicates an attempt to overwrite an existing
	// append-only record.
	ErrImmutableViolation = errors.New("immutable record already exists")
	// ErrStoreUnavailable indicates the durable store could not serve the
	// call; the in-flight transition must be aborted, not completed.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")
)
