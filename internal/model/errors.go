package model

import "errors"

// Failure kinds surfaced by completion providers. The retry policy decides
// which of these are transient; the orchestrator maps each to a user-facing
// message. Providers wrap these with %w so callers classify via errors.Is.
var (
	// ErrRateLimited means the remote endpoint rejected the call with HTTP 429.
	ErrRateLimited = errors.New("model: rate limited")
	// ErrConnection means the remote endpoint could not be reached.
	ErrConnection = errors.New("model: connection error")
	// ErrTimeout means the call exceeded the configured wall-clock timeout.
	// A timed-out attempt is terminal; it is not retried.
	ErrTimeout = errors.New("model: request timed out")
	// ErrEmptyResponse means the endpoint answered with an empty choice list.
	// Distinct from a valid response whose content happens to be empty.
	ErrEmptyResponse = errors.New("model: empty response")
)
