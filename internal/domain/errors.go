package domain

import "errors"

var (
	// ErrEmbeddingFailure is returned when the embedding provider is unreachable,
	// rejects the input, or returns a vector of the wrong dimension.
	ErrEmbeddingFailure = errors.New("embedding failure")

	// ErrExternalProvider covers timeouts, non-2xx responses and unparseable
	// payloads from the external search provider.
	ErrExternalProvider = errors.New("external search provider error")

	// ErrPersistenceConflict signals a uniqueness violation on insert.
	ErrPersistenceConflict = errors.New("persistence conflict")

	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")

	// ErrSearchFailed is returned by the orchestrator when every attempted
	// branch failed. It is distinct from a successful search with zero hits.
	ErrSearchFailed = errors.New("search failed")

	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)
