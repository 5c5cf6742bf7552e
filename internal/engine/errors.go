package engine

import "errors"

// Resolution and aggregation failures map onto the HTTP error envelope in
// internal/app. Cache failures never surface here; the cache degrades to
// always-miss instead.
var (
	// ErrNotFound means no active tenant matched the supplied key.
	ErrNotFound = errors.New("tenant not found")
	// ErrInvalidKey means the key was malformed before any lookup ran.
	ErrInvalidKey = errors.New("invalid tenant key")
	// ErrRepositoryUnavailable means a backing read failed or timed out after
	// the internal retry.
	ErrRepositoryUnavailable = errors.New("repository unavailable")
)
