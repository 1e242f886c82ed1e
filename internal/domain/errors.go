package domain

import "errors"

var (
	// ErrValidation marks missing or malformed input. Never retried.
	ErrValidation = errors.New("validation error")
	// ErrForbidden marks an ownership check failure (caller is not the recipient).
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound marks a lookup miss.
	ErrNotFound = errors.New("not found")
	// ErrStorageUnavailable marks a backend I/O failure. This is the only
	// retryable kind: consumers must leave the triggering message unacked.
	ErrStorageUnavailable = errors.New("storage unavailable")
)
