package domain

import "errors"

// Remote errors
var (
	// ErrNotFound indicates the remote resource does not exist (404)
	ErrNotFound = errors.New("resource not found")

	// ErrTransient indicates a retryable remote failure (timeout, reset, 5xx)
	ErrTransient = errors.New("transient remote error")

	// ErrTerminal indicates a non-retryable remote failure (4xx)
	ErrTerminal = errors.New("terminal remote error")

	// ErrUnreachable indicates a subtree whose listing could not be fetched
	ErrUnreachable = errors.New("subtree unreachable")

	// ErrListingCycle indicates a self-referential directory listing
	ErrListingCycle = errors.New("self-referential listing")

	// ErrNotModified indicates a conditional GET answered 304
	ErrNotModified = errors.New("not modified")
)

// Transfer errors
var (
	// ErrSizeMismatch indicates the received byte count differs from the
	// size announced by the server
	ErrSizeMismatch = errors.New("transfer size mismatch")

	// ErrSyncInProgress indicates another run holds the destination lock
	ErrSyncInProgress = errors.New("sync already in progress")
)

// Config errors
var (
	// ErrConfigNotFound indicates config file not found
	ErrConfigNotFound = errors.New("config file not found")

	// ErrConfigInvalid indicates config file is malformed
	ErrConfigInvalid = errors.New("invalid config")

	// ErrInvalidPattern indicates a malformed exclude pattern
	ErrInvalidPattern = errors.New("invalid exclude pattern")
)
