package domain

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrLockHeld indicates a distributed lock is held by another owner.
	ErrLockHeld = errors.New("lock held by another owner")

	// ErrCycleInProgress indicates a poll cycle is already running and the
	// new trigger was rejected rather than queued.
	ErrCycleInProgress = errors.New("poll cycle already in progress")

	// ErrInvalidWatch indicates a watch definition failed validation.
	ErrInvalidWatch = errors.New("invalid watch definition")
)
