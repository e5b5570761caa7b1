package errors

import "errors"

var (
	ErrNotFound = errors.New("record not found")

	ErrInvalidID = errors.New("invalid ID format")

	ErrLockHeld = errors.New("lock is held by another operation")
)
