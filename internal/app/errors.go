package service

import "errors"

// Sentinel kinds for entry point errors. Domain failures keep their own
// sentinels (address.ErrInvalidAddress, ownership.ErrUnauthorized,
// scores.ErrNotFound, scores.ErrInvalidKey) and are wrapped, not replaced.
var (
	// ErrUninitialized is returned for any operation before Instantiate.
	ErrUninitialized = errors.New("contract not instantiated")
	// ErrAlreadyInitialized is returned by a second Instantiate.
	ErrAlreadyInitialized = errors.New("contract already instantiated")
	// ErrDuplicateTx is returned when an execute carries a transaction ID
	// that was already applied. Nothing is executed.
	ErrDuplicateTx = errors.New("duplicate transaction")
	// ErrBusy is returned when the operation queue is full.
	ErrBusy = errors.New("service busy")
	// ErrNotStarted is returned when the service is not running.
	ErrNotStarted = errors.New("service not started")
	// ErrStopped is returned by Start after Stop; the store is closed.
	ErrStopped = errors.New("service stopped")
	// ErrBadRequest is returned for messages with no or several variants set.
	ErrBadRequest = errors.New("bad request")
)
