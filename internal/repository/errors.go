package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrSessionAlreadyAttached is returned when an application already carries a checkout session.
	ErrSessionAlreadyAttached = errors.New("checkout session already attached")

	// ErrDuplicate is returned when a unique key is already present.
	ErrDuplicate = errors.New("duplicate entity")
)
