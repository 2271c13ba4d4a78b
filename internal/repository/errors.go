package repository

import "errors"

// Common repository errors
var (
	// ErrNotFound is returned when a record is not found
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateState is returned when a generated state value collides with a live one
	ErrDuplicateState = errors.New("oauth state already exists")
)
