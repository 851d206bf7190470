package storage

import "errors"

// Storage errors shared by the run, exclusion and snapshot stores.
var (
	// ErrNotFound is returned when a requested run does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when a run or its rows were already written.
	// Runs are append-only.
	ErrDuplicateKey = errors.New("duplicate key: runs are append-only")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)
