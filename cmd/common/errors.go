package common

import "errors"

// Shared command errors.
var (
	// ErrConfigRequired indicates a missing configuration dependency.
	ErrConfigRequired = errors.New("config is required")

	// ErrLoggerRequired indicates a missing logger dependency.
	ErrLoggerRequired = errors.New("logger is required")

	// ErrStoreRequired indicates a missing snapshot store dependency.
	ErrStoreRequired = errors.New("store is required")
)
