package script

import "errors"

// Errors for script host operations.
var (
	// ErrHostClosed is returned when operating on a closed host.
	ErrHostClosed = errors.New("script host is closed")

	// ErrNotFunction is returned when a subscriber or work argument is not a Lua function.
	ErrNotFunction = errors.New("expected a function")
)
