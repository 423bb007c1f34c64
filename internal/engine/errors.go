package engine

import "errors"

// Error taxonomy. Handlers map these to HTTP status codes; everything else
// is treated as a persistence failure.
var (
	// ErrValidation marks bad input, rejected before any mutation.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks an unknown note id, or one not owned by the caller.
	ErrNotFound = errors.New("note not found")
	// ErrConflict marks an operation invalid for the note's current state.
	ErrConflict = errors.New("conflicts with note state")
)
