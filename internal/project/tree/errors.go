package tree

import "errors"

var (
	// ErrInvalidOperation indicates a structural update the entry variant
	// does not allow, such as replacing a child of a file.
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrNotFound indicates that no entry has the requested key.
	ErrNotFound = errors.New("entry not found")
)

// ErrNotDirectory indicates that a workspace root is not a directory.
var ErrNotDirectory = errors.New("not a directory")
