package editor

import "errors"

var (
	// ErrNoWorkspace indicates a command that needs an open workspace.
	ErrNoWorkspace = errors.New("no workspace open")

	// ErrNodeNotFound indicates a tree key that matches no entry.
	ErrNodeNotFound = errors.New("node not found")

	// ErrTabNotFound indicates a content id without an open tab.
	ErrTabNotFound = errors.New("tab not found")

	// ErrNotDirectory indicates a browse or open target that is not a
	// directory.
	ErrNotDirectory = errors.New("not a directory")

	// ErrStaleEdit indicates an edit whose sequence number was already
	// applied.
	ErrStaleEdit = errors.New("edit already applied")

	// ErrClosed indicates the editor has been shut down.
	ErrClosed = errors.New("editor closed")
)
