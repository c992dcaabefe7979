// Package project holds the error taxonomy shared by the workspace
// packages.
//
// The workspace itself is split across subpackages:
//
//   - vfs: file system abstraction (OS and in-memory)
//   - tree: the persistent entry tree and its diffs
//   - filestore: the content store for open buffers
//   - watcher: file system change notification
package project
