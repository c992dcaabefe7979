package editor

import (
	"github.com/dshills/quill/internal/project/tree"
	"github.com/dshills/quill/internal/tracking"
)

// Workspace is an open workspace: its absolute path and its entry tree.
type Workspace struct {
	Path string     `json:"path"`
	Root tree.Entry `json:"root"`
}

// DialogBrowseProject is the type of the project browser dialog.
const DialogBrowseProject = "browse-project"

// BrowseEntry is a directory listed by the project browser.
type BrowseEntry struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	Project bool   `json:"project"`
}

// Dialog is the payload of the active dialog.
type Dialog struct {
	Type    string        `json:"type"`
	Path    string        `json:"path"`
	Parent  string        `json:"parent,omitempty"`
	Entries []BrowseEntry `json:"entries"`
}

// EditorState is the root aggregate. Values are never modified after they
// are published; every transition builds a new one.
type EditorState struct {
	Workspace *Workspace `json:"workspace"`
	Tabs      []Tab      `json:"tabs"`
	Dialog    *Dialog    `json:"dialog"`

	// Revision counts committed transitions. It is not part of the client
	// view.
	Revision uint64 `json:"-"`
}

// emptyState is the state before any workspace is opened.
func emptyState() *EditorState {
	return &EditorState{Tabs: []Tab{}}
}

func (s *EditorState) clone() *EditorState {
	c := *s
	return &c
}

// withRoot returns s with the workspace tree replaced. d is the diff of
// the tree relative to its root.
func (s *EditorState) withRoot(root tree.Entry, d tracking.Diff) (*EditorState, tracking.Diff) {
	next := s.clone()
	ws := *s.Workspace
	ws.Root = root
	next.Workspace = &ws
	return next, tracking.Prefixed("workspace", tracking.Prefixed("root", d))
}

// withDialog returns s showing dialog, or no dialog when nil.
func (s *EditorState) withDialog(dialog *Dialog) (*EditorState, tracking.Diff) {
	if s.Dialog == nil && dialog == nil {
		return s, nil
	}
	next := s.clone()
	next.Dialog = dialog
	return next, tracking.Diff{"dialog": dialog}
}
