// Package tree implements the persistent workspace entry tree.
//
// Entries are immutable. Every update returns a new entry together with a
// tracking.Diff describing exactly what a client mirror has to change; the
// previous entry stays valid and shares all untouched subtrees with the new
// one.
//
// Children are ordered directories first, then files, each group sorted by
// name. A Project always carries its ReferencesGroup at index 0.
package tree

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/dshills/quill/internal/tracking"
)

// Kind is the type tag of an entry on the wire.
type Kind string

const (
	KindDir       Kind = "dir"
	KindFile      Kind = "file"
	KindProject   Kind = "project"
	KindPackages  Kind = "packages"
	KindReference Kind = "reference"
)

// Entry is a node of the workspace tree.
type Entry interface {
	// Key is the slash separated path relative to the workspace root.
	// It is unique within a tree.
	Key() string
	Name() string
	Kind() Kind
	IsOpen() bool

	// Children returns the ordered children. The slice is shared with the
	// entry and must not be modified.
	Children() []Entry
	HasChildren() bool

	// ContentID returns the editable content id, or "" when the entry has
	// no content.
	ContentID() string

	// AsOpen returns the entry with its open flag set.
	AsOpen(open bool) (Entry, tracking.Diff)

	// WithChild returns the entry with child i replaced. d is the diff the
	// replacement produced on the child itself.
	WithChild(i int, child Entry, d tracking.Diff) (Entry, tracking.Diff, error)

	json.Marshaler
}

type node struct {
	key      string
	name     string
	open     bool
	children []Entry
}

func (n *node) Key() string       { return n.key }
func (n *node) Name() string      { return n.name }
func (n *node) IsOpen() bool      { return n.open }
func (n *node) Children() []Entry { return n.children }
func (n *node) HasChildren() bool { return len(n.children) > 0 }
func (n *node) ContentID() string { return "" }

// setOpen updates the receiver, which must be a private copy, and returns
// the diff. Expanding sends the children; collapsing clears them on the
// client while keeping them here.
func (n *node) setOpen(open bool) tracking.Diff {
	n.open = open
	d := tracking.Diff{}
	tracking.RegisterChange(d, "open", open, nil)
	if open {
		tracking.RegisterChange(d, "children", snapshot(n.children), nil)
	} else {
		tracking.RegisterChange(d, "children", []Entry{}, nil)
	}
	return d
}

// replaceChild swaps child i in the receiver, which must be a private copy.
// The child's diff only reaches the client when the parent is open, since a
// closed entry is serialized without children.
func (n *node) replaceChild(i int, child Entry, cd tracking.Diff) (tracking.Diff, error) {
	if i < 0 || i >= len(n.children) {
		return nil, fmt.Errorf("%w: child index %d out of range for %q", ErrInvalidOperation, i, n.key)
	}
	if child == nil {
		return nil, fmt.Errorf("%w: nil child for %q", ErrInvalidOperation, n.key)
	}

	children := make([]Entry, len(n.children))
	copy(children, n.children)
	children[i] = child
	n.children = children

	if !n.open || tracking.IsEmpty(cd) {
		return nil, nil
	}
	d := tracking.Diff{}
	tracking.RegisterChange(d, "children", nil, tracking.Diff{strconv.Itoa(i): cd})
	return d, nil
}

// setChildren installs a new child list and reports the resulting change.
func (n *node) setChildren(children []Entry) tracking.Diff {
	hadChildren := n.HasChildren()
	n.children = children

	d := tracking.Diff{}
	if hadChildren != n.HasChildren() {
		tracking.RegisterChange(d, "has-children", n.HasChildren(), nil)
	}
	if n.open {
		tracking.RegisterChange(d, "children", snapshot(children), nil)
	}
	return tracking.Cull(d)
}

func snapshot(children []Entry) []Entry {
	out := make([]Entry, len(children))
	copy(out, children)
	return out
}

type entryJSON struct {
	Key         string  `json:"key"`
	Open        bool    `json:"open"`
	Name        string  `json:"name"`
	Type        Kind    `json:"type"`
	CID         *string `json:"cid"`
	Children    []Entry `json:"children"`
	HasChildren bool    `json:"has-children"`
}

func marshalEntry(e Entry) ([]byte, error) {
	v := entryJSON{
		Key:         e.Key(),
		Open:        e.IsOpen(),
		Name:        e.Name(),
		Type:        e.Kind(),
		Children:    []Entry{},
		HasChildren: e.HasChildren(),
	}
	if cid := e.ContentID(); cid != "" {
		v.CID = &cid
	}
	if e.IsOpen() {
		v.Children = snapshot(e.Children())
	}
	return json.Marshal(v)
}
