// Package filestore provides the content store for editable buffers.
//
// Contents are immutable values keyed by content id. Loading is lazy and
// edits produce new values that are published with CompareAndSwap, so a
// reader holding a Content never observes it change.
package filestore

import (
	"fmt"
	"path"
	"strings"
	"sync"
)

// KindEdit is the only supported content kind: an editable file.
const KindEdit = "edit"

// ContentID identifies a buffer as "{kind}:{relative path}".
type ContentID struct {
	Kind string
	Path string
}

// ParseContentID parses s. Kinds other than "edit" fail with ErrUnknownKind.
func ParseContentID(s string) (ContentID, error) {
	kind, rel, ok := strings.Cut(s, ":")
	if !ok || kind == "" {
		return ContentID{}, fmt.Errorf("%w: %q", ErrInvalidContentID, s)
	}
	if kind != KindEdit {
		return ContentID{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if rel == "" {
		return ContentID{}, fmt.Errorf("%w: %q has no path", ErrInvalidContentID, s)
	}
	return ContentID{Kind: kind, Path: rel}, nil
}

// String returns the wire form of the id.
func (id ContentID) String() string {
	return id.Kind + ":" + id.Path
}

// Name returns the base name of the content path.
func (id ContentID) Name() string {
	return path.Base(id.Path)
}

// Content is an immutable view of a buffer. Text is loaded on first use.
type Content struct {
	id      ContentID
	absPath string
	dirty   bool

	once *sync.Once
	load func() (string, error)
	text string
	err  error
}

func newLazyContent(id ContentID, absPath string, load func() (string, error)) *Content {
	return &Content{id: id, absPath: absPath, once: new(sync.Once), load: load}
}

func newLoadedContent(id ContentID, absPath, text string, dirty bool) *Content {
	c := &Content{id: id, absPath: absPath, dirty: dirty, once: new(sync.Once), text: text}
	c.once.Do(func() {})
	return c
}

// ID returns the content id.
func (c *Content) ID() ContentID { return c.id }

// Path returns the path relative to the workspace root.
func (c *Content) Path() string { return c.id.Path }

// AbsPath returns the file system path the content is loaded from.
func (c *Content) AbsPath() string { return c.absPath }

// Dirty reports whether the content was edited since it was loaded.
func (c *Content) Dirty() bool { return c.dirty }

// Text returns the buffer text, loading it on first call.
func (c *Content) Text() (string, error) {
	c.once.Do(func() {
		c.text, c.err = c.load()
		c.load = nil
	})
	return c.text, c.err
}

// WithText returns a dirty copy of c holding text. c is not modified.
func (c *Content) WithText(text string) *Content {
	return newLoadedContent(c.id, c.absPath, text, true)
}
