package tree

import (
	"fmt"

	"github.com/dshills/quill/internal/tracking"
)

// ContentKindEdit is the content id kind of editable files.
const ContentKindEdit = "edit"

// File is a leaf entry backed by a file on disk.
type File struct {
	node
}

// NewFile creates a file entry.
func NewFile(key, name string) *File {
	return &File{node: node{key: key, name: name}}
}

// Kind returns KindFile.
func (f *File) Kind() Kind { return KindFile }

// ContentID returns the edit content id of the file.
func (f *File) ContentID() string { return ContentKindEdit + ":" + f.key }

// AsOpen returns f with the open flag set.
func (f *File) AsOpen(open bool) (Entry, tracking.Diff) {
	if f.open == open {
		return f, nil
	}
	c := *f
	c.open = open
	return &c, tracking.Diff{"open": open}
}

// WithChild always fails; files are leaves.
func (f *File) WithChild(int, Entry, tracking.Diff) (Entry, tracking.Diff, error) {
	return nil, nil, fmt.Errorf("%w: file %q has no children", ErrInvalidOperation, f.key)
}

// MarshalJSON implements json.Marshaler.
func (f *File) MarshalJSON() ([]byte, error) { return marshalEntry(f) }
