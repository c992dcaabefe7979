package tree

import (
	"fmt"

	"github.com/dshills/quill/internal/tracking"
)

// Packages is the workspace level package cache folder. It is listed but
// not browsed, so it never has children.
type Packages struct {
	node
}

// NewPackages creates an empty packages entry.
func NewPackages(key, name string) *Packages {
	return &Packages{node: node{key: key, name: name}}
}

// Kind returns KindPackages.
func (p *Packages) Kind() Kind { return KindPackages }

// AsOpen returns p with the open flag set.
func (p *Packages) AsOpen(open bool) (Entry, tracking.Diff) {
	if p.open == open {
		return p, nil
	}
	c := *p
	return &c, c.setOpen(open)
}

// WithChild is not supported for the package cache.
func (p *Packages) WithChild(int, Entry, tracking.Diff) (Entry, tracking.Diff, error) {
	return nil, nil, fmt.Errorf("%w: packages entry %q cannot be modified", ErrInvalidOperation, p.key)
}

// MarshalJSON implements json.Marshaler.
func (p *Packages) MarshalJSON() ([]byte, error) { return marshalEntry(p) }
