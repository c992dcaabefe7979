package tree

import "github.com/dshills/quill/internal/tracking"

// Directory is a plain folder.
type Directory struct {
	node
}

// NewDirectory creates a directory entry. children must already be ordered.
func NewDirectory(key, name string, open bool, children []Entry) *Directory {
	return &Directory{node: node{key: key, name: name, open: open, children: children}}
}

// Kind returns KindDir.
func (d *Directory) Kind() Kind { return KindDir }

// AsOpen returns d with the open flag set. Setting the current value
// returns d itself and no diff.
func (d *Directory) AsOpen(open bool) (Entry, tracking.Diff) {
	if d.open == open {
		return d, nil
	}
	c := *d
	return &c, c.setOpen(open)
}

// WithChild returns d with child i replaced.
func (d *Directory) WithChild(i int, child Entry, cd tracking.Diff) (Entry, tracking.Diff, error) {
	c := *d
	diff, err := c.replaceChild(i, child, cd)
	if err != nil {
		return nil, nil, err
	}
	return &c, diff, nil
}

func (d *Directory) withChildren(children []Entry) (Entry, tracking.Diff) {
	c := *d
	return &c, c.setChildren(children)
}

// MarshalJSON implements json.Marshaler.
func (d *Directory) MarshalJSON() ([]byte, error) { return marshalEntry(d) }
