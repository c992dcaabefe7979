package tree

import (
	"fmt"
	"strings"

	"github.com/dshills/quill/internal/tracking"
)

// UpdateFunc produces a replacement for an entry and the diff describing it.
type UpdateFunc func(Entry) (Entry, tracking.Diff, error)

// Find returns the entry with key and the child indexes leading to it from
// root.
func Find(root Entry, key string) (Entry, []int, bool) {
	var path []int
	e := root
	for e.Key() != key {
		next := -1
		for i, child := range e.Children() {
			if child.Key() == key || strings.HasPrefix(key, child.Key()+"/") {
				next = i
				break
			}
		}
		if next < 0 {
			return nil, nil, false
		}
		path = append(path, next)
		e = e.Children()[next]
	}
	return e, path, true
}

// UpdateAt applies fn to the entry at path and rebuilds every ancestor with
// WithChild. The returned diff is relative to root.
func UpdateAt(root Entry, path []int, fn UpdateFunc) (Entry, tracking.Diff, error) {
	if len(path) == 0 {
		return fn(root)
	}
	children := root.Children()
	i := path[0]
	if i < 0 || i >= len(children) {
		return nil, nil, fmt.Errorf("%w: index %d under %q", ErrNotFound, i, root.Key())
	}
	child, cd, err := UpdateAt(children[i], path[1:], fn)
	if err != nil {
		return nil, nil, err
	}
	if child == children[i] {
		return root, nil, nil
	}
	return root.WithChild(i, child, cd)
}

// UpdateKey is UpdateAt addressed by entry key.
func UpdateKey(root Entry, key string, fn UpdateFunc) (Entry, tracking.Diff, error) {
	_, path, ok := Find(root, key)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	return UpdateAt(root, path, fn)
}

// ProjectRef locates a project inside a tree.
type ProjectRef struct {
	Project *Project
	Path    []int
}

// Projects returns every project in root in tree order.
func Projects(root Entry) []ProjectRef {
	var out []ProjectRef
	var walk func(e Entry, path []int)
	walk = func(e Entry, path []int) {
		if p, ok := e.(*Project); ok {
			out = append(out, ProjectRef{Project: p, Path: append([]int(nil), path...)})
			return
		}
		if e.Kind() == KindPackages {
			return
		}
		for i, child := range e.Children() {
			walk(child, append(path, i))
		}
	}
	walk(root, nil)
	return out
}

// ProjectOf returns the project containing the entry with key.
func ProjectOf(root Entry, key string) (ProjectRef, bool) {
	for _, ref := range Projects(root) {
		if key == ref.Project.Key() || strings.HasPrefix(key, ref.Project.Key()+"/") {
			return ref, true
		}
	}
	return ProjectRef{}, false
}

// ProjectByID returns the project registered under the host context id.
func ProjectByID(root Entry, id int) (ProjectRef, bool) {
	if id == UnregisteredID {
		return ProjectRef{}, false
	}
	for _, ref := range Projects(root) {
		if ref.Project.ID() == id {
			return ref, true
		}
	}
	return ProjectRef{}, false
}

// ReplaceProject swaps the project at ref for p, emitting diff d for it.
func ReplaceProject(root Entry, ref ProjectRef, p *Project, d tracking.Diff) (Entry, tracking.Diff, error) {
	return UpdateAt(root, ref.Path, func(Entry) (Entry, tracking.Diff, error) {
		return p, d, nil
	})
}

// Files returns the keys of the files below e in tree order. References
// and packages are skipped.
func Files(e Entry) []string {
	var out []string
	var walk func(Entry)
	walk = func(e Entry) {
		switch e.(type) {
		case *File:
			out = append(out, e.Key())
			return
		case *ReferencesGroup, *Reference, *Packages:
			return
		}
		for _, child := range e.Children() {
			walk(child)
		}
	}
	walk(e)
	return out
}
