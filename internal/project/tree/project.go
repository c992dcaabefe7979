package tree

import (
	"fmt"
	"slices"
	"sort"

	"github.com/dshills/quill/internal/tracking"
)

// UnregisteredID is the id of a project the host has not initialized yet.
const UnregisteredID = -1

// Project is a directory holding a project.json manifest. Its first child
// is always the ReferencesGroup.
type Project struct {
	node
	id          int
	displayName string
	sources     []string
	generated   map[string]string
	errors      []string
	warnings    []string
	refPaths    []string
}

// NewProject creates an unregistered project with an empty, closed
// references group in front of children.
func NewProject(key, name string, open bool, children []Entry) *Project {
	all := make([]Entry, 0, len(children)+1)
	all = append(all, NewReferencesGroup(key, false, nil))
	all = append(all, children...)
	return &Project{
		node: node{key: key, name: name, open: open, children: all},
		id:   UnregisteredID,
	}
}

// Kind returns KindProject.
func (p *Project) Kind() Kind { return KindProject }

// Name returns the host reported display name, or the folder name.
func (p *Project) Name() string {
	if p.displayName != "" {
		return p.displayName
	}
	return p.name
}

// HasChildren is always true because of the references group.
func (p *Project) HasChildren() bool { return true }

// ID returns the host context id, or UnregisteredID.
func (p *Project) ID() int { return p.id }

// Registered reports whether the host assigned an id.
func (p *Project) Registered() bool { return p.id != UnregisteredID }

// References returns the references group.
func (p *Project) References() *ReferencesGroup {
	return p.children[0].(*ReferencesGroup)
}

// Sources returns the source files reported by the host.
func (p *Project) Sources() []string { return p.sources }

// Generated returns the generated file map reported by the host.
func (p *Project) Generated() map[string]string { return p.generated }

// ReferencePaths returns the locations of the resolved references, sorted.
func (p *Project) ReferencePaths() []string { return p.refPaths }

// Errors returns the host reported error diagnostics.
func (p *Project) Errors() []string { return p.errors }

// Warnings returns the host reported warning diagnostics.
func (p *Project) Warnings() []string { return p.warnings }

// AsOpen returns p with the open flag set.
func (p *Project) AsOpen(open bool) (Entry, tracking.Diff) {
	if p.open == open {
		return p, nil
	}
	c := *p
	return &c, c.setOpen(open)
}

// WithChild returns p with child i replaced. Index 0 only accepts a
// ReferencesGroup.
func (p *Project) WithChild(i int, child Entry, cd tracking.Diff) (Entry, tracking.Diff, error) {
	if i == 0 {
		if _, ok := child.(*ReferencesGroup); !ok {
			return nil, nil, fmt.Errorf("%w: first child of project %q must be its references", ErrInvalidOperation, p.key)
		}
	}
	c := *p
	diff, err := c.replaceChild(i, child, cd)
	if err != nil {
		return nil, nil, err
	}
	return &c, diff, nil
}

// withChildren keeps the references group and replaces the rest.
func (p *Project) withChildren(children []Entry) (Entry, tracking.Diff) {
	all := make([]Entry, 0, len(children)+1)
	all = append(all, p.children[0])
	all = append(all, children...)
	c := *p
	return &c, c.setChildren(all)
}

// WithID returns p registered under the host context id. The id is not
// part of the client view, so no diff is produced.
func (p *Project) WithID(id int) *Project {
	c := *p
	c.id = id
	return &c
}

// WithDisplayName returns p named after the host configuration.
func (p *Project) WithDisplayName(name string) (*Project, tracking.Diff) {
	if name == p.displayName {
		return p, nil
	}
	before := p.Name()
	c := *p
	c.displayName = name
	if c.Name() == before {
		return &c, nil
	}
	return &c, tracking.Diff{"name": c.Name()}
}

// WithSources returns p with the host reported source set.
func (p *Project) WithSources(sources []string, generated map[string]string) *Project {
	c := *p
	c.sources = sources
	c.generated = generated
	return &c
}

// WithDiagnostics returns p with the host reported diagnostics.
func (p *Project) WithDiagnostics(errors, warnings []string) *Project {
	c := *p
	c.errors = errors
	c.warnings = warnings
	return &c
}

// WithReferences rebuilds the references group from a host dependency
// graph. The group keeps its open flag. Cut cycles are returned.
func (p *Project) WithReferences(root string, deps map[string]Dependency) (*Project, tracking.Diff, []Cycle) {
	old := p.References()
	refs, cycles := BuildReferences(old.Key(), root, deps)
	paths := referencePaths(root, deps)
	if sameReferences(old.children, refs) {
		if slices.Equal(paths, p.refPaths) {
			return p, nil, cycles
		}
		c := *p
		c.refPaths = paths
		return &c, nil, cycles
	}

	group := NewReferencesGroup(p.key, old.open, refs)
	c := *p
	c.refPaths = paths
	children := snapshot(c.children)
	children[0] = group
	c.children = children

	if !c.open {
		return &c, nil, cycles
	}
	d := tracking.Diff{}
	childDiff := tracking.Diff{}
	tracking.RegisterChange(childDiff, "0", group, nil)
	tracking.RegisterChange(d, "children", nil, childDiff)
	return &c, d, cycles
}

// referencePaths collects the paths of resolved dependencies other than
// the root itself.
func referencePaths(root string, deps map[string]Dependency) []string {
	var paths []string
	for name, d := range deps {
		if name == root || d.Unresolved || d.Path == "" {
			continue
		}
		paths = append(paths, d.Path)
	}
	sort.Strings(paths)
	return paths
}

func sameReferences(a, b []Entry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		ra, okA := a[i].(*Reference)
		rb, okB := b[i].(*Reference)
		if !okA || !okB {
			return false
		}
		if ra.key != rb.key || ra.name != rb.name || ra.version != rb.version || ra.unresolved != rb.unresolved {
			return false
		}
		if !sameReferences(ra.children, rb.children) {
			return false
		}
	}
	return true
}

// MarshalJSON implements json.Marshaler.
func (p *Project) MarshalJSON() ([]byte, error) { return marshalEntry(p) }
