package tree

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dshills/quill/internal/tracking"
)

// ReferencesSegment is the key segment of a project's references group.
const ReferencesSegment = "@references"

// Dependency is one package in a host reported dependency graph.
type Dependency struct {
	Name         string
	Version      string
	Path         string
	Unresolved   bool
	Dependencies []string
}

// Cycle describes a dependency cycle that was cut while building references.
// Path starts and ends with the repeated package.
type Cycle struct {
	Path []string
}

func (c Cycle) String() string { return strings.Join(c.Path, " -> ") }

// ReferencesGroup holds the resolved references of a project. It is
// serialized as a plain directory.
type ReferencesGroup struct {
	node
}

// NewReferencesGroup creates the references group for the project with the
// given key.
func NewReferencesGroup(projectKey string, open bool, refs []Entry) *ReferencesGroup {
	if refs == nil {
		refs = []Entry{}
	}
	return &ReferencesGroup{node: node{
		key:      joinKey(projectKey, ReferencesSegment),
		name:     "References",
		open:     open,
		children: refs,
	}}
}

// Kind returns KindDir.
func (g *ReferencesGroup) Kind() Kind { return KindDir }

// AsOpen returns g with the open flag set.
func (g *ReferencesGroup) AsOpen(open bool) (Entry, tracking.Diff) {
	if g.open == open {
		return g, nil
	}
	c := *g
	return &c, c.setOpen(open)
}

// WithChild allows updating a reference in place, for example to expand it,
// but rejects replacing it with a different entry. The reference list is
// replaced as a whole through Project.WithReferences.
func (g *ReferencesGroup) WithChild(i int, child Entry, cd tracking.Diff) (Entry, tracking.Diff, error) {
	if i < 0 || i >= len(g.children) || child == nil || child.Key() != g.children[i].Key() {
		return nil, nil, fmt.Errorf("%w: references of %q cannot be replaced directly", ErrInvalidOperation, g.key)
	}
	c := *g
	diff, err := c.replaceChild(i, child, cd)
	if err != nil {
		return nil, nil, err
	}
	return &c, diff, nil
}

// MarshalJSON implements json.Marshaler.
func (g *ReferencesGroup) MarshalJSON() ([]byte, error) { return marshalEntry(g) }

// Reference is a resolved package reference.
type Reference struct {
	node
	version    string
	unresolved bool
}

// Kind returns KindReference.
func (r *Reference) Kind() Kind { return KindReference }

// Version returns the package version reported by the host.
func (r *Reference) Version() string { return r.version }

// Unresolved reports whether the host could not resolve the package.
func (r *Reference) Unresolved() bool { return r.unresolved }

// AsOpen returns r with the open flag set.
func (r *Reference) AsOpen(open bool) (Entry, tracking.Diff) {
	if r.open == open {
		return r, nil
	}
	c := *r
	return &c, c.setOpen(open)
}

// WithChild returns r with child i replaced.
func (r *Reference) WithChild(i int, child Entry, cd tracking.Diff) (Entry, tracking.Diff, error) {
	c := *r
	diff, err := c.replaceChild(i, child, cd)
	if err != nil {
		return nil, nil, err
	}
	return &c, diff, nil
}

// MarshalJSON implements json.Marshaler.
func (r *Reference) MarshalJSON() ([]byte, error) { return marshalEntry(r) }

// BuildReferences resolves the dependencies of root into reference entries
// keyed under parentKey. Packages missing from deps become unresolved
// leaves. A package that is already on the current resolution path is
// emitted as a leaf and the cycle is returned.
func BuildReferences(parentKey, root string, deps map[string]Dependency) ([]Entry, []Cycle) {
	b := &refBuilder{deps: deps, onPath: make(map[string]bool)}
	rootDep, ok := deps[root]
	if !ok {
		return []Entry{}, nil
	}
	b.onPath[root] = true
	b.path = append(b.path, root)
	return b.children(parentKey, rootDep.Dependencies), b.cycles
}

type refBuilder struct {
	deps   map[string]Dependency
	onPath map[string]bool
	path   []string
	cycles []Cycle
}

func (b *refBuilder) children(parentKey string, names []string) []Entry {
	sorted := make([]string, len(names))
	copy(sorted, names)
	sort.Slice(sorted, func(i, j int) bool { return lessName(sorted[i], sorted[j]) })

	out := make([]Entry, 0, len(sorted))
	for _, name := range sorted {
		out = append(out, b.reference(parentKey, name))
	}
	return out
}

func (b *refBuilder) reference(parentKey, name string) Entry {
	key := joinKey(parentKey, name)
	dep, ok := b.deps[name]
	if !ok {
		return &Reference{node: node{key: key, name: name, children: []Entry{}}, unresolved: true}
	}

	r := &Reference{
		node:       node{key: key, name: displayName(dep), children: []Entry{}},
		version:    dep.Version,
		unresolved: dep.Unresolved,
	}
	if b.onPath[name] {
		cycle := append(append([]string{}, b.path...), name)
		b.cycles = append(b.cycles, Cycle{Path: cycle})
		return r
	}

	b.onPath[name] = true
	b.path = append(b.path, name)
	r.children = b.children(key, dep.Dependencies)
	b.path = b.path[:len(b.path)-1]
	delete(b.onPath, name)
	return r
}

func displayName(dep Dependency) string {
	if dep.Version == "" {
		return dep.Name
	}
	return dep.Name + " (" + dep.Version + ")"
}
