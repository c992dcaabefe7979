package tree

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/quill/internal/project/vfs"
	"github.com/dshills/quill/internal/tracking"
)

func newWorkspace(t *testing.T, files map[string]string) *vfs.MemFS {
	t.Helper()
	fs := vfs.NewMemFS()
	require.NoError(t, fs.MkdirAll("/ws", 0755))
	for p, content := range files {
		require.NoError(t, fs.AddFile("/ws/"+p, content))
	}
	return fs
}

func names(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name()
	}
	return out
}

func TestCreateProject(t *testing.T) {
	fs := newWorkspace(t, map[string]string{
		"proj/project.json": "{}",
		"proj/Foo.cs":       "class Foo {}",
	})

	root, err := Create(fs, "/ws")
	require.NoError(t, err)
	assert.True(t, root.IsOpen())
	assert.Equal(t, "", root.Key())
	require.Len(t, root.Children(), 1)

	p, ok := root.Children()[0].(*Project)
	require.True(t, ok, "proj should be a project, got %T", root.Children()[0])
	assert.Equal(t, "proj", p.Name())
	assert.Equal(t, UnregisteredID, p.ID())
	assert.False(t, p.Registered())

	require.Len(t, p.Children(), 2)
	refs := p.References()
	assert.Equal(t, "proj/@references", refs.Key())
	assert.Empty(t, refs.Children())

	foo, ok := p.Children()[1].(*File)
	require.True(t, ok)
	assert.Equal(t, "Foo.cs", foo.Name())
	assert.Equal(t, "edit:proj/Foo.cs", foo.ContentID())
}

func TestCreateFiltering(t *testing.T) {
	fs := newWorkspace(t, map[string]string{
		".git/config":             "",
		"packages/lib/lib.dll":    "",
		"src/packages/x.txt":      "",
		"app/project.json":        "{}",
		"app/bin/Debug/app.dll":   "",
		"app/obj/cache":           "",
		"app/util/bin/keep.txt":   "",
		"app/nested/project.json": "{}",
		"app/nested/Nested.cs":    "",
		"app/Program.cs":          "",
		"docs/readme.md":          "",
		"Zeta.txt":                "",
		"alpha.txt":               "",
		"Beta/.hidden":            "",
	})

	root, err := Create(fs, "/ws")
	require.NoError(t, err)
	assert.Equal(t, []string{"app", "Beta", "docs", "packages", "src", "alpha.txt", "Zeta.txt"}, names(root.Children()))

	pkgs, _, ok := Find(root, "packages")
	require.True(t, ok)
	assert.Equal(t, KindPackages, pkgs.Kind())
	assert.Empty(t, pkgs.Children())

	src, _, ok := Find(root, "src/packages")
	require.True(t, ok)
	assert.Equal(t, KindDir, src.Kind(), "only the root packages folder is special")

	app, _, ok := Find(root, "app")
	require.True(t, ok)
	assert.Equal(t, []string{"References", "util", "Program.cs"}, names(app.Children()))

	util, _, ok := Find(root, "app/util")
	require.True(t, ok)
	assert.Equal(t, []string{"bin"}, names(util.Children()), "bin is only dropped at the project root")

	beta, _, ok := Find(root, "Beta")
	require.True(t, ok)
	assert.False(t, beta.HasChildren())
}

func TestCreateNotDirectory(t *testing.T) {
	fs := newWorkspace(t, map[string]string{"file.txt": ""})
	_, err := Create(fs, "/ws/file.txt")
	assert.ErrorIs(t, err, ErrNotDirectory)
}

func TestAsOpenDiff(t *testing.T) {
	a := NewFile("d/a.txt", "a.txt")
	d := NewDirectory("d", "d", false, []Entry{a})

	opened, diff := d.AsOpen(true)
	assert.Equal(t, tracking.Diff{"open": true, "children": []Entry{a}}, diff)
	assert.True(t, opened.IsOpen())
	assert.False(t, d.IsOpen(), "original entry must not change")

	closed, diff := opened.AsOpen(false)
	assert.Equal(t, tracking.Diff{"open": false, "children": []Entry{}}, diff)
	assert.Equal(t, opened.Children(), closed.Children(), "collapsing keeps children")

	same, diff := closed.AsOpen(false)
	assert.Same(t, closed, same)
	assert.Nil(t, diff)
}

func TestCollapseExpandIdempotent(t *testing.T) {
	fs := newWorkspace(t, map[string]string{
		"dir/a.txt":     "",
		"dir/b.txt":     "",
		"dir/sub/c.txt": "",
	})
	root, err := Create(fs, "/ws")
	require.NoError(t, err)
	dir, _, ok := Find(root, "dir")
	require.True(t, ok)

	opened, first := dir.AsOpen(true)
	closed, _ := opened.AsOpen(false)
	_, second := closed.AsOpen(true)

	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second)
	require.NoError(t, err)
	assert.JSONEq(t, string(firstJSON), string(secondJSON))
}

func TestStructuralSharing(t *testing.T) {
	fs := newWorkspace(t, map[string]string{
		"a/one.txt": "",
		"b/two.txt": "",
	})
	root, err := Create(fs, "/ws")
	require.NoError(t, err)
	before := root.Children()[1]

	next, diff, err := UpdateKey(root, "a", func(e Entry) (Entry, tracking.Diff, error) {
		n, d := e.AsOpen(true)
		return n, d, nil
	})
	require.NoError(t, err)

	assert.Same(t, before, next.Children()[1])
	assert.NotSame(t, root.Children()[0], next.Children()[0])
	assert.False(t, root.Children()[0].IsOpen())
	assert.True(t, next.Children()[0].IsOpen())

	child := diff["children"].(tracking.Diff)["0"].(tracking.Diff)
	assert.Equal(t, true, child["open"])
	assert.Len(t, diff, 1)
}

func TestWithChildInvariants(t *testing.T) {
	file := NewFile("f.txt", "f.txt")
	_, _, err := file.WithChild(0, NewFile("x", "x"), nil)
	assert.ErrorIs(t, err, ErrInvalidOperation)

	pkgs := NewPackages("packages", "packages")
	_, _, err = pkgs.WithChild(0, NewFile("x", "x"), nil)
	assert.ErrorIs(t, err, ErrInvalidOperation)

	p := NewProject("p", "p", true, []Entry{NewFile("p/a.cs", "a.cs")})
	_, _, err = p.WithChild(0, NewDirectory("p/x", "x", false, nil), nil)
	assert.ErrorIs(t, err, ErrInvalidOperation)

	_, _, err = p.WithChild(5, NewFile("p/a.cs", "a.cs"), nil)
	assert.ErrorIs(t, err, ErrInvalidOperation)

	group := NewReferencesGroup("p", true, nil)
	_, _, err = p.WithChild(0, group, tracking.Diff{"open": true})
	assert.NoError(t, err)

	withRefs, _, _ := p.WithReferences("p", map[string]Dependency{
		"p": {Name: "p", Dependencies: []string{"A"}},
		"A": {Name: "A", Version: "1.0"},
	})
	refs := withRefs.References()
	_, _, err = refs.WithChild(0, NewFile("p/@references/other", "other"), nil)
	assert.ErrorIs(t, err, ErrInvalidOperation)

	expanded, _ := refs.Children()[0].AsOpen(true)
	_, _, err = refs.WithChild(0, expanded, nil)
	assert.NoError(t, err, "updating a reference in place is allowed")
}

func TestBuildReferences(t *testing.T) {
	deps := map[string]Dependency{
		"app":  {Name: "app", Dependencies: []string{"Json", "Http"}},
		"Http": {Name: "Http", Version: "4.0", Dependencies: []string{"Json", "Missing"}},
		"Json": {Name: "Json", Version: "9.0.1"},
	}
	refs, cycles := BuildReferences("app/@references", "app", deps)
	assert.Empty(t, cycles)
	require.Len(t, refs, 2)

	http := refs[0].(*Reference)
	assert.Equal(t, "Http (4.0)", http.Name())
	assert.Equal(t, "app/@references/Http", http.Key())
	require.Len(t, http.Children(), 2)
	missing := http.Children()[1].(*Reference)
	assert.True(t, missing.Unresolved())
	assert.Equal(t, "app/@references/Http/Missing", missing.Key())

	jsonRef := refs[1].(*Reference)
	assert.Equal(t, "9.0.1", jsonRef.Version())
	assert.False(t, jsonRef.HasChildren())
}

func TestBuildReferencesCycle(t *testing.T) {
	deps := map[string]Dependency{
		"app": {Name: "app", Dependencies: []string{"A"}},
		"A":   {Name: "A", Dependencies: []string{"B"}},
		"B":   {Name: "B", Dependencies: []string{"A", "app"}},
	}
	refs, cycles := BuildReferences("app/@references", "app", deps)
	require.Len(t, refs, 1)

	b := refs[0].Children()[0]
	require.Len(t, b.Children(), 2)
	assert.False(t, b.Children()[0].HasChildren(), "back edge is a leaf")

	require.Len(t, cycles, 2)
	assert.Equal(t, "app -> A -> B -> A", cycles[0].String())
	assert.Equal(t, "app -> A -> B -> app", cycles[1].String())
}

func TestProjectMetadata(t *testing.T) {
	p := NewProject("p", "p", false, nil)

	named, d := p.WithDisplayName("Pretty")
	assert.Equal(t, "Pretty", named.Name())
	assert.Equal(t, tracking.Diff{"name": "Pretty"}, d)

	_, d = named.WithDisplayName("Pretty")
	assert.Nil(t, d)

	registered := named.WithID(7)
	assert.Equal(t, 7, registered.ID())
	assert.Equal(t, UnregisteredID, named.ID())

	withSources := registered.WithSources([]string{"/ws/p/a.go"}, nil)
	assert.Equal(t, []string{"/ws/p/a.go"}, withSources.Sources())
	assert.Nil(t, registered.Sources())

	diag := withSources.WithDiagnostics([]string{"e"}, []string{"w"})
	assert.Equal(t, []string{"e"}, diag.Errors())
	assert.Equal(t, []string{"w"}, diag.Warnings())
}

func TestDiffRoundTrip(t *testing.T) {
	fs := newWorkspace(t, map[string]string{
		"proj/project.json": "{}",
		"proj/src/a.go":     "",
		"proj/b.go":         "",
		"other/c.txt":       "",
	})
	root, err := Create(fs, "/ws")
	require.NoError(t, err)

	steps := []struct {
		key  string
		open bool
	}{
		{"proj", true},
		{"proj/src", true},
		{"other", true},
		{"proj", false},
		{"proj", true},
	}

	var current Entry = root
	for _, step := range steps {
		before, err := json.Marshal(current)
		require.NoError(t, err)

		next, diff, err := UpdateKey(current, step.key, func(e Entry) (Entry, tracking.Diff, error) {
			n, d := e.AsOpen(step.open)
			return n, d, nil
		})
		require.NoError(t, err)

		after, err := json.Marshal(next)
		require.NoError(t, err)
		mirrored, err := tracking.ApplyJSON(before, diff)
		require.NoError(t, err)
		assert.JSONEq(t, string(after), string(mirrored), "step %s open=%v", step.key, step.open)
		current = next
	}

	p, _, ok := Find(current, "proj")
	require.True(t, ok)
	before, err := json.Marshal(current)
	require.NoError(t, err)
	withRefs, d, _ := p.(*Project).WithReferences("proj", map[string]Dependency{
		"proj": {Name: "proj", Dependencies: []string{"Dep"}},
		"Dep":  {Name: "Dep", Version: "2"},
	})
	ref, _ := ProjectOf(current, "proj")
	next, diff, err := ReplaceProject(current, ref, withRefs, d)
	require.NoError(t, err)
	after, err := json.Marshal(next)
	require.NoError(t, err)
	mirrored, err := tracking.ApplyJSON(before, diff)
	require.NoError(t, err)
	assert.JSONEq(t, string(after), string(mirrored))
}

func TestEntryJSON(t *testing.T) {
	f := NewFile("p/a.cs", "a.cs")
	d := NewDirectory("p", "p", false, []Entry{f})

	data, err := json.Marshal(d)
	require.NoError(t, err)
	assert.JSONEq(t, `{"key":"p","open":false,"name":"p","type":"dir","cid":null,"children":[],"has-children":true}`, string(data))

	opened, _ := d.AsOpen(true)
	data, err = json.Marshal(opened)
	require.NoError(t, err)
	assert.JSONEq(t, `{"key":"p","open":true,"name":"p","type":"dir","cid":null,"has-children":true,
		"children": [{"key":"p/a.cs","open":false,"name":"a.cs","type":"file","cid":"edit:p/a.cs","children":[],"has-children":false}]}`, string(data))
}

func TestProjectsLookup(t *testing.T) {
	fs := newWorkspace(t, map[string]string{
		"one/project.json":       "{}",
		"one/a.cs":               "",
		"group/two/project.json": "{}",
		"group/two/b.cs":         "",
	})
	root, err := Create(fs, "/ws")
	require.NoError(t, err)

	projects := Projects(root)
	require.Len(t, projects, 2)
	assert.Equal(t, "group/two", projects[0].Project.Key())
	assert.Equal(t, []int{0, 0}, projects[0].Path)
	assert.Equal(t, "one", projects[1].Project.Key())

	ref, ok := ProjectOf(root, "one/a.cs")
	require.True(t, ok)
	assert.Equal(t, "one", ref.Project.Key())

	_, ok = ProjectOf(root, "onex/a.cs")
	assert.False(t, ok)

	next, _, err := ReplaceProject(root, ref, ref.Project.WithID(3), nil)
	require.NoError(t, err)
	byID, ok := ProjectByID(next, 3)
	require.True(t, ok)
	assert.Equal(t, "one", byID.Project.Key())

	_, ok = ProjectByID(next, UnregisteredID)
	assert.False(t, ok)
}

func TestReconcile(t *testing.T) {
	fs := newWorkspace(t, map[string]string{
		"proj/project.json": "{}",
		"proj/a.cs":         "",
		"docs/readme.md":    "",
	})
	root, err := Create(fs, "/ws")
	require.NoError(t, err)

	var current Entry = root
	ref, ok := ProjectOf(current, "proj")
	require.True(t, ok)
	opened, _ := ref.Project.AsOpen(true)
	current, _, err = ReplaceProject(current, ref, opened.(*Project).WithID(4), nil)
	require.NoError(t, err)

	fresh, err := Create(fs, "/ws")
	require.NoError(t, err)
	same, diff := Reconcile(current, fresh)
	assert.Same(t, current, same)
	assert.Nil(t, diff)

	require.NoError(t, fs.AddFile("/ws/proj/b.cs", ""))
	before, err := json.Marshal(current)
	require.NoError(t, err)
	fresh, err = Create(fs, "/ws")
	require.NoError(t, err)
	next, diff := Reconcile(current, fresh)

	p, _, ok := Find(next, "proj")
	require.True(t, ok)
	assert.True(t, p.IsOpen(), "open flag survives a rescan")
	assert.Equal(t, 4, p.(*Project).ID(), "project id survives a rescan")
	assert.Equal(t, []string{"References", "a.cs", "b.cs"}, names(p.Children()))
	assert.Same(t, current.Children()[0], next.Children()[0], "untouched sibling is shared")

	after, err := json.Marshal(next)
	require.NoError(t, err)
	mirrored, err := tracking.ApplyJSON(before, diff)
	require.NoError(t, err)
	assert.JSONEq(t, string(after), string(mirrored))
}

func TestReferencePaths(t *testing.T) {
	p := NewProject("p", "p", false, nil)
	deps := map[string]Dependency{
		"p":    {Name: "p", Path: "/ws/p", Dependencies: []string{"B", "A", "Gone"}},
		"A":    {Name: "A", Version: "1", Path: "/cache/a"},
		"B":    {Name: "B", Version: "1", Path: "/cache/b"},
		"Gone": {Name: "Gone", Unresolved: true, Path: "/cache/gone"},
	}
	withRefs, _, _ := p.WithReferences("p", deps)
	assert.Equal(t, []string{"/cache/a", "/cache/b"}, withRefs.ReferencePaths())

	// Same tree, moved package: paths change without a diff.
	deps["A"] = Dependency{Name: "A", Version: "1", Path: "/other/a"}
	moved, d, _ := withRefs.WithReferences("p", deps)
	assert.Nil(t, d)
	assert.NotSame(t, withRefs, moved)
	assert.Equal(t, []string{"/cache/b", "/other/a"}, moved.ReferencePaths())

	same, _, _ := moved.WithReferences("p", deps)
	assert.Same(t, moved, same)
}

func TestFiles(t *testing.T) {
	foo := NewFile("proj/src/Foo.cs", "Foo.cs")
	bar := NewFile("proj/Bar.cs", "Bar.cs")
	src := NewDirectory("proj/src", "src", false, []Entry{foo})
	p := NewProject("proj", "proj", false, []Entry{src, bar})
	root := NewDirectory("", "ws", true, []Entry{NewPackages("packages", "packages"), p, NewFile("readme.md", "readme.md")})

	assert.Equal(t, []string{"proj/src/Foo.cs", "proj/Bar.cs", "readme.md"}, Files(root))
	assert.Equal(t, []string{"proj/src/Foo.cs", "proj/Bar.cs"}, Files(p))
	assert.Equal(t, []string{"proj/Bar.cs"}, Files(bar))
}
