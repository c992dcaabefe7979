package editor

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/dshills/quill/internal/project"
	"github.com/dshills/quill/internal/project/tree"
	"github.com/dshills/quill/internal/tracking"
)

// OpenWorkspace scans the directory at path and makes it the workspace.
// The previous workspace's watcher, host and buffers are disposed, and
// tabs and dialog are closed.
func (e *Editor) OpenWorkspace(ctx context.Context, path string) error {
	abs, err := e.fsys.Abs(path)
	if err != nil {
		return err
	}
	if !e.fsys.IsDir(abs) {
		return &project.WorkspaceError{Root: abs, Err: ErrNotDirectory}
	}
	root, err := tree.Create(e.fsys, abs)
	if err != nil {
		return &project.WorkspaceError{Root: abs, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s := e.newSession(abs)
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		s.close()
		return ErrClosed
	}
	old := e.session
	e.session = s
	e.mu.Unlock()
	if old != nil {
		old.close()
	}

	ws := &Workspace{Path: abs, Root: root}
	_, err = e.machine.Update(func(st *EditorState) (*EditorState, tracking.Diff, error) {
		next := &EditorState{Workspace: ws, Tabs: []Tab{}}
		d := tracking.Diff{}
		tracking.RegisterChange(d, "workspace", ws, nil)
		if len(st.Tabs) > 0 {
			tracking.RegisterChange(d, "tabs", next.Tabs, nil)
		}
		if st.Dialog != nil {
			d["dialog"] = nil
		}
		return next, d, nil
	})
	if err != nil {
		return err
	}
	s.log.Info("workspace opened")
	s.start()
	return nil
}

// rescan reconciles the workspace tree with the file system.
func (e *Editor) rescan(s *session) {
	fresh, err := tree.Create(e.fsys, s.root)
	if err != nil {
		s.log.WithError(err).Warn("rescan failed")
		return
	}
	_, err = e.machine.Update(func(st *EditorState) (*EditorState, tracking.Diff, error) {
		if st.Workspace == nil || st.Workspace.Path != s.root {
			return st, nil, nil
		}
		root, d := tree.Reconcile(st.Workspace.Root, fresh)
		if root == st.Workspace.Root {
			return st, nil, nil
		}
		next, diff := st.withRoot(root, d)
		return next, diff, nil
	})
	if err != nil {
		s.log.WithError(err).Warn("rescan failed")
	}
}

// registerProjects registers projects without a host id after each
// transition that changed the tree.
func (e *Editor) registerProjects(prev, next *EditorState) {
	if next.Workspace == nil {
		return
	}
	if prev.Workspace != nil && prev.Workspace.Root == next.Workspace.Root {
		return
	}
	s := e.currentSession()
	if s == nil || s.host == nil || s.root != next.Workspace.Path {
		return
	}

	ids := make(map[string]int)
	for _, ref := range tree.Projects(next.Workspace.Root) {
		if ref.Project.Registered() {
			continue
		}
		if id, ok := s.register(ref.Project); ok {
			ids[ref.Project.Key()] = id
		}
	}
	if len(ids) == 0 {
		return
	}

	_, err := e.machine.Update(func(st *EditorState) (*EditorState, tracking.Diff, error) {
		if st.Workspace == nil || st.Workspace.Path != s.root {
			return st, nil, nil
		}
		root := st.Workspace.Root
		for _, ref := range tree.Projects(root) {
			id, ok := ids[ref.Project.Key()]
			if !ok || ref.Project.Registered() {
				continue
			}
			var err error
			if root, _, err = tree.ReplaceProject(root, ref, ref.Project.WithID(id), nil); err != nil {
				return nil, nil, err
			}
		}
		if root == st.Workspace.Root {
			return st, nil, nil
		}
		next, diff := st.withRoot(root, nil)
		return next, diff, nil
	})
	if err != nil {
		s.log.WithError(err).Warn("failed to record project ids")
	}
}

// browse lists the subdirectories of dir for the project browser.
func (e *Editor) browse(dir string) (*Dialog, error) {
	abs, err := e.fsys.Abs(dir)
	if err != nil {
		return nil, err
	}
	if !e.fsys.IsDir(abs) {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, abs)
	}
	infos, err := e.fsys.ReadDir(abs)
	if err != nil {
		return nil, err
	}

	d := &Dialog{Type: DialogBrowseProject, Path: abs, Entries: []BrowseEntry{}}
	if parent := filepath.Dir(abs); parent != abs {
		d.Parent = parent
	}
	for _, info := range infos {
		if !info.IsDir() || info.IsHidden() {
			continue
		}
		p := e.fsys.Join(abs, info.Name())
		d.Entries = append(d.Entries, BrowseEntry{
			Name:    info.Name(),
			Path:    p,
			Project: e.fsys.Exists(e.fsys.Join(p, tree.ProjectManifest)),
		})
	}
	return d, nil
}

// defaultBrowseDir is where the project browser opens without a path.
func (e *Editor) defaultBrowseDir() string {
	if e.browseRoot != "" {
		return e.browseRoot
	}
	if ws := e.State().Workspace; ws != nil {
		return filepath.Dir(ws.Path)
	}
	return "."
}
