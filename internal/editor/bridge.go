package editor

import (
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/dshills/quill/internal/host"
	"github.com/dshills/quill/internal/project/filestore"
	"github.com/dshills/quill/internal/project/tree"
	"github.com/dshills/quill/internal/tracking"
)

// applyHostEvent folds a host event into the project it belongs to.
func (e *Editor) applyHostEvent(s *session, ev host.Event) {
	log := s.log.WithFields(logrus.Fields{"context": ev.ContextID, "type": ev.Type})
	if ev.Type == host.TypeError {
		if p, ok := ev.Payload.(host.ErrorPayload); ok {
			log.WithField("path", p.Path).Error(p.Message)
		}
		return
	}

	var (
		key    string
		cycles []tree.Cycle
	)
	_, err := e.machine.Update(func(st *EditorState) (*EditorState, tracking.Diff, error) {
		key, cycles = "", nil
		if st.Workspace == nil || st.Workspace.Path != s.root {
			return st, nil, nil
		}
		root := st.Workspace.Root
		ref, ok := s.projectFor(root, ev.ContextID)
		if !ok {
			return st, nil, nil
		}
		key = ref.Project.Key()
		p, d, c := foldEvent(ref.Project, ev, s.abs(key))
		cycles = c
		if p == ref.Project {
			return st, nil, nil
		}
		root, rd, err := tree.ReplaceProject(root, ref, p, d)
		if err != nil {
			return nil, nil, err
		}
		next, diff := st.withRoot(root, rd)
		return next, diff, nil
	})
	if err != nil {
		log.WithError(err).Warn("failed to apply host event")
		return
	}
	if key == "" {
		log.Debug("dropping event for unknown project")
		return
	}
	for _, c := range cycles {
		log.WithField("cycle", c.String()).Warn("dependency cycle")
	}

	switch ev.Type {
	case host.TypeReferences, host.TypeSources, host.TypeDiagnostics:
		e.refreshProject(s, key)
	}
}

// projectFor finds the project of a context id. A project whose id has not
// been recorded in the tree yet is found through the session's
// registrations.
func (s *session) projectFor(root tree.Entry, id int) (tree.ProjectRef, bool) {
	if ref, ok := tree.ProjectByID(root, id); ok {
		return ref, true
	}
	s.mu.Lock()
	key := ""
	for k, v := range s.registered {
		if v == id {
			key = k
			break
		}
	}
	s.mu.Unlock()
	if key == "" {
		return tree.ProjectRef{}, false
	}
	for _, ref := range tree.Projects(root) {
		if ref.Project.Key() == key && !ref.Project.Registered() {
			ref.Project = ref.Project.WithID(id)
			return ref, true
		}
	}
	return tree.ProjectRef{}, false
}

// foldEvent returns p updated by ev. dir is the project's absolute
// directory.
func foldEvent(p *tree.Project, ev host.Event, dir string) (*tree.Project, tracking.Diff, []tree.Cycle) {
	switch payload := ev.Payload.(type) {
	case host.ConfigurationsPayload:
		next, d := p.WithDisplayName(payload.Name)
		return next, d, nil
	case host.ReferencesPayload:
		return p.WithReferences(payload.RootDependency, dependencies(payload.Dependencies))
	case host.SourcesPayload:
		files := make([]string, 0, len(payload.Files))
		for _, f := range payload.Files {
			files = append(files, absolute(dir, f))
		}
		generated := make(map[string]string, len(payload.GeneratedFiles))
		for path, text := range payload.GeneratedFiles {
			generated[absolute(dir, path)] = text
		}
		return p.WithSources(files, generated), nil, nil
	case host.DiagnosticsPayload:
		return p.WithDiagnostics(payload.Errors, payload.Warnings), nil, nil
	}
	return p, nil, nil
}

func dependencies(in map[string]host.DependencyDescription) map[string]tree.Dependency {
	out := make(map[string]tree.Dependency, len(in))
	for name, d := range in {
		deps := make([]string, 0, len(d.Dependencies))
		for _, item := range d.Dependencies {
			deps = append(deps, item.Name)
		}
		out[name] = tree.Dependency{
			Name:         d.Name,
			Version:      d.Version,
			Path:         d.Path,
			Unresolved:   d.Unresolved,
			Dependencies: deps,
		}
	}
	return out
}

func absolute(dir, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(dir, path)
}

// refreshProject schedules a pass for every open tab inside the project
// with key.
func (e *Editor) refreshProject(s *session, key string) {
	for _, tab := range e.State().Tabs {
		id, err := filestore.ParseContentID(tab.ContentID)
		if err != nil {
			continue
		}
		if id.Path == key || strings.HasPrefix(id.Path, key+"/") {
			s.refresh(tab.ContentID)
		}
	}
}
