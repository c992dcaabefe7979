package editor

import (
	"errors"

	"github.com/dshills/quill/internal/highlight"
	"github.com/dshills/quill/internal/host"
	"github.com/dshills/quill/internal/project/filestore"
	"github.com/dshills/quill/internal/project/tree"
)

// NoUpdate marks a highlight that belongs to the loaded text rather than to
// an edit.
const NoUpdate = -1

// HighlightPayload is the payload of a highlight message. Update is the
// last edit the highlight reflects.
type HighlightPayload struct {
	ContentID string            `json:"cid"`
	Update    int               `json:"update"`
	Lines     highlight.LineMap `json:"lines"`
}

// scheduleHighlight records update as applied to cid and schedules a pass.
func (s *session) scheduleHighlight(cid string, update int) {
	s.mu.Lock()
	s.gen[cid]++
	s.applied[cid] = update
	s.mu.Unlock()
	s.highlights.Call(cid)
}

// refresh schedules a pass for cid without a new edit.
func (s *session) refresh(cid string) {
	s.mu.Lock()
	s.gen[cid]++
	s.mu.Unlock()
	s.highlights.Call(cid)
}

// resetContent starts the edit sequence of cid over after a reload.
func (s *session) resetContent(cid string) {
	s.edits.reset(cid)
	s.mu.Lock()
	delete(s.applied, cid)
	s.mu.Unlock()
}

// forget drops everything the session holds for a closed tab.
func (s *session) forget(cid string) {
	s.highlights.Cancel(cid)
	s.store.Remove(cid)
	s.edits.reset(cid)
	s.mu.Lock()
	delete(s.gen, cid)
	delete(s.applied, cid)
	s.mu.Unlock()
}

// generation returns the pass counter and last applied update of cid.
func (s *session) generation(cid string) (uint64, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	update, ok := s.applied[cid]
	if !ok {
		update = NoUpdate
	}
	return s.gen[cid], update
}

// runHighlight highlights cid and sends the result unless a newer edit or
// refresh arrived while it ran.
func (e *Editor) runHighlight(s *session, cid string) {
	if s.ctx.Err() != nil {
		return
	}
	if _, ok := s.store.Get(cid); !ok {
		return
	}
	gen, update := s.generation(cid)

	req, ok := s.highlightRequest(e.State(), cid)
	if !ok {
		return
	}
	log := s.log.WithField("cid", cid)
	lines, ok, err := e.pipeline.Run(s.ctx, req)
	switch {
	case err != nil:
		if s.ctx.Err() == nil && !errors.Is(err, highlight.ErrNoCompiler) {
			log.WithError(err).Warn("highlight failed")
		}
		return
	case !ok:
		log.Debug("file is not part of a compilation")
		return
	}

	if cur, _ := s.generation(cid); cur != gen {
		log.WithField("generation", gen).Debug("dropping stale highlight")
		return
	}
	if s.ctx.Err() != nil {
		return
	}
	e.machine.Send(Message{Type: MessageHighlight, Payload: HighlightPayload{ContentID: cid, Update: update, Lines: lines}})
}

// highlightRequest builds the pass for cid from its project. Files outside
// any project compile alone.
func (s *session) highlightRequest(st *EditorState, cid string) (highlight.Request, bool) {
	if st.Workspace == nil || st.Workspace.Path != s.root {
		return highlight.Request{}, false
	}
	id, err := filestore.ParseContentID(cid)
	if err != nil {
		return highlight.Request{}, false
	}
	req := highlight.Request{
		Target:  s.abs(id.Path),
		Overlay: s.store.Overlay(),
	}

	ref, ok := tree.ProjectOf(st.Workspace.Root, id.Path)
	if !ok {
		req.Sources = []string{req.Target}
		return req, true
	}
	p := ref.Project
	req.Sources = p.Sources()
	if len(req.Sources) == 0 {
		for _, key := range tree.Files(p) {
			req.Sources = append(req.Sources, s.abs(key))
		}
	}
	req.Generated = p.Generated()
	req.References = p.ReferencePaths()
	req.HostDiagnostics = s.parseDiagnostics(p.Errors(), p.Warnings())
	return req, true
}

func (s *session) parseDiagnostics(lists ...[]string) []host.Diagnostic {
	var out []host.Diagnostic
	for _, list := range lists {
		for _, line := range list {
			d, err := host.ParseDiagnostic(line)
			if err != nil {
				s.log.WithError(err).Debug("skipping diagnostic")
				continue
			}
			out = append(out, d)
		}
	}
	return out
}
