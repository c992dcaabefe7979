package editor

import (
	"context"
	"errors"
	"fmt"

	"github.com/dshills/quill/internal/dispatcher"
	"github.com/dshills/quill/internal/project/filestore"
	"github.com/dshills/quill/internal/project/tree"
	"github.com/dshills/quill/internal/tracking"
)

// Command names.
const (
	CmdDialogCancel = "dialog::cancel"
	CmdBrowseOpen   = "dialog:browse-project::open"
	CmdBrowseSelect = "dialog:browse-project::select"
	CmdNodeToggle   = "tree:node::toggle"
	CmdTabOpen      = "tab::open"
	CmdTabSelect    = "tab::select"
	CmdTabClose     = "tab::close"
	CmdContentLoad  = "content::load"
	CmdCodeUpdate   = "code::update"
)

// ContentPayload is the payload of a content message.
type ContentPayload struct {
	ContentID string `json:"cid"`
	Text      string `json:"text"`
	Dirty     bool   `json:"dirty"`
}

func (e *Editor) registerCommands(reg *dispatcher.Registry) {
	reg.Register(dispatcher.Func0(CmdDialogCancel, e.cancelDialog))
	reg.Register(dispatcher.Func1Opt(CmdBrowseOpen, e.openBrowser))
	reg.Register(dispatcher.Func1(CmdBrowseSelect, e.selectProject))
	reg.Register(dispatcher.Func1(CmdNodeToggle, e.toggleNode))
	reg.Register(dispatcher.Func1(CmdTabOpen, e.openTab))
	reg.Register(dispatcher.Func1(CmdTabSelect, e.selectTab))
	reg.Register(dispatcher.Func1(CmdTabClose, e.closeTab))
	reg.Register(dispatcher.Func1(CmdContentLoad, e.loadContent))
	reg.Register(dispatcher.Func2(CmdCodeUpdate, e.updateCode))
}

func (e *Editor) cancelDialog(context.Context) error {
	_, err := e.machine.Update(func(st *EditorState) (*EditorState, tracking.Diff, error) {
		next, d := st.withDialog(nil)
		return next, d, nil
	})
	return err
}

func (e *Editor) openBrowser(_ context.Context, path *string) error {
	dir := e.defaultBrowseDir()
	if path != nil && *path != "" {
		dir = *path
	}
	dialog, err := e.browse(dir)
	if err != nil {
		return err
	}
	_, err = e.machine.Update(func(st *EditorState) (*EditorState, tracking.Diff, error) {
		next, d := st.withDialog(dialog)
		return next, d, nil
	})
	return err
}

func (e *Editor) selectProject(ctx context.Context, path string) error {
	return e.OpenWorkspace(ctx, path)
}

func (e *Editor) toggleNode(_ context.Context, key string) error {
	_, err := e.machine.Update(func(st *EditorState) (*EditorState, tracking.Diff, error) {
		if st.Workspace == nil {
			return nil, nil, ErrNoWorkspace
		}
		root, d, err := tree.UpdateKey(st.Workspace.Root, key, func(en tree.Entry) (tree.Entry, tracking.Diff, error) {
			next, d := en.AsOpen(!en.IsOpen())
			return next, d, nil
		})
		if errors.Is(err, tree.ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: %q", ErrNodeNotFound, key)
		}
		if err != nil {
			return nil, nil, err
		}
		next, diff := st.withRoot(root, d)
		return next, diff, nil
	})
	return err
}

// requireSession returns the open workspace session.
func (e *Editor) requireSession() (*session, error) {
	s := e.currentSession()
	if s == nil {
		return nil, ErrNoWorkspace
	}
	return s, nil
}

func (e *Editor) openTab(_ context.Context, cid string) error {
	id, err := filestore.ParseContentID(cid)
	if err != nil {
		return err
	}
	s, err := e.requireSession()
	if err != nil {
		return err
	}
	if _, err := s.store.GetOrLoad(cid, false); err != nil {
		return err
	}

	_, err = e.machine.Update(func(st *EditorState) (*EditorState, tracking.Diff, error) {
		if st.Workspace == nil {
			return nil, nil, ErrNoWorkspace
		}
		tabs, d := openTab(st.Tabs, id)
		if tracking.IsEmpty(d) {
			return st, nil, nil
		}
		next := st.clone()
		next.Tabs = tabs
		return next, tracking.Diff{"tabs": d}, nil
	})
	return err
}

func (e *Editor) selectTab(_ context.Context, cid string) error {
	_, err := e.machine.Update(func(st *EditorState) (*EditorState, tracking.Diff, error) {
		i := findTab(st.Tabs, cid)
		if i < 0 {
			return nil, nil, fmt.Errorf("%w: %s", ErrTabNotFound, cid)
		}
		tabs, d := activate(st.Tabs, i)
		if tracking.IsEmpty(d) {
			return st, nil, nil
		}
		next := st.clone()
		next.Tabs = tabs
		return next, tracking.Diff{"tabs": d}, nil
	})
	return err
}

func (e *Editor) closeTab(_ context.Context, cid string) error {
	_, err := e.machine.Update(func(st *EditorState) (*EditorState, tracking.Diff, error) {
		i := findTab(st.Tabs, cid)
		if i < 0 {
			return nil, nil, fmt.Errorf("%w: %s", ErrTabNotFound, cid)
		}
		next := st.clone()
		next.Tabs = closeTab(st.Tabs, i)
		d := tracking.Diff{}
		tracking.RegisterChange(d, "tabs", next.Tabs, nil)
		return next, d, nil
	})
	if err != nil {
		return err
	}
	if s := e.currentSession(); s != nil {
		s.forget(cid)
	}
	return nil
}

func (e *Editor) loadContent(_ context.Context, cid string) error {
	s, err := e.requireSession()
	if err != nil {
		return err
	}
	c, err := s.store.GetOrLoad(cid, false)
	if err != nil {
		return err
	}
	text, err := c.Text()
	if err != nil {
		return err
	}
	s.resetContent(cid)
	e.machine.Send(Message{Type: MessageContent, Payload: ContentPayload{ContentID: cid, Text: text, Dirty: c.Dirty()}})
	s.refresh(cid)
	return nil
}

func (e *Editor) updateCode(_ context.Context, cid string, edit filestore.Edit) error {
	if _, err := filestore.ParseContentID(cid); err != nil {
		return err
	}
	s, err := e.requireSession()
	if err != nil {
		return err
	}
	return s.goBackground(CmdCodeUpdate, func() {
		if err := e.applyEdit(s, cid, edit); err != nil {
			if s.ctx.Err() != nil {
				return
			}
			s.log.WithError(err).WithField("cid", cid).Warn("edit failed")
			e.sendError(CmdCodeUpdate, err)
		}
	})
}
