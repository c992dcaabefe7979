package editor

import (
	"errors"
	"slices"
	"strconv"

	"github.com/dshills/quill/internal/project/filestore"
	"github.com/dshills/quill/internal/tracking"
)

// applyEdit applies edit to the buffer of cid once all earlier edits of that
// buffer are applied.
func (e *Editor) applyEdit(s *session, cid string, edit filestore.Edit) error {
	if err := s.edits.wait(s.ctx, cid, edit.Update); err != nil {
		return err
	}
	defer s.edits.done(cid, edit.Update)

	for {
		cur, err := s.store.GetOrLoad(cid, false)
		if err != nil {
			return err
		}
		text, err := cur.Text()
		if err != nil {
			return err
		}
		if edit.Update == 0 && !cur.Dirty() && filestore.IsInitialEcho(text, edit) {
			s.scheduleHighlight(cid, edit.Update)
			return nil
		}

		updated, err := filestore.ApplyEdit(text, edit)
		if err != nil {
			return err
		}
		err = s.store.CompareAndSwap(cur, cur.WithText(updated))
		if errors.Is(err, filestore.ErrConflict) {
			continue
		}
		if err != nil {
			return err
		}
		break
	}

	if err := e.markDirty(cid); err != nil {
		return err
	}
	s.scheduleHighlight(cid, edit.Update)
	return nil
}

// markDirty flags the tab of cid as modified.
func (e *Editor) markDirty(cid string) error {
	_, err := e.machine.Update(func(st *EditorState) (*EditorState, tracking.Diff, error) {
		i := findTab(st.Tabs, cid)
		if i < 0 {
			return st, nil, nil
		}
		tab, td := st.Tabs[i].AsDirty(true)
		if td == nil {
			return st, nil, nil
		}
		next := st.clone()
		next.Tabs = slices.Clone(st.Tabs)
		next.Tabs[i] = tab
		return next, tracking.Diff{"tabs": tracking.Diff{strconv.Itoa(i): td}}, nil
	})
	return err
}
