package editor

import (
	"strconv"

	"github.com/dshills/quill/internal/project/filestore"
	"github.com/dshills/quill/internal/tracking"
)

// Tab is an open editor tab.
type Tab struct {
	ContentID string `json:"cid"`
	Name      string `json:"name"`
	Tooltip   string `json:"tooltip"`
	Dirty     bool   `json:"dirty"`
	Active    bool   `json:"active"`
}

func newTab(id filestore.ContentID) Tab {
	return Tab{ContentID: id.String(), Name: id.Name(), Tooltip: id.Path}
}

// AsActive returns t with the active flag set.
func (t Tab) AsActive(active bool) (Tab, tracking.Diff) {
	if t.Active == active {
		return t, nil
	}
	t.Active = active
	return t, tracking.Diff{"active": active}
}

// AsDirty returns t with the dirty flag set.
func (t Tab) AsDirty(dirty bool) (Tab, tracking.Diff) {
	if t.Dirty == dirty {
		return t, nil
	}
	t.Dirty = dirty
	return t, tracking.Diff{"dirty": dirty}
}

func findTab(tabs []Tab, cid string) int {
	for i, t := range tabs {
		if t.ContentID == cid {
			return i
		}
	}
	return -1
}

// activate makes tab i the only active tab. The diff addresses tabs by
// index.
func activate(tabs []Tab, i int) ([]Tab, tracking.Diff) {
	out := make([]Tab, len(tabs))
	d := tracking.Diff{}
	for j, t := range tabs {
		next, td := t.AsActive(j == i)
		out[j] = next
		if td != nil {
			tracking.RegisterChange(d, strconv.Itoa(j), next, td)
		}
	}
	return out, d
}

// openTab appends a tab for id, or selects it if already open.
func openTab(tabs []Tab, id filestore.ContentID) ([]Tab, tracking.Diff) {
	if i := findTab(tabs, id.String()); i >= 0 {
		return activate(tabs, i)
	}
	n := len(tabs)
	grown := append(append(make([]Tab, 0, n+1), tabs...), newTab(id))
	out, d := activate(grown, n)
	// The new tab is sent whole, not as an active flag change.
	d[strconv.Itoa(n)] = out[n]
	return out, d
}

// closeTab removes tab i. When it was active its right neighbour, or else
// the new last tab, becomes active. The whole list is sent.
func closeTab(tabs []Tab, i int) []Tab {
	wasActive := tabs[i].Active
	out := make([]Tab, 0, len(tabs)-1)
	out = append(out, tabs[:i]...)
	out = append(out, tabs[i+1:]...)
	if wasActive && len(out) > 0 {
		out[min(i, len(out)-1)].Active = true
	}
	return out
}
