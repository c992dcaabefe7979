package tree

import "github.com/dshills/quill/internal/tracking"

type container interface {
	Entry
	withChildren(children []Entry) (Entry, tracking.Diff)
}

// Reconcile merges a freshly scanned tree into current. Entries present in
// both keep their open flag, project metadata and references; unchanged
// subtrees are returned as the identical values from current.
func Reconcile(current, fresh Entry) (Entry, tracking.Diff) {
	cur, ok := current.(container)
	if !ok || current.Kind() != fresh.Kind() || current.Key() != fresh.Key() {
		return current, nil
	}
	if _, ok := fresh.(container); !ok {
		return current, nil
	}

	curKids, offset := scanned(current)
	freshKids, _ := scanned(fresh)

	byKey := make(map[string]Entry, len(curKids))
	for _, e := range curKids {
		byKey[e.Key()] = e
	}

	structural := len(curKids) != len(freshKids)
	merged := make([]Entry, len(freshKids))
	diffs := make([]tracking.Diff, len(freshKids))
	for i, f := range freshKids {
		old, ok := byKey[f.Key()]
		if !ok || old.Kind() != f.Kind() {
			merged[i] = f
			structural = true
			continue
		}
		if !structural && curKids[i].Key() != f.Key() {
			structural = true
		}
		merged[i], diffs[i] = Reconcile(old, f)
	}

	if structural {
		return cur.withChildren(merged)
	}

	var (
		e    Entry = current
		diff       = tracking.Diff{}
	)
	for i, m := range merged {
		if m == curKids[i] {
			continue
		}
		next, cd, err := e.WithChild(i+offset, m, diffs[i])
		if err != nil {
			// Containers accept any in-range child.
			continue
		}
		e = next
		tracking.Merge(diff, cd)
	}
	return e, tracking.Cull(diff)
}

// scanned returns the children that come from disk and their offset in
// Children.
func scanned(e Entry) ([]Entry, int) {
	if _, ok := e.(*Project); ok {
		return e.Children()[1:], 1
	}
	return e.Children(), 0
}
