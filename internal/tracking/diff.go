package tracking

import (
	"reflect"
	"strings"
)

// Diff is a sparse tree of changed properties.
type Diff map[string]any

// ConflictFunc receives scalar conflicts detected while merging diffs.
// path is the dot separated property path inside the merged diff.
type ConflictFunc func(path string, previous, next any)

// OnConflict is invoked when two registrations write different leaf values to
// the same path during one state transition. Only one logical writer touches a
// path per transition, so a call here indicates a bug at a mutation site.
// The later write is kept.
var OnConflict ConflictFunc = func(string, any, any) {}

// RegisterChange records that property key of the object described by d now
// has newValue.
//
// Rules, in order:
//   - an existing entry for key is merged with the new one recursively;
//   - slice and array values are stored whole (replacement semantics);
//   - bool values are stored as literals;
//   - a non-nil sub diff is stored in place of the value;
//   - anything else is stored as a full snapshot.
func RegisterChange(d Diff, key string, newValue any, sub Diff) {
	leaf := leafValue(newValue, sub)
	existing, ok := d[key]
	if !ok {
		d[key] = leaf
		return
	}
	d[key] = mergeValue(key, existing, leaf)
}

// Child returns the nested diff stored at key, creating it when absent.
// A non-diff leaf stored at key is replaced.
func Child(d Diff, key string) Diff {
	if sub, ok := d[key].(Diff); ok {
		return sub
	}
	sub := Diff{}
	d[key] = sub
	return sub
}

func leafValue(newValue any, sub Diff) any {
	if isCollection(newValue) {
		return newValue
	}
	if b, ok := newValue.(bool); ok {
		return b
	}
	if sub != nil {
		return sub
	}
	return newValue
}

func isCollection(v any) bool {
	if v == nil {
		return false
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Slice, reflect.Array:
		return true
	}
	return false
}

// Merge folds src into dst. Nested diffs are merged field by field; leaf
// conflicts keep the value from src and are reported to OnConflict.
func Merge(dst, src Diff) {
	mergeInto("", dst, src)
}

func mergeInto(prefix string, dst, src Diff) {
	for key, value := range src {
		existing, ok := dst[key]
		if !ok {
			dst[key] = value
			continue
		}
		dst[key] = mergeValue(joinPath(prefix, key), existing, value)
	}
}

func mergeValue(path string, existing, next any) any {
	exDiff, exOK := existing.(Diff)
	nextDiff, nextOK := next.(Diff)
	if exOK && nextOK {
		mergeInto(path, exDiff, nextDiff)
		return exDiff
	}
	if !reflect.DeepEqual(existing, next) {
		OnConflict(path, existing, next)
	}
	return next
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	var b strings.Builder
	b.Grow(len(prefix) + len(key) + 1)
	b.WriteString(prefix)
	b.WriteByte('.')
	b.WriteString(key)
	return b.String()
}

// Cull removes nested diffs that carry no leaves, bottom-up.
// It returns nil when nothing meaningful remains.
func Cull(d Diff) Diff {
	if d == nil {
		return nil
	}
	for key, value := range d {
		sub, ok := value.(Diff)
		if !ok {
			continue
		}
		if culled := Cull(sub); culled == nil {
			delete(d, key)
		} else {
			d[key] = culled
		}
	}
	if len(d) == 0 {
		return nil
	}
	return d
}

// IsEmpty reports whether d carries no change after culling.
// Unlike Cull it does not modify d.
func IsEmpty(d Diff) bool {
	for _, value := range d {
		sub, ok := value.(Diff)
		if !ok || !IsEmpty(sub) {
			return false
		}
	}
	return true
}

// Prefixed wraps d so that it describes the property key of a parent object.
// A nil or empty d yields nil.
func Prefixed(key string, d Diff) Diff {
	if IsEmpty(d) {
		return nil
	}
	return Diff{key: d}
}
