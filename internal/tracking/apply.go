package tracking

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ApplyJSON applies d to the JSON document doc and returns the updated
// document. It is what a client mirror does with each received diff: nested
// diffs descend into objects (by field) or arrays (by decimal index), leaves
// replace the addressed value.
func ApplyJSON(doc []byte, d Diff) ([]byte, error) {
	if len(doc) == 0 {
		doc = []byte("{}")
	}
	return applyAt(doc, "", d)
}

func applyAt(doc []byte, prefix string, d Diff) ([]byte, error) {
	// Deterministic order keeps array appends ("2" before "3") stable.
	keys := make([]string, 0, len(d))
	for key := range d {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return lessKey(keys[i], keys[j]) })

	var err error
	for _, key := range keys {
		path := key
		if prefix != "" {
			path = prefix + "." + escapeKey(key)
		} else {
			path = escapeKey(key)
		}

		if sub, ok := d[key].(Diff); ok {
			current := gjson.GetBytes(doc, path)
			if !current.IsObject() && !current.IsArray() {
				doc, err = sjson.SetRawBytes(doc, path, []byte("{}"))
				if err != nil {
					return nil, fmt.Errorf("apply %s: %w", path, err)
				}
			}
			doc, err = applyAt(doc, path, sub)
			if err != nil {
				return nil, err
			}
			continue
		}

		raw, err := json.Marshal(d[key])
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", path, err)
		}
		doc, err = sjson.SetRawBytes(doc, path, raw)
		if err != nil {
			return nil, fmt.Errorf("apply %s: %w", path, err)
		}
	}
	return doc, nil
}

// lessKey orders numeric keys numerically and before other keys.
func lessKey(a, b string) bool {
	na, aNum := index(a)
	nb, bNum := index(b)
	switch {
	case aNum && bNum:
		return na < nb
	case aNum:
		return true
	case bNum:
		return false
	}
	return a < b
}

func index(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}

var pathEscaper = strings.NewReplacer(`.`, `\.`, `*`, `\*`, `?`, `\?`, `|`, `\|`, `#`, `\#`, `@`, `\@`)

func escapeKey(key string) string {
	return pathEscaper.Replace(key)
}
