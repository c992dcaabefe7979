package highlight

import (
	"encoding/json"
	"sort"
	"strconv"
)

// Style is a highlight class sent to the client.
type Style string

// Token and symbol styles.
const (
	StyleKeyword       Style = "keyword"
	StyleField         Style = "field"
	StyleEnumField     Style = "enum-field"
	StyleLocalVariable Style = "local-variable"
	StyleParameter     Style = "parameter"
	StyleProperty      Style = "property"
	StyleNamedType     Style = "named-type"
	StyleMethod        Style = "method"
	StyleNamespace     Style = "namespace"
	StyleIdentifier    Style = "identifier"
	StyleUnknown       Style = "unknown"
	StyleString        Style = "string"
	StyleNumber        Style = "number"
	StyleChar          Style = "char"
	StyleOperator      Style = "operator"
	StyleComment       Style = "comment"
	StyleWhitespace    Style = "whitespace"
	StyleRegion        Style = "region"
	StyleError         Style = "error"
	StyleWarning       Style = "warning"
)

// EndOfLine is the end column of a region that runs to the end of its line.
const EndOfLine = -1

// Region is a styled column range of one line. Columns count runes. Style
// may hold several space separated classes.
type Region struct {
	Start int
	End   int
	Style string
}

type regionJSON struct {
	Start int    `json:"start"`
	End   *int   `json:"end"`
	Style string `json:"style"`
}

// MarshalJSON encodes an EndOfLine end as null.
func (r Region) MarshalJSON() ([]byte, error) {
	out := regionJSON{Start: r.Start, Style: r.Style}
	if r.End != EndOfLine {
		end := r.End
		out.End = &end
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a null end as EndOfLine.
func (r *Region) UnmarshalJSON(data []byte) error {
	var in regionJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	r.Start, r.Style, r.End = in.Start, in.Style, EndOfLine
	if in.End != nil {
		r.End = *in.End
	}
	return nil
}

// Annotation is a diagnostic attached to a line. Line and Column are
// 0-based.
type Annotation struct {
	Line     int    `json:"line"`
	Column   int    `json:"column"`
	Severity string `json:"severity"`
	Code     string `json:"code,omitempty"`
	Message  string `json:"message"`
}

// Line holds the regions of one line ordered by start column.
type Line struct {
	Regions []Region     `json:"regions"`
	Errors  []Annotation `json:"errors,omitempty"`
}

// LineMap maps 0-based line numbers to their annotations.
type LineMap map[int]*Line

// Lines returns the line numbers in ascending order.
func (m LineMap) Lines() []int {
	lines := make([]int, 0, len(m))
	for n := range m {
		lines = append(lines, n)
	}
	sort.Ints(lines)
	return lines
}

// MarshalJSON encodes the map with decimal string keys.
func (m LineMap) MarshalJSON() ([]byte, error) {
	out := make(map[string]*Line, len(m))
	for n, l := range m {
		out[strconv.Itoa(n)] = l
	}
	return json.Marshal(out)
}
