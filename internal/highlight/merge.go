package highlight

import (
	"math"
	"slices"
	"sort"
	"strings"
)

type regionKey struct {
	line, start, end int
}

// builder accumulates regions and merges those sharing (line, start, end).
type builder struct {
	lines   *lineIndex
	diags   []Diagnostic
	regions map[regionKey][]Style
	errors  map[int][]int
}

func newBuilder(lines *lineIndex, diags []Diagnostic) *builder {
	return &builder{
		lines:   lines,
		diags:   diags,
		regions: make(map[regionKey][]Style),
		errors:  make(map[int][]int),
	}
}

func (b *builder) add(t Token) {
	styles, hits := classify(t, b.diags)
	for _, sp := range b.lines.split(t.Offset, t.End) {
		key := regionKey{sp.line, sp.start, sp.end}
		for _, s := range styles {
			if !slices.Contains(b.regions[key], s) {
				b.regions[key] = append(b.regions[key], s)
			}
		}
		for _, i := range hits {
			if !slices.Contains(b.errors[sp.line], i) {
				b.errors[sp.line] = append(b.errors[sp.line], i)
			}
		}
	}
}

func (b *builder) build() LineMap {
	out := make(LineMap)
	for key, styles := range b.regions {
		l := out[key.line]
		if l == nil {
			l = &Line{}
			out[key.line] = l
		}
		parts := make([]string, len(styles))
		for i, s := range styles {
			parts[i] = string(s)
		}
		l.Regions = append(l.Regions, Region{Start: key.start, End: key.end, Style: strings.Join(parts, " ")})
	}
	for _, l := range out {
		sort.Slice(l.Regions, func(i, j int) bool {
			a, b := l.Regions[i], l.Regions[j]
			if a.Start != b.Start {
				return a.Start < b.Start
			}
			return endKey(a.End) < endKey(b.End)
		})
	}
	for line, hits := range b.errors {
		l := out[line]
		if l == nil {
			continue
		}
		sort.Ints(hits)
		for _, i := range hits {
			d := b.diags[i]
			dl, dc := b.lines.position(d.Offset)
			l.Errors = append(l.Errors, Annotation{
				Line:     dl,
				Column:   dc,
				Severity: d.Severity.String(),
				Code:     d.Code,
				Message:  d.Message,
			})
		}
	}
	return out
}

func endKey(end int) int {
	if end == EndOfLine {
		return math.MaxInt
	}
	return end
}
