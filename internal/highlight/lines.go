package highlight

import (
	"sort"
	"unicode/utf8"
)

// lineIndex converts byte offsets to 0-based line and rune columns.
type lineIndex struct {
	src    []byte
	starts []int
}

func newLineIndex(src []byte) *lineIndex {
	starts := []int{0}
	for i, b := range src {
		if b == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &lineIndex{src: src, starts: starts}
}

func (li *lineIndex) position(off int) (line, col int) {
	off = max(0, min(off, len(li.src)))
	line = sort.Search(len(li.starts), func(i int) bool { return li.starts[i] > off }) - 1
	return line, utf8.RuneCount(li.src[li.starts[line]:off])
}

// offset converts a 0-based line and rune column to a byte offset. Out of
// range positions are clamped.
func (li *lineIndex) offset(line, col int) int {
	if line < 0 {
		return 0
	}
	if line >= len(li.starts) {
		return len(li.src)
	}
	off := li.starts[line]
	for i := 0; i < col && off < len(li.src) && li.src[off] != '\n'; i++ {
		_, size := utf8.DecodeRune(li.src[off:])
		off += size
	}
	return off
}

// span is one line's share of a token.
type span struct {
	line  int
	start int
	end   int
}

// split breaks [start, end) into one span per line. Every line but the
// last runs to EndOfLine; an empty tail after a newline is dropped.
func (li *lineIndex) split(start, end int) []span {
	if end <= start {
		return nil
	}
	l1, c1 := li.position(start)
	l2, c2 := li.position(end)
	if l1 == l2 {
		return []span{{line: l1, start: c1, end: c2}}
	}
	spans := make([]span, 0, l2-l1+1)
	spans = append(spans, span{line: l1, start: c1, end: EndOfLine})
	for l := l1 + 1; l < l2; l++ {
		spans = append(spans, span{line: l, start: 0, end: EndOfLine})
	}
	if c2 > 0 {
		spans = append(spans, span{line: l2, start: 0, end: c2})
	}
	return spans
}
