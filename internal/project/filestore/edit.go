package filestore

import (
	"fmt"
	"unicode/utf8"
)

// Edit is a text change sent by the client. Offsets count runes.
type Edit struct {
	// Text is the inserted text.
	Text    string `json:"text"`
	Start   int    `json:"start"`
	Removed int    `json:"removed"`
	Added   int    `json:"added"`

	// Update is the per-content sequence number of the edit.
	Update int `json:"update"`
}

// ApplyEdit replaces e.Removed runes at e.Start with e.Text. Ranges outside
// text fail with ErrInvalidEditRange.
func ApplyEdit(text string, e Edit) (string, error) {
	runes := []rune(text)
	if e.Start < 0 || e.Removed < 0 || e.Start > len(runes) || e.Removed > len(runes)-e.Start {
		return "", fmt.Errorf("%w: start %d removed %d length %d", ErrInvalidEditRange, e.Start, e.Removed, len(runes))
	}
	if n := utf8.RuneCountInString(e.Text); e.Added != n {
		return "", fmt.Errorf("%w: added %d but text has %d runes", ErrInvalidEditRange, e.Added, n)
	}

	out := make([]rune, 0, len(runes)-e.Removed+e.Added)
	out = append(out, runes[:e.Start]...)
	out = append(out, []rune(e.Text)...)
	out = append(out, runes[e.Start+e.Removed:]...)
	return string(out), nil
}

// IsInitialEcho reports whether e is the editor echoing the whole buffer
// right after it was loaded.
func IsInitialEcho(text string, e Edit) bool {
	return e.Start == 0 && e.Removed == 0 && e.Text == text && e.Added == utf8.RuneCountInString(text)
}
