package host

import (
	"fmt"
	"regexp"
	"strconv"
)

// Severity is the kind of a diagnostic.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityInfo
)

// String returns the lower case name used in diagnostic text.
func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInfo:
		return "info"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Diagnostic is a parsed build diagnostic. Line and Column are 1-based.
type Diagnostic struct {
	File    string   `json:"file"`
	Line    int      `json:"line"`
	Column  int      `json:"column"`
	Kind    Severity `json:"kind"`
	Code    string   `json:"code"`
	Message string   `json:"message"`
}

// The file part excludes characters that are invalid in paths on common
// platforms, which keeps "(" inside directory names from being mistaken
// for the position.
var diagnosticPattern = regexp.MustCompile(`^([^<>"|?*\x00-\x1f]+?)\((\d+),(\d+)\): (error|warning|info) ([A-Za-z0-9]+): (.*)$`)

// ParseDiagnostic parses "{file}({line},{col}): {kind} {code}: {message}".
func ParseDiagnostic(line string) (Diagnostic, error) {
	m := diagnosticPattern.FindStringSubmatch(line)
	if m == nil {
		return Diagnostic{}, fmt.Errorf("%w: %q", ErrInvalidDiagnostic, line)
	}
	ln, err := strconv.Atoi(m[2])
	if err != nil {
		return Diagnostic{}, fmt.Errorf("%w: line: %v", ErrInvalidDiagnostic, err)
	}
	col, err := strconv.Atoi(m[3])
	if err != nil {
		return Diagnostic{}, fmt.Errorf("%w: column: %v", ErrInvalidDiagnostic, err)
	}

	d := Diagnostic{File: m[1], Line: ln, Column: col, Code: m[5], Message: m[6]}
	switch m[4] {
	case "error":
		d.Kind = SeverityError
	case "warning":
		d.Kind = SeverityWarning
	default:
		d.Kind = SeverityInfo
	}
	return d, nil
}
