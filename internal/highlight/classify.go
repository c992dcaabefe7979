package highlight

import "github.com/dshills/quill/internal/host"

var kindStyles = map[TokenKind]Style{
	TokenUnknown:    StyleUnknown,
	TokenKeyword:    StyleKeyword,
	TokenString:     StyleString,
	TokenNumber:     StyleNumber,
	TokenChar:       StyleChar,
	TokenOperator:   StyleOperator,
	TokenComment:    StyleComment,
	TokenRegion:     StyleRegion,
	TokenWhitespace: StyleWhitespace,
}

var symbolStyles = map[SymbolKind]Style{
	SymbolField:      StyleField,
	SymbolEnumField:  StyleEnumField,
	SymbolLocal:      StyleLocalVariable,
	SymbolParameter:  StyleParameter,
	SymbolProperty:   StyleProperty,
	SymbolNamedType:  StyleNamedType,
	SymbolMethod:     StyleMethod,
	SymbolNamespace:  StyleNamespace,
	SymbolIdentifier: StyleIdentifier,
	SymbolUnresolved: StyleUnknown,
}

// overlaps reports whether d touches [start, end). An empty diagnostic
// touches the token containing its offset.
func (d Diagnostic) overlaps(start, end int) bool {
	if d.End <= d.Offset {
		return start <= d.Offset && d.Offset < end
	}
	return start < d.End && d.Offset < end
}

// classify returns the styles of t followed by the diagnostics it carries.
func classify(t Token, diags []Diagnostic) (styles []Style, hits []int) {
	if t.Kind == TokenIdentifier {
		if s, ok := symbolStyles[t.Symbol]; ok {
			styles = append(styles, s)
		} else {
			styles = append(styles, StyleIdentifier)
		}
	} else {
		styles = append(styles, kindStyles[t.Kind])
		if s, ok := symbolStyles[t.Symbol]; ok {
			styles = append(styles, s)
		}
	}

	var hasError, hasWarning bool
	for i, d := range diags {
		if !d.overlaps(t.Offset, t.End) {
			continue
		}
		switch d.Severity {
		case host.SeverityError:
			hasError = true
			hits = append(hits, i)
		case host.SeverityWarning:
			hasWarning = true
		}
	}
	if hasError {
		styles = append(styles, StyleError)
	}
	if hasWarning {
		styles = append(styles, StyleWarning)
	}
	return styles, hits
}
