package highlight

import (
	"context"

	"github.com/dshills/quill/internal/host"
)

// Source is the text of one compilation input.
type Source struct {
	Path string
	Text string
}

// TokenKind is the lexical class of a token.
type TokenKind int

const (
	TokenUnknown TokenKind = iota
	TokenKeyword
	TokenIdentifier
	TokenString
	TokenNumber
	TokenChar
	TokenOperator
	TokenComment
	TokenRegion
	TokenWhitespace
)

// SymbolKind is what an identifier resolves to.
type SymbolKind int

const (
	SymbolNone SymbolKind = iota
	SymbolField
	SymbolEnumField
	SymbolLocal
	SymbolParameter
	SymbolProperty
	SymbolNamedType
	SymbolMethod
	SymbolNamespace
	SymbolIdentifier
	SymbolUnresolved
)

// Token is a span of the file being highlighted. Offsets are bytes and End
// is exclusive. Every byte of the file belongs to exactly one token.
type Token struct {
	Offset int
	End    int
	Kind   TokenKind
	Symbol SymbolKind
}

// Diagnostic is a compiler message located by byte offsets. An empty span
// marks the token containing Offset.
type Diagnostic struct {
	Offset   int
	End      int
	Severity host.Severity
	Code     string
	Message  string
}

// Compiler turns sources and references into a compilation.
type Compiler interface {
	// Accepts reports whether path is a source file of this language.
	Accepts(path string) bool

	// Compile builds an ephemeral compilation. Errors in the sources are
	// reported as diagnostics, not as an error.
	Compile(ctx context.Context, sources []Source, references []string) (Compilation, error)
}

// Compilation is the result of compiling a set of sources.
type Compilation interface {
	// Tokens returns the classified tokens of path, including trivia.
	// It returns false if path is not part of the compilation.
	Tokens(path string) ([]Token, bool)

	// Diagnostics returns the messages located in path.
	Diagnostics(path string) []Diagnostic
}
