package highlight

import (
	"context"
	"errors"
	"go/ast"
	"go/parser"
	"go/scanner"
	"go/token"
	"go/types"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/dshills/quill/internal/host"
	"github.com/dshills/quill/internal/project/vfs"
)

// Diagnostic codes of the Go compiler.
const (
	CodeSyntax = "syntax"
	CodeType   = "type"
)

// GoCompiler compiles Go sources with go/parser and go/types. Sources are
// grouped into packages by directory. References are package directories
// read through the file system; imports they do not satisfy fall back to
// the toolchain's standard library sources.
type GoCompiler struct {
	fsys     vfs.VFS
	log      *logrus.Entry
	fallback func(*token.FileSet) types.Importer
}

// GoOption configures a GoCompiler.
type GoOption func(*GoCompiler)

// WithGoLogger sets the logger.
func WithGoLogger(log *logrus.Entry) GoOption {
	return func(c *GoCompiler) {
		c.log = log
	}
}

// WithFallbackImporter replaces the importer used for packages no source
// or reference provides. A nil factory disables the fallback.
func WithFallbackImporter(f func(*token.FileSet) types.Importer) GoOption {
	return func(c *GoCompiler) {
		c.fallback = f
	}
}

// NewGoCompiler creates a compiler reading references from fsys.
func NewGoCompiler(fsys vfs.VFS, opts ...GoOption) *GoCompiler {
	c := &GoCompiler{
		fsys:     fsys,
		log:      logrus.NewEntry(logrus.StandardLogger()),
		fallback: sourceImporter,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Accepts reports whether path is a Go file.
func (c *GoCompiler) Accepts(path string) bool {
	return strings.HasSuffix(path, ".go")
}

// Compile parses and type-checks the sources.
func (c *GoCompiler) Compile(ctx context.Context, sources []Source, references []string) (Compilation, error) {
	fset := token.NewFileSet()
	comp := &goCompilation{fset: fset, files: make(map[string]*goFile, len(sources))}

	groups := make(map[string][]*goFile)
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := filepath.Clean(src.Path)
		file := &goFile{path: path, src: []byte(src.Text)}
		parsed, err := parser.ParseFile(fset, path, file.src, parser.ParseComments|parser.AllErrors)
		file.ast = parsed
		var list scanner.ErrorList
		if errors.As(err, &list) {
			for _, e := range list {
				comp.addDiagnostic(e.Pos, host.SeverityError, CodeSyntax, e.Msg)
			}
		} else if err != nil {
			comp.addDiagnostic(token.Position{Filename: path}, host.SeverityError, CodeSyntax, err.Error())
		}
		if parsed == nil {
			continue
		}
		file.tf = fset.File(parsed.Pos())
		comp.files[path] = file
		dir := filepath.Dir(path)
		groups[dir] = append(groups[dir], file)
	}

	imp := &goImporter{
		fset:     fset,
		fsys:     c.fsys,
		log:      c.log,
		project:  groups,
		refs:     references,
		packages: make(map[string]*types.Package),
		loading:  make(map[string]bool),
		onError:  comp.addTypeError,
	}
	if c.fallback != nil {
		imp.fallback = c.fallback(fset)
	}

	for _, dir := range sortedKeys(groups) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		imp.checkProject(dir)
	}
	return comp, nil
}

type goFile struct {
	path string
	src  []byte
	ast  *ast.File
	tf   *token.File
	pkg  *types.Package
	info *types.Info
}

type goCompilation struct {
	fset  *token.FileSet
	files map[string]*goFile
	diags map[string][]Diagnostic
}

func (c *goCompilation) addDiagnostic(pos token.Position, sev host.Severity, code, msg string) {
	if c.diags == nil {
		c.diags = make(map[string][]Diagnostic)
	}
	path := filepath.Clean(pos.Filename)
	c.diags[path] = append(c.diags[path], Diagnostic{
		Offset:   pos.Offset,
		End:      pos.Offset,
		Severity: sev,
		Code:     code,
		Message:  msg,
	})
}

func (c *goCompilation) addTypeError(err error) {
	var terr types.Error
	if !errors.As(err, &terr) {
		return
	}
	sev := host.SeverityError
	if terr.Soft {
		sev = host.SeverityWarning
	}
	c.addDiagnostic(terr.Fset.Position(terr.Pos), sev, CodeType, terr.Msg)
}

// Diagnostics returns the messages located in path.
func (c *goCompilation) Diagnostics(path string) []Diagnostic {
	return c.diags[filepath.Clean(path)]
}

// Tokens scans path and classifies each token.
func (c *goCompilation) Tokens(path string) ([]Token, bool) {
	f, ok := c.files[filepath.Clean(path)]
	if !ok {
		return nil, false
	}
	return f.tokens(), true
}

func (f *goFile) tokens() []Token {
	idents := make(map[int]*ast.Ident)
	params := make(map[types.Object]bool)
	ast.Inspect(f.ast, func(n ast.Node) bool {
		switch n := n.(type) {
		case *ast.Ident:
			idents[f.tf.Offset(n.Pos())] = n
		case *ast.FuncDecl:
			f.collectParams(n.Recv, params)
		case *ast.FuncType:
			f.collectParams(n.Params, params)
			f.collectParams(n.Results, params)
		}
		return true
	})

	var (
		s      scanner.Scanner
		tokens []Token
		last   int
	)
	s.Init(f.tf, f.src, nil, scanner.ScanComments)
	for {
		pos, tok, lit := s.Scan()
		if tok == token.EOF {
			break
		}
		if tok == token.SEMICOLON && lit == "\n" {
			continue
		}
		off := f.tf.Offset(pos)
		if off < last {
			continue
		}
		if off > last {
			tokens = append(tokens, Token{Offset: last, End: off, Kind: TokenWhitespace})
		}
		t := Token{Offset: off, End: f.tokenEnd(off, tok, lit)}
		switch {
		case tok.IsKeyword():
			t.Kind = TokenKeyword
		case tok == token.IDENT:
			t.Kind, t.Symbol = f.classifyIdent(idents[off], lit, pos, params)
		case tok == token.INT || tok == token.FLOAT || tok == token.IMAG:
			t.Kind = TokenNumber
		case tok == token.CHAR:
			t.Kind = TokenChar
		case tok == token.STRING:
			t.Kind = TokenString
		case tok == token.COMMENT:
			t.Kind = TokenComment
			if isRegionMarker(lit) {
				t.Kind = TokenRegion
			}
		case tok.IsOperator():
			t.Kind = TokenOperator
		default:
			t.Kind = TokenUnknown
		}
		tokens = append(tokens, t)
		last = t.End
	}
	if last < len(f.src) {
		tokens = append(tokens, Token{Offset: last, End: len(f.src), Kind: TokenWhitespace})
	}
	return tokens
}

func (f *goFile) collectParams(fields *ast.FieldList, params map[types.Object]bool) {
	if fields == nil || f.info == nil {
		return
	}
	for _, field := range fields.List {
		for _, name := range field.Names {
			if obj := f.info.Defs[name]; obj != nil {
				params[obj] = true
			}
		}
	}
}

// tokenEnd finds the end offset in the source. Literal text from the
// scanner has carriage returns removed, so comments and raw strings are
// measured against the source itself.
func (f *goFile) tokenEnd(off int, tok token.Token, lit string) int {
	src := f.src
	switch {
	case tok == token.COMMENT && strings.HasPrefix(lit, "/*"):
		if i := strings.Index(string(src[off+2:]), "*/"); i >= 0 {
			return off + 2 + i + 2
		}
		return len(src)
	case tok == token.COMMENT:
		end := off
		for end < len(src) && src[end] != '\n' {
			end++
		}
		if end > off && src[end-1] == '\r' {
			end--
		}
		return end
	case tok == token.STRING && strings.HasPrefix(lit, "`"):
		if i := strings.IndexByte(string(src[off+1:]), '`'); i >= 0 {
			return off + 1 + i + 1
		}
		return len(src)
	case lit != "":
		return min(off+len(lit), len(src))
	default:
		return min(off+len(tok.String()), len(src))
	}
}

func isRegionMarker(comment string) bool {
	text := strings.TrimSpace(strings.TrimPrefix(comment, "//"))
	return strings.HasPrefix(text, "#region") || strings.HasPrefix(text, "#endregion")
}

// classifyIdent resolves the declared symbol, then the referenced symbol,
// then the name in the innermost scope.
func (f *goFile) classifyIdent(id *ast.Ident, name string, pos token.Pos, params map[types.Object]bool) (TokenKind, SymbolKind) {
	if name == "_" {
		return TokenIdentifier, SymbolIdentifier
	}
	if id != nil && id == f.ast.Name {
		return TokenIdentifier, SymbolNamespace
	}
	if f.info == nil || f.pkg == nil {
		return TokenIdentifier, SymbolUnresolved
	}

	var obj types.Object
	if id != nil {
		obj = f.info.Defs[id]
		if obj == nil {
			obj = f.info.Uses[id]
		}
		if obj == nil {
			obj = f.info.Implicits[id]
		}
	}
	if obj == nil {
		if scope := f.pkg.Scope().Innermost(pos); scope != nil {
			_, obj = scope.LookupParent(name, pos)
		}
	}
	if obj == nil {
		return TokenIdentifier, SymbolUnresolved
	}
	return classifyObject(obj, f.pkg, params)
}

func classifyObject(obj types.Object, pkg *types.Package, params map[types.Object]bool) (TokenKind, SymbolKind) {
	universe := obj.Parent() == types.Universe
	switch o := obj.(type) {
	case *types.Nil:
		return TokenKeyword, SymbolNone
	case *types.Const:
		if universe {
			return TokenKeyword, SymbolNone
		}
		if named, ok := o.Type().(*types.Named); ok && named.Obj().Pkg() != nil {
			return TokenIdentifier, SymbolEnumField
		}
		if o.Parent() == pkg.Scope() || o.Parent() == nil {
			return TokenIdentifier, SymbolField
		}
		return TokenIdentifier, SymbolLocal
	case *types.Var:
		switch {
		case o.IsField():
			return TokenIdentifier, SymbolField
		case params[o]:
			return TokenIdentifier, SymbolParameter
		case o.Pkg() == nil || o.Parent() == o.Pkg().Scope():
			return TokenIdentifier, SymbolField
		default:
			return TokenIdentifier, SymbolLocal
		}
	case *types.TypeName:
		return TokenIdentifier, SymbolNamedType
	case *types.Func, *types.Builtin:
		return TokenIdentifier, SymbolMethod
	case *types.PkgName:
		return TokenIdentifier, SymbolNamespace
	default:
		return TokenIdentifier, SymbolIdentifier
	}
}
