// Package highlight produces semantic highlighting for one source file.
//
// Each pass builds a fresh compilation from a project's sources, with open
// buffers substituted for their files on disk, and walks every token of the
// target file including whitespace and comments. Tokens are classified by
// their lexical kind and, for identifiers, by the symbol they resolve to.
// Multi-line tokens are split per line and regions sharing the same line
// and columns are merged into one region with all of their classes.
package highlight

import (
	"context"
	"fmt"
	"maps"
	"path/filepath"
	"runtime"
	"slices"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/quill/internal/host"
	"github.com/dshills/quill/internal/project/filestore"
	"github.com/dshills/quill/internal/project/vfs"
)

// Request describes one highlight pass. Paths are absolute.
type Request struct {
	// Target is the file to highlight.
	Target string

	// Sources are the project's source files. Files the compiler does not
	// accept are ignored.
	Sources []string

	// References are the resolved metadata references of the project.
	References []string

	// Overlay holds the text of open buffers by path.
	Overlay map[string]string

	// Generated holds sources the host generated for the project, by path.
	// They join the compilation whether or not they exist on disk; open
	// buffers still take precedence.
	Generated map[string]string

	// HostDiagnostics are build diagnostics reported by the host. Those
	// located in Target are added to the compiler's own.
	HostDiagnostics []host.Diagnostic
}

// Pipeline runs highlight passes.
type Pipeline struct {
	compiler Compiler
	fsys     vfs.VFS
	log      *logrus.Entry
	workers  int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(log *logrus.Entry) Option {
	return func(p *Pipeline) {
		p.log = log
	}
}

// WithWorkers bounds the number of files loaded in parallel.
func WithWorkers(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

// NewPipeline creates a pipeline reading unopened files from fsys.
func NewPipeline(compiler Compiler, fsys vfs.VFS, opts ...Option) *Pipeline {
	p := &Pipeline{
		compiler: compiler,
		fsys:     fsys,
		log:      logrus.NewEntry(logrus.StandardLogger()),
		workers:  runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Accepts reports whether the compiler handles path.
func (p *Pipeline) Accepts(path string) bool {
	return p.compiler != nil && p.compiler.Accepts(path)
}

// Run highlights req.Target. It returns false when the target is not part
// of the compilation.
func (p *Pipeline) Run(ctx context.Context, req Request) (LineMap, bool, error) {
	if p.compiler == nil {
		return nil, false, ErrNoCompiler
	}
	target := filepath.Clean(req.Target)

	paths := make([]string, 0, len(req.Sources))
	seen := make(map[string]bool, len(req.Sources))
	found := false
	for _, s := range req.Sources {
		s = filepath.Clean(s)
		if seen[s] || !p.compiler.Accepts(s) {
			continue
		}
		seen[s] = true
		paths = append(paths, s)
		found = found || s == target
	}
	generated := make(map[string]string, len(req.Generated))
	for _, g := range slices.Sorted(maps.Keys(req.Generated)) {
		text := req.Generated[g]
		g = filepath.Clean(g)
		if !p.compiler.Accepts(g) {
			continue
		}
		generated[g] = text
		if !seen[g] {
			seen[g] = true
			paths = append(paths, g)
			found = found || g == target
		}
	}
	if !found {
		return nil, false, nil
	}

	sources, err := p.load(ctx, paths, target, req.Overlay, generated)
	if err != nil {
		return nil, false, err
	}
	comp, err := p.compiler.Compile(ctx, sources, req.References)
	if err != nil {
		return nil, false, fmt.Errorf("compile: %w", err)
	}
	tokens, ok := comp.Tokens(target)
	if !ok {
		return nil, false, nil
	}

	var text string
	for _, s := range sources {
		if s.Path == target {
			text = s.Text
			break
		}
	}
	lines := newLineIndex([]byte(text))
	diags := append([]Diagnostic(nil), comp.Diagnostics(target)...)
	diags = append(diags, hostDiagnostics(lines, target, req.HostDiagnostics)...)

	b := newBuilder(lines, diags)
	for _, t := range tokens {
		b.add(t)
	}
	return b.build(), true, nil
}

// load reads every source, preferring the overlay, then generated text,
// then disk. Unreadable files other than the target are left out of the
// compilation.
func (p *Pipeline) load(ctx context.Context, paths []string, target string, overlay, generated map[string]string) ([]Source, error) {
	texts := make([]*string, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, path := range paths {
		if text, ok := overlay[path]; ok {
			texts[i] = &text
			continue
		}
		if text, ok := generated[path]; ok {
			texts[i] = &text
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			raw, err := p.fsys.ReadFile(path)
			if err == nil {
				var text string
				if text, err = filestore.Decode(raw); err == nil {
					texts[i] = &text
					return nil
				}
			}
			if path == target {
				return fmt.Errorf("load %s: %w", path, err)
			}
			p.log.WithError(err).WithField("path", path).Debug("skipping source")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sources := make([]Source, 0, len(paths))
	for i, path := range paths {
		if texts[i] != nil {
			sources = append(sources, Source{Path: path, Text: *texts[i]})
		}
	}
	return sources, nil
}

func hostDiagnostics(lines *lineIndex, target string, in []host.Diagnostic) []Diagnostic {
	var out []Diagnostic
	for _, d := range in {
		if filepath.Clean(d.File) != target {
			continue
		}
		off := lines.offset(d.Line-1, d.Column-1)
		out = append(out, Diagnostic{
			Offset:   off,
			End:      off,
			Severity: d.Kind,
			Code:     d.Code,
			Message:  d.Message,
		})
	}
	return out
}
