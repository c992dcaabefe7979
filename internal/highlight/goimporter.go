package highlight

import (
	"fmt"
	"go/ast"
	"go/importer"
	"go/parser"
	"go/token"
	"go/types"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/dshills/quill/internal/project/vfs"
)

func sourceImporter(fset *token.FileSet) types.Importer {
	return importer.ForCompiler(fset, "source", nil)
}

// goImporter type-checks project packages and reference directories on
// demand. Packages are cached by directory.
type goImporter struct {
	fset     *token.FileSet
	fsys     vfs.VFS
	log      *logrus.Entry
	project  map[string][]*goFile
	refs     []string
	fallback types.Importer
	onError  func(error)

	packages map[string]*types.Package
	loading  map[string]bool
}

// Import implements types.Importer. Paths that look like standard library
// packages try the fallback first.
func (imp *goImporter) Import(path string) (*types.Package, error) {
	if path == "unsafe" {
		return types.Unsafe, nil
	}
	std := !strings.Contains(strings.SplitN(path, "/", 2)[0], ".")
	if std && imp.fallback != nil {
		if pkg, err := imp.fallback.Import(path); err == nil {
			return pkg, nil
		}
	}
	if dir, ok := imp.resolve(path); ok {
		return imp.load(dir, path)
	}
	if !std && imp.fallback != nil {
		return imp.fallback.Import(path)
	}
	return nil, fmt.Errorf("%w: %s", ErrPackageNotFound, path)
}

// resolve picks the directory sharing the longest trailing run of path
// elements with the import path. Project directories win ties.
func (imp *goImporter) resolve(path string) (string, bool) {
	best, bestLen := "", 0
	consider := func(dir string) {
		if n := suffixMatch(dir, path); n > bestLen {
			best, bestLen = dir, n
		}
	}
	for _, dir := range sortedKeys(imp.project) {
		consider(dir)
	}
	for _, dir := range imp.refs {
		consider(filepath.Clean(dir))
	}
	return best, bestLen > 0
}

func suffixMatch(dir, importPath string) int {
	slashDir := filepath.ToSlash(dir)
	elems := strings.Split(importPath, "/")
	for k := len(elems); k >= 1; k-- {
		suffix := strings.Join(elems[len(elems)-k:], "/")
		if slashDir == suffix || strings.HasSuffix(slashDir, "/"+suffix) {
			return k
		}
	}
	return 0
}

func (imp *goImporter) checkProject(dir string) {
	if _, err := imp.load(dir, dir); err != nil {
		imp.log.WithError(err).WithField("dir", dir).Debug("package check failed")
	}
}

func (imp *goImporter) load(dir, path string) (*types.Package, error) {
	if pkg, ok := imp.packages[dir]; ok {
		return pkg, nil
	}
	if imp.loading[dir] {
		return nil, fmt.Errorf("%w: %s", ErrImportCycle, path)
	}
	imp.loading[dir] = true
	defer delete(imp.loading, dir)

	sources, isProject := imp.project[dir]
	var files []*ast.File
	if isProject {
		files = packageFiles(sources)
	} else {
		var err error
		if files, err = imp.parseDir(dir); err != nil {
			return nil, err
		}
	}

	conf := types.Config{
		Importer:    imp,
		FakeImportC: true,
		Error: func(err error) {
			if isProject {
				imp.onError(err)
			}
		},
	}
	var info *types.Info
	if isProject {
		info = &types.Info{
			Defs:      make(map[*ast.Ident]types.Object),
			Uses:      make(map[*ast.Ident]types.Object),
			Implicits: make(map[ast.Node]types.Object),
			Scopes:    make(map[ast.Node]*types.Scope),
		}
	}
	pkg, _ := conf.Check(path, imp.fset, files, info)
	if pkg == nil {
		return nil, fmt.Errorf("%w: %s", ErrPackageNotFound, path)
	}
	if isProject {
		for _, f := range sources {
			f.pkg, f.info = pkg, info
		}
	}
	imp.packages[dir] = pkg
	return pkg, nil
}

// packageFiles keeps the files of the dominant package name so that a
// stray file does not fail the whole directory.
func packageFiles(sources []*goFile) []*ast.File {
	counts := make(map[string]int)
	for _, f := range sources {
		counts[f.ast.Name.Name]++
	}
	name, best := "", -1
	for n, c := range counts {
		if c > best || (c == best && n < name) {
			name, best = n, c
		}
	}
	files := make([]*ast.File, 0, len(sources))
	for _, f := range sources {
		if f.ast.Name.Name == name {
			files = append(files, f.ast)
		}
	}
	return files
}

func (imp *goImporter) parseDir(dir string) ([]*ast.File, error) {
	entries, err := imp.fsys.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read reference %s: %w", dir, err)
	}
	var (
		files []*ast.File
		name  string
	)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".go") || strings.HasSuffix(e.Name(), "_test.go") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		src, err := imp.fsys.ReadFile(path)
		if err != nil {
			imp.log.WithError(err).WithField("path", path).Debug("skipping reference file")
			continue
		}
		f, err := parser.ParseFile(imp.fset, path, src, parser.SkipObjectResolution)
		if f == nil {
			imp.log.WithError(err).WithField("path", path).Debug("skipping reference file")
			continue
		}
		if name == "" {
			name = f.Name.Name
		}
		if f.Name.Name != name {
			continue
		}
		files = append(files, f)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no Go files in %s", ErrPackageNotFound, dir)
	}
	return files, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
