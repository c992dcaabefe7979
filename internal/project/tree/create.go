package tree

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dshills/quill/internal/project/vfs"
)

const (
	// ProjectManifest marks a directory as a project.
	ProjectManifest = "project.json"

	// PackagesDir is the workspace level package cache folder.
	PackagesDir = "packages"

	maxScanDepth = 64
)

// buildOutputDirs are skipped at the top level of a project.
var buildOutputDirs = map[string]bool{"bin": true, "obj": true}

type scope int

const (
	scopeRoot scope = iota
	scopeWorkspace
	scopeProjectRoot
	scopeProject
)

// Create scans the directory at root and returns the workspace tree. The
// root entry has an empty key and is open; everything below it is closed.
//
// Hidden entries are skipped. A "packages" folder directly under root is
// listed without contents. A folder containing project.json becomes a
// Project; its manifest, build output folders and nested projects are not
// listed.
func Create(fsys vfs.VFS, root string) (*Directory, error) {
	info, err := fsys.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("scan workspace %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scan workspace %s: %w", root, ErrNotDirectory)
	}

	s := &scanner{fs: fsys}
	children, err := s.scan(root, "", scopeRoot, 0)
	if err != nil {
		return nil, fmt.Errorf("scan workspace %s: %w", root, err)
	}
	return NewDirectory("", info.Name(), true, children), nil
}

type scanner struct {
	fs vfs.VFS
}

func (s *scanner) scan(abs, key string, sc scope, depth int) ([]Entry, error) {
	infos, err := s.fs.ReadDir(abs)
	if err != nil {
		if sc == scopeRoot {
			return nil, err
		}
		// Unreadable folders are shown empty.
		return []Entry{}, nil
	}

	var dirs, files []Entry
	for _, info := range infos {
		if info.IsHidden() {
			continue
		}
		name := info.Name()
		childAbs := s.fs.Join(abs, name)
		childKey := joinKey(key, name)

		if !info.IsDir() {
			if sc == scopeProjectRoot && name == ProjectManifest {
				continue
			}
			files = append(files, NewFile(childKey, name))
			continue
		}
		if depth >= maxScanDepth {
			continue
		}

		switch {
		case sc == scopeRoot && name == PackagesDir:
			dirs = append(dirs, NewPackages(childKey, name))
		case s.isProject(childAbs):
			if sc == scopeProjectRoot || sc == scopeProject {
				continue
			}
			children, err := s.scan(childAbs, childKey, scopeProjectRoot, depth+1)
			if err != nil {
				return nil, err
			}
			dirs = append(dirs, NewProject(childKey, name, false, children))
		case sc == scopeProjectRoot && buildOutputDirs[strings.ToLower(name)]:
			continue
		default:
			next := scopeWorkspace
			if sc == scopeProjectRoot || sc == scopeProject {
				next = scopeProject
			}
			children, err := s.scan(childAbs, childKey, next, depth+1)
			if err != nil {
				return nil, err
			}
			dirs = append(dirs, NewDirectory(childKey, name, false, children))
		}
	}

	sortEntries(dirs)
	sortEntries(files)
	out := make([]Entry, 0, len(dirs)+len(files))
	out = append(out, dirs...)
	return append(out, files...), nil
}

func (s *scanner) isProject(dir string) bool {
	manifest := s.fs.Join(dir, ProjectManifest)
	return s.fs.Exists(manifest) && !s.fs.IsDir(manifest)
}

func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return lessName(entries[i].Name(), entries[j].Name())
	})
}

// lessName orders case-insensitively, falling back to byte order so that
// names differing only in case have a stable order.
func lessName(a, b string) bool {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	if la != lb {
		return la < lb
	}
	return a < b
}

func joinKey(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "/" + name
}
