package filestore

import (
	"bytes"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	perrors "github.com/dshills/quill/internal/project"
	"github.com/dshills/quill/internal/project/vfs"
)

// binarySniffLen is how much of a decoded file is checked for NUL bytes.
const binarySniffLen = 8000

// Store caches contents by id. It holds at most one live Content per id.
type Store struct {
	fs   vfs.VFS
	root string

	maxFileSize int64

	mu       sync.RWMutex
	contents map[ContentID]*Content
}

// Option configures a Store.
type Option func(*Store)

// WithMaxFileSize sets the maximum file size. Zero means unlimited.
func WithMaxFileSize(size int64) Option {
	return func(s *Store) {
		s.maxFileSize = size
	}
}

// NewStore creates a store that resolves content paths against root.
func NewStore(fsys vfs.VFS, root string, opts ...Option) *Store {
	s := &Store{
		fs:          fsys,
		root:        root,
		maxFileSize: 10 * 1024 * 1024, // 10MB default
		contents:    make(map[ContentID]*Content),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetOrLoad returns the live content for cid. When forceRead is false a
// stored content is returned without touching disk, and a new one is
// created and stored otherwise. When forceRead is true the file is read
// fresh and the store is neither consulted nor updated.
func (s *Store) GetOrLoad(cid string, forceRead bool) (*Content, error) {
	id, err := ParseContentID(cid)
	if err != nil {
		return nil, err
	}
	abs, err := s.resolve(id.Path)
	if err != nil {
		return nil, err
	}

	if forceRead {
		text, err := s.read(abs)
		if err != nil {
			return nil, err
		}
		return newLoadedContent(id, abs, text, false), nil
	}

	s.mu.RLock()
	c, ok := s.contents[id]
	s.mu.RUnlock()
	if ok {
		return c, nil
	}

	info, err := s.fs.Stat(abs)
	if err != nil {
		return nil, &perrors.PathError{Op: "load", Path: abs, Err: err}
	}
	if info.IsDir() {
		return nil, &perrors.PathError{Op: "load", Path: abs, Err: perrors.ErrIsDirectory}
	}

	c = newLazyContent(id, abs, func() (string, error) { return s.read(abs) })

	s.mu.Lock()
	defer s.mu.Unlock()
	// Another goroutine may have loaded it meanwhile.
	if existing, ok := s.contents[id]; ok {
		return existing, nil
	}
	s.contents[id] = c
	return c, nil
}

// Get returns the stored content for cid without loading it.
func (s *Store) Get(cid string) (*Content, bool) {
	id, err := ParseContentID(cid)
	if err != nil {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.contents[id]
	return c, ok
}

// CompareAndSwap replaces old with next if old is still the stored value.
// Otherwise it fails with ErrConflict and the store is unchanged.
func (s *Store) CompareAndSwap(old, next *Content) error {
	if old == nil || next == nil || old.id != next.id {
		return fmt.Errorf("%w: mismatched contents", ErrConflict)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.contents[old.id] != old {
		return fmt.Errorf("%w: %s", ErrConflict, old.id)
	}
	s.contents[old.id] = next
	return nil
}

// Remove drops the stored content for cid.
func (s *Store) Remove(cid string) {
	id, err := ParseContentID(cid)
	if err != nil {
		return
	}
	s.mu.Lock()
	delete(s.contents, id)
	s.mu.Unlock()
}

// Contents returns the stored contents sorted by path.
func (s *Store) Contents() []*Content {
	s.mu.RLock()
	out := make([]*Content, 0, len(s.contents))
	for _, c := range s.contents {
		out = append(out, c)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].id.Path < out[j].id.Path })
	return out
}

// Overlay returns the text of every loaded buffer keyed by absolute path.
// Buffers whose text failed to load are skipped.
func (s *Store) Overlay() map[string]string {
	out := make(map[string]string)
	for _, c := range s.Contents() {
		if text, err := c.Text(); err == nil {
			out[c.absPath] = text
		}
	}
	return out
}

// Root returns the directory content paths are resolved against.
func (s *Store) Root() string { return s.root }

func (s *Store) resolve(rel string) (string, error) {
	clean := path.Clean(strings.ReplaceAll(rel, "\\", "/"))
	if clean == "." {
		return "", &perrors.PathError{Op: "load", Path: rel, Err: perrors.ErrIsDirectory}
	}
	if path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", &perrors.PathError{Op: "load", Path: rel, Err: perrors.ErrNotInWorkspace}
	}
	return s.fs.Join(s.root, clean), nil
}

func (s *Store) read(abs string) (string, error) {
	info, err := s.fs.Stat(abs)
	if err != nil {
		return "", &perrors.PathError{Op: "read", Path: abs, Err: err}
	}
	if info.IsDir() {
		return "", &perrors.PathError{Op: "read", Path: abs, Err: perrors.ErrIsDirectory}
	}
	if s.maxFileSize > 0 && info.Size() > s.maxFileSize {
		return "", &perrors.PathError{Op: "read", Path: abs, Err: perrors.ErrFileTooLarge}
	}

	raw, err := s.fs.ReadFile(abs)
	if err != nil {
		return "", &perrors.PathError{Op: "read", Path: abs, Err: err}
	}
	text, err := Decode(raw)
	if err != nil {
		return "", &perrors.PathError{Op: "read", Path: abs, Err: err}
	}
	return text, nil
}

// Decode converts file bytes to text. A UTF-8 or UTF-16 byte order mark
// selects the encoding and is dropped; without one UTF-8 is assumed.
// Decoded text containing NUL bytes is rejected as binary.
func Decode(raw []byte) (string, error) {
	decoded, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), raw)
	if err != nil {
		return "", err
	}
	sniff := decoded
	if len(sniff) > binarySniffLen {
		sniff = sniff[:binarySniffLen]
	}
	if bytes.IndexByte(sniff, 0) >= 0 {
		return "", perrors.ErrBinaryFile
	}
	return string(decoded), nil
}
