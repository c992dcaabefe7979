package filestore

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/dshills/quill/internal/project"
	"github.com/dshills/quill/internal/project/vfs"
)

func newTestStore(t *testing.T) (*Store, *vfs.MemFS) {
	t.Helper()
	fs := vfs.NewMemFS()
	require.NoError(t, fs.AddFile("/ws/proj/Foo.cs", "hello world"))
	require.NoError(t, fs.AddFile("/ws/proj/Bar.cs", "bar"))
	return NewStore(fs, "/ws"), fs
}

func TestParseContentID(t *testing.T) {
	tests := []struct {
		in      string
		want    ContentID
		wantErr error
	}{
		{"edit:proj/Foo.cs", ContentID{Kind: "edit", Path: "proj/Foo.cs"}, nil},
		{"edit:C:/src/a.cs", ContentID{Kind: "edit", Path: "C:/src/a.cs"}, nil},
		{"view:proj/Foo.cs", ContentID{}, ErrUnknownKind},
		{"proj/Foo.cs", ContentID{}, ErrInvalidContentID},
		{"edit:", ContentID{}, ErrInvalidContentID},
		{":x", ContentID{}, ErrInvalidContentID},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseContentID(tt.in)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.in, got.String())
		})
	}
}

func TestUnknownKindMessage(t *testing.T) {
	_, err := ParseContentID("preview:a.cs")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"preview"`)
}

func TestGetOrLoadCaches(t *testing.T) {
	store, fs := newTestStore(t)

	first, err := store.GetOrLoad("edit:proj/Foo.cs", false)
	require.NoError(t, err)
	text, err := first.Text()
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)
	assert.False(t, first.Dirty())
	assert.Equal(t, "/ws/proj/Foo.cs", first.AbsPath())

	require.NoError(t, fs.WriteFile("/ws/proj/Foo.cs", []byte("changed"), 0644))

	second, err := store.GetOrLoad("edit:proj/Foo.cs", false)
	require.NoError(t, err)
	assert.Same(t, first, second)

	fresh, err := store.GetOrLoad("edit:proj/Foo.cs", true)
	require.NoError(t, err)
	text, err = fresh.Text()
	require.NoError(t, err)
	assert.Equal(t, "changed", text)

	stored, ok := store.Get("edit:proj/Foo.cs")
	require.True(t, ok)
	assert.Same(t, first, stored, "forced reads do not update the store")
}

func TestGetOrLoadLazy(t *testing.T) {
	store, fs := newTestStore(t)

	c, err := store.GetOrLoad("edit:proj/Bar.cs", false)
	require.NoError(t, err)

	// Text is read on first use, not at creation.
	require.NoError(t, fs.WriteFile("/ws/proj/Bar.cs", []byte("later"), 0644))
	text, err := c.Text()
	require.NoError(t, err)
	assert.Equal(t, "later", text)
}

func TestGetOrLoadErrors(t *testing.T) {
	store, fs := newTestStore(t)
	require.NoError(t, fs.AddFile("/ws/bin.dat", "a\x00b"))

	_, err := store.GetOrLoad("other:proj/Foo.cs", false)
	assert.ErrorIs(t, err, ErrUnknownKind)

	_, err = store.GetOrLoad("edit:proj/Missing.cs", false)
	var pathErr *perrors.PathError
	assert.ErrorAs(t, err, &pathErr)

	_, err = store.GetOrLoad("edit:proj", false)
	assert.ErrorIs(t, err, perrors.ErrIsDirectory)

	_, err = store.GetOrLoad("edit:../etc/passwd", false)
	assert.ErrorIs(t, err, perrors.ErrNotInWorkspace)

	_, err = store.GetOrLoad("edit:bin.dat", true)
	assert.ErrorIs(t, err, perrors.ErrBinaryFile)
}

func TestCompareAndSwap(t *testing.T) {
	store, _ := newTestStore(t)

	c, err := store.GetOrLoad("edit:proj/Foo.cs", false)
	require.NoError(t, err)
	edited := c.WithText("hello there")
	assert.True(t, edited.Dirty())
	assert.False(t, c.Dirty(), "WithText leaves the original untouched")

	require.NoError(t, store.CompareAndSwap(c, edited))
	got, _ := store.Get("edit:proj/Foo.cs")
	assert.Same(t, edited, got)

	err = store.CompareAndSwap(c, c.WithText("stale"))
	assert.ErrorIs(t, err, ErrConflict)
	assert.Contains(t, err.Error(), "content has been updated by other method, state inconclusive")

	got, _ = store.Get("edit:proj/Foo.cs")
	assert.Same(t, edited, got, "failed swap leaves the store unchanged")
}

func TestCompareAndSwapConcurrent(t *testing.T) {
	store, _ := newTestStore(t)
	base, err := store.GetOrLoad("edit:proj/Foo.cs", false)
	require.NoError(t, err)

	const n = 16
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		winners  int
		conflict int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.CompareAndSwap(base, base.WithText("x"))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				winners++
			} else {
				conflict++
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, winners)
	assert.Equal(t, n-1, conflict)
}

func TestRemove(t *testing.T) {
	store, fs := newTestStore(t)
	c, err := store.GetOrLoad("edit:proj/Foo.cs", false)
	require.NoError(t, err)
	require.NoError(t, store.CompareAndSwap(c, c.WithText("edited")))

	store.Remove("edit:proj/Foo.cs")
	_, ok := store.Get("edit:proj/Foo.cs")
	assert.False(t, ok)

	require.NoError(t, fs.WriteFile("/ws/proj/Foo.cs", []byte("disk"), 0644))
	loaded, err := store.GetOrLoad("edit:proj/Foo.cs", false)
	require.NoError(t, err)
	text, err := loaded.Text()
	require.NoError(t, err)
	assert.Equal(t, "disk", text)
	assert.False(t, loaded.Dirty())
}

func TestOverlay(t *testing.T) {
	store, _ := newTestStore(t)
	c, err := store.GetOrLoad("edit:proj/Foo.cs", false)
	require.NoError(t, err)
	require.NoError(t, store.CompareAndSwap(c, c.WithText("live")))
	_, err = store.GetOrLoad("edit:proj/Bar.cs", false)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"/ws/proj/Foo.cs": "live",
		"/ws/proj/Bar.cs": "bar",
	}, store.Overlay())
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want string
	}{
		{"plain", []byte("abc"), "abc"},
		{"utf8 bom", []byte("\xef\xbb\xbfabc"), "abc"},
		{"utf16le bom", []byte{0xff, 0xfe, 'a', 0, 'b', 0}, "ab"},
		{"utf16be bom", []byte{0xfe, 0xff, 0, 'a', 0, 'b'}, "ab"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := Decode([]byte("a\x00b"))
	assert.ErrorIs(t, err, perrors.ErrBinaryFile)
}
