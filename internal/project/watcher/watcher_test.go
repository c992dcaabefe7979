package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOp(t *testing.T) {
	op := OpCreate | OpWrite
	assert.True(t, op.Has(OpCreate))
	assert.False(t, op.Has(OpRemove))
	assert.True(t, op.Structural())
	assert.False(t, OpWrite.Structural())
	assert.Equal(t, "RENAME", OpRename.String())
	assert.Equal(t, "UNKNOWN", op.String())
}

type fakeWatcher struct {
	events chan Event
	errors chan error
}

func newFakeWatcher() *fakeWatcher {
	return &fakeWatcher{events: make(chan Event, 16), errors: make(chan error, 4)}
}

func (f *fakeWatcher) WatchRecursive(string) error { return nil }
func (f *fakeWatcher) Events() <-chan Event        { return f.events }
func (f *fakeWatcher) Errors() <-chan error        { return f.errors }
func (f *fakeWatcher) Close() error {
	close(f.events)
	close(f.errors)
	return nil
}

type batchRecorder struct {
	mu      sync.Mutex
	batches [][]Event
	errs    []error
}

func (r *batchRecorder) handle(events []Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, events)
}

func (r *batchRecorder) onError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *batchRecorder) snapshot() ([][]Event, []error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]Event(nil), r.batches...), append([]error(nil), r.errs...)
}

func TestBatcherCoalesces(t *testing.T) {
	w := newFakeWatcher()
	rec := &batchRecorder{}
	b := NewBatcher(20*time.Millisecond, rec.handle, rec.onError)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		b.Run(ctx, w)
		close(done)
	}()

	w.events <- Event{Path: "/ws/b.go", Op: OpWrite}
	w.events <- Event{Path: "/ws/a.go", Op: OpCreate}
	w.events <- Event{Path: "/ws/a.go", Op: OpWrite}
	w.errors <- errors.New("overflow")

	require.Eventually(t, func() bool {
		batches, _ := rec.snapshot()
		return len(batches) == 1
	}, time.Second, 5*time.Millisecond)

	batches, errs := rec.snapshot()
	require.Len(t, batches[0], 2)
	assert.Equal(t, "/ws/a.go", batches[0][0].Path)
	assert.Equal(t, OpCreate|OpWrite, batches[0][0].Op)
	assert.Equal(t, "/ws/b.go", batches[0][1].Path)
	require.Len(t, errs, 1)

	cancel()
	<-done
}

func TestBatcherFlushesOnClose(t *testing.T) {
	w := newFakeWatcher()
	rec := &batchRecorder{}
	b := NewBatcher(time.Hour, rec.handle, nil)

	w.events <- Event{Path: "/ws/a.go", Op: OpRemove}
	require.NoError(t, w.Close())
	b.Run(context.Background(), w)

	batches, _ := rec.snapshot()
	require.Len(t, batches, 1)
	assert.Equal(t, OpRemove, batches[0][0].Op)
}

func TestFSNotifyWatcher(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "bin"), 0755))

	w, err := NewFSNotifyWatcher(WithIgnoreNames("bin"))
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.WatchRecursive(root))
	assert.Equal(t, 2, w.WatchedPaths(), "root and src; hidden and ignored dirs are skipped")

	target := filepath.Join(root, "src", "main.go")
	require.NoError(t, os.WriteFile(target, []byte("package main"), 0644))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-w.Events():
			if ev.Path == target && ev.Op.Has(OpCreate) {
				return
			}
		case <-deadline:
			t.Fatal("no create event for", target)
		}
	}
}

func TestFSNotifyWatcherMissingPath(t *testing.T) {
	w, err := NewFSNotifyWatcher()
	require.NoError(t, err)
	defer w.Close()

	err = w.WatchRecursive(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, ErrPathNotExist)
}

func TestFSNotifyWatcherClose(t *testing.T) {
	w, err := NewFSNotifyWatcher()
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close(), "close is idempotent")

	_, ok := <-w.Events()
	assert.False(t, ok)
	assert.ErrorIs(t, w.WatchRecursive(t.TempDir()), ErrWatcherClosed)
}
