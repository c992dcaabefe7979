package editor

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime/debug"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/dshills/quill/internal/dispatcher"
	"github.com/dshills/quill/internal/project/filestore"
	"github.com/dshills/quill/internal/project/tree"
	"github.com/dshills/quill/internal/project/watcher"
)

// session holds the resources of one open workspace. It is disposed when
// another workspace is opened.
type session struct {
	editor     *Editor
	root       string
	log        *logrus.Entry
	store      *filestore.Store
	host       HostClient
	watcher    watcher.Watcher
	edits      *sequencer
	highlights *Debouncer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	closed      bool
	registered  map[string]int
	registering map[string]bool
	gen         map[string]uint64
	applied     map[string]int
}

func (e *Editor) newSession(root string) *session {
	ctx, cancel := context.WithCancel(e.ctx)
	s := &session{
		editor:      e,
		root:        root,
		log:         e.log.WithField("workspace", root),
		store:       filestore.NewStore(e.fsys, root),
		edits:       newSequencer(),
		ctx:         ctx,
		cancel:      cancel,
		registered:  make(map[string]int),
		registering: make(map[string]bool),
		gen:         make(map[string]uint64),
		applied:     make(map[string]int),
	}
	s.highlights = NewDebouncer(e.highlightDelay, func(cid string) {
		s.runTracked("", func() { e.runHighlight(s, cid) })
	})

	if e.hosts != nil {
		hc, err := e.hosts(root)
		if err != nil {
			s.log.WithError(err).Warn("compiler host unavailable")
		} else {
			s.host = hc
		}
	}
	return s
}

// start connects the host and begins watching the workspace.
func (s *session) start() {
	if s.host != nil {
		s.wg.Add(2)
		go func() {
			defer s.wg.Done()
			if err := s.host.Start(s.ctx); err != nil && s.ctx.Err() == nil {
				s.log.WithError(err).Error("failed to start compiler host")
			}
		}()
		go func() {
			defer s.wg.Done()
			for ev := range s.host.Events() {
				s.editor.applyHostEvent(s, ev)
			}
		}()
	}

	if s.editor.watchers != nil {
		w, err := s.editor.watchers()
		if err != nil {
			s.log.WithError(err).Warn("file watching disabled")
			return
		}
		if err := w.WatchRecursive(s.root); err != nil {
			s.log.WithError(err).Warn("file watching disabled")
			w.Close()
			return
		}
		s.watcher = w
		batcher := watcher.NewBatcher(s.editor.watchDelay, s.onFiles, func(err error) {
			s.log.WithError(err).Warn("watcher error")
		})
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			batcher.Run(s.ctx, w)
		}()
	}
}

// goBackground runs fn as a tracked background task of the session. A
// panic in fn is logged and reported to the client as a failure of command.
func (s *session) goBackground(command string, fn func()) error {
	if !s.acquire() {
		return ErrClosed
	}
	go func() {
		defer s.wg.Done()
		defer s.recoverTask(command)
		fn()
	}()
	return nil
}

// runTracked runs fn on the calling goroutine as a tracked task. It does
// nothing once the session is closed, and close waits for it.
func (s *session) runTracked(command string, fn func()) {
	if !s.acquire() {
		return
	}
	defer s.wg.Done()
	defer s.recoverTask(command)
	fn()
}

func (s *session) acquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.wg.Add(1)
	return true
}

// recoverTask must be deferred directly by the task.
func (s *session) recoverTask(command string) {
	r := recover()
	if r == nil {
		return
	}
	s.log.WithFields(logrus.Fields{
		"command": command,
		"panic":   r,
		"stack":   string(debug.Stack()),
	}).Error("background task panicked")
	if command != "" && s.ctx.Err() == nil {
		s.editor.sendError(command, fmt.Errorf("%w: %v", dispatcher.ErrPanic, r))
	}
}

func (s *session) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.highlights.Stop()
	if s.watcher != nil {
		if err := s.watcher.Close(); err != nil {
			s.log.WithError(err).Debug("closing watcher")
		}
	}
	if s.host != nil {
		if err := s.host.Close(); err != nil {
			s.log.WithError(err).Debug("closing compiler host")
		}
	}
	s.wg.Wait()
}

// abs returns the absolute path of a tree key.
func (s *session) abs(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

// register asks the host for a context id for p. Projects the host already
// knows get their previous id back.
func (s *session) register(p *tree.Project) (int, bool) {
	key := p.Key()
	s.mu.Lock()
	if id, ok := s.registered[key]; ok {
		s.mu.Unlock()
		return id, true
	}
	if s.registering[key] || s.closed {
		s.mu.Unlock()
		return 0, false
	}
	s.registering[key] = true
	s.mu.Unlock()

	id, err := s.host.Register(s.abs(key))

	s.mu.Lock()
	delete(s.registering, key)
	if err == nil {
		s.registered[key] = id
	}
	s.mu.Unlock()
	if err != nil {
		s.log.WithError(err).WithField("project", key).Warn("project registration failed")
		return 0, false
	}
	return id, true
}

// onFiles handles a batch of file system changes. Structural changes
// rescan the tree; writes to unmodified open files reload them.
func (s *session) onFiles(events []watcher.Event) {
	structural := false
	for _, ev := range events {
		if ev.Op.Structural() {
			structural = true
		}
		if ev.Op.Has(watcher.OpWrite) {
			s.reloadIfClean(ev.Path)
		}
	}
	if structural {
		s.editor.rescan(s)
	}
}

func (s *session) reloadIfClean(path string) {
	rel, err := filepath.Rel(s.root, path)
	if err != nil || !filepath.IsLocal(rel) {
		return
	}
	cid := filestore.KindEdit + ":" + filepath.ToSlash(rel)
	cur, ok := s.store.Get(cid)
	if !ok || cur.Dirty() {
		return
	}
	fresh, err := s.store.GetOrLoad(cid, true)
	if err != nil {
		s.log.WithError(err).WithField("cid", cid).Debug("reload failed")
		return
	}
	text, err := fresh.Text()
	if err != nil {
		return
	}
	if old, err := cur.Text(); err == nil && old == text {
		return
	}
	if err := s.store.CompareAndSwap(cur, fresh); err != nil {
		// Edited meanwhile; the buffer wins.
		return
	}
	s.editor.machine.Send(Message{Type: MessageContent, Payload: ContentPayload{ContentID: cid, Text: text}})
	s.refresh(cid)
}
