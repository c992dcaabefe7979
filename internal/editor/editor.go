// Package editor owns the authoritative editor state.
//
// All state lives in one immutable EditorState value held by a Machine.
// Client commands, host events and file system changes each describe a
// transition as a pure function of the current state; the machine commits
// transitions with compare-and-swap and sends their diffs to the connected
// client in commit order.
//
// Text edits do not go through the state machine. They are applied to the
// content store by a background task per edit, in the order of their
// per-content sequence numbers, and then schedule a debounced highlight
// pass. Highlight results are only sent while they belong to the newest
// edit of their content.
package editor

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dshills/quill/internal/dispatcher"
	"github.com/dshills/quill/internal/highlight"
	"github.com/dshills/quill/internal/host"
	"github.com/dshills/quill/internal/project/vfs"
	"github.com/dshills/quill/internal/project/watcher"
)

// Default delays.
const (
	DefaultHighlightDelay = 300 * time.Millisecond
	DefaultWatchDelay     = watcher.DefaultBatchDelay
)

// HostClient is the compiler host connection of a workspace.
type HostClient interface {
	Start(ctx context.Context) error
	Register(folder string) (int, error)
	Events() <-chan host.Event
	Close() error
}

// HostFactory creates the host client for a workspace.
type HostFactory func(workspace string) (HostClient, error)

// WatcherFactory creates a file system watcher for a workspace.
type WatcherFactory func() (watcher.Watcher, error)

// Editor serves client commands against the editor state.
type Editor struct {
	fsys       vfs.VFS
	log        *logrus.Entry
	machine    *Machine
	dispatcher *dispatcher.Dispatcher
	pipeline   *highlight.Pipeline

	hosts          HostFactory
	watchers       WatcherFactory
	browseRoot     string
	highlightDelay time.Duration
	watchDelay     time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	session *session
	closed  bool
}

// Option configures an Editor.
type Option func(*Editor)

// WithLogger sets the logger.
func WithLogger(log *logrus.Entry) Option {
	return func(e *Editor) {
		e.log = log
	}
}

// WithHostFactory enables the compiler host.
func WithHostFactory(f HostFactory) Option {
	return func(e *Editor) {
		e.hosts = f
	}
}

// WithWatcherFactory enables file system watching.
func WithWatcherFactory(f WatcherFactory) Option {
	return func(e *Editor) {
		e.watchers = f
	}
}

// WithPipeline sets the highlight pipeline.
func WithPipeline(p *highlight.Pipeline) Option {
	return func(e *Editor) {
		e.pipeline = p
	}
}

// WithBrowseRoot sets the directory the project browser starts in.
func WithBrowseRoot(dir string) Option {
	return func(e *Editor) {
		e.browseRoot = dir
	}
}

// WithHighlightDelay sets the quiet period before a highlight pass.
func WithHighlightDelay(d time.Duration) Option {
	return func(e *Editor) {
		e.highlightDelay = d
	}
}

// WithWatchDelay sets the quiet period before a rescan.
func WithWatchDelay(d time.Duration) Option {
	return func(e *Editor) {
		e.watchDelay = d
	}
}

// New creates an editor over fsys with no workspace open.
func New(fsys vfs.VFS, opts ...Option) *Editor {
	e := &Editor{
		fsys:           fsys,
		log:            logrus.NewEntry(logrus.StandardLogger()),
		highlightDelay: DefaultHighlightDelay,
		watchDelay:     DefaultWatchDelay,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.pipeline == nil {
		e.pipeline = highlight.NewPipeline(highlight.NewGoCompiler(fsys, highlight.WithGoLogger(e.log)), fsys,
			highlight.WithLogger(e.log))
	}
	e.ctx, e.cancel = context.WithCancel(context.Background())
	e.machine = NewMachine(e.log)
	e.machine.OnCommit(e.registerProjects)

	reg := dispatcher.NewRegistry()
	e.registerCommands(reg)
	dcfg := dispatcher.DefaultConfig()
	dcfg.Logger = e.log
	e.dispatcher = dispatcher.New(reg, dcfg)
	return e
}

// Dispatcher returns the command dispatcher.
func (e *Editor) Dispatcher() *dispatcher.Dispatcher { return e.dispatcher }

// Machine returns the state machine.
func (e *Editor) Machine() *Machine { return e.machine }

// State returns the current state.
func (e *Editor) State() *EditorState { return e.machine.State() }

// Connect attaches the client sink and sends it the full state.
func (e *Editor) Connect(sink Sink) error { return e.machine.Connect(sink) }

// Disconnect detaches the client sink.
func (e *Editor) Disconnect(sink Sink) { e.machine.Disconnect(sink) }

// Close disposes the open workspace and stops background work.
func (e *Editor) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	s := e.session
	e.session = nil
	e.mu.Unlock()

	e.cancel()
	if s != nil {
		s.close()
	}
	e.wg.Wait()
	return nil
}

func (e *Editor) currentSession() *session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session
}

// sendError reports a background failure of command to the client.
func (e *Editor) sendError(command string, err error) {
	e.machine.Send(Message{Type: MessageError, Payload: ErrorPayload{Command: command, Message: err.Error()}})
}

// ErrorPayload is the payload of an error message.
type ErrorPayload struct {
	Command string `json:"command"`
	Message string `json:"message"`
}
