// Package host talks to the external compiler host.
//
// The host is a separate process that loads projects and reports their
// configuration, references, sources and diagnostics asynchronously. Each
// project is registered under a context id; every event the host sends
// carries the context id of the project it describes.
//
// Messages are JSON objects framed with a 7-bit encoded length prefix and
// exchanged over a TCP connection to the port the process announces on
// standard output ("Listening on port N").
package host

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const defaultEventBuffer = 64

// Host is a client of the compiler host. It re-registers every project
// after a reconnect, and reconnects once for each Error event.
type Host struct {
	id       string
	launcher Launcher
	log      *logrus.Entry
	events   chan Event
	done     chan struct{}

	mu          sync.Mutex
	transport   *Transport
	stop        func() error
	nextContext int
	folders     map[int]string
	order       []int
	closed      bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Host.
type Option func(*Host)

// WithLogger sets the logger.
func WithLogger(log *logrus.Entry) Option {
	return func(h *Host) {
		h.log = log
	}
}

// WithEventBuffer sets the capacity of the event channel.
func WithEventBuffer(n int) Option {
	return func(h *Host) {
		h.events = make(chan Event, n)
	}
}

// New creates a host client. Call Start to connect.
func New(launcher Launcher, opts ...Option) *Host {
	h := &Host{
		id:          uuid.NewString(),
		launcher:    launcher,
		log:         logrus.NewEntry(logrus.StandardLogger()),
		events:      make(chan Event, defaultEventBuffer),
		done:        make(chan struct{}),
		nextContext: 1,
		folders:     make(map[int]string),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.log = h.log.WithField("host", h.id)
	h.ctx, h.cancel = context.WithCancel(context.Background())
	return h
}

// ID returns the host id sent with every message.
func (h *Host) ID() string { return h.id }

// Events returns decoded host events. The channel is closed by Close.
func (h *Host) Events() <-chan Event { return h.events }

// Start launches the host and sends Initialize for every project
// registered so far.
func (h *Host) Start(ctx context.Context) error {
	return h.connect(ctx)
}

// Connected reports whether a connection is open.
func (h *Host) Connected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.transport != nil
}

// Register assigns a context id to the project in folder. The project is
// initialized right away when connected, and on the next connect
// otherwise.
func (h *Host) Register(folder string) (int, error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return 0, ErrClosed
	}
	id := h.nextContext
	h.nextContext++
	h.folders[id] = folder
	h.order = append(h.order, id)
	t := h.transport
	h.mu.Unlock()

	if t != nil {
		if err := h.sendInitialize(t, id, folder); err != nil {
			// The next connect initializes it again.
			h.log.WithError(err).WithField("context", id).Warn("initialize failed")
		}
	}
	return id, nil
}

// Close disconnects and stops the host. It is safe to call more than once.
func (h *Host) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	t, stop := h.transport, h.stop
	h.transport, h.stop = nil, nil
	h.mu.Unlock()

	h.cancel()
	close(h.done)
	var err error
	if t != nil {
		err = t.Close()
	}
	if stop != nil {
		if stopErr := stop(); err == nil {
			err = stopErr
		}
	}
	h.wg.Wait()
	close(h.events)
	return err
}

func (h *Host) connect(ctx context.Context) error {
	conn, err := h.launcher.Launch(ctx)
	if err != nil {
		return err
	}
	t := NewTransport(conn.Conn, h.log)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		t.Close()
		if conn.Stop != nil {
			conn.Stop()
		}
		return ErrClosed
	}
	h.transport, h.stop = t, conn.Stop
	ids := append([]int(nil), h.order...)
	folders := make(map[int]string, len(ids))
	for _, id := range ids {
		folders[id] = h.folders[id]
	}
	h.wg.Add(1)
	h.mu.Unlock()

	go h.readLoop(t)

	for _, id := range ids {
		if err := h.sendInitialize(t, id, folders[id]); err != nil {
			h.log.WithError(err).WithField("context", id).Warn("initialize failed")
		}
	}
	h.log.WithField("projects", len(ids)).Info("host connected")
	return nil
}

func (h *Host) sendInitialize(t *Transport, id int, folder string) error {
	payload, err := json.Marshal(InitializePayload{ProjectFolder: folder})
	if err != nil {
		return err
	}
	return t.Send(Message{
		HostID:      h.id,
		MessageType: TypeInitialize,
		ContextID:   id,
		Payload:     payload,
	})
}

func (h *Host) readLoop(t *Transport) {
	defer h.wg.Done()

	err := t.Run(func(msg Message) {
		ev, err := DecodeEvent(msg)
		if err != nil {
			h.log.WithError(err).Warn("dropping host message")
			return
		}
		select {
		case h.events <- ev:
		case <-h.done:
			return
		}
		if ev.Type == TypeError {
			h.restart(t, ev)
		}
	})
	if err != nil {
		h.log.WithError(err).Warn("host connection lost")
	}
}

// restart replaces the connection that reported an error. A failed
// reconnect is logged and not retried.
func (h *Host) restart(old *Transport, ev Event) {
	h.mu.Lock()
	if h.closed || h.transport != old {
		h.mu.Unlock()
		return
	}
	stop := h.stop
	h.transport, h.stop = nil, nil
	h.wg.Add(1)
	h.mu.Unlock()

	if p, ok := ev.Payload.(ErrorPayload); ok {
		h.log.WithField("context", ev.ContextID).WithField("error", p.Message).Warn("host reported an error; restarting")
	}
	old.Close()
	if stop != nil {
		stop()
	}

	go func() {
		defer h.wg.Done()
		if err := h.connect(h.ctx); err != nil && !errors.Is(err, ErrClosed) {
			h.log.WithError(err).Error("host restart failed")
		}
	}()
}
