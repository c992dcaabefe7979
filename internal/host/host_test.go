package host

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServer plays the host side of each connection the launcher makes.
type fakeServer struct {
	ln       net.Listener
	accepted chan *fakeConn

	mu       sync.Mutex
	launches int
	stops    int
	fail     bool
}

type fakeConn struct {
	conn   net.Conn
	reader *bufio.Reader
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := &fakeServer{ln: ln, accepted: make(chan *fakeConn, 8)}
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			s.accepted <- &fakeConn{conn: c, reader: bufio.NewReader(c)}
		}
	}()
	t.Cleanup(func() { ln.Close() })
	return s
}

func (s *fakeServer) Launch(ctx context.Context) (Connection, error) {
	s.mu.Lock()
	s.launches++
	fail := s.fail
	s.mu.Unlock()
	if fail {
		return Connection{}, errors.New("launch failed")
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", s.ln.Addr().String())
	if err != nil {
		return Connection{}, err
	}
	return Connection{Conn: conn, Stop: func() error {
		s.mu.Lock()
		s.stops++
		s.mu.Unlock()
		return nil
	}}, nil
}

func (s *fakeServer) next(t *testing.T) *fakeConn {
	t.Helper()
	select {
	case c := <-s.accepted:
		t.Cleanup(func() { c.conn.Close() })
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("no connection")
		return nil
	}
}

func (c *fakeConn) read(t *testing.T) Message {
	t.Helper()
	require.NoError(t, c.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	data, err := ReadFrame(c.reader)
	require.NoError(t, err)
	var m Message
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

func (c *fakeConn) send(t *testing.T, typ string, contextID int, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	data, err := json.Marshal(Message{HostID: "host", MessageType: typ, ContextID: contextID, Payload: raw})
	require.NoError(t, err)
	require.NoError(t, WriteFrame(c.conn, data))
}

func initializeFolder(t *testing.T, m Message) string {
	t.Helper()
	require.Equal(t, TypeInitialize, m.MessageType)
	var p InitializePayload
	require.NoError(t, json.Unmarshal(m.Payload, &p))
	return p.ProjectFolder
}

func nextEvent(t *testing.T, h *Host) Event {
	t.Helper()
	select {
	case ev := <-h.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event")
		return Event{}
	}
}

func TestHostRegisterBeforeStart(t *testing.T) {
	srv := newFakeServer(t)
	h := New(srv, WithLogger(testLogger()))
	defer h.Close()

	id1, err := h.Register("/ws/App")
	require.NoError(t, err)
	id2, err := h.Register("/ws/Lib")
	require.NoError(t, err)
	assert.Equal(t, 1, id1)
	assert.Equal(t, 2, id2)
	assert.False(t, h.Connected())

	require.NoError(t, h.Start(context.Background()))
	assert.True(t, h.Connected())
	c := srv.next(t)

	m := c.read(t)
	assert.Equal(t, h.ID(), m.HostID)
	assert.Equal(t, 1, m.ContextID)
	assert.Equal(t, "/ws/App", initializeFolder(t, m))
	m = c.read(t)
	assert.Equal(t, 2, m.ContextID)
	assert.Equal(t, "/ws/Lib", initializeFolder(t, m))

	// Registered while connected: sent right away.
	id3, err := h.Register("/ws/Tests")
	require.NoError(t, err)
	m = c.read(t)
	assert.Equal(t, id3, m.ContextID)
	assert.Equal(t, "/ws/Tests", initializeFolder(t, m))
}

func TestHostEvents(t *testing.T) {
	srv := newFakeServer(t)
	h := New(srv, WithLogger(testLogger()))
	defer h.Close()

	id, err := h.Register("/ws/App")
	require.NoError(t, err)
	require.NoError(t, h.Start(context.Background()))
	c := srv.next(t)
	c.read(t)

	c.send(t, TypeConfigurations, id, ConfigurationsPayload{Name: "App"})
	c.send(t, "Unknown", id, struct{}{})
	c.send(t, TypeDiagnostics, id, DiagnosticsPayload{Errors: []string{"a.cs(1,1): error CS1: x"}})

	ev := nextEvent(t, h)
	assert.Equal(t, TypeConfigurations, ev.Type)
	assert.Equal(t, id, ev.ContextID)
	assert.Equal(t, "App", ev.Payload.(ConfigurationsPayload).Name)

	ev = nextEvent(t, h)
	assert.Equal(t, TypeDiagnostics, ev.Type)
	assert.Len(t, ev.Payload.(DiagnosticsPayload).Errors, 1)
}

func TestHostRestartOnError(t *testing.T) {
	srv := newFakeServer(t)
	h := New(srv, WithLogger(testLogger()))
	defer h.Close()

	id, err := h.Register("/ws/App")
	require.NoError(t, err)
	require.NoError(t, h.Start(context.Background()))
	first := srv.next(t)
	first.read(t)

	first.send(t, TypeError, id, ErrorPayload{Message: "crashed"})
	ev := nextEvent(t, h)
	assert.Equal(t, TypeError, ev.Type)
	assert.Equal(t, "crashed", ev.Payload.(ErrorPayload).Message)

	second := srv.next(t)
	m := second.read(t)
	assert.Equal(t, id, m.ContextID)
	assert.Equal(t, "/ws/App", initializeFolder(t, m))

	srv.mu.Lock()
	assert.Equal(t, 2, srv.launches)
	assert.Equal(t, 1, srv.stops)
	srv.mu.Unlock()

	second.send(t, TypeSources, id, SourcesPayload{Files: []string{"/ws/App/a.cs"}})
	ev = nextEvent(t, h)
	assert.Equal(t, TypeSources, ev.Type)
}

func TestHostRestartFailureIsNotRetried(t *testing.T) {
	srv := newFakeServer(t)
	h := New(srv, WithLogger(testLogger()))
	defer h.Close()

	id, err := h.Register("/ws/App")
	require.NoError(t, err)
	require.NoError(t, h.Start(context.Background()))
	c := srv.next(t)
	c.read(t)

	srv.mu.Lock()
	srv.fail = true
	srv.mu.Unlock()

	c.send(t, TypeError, id, ErrorPayload{Message: "crashed"})
	nextEvent(t, h)

	require.Eventually(t, func() bool {
		srv.mu.Lock()
		defer srv.mu.Unlock()
		return srv.launches == 2
	}, 2*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	srv.mu.Lock()
	assert.Equal(t, 2, srv.launches)
	srv.mu.Unlock()
	assert.False(t, h.Connected())
}

func TestHostClose(t *testing.T) {
	srv := newFakeServer(t)
	h := New(srv, WithLogger(testLogger()))
	require.NoError(t, h.Start(context.Background()))
	srv.next(t)

	require.NoError(t, h.Close())
	require.NoError(t, h.Close())

	_, ok := <-h.Events()
	assert.False(t, ok)
	_, err := h.Register("/ws/App")
	assert.ErrorIs(t, err, ErrClosed)

	srv.mu.Lock()
	assert.Equal(t, 1, srv.stops)
	srv.mu.Unlock()
}
