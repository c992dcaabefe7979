package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/quill/internal/editor"
	"github.com/dshills/quill/internal/project/vfs"
)

type received struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	fs := vfs.NewMemFS()
	require.NoError(t, fs.MkdirAll("/ws", 0755))
	require.NoError(t, fs.AddFile("/ws/main.go", "package main\n"))

	ed := editor.New(fs, editor.WithLogger(testLogger()), editor.WithBrowseRoot("/ws"))
	srv := New(ed, WithLogger(testLogger()))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		ed.Close()
	})
	return srv, ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + DefaultPath
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) received {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg received
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func send(t *testing.T, conn *websocket.Conn, name string, args ...any) {
	t.Helper()
	raw := make([]json.RawMessage, 0, len(args))
	for _, a := range args {
		b, err := json.Marshal(a)
		require.NoError(t, err)
		raw = append(raw, b)
	}
	require.NoError(t, conn.WriteJSON(map[string]any{"name": name, "args": raw}))
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetrics(t *testing.T) {
	_, ts := newTestServer(t)
	conn := dial(t, ts)
	read(t, conn)

	send(t, conn, editor.CmdBrowseOpen, "/ws")
	require.Equal(t, editor.MessageDiff, read(t, conn).Type)
	send(t, conn, "no::such")
	require.Equal(t, editor.MessageError, read(t, conn).Type)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var report MetricsReport
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	assert.Equal(t, uint64(2), report.Dispatches)
	assert.Equal(t, uint64(1), report.Errors)

	counts := make(map[string][2]uint64)
	for _, cm := range report.Commands {
		counts[cm.Name] = [2]uint64{cm.DispatchCount, cm.ErrorCount}
	}
	assert.Equal(t, map[string][2]uint64{
		editor.CmdBrowseOpen: {1, 0},
		"no::such":           {1, 1},
	}, counts)
}

func TestConnectSendsState(t *testing.T) {
	_, ts := newTestServer(t)
	conn := dial(t, ts)

	msg := read(t, conn)
	assert.Equal(t, editor.MessageState, msg.Type)
	assert.JSONEq(t, `{"workspace":null,"tabs":[],"dialog":null}`, string(msg.Payload))
}

func TestCommandProducesDiff(t *testing.T) {
	_, ts := newTestServer(t)
	conn := dial(t, ts)
	read(t, conn)

	send(t, conn, editor.CmdBrowseOpen, "/ws")

	msg := read(t, conn)
	assert.Equal(t, editor.MessageDiff, msg.Type)
	var diff map[string]any
	require.NoError(t, json.Unmarshal(msg.Payload, &diff))
	assert.Contains(t, diff, "dialog")
}

func TestCommandErrors(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		command string
		message string
	}{
		{
			name:    "unknown command",
			raw:     `{"name":"no::such","args":[]}`,
			command: "no::such",
			message: "dispatcher: unknown command",
		},
		{
			name:    "wrong arity",
			raw:     `{"name":"tab::open","args":[]}`,
			command: editor.CmdTabOpen,
			message: "dispatcher: wrong number of arguments: got 0, want 1",
		},
		{
			name:    "invalid json",
			raw:     `{"name":`,
			command: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ts := newTestServer(t)
			conn := dial(t, ts)
			read(t, conn)

			require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(tt.raw)))

			msg := read(t, conn)
			require.Equal(t, editor.MessageError, msg.Type)
			var payload editor.ErrorPayload
			require.NoError(t, json.Unmarshal(msg.Payload, &payload))
			assert.Equal(t, tt.command, payload.Command)
			if tt.message != "" {
				assert.Equal(t, tt.message, payload.Message)
			} else {
				assert.NotEmpty(t, payload.Message)
			}
		})
	}
}

func TestConnectionSurvivesErrors(t *testing.T) {
	_, ts := newTestServer(t)
	conn := dial(t, ts)
	read(t, conn)

	send(t, conn, "no::such")
	assert.Equal(t, editor.MessageError, read(t, conn).Type)

	send(t, conn, editor.CmdBrowseOpen, "/ws")
	assert.Equal(t, editor.MessageDiff, read(t, conn).Type)
}

func TestNewClientReplacesOld(t *testing.T) {
	_, ts := newTestServer(t)
	first := dial(t, ts)
	read(t, first)

	second := dial(t, ts)
	assert.Equal(t, editor.MessageState, read(t, second).Type)

	require.NoError(t, first.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := first.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)

	send(t, second, editor.CmdBrowseOpen, "/ws")
	assert.Equal(t, editor.MessageDiff, read(t, second).Type)
}

func TestShutdownClosesClient(t *testing.T) {
	srv, ts := newTestServer(t)
	conn := dial(t, ts)
	read(t, conn)

	require.Eventually(t, func() bool {
		srv.mu.Lock()
		defer srv.mu.Unlock()
		return srv.active != nil
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, srv.Shutdown(t.Context()))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}
