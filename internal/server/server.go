// Package server exposes the editor to one client over a websocket.
//
// The client sends commands as {"name": ..., "args": [...]} and receives
// {"type": ..., "payload": ...} messages: the full state on connect, diffs
// in commit order afterwards, and content, highlight and error messages.
// Only one client is served at a time; a new connection replaces the
// previous one.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/dshills/quill/internal/dispatcher"
	"github.com/dshills/quill/internal/editor"
)

// Defaults.
const (
	DefaultPath         = "/ws"
	DefaultWriteTimeout = 10 * time.Second
	DefaultMaxMessage   = 16 << 20
)

// Server serves the editor over HTTP.
type Server struct {
	editor       *editor.Editor
	log          *logrus.Entry
	path         string
	writeTimeout time.Duration
	maxMessage   int64
	upgrader     websocket.Upgrader

	server *http.Server

	mu     sync.Mutex
	active *Session
	wg     sync.WaitGroup
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(log *logrus.Entry) Option {
	return func(s *Server) {
		s.log = log
	}
}

// WithPath sets the websocket endpoint.
func WithPath(path string) Option {
	return func(s *Server) {
		s.path = path
	}
}

// WithWriteTimeout bounds each message write.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.writeTimeout = d
	}
}

// WithCheckOrigin replaces the origin check of the websocket upgrade.
func WithCheckOrigin(check func(r *http.Request) bool) Option {
	return func(s *Server) {
		s.upgrader.CheckOrigin = check
	}
}

// New creates a server for ed.
func New(ed *editor.Editor, opts ...Option) *Server {
	s := &Server{
		editor:       ed,
		log:          logrus.NewEntry(logrus.StandardLogger()),
		path:         DefaultPath,
		writeTimeout: DefaultWriteTimeout,
		maxMessage:   DefaultMaxMessage,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the HTTP handler with the websocket endpoint and a
// health check.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc(s.path, s.handleSocket)
	return mux
}

// MetricsReport is the /metrics response body.
type MetricsReport struct {
	Dispatches uint64                      `json:"dispatches"`
	Errors     uint64                      `json:"errors"`
	Commands   []dispatcher.CommandMetrics `json:"commands"`
}

// handleMetrics returns the command dispatch statistics as JSON.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	m := s.editor.Dispatcher().Metrics()
	if m == nil {
		http.Error(w, "metrics disabled", http.StatusServiceUnavailable)
		return
	}

	var report MetricsReport
	report.Dispatches, report.Errors = m.Totals()
	report.Commands = m.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(report)
}

// ListenAndServe serves on addr until Shutdown.
func (s *Server) ListenAndServe(addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(l)
}

// Serve serves on l until Shutdown.
func (s *Server) Serve(l net.Listener) error {
	s.mu.Lock()
	s.server = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	srv := s.server
	s.mu.Unlock()

	s.log.WithField("addr", l.Addr().String()).WithField("path", s.path).Info("listening")
	err := srv.Serve(l)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting connections and closes the active session.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down server")
	s.mu.Lock()
	srv := s.server
	active := s.active
	s.active = nil
	s.mu.Unlock()

	var err error
	if srv != nil {
		err = srv.Shutdown(ctx)
	}
	if active != nil {
		active.Close()
	}
	s.wg.Wait()
	return err
}

func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	conn.SetReadLimit(s.maxMessage)

	sess := newSession(conn, s.editor, s.log, s.writeTimeout)
	s.mu.Lock()
	prev := s.active
	s.active = sess
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	if prev != nil {
		sess.log.WithField("replaced", prev.ID()).Info("replacing client")
		prev.Close()
	}

	sess.Run(r.Context())

	s.mu.Lock()
	if s.active == sess {
		s.active = nil
	}
	s.mu.Unlock()
}
