package server

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/dshills/quill/internal/dispatcher"
	"github.com/dshills/quill/internal/editor"
)

// Session is one client connection. It is the editor's message sink while
// connected.
type Session struct {
	id           string
	conn         *websocket.Conn
	editor       *editor.Editor
	log          *logrus.Entry
	writeTimeout time.Duration

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func newSession(conn *websocket.Conn, ed *editor.Editor, log *logrus.Entry, writeTimeout time.Duration) *Session {
	id := uuid.NewString()
	return &Session{
		id:           id,
		conn:         conn,
		editor:       ed,
		log:          log.WithField("session", id),
		writeTimeout: writeTimeout,
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Send writes msg to the client.
func (s *Session) Send(msg editor.Message) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.writeTimeout > 0 {
		s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}
	return s.conn.WriteJSON(msg)
}

// Close disconnects the client.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.editor.Disconnect(s)
		s.writeMu.Lock()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		s.writeMu.Unlock()
		s.conn.Close()
	})
}

// Run attaches the session to the editor and dispatches client commands
// until the connection closes.
func (s *Session) Run(ctx context.Context) {
	defer s.Close()

	if err := s.editor.Connect(s); err != nil {
		s.log.WithError(err).Warn("failed to send state")
		return
	}
	s.log.Info("client connected")

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.WithError(err).Warn("connection lost")
			} else {
				s.log.Info("client disconnected")
			}
			return
		}
		s.handle(ctx, data)
	}
}

// handle dispatches one command. Failures are reported to the client as
// error messages; the connection stays open.
func (s *Session) handle(ctx context.Context, data []byte) {
	var req dispatcher.Request
	if err := json.Unmarshal(data, &req); err != nil {
		s.reportError("", err)
		return
	}
	log := s.log.WithField("command", req.Name)
	log.Debug("dispatching")
	if err := s.editor.Dispatcher().Dispatch(ctx, req); err != nil {
		log.WithError(err).Debug("command failed")
		s.reportError(req.Name, err)
	}
}

func (s *Session) reportError(command string, err error) {
	var ce *dispatcher.CommandError
	if errors.As(err, &ce) {
		err = ce.Err
	}
	msg := editor.Message{
		Type:    editor.MessageError,
		Payload: editor.ErrorPayload{Command: command, Message: err.Error()},
	}
	if err := s.Send(msg); err != nil {
		s.log.WithError(err).Warn("failed to send error")
	}
}
