package host

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Transport exchanges framed JSON messages over a connection.
type Transport struct {
	conn   net.Conn
	reader *bufio.Reader
	log    *logrus.Entry

	mu     sync.Mutex
	closed atomic.Bool
}

// NewTransport creates a transport over conn.
func NewTransport(conn net.Conn, log *logrus.Entry) *Transport {
	return &Transport{
		conn:   conn,
		reader: bufio.NewReaderSize(conn, 64*1024),
		log:    log,
	}
}

// Send writes msg as one frame.
func (t *Transport) Send(msg Message) error {
	if t.closed.Load() {
		return ErrNotConnected
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if err := WriteFrame(t.conn, data); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Run reads messages and passes them to handle until the connection fails
// or the transport is closed. Malformed frames are logged and skipped. It
// returns nil after Close.
func (t *Transport) Run(handle func(Message)) error {
	for {
		data, err := ReadFrame(t.reader)
		if err != nil {
			if t.closed.Load() {
				return nil
			}
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return ErrNotConnected
			}
			return err
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			t.log.WithError(err).Warn("dropping malformed host frame")
			continue
		}
		handle(msg)
	}
}

// Close closes the connection.
func (t *Transport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	return t.conn.Close()
}

// IsClosed returns true if the transport has been closed.
func (t *Transport) IsClosed() bool {
	return t.closed.Load()
}
