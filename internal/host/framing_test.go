package host

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	small := []byte(`{"a":1}`)
	large := []byte(strings.Repeat("x", 300))

	require.NoError(t, WriteFrame(&buf, small))
	require.NoError(t, WriteFrame(&buf, large))

	// 300 needs two length bytes: 0xAC 0x02.
	raw := buf.Bytes()
	assert.Equal(t, byte(len(small)), raw[0])
	assert.Equal(t, []byte{0xAC, 0x02}, raw[1+len(small):3+len(small)])

	r := bufio.NewReader(&buf)
	got, err := ReadFrame(r)
	require.NoError(t, err)
	assert.Equal(t, small, got)
	got, err = ReadFrame(r)
	require.NoError(t, err)
	assert.Equal(t, large, got)

	_, err = ReadFrame(r)
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadFrameTruncated(t *testing.T) {
	r := bufio.NewReader(bytes.NewReader([]byte{5, 'a', 'b'}))
	_, err := ReadFrame(r)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestReadFrameTooLarge(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0x0F})
	_, err := ReadFrame(bufio.NewReader(&buf))
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func TestTransportExchange(t *testing.T) {
	client, server := net.Pipe()
	tr := NewTransport(client, testLogger())
	defer tr.Close()

	var (
		mu       sync.Mutex
		received []Message
	)
	runErr := make(chan error, 1)
	go func() {
		runErr <- tr.Run(func(m Message) {
			mu.Lock()
			received = append(received, m)
			mu.Unlock()
		})
	}()

	sent := make(chan []byte, 1)
	go func() {
		data, err := ReadFrame(bufio.NewReader(server))
		if err == nil {
			sent <- data
		}
	}()
	require.NoError(t, tr.Send(Message{HostID: "h", MessageType: TypeInitialize, ContextID: 1,
		Payload: json.RawMessage(`{"projectFolder":"/p"}`)}))

	select {
	case data := <-sent:
		var m Message
		require.NoError(t, json.Unmarshal(data, &m))
		assert.Equal(t, TypeInitialize, m.MessageType)
		assert.Equal(t, 1, m.ContextID)
	case <-time.After(2 * time.Second):
		t.Fatal("no frame written")
	}

	// Malformed JSON is skipped, the next frame still arrives.
	require.NoError(t, WriteFrame(server, []byte("not json")))
	require.NoError(t, WriteFrame(server, []byte(`{"hostId":"h","messageType":"Sources","contextId":2}`)))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	}, 2*time.Second, 10*time.Millisecond)
	mu.Lock()
	assert.Equal(t, TypeSources, received[0].MessageType)
	mu.Unlock()

	server.Close()
	select {
	case err := <-runErr:
		assert.True(t, errors.Is(err, ErrNotConnected) || errors.Is(err, io.ErrClosedPipe), "got %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestTransportCloseStopsRun(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()
	tr := NewTransport(client, testLogger())

	done := make(chan error, 1)
	go func() { done <- tr.Run(func(Message) {}) }()

	require.NoError(t, tr.Close())
	assert.True(t, tr.IsClosed())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	assert.ErrorIs(t, tr.Send(Message{}), ErrNotConnected)
}
