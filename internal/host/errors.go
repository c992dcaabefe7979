package host

import (
	"errors"
	"fmt"
)

// Standard errors returned by the host client.
var (
	// ErrHostExited indicates the host process exited before it was ready.
	ErrHostExited = errors.New("host process exited")

	// ErrNotConnected indicates no connection to the host is open.
	ErrNotConnected = errors.New("host not connected")

	// ErrClosed indicates the host client has been closed.
	ErrClosed = errors.New("host client closed")

	// ErrFrameTooLarge indicates a frame length above MaxFrameSize.
	ErrFrameTooLarge = errors.New("frame too large")

	// ErrInvalidDiagnostic indicates a diagnostic line that does not match
	// the expected grammar.
	ErrInvalidDiagnostic = errors.New("invalid diagnostic")
)

// ProtocolError wraps a malformed message received from the host.
type ProtocolError struct {
	MessageType string
	Err         error
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	return fmt.Sprintf("host message %s: %v", e.MessageType, e.Err)
}

// Unwrap returns the underlying error.
func (e *ProtocolError) Unwrap() error {
	return e.Err
}
