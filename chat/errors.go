package chat

import (
	"errors"
	"fmt"

	"github.com/gorilla/websocket"
)

var (
	// ErrNotConnected is reported when a send is requested without a live connection.
	ErrNotConnected = errors.New("not connected to the chat server")
	// ErrCapabilityRevoked is returned by a Sender invalidated by a disconnect.
	ErrCapabilityRevoked = errors.New("send capability revoked")
	// ErrAlreadySplit is returned when a Connection is split a second time.
	ErrAlreadySplit = errors.New("connection already split")
	// ErrReceiverInUse is returned when a Receiver is handed to a second read loop.
	ErrReceiverInUse = errors.New("receiver already owned by a read loop")
	// ErrDispatcherRunning is returned by Run when the dispatcher is already running.
	ErrDispatcherRunning = errors.New("dispatcher already running")
)

func errMissingField(name string) error {
	return fmt.Errorf("missing required field %q", name)
}

// ConnectError reports a failure to establish a connection.
type ConnectError struct {
	Addr string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect to %s: %v", e.Addr, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// ParseError reports an inbound payload that is not a valid chat message.
// It does not affect the connection.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse server message: %v (data: %s)", e.Err, e.Raw)
}

func (e *ParseError) Unwrap() error { return e.Err }

// UnsupportedFrameTypeError reports a non-text frame from the server.
type UnsupportedFrameTypeError struct {
	Type FrameType
	Size int
}

func (e *UnsupportedFrameTypeError) Error() string {
	return fmt.Sprintf("received %s frame (%d bytes), not supported", e.Type, e.Size)
}

// TransportError reports a mid-session socket fault. It is always followed
// by the loss of the connection.
type TransportError struct {
	Detail string
	Err    error
}

func (e *TransportError) Error() string {
	return "connection error: " + e.Detail
}

func (e *TransportError) Unwrap() error { return e.Err }

func newTransportError(err error) *TransportError {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return &TransportError{
			Detail: fmt.Sprintf("closed: code=%d, reason=%q", ce.Code, ce.Text),
			Err:    err,
		}
	}
	return &TransportError{Detail: err.Error(), Err: err}
}

// SendError reports that a single outbound frame could not be written.
type SendError struct {
	Err error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send message: %v", e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }
