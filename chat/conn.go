package chat

import (
	"context"
	"sync/atomic"
)

// Conn is a live, message-framed, full-duplex connection.
//
// WriteText and ReadFrame may be called concurrently with each other, but
// each must have a single caller at a time. ReadFrame returns io.EOF once the
// peer closed cleanly or the connection was closed locally.
type Conn interface {
	WriteText(ctx context.Context, data []byte) error
	ReadFrame() (Frame, error)
	Close() error
}

// Opener establishes connections. Open performs a single attempt.
type Opener interface {
	Open(ctx context.Context, addr string) (Conn, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context, addr string) (Conn, error)

func (f OpenerFunc) Open(ctx context.Context, addr string) (Conn, error) { return f(ctx, addr) }

// Connection is an established connection that has not yet been split into
// its send and receive capabilities.
type Connection struct {
	gen   uint64
	conn  Conn
	split atomic.Bool
}

// open performs one connection attempt for generation gen.
func open(ctx context.Context, o Opener, addr string, gen uint64) (*Connection, error) {
	c, err := o.Open(ctx, addr)
	if err != nil {
		return nil, &ConnectError{Addr: addr, Err: err}
	}
	return &Connection{gen: gen, conn: c}, nil
}

// Generation returns the connection attempt this connection belongs to.
func (c *Connection) Generation() uint64 { return c.gen }

// Split hands out the send and receive capabilities. It succeeds once.
func (c *Connection) Split() (*Sender, *Receiver, error) {
	if c.split.Swap(true) {
		return nil, nil, ErrAlreadySplit
	}
	return &Sender{gen: c.gen, conn: c.conn}, &Receiver{gen: c.gen, conn: c.conn}, nil
}

// Close releases a connection that was never split.
func (c *Connection) Close() error {
	return c.conn.Close()
}

// Sender is the send capability of one connection. Send units capture the
// *Sender itself, so a revoked capability is detected without looking at
// dispatcher state.
type Sender struct {
	gen     uint64
	conn    Conn
	revoked atomic.Bool
}

// Send writes one text frame.
func (s *Sender) Send(ctx context.Context, text string) error {
	if s.revoked.Load() {
		return &SendError{Err: ErrCapabilityRevoked}
	}
	if err := s.conn.WriteText(ctx, []byte(text)); err != nil {
		return &SendError{Err: err}
	}
	return nil
}

// Valid reports whether the capability has not been revoked.
func (s *Sender) Valid() bool { return !s.revoked.Load() }

// revoke invalidates the capability and closes the underlying connection.
func (s *Sender) revoke() error {
	if s.revoked.Swap(true) {
		return nil
	}
	return s.conn.Close()
}

// Receiver is the receive capability of one connection. Only one read loop
// may ever own it.
type Receiver struct {
	gen   uint64
	conn  Conn
	owned atomic.Bool
}

func (r *Receiver) acquire() error {
	if r.owned.Swap(true) {
		return ErrReceiverInUse
	}
	return nil
}
