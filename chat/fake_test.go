package chat

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"
)

// fakeConn is an in-memory Conn. Frames pushed with deliver are returned by
// ReadFrame; fail ends the stream with an error; Close ends it with io.EOF.
type fakeConn struct {
	inbound chan Frame
	readErr chan error
	closed  chan struct{}

	mu       sync.Mutex
	written  []string
	writeErr error
	once     sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan Frame, 16),
		readErr: make(chan error, 1),
		closed:  make(chan struct{}),
	}
}

func (c *fakeConn) WriteText(ctx context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	select {
	case <-c.closed:
		return errors.New("write on closed connection")
	default:
	}
	c.written = append(c.written, string(data))
	return nil
}

func (c *fakeConn) ReadFrame() (Frame, error) {
	// queued frames win over a pending error or close
	select {
	case f := <-c.inbound:
		return f, nil
	default:
	}
	select {
	case f := <-c.inbound:
		return f, nil
	case err := <-c.readErr:
		return Frame{}, err
	case <-c.closed:
		return Frame{}, io.EOF
	}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) deliverText(s string) { c.inbound <- Frame{Type: TextFrame, Data: []byte(s)} }

func (c *fakeConn) fail(err error) { c.readErr <- err }

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *fakeConn) sent() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.written...)
}

// fakeOpener hands out queued connections or errors in order.
type fakeOpener struct {
	mu    sync.Mutex
	conns []*fakeConn
	errs  []error
	addrs []string
}

func (o *fakeOpener) Open(ctx context.Context, addr string) (Conn, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.addrs = append(o.addrs, addr)
	if len(o.errs) > 0 {
		err := o.errs[0]
		o.errs = o.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	if len(o.conns) == 0 {
		return nil, errors.New("no connection queued")
	}
	c := o.conns[0]
	o.conns = o.conns[1:]
	return c, nil
}

// step applies the next queued event on the test goroutine.
func step(t *testing.T, d *Dispatcher) event {
	t.Helper()
	select {
	case ev := <-d.events:
		d.apply(ev)
		requireConsistent(t, d)
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

// stepUntil applies events until one of the given kind has been applied.
func stepUntil(t *testing.T, d *Dispatcher, kind string) {
	t.Helper()
	for i := 0; i < 32; i++ {
		if step(t, d).kind() == kind {
			return
		}
	}
	t.Fatalf("no %s event after 32 steps", kind)
}

func requireConsistent(t *testing.T, d *Dispatcher) {
	t.Helper()
	snap := d.Snapshot()
	if (snap.Status == StatusConnected) != snap.CanSend {
		t.Fatalf("status %s with can_send=%v", snap.Status, snap.CanSend)
	}
}

// connectFake drives a dispatcher to Connected over conn.
func connectFake(t *testing.T, d *Dispatcher) {
	t.Helper()
	d.apply(connectIntent{})
	stepUntil(t, d, "connect_result")
	if s := d.Snapshot().Status; s != StatusConnected {
		t.Fatalf("status = %s, want connected", s)
	}
}
