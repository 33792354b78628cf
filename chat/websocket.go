package chat

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait    = 10 * time.Second
	pingInterval = 30 * time.Second
	readLimit    = 1 << 20
)

// WSOpener dials chat servers over WebSocket. The zero value is usable.
type WSOpener struct {
	Dialer *websocket.Dialer
	Header http.Header

	// PingInterval controls keepalive pings; negative disables them.
	PingInterval time.Duration
	// PongWait is how long the connection may stay silent before reads fail.
	// Defaults to twice PingInterval and must exceed it.
	PongWait  time.Duration
	WriteWait time.Duration
	ReadLimit int64
}

func (o WSOpener) Open(ctx context.Context, addr string) (Conn, error) {
	ping := orDefault(o.PingInterval, pingInterval)
	wait := orDefault(o.PongWait, 2*ping)
	if ping > 0 && ping >= wait {
		return nil, fmt.Errorf("ping interval %s must be shorter than pong wait %s", ping, wait)
	}

	dialer := o.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	ws, resp, err := dialer.DialContext(ctx, addr, o.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("handshake status %s: %w", resp.Status, err)
		}
		return nil, err
	}

	c := &wsConn{
		ws:        ws,
		writeWait: orDefault(o.WriteWait, writeWait),
		stop:      make(chan struct{}),
	}
	limit := o.ReadLimit
	if limit <= 0 {
		limit = readLimit
	}
	ws.SetReadLimit(limit)

	if ping > 0 {
		_ = ws.SetReadDeadline(time.Now().Add(wait))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(wait))
		})
		go c.keepalive(ping)
	}
	return c, nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d == 0 {
		return def
	}
	return d
}

type wsConn struct {
	ws        *websocket.Conn
	writeMu   sync.Mutex
	writeWait time.Duration
	closed    atomic.Bool
	stop      chan struct{}
}

func (c *wsConn) WriteText(ctx context.Context, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	deadline := time.Now().Add(c.writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.ws.SetWriteDeadline(deadline)
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) ReadFrame() (Frame, error) {
	for {
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			if c.closed.Load() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return Frame{}, io.EOF
			}
			return Frame{}, err
		}
		switch mt {
		case websocket.TextMessage:
			return Frame{Type: TextFrame, Data: data}, nil
		case websocket.BinaryMessage:
			return Frame{Type: BinaryFrame, Data: data}, nil
		}
	}
}

func (c *wsConn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	close(c.stop)
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.writeWait))
	return c.ws.Close()
}

func (c *wsConn) keepalive(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeWait)); err != nil {
				return
			}
		}
	}
}
