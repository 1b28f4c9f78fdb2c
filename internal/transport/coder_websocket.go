package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
)

// coderWebSocketConn is the second WebSocket backend, used when a host
// selects transport.BackendCoder (see factory.go). Kept distinct from
// websocketConn so both of the ecosystem's WebSocket stacks get exercised:
// gorilla/websocket is the default, coder/websocket is the lighter-weight
// alternative for hosts that already depend on it elsewhere.
type coderWebSocketConn struct {
	conn   *websocket.Conn
	reader io.Reader
	mu     sync.Mutex
	closed atomic.Bool

	readDeadline time.Time
}

// SetReadDeadline stores the deadline; coder/websocket reads take a
// context rather than a deadline, so Read builds one from this value each
// time it starts reading a new message instead of setting anything on conn
// directly.
func (c *coderWebSocketConn) SetReadDeadline(t time.Time) error {
	c.mu.Lock()
	c.readDeadline = t
	c.mu.Unlock()
	return nil
}

func (c *coderWebSocketConn) Read(buf []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for {
		if c.reader == nil {
			ctx := context.Background()
			if !c.readDeadline.IsZero() {
				var cancel context.CancelFunc
				ctx, cancel = context.WithDeadline(ctx, c.readDeadline)
				defer cancel()
			}
			mt, r, err := c.conn.Reader(ctx)
			if err != nil {
				return 0, classifyCoderErr("read", err, c.closed.Load())
			}
			if mt != websocket.MessageBinary {
				continue
			}
			c.reader = r
		}

		n, err := c.reader.Read(buf)
		if err == io.EOF {
			c.reader = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		if err != nil {
			return 0, classifyCoderErr("read", err, c.closed.Load())
		}
		return n, nil
	}
}

func (c *coderWebSocketConn) WriteAll(buf []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.Write(context.Background(), websocket.MessageBinary, buf); err != nil {
		return classifyCoderErr("write", err, c.closed.Load())
	}
	return nil
}

func (c *coderWebSocketConn) Flush() error { return nil }

func (c *coderWebSocketConn) IsConnected() bool { return !c.closed.Load() }

func (c *coderWebSocketConn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.conn.Close(websocket.StatusNormalClosure, "")
}

func classifyCoderErr(op string, err error, alreadyClosed bool) error {
	if alreadyClosed || err == io.EOF {
		return closedErr(op)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return timeoutErr(op, err)
	}
	status := websocket.CloseStatus(err)
	if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
		return closedErr(op)
	}
	return ioErr(op, err)
}

// CoderWebSocketDialer dials with github.com/coder/websocket instead of
// gorilla/websocket, selected via transport.BackendCoder.
type CoderWebSocketDialer struct {
	url string
}

func NewCoderWebSocketDialer(server string, port int, path string, useTLS bool) *CoderWebSocketDialer {
	scheme := "ws"
	if useTLS {
		scheme = "wss"
	}
	return &CoderWebSocketDialer{url: fmt.Sprintf("%s://%s:%d%s", scheme, server, port, path)}
}

func (d *CoderWebSocketDialer) DialContext(ctx context.Context) (Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultOpenTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, d.url, &websocket.DialOptions{
		Subprotocols: []string{"binary"},
	})
	if err != nil {
		return nil, ioErr("dial", fmt.Errorf("coder websocket dial failed: %w", err))
	}
	conn.SetReadLimit(-1)

	return &coderWebSocketConn{conn: conn}, nil
}
