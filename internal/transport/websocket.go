package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// websocketConn presents a byte stream over a WebSocket connection: each
// outgoing WriteAll sends one binary frame, and Read drains an internal
// reader across frame boundaries before awaiting the next one.
type websocketConn struct {
	conn   *websocket.Conn
	reader io.Reader
	mu     sync.Mutex
	closed atomic.Bool
}

func (c *websocketConn) Read(buf []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for {
		if c.reader == nil {
			messageType, r, err := c.conn.NextReader()
			if err != nil {
				return 0, classifyWSErr("read", err, c.closed.Load())
			}
			if messageType != websocket.BinaryMessage {
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
			return 0, classifyWSErr("read", err, c.closed.Load())
		}
		return n, nil
	}
}

func (c *websocketConn) WriteAll(buf []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.WriteMessage(websocket.BinaryMessage, buf); err != nil {
		return classifyWSErr("write", err, c.closed.Load())
	}
	return nil
}

func (c *websocketConn) Flush() error { return nil }

func (c *websocketConn) SetReadDeadline(t time.Time) error { return c.conn.SetReadDeadline(t) }

func (c *websocketConn) IsConnected() bool { return !c.closed.Load() }

func (c *websocketConn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return c.conn.Close()
}

func classifyWSErr(op string, err error, alreadyClosed bool) error {
	if alreadyClosed || err == io.EOF || websocket.IsCloseError(err,
		websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return closedErr(op)
	}
	type timeouter interface{ Timeout() bool }
	if te, ok := err.(timeouter); ok && te.Timeout() {
		return timeoutErr(op, err)
	}
	return ioErr(op, err)
}

// WebSocketDialer opens a WebSocket reverse-proxy connection in front of a
// SPICE server, for deployments that cannot expose raw TCP to the client.
type WebSocketDialer struct {
	dialer *websocket.Dialer
	url    string
}

func NewWebSocketDialer(server string, port int, path string, useTLS bool) *WebSocketDialer {
	scheme := "ws"
	if useTLS {
		scheme = "wss"
	}

	return &WebSocketDialer{
		dialer: &websocket.Dialer{
			TLSClientConfig: &tls.Config{
				ServerName: server,
				MinVersion: tls.VersionTLS12,
			},
			HandshakeTimeout: DefaultOpenTimeout,
			Subprotocols:     []string{"binary"},
		},
		url: fmt.Sprintf("%s://%s:%d%s", scheme, server, port, path),
	}
}

func (d *WebSocketDialer) DialContext(ctx context.Context) (Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultOpenTimeout)
	defer cancel()

	wsConn, resp, err := d.dialer.DialContext(ctx, d.url, http.Header{})
	if err != nil {
		if resp != nil {
			return nil, ioErr("dial", fmt.Errorf("websocket dial failed (status %d): %w", resp.StatusCode, err))
		}
		return nil, ioErr("dial", fmt.Errorf("websocket dial failed: %w", err))
	}
	wsConn.SetReadLimit(0)

	return &websocketConn{conn: wsConn}, nil
}
