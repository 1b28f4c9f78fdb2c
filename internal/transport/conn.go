// Package transport abstracts the byte stream between the SPICE client and
// a SPICE server (or a WebSocket reverse proxy in front of one). Higher
// layers never see net.Conn or *websocket.Conn directly.
package transport

import (
	"context"
	"time"
)

// Conn is a reliable, in-order byte stream. Read may return short reads;
// callers loop. WriteAll never returns a partial write to the caller.
type Conn interface {
	Read(buf []byte) (int, error)
	WriteAll(buf []byte) error
	Flush() error
	IsConnected() bool
	Close() error

	// SetReadDeadline bounds every subsequent Read until it is called again;
	// a zero Time clears the deadline. A Read that times out returns an
	// error for which IsTimeout is true.
	SetReadDeadline(t time.Time) error
}

// Dialer opens a Conn. The three dialers in this package (TCPDialer,
// WebSocketDialer, CoderWebSocketDialer) return their connections (tcpConn,
// websocketConn, coderWebSocketConn) behind this interface so the rest of
// the module never branches on which one is in use.
type Dialer interface {
	DialContext(ctx context.Context) (Conn, error)
}

// DefaultOpenTimeout bounds how long DialContext may take end to end,
// matching spec §5's 5s open timeout for the link handshake.
const DefaultOpenTimeout = 5 * time.Second
