package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync/atomic"
	"time"
)

// tcpConn wraps a net.Conn obtained by dialing the server's stream-socket
// port directly (no WebSocket proxy in front of it).
type tcpConn struct {
	nc     net.Conn
	closed atomic.Bool
}

func (c *tcpConn) Read(buf []byte) (int, error) {
	n, err := c.nc.Read(buf)
	if err != nil {
		return n, classifyNetErr("read", err, c.closed.Load())
	}
	return n, nil
}

func (c *tcpConn) WriteAll(buf []byte) error {
	for len(buf) > 0 {
		n, err := c.nc.Write(buf)
		if err != nil {
			return classifyNetErr("write", err, c.closed.Load())
		}
		buf = buf[n:]
	}
	return nil
}

func (c *tcpConn) Flush() error { return nil }

func (c *tcpConn) SetReadDeadline(t time.Time) error { return c.nc.SetReadDeadline(t) }

func (c *tcpConn) IsConnected() bool { return !c.closed.Load() }

func (c *tcpConn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.nc.Close()
}

func classifyNetErr(op string, err error, alreadyClosed bool) error {
	if alreadyClosed || err == io.EOF {
		return closedErr(op)
	}
	type timeouter interface{ Timeout() bool }
	if te, ok := err.(timeouter); ok && te.Timeout() {
		return timeoutErr(op, err)
	}
	return ioErr(op, err)
}

// TCPDialer connects directly to the SPICE server's stream-socket port,
// with no WebSocket proxy in front of it.
type TCPDialer struct {
	server string
	port   int
}

func NewTCPDialer(server string, port int) *TCPDialer {
	return &TCPDialer{server: server, port: port}
}

func (d *TCPDialer) DialContext(ctx context.Context) (Conn, error) {
	addr := fmt.Sprintf("%s:%d", d.server, d.port)
	dialer := &net.Dialer{
		Timeout:   DefaultOpenTimeout,
		KeepAlive: 30 * time.Second,
	}
	nc, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, ioErr("dial", err)
	}
	if tc, ok := nc.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}
	return &tcpConn{nc: nc}, nil
}
