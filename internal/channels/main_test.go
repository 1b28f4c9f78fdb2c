package channels

import (
	"context"
	"net"
	"testing"
	"time"

	"spice-go/internal/channel"
	"spice-go/internal/spiceerr"
	"spice-go/internal/transport"
	"spice-go/internal/wire"
)

// pipeConn/pipeDialer mirror internal/channel's own net.Pipe-based test
// fixtures so a real *channel.Conn can be built here without a live server.
type pipeConn struct{ nc net.Conn }

func (p pipeConn) Read(b []byte) (int, error) { return p.nc.Read(b) }

func (p pipeConn) WriteAll(b []byte) error {
	for len(b) > 0 {
		n, err := p.nc.Write(b)
		if err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

func (p pipeConn) Flush() error                      { return nil }
func (p pipeConn) IsConnected() bool                 { return true }
func (p pipeConn) Close() error                      { return p.nc.Close() }
func (p pipeConn) SetReadDeadline(t time.Time) error { return p.nc.SetReadDeadline(t) }

type pipeDialer struct{ conn transport.Conn }

func (d pipeDialer) DialContext(context.Context) (transport.Conn, error) { return d.conn, nil }

func dialOverPipe(t *testing.T, server net.Conn, client net.Conn) *channel.Conn {
	t.Helper()
	go func() {
		hdrBuf := make([]byte, 16)
		readFullPipe(server, hdrBuf)
		hdr, _ := wire.DecodeLinkHeader(hdrBuf)
		msgBuf := make([]byte, hdr.Size)
		readFullPipe(server, msgBuf)
		reply := wire.LinkHeader{Magic: wire.Magic, Major: wire.ProtocolMajor, Minor: wire.ProtocolMinor}
		server.Write(wire.EncodeLinkHeader(reply))
	}()
	dialer := pipeDialer{conn: pipeConn{nc: client}}
	conn, err := channel.Dial(context.Background(), dialer, 0, wire.ChannelMain, 0, nil, nil, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	return conn
}

func readFullPipe(nc net.Conn, buf []byte) {
	total := 0
	for total < len(buf) {
		n, err := nc.Read(buf[total:])
		total += n
		if err != nil {
			return
		}
	}
}

func TestMainInitMustBeFirst(t *testing.T) {
	m := NewMainChannel(nil)
	entries := wire.EncodeChannelsList([]wire.ChannelListEntry{{ChannelType: uint8(wire.ChannelDisplay), ChannelID: 0}})
	err := m.handle(wire.DataHeader{MsgType: wire.MsgMainChannelsList, MsgSize: uint32(len(entries))}, entries)
	if err == nil {
		t.Fatal("expected error for CHANNELS_LIST before MAIN_INIT")
	}
	if _, ok := err.(*spiceerr.ChannelError); !ok {
		t.Fatalf("err = %v (%T), want *spiceerr.ChannelError", err, err)
	}
}

func TestMainInitTwiceRejected(t *testing.T) {
	m := NewMainChannel(nil)
	payload := wire.EncodeMainInit(wire.MainInit{SessionID: 1, CurrentMouseMode: wire.MouseModeServer})
	if err := m.handle(wire.DataHeader{MsgType: wire.MsgMainInit, MsgSize: uint32(len(payload))}, payload); err != nil {
		t.Fatalf("first MAIN_INIT: %v", err)
	}
	if m.State() != MainIniting {
		t.Fatalf("state = %v, want MainIniting", m.State())
	}
	if err := m.handle(wire.DataHeader{MsgType: wire.MsgMainInit, MsgSize: uint32(len(payload))}, payload); err == nil {
		t.Fatal("expected error for a second MAIN_INIT")
	}
}

func TestChannelsListReadyClosesOnceAndSetsReady(t *testing.T) {
	m := NewMainChannel(nil)
	init := wire.EncodeMainInit(wire.MainInit{SessionID: 42})
	if err := m.handle(wire.DataHeader{MsgType: wire.MsgMainInit, MsgSize: uint32(len(init))}, init); err != nil {
		t.Fatalf("MAIN_INIT: %v", err)
	}

	select {
	case <-m.ChannelsListReady():
		t.Fatal("ChannelsListReady fired before CHANNELS_LIST arrived")
	default:
	}

	entries := wire.EncodeChannelsList([]wire.ChannelListEntry{
		{ChannelType: uint8(wire.ChannelDisplay), ChannelID: 0},
		{ChannelType: uint8(wire.ChannelCursor), ChannelID: 0},
	})
	if err := m.handle(wire.DataHeader{MsgType: wire.MsgMainChannelsList, MsgSize: uint32(len(entries))}, entries); err != nil {
		t.Fatalf("CHANNELS_LIST: %v", err)
	}

	select {
	case <-m.ChannelsListReady():
	case <-time.After(time.Second):
		t.Fatal("ChannelsListReady did not fire")
	}
	if m.State() != MainReady {
		t.Fatalf("state = %v, want MainReady", m.State())
	}
	if got := m.SessionID(); got != 42 {
		t.Fatalf("SessionID() = %d, want 42", got)
	}
	if len(m.ChannelsList()) != 2 {
		t.Fatalf("ChannelsList() len = %d, want 2", len(m.ChannelsList()))
	}

	// A second CHANNELS_LIST must not panic on a double close.
	if err := m.handle(wire.DataHeader{MsgType: wire.MsgMainChannelsList, MsgSize: uint32(len(entries))}, entries); err != nil {
		t.Fatalf("second CHANNELS_LIST: %v", err)
	}
}

func TestMouseModeHookFiresOutsideLock(t *testing.T) {
	m := NewMainChannel(nil)
	init := wire.EncodeMainInit(wire.MainInit{SessionID: 1})
	if err := m.handle(wire.DataHeader{MsgType: wire.MsgMainInit, MsgSize: uint32(len(init))}, init); err != nil {
		t.Fatalf("MAIN_INIT: %v", err)
	}

	var got uint32
	m.SetMouseModeHook(func(current uint32) {
		got = current
		// Touching the channel's own accessors from within the hook must not
		// deadlock: the hook fires after the lock guarding state is released.
		_ = m.State()
	})

	payload := encodeMouseModeForTest(wire.MouseModeClient|wire.MouseModeServer, wire.MouseModeClient)
	if err := m.handle(wire.DataHeader{MsgType: wire.MsgMainMouseMode, MsgSize: uint32(len(payload))}, payload); err != nil {
		t.Fatalf("MOUSE_MODE: %v", err)
	}
	if got != wire.MouseModeClient {
		t.Fatalf("hook saw %d, want %d", got, wire.MouseModeClient)
	}
	if m.CurrentMouseMode() != wire.MouseModeClient {
		t.Fatalf("CurrentMouseMode() = %d", m.CurrentMouseMode())
	}
}

func encodeMouseModeForTest(supported, current uint32) []byte {
	put32 := func(b []byte, v uint32) []byte { return append(b, byte(v), byte(v>>8), byte(v>>16), byte(v>>24)) }
	b := make([]byte, 0, 8)
	b = put32(b, supported)
	b = put32(b, current)
	return b
}

func TestMainPingRepliesPong(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	conn := dialOverPipe(t, server, client)
	m := NewMainChannel(conn)

	ping := wire.Ping{ID: 7, Timestamp: 99}
	payload := wire.EncodePong(ping) // PING and PONG share the same wire layout
	done := make(chan error, 1)
	go func() { done <- m.handle(wire.DataHeader{MsgType: wire.MsgPing, MsgSize: uint32(len(payload))}, payload) }()

	hdrBuf := make([]byte, 18)
	server.SetReadDeadline(time.Now().Add(2 * time.Second))
	readFullPipe(server, hdrBuf)
	hdr, err := wire.DecodeDataHeader(hdrBuf)
	if err != nil {
		t.Fatalf("DecodeDataHeader: %v", err)
	}
	if hdr.MsgType != wire.MsgPong {
		t.Fatalf("MsgType = %d, want MsgPong", hdr.MsgType)
	}
	body := make([]byte, hdr.MsgSize)
	readFullPipe(server, body)
	got, err := wire.DecodePing(body)
	if err != nil {
		t.Fatalf("DecodePing: %v", err)
	}
	if got != ping {
		t.Fatalf("pong body = %+v, want %+v", got, ping)
	}
	if err := <-done; err != nil {
		t.Fatalf("handle: %v", err)
	}
}
