package channels

import (
	"bytes"
	"net"
	"testing"
	"time"

	"spice-go/internal/wire"
)

func readChannelMessage(t *testing.T, nc net.Conn) (wire.DataHeader, []byte) {
	t.Helper()
	nc.SetReadDeadline(time.Now().Add(2 * time.Second))
	hdrBuf := make([]byte, 18)
	readFullPipe(nc, hdrBuf)
	hdr, err := wire.DecodeDataHeader(hdrBuf)
	if err != nil {
		t.Fatalf("DecodeDataHeader: %v", err)
	}
	body := make([]byte, hdr.MsgSize)
	readFullPipe(nc, body)
	return hdr, body
}

func TestInputsKeyDownUpTracksModifiers(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()
	conn := dialOverPipe(t, server, client)
	in := NewInputsChannel(conn)

	errc := make(chan error, 1)
	go func() { errc <- in.SendKeyDown(ScancodeLeftShift) }()
	hdr, body := readChannelMessage(t, server)
	if hdr.MsgType != wire.MsgInputsKeyDown {
		t.Fatalf("MsgType = %d, want MsgInputsKeyDown", hdr.MsgType)
	}
	if !bytes.Equal(body, wire.EncodeScancode(ScancodeLeftShift)) {
		t.Fatalf("payload = %v", body)
	}
	if err := <-errc; err != nil {
		t.Fatalf("SendKeyDown: %v", err)
	}
	if !in.Modifiers().Shift {
		t.Fatal("expected Shift modifier set after key down")
	}

	go func() { errc <- in.SendKeyUp(ScancodeLeftShift) }()
	readChannelMessage(t, server)
	if err := <-errc; err != nil {
		t.Fatalf("SendKeyUp: %v", err)
	}
	if in.Modifiers().Shift {
		t.Fatal("expected Shift modifier cleared after key up")
	}
}

func TestInputsMouseMotionAbsoluteMode(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()
	conn := dialOverPipe(t, server, client)
	in := NewInputsChannel(conn) // default absolute

	errc := make(chan error, 1)
	go func() { errc <- in.SendMouseMotion(100, 200) }()
	hdr, body := readChannelMessage(t, server)
	if hdr.MsgType != wire.MsgInputsMousePosition {
		t.Fatalf("MsgType = %d, want MsgInputsMousePosition", hdr.MsgType)
	}
	want := wire.EncodeMousePosition(wire.MousePosition{X: 100, Y: 200, DisplayID: 0})
	if !bytes.Equal(body, want) {
		t.Fatalf("payload = %v, want %v", body, want)
	}
	if err := <-errc; err != nil {
		t.Fatalf("SendMouseMotion: %v", err)
	}
}

func TestInputsMouseMotionRelativeModeSendsDeltas(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()
	conn := dialOverPipe(t, server, client)
	in := NewInputsChannel(conn)
	in.SetMouseMode(wire.MouseModeServer)

	errc := make(chan error, 1)
	go func() { errc <- in.SendMouseMotion(50, 60) }()
	hdr, body := readChannelMessage(t, server)
	if hdr.MsgType != wire.MsgInputsMouseMotion {
		t.Fatalf("MsgType = %d, want MsgInputsMouseMotion", hdr.MsgType)
	}
	want := wire.EncodeMouseMotion(wire.MouseMotion{DX: 0, DY: 0})
	if !bytes.Equal(body, want) {
		t.Fatalf("first motion payload = %v, want zero delta %v", body, want)
	}
	if err := <-errc; err != nil {
		t.Fatalf("SendMouseMotion: %v", err)
	}

	go func() { errc <- in.SendMouseMotion(55, 65) }()
	hdr, body = readChannelMessage(t, server)
	if hdr.MsgType != wire.MsgInputsMouseMotion {
		t.Fatalf("MsgType = %d, want MsgInputsMouseMotion", hdr.MsgType)
	}
	want = wire.EncodeMouseMotion(wire.MouseMotion{DX: 5, DY: 5})
	if !bytes.Equal(body, want) {
		t.Fatalf("second motion payload = %v, want delta %v", body, want)
	}
	if err := <-errc; err != nil {
		t.Fatalf("SendMouseMotion: %v", err)
	}
}

func TestInputsMouseWheelMapsToButtonPressRelease(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()
	conn := dialOverPipe(t, server, client)
	in := NewInputsChannel(conn)

	errc := make(chan error, 1)
	go func() { errc <- in.SendMouseWheel(0, 1) }()

	hdr, body := readChannelMessage(t, server)
	if hdr.MsgType != wire.MsgInputsMousePress {
		t.Fatalf("MsgType = %d, want MsgInputsMousePress", hdr.MsgType)
	}
	press := wire.MouseButton{}
	if err := decodeMouseButtonForTest(body, &press); err != nil {
		t.Fatalf("decode press: %v", err)
	}
	if press.ButtonMask != wheelUpButton {
		t.Fatalf("ButtonMask = %#x, want wheelUpButton", press.ButtonMask)
	}

	hdr, body = readChannelMessage(t, server)
	if hdr.MsgType != wire.MsgInputsMouseRelease {
		t.Fatalf("MsgType = %d, want MsgInputsMouseRelease", hdr.MsgType)
	}
	if err := <-errc; err != nil {
		t.Fatalf("SendMouseWheel: %v", err)
	}

	// Horizontal-only deltas are dropped entirely.
	done := make(chan struct{})
	go func() {
		in.SendMouseWheel(1, 0)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("SendMouseWheel(1, 0) blocked unexpectedly")
	}
}

// decodeMouseButtonForTest mirrors EncodeMouseButton's layout (1 byte mask,
// 4 bytes modifiers) since the wire package only exports the encoder (this
// client never receives MOUSE_PRESS/RELEASE from a server).
func decodeMouseButtonForTest(b []byte, out *wire.MouseButton) error {
	if len(b) < 5 {
		return errShortMouseButton
	}
	out.ButtonMask = b[0]
	out.Modifiers = uint32(b[1]) | uint32(b[2])<<8 | uint32(b[3])<<16 | uint32(b[4])<<24
	return nil
}

var errShortMouseButton = &testDecodeError{"mouse button payload too short"}

type testDecodeError struct{ msg string }

func (e *testDecodeError) Error() string { return e.msg }
