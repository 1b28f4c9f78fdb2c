package channels

import (
	"testing"

	"spice-go/internal/video"
	"spice-go/internal/wire"
)

func encodeDisplayMode(t *testing.T, width, height, bits uint32) []byte {
	t.Helper()
	b := make([]byte, 0, 20)
	put := func(v uint32) {
		b = append(b, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
	}
	put(width)
	put(height)
	put(bits)
	put(0)
	put(0)
	return b
}

func TestDisplayModeCreatesPrimarySurface(t *testing.T) {
	d := NewDisplayChannel(nil, video.DiscardSink{})
	payload := encodeDisplayMode(t, 1024, 768, 32)
	if err := d.handle(wire.DataHeader{Serial: 1, MsgType: wire.MsgDisplayMode, MsgSize: uint32(len(payload))}, payload); err != nil {
		t.Fatalf("handle: %v", err)
	}
	snap, ok := d.GetSurface(0)
	if !ok {
		t.Fatal("expected surface 0 to exist")
	}
	if snap.Width != 1024 || snap.Height != 768 || snap.Format != 32 {
		t.Fatalf("snapshot = %+v", snap)
	}
	if len(snap.Data) != 1024*768*4 {
		t.Fatalf("data length = %d, want %d", len(snap.Data), 1024*768*4)
	}
}

func TestDisplayResetClearsEverything(t *testing.T) {
	d := NewDisplayChannel(nil, video.DiscardSink{})
	payload := encodeDisplayMode(t, 640, 480, 32)
	if err := d.handle(wire.DataHeader{MsgType: wire.MsgDisplayMode, MsgSize: uint32(len(payload))}, payload); err != nil {
		t.Fatalf("handle DISPLAY_MODE: %v", err)
	}
	monitors := wire.EncodeMonitorsConfig([]wire.MonitorHead{{ID: 0, SurfaceID: 0, Width: 640, Height: 480}})
	if err := d.handle(wire.DataHeader{MsgType: wire.MsgDisplayMonitorsConfig, MsgSize: uint32(len(monitors))}, monitors); err != nil {
		t.Fatalf("handle MONITORS_CONFIG: %v", err)
	}

	if _, ok := d.GetSurface(0); !ok {
		t.Fatal("expected surface 0 before reset")
	}
	if len(d.Monitors()) != 1 {
		t.Fatal("expected one monitor before reset")
	}

	if err := d.handle(wire.DataHeader{MsgType: wire.MsgDisplayReset}, nil); err != nil {
		t.Fatalf("handle RESET: %v", err)
	}

	if _, ok := d.GetSurface(0); ok {
		t.Fatal("expected surface 0 to be gone after RESET")
	}
	if len(d.Monitors()) != 0 {
		t.Fatal("expected empty monitor list after RESET")
	}
}

func TestDisplaySurfaceDestroy(t *testing.T) {
	d := NewDisplayChannel(nil, video.DiscardSink{})
	create := make([]byte, 16)
	put32 := func(b []byte, off int, v uint32) {
		b[off], b[off+1], b[off+2], b[off+3] = byte(v), byte(v>>8), byte(v>>16), byte(v>>24)
	}
	put32(create, 0, 3)
	put32(create, 4, 100)
	put32(create, 8, 100)
	put32(create, 12, wire.SurfaceFmt32xRGB)
	if err := d.handle(wire.DataHeader{MsgType: wire.MsgDisplaySurfaceCreate, MsgSize: 16}, create); err != nil {
		t.Fatalf("handle SURFACE_CREATE: %v", err)
	}
	if _, ok := d.GetSurface(3); !ok {
		t.Fatal("expected surface 3 to exist")
	}

	destroy := []byte{3, 0, 0, 0}
	if err := d.handle(wire.DataHeader{MsgType: wire.MsgDisplaySurfaceDestroy, MsgSize: 4}, destroy); err != nil {
		t.Fatalf("handle SURFACE_DESTROY: %v", err)
	}
	if _, ok := d.GetSurface(3); ok {
		t.Fatal("expected surface 3 to be gone after SURFACE_DESTROY")
	}
}

func encodeDrawFill(t *testing.T, bbox wire.SpiceRect, brush uint32) []byte {
	t.Helper()
	b := make([]byte, 0, 22)
	put32 := func(v int32) {
		u := uint32(v)
		b = append(b, byte(u), byte(u>>8), byte(u>>16), byte(u>>24))
	}
	put32(bbox.Left)
	put32(bbox.Top)
	put32(bbox.Right)
	put32(bbox.Bottom)
	b = append(b, 0) // clip type none
	b = append(b, byte(brush), byte(brush>>8), byte(brush>>16), byte(brush>>24))
	b = append(b, 0) // rop
	return b
}

func TestDisplayDrawFillBlitsSurfacePixels(t *testing.T) {
	d := NewDisplayChannel(nil, video.DiscardSink{})
	mode := encodeDisplayMode(t, 4, 4, wire.SurfaceFmt32xRGB)
	if err := d.handle(wire.DataHeader{MsgType: wire.MsgDisplayMode, MsgSize: uint32(len(mode))}, mode); err != nil {
		t.Fatalf("handle DISPLAY_MODE: %v", err)
	}

	bbox := wire.SpiceRect{Left: 1, Top: 1, Right: 3, Bottom: 3}
	brush := uint32(0x11223344)
	fill := encodeDrawFill(t, bbox, brush)
	if err := d.handle(wire.DataHeader{MsgType: wire.MsgDisplayDrawFill, MsgSize: uint32(len(fill))}, fill); err != nil {
		t.Fatalf("handle DRAW_FILL: %v", err)
	}

	snap, ok := d.GetSurface(0)
	if !ok {
		t.Fatal("expected surface 0 to exist")
	}
	want := []byte{byte(brush), byte(brush >> 8), byte(brush >> 16), byte(brush >> 24)}
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			off := (y*4 + x) * 4
			got := snap.Data[off : off+4]
			inside := x >= 1 && x < 3 && y >= 1 && y < 3
			if inside {
				if string(got) != string(want) {
					t.Fatalf("pixel (%d,%d) = %v, want %v", x, y, got, want)
				}
			} else if got[0] != 0 || got[1] != 0 || got[2] != 0 || got[3] != 0 {
				t.Fatalf("pixel (%d,%d) outside bbox = %v, want zero", x, y, got)
			}
		}
	}
	if len(snap.RGBA) != len(snap.Data) {
		t.Fatalf("RGBA length = %d, want %d (32-bit surfaces copy straight through)", len(snap.RGBA), len(snap.Data))
	}
}

func TestDisplayStreamLifecycleNotifiesSink(t *testing.T) {
	created := false
	destroyed := false
	var framed video.Frame
	sink := &recordingSink{
		onCreate:  func(uint32, uint8, uint32, uint32) { created = true },
		onFrame:   func(f video.Frame) { framed = f },
		onDestroy: func(uint32) { destroyed = true },
	}
	d := NewDisplayChannel(nil, sink)

	create := encodeStreamCreate(t, 1, wire.CodecMJPEG, 320, 240)
	if err := d.handle(wire.DataHeader{MsgType: wire.MsgDisplayStreamCreate, MsgSize: uint32(len(create))}, create); err != nil {
		t.Fatalf("handle STREAM_CREATE: %v", err)
	}
	if !created {
		t.Fatal("expected StreamCreated to be called")
	}

	data := encodeStreamData(t, 1, 42, []byte{1, 2, 3})
	if err := d.handle(wire.DataHeader{MsgType: wire.MsgDisplayStreamData, MsgSize: uint32(len(data))}, data); err != nil {
		t.Fatalf("handle STREAM_DATA: %v", err)
	}
	if framed.StreamID != 1 || framed.CodecType != wire.CodecMJPEG || framed.Timestamp != 42 {
		t.Fatalf("frame = %+v", framed)
	}

	destroy := []byte{1, 0, 0, 0}
	if err := d.handle(wire.DataHeader{MsgType: wire.MsgDisplayStreamDestroy, MsgSize: 4}, destroy); err != nil {
		t.Fatalf("handle STREAM_DESTROY: %v", err)
	}
	if !destroyed {
		t.Fatal("expected StreamDestroyed to be called")
	}
}

type recordingSink struct {
	onCreate  func(streamID uint32, codecType uint8, width, height uint32)
	onFrame   func(f video.Frame)
	onDestroy func(streamID uint32)
}

func (s *recordingSink) StreamCreated(id uint32, codec uint8, w, h uint32) { s.onCreate(id, codec, w, h) }
func (s *recordingSink) StreamFrame(f video.Frame)                        { s.onFrame(f) }
func (s *recordingSink) StreamDestroyed(id uint32)                        { s.onDestroy(id) }

func encodeStreamCreate(t *testing.T, id uint32, codec uint8, width, height uint32) []byte {
	t.Helper()
	b := make([]byte, 0, 64)
	put32 := func(v uint32) { b = append(b, byte(v), byte(v>>8), byte(v>>16), byte(v>>24)) }
	put32(id)
	b = append(b, codec, 0)
	put32(width)
	put32(height)
	// src rect
	for i := 0; i < 4; i++ {
		put32(0)
	}
	// dest rect
	for i := 0; i < 4; i++ {
		put32(0)
	}
	b = append(b, 0) // clip type none
	// stamp
	stamp := uint64(0)
	for i := 0; i < 8; i++ {
		b = append(b, byte(stamp>>(8*i)))
	}
	return b
}

func encodeStreamData(t *testing.T, id, multiMediaTime uint32, data []byte) []byte {
	t.Helper()
	b := make([]byte, 0, 12+len(data))
	put32 := func(v uint32) { b = append(b, byte(v), byte(v>>8), byte(v>>16), byte(v>>24)) }
	put32(id)
	put32(multiMediaTime)
	put32(uint32(len(data)))
	b = append(b, data...)
	return b
}
