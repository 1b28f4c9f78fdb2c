package pixfmt

import "testing"

func TestRGB565RoundTrip(t *testing.T) {
	for _, px := range []uint16{0x0000, 0xFFFF, 0xF800, 0x07E0, 0x001F, 0xA534} {
		rgba := RGB565ToRGBA(px)
		if rgba[3] != 0xFF {
			t.Fatalf("alpha = %#x, want 0xFF", rgba[3])
		}
		back := RGBAToRGB565(rgba)
		if back != px {
			t.Fatalf("round trip %#04x -> %#02v -> %#04x", px, rgba, back)
		}
	}
}

func TestBGR24ToRGBA(t *testing.T) {
	got := BGR24ToRGBA([3]byte{0x10, 0x20, 0x30})
	want := [4]byte{0x30, 0x20, 0x10, 0xFF}
	if got != want {
		t.Fatalf("BGR24ToRGBA = %v, want %v", got, want)
	}
}

func TestSurfaceToRGBALength(t *testing.T) {
	data16 := make([]byte, 8) // 4 pixels at 2 bytes each
	if got := len(SurfaceToRGBA(data16, 16)); got != 16 {
		t.Fatalf("16-bit: len = %d, want 16", got)
	}

	data24 := make([]byte, 9) // 3 pixels at 3 bytes each
	if got := len(SurfaceToRGBA(data24, 24)); got != 12 {
		t.Fatalf("24-bit: len = %d, want 12", got)
	}

	data32 := make([]byte, 16)
	if got := len(SurfaceToRGBA(data32, 32)); got != 16 {
		t.Fatalf("32-bit: len = %d, want 16", got)
	}
}
