// Package pixfmt converts between the pixel encodings a SPICE surface may
// arrive in and the 32-bit RGBA a downstream sink requires (spec §4.5).
package pixfmt

// RGB565ToRGBA expands a 16-bit 5/6/5 pixel to 8-bit-per-channel RGBA,
// left-shifting each channel into the high bits and filling the low bits
// with the channel's own high bits (so round-tripping through
// RGBAToRGB565 restores the original top 5/6/5 bits exactly) and an opaque
// alpha channel.
func RGB565ToRGBA(px uint16) [4]byte {
	r5 := uint8(px>>11) & 0x1F
	g6 := uint8(px>>5) & 0x3F
	b5 := uint8(px) & 0x1F

	r := (r5 << 3) | (r5 >> 2)
	g := (g6 << 2) | (g6 >> 4)
	b := (b5 << 3) | (b5 >> 2)

	return [4]byte{r, g, b, 0xFF}
}

// RGBAToRGB565 packs the top 5/6/5 bits of an RGBA pixel's color channels
// into a 16-bit word, discarding alpha.
func RGBAToRGB565(rgba [4]byte) uint16 {
	r5 := uint16(rgba[0]>>3) & 0x1F
	g6 := uint16(rgba[1]>>2) & 0x3F
	b5 := uint16(rgba[2]>>3) & 0x1F
	return (r5 << 11) | (g6 << 5) | b5
}

// BGR24ToRGBA reverses a 24-bit BGR triple into RGBA with a fully opaque
// alpha channel.
func BGR24ToRGBA(bgr [3]byte) [4]byte {
	return [4]byte{bgr[2], bgr[1], bgr[0], 0xFF}
}

// SurfaceToRGBA converts an entire surface buffer of the given wire bit
// depth (16, 24, or 32) to a tightly packed RGBA buffer. 32-bit surfaces
// are already RGBA-compatible (xRGB/ARGB byte order) and are copied as-is.
func SurfaceToRGBA(data []byte, bitDepth uint32) []byte {
	switch bitDepth {
	case 16:
		out := make([]byte, 0, len(data)/2*4)
		for i := 0; i+1 < len(data); i += 2 {
			px := uint16(data[i]) | uint16(data[i+1])<<8
			rgba := RGB565ToRGBA(px)
			out = append(out, rgba[:]...)
		}
		return out
	case 24:
		out := make([]byte, 0, len(data)/3*4)
		for i := 0; i+2 < len(data); i += 3 {
			rgba := BGR24ToRGBA([3]byte{data[i], data[i+1], data[i+2]})
			out = append(out, rgba[:]...)
		}
		return out
	default:
		out := make([]byte, len(data))
		copy(out, data)
		return out
	}
}
