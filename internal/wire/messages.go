package wire

import "log"

// This file holds the declarative per-message-type payload structures named
// in spec §4.2: display mode, surface create/destroy, draw base+copy,
// stream create/data/destroy, monitors config, cursor init/set/move/hide/
// trail/inval, input keys/position/buttons, main init/ping/pong/channels
// list. Every structure has a fixed or self-describing length; variable
// tails are lengths-then-bytes.

// --- Main channel ---

// MainInit is the fixed-size payload of MAIN_INIT (8 x u32 = 32 bytes).
type MainInit struct {
	SessionID          uint32
	DisplayChannelsHint uint32
	SupportedMouseModes uint32
	CurrentMouseMode    uint32
	AgentConnected      uint32
	AgentTokens         uint32
	MultiMediaTime      uint32
	RamHint             uint32
}

func DecodeMainInit(b []byte) (MainInit, error) {
	var m MainInit
	if len(b) < 32 {
		return m, protoErrf("MAIN_INIT payload too short: %d bytes", len(b))
	}
	fields := []*uint32{
		&m.SessionID, &m.DisplayChannelsHint, &m.SupportedMouseModes, &m.CurrentMouseMode,
		&m.AgentConnected, &m.AgentTokens, &m.MultiMediaTime, &m.RamHint,
	}
	for i, f := range fields {
		v, err := getU32(b, i*4)
		if err != nil {
			return m, err
		}
		*f = v
	}
	return m, nil
}

func EncodeMainInit(m MainInit) []byte {
	b := make([]byte, 0, 32)
	b = putU32(b, m.SessionID)
	b = putU32(b, m.DisplayChannelsHint)
	b = putU32(b, m.SupportedMouseModes)
	b = putU32(b, m.CurrentMouseMode)
	b = putU32(b, m.AgentConnected)
	b = putU32(b, m.AgentTokens)
	b = putU32(b, m.MultiMediaTime)
	b = putU32(b, m.RamHint)
	return b
}

// ChannelListEntry is one (channel_type, channel_id) pair advertised by
// CHANNELS_LIST. On the wire each entry occupies a 4-byte little-endian
// word: byte0=type, byte1=id, bytes2-3=reserved.
type ChannelListEntry struct {
	ChannelType uint8
	ChannelID   uint8
}

func DecodeChannelsList(b []byte) ([]ChannelListEntry, error) {
	if len(b)%4 != 0 {
		return nil, protoErrf("CHANNELS_LIST payload not a multiple of 4: %d bytes", len(b))
	}
	n := len(b) / 4
	out := make([]ChannelListEntry, 0, n)
	for i := 0; i < n; i++ {
		off := i * 4
		out = append(out, ChannelListEntry{ChannelType: b[off], ChannelID: b[off+1]})
	}
	return out, nil
}

func EncodeChannelsList(entries []ChannelListEntry) []byte {
	b := make([]byte, 0, 4*len(entries))
	for _, e := range entries {
		b = append(b, e.ChannelType, e.ChannelID, 0, 0)
	}
	return b
}

// Ping/Pong carry an id and a timestamp (12 bytes: u32 + u64).
type Ping struct {
	ID        uint32
	Timestamp uint64
}

func DecodePing(b []byte) (Ping, error) {
	var p Ping
	if len(b) < 12 {
		return p, protoErrf("PING payload too short: %d bytes", len(b))
	}
	p.ID, _ = getU32(b, 0)
	p.Timestamp, _ = getU64(b, 4)
	return p, nil
}

func EncodePong(p Ping) []byte {
	b := make([]byte, 0, 12)
	b = putU32(b, p.ID)
	b = putU64(b, p.Timestamp)
	return b
}

// MouseMode mirrors MAIN_INIT's mode fields for the MOUSE_MODE message.
type MouseMode struct {
	Supported uint32
	Current   uint32
}

func DecodeMouseMode(b []byte) (MouseMode, error) {
	var m MouseMode
	if len(b) < 8 {
		return m, protoErrf("MOUSE_MODE payload too short: %d bytes", len(b))
	}
	m.Supported, _ = getU32(b, 0)
	m.Current, _ = getU32(b, 4)
	return m, nil
}

func DecodeMultiMediaTime(b []byte) (uint32, error) {
	if len(b) < 4 {
		return 0, protoErrf("MULTI_MEDIA_TIME payload too short: %d bytes", len(b))
	}
	return getU32(b, 0)
}

// --- Display channel ---

// DisplayModeMsg is the legacy MODE message: declares a default primary
// surface (5 x u32 = 20 bytes).
type DisplayModeMsg struct {
	Width     uint32
	Height    uint32
	Bits      uint32
	Reserved  uint32
	Reserved2 uint32
}

func DecodeDisplayMode(b []byte) (DisplayModeMsg, error) {
	var m DisplayModeMsg
	if len(b) < 20 {
		return m, protoErrf("DISPLAY_MODE payload too short: %d bytes", len(b))
	}
	m.Width, _ = getU32(b, 0)
	m.Height, _ = getU32(b, 4)
	m.Bits, _ = getU32(b, 8)
	m.Reserved, _ = getU32(b, 12)
	m.Reserved2, _ = getU32(b, 16)
	return m, nil
}

// SurfaceCreate opens an addressable surface by id (16 bytes).
type SurfaceCreate struct {
	SurfaceID uint32
	Width     uint32
	Height    uint32
	Format    uint32
}

func DecodeSurfaceCreate(b []byte) (SurfaceCreate, error) {
	var s SurfaceCreate
	if len(b) < 16 {
		return s, protoErrf("SURFACE_CREATE payload too short: %d bytes", len(b))
	}
	s.SurfaceID, _ = getU32(b, 0)
	s.Width, _ = getU32(b, 4)
	s.Height, _ = getU32(b, 8)
	s.Format, _ = getU32(b, 12)
	return s, nil
}

func DecodeSurfaceDestroy(b []byte) (uint32, error) {
	if len(b) < 4 {
		return 0, protoErrf("SURFACE_DESTROY payload too short: %d bytes", len(b))
	}
	return getU32(b, 0)
}

// SpiceRect is {left, top, right, bottom: i32}, 16 bytes.
type SpiceRect struct {
	Left, Top, Right, Bottom int32
}

func decodeRect(b []byte, off int) (SpiceRect, int, error) {
	var r SpiceRect
	var err error
	if r.Left, err = getI32(b, off); err != nil {
		return r, off, err
	}
	if r.Top, err = getI32(b, off+4); err != nil {
		return r, off, err
	}
	if r.Right, err = getI32(b, off+8); err != nil {
		return r, off, err
	}
	if r.Bottom, err = getI32(b, off+12); err != nil {
		return r, off, err
	}
	return r, off + 16, nil
}

func appendRect(b []byte, r SpiceRect) []byte {
	b = putI32(b, r.Left)
	b = putI32(b, r.Top)
	b = putI32(b, r.Right)
	b = putI32(b, r.Bottom)
	return b
}

// SpiceClip is {type: u8, rects: optional []SpiceRect}. Type 0 = none,
// 1 = rectangles; other values are tolerated (logged and skipped) per
// spec §4.5's chosen Open-Question answer (see DESIGN.md).
type SpiceClip struct {
	Type  uint8
	Rects []SpiceRect
}

// decodeClip parses a clip starting at off, returning the offset just past
// it. Unknown clip types consume zero additional bytes (nothing more to
// skip is knowable without a length prefix), matching the tolerant policy.
func decodeClip(b []byte, off int) (SpiceClip, int, bool, error) {
	if off >= len(b) {
		return SpiceClip{}, off, false, protoErrf("buffer too small for clip type at %d", off)
	}
	c := SpiceClip{Type: b[off]}
	off++
	switch c.Type {
	case ClipTypeNone:
		return c, off, true, nil
	case ClipTypeRects:
		count, err := getU32(b, off)
		if err != nil {
			return c, off, true, err
		}
		off += 4
		for i := uint32(0); i < count; i++ {
			r, newOff, err := decodeRect(b, off)
			if err != nil {
				return c, off, true, err
			}
			c.Rects = append(c.Rects, r)
			off = newOff
		}
		return c, off, true, nil
	default:
		log.Printf("wire: unknown clip type %d, skipping the message", c.Type)
		return c, off, false, nil
	}
}

func appendClip(b []byte, c SpiceClip) []byte {
	b = append(b, c.Type)
	if c.Type == ClipTypeRects {
		b = putU32(b, uint32(len(c.Rects)))
		for _, r := range c.Rects {
			b = appendRect(b, r)
		}
	}
	return b
}

// DrawBase prefixes every drawing message.
type DrawBase struct {
	BBox SpiceRect
	Clip SpiceClip
}

// ImageRef is the 8-byte opaque address into the server's resource table
// that later drawing messages reference their pixel source by.
type ImageRef uint64

// DrawCopy carries a source rectangle and an image reference.
type DrawCopy struct {
	Base    DrawBase
	SrcArea SpiceRect
	Image   ImageRef
}

// DrawFill carries a solid brush color and a raster op code.
type DrawFill struct {
	Base  DrawBase
	Brush uint32
	Rop   uint8
}

// DrawOpaque is DrawCopy plus a background brush and raster op.
type DrawOpaque struct {
	Base    DrawBase
	SrcArea SpiceRect
	Image   ImageRef
	Brush   uint32
	Rop     uint8
}

// decodeDrawBase parses BBox+Clip and reports whether the clip type was
// recognized (false => log-and-skip per the tolerant policy).
func decodeDrawBase(b []byte) (DrawBase, int, bool, error) {
	var base DrawBase
	rect, off, err := decodeRect(b, 0)
	if err != nil {
		return base, off, false, err
	}
	base.BBox = rect
	clip, off2, known, err := decodeClip(b, off)
	if err != nil {
		return base, off2, known, err
	}
	base.Clip = clip
	return base, off2, known, nil
}

func appendDrawBase(b []byte, base DrawBase) []byte {
	b = appendRect(b, base.BBox)
	b = appendClip(b, base.Clip)
	return b
}

func DecodeDrawCopy(b []byte) (DrawCopy, bool, error) {
	base, off, known, err := decodeDrawBase(b)
	if err != nil || !known {
		return DrawCopy{Base: base}, known, err
	}
	rect, off2, err := decodeRect(b, off)
	if err != nil {
		return DrawCopy{Base: base}, known, err
	}
	img, err := getU64(b, off2)
	if err != nil {
		return DrawCopy{Base: base}, known, err
	}
	return DrawCopy{Base: base, SrcArea: rect, Image: ImageRef(img)}, known, nil
}

func DecodeDrawFill(b []byte) (DrawFill, bool, error) {
	base, off, known, err := decodeDrawBase(b)
	if err != nil || !known {
		return DrawFill{Base: base}, known, err
	}
	brush, err := getU32(b, off)
	if err != nil {
		return DrawFill{Base: base}, known, err
	}
	if off+5 > len(b) {
		return DrawFill{Base: base, Brush: brush}, known, protoErrf("DRAW_FILL payload too short")
	}
	return DrawFill{Base: base, Brush: brush, Rop: b[off+4]}, known, nil
}

func DecodeDrawOpaque(b []byte) (DrawOpaque, bool, error) {
	base, off, known, err := decodeDrawBase(b)
	if err != nil || !known {
		return DrawOpaque{Base: base}, known, err
	}
	rect, off2, err := decodeRect(b, off)
	if err != nil {
		return DrawOpaque{Base: base}, known, err
	}
	img, err := getU64(b, off2)
	if err != nil {
		return DrawOpaque{Base: base}, known, err
	}
	off3 := off2 + 8
	brush, err := getU32(b, off3)
	if err != nil {
		return DrawOpaque{Base: base, SrcArea: rect, Image: ImageRef(img)}, known, err
	}
	if off3+5 > len(b) {
		return DrawOpaque{}, known, protoErrf("DRAW_OPAQUE payload too short")
	}
	return DrawOpaque{Base: base, SrcArea: rect, Image: ImageRef(img), Brush: brush, Rop: b[off3+4]}, known, nil
}

// DecodeDrawBaseOnly parses just the common DrawBase prefix for draw
// message types this core does not interpret field-by-field (Blend,
// Blackness, Whiteness, Invers, Rop3, Stroke, Text, Transparent,
// AlphaBlend): the bbox/clip is still applied for damage tracking, and any
// remaining bytes are returned unparsed.
func DecodeDrawBaseOnly(b []byte) (DrawBase, []byte, bool, error) {
	base, off, known, err := decodeDrawBase(b)
	if err != nil {
		return base, nil, known, err
	}
	if !known {
		return base, nil, known, nil
	}
	return base, b[off:], known, nil
}

// --- Monitors config ---

type MonitorHead struct {
	ID        uint32
	SurfaceID uint32
	Width     uint32
	Height    uint32
	X         int32
	Y         int32
	Flags     uint32
}

const monitorHeadSize = 7 * 4

func DecodeMonitorsConfig(b []byte) ([]MonitorHead, error) {
	if len(b) < 8 {
		return nil, protoErrf("MONITORS_CONFIG payload too short: %d bytes", len(b))
	}
	count, _ := getU32(b, 0)
	// skip max_allowed at offset 4
	heads := make([]MonitorHead, 0, count)
	off := 8
	for i := uint32(0); i < count; i++ {
		if off+monitorHeadSize > len(b) {
			return heads, protoErrf("MONITORS_CONFIG truncated monitor head %d", i)
		}
		var h MonitorHead
		h.ID, _ = getU32(b, off)
		h.SurfaceID, _ = getU32(b, off+4)
		h.Width, _ = getU32(b, off+8)
		h.Height, _ = getU32(b, off+12)
		h.X, _ = getI32(b, off+16)
		h.Y, _ = getI32(b, off+20)
		h.Flags, _ = getU32(b, off+24)
		heads = append(heads, h)
		off += monitorHeadSize
	}
	return heads, nil
}

func EncodeMonitorsConfig(heads []MonitorHead) []byte {
	b := make([]byte, 0, 8+monitorHeadSize*len(heads))
	b = putU32(b, uint32(len(heads)))
	b = putU32(b, uint32(len(heads)))
	for _, h := range heads {
		b = putU32(b, h.ID)
		b = putU32(b, h.SurfaceID)
		b = putU32(b, h.Width)
		b = putU32(b, h.Height)
		b = putI32(b, h.X)
		b = putI32(b, h.Y)
		b = putU32(b, h.Flags)
	}
	return b
}

// --- Streams ---

type StreamCreate struct {
	ID        uint32
	CodecType uint8
	Flags     uint8
	Width     uint32
	Height    uint32
	SrcRect   SpiceRect
	DestRect  SpiceRect
	Clip      SpiceClip
	Stamp     uint64
}

func DecodeStreamCreate(b []byte) (StreamCreate, bool, error) {
	var s StreamCreate
	if len(b) < 4+1+1+4+4 {
		return s, true, protoErrf("STREAM_CREATE payload too short: %d bytes", len(b))
	}
	s.ID, _ = getU32(b, 0)
	s.CodecType = b[4]
	s.Flags = b[5]
	s.Width, _ = getU32(b, 6)
	s.Height, _ = getU32(b, 10)
	off := 14
	src, off, err := decodeRect(b, off)
	if err != nil {
		return s, true, err
	}
	s.SrcRect = src
	dst, off2, err := decodeRect(b, off)
	if err != nil {
		return s, true, err
	}
	s.DestRect = dst
	clip, off3, known, err := decodeClip(b, off2)
	if err != nil || !known {
		return s, known, err
	}
	s.Clip = clip
	stamp, err := getU64(b, off3)
	if err != nil {
		return s, true, err
	}
	s.Stamp = stamp
	return s, true, nil
}

type StreamData struct {
	ID             uint32
	MultiMediaTime uint32
	Data           []byte
}

func DecodeStreamData(b []byte) (StreamData, error) {
	var s StreamData
	if len(b) < 12 {
		return s, protoErrf("STREAM_DATA payload too short: %d bytes", len(b))
	}
	s.ID, _ = getU32(b, 0)
	s.MultiMediaTime, _ = getU32(b, 4)
	dataSize, _ := getU32(b, 8)
	data, err := getBytes(b, 12, int(dataSize))
	if err != nil {
		return s, err
	}
	s.Data = data
	return s, nil
}

func DecodeStreamDestroy(b []byte) (uint32, error) {
	if len(b) < 4 {
		return 0, protoErrf("STREAM_DESTROY payload too short: %d bytes", len(b))
	}
	return getU32(b, 0)
}

func DecodePreferredVideoCodecType(b []byte) (uint8, error) {
	if len(b) < 1 {
		return 0, protoErrf("PREFERRED_VIDEO_CODEC_TYPE payload too short")
	}
	return b[0], nil
}

// --- Cursor channel ---

type CursorInit struct {
	Visible    bool
	X, Y       int16
	TrailLength uint16
}

func DecodeCursorInit(b []byte) (CursorInit, error) {
	var c CursorInit
	if len(b) < 8 {
		return c, protoErrf("CURSOR_INIT payload too short: %d bytes", len(b))
	}
	v, _ := getU16(b, 0)
	c.Visible = v != 0
	x, _ := getU16(b, 2)
	y, _ := getU16(b, 4)
	c.X = int16(x)
	c.Y = int16(y)
	tl, _ := getU16(b, 6)
	c.TrailLength = tl
	return c, nil
}

// CursorSetHeader is the 17-byte fixed header preceding CURSOR_SET's pixel
// data.
type CursorSetHeader struct {
	Unique   uint64
	Type     uint8
	Width    uint16
	Height   uint16
	HotSpotX uint16
	HotSpotY uint16
}

const cursorSetHeaderSize = 8 + 1 + 2 + 2 + 2 + 2 // 17

func DecodeCursorSetHeader(b []byte) (CursorSetHeader, error) {
	var h CursorSetHeader
	if len(b) < cursorSetHeaderSize {
		return h, protoErrf("CURSOR_SET header too short: %d bytes", len(b))
	}
	h.Unique, _ = getU64(b, 0)
	h.Type = b[8]
	h.Width, _ = getU16(b, 9)
	h.Height, _ = getU16(b, 11)
	h.HotSpotX, _ = getU16(b, 13)
	h.HotSpotY, _ = getU16(b, 15)
	return h, nil
}

func CursorSetHeaderSize() int { return cursorSetHeaderSize }

type CursorMove struct{ X, Y int16 }

func DecodeCursorMove(b []byte) (CursorMove, error) {
	var m CursorMove
	if len(b) < 4 {
		return m, protoErrf("CURSOR_MOVE payload too short: %d bytes", len(b))
	}
	x, _ := getU16(b, 0)
	y, _ := getU16(b, 2)
	m.X, m.Y = int16(x), int16(y)
	return m, nil
}

type CursorTrail struct{ Length, Frequency uint16 }

func DecodeCursorTrail(b []byte) (CursorTrail, error) {
	var t CursorTrail
	if len(b) < 4 {
		return t, protoErrf("CURSOR_TRAIL payload too short: %d bytes", len(b))
	}
	t.Length, _ = getU16(b, 0)
	t.Frequency, _ = getU16(b, 2)
	return t, nil
}

func DecodeCursorInvalOne(b []byte) (uint64, error) {
	if len(b) < 8 {
		return 0, protoErrf("CURSOR_INVAL_ONE payload too short: %d bytes", len(b))
	}
	return getU64(b, 0)
}

// --- Inputs channel ---

func EncodeScancode(scancode uint32) []byte {
	return putU32(make([]byte, 0, 4), scancode)
}

type MousePosition struct {
	X, Y      int32
	DisplayID uint32
}

func EncodeMousePosition(p MousePosition) []byte {
	b := make([]byte, 0, 12)
	b = putI32(b, p.X)
	b = putI32(b, p.Y)
	b = putU32(b, p.DisplayID)
	return b
}

type MouseMotion struct{ DX, DY int32 }

func EncodeMouseMotion(m MouseMotion) []byte {
	b := make([]byte, 0, 8)
	b = putI32(b, m.DX)
	b = putI32(b, m.DY)
	return b
}

// MouseButton carries the 3-bit button mask plus the current modifier mask.
type MouseButton struct {
	ButtonMask uint8
	Modifiers  uint32
}

func EncodeMouseButton(m MouseButton) []byte {
	b := make([]byte, 0, 5)
	b = append(b, m.ButtonMask)
	b = putU32(b, m.Modifiers)
	return b
}
