package channels

import (
	"sync"

	"spice-go/internal/channel"
	"spice-go/internal/pixfmt"
	"spice-go/internal/video"
	"spice-go/internal/wire"
)

// DisplaySurface is an addressable raster target. Data is kept in its wire
// format (bit depth tracked by Format); pixfmt.SurfaceToRGBA converts on
// demand rather than on every write, since most surfaces are drawn into far
// more often than read out.
type DisplaySurface struct {
	ID     uint32
	Width  uint32
	Height uint32
	Format uint32
	Data   []byte

	lastHash uint64
}

func newSurface(id, width, height, format uint32) *DisplaySurface {
	bpp := wire.BytesPerPixel(format)
	return &DisplaySurface{
		ID:     id,
		Width:  width,
		Height: height,
		Format: format,
		Data:   make([]byte, int(width)*int(height)*bpp),
	}
}

// rollingHash is a cheap sampled checksum over every 1024th byte of the
// surface, used to decide whether a push to the host is worth issuing at
// all (spec §4.5). It is not a content hash in any cryptographic sense.
func rollingHash(data []byte) uint64 {
	var h uint64 = 1469598103934665603 // FNV offset basis
	for i := 0; i < len(data); i += 1024 {
		h ^= uint64(data[i])
		h *= 1099511628211 // FNV prime
	}
	return h
}

// Changed reports whether the surface's sampled hash differs from the last
// call to Changed, updating the stored hash as a side effect.
func (s *DisplaySurface) Changed() bool {
	h := rollingHash(s.Data)
	changed := h != s.lastHash
	s.lastHash = h
	return changed
}

// StreamState tracks one active video stream's geometry, independent of the
// video.Sink that ultimately decodes its frames.
type StreamState struct {
	ID        uint32
	SurfaceID uint32
	CodecType uint8
	Width     uint32
	Height    uint32
	DestRect  wire.SpiceRect
}

// DisplayChannel owns every surface, monitor entry, and stream for one
// Display channel connection.
type DisplayChannel struct {
	conn *channel.Conn
	sink video.Sink

	mu                  sync.RWMutex
	surfaces            map[uint32]*DisplaySurface
	monitors            []wire.MonitorHead
	streams             map[uint32]*StreamState
	preferredVideoCodec uint8
	lastErr             error

	// onSurfaceChanged is invoked (outside the lock) with a surface id
	// whenever Changed() would report true for it after a draw, so the
	// façade can push a repaint notification to its host without polling.
	onSurfaceChanged func(surfaceID uint32)
}

func NewDisplayChannel(conn *channel.Conn, sink video.Sink) *DisplayChannel {
	if sink == nil {
		sink = video.DiscardSink{}
	}
	return &DisplayChannel{
		conn:     conn,
		sink:     sink,
		surfaces: make(map[uint32]*DisplaySurface),
		streams:  make(map[uint32]*StreamState),
	}
}

func (d *DisplayChannel) SetSurfaceChangedHook(fn func(surfaceID uint32)) {
	d.mu.Lock()
	d.onSurfaceChanged = fn
	d.mu.Unlock()
}

func (d *DisplayChannel) Run() error {
	for {
		hdr, payload, err := d.conn.ReadMessage()
		if err != nil {
			d.fail(err)
			return err
		}
		if err := d.handle(hdr, payload); err != nil {
			d.fail(err)
			return err
		}
	}
}

func (d *DisplayChannel) fail(err error) {
	d.mu.Lock()
	if d.lastErr == nil {
		d.lastErr = err
	}
	d.mu.Unlock()
}

func (d *DisplayChannel) handle(hdr wire.DataHeader, payload []byte) error {
	switch hdr.MsgType {
	case wire.MsgDisplayMode:
		m, err := wire.DecodeDisplayMode(payload)
		if err != nil {
			return err
		}
		d.putSurface(newSurface(0, m.Width, m.Height, m.Bits))
		return nil

	case wire.MsgDisplaySurfaceCreate:
		s, err := wire.DecodeSurfaceCreate(payload)
		if err != nil {
			return err
		}
		d.putSurface(newSurface(s.SurfaceID, s.Width, s.Height, s.Format))
		return nil

	case wire.MsgDisplaySurfaceDestroy:
		id, err := wire.DecodeSurfaceDestroy(payload)
		if err != nil {
			return err
		}
		d.mu.Lock()
		delete(d.surfaces, id)
		d.mu.Unlock()
		return nil

	case wire.MsgDisplayReset:
		d.mu.Lock()
		d.surfaces = make(map[uint32]*DisplaySurface)
		d.monitors = nil
		d.streams = make(map[uint32]*StreamState)
		d.mu.Unlock()
		return nil

	case wire.MsgDisplayMark, wire.MsgDisplayInvalList, wire.MsgDisplayInvalAllPixmaps,
		wire.MsgDisplayInvalPalette, wire.MsgDisplayInvalAllPalettes:
		// Cache-acknowledgment messages; this core keeps no server-side
		// image cache to invalidate, so these are no-ops.
		return nil

	case wire.MsgDisplayMonitorsConfig:
		heads, err := wire.DecodeMonitorsConfig(payload)
		if err != nil {
			return err
		}
		d.mu.Lock()
		d.monitors = heads
		d.mu.Unlock()
		return nil

	case wire.MsgDisplayStreamPreferredVideoCodecType:
		codec, err := wire.DecodePreferredVideoCodecType(payload)
		if err != nil {
			return err
		}
		d.mu.Lock()
		d.preferredVideoCodec = codec
		d.mu.Unlock()
		return nil

	case wire.MsgDisplayStreamCreate:
		s, known, err := wire.DecodeStreamCreate(payload)
		if err != nil {
			return err
		}
		if !known {
			return nil
		}
		d.mu.Lock()
		d.streams[s.ID] = &StreamState{
			ID: s.ID, CodecType: s.CodecType, Width: s.Width, Height: s.Height, DestRect: s.DestRect,
		}
		d.mu.Unlock()
		d.sink.StreamCreated(s.ID, s.CodecType, s.Width, s.Height)
		return nil

	case wire.MsgDisplayStreamData, wire.MsgDisplayStreamDataSized:
		s, err := wire.DecodeStreamData(payload)
		if err != nil {
			return err
		}
		d.mu.RLock()
		st, ok := d.streams[s.ID]
		d.mu.RUnlock()
		codec := uint8(0)
		if ok {
			codec = st.CodecType
		}
		d.sink.StreamFrame(video.Frame{StreamID: s.ID, CodecType: codec, Data: s.Data, Timestamp: s.MultiMediaTime})
		return nil

	case wire.MsgDisplayStreamDestroy:
		id, err := wire.DecodeStreamDestroy(payload)
		if err != nil {
			return err
		}
		d.mu.Lock()
		delete(d.streams, id)
		d.mu.Unlock()
		d.sink.StreamDestroyed(id)
		return nil

	case wire.MsgDisplayStreamDestroyAll:
		d.mu.Lock()
		ids := make([]uint32, 0, len(d.streams))
		for id := range d.streams {
			ids = append(ids, id)
		}
		d.streams = make(map[uint32]*StreamState)
		d.mu.Unlock()
		for _, id := range ids {
			d.sink.StreamDestroyed(id)
		}
		return nil

	case wire.MsgDisplayDrawCopy:
		dc, known, err := wire.DecodeDrawCopy(payload)
		if err != nil {
			return err
		}
		// Image is an opaque handle into the server's resource table; this
		// core keeps no image cache to resolve it against (see the
		// MsgDisplayInval* no-ops above), so there are no source pixels to
		// copy. The surface's change check is still run, so the change hook
		// fires if surface 0's sampled hash differs from its last check.
		if known {
			d.touchSurfaceForBBox(dc.Base.BBox)
		}
		return nil

	case wire.MsgDisplayDrawFill:
		df, known, err := wire.DecodeDrawFill(payload)
		if err != nil {
			return err
		}
		if known {
			d.blitFill(df.Base.BBox, df.Brush)
		}
		return nil

	case wire.MsgDisplayDrawOpaque:
		do, known, err := wire.DecodeDrawOpaque(payload)
		if err != nil {
			return err
		}
		// Same resource-table limitation as DRAW_COPY above; the Brush
		// background color carried alongside Image is only used as a
		// fallback when Image can't be resolved, which is always true here,
		// so blit it the same way DRAW_FILL does.
		if known {
			d.blitFill(do.Base.BBox, do.Brush)
		}
		return nil

	case wire.MsgDisplayDrawBlend, wire.MsgDisplayDrawBlackness, wire.MsgDisplayDrawWhiteness,
		wire.MsgDisplayDrawInvers, wire.MsgDisplayDrawRop3, wire.MsgDisplayDrawStroke,
		wire.MsgDisplayDrawText, wire.MsgDisplayDrawTransparent, wire.MsgDisplayDrawAlphaBlend,
		wire.MsgDisplayDrawComposite:
		base, _, known, err := wire.DecodeDrawBaseOnly(payload)
		if err != nil {
			return err
		}
		if known {
			d.touchSurfaceForBBox(base.BBox)
		}
		return nil

	default:
		return nil
	}
}

func (d *DisplayChannel) putSurface(s *DisplaySurface) {
	d.mu.Lock()
	d.surfaces[s.ID] = s
	d.mu.Unlock()
}

// blitFill writes brush into every pixel of surface 0 within bbox, clamped
// to the surface's bounds, then runs the usual dirty-tracking notification.
// brush holds the surface's native per-pixel bytes packed into the low end
// of a uint32 (2 bytes for 16-bit surfaces, 3 for 24-bit, 4 for 32-bit); no
// raster-op handling beyond plain replacement is implemented, since Rop
// codes other than copy aren't otherwise exercised by this core.
func (d *DisplayChannel) blitFill(bbox wire.SpiceRect, brush uint32) {
	d.mu.Lock()
	s, ok := d.surfaces[0]
	if ok {
		fillRect(s, bbox, brush)
	}
	var hook func(uint32)
	var changed bool
	if ok {
		changed = s.Changed()
		hook = d.onSurfaceChanged
	}
	d.mu.Unlock()
	if ok && changed && hook != nil {
		hook(0)
	}
}

// touchSurfaceForBBox re-runs surface 0's Changed() check and calls the
// change hook if it reports true, for draw primitives this core can't
// resolve to real pixel data. It writes no pixels and keeps no dirty state;
// the bbox argument is not used. SPICE draw messages don't name their target surface at this
// level of the protocol subset this client speaks (spec §4.2 scopes drawing
// to the primary surface); multi-surface compositing is out of scope.
func (d *DisplayChannel) touchSurfaceForBBox(_ wire.SpiceRect) {
	d.mu.Lock()
	s, ok := d.surfaces[0]
	var hook func(uint32)
	var changed bool
	if ok {
		changed = s.Changed()
		hook = d.onSurfaceChanged
	}
	d.mu.Unlock()
	if ok && changed && hook != nil {
		hook(0)
	}
}

// fillRect writes color's low bpp(s.Format) bytes, little-endian, into every
// pixel of s.Data within bbox intersected with the surface's own bounds. A
// bbox wholly outside the surface, or with Right<=Left / Bottom<=Top, is a
// no-op.
func fillRect(s *DisplaySurface, bbox wire.SpiceRect, color uint32) {
	bpp := wire.BytesPerPixel(s.Format)
	if bpp == 0 {
		return
	}
	left, top, right, bottom := bbox.Left, bbox.Top, bbox.Right, bbox.Bottom
	if left < 0 {
		left = 0
	}
	if top < 0 {
		top = 0
	}
	if right > int32(s.Width) {
		right = int32(s.Width)
	}
	if bottom > int32(s.Height) {
		bottom = int32(s.Height)
	}
	if right <= left || bottom <= top {
		return
	}

	var px [4]byte
	for i := 0; i < bpp; i++ {
		px[i] = byte(color >> (8 * i))
	}
	stride := int(s.Width) * bpp
	for y := int(top); y < int(bottom); y++ {
		rowStart := y*stride + int(left)*bpp
		for x := int(left); x < int(right); x++ {
			off := rowStart + (x-int(left))*bpp
			copy(s.Data[off:off+bpp], px[:bpp])
		}
	}
}

// SurfaceSnapshot is an immutable copy of a DisplaySurface's fields,
// returned to sinks so no caller can observe or mutate live channel state.
// Data keeps the surface's wire format; RGBA is the same pixels converted
// via pixfmt.SurfaceToRGBA for hosts that just want to paint a buffer.
type SurfaceSnapshot struct {
	ID     uint32
	Width  uint32
	Height uint32
	Format uint32
	Data   []byte
	RGBA   []byte
}

// GetSurface returns a cloned snapshot of the surface, or ok=false if no
// such surface exists (including after RESET or SURFACE_DESTROY).
func (d *DisplayChannel) GetSurface(id uint32) (SurfaceSnapshot, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.surfaces[id]
	if !ok {
		return SurfaceSnapshot{}, false
	}
	data := make([]byte, len(s.Data))
	copy(data, s.Data)
	return SurfaceSnapshot{
		ID: s.ID, Width: s.Width, Height: s.Height, Format: s.Format,
		Data: data, RGBA: pixfmt.SurfaceToRGBA(data, s.Format),
	}, true
}

func (d *DisplayChannel) Monitors() []wire.MonitorHead {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]wire.MonitorHead, len(d.monitors))
	copy(out, d.monitors)
	return out
}

func (d *DisplayChannel) PreferredVideoCodec() uint8 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.preferredVideoCodec
}

func (d *DisplayChannel) Err() error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lastErr
}
