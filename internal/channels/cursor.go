package channels

import (
	"sync"

	"spice-go/internal/channel"
	"spice-go/internal/spiceerr"
	"spice-go/internal/wire"
)

// CursorShape is a decoded cursor bitmap, keyed in the cache by Unique.
type CursorShape struct {
	Unique   uint64
	Type     uint8
	Width    uint16
	Height   uint16
	HotSpotX uint16
	HotSpotY uint16
	Pixels   []byte
}

// CursorChannel tracks the cache of cursor shapes, which one is current,
// and its on-screen position/visibility.
//
// CURSOR_INVAL_ONE removes a shape from the cache but must never leave the
// currently-displayed cursor pointing at freed memory: the current cursor
// is held by its own pointer independent of the cache map, so invalidating
// its cache entry does not blank the screen.
type CursorChannel struct {
	conn *channel.Conn

	mu      sync.RWMutex
	cache   map[uint64]*CursorShape
	current *CursorShape
	visible bool
	x, y    int16
	trail   CursorTrailState
	lastErr error

	onCursorChanged func()
}

type CursorTrailState struct {
	Length, Frequency uint16
}

func NewCursorChannel(conn *channel.Conn) *CursorChannel {
	return &CursorChannel{
		conn:  conn,
		cache: make(map[uint64]*CursorShape),
	}
}

func (c *CursorChannel) SetCursorChangedHook(fn func()) {
	c.mu.Lock()
	c.onCursorChanged = fn
	c.mu.Unlock()
}

func (c *CursorChannel) Run() error {
	for {
		hdr, payload, err := c.conn.ReadMessage()
		if err != nil {
			c.fail(err)
			return err
		}
		if err := c.handle(hdr, payload); err != nil {
			c.fail(err)
			return err
		}
	}
}

func (c *CursorChannel) fail(err error) {
	c.mu.Lock()
	if c.lastErr == nil {
		c.lastErr = err
	}
	c.mu.Unlock()
}

func (c *CursorChannel) handle(hdr wire.DataHeader, payload []byte) error {
	switch hdr.MsgType {
	case wire.MsgCursorInit:
		init, err := wire.DecodeCursorInit(payload)
		if err != nil {
			return err
		}
		c.mu.Lock()
		c.cache = make(map[uint64]*CursorShape)
		c.current = nil
		c.visible = init.Visible
		c.x, c.y = init.X, init.Y
		c.mu.Unlock()
		return nil

	case wire.MsgCursorReset:
		c.mu.Lock()
		c.cache = make(map[uint64]*CursorShape)
		c.current = nil
		c.mu.Unlock()
		return nil

	case wire.MsgCursorSet:
		hdrSize := wire.CursorSetHeaderSize()
		if len(payload) < hdrSize {
			return spiceerr.NewChannelError("CURSOR_SET payload too short")
		}
		sh, err := wire.DecodeCursorSetHeader(payload)
		if err != nil {
			return err
		}
		shape := &CursorShape{
			Unique: sh.Unique, Type: sh.Type, Width: sh.Width, Height: sh.Height,
			HotSpotX: sh.HotSpotX, HotSpotY: sh.HotSpotY,
			Pixels: append([]byte(nil), payload[hdrSize:]...),
		}
		c.mu.Lock()
		if shape.Unique != 0 {
			c.cache[shape.Unique] = shape
		}
		c.current = shape
		c.visible = true
		hook := c.onCursorChanged
		c.mu.Unlock()
		if hook != nil {
			hook()
		}
		return nil

	case wire.MsgCursorMove:
		m, err := wire.DecodeCursorMove(payload)
		if err != nil {
			return err
		}
		c.mu.Lock()
		c.x, c.y = m.X, m.Y
		c.mu.Unlock()
		return nil

	case wire.MsgCursorHide:
		c.mu.Lock()
		c.visible = false
		c.mu.Unlock()
		return nil

	case wire.MsgCursorTrail:
		t, err := wire.DecodeCursorTrail(payload)
		if err != nil {
			return err
		}
		c.mu.Lock()
		c.trail = CursorTrailState{Length: t.Length, Frequency: t.Frequency}
		c.mu.Unlock()
		return nil

	case wire.MsgCursorInvalOne:
		unique, err := wire.DecodeCursorInvalOne(payload)
		if err != nil {
			return err
		}
		c.mu.Lock()
		delete(c.cache, unique)
		// c.current is untouched: it holds its own *CursorShape regardless
		// of whether the cache still indexes it.
		c.mu.Unlock()
		return nil

	case wire.MsgCursorInvalAll:
		c.mu.Lock()
		c.cache = make(map[uint64]*CursorShape)
		// current survives: only the cache is cleared.
		c.mu.Unlock()
		return nil

	default:
		return nil
	}
}

// Current returns a value copy of the displayed cursor shape. The copy
// survives any later CURSOR_INVAL_ONE/CURSOR_INVAL_ALL on the cache, since
// it does not alias the cache's map entry.
func (c *CursorChannel) Current() (CursorShape, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil {
		return CursorShape{}, false
	}
	shape := *c.current
	shape.Pixels = append([]byte(nil), c.current.Pixels...)
	return shape, true
}

func (c *CursorChannel) Visible() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.visible
}

func (c *CursorChannel) Position() (int16, int16) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.x, c.y
}

func (c *CursorChannel) CacheSize() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

func (c *CursorChannel) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}
