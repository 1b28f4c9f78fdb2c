package channels

import (
	"sync"

	"golang.org/x/time/rate"

	"spice-go/internal/channel"
	"spice-go/internal/wire"
)

// Scancodes recognized for modifier tracking (PC AT set-1, extended codes
// carrying the 0xE0 prefix in the high byte).
const (
	ScancodeLeftShift  uint32 = 0x2A
	ScancodeRightShift uint32 = 0x36
	ScancodeLeftCtrl   uint32 = 0x1D
	ScancodeRightCtrl  uint32 = 0xE01D
	ScancodeLeftAlt    uint32 = 0x38
	ScancodeRightAlt   uint32 = 0xE038
	ScancodeLeftSuper  uint32 = 0xE05B
	ScancodeRightSuper uint32 = 0xE05C
)

// Modifier bit positions packed into the mask sent with mouse button
// messages.
const (
	ModShift uint32 = 1 << 0
	ModCtrl  uint32 = 1 << 1
	ModAlt   uint32 = 1 << 2
	ModSuper uint32 = 1 << 3
)

// ModifierState is the live shift/ctrl/alt/super state derived from the
// key-down/up stream this client itself sends (spec §4.7); the server
// never reports it back.
type ModifierState struct {
	Shift, Ctrl, Alt, Super bool
}

func (m ModifierState) mask() uint32 {
	var v uint32
	if m.Shift {
		v |= ModShift
	}
	if m.Ctrl {
		v |= ModCtrl
	}
	if m.Alt {
		v |= ModAlt
	}
	if m.Super {
		v |= ModSuper
	}
	return v
}

func (m *ModifierState) update(scancode uint32, down bool) {
	switch scancode {
	case ScancodeLeftShift, ScancodeRightShift:
		m.Shift = down
	case ScancodeLeftCtrl, ScancodeRightCtrl:
		m.Ctrl = down
	case ScancodeLeftAlt, ScancodeRightAlt:
		m.Alt = down
	case ScancodeLeftSuper, ScancodeRightSuper:
		m.Super = down
	}
}

// Mouse button bit positions, per SPICE's 3-bit button mask convention.
const (
	ButtonLeft   uint8 = 1 << 0
	ButtonMiddle uint8 = 1 << 1
	ButtonRight  uint8 = 1 << 2
)

// InputsChannel sends keyboard and pointer events and tracks the state
// needed to compute them (modifier mask, mouse mode, last absolute
// position for relative-mode motion deltas).
//
// Outgoing mouse motion is rate-limited (golang.org/x/time/rate) so a host
// application polling the pointer at display refresh rate cannot flood the
// channel; key/button/wheel events are never throttled since they are
// discrete and rare by comparison.
type InputsChannel struct {
	conn *channel.Conn

	mu           sync.Mutex
	modifiers    ModifierState
	absoluteMode bool // true = "client" mode (position), false = "server" mode (deltas)
	lastX, lastY int32
	haveLast     bool

	motionLimiter *rate.Limiter
}

func NewInputsChannel(conn *channel.Conn) *InputsChannel {
	return &InputsChannel{
		conn:          conn,
		absoluteMode:  true,
		motionLimiter: rate.NewLimiter(rate.Limit(250), 8), // ~250 events/s, bursts of 8
	}
}

// SetMouseMode is called by the façade when the Main channel reports a
// mode change, before any motion event is forwarded (spec §4.7).
func (i *InputsChannel) SetMouseMode(current uint32) {
	i.mu.Lock()
	i.absoluteMode = current&wire.MouseModeClient != 0
	i.haveLast = false
	i.mu.Unlock()
}

func (i *InputsChannel) SendKeyDown(scancode uint32) error {
	i.mu.Lock()
	i.modifiers.update(scancode, true)
	i.mu.Unlock()
	return i.conn.SendMessage(wire.MsgInputsKeyDown, wire.EncodeScancode(scancode))
}

func (i *InputsChannel) SendKeyUp(scancode uint32) error {
	i.mu.Lock()
	i.modifiers.update(scancode, false)
	i.mu.Unlock()
	return i.conn.SendMessage(wire.MsgInputsKeyUp, wire.EncodeScancode(scancode))
}

// SendMouseMotion forwards a pointer move, picking absolute position or
// relative delta encoding based on the last mode reported by the Main
// channel. x, y are always the pointer's absolute coordinates as the
// caller observes them; the delta for relative mode is computed here
// against the last position this method saw.
func (i *InputsChannel) SendMouseMotion(x, y int32) error {
	if !i.motionLimiter.Allow() {
		return nil
	}

	i.mu.Lock()
	absolute := i.absoluteMode
	var dx, dy int32
	if !absolute {
		if i.haveLast {
			dx, dy = x-i.lastX, y-i.lastY
		}
	}
	i.lastX, i.lastY = x, y
	i.haveLast = true
	i.mu.Unlock()

	if absolute {
		return i.conn.SendMessage(wire.MsgInputsMousePosition, wire.EncodeMousePosition(wire.MousePosition{X: x, Y: y, DisplayID: 0}))
	}
	return i.conn.SendMessage(wire.MsgInputsMouseMotion, wire.EncodeMouseMotion(wire.MouseMotion{DX: dx, DY: dy}))
}

func (i *InputsChannel) SendMouseButton(button uint8, pressed bool) error {
	i.mu.Lock()
	mods := i.modifiers.mask()
	i.mu.Unlock()

	msgType := wire.MsgInputsMouseRelease
	if pressed {
		msgType = wire.MsgInputsMousePress
	}
	return i.conn.SendMessage(msgType, wire.EncodeMouseButton(wire.MouseButton{ButtonMask: button, Modifiers: mods}))
}

// SendMouseWheel maps a vertical wheel delta to a press/release pair on the
// synthetic wheel-up/wheel-down buttons, per SPICE convention. Horizontal
// deltas are discarded (spec §4.7's stated Open Question, resolved as
// "drop" — see DESIGN.md).
func (i *InputsChannel) SendMouseWheel(dx, dy int32) error {
	_ = dx
	if dy == 0 {
		return nil
	}
	button := wheelUpButton
	if dy < 0 {
		button = wheelDownButton
	}
	if err := i.SendMouseButton(button, true); err != nil {
		return err
	}
	return i.SendMouseButton(button, false)
}

// Synthetic wheel buttons, conventionally buttons 4/5 beyond the 3-bit
// primary mask; SPICE clients encode them the same way as left/middle/right.
const (
	wheelUpButton   uint8 = 1 << 3
	wheelDownButton uint8 = 1 << 4
)

func (i *InputsChannel) Modifiers() ModifierState {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.modifiers
}
