package channels

import (
	"log"
	"sync"

	"spice-go/internal/channel"
	"spice-go/internal/spiceerr"
	"spice-go/internal/wire"
)

// MainState is the Main channel's state machine (spec §4.4).
type MainState int

const (
	MainLinking MainState = iota
	MainIniting
	MainReady
	MainClosed
)

// MainChannel handles session bootstrap, channel enumeration, keep-alive,
// and (minimally) agent token acknowledgment.
type MainChannel struct {
	conn *channel.Conn

	mu                  sync.RWMutex
	state               MainState
	sessionID           uint32
	displayChannelsHint uint32
	supportedMouseModes uint32
	currentMouseMode    uint32
	multiMediaTime      uint32
	ramHint             uint32
	channelsList        []wire.ChannelListEntry
	channelsListReady   chan struct{}
	lastErr             error

	// onMouseMode is invoked (outside the lock) whenever the current mouse
	// mode changes, so the façade can forward it to the Inputs channel
	// before the first motion event, per spec §4.7.
	onMouseMode func(current uint32)
}

func NewMainChannel(conn *channel.Conn) *MainChannel {
	return &MainChannel{
		conn:              conn,
		state:             MainLinking,
		channelsListReady: make(chan struct{}),
	}
}

func (m *MainChannel) SetMouseModeHook(fn func(current uint32)) {
	m.mu.Lock()
	m.onMouseMode = fn
	m.mu.Unlock()
}

// Run drives the channel's message loop until a fatal error or the
// transport closes. The caller typically spawns this in its own goroutine
// once the handshake (done by channel.Dial) has completed.
func (m *MainChannel) Run() error {
	for {
		hdr, payload, err := m.conn.ReadMessage()
		if err != nil {
			m.fail(err)
			return err
		}
		if err := m.handle(hdr, payload); err != nil {
			m.fail(err)
			return err
		}
	}
}

func (m *MainChannel) fail(err error) {
	m.mu.Lock()
	m.state = MainClosed
	if m.lastErr == nil {
		m.lastErr = err
	}
	m.mu.Unlock()
}

func (m *MainChannel) handle(hdr wire.DataHeader, payload []byte) error {
	switch hdr.MsgType {
	case wire.MsgMainInit:
		init, err := wire.DecodeMainInit(payload)
		if err != nil {
			return err
		}
		m.mu.Lock()
		if m.state != MainLinking {
			m.mu.Unlock()
			return spiceerr.NewChannelError("MAIN_INIT received out of order")
		}
		m.sessionID = init.SessionID
		m.displayChannelsHint = init.DisplayChannelsHint
		m.supportedMouseModes = init.SupportedMouseModes
		m.currentMouseMode = init.CurrentMouseMode
		m.multiMediaTime = init.MultiMediaTime
		m.ramHint = init.RamHint
		m.state = MainIniting
		m.mu.Unlock()
		return nil

	case wire.MsgMainChannelsList:
		entries, err := wire.DecodeChannelsList(payload)
		if err != nil {
			return err
		}
		m.mu.Lock()
		if m.state != MainIniting && m.state != MainReady {
			m.mu.Unlock()
			return spiceerr.NewChannelError("CHANNELS_LIST received before MAIN_INIT")
		}
		m.channelsList = entries
		first := m.state != MainReady
		m.state = MainReady
		m.mu.Unlock()
		if first {
			close(m.channelsListReady)
		}
		return nil

	case wire.MsgPing:
		ping, err := wire.DecodePing(payload)
		if err != nil {
			return err
		}
		return m.conn.SendMessage(wire.MsgPong, wire.EncodePong(ping))

	case wire.MsgMainMultiMediaTime:
		t, err := wire.DecodeMultiMediaTime(payload)
		if err != nil {
			return err
		}
		m.mu.Lock()
		m.multiMediaTime = t
		m.mu.Unlock()
		return nil

	case wire.MsgMainMouseMode:
		mm, err := wire.DecodeMouseMode(payload)
		if err != nil {
			return err
		}
		m.mu.Lock()
		m.supportedMouseModes = mm.Supported
		m.currentMouseMode = mm.Current
		hook := m.onMouseMode
		m.mu.Unlock()
		if hook != nil {
			hook(mm.Current)
		}
		return nil

	case wire.MsgMainAgentConnected, wire.MsgMainAgentDisconnected,
		wire.MsgMainAgentData, wire.MsgMainAgentToken:
		// Agent passthrough is out of scope beyond acknowledging tokens
		// (spec §4.4); nothing to do but not treat it as unknown.
		return nil

	default:
		// Unknown message types are logged and skipped, not errors.
		log.Printf("main channel: skipping unknown message type %d (%d bytes)", hdr.MsgType, hdr.MsgSize)
		return nil
	}
}

// SessionID returns the session id learned from MAIN_INIT. Valid once
// State() is at least MainIniting.
func (m *MainChannel) SessionID() uint32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessionID
}

func (m *MainChannel) State() MainState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *MainChannel) CurrentMouseMode() uint32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentMouseMode
}

func (m *MainChannel) SupportedMouseModes() uint32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.supportedMouseModes
}

func (m *MainChannel) DisplayChannelsHint() uint32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.displayChannelsHint
}

func (m *MainChannel) MultiMediaTime() uint32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.multiMediaTime
}

func (m *MainChannel) RamHint() uint32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ramHint
}

// ChannelsListReady is closed once the first CHANNELS_LIST has been
// consumed (state reaches MainReady for the first time).
func (m *MainChannel) ChannelsListReady() <-chan struct{} { return m.channelsListReady }

func (m *MainChannel) ChannelsList() []wire.ChannelListEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]wire.ChannelListEntry, len(m.channelsList))
	copy(out, m.channelsList)
	return out
}

func (m *MainChannel) Err() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}
