// Package spiceclient implements the Client façade (spec §4.8): it owns
// the Main channel and the channel_id -> DisplayChannel map, plus optional
// Cursor and Inputs channels, and drives one message-loop goroutine per
// channel after StartEventLoop. It is a registry struct behind a single
// RWMutex. Disconnect ends the per-channel goroutines by closing their
// transports, which fails each pending read; no loop watches a context.
package spiceclient

import (
	"context"
	"fmt"
	"sync"
	"time"

	"spice-go/internal/auth"
	"spice-go/internal/channel"
	"spice-go/internal/channels"
	"spice-go/internal/config"
	"spice-go/internal/metrics"
	"spice-go/internal/session"
	"spice-go/internal/spiceerr"
	"spice-go/internal/transport"
	"spice-go/internal/video"
	"spice-go/internal/wire"
)

// State is the façade's own coarse connection state, distinct from any one
// channel's internal state machine.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateFailed       State = "failed"
)

// Client is the single entry point a host application drives.
type Client struct {
	cfg       config.ConnectionConfig
	sessionID session.ID
	videoSink video.Sink

	mu         sync.RWMutex
	state      State
	mainConn   *channel.Conn
	main       *channels.MainChannel
	displays   map[uint8]*channels.DisplayChannel
	displayConns map[uint8]*channel.Conn
	cursor     *channels.CursorChannel
	cursorConn *channel.Conn
	inputs     *channels.InputsChannel
	inputsConn *channel.Conn
	lastErr    error
	started    bool

	cancel context.CancelFunc
}

// New constructs a Client for cfg. sink may be nil, in which case stream
// frames are discarded.
func New(cfg config.ConnectionConfig, sink video.Sink) *Client {
	if sink == nil {
		sink = video.DiscardSink{}
	}
	return &Client{
		cfg:          cfg,
		sessionID:    session.New(),
		videoSink:    sink,
		state:        StateDisconnected,
		displays:     make(map[uint8]*channels.DisplayChannel),
		displayConns: make(map[uint8]*channel.Conn),
	}
}

func (c *Client) endpoint() transport.Endpoint {
	backend := transport.BackendGorilla
	if c.cfg.Backend == "coder" {
		backend = transport.BackendCoder
	}
	return transport.Endpoint{
		Server:    c.cfg.Server,
		Port:      c.cfg.Port,
		WebSocket: c.cfg.WebSocket,
		WSPath:    c.cfg.WSPath,
		UseTLS:    c.cfg.UseTLS,
		Backend:   backend,
	}
}

func (c *Client) authenticator() auth.Authenticator {
	if c.cfg.Password == "" {
		return auth.NoAuth{}
	}
	return auth.PasswordAuth{Password: c.cfg.Password}
}

// Connect dials the Main channel, drives its handshake and initial message
// exchange until CHANNELS_LIST is known, then dials every advertised
// Display channel plus Cursor and Inputs if the server lists them. It
// returns once every mandatory channel (Main) is linked, or on error.
// Display absence is tolerated; framebuffer access is simply unavailable.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateConnected || c.state == StateConnecting {
		c.mu.Unlock()
		return fmt.Errorf("spiceclient: already %s", c.state)
	}
	c.state = StateConnecting
	c.mu.Unlock()

	dialer, err := transport.CreateDialer(c.endpoint())
	if err != nil {
		c.fail(err)
		return err
	}

	mainConn, err := channel.Dial(ctx, dialer, 0, wire.ChannelMain, 0, nil, nil, c.authenticator())
	if err != nil {
		metrics.ObserveHandshake("main", false)
		c.fail(err)
		return err
	}
	metrics.ObserveHandshake("main", true)

	mainChan := channels.NewMainChannel(mainConn)

	runCtx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.mainConn = mainConn
	c.main = mainChan
	c.cancel = cancel
	c.mu.Unlock()

	go func() {
		err := mainChan.Run()
		if err == spiceerr.ErrConnectionClosed {
			_ = c.Disconnect()
		} else if err != nil {
			c.fail(err)
		}
	}()

	select {
	case <-mainChan.ChannelsListReady():
	case <-ctx.Done():
		cancel()
		return ctx.Err()
	case <-time.After(transport.DefaultOpenTimeout * 2):
		cancel()
		return &wire.Protocol{Msg: "timed out waiting for CHANNELS_LIST"}
	}

	connID := mainChan.SessionID()
	for _, entry := range mainChan.ChannelsList() {
		switch wire.ChannelType(entry.ChannelType) {
		case wire.ChannelDisplay:
			if err := c.openDisplay(ctx, dialer, connID, entry.ChannelID); err != nil {
				metrics.ObserveHandshake("display", false)
				continue
			}
			metrics.ObserveHandshake("display", true)
		case wire.ChannelCursor:
			if err := c.openCursor(ctx, dialer, connID, entry.ChannelID); err != nil {
				metrics.ObserveHandshake("cursor", false)
				continue
			}
			metrics.ObserveHandshake("cursor", true)
		case wire.ChannelInputs:
			if err := c.openInputs(ctx, dialer, connID, entry.ChannelID); err != nil {
				metrics.ObserveHandshake("inputs", false)
				continue
			}
			metrics.ObserveHandshake("inputs", true)
		}
	}

	mainChan.SetMouseModeHook(func(current uint32) {
		c.mu.RLock()
		in := c.inputs
		c.mu.RUnlock()
		if in != nil {
			in.SetMouseMode(current)
		}
	})

	c.mu.Lock()
	c.state = StateConnected
	c.mu.Unlock()
	return nil
}

func (c *Client) openDisplay(ctx context.Context, dialer transport.Dialer, connID uint32, channelID uint8) error {
	conn, err := channel.Dial(ctx, dialer, connID, wire.ChannelDisplay, channelID, nil, nil, c.authenticator())
	if err != nil {
		return err
	}
	disp := channels.NewDisplayChannel(conn, c.videoSink)
	c.mu.Lock()
	c.displays[channelID] = disp
	c.displayConns[channelID] = conn
	c.mu.Unlock()
	metrics.SetChannelOpen("display", true)
	return nil
}

func (c *Client) openCursor(ctx context.Context, dialer transport.Dialer, connID uint32, channelID uint8) error {
	conn, err := channel.Dial(ctx, dialer, connID, wire.ChannelCursor, channelID, nil, nil, c.authenticator())
	if err != nil {
		return err
	}
	cur := channels.NewCursorChannel(conn)
	c.mu.Lock()
	c.cursor = cur
	c.cursorConn = conn
	c.mu.Unlock()
	metrics.SetChannelOpen("cursor", true)
	return nil
}

func (c *Client) openInputs(ctx context.Context, dialer transport.Dialer, connID uint32, channelID uint8) error {
	conn, err := channel.Dial(ctx, dialer, connID, wire.ChannelInputs, channelID, nil, nil, c.authenticator())
	if err != nil {
		return err
	}
	in := channels.NewInputsChannel(conn)
	c.mu.Lock()
	c.inputs = in
	c.inputsConn = conn
	in.SetMouseMode(c.main.CurrentMouseMode())
	c.mu.Unlock()
	metrics.SetChannelOpen("inputs", true)
	return nil
}

// StartEventLoop spawns the message loop for every opened Display channel
// and for the Cursor channel (the Main loop already runs from Connect). The
// Inputs channel gets no receive loop. After this call, direct channel access is not permitted — only
// the façade's read-only accessors and input-forwarding methods.
func (c *Client) StartEventLoop() {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for id, disp := range c.displays {
		id, disp := id, disp
		go func() {
			if err := disp.Run(); err != nil && err != spiceerr.ErrConnectionClosed {
				metrics.ObserveChannelMessage(fmt.Sprintf("display-%d", id), "error")
			}
		}()
	}
	if c.cursor != nil {
		cur := c.cursor
		go func() {
			_ = cur.Run()
		}()
	}
}

// GetDisplaySurface returns a snapshot of the named surface on the named
// Display channel, or ok=false if the channel or surface doesn't exist.
func (c *Client) GetDisplaySurface(channelID uint8, surfaceID uint32) (channels.SurfaceSnapshot, bool) {
	c.mu.RLock()
	disp, ok := c.displays[channelID]
	c.mu.RUnlock()
	if !ok {
		return channels.SurfaceSnapshot{}, false
	}
	return disp.GetSurface(surfaceID)
}

func (c *Client) GetCurrentCursor() (channels.CursorShape, bool) {
	c.mu.RLock()
	cur := c.cursor
	c.mu.RUnlock()
	if cur == nil {
		return channels.CursorShape{}, false
	}
	return cur.Current()
}

func (c *Client) SendKeyDown(scancode uint32) error {
	in, err := c.inputsChannel()
	if err != nil {
		return err
	}
	return in.SendKeyDown(scancode)
}

func (c *Client) SendKeyUp(scancode uint32) error {
	in, err := c.inputsChannel()
	if err != nil {
		return err
	}
	return in.SendKeyUp(scancode)
}

func (c *Client) SendMouseMotion(x, y int32) error {
	in, err := c.inputsChannel()
	if err != nil {
		return err
	}
	return in.SendMouseMotion(x, y)
}

func (c *Client) SendMouseButton(button uint8, pressed bool) error {
	in, err := c.inputsChannel()
	if err != nil {
		return err
	}
	return in.SendMouseButton(button, pressed)
}

func (c *Client) SendMouseWheel(dx, dy int32) error {
	in, err := c.inputsChannel()
	if err != nil {
		return err
	}
	return in.SendMouseWheel(dx, dy)
}

func (c *Client) inputsChannel() (*channels.InputsChannel, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if err := c.lastErr; err != nil {
		return nil, err
	}
	if c.inputs == nil {
		return nil, spiceerr.NewChannelError("no Inputs channel is open")
	}
	return c.inputs, nil
}

func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Client) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// SessionID returns this Client's own client-local correlation id, used to
// tag log lines and metrics across a reconnect. It has nothing to do with
// the SPICE wire protocol's session_id; see ProtocolSessionID for that.
func (c *Client) SessionID() session.ID { return c.sessionID }

// ProtocolSessionID returns the session_id:u32 the server assigned in
// MAIN_INIT, or 0 until MAIN_INIT has arrived on the Main channel.
func (c *Client) ProtocolSessionID() uint32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.main == nil {
		return 0
	}
	return c.main.SessionID()
}

// MainLinkReply returns the LinkHeader the server sent during the Main
// channel's handshake, or ok=false if Connect hasn't dialed it yet.
func (c *Client) MainLinkReply() (wire.LinkHeader, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.mainConn == nil {
		return wire.LinkHeader{}, false
	}
	return c.mainConn.LinkReply(), true
}

// MainInitFields returns the fields learned from the Main channel's
// MAIN_INIT message, or ok=false if it hasn't arrived yet.
func (c *Client) MainInitFields() (fields MainInitFields, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.main == nil || c.main.State() == channels.MainLinking {
		return MainInitFields{}, false
	}
	return MainInitFields{
		SessionID:           c.main.SessionID(),
		DisplayChannelsHint: c.main.DisplayChannelsHint(),
		SupportedMouseModes: c.main.SupportedMouseModes(),
		CurrentMouseMode:    c.main.CurrentMouseMode(),
		MultiMediaTime:      c.main.MultiMediaTime(),
		RamHint:             c.main.RamHint(),
	}, true
}

// MainInitFields mirrors the MAIN_INIT message fields this core tracks.
type MainInitFields struct {
	SessionID           uint32
	DisplayChannelsHint uint32
	SupportedMouseModes uint32
	CurrentMouseMode    uint32
	MultiMediaTime      uint32
	RamHint             uint32
}

func (c *Client) fail(err error) {
	c.mu.Lock()
	if c.lastErr == nil {
		c.lastErr = err
	}
	c.state = StateFailed
	c.mu.Unlock()
}

// Disconnect cancels every loop and closes every transport. Idempotent.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	if c.state == StateDisconnected {
		c.mu.Unlock()
		return nil
	}
	if c.cancel != nil {
		c.cancel()
	}
	conns := []*channel.Conn{c.mainConn, c.cursorConn, c.inputsConn}
	for _, conn := range c.displayConns {
		conns = append(conns, conn)
	}
	c.state = StateDisconnected
	c.mu.Unlock()

	var firstErr error
	for _, conn := range conns {
		if conn == nil {
			continue
		}
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for id := range c.displays {
		metrics.SetChannelOpen(fmt.Sprintf("display-%d", id), false)
	}
	return firstErr
}
