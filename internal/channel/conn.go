// Package channel implements the per-channel link handshake (spec §4.3)
// and the send/read primitives every channel engine is built on.
package channel

import (
	"context"
	"time"

	uatomic "go.uber.org/atomic"

	"spice-go/internal/auth"
	"spice-go/internal/spiceerr"
	"spice-go/internal/transport"
	"spice-go/internal/wire"
)

// handshakeReplyTimeout bounds the LinkReply and auth-challenge reads,
// separately from transport.DefaultOpenTimeout which only bounds DialContext.
// A var, not a const, so tests can shrink it instead of waiting 5s.
var handshakeReplyTimeout = 5 * time.Second

// Conn owns a transport.Conn for exactly one (channel_type, channel_id) and
// tracks the monotonic outgoing serial counter. Constructed via Dial, which
// performs the full link handshake before returning.
type Conn struct {
	t           transport.Conn
	channelType wire.ChannelType
	channelID   uint8
	nextSerial  uatomic.Uint64
	closed      uatomic.Bool
	linkReply   wire.LinkHeader
}

// Dial opens dialer, then performs the three-step link handshake of spec
// §4.3 for (channelType, channelID) using connectionID as the LinkMessage's
// connection_id (0 for Main, the Main channel's session_id for every
// secondary channel).
func Dial(ctx context.Context, dialer transport.Dialer, connectionID uint32, channelType wire.ChannelType, channelID uint8, commonCaps, channelCaps []uint32, authenticator auth.Authenticator) (*Conn, error) {
	t, err := dialer.DialContext(ctx)
	if err != nil {
		return nil, err
	}

	c := &Conn{t: t, channelType: channelType, channelID: channelID}
	if err := c.handshake(connectionID, commonCaps, channelCaps, authenticator); err != nil {
		_ = t.Close()
		return nil, err
	}
	c.nextSerial.Store(1)
	return c, nil
}

func (c *Conn) handshake(connectionID uint32, commonCaps, channelCaps []uint32, authenticator auth.Authenticator) error {
	linkMsg := wire.LinkMessage{
		ConnectionID:   connectionID,
		ChannelType:    uint8(c.channelType),
		ChannelID:      c.channelID,
		NumCommonCaps:  uint32(len(commonCaps)),
		NumChannelCaps: uint32(len(channelCaps)),
		CapsOffset:     wire.LinkMessageBaseSize(),
		CommonCaps:     commonCaps,
		ChannelCaps:    channelCaps,
	}
	msgBytes := wire.EncodeLinkMessage(linkMsg)

	header := wire.LinkHeader{
		Magic: wire.Magic,
		Major: wire.ProtocolMajor,
		Minor: wire.ProtocolMinor,
		Size:  uint32(len(msgBytes)),
	}

	out := append(wire.EncodeLinkHeader(header), msgBytes...)
	if err := c.t.WriteAll(out); err != nil {
		return err
	}
	if err := c.t.Flush(); err != nil {
		return err
	}

	if err := c.t.SetReadDeadline(time.Now().Add(handshakeReplyTimeout)); err != nil {
		return err
	}
	defer c.t.SetReadDeadline(time.Time{})

	replyBuf := make([]byte, 16)
	if err := readFullHandshake(c.t, replyBuf); err != nil {
		return err
	}
	reply, err := wire.DecodeLinkHeader(replyBuf)
	if err != nil {
		return err
	}
	if reply.Magic != wire.Magic {
		return &wire.Protocol{Msg: "invalid magic"}
	}
	if reply.Major != wire.ProtocolMajor {
		return &spiceerr.VersionMismatch{Expected: wire.ProtocolMajor, Actual: reply.Major}
	}
	c.linkReply = reply

	if reply.Size > 0 {
		challenge := make([]byte, reply.Size)
		if err := readFullHandshake(c.t, challenge); err != nil {
			return err
		}
		a := authenticator
		if a == nil {
			a = auth.NoAuth{}
		}
		if _, err := a.Authenticate(challenge); err != nil {
			return spiceerr.ErrAuthenticationFailed
		}
	} else if authenticator != nil {
		if _, err := authenticator.Authenticate(nil); err != nil {
			return spiceerr.ErrAuthenticationFailed
		}
	}

	return nil
}

func readFullHandshake(t transport.Conn, buf []byte) error {
	total := 0
	for total < len(buf) {
		n, err := t.Read(buf[total:])
		total += n
		if err != nil {
			if transport.IsClosed(err) {
				return &wire.Protocol{Msg: "closed during handshake"}
			}
			return err
		}
		if n == 0 && err == nil {
			return &wire.Protocol{Msg: "closed during handshake (zero-length read)"}
		}
	}
	return nil
}

// SendMessage assigns the next serial, builds a DataHeader, and writes the
// message. Never validated against the peer's serials on read (spec §4.3).
func (c *Conn) SendMessage(msgType uint16, payload []byte) error {
	serial := c.nextSerial.Add(1) - 1
	hdr := wire.DataHeader{Serial: serial, MsgType: msgType, MsgSize: uint32(len(payload))}
	return wire.WriteMessage(c.t, hdr, payload)
}

// ReadMessage returns the next (header, payload) pair, or
// spiceerr.ErrConnectionClosed if the transport has gone away.
func (c *Conn) ReadMessage() (wire.DataHeader, []byte, error) {
	hdr, payload, err := wire.ReadMessage(c.t)
	if err != nil {
		if transport.IsClosed(err) {
			c.closed.Store(true)
			return hdr, nil, spiceerr.ErrConnectionClosed
		}
		return hdr, nil, err
	}
	return hdr, payload, nil
}

// NextSerial reports the serial that will be used by the next SendMessage
// call. It is an atomic load, so it can be read without touching channel
// state directly.
func (c *Conn) NextSerial() uint64 { return c.nextSerial.Load() }

func (c *Conn) ChannelType() wire.ChannelType { return c.channelType }
func (c *Conn) ChannelID() uint8              { return c.channelID }

// LinkReply returns the LinkHeader the server sent in response to this
// channel's LinkMessage, captured once the handshake completes.
func (c *Conn) LinkReply() wire.LinkHeader { return c.linkReply }

// Close tears down the underlying transport. Idempotent.
func (c *Conn) Close() error {
	c.closed.Store(true)
	return c.t.Close()
}

func (c *Conn) IsClosed() bool { return c.closed.Load() || !c.t.IsConnected() }
