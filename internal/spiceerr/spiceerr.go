// Package spiceerr collects the error kinds named in spec §7 that are not
// already represented by wire.Protocol (malformed framing) or a
// transport.Error (Io/Closed/Timeout): VersionMismatch and
// AuthenticationFailed are fatal to the whole session, Channel is a
// semantic per-channel error, and ErrConnectionClosed is the normal or
// remote-initiated teardown signal propagated up to the façade.
package spiceerr

import (
	"errors"
	"fmt"
)

// ErrConnectionClosed signals a normal or remote-initiated teardown. The
// façade reacts to it by driving disconnect rather than treating it as an
// unexpected failure.
var ErrConnectionClosed = errors.New("spice: connection closed")

// VersionMismatch is returned when a LinkReply's major version does not
// match what this client speaks.
type VersionMismatch struct {
	Expected uint32
	Actual   uint32
}

func (e *VersionMismatch) Error() string {
	return fmt.Sprintf("spice: version mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// ErrAuthenticationFailed is returned when the link handshake's
// authentication sub-protocol rejects the client's credentials.
var ErrAuthenticationFailed = errors.New("spice: authentication failed")

// ChannelError is a semantic channel-level error (e.g. a surface id already
// in use when the profile forbids it), fatal to the owning channel but not
// to the whole session.
type ChannelError struct {
	Msg string
}

func (e *ChannelError) Error() string { return "spice: channel: " + e.Msg }

func NewChannelError(format string, args ...any) error {
	return &ChannelError{Msg: fmt.Sprintf(format, args...)}
}
