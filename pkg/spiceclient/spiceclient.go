// Package spiceclient provides a small public surface for reusing this
// repository as a library. The implementation lives in internal/ and may
// change without notice.
package spiceclient

import (
	"spice-go/internal/channels"
	"spice-go/internal/config"
	internalclient "spice-go/internal/spiceclient"
	"spice-go/internal/video"
)

type Client = internalclient.Client

type State = internalclient.State

const (
	StateDisconnected = internalclient.StateDisconnected
	StateConnecting   = internalclient.StateConnecting
	StateConnected    = internalclient.StateConnected
	StateFailed       = internalclient.StateFailed
)

type ConnectionConfig = config.ConnectionConfig

type SurfaceSnapshot = channels.SurfaceSnapshot

type MainInitFields = internalclient.MainInitFields

type CursorShape = channels.CursorShape

type VideoSink = video.Sink

type VideoFrame = video.Frame

// New constructs a Client for cfg. sink may be nil, in which case video
// stream frames are discarded.
func New(cfg ConnectionConfig, sink VideoSink) *Client {
	return internalclient.New(cfg, sink)
}
