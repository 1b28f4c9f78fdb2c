// Package video defines the typed forwarding boundary between the Display
// channel's stream messages and an external decoder: this core never
// decodes MJPEG/H.264/VP8/H.265 itself, only demultiplexes encoded frames
// by stream id and hands them to a pluggable Sink.
package video

// Frame is one encoded video frame forwarded verbatim from STREAM_DATA.
type Frame struct {
	StreamID  uint32
	CodecType uint8
	Data      []byte
	Timestamp uint32 // the message's multi_media_time, not wall-clock
}

// Sink receives encoded stream frames and stream lifecycle events. A host
// application supplies the decoder; this core only demultiplexes by stream
// id and hands bytes across the boundary.
type Sink interface {
	StreamCreated(streamID uint32, codecType uint8, width, height uint32)
	StreamFrame(frame Frame)
	StreamDestroyed(streamID uint32)
}

// DiscardSink drops every frame. Used as the façade's default when a host
// does not care about video streams.
type DiscardSink struct{}

func (DiscardSink) StreamCreated(uint32, uint8, uint32, uint32) {}
func (DiscardSink) StreamFrame(Frame)                           {}
func (DiscardSink) StreamDestroyed(uint32)                      {}
