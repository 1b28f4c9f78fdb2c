// Package wire implements the little-endian SPICE wire format: the link
// handshake structures and the per-channel message framing header, plus
// streaming helpers that read/write a complete message against a
// transport.Conn.
package wire

// ChannelType is the stable numeric channel-kind tag carried in LinkMessage.
type ChannelType uint8

const (
	ChannelMain      ChannelType = 1
	ChannelDisplay   ChannelType = 2
	ChannelInputs    ChannelType = 3
	ChannelCursor    ChannelType = 4
	ChannelPlayback  ChannelType = 5
	ChannelRecord    ChannelType = 6
	ChannelTunnel    ChannelType = 7
	ChannelSmartcard ChannelType = 8
	ChannelUsbredir  ChannelType = 9
	ChannelPort      ChannelType = 10
	ChannelWebdav    ChannelType = 11
)

func (t ChannelType) String() string {
	switch t {
	case ChannelMain:
		return "Main"
	case ChannelDisplay:
		return "Display"
	case ChannelInputs:
		return "Inputs"
	case ChannelCursor:
		return "Cursor"
	case ChannelPlayback:
		return "Playback"
	case ChannelRecord:
		return "Record"
	case ChannelTunnel:
		return "Tunnel"
	case ChannelSmartcard:
		return "Smartcard"
	case ChannelUsbredir:
		return "Usbredir"
	case ChannelPort:
		return "Port"
	case ChannelWebdav:
		return "Webdav"
	default:
		return "Unknown"
	}
}

// Magic is the four ASCII bytes of "REDQ", stored little-endian as a u32.
const Magic uint32 = 0x51444552

// ProtocolMajor and ProtocolMinor are the versions this client speaks.
const (
	ProtocolMajor uint32 = 2
	ProtocolMinor uint32 = 2
)

// Main channel message types.
const (
	MsgMainMigrateBegin uint16 = iota + 101
	MsgMainMigrateCancel
	MsgMainInit
	MsgMainChannelsList
	MsgMainMouseMode
	MsgMainMultiMediaTime
	_
	_
	_
	_
	_
	MsgMainAgentConnected
	MsgMainAgentDisconnected
	MsgMainAgentData
	MsgMainAgentToken
	MsgMainMigrateSwitchHost
	MsgMainMigrateEnd
	MsgMainName
	MsgMainUUID
	MsgMainAgentConnectedTokens
	MsgMainMigrateBeginSeamless
	MsgMainMigrateDstSeamlessAck
	MsgMainMigrateDstSeamlessNack
)

// Messages common to every channel (base message type range).
const (
	MsgMigrate uint16 = iota + 1
	MsgMigrateData
	MsgSetAck
	MsgPing
	MsgPong
	MsgWaitForChannels
	MsgDisconnecting
	MsgNotify
)

// Display channel message types, starting at the first channel-specific
// type after the common range.
const (
	MsgDisplayMode uint16 = iota + 101
	MsgDisplayMark
	MsgDisplayReset
	MsgDisplayCopyBits
	MsgDisplayInvalList
	MsgDisplayInvalAllPixmaps
	MsgDisplayInvalPalette
	MsgDisplayInvalAllPalettes
	MsgDisplayStreamCreate
	MsgDisplayStreamData
	MsgDisplayStreamClip
	MsgDisplayStreamDestroy
	MsgDisplayStreamDestroyAll
	MsgDisplayDrawFill
	MsgDisplayDrawOpaque
	MsgDisplayDrawCopy
	MsgDisplayDrawBlend
	MsgDisplayDrawBlackness
	MsgDisplayDrawWhiteness
	MsgDisplayDrawInvers
	MsgDisplayDrawRop3
	MsgDisplayDrawStroke
	MsgDisplayDrawText
	MsgDisplayDrawTransparent
	MsgDisplayDrawAlphaBlend
	MsgDisplaySurfaceCreate
	MsgDisplaySurfaceDestroy
	MsgDisplayStreamDataSized
	MsgDisplayMonitorsConfig
	MsgDisplayDrawComposite
	MsgDisplayStreamActivateReport
	MsgDisplayDisplayPreferredCompression
	MsgDisplayGlScanoutUnix
	MsgDisplayGlDraw
	MsgDisplayStreamPreferredVideoCodecType
)

// Cursor channel message types.
const (
	MsgCursorInit uint16 = iota + 101
	MsgCursorReset
	MsgCursorSet
	MsgCursorMove
	MsgCursorHide
	MsgCursorTrail
	MsgCursorInvalOne
	MsgCursorInvalAll
)

// Inputs channel message types.
const (
	MsgInputsKeyDown uint16 = iota + 101
	MsgInputsKeyUp
	MsgInputsKeyScancode
	MsgInputsMouseMotion
	MsgInputsMousePosition
	MsgInputsMousePress
	MsgInputsMouseRelease
)

// Drawing clip types carried in SpiceClip.Type.
const (
	ClipTypeNone       uint8 = 0
	ClipTypeRects      uint8 = 1
	clipTypeFirstOther uint8 = 2 // anything >= this is tolerated-but-unknown
)

// Video stream codec types.
const (
	CodecMJPEG uint8 = 1
	CodecH264  uint8 = 2
	CodecVP8   uint8 = 3
	CodecH265  uint8 = 4
)

// Surface pixel formats. The wire value is the raw bit depth (16, 24, 32)
// as carried by DISPLAY_MODE and SURFACE_CREATE; BytesPerPixel derives the
// buffer size invariant directly from it rather than from a separate enum.
const (
	SurfaceFmt16_565 uint32 = 16
	SurfaceFmt24BGR  uint32 = 24
	SurfaceFmt32xRGB uint32 = 32
)

// BytesPerPixel returns the number of bytes a single pixel occupies for a
// surface of the given wire format (spec §3's "data length is exactly
// consistent with width/height/format" invariant).
func BytesPerPixel(format uint32) int {
	switch format {
	case SurfaceFmt16_565:
		return 2
	case SurfaceFmt24BGR:
		return 3
	case SurfaceFmt32xRGB:
		return 4
	default:
		return 4
	}
}

// Mouse mode bits, as advertised in MAIN_INIT.supported_mouse_modes and
// carried by MsgMainMouseMode.
const (
	MouseModeServer uint32 = 1 << 0 // relative
	MouseModeClient uint32 = 1 << 1 // absolute
)
