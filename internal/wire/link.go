package wire

// LinkHeader precedes every LinkMessage/LinkReply. Always exactly 16 bytes:
// magic(4) + major_version(4) + minor_version(4) + size(4).
type LinkHeader struct {
	Magic   uint32
	Major   uint32
	Minor   uint32
	Size    uint32
}

const linkHeaderSize = 4 + 4 + 4 + 4

func EncodeLinkHeader(h LinkHeader) []byte {
	b := make([]byte, 0, linkHeaderSize)
	b = putU32(b, h.Magic)
	b = putU32(b, h.Major)
	b = putU32(b, h.Minor)
	b = putU32(b, h.Size)
	return b
}

func DecodeLinkHeader(b []byte) (LinkHeader, error) {
	if len(b) < linkHeaderSize {
		return LinkHeader{}, protoErrf("link header too short: %d bytes", len(b))
	}
	magic, _ := getU32(b, 0)
	major, _ := getU32(b, 4)
	minor, _ := getU32(b, 8)
	size, _ := getU32(b, 12)
	return LinkHeader{Magic: magic, Major: major, Minor: minor, Size: size}, nil
}

// LinkMessage is the client's request to open one channel.
type LinkMessage struct {
	ConnectionID  uint32
	ChannelType   uint8
	ChannelID     uint8
	NumCommonCaps uint32
	NumChannelCaps uint32
	CapsOffset    uint32
	CommonCaps    []uint32
	ChannelCaps   []uint32
}

const linkMessageBaseSize = 4 + 1 + 1 + 4 + 4 + 4 // 18 bytes before the caps array

// LinkMessageBaseSize returns the size of LinkMessage's fixed fields,
// before any capability dwords — the offset callers place CapsOffset at
// when they send no preceding sub-structures.
func LinkMessageBaseSize() uint32 { return linkMessageBaseSize }

// EncodeLinkMessage serializes the fixed fields followed by the capability
// dwords (common caps first, then channel caps), matching CapsOffset.
func EncodeLinkMessage(m LinkMessage) []byte {
	b := make([]byte, 0, linkMessageBaseSize+4*(len(m.CommonCaps)+len(m.ChannelCaps)))
	b = putU32(b, m.ConnectionID)
	b = append(b, m.ChannelType, m.ChannelID)
	b = putU32(b, uint32(len(m.CommonCaps)))
	b = putU32(b, uint32(len(m.ChannelCaps)))
	b = putU32(b, m.CapsOffset)
	for _, c := range m.CommonCaps {
		b = putU32(b, c)
	}
	for _, c := range m.ChannelCaps {
		b = putU32(b, c)
	}
	return b
}

func DecodeLinkMessage(b []byte) (LinkMessage, error) {
	if len(b) < linkMessageBaseSize {
		return LinkMessage{}, protoErrf("link message too short: %d bytes", len(b))
	}
	var m LinkMessage
	m.ConnectionID, _ = getU32(b, 0)
	m.ChannelType = b[4]
	m.ChannelID = b[5]
	m.NumCommonCaps, _ = getU32(b, 6)
	m.NumChannelCaps, _ = getU32(b, 10)
	m.CapsOffset, _ = getU32(b, 14)

	off := int(m.CapsOffset)
	for i := uint32(0); i < m.NumCommonCaps; i++ {
		v, err := getU32(b, off)
		if err != nil {
			return m, err
		}
		m.CommonCaps = append(m.CommonCaps, v)
		off += 4
	}
	for i := uint32(0); i < m.NumChannelCaps; i++ {
		v, err := getU32(b, off)
		if err != nil {
			return m, err
		}
		m.ChannelCaps = append(m.ChannelCaps, v)
		off += 4
	}
	return m, nil
}

// LinkReply is the server's response to the client's LinkHeader+LinkMessage.
// Same shape as LinkHeader; Size here is the length of the authentication
// material that follows (0 meaning no authentication is required).
type LinkReply = LinkHeader
