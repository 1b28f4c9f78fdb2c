package wire

// DataHeader is stamped on every application-level message after the link
// handshake completes. Always exactly 18 bytes on the wire.
type DataHeader struct {
	Serial  uint64
	MsgType uint16
	MsgSize uint32
	SubList uint32
}

const dataHeaderSize = 8 + 2 + 4 + 4

func appendDataHeader(b []byte, h DataHeader) []byte {
	b = putU64(b, h.Serial)
	b = putU16(b, h.MsgType)
	b = putU32(b, h.MsgSize)
	b = putU32(b, h.SubList)
	return b
}

func decodeDataHeader(b []byte) DataHeader {
	serial, _ := getU64(b, 0)
	msgType, _ := getU16(b, 8)
	msgSize, _ := getU32(b, 10)
	subList, _ := getU32(b, 14)
	return DataHeader{Serial: serial, MsgType: msgType, MsgSize: msgSize, SubList: subList}
}

// DecodeDataHeader parses a standalone 18-byte header buffer, used by tests
// exercising the round-trip property directly (spec §8).
func DecodeDataHeader(b []byte) (DataHeader, error) {
	if len(b) < dataHeaderSize {
		return DataHeader{}, protoErrf("data header too short: %d bytes", len(b))
	}
	return decodeDataHeader(b), nil
}

// EncodeDataHeader serializes h to its 18-byte wire form.
func EncodeDataHeader(h DataHeader) []byte {
	return appendDataHeader(make([]byte, 0, dataHeaderSize), h)
}
