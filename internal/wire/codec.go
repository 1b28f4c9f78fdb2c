package wire

import (
	"encoding/binary"
	"fmt"

	"spice-go/internal/transport"
)

// Protocol is the error kind for malformed framing, unknown magic, misplaced
// messages, or declared sizes overrunning the available buffer (spec §7).
type Protocol struct {
	Msg string
	// Err is the transport error that ended a read, when there was one.
	Err error
}

func (e *Protocol) Error() string { return "protocol: " + e.Msg }

// Unwrap exposes Err, so transport.IsClosed still recognizes a closed
// transport behind a "closed while reading" error.
func (e *Protocol) Unwrap() error { return e.Err }

func protoErrf(format string, args ...any) error {
	return &Protocol{Msg: fmt.Sprintf(format, args...)}
}

// readFull loops Read until buf is full or a fatal error occurs, since
// transport.Conn.Read is permitted to return short reads.
func readFull(t transport.Conn, buf []byte) error {
	total := 0
	for total < len(buf) {
		n, err := t.Read(buf[total:])
		if n == 0 && err == nil {
			return protoErrf("closed while reading (zero-length read)")
		}
		total += n
		if err != nil {
			if transport.IsClosed(err) {
				return &Protocol{Msg: fmt.Sprintf("closed while reading: %v", err), Err: err}
			}
			return err
		}
	}
	return nil
}

// ReadMessage reads one DataHeader (18 bytes) followed by its msg_size-byte
// payload, looping until each phase is fully satisfied.
func ReadMessage(t transport.Conn) (DataHeader, []byte, error) {
	var hdr DataHeader

	hdrBuf := make([]byte, dataHeaderSize)
	if err := readFull(t, hdrBuf); err != nil {
		return hdr, nil, err
	}
	hdr = decodeDataHeader(hdrBuf)

	payload := make([]byte, hdr.MsgSize)
	if hdr.MsgSize > 0 {
		if err := readFull(t, payload); err != nil {
			return hdr, nil, err
		}
	}
	return hdr, payload, nil
}

// WriteMessage serializes header then payload and flushes.
func WriteMessage(t transport.Conn, hdr DataHeader, payload []byte) error {
	hdr.MsgSize = uint32(len(payload))
	buf := make([]byte, 0, dataHeaderSize+len(payload))
	buf = appendDataHeader(buf, hdr)
	buf = append(buf, payload...)
	if err := t.WriteAll(buf); err != nil {
		return err
	}
	return t.Flush()
}

// --- little-endian primitive helpers used by the message-struct codecs ---

func putU16(b []byte, v uint16) []byte {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	return append(b, tmp[:]...)
}

func putU32(b []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(b, tmp[:]...)
}

func putU64(b []byte, v uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return append(b, tmp[:]...)
}

func putI32(b []byte, v int32) []byte { return putU32(b, uint32(v)) }

func getU16(b []byte, off int) (uint16, error) {
	if off+2 > len(b) {
		return 0, protoErrf("buffer too small for u16 at %d", off)
	}
	return binary.LittleEndian.Uint16(b[off : off+2]), nil
}

func getU32(b []byte, off int) (uint32, error) {
	if off+4 > len(b) {
		return 0, protoErrf("buffer too small for u32 at %d", off)
	}
	return binary.LittleEndian.Uint32(b[off : off+4]), nil
}

func getU64(b []byte, off int) (uint64, error) {
	if off+8 > len(b) {
		return 0, protoErrf("buffer too small for u64 at %d", off)
	}
	return binary.LittleEndian.Uint64(b[off : off+8]), nil
}

func getI32(b []byte, off int) (int32, error) {
	v, err := getU32(b, off)
	return int32(v), err
}

func getBytes(b []byte, off, n int) ([]byte, error) {
	if off+n > len(b) {
		return nil, protoErrf("buffer too small for %d bytes at %d", n, off)
	}
	return b[off : off+n], nil
}
