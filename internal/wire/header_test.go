package wire

import (
	"bytes"
	"testing"
)

func TestDataHeaderRoundTrip(t *testing.T) {
	h := DataHeader{Serial: 42, MsgType: MsgDisplayDrawCopy, MsgSize: 7, SubList: 0}
	encoded := EncodeDataHeader(h)
	if len(encoded) != dataHeaderSize {
		t.Fatalf("encoded length = %d, want %d", len(encoded), dataHeaderSize)
	}
	got, err := DecodeDataHeader(encoded)
	if err != nil {
		t.Fatalf("DecodeDataHeader: %v", err)
	}
	if got != h {
		t.Fatalf("round trip = %+v, want %+v", got, h)
	}
}

func TestDataHeaderPlusPayloadLength(t *testing.T) {
	h := DataHeader{Serial: 1, MsgType: MsgPing, MsgSize: 5}
	payload := []byte("hello")
	stream := append(EncodeDataHeader(h), payload...)
	if len(stream) != dataHeaderSize+len(payload) {
		t.Fatalf("stream length = %d, want %d", len(stream), dataHeaderSize+len(payload))
	}
}

func TestDecodeDataHeaderTooShort(t *testing.T) {
	if _, err := DecodeDataHeader(bytes.Repeat([]byte{0}, 10)); err == nil {
		t.Fatal("expected error for short buffer")
	}
}
