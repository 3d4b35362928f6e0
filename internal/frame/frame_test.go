package frame

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	payload := []byte{0x01, 0x02, 0x03, 0x04}
	f := Frame{Sequence: 42, TimestampUS: 1_700_000_123_456, Payload: payload}

	got, err := Decode(Encode(f))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Sequence != f.Sequence {
		t.Errorf("sequence: got %d, want %d", got.Sequence, f.Sequence)
	}
	if got.TimestampUS != f.TimestampUS {
		t.Errorf("timestamp: got %d, want %d", got.TimestampUS, f.TimestampUS)
	}
	if !bytes.Equal(got.Payload, payload) {
		t.Errorf("payload: got %v, want %v", got.Payload, payload)
	}
}

func TestDecodeShortMessage(t *testing.T) {
	t.Parallel()

	for _, n := range []int{0, 1, 11} {
		if _, err := Decode(make([]byte, n)); err == nil {
			t.Errorf("Decode of %d-byte message should fail", n)
		}
	}
}

func TestDecodeHeaderOnly(t *testing.T) {
	t.Parallel()

	f, err := Decode(make([]byte, HeaderSize))
	if err != nil {
		t.Fatalf("Decode of header-only message: %v", err)
	}
	if len(f.Payload) != 0 {
		t.Errorf("payload length: got %d, want 0", len(f.Payload))
	}
}

func TestDecodeLittleEndian(t *testing.T) {
	t.Parallel()

	msg := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(msg[0:4], 0xFFFFFFFF)
	binary.LittleEndian.PutUint64(msg[4:12], 987654321)

	f, err := Decode(msg)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if f.Sequence != 0xFFFFFFFF {
		t.Errorf("sequence: got %d, want %d", f.Sequence, uint32(0xFFFFFFFF))
	}
	if f.TimestampUS != 987654321 {
		t.Errorf("timestamp: got %d, want 987654321", f.TimestampUS)
	}
}
