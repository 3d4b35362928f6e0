// Package frame defines the wire format shared with remote audio sensors:
// a fixed little-endian header carrying a sequence number and a microsecond
// timestamp, followed by raw signed 16-bit mono PCM.
package frame

import (
	"encoding/binary"
	"fmt"
)

// HeaderSize is the fixed prefix of every inbound message: a 4-byte unsigned
// sequence number followed by an 8-byte unsigned microsecond timestamp,
// both little-endian.
const HeaderSize = 12

// Frame is one decoded unit of header plus PCM payload from the wire.
// Sequence wraps at 2^32; TimestampUS is monotonic microseconds on the
// producer's clock.
type Frame struct {
	Sequence    uint32
	TimestampUS uint64
	Payload     []byte
}

// Decode parses a raw inbound message into a Frame. The payload slice
// aliases msg; callers that retain the frame past the lifetime of msg must
// copy it. Messages shorter than HeaderSize are malformed.
func Decode(msg []byte) (Frame, error) {
	if len(msg) < HeaderSize {
		return Frame{}, fmt.Errorf("frame: message length %d, expected >= %d", len(msg), HeaderSize)
	}
	return Frame{
		Sequence:    binary.LittleEndian.Uint32(msg[0:4]),
		TimestampUS: binary.LittleEndian.Uint64(msg[4:HeaderSize]),
		Payload:     msg[HeaderSize:],
	}, nil
}

// Encode serializes a Frame into wire format. Used by test producers and
// the loopback tools; the service itself only decodes.
func Encode(f Frame) []byte {
	buf := make([]byte, HeaderSize+len(f.Payload))
	binary.LittleEndian.PutUint32(buf[0:4], f.Sequence)
	binary.LittleEndian.PutUint64(buf[4:HeaderSize], f.TimestampUS)
	copy(buf[HeaderSize:], f.Payload)
	return buf
}
