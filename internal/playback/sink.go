package playback

import (
	"encoding/binary"
	"io"
)

// WriterSink streams playback blocks as little-endian PCM to an io.Writer,
// typically a FIFO consumed by an external player. It is always ready.
type WriterSink struct {
	w io.Writer
}

// NewWriterSink wraps w as a playback sink.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// Write serializes the block and writes it in one call.
func (s *WriterSink) Write(samples []int16) error {
	buf := make([]byte, 2*len(samples))
	for i, v := range samples {
		binary.LittleEndian.PutUint16(buf[2*i:], uint16(v))
	}
	_, err := s.w.Write(buf)
	return err
}

// Ready always reports true.
func (s *WriterSink) Ready() bool { return true }

// Discard is a sink that throws blocks away, used when no playback output
// is configured. It reports not-ready so idle flushes are skipped and the
// working set stays empty via threshold flushes alone.
type Discard struct{}

// Write discards the block.
func (Discard) Write([]int16) error { return nil }

// Ready reports false.
func (Discard) Ready() bool { return false }
