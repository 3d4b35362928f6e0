package pipeline

import "sync"

// Accumulator is the growing byte buffer between the ingest path and the
// durable writer. Ingest appends payloads as they arrive; the writer
// periodically takes the whole buffer with Swap. The swap is the single
// synchronization point, so an append can never interleave with a read of
// the swapped-out bytes.
type Accumulator struct {
	mu  sync.Mutex
	buf []byte
}

// Append adds payload bytes to the buffer.
func (a *Accumulator) Append(p []byte) {
	a.mu.Lock()
	a.buf = append(a.buf, p...)
	a.mu.Unlock()
}

// Swap atomically replaces the buffer with an empty one and returns the
// accumulated bytes. The returned slice is exclusively owned by the caller.
func (a *Accumulator) Swap() []byte {
	a.mu.Lock()
	buf := a.buf
	a.buf = nil
	a.mu.Unlock()
	return buf
}

// Len returns the number of bytes currently accumulated.
func (a *Accumulator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.buf)
}
