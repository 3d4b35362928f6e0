package pipeline

import (
	"sync/atomic"
	"time"
)

// Queue is a fixed-capacity FIFO between the ingest path and one consumer
// task. Offers never block: when the queue is full the incoming chunk is
// discarded and counted, so a slow consumer can never stall the decoder.
type Queue struct {
	name  string
	ch    chan []byte
	drops atomic.Int64
}

// NewQueue creates a bounded queue with the given sink name and capacity.
func NewQueue(name string, capacity int) *Queue {
	return &Queue{
		name: name,
		ch:   make(chan []byte, capacity),
	}
}

// Name returns the sink name the queue feeds, used in drop logs and stats.
func (q *Queue) Name() string { return q.name }

// Offer enqueues chunk without blocking. Returns false if the queue was
// full and the chunk was dropped.
func (q *Queue) Offer(chunk []byte) bool {
	select {
	case q.ch <- chunk:
		return true
	default:
		q.drops.Add(1)
		return false
	}
}

// Poll dequeues the next chunk, waiting at most timeout. The second return
// is false on timeout; consumers use it as their idle trigger.
func (q *Queue) Poll(timeout time.Duration) ([]byte, bool) {
	select {
	case chunk := <-q.ch:
		return chunk, true
	default:
	}

	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case chunk := <-q.ch:
		return chunk, true
	case <-t.C:
		return nil, false
	}
}

// Depth returns the number of chunks currently buffered.
func (q *Queue) Depth() int { return len(q.ch) }

// Drops returns the cumulative number of chunks discarded on full queue.
func (q *Queue) Drops() int64 { return q.drops.Load() }
