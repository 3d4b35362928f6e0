// Package monitor tracks stream continuity for inbound audio frames:
// sequence-number gaps and inter-frame timestamp jitter. The monitor only
// reports; it never reorders, drops, or blocks the ingest path.
package monitor

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultHistorySize bounds the rolling timing-sample history kept for
// the timing snapshot API (~10s of 20ms frames).
const DefaultHistorySize = 500

// TimingSample records the observed delta between one strictly increasing
// timestamp pair. Pairs with non-monotonic timestamps contribute no sample.
type TimingSample struct {
	Sequence    uint32 `json:"sequence"`
	TimestampUS uint64 `json:"timestampUs"`
	DeltaUS     uint64 `json:"deltaUs"`
}

// Counts is a snapshot of cumulative anomaly counters since the last reset.
type Counts struct {
	SequenceAnomalies  int64 `json:"sequenceAnomalies"`
	TimestampAnomalies int64 `json:"timestampAnomalies"`
	JitterEvents       int64 `json:"jitterEvents"`
}

// Monitor observes decoded frames in arrival order and flags sequence gaps,
// non-monotonic timestamps, and large inter-frame deltas. State is shared
// across all producer sessions and cleared when the last session closes;
// with a single active producer the tracking is continuous.
type Monitor struct {
	log             *slog.Logger
	jitterThreshUS  uint64
	historyCapacity int

	mu          sync.Mutex
	hasBaseline bool
	lastSeq     uint32
	hasTS       bool
	lastTS      uint64
	history     []TimingSample // ring buffer
	historyNext int
	historyFull bool

	seqAnomalies int64
	tsAnomalies  int64
	jitterEvents int64
}

// New creates a Monitor. Deltas above jitterThreshold are flagged as jitter
// events. If log is nil, slog.Default() is used.
func New(historySize int, jitterThreshold time.Duration, log *slog.Logger) *Monitor {
	if log == nil {
		log = slog.Default()
	}
	if historySize <= 0 {
		historySize = DefaultHistorySize
	}
	return &Monitor{
		log:             log.With("component", "monitor"),
		jitterThreshUS:  uint64(jitterThreshold.Microseconds()),
		historyCapacity: historySize,
		history:         make([]TimingSample, historySize),
	}
}

// Observe records one decoded frame. The first frame after a reset sets the
// sequence and timestamp baselines without checks. A sequence mismatch is
// logged and the observed value adopted as the new baseline; a timestamp
// that fails to advance is logged and contributes no timing sample. Both
// baselines always track the most recent frame.
func (m *Monitor) Observe(seq uint32, timestampUS uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.hasBaseline {
		expected := m.lastSeq + 1 // uint32 arithmetic wraps at 2^32
		if seq != expected {
			atomic.AddInt64(&m.seqAnomalies, 1)
			m.log.Warn("packet out of order",
				"expected", expected, "got", seq)
		}
	}
	m.lastSeq = seq
	m.hasBaseline = true

	if m.hasTS {
		if timestampUS > m.lastTS {
			delta := timestampUS - m.lastTS
			m.appendSample(TimingSample{Sequence: seq, TimestampUS: timestampUS, DeltaUS: delta})
			if delta > m.jitterThreshUS {
				atomic.AddInt64(&m.jitterEvents, 1)
				m.log.Warn("large inter-frame jitter",
					"sequence", seq, "delta_ms", float64(delta)/1000.0)
			}
		} else {
			atomic.AddInt64(&m.tsAnomalies, 1)
			m.log.Warn("timestamp anomaly",
				"sequence", seq, "current_us", timestampUS, "previous_us", m.lastTS)
		}
	}
	m.lastTS = timestampUS
	m.hasTS = true
}

// Reset clears the sequence/timestamp baselines and the timing history.
// Called when the last active session closes so a new producer starts from
// a clean baseline. Cumulative anomaly counters survive for reporting.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.hasBaseline = false
	m.hasTS = false
	m.historyNext = 0
	m.historyFull = false
}

// History returns the timing samples currently retained, oldest first.
func (m *Monitor) History() []TimingSample {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.historyFull {
		out := make([]TimingSample, m.historyNext)
		copy(out, m.history[:m.historyNext])
		return out
	}
	out := make([]TimingSample, m.historyCapacity)
	n := copy(out, m.history[m.historyNext:])
	copy(out[n:], m.history[:m.historyNext])
	return out
}

// Counts returns the cumulative anomaly counters.
func (m *Monitor) Counts() Counts {
	return Counts{
		SequenceAnomalies:  atomic.LoadInt64(&m.seqAnomalies),
		TimestampAnomalies: atomic.LoadInt64(&m.tsAnomalies),
		JitterEvents:       atomic.LoadInt64(&m.jitterEvents),
	}
}

func (m *Monitor) appendSample(s TimingSample) {
	m.history[m.historyNext] = s
	m.historyNext++
	if m.historyNext == m.historyCapacity {
		m.historyNext = 0
		m.historyFull = true
	}
}
