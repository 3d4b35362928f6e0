// Package pipeline is the hot path between the transport listeners and the
// consumer tasks. Each inbound message is decoded, checked for continuity,
// and fanned out to three independent sinks: the playback queue, the
// visualization queue, and the durable-write accumulation buffer. No step
// on this path ever blocks on a downstream consumer.
package pipeline

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/aviarylabs/perch/internal/frame"
	"github.com/aviarylabs/perch/internal/monitor"
)

// Config sets the fan-out queue capacities and monitor parameters.
type Config struct {
	PlaybackQueueSize int
	VizQueueSize      int
	HistorySize       int
	JitterThreshold   time.Duration
}

// Pipeline owns the shared fan-out state: the continuity monitor, the two
// bounded consumer queues, the accumulation buffer, and the ingest
// counters read by the throughput reporter.
type Pipeline struct {
	log      *slog.Logger
	mon      *monitor.Monitor
	playback *Queue
	viz      *Queue
	acc      *Accumulator

	frames      atomic.Int64
	malformed   atomic.Int64
	bytesTotal  atomic.Int64
	bytesWindow atomic.Int64
}

// New creates a Pipeline. If log is nil, slog.Default() is used.
func New(cfg Config, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		log:      log.With("component", "pipeline"),
		mon:      monitor.New(cfg.HistorySize, cfg.JitterThreshold, log),
		playback: NewQueue("playback", cfg.PlaybackQueueSize),
		viz:      NewQueue("viz", cfg.VizQueueSize),
		acc:      &Accumulator{},
	}
}

// HandleMessage processes one raw inbound message from a transport
// listener: count, decode, monitor, fan out. Malformed messages are
// dropped with a warning. Each sink is offered the payload independently,
// so a full queue only loses that sink's copy.
func (p *Pipeline) HandleMessage(msg []byte) {
	p.frames.Add(1)
	p.bytesTotal.Add(int64(len(msg)))
	p.bytesWindow.Add(int64(len(msg)))

	f, err := frame.Decode(msg)
	if err != nil {
		p.malformed.Add(1)
		p.log.Warn("dropping malformed frame", "length", len(msg), "error", err)
		return
	}

	p.mon.Observe(f.Sequence, f.TimestampUS)

	// Transports may reuse their read buffer; copy once and share the
	// copy across all three sinks, none of which mutate it.
	payload := make([]byte, len(f.Payload))
	copy(payload, f.Payload)

	if !p.playback.Offer(payload) {
		p.log.Warn("playback queue full, discarding frame", "sequence", f.Sequence)
	}
	if !p.viz.Offer(payload) {
		p.log.Warn("viz queue full, discarding frame", "sequence", f.Sequence)
	}
	p.acc.Append(payload)
}

// Playback returns the bounded queue feeding the playback accumulator.
func (p *Pipeline) Playback() *Queue { return p.playback }

// Viz returns the bounded queue feeding the visualization consumer.
func (p *Pipeline) Viz() *Queue { return p.viz }

// Accumulator returns the durable-write accumulation buffer.
func (p *Pipeline) Accumulator() *Accumulator { return p.acc }

// Monitor returns the continuity monitor so the session registry can reset
// it when the last producer disconnects.
func (p *Pipeline) Monitor() *monitor.Monitor { return p.mon }

// FrameCount returns the cumulative number of inbound messages, valid or not.
func (p *Pipeline) FrameCount() int64 { return p.frames.Load() }

// MalformedCount returns the cumulative number of dropped short messages.
func (p *Pipeline) MalformedCount() int64 { return p.malformed.Load() }

// BytesTotal returns the cumulative inbound byte count.
func (p *Pipeline) BytesTotal() int64 { return p.bytesTotal.Load() }

// TakeWindowBytes returns the bytes received since the previous call and
// resets the window, giving the reporter its per-tick ingress rate.
func (p *Pipeline) TakeWindowBytes() int64 {
	return p.bytesWindow.Swap(0)
}
