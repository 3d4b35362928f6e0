// Package playback consumes the playback queue, accumulating decoded PCM
// into contiguous blocks large enough for gapless output, and flushes them
// to the playback sink. Partial blocks are flushed when the queue goes
// idle so latency stays bounded during lulls.
package playback

import (
	"context"
	"encoding/binary"
	"log/slog"
	"sync/atomic"
	"time"
)

// pollTimeout is the dequeue wait. A timeout doubles as the idle-flush
// trigger and as the cancellation poll interval.
const pollTimeout = 100 * time.Millisecond

// blockDuration is how much audio a full block holds before a flush.
const blockDuration = 250 * time.Millisecond

// Sink accepts contiguous blocks of PCM samples, e.g. an audio output
// device. Ready reports whether the sink can take a partial block now,
// consulted only for idle flushes.
type Sink interface {
	Write(samples []int16) error
	Ready() bool
}

// Queue is the subset of the fan-out queue the player consumes.
type Queue interface {
	Poll(timeout time.Duration) ([]byte, bool)
}

// Config carries the fixed audio format parameters of the stream.
type Config struct {
	SampleRate     int
	Channels       int
	BytesPerSample int
}

// Player dequeues PCM payloads and assembles them into playback blocks.
// It cycles through three states: waiting on an empty queue, accumulating
// below the block threshold, and flushing to the sink.
type Player struct {
	log           *slog.Logger
	queue         Queue
	sink          Sink
	frameBytes    int
	targetSamples int

	pending      [][]int16
	pendingCount int

	flushes      atomic.Int64
	skippedSizes atomic.Int64
}

// New creates a Player reading from queue and writing to sink. If log is
// nil, slog.Default() is used.
func New(cfg Config, queue Queue, sink Sink, log *slog.Logger) *Player {
	if log == nil {
		log = slog.Default()
	}
	return &Player{
		log:           log.With("component", "playback"),
		queue:         queue,
		sink:          sink,
		frameBytes:    cfg.BytesPerSample * cfg.Channels,
		targetSamples: int(time.Duration(cfg.SampleRate) * blockDuration / time.Second),
	}
}

// Run consumes the queue until the context is cancelled. Payloads whose
// length is not a whole number of sample frames are dropped with a
// warning. Sink write failures are logged and the block abandoned.
func (p *Player) Run(ctx context.Context) error {
	p.log.Info("playback task started", "block_samples", p.targetSamples)

	for {
		select {
		case <-ctx.Done():
			p.log.Info("playback task stopped")
			return nil
		default:
		}

		chunk, ok := p.queue.Poll(pollTimeout)
		if !ok {
			// Idle queue: flush the partial block rather than holding
			// audio back indefinitely.
			if p.pendingCount > 0 && p.sink.Ready() {
				p.flush()
			}
			continue
		}

		if len(chunk) == 0 || len(chunk)%p.frameBytes != 0 {
			p.skippedSizes.Add(1)
			p.log.Warn("payload not a whole number of sample frames",
				"length", len(chunk), "frame_bytes", p.frameBytes)
			continue
		}

		p.accumulate(chunk)
		if p.pendingCount >= p.targetSamples {
			p.flush()
		}
	}
}

// FlushCount returns the number of blocks written to the sink.
func (p *Player) FlushCount() int64 { return p.flushes.Load() }

// SkippedCount returns the number of payloads dropped for bad sizing.
func (p *Player) SkippedCount() int64 { return p.skippedSizes.Load() }

func (p *Player) accumulate(chunk []byte) {
	samples := make([]int16, len(chunk)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(chunk[2*i:]))
	}
	p.pending = append(p.pending, samples)
	p.pendingCount += len(samples)
}

func (p *Player) flush() {
	block := make([]int16, 0, p.pendingCount)
	for _, s := range p.pending {
		block = append(block, s...)
	}
	p.pending = p.pending[:0]
	p.pendingCount = 0

	if err := p.sink.Write(block); err != nil {
		p.log.Error("sink write failed", "samples", len(block), "error", err)
		return
	}
	p.flushes.Add(1)
	p.log.Debug("flushed block", "samples", len(block))
}
