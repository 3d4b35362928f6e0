// Package viz feeds raw PCM chunks from the visualization queue to a
// consumer. Rendering is out of scope; the built-in consumer is a
// WebSocket broadcaster that relays chunks to any number of subscribers
// (waveform UIs, meters) without ever touching the ingest path.
package viz

import (
	"context"
	"log/slog"
	"time"
)

// pollTimeout doubles as the cancellation poll interval for the feeder.
const pollTimeout = 100 * time.Millisecond

// Consumer accepts raw PCM chunks in arrival order. Deliver must not
// block; slow downstream delivery is the consumer's problem to bound.
type Consumer interface {
	Deliver(chunk []byte)
}

// Queue is the subset of the fan-out queue the feeder consumes.
type Queue interface {
	Poll(timeout time.Duration) ([]byte, bool)
}

// Feeder drains the visualization queue into a Consumer.
type Feeder struct {
	log      *slog.Logger
	queue    Queue
	consumer Consumer
}

// NewFeeder creates a Feeder. If log is nil, slog.Default() is used.
func NewFeeder(queue Queue, consumer Consumer, log *slog.Logger) *Feeder {
	if log == nil {
		log = slog.Default()
	}
	return &Feeder{
		log:      log.With("component", "viz"),
		queue:    queue,
		consumer: consumer,
	}
}

// Run delivers chunks until the context is cancelled.
func (f *Feeder) Run(ctx context.Context) error {
	f.log.Info("viz feeder started")
	for {
		select {
		case <-ctx.Done():
			f.log.Info("viz feeder stopped")
			return nil
		default:
		}

		chunk, ok := f.queue.Poll(pollTimeout)
		if !ok {
			continue
		}
		f.consumer.Deliver(chunk)
	}
}
