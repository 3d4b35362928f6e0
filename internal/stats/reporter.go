package stats

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// Reporter prints a single overwritten status line on each tick: active
// sessions, cumulative packets, ingress rate since the previous tick, and
// playback queue depth. Purely observational.
type Reporter struct {
	log      *slog.Logger
	interval time.Duration
	src      Sources
	out      io.Writer
}

// NewReporter creates a Reporter writing status lines to out. If log is
// nil, slog.Default() is used.
func NewReporter(interval time.Duration, src Sources, out io.Writer, log *slog.Logger) *Reporter {
	if log == nil {
		log = slog.Default()
	}
	return &Reporter{
		log:      log.With("component", "reporter"),
		interval: interval,
		src:      src,
		out:      out,
	}
}

// Run emits one status line per tick until the context is cancelled.
func (r *Reporter) Run(ctx context.Context) error {
	r.log.Info("throughput reporter started", "interval", r.interval)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(r.out) // leave the last status line intact
			r.log.Info("throughput reporter stopped")
			return nil
		case <-ticker.C:
			r.tick()
		}
	}
}

func (r *Reporter) tick() {
	windowBytes := r.src.Pipeline.TakeWindowBytes()
	kbps := float64(windowBytes) / 1024.0
	sessions := r.src.Registry.ActiveCount()
	packets := r.src.Pipeline.FrameCount()
	depth := r.src.Pipeline.Playback().Depth()

	var status string
	switch {
	case sessions == 0:
		status = "Idle... waiting for producer."
	case kbps == 0 && packets > 0:
		status = fmt.Sprintf("Connected (%d), no data flow...", sessions)
	default:
		status = fmt.Sprintf("Sessions:%d|Pkts:%-7d|Rate:%-7.2f KB/s|Q:%-4d",
			sessions, packets, kbps, depth)
	}

	// Overwrite the previous line, padding to clear longer remnants.
	fmt.Fprintf(r.out, "\r%s%s", status, "               ")
}
