// Package storage persists accumulated raw audio to sequentially indexed
// WAV artifacts. Blocking file writes run on a small bounded worker pool
// so a slow disk never stalls the ingest path or the periodic tasks.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"
)

// WriterConfig carries the flush interval, artifact location/naming, and
// the WAV format parameters.
type WriterConfig struct {
	Interval   time.Duration
	OutputDir  string
	Prefix     string
	SampleRate int
	BitDepth   int
	Channels   int
}

// Buffer is the accumulation buffer the writer drains. Swap must be the
// atomic hand-off: bytes returned by Swap are exclusively the writer's.
type Buffer interface {
	Swap() []byte
}

// Writer periodically swaps the accumulation buffer and hands non-empty
// snapshots to the worker pool for blocking WAV writes. On shutdown it
// synchronously flushes whatever remains to a final artifact.
type Writer struct {
	log  *slog.Logger
	cfg  WriterConfig
	buf  Buffer
	pool *Pool

	index     int
	artifacts atomic.Int64
	failures  atomic.Int64
}

// NewWriter creates a Writer draining buf through pool. If log is nil,
// slog.Default() is used.
func NewWriter(cfg WriterConfig, buf Buffer, pool *Pool, log *slog.Logger) *Writer {
	if log == nil {
		log = slog.Default()
	}
	return &Writer{
		log:  log.With("component", "writer"),
		cfg:  cfg,
		buf:  buf,
		pool: pool,
	}
}

// Run flushes on every interval tick until the context is cancelled, then
// performs the final synchronous flush. Pool shutdown is the coordinator's
// job, after Run returns.
func (w *Writer) Run(ctx context.Context) error {
	w.log.Info("writer task started", "interval", w.cfg.Interval, "dir", w.cfg.OutputDir)

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.finalFlush()
			w.log.Info("writer task stopped")
			return nil
		case <-ticker.C:
			w.flushTick()
		}
	}
}

// ArtifactCount returns the number of artifacts written successfully.
func (w *Writer) ArtifactCount() int64 { return w.artifacts.Load() }

// FailureCount returns the number of artifact writes that failed.
func (w *Writer) FailureCount() int64 { return w.failures.Load() }

// flushTick swaps the buffer and, if it held data, schedules an async
// write of a new indexed artifact. A full pool backlog abandons the batch.
func (w *Writer) flushTick() {
	pcm := w.buf.Swap()
	if len(pcm) == 0 {
		return
	}

	path := w.artifactPath(fmt.Sprintf("%s_%04d.wav", w.cfg.Prefix, w.index))
	w.index++

	w.log.Info("scheduling artifact write", "path", path, "bytes", len(pcm))
	if !w.pool.Submit(func() { w.save(path, pcm) }) {
		w.failures.Add(1)
		w.log.Error("write pool rejected artifact, batch dropped", "path", path, "bytes", len(pcm))
	}
}

// finalFlush writes any remaining buffered audio synchronously to a
// distinctly named final artifact. Nothing is written when the buffer is
// empty.
func (w *Writer) finalFlush() {
	pcm := w.buf.Swap()
	if len(pcm) == 0 {
		return
	}

	path := w.artifactPath(fmt.Sprintf("%s_%04d_final.wav", w.cfg.Prefix, w.index))
	w.index++

	w.log.Info("final artifact flush", "path", path, "bytes", len(pcm))
	w.save(path, pcm)
}

func (w *Writer) save(path string, pcm []byte) {
	if err := SaveWAV(path, pcm, w.cfg.SampleRate, w.cfg.BitDepth, w.cfg.Channels); err != nil {
		w.failures.Add(1)
		w.log.Error("artifact write failed", "path", path, "error", err)
		return
	}
	w.artifacts.Add(1)
	w.log.Info("artifact written", "path", path, "bytes", len(pcm))
}

func (w *Writer) artifactPath(name string) string {
	return filepath.Join(w.cfg.OutputDir, name)
}
