// Command perch runs the real-time audio ingestion server: it accepts
// framed PCM from remote sensors, watches stream continuity, and fans the
// audio out to playback, visualization, and durable WAV storage.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aviarylabs/perch/internal/config"
	"github.com/aviarylabs/perch/internal/ingest"
	srtingest "github.com/aviarylabs/perch/internal/ingest/srt"
	wsingest "github.com/aviarylabs/perch/internal/ingest/ws"
	"github.com/aviarylabs/perch/internal/pipeline"
	"github.com/aviarylabs/perch/internal/playback"
	"github.com/aviarylabs/perch/internal/stats"
	"github.com/aviarylabs/perch/internal/storage"
	"github.com/aviarylabs/perch/internal/viz"

	"github.com/prometheus/client_golang/prometheus"
)

var version = "dev"

func main() {
	cfgPath := flag.String("config", os.Getenv("PERCH_CONFIG"), "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if cfg.LogLevel == "debug" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	slog.Info("perch starting",
		"version", version,
		"ws", cfg.Listen.WS,
		"api", cfg.Listen.API,
		"srt_enabled", cfg.Listen.SRTEnabled,
		"sample_rate", cfg.Audio.SampleRate,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	pipe := pipeline.New(pipeline.Config{
		PlaybackQueueSize: cfg.Queues.Playback,
		VizQueueSize:      cfg.Queues.Viz,
		HistorySize:       cfg.Monitor.HistorySize,
		JitterThreshold:   cfg.Monitor.JitterThreshold,
	}, nil)

	registry := ingest.NewRegistry(pipe.Monitor().Reset, nil)

	pool := storage.NewPool(cfg.Writer.Workers, cfg.Writer.Backlog, nil)
	writer := storage.NewWriter(storage.WriterConfig{
		Interval:   cfg.Writer.Interval,
		OutputDir:  cfg.Writer.OutputDir,
		Prefix:     cfg.Writer.Prefix,
		SampleRate: cfg.Audio.SampleRate,
		BitDepth:   cfg.Audio.BitDepth(),
		Channels:   cfg.Audio.Channels,
	}, pipe.Accumulator(), pool, nil)

	sink, closeSink, err := openPlaybackSink(cfg.Playback.Output)
	if err != nil {
		slog.Error("failed to open playback output", "path", cfg.Playback.Output, "error", err)
		os.Exit(1)
	}
	defer closeSink()

	player := playback.New(playback.Config{
		SampleRate:     cfg.Audio.SampleRate,
		Channels:       cfg.Audio.Channels,
		BytesPerSample: cfg.Audio.BytesPerSample,
	}, pipe.Playback(), sink, nil)

	broadcaster := viz.NewBroadcaster(nil)
	feeder := viz.NewFeeder(pipe.Viz(), broadcaster, nil)

	src := stats.Sources{Registry: registry, Pipeline: pipe, Writer: writer, Pool: pool}
	reporter := stats.NewReporter(cfg.Reporter.Interval, src, os.Stdout, nil)

	reg := prometheus.NewRegistry()
	stats.RegisterMetrics(reg, src)
	mux := stats.NewAPIMux(src, reg, nil)
	mux.HandleFunc("/viz", broadcaster.HandleSubscriber)
	apiSrv := &http.Server{Addr: cfg.Listen.API, Handler: mux}

	wsSrv := wsingest.NewServer(cfg.Listen.WS, registry, pipe.HandleMessage, nil)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return wsSrv.Start(ctx) })

	if cfg.Listen.SRTEnabled {
		srtSrv := srtingest.NewServer(cfg.Listen.SRT, registry, pipe.HandleMessage, nil)
		g.Go(func() error { return srtSrv.Start(ctx) })
	}

	g.Go(func() error { return player.Run(ctx) })
	g.Go(func() error { return feeder.Run(ctx) })
	g.Go(func() error { return writer.Run(ctx) })
	g.Go(func() error { return reporter.Run(ctx) })

	g.Go(func() error {
		slog.Info("API server listening", "addr", cfg.Listen.API)
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("API server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return apiSrv.Shutdown(shutdownCtx)
	})

	// Backstop: if the grace window expires twice over after the cancel
	// signal, stop waiting for stragglers.
	go func() {
		<-ctx.Done()
		time.Sleep(2 * cfg.Shutdown.Grace)
		slog.Error("shutdown grace expired, terminating")
		os.Exit(1)
	}()

	err = g.Wait()

	// Tasks are done; drain the in-flight artifact writes, then drop the
	// viz subscribers.
	pool.Shutdown()
	broadcaster.Close()

	if err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("perch stopped")
}

// openPlaybackSink opens the configured playback output path, or a
// discarding sink when playback output is disabled.
func openPlaybackSink(path string) (playback.Sink, func(), error) {
	if path == "" {
		return playback.Discard{}, func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return playback.NewWriterSink(f), func() { f.Close() }, nil
}
