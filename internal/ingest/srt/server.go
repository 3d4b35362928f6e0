// Package srt implements the SRT (Secure Reliable Transport) ingest
// listener, an alternative to WebSocket for producers on lossy links. SRT
// is message-oriented, so each received message carries exactly one framed
// audio packet in the same wire format.
package srt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	srtgo "github.com/zsiec/srtgo"

	"github.com/aviarylabs/perch/internal/ingest"
)

// readBufferSize bounds one SRT message read. Sensors send ~20ms frames
// (12-byte header + 1920 payload bytes at 48kHz mono); leave generous room.
const readBufferSize = 8192

// latencyNs is the SRT latency setting in nanoseconds (120ms).
const latencyNs = 120_000_000

// Server accepts incoming SRT producer connections and feeds their framed
// messages to the handler.
type Server struct {
	log      *slog.Logger
	addr     string
	registry *ingest.Registry
	handle   func(msg []byte)
}

// NewServer creates an SRT server that listens on addr. Every received
// message is recorded against its session and passed to handle. If log is
// nil, slog.Default() is used.
func NewServer(addr string, registry *ingest.Registry, handle func(msg []byte), log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		log:      log.With("component", "srt-server"),
		addr:     addr,
		registry: registry,
		handle:   handle,
	}
}

// Start begins accepting SRT producer connections. It blocks until the
// context is cancelled. A bind failure is returned immediately.
func (s *Server) Start(ctx context.Context) error {
	cfg := srtgo.DefaultConfig()
	cfg.Latency = latencyNs

	l, err := srtgo.Listen(s.addr, cfg)
	if err != nil {
		return fmt.Errorf("SRT listen on %s: %w", s.addr, err)
	}
	s.log.Info("listening", "addr", s.addr)

	go func() {
		<-ctx.Done()
		l.Close()
	}()

	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.log.Warn("accept error", "error", err)
			continue
		}

		s.log.Info("producer connected", "remote", conn.RemoteAddr())
		go s.handleConnection(ctx, conn)
	}
}

func (s *Server) handleConnection(ctx context.Context, conn *srtgo.Conn) {
	defer conn.Close()

	sess := s.registry.Open(conn.RemoteAddr().String(), "srt")
	defer s.registry.Close(sess)

	buf := make([]byte, readBufferSize)
	for {
		if ctx.Err() != nil {
			return
		}
		n, err := conn.Read(buf)
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, io.EOF) {
				s.log.Warn("read error", "remote", sess.RemoteAddr, "error", err)
			}
			return
		}

		sess.RecordMessage(n)
		s.handle(buf[:n])
	}
}
