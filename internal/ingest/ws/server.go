// Package ws accepts WebSocket producer connections, the native transport
// of the remote audio sensors. Each binary message is one framed audio
// packet handed to the pipeline.
package ws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aviarylabs/perch/internal/ingest"
)

// drainTimeout bounds how long Shutdown waits for in-flight connections
// after the context is cancelled.
const drainTimeout = 2 * time.Second

// Server accepts incoming WebSocket producer connections and feeds their
// framed messages to the handler.
type Server struct {
	log      *slog.Logger
	addr     string
	registry *ingest.Registry
	handle   func(msg []byte)
	upgrader websocket.Upgrader
}

// NewServer creates a WebSocket server listening on addr. Every inbound
// binary message is recorded against its session and passed to handle.
// If log is nil, slog.Default() is used.
func NewServer(addr string, registry *ingest.Registry, handle func(msg []byte), log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		log:      log.With("component", "ws-server"),
		addr:     addr,
		registry: registry,
		handle:   handle,
		upgrader: websocket.Upgrader{
			ReadBufferSize: 4096,
			// Producers are embedded sensors, not browsers.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Start begins accepting producer connections. It blocks until the context
// is cancelled, then shuts the listener down with a bounded wait for
// in-flight connections to drain. A bind failure is returned immediately.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("ws listen on %s: %w", s.addr, err)
	}
	s.log.Info("listening", "addr", s.addr)

	mux := http.NewServeMux()
	mux.HandleFunc("/stream", func(w http.ResponseWriter, r *http.Request) {
		s.handleStream(ctx, w, r)
	})

	srv := &http.Server{Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Warn("listener drain timed out", "error", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("ws serve: %w", err)
	}
}

func (s *Server) handleStream(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer conn.Close()

	sess := s.registry.Open(conn.RemoteAddr().String(), "ws")
	defer s.registry.Close(sess)

	// http.Server.Shutdown does not touch hijacked connections, so force
	// the blocking read below to fail when the context is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Warn("connection closed with error", "remote", sess.RemoteAddr, "error", err)
			}
			return
		}
		if msgType != websocket.BinaryMessage {
			s.log.Warn("ignoring non-binary message", "remote", sess.RemoteAddr, "type", msgType)
			continue
		}

		sess.RecordMessage(len(msg))
		s.handle(msg)
	}
}
