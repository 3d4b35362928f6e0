// Package ingest tracks active producer sessions, coupling per-connection
// byte/packet counters with lifecycle signaling. Continuity tracking is
// shared across sessions and cleared when the last one closes.
package ingest

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// SessionStats captures connection-level metrics for one producer session,
// exposed via the stats API for monitoring source health.
type SessionStats struct {
	RemoteAddr      string `json:"remoteAddr"`
	Transport       string `json:"transport"`
	BytesReceived   int64  `json:"bytesReceived"`
	PacketsReceived int64  `json:"packetsReceived"`
	ConnectedAt     int64  `json:"connectedAt"`
	UptimeMs        int64  `json:"uptimeMs"`
}

// Session represents one active producer connection. Counters start at
// zero on connect and are discarded with the session on disconnect.
type Session struct {
	RemoteAddr string
	Transport  string
	StartedAt  time.Time

	bytesReceived   atomic.Int64
	packetsReceived atomic.Int64
}

// RecordMessage increments the packet and byte counters, called by the
// transport listener for every inbound message before decoding.
func (s *Session) RecordMessage(n int) {
	s.packetsReceived.Add(1)
	s.bytesReceived.Add(int64(n))
}

// Stats returns a snapshot of the session's counters.
func (s *Session) Stats() SessionStats {
	return SessionStats{
		RemoteAddr:      s.RemoteAddr,
		Transport:       s.Transport,
		BytesReceived:   s.bytesReceived.Load(),
		PacketsReceived: s.packetsReceived.Load(),
		ConnectedAt:     s.StartedAt.UnixMilli(),
		UptimeMs:        time.Since(s.StartedAt).Milliseconds(),
	}
}

// Registry tracks active producer sessions. It is the rendezvous point
// between the transport listeners and the shared continuity state: when
// the last session closes, the onLastClosed hook fires so the monitor can
// drop its baselines before the next producer connects.
type Registry struct {
	log          *slog.Logger
	onLastClosed func()

	mu       sync.Mutex
	sessions map[*Session]struct{}
}

// NewRegistry creates a Registry. onLastClosed may be nil. If log is nil,
// slog.Default() is used.
func NewRegistry(onLastClosed func(), log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		log:          log.With("component", "ingest"),
		onLastClosed: onLastClosed,
		sessions:     make(map[*Session]struct{}),
	}
}

// Open registers a new session for a connected producer.
func (r *Registry) Open(remoteAddr, transport string) *Session {
	s := &Session{
		RemoteAddr: remoteAddr,
		Transport:  transport,
		StartedAt:  time.Now(),
	}

	r.mu.Lock()
	r.sessions[s] = struct{}{}
	n := len(r.sessions)
	r.mu.Unlock()

	r.log.Info("session opened", "remote", remoteAddr, "transport", transport, "active", n)
	return s
}

// Close removes a session. If it was the last active session, the shared
// continuity state is reset via the onLastClosed hook.
func (r *Registry) Close(s *Session) {
	r.mu.Lock()
	_, ok := r.sessions[s]
	if ok {
		delete(r.sessions, s)
	}
	remaining := len(r.sessions)
	r.mu.Unlock()

	if !ok {
		return
	}

	stats := s.Stats()
	r.log.Info("session closed", "remote", s.RemoteAddr,
		"packets", stats.PacketsReceived, "bytes", stats.BytesReceived,
		"uptime_ms", stats.UptimeMs, "active", remaining)

	if remaining == 0 && r.onLastClosed != nil {
		r.log.Info("last session closed, resetting continuity tracking")
		r.onLastClosed()
	}
}

// ActiveCount returns the number of currently connected producers.
func (r *Registry) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Stats returns snapshots for every active session.
func (r *Registry) Stats() []SessionStats {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	out := make([]SessionStats, len(sessions))
	for i, s := range sessions {
		out[i] = s.Stats()
	}
	return out
}
