package ingest

import (
	"testing"
)

func TestSessionCounters(t *testing.T) {
	t.Parallel()
	r := NewRegistry(nil, nil)

	s := r.Open("10.0.0.5:52100", "ws")
	s.RecordMessage(100)
	s.RecordMessage(200)

	stats := s.Stats()
	if stats.PacketsReceived != 2 {
		t.Errorf("packets: got %d, want 2", stats.PacketsReceived)
	}
	if stats.BytesReceived != 300 {
		t.Errorf("bytes: got %d, want 300", stats.BytesReceived)
	}
	if stats.RemoteAddr != "10.0.0.5:52100" {
		t.Errorf("remote: got %q", stats.RemoteAddr)
	}
	if stats.Transport != "ws" {
		t.Errorf("transport: got %q", stats.Transport)
	}
}

func TestCountersStartFreshPerSession(t *testing.T) {
	t.Parallel()
	r := NewRegistry(nil, nil)

	s1 := r.Open("10.0.0.5:52100", "ws")
	s1.RecordMessage(1000)
	r.Close(s1)

	s2 := r.Open("10.0.0.5:52101", "ws")
	if got := s2.Stats().BytesReceived; got != 0 {
		t.Errorf("new session bytes: got %d, want 0", got)
	}
}

func TestLastClosedHookFiresOnce(t *testing.T) {
	t.Parallel()

	resets := 0
	r := NewRegistry(func() { resets++ }, nil)

	s1 := r.Open("10.0.0.5:52100", "ws")
	s2 := r.Open("10.0.0.6:40210", "srt")
	if r.ActiveCount() != 2 {
		t.Fatalf("active: got %d, want 2", r.ActiveCount())
	}

	r.Close(s1)
	if resets != 0 {
		t.Error("hook fired while a session was still active")
	}

	r.Close(s2)
	if resets != 1 {
		t.Errorf("hook fired %d times, want 1", resets)
	}

	// Closing an already-closed session is a no-op.
	r.Close(s2)
	if resets != 1 {
		t.Errorf("hook fired %d times after double close, want 1", resets)
	}
}

func TestRegistryStats(t *testing.T) {
	t.Parallel()
	r := NewRegistry(nil, nil)

	r.Open("a:1", "ws")
	r.Open("b:2", "srt")

	stats := r.Stats()
	if len(stats) != 2 {
		t.Fatalf("stats length: got %d, want 2", len(stats))
	}

	transports := map[string]bool{}
	for _, s := range stats {
		transports[s.Transport] = true
	}
	if !transports["ws"] || !transports["srt"] {
		t.Errorf("transports: got %v", transports)
	}
}
