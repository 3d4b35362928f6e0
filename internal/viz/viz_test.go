package viz

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aviarylabs/perch/internal/pipeline"
)

type recordingConsumer struct {
	mu     sync.Mutex
	chunks [][]byte
}

func (r *recordingConsumer) Deliver(chunk []byte) {
	r.mu.Lock()
	r.chunks = append(r.chunks, append([]byte(nil), chunk...))
	r.mu.Unlock()
}

func (r *recordingConsumer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.chunks)
}

func TestFeederDeliversInOrder(t *testing.T) {
	t.Parallel()

	q := pipeline.NewQueue("viz", 50)
	consumer := &recordingConsumer{}
	f := NewFeeder(q, consumer, nil)

	for i := 0; i < 5; i++ {
		q.Offer([]byte{byte(i)})
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		f.Run(ctx)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for consumer.count() < 5 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	consumer.mu.Lock()
	defer consumer.mu.Unlock()
	if len(consumer.chunks) != 5 {
		t.Fatalf("chunks delivered: got %d, want 5", len(consumer.chunks))
	}
	for i, c := range consumer.chunks {
		if !bytes.Equal(c, []byte{byte(i)}) {
			t.Errorf("chunk %d: got %v", i, c)
		}
	}
}

func TestBroadcasterDeliversToSubscribers(t *testing.T) {
	t.Parallel()

	b := NewBroadcaster(nil)
	srv := httptest.NewServer(http.HandlerFunc(b.HandleSubscriber))
	defer srv.Close()
	defer b.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	waitSubs(t, b, 1)

	want := []byte{1, 2, 3, 4}
	b.Deliver(want)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, got, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if msgType != websocket.BinaryMessage {
		t.Errorf("message type: got %d, want binary", msgType)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("chunk: got %v, want %v", got, want)
	}
}

func TestBroadcasterDropsDeadSubscriber(t *testing.T) {
	t.Parallel()

	b := NewBroadcaster(nil)
	srv := httptest.NewServer(http.HandlerFunc(b.HandleSubscriber))
	defer srv.Close()
	defer b.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	waitSubs(t, b, 1)
	conn.Close()
	waitSubs(t, b, 0)

	// Delivery to zero subscribers is a no-op, not a panic.
	b.Deliver([]byte{9})
}

func waitSubs(t *testing.T, b *Broadcaster, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if b.SubscriberCount() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("subscriber count never reached %d (got %d)", want, b.SubscriberCount())
}
