package viz

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// writeTimeout bounds one subscriber write so a stalled client cannot
// hold the delivery loop.
const writeTimeout = 5 * time.Second

// Broadcaster relays visualization chunks to WebSocket subscribers. A
// subscriber that falls behind or errors is dropped; delivery to the rest
// continues.
type Broadcaster struct {
	log      *slog.Logger
	upgrader websocket.Upgrader

	mu   sync.RWMutex
	subs map[*websocket.Conn]struct{}
}

// NewBroadcaster creates a Broadcaster. If log is nil, slog.Default() is used.
func NewBroadcaster(log *slog.Logger) *Broadcaster {
	if log == nil {
		log = slog.Default()
	}
	return &Broadcaster{
		log: log.With("component", "viz-broadcast"),
		upgrader: websocket.Upgrader{
			WriteBufferSize: 16384,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		subs: make(map[*websocket.Conn]struct{}),
	}
}

// Deliver implements Consumer, pushing chunk to every subscriber as one
// binary message. Failed subscribers are removed.
func (b *Broadcaster) Deliver(chunk []byte) {
	b.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(b.subs))
	for c := range b.subs {
		conns = append(conns, c)
	}
	b.mu.RUnlock()

	for _, c := range conns {
		c.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
			b.log.Warn("dropping viz subscriber", "remote", c.RemoteAddr(), "error", err)
			b.remove(c)
		}
	}
}

// HandleSubscriber upgrades an HTTP request to a WebSocket subscription.
// The connection stays registered until the client disconnects.
func (b *Broadcaster) HandleSubscriber(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.log.Warn("viz upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	b.mu.Lock()
	b.subs[conn] = struct{}{}
	n := len(b.subs)
	b.mu.Unlock()
	b.log.Info("viz subscriber connected", "remote", conn.RemoteAddr(), "subscribers", n)

	// Drain (and discard) inbound control traffic until the peer goes away.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				b.remove(conn)
				return
			}
		}
	}()
}

// SubscriberCount returns the number of connected subscribers.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close disconnects every subscriber.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	for c := range b.subs {
		c.Close()
	}
	b.subs = make(map[*websocket.Conn]struct{})
	b.mu.Unlock()
}

func (b *Broadcaster) remove(c *websocket.Conn) {
	b.mu.Lock()
	_, ok := b.subs[c]
	if ok {
		delete(b.subs, c)
	}
	b.mu.Unlock()
	if ok {
		c.Close()
	}
}
