package events

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"revenue-market/internal/domain"
	"revenue-market/internal/observability"
)

// FeedConfig configures the live WebSocket feed.
type FeedConfig struct {
	// BufferSize is the number of events queued per subscriber before it is dropped.
	BufferSize int
	// WriteTimeout bounds a single frame write.
	WriteTimeout time.Duration
	// PingInterval is the interval for keepalive pings.
	PingInterval time.Duration
}

// DefaultFeedConfig returns default feed configuration.
func DefaultFeedConfig() FeedConfig {
	return FeedConfig{
		BufferSize:   256,
		WriteTimeout: 10 * time.Second,
		PingInterval: 30 * time.Second,
	}
}

// Feed streams committed events to WebSocket subscribers as JSON envelopes.
// Subscribers may narrow the stream with ?type=<EVENT_TYPE> (repeatable).
// A subscriber that cannot keep up is disconnected rather than slowing the ledger.
type Feed struct {
	config   FeedConfig
	log      logrus.FieldLogger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[uuid.UUID]*subscriber
	closed  bool
}

type subscriber struct {
	id      uuid.UUID
	conn    *websocket.Conn
	types   map[domain.EventType]struct{}
	send    chan Envelope
	done    chan struct{}
	dropped sync.Once
}

// NewFeed creates a feed with no subscribers.
func NewFeed(config *FeedConfig, log logrus.FieldLogger) *Feed {
	cfg := DefaultFeedConfig()
	if config != nil {
		cfg = *config
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &Feed{
		config: cfg,
		log:    log.WithField("component", "feed"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[uuid.UUID]*subscriber),
	}
}

// ServeHTTP upgrades the request and streams events until the peer disconnects.
func (f *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.log.WithError(err).Debug("websocket upgrade failed")
		return
	}

	s := &subscriber{
		id:    uuid.New(),
		conn:  conn,
		types: make(map[domain.EventType]struct{}),
		send:  make(chan Envelope, f.config.BufferSize),
		done:  make(chan struct{}),
	}
	for _, t := range r.URL.Query()["type"] {
		s.types[domain.EventType(t)] = struct{}{}
	}

	if !f.register(s) {
		_ = conn.Close()
		return
	}
	log := f.log.WithField("subscriber", s.id)
	log.Debug("feed subscriber connected")

	go f.writeLoop(s)

	// Reads only detect the peer going away; inbound frames are ignored.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	f.drop(s)
	log.Debug("feed subscriber disconnected")
}

func (f *Feed) register(s *subscriber) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	f.clients[s.id] = s
	observability.UpdateFeedSubscribers(len(f.clients))
	return true
}

// drop unregisters s and stops its writer. Safe to call more than once.
func (f *Feed) drop(s *subscriber) {
	s.dropped.Do(func() {
		f.mu.Lock()
		delete(f.clients, s.id)
		observability.UpdateFeedSubscribers(len(f.clients))
		f.mu.Unlock()

		close(s.done)
		_ = s.conn.Close()
	})
}

func (f *Feed) writeLoop(s *subscriber) {
	ticker := time.NewTicker(f.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case env := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(f.config.WriteTimeout))
			if err := s.conn.WriteJSON(env); err != nil {
				f.drop(s)
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(f.config.WriteTimeout)
			if err := s.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				f.drop(s)
				return
			}
		}
	}
}

// Publish queues e for every matching subscriber without blocking.
func (f *Feed) Publish(_ context.Context, e domain.Event) error {
	env := NewEnvelope(e)

	f.mu.RLock()
	var slow []*subscriber
	for _, s := range f.clients {
		if len(s.types) > 0 {
			if _, ok := s.types[e.Type]; !ok {
				continue
			}
		}
		select {
		case s.send <- env:
		default:
			slow = append(slow, s)
		}
	}
	f.mu.RUnlock()

	for _, s := range slow {
		f.log.WithField("subscriber", s.id).Warn("dropping slow feed subscriber")
		f.drop(s)
	}
	return nil
}

// Subscribers returns the number of connected subscribers.
func (f *Feed) Subscribers() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.clients)
}

// Close disconnects all subscribers and rejects new ones.
func (f *Feed) Close() {
	f.mu.Lock()
	f.closed = true
	clients := make([]*subscriber, 0, len(f.clients))
	for _, s := range f.clients {
		clients = append(clients, s)
	}
	f.mu.Unlock()

	for _, s := range clients {
		f.drop(s)
	}
}
