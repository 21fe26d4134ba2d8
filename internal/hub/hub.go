// Package hub implements the in-process broadcast hub: one published event is
// fanned out to every registered subscriber, each with its own bounded buffer
// and drop-oldest backpressure. A slow reader loses its oldest events; it
// never blocks the publisher or any other reader.
package hub

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/drblury/paperflow/internal/errs"
)

// DefaultCapacity is the per-subscriber buffer size. Publishing more than
// this to an unread subscriber evicts the oldest buffered items.
const DefaultCapacity = 100

// Option customises a Hub.
type Option func(*config)

type config struct {
	name       string
	capacity   int
	registerer prometheus.Registerer
}

// WithName sets the stream name used as the metrics label. Names must be
// unique per registerer.
func WithName(name string) Option {
	return func(c *config) { c.name = name }
}

// WithCapacity overrides the per-subscriber buffer capacity.
func WithCapacity(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.capacity = n
		}
	}
}

// WithRegisterer registers the hub's metrics with reg. Without this option
// the collectors exist but stay unregistered.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *config) { c.registerer = reg }
}

// Hub fans published items out to registered subscribers.
//
// The zero value is not usable; construct with New.
type Hub[T any] struct {
	capacity int

	mu     sync.RWMutex
	subs   map[string]*subscriber[T]
	closed bool

	metrics *metrics
}

// subscriber owns one bounded buffer. The hub is its only producer and the
// reader returned from Subscribe its only consumer; the mutex serialises
// concurrent hub-side publishers performing the evict-then-admit step.
type subscriber[T any] struct {
	mu  sync.Mutex
	buf chan T
}

func (s *subscriber[T]) offer(item T) (dropped bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case s.buf <- item:
		return false
	default:
	}

	// Buffer full: evict the oldest item to admit the newest.
	select {
	case <-s.buf:
		dropped = true
	default:
	}
	select {
	case s.buf <- item:
	default:
	}
	return dropped
}

// New returns an empty hub.
func New[T any](opts ...Option) *Hub[T] {
	cfg := config{name: "events", capacity: DefaultCapacity}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Hub[T]{
		capacity: cfg.capacity,
		subs:     make(map[string]*subscriber[T]),
		metrics:  newMetrics(cfg.name, cfg.registerer),
	}
}

// Subscribe registers a new reader under id and returns its receive channel.
// It fails with errs.ErrHubClosed once the hub has been shut down. A second
// Subscribe with the same id replaces the previous registration.
func (h *Hub[T]) Subscribe(id string) (<-chan T, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, errs.ErrHubClosed
	}

	if old, ok := h.subs[id]; ok {
		close(old.buf)
	}

	sub := &subscriber[T]{buf: make(chan T, h.capacity)}
	h.subs[id] = sub
	h.metrics.subscribers.Set(float64(len(h.subs)))
	return sub.buf, nil
}

// Unsubscribe removes id's registration and closes its buffer so the reader
// observes end-of-stream. Removing an unknown id is a no-op.
func (h *Hub[T]) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub, ok := h.subs[id]
	if !ok {
		return
	}
	delete(h.subs, id)
	close(sub.buf)
	h.metrics.subscribers.Set(float64(len(h.subs)))
}

// Publish offers item to every registered subscriber without blocking. Full
// buffers drop their oldest item to admit the newest. A no-op once the hub
// has been shut down.
func (h *Hub[T]) Publish(item T) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return
	}

	h.metrics.published.Inc()
	for _, sub := range h.subs {
		if sub.offer(item) {
			h.metrics.dropped.Inc()
		}
	}
}

// Shutdown marks the hub disposed, closes every subscriber buffer so
// in-flight readers observe a natural end-of-stream, and clears the registry.
// Idempotent.
func (h *Hub[T]) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true

	for id, sub := range h.subs {
		delete(h.subs, id)
		close(sub.buf)
	}
	h.metrics.subscribers.Set(0)
}

// ClientCount reports the number of registered subscribers. Best-effort only:
// a count transition does not guarantee the corresponding reader is already
// consuming.
func (h *Hub[T]) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
