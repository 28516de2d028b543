package broadcast

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/lcalzada-xor/auditchain/internal/core/domain"
	"github.com/lcalzada-xor/auditchain/internal/core/ports"
	"github.com/lcalzada-xor/auditchain/internal/telemetry"
)

const (
	// DefaultBufferSize is the per-subscriber event buffer.
	DefaultBufferSize = 64

	// DefaultHeartbeatInterval paces liveness events to idle subscribers.
	DefaultHeartbeatInterval = 30 * time.Second
)

// Subscriber is one live consumer of the event stream. Its buffer is
// bounded: when full, the oldest buffered event is dropped and the
// subscriber's counter incremented, so one stalled consumer never blocks
// the publisher or its peers.
type Subscriber struct {
	id      string
	events  chan domain.Event
	dropped atomic.Uint64
	once    sync.Once
}

// Events is the subscriber's receive channel. It is closed on
// Unsubscribe or broadcaster shutdown.
func (s *Subscriber) Events() <-chan domain.Event { return s.events }

// Dropped returns how many events this subscriber has lost to overflow.
func (s *Subscriber) Dropped() uint64 { return s.dropped.Load() }

// ID identifies the subscription.
func (s *Subscriber) ID() string { return s.id }

func (s *Subscriber) close() {
	s.once.Do(func() { close(s.events) })
}

// Broadcaster fans published events out to all live subscribers.
type Broadcaster struct {
	mu   sync.RWMutex
	subs map[string]*Subscriber

	bufferSize int
	heartbeat  time.Duration
	closed     bool
}

// Option configures the broadcaster.
type Option func(*Broadcaster)

// WithBufferSize sets the per-subscriber buffer capacity.
func WithBufferSize(n int) Option {
	return func(b *Broadcaster) {
		if n > 0 {
			b.bufferSize = n
		}
	}
}

// WithHeartbeatInterval sets the liveness event cadence.
func WithHeartbeatInterval(d time.Duration) Option {
	return func(b *Broadcaster) {
		if d > 0 {
			b.heartbeat = d
		}
	}
}

// New creates a broadcaster.
func New(opts ...Option) *Broadcaster {
	b := &Broadcaster{
		subs:       make(map[string]*Subscriber),
		bufferSize: DefaultBufferSize,
		heartbeat:  DefaultHeartbeatInterval,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Start runs the heartbeat loop until ctx is cancelled, then closes every
// subscription.
func (b *Broadcaster) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(b.heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				b.shutdown()
				return
			case <-ticker.C:
				b.publishHeartbeats()
			}
		}
	}()
}

// Subscribe registers a new live consumer.
func (b *Broadcaster) Subscribe() *Subscriber {
	sub := &Subscriber{
		id:     uuid.NewString(),
		events: make(chan domain.Event, b.bufferSize),
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		sub.close()
		return sub
	}
	b.subs[sub.id] = sub
	return sub
}

// Unsubscribe removes the subscriber and releases its buffer immediately.
func (b *Broadcaster) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub.id]; ok {
		delete(b.subs, sub.id)
		sub.close()
	}
}

// SubscriberCount reports current fan-out width.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Publish delivers the event to every subscriber without ever blocking.
// A full buffer sheds its oldest event first (drop-oldest), keeping the
// stream as fresh as the consumer allows.
func (b *Broadcaster) Publish(event domain.Event) {
	telemetry.EventsPublished.WithLabelValues(string(event.Type)).Inc()

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		b.deliver(sub, event)
	}
}

// deliver runs with the read lock held, so no subscription can close
// concurrently with the send.
func (b *Broadcaster) deliver(sub *Subscriber, event domain.Event) {
	select {
	case sub.events <- event:
		return
	default:
	}

	// Buffer full: shed the oldest, then retry once. If a racing reader
	// drained the channel in between, the retry lands.
	select {
	case <-sub.events:
		sub.dropped.Add(1)
		telemetry.EventsDropped.Inc()
	default:
	}
	select {
	case sub.events <- event:
	default:
		sub.dropped.Add(1)
		telemetry.EventsDropped.Inc()
	}
}

// publishHeartbeats sends each subscriber its own liveness event carrying
// that subscriber's dropped-event count.
func (b *Broadcaster) publishHeartbeats() {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		b.deliver(sub, domain.NewHeartbeat(sub.Dropped()))
	}
}

func (b *Broadcaster) shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for id, sub := range b.subs {
		delete(b.subs, id)
		sub.close()
	}
}

// Ensure interface compliance
var _ ports.Publisher = (*Broadcaster)(nil)
