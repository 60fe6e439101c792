// Package broadcaster fans engine progress lines out to watching clients.
package broadcaster

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Event is one progress line, or a marker set by Mark.
type Event struct {
	Time    time.Time
	Message string
	Marker  string
}

// DefaultBuffer is how many lines a subscriber may fall behind before lines
// are dropped for it.
const DefaultBuffer = 100

// Subscriber is a client watching progress.
type Subscriber struct {
	ID     string
	Events chan Event

	dropped atomic.Int64
}

// Dropped returns how many lines this subscriber missed because it was full.
func (s *Subscriber) Dropped() int64 {
	return s.dropped.Load()
}

// Broadcaster manages subscribers and distributes events. Slow subscribers
// drop events rather than block the engine.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber
	closed      bool
	buffer      int
	now         func() time.Time
}

// Option configures a Broadcaster.
type Option func(*Broadcaster)

// WithBuffer sets the per-subscriber buffer. Values below 1 are ignored.
func WithBuffer(n int) Option {
	return func(b *Broadcaster) {
		if n > 0 {
			b.buffer = n
		}
	}
}

// New creates a new Broadcaster.
func New(opts ...Option) *Broadcaster {
	b := &Broadcaster{
		subscribers: make(map[string]*Subscriber),
		buffer:      DefaultBuffer,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a new subscriber. It returns nil after Close.
func (b *Broadcaster) Subscribe() *Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	sub := &Subscriber{
		ID:     uuid.New().String(),
		Events: make(chan Event, b.buffer),
	}
	b.subscribers[sub.ID] = sub
	return sub
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Broadcaster) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub, ok := b.subscribers[id]; ok {
		close(sub.Events)
		delete(b.subscribers, id)
	}
}

// Notify sends message to every subscriber. It has the types.LogFunc shape so
// it can be handed to the engine directly.
func (b *Broadcaster) Notify(message string) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	b.send(Event{Time: b.now(), Message: message})
}

// Mark sends a marker event. Since each subscriber's channel is ordered, a
// watcher that receives the marker has received every line notified before it.
func (b *Broadcaster) Mark(marker string) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	b.send(Event{Time: b.now(), Marker: marker})
}

// send delivers event without blocking. Must be called with b.mu held.
func (b *Broadcaster) send(event Event) {
	for _, sub := range b.subscribers {
		select {
		case sub.Events <- event:
		default:
			sub.dropped.Add(1)
		}
	}
}

// Close closes the broadcaster and all subscriptions.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.closed = true
	for _, sub := range b.subscribers {
		close(sub.Events)
	}
	b.subscribers = make(map[string]*Subscriber)
}

// SubscriberCount returns the number of active subscribers.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
