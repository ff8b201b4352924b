// Package notifier implements the in-process Pub/Sub Notifier.
//
// Consumers subscribe to named streams and receive pushed updates from the
// Connection Manager or the Polling Scheduler. Delivery is synchronous and
// in subscription order; a panicking callback is isolated and logged so it
// never blocks delivery to the remaining subscribers.
package notifier

import (
	"log/slog"
	"sync"

	"github.com/marketdeck/syncd/internal/metrics"
)

// Handler receives a published payload.
type Handler func(payload any)

type subscriber struct {
	id int
	fn Handler
}

// Notifier distributes published payloads to stream subscribers.
type Notifier struct {
	logger *slog.Logger

	mu     sync.RWMutex
	nextID int
	subs   map[Stream][]subscriber
}

// New creates a Notifier.
func New(logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		logger: logger,
		subs:   make(map[Stream][]subscriber),
	}
}

// Subscribe registers fn for stream and returns an unsubscribe function.
// Multiple handlers per stream are delivered in subscription order.
func (n *Notifier) Subscribe(stream Stream, fn Handler) func() {
	n.mu.Lock()
	n.nextID++
	id := n.nextID
	n.subs[stream] = append(n.subs[stream], subscriber{id: id, fn: fn})
	n.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			n.unsubscribe(stream, id)
		})
	}
}

// Publish delivers payload synchronously to every handler currently
// subscribed to stream. Streams with no subscribers are a no-op.
func (n *Notifier) Publish(stream Stream, payload any) {
	n.mu.RLock()
	handlers := make([]subscriber, len(n.subs[stream]))
	copy(handlers, n.subs[stream])
	n.mu.RUnlock()

	metrics.PublishedEvents.WithLabelValues(string(stream)).Inc()

	for _, s := range handlers {
		n.deliver(stream, s, payload)
	}
}

// SubscriberCount returns the number of handlers on stream.
func (n *Notifier) SubscriberCount(stream Stream) int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.subs[stream])
}

func (n *Notifier) deliver(stream Stream, s subscriber, payload any) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("subscriber panicked",
				"stream", stream,
				"panic", r,
			)
		}
	}()
	s.fn(payload)
}

func (n *Notifier) unsubscribe(stream Stream, id int) {
	n.mu.Lock()
	defer n.mu.Unlock()

	handlers := n.subs[stream]
	for i, s := range handlers {
		if s.id == id {
			n.subs[stream] = append(handlers[:i:i], handlers[i+1:]...)
			break
		}
	}
	if len(n.subs[stream]) == 0 {
		delete(n.subs, stream)
	}
}
