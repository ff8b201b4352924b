// Package subscription implements the Subscription Registry: the ordered
// set of topics the client wants from the realtime backend. The registry
// is the source of truth for resubscription; the Connection Manager
// replays it on every (re)connect.
package subscription

import (
	"log/slog"
	"sync"

	"github.com/marketdeck/syncd/internal/connection"
)

// Sender is the transport the registry pushes subscribe frames through.
// *connection.Manager and *connection.TradingClient both satisfy it.
type Sender interface {
	Send(payload any) error
	Connected() bool
}

// Registry tracks subscribed topics in insertion order.
type Registry struct {
	logger *slog.Logger

	mu     sync.Mutex
	sender Sender
	order  []string
	topics map[string]struct{}
}

// New creates an empty registry. Bind attaches the transport later, after
// the Connection Manager (which needs the registry as its topic source)
// has been constructed.
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger: logger,
		topics: make(map[string]struct{}),
	}
}

// Bind attaches the transport used for live subscribe frames.
func (r *Registry) Bind(sender Sender) {
	r.mu.Lock()
	r.sender = sender
	r.mu.Unlock()
}

// Subscribe registers a topic. A duplicate is a no-op: no frame is sent
// and the topic's position in the set is unchanged. While disconnected the
// topic is only recorded; the manager replays it on the next connect.
func (r *Registry) Subscribe(topic string) {
	r.mu.Lock()
	if _, ok := r.topics[topic]; ok {
		r.mu.Unlock()
		return
	}
	r.topics[topic] = struct{}{}
	r.order = append(r.order, topic)
	sender := r.sender
	r.mu.Unlock()

	r.logger.Debug("topic subscribed", "topic", topic)

	if sender != nil && sender.Connected() {
		if err := sender.Send(connection.SubscribeCommand{Action: "subscribe", Symbol: topic}); err != nil {
			r.logger.Warn("subscribe frame failed", "topic", topic, "error", err)
		}
	}
}

// Unsubscribe removes a topic. Unknown topics are a no-op.
func (r *Registry) Unsubscribe(topic string) {
	r.mu.Lock()
	if _, ok := r.topics[topic]; !ok {
		r.mu.Unlock()
		return
	}
	delete(r.topics, topic)
	for i, t := range r.order {
		if t == topic {
			r.order = append(r.order[:i:i], r.order[i+1:]...)
			break
		}
	}
	sender := r.sender
	r.mu.Unlock()

	r.logger.Debug("topic unsubscribed", "topic", topic)

	if sender != nil && sender.Connected() {
		if err := sender.Send(connection.SubscribeCommand{Action: "unsubscribe", Symbol: topic}); err != nil {
			r.logger.Warn("unsubscribe frame failed", "topic", topic, "error", err)
		}
	}
}

// Subscribed reports whether topic is in the set.
func (r *Registry) Subscribed(topic string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.topics[topic]
	return ok
}

// Topics returns the subscribed topics in insertion order. The slice is a
// copy; this satisfies connection.TopicSource.
func (r *Registry) Topics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of subscribed topics.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}
