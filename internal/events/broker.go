package events

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// Broker is an in-memory event broker for pub/sub.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan PoolEvent]struct{}
	bufferSize  int
	dropped     atomic.Uint64
	closed      bool
}

// NewBroker creates a new event broker.
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[string]map[chan PoolEvent]struct{}),
		bufferSize:  64, // Buffer size for each subscription channel
	}
}

// Subscription represents an active subscription that can be used for cleanup.
type Subscription struct {
	topic  string
	ch     chan PoolEvent
	broker *Broker
}

// Events returns the channel for receiving events.
func (s *Subscription) Events() <-chan PoolEvent {
	return s.ch
}

// Unsubscribe removes this subscription and closes the channel.
func (s *Subscription) Unsubscribe() {
	s.broker.unsubscribe(s.topic, s.ch)
}

// Subscribe creates a subscription to a topic.
// Topic can be:
//   - "*" for all events
//   - a pool name for events of that pool on every thread
//   - ThreadTopic(id) for every event of one thread
func (b *Broker) Subscribe(topic string) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	ch := make(chan PoolEvent, b.bufferSize)

	if b.subscribers[topic] == nil {
		b.subscribers[topic] = make(map[chan PoolEvent]struct{})
	}
	b.subscribers[topic][ch] = struct{}{}

	slog.Debug("new subscription", "topic", topic)
	return &Subscription{
		topic:  topic,
		ch:     ch,
		broker: b,
	}
}

func (b *Broker) unsubscribe(topic string, ch chan PoolEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if subs, ok := b.subscribers[topic]; ok {
		if _, exists := subs[ch]; exists {
			delete(subs, ch)
			close(ch)
			slog.Debug("unsubscribed", "topic", topic)
		}
		if len(subs) == 0 {
			delete(b.subscribers, topic)
		}
	}
}

// Publish sends an event to all matching subscribers.
// Matches subscribers for:
//   - The pool topic
//   - The thread topic, when the event carries a thread ID
//   - The global wildcard ("*")
//
// Publish never blocks; events for a full subscriber are dropped.
func (b *Broker) Publish(event PoolEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	topic := event.Topic()

	var channels []chan PoolEvent

	if topic != "*" {
		for ch := range b.subscribers[topic] {
			channels = append(channels, ch)
		}
	}
	if event.Thread != 0 {
		for ch := range b.subscribers[ThreadTopic(event.Thread)] {
			channels = append(channels, ch)
		}
	}
	for ch := range b.subscribers["*"] {
		channels = append(channels, ch)
	}

	for _, ch := range channels {
		select {
		case ch <- event:
		default:
			b.dropped.Add(1)
			slog.Warn("event dropped, subscriber channel full",
				"event_type", event.Type,
				"topic", topic,
			)
		}
	}
}

// Dropped returns the number of events dropped on full subscribers.
func (b *Broker) Dropped() uint64 {
	return b.dropped.Load()
}

// Close closes the broker and all subscriptions.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for topic, subs := range b.subscribers {
		for ch := range subs {
			close(ch)
		}
		delete(b.subscribers, topic)
	}

	slog.Debug("event broker closed")
}

// Stats returns the number of subscriptions per topic.
func (b *Broker) Stats() map[string]int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	stats := make(map[string]int)
	for topic, subs := range b.subscribers {
		stats[topic] = len(subs)
	}
	return stats
}
