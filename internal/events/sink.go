package events

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// LogSink drains a subscription and writes every event to a logger.
// Diagnostic events (ownership violations, failed deallocations) are
// logged at warn, lifecycle events at debug.
type LogSink struct {
	sub    *Subscription
	logger *slog.Logger
	wg     sync.WaitGroup
	seen   atomic.Uint64
	warned atomic.Uint64
}

// NewLogSink subscribes to topic on broker. It returns nil if the broker
// is closed.
func NewLogSink(broker *Broker, topic string, logger *slog.Logger) *LogSink {
	sub := broker.Subscribe(topic)
	if sub == nil {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{sub: sub, logger: logger}
}

// Start begins draining events in a background goroutine.
func (s *LogSink) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for event := range s.sub.Events() {
			s.log(event)
		}
	}()
}

// Stop unsubscribes and waits for buffered events to be logged.
func (s *LogSink) Stop() {
	s.sub.Unsubscribe()
	s.wg.Wait()
}

// Seen returns the number of events logged.
func (s *LogSink) Seen() uint64 {
	return s.seen.Load()
}

// Warnings returns the number of diagnostic events logged.
func (s *LogSink) Warnings() uint64 {
	return s.warned.Load()
}

func (s *LogSink) log(event PoolEvent) {
	s.seen.Add(1)

	attrs := []any{
		"event_id", event.ID,
		"event_type", event.Type,
		"pool", event.Pool,
		"thread", event.Thread,
	}
	if event.Count != 0 {
		attrs = append(attrs, "count", event.Count)
	}
	if event.Error != "" {
		attrs = append(attrs, "error", event.Error)
	}

	switch event.Type {
	case ObjectFromElse, DeallocFailed:
		s.warned.Add(1)
		s.logger.Warn("pool diagnostic", attrs...)
	default:
		s.logger.Debug("pool event", attrs...)
	}
}
