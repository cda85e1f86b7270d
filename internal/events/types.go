package events

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of pool event.
type EventType string

const (
	// Pool lifecycle events
	PoolCreated  EventType = "pool.created"
	PoolReleased EventType = "pool.released"
	PoolTornDown EventType = "pool.torn_down"
	PoolPurged   EventType = "pool.purged"

	// Diagnostic events
	ObjectFromElse EventType = "object.from_else"
	DeallocFailed  EventType = "dealloc.failed"
)

// PoolEvent represents a change or diagnostic on a thread's pool.
type PoolEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Pool      string         `json:"pool,omitempty"`
	Thread    uint64         `json:"thread,omitempty"`
	Count     int            `json:"count,omitempty"`
	Error     string         `json:"error,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewEvent creates a new pool event.
func NewEvent(eventType EventType) *PoolEvent {
	return &PoolEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now(),
		Metadata:  make(map[string]any),
	}
}

// WithPool sets the pool name for the event.
func (e *PoolEvent) WithPool(pool string) *PoolEvent {
	e.Pool = pool
	return e
}

// WithThread sets the thread ID for the event.
func (e *PoolEvent) WithThread(id uint64) *PoolEvent {
	e.Thread = id
	return e
}

// WithCount sets the object or block count for the event.
func (e *PoolEvent) WithCount(n int) *PoolEvent {
	e.Count = n
	return e
}

// WithError records err on the event. A nil error is ignored.
func (e *PoolEvent) WithError(err error) *PoolEvent {
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// WithMetadata adds metadata to the event.
func (e *PoolEvent) WithMetadata(key string, value any) *PoolEvent {
	e.Metadata[key] = value
	return e
}

// Topic returns the pool topic for this event, or "*" without a pool.
func (e *PoolEvent) Topic() string {
	if e.Pool != "" {
		return e.Pool
	}
	return "*"
}

// ThreadTopic returns the topic that receives every event of one thread.
func ThreadTopic(id uint64) string {
	return "thread/" + strconv.FormatUint(id, 10)
}
