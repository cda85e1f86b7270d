package pool

import "sync"

// Shared is a typed sync.Pool. The zero value is not usable; use
// NewShared.
type Shared[T any] struct {
	name    string
	pool    sync.Pool
	reset   func(*T)
	metrics *Metrics
}

// NewShared returns a pool named name. reset, if non-nil, is applied to
// every object on Put. metrics may be nil.
func NewShared[T any](name string, reset func(*T), metrics *Metrics) *Shared[T] {
	s := &Shared[T]{name: name, reset: reset, metrics: metrics}
	s.pool.New = func() any {
		s.metrics.RecordMiss(s.name)
		return new(T)
	}
	return s
}

// Name returns the pool name used as the metrics label.
func (s *Shared[T]) Name() string {
	return s.name
}

// Get returns a pooled object, allocating one when the pool is empty.
func (s *Shared[T]) Get() *T {
	s.metrics.RecordGet(s.name)
	return s.pool.Get().(*T)
}

// Put resets obj and returns it to the pool. A nil obj is discarded.
func (s *Shared[T]) Put(obj *T) {
	if obj == nil {
		s.metrics.RecordDiscard(s.name)
		return
	}

	if s.reset != nil {
		s.reset(obj)
	}
	s.pool.Put(obj)
	s.metrics.RecordReturn(s.name)
}
