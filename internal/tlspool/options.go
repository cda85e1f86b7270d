package tlspool

import (
	"log/slog"

	"github.com/DongTao/tls-mempool/internal/events"
	"github.com/DongTao/tls-mempool/internal/metrics"
)

// Constructor is implemented by element types that need initialization
// beyond their zero value. Construct runs on the zeroed chunk.
type Constructor interface {
	Construct() error
}

// Destructor is implemented by element types with teardown work.
// Destruct runs once, before the chunk is returned to the pool.
type Destructor interface {
	Destruct()
}

// Option configures a Pool or an Allocator.
type Option func(*settings)

type settings struct {
	obs       observer
	construct any // func(*T) error
	destruct  any // func(*T)
	onDealloc func(error)
}

// WithMetrics records pool activity into m.
func WithMetrics(m *metrics.PoolMetrics) Option {
	return func(s *settings) {
		s.obs.metrics = m
	}
}

// WithEvents publishes lifecycle and diagnostic events to b.
func WithEvents(b *events.Broker) Option {
	return func(s *settings) {
		s.obs.events = b
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) {
		s.obs.logger = l
	}
}

// WithConstructor sets the construction hook, taking precedence over a
// Constructor implementation. The element type must match the pool's.
func WithConstructor[T any](fn func(*T) error) Option {
	return func(s *settings) {
		s.construct = fn
	}
}

// WithDestructor sets the destruction hook, taking precedence over a
// Destructor implementation. The element type must match the pool's.
func WithDestructor[T any](fn func(*T)) Option {
	return func(s *settings) {
		s.destruct = fn
	}
}

// WithDeallocHandler sets the function an Allocator reports failed
// deallocations to. The default logs a warning. Pools ignore it.
func WithDeallocHandler(fn func(error)) Option {
	return func(s *settings) {
		s.onDealloc = fn
	}
}

func newSettings(opts []Option) settings {
	var s settings
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}
	return s
}
