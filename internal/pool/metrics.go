package pool

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Operation label values.
const (
	opGet     = "get"
	opReturn  = "return"
	opDiscard = "discard"
	opMiss    = "miss"
)

// sharedOps counts shared pool operations by pool and operation.
var sharedOps = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "tlspool",
	Subsystem: "shared",
	Name:      "operations_total",
	Help:      "Total number of shared pool operations (get, return, discard, miss)",
}, []string{"pool", "op"})

// Metrics tracks shared pool utilization. A nil *Metrics records nothing.
type Metrics struct {
	gets     atomic.Uint64
	returns  atomic.Uint64
	discards atomic.Uint64
	misses   atomic.Uint64
}

// NewMetrics creates a new Metrics instance.
func NewMetrics() *Metrics {
	return &Metrics{}
}

func record(pool, op string, c *atomic.Uint64) {
	c.Add(1)
	sharedOps.WithLabelValues(pool, op).Inc()
}

// RecordGet counts a Get.
func (m *Metrics) RecordGet(pool string) {
	if m != nil {
		record(pool, opGet, &m.gets)
	}
}

// RecordReturn counts an object put back.
func (m *Metrics) RecordReturn(pool string) {
	if m != nil {
		record(pool, opReturn, &m.returns)
	}
}

// RecordDiscard counts a nil Put.
func (m *Metrics) RecordDiscard(pool string) {
	if m != nil {
		record(pool, opDiscard, &m.discards)
	}
}

// RecordMiss counts an allocation by the pool.
func (m *Metrics) RecordMiss(pool string) {
	if m != nil {
		record(pool, opMiss, &m.misses)
	}
}

// Stats returns current pool statistics.
func (m *Metrics) Stats() Stats {
	if m == nil {
		return Stats{}
	}
	return Stats{
		Gets:     m.gets.Load(),
		Returns:  m.returns.Load(),
		Discards: m.discards.Load(),
		Misses:   m.misses.Load(),
	}
}

// Stats contains shared pool statistics.
type Stats struct {
	Gets     uint64 `json:"gets"`
	Returns  uint64 `json:"returns"`
	Discards uint64 `json:"discards"`
	Misses   uint64 `json:"misses"`
}

// HitRate returns the fraction of gets served without allocating.
func (s Stats) HitRate() float64 {
	if s.Gets == 0 || s.Misses > s.Gets {
		return 0
	}
	return float64(s.Gets-s.Misses) / float64(s.Gets)
}
