package metrics

import (
	"sync/atomic"
)

// Release reasons recorded with RecordPoolReleased.
const (
	ReasonRelease    = "release"
	ReasonThreadExit = "thread_exit"
)

// PoolMetrics tracks pool activity for observability.
// A nil *PoolMetrics is valid and records nothing.
type PoolMetrics struct {
	creates         atomic.Uint64
	createFailures  atomic.Uint64
	destroys        atomic.Uint64
	destroyFailures atomic.Uint64
	fromElse        atomic.Uint64
	poolsCreated    atomic.Uint64
	poolsReleased   atomic.Uint64
	purges          atomic.Uint64
}

// NewPoolMetrics creates a new PoolMetrics instance.
func NewPoolMetrics() *PoolMetrics {
	return &PoolMetrics{}
}

// RecordCreate records n constructed objects.
func (m *PoolMetrics) RecordCreate(pool string, n int) {
	if m == nil {
		return
	}
	m.creates.Add(uint64(n))
	ObjectsCreated.WithLabelValues(pool).Add(float64(n))
	LiveObjects.WithLabelValues(pool).Add(float64(n))
}

// RecordCreateFailure records a failed create of the given kind.
func (m *PoolMetrics) RecordCreateFailure(pool, kind string) {
	if m == nil {
		return
	}
	m.createFailures.Add(1)
	CreateFailures.WithLabelValues(pool, kind).Inc()
}

// RecordDestroy records n destructed objects.
func (m *PoolMetrics) RecordDestroy(pool string, n int) {
	if m == nil {
		return
	}
	m.destroys.Add(uint64(n))
	ObjectsDestroyed.WithLabelValues(pool).Add(float64(n))
	LiveObjects.WithLabelValues(pool).Sub(float64(n))
}

// RecordDestroyFailure records a rejected destroy of the given kind.
func (m *PoolMetrics) RecordDestroyFailure(pool, kind string) {
	if m == nil {
		return
	}
	m.destroyFailures.Add(1)
	if kind == "from_else" {
		m.fromElse.Add(1)
	}
	DestroyFailures.WithLabelValues(pool, kind).Inc()
}

// RecordPoolCreated records a backing pool bound to a thread.
func (m *PoolMetrics) RecordPoolCreated(pool string) {
	if m == nil {
		return
	}
	m.poolsCreated.Add(1)
	ActivePools.WithLabelValues(pool).Inc()
}

// RecordPoolReleased records a backing pool torn down. live is the number
// of objects that were still outstanding and lose their destructor call.
func (m *PoolMetrics) RecordPoolReleased(pool, reason string, live int) {
	if m == nil {
		return
	}
	m.poolsReleased.Add(1)
	ActivePools.WithLabelValues(pool).Dec()
	PoolsReleased.WithLabelValues(pool, reason).Inc()
	if live > 0 {
		LiveObjects.WithLabelValues(pool).Sub(float64(live))
	}
}

// RecordPurge records a purge that released the given number of blocks.
func (m *PoolMetrics) RecordPurge(pool string, blocks int) {
	if m == nil {
		return
	}
	m.purges.Add(1)
	BlocksPurged.WithLabelValues(pool).Add(float64(blocks))
}

// Stats returns current pool statistics.
func (m *PoolMetrics) Stats() Stats {
	if m == nil {
		return Stats{}
	}
	return Stats{
		Creates:         m.creates.Load(),
		CreateFailures:  m.createFailures.Load(),
		Destroys:        m.destroys.Load(),
		DestroyFailures: m.destroyFailures.Load(),
		FromElse:        m.fromElse.Load(),
		PoolsCreated:    m.poolsCreated.Load(),
		PoolsReleased:   m.poolsReleased.Load(),
		Purges:          m.purges.Load(),
	}
}

// Stats contains pool activity statistics.
type Stats struct {
	Creates         uint64 `json:"creates"`
	CreateFailures  uint64 `json:"create_failures"`
	Destroys        uint64 `json:"destroys"`
	DestroyFailures uint64 `json:"destroy_failures"`
	FromElse        uint64 `json:"from_else"`
	PoolsCreated    uint64 `json:"pools_created"`
	PoolsReleased   uint64 `json:"pools_released"`
	Purges          uint64 `json:"purges"`
}

// Live returns objects created and not destroyed through the pool.
// Objects dropped by a release or thread exit are still counted.
func (s Stats) Live() uint64 {
	if s.Destroys > s.Creates {
		return 0
	}
	return s.Creates - s.Destroys
}

// FailureRate returns the fraction of create attempts that failed.
// Note: array creates count one per element on success and one per call
// on failure, so this is an approximation for array workloads.
func (s Stats) FailureRate() float64 {
	attempts := s.Creates + s.CreateFailures
	if attempts == 0 {
		return 0
	}
	return float64(s.CreateFailures) / float64(attempts)
}
