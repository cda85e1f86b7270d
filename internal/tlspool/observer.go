package tlspool

import (
	"log/slog"

	"github.com/DongTao/tls-mempool/internal/events"
	"github.com/DongTao/tls-mempool/internal/metrics"
)

// observer reports pool activity to the optional metrics, event broker
// and logger. The zero value logs to slog.Default and nothing else.
type observer struct {
	metrics *metrics.PoolMetrics
	events  *events.Broker
	logger  *slog.Logger
}

func (o observer) log() *slog.Logger {
	if o.logger != nil {
		return o.logger
	}
	return slog.Default()
}

func (o observer) publish(e *events.PoolEvent) {
	if o.events != nil {
		o.events.Publish(*e)
	}
}

func (o observer) poolCreated(th *Thread, s *slot) {
	o.metrics.RecordPoolCreated(s.name)
	o.publish(events.NewEvent(events.PoolCreated).WithPool(s.name).WithThread(th.id))
	o.log().Debug("pool created",
		"pool", s.name,
		"thread", th.id,
		"chunk_size", s.policy.ChunkSize(),
	)
}

func (o observer) poolReleased(th *Thread, s *slot, reason string) {
	o.metrics.RecordPoolReleased(s.name, reason, s.live)

	eventType := events.PoolReleased
	if reason == metrics.ReasonThreadExit {
		eventType = events.PoolTornDown
	}
	o.publish(events.NewEvent(eventType).WithPool(s.name).WithThread(th.id).WithCount(s.live))

	o.log().Debug("pool released",
		"pool", s.name,
		"thread", th.id,
		"reason", reason,
		"live_objects", s.live,
	)
}

func (o observer) purged(th *Thread, s *slot, blocks int) {
	o.metrics.RecordPurge(s.name, blocks)
	o.publish(events.NewEvent(events.PoolPurged).WithPool(s.name).WithThread(th.id).WithCount(blocks))
	o.log().Debug("pool purged",
		"pool", s.name,
		"thread", th.id,
		"blocks_released", blocks,
	)
}

func (o observer) created(s *slot, n int) {
	o.metrics.RecordCreate(s.name, n)
}

func (o observer) createFailed(pool string, err error) {
	o.metrics.RecordCreateFailure(pool, KindOf(err).String())
}

func (o observer) destroyed(s *slot, n int) {
	o.metrics.RecordDestroy(s.name, n)
}

func (o observer) destroyFailed(th *Thread, pool string, n int, err error) {
	kind := KindOf(err)
	o.metrics.RecordDestroyFailure(pool, kind.String())
	if kind == FromElse {
		e := events.NewEvent(events.ObjectFromElse).WithPool(pool).WithCount(n).WithError(err)
		if th != nil {
			e.WithThread(th.id)
		}
		o.publish(e)
	}
}

func (o observer) deallocFailed(th *Thread, pool string, n int, err error) {
	e := events.NewEvent(events.DeallocFailed).WithPool(pool).WithCount(n).WithError(err)
	if th != nil {
		e.WithThread(th.id)
	}
	o.publish(e)
}
