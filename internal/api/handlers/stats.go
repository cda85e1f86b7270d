package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/DongTao/tls-mempool/internal/events"
	"github.com/DongTao/tls-mempool/internal/metrics"
)

// ResultsFunc returns the benchmark results recorded so far.
type ResultsFunc func() any

// StatsResponse is the body of GET /stats.
type StatsResponse struct {
	Pools       metrics.Stats `json:"pools"`
	LiveObjects uint64        `json:"live_objects"`
	FailureRate float64       `json:"failure_rate"`
	Events      EventStats    `json:"events"`
	Results     any           `json:"results,omitempty"`
}

// EventStats describes the diagnostic event broker.
type EventStats struct {
	Dropped       uint64         `json:"dropped"`
	Subscriptions map[string]int `json:"subscriptions"`
}

// Stats serves a snapshot of pool activity. Any argument may be nil.
func Stats(m *metrics.PoolMetrics, broker *events.Broker, results ResultsFunc) fiber.Handler {
	return func(c *fiber.Ctx) error {
		stats := m.Stats()
		resp := StatsResponse{
			Pools:       stats,
			LiveObjects: stats.Live(),
			FailureRate: stats.FailureRate(),
			Events:      EventStats{Subscriptions: map[string]int{}},
		}
		if broker != nil {
			resp.Events.Dropped = broker.Dropped()
			resp.Events.Subscriptions = broker.Stats()
		}
		if results != nil {
			resp.Results = results()
		}
		return c.JSON(resp)
	}
}
