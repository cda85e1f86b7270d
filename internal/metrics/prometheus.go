package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ObjectsCreated tracks objects successfully constructed per pool.
	ObjectsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tlspool",
		Name:      "objects_created_total",
		Help:      "Total number of objects constructed from a thread pool",
	}, []string{"pool"})

	// ObjectsDestroyed tracks objects destructed and returned per pool.
	ObjectsDestroyed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tlspool",
		Name:      "objects_destroyed_total",
		Help:      "Total number of objects destructed and returned to a thread pool",
	}, []string{"pool"})

	// CreateFailures tracks failed Create calls by error kind.
	CreateFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tlspool",
		Name:      "create_failures_total",
		Help:      "Total number of failed create operations",
	}, []string{"pool", "kind"})

	// DestroyFailures tracks failed Destroy calls by error kind.
	// kind="from_else" counts ownership violations.
	DestroyFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tlspool",
		Name:      "destroy_failures_total",
		Help:      "Total number of rejected destroy operations",
	}, []string{"pool", "kind"})

	// LiveObjects tracks objects created and not yet destroyed.
	LiveObjects = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "tlspool",
		Name:      "live_objects",
		Help:      "Number of live objects across all threads",
	}, []string{"pool"})

	// ActivePools tracks backing pools currently bound to a thread.
	ActivePools = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "tlspool",
		Name:      "active_pools",
		Help:      "Number of backing pools bound to threads",
	}, []string{"pool"})

	// PoolsReleased tracks pool teardowns by reason (release, thread_exit).
	PoolsReleased = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tlspool",
		Name:      "pools_released_total",
		Help:      "Total number of backing pools torn down",
	}, []string{"pool", "reason"})

	// BlocksPurged tracks free blocks returned to the runtime by purge.
	BlocksPurged = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tlspool",
		Name:      "blocks_purged_total",
		Help:      "Total number of free blocks released by purge",
	}, []string{"pool"})

	// BackgroundTaskRuns tracks periodic task executions.
	BackgroundTaskRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tlspool",
		Name:      "background_task_runs_total",
		Help:      "Total number of background task runs",
	}, []string{"task", "status"})
)

// IncBackgroundTaskRuns increments the run counter of a background task.
func IncBackgroundTaskRuns(task, status string) {
	BackgroundTaskRuns.WithLabelValues(task, status).Inc()
}
