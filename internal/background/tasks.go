package background

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/DongTao/tls-mempool/internal/events"
	"github.com/DongTao/tls-mempool/internal/metrics"
)

// Task represents a background task that runs periodically.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Runner manages background task execution.
type Runner struct {
	tasks  []Task
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewRunner creates a runner for tasks. Tasks without a positive
// interval or a run function are skipped.
func NewRunner(tasks ...Task) *Runner {
	r := &Runner{}
	for _, task := range tasks {
		if task.Interval <= 0 || task.Run == nil {
			continue
		}
		r.tasks = append(r.tasks, task)
	}
	return r
}

// Tasks returns the number of scheduled tasks.
func (r *Runner) Tasks() int {
	return len(r.tasks)
}

// Start begins running all background tasks.
func (r *Runner) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)

	for _, task := range r.tasks {
		r.wg.Add(1)
		go r.runTask(ctx, task)
	}

	slog.Debug("background task runner started", "task_count", len(r.tasks))
}

// Stop gracefully stops all background tasks.
func (r *Runner) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
	slog.Debug("background task runner stopped")
}

// runTask runs a single task in a loop.
func (r *Runner) runTask(ctx context.Context, task Task) {
	defer r.wg.Done()

	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.executeTask(ctx, task)
		}
	}
}

// executeTask executes one run of a task.
func (r *Runner) executeTask(ctx context.Context, task Task) {
	start := time.Now()
	err := task.Run(ctx)
	duration := time.Since(start)

	if err != nil {
		slog.Error("background task failed",
			"task", task.Name,
			"duration", duration,
			"error", err,
		)
		metrics.IncBackgroundTaskRuns(task.Name, "error")
		return
	}
	slog.Debug("background task completed",
		"task", task.Name,
		"duration", duration,
	)
	metrics.IncBackgroundTaskRuns(task.Name, "success")
}

// StatsReport returns a task logging a snapshot of pool activity every
// interval.
func StatsReport(interval time.Duration, m *metrics.PoolMetrics, broker *events.Broker, logger *slog.Logger) Task {
	if logger == nil {
		logger = slog.Default()
	}
	return Task{
		Name:     "report_pool_stats",
		Interval: interval,
		Run: func(ctx context.Context) error {
			stats := m.Stats()
			attrs := []any{
				"creates", stats.Creates,
				"destroys", stats.Destroys,
				"live_objects", stats.Live(),
				"create_failures", stats.CreateFailures,
				"from_else", stats.FromElse,
				"pools_created", stats.PoolsCreated,
				"pools_released", stats.PoolsReleased,
			}
			if broker != nil {
				attrs = append(attrs, "events_dropped", broker.Dropped())
			}
			logger.InfoContext(ctx, "pool stats", attrs...)
			return nil
		},
	}
}
