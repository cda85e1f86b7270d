// Package bench drives allocation workloads over thread groups and
// compares thread pools with plain heap allocation.
package bench

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/DongTao/tls-mempool/internal/chunk"
	"github.com/DongTao/tls-mempool/internal/config"
	"github.com/DongTao/tls-mempool/internal/events"
	"github.com/DongTao/tls-mempool/internal/metrics"
	"github.com/DongTao/tls-mempool/internal/pool"
	"github.com/DongTao/tls-mempool/internal/telemetry"
	"github.com/DongTao/tls-mempool/internal/tlspool"
	"github.com/DongTao/tls-mempool/internal/workers"
)

const tracerName = "github.com/DongTao/tls-mempool/internal/bench"

// Options configures a Runner.
type Options struct {
	Modes     []string
	Threads   int
	Objects   int
	Rounds    int
	ArraySize int

	// Persistent runs members on a fixed worker pool kept until Close.
	Persistent bool

	Factory chunk.Factory // nil uses chunk.DefaultFreeList()
	Metrics *metrics.PoolMetrics
	Shared  *pool.Metrics
	Events  *events.Broker
	Logger  *slog.Logger
	Tracer  trace.Tracer
}

// OptionsFromConfig builds Options from the bench and pool sections.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	factory, err := chunk.NewFreeList(cfg.Pool.Options())
	if err != nil {
		return Options{}, fmt.Errorf("pool options: %w", err)
	}
	return Options{
		Modes:      cfg.Bench.ModeList(),
		Threads:    cfg.Bench.Threads,
		Objects:    cfg.Bench.Objects,
		Rounds:     cfg.Bench.Rounds,
		ArraySize:  cfg.Bench.ArraySize,
		Persistent: cfg.Bench.Persistent,
		Factory:    factory,
	}, nil
}

// Runner executes the configured modes one after another.
type Runner struct {
	opts    Options
	records *tlspool.Pool[record]
	shared  *pool.Shared[record]
	workers *workers.Pool // nil unless Persistent

	running atomic.Bool
	mu      sync.Mutex
	results []Result
}

// NewRunner validates opts and returns a Runner.
func NewRunner(opts Options) (*Runner, error) {
	if opts.Threads < 1 || opts.Objects < 1 || opts.Rounds < 1 || opts.ArraySize < 1 {
		return nil, fmt.Errorf("bench: threads, objects, rounds and array size must be positive")
	}
	if len(opts.Modes) == 0 {
		opts.Modes = config.Modes
	}
	if opts.Factory == nil {
		opts.Factory = chunk.DefaultFreeList()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Tracer == nil {
		opts.Tracer = telemetry.Tracer(tracerName)
	}

	r := &Runner{opts: opts}
	for _, mode := range opts.Modes {
		if _, err := r.workload(mode); err != nil {
			return nil, err
		}
	}
	r.records = tlspool.New[record](opts.Factory, r.poolOptions()...)
	r.shared = pool.NewShared[record]("bench.record", resetRecord, opts.Shared)

	if opts.Persistent {
		wp, err := workers.NewPool(opts.Threads)
		if err != nil {
			return nil, err
		}
		r.workers = wp
	}
	return r, nil
}

// Close stops the persistent workers, tearing down their threads.
func (r *Runner) Close() {
	if r.workers != nil {
		r.workers.Close()
	}
}

func (r *Runner) poolOptions() []tlspool.Option {
	return []tlspool.Option{
		tlspool.WithMetrics(r.opts.Metrics),
		tlspool.WithEvents(r.opts.Events),
		tlspool.WithLogger(r.opts.Logger),
	}
}

// Running reports whether Run is in progress.
func (r *Runner) Running() bool {
	return r.running.Load()
}

// Results returns the results recorded so far.
func (r *Runner) Results() []Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Result(nil), r.results...)
}

// Run executes every mode and returns their results. It stops at the
// first mode whose group fails; operation failures inside a mode are
// counted, not returned.
func (r *Runner) Run(ctx context.Context) ([]Result, error) {
	if !r.running.CompareAndSwap(false, true) {
		return nil, errors.New("bench: already running")
	}
	defer r.running.Store(false)

	ctx, span := telemetry.StartPhase(ctx, r.opts.Tracer, "bench.run",
		telemetry.AttrThreads.Int(r.opts.Threads),
		telemetry.AttrObjects.Int(r.opts.Objects),
	)

	var out []Result
	for _, mode := range r.opts.Modes {
		res, err := r.runMode(ctx, mode)
		if err != nil {
			telemetry.EndPhase(span, err)
			return out, err
		}
		out = append(out, res)

		r.mu.Lock()
		r.results = append(r.results, res)
		r.mu.Unlock()
	}

	telemetry.EndPhase(span, nil)
	return out, nil
}

func (r *Runner) runMode(ctx context.Context, mode string) (Result, error) {
	work, err := r.workload(mode)
	if err != nil {
		return Result{}, err
	}

	ctx, span := telemetry.StartPhase(ctx, r.opts.Tracer, "bench."+mode,
		telemetry.AttrMode.String(mode),
		telemetry.AttrThreads.Int(r.opts.Threads),
	)

	r.opts.Logger.Info("bench mode started",
		"mode", mode,
		"threads", r.opts.Threads,
		"objects", r.opts.Objects,
		"rounds", r.opts.Rounds,
	)

	var c counters
	start := time.Now()
	err = r.runMembers(ctx, func(ctx context.Context, th *tlspool.Thread) error {
		ops, failures, err := work(ctx, th)
		c.add(ops, failures)
		return err
	})
	res := c.result(mode, r.opts, time.Since(start))

	telemetry.EndPhase(span, err,
		telemetry.AttrOps.Int64(int64(res.Ops)),
		telemetry.AttrFailures.Int64(int64(res.Failures)),
	)
	if err != nil {
		return res, fmt.Errorf("bench: mode %s: %w", mode, err)
	}

	r.opts.Logger.Info("bench mode finished",
		"mode", mode,
		"ops", res.Ops,
		"failures", res.Failures,
		"wall", res.Wall,
		"ops_per_sec", res.OpsPerSec,
	)
	return res, nil
}

// runMembers runs fn once per thread, on a fresh group or on the
// persistent workers.
func (r *Runner) runMembers(ctx context.Context, fn workers.MemberFunc) error {
	if r.workers == nil {
		g := workers.NewGroup(ctx, 0)
		for i := 0; i < r.opts.Threads; i++ {
			g.Go(fn)
		}
		return g.Wait()
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < r.opts.Threads; i++ {
		g.Go(func() error {
			return r.workers.Process(gctx, func(th *tlspool.Thread) error {
				return fn(gctx, th)
			})
		})
	}
	return g.Wait()
}
