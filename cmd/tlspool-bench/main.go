package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	kingpin "github.com/alecthomas/kingpin/v2"

	"github.com/DongTao/tls-mempool/internal/api"
	"github.com/DongTao/tls-mempool/internal/background"
	"github.com/DongTao/tls-mempool/internal/bench"
	"github.com/DongTao/tls-mempool/internal/config"
	"github.com/DongTao/tls-mempool/internal/events"
	"github.com/DongTao/tls-mempool/internal/metrics"
	"github.com/DongTao/tls-mempool/internal/pool"
	"github.com/DongTao/tls-mempool/internal/telemetry"
)

var version = "dev"

type flags struct {
	config     *string
	mode       *string
	threads    *int
	objects    *int
	rounds     *int
	arraySize  *int
	persistent *bool
	debug      *bool
	serve      *bool
}

func main() {
	app := kingpin.New("tlspool-bench", "Per-thread object pool benchmark driver.")
	app.Version(version)
	app.HelpFlag.Short('h')

	f := flags{
		config:     app.Flag("config", "Path to a config file.").Short('c').String(),
		mode:       app.Flag("mode", "Mode to run: pool, heap, array, container, shared or all.").Short('m').String(),
		threads:    app.Flag("threads", "Concurrent threads.").Short('t').Int(),
		objects:    app.Flag("objects", "Objects per thread per round.").Short('n').Int(),
		rounds:     app.Flag("rounds", "Rounds per thread.").Short('r').Int(),
		arraySize:  app.Flag("array-size", "Elements per array create.").Int(),
		persistent: app.Flag("persistent", "Keep worker threads across modes.").Bool(),
		debug:      app.Flag("debug", "Enable debug logging.").Bool(),
		serve:      app.Flag("metrics", "Serve stats and metrics while running.").Bool(),
	}
	kingpin.MustParse(app.Parse(os.Args[1:]))

	if err := run(f); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func loadConfig(f flags) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if *f.config != "" {
		cfg, err = config.LoadFile(*f.config)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if *f.mode != "" {
		cfg.Bench.Mode = *f.mode
	}
	if *f.threads != 0 {
		cfg.Bench.Threads = *f.threads
	}
	if *f.objects != 0 {
		cfg.Bench.Objects = *f.objects
	}
	if *f.rounds != 0 {
		cfg.Bench.Rounds = *f.rounds
	}
	if *f.arraySize != 0 {
		cfg.Bench.ArraySize = *f.arraySize
	}
	if *f.persistent {
		cfg.Bench.Persistent = true
	}
	if *f.debug {
		cfg.Log.Debug = true
	}
	if *f.serve {
		cfg.Metrics.Enabled = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func run(f flags) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := loadConfig(f)
	if err != nil {
		return err
	}

	if cfg.Log.Debug {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		slog.SetDefault(logger)
	}

	slog.Info("starting tlspool bench",
		"version", version,
		"mode", cfg.Bench.Mode,
		"threads", cfg.Bench.Threads,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	telemetryProvider, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:    cfg.Telemetry.Enabled,
		Endpoint:   cfg.Telemetry.Endpoint,
		SampleRate: cfg.Telemetry.SampleRate,
		Insecure:   cfg.Telemetry.Insecure,
	}, version)
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	if telemetryProvider != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if shutdownErr := telemetryProvider.Shutdown(shutdownCtx); shutdownErr != nil {
				slog.Error("error shutting down telemetry", "error", shutdownErr)
			}
		}()
	}

	poolMetrics := metrics.NewPoolMetrics()
	sharedMetrics := pool.NewMetrics()
	broker := events.NewBroker()
	defer broker.Close()

	sink := events.NewLogSink(broker, "*", logger)
	sink.Start()
	defer sink.Stop()

	opts, err := bench.OptionsFromConfig(cfg)
	if err != nil {
		return err
	}
	opts.Metrics = poolMetrics
	opts.Shared = sharedMetrics
	opts.Events = broker
	opts.Logger = logger

	runner, err := bench.NewRunner(opts)
	if err != nil {
		return err
	}
	defer runner.Close()

	if cfg.Metrics.ReportInterval > 0 {
		taskRunner := background.NewRunner(
			background.StatsReport(cfg.Metrics.ReportInterval, poolMetrics, broker, logger),
		)
		taskRunner.Start(ctx)
		defer taskRunner.Stop()
	}

	if cfg.Metrics.Enabled {
		server := api.NewServer(cfg.Metrics, api.Deps{
			Metrics: poolMetrics,
			Events:  broker,
			Results: func() any { return runner.Results() },
			Running: runner.Running,
			Logger:  logger,
		})
		go func() {
			if err := server.Start(); err != nil {
				slog.Error("server error", "error", err)
				stop()
			}
		}()
		defer func() {
			if err := server.Shutdown(); err != nil {
				slog.Error("error during shutdown", "error", err)
			}
		}()
	}

	results, err := runner.Run(ctx)
	for _, res := range results {
		fmt.Println(res)
	}
	if err != nil {
		return err
	}

	stats := poolMetrics.Stats()
	slog.Info("bench finished",
		"creates", stats.Creates,
		"destroys", stats.Destroys,
		"live_objects", stats.Live(),
		"failure_rate", stats.FailureRate(),
		"diagnostics", sink.Warnings(),
		"shared_hit_rate", sharedMetrics.Stats().HitRate(),
	)

	var failures uint64
	for _, res := range results {
		failures += res.Failures
	}
	if failures > 0 {
		return fmt.Errorf("%d operations failed", failures)
	}
	return nil
}
