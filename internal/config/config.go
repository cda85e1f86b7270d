package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/DongTao/tls-mempool/internal/chunk"
)

// Benchmark modes.
const (
	ModePool      = "pool"
	ModeHeap      = "heap"
	ModeArray     = "array"
	ModeContainer = "container"
	ModeShared    = "shared"
	ModeAll       = "all"
)

// Modes lists the runnable modes in execution order.
var Modes = []string{ModePool, ModeHeap, ModeArray, ModeContainer, ModeShared}

// Config holds all configuration for the benchmark driver.
type Config struct {
	Bench     BenchConfig     `mapstructure:"bench"`
	Pool      PoolConfig      `mapstructure:"pool"`
	Log       LogConfig       `mapstructure:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// BenchConfig holds the workload shape.
type BenchConfig struct {
	Mode      string `mapstructure:"mode"`       // pool, heap, array, container, shared or all
	Threads   int    `mapstructure:"threads"`    // concurrent thread-group members
	Objects   int    `mapstructure:"objects"`    // objects per thread per round
	Rounds    int    `mapstructure:"rounds"`     // create/destroy rounds per thread
	ArraySize int    `mapstructure:"array_size"` // elements per CreateN in array mode

	// Persistent runs every mode on one fixed worker pool, so threads
	// and their pools outlive a single mode.
	Persistent bool `mapstructure:"persistent"`
}

// ModeList expands Mode into the modes to run.
func (c BenchConfig) ModeList() []string {
	if c.Mode == ModeAll || c.Mode == "" {
		return Modes
	}
	return []string{c.Mode}
}

// PoolConfig holds backing pool growth options.
type PoolConfig struct {
	NextSize  int `mapstructure:"next_size"`  // chunks in the first block
	MaxSize   int `mapstructure:"max_size"`   // block size cap, 0 is unbounded
	MaxChunks int `mapstructure:"max_chunks"` // total chunk cap per pool, 0 is unbounded
}

// Options converts the section to free-list options.
func (c PoolConfig) Options() chunk.Options {
	return chunk.Options{
		NextSize:  c.NextSize,
		MaxSize:   c.MaxSize,
		MaxChunks: c.MaxChunks,
	}
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Debug bool `mapstructure:"debug"`
}

// MetricsConfig holds the stats server configuration.
type MetricsConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	ReportInterval time.Duration `mapstructure:"report_interval"` // periodic stats log, 0 disables
}

// Addr returns the listen address.
func (c MetricsConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// TelemetryConfig holds OpenTelemetry configuration.
type TelemetryConfig struct {
	Enabled    bool    `mapstructure:"enabled"`
	Endpoint   string  `mapstructure:"endpoint"`    // OTLP HTTP endpoint
	SampleRate float64 `mapstructure:"sample_rate"` // 0.0 to 1.0
	Insecure   bool    `mapstructure:"insecure"`
}

// Validate checks the configuration for values the driver cannot run with.
func (c *Config) Validate() error {
	var errs []error

	switch c.Bench.Mode {
	case ModePool, ModeHeap, ModeArray, ModeContainer, ModeShared, ModeAll:
	default:
		errs = append(errs, fmt.Errorf("bench.mode: unknown mode %q", c.Bench.Mode))
	}
	if c.Bench.Threads < 1 {
		errs = append(errs, fmt.Errorf("bench.threads: must be positive, got %d", c.Bench.Threads))
	}
	if c.Bench.Objects < 1 {
		errs = append(errs, fmt.Errorf("bench.objects: must be positive, got %d", c.Bench.Objects))
	}
	if c.Bench.Rounds < 1 {
		errs = append(errs, fmt.Errorf("bench.rounds: must be positive, got %d", c.Bench.Rounds))
	}
	if c.Bench.ArraySize < 1 {
		errs = append(errs, fmt.Errorf("bench.array_size: must be positive, got %d", c.Bench.ArraySize))
	}

	if c.Pool.NextSize < 0 || c.Pool.MaxSize < 0 || c.Pool.MaxChunks < 0 {
		errs = append(errs, errors.New("pool: sizes must not be negative"))
	}

	if c.Metrics.Enabled && (c.Metrics.Port < 0 || c.Metrics.Port > 65535) {
		errs = append(errs, fmt.Errorf("metrics.port: out of range: %d", c.Metrics.Port))
	}
	if c.Metrics.ReportInterval < 0 {
		errs = append(errs, errors.New("metrics.report_interval: must not be negative"))
	}

	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		errs = append(errs, fmt.Errorf("telemetry.sample_rate: must be within [0, 1], got %v", c.Telemetry.SampleRate))
	}

	return errors.Join(errs...)
}

// Load reads configuration from the default search paths and
// environment variables.
func Load() (*Config, error) {
	return load("")
}

// LoadFile reads configuration from path and environment variables.
func LoadFile(path string) (*Config, error) {
	return load(path)
}

func load(path string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Configuration file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/tlspool/")
		v.AddConfigPath("$HOME/.tlspool/")
	}

	// Environment variables
	v.SetEnvPrefix("TLSPOOL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (optional unless given explicitly)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Bench defaults
	v.SetDefault("bench.mode", ModeAll)
	v.SetDefault("bench.threads", 4)
	v.SetDefault("bench.objects", 10000)
	v.SetDefault("bench.rounds", 10)
	v.SetDefault("bench.array_size", 16)
	v.SetDefault("bench.persistent", false)

	// Pool defaults
	v.SetDefault("pool.next_size", chunk.DefaultNextSize)
	v.SetDefault("pool.max_size", 0)
	v.SetDefault("pool.max_chunks", 0)

	// Log defaults
	v.SetDefault("log.debug", false)

	// Metrics defaults
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.host", "127.0.0.1")
	v.SetDefault("metrics.port", 9464)
	v.SetDefault("metrics.read_timeout", 10*time.Second)
	v.SetDefault("metrics.write_timeout", 10*time.Second)
	v.SetDefault("metrics.report_interval", 0)

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.endpoint", "localhost:4318")
	v.SetDefault("telemetry.sample_rate", 1.0)
	v.SetDefault("telemetry.insecure", true)
}
