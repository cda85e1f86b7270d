package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DongTao/tls-mempool/internal/chunk"
)

func TestLoad_DefaultValues(t *testing.T) {
	// Clear environment to ensure defaults are used
	origVars := clearConfigEnvVars()
	defer restoreEnvVars(origVars)

	// Create a temporary directory without config file
	tmpDir := t.TempDir()
	origDir, _ := os.Getwd()
	os.Chdir(tmpDir)
	defer os.Chdir(origDir)

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	// Bench defaults
	assert.Equal(t, ModeAll, cfg.Bench.Mode)
	assert.Equal(t, 4, cfg.Bench.Threads)
	assert.Equal(t, 10000, cfg.Bench.Objects)
	assert.Equal(t, 10, cfg.Bench.Rounds)
	assert.Equal(t, 16, cfg.Bench.ArraySize)
	assert.False(t, cfg.Bench.Persistent)

	// Pool defaults
	assert.Equal(t, chunk.DefaultNextSize, cfg.Pool.NextSize)
	assert.Equal(t, 0, cfg.Pool.MaxSize)
	assert.Equal(t, 0, cfg.Pool.MaxChunks)

	// Log defaults
	assert.False(t, cfg.Log.Debug)

	// Metrics defaults
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, "127.0.0.1:9464", cfg.Metrics.Addr())
	assert.Equal(t, 10*time.Second, cfg.Metrics.ReadTimeout)
	assert.Equal(t, 10*time.Second, cfg.Metrics.WriteTimeout)
	assert.Equal(t, time.Duration(0), cfg.Metrics.ReportInterval)

	// Telemetry defaults
	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "localhost:4318", cfg.Telemetry.Endpoint)
	assert.Equal(t, 1.0, cfg.Telemetry.SampleRate)
	assert.True(t, cfg.Telemetry.Insecure)

	assert.NoError(t, cfg.Validate())
}

func TestLoad_FromConfigFile(t *testing.T) {
	origVars := clearConfigEnvVars()
	defer restoreEnvVars(origVars)

	tmpDir := t.TempDir()
	configContent := `
bench:
  mode: array
  threads: 16
  array_size: 64

pool:
  next_size: 128
  max_size: 4096

metrics:
  enabled: true
  port: 9000
  report_interval: 5s
`
	configPath := filepath.Join(tmpDir, "config.yaml")
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	origDir, _ := os.Getwd()
	os.Chdir(tmpDir)
	defer os.Chdir(origDir)

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, ModeArray, cfg.Bench.Mode)
	assert.Equal(t, 16, cfg.Bench.Threads)
	assert.Equal(t, 64, cfg.Bench.ArraySize)
	assert.Equal(t, 10000, cfg.Bench.Objects, "unset keys keep defaults")
	assert.Equal(t, chunk.Options{NextSize: 128, MaxSize: 4096}, cfg.Pool.Options())
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 9000, cfg.Metrics.Port)
	assert.Equal(t, 5*time.Second, cfg.Metrics.ReportInterval)
}

func TestLoadFile(t *testing.T) {
	origVars := clearConfigEnvVars()
	defer restoreEnvVars(origVars)

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "bench.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("bench:\n  rounds: 3\n"), 0644))

	cfg, err := LoadFile(configPath)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Bench.Rounds)

	t.Run("missing file is an error", func(t *testing.T) {
		cfg, err := LoadFile(filepath.Join(tmpDir, "missing.yaml"))
		assert.Error(t, err)
		assert.Nil(t, cfg)
	})
}

func TestLoad_FromEnvVars(t *testing.T) {
	origVars := clearConfigEnvVars()
	defer restoreEnvVars(origVars)

	tmpDir := t.TempDir()
	origDir, _ := os.Getwd()
	os.Chdir(tmpDir)
	defer os.Chdir(origDir)

	os.Setenv("TLSPOOL_BENCH_THREADS", "32")
	os.Setenv("TLSPOOL_BENCH_MODE", "heap")
	os.Setenv("TLSPOOL_POOL_MAX_CHUNKS", "1024")
	os.Setenv("TLSPOOL_TELEMETRY_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 32, cfg.Bench.Threads)
	assert.Equal(t, ModeHeap, cfg.Bench.Mode)
	assert.Equal(t, 1024, cfg.Pool.MaxChunks)
	assert.True(t, cfg.Telemetry.Enabled)
}

func TestLoad_EnvOverridesConfig(t *testing.T) {
	origVars := clearConfigEnvVars()
	defer restoreEnvVars(origVars)

	tmpDir := t.TempDir()
	configContent := `
bench:
  threads: 2

metrics:
  enabled: false
`
	configPath := filepath.Join(tmpDir, "config.yaml")
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	origDir, _ := os.Getwd()
	os.Chdir(tmpDir)
	defer os.Chdir(origDir)

	// Environment should override config file
	os.Setenv("TLSPOOL_BENCH_THREADS", "8")
	os.Setenv("TLSPOOL_METRICS_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 8, cfg.Bench.Threads)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoad_InvalidConfigFile(t *testing.T) {
	origVars := clearConfigEnvVars()
	defer restoreEnvVars(origVars)

	tmpDir := t.TempDir()
	configContent := `
bench:
  threads: "not a number"  # Invalid: should be int
`
	configPath := filepath.Join(tmpDir, "config.yaml")
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	origDir, _ := os.Getwd()
	os.Chdir(tmpDir)
	defer os.Chdir(origDir)

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Bench:     BenchConfig{Mode: ModePool, Threads: 1, Objects: 1, Rounds: 1, ArraySize: 1},
			Telemetry: TelemetryConfig{SampleRate: 0.5},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"unknown mode", func(c *Config) { c.Bench.Mode = "stack" }, "bench.mode"},
		{"zero threads", func(c *Config) { c.Bench.Threads = 0 }, "bench.threads"},
		{"negative objects", func(c *Config) { c.Bench.Objects = -1 }, "bench.objects"},
		{"zero rounds", func(c *Config) { c.Bench.Rounds = 0 }, "bench.rounds"},
		{"zero array size", func(c *Config) { c.Bench.ArraySize = 0 }, "bench.array_size"},
		{"negative pool size", func(c *Config) { c.Pool.MaxSize = -4 }, "pool"},
		{"bad port", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Port = 70000 }, "metrics.port"},
		{"negative interval", func(c *Config) { c.Metrics.ReportInterval = -time.Second }, "metrics.report_interval"},
		{"sample rate", func(c *Config) { c.Telemetry.SampleRate = 1.5 }, "telemetry.sample_rate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("reports every problem", func(t *testing.T) {
		cfg := valid()
		cfg.Bench.Threads = 0
		cfg.Bench.Rounds = 0
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bench.threads")
		assert.Contains(t, err.Error(), "bench.rounds")
	})
}

func TestBenchConfig_ModeList(t *testing.T) {
	assert.Equal(t, Modes, BenchConfig{Mode: ModeAll}.ModeList())
	assert.Equal(t, []string{ModeContainer}, BenchConfig{Mode: ModeContainer}.ModeList())
}

// Helper functions

func clearConfigEnvVars() map[string]string {
	envVars := []string{
		"TLSPOOL_BENCH_MODE",
		"TLSPOOL_BENCH_THREADS",
		"TLSPOOL_BENCH_OBJECTS",
		"TLSPOOL_BENCH_ROUNDS",
		"TLSPOOL_POOL_MAX_CHUNKS",
		"TLSPOOL_METRICS_ENABLED",
		"TLSPOOL_TELEMETRY_ENABLED",
	}

	orig := make(map[string]string)
	for _, v := range envVars {
		orig[v] = os.Getenv(v)
		os.Unsetenv(v)
	}
	return orig
}

func restoreEnvVars(vars map[string]string) {
	for k, v := range vars {
		if v == "" {
			os.Unsetenv(k)
		} else {
			os.Setenv(k, v)
		}
	}
}
