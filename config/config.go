// Package config loads loader settings from a YAML file with environment
// overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/klauspost/cpuid/v2"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/neurlang/dataloader/engine"
	"github.com/neurlang/dataloader/loader"
	"github.com/neurlang/dataloader/rng"
)

// Config holds all dataloader configuration.
type Config struct {
	Loader  LoaderConfig  `yaml:"loader" envPrefix:"DATALOADER_"`
	Logging LoggingConfig `yaml:"logging" envPrefix:"DATALOADER_LOG_"`
}

// LoaderConfig configures batching, workers and seeding.
type LoaderConfig struct {
	BatchSize      int    `yaml:"batch_size" env:"BATCH_SIZE"`
	Shuffle        bool   `yaml:"shuffle" env:"SHUFFLE"`
	DropLast       bool   `yaml:"drop_last" env:"DROP_LAST"`
	NumWorkers     int    `yaml:"num_workers" env:"NUM_WORKERS"`
	PrefetchFactor int    `yaml:"prefetch_factor" env:"PREFETCH_FACTOR"`
	Timeout        string `yaml:"timeout" env:"TIMEOUT"` // e.g. "30s", empty waits forever
	Seed           uint64 `yaml:"seed" env:"SEED"`
	Deterministic  bool   `yaml:"deterministic" env:"DETERMINISTIC"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level    string `yaml:"level" env:"LEVEL"`       // debug, info, warn, error
	Encoding string `yaml:"encoding" env:"ENCODING"` // json, console
}

// DefaultWorkers is the number of physical cores, or logical CPUs when the
// core count cannot be detected.
func DefaultWorkers() int {
	if n := cpuid.CPU.PhysicalCores; n > 0 {
		return n
	}
	return runtime.NumCPU()
}

func DefaultConfig() *Config {
	return &Config{
		Loader: LoaderConfig{
			BatchSize:      1,
			NumWorkers:     DefaultWorkers(),
			PrefetchFactor: loader.DefaultPrefetchFactor,
			Seed:           rng.DefaultSeed,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Encoding: "json",
		},
	}
}

// Load reads path over the defaults and applies environment overrides. A
// missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// ApplyEnv overrides fields from DATALOADER_* variables.
func (c *Config) ApplyEnv() error {
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func (c *Config) Validate() error {
	l := c.Loader
	if l.BatchSize < 0 {
		return fmt.Errorf("loader.batch_size must be non-negative, got %d", l.BatchSize)
	}
	if l.NumWorkers < 0 {
		return fmt.Errorf("loader.num_workers must be non-negative, got %d", l.NumWorkers)
	}
	if l.PrefetchFactor < 0 {
		return fmt.Errorf("loader.prefetch_factor must be non-negative, got %d", l.PrefetchFactor)
	}
	if _, err := l.TimeoutDuration(); err != nil {
		return err
	}
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	switch c.Logging.Encoding {
	case "", "json", "console":
	default:
		return fmt.Errorf("logging.encoding must be json or console, got %q", c.Logging.Encoding)
	}
	return nil
}

func (l LoaderConfig) TimeoutDuration() (time.Duration, error) {
	if l.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(l.Timeout)
	if err != nil {
		return 0, fmt.Errorf("loader.timeout: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("loader.timeout must be non-negative, got %v", d)
	}
	return d, nil
}

// Runtime builds the engine context for this configuration.
func (l LoaderConfig) Runtime(opts ...engine.Option) *engine.Context {
	opts = append([]engine.Option{
		engine.WithDeterministic(l.Deterministic),
		engine.WithGenerator(rng.New(l.Seed)),
	}, opts...)
	return engine.New(opts...)
}

// Options converts the configuration to loader options running on rt.
func (l LoaderConfig) Options(rt *engine.Context) (loader.Options, error) {
	timeout, err := l.TimeoutDuration()
	if err != nil {
		return loader.Options{}, err
	}
	opts := loader.Options{
		BatchSize:  l.BatchSize,
		Shuffle:    l.Shuffle,
		DropLast:   l.DropLast,
		NumWorkers: l.NumWorkers,
		Timeout:    timeout,
		Generator:  rt.Generator(),
		Runtime:    rt,
	}
	if l.NumWorkers > 0 {
		opts.PrefetchFactor = l.PrefetchFactor
	}
	return opts, nil
}
