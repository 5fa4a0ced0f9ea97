// Package config loads gonewton settings from YAML with environment
// overrides.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	newton "github.com/njchilds90/gonewton"
)

// Config holds all gonewton configuration.
type Config struct {
	Solver  SolverConfig  `yaml:"solver"`
	Logging LoggingConfig `yaml:"logging"`
	Server  ServerConfig  `yaml:"server"`
}

// SolverConfig mirrors the iteration parameters.
type SolverConfig struct {
	Tolerance     float64 `yaml:"tolerance"`
	MaxIterations int     `yaml:"max_iterations"`
	Alpha         float64 `yaml:"alpha"`
	Step          float64 `yaml:"step"`
	Derivative    string  `yaml:"derivative"` // numeric, dual
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// ServerConfig configures cmd/mcp-server.
type ServerConfig struct {
	Addr              string `yaml:"addr"`
	ReadHeaderTimeout string `yaml:"read_header_timeout"`
	ReadTimeout       string `yaml:"read_timeout"`
	WriteTimeout      string `yaml:"write_timeout"`
	IdleTimeout       string `yaml:"idle_timeout"`
	MaxBodyBytes      int64  `yaml:"max_body_bytes"`
	BatchConcurrency  int    `yaml:"batch_concurrency"`
	CacheSize         int    `yaml:"cache_size"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Solver: SolverConfig{
			Tolerance:     newton.DefaultTolerance,
			MaxIterations: newton.DefaultMaxIterations,
			Alpha:         newton.DefaultAlpha,
			Step:          1e-6,
			Derivative:    "numeric",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Server: ServerConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: "5s",
			ReadTimeout:       "15s",
			WriteTimeout:      "15s",
			IdleTimeout:       "60s",
			MaxBodyBytes:      1 << 20,
			BatchConcurrency:  4,
			CacheSize:         1024,
		},
	}
}

// Load reads path over the defaults. An empty path or a missing file
// yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		cfg.applyEnvOverrides()
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML, creating parent directories.
func (c *Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
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

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("NEWTON_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("NEWTON_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("NEWTON_ADDR"); v != "" {
		c.Server.Addr = v
	}
}

// Validate checks the values the solver and server cannot run with.
// Alpha is not checked.
func (c *Config) Validate() error {
	if !(c.Solver.Tolerance >= 0) || math.IsInf(c.Solver.Tolerance, 0) {
		return fmt.Errorf("solver.tolerance must be finite and non-negative, got %g", c.Solver.Tolerance)
	}
	if c.Solver.MaxIterations < 1 {
		return fmt.Errorf("solver.max_iterations must be >= 1, got %d", c.Solver.MaxIterations)
	}
	if _, err := newton.ParseDerivativeMode(c.Solver.Derivative); err != nil {
		return fmt.Errorf("solver.derivative: %w", err)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	for name, v := range map[string]string{
		"read_header_timeout": c.Server.ReadHeaderTimeout,
		"read_timeout":        c.Server.ReadTimeout,
		"write_timeout":       c.Server.WriteTimeout,
		"idle_timeout":        c.Server.IdleTimeout,
	} {
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("server.%s: %w", name, err)
		}
	}
	if c.Server.BatchConcurrency < 1 {
		return fmt.Errorf("server.batch_concurrency must be >= 1, got %d", c.Server.BatchConcurrency)
	}
	return nil
}

// Options converts the solver section to iteration options.
func (s SolverConfig) Options() ([]newton.Option, error) {
	mode, err := newton.ParseDerivativeMode(s.Derivative)
	if err != nil {
		return nil, err
	}
	return []newton.Option{
		newton.WithTolerance(s.Tolerance),
		newton.WithMaxIterations(s.MaxIterations),
		newton.WithAlpha(s.Alpha),
		newton.WithStep(s.Step),
		newton.WithDerivative(mode),
	}, nil
}

// Duration parses one of the server timeout strings, falling back to def.
func Duration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
