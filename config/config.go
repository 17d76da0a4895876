package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/BranchIntl/tubecheck/errors"
	"gopkg.in/yaml.v3"
)

// Environment variables that override the file configuration
const (
	EnvStrategy = "TUBECHECK_STRATEGY"
	EnvMembers  = "TUBECHECK_MEMBERS"
	EnvLogLevel = "TUBECHECK_LOG_LEVEL"
)

// Config is the main configuration structure
type Config struct {
	// Strategy is the registered strategy kind, e.g. "beanstalkd" or ":redis"
	Strategy string `json:"strategy" yaml:"strategy"`
	// Members are the addresses of the pool, in pool order
	Members     []string      `json:"members" yaml:"members"`
	DialTimeout time.Duration `json:"dial_timeout" yaml:"dial_timeout"`
	// Retries is how many times a failed member dial is retried
	Retries     int    `json:"retries" yaml:"retries"`
	Concurrency int    `json:"concurrency" yaml:"concurrency"`
	LogLevel    string `json:"log_level" yaml:"log_level"`
	LogFormat   string `json:"log_format" yaml:"log_format"`

	// Namespace is the key prefix of the redis strategy
	Namespace string `json:"namespace" yaml:"namespace"`
	// Queues are the queues the rabbitmq strategy inspects
	Queues []string `json:"queues" yaml:"queues"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Strategy:    "beanstalkd",
		Members:     []string{"localhost:11300"},
		DialTimeout: 10 * time.Second,
		Retries:     3,
		Concurrency: 0,
		LogLevel:    "info",
		LogFormat:   "text",
		Namespace:   "tubecheck:",
		Queues:      []string{},
	}
}

// Load reads a YAML file over the defaults and applies environment
// overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}

	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields with the TUBECHECK_* environment variables
func (c *Config) ApplyEnv() {
	c.Strategy = getEnvOrDefault(EnvStrategy, c.Strategy)
	c.LogLevel = getEnvOrDefault(EnvLogLevel, c.LogLevel)

	if members := os.Getenv(EnvMembers); members != "" {
		c.Members = splitList(members)
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Strategy) == "" {
		return fmt.Errorf("%w: strategy is required", errors.ErrInvalidConfig)
	}

	if len(c.Members) == 0 {
		return fmt.Errorf("%w: at least one member must be configured", errors.ErrInvalidConfig)
	}

	for _, m := range c.Members {
		if strings.TrimSpace(m) == "" {
			return fmt.Errorf("%w: member address cannot be empty", errors.ErrInvalidConfig)
		}
	}

	if c.Retries < 0 {
		return fmt.Errorf("%w: retries must be >= 0, got %d", errors.ErrInvalidConfig, c.Retries)
	}

	if c.Concurrency < 0 {
		return fmt.Errorf("%w: concurrency must be >= 0 (0 = all members), got %d", errors.ErrInvalidConfig, c.Concurrency)
	}

	if _, err := c.Level(); err != nil {
		return err
	}

	switch c.LogFormat {
	case "", "text", "json":
	default:
		return fmt.Errorf("%w: unknown log format %q", errors.ErrInvalidConfig, c.LogFormat)
	}

	return nil
}

// Level returns the slog level named by LogLevel
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return level, fmt.Errorf("%w: log level: %v", errors.ErrInvalidConfig, err)
	}
	return level, nil
}

// getEnvOrDefault returns environment variable value or default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
