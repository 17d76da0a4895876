package core

import (
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Config holds pool strategy configuration
type Config struct {
	// Concurrency caps the number of members queried at once (0 = all)
	Concurrency    int
	Logger         *slog.Logger
	TracerProvider trace.TracerProvider
}

// Option is a function that modifies strategy configuration
type Option func(*Config)

// defaultConfig returns default configuration
func defaultConfig() *Config {
	return &Config{
		Concurrency:    0,
		Logger:         slog.Default(),
		TracerProvider: otel.GetTracerProvider(),
	}
}

// WithConcurrency limits how many members are queried in parallel
func WithConcurrency(n int) Option {
	return func(c *Config) {
		c.Concurrency = n
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// WithTracerProvider sets the provider used for aggregation spans
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Config) {
		if tp != nil {
			c.TracerProvider = tp
		}
	}
}
