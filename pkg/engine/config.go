package engine

import (
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Config configures an Engine.
type Config struct {
	// Logger for structured logging (nil for no logging)
	Logger *zap.Logger

	// TracerProvider supplies the tracer used for node spans.
	// When nil the global otel provider is used.
	TracerProvider trace.TracerProvider

	// EnableMetrics enables metrics collection
	EnableMetrics bool

	// Metrics overrides the collector used when EnableMetrics is set
	Metrics MetricsCollector
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		Logger:        nil, // No logging by default
		EnableMetrics: true,
	}
}

// Validate applies defaults to unset fields.
func (c *Config) Validate() {
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if !c.EnableMetrics {
		c.Metrics = &NoOpMetricsCollector{}
	} else if c.Metrics == nil {
		c.Metrics = NewMetricsCollector()
	}
}

// WithLogger sets the logger.
func (c Config) WithLogger(logger *zap.Logger) Config {
	c.Logger = logger
	return c
}

// WithTracerProvider sets the tracer provider.
func (c Config) WithTracerProvider(tp trace.TracerProvider) Config {
	c.TracerProvider = tp
	return c
}

// WithMetrics sets whether to collect metrics.
func (c Config) WithMetrics(enable bool) Config {
	c.EnableMetrics = enable
	return c
}

// WithMetricsCollector sets a custom metrics collector and enables metrics.
func (c Config) WithMetricsCollector(m MetricsCollector) Config {
	c.Metrics = m
	c.EnableMetrics = true
	return c
}
