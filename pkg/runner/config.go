package runner

import (
	"context"
	"errors"
	"time"

	"github.com/wehubfusion/Daedalus/pkg/engine"
	"github.com/wehubfusion/Daedalus/pkg/registry"
	"github.com/wehubfusion/Daedalus/pkg/storage"
	"go.uber.org/zap"
)

// Defaults for Config.
const (
	DefaultSubject        = "daedalus.execute"
	DefaultQueue          = "daedalus"
	DefaultWorkers        = 4
	DefaultRequestTimeout = 30 * time.Second
	DefaultExportTimeout  = 10 * time.Second
	DefaultDrainTimeout   = 30 * time.Second
)

// Config configures a Service.
type Config struct {
	// Subject the service listens on
	Subject string

	// Queue group shared by service instances
	Queue string

	// Workers is the maximum number of requests executed concurrently
	Workers int

	// RequestTimeout bounds the execution of a single request
	RequestTimeout time.Duration

	// ExportTimeout bounds exporting and error reporting after a request,
	// which run even when the request itself timed out
	ExportTimeout time.Duration

	// DrainTimeout bounds how long Run waits for the subscription to drain
	DrainTimeout time.Duration

	// Registry supplies process capabilities by node type (required)
	Registry *registry.Registry

	// Engine executes the graphs (nil for a default engine)
	Engine *engine.Engine

	// Exporter uploads execution records (nil to disable export)
	Exporter *storage.Exporter

	// Logger for structured logging (nil for no logging)
	Logger *zap.Logger

	// OnError is called with every failed request (optional)
	OnError func(ctx context.Context, executionID string, err error)
}

// DefaultConfig returns the default service configuration.
func DefaultConfig(reg *registry.Registry) Config {
	return Config{
		Subject:        DefaultSubject,
		Queue:          DefaultQueue,
		Workers:        DefaultWorkers,
		RequestTimeout: DefaultRequestTimeout,
		ExportTimeout:  DefaultExportTimeout,
		DrainTimeout:   DefaultDrainTimeout,
		Registry:       reg,
	}
}

// Validate applies defaults and checks required fields.
func (c *Config) Validate() error {
	if c.Registry == nil {
		return errors.New("registry cannot be nil")
	}
	if c.Subject == "" {
		c.Subject = DefaultSubject
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.ExportTimeout <= 0 {
		c.ExportTimeout = DefaultExportTimeout
	}
	if c.DrainTimeout <= 0 {
		c.DrainTimeout = DefaultDrainTimeout
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.Engine == nil {
		c.Engine = engine.New(engine.DefaultConfig().WithLogger(c.Logger))
	}
	return nil
}

// WithSubject sets the subject.
func (c Config) WithSubject(subject string) Config {
	c.Subject = subject
	return c
}

// WithQueue sets the queue group.
func (c Config) WithQueue(queue string) Config {
	c.Queue = queue
	return c
}

// WithWorkers sets the concurrency limit.
func (c Config) WithWorkers(n int) Config {
	c.Workers = n
	return c
}

// WithRequestTimeout sets the per-request timeout.
func (c Config) WithRequestTimeout(d time.Duration) Config {
	c.RequestTimeout = d
	return c
}

// WithEngine sets the engine.
func (c Config) WithEngine(e *engine.Engine) Config {
	c.Engine = e
	return c
}

// WithExporter enables execution record export.
func (c Config) WithExporter(e *storage.Exporter) Config {
	c.Exporter = e
	return c
}

// WithLogger sets the logger.
func (c Config) WithLogger(logger *zap.Logger) Config {
	c.Logger = logger
	return c
}

// WithErrorHandler sets the failed-request callback.
func (c Config) WithErrorHandler(fn func(ctx context.Context, executionID string, err error)) Config {
	c.OnError = fn
	return c
}
