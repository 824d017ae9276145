// Package reporting forwards failed executions to Sentry.
package reporting

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/wehubfusion/Daedalus/pkg/engine"
	"github.com/wehubfusion/Daedalus/pkg/storage"
	"go.uber.org/zap"
)

// Config holds Sentry client options.
type Config struct {
	DSN         string
	Environment string
	Release     string

	// BeforeSend may modify or drop (by returning nil) an event before it is sent
	BeforeSend func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event
}

// Reporter sends errors to Sentry. A Reporter without a DSN only logs.
type Reporter struct {
	hub    *sentry.Hub
	logger *zap.Logger
}

// New creates a reporter. An empty DSN yields a disabled reporter.
func New(cfg Config, logger *zap.Logger) (*Reporter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Reporter{logger: logger}
	if cfg.DSN == "" {
		logger.Debug("Error reporting disabled")
		return r, nil
	}

	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
		Release:     cfg.Release,
		BeforeSend:  cfg.BeforeSend,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create sentry client: %w", err)
	}
	r.hub = sentry.NewHub(client, sentry.NewScope())
	logger.Info("Error reporting enabled", zap.String("environment", cfg.Environment))
	return r, nil
}

// Enabled reports whether events are sent anywhere.
func (r *Reporter) Enabled() bool {
	return r != nil && r.hub != nil
}

// Capture reports a failed execution. Cancellations are not reported.
func (r *Reporter) Capture(_ context.Context, executionID string, err error) {
	if !r.Enabled() || err == nil {
		return
	}
	if errors.Is(err, context.Canceled) {
		return
	}

	hub := r.hub.Clone()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("execution_id", executionID)
		scope.SetTag("error_code", storage.ErrorCode(err))
		var perr *engine.ProcessingError
		if errors.As(err, &perr) {
			scope.SetTag("node_type", perr.NodeType)
			scope.SetTag("node_id", strconv.Itoa(perr.NodeID))
			scope.SetTag("phase", perr.Phase)
		}
	})
	if id := hub.CaptureException(err); id != nil {
		r.logger.Debug("Reported error",
			zap.String("execution_id", executionID),
			zap.String("event_id", string(*id)))
	}
}

// Flush waits up to timeout for buffered events to be delivered.
func (r *Reporter) Flush(timeout time.Duration) bool {
	if !r.Enabled() {
		return true
	}
	return r.hub.Flush(timeout)
}
