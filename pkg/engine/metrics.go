package engine

import (
	"sync/atomic"
	"time"
)

// Metrics holds execution metrics for observability.
type Metrics struct {
	// TotalProcessed is the count of node executions that succeeded
	TotalProcessed int64
	// TotalErrors is the count of node executions that failed
	TotalErrors int64
	// TotalCacheHits is the count of requests answered from a cache entry
	TotalCacheHits int64
	// ProcessingTimeNs is the total time spent inside Process, in nanoseconds
	ProcessingTimeNs int64
}

// MetricsCollector collects execution metrics.
type MetricsCollector interface {
	// RecordProcessed records a successful node execution
	RecordProcessed(duration time.Duration)
	// RecordError records a failed node execution
	RecordError(duration time.Duration)
	// RecordCacheHit records a request served from the cache
	RecordCacheHit()
	// GetMetrics returns the current metrics
	GetMetrics() Metrics
	// Reset resets all metrics
	Reset()
}

// DefaultMetricsCollector is a thread-safe implementation of MetricsCollector.
type DefaultMetricsCollector struct {
	processed        atomic.Int64
	errors           atomic.Int64
	cacheHits        atomic.Int64
	totalProcessTime atomic.Int64
}

// NewMetricsCollector creates a new metrics collector.
func NewMetricsCollector() *DefaultMetricsCollector {
	return &DefaultMetricsCollector{}
}

func (m *DefaultMetricsCollector) RecordProcessed(duration time.Duration) {
	m.processed.Add(1)
	m.totalProcessTime.Add(int64(duration))
}

func (m *DefaultMetricsCollector) RecordError(duration time.Duration) {
	m.errors.Add(1)
	m.totalProcessTime.Add(int64(duration))
}

func (m *DefaultMetricsCollector) RecordCacheHit() {
	m.cacheHits.Add(1)
}

func (m *DefaultMetricsCollector) GetMetrics() Metrics {
	return Metrics{
		TotalProcessed:   m.processed.Load(),
		TotalErrors:      m.errors.Load(),
		TotalCacheHits:   m.cacheHits.Load(),
		ProcessingTimeNs: m.totalProcessTime.Load(),
	}
}

func (m *DefaultMetricsCollector) Reset() {
	m.processed.Store(0)
	m.errors.Store(0)
	m.cacheHits.Store(0)
	m.totalProcessTime.Store(0)
}

// AverageProcessingTime returns the average time spent per execution.
func (m *DefaultMetricsCollector) AverageProcessingTime() time.Duration {
	total := m.processed.Load() + m.errors.Load()
	if total == 0 {
		return 0
	}
	return time.Duration(m.totalProcessTime.Load() / total)
}

// ErrorRate returns the error rate as a percentage.
func (m *DefaultMetricsCollector) ErrorRate() float64 {
	processed := m.processed.Load()
	errors := m.errors.Load()
	total := processed + errors
	if total == 0 {
		return 0
	}
	return float64(errors) / float64(total) * 100
}

var _ MetricsCollector = (*DefaultMetricsCollector)(nil)

// NoOpMetricsCollector is a metrics collector that does nothing.
type NoOpMetricsCollector struct{}

func (m *NoOpMetricsCollector) RecordProcessed(time.Duration) {}
func (m *NoOpMetricsCollector) RecordError(time.Duration)     {}
func (m *NoOpMetricsCollector) RecordCacheHit()               {}
func (m *NoOpMetricsCollector) GetMetrics() Metrics           { return Metrics{} }
func (m *NoOpMetricsCollector) Reset()                        {}

var _ MetricsCollector = (*NoOpMetricsCollector)(nil)
