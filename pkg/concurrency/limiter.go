// Package concurrency bounds how many graph executions run at once.
package concurrency

import (
	"context"
	"sync/atomic"
	"time"
)

// Stats summarises limiter usage.
type Stats struct {
	Acquired       int64
	PeakConcurrent int64
	AverageWait    time.Duration
}

// Limiter is a semaphore that records how long callers waited for a slot.
type Limiter struct {
	sem      chan struct{}
	active   atomic.Int64
	acquired atomic.Int64
	peak     atomic.Int64
	waitNs   atomic.Int64
}

// NewLimiter creates a limiter admitting maxConcurrent holders (at least one).
func NewLimiter(maxConcurrent int) *Limiter {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Limiter{sem: make(chan struct{}, maxConcurrent)}
}

// Acquire blocks until a slot is free or ctx ends.
func (l *Limiter) Acquire(ctx context.Context) error {
	start := time.Now()
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	l.waitNs.Add(time.Since(start).Nanoseconds())
	l.acquired.Add(1)
	current := l.active.Add(1)
	for {
		peak := l.peak.Load()
		if current <= peak || l.peak.CompareAndSwap(peak, current) {
			break
		}
	}
	return nil
}

// Release frees a slot taken by Acquire.
func (l *Limiter) Release() {
	select {
	case <-l.sem:
		l.active.Add(-1)
	default:
		// release without acquire
	}
}

// Go runs fn on a new goroutine once a slot is free. The slot is released
// when fn returns; done, if non-nil, is called after that.
func (l *Limiter) Go(ctx context.Context, fn func(), done func()) error {
	if err := l.Acquire(ctx); err != nil {
		return err
	}
	go func() {
		defer func() {
			l.Release()
			if done != nil {
				done()
			}
		}()
		fn()
	}()
	return nil
}

// Capacity returns the number of slots.
func (l *Limiter) Capacity() int {
	return cap(l.sem)
}

// Active returns the number of slots currently held.
func (l *Limiter) Active() int64 {
	return l.active.Load()
}

// Stats returns a snapshot of the limiter counters.
func (l *Limiter) Stats() Stats {
	s := Stats{
		Acquired:       l.acquired.Load(),
		PeakConcurrent: l.peak.Load(),
	}
	if s.Acquired > 0 {
		s.AverageWait = time.Duration(l.waitNs.Load() / s.Acquired)
	}
	return s
}
