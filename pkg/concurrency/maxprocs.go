package concurrency

import (
	"runtime"

	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"
)

// SetMaxProcs matches GOMAXPROCS to the container CPU quota and returns a
// function restoring the previous value.
func SetMaxProcs(logger *zap.Logger) func() {
	if logger == nil {
		logger = zap.NewNop()
	}
	undo, err := maxprocs.Set(maxprocs.Logger(logger.Sugar().Debugf))
	if err != nil {
		logger.Warn("Failed to set GOMAXPROCS", zap.Error(err))
		return func() {}
	}
	logger.Info("Concurrency initialized", zap.Int("gomaxprocs", runtime.GOMAXPROCS(0)))
	return undo
}

// DefaultWorkers returns a worker count for the available CPUs, never below four.
func DefaultWorkers() int {
	return max(runtime.GOMAXPROCS(0), 4)
}
