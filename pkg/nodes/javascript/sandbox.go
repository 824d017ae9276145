package javascript

import (
	"fmt"
	"strings"

	"github.com/dop251/goja"
	"go.uber.org/zap"
)

var dangerousGlobals = []string{
	"require",
	"module",
	"exports",
	"process",
	"global",
	"__dirname",
	"__filename",
	"Buffer",
	"setImmediate",
	"clearImmediate",
}

// newSandbox creates a VM with node-host globals removed and console routed
// to the logger.
func newSandbox(logger *zap.Logger) (*goja.Runtime, error) {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.UncapFieldNameMapper())

	for _, name := range dangerousGlobals {
		if err := vm.Set(name, goja.Undefined()); err != nil {
			return nil, fmt.Errorf("failed to remove %s: %w", name, err)
		}
	}

	console := vm.NewObject()
	logFn := func(level string) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			parts := make([]string, len(call.Arguments))
			for i, arg := range call.Arguments {
				parts[i] = arg.String()
			}
			msg := strings.Join(parts, " ")
			if level == "error" {
				logger.Warn("Script console", zap.String("message", msg))
			} else {
				logger.Debug("Script console", zap.String("message", msg))
			}
			return goja.Undefined()
		}
	}
	for _, level := range []string{"log", "info", "debug", "warn", "error"} {
		if err := console.Set(level, logFn(level)); err != nil {
			return nil, fmt.Errorf("failed to register console.%s: %w", level, err)
		}
	}
	if err := vm.Set("console", console); err != nil {
		return nil, fmt.Errorf("failed to register console: %w", err)
	}

	return vm, nil
}
