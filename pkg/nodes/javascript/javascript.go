// Package javascript provides the script node, which runs user JavaScript in
// a sandboxed goja VM.
package javascript

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dop251/goja"
	"github.com/wehubfusion/Daedalus/pkg/graph"
	"github.com/wehubfusion/Daedalus/pkg/nodes"
	"go.uber.org/zap"
)

// NodeType is the registry key of the javascript node.
const NodeType = "javascript"

// Output keys a script may return to address each output socket.
const (
	OutputKey1 = "output1"
	OutputKey2 = "output2"
)

// Runner is the javascript node's process capability.
type Runner struct {
	logger *zap.Logger
}

// NewRunner creates a runner. A nil logger disables script console output.
func NewRunner(logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{logger: logger}
}

// Template returns the javascript node template with a runner using logger.
func Template(logger *zap.Logger) *graph.Node {
	return &graph.Node{
		Category: nodes.CategoryTools,
		Title:    "JavaScript",
		NodeType: NodeType,
		Width:    320,
		Height:   240,
		Sockets: []graph.Socket{
			{ID: 1, Title: "Input 1", Type: graph.SocketInput, DataType: "any"},
			{ID: 2, Title: "Input 2", Type: graph.SocketInput, DataType: "any"},
			{ID: 3, Title: "Output 1", Type: graph.SocketOutput, DataType: "any"},
			{ID: 4, Title: "Output 2", Type: graph.SocketOutput, DataType: "any"},
		},
		ConfigParameters: []graph.ConfigParameter{
			{
				ParameterName: "script",
				ParameterType: graph.ParameterText,
				DefaultValue:  "input1",
				ValueSource:   graph.SourceUserInput,
				Description:   "Script whose completion value becomes the node output",
			},
			{
				ParameterName: "timeout",
				ParameterType: graph.ParameterNumber,
				DefaultValue:  float64(DefaultTimeout.Milliseconds()),
				ValueSource:   graph.SourceDefault,
				Description:   "Execution timeout in milliseconds",
			},
		},
		Process: NewRunner(logger),
	}
}

// Process resolves both inputs, exposes them to the script as input1 and
// input2 and returns the script's completion value. An object carrying
// output1/output2 keys is split across the two output sockets.
func (r *Runner) Process(ctx context.Context, pc graph.ProcessContext) (any, error) {
	n := pc.Node()
	cfg := ConfigFromNode(n)
	if err := cfg.Validate(); err != nil {
		return nil, &JSError{Type: ErrorTypeConfig, Message: err.Error()}
	}

	input1, err := nodes.Input(ctx, pc, 0)
	if err != nil {
		return nil, err
	}
	input2, err := nodes.Input(ctx, pc, 1)
	if err != nil {
		return nil, err
	}

	value, err := r.run(ctx, cfg, map[string]any{
		"input1": input1,
		"input2": input2,
		"node":   map[string]any{"id": n.ID, "title": n.Title},
	}, n.ID)
	if err != nil {
		return nil, err
	}

	if obj, ok := value.(map[string]any); ok {
		out1, has1 := obj[OutputKey1]
		out2, has2 := obj[OutputKey2]
		if has1 || has2 {
			return nodes.Outputs(n, out1, out2), nil
		}
	}
	return value, nil
}

// run executes the script with timeout and interrupt handling.
func (r *Runner) run(ctx context.Context, cfg Config, globals map[string]any, nodeID int) (result any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &JSError{Type: ErrorTypeRuntime, Message: fmt.Sprintf("panic during execution: %v", rec)}
		}
	}()

	vm, err := newSandbox(r.logger.With(zap.Int("node_id", nodeID)))
	if err != nil {
		return nil, err
	}
	for name, v := range globals {
		if err := vm.Set(name, v); err != nil {
			return nil, fmt.Errorf("failed to set %s: %w", name, err)
		}
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	done := make(chan struct{})
	var interrupted bool
	var interruptMu sync.Mutex
	go func() {
		select {
		case <-timeoutCtx.Done():
			interruptMu.Lock()
			interrupted = true
			interruptMu.Unlock()
			vm.Interrupt("execution timeout")
		case <-done:
		}
	}()
	defer close(done)

	value, err := vm.RunString(cfg.Script)
	if err != nil {
		interruptMu.Lock()
		wasInterrupted := interrupted
		interruptMu.Unlock()

		var interruptErr *goja.InterruptedError
		if wasInterrupted || errors.As(err, &interruptErr) {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, newTimeoutError(cfg)
		}
		return nil, wrapError(err)
	}

	if value == nil || goja.IsUndefined(value) || goja.IsNull(value) {
		return nil, nil
	}
	return value.Export(), nil
}
