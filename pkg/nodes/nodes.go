// Package nodes holds the built-in node kinds and the helpers they share for
// reading inputs and producing multi-output results.
package nodes

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/wehubfusion/Daedalus/pkg/graph"
)

// Categories the built-in node kinds are listed under.
const (
	CategoryInput = "Input"
	CategoryText  = "Text"
	CategoryTools = "Tools"
)

// Categories returns the built-in categories in display order.
func Categories() []string {
	return []string{CategoryInput, CategoryText, CategoryTools}
}

// Input resolves the value arriving at the index-th input socket of the node
// being processed. An index past the node's inputs yields nil.
func Input(ctx context.Context, pc graph.ProcessContext, index int) (any, error) {
	inputs := pc.Node().InputSockets()
	if index < 0 || index >= len(inputs) {
		return nil, nil
	}
	return pc.InputValue(ctx, inputs[index].ID)
}

// InputString resolves the index-th input as text. ok is false when nothing
// arrived at the socket.
func InputString(ctx context.Context, pc graph.ProcessContext, index int) (s string, ok bool, err error) {
	v, err := Input(ctx, pc, index)
	if err != nil || v == nil {
		return "", false, err
	}
	return Stringify(v), true, nil
}

// Outputs assigns values to the node's output sockets in declaration order.
// Extra values are dropped.
func Outputs(n *graph.Node, values ...any) graph.SocketValues {
	outputs := n.OutputSockets()
	result := make(graph.SocketValues, len(outputs))
	for i, s := range outputs {
		if i >= len(values) {
			break
		}
		result[s.ID] = values[i]
	}
	return result
}

// Stringify renders a value as text.
func Stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	case fmt.Stringer:
		return val.String()
	}
	if b, err := json.Marshal(v); err == nil {
		return string(b)
	}
	return fmt.Sprintf("%v", v)
}
