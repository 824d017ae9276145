// Package number provides the numeric input node.
package number

import (
	"context"
	"fmt"
	"math"

	"github.com/wehubfusion/Daedalus/pkg/graph"
	"github.com/wehubfusion/Daedalus/pkg/nodes"
)

// NodeType is the registry key of the number node.
const NodeType = "number"

// Template returns the number node template.
func Template() *graph.Node {
	return &graph.Node{
		Category: nodes.CategoryInput,
		Title:    "Number",
		NodeType: NodeType,
		Width:    200,
		Height:   120,
		Sockets: []graph.Socket{
			{ID: 1, Title: "Value", Type: graph.SocketOutput, DataType: "number"},
		},
		ConfigParameters: []graph.ConfigParameter{
			{
				ParameterName: "value",
				ParameterType: graph.ParameterNumber,
				DefaultValue:  0,
				ValueSource:   graph.SourceUserInput,
				Description:   "Number emitted by the node",
			},
		},
		Process: graph.ProcessFunc(Process),
	}
}

// Process emits the "value" parameter as a float64.
func Process(_ context.Context, pc graph.ProcessContext) (any, error) {
	n := pc.Node()
	v := graph.ParamFloat(n, "value", math.NaN())
	if math.IsNaN(v) {
		if raw := graph.ParamValue(n, "value"); raw != nil {
			return nil, fmt.Errorf("value %v is not a number", raw)
		}
		return 0.0, nil
	}
	return v, nil
}
