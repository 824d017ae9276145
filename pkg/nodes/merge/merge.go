// Package merge provides the merge node, which joins several text inputs.
package merge

import (
	"context"
	"strings"

	"github.com/wehubfusion/Daedalus/pkg/graph"
	"github.com/wehubfusion/Daedalus/pkg/nodes"
)

// NodeType is the registry key of the merge node.
const NodeType = "merge"

// Template returns the merge node template.
func Template() *graph.Node {
	return &graph.Node{
		Category: nodes.CategoryText,
		Title:    "Merge",
		NodeType: NodeType,
		Width:    240,
		Height:   200,
		Sockets: []graph.Socket{
			{ID: 1, Title: "Text 1", Type: graph.SocketInput, DataType: "string"},
			{ID: 2, Title: "Text 2", Type: graph.SocketInput, DataType: "string"},
			{ID: 3, Title: "Text 3", Type: graph.SocketInput, DataType: "string"},
			{ID: 4, Title: "Merged", Type: graph.SocketOutput, DataType: "string"},
		},
		ConfigParameters: []graph.ConfigParameter{
			{
				ParameterName: "separator",
				ParameterType: graph.ParameterString,
				DefaultValue:  "\n",
				ValueSource:   graph.SourceDefault,
				Description:   "Separator placed between inputs",
			},
		},
		Process: graph.ProcessFunc(Process),
	}
}

// Process joins every connected input with the separator.
func Process(ctx context.Context, pc graph.ProcessContext) (any, error) {
	n := pc.Node()
	sep := graph.ParamString(n, "separator", "\n")

	var parts []string
	for i := range n.InputSockets() {
		s, ok, err := nodes.InputString(ctx, pc, i)
		if err != nil {
			return nil, err
		}
		if ok {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, sep), nil
}
