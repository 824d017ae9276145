// Package text provides the text input node.
package text

import (
	"context"

	"github.com/wehubfusion/Daedalus/pkg/graph"
	"github.com/wehubfusion/Daedalus/pkg/nodes"
)

// NodeType is the registry key of the text node.
const NodeType = "text"

// Template returns the text node template.
func Template() *graph.Node {
	return &graph.Node{
		Category: nodes.CategoryInput,
		Title:    "Text",
		NodeType: NodeType,
		Width:    240,
		Height:   160,
		Sockets: []graph.Socket{
			{ID: 1, Title: "Text", Type: graph.SocketOutput, DataType: "string"},
		},
		ConfigParameters: []graph.ConfigParameter{
			{
				ParameterName: "text",
				ParameterType: graph.ParameterText,
				DefaultValue:  "",
				ValueSource:   graph.SourceUserInput,
				Description:   "Text emitted by the node",
			},
		},
		Process: graph.ProcessFunc(Process),
	}
}

// Process emits the "text" parameter, or the node value when the parameter
// is empty.
func Process(_ context.Context, pc graph.ProcessContext) (any, error) {
	n := pc.Node()
	if s := graph.ParamString(n, "text", ""); s != "" {
		return s, nil
	}
	return nodes.Stringify(n.NodeValue), nil
}
