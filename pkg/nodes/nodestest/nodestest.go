// Package nodestest provides a ProcessContext stub for testing node kinds
// without building a graph.
package nodestest

import (
	"context"

	"github.com/wehubfusion/Daedalus/pkg/graph"
)

// Context is a graph.ProcessContext whose inputs are fixed values.
type Context struct {
	node   *graph.Node
	inputs map[int]any
	errs   map[int]error
}

// New instantiates template as node 1 and feeds inputs to its input sockets
// in order. A nil input leaves the socket unconnected.
func New(template *graph.Node, inputs ...any) *Context {
	n := graph.CreateNode(1, graph.Position{}, template, false)
	c := &Context{node: n, inputs: make(map[int]any), errs: make(map[int]error)}
	for i, s := range n.InputSockets() {
		if i < len(inputs) && inputs[i] != nil {
			c.inputs[s.ID] = inputs[i]
		}
	}
	return c
}

// Node implements graph.ProcessContext.
func (c *Context) Node() *graph.Node { return c.node }

// InputValue implements graph.ProcessContext.
func (c *Context) InputValue(_ context.Context, socketID int) (any, error) {
	if err, ok := c.errs[socketID]; ok {
		return nil, err
	}
	return c.inputs[socketID], nil
}

// Set sets a config parameter on the node and panics on failure.
func (c *Context) Set(name string, value any) *Context {
	if _, ok := graph.GetConfigParameter(c.node, name); !ok {
		panic("nodestest: unknown parameter " + name)
	}
	if err := graph.SetConfigParameter(c.node, name, value); err != nil {
		panic(err)
	}
	return c
}

// Fail makes the index-th input fail with err.
func (c *Context) Fail(index int, err error) *Context {
	c.errs[c.node.InputSockets()[index].ID] = err
	return c
}

// Run processes the node.
func (c *Context) Run(ctx context.Context) (any, error) {
	return c.node.Process.Process(ctx, c)
}

// Output returns the value routed to the index-th output socket of a result.
func (c *Context) Output(result any, index int) any {
	outputs := c.node.OutputSockets()
	if m, ok := result.(graph.SocketValues); ok {
		return m[outputs[index].ID]
	}
	return result
}
