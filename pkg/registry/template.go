package registry

import "github.com/wehubfusion/Daedalus/pkg/graph"

// Template is a read-only view of a registered node template. It has no
// mutators and every accessor returns copies, so the stored template cannot
// be changed through it.
type Template struct {
	node *graph.Node
}

// NodeType returns the template key.
func (t Template) NodeType() string { return t.node.NodeType }

// Title returns the display title.
func (t Template) Title() string { return t.node.Title }

// Category returns the template category.
func (t Template) Category() string { return t.node.Category }

// Size returns the default width and height.
func (t Template) Size() (width, height float64) { return t.node.Width, t.node.Height }

// NodeValue returns a copy of the template's initial value.
func (t Template) NodeValue() any { return graph.CopyValue(t.node.NodeValue) }

// Sockets returns a copy of the template sockets.
func (t Template) Sockets() []graph.Socket {
	return append([]graph.Socket(nil), t.node.Sockets...)
}

// ConfigParameters returns a copy of the template parameters.
func (t Template) ConfigParameters() []graph.ConfigParameter {
	return t.node.Clone().ConfigParameters
}

// Executable reports whether instances of this template can be executed.
func (t Template) Executable() bool { return t.node.Process != nil }

// Processor returns the capability bound to instances of this template.
func (t Template) Processor() graph.Processor { return t.node.Process }

// Node returns a mutable deep copy of the template.
func (t Template) Node() *graph.Node { return t.node.Clone() }

// Instantiate creates a fresh node from the template with parameter values
// reset to their defaults.
func (t Template) Instantiate(id int, pos graph.Position) *graph.Node {
	return graph.CreateNode(id, pos, t.node, false)
}

// IsZero reports whether t is the zero Template returned for unknown types.
func (t Template) IsZero() bool { return t.node == nil }
