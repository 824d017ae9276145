// Package graph defines the node graph data model: nodes, their typed sockets,
// the connections between sockets and per-node configuration parameters.
//
// Nodes are plain data records. The only behaviour attached to a node is its
// Process capability, which is composed in rather than embedded, so a node can
// be serialized without it and rebound later by a node type loader.
package graph

import "context"

// SocketType is the direction of a socket.
type SocketType string

const (
	SocketInput  SocketType = "input"
	SocketOutput SocketType = "output"
)

// ParameterType is the declared type of a config parameter.
type ParameterType string

const (
	ParameterString  ParameterType = "string"
	ParameterText    ParameterType = "text"
	ParameterNumber  ParameterType = "number"
	ParameterBoolean ParameterType = "boolean"
)

// ValueSource describes where a config parameter's value comes from.
type ValueSource string

const (
	SourceUserInput    ValueSource = "UserInput"
	SourceEnv          ValueSource = "Env"
	SourceDefault      ValueSource = "Default"
	SourceRuntimeVault ValueSource = "RuntimeVault"
)

// MaxSocketsPerNode is the largest socket count the id*100+k scheme can address.
const MaxSocketsPerNode = 99

// Socket is a typed connection point owned by a node. Socket ids are unique
// across the whole graph.
type Socket struct {
	ID       int        `json:"id"`
	Title    string     `json:"title"`
	Type     SocketType `json:"type"`
	NodeID   int        `json:"nodeId"`
	DataType string     `json:"dataType"`
}

// Position is a canvas coordinate.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ConfigParameter is a named, typed setting of a node.
type ConfigParameter struct {
	ParameterName string        `json:"parameterName"`
	ParameterType ParameterType `json:"parameterType"`
	DefaultValue  any           `json:"defaultValue"`
	ValueSource   ValueSource   `json:"valueSource"`
	Description   string        `json:"description,omitempty"`
	ParamValue    any           `json:"paramValue,omitempty"`
}

// Connection is a directed edge from an output socket to an input socket.
// Sockets are referenced by id only and may dangle.
type Connection struct {
	FromSocket int `json:"fromSocket"`
	ToSocket   int `json:"toSocket"`
}

// SocketValues is the result of a node with several outputs, keyed by output
// socket id. Any other result value is treated as a single scalar that feeds
// every output socket.
type SocketValues map[int]any

// Node is an instantiated unit of computation.
type Node struct {
	ID               int               `json:"id"`
	Category         string            `json:"category"`
	Title            string            `json:"title"`
	NodeType         string            `json:"nodeType"`
	NodeValue        any               `json:"nodeValue,omitempty"`
	Position         Position          `json:"position"`
	Width            float64           `json:"width"`
	Height           float64           `json:"height"`
	Sockets          []Socket          `json:"sockets"`
	Selected         bool              `json:"selected"`
	Processing       bool              `json:"processing"`
	ConfigParameters []ConfigParameter `json:"configParameters,omitempty"`

	// Process is the node's executable capability. Nodes without one cannot be executed.
	Process Processor `json:"-"`
}

// ProcessContext is what a node sees while it is being executed.
type ProcessContext interface {
	// Node returns the node being executed.
	Node() *Node

	// InputValue resolves the value arriving at one of the node's input sockets,
	// executing the upstream node if needed. Unconnected or dangling inputs
	// resolve to nil without an error.
	InputValue(ctx context.Context, socketID int) (any, error)
}

// Processor is the executable capability of a node.
type Processor interface {
	Process(ctx context.Context, pc ProcessContext) (any, error)
}

// ProcessFunc adapts a function to the Processor interface.
type ProcessFunc func(ctx context.Context, pc ProcessContext) (any, error)

// Process calls f(ctx, pc).
func (f ProcessFunc) Process(ctx context.Context, pc ProcessContext) (any, error) {
	return f(ctx, pc)
}
