package engine

import "fmt"

// ProcessingError wraps a failure of a node's Process capability with the
// node it happened in.
type ProcessingError struct {
	// NodeID is the ID of the node that failed
	NodeID int
	// NodeTitle is the human-readable name of the node
	NodeTitle string
	// NodeType is the template key of the node
	NodeType string
	// Phase indicates which phase of execution failed
	Phase string
	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *ProcessingError) Error() string {
	return fmt.Sprintf("node %s (id %d) [%s] failed during %s: %v",
		e.NodeTitle, e.NodeID, e.NodeType, e.Phase, e.Cause)
}

// Unwrap returns the underlying error.
func (e *ProcessingError) Unwrap() error {
	return e.Cause
}

// Execution phases reported in ProcessingError.
const (
	PhaseProcess = "process"
	PhasePanic   = "panic"
)

// NewProcessingError creates a new processing error.
func NewProcessingError(nodeID int, nodeTitle, nodeType, phase string, cause error) *ProcessingError {
	return &ProcessingError{
		NodeID:    nodeID,
		NodeTitle: nodeTitle,
		NodeType:  nodeType,
		Phase:     phase,
		Cause:     cause,
	}
}
