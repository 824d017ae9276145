package runner

import (
	"github.com/wehubfusion/Daedalus/pkg/document"
	"github.com/wehubfusion/Daedalus/pkg/storage"
)

// Request asks the service to execute a graph document. When TargetNodeID
// is set only that node and its upstream are executed; otherwise every
// executable node runs in topological order.
type Request struct {
	ExecutionID  string            `json:"executionId,omitempty"`
	Document     document.Document `json:"document"`
	TargetNodeID *int              `json:"targetNodeId,omitempty"`
}

// Response is the reply to a Request.
type Response struct {
	ExecutionID string `json:"executionId"`

	// Value is the target node's result.
	Value any `json:"value,omitempty"`

	// Nodes holds per-node outcomes of a whole-graph run, keyed by node id.
	Nodes map[string]*storage.NodeResult `json:"nodes,omitempty"`

	// UnknownNodeTypes lists node types with no registered template.
	UnknownNodeTypes []string `json:"unknownNodeTypes,omitempty"`

	Error     string `json:"error,omitempty"`
	ErrorCode string `json:"errorCode,omitempty"`

	// BlobURL points at the exported execution record, when export is enabled.
	BlobURL string `json:"blobUrl,omitempty"`
}

// Failed reports whether the request itself failed.
func (r *Response) Failed() bool {
	return r.Error != ""
}
