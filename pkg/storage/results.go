package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/wehubfusion/Daedalus/pkg/engine"
	daedaluserrors "github.com/wehubfusion/Daedalus/pkg/errors"
	"go.uber.org/zap"
)

// Node result statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// CodeProcessingFailed is reported for failures that carry no error code.
const CodeProcessingFailed = "PROCESSING_FAILED"

// NodeResultMeta contains metadata about a node execution
type NodeResultMeta struct {
	Status          string `json:"status"`
	NodeID          int    `json:"node_id"`
	NodeType        string `json:"node_type"`
	ExecutionTimeMs int64  `json:"execution_time_ms"`
}

// NodeResultError contains error information when a node fails
type NodeResultError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NodeResult is the stored outcome of one node.
type NodeResult struct {
	Meta   NodeResultMeta   `json:"_meta"`
	Error  *NodeResultError `json:"_error,omitempty"`
	Result any              `json:"result"`
}

// NewNodeResult converts an engine result.
func NewNodeResult(r engine.Result) *NodeResult {
	nr := &NodeResult{
		Meta: NodeResultMeta{
			Status:          StatusSuccess,
			NodeID:          r.NodeID,
			NodeType:        r.NodeType,
			ExecutionTimeMs: r.Duration.Milliseconds(),
		},
		Result: r.Value,
	}
	if r.Err != nil {
		nr.Meta.Status = StatusFailed
		nr.Error = &NodeResultError{Code: ErrorCode(r.Err), Message: r.Err.Error()}
		nr.Result = nil
	}
	return nr
}

// ErrorCode returns the code of the first coded error in err's chain, or
// CodeProcessingFailed.
func ErrorCode(err error) string {
	var coded *daedaluserrors.Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	return CodeProcessingFailed
}

// ExecutionRecord is the document exported for one execution request.
// Nodes is keyed by node id.
type ExecutionRecord struct {
	ExecutionID  string                 `json:"execution_id"`
	TargetNodeID *int                   `json:"target_node_id,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
	Nodes        map[string]*NodeResult `json:"nodes"`
}

// NewExecutionRecord builds a record from engine results.
func NewExecutionRecord(executionID string, results []engine.Result) *ExecutionRecord {
	rec := &ExecutionRecord{
		ExecutionID: executionID,
		CreatedAt:   time.Now().UTC(),
		Nodes:       make(map[string]*NodeResult, len(results)),
	}
	for _, r := range results {
		rec.Nodes[strconv.Itoa(r.NodeID)] = NewNodeResult(r)
	}
	return rec
}

// Failed returns the number of failed nodes.
func (r *ExecutionRecord) Failed() int {
	n := 0
	for _, nr := range r.Nodes {
		if nr.Meta.Status == StatusFailed {
			n++
		}
	}
	return n
}

// RecordPath returns the blob path of an execution record.
func RecordPath(executionID string) string {
	return executionID + ".json"
}

// Exporter writes execution records to a BlobStore.
type Exporter struct {
	store  BlobStore
	logger *zap.Logger
}

// NewExporter creates an exporter.
func NewExporter(store BlobStore, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{store: store, logger: logger}
}

// Export uploads the record and returns its blob URL.
func (e *Exporter) Export(ctx context.Context, rec *ExecutionRecord) (string, error) {
	if e.store == nil {
		return "", fmt.Errorf("blob store not initialized")
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("failed to marshal execution record: %w", err)
	}

	blobPath := RecordPath(rec.ExecutionID)
	blobURL, err := e.store.Upload(ctx, blobPath, data, map[string]string{
		"execution_id": rec.ExecutionID,
		"node_count":   strconv.Itoa(len(rec.Nodes)),
		"failed_count": strconv.Itoa(rec.Failed()),
		"created_at":   rec.CreatedAt.Format(time.RFC3339),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload execution record: %w", err)
	}

	e.logger.Debug("Exported execution record",
		zap.String("execution_id", rec.ExecutionID),
		zap.String("blob_path", blobPath),
		zap.Int("node_count", len(rec.Nodes)),
		zap.Int("size_bytes", len(data)))

	return blobURL, nil
}

// Load downloads and decodes the record of an execution.
func (e *Exporter) Load(ctx context.Context, executionID string) (*ExecutionRecord, error) {
	if e.store == nil {
		return nil, fmt.Errorf("blob store not initialized")
	}

	data, err := e.store.Download(ctx, RecordPath(executionID))
	if err != nil {
		return nil, fmt.Errorf("failed to download execution record: %w", err)
	}

	var rec ExecutionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse execution record: %w", err)
	}
	return &rec, nil
}
