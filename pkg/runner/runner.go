// Package runner serves graph execution requests over NATS request/reply.
// Requests are spread across a queue group and executed by a bounded pool
// of workers, each reply carrying the node results of one execution.
package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/wehubfusion/Daedalus/pkg/concurrency"
	"github.com/wehubfusion/Daedalus/pkg/engine"
	daedaluserrors "github.com/wehubfusion/Daedalus/pkg/errors"
	"github.com/wehubfusion/Daedalus/pkg/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Service executes graph documents received on a NATS subject.
type Service struct {
	config Config
	logger *zap.Logger
	tracer trace.Tracer
	limit  *concurrency.Limiter
	wg     sync.WaitGroup
}

// NewService creates a service.
func NewService(config Config) (*Service, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Service{
		config: config,
		logger: config.Logger,
		tracer: otel.Tracer("daedalus/runner"),
		limit:  concurrency.NewLimiter(config.Workers),
	}, nil
}

// Run subscribes to the configured subject and serves requests until ctx is
// cancelled. The subscription is then drained: pending messages are still
// executed and in-flight requests finish before Run returns.
func (s *Service) Run(ctx context.Context, nc *nats.Conn) error {
	if nc == nil {
		return errors.New("connection cannot be nil")
	}

	handler := s.handler(ctx)

	var sub *nats.Subscription
	var err error
	if s.config.Queue != "" {
		sub, err = nc.QueueSubscribe(s.config.Subject, s.config.Queue, handler)
	} else {
		sub, err = nc.Subscribe(s.config.Subject, handler)
	}
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", s.config.Subject, err)
	}

	s.logger.Info("Execution service started",
		zap.String("subject", s.config.Subject),
		zap.String("queue", s.config.Queue),
		zap.Int("workers", s.config.Workers))

	<-ctx.Done()
	s.logger.Info("Shutting down execution service...")

	if err := sub.Drain(); err != nil {
		s.logger.Warn("Failed to drain subscription", zap.Error(err))
	} else if !waitUntil(func() bool { return !sub.IsValid() }, s.config.DrainTimeout) {
		s.logger.Warn("Timed out draining subscription", zap.Duration("timeout", s.config.DrainTimeout))
	}
	// no callback can reach dispatch once the subscription is gone
	s.wg.Wait()

	stats := s.limit.Stats()
	s.logger.Info("Execution service stopped",
		zap.Int64("requests", stats.Acquired),
		zap.Int64("peak_concurrent", stats.PeakConcurrent),
		zap.Duration("average_wait", stats.AverageWait))
	return ctx.Err()
}

// handler returns the subscription callback. Requests run on a context that
// keeps ctx's values but not its cancellation, so messages delivered while
// draining are executed; each request is bounded by RequestTimeout in Handle.
func (s *Service) handler(ctx context.Context) nats.MsgHandler {
	base := context.WithoutCancel(ctx)
	return func(msg *nats.Msg) {
		s.dispatch(base, msg.Data, msg.Header, msg.Respond)
	}
}

// waitUntil polls cond until it holds or timeout elapses.
func waitUntil(cond func() bool, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(10 * time.Millisecond)
	}
	return true
}

// dispatch runs one request on a limiter slot and sends the reply. It blocks
// while every slot is busy so NATS applies back-pressure to the subscription.
func (s *Service) dispatch(ctx context.Context, data []byte, header nats.Header, respond func([]byte) error) {
	s.wg.Add(1)
	err := s.limit.Go(ctx, func() {
		if header != nil {
			ctx = otel.GetTextMapPropagator().Extract(ctx, propagation.HeaderCarrier(header))
		}

		reply := s.HandleData(ctx, data)
		if err := respond(reply); err != nil {
			s.logger.Error("Failed to send reply", zap.Error(err))
		}
	}, s.wg.Done)
	if err != nil {
		s.wg.Done()
		s.logger.Warn("Dropped request during shutdown", zap.Error(err))
	}
}

// HandleData decodes a JSON request, executes it and returns the JSON reply.
func (s *Service) HandleData(ctx context.Context, data []byte) []byte {
	var resp *Response

	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		resp = &Response{
			ExecutionID: uuid.New().String(),
			Error:       fmt.Sprintf("failed to decode request: %v", err),
			ErrorCode:   daedaluserrors.CodeInvalidDocument,
		}
	} else {
		resp = s.Handle(ctx, &req)
	}

	out, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("Failed to encode reply",
			zap.String("execution_id", resp.ExecutionID),
			zap.Error(err))
		out, _ = json.Marshal(&Response{
			ExecutionID: resp.ExecutionID,
			Error:       fmt.Sprintf("failed to encode reply: %v", err),
			ErrorCode:   storage.CodeProcessingFailed,
		})
	}
	return out
}

// Handle executes a request.
func (s *Service) Handle(ctx context.Context, req *Request) *Response {
	executionID := req.ExecutionID
	if executionID == "" {
		executionID = uuid.New().String()
	}
	resp := &Response{ExecutionID: executionID}

	ctx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()
	ctx = engine.WithExecutionID(ctx, executionID)

	ctx, span := s.tracer.Start(ctx, "runner.handle_request",
		trace.WithAttributes(
			attribute.String("execution.id", executionID),
			attribute.Int("graph.nodes", len(req.Document.Nodes)),
			attribute.Int("graph.connections", len(req.Document.Connections)),
		))
	defer span.End()

	start := time.Now()
	s.logger.Info("Executing request",
		zap.String("execution_id", executionID),
		zap.Int("node_count", len(req.Document.Nodes)))

	record, err := s.execute(ctx, req, resp)
	if err != nil {
		resp.Error = err.Error()
		resp.ErrorCode = storage.ErrorCode(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Warn("Request failed",
			zap.String("execution_id", executionID),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
	} else {
		span.SetStatus(codes.Ok, "")
		s.logger.Info("Request completed",
			zap.String("execution_id", executionID),
			zap.Duration("duration", time.Since(start)))
	}

	// reporting runs after the request deadline may have passed
	reportCtx, cancelReport := context.WithTimeout(context.WithoutCancel(ctx), s.config.ExportTimeout)
	defer cancelReport()

	if err != nil && s.config.OnError != nil {
		s.config.OnError(reportCtx, executionID, err)
	}

	if record != nil && s.config.Exporter != nil {
		url, exportErr := s.config.Exporter.Export(reportCtx, record)
		if exportErr != nil {
			s.logger.Error("Failed to export execution record",
				zap.String("execution_id", executionID),
				zap.Error(exportErr))
		} else {
			resp.BlobURL = url
		}
	}

	return resp
}

// execute runs the request and fills resp. It returns the record to export,
// which is present whenever execution started.
func (s *Service) execute(ctx context.Context, req *Request, resp *Response) (*storage.ExecutionRecord, error) {
	doc := &req.Document
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	resp.UnknownNodeTypes = doc.Bind(s.config.Registry)
	if len(resp.UnknownNodeTypes) > 0 {
		s.logger.Debug("Document has unregistered node types",
			zap.String("execution_id", resp.ExecutionID),
			zap.Strings("node_types", resp.UnknownNodeTypes))
	}

	if req.TargetNodeID == nil {
		results, err := s.config.Engine.ExecuteAll(ctx, doc.Nodes, doc.Connections)
		record := storage.NewExecutionRecord(resp.ExecutionID, results)
		resp.Nodes = record.Nodes
		return record, err
	}

	target, ok := doc.Node(*req.TargetNodeID)
	if !ok {
		return nil, daedaluserrors.NotFound("node", *req.TargetNodeID)
	}

	start := time.Now()
	value, err := s.config.Engine.ExecuteNode(ctx, target, doc.Nodes, doc.Connections, nil)
	record := storage.NewExecutionRecord(resp.ExecutionID, []engine.Result{{
		NodeID:   target.ID,
		NodeType: target.NodeType,
		Value:    value,
		Err:      err,
		Duration: time.Since(start),
	}})
	record.TargetNodeID = req.TargetNodeID
	resp.Value = value
	resp.Nodes = map[string]*storage.NodeResult{strconv.Itoa(target.ID): record.Nodes[strconv.Itoa(target.ID)]}
	return record, err
}
