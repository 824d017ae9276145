package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	daedaluserrors "github.com/wehubfusion/Daedalus/pkg/errors"
	"github.com/wehubfusion/Daedalus/pkg/graph"
	"github.com/wehubfusion/Daedalus/pkg/topology"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "daedalus/engine"

// Engine executes nodes of a graph, resolving their upstream dependencies
// lazily and memoizing every node result in a per-request Cache.
type Engine struct {
	resolver *topology.Resolver
	logger   *zap.Logger
	tracer   trace.Tracer
	metrics  MetricsCollector
}

// New creates an engine.
func New(config Config) *Engine {
	config.Validate()

	tp := config.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	return &Engine{
		resolver: topology.NewResolver(config.Logger),
		logger:   config.Logger,
		tracer:   tp.Tracer(tracerName),
		metrics:  config.Metrics,
	}
}

// NewWithDefaults creates an engine with the default configuration.
func NewWithDefaults() *Engine {
	return New(DefaultConfig())
}

// Metrics returns the engine's metrics collector.
func (e *Engine) Metrics() MetricsCollector {
	return e.metrics
}

// ExecuteNode produces the value of target. Upstream nodes feeding target's
// inputs are executed on demand through the same cache, so each node runs at
// most once per cache even when several consumers (or goroutines) ask for it.
// A nil cache gives the call a fresh one.
//
// A node that already has a cache entry returns that entry. A node without a
// Process capability fails with a MISSING_CAPABILITY error and nothing
// upstream is run. Failures of Process are returned as *ProcessingError and
// stay cached.
func (e *Engine) ExecuteNode(
	ctx context.Context,
	target *graph.Node,
	nodes []*graph.Node,
	connections []graph.Connection,
	cache *Cache,
) (any, error) {
	if target == nil {
		return nil, daedaluserrors.NotFound("node", "<nil>")
	}
	if cache == nil {
		cache = NewCache()
	}
	r := e.newRun(ctx, nodes, connections, cache)
	return r.execute(ctx, target, nil)
}

// Result is the outcome of one node in ExecuteAll.
type Result struct {
	NodeID   int
	NodeType string
	Value    any
	Err      error
	Duration time.Duration
}

// ExecuteAll executes every executable node of the graph in topological order
// with one shared cache and returns the per-node outcomes in that order. Nodes
// without a Process capability are skipped. Node failures are reported in the
// results; the returned error is set only when ctx ends the run early. Nil
// entries are ignored.
func (e *Engine) ExecuteAll(ctx context.Context, nodes []*graph.Node, connections []graph.Connection) ([]Result, error) {
	order := e.resolver.Sort(nodes, connections)
	cache := NewCache()
	r := e.newRun(ctx, nodes, connections, cache)

	results := make([]Result, 0, len(order))
	for _, node := range order {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		if node == nil {
			continue
		}
		if !node.Executable() {
			e.logger.Debug("Skipping node without process capability",
				zap.Int("node_id", node.ID),
				zap.String("node_type", node.NodeType))
			continue
		}
		start := time.Now()
		value, err := r.execute(ctx, node, nil)
		results = append(results, Result{
			NodeID:   node.ID,
			NodeType: node.NodeType,
			Value:    value,
			Err:      err,
			Duration: time.Since(start),
		})
	}
	return results, nil
}

// run holds the lookup tables shared by every node execution of one request.
type run struct {
	engine      *Engine
	executionID string
	cache       *Cache
	inbound     map[int]graph.Connection // to socket -> first connection
	owners      map[int]*graph.Node      // socket id -> first owning node
}

func (e *Engine) newRun(ctx context.Context, nodes []*graph.Node, connections []graph.Connection, cache *Cache) *run {
	executionID := ExecutionID(ctx)
	if executionID == "" {
		executionID = uuid.New().String()
	}

	inbound := make(map[int]graph.Connection, len(connections))
	for _, c := range connections {
		if _, ok := inbound[c.ToSocket]; !ok {
			inbound[c.ToSocket] = c
		}
	}
	owners := make(map[int]*graph.Node)
	for _, n := range nodes {
		if n == nil {
			continue
		}
		for _, s := range n.Sockets {
			if _, ok := owners[s.ID]; !ok {
				owners[s.ID] = n
			}
		}
	}

	return &run{
		engine:      e,
		executionID: executionID,
		cache:       cache,
		inbound:     inbound,
		owners:      owners,
	}
}

// chain is the list of nodes currently being resolved by one call path,
// innermost first.
type chain struct {
	nodeID int
	parent *chain
}

func (c *chain) contains(nodeID int) bool {
	for ; c != nil; c = c.parent {
		if c.nodeID == nodeID {
			return true
		}
	}
	return false
}

func (r *run) execute(ctx context.Context, node *graph.Node, path *chain) (any, error) {
	e := r.engine

	future, created := r.cache.claim(node.ID, node.Process != nil)
	if future == nil {
		return nil, daedaluserrors.MissingCapability(node.NodeType, node.ID)
	}
	if !created {
		if path.contains(node.ID) {
			return nil, daedaluserrors.CycleDetected(node.NodeType, node.ID)
		}
		e.metrics.RecordCacheHit()
		return future.Await(ctx)
	}

	ctx, span := e.tracer.Start(ctx, "engine.execute_node",
		trace.WithAttributes(
			attribute.Int("node.id", node.ID),
			attribute.String("node.type", node.NodeType),
			attribute.String("execution.id", r.executionID),
		))
	defer span.End()

	e.logger.Debug("Executing node",
		zap.Int("node_id", node.ID),
		zap.String("node_type", node.NodeType),
		zap.String("execution_id", r.executionID))

	pc := &processContext{run: r, node: node, path: &chain{nodeID: node.ID, parent: path}}

	start := time.Now()
	value, err := r.invoke(ctx, node, pc)
	duration := time.Since(start)

	if err != nil {
		e.metrics.RecordError(duration)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.Warn("Node execution failed",
			zap.Int("node_id", node.ID),
			zap.String("node_type", node.NodeType),
			zap.String("execution_id", r.executionID),
			zap.Error(err))
	} else {
		e.metrics.RecordProcessed(duration)
		span.SetStatus(codes.Ok, "")
	}

	future.resolve(value, err)
	return value, err
}

// invoke calls the node's Process capability, turning panics and errors into
// ProcessingErrors. The future must always be resolved, so panics cannot escape.
func (r *run) invoke(ctx context.Context, node *graph.Node, pc *processContext) (value any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			value = nil
			err = NewProcessingError(node.ID, node.Title, node.NodeType, PhasePanic, fmt.Errorf("%v", rec))
		}
	}()

	value, err = node.Process.Process(ctx, pc)
	if err != nil {
		return nil, NewProcessingError(node.ID, node.Title, node.NodeType, PhaseProcess, err)
	}
	return value, nil
}

// processContext is the graph.ProcessContext handed to a node's Process.
type processContext struct {
	run  *run
	node *graph.Node
	path *chain
}

func (pc *processContext) Node() *graph.Node {
	return pc.node
}

// InputValue resolves the value arriving at an input socket. Unconnected
// sockets and connections whose source socket has no owner yield nil.
func (pc *processContext) InputValue(ctx context.Context, socketID int) (any, error) {
	conn, ok := pc.run.inbound[socketID]
	if !ok {
		return nil, nil
	}
	upstream, ok := pc.run.owners[conn.FromSocket]
	if !ok {
		return nil, nil
	}

	value, err := pc.run.execute(ctx, upstream, pc.path)
	if err != nil {
		return nil, err
	}
	return SocketValue(value, conn.FromSocket), nil
}

// SocketValue extracts the value of one output socket from a node result.
// Multi-output results (graph.SocketValues) are indexed by socket id; any
// other result is a single value shared by all outputs.
func SocketValue(result any, socketID int) any {
	switch m := result.(type) {
	case graph.SocketValues:
		return m[socketID]
	case map[int]any:
		return m[socketID]
	}
	return result
}

var _ graph.ProcessContext = (*processContext)(nil)

type executionIDKey struct{}

// WithExecutionID attaches an execution id to ctx; ExecuteNode uses it
// instead of generating one.
func WithExecutionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, executionIDKey{}, id)
}

// ExecutionID returns the execution id attached to ctx, if any.
func ExecutionID(ctx context.Context) string {
	id, _ := ctx.Value(executionIDKey{}).(string)
	return id
}
