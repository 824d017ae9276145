package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	daedaluserrors "github.com/wehubfusion/Daedalus/pkg/errors"
	"github.com/wehubfusion/Daedalus/pkg/graph"
	"go.uber.org/zap/zaptest"
)

// recorder tracks the order in which node processes start.
type recorder struct {
	mu    sync.Mutex
	calls []int
}

func (r *recorder) record(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, id)
}

func (r *recorder) order() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.calls...)
}

func (r *recorder) count(id int) int {
	n := 0
	for _, c := range r.order() {
		if c == id {
			n++
		}
	}
	return n
}

func node(id int, sockets []graph.Socket, fn graph.ProcessFunc) *graph.Node {
	n := &graph.Node{ID: id, Title: fmt.Sprintf("node-%d", id), NodeType: "test", Sockets: sockets}
	if fn != nil {
		n.Process = fn
	}
	return n
}

func in(id, nodeID int) graph.Socket {
	return graph.Socket{ID: id, Type: graph.SocketInput, NodeID: nodeID}
}

func out(id, nodeID int) graph.Socket {
	return graph.Socket{ID: id, Type: graph.SocketOutput, NodeID: nodeID}
}

func newTestEngine() *Engine {
	return New(DefaultConfig())
}

// chainGraph is A(out 1) -> B(in 2, out 3) -> C(in 4).
func chainGraph(rec *recorder) (a, b, c *graph.Node, conns []graph.Connection) {
	a = node(1, []graph.Socket{out(1, 1)}, func(ctx context.Context, pc graph.ProcessContext) (any, error) {
		rec.record(1)
		return "a", nil
	})
	b = node(2, []graph.Socket{in(2, 2), out(3, 2)}, func(ctx context.Context, pc graph.ProcessContext) (any, error) {
		v, err := pc.InputValue(ctx, 2)
		if err != nil {
			return nil, err
		}
		rec.record(2)
		return fmt.Sprintf("%v+b", v), nil
	})
	c = node(3, []graph.Socket{in(4, 3)}, func(ctx context.Context, pc graph.ProcessContext) (any, error) {
		v, err := pc.InputValue(ctx, 4)
		if err != nil {
			return nil, err
		}
		rec.record(3)
		return fmt.Sprintf("%v+c", v), nil
	})
	conns = []graph.Connection{{FromSocket: 1, ToSocket: 2}, {FromSocket: 3, ToSocket: 4}}
	return a, b, c, conns
}

func TestExecuteNode_ChainRunsUpstreamFirst(t *testing.T) {
	rec := &recorder{}
	a, b, c, conns := chainGraph(rec)

	value, err := newTestEngine().ExecuteNode(context.Background(), c, []*graph.Node{a, b, c}, conns, nil)
	require.NoError(t, err)
	assert.Equal(t, "a+b+c", value)
	assert.Equal(t, []int{1, 2, 3}, rec.order())
}

func TestExecuteNode_SharedCacheRunsOnce(t *testing.T) {
	rec := &recorder{}
	a, b, c, conns := chainGraph(rec)
	nodes := []*graph.Node{a, b, c}
	e := newTestEngine()
	cache := NewCache()

	_, err := e.ExecuteNode(context.Background(), c, nodes, conns, cache)
	require.NoError(t, err)
	v, err := e.ExecuteNode(context.Background(), c, nodes, conns, cache)
	require.NoError(t, err)
	assert.Equal(t, "a+b+c", v)

	v, err = e.ExecuteNode(context.Background(), b, nodes, conns, cache)
	require.NoError(t, err)
	assert.Equal(t, "a+b", v)

	assert.Equal(t, []int{1, 2, 3}, rec.order())
	assert.Equal(t, 3, cache.Len())
	assert.Equal(t, int64(2), e.Metrics().GetMetrics().TotalCacheHits)
}

func TestExecuteNode_SeparateCallsWithoutCacheRerun(t *testing.T) {
	rec := &recorder{}
	a, b, c, conns := chainGraph(rec)
	nodes := []*graph.Node{a, b, c}
	e := newTestEngine()

	_, err := e.ExecuteNode(context.Background(), c, nodes, conns, nil)
	require.NoError(t, err)
	_, err = e.ExecuteNode(context.Background(), c, nodes, conns, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, rec.count(1))
}

func TestExecuteNode_DiamondFanInRunsSharedUpstreamOnce(t *testing.T) {
	var calls atomic.Int32
	src := node(1, []graph.Socket{out(101, 1)}, func(ctx context.Context, pc graph.ProcessContext) (any, error) {
		calls.Add(1)
		time.Sleep(5 * time.Millisecond)
		return 10, nil
	})
	double := func(id, inSocket int) *graph.Node {
		return node(id, []graph.Socket{in(inSocket, id), out(inSocket+1, id)}, func(ctx context.Context, pc graph.ProcessContext) (any, error) {
			v, err := pc.InputValue(ctx, inSocket)
			if err != nil {
				return nil, err
			}
			return v.(int) * 2, nil
		})
	}
	left := double(2, 201)
	right := double(3, 301)
	sink := node(4, []graph.Socket{in(401, 4), in(402, 4)}, func(ctx context.Context, pc graph.ProcessContext) (any, error) {
		// resolve both branches concurrently
		var wg sync.WaitGroup
		var l, r any
		var lerr, rerr error
		wg.Add(2)
		go func() { defer wg.Done(); l, lerr = pc.InputValue(ctx, 401) }()
		go func() { defer wg.Done(); r, rerr = pc.InputValue(ctx, 402) }()
		wg.Wait()
		if err := errors.Join(lerr, rerr); err != nil {
			return nil, err
		}
		return l.(int) + r.(int), nil
	})
	conns := []graph.Connection{
		{FromSocket: 101, ToSocket: 201},
		{FromSocket: 101, ToSocket: 301},
		{FromSocket: 202, ToSocket: 401},
		{FromSocket: 302, ToSocket: 402},
	}

	v, err := newTestEngine().ExecuteNode(context.Background(), sink, []*graph.Node{src, left, right, sink}, conns, nil)
	require.NoError(t, err)
	assert.Equal(t, 40, v)
	assert.Equal(t, int32(1), calls.Load())
}

func TestExecuteNode_ConcurrentCallersShareOneExecution(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	slow := node(1, []graph.Socket{out(101, 1)}, func(ctx context.Context, pc graph.ProcessContext) (any, error) {
		calls.Add(1)
		<-release
		return "done", nil
	})
	e := newTestEngine()
	cache := NewCache()

	var wg sync.WaitGroup
	results := make([]any, 20)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := e.ExecuteNode(context.Background(), slow, []*graph.Node{slow}, nil, cache)
			if err == nil {
				results[i] = v
			}
		}(i)
	}
	time.Sleep(10 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.Equal(t, "done", r)
	}
}

func TestExecuteNode_MultiOutputRouting(t *testing.T) {
	var calls atomic.Int32
	split := node(1, []graph.Socket{out(1, 1), out(2, 1)}, func(ctx context.Context, pc graph.ProcessContext) (any, error) {
		calls.Add(1)
		return graph.SocketValues{1: "valueA", 2: "valueB"}, nil
	})
	echo := func(id, socket int) *graph.Node {
		return node(id, []graph.Socket{in(socket, id)}, func(ctx context.Context, pc graph.ProcessContext) (any, error) {
			return pc.InputValue(ctx, socket)
		})
	}
	first := echo(2, 21)
	second := echo(3, 31)
	nodes := []*graph.Node{split, first, second}
	conns := []graph.Connection{{FromSocket: 1, ToSocket: 21}, {FromSocket: 2, ToSocket: 31}}
	e := newTestEngine()
	cache := NewCache()

	v1, err := e.ExecuteNode(context.Background(), first, nodes, conns, cache)
	require.NoError(t, err)
	v2, err := e.ExecuteNode(context.Background(), second, nodes, conns, cache)
	require.NoError(t, err)

	assert.Equal(t, "valueA", v1)
	assert.Equal(t, "valueB", v2)
	assert.Equal(t, int32(1), calls.Load())
}

func TestExecuteNode_ScalarFeedsEveryOutput(t *testing.T) {
	src := node(1, []graph.Socket{out(1, 1), out(2, 1)}, func(ctx context.Context, pc graph.ProcessContext) (any, error) {
		return 42, nil
	})
	sink := node(2, []graph.Socket{in(21, 2)}, func(ctx context.Context, pc graph.ProcessContext) (any, error) {
		return pc.InputValue(ctx, 21)
	})

	v, err := newTestEngine().ExecuteNode(context.Background(), sink, []*graph.Node{src, sink},
		[]graph.Connection{{FromSocket: 2, ToSocket: 21}}, nil)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestExecuteNode_MissingCapability(t *testing.T) {
	rec := &recorder{}
	a, b, _, _ := chainGraph(rec)
	target := node(9, []graph.Socket{in(901, 9)}, nil)
	target.NodeType = "annotation"
	conns := []graph.Connection{{FromSocket: 1, ToSocket: 2}, {FromSocket: 3, ToSocket: 901}}
	cache := NewCache()

	_, err := newTestEngine().ExecuteNode(context.Background(), target, []*graph.Node{a, b, target}, conns, cache)
	require.Error(t, err)
	assert.True(t, daedaluserrors.IsMissingCapability(err))
	assert.Contains(t, err.Error(), "annotation")
	assert.Contains(t, err.Error(), "id 9")
	assert.Empty(t, rec.order())
	assert.Equal(t, 0, cache.Len())
}

func TestExecuteNode_MissingUpstreamCapabilityPropagates(t *testing.T) {
	upstream := node(1, []graph.Socket{out(101, 1)}, nil)
	sink := node(2, []graph.Socket{in(201, 2)}, func(ctx context.Context, pc graph.ProcessContext) (any, error) {
		return pc.InputValue(ctx, 201)
	})

	_, err := newTestEngine().ExecuteNode(context.Background(), sink, []*graph.Node{upstream, sink},
		[]graph.Connection{{FromSocket: 101, ToSocket: 201}}, nil)
	assert.True(t, daedaluserrors.IsMissingCapability(err))
}

func TestExecuteNode_CachedEntryWinsOverMissingCapability(t *testing.T) {
	target := node(5, nil, nil)
	cache := NewCache()
	cache.Set(5, Resolved("seeded", nil))

	v, err := newTestEngine().ExecuteNode(context.Background(), target, nil, nil, cache)
	require.NoError(t, err)
	assert.Equal(t, "seeded", v)
}

func TestExecuteNode_UnconnectedAndDanglingInputsAreNil(t *testing.T) {
	sink := node(1, []graph.Socket{in(101, 1), in(102, 1)}, func(ctx context.Context, pc graph.ProcessContext) (any, error) {
		unconnected, err := pc.InputValue(ctx, 101)
		if err != nil {
			return nil, err
		}
		dangling, err := pc.InputValue(ctx, 102)
		if err != nil {
			return nil, err
		}
		return []any{unconnected, dangling}, nil
	})
	conns := []graph.Connection{{FromSocket: 777, ToSocket: 102}}

	v, err := newTestEngine().ExecuteNode(context.Background(), sink, []*graph.Node{sink}, conns, nil)
	require.NoError(t, err)
	assert.Equal(t, []any{nil, nil}, v)
}

func TestExecuteNode_FailurePropagatesAndStaysCached(t *testing.T) {
	var calls atomic.Int32
	boom := errors.New("boom")
	failing := node(1, []graph.Socket{out(101, 1)}, func(ctx context.Context, pc graph.ProcessContext) (any, error) {
		calls.Add(1)
		return nil, boom
	})
	consumer := func(id, socket int) *graph.Node {
		return node(id, []graph.Socket{in(socket, id)}, func(ctx context.Context, pc graph.ProcessContext) (any, error) {
			return pc.InputValue(ctx, socket)
		})
	}
	c1 := consumer(2, 201)
	c2 := consumer(3, 301)
	nodes := []*graph.Node{failing, c1, c2}
	conns := []graph.Connection{{FromSocket: 101, ToSocket: 201}, {FromSocket: 101, ToSocket: 301}}
	e := newTestEngine()
	cache := NewCache()

	_, err1 := e.ExecuteNode(context.Background(), c1, nodes, conns, cache)
	_, err2 := e.ExecuteNode(context.Background(), c2, nodes, conns, cache)
	_, err3 := e.ExecuteNode(context.Background(), failing, nodes, conns, cache)

	for _, err := range []error{err1, err2, err3} {
		require.Error(t, err)
		assert.ErrorIs(t, err, boom)
	}
	assert.Equal(t, int32(1), calls.Load())

	var perr *ProcessingError
	require.ErrorAs(t, err3, &perr)
	assert.Equal(t, 1, perr.NodeID)
	assert.Equal(t, "test", perr.NodeType)
	assert.Equal(t, PhaseProcess, perr.Phase)

	// the consumer's own error names the consumer, the cause names the source
	require.ErrorAs(t, err1, &perr)
	assert.Equal(t, 2, perr.NodeID)
	assert.Equal(t, int64(3), e.Metrics().GetMetrics().TotalErrors)
}

func TestExecuteNode_PanicBecomesError(t *testing.T) {
	n := node(1, nil, func(ctx context.Context, pc graph.ProcessContext) (any, error) {
		panic("kaboom")
	})
	cache := NewCache()

	_, err := newTestEngine().ExecuteNode(context.Background(), n, []*graph.Node{n}, nil, cache)
	var perr *ProcessingError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, PhasePanic, perr.Phase)
	assert.Contains(t, err.Error(), "kaboom")

	f, ok := cache.Get(1)
	require.True(t, ok)
	_, ferr, done := f.Result()
	assert.True(t, done)
	assert.Error(t, ferr)
}

func TestExecuteNode_CycleIsReportedInsteadOfDeadlocking(t *testing.T) {
	passthrough := func(id, inSocket, outSocket int) *graph.Node {
		return node(id, []graph.Socket{in(inSocket, id), out(outSocket, id)}, func(ctx context.Context, pc graph.ProcessContext) (any, error) {
			return pc.InputValue(ctx, inSocket)
		})
	}
	a := passthrough(1, 101, 102)
	b := passthrough(2, 201, 202)
	conns := []graph.Connection{{FromSocket: 102, ToSocket: 201}, {FromSocket: 202, ToSocket: 101}}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := newTestEngine().ExecuteNode(ctx, a, []*graph.Node{a, b}, conns, nil)
	require.Error(t, err)
	assert.True(t, daedaluserrors.IsCycleDetected(err))
	assert.NoError(t, ctx.Err())
}

func TestExecuteNode_AwaitHonoursContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	slow := node(1, nil, func(ctx context.Context, pc graph.ProcessContext) (any, error) {
		<-release
		return nil, nil
	})
	e := newTestEngine()
	cache := NewCache()

	go func() { _, _ = e.ExecuteNode(context.Background(), slow, nil, nil, cache) }()
	require.Eventually(t, func() bool { return cache.Len() == 1 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := e.ExecuteNode(ctx, slow, nil, nil, cache)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestExecuteNode_NilTarget(t *testing.T) {
	_, err := newTestEngine().ExecuteNode(context.Background(), nil, nil, nil, nil)
	assert.True(t, daedaluserrors.IsNotFound(err))
}

func TestExecuteNode_ContextCarriesNodeAndExecutionID(t *testing.T) {
	var seen *graph.Node
	n := node(7, nil, func(ctx context.Context, pc graph.ProcessContext) (any, error) {
		seen = pc.Node()
		return nil, nil
	})
	ctx := WithExecutionID(context.Background(), "exec-1")
	assert.Equal(t, "exec-1", ExecutionID(ctx))
	assert.Empty(t, ExecutionID(context.Background()))

	_, err := newTestEngine().ExecuteNode(ctx, n, []*graph.Node{n}, nil, nil)
	require.NoError(t, err)
	assert.Same(t, n, seen)
}

func TestExecuteAll(t *testing.T) {
	rec := &recorder{}
	a, b, c, conns := chainGraph(rec)
	note := node(4, nil, nil)
	boom := node(5, nil, func(ctx context.Context, pc graph.ProcessContext) (any, error) {
		return nil, errors.New("boom")
	})

	results, err := newTestEngine().ExecuteAll(context.Background(), []*graph.Node{c, note, b, boom, a}, conns)
	require.NoError(t, err)

	require.Len(t, results, 4)
	assert.Equal(t, []int{1, 2, 3}, rec.order())

	byID := make(map[int]Result)
	for _, r := range results {
		byID[r.NodeID] = r
	}
	assert.Equal(t, "a", byID[1].Value)
	assert.Equal(t, "a+b", byID[2].Value)
	assert.Equal(t, "a+b+c", byID[3].Value)
	assert.Error(t, byID[5].Err)
	_, skipped := byID[4]
	assert.False(t, skipped)
}

func TestExecuteAll_IgnoresNilNodes(t *testing.T) {
	// debug logging reports skipped nodes
	e := New(DefaultConfig().WithLogger(zaptest.NewLogger(t)))
	rec := &recorder{}
	a, b, c, conns := chainGraph(rec)

	results, err := e.ExecuteAll(context.Background(), []*graph.Node{nil, a, b, nil, c}, conns)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, []int{1, 2, 3}, rec.order())
	assert.Equal(t, "a+b+c", results[2].Value)
}

func TestExecuteAll_CancelledContext(t *testing.T) {
	rec := &recorder{}
	a, b, c, conns := chainGraph(rec)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := newTestEngine().ExecuteAll(ctx, []*graph.Node{a, b, c}, conns)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, results)
}

func TestSocketValue(t *testing.T) {
	assert.Equal(t, "x", SocketValue(graph.SocketValues{3: "x"}, 3))
	assert.Nil(t, SocketValue(graph.SocketValues{3: "x"}, 4))
	assert.Equal(t, "y", SocketValue(map[int]any{5: "y"}, 5))
	assert.Equal(t, map[string]any{"5": "z"}, SocketValue(map[string]any{"5": "z"}, 5))
	assert.Equal(t, 1.5, SocketValue(1.5, 9))
}
