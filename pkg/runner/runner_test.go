package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wehubfusion/Daedalus/pkg/document"
	daedaluserrors "github.com/wehubfusion/Daedalus/pkg/errors"
	"github.com/wehubfusion/Daedalus/pkg/graph"
	"github.com/wehubfusion/Daedalus/pkg/nodes/all"
	"github.com/wehubfusion/Daedalus/pkg/registry"
	"github.com/wehubfusion/Daedalus/pkg/storage"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type memoryStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
	fail  error
}

func (m *memoryStore) Upload(ctx context.Context, blobPath string, data []byte, _ map[string]string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return "", m.fail
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.blobs == nil {
		m.blobs = make(map[string][]byte)
	}
	m.blobs[blobPath] = data
	return "memory://" + blobPath, nil
}

func (m *memoryStore) Download(_ context.Context, reference string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[reference]
	if !ok {
		return nil, fmt.Errorf("%s not found", reference)
	}
	return data, nil
}

// greetingDocument is text(1) -> strings upper(2), plus an unregistered node 3.
func greetingDocument(t *testing.T, reg *registry.Registry) document.Document {
	t.Helper()

	text, err := reg.MustGetNode("text")
	require.NoError(t, err)
	src := text.Instantiate(1, graph.Position{X: 0})
	require.NoError(t, graph.SetConfigParameter(src, "text", "hello"))

	strs, err := reg.MustGetNode("strings")
	require.NoError(t, err)
	upper := strs.Instantiate(2, graph.Position{X: 100})
	require.NoError(t, graph.SetConfigParameter(upper, "operation", "upper"))

	note := &graph.Node{ID: 3, NodeType: "sticky-note", Position: graph.Position{X: 200}}

	// round-trip through JSON so processes are not carried over
	raw, err := json.Marshal(document.Document{
		Nodes:       []*graph.Node{src, upper, note},
		Connections: []graph.Connection{{FromSocket: 101, ToSocket: 201}},
	})
	require.NoError(t, err)
	doc, err := document.Parse(raw)
	require.NoError(t, err)
	return *doc
}

func newTestService(t *testing.T, cfg Config) *Service {
	t.Helper()
	s, err := NewService(cfg)
	require.NoError(t, err)
	return s
}

func intPtr(v int) *int { return &v }

func TestNewService_RequiresRegistry(t *testing.T) {
	_, err := NewService(Config{})
	assert.Error(t, err)

	s := newTestService(t, Config{Registry: registry.New(nil)})
	assert.Equal(t, DefaultSubject, s.config.Subject)
	assert.Equal(t, DefaultWorkers, s.config.Workers)
	assert.NotNil(t, s.config.Engine)
}

func TestHandle_WholeGraph(t *testing.T) {
	reg := all.NewRegistry(nil)
	s := newTestService(t, DefaultConfig(reg))

	resp := s.Handle(context.Background(), &Request{ExecutionID: "exec-1", Document: greetingDocument(t, reg)})

	assert.False(t, resp.Failed(), resp.Error)
	assert.Equal(t, "exec-1", resp.ExecutionID)
	assert.Equal(t, []string{"sticky-note"}, resp.UnknownNodeTypes)
	require.Len(t, resp.Nodes, 2)
	assert.Equal(t, "hello", resp.Nodes["1"].Result)
	assert.Equal(t, "HELLO", resp.Nodes["2"].Result)
	assert.Empty(t, resp.BlobURL)
}

func TestHandle_Target(t *testing.T) {
	reg := all.NewRegistry(nil)
	s := newTestService(t, DefaultConfig(reg))

	resp := s.Handle(context.Background(), &Request{Document: greetingDocument(t, reg), TargetNodeID: intPtr(2)})
	assert.False(t, resp.Failed(), resp.Error)
	assert.NotEmpty(t, resp.ExecutionID)
	assert.Equal(t, "HELLO", resp.Value)
	assert.Len(t, resp.Nodes, 1)

	var reported []string
	s.config.OnError = func(_ context.Context, executionID string, err error) {
		reported = append(reported, executionID)
	}

	resp = s.Handle(context.Background(), &Request{Document: greetingDocument(t, reg), TargetNodeID: intPtr(3)})
	assert.True(t, resp.Failed())
	assert.Equal(t, daedaluserrors.CodeMissingCapability, resp.ErrorCode)
	assert.Equal(t, storage.StatusFailed, resp.Nodes["3"].Meta.Status)

	resp = s.Handle(context.Background(), &Request{Document: greetingDocument(t, reg), TargetNodeID: intPtr(99)})
	assert.Equal(t, daedaluserrors.CodeNotFound, resp.ErrorCode)
	assert.Empty(t, resp.Nodes)
	assert.Len(t, reported, 2)
}

func TestHandle_Timeout(t *testing.T) {
	reg := all.NewRegistry(nil)
	s := newTestService(t, DefaultConfig(reg).WithRequestTimeout(50*time.Millisecond))

	js, err := reg.MustGetNode("javascript")
	require.NoError(t, err)
	loop := js.Instantiate(1, graph.Position{})
	require.NoError(t, graph.SetConfigParameter(loop, "script", "while (true) {}"))

	resp := s.Handle(context.Background(), &Request{
		Document:     document.Document{Nodes: []*graph.Node{loop}},
		TargetNodeID: intPtr(1),
	})
	assert.True(t, resp.Failed())
	assert.Contains(t, resp.Error, context.DeadlineExceeded.Error())
}

func TestHandle_Export(t *testing.T) {
	reg := all.NewRegistry(nil)
	store := &memoryStore{}
	exporter := storage.NewExporter(store, nil)
	s := newTestService(t, DefaultConfig(reg).WithExporter(exporter))

	resp := s.Handle(context.Background(), &Request{ExecutionID: "exec-9", Document: greetingDocument(t, reg)})
	assert.Equal(t, "memory://exec-9.json", resp.BlobURL)

	rec, err := exporter.Load(context.Background(), "exec-9")
	require.NoError(t, err)
	assert.Equal(t, "HELLO", rec.Nodes["2"].Result)
}

func TestHandle_TimedOutRequestIsExported(t *testing.T) {
	reg := all.NewRegistry(nil)
	store := &memoryStore{}
	exporter := storage.NewExporter(store, nil)

	var reportErr, reportCtxErr error
	s := newTestService(t, DefaultConfig(reg).
		WithRequestTimeout(50*time.Millisecond).
		WithExporter(exporter).
		WithErrorHandler(func(ctx context.Context, _ string, err error) {
			reportErr, reportCtxErr = err, ctx.Err()
		}))

	js, err := reg.MustGetNode("javascript")
	require.NoError(t, err)
	loop := js.Instantiate(1, graph.Position{})
	require.NoError(t, graph.SetConfigParameter(loop, "script", "while (true) {}"))

	resp := s.Handle(context.Background(), &Request{
		ExecutionID:  "exec-slow",
		Document:     document.Document{Nodes: []*graph.Node{loop}},
		TargetNodeID: intPtr(1),
	})
	require.True(t, resp.Failed())
	assert.Equal(t, "memory://exec-slow.json", resp.BlobURL)
	assert.ErrorIs(t, reportErr, context.DeadlineExceeded)
	assert.NoError(t, reportCtxErr)

	rec, err := exporter.Load(context.Background(), "exec-slow")
	require.NoError(t, err)
	assert.Equal(t, "exec-slow", rec.ExecutionID)
}

func TestHandle_ExportFailureIsLogged(t *testing.T) {
	reg := all.NewRegistry(nil)
	core, logs := observer.New(zap.InfoLevel)
	store := &memoryStore{fail: errors.New("storage down")}
	cfg := DefaultConfig(reg).WithExporter(storage.NewExporter(store, nil)).WithLogger(zap.New(core))
	s := newTestService(t, cfg)

	resp := s.Handle(context.Background(), &Request{Document: greetingDocument(t, reg)})
	assert.False(t, resp.Failed())
	assert.Empty(t, resp.BlobURL)
	assert.Equal(t, 1, logs.FilterMessage("Failed to export execution record").Len())
}

func TestHandleData(t *testing.T) {
	reg := all.NewRegistry(nil)
	s := newTestService(t, DefaultConfig(reg))

	var resp Response
	require.NoError(t, json.Unmarshal(s.HandleData(context.Background(), []byte("{not json")), &resp))
	assert.Equal(t, daedaluserrors.CodeInvalidDocument, resp.ErrorCode)
	assert.NotEmpty(t, resp.ExecutionID)

	req, err := json.Marshal(Request{ExecutionID: "e", Document: greetingDocument(t, reg), TargetNodeID: intPtr(2)})
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(s.HandleData(context.Background(), req), &resp))
	assert.Equal(t, "HELLO", resp.Value)

	dup := []byte(`{"document": {"nodes": [{"id": 1}, {"id": 1}]}}`)
	resp = Response{}
	require.NoError(t, json.Unmarshal(s.HandleData(context.Background(), dup), &resp))
	assert.Equal(t, daedaluserrors.CodeInvalidDocument, resp.ErrorCode)
}

func TestDispatch_BoundsConcurrency(t *testing.T) {
	reg := registry.New(nil)
	var running, peak atomic.Int32
	require.NoError(t, reg.RegisterNode(&graph.Node{
		NodeType: "slow",
		Process: graph.ProcessFunc(func(ctx context.Context, pc graph.ProcessContext) (any, error) {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			running.Add(-1)
			return "ok", nil
		}),
	}))
	s := newTestService(t, DefaultConfig(reg).WithWorkers(2))

	req, err := json.Marshal(Request{
		Document:     document.Document{Nodes: []*graph.Node{{ID: 1, NodeType: "slow"}}},
		TargetNodeID: intPtr(1),
	})
	require.NoError(t, err)

	var mu sync.Mutex
	var replies []Response
	respond := func(data []byte) error {
		var r Response
		if err := json.Unmarshal(data, &r); err != nil {
			return err
		}
		mu.Lock()
		replies = append(replies, r)
		mu.Unlock()
		return nil
	}

	header := nats.Header{}
	header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	for i := 0; i < 6; i++ {
		s.dispatch(context.Background(), req, header, respond)
	}
	s.wg.Wait()

	require.Len(t, replies, 6)
	for _, r := range replies {
		assert.Equal(t, "ok", r.Value)
	}
	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.Equal(t, int64(6), s.limit.Stats().Acquired)
}

func TestDispatch_CancelledContextDropsRequest(t *testing.T) {
	s := newTestService(t, DefaultConfig(registry.New(nil)).WithWorkers(1))
	require.NoError(t, s.limit.Acquire(context.Background()))
	defer s.limit.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	s.dispatch(ctx, []byte(`{}`), nil, func([]byte) error {
		called = true
		return nil
	})
	s.wg.Wait()
	assert.False(t, called)
}

func TestHandler_ExecutesMessagesAfterCancellation(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	s := newTestService(t, DefaultConfig(registry.New(nil)).WithLogger(zap.New(core)))

	ctx, cancel := context.WithCancel(context.Background())
	handle := s.handler(ctx)
	cancel()

	// a message delivered while draining still runs; it has no reply subject
	handle(&nats.Msg{Subject: DefaultSubject, Data: []byte(`{"document": {"nodes": []}}`)})
	s.wg.Wait()

	assert.Equal(t, int64(1), s.limit.Stats().Acquired)
	assert.Equal(t, 0, logs.FilterMessage("Dropped request during shutdown").Len())
	assert.Equal(t, 1, logs.FilterMessage("Failed to send reply").Len())
}

func TestWaitUntil(t *testing.T) {
	var calls int
	assert.True(t, waitUntil(func() bool {
		calls++
		return calls == 3
	}, time.Second))
	assert.Equal(t, 3, calls)

	assert.False(t, waitUntil(func() bool { return false }, 30*time.Millisecond))
}

func TestRun_RequiresConnection(t *testing.T) {
	s := newTestService(t, DefaultConfig(registry.New(nil)))
	assert.Error(t, s.Run(context.Background(), nil))
}

func TestNewClient(t *testing.T) {
	_, err := NewClient(nil, "")
	assert.Error(t, err)
}
