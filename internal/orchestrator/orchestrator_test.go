package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langflow-ai/flowbuild/pkg/domain"
	"github.com/langflow-ai/flowbuild/pkg/ports"
)

// fakeEngine implements ports.EngineAPI with overridable behaviors.
type fakeEngine struct {
	mu sync.Mutex

	sortFn        func(ctx context.Context, req ports.OrderRequest) (*domain.ExecutionOrder, error)
	streamFn      func(ctx context.Context, req ports.BuildRequest) (io.ReadCloser, error)
	startJobFn    func(ctx context.Context, req ports.BuildRequest, d domain.EventDeliveryType) (string, error)
	jobStreamFn   func(ctx context.Context, jobID string) (io.ReadCloser, error)
	pollFn        func(ctx context.Context, jobID string) ([]domain.Event, error)
	buildVertexFn func(ctx context.Context, req ports.VertexBuildRequest) (*domain.VertexBuildResult, error)
	cancelFn      func(ctx context.Context, jobID string) error

	streamCalls int
	cancelCalls int
}

func (f *fakeEngine) SortVertices(ctx context.Context, req ports.OrderRequest) (*domain.ExecutionOrder, error) {
	if f.sortFn == nil {
		return nil, errors.New("sort not configured")
	}
	return f.sortFn(ctx, req)
}

func (f *fakeEngine) StartBuildStream(ctx context.Context, req ports.BuildRequest) (io.ReadCloser, error) {
	f.mu.Lock()
	f.streamCalls++
	f.mu.Unlock()
	if f.streamFn == nil {
		return nil, domain.ErrDeliveryUnsupported
	}
	return f.streamFn(ctx, req)
}

func (f *fakeEngine) StartBuildJob(ctx context.Context, req ports.BuildRequest, d domain.EventDeliveryType) (string, error) {
	if f.startJobFn == nil {
		return "", domain.ErrDeliveryUnsupported
	}
	return f.startJobFn(ctx, req, d)
}

func (f *fakeEngine) StreamEvents(ctx context.Context, jobID string) (io.ReadCloser, error) {
	if f.jobStreamFn == nil {
		return nil, domain.ErrDeliveryUnsupported
	}
	return f.jobStreamFn(ctx, jobID)
}

func (f *fakeEngine) PollEvents(ctx context.Context, jobID string) ([]domain.Event, error) {
	if f.pollFn == nil {
		return nil, errors.New("poll not configured")
	}
	return f.pollFn(ctx, jobID)
}

func (f *fakeEngine) BuildVertex(ctx context.Context, req ports.VertexBuildRequest) (*domain.VertexBuildResult, error) {
	if f.buildVertexFn == nil {
		return nil, errors.New("build vertex not configured")
	}
	return f.buildVertexFn(ctx, req)
}

func (f *fakeEngine) CancelBuild(ctx context.Context, jobID string) error {
	f.mu.Lock()
	f.cancelCalls++
	f.mu.Unlock()
	if f.cancelFn == nil {
		return nil
	}
	return f.cancelFn(ctx, jobID)
}

func (f *fakeEngine) streamCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.streamCalls
}

func (f *fakeEngine) cancelCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancelCalls
}

func ndjson(lines ...string) io.ReadCloser {
	return io.NopCloser(strings.NewReader(strings.Join(lines, "\n") + "\n"))
}

func sortedLine(ids, toRun []string) string {
	return fmt.Sprintf(`{"event":"vertices_sorted","data":{"ids":[%s],"to_run":[%s]}}`,
		quoteJoin(ids), quoteJoin(toRun))
}

func endVertexLine(id string, valid bool, next, inactivated []string) string {
	return fmt.Sprintf(`{"event":"end_vertex","data":{"build_data":{"id":%q,"valid":%t,"next_vertices_ids":[%s],"inactivated_vertices":[%s]}}}`,
		id, valid, quoteJoin(next), quoteJoin(inactivated))
}

func invalidVertexLine(id, errText string) string {
	return fmt.Sprintf(`{"event":"end_vertex","data":{"build_data":{"id":%q,"valid":false,"data":{"outputs":{"out":{"message":{"errorMessage":%q},"type":"error"}}}}}}`,
		id, errText)
}

func quoteJoin(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	return strings.Join(quoted, ",")
}

// recorder captures hook invocations for assertions.
type recorder struct {
	mu       sync.Mutex
	ordered  *domain.VerticesSortedEvent
	done     []domain.VertexOutcome
	errors   []*domain.BuildError
	summary  *domain.BuildSummary
	stopped  int
	messages []domain.Message
	tokens   []string
}

func (r *recorder) hooks() *domain.BuildHooks {
	return &domain.BuildHooks{
		OnOrdered: func(_ context.Context, ev *domain.VerticesSortedEvent) {
			r.mu.Lock()
			r.ordered = ev
			r.mu.Unlock()
		},
		OnVertexDone: func(_ context.Context, out domain.VertexOutcome) {
			r.mu.Lock()
			r.done = append(r.done, out)
			r.mu.Unlock()
		},
		OnError: func(_ context.Context, err *domain.BuildError) {
			r.mu.Lock()
			r.errors = append(r.errors, err)
			r.mu.Unlock()
		},
		OnComplete: func(_ context.Context, s *domain.BuildSummary) {
			r.mu.Lock()
			r.summary = s
			r.mu.Unlock()
		},
		OnStopped: func(context.Context) {
			r.mu.Lock()
			r.stopped++
			r.mu.Unlock()
		},
		OnMessage: func(_ context.Context, msg *domain.Message) {
			r.mu.Lock()
			r.messages = append(r.messages, *msg)
			r.mu.Unlock()
		},
		OnToken: func(_ context.Context, _, chunk string) {
			r.mu.Lock()
			r.tokens = append(r.tokens, chunk)
			r.mu.Unlock()
		},
	}
}

func (r *recorder) doneIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, len(r.done))
	for i, out := range r.done {
		ids[i] = out.VertexID()
	}
	return ids
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestStartBuildDirectLinearFlow(t *testing.T) {
	engine := &fakeEngine{
		streamFn: func(context.Context, ports.BuildRequest) (io.ReadCloser, error) {
			return ndjson(
				sortedLine([]string{"a", "b", "c"}, []string{"a", "b", "c"}),
				endVertexLine("a", true, []string{"b"}, nil),
				endVertexLine("b", true, []string{"c"}, nil),
				endVertexLine("c", true, nil, nil),
				`{"event":"end","data":{}}`,
			), nil
		},
	}
	rec := &recorder{}
	orch := New(engine, WithMinVertexDuration(0))

	attempt, err := orch.StartBuild(context.Background(), BuildSpec{FlowID: "flow-1", Hooks: rec.hooks()})
	require.NoError(t, err)

	summary, err := attempt.Wait(waitCtx(t))
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.True(t, summary.Valid)
	assert.Equal(t, 3, summary.Built)
	assert.Equal(t, 0, summary.Failed)

	require.NotNil(t, rec.ordered)
	assert.Equal(t, []string{"a", "b", "c"}, rec.ordered.IDs)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, rec.doneIDs())

	table := attempt.Status()
	for _, id := range []string{"a", "b", "c"} {
		assert.Equal(t, domain.StatusBuilt, table.Get(id), "vertex %s", id)
	}
	assert.False(t, orch.IsBuilding("flow-1"))
}

func TestStartBuildInvalidVertex(t *testing.T) {
	engine := &fakeEngine{
		streamFn: func(context.Context, ports.BuildRequest) (io.ReadCloser, error) {
			return ndjson(
				sortedLine([]string{"a", "b"}, []string{"a", "b"}),
				endVertexLine("a", true, []string{"b"}, nil),
				invalidVertexLine("b", "boom"),
				`{"event":"end","data":{}}`,
			), nil
		},
	}
	rec := &recorder{}
	orch := New(engine, WithMinVertexDuration(0))

	attempt, err := orch.StartBuild(context.Background(), BuildSpec{FlowID: "flow-1", Hooks: rec.hooks()})
	require.NoError(t, err)

	summary, err := attempt.Wait(waitCtx(t))
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.False(t, summary.Valid)
	assert.Equal(t, 1, summary.Built)
	assert.Equal(t, 1, summary.Failed)

	assert.Equal(t, domain.StatusBuilt, attempt.Status().Get("a"))
	assert.Equal(t, domain.StatusError, attempt.Status().Get("b"))

	require.Len(t, rec.errors, 1)
	assert.Equal(t, "b", rec.errors[0].Source)
	assert.Contains(t, rec.errors[0].Message.Text, "boom")

	var errored *domain.Errored
	for _, out := range rec.done {
		if e, ok := out.(domain.Errored); ok {
			errored = &e
		}
	}
	require.NotNil(t, errored)
	assert.Equal(t, []string{"boom"}, errored.Messages)
}

func TestStartBuildPrunedBranch(t *testing.T) {
	engine := &fakeEngine{
		streamFn: func(context.Context, ports.BuildRequest) (io.ReadCloser, error) {
			return ndjson(
				sortedLine([]string{"cond", "left", "right"}, []string{"cond", "left", "right"}),
				endVertexLine("cond", true, []string{"left"}, []string{"right"}),
				endVertexLine("left", true, nil, nil),
				`{"event":"end","data":{}}`,
			), nil
		},
	}
	rec := &recorder{}
	orch := New(engine, WithMinVertexDuration(0))

	attempt, err := orch.StartBuild(context.Background(), BuildSpec{FlowID: "flow-1", Hooks: rec.hooks()})
	require.NoError(t, err)

	summary, err := attempt.Wait(waitCtx(t))
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.True(t, summary.Valid, "a pruned branch must not invalidate the build")
	assert.Equal(t, 2, summary.Built)
	assert.Equal(t, 1, summary.Inactive)
	assert.Equal(t, domain.StatusInactive, attempt.Status().Get("right"))
}

func TestStartBuildRejectsSecondAttempt(t *testing.T) {
	pr, pw := io.Pipe()
	engine := &fakeEngine{
		streamFn: func(_ context.Context, req ports.BuildRequest) (io.ReadCloser, error) {
			if req.FlowID != "flow-1" {
				return ndjson(
					sortedLine([]string{"x"}, []string{"x"}),
					endVertexLine("x", true, nil, nil),
					`{"event":"end","data":{}}`,
				), nil
			}
			return pr, nil
		},
	}
	orch := New(engine, WithMinVertexDuration(0))

	first, err := orch.StartBuild(context.Background(), BuildSpec{FlowID: "flow-1"})
	require.NoError(t, err)
	assert.True(t, orch.IsBuilding("flow-1"))

	_, err = orch.StartBuild(context.Background(), BuildSpec{FlowID: "flow-1"})
	require.ErrorIs(t, err, domain.ErrBuildInProgress)

	// A distinct flow is unaffected by the guard.
	other, err := orch.StartBuild(context.Background(), BuildSpec{FlowID: "flow-2"})
	require.NoError(t, err)
	other.Cancel()

	go func() {
		_, _ = io.WriteString(pw, sortedLine([]string{"a"}, []string{"a"})+"\n")
		_, _ = io.WriteString(pw, endVertexLine("a", true, nil, nil)+"\n")
		_, _ = io.WriteString(pw, `{"event":"end","data":{}}`+"\n")
		_ = pw.Close()
	}()

	_, err = first.Wait(waitCtx(t))
	require.NoError(t, err)
	assert.False(t, orch.IsBuilding("flow-1"))

	// Once released, the same flow accepts a fresh attempt.
	engine.streamFn = func(context.Context, ports.BuildRequest) (io.ReadCloser, error) {
		return ndjson(
			sortedLine([]string{"a"}, []string{"a"}),
			endVertexLine("a", true, nil, nil),
			`{"event":"end","data":{}}`,
		), nil
	}
	again, err := orch.StartBuild(context.Background(), BuildSpec{FlowID: "flow-1"})
	require.NoError(t, err)
	_, err = again.Wait(waitCtx(t))
	require.NoError(t, err)
}

func TestStartBuildFallsBackToPolling(t *testing.T) {
	var polled int
	engine := &fakeEngine{
		startJobFn: func(_ context.Context, _ ports.BuildRequest, d domain.EventDeliveryType) (string, error) {
			if d == domain.DeliveryStreaming {
				return "", domain.ErrDeliveryUnsupported
			}
			return "job-1", nil
		},
		pollFn: func(_ context.Context, jobID string) ([]domain.Event, error) {
			polled++
			if polled == 1 {
				// Empty poll: back off and retry.
				return nil, nil
			}
			return []domain.Event{
				domain.VerticesSortedEvent{IDs: []string{"a"}, ToRun: []string{"a"}},
				domain.EndVertexEvent{Result: &domain.VertexBuildResult{ID: "a", Valid: true}},
				domain.EndEvent{},
			}, nil
		},
	}
	rec := &recorder{}
	orch := New(engine, WithMinVertexDuration(0), WithPollInterval(time.Millisecond))

	attempt, err := orch.StartBuild(context.Background(), BuildSpec{FlowID: "flow-1", Hooks: rec.hooks()})
	require.NoError(t, err)

	summary, err := attempt.Wait(waitCtx(t))
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.True(t, summary.Valid)
	assert.Equal(t, 1, engine.streamCallCount(), "direct tried exactly once before falling back")
	assert.GreaterOrEqual(t, polled, 2)
	assert.Equal(t, "job-1", attempt.RunID())
}

func TestStartBuildEngineUnavailable(t *testing.T) {
	engine := &fakeEngine{
		pollFn: func(context.Context, string) ([]domain.Event, error) {
			return nil, errors.New("connection refused")
		},
		startJobFn: func(_ context.Context, _ ports.BuildRequest, d domain.EventDeliveryType) (string, error) {
			if d == domain.DeliveryPolling {
				return "job-1", nil
			}
			return "", domain.ErrDeliveryUnsupported
		},
	}
	orch := New(engine, WithMinVertexDuration(0), WithPollInterval(time.Millisecond))

	attempt, err := orch.StartBuild(context.Background(), BuildSpec{FlowID: "flow-1"})
	require.NoError(t, err)

	_, err = attempt.Wait(waitCtx(t))
	require.ErrorIs(t, err, domain.ErrEngineUnavailable)
}

func TestStartBuildPreBuildRejection(t *testing.T) {
	engine := &fakeEngine{
		streamFn: func(context.Context, ports.BuildRequest) (io.ReadCloser, error) {
			return ndjson(
				sortedLine([]string{"a", "forbidden"}, []string{"a", "forbidden"}),
				`{"event":"end","data":{}}`,
			), nil
		},
	}
	orch := New(engine,
		WithMinVertexDuration(0),
		WithPreBuildValidator(func(ids []string) error {
			for _, id := range ids {
				if id == "forbidden" {
					return errors.New("component not allowed")
				}
			}
			return nil
		}),
	)

	attempt, err := orch.StartBuild(context.Background(), BuildSpec{FlowID: "flow-1"})
	require.NoError(t, err)

	_, err = attempt.Wait(waitCtx(t))
	require.ErrorIs(t, err, domain.ErrPreBuildRejected)
	assert.Equal(t, 1, engine.streamCallCount(), "rejection must not trigger delivery fallback")
}

func TestCancelStopsOnceAndNotifiesEngine(t *testing.T) {
	cancelled := make(chan string, 1)
	engine := &fakeEngine{
		startJobFn: func(context.Context, ports.BuildRequest, domain.EventDeliveryType) (string, error) {
			return "job-9", nil
		},
		pollFn: func(ctx context.Context, _ string) ([]domain.Event, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
		cancelFn: func(_ context.Context, jobID string) error {
			cancelled <- jobID
			return nil
		},
	}
	rec := &recorder{}
	orch := New(engine, WithDelivery(domain.DeliveryPolling), WithMinVertexDuration(0))

	attempt, err := orch.StartBuild(context.Background(), BuildSpec{FlowID: "flow-1", Hooks: rec.hooks()})
	require.NoError(t, err)

	// Give the runner a moment to obtain the job id.
	require.Eventually(t, func() bool { return attempt.RunID() == "job-9" },
		2*time.Second, 5*time.Millisecond)

	attempt.Cancel()
	attempt.Cancel()

	summary, err := attempt.Wait(waitCtx(t))
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, summary)
	assert.True(t, attempt.Cancelled())

	select {
	case jobID := <-cancelled:
		assert.Equal(t, "job-9", jobID)
	case <-time.After(2 * time.Second):
		t.Fatal("engine was never asked to cancel the job")
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, 1, rec.stopped, "stopped notification fires exactly once")
	assert.Nil(t, rec.summary, "a cancelled attempt never completes")
}

func TestMessagesAndTokens(t *testing.T) {
	engine := &fakeEngine{
		streamFn: func(context.Context, ports.BuildRequest) (io.ReadCloser, error) {
			return ndjson(
				sortedLine([]string{"a"}, []string{"a"}),
				`{"event":"add_message","data":{"id":"m1","text":"","sender":"Machine"}}`,
				`{"event":"token","data":{"id":"m1","chunk":"Hel"}}`,
				`{"event":"token","data":{"id":"m1","chunk":"lo"}}`,
				endVertexLine("a", true, nil, nil),
				`{"event":"end","data":{}}`,
			), nil
		},
	}
	rec := &recorder{}
	orch := New(engine, WithMinVertexDuration(0))

	attempt, err := orch.StartBuild(context.Background(), BuildSpec{FlowID: "flow-1", Hooks: rec.hooks()})
	require.NoError(t, err)
	_, err = attempt.Wait(waitCtx(t))
	require.NoError(t, err)

	msgs := attempt.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "Hello", msgs[0].Text)
	assert.Equal(t, []string{"Hel", "lo"}, rec.tokens)
}

func TestResultsRetainedPerSession(t *testing.T) {
	engine := &fakeEngine{
		streamFn: func(context.Context, ports.BuildRequest) (io.ReadCloser, error) {
			return ndjson(
				sortedLine([]string{"a"}, []string{"a"}),
				endVertexLine("a", true, nil, nil),
				`{"event":"end","data":{}}`,
			), nil
		},
	}
	orch := New(engine, WithMinVertexDuration(0))

	attempt, err := orch.StartBuild(context.Background(), BuildSpec{
		FlowID:    "flow-1",
		SessionID: "session-7",
	})
	require.NoError(t, err)
	_, err = attempt.Wait(waitCtx(t))
	require.NoError(t, err)

	got, err := orch.Results().Get(context.Background(), "session-7", "a")
	require.NoError(t, err)
	assert.Equal(t, "a", got.ID)
	assert.True(t, got.Valid)

	_, err = orch.Results().Get(context.Background(), "flow-1", "a")
	require.ErrorIs(t, err, domain.ErrResultNotFound)
}

func TestMinVisibleDurationDelaysCompletion(t *testing.T) {
	engine := &fakeEngine{
		streamFn: func(context.Context, ports.BuildRequest) (io.ReadCloser, error) {
			return ndjson(
				sortedLine([]string{"a"}, []string{"a"}),
				endVertexLine("a", true, nil, nil),
				`{"event":"end","data":{}}`,
			), nil
		},
	}
	orch := New(engine, WithMinVertexDuration(50*time.Millisecond))

	start := time.Now()
	attempt, err := orch.StartBuild(context.Background(), BuildSpec{FlowID: "flow-1"})
	require.NoError(t, err)
	_, err = attempt.Wait(waitCtx(t))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestEventlessBuildLayers(t *testing.T) {
	var mu sync.Mutex
	var built []string
	engine := &fakeEngine{
		sortFn: func(context.Context, ports.OrderRequest) (*domain.ExecutionOrder, error) {
			return &domain.ExecutionOrder{
				RunID:         "run-42",
				Layers:        [][]string{{"a"}, {"b", "c"}},
				VerticesToRun: []string{"a", "b", "c"},
			}, nil
		},
		buildVertexFn: func(_ context.Context, req ports.VertexBuildRequest) (*domain.VertexBuildResult, error) {
			mu.Lock()
			built = append(built, req.VertexID)
			mu.Unlock()
			return &domain.VertexBuildResult{ID: req.VertexID, Valid: true}, nil
		},
	}
	rec := &recorder{}
	orch := New(engine, WithMinVertexDuration(0))

	attempt, err := orch.StartEventlessBuild(context.Background(), BuildSpec{FlowID: "flow-1", Hooks: rec.hooks()})
	require.NoError(t, err)

	summary, err := attempt.Wait(waitCtx(t))
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.True(t, summary.Valid)
	assert.Equal(t, 3, summary.Built)
	assert.Equal(t, "run-42", summary.RunID)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, built, 3)
	assert.Equal(t, "a", built[0], "layer one runs before layer two")
	assert.ElementsMatch(t, []string{"b", "c"}, built[1:])
}

func TestEventlessBuildStopsAfterFailure(t *testing.T) {
	var mu sync.Mutex
	var built []string
	engine := &fakeEngine{
		sortFn: func(context.Context, ports.OrderRequest) (*domain.ExecutionOrder, error) {
			return &domain.ExecutionOrder{
				RunID:         "run-1",
				Layers:        [][]string{{"a"}, {"b"}, {"c"}},
				VerticesToRun: []string{"a", "b", "c"},
			}, nil
		},
		buildVertexFn: func(_ context.Context, req ports.VertexBuildRequest) (*domain.VertexBuildResult, error) {
			mu.Lock()
			built = append(built, req.VertexID)
			mu.Unlock()
			if req.VertexID == "b" {
				return &domain.VertexBuildResult{
					ID: "b",
					Outputs: map[string][]domain.OutputLog{
						"out": {{Message: map[string]any{"errorMessage": "bad input"}, Type: "error"}},
					},
				}, nil
			}
			return &domain.VertexBuildResult{ID: req.VertexID, Valid: true}, nil
		},
	}
	orch := New(engine, WithMinVertexDuration(0))

	attempt, err := orch.StartEventlessBuild(context.Background(), BuildSpec{FlowID: "flow-1"})
	require.NoError(t, err)

	summary, err := attempt.Wait(waitCtx(t))
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.False(t, summary.Valid)

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{"a", "b"}, built, "downstream layers do not run after a failure")
	assert.Equal(t, domain.StatusError, attempt.Status().Get("b"))
	assert.Equal(t, domain.StatusToBuild, attempt.Status().Get("c"))
}

func TestEventlessBuildSkipsOutOfScope(t *testing.T) {
	engine := &fakeEngine{
		sortFn: func(context.Context, ports.OrderRequest) (*domain.ExecutionOrder, error) {
			return &domain.ExecutionOrder{
				RunID:         "run-1",
				Layers:        [][]string{{"a", "side"}},
				VerticesToRun: []string{"a"},
			}, nil
		},
		buildVertexFn: func(_ context.Context, req ports.VertexBuildRequest) (*domain.VertexBuildResult, error) {
			if req.VertexID == "side" {
				return nil, errors.New("out-of-scope vertex must not be requested")
			}
			return &domain.VertexBuildResult{ID: req.VertexID, Valid: true}, nil
		},
	}
	orch := New(engine, WithMinVertexDuration(0))

	attempt, err := orch.StartEventlessBuild(context.Background(), BuildSpec{FlowID: "flow-1"})
	require.NoError(t, err)

	summary, err := attempt.Wait(waitCtx(t))
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.True(t, summary.Valid)
	assert.Equal(t, 1, summary.Inactive)
	assert.Equal(t, domain.StatusInactive, attempt.Status().Get("side"))
}
