// Package orchestrator drives the execution of a flow build against a
// remote engine: it resolves the execution order, obtains the event
// stream through one of the delivery strategies (with transparent
// fallback to polling), applies event effects to the status table and
// enforces the single-active-attempt rule per flow session.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/langflow-ai/flowbuild/internal/logging"
	"github.com/langflow-ai/flowbuild/pkg/adapters/memory"
	"github.com/langflow-ai/flowbuild/pkg/domain"
	"github.com/langflow-ai/flowbuild/pkg/ports"
	"github.com/langflow-ai/flowbuild/pkg/status"
)

const (
	// DefaultMinVertexDuration smooths per-vertex completion for
	// observers: a vertex finishing faster than this is reported only
	// after the remaining time has elapsed.
	DefaultMinVertexDuration = 300 * time.Millisecond

	// DefaultPollInterval is the backoff between polls when the
	// events endpoint returns an empty buffer.
	DefaultPollInterval = 500 * time.Millisecond
)

// PreBuildValidator inspects the sorted vertex ids before any vertex
// runs. A non-nil error aborts the whole attempt.
type PreBuildValidator func(ids []string) error

// BuildSpec describes one build request.
type BuildSpec struct {
	FlowID string
	// SessionID scopes retained results and conversational state.
	// Defaults to FlowID.
	SessionID  string
	InputValue string
	Files      []string
	// Data overrides the stored flow with explicit nodes and edges.
	Data          *domain.FlowData
	StartVertexID string
	StopVertexID  string
	LogBuilds     bool
	// Hooks receives the attempt's observer callbacks.
	Hooks *domain.BuildHooks
}

func (s *BuildSpec) session() string {
	if s.SessionID != "" {
		return s.SessionID
	}
	return s.FlowID
}

func (s *BuildSpec) inputs() ports.BuildInputs {
	return ports.BuildInputs{InputValue: s.InputValue, Session: s.session()}
}

// Orchestrator coordinates build attempts for flows against one
// engine. Safe for concurrent use; concurrent attempts for distinct
// flows may run in parallel, while a second attempt for the same flow
// is rejected with domain.ErrBuildInProgress.
type Orchestrator struct {
	api    ports.EngineAPI
	store  ports.ResultStore
	logger *slog.Logger

	minVertexDuration time.Duration
	pollInterval      time.Duration
	forcedDelivery    domain.EventDeliveryType
	validator         PreBuildValidator

	mu     sync.Mutex
	active map[string]*Attempt
}

// Option configures the Orchestrator.
type Option func(*Orchestrator)

// WithLogger configures a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithResultStore replaces the default in-memory result store.
func WithResultStore(store ports.ResultStore) Option {
	return func(o *Orchestrator) { o.store = store }
}

// WithMinVertexDuration overrides the minimum visible build duration.
// Zero disables the smoothing.
func WithMinVertexDuration(d time.Duration) Option {
	return func(o *Orchestrator) { o.minVertexDuration = d }
}

// WithPollInterval overrides the polling backoff interval.
func WithPollInterval(d time.Duration) Option {
	return func(o *Orchestrator) { o.pollInterval = d }
}

// WithDelivery forces one delivery strategy instead of the default
// fallback chain. Polling remains the fallback unless polling itself
// was forced.
func WithDelivery(d domain.EventDeliveryType) Option {
	return func(o *Orchestrator) { o.forcedDelivery = d }
}

// WithPreBuildValidator installs a validator over the sorted vertex
// set. Rejection aborts the attempt before any vertex runs.
func WithPreBuildValidator(v PreBuildValidator) Option {
	return func(o *Orchestrator) { o.validator = v }
}

// New creates an Orchestrator for the given engine API.
func New(api ports.EngineAPI, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		api:               api,
		store:             memory.NewStore(),
		logger:            logging.NewNop(),
		minVertexDuration: DefaultMinVertexDuration,
		pollInterval:      DefaultPollInterval,
		active:            make(map[string]*Attempt),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Results exposes the session result store.
func (o *Orchestrator) Results() ports.ResultStore { return o.store }

// IsBuilding reports whether the flow has an active attempt.
func (o *Orchestrator) IsBuilding(flowID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active[flowID] != nil
}

// Active returns the outstanding attempt for a flow, or nil.
func (o *Orchestrator) Active(flowID string) *Attempt {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active[flowID]
}

// ResolveOrder asks the planner for the layered execution order of a
// flow and marks every vertex in scope TO_BUILD on the given table.
// Failures wrap domain.ErrInvalidGraph and must not be retried: the
// graph itself is presumed broken.
func (o *Orchestrator) ResolveOrder(ctx context.Context, table *status.Table, req ports.OrderRequest) (*domain.ExecutionOrder, error) {
	order, err := o.api.SortVertices(ctx, req)
	if err != nil {
		return nil, err
	}
	for _, layer := range order.Layers {
		table.Declare(layer...)
	}
	table.MarkAll(order.VerticesToRun, domain.StatusToBuild)
	o.logger.Debug("order resolved",
		"flow_id", req.FlowID,
		"run_id", order.RunID,
		"layers", len(order.Layers),
		"to_run", len(order.VerticesToRun),
	)
	return order, nil
}

// register enforces the single-active-attempt invariant. The check
// and the set happen under one lock acquisition, so two attempts can
// never both pass the check.
func (o *Orchestrator) register(ctx context.Context, spec BuildSpec) (*Attempt, context.Context, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active[spec.FlowID] != nil {
		return nil, nil, fmt.Errorf("%w: flow %s", domain.ErrBuildInProgress, spec.FlowID)
	}
	runCtx, cancel := context.WithCancel(ctx)
	a := &Attempt{
		flowID:    spec.FlowID,
		sessionID: spec.session(),
		table:     status.New(),
		sink:      newMessageSink(),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	o.active[spec.FlowID] = a
	return a, runCtx, nil
}

func (o *Orchestrator) release(a *Attempt) {
	o.mu.Lock()
	if o.active[a.flowID] == a {
		delete(o.active, a.flowID)
	}
	o.mu.Unlock()
}

// StartBuild starts an event-driven build attempt and returns its
// handle immediately. Progress is observed through the spec's hooks
// and the attempt's status table; Wait blocks for the outcome.
func (o *Orchestrator) StartBuild(ctx context.Context, spec BuildSpec) (*Attempt, error) {
	a, runCtx, err := o.register(ctx, spec)
	if err != nil {
		return nil, err
	}
	r := newRunner(o, a, spec)
	go func() {
		defer o.release(a)
		r.runEventDriven(runCtx)
	}()
	return a, nil
}

// StartEventlessBuild starts a build in the legacy event-less mode:
// the order is resolved up front and every vertex is built through a
// dedicated per-vertex request, layer by layer.
func (o *Orchestrator) StartEventlessBuild(ctx context.Context, spec BuildSpec) (*Attempt, error) {
	a, runCtx, err := o.register(ctx, spec)
	if err != nil {
		return nil, err
	}
	r := newRunner(o, a, spec)
	go func() {
		defer o.release(a)
		r.runEventless(runCtx)
	}()
	return a, nil
}
