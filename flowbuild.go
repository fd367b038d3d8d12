package flowbuild

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/langflow-ai/flowbuild/internal/orchestrator"
	"github.com/langflow-ai/flowbuild/pkg/adapters/api"
	"github.com/langflow-ai/flowbuild/pkg/domain"
	"github.com/langflow-ai/flowbuild/pkg/observability"
	"github.com/langflow-ai/flowbuild/pkg/ports"
)

// BuildSpec describes one build request. See the orchestrator package
// for field documentation.
type BuildSpec = orchestrator.BuildSpec

// Attempt is the handle of one in-flight build.
type Attempt = orchestrator.Attempt

// Client orchestrates flow builds against one remote engine.
type Client struct {
	api     *api.Client
	orch    *orchestrator.Orchestrator
	metrics *observability.Metrics
}

type options struct {
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *observability.Metrics
	orch       []orchestrator.Option
}

// Option configures the Client.
type Option func(*options)

// WithAPIKey authenticates every engine request.
func WithAPIKey(key string) Option {
	return func(o *options) { o.apiKey = key }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(o *options) { o.httpClient = h }
}

// WithLogger configures a structured logger for the client and the
// orchestrator.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
		o.orch = append(o.orch, orchestrator.WithLogger(logger))
	}
}

// WithDelivery forces one event delivery strategy.
func WithDelivery(d domain.EventDeliveryType) Option {
	return func(o *options) { o.orch = append(o.orch, orchestrator.WithDelivery(d)) }
}

// WithResultStore replaces the default in-memory result store.
func WithResultStore(store ports.ResultStore) Option {
	return func(o *options) { o.orch = append(o.orch, orchestrator.WithResultStore(store)) }
}

// WithMinVertexDuration overrides the minimum visible build duration.
func WithMinVertexDuration(d time.Duration) Option {
	return func(o *options) { o.orch = append(o.orch, orchestrator.WithMinVertexDuration(d)) }
}

// WithPollInterval overrides the polling backoff interval.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) { o.orch = append(o.orch, orchestrator.WithPollInterval(d)) }
}

// WithPreBuildValidator installs a validator over the sorted vertex
// set of every build.
func WithPreBuildValidator(v orchestrator.PreBuildValidator) Option {
	return func(o *options) { o.orch = append(o.orch, orchestrator.WithPreBuildValidator(v)) }
}

// WithMetrics instruments every build attempt with the given
// prometheus collectors.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// New creates a Client for the engine at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	var apiOpts []api.Option
	if o.apiKey != "" {
		apiOpts = append(apiOpts, api.WithAPIKey(o.apiKey))
	}
	if o.httpClient != nil {
		apiOpts = append(apiOpts, api.WithHTTPClient(o.httpClient))
	}
	if o.logger != nil {
		apiOpts = append(apiOpts, api.WithLogger(o.logger))
	}
	engine, err := api.New(baseURL, apiOpts...)
	if err != nil {
		return nil, err
	}

	return &Client{
		api:     engine,
		orch:    orchestrator.New(engine, o.orch...),
		metrics: o.metrics,
	}, nil
}

// Build starts an event-driven build and returns its handle. Progress
// is observed through spec.Hooks and the attempt's status table.
func (c *Client) Build(ctx context.Context, spec BuildSpec) (*Attempt, error) {
	spec.Hooks = c.instrument(spec.Hooks)
	return c.orch.StartBuild(ctx, spec)
}

// BuildAndWait runs a build to completion and returns its summary.
func (c *Client) BuildAndWait(ctx context.Context, spec BuildSpec) (*domain.BuildSummary, error) {
	attempt, err := c.Build(ctx, spec)
	if err != nil {
		return nil, err
	}
	return attempt.Wait(ctx)
}

// BuildEventless starts a build in the legacy per-vertex mode.
func (c *Client) BuildEventless(ctx context.Context, spec BuildSpec) (*Attempt, error) {
	spec.Hooks = c.instrument(spec.Hooks)
	return c.orch.StartEventlessBuild(ctx, spec)
}

// IsBuilding reports whether the flow has an active attempt.
func (c *Client) IsBuilding(flowID string) bool { return c.orch.IsBuilding(flowID) }

// Active returns the outstanding attempt for a flow, or nil.
func (c *Client) Active(flowID string) *Attempt { return c.orch.Active(flowID) }

// Results exposes the session result store.
func (c *Client) Results() ports.ResultStore { return c.orch.Results() }

func (c *Client) instrument(hooks *domain.BuildHooks) *domain.BuildHooks {
	if c.metrics == nil {
		return hooks
	}
	return c.metrics.Instrument(hooks)
}
