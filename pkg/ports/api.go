package ports

import (
	"context"
	"io"

	"github.com/langflow-ai/flowbuild/pkg/domain"
)

// OrderRequest asks the engine's planner for a dependency-respecting
// execution order. StartVertexID and StopVertexID scope the order to a
// subgraph and are mutually exclusive.
type OrderRequest struct {
	FlowID        string
	StartVertexID string
	StopVertexID  string
	// Data overrides the stored flow with explicit nodes and edges.
	Data *domain.FlowData
}

// BuildInputs carries the conversational inputs of a build.
type BuildInputs struct {
	InputValue string `json:"input_value,omitempty"`
	Session    string `json:"session,omitempty"`
}

// BuildRequest starts a full-flow build.
type BuildRequest struct {
	FlowID        string
	Inputs        BuildInputs
	Files         []string
	Data          *domain.FlowData
	StartVertexID string
	StopVertexID  string
	LogBuilds     bool
}

// VertexBuildRequest builds a single vertex (event-less driver path).
type VertexBuildRequest struct {
	FlowID   string
	VertexID string
	Inputs   BuildInputs
	Files    []string
}

// EngineAPI is the client-side surface of the remote flow-execution
// engine. Every call honors context cancellation; implementations map
// "route not available" responses to domain.ErrDeliveryUnsupported so
// the orchestrator can fall back to polling.
type EngineAPI interface {
	// SortVertices resolves the execution order for a flow. Failures
	// wrap domain.ErrInvalidGraph; the caller must not start a build.
	SortVertices(ctx context.Context, req OrderRequest) (*domain.ExecutionOrder, error)

	// StartBuildStream starts a build whose response body is itself
	// the live NDJSON event stream (DIRECT delivery). The caller owns
	// the returned stream.
	StartBuildStream(ctx context.Context, req BuildRequest) (io.ReadCloser, error)

	// StartBuildJob starts a build and returns the job id used to
	// fetch events separately (STREAMING and POLLING delivery).
	StartBuildJob(ctx context.Context, req BuildRequest, delivery domain.EventDeliveryType) (string, error)

	// StreamEvents opens the live NDJSON event stream for a job.
	StreamEvents(ctx context.Context, jobID string) (io.ReadCloser, error)

	// PollEvents fetches the events buffered for a job since the last
	// poll. An empty slice is not an error; the caller backs off and
	// retries.
	PollEvents(ctx context.Context, jobID string) ([]domain.Event, error)

	// BuildVertex issues one per-vertex build request.
	BuildVertex(ctx context.Context, req VertexBuildRequest) (*domain.VertexBuildResult, error)

	// CancelBuild asks the engine to stop executing a job. Best
	// effort: callers log failures and never re-raise them.
	CancelBuild(ctx context.Context, jobID string) error
}
