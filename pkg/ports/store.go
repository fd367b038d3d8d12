package ports

import (
	"context"

	"github.com/langflow-ai/flowbuild/pkg/domain"
)

// ResultStore retains per-vertex build results for a flow session.
// Results are immutable once saved and survive the attempt that
// produced them, so observers can read outcomes after the build ends.
type ResultStore interface {
	// Save persists one vertex result under the session.
	Save(ctx context.Context, sessionID string, result *domain.VertexBuildResult) error

	// Get retrieves the result for one vertex. Returns
	// domain.ErrResultNotFound when absent.
	Get(ctx context.Context, sessionID, vertexID string) (*domain.VertexBuildResult, error)

	// List returns every result retained for the session.
	List(ctx context.Context, sessionID string) ([]*domain.VertexBuildResult, error)

	// Clear drops all results for the session.
	Clear(ctx context.Context, sessionID string) error
}
