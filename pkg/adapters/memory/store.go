// Package memory provides an in-memory ResultStore. It is the default
// store: results live for the process lifetime and are safe for
// concurrent observers.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/langflow-ai/flowbuild/pkg/domain"
	"github.com/langflow-ai/flowbuild/pkg/ports"
)

// Store implements ports.ResultStore in process memory.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]map[string]*domain.VertexBuildResult
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]map[string]*domain.VertexBuildResult)}
}

var _ ports.ResultStore = (*Store)(nil)

// Save retains one vertex result under the session.
func (s *Store) Save(ctx context.Context, sessionID string, result *domain.VertexBuildResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	results, ok := s.sessions[sessionID]
	if !ok {
		results = make(map[string]*domain.VertexBuildResult)
		s.sessions[sessionID] = results
	}
	results[result.ID] = result
	return nil
}

// Get retrieves the result for one vertex.
func (s *Store) Get(ctx context.Context, sessionID, vertexID string) (*domain.VertexBuildResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if result, ok := s.sessions[sessionID][vertexID]; ok {
		return result, nil
	}
	return nil, domain.ErrResultNotFound
}

// List returns every result retained for the session, ordered by
// vertex id for deterministic reads.
func (s *Store) List(ctx context.Context, sessionID string) ([]*domain.VertexBuildResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	results := s.sessions[sessionID]
	out := make([]*domain.VertexBuildResult, 0, len(results))
	for _, r := range results {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Clear drops all results for the session.
func (s *Store) Clear(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}
