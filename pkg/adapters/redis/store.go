// Package redis provides a Redis-backed ResultStore, for deployments
// where build results must outlive one client process (a UI reloading
// a session, or several observers sharing one engine).
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/langflow-ai/flowbuild/pkg/domain"
	"github.com/langflow-ai/flowbuild/pkg/ports"
)

// Store implements ports.ResultStore using a Redis hash per session.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// Option configures the Store.
type Option func(*Store)

// WithTTL sets the expiration for session result hashes. The TTL is
// refreshed on every save.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix for session result hashes.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a Redis store with its own client.
func New(address, password string, db int, opts ...Option) *Store {
	client := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(client, opts...)
}

// NewFromClient creates a Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: "flowbuild:results:",
		ttl:    0,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

var _ ports.ResultStore = (*Store)(nil)

func (s *Store) key(sessionID string) string {
	return s.prefix + sessionID
}

// Save persists one vertex result as a hash field keyed by vertex id.
func (s *Store) Save(ctx context.Context, sessionID string, result *domain.VertexBuildResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	pipe := s.client.Pipeline()
	pipe.HSet(ctx, s.key(sessionID), result.ID, data)
	if s.ttl > 0 {
		pipe.Expire(ctx, s.key(sessionID), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save result to redis: %w", err)
	}
	return nil
}

// Get retrieves the result for one vertex.
func (s *Store) Get(ctx context.Context, sessionID, vertexID string) (*domain.VertexBuildResult, error) {
	data, err := s.client.HGet(ctx, s.key(sessionID), vertexID).Bytes()
	if err == backend.Nil {
		return nil, domain.ErrResultNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load result from redis: %w", err)
	}
	var result domain.VertexBuildResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}
	return &result, nil
}

// List returns every result retained for the session.
func (s *Store) List(ctx context.Context, sessionID string) ([]*domain.VertexBuildResult, error) {
	fields, err := s.client.HGetAll(ctx, s.key(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list results from redis: %w", err)
	}
	out := make([]*domain.VertexBuildResult, 0, len(fields))
	for _, data := range fields {
		var result domain.VertexBuildResult
		if err := json.Unmarshal([]byte(data), &result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal result: %w", err)
		}
		out = append(out, &result)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Clear drops all results for the session.
func (s *Store) Clear(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to clear results from redis: %w", err)
	}
	return nil
}
