package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/langflow-ai/flowbuild/pkg/domain"
	"github.com/langflow-ai/flowbuild/pkg/ports"
)

// vertexResult pairs one per-vertex build call with its outcome so the
// layer join can apply effects serially.
type vertexResult struct {
	id     string
	result *domain.VertexBuildResult
	err    error
}

// runEventless drives a build without an event stream: the order is
// resolved up front and each layer is built through dedicated
// per-vertex requests, in parallel within a layer and serially across
// layers.
func (r *runner) runEventless(ctx context.Context) {
	r.finalize(ctx, r.driveLayers(ctx))
}

func (r *runner) driveLayers(ctx context.Context) error {
	order, err := r.o.ResolveOrder(ctx, r.a.table, ports.OrderRequest{
		FlowID:        r.spec.FlowID,
		StartVertexID: r.spec.StartVertexID,
		StopVertexID:  r.spec.StopVertexID,
		Data:          r.spec.Data,
	})
	if err != nil {
		return err
	}
	r.a.setRunID(order.RunID)

	ids := order.FlatIDs()
	if r.o.validator != nil {
		if err := r.o.validator(ids); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrPreBuildRejected, err)
		}
	}
	for _, id := range ids {
		if !order.ShouldRun(id) {
			r.a.table.Set(id, domain.StatusInactive)
			r.inactive++
			r.hooks.EmitVertexDone(ctx, domain.Inactive{ID: id})
		}
	}
	r.hooks.EmitOrdered(ctx, &domain.VerticesSortedEvent{
		IDs:   ids,
		ToRun: order.VerticesToRun,
	})

	// The planner may return a single seed layer; successor layers are
	// then discovered from each result's next_vertices_ids.
	queue := make([][]string, len(order.Layers))
	copy(queue, order.Layers)
	scheduled := make(map[string]bool)
	stopped := false

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		layer := r.runnableLayer(ctx, queue[0], order, scheduled)
		queue = queue[1:]
		if len(layer) == 0 {
			continue
		}
		if stopped {
			// A failed layer finishes joining but unlocks nothing
			// further; the remaining scope stays TO_BUILD.
			break
		}

		results := r.buildLayer(ctx, layer)
		if err := ctx.Err(); err != nil {
			return err
		}

		var next []string
		for _, res := range results {
			unlocked, failed := r.applyVertexResult(ctx, res)
			if failed {
				stopped = true
			}
			for _, id := range unlocked {
				if !scheduled[id] {
					next = append(next, id)
				}
			}
		}
		if len(next) > 0 {
			queue = append(queue, next)
		}
	}

	r.endSeen = true
	return nil
}

// runnableLayer filters a layer down to the vertices that still need a
// build request. Vertices pruned mid-build are skipped without any
// network call.
func (r *runner) runnableLayer(ctx context.Context, layer []string, order *domain.ExecutionOrder, scheduled map[string]bool) []string {
	var out []string
	for _, id := range layer {
		if scheduled[id] || !order.ShouldRun(id) {
			continue
		}
		scheduled[id] = true
		if r.a.table.Get(id) == domain.StatusInactive {
			continue
		}
		out = append(out, id)
	}
	return out
}

// buildLayer issues the per-vertex requests of one layer in parallel
// and joins before returning. Each goroutine also holds its result
// until the minimum visible duration has elapsed.
func (r *runner) buildLayer(ctx context.Context, layer []string) []vertexResult {
	results := make([]vertexResult, len(layer))
	var wg sync.WaitGroup
	for i, id := range layer {
		r.a.table.Set(id, domain.StatusBuilding)
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			result, err := r.o.api.BuildVertex(ctx, ports.VertexBuildRequest{
				FlowID:   r.spec.FlowID,
				VertexID: id,
				Inputs:   r.spec.inputs(),
				Files:    r.spec.Files,
			})
			if err == nil {
				err = r.awaitMinVisible(ctx, id)
			}
			results[i] = vertexResult{id: id, result: result, err: err}
		}(i, id)
	}
	wg.Wait()
	return results
}

// applyVertexResult applies one joined result to the table, the store
// and the hooks. Returns the ids unlocked by the result and whether it
// failed.
func (r *runner) applyVertexResult(ctx context.Context, res vertexResult) (unlocked []string, failed bool) {
	if res.err != nil {
		if ctx.Err() != nil {
			return nil, true
		}
		r.outcomes[res.id] = false
		r.a.table.Set(res.id, domain.StatusError)
		r.hooks.EmitVertexDone(ctx, domain.Errored{ID: res.id, Messages: []string{res.err.Error()}})
		r.hooks.EmitError(ctx, &domain.BuildError{
			Source:  res.id,
			Message: domain.Message{Text: res.err.Error(), IsError: true},
		})
		return nil, true
	}

	result := res.result
	if err := r.o.store.Save(ctx, r.spec.session(), result); err != nil {
		r.o.logger.Warn("failed to retain vertex result", "vertex_id", res.id, "err", err)
	}
	r.outcomes[res.id] = result.Valid
	if result.Valid {
		r.a.table.Set(res.id, domain.StatusBuilt)
		r.hooks.EmitVertexDone(ctx, domain.Built{Result: result})
	} else {
		msgs := result.ErrorMessages()
		r.a.table.Set(res.id, domain.StatusError)
		r.hooks.EmitVertexDone(ctx, domain.Errored{ID: res.id, Messages: msgs})
		r.hooks.EmitError(ctx, &domain.BuildError{
			Source:  res.id,
			Message: domain.Message{Text: strings.Join(msgs, "\n"), IsError: true},
		})
	}
	for _, id := range result.Inactivated {
		r.a.table.Set(id, domain.StatusInactive)
		r.inactive++
		r.hooks.EmitVertexDone(ctx, domain.Inactive{ID: id})
	}
	if !result.Valid {
		return nil, true
	}
	r.a.table.MarkAll(result.NextVertices, domain.StatusToBuild)
	return result.NextVertices, false
}
