package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/langflow-ai/flowbuild/pkg/domain"
	"github.com/langflow-ai/flowbuild/pkg/events"
	"github.com/langflow-ai/flowbuild/pkg/ports"
)

// runner holds the per-attempt mutable state. It lives on a single
// goroutine: event effects are applied serially, which is what keeps
// token ordering and the end-event-last guarantee without extra
// locking.
type runner struct {
	o     *Orchestrator
	a     *Attempt
	spec  BuildSpec
	hooks *domain.BuildHooks

	// outcomes records per-vertex validity for every executed vertex.
	// Inactive vertices never appear here; aggregate validity is
	// computed over executed vertices only.
	outcomes map[string]bool
	inactive int
	// errSources tracks the vertices named by error events. A sourced
	// error whose vertex never reports an outcome still counts as one
	// failure; one that does is counted through its outcome.
	errSources map[string]bool
	// attemptErrors counts error events with no originating vertex.
	attemptErrors int
	endSeen       bool
	// attemptErr holds the first build-level error event.
	attemptErr error
}

func newRunner(o *Orchestrator, a *Attempt, spec BuildSpec) *runner {
	return &runner{
		o:          o,
		a:          a,
		spec:       spec,
		hooks:      spec.Hooks,
		outcomes:   make(map[string]bool),
		errSources: make(map[string]bool),
	}
}

// reset clears attempt state for a delivery fallback restart.
func (r *runner) reset() {
	r.a.table.Reset()
	r.a.sink.Reset()
	r.outcomes = make(map[string]bool)
	r.errSources = make(map[string]bool)
	r.inactive = 0
	r.attemptErrors = 0
	r.endSeen = false
	r.attemptErr = nil
}

func (r *runner) buildRequest() ports.BuildRequest {
	return ports.BuildRequest{
		FlowID:        r.spec.FlowID,
		Inputs:        r.spec.inputs(),
		Files:         r.spec.Files,
		Data:          r.spec.Data,
		StartVertexID: r.spec.StartVertexID,
		StopVertexID:  r.spec.StopVertexID,
		LogBuilds:     r.spec.LogBuilds,
	}
}

// deliveryChain returns the strategies to attempt in order. Polling is
// always the last resort; forcing polling leaves no fallback.
func (r *runner) deliveryChain() []domain.EventDeliveryType {
	switch r.o.forcedDelivery {
	case domain.DeliveryPolling:
		return []domain.EventDeliveryType{domain.DeliveryPolling}
	case domain.DeliveryDirect, domain.DeliveryStreaming:
		return []domain.EventDeliveryType{r.o.forcedDelivery, domain.DeliveryPolling}
	default:
		return []domain.EventDeliveryType{domain.DeliveryDirect, domain.DeliveryStreaming, domain.DeliveryPolling}
	}
}

func (r *runner) runEventDriven(ctx context.Context) {
	r.finalize(ctx, r.execute(ctx))
}

func (r *runner) execute(ctx context.Context) error {
	var lastErr error
	for i, delivery := range r.deliveryChain() {
		if i > 0 {
			// The previous strategy may have consumed events before
			// failing; the whole attempt restarts from scratch.
			r.reset()
			r.o.logger.Warn("event delivery failed, falling back",
				"flow_id", r.spec.FlowID,
				"next_delivery", delivery,
				"err", lastErr,
			)
		}
		err := r.runDelivery(ctx, delivery)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, domain.ErrPreBuildRejected) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("%w: %v", domain.ErrEngineUnavailable, lastErr)
}

func (r *runner) runDelivery(ctx context.Context, delivery domain.EventDeliveryType) error {
	switch delivery {
	case domain.DeliveryDirect:
		stream, err := r.o.api.StartBuildStream(ctx, r.buildRequest())
		if err != nil {
			return err
		}
		defer stream.Close()
		return r.consumeStream(ctx, stream)

	case domain.DeliveryStreaming:
		jobID, err := r.o.api.StartBuildJob(ctx, r.buildRequest(), domain.DeliveryStreaming)
		if err != nil {
			return err
		}
		r.a.setJob(jobID, r.remoteCancel(jobID))
		stream, err := r.o.api.StreamEvents(ctx, jobID)
		if err != nil {
			return err
		}
		defer stream.Close()
		return r.consumeStream(ctx, stream)

	case domain.DeliveryPolling:
		jobID, err := r.o.api.StartBuildJob(ctx, r.buildRequest(), domain.DeliveryPolling)
		if err != nil {
			return err
		}
		r.a.setJob(jobID, r.remoteCancel(jobID))
		return r.pollEvents(ctx, jobID)

	default:
		return fmt.Errorf("unknown delivery type %q", delivery)
	}
}

// remoteCancel returns the fire-and-forget remote cancel for a job.
// Failures are logged, never re-raised.
func (r *runner) remoteCancel(jobID string) func() {
	return func() {
		go func() {
			if err := r.o.api.CancelBuild(context.Background(), jobID); err != nil {
				r.o.logger.Warn("remote cancel failed", "job_id", jobID, "err", err)
			}
		}()
	}
}

func (r *runner) consumeStream(ctx context.Context, stream io.Reader) error {
	sc := events.NewScanner(stream)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		ev, err := sc.Next()
		if err == io.EOF {
			if r.endSeen {
				return nil
			}
			return fmt.Errorf("event stream ended before end event")
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if err := r.apply(ctx, ev); err != nil {
			return err
		}
		if r.endSeen {
			return nil
		}
	}
}

func (r *runner) pollEvents(ctx context.Context, jobID string) error {
	for {
		evs, err := r.o.api.PollEvents(ctx, jobID)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		for _, ev := range evs {
			if err := r.apply(ctx, ev); err != nil {
				return err
			}
			if r.endSeen {
				return nil
			}
		}
		// An empty poll is not an error; back off and retry.
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.o.pollInterval):
		}
	}
}

// apply effects one event on the status table, the sinks and the
// observer hooks. Called serially per attempt.
func (r *runner) apply(ctx context.Context, ev domain.Event) error {
	switch e := ev.(type) {
	case domain.VerticesSortedEvent:
		return r.applySorted(ctx, e)

	case domain.VertexStartedEvent:
		r.a.table.Set(e.ID, domain.StatusBuilding)

	case domain.VertexBuiltEvent:
		// Coarse signal: do not override a detailed terminal state.
		if !r.a.table.Get(e.ID).Terminal() {
			r.a.table.Set(e.ID, domain.StatusBuilt)
			if _, ok := r.outcomes[e.ID]; !ok {
				r.outcomes[e.ID] = true
			}
		}

	case domain.EndVertexEvent:
		return r.applyEndVertex(ctx, e.Result)

	case domain.AddMessageEvent:
		r.a.sink.Add(e.Message)
		msg := e.Message
		r.hooks.EmitMessage(ctx, &msg)

	case domain.RemoveMessageEvent:
		r.a.sink.Remove(e.ID)
		r.hooks.EmitMessageRemoved(ctx, e.ID)

	case domain.TokenEvent:
		r.a.sink.AppendToken(e.MessageID, e.Chunk)
		r.hooks.EmitToken(ctx, e.MessageID, e.Chunk)

	case domain.ErrorEvent:
		r.applyError(ctx, e)

	case domain.EndEvent:
		r.endSeen = true
	}
	return nil
}

func (r *runner) applySorted(ctx context.Context, e domain.VerticesSortedEvent) error {
	if r.o.validator != nil {
		if err := r.o.validator(e.IDs); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrPreBuildRejected, err)
		}
	}
	r.a.table.Declare(e.IDs...)
	toRun := make(map[string]bool, len(e.ToRun))
	for _, id := range e.ToRun {
		toRun[id] = true
	}
	// TO_BUILD also starts the per-vertex timers.
	r.a.table.MarkAll(e.ToRun, domain.StatusToBuild)
	for _, id := range e.IDs {
		if !toRun[id] {
			r.a.table.Set(id, domain.StatusInactive)
			r.inactive++
			r.hooks.EmitVertexDone(ctx, domain.Inactive{ID: id})
		}
	}
	sorted := e
	r.hooks.EmitOrdered(ctx, &sorted)
	return nil
}

func (r *runner) applyEndVertex(ctx context.Context, result *domain.VertexBuildResult) error {
	if err := r.awaitMinVisible(ctx, result.ID); err != nil {
		return err
	}
	if err := r.o.store.Save(ctx, r.spec.session(), result); err != nil {
		r.o.logger.Warn("failed to retain vertex result", "vertex_id", result.ID, "err", err)
	}
	r.outcomes[result.ID] = result.Valid
	if result.Valid {
		r.a.table.Set(result.ID, domain.StatusBuilt)
		r.hooks.EmitVertexDone(ctx, domain.Built{Result: result})
	} else {
		msgs := result.ErrorMessages()
		r.a.table.Set(result.ID, domain.StatusError)
		r.hooks.EmitVertexDone(ctx, domain.Errored{ID: result.ID, Messages: msgs})
		r.hooks.EmitError(ctx, &domain.BuildError{
			Source: result.ID,
			Message: domain.Message{
				Text:    strings.Join(msgs, "\n"),
				IsError: true,
			},
		})
	}
	// Unlock the downstream vertices and start their timers. This is
	// how layered progress advances in event-driven mode.
	r.a.table.MarkAll(result.NextVertices, domain.StatusToBuild)
	for _, id := range result.Inactivated {
		r.a.table.Set(id, domain.StatusInactive)
		r.inactive++
		r.hooks.EmitVertexDone(ctx, domain.Inactive{ID: id})
	}
	return nil
}

func (r *runner) applyError(ctx context.Context, e domain.ErrorEvent) {
	if e.Message.IsError || e.Message.Category == "error" {
		r.a.sink.Add(e.Message)
		msg := e.Message
		r.hooks.EmitMessage(ctx, &msg)
	}
	buildErr := &domain.BuildError{Source: e.Source, Message: e.Message}
	r.hooks.EmitError(ctx, buildErr)
	if buildErr.AttemptLevel() {
		r.attemptErrors++
		if r.attemptErr == nil {
			r.attemptErr = buildErr
		}
	} else {
		r.errSources[e.Source] = true
	}
}

// awaitMinVisible enforces the minimum visible build duration: a
// vertex that finished faster than the configured floor is held back
// for the remaining time. Pure UX pacing; cancellation still wins.
func (r *runner) awaitMinVisible(ctx context.Context, vertexID string) error {
	if r.o.minVertexDuration <= 0 {
		return nil
	}
	started := r.a.table.StartedAt(vertexID)
	if started.IsZero() {
		return nil
	}
	remaining := r.o.minVertexDuration - time.Since(started)
	if remaining <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(remaining):
		return nil
	}
}

// aggregateValid is the logical AND over every executed vertex
// outcome. Inactive vertices do not participate: a flow with a pruned
// branch can still report fully valid.
func (r *runner) aggregateValid() bool {
	if r.attemptErrors > 0 {
		return false
	}
	for _, valid := range r.outcomes {
		if !valid {
			return false
		}
	}
	for source := range r.errSources {
		if _, ok := r.outcomes[source]; !ok {
			return false
		}
	}
	return true
}

func (r *runner) summary() *domain.BuildSummary {
	built, failed := 0, 0
	for _, valid := range r.outcomes {
		if valid {
			built++
		} else {
			failed++
		}
	}
	// Sourced errors whose vertex never reported an outcome still
	// count once; those with an outcome are already counted above.
	for source := range r.errSources {
		if _, ok := r.outcomes[source]; !ok {
			failed++
		}
	}
	return &domain.BuildSummary{
		RunID:    r.a.RunID(),
		Valid:    r.aggregateValid(),
		Built:    built,
		Failed:   failed + r.attemptErrors,
		Inactive: r.inactive,
	}
}

// finalize settles the attempt exactly once: completion, cancellation
// or fatal error.
func (r *runner) finalize(ctx context.Context, err error) {
	// Hooks observing the terminal state still need a live context.
	endCtx := context.WithoutCancel(ctx)
	switch {
	case err == nil && r.endSeen:
		s := r.summary()
		r.hooks.EmitComplete(endCtx, s)
		r.a.finish(s, r.attemptErr)
		r.o.logger.Info("build finished",
			"flow_id", r.spec.FlowID,
			"run_id", s.RunID,
			"valid", s.Valid,
			"built", s.Built,
			"failed", s.Failed,
			"inactive", s.Inactive,
		)
	case errors.Is(err, context.Canceled):
		// Abort is never reported as a failure: the status table is
		// left as-is and only the stopped notification fires.
		r.hooks.EmitStopped(endCtx)
		r.a.finish(nil, context.Canceled)
		r.o.logger.Info("build stopped", "flow_id", r.spec.FlowID)
	default:
		r.hooks.EmitFailed(endCtx, err)
		r.a.finish(nil, err)
		r.o.logger.Error("build failed", "flow_id", r.spec.FlowID, "err", err)
	}
}
