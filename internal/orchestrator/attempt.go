package orchestrator

import (
	"context"
	"sync"

	"github.com/langflow-ai/flowbuild/pkg/domain"
	"github.com/langflow-ai/flowbuild/pkg/status"
)

// Attempt is the owned handle for one in-flight build. It replaces a
// global "is building" flag: constructing an attempt is only possible
// while no other attempt for the same flow is outstanding, and the
// handle carries the attempt's cancellation, status table and outcome.
type Attempt struct {
	flowID    string
	sessionID string

	table *status.Table
	sink  *messageSink

	cancel context.CancelFunc
	done   chan struct{}

	cancelOnce sync.Once
	cancelled  bool

	mu      sync.Mutex
	runID   string
	jobID   string
	err     error
	summary *domain.BuildSummary

	// onCancel propagates the best-effort remote cancel. Set by the
	// runner once a job id exists.
	onCancel func()
}

// FlowID identifies the flow being built.
func (a *Attempt) FlowID() string { return a.flowID }

// SessionID identifies the conversational session of this attempt.
func (a *Attempt) SessionID() string { return a.sessionID }

// Status returns the live status table. Safe for concurrent reads
// while the attempt runs.
func (a *Attempt) Status() *status.Table { return a.table }

// Messages returns a snapshot of the conversational output so far.
func (a *Attempt) Messages() []domain.Message { return a.sink.Messages() }

// RunID returns the correlation token of this attempt: the planner's
// run id, or the job id for job-based delivery. Empty until ordering
// completes.
func (a *Attempt) RunID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runID != "" {
		return a.runID
	}
	return a.jobID
}

func (a *Attempt) setRunID(id string) {
	a.mu.Lock()
	a.runID = id
	a.mu.Unlock()
}

func (a *Attempt) setJob(jobID string, onCancel func()) {
	a.mu.Lock()
	a.jobID = jobID
	a.onCancel = onCancel
	a.mu.Unlock()
}

// Cancel aborts the attempt: the transport context is cancelled and,
// for job-based delivery, the engine is asked (best effort) to stop
// the job. Idempotent; a no-op once the attempt has finished.
func (a *Attempt) Cancel() {
	select {
	case <-a.done:
		return
	default:
	}
	a.cancelOnce.Do(func() {
		a.mu.Lock()
		a.cancelled = true
		onCancel := a.onCancel
		a.mu.Unlock()
		a.cancel()
		if onCancel != nil {
			onCancel()
		}
	})
}

// Cancelled reports whether Cancel was invoked.
func (a *Attempt) Cancelled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cancelled
}

// Done is closed when the attempt reaches a terminal state.
func (a *Attempt) Done() <-chan struct{} { return a.done }

// Err returns the terminal error of the attempt: nil on success,
// context.Canceled after cancellation, or the fatal build error.
// Only meaningful after Done is closed.
func (a *Attempt) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

// Summary returns the final build summary, or nil if the attempt was
// cancelled or failed before completing.
func (a *Attempt) Summary() *domain.BuildSummary {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.summary
}

// Wait blocks until the attempt finishes or ctx expires.
func (a *Attempt) Wait(ctx context.Context) (*domain.BuildSummary, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-a.done:
		return a.Summary(), a.Err()
	}
}

func (a *Attempt) finish(summary *domain.BuildSummary, err error) {
	a.mu.Lock()
	a.summary = summary
	a.err = err
	a.mu.Unlock()
	close(a.done)
}
