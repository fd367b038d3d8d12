package domain

import "context"

// EventType is the wire tag of a delivery event.
type EventType string

const (
	EventVerticesSorted EventType = "vertices_sorted"
	EventBuildStart     EventType = "build_start"
	EventBuildEnd       EventType = "build_end"
	EventEndVertex      EventType = "end_vertex"
	EventAddMessage     EventType = "add_message"
	EventRemoveMessage  EventType = "remove_message"
	EventToken          EventType = "token"
	EventError          EventType = "error"
	EventEnd            EventType = "end"
)

// Event is one normalized delivery event. Events are transient: the
// orchestrator consumes each exactly once and discards it.
type Event interface {
	EventType() EventType
}

// VerticesSortedEvent announces the resolved execution order. IDs is
// the flattened first-layer order; ToRun is the scoped subset that
// will actually execute.
type VerticesSortedEvent struct {
	IDs   []string
	ToRun []string
}

// VertexStartedEvent is the coarse per-vertex progress signal emitted
// when no end_vertex detail is available yet.
type VertexStartedEvent struct {
	ID string
}

// VertexBuiltEvent is the coarse counterpart of VertexStartedEvent.
type VertexBuiltEvent struct {
	ID string
}

// EndVertexEvent carries the full build result of one vertex.
type EndVertexEvent struct {
	Result *VertexBuildResult
}

// AddMessageEvent appends a message to the conversational sink.
type AddMessageEvent struct {
	Message Message
}

// RemoveMessageEvent removes a message from the conversational sink.
type RemoveMessageEvent struct {
	ID string
}

// TokenEvent appends an incremental text chunk to an existing message.
// Chunks for a given message id must be applied in arrival order.
type TokenEvent struct {
	MessageID string
	Chunk     string
}

// ErrorEvent reports an engine-side error. When Source is empty the
// error is attempt-level rather than attributable to one vertex.
type ErrorEvent struct {
	Source  string
	Message Message
}

// EndEvent is terminal: it is always the last event of an attempt.
type EndEvent struct{}

func (VerticesSortedEvent) EventType() EventType { return EventVerticesSorted }
func (VertexStartedEvent) EventType() EventType  { return EventBuildStart }
func (VertexBuiltEvent) EventType() EventType    { return EventBuildEnd }
func (EndVertexEvent) EventType() EventType      { return EventEndVertex }
func (AddMessageEvent) EventType() EventType     { return EventAddMessage }
func (RemoveMessageEvent) EventType() EventType  { return EventRemoveMessage }
func (TokenEvent) EventType() EventType          { return EventToken }
func (ErrorEvent) EventType() EventType          { return EventError }
func (EndEvent) EventType() EventType            { return EventEnd }

// BuildSummary describes a finished attempt.
type BuildSummary struct {
	RunID string
	// Valid is the logical AND over every executed vertex result.
	// Inactive vertices do not participate.
	Valid bool
	// Built, Failed and Inactive count the per-vertex outcomes.
	Built    int
	Failed   int
	Inactive int
}

// BuildHooks defines the observer capability set for one build
// attempt. The orchestrator emits to these callbacks instead of
// threading optional function parameters through its call layers. Any
// callback may be nil.
type BuildHooks struct {
	// OnOrdered fires once after order resolution, before any vertex
	// runs.
	OnOrdered func(context.Context, *VerticesSortedEvent)
	// OnVertexDone fires once per vertex with its terminal outcome.
	OnVertexDone func(context.Context, VertexOutcome)
	// OnMessage fires when the engine appends a conversational message.
	OnMessage func(context.Context, *Message)
	// OnMessageRemoved fires when the engine retracts a message.
	OnMessageRemoved func(ctx context.Context, messageID string)
	// OnToken fires per streaming text chunk, in arrival order per
	// message id.
	OnToken func(ctx context.Context, messageID, chunk string)
	// OnError fires for engine-side errors, vertex-level or
	// attempt-level.
	OnError func(context.Context, *BuildError)
	// OnComplete fires exactly once when the attempt finishes
	// normally.
	OnComplete func(context.Context, *BuildSummary)
	// OnStopped fires exactly once when the attempt is cancelled. A
	// cancelled attempt never fires OnComplete.
	OnStopped func(context.Context)
	// OnFailed fires exactly once when the attempt aborts on a fatal
	// error before reaching its end event. Exactly one of OnComplete,
	// OnStopped and OnFailed fires per attempt.
	OnFailed func(context.Context, error)
}

// Emit helpers keep nil-checks out of the orchestrator.

// EmitOrdered invokes OnOrdered if set.
func (h *BuildHooks) EmitOrdered(ctx context.Context, ev *VerticesSortedEvent) {
	if h != nil && h.OnOrdered != nil {
		h.OnOrdered(ctx, ev)
	}
}

// EmitVertexDone invokes OnVertexDone if set.
func (h *BuildHooks) EmitVertexDone(ctx context.Context, out VertexOutcome) {
	if h != nil && h.OnVertexDone != nil {
		h.OnVertexDone(ctx, out)
	}
}

// EmitMessage invokes OnMessage if set.
func (h *BuildHooks) EmitMessage(ctx context.Context, msg *Message) {
	if h != nil && h.OnMessage != nil {
		h.OnMessage(ctx, msg)
	}
}

// EmitMessageRemoved invokes OnMessageRemoved if set.
func (h *BuildHooks) EmitMessageRemoved(ctx context.Context, id string) {
	if h != nil && h.OnMessageRemoved != nil {
		h.OnMessageRemoved(ctx, id)
	}
}

// EmitToken invokes OnToken if set.
func (h *BuildHooks) EmitToken(ctx context.Context, messageID, chunk string) {
	if h != nil && h.OnToken != nil {
		h.OnToken(ctx, messageID, chunk)
	}
}

// EmitError invokes OnError if set.
func (h *BuildHooks) EmitError(ctx context.Context, err *BuildError) {
	if h != nil && h.OnError != nil {
		h.OnError(ctx, err)
	}
}

// EmitComplete invokes OnComplete if set.
func (h *BuildHooks) EmitComplete(ctx context.Context, summary *BuildSummary) {
	if h != nil && h.OnComplete != nil {
		h.OnComplete(ctx, summary)
	}
}

// EmitStopped invokes OnStopped if set.
func (h *BuildHooks) EmitStopped(ctx context.Context) {
	if h != nil && h.OnStopped != nil {
		h.OnStopped(ctx)
	}
}

// EmitFailed invokes OnFailed if set.
func (h *BuildHooks) EmitFailed(ctx context.Context, err error) {
	if h != nil && h.OnFailed != nil {
		h.OnFailed(ctx, err)
	}
}
