package domain

import (
	"fmt"
	"time"
)

// OutputLog is one structured log entry attached to a vertex output.
// Message is either a plain string or an object with an "errorMessage"
// key (plus stack trace) when Type is "error".
type OutputLog struct {
	Message any    `json:"message" mapstructure:"message"`
	Type    string `json:"type" mapstructure:"type"`
}

// IsError reports whether this entry signals a failed output.
func (l OutputLog) IsError() bool {
	return l.Type == "error"
}

// ErrorText extracts the human-readable error text from the entry.
// Returns the empty string for non-error entries.
func (l OutputLog) ErrorText() string {
	if !l.IsError() {
		return ""
	}
	switch m := l.Message.(type) {
	case string:
		return m
	case map[string]any:
		if s, ok := m["errorMessage"].(string); ok {
			return s
		}
		return fmt.Sprintf("%v", m)
	default:
		return fmt.Sprintf("%v", m)
	}
}

// VertexBuildResult is the immutable outcome of building one vertex.
// Retained for the session once created.
type VertexBuildResult struct {
	ID string `json:"id" mapstructure:"id"`
	// Valid is false when the component reported a build failure.
	Valid bool `json:"valid" mapstructure:"valid"`
	// Params carries the engine's display summary (or the error text
	// when the build failed).
	Params string `json:"params,omitempty" mapstructure:"params"`
	// Outputs maps output name to its log entries. The wire encodes a
	// single entry or a list; the decoder normalizes to a list.
	Outputs map[string][]OutputLog `json:"outputs,omitempty" mapstructure:"-"`
	// NextVertices lists the vertices unlocked by this result.
	NextVertices []string `json:"next_vertices_ids,omitempty" mapstructure:"next_vertices_ids"`
	// Inactivated lists vertices pruned by this result (conditional
	// branches not taken).
	Inactivated []string `json:"inactivated_vertices,omitempty" mapstructure:"inactivated_vertices"`
	// Duration is the engine-reported build time, when present.
	Duration time.Duration `json:"duration,omitempty" mapstructure:"-"`
}

// ErrorMessages collects the error text of every error log entry
// across all outputs. Empty for valid results.
func (r *VertexBuildResult) ErrorMessages() []string {
	var msgs []string
	for _, logs := range r.Outputs {
		for _, l := range logs {
			if text := l.ErrorText(); text != "" {
				msgs = append(msgs, text)
			}
		}
	}
	return msgs
}

// VertexOutcome is the closed set of per-vertex results reported to
// observers: Built, Errored or Inactive. Consumers switch on the
// concrete type instead of inspecting sentinel payloads.
type VertexOutcome interface {
	// VertexID identifies the vertex this outcome belongs to.
	VertexID() string
	outcome()
}

// Built is the outcome of a vertex that finished with a valid result.
type Built struct {
	Result *VertexBuildResult
}

// Errored is the outcome of a vertex whose component reported an
// invalid result. Messages holds the extracted output-log error text.
type Errored struct {
	ID       string
	Messages []string
}

// Inactive is the outcome of a vertex outside the attempt's scope. No
// build request was issued for it.
type Inactive struct {
	ID string
}

func (b Built) VertexID() string    { return b.Result.ID }
func (e Errored) VertexID() string  { return e.ID }
func (i Inactive) VertexID() string { return i.ID }

func (Built) outcome()    {}
func (Errored) outcome()  {}
func (Inactive) outcome() {}
