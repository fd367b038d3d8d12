// Package mockengine is an in-process flow-execution engine speaking
// the real build wire protocol. It backs the integration tests and the
// CLI demo command: flows are registered as scripted scenarios and the
// engine emits the corresponding NDJSON event stream over direct,
// streaming or polling delivery.
package mockengine

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/langflow-ai/flowbuild/internal/logging"
)

// Vertex scripts the behavior of one component in a registered flow.
type Vertex struct {
	ID string
	// Next lists the vertices unlocked by this vertex.
	Next []string
	// Inactivates lists vertices pruned when this vertex finishes
	// (conditional branch not taken).
	Inactivates []string
	// Fail makes the vertex report an invalid result with ErrorText.
	Fail      bool
	ErrorText string
	// Delay is slept before the vertex result is emitted.
	Delay time.Duration
	// Message, when set, is emitted as a chat message streamed in
	// token chunks after the vertex builds.
	Message string
}

// Flow is one scripted scenario.
type Flow struct {
	ID string
	// Layers is the dependency-layered order of the flow.
	Layers [][]string
	// Vertices scripts each vertex. Ids present in Layers but absent
	// here build successfully with no side effects.
	Vertices map[string]Vertex
}

func (f *Flow) vertex(id string) Vertex {
	if v, ok := f.Vertices[id]; ok {
		return v
	}
	return Vertex{ID: id}
}

func (f *Flow) flatIDs() []string {
	var ids []string
	for _, layer := range f.Layers {
		ids = append(ids, layer...)
	}
	return ids
}

type job struct {
	mu        sync.Mutex
	lines     []string
	delays    map[string]time.Duration
	pos       int
	cancelled bool
}

// Engine is the fake engine. Safe for concurrent use.
type Engine struct {
	logger *slog.Logger

	// pollBatch bounds the lines returned per polling request, so a
	// build takes several polls to drain.
	pollBatch int

	disableDirect    bool
	disableStreaming bool

	mu    sync.Mutex
	flows map[string]*Flow
	jobs  map[string]*job
}

// Option configures the Engine.
type Option func(*Engine)

// WithLogger configures a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithoutDirect makes the direct delivery route answer 404, forcing
// clients onto job-based delivery.
func WithoutDirect() Option {
	return func(e *Engine) { e.disableDirect = true }
}

// WithoutStreaming makes the streaming routes answer 404, forcing
// clients down to polling.
func WithoutStreaming() Option {
	return func(e *Engine) { e.disableStreaming = true }
}

// WithPollBatch bounds the events returned per polling request.
func WithPollBatch(n int) Option {
	return func(e *Engine) { e.pollBatch = n }
}

// New creates an empty Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		logger:    logging.NewNop(),
		pollBatch: 3,
		flows:     make(map[string]*Flow),
		jobs:      make(map[string]*job),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Register adds or replaces a scripted flow.
func (e *Engine) Register(flow Flow) {
	e.mu.Lock()
	defer e.mu.Unlock()
	f := flow
	e.flows[flow.ID] = &f
}

// Handler returns the engine's HTTP surface.
func (e *Engine) Handler() http.Handler {
	r := chi.NewRouter()
	r.Route("/api/v1/build", func(r chi.Router) {
		r.Post("/{flowID}/vertices", e.handleSort)
		r.Post("/{flowID}/vertices/{vertexID}", e.handleBuildVertex)
		r.Post("/{flowID}/flow", e.handleBuildFlow)
		r.Get("/{jobID}/events", e.handleEvents)
		r.Post("/{jobID}/cancel", e.handleCancel)
	})
	return r
}

func (e *Engine) flow(id string) *Flow {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.flows[id]
}

func (e *Engine) handleSort(w http.ResponseWriter, r *http.Request) {
	f := e.flow(chi.URLParam(r, "flowID"))
	if f == nil {
		writeDetail(w, http.StatusNotFound, "flow not found")
		return
	}
	if r.URL.Query().Get("start_component_id") != "" && r.URL.Query().Get("stop_component_id") != "" {
		writeDetail(w, http.StatusBadRequest, "start and stop are mutually exclusive")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ids":             f.Layers,
		"run_id":          uuid.NewString(),
		"vertices_to_run": f.flatIDs(),
	})
}

func (e *Engine) handleBuildVertex(w http.ResponseWriter, r *http.Request) {
	f := e.flow(chi.URLParam(r, "flowID"))
	if f == nil {
		writeDetail(w, http.StatusNotFound, "flow not found")
		return
	}
	id := chi.URLParam(r, "vertexID")
	v := f.vertex(id)
	if v.Delay > 0 {
		select {
		case <-r.Context().Done():
			return
		case <-time.After(v.Delay):
		}
	}
	writeJSON(w, http.StatusOK, buildData(v))
}

func (e *Engine) handleBuildFlow(w http.ResponseWriter, r *http.Request) {
	f := e.flow(chi.URLParam(r, "flowID"))
	if f == nil {
		writeDetail(w, http.StatusNotFound, "flow not found")
		return
	}
	delivery := r.URL.Query().Get("event_delivery")
	if delivery == "" {
		delivery = "streaming"
	}

	lines := e.script(f)
	switch delivery {
	case "direct":
		if e.disableDirect {
			writeDetail(w, http.StatusNotFound, "direct delivery not available")
			return
		}
		e.logger.Debug("direct build started", "flow_id", f.ID)
		streamLines(w, r, lines, f, e.flowDelays(f))
	case "streaming", "polling":
		if delivery == "streaming" && e.disableStreaming {
			writeDetail(w, http.StatusNotFound, "streaming delivery not available")
			return
		}
		jobID := uuid.NewString()
		e.mu.Lock()
		e.jobs[jobID] = &job{lines: lines, delays: e.flowDelays(f)}
		e.mu.Unlock()
		e.logger.Debug("build job created", "flow_id", f.ID, "job_id", jobID, "delivery", delivery)
		writeJSON(w, http.StatusOK, map[string]string{"job_id": jobID})
	default:
		writeDetail(w, http.StatusBadRequest, fmt.Sprintf("unknown event_delivery %q", delivery))
	}
}

func (e *Engine) handleEvents(w http.ResponseWriter, r *http.Request) {
	e.mu.Lock()
	j := e.jobs[chi.URLParam(r, "jobID")]
	e.mu.Unlock()
	if j == nil {
		writeDetail(w, http.StatusNotFound, "job not found")
		return
	}

	if r.URL.Query().Get("event_delivery") == "polling" {
		e.servePoll(w, j)
		return
	}
	if e.disableStreaming {
		writeDetail(w, http.StatusNotFound, "streaming delivery not available")
		return
	}
	e.serveStream(w, r, j)
}

func (e *Engine) servePoll(w http.ResponseWriter, j *job) {
	j.mu.Lock()
	defer j.mu.Unlock()
	w.Header().Set("Content-Type", "application/x-ndjson")
	if j.cancelled {
		return
	}
	end := j.pos + e.pollBatch
	if end > len(j.lines) {
		end = len(j.lines)
	}
	for _, line := range j.lines[j.pos:end] {
		fmt.Fprintln(w, line)
	}
	j.pos = end
}

func (e *Engine) serveStream(w http.ResponseWriter, r *http.Request, j *job) {
	w.Header().Set("Content-Type", "application/x-ndjson")
	flusher, _ := w.(http.Flusher)
	for {
		j.mu.Lock()
		if j.cancelled || j.pos >= len(j.lines) {
			j.mu.Unlock()
			return
		}
		line := j.lines[j.pos]
		j.pos++
		j.mu.Unlock()

		if id := vertexOfLine(line); id != "" {
			if d := j.delays[id]; d > 0 {
				select {
				case <-r.Context().Done():
					return
				case <-time.After(d):
				}
			}
		}
		if r.Context().Err() != nil {
			return
		}
		fmt.Fprintln(w, line)
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func (e *Engine) handleCancel(w http.ResponseWriter, r *http.Request) {
	e.mu.Lock()
	j := e.jobs[chi.URLParam(r, "jobID")]
	e.mu.Unlock()
	if j == nil {
		writeDetail(w, http.StatusNotFound, "job not found")
		return
	}
	j.mu.Lock()
	j.cancelled = true
	j.mu.Unlock()
	e.logger.Debug("job cancelled", "job_id", chi.URLParam(r, "jobID"))
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// script renders the full event sequence of one flow as NDJSON lines.
func (e *Engine) script(f *Flow) []string {
	ids := f.flatIDs()
	lines := []string{
		eventLine("vertices_sorted", map[string]any{"ids": ids, "to_run": ids}),
	}
	pruned := make(map[string]bool)
	for _, layer := range f.Layers {
		for _, id := range layer {
			if pruned[id] {
				continue
			}
			v := f.vertex(id)
			lines = append(lines, eventLine("build_start", map[string]string{"id": id}))
			lines = append(lines, eventLine("end_vertex", map[string]any{"build_data": buildData(v)}))
			lines = append(lines, eventLine("build_end", map[string]string{"id": id}))
			for _, p := range v.Inactivates {
				pruned[p] = true
			}
			if v.Message != "" && !v.Fail {
				lines = append(lines, messageLines(id, v.Message)...)
			}
			if v.Fail {
				lines = append(lines, eventLine("error", map[string]any{
					"source": id,
					"text":   v.ErrorText,
					"error":  true,
				}))
			}
		}
	}
	lines = append(lines, eventLine("end", map[string]any{}))
	return lines
}

// messageLines emits an add_message followed by the text split into
// token chunks, mimicking streamed chat output.
func messageLines(vertexID, text string) []string {
	msgID := uuid.NewString()
	lines := []string{
		eventLine("add_message", map[string]any{
			"id":          msgID,
			"text":        "",
			"sender":      "Machine",
			"sender_name": "AI",
			"session_id":  vertexID,
		}),
	}
	const chunkSize = 4
	for i := 0; i < len(text); i += chunkSize {
		end := i + chunkSize
		if end > len(text) {
			end = len(text)
		}
		lines = append(lines, eventLine("token", map[string]string{
			"id":    msgID,
			"chunk": text[i:end],
		}))
	}
	return lines
}

func buildData(v Vertex) map[string]any {
	data := map[string]any{
		"id":                   v.ID,
		"valid":                !v.Fail,
		"next_vertices_ids":    v.Next,
		"inactivated_vertices": v.Inactivates,
	}
	if v.Fail {
		text := v.ErrorText
		if text == "" {
			text = "component build failed"
		}
		data["params"] = text
		data["data"] = map[string]any{
			"outputs": map[string]any{
				"output": map[string]any{
					"message": map[string]any{"errorMessage": text},
					"type":    "error",
				},
			},
		}
	}
	return data
}

func (e *Engine) flowDelays(f *Flow) map[string]time.Duration {
	delays := make(map[string]time.Duration)
	for id, v := range f.Vertices {
		if v.Delay > 0 {
			delays[id] = v.Delay
		}
	}
	return delays
}

// streamLines writes NDJSON lines, pausing before each vertex result
// by its scripted delay.
func streamLines(w http.ResponseWriter, r *http.Request, lines []string, f *Flow, delays map[string]time.Duration) {
	w.Header().Set("Content-Type", "application/x-ndjson")
	flusher, _ := w.(http.Flusher)
	for _, line := range lines {
		if id := vertexOfLine(line); id != "" {
			if d := delays[id]; d > 0 {
				select {
				case <-r.Context().Done():
					return
				case <-time.After(d):
				}
			}
		}
		if r.Context().Err() != nil {
			return
		}
		fmt.Fprintln(w, line)
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// vertexOfLine extracts the vertex id of a build_start line, the
// anchor point for scripted delays.
func vertexOfLine(line string) string {
	var f struct {
		Event string `json:"event"`
		Data  struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal([]byte(line), &f); err != nil {
		return ""
	}
	if f.Event != "build_start" {
		return ""
	}
	return f.Data.ID
}

func eventLine(event string, data any) string {
	b, _ := json.Marshal(map[string]any{"event": event, "data": data})
	return string(b)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
