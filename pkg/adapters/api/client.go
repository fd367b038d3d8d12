// Package api implements ports.EngineAPI against the flow engine's
// HTTP surface. All payloads are JSON; event bodies are NDJSON.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/langflow-ai/flowbuild/internal/logging"
	"github.com/langflow-ai/flowbuild/pkg/domain"
	"github.com/langflow-ai/flowbuild/pkg/events"
	"github.com/langflow-ai/flowbuild/pkg/ports"
)

// Client talks to one flow engine instance.
type Client struct {
	base   *url.URL
	http   *http.Client
	apiKey string
	logger *slog.Logger
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Streaming reads
// require a client without a global timeout; use per-request contexts
// instead.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.http = h
	}
}

// WithAPIKey sets the x-api-key header on every request.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithLogger configures a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a Client for the given engine base URL.
func New(baseURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid engine base URL: %w", err)
	}
	c := &Client{
		base:   base,
		http:   &http.Client{},
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

var _ ports.EngineAPI = (*Client)(nil)

func (c *Client) endpoint(parts ...string) *url.URL {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + "/api/v1/" + strings.Join(parts, "/")
	return &u
}

func (c *Client) do(ctx context.Context, method string, u *url.URL, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}
	return c.http.Do(req)
}

// errorDetail extracts the engine's {"detail": "..."} error body and
// closes it.
func errorDetail(resp *http.Response) string {
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil || len(data) == 0 {
		return resp.Status
	}
	var payload struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(data, &payload) == nil && payload.Detail != "" {
		return payload.Detail
	}
	return strings.TrimSpace(string(data))
}

func routeUnavailable(status int) bool {
	return status == http.StatusNotFound || status == http.StatusMethodNotAllowed
}

// SortVertices resolves the layered execution order for a flow.
func (c *Client) SortVertices(ctx context.Context, req ports.OrderRequest) (*domain.ExecutionOrder, error) {
	if req.StartVertexID != "" && req.StopVertexID != "" {
		return nil, domain.ErrStartStopExclusive
	}
	u := c.endpoint("build", req.FlowID, "vertices")
	q := u.Query()
	if req.StartVertexID != "" {
		q.Set("start_component_id", req.StartVertexID)
	}
	if req.StopVertexID != "" {
		q.Set("stop_component_id", req.StopVertexID)
	}
	u.RawQuery = q.Encode()

	var body any
	if req.Data != nil {
		body = map[string]any{"data": req.Data}
	}
	resp, err := c.do(ctx, http.MethodPost, u, body)
	if err != nil {
		return nil, fmt.Errorf("order request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		detail := errorDetail(resp)
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidGraph, detail)
	}
	defer resp.Body.Close()

	var wire struct {
		IDs           json.RawMessage `json:"ids"`
		RunID         string          `json:"run_id"`
		VerticesToRun []string        `json:"vertices_to_run"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("decode order response: %w", err)
	}
	layers, err := decodeLayers(wire.IDs)
	if err != nil {
		return nil, fmt.Errorf("decode order response: %w", err)
	}
	return &domain.ExecutionOrder{
		RunID:         wire.RunID,
		Layers:        layers,
		VerticesToRun: wire.VerticesToRun,
	}, nil
}

// decodeLayers accepts both order encodings: a list of layers, or a
// flat first-layer list from engines that reveal later layers through
// next_vertices_ids.
func decodeLayers(raw json.RawMessage) ([][]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var nested [][]string
	if err := json.Unmarshal(raw, &nested); err == nil {
		return nested, nil
	}
	var flat []string
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, err
	}
	if len(flat) == 0 {
		return nil, nil
	}
	return [][]string{flat}, nil
}

func (c *Client) buildURL(req ports.BuildRequest, delivery domain.EventDeliveryType) *url.URL {
	u := c.endpoint("build", req.FlowID, "flow")
	q := u.Query()
	q.Set("event_delivery", string(delivery))
	q.Set("log_builds", strconv.FormatBool(req.LogBuilds))
	if req.StartVertexID != "" {
		q.Set("start_component_id", req.StartVertexID)
	}
	if req.StopVertexID != "" {
		q.Set("stop_component_id", req.StopVertexID)
	}
	u.RawQuery = q.Encode()
	return u
}

func buildBody(req ports.BuildRequest) map[string]any {
	body := map[string]any{
		"inputs": req.Inputs,
	}
	if len(req.Files) > 0 {
		body["files"] = req.Files
	}
	if req.Data != nil {
		body["data"] = req.Data
	}
	return body
}

// StartBuildStream starts a DIRECT build. The response body is the
// live event stream and is owned by the caller.
func (c *Client) StartBuildStream(ctx context.Context, req ports.BuildRequest) (io.ReadCloser, error) {
	resp, err := c.do(ctx, http.MethodPost, c.buildURL(req, domain.DeliveryDirect), buildBody(req))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if routeUnavailable(resp.StatusCode) {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: direct delivery (HTTP %d)", domain.ErrDeliveryUnsupported, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		detail := errorDetail(resp)
		return nil, fmt.Errorf("build request failed: %s", detail)
	}
	return resp.Body, nil
}

// StartBuildJob starts a STREAMING or POLLING build and returns its
// job id.
func (c *Client) StartBuildJob(ctx context.Context, req ports.BuildRequest, delivery domain.EventDeliveryType) (string, error) {
	resp, err := c.do(ctx, http.MethodPost, c.buildURL(req, delivery), buildBody(req))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	if routeUnavailable(resp.StatusCode) {
		resp.Body.Close()
		return "", fmt.Errorf("%w: %s delivery (HTTP %d)", domain.ErrDeliveryUnsupported, delivery, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		detail := errorDetail(resp)
		return "", fmt.Errorf("build request failed: %s", detail)
	}
	defer resp.Body.Close()

	var wire struct {
		JobID string `json:"job_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return "", fmt.Errorf("decode build response: %w", err)
	}
	if wire.JobID == "" {
		return "", fmt.Errorf("build response missing job_id")
	}
	return wire.JobID, nil
}

// StreamEvents opens the live event stream for a job.
func (c *Client) StreamEvents(ctx context.Context, jobID string) (io.ReadCloser, error) {
	u := c.endpoint("build", jobID, "events")
	resp, err := c.do(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("events request: %w", err)
	}
	if routeUnavailable(resp.StatusCode) {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: streaming events (HTTP %d)", domain.ErrDeliveryUnsupported, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		detail := errorDetail(resp)
		return nil, fmt.Errorf("events request failed: %s", detail)
	}
	return resp.Body, nil
}

// PollEvents fetches the events buffered since the last poll. An empty
// response is normal and yields an empty slice.
func (c *Client) PollEvents(ctx context.Context, jobID string) ([]domain.Event, error) {
	u := c.endpoint("build", jobID, "events")
	q := u.Query()
	q.Set("event_delivery", string(domain.DeliveryPolling))
	u.RawQuery = q.Encode()

	resp, err := c.do(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("poll request: %w", err)
	}
	if routeUnavailable(resp.StatusCode) {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: polling events (HTTP %d)", domain.ErrDeliveryUnsupported, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		detail := errorDetail(resp)
		return nil, fmt.Errorf("poll request failed: %s", detail)
	}
	defer resp.Body.Close()
	return events.NewScanner(resp.Body).All()
}

// BuildVertex issues one per-vertex build request.
func (c *Client) BuildVertex(ctx context.Context, req ports.VertexBuildRequest) (*domain.VertexBuildResult, error) {
	u := c.endpoint("build", req.FlowID, "vertices", req.VertexID)
	body := map[string]any{"inputs": req.Inputs}
	if len(req.Files) > 0 {
		body["files"] = req.Files
	}
	resp, err := c.do(ctx, http.MethodPost, u, body)
	if err != nil {
		return nil, fmt.Errorf("vertex build request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		detail := errorDetail(resp)
		return nil, fmt.Errorf("vertex build failed: %s", detail)
	}
	defer resp.Body.Close()

	var raw map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode vertex build response: %w", err)
	}
	return events.DecodeBuildResult(raw)
}

// CancelBuild asks the engine to stop a job. Best effort.
func (c *Client) CancelBuild(ctx context.Context, jobID string) error {
	// Detach from the attempt's context: cancellation is usually what
	// triggers this call in the first place. Bound it instead.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	u := c.endpoint("build", jobID, "cancel")
	resp, err := c.do(ctx, http.MethodPost, u, nil)
	if err != nil {
		return fmt.Errorf("cancel request: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("cancel request failed: %s", errorDetail(resp))
	}
	resp.Body.Close()
	c.logger.Debug("remote build cancelled", "job_id", jobID)
	return nil
}
