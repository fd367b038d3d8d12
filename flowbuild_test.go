package flowbuild_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langflow-ai/flowbuild"
	"github.com/langflow-ai/flowbuild/internal/mockengine"
	"github.com/langflow-ai/flowbuild/pkg/domain"
	"github.com/langflow-ai/flowbuild/pkg/observability"
)

func startEngine(t *testing.T, opts ...mockengine.Option) (*mockengine.Engine, string) {
	t.Helper()
	engine := mockengine.New(opts...)
	srv := httptest.NewServer(engine.Handler())
	t.Cleanup(srv.Close)
	return engine, srv.URL
}

func TestClientBuildAndWait(t *testing.T) {
	engine, url := startEngine(t)
	engine.Register(mockengine.Flow{
		ID:     "hello",
		Layers: [][]string{{"input"}, {"output"}},
		Vertices: map[string]mockengine.Vertex{
			"input":  {ID: "input", Next: []string{"output"}},
			"output": {ID: "output", Message: "Hi!"},
		},
	})

	client, err := flowbuild.New(url, flowbuild.WithMinVertexDuration(0))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	summary, err := client.BuildAndWait(ctx, flowbuild.BuildSpec{
		FlowID:     "hello",
		InputValue: "hello there",
	})
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.True(t, summary.Valid)
	assert.Equal(t, 2, summary.Built)
}

func TestClientRejectsConcurrentBuild(t *testing.T) {
	engine, url := startEngine(t)
	engine.Register(mockengine.Flow{
		ID:     "slow",
		Layers: [][]string{{"a"}},
		Vertices: map[string]mockengine.Vertex{
			"a": {ID: "a", Delay: time.Second},
		},
	})

	client, err := flowbuild.New(url, flowbuild.WithMinVertexDuration(0))
	require.NoError(t, err)

	attempt, err := client.Build(context.Background(), flowbuild.BuildSpec{FlowID: "slow"})
	require.NoError(t, err)
	defer attempt.Cancel()

	_, err = client.Build(context.Background(), flowbuild.BuildSpec{FlowID: "slow"})
	require.ErrorIs(t, err, domain.ErrBuildInProgress)
}

func TestClientInstrumentsBuilds(t *testing.T) {
	engine, url := startEngine(t)
	engine.Register(mockengine.Flow{
		ID:     "metered",
		Layers: [][]string{{"a"}},
	})

	reg := prometheus.NewRegistry()
	metrics := observability.New(reg)
	client, err := flowbuild.New(url,
		flowbuild.WithMinVertexDuration(0),
		flowbuild.WithMetrics(metrics),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err = client.BuildAndWait(ctx, flowbuild.BuildSpec{FlowID: "metered"})
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["flowbuild_builds_total"])
	assert.True(t, names["flowbuild_vertices_total"])
}
