/*
Package observability exports build progress as prometheus metrics.

Metrics is wired in as a hook observer: Instrument wraps the hooks of
one build attempt, records counters and durations, and forwards every
callback to the wrapped hooks unchanged.
*/
package observability

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/langflow-ai/flowbuild/pkg/domain"
)

// Metrics holds the prometheus collectors for flow builds.
type Metrics struct {
	buildsActive   prometheus.Gauge
	buildsTotal    *prometheus.CounterVec
	buildDuration  prometheus.Histogram
	verticesTotal  *prometheus.CounterVec
	vertexDuration prometheus.Histogram
	errorsTotal    prometheus.Counter
	tokensTotal    prometheus.Counter
}

// New registers the flowbuild collectors on reg and returns the
// Metrics handle. Pass prometheus.DefaultRegisterer for the global
// registry.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		buildsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "flowbuild",
			Name:      "builds_active",
			Help:      "Number of build attempts currently running.",
		}),
		buildsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flowbuild",
			Name:      "builds_total",
			Help:      "Finished build attempts by result.",
		}, []string{"result"}),
		buildDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "flowbuild",
			Name:      "build_duration_seconds",
			Help:      "Wall time of completed build attempts.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		verticesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flowbuild",
			Name:      "vertices_total",
			Help:      "Vertex outcomes by kind.",
		}, []string{"outcome"}),
		vertexDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "flowbuild",
			Name:      "vertex_duration_seconds",
			Help:      "Engine-reported per-vertex build time.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		errorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "flowbuild",
			Name:      "errors_total",
			Help:      "Build error events, vertex-level and attempt-level.",
		}),
		tokensTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "flowbuild",
			Name:      "tokens_total",
			Help:      "Streamed token chunks received.",
		}),
	}
}

// Instrument wraps the hooks of one build attempt. The returned hooks
// record metrics and forward every callback to next; next may be nil.
func (m *Metrics) Instrument(next *domain.BuildHooks) *domain.BuildHooks {
	var begin, settle sync.Once
	var started bool
	var start time.Time

	done := func(result string, observeDuration bool) {
		settle.Do(func() {
			if started {
				m.buildsActive.Dec()
			}
			m.buildsTotal.WithLabelValues(result).Inc()
			if observeDuration && started {
				m.buildDuration.Observe(time.Since(start).Seconds())
			}
		})
	}

	return &domain.BuildHooks{
		// A delivery fallback re-resolves the order; the attempt is
		// counted active only once.
		OnOrdered: func(ctx context.Context, ev *domain.VerticesSortedEvent) {
			begin.Do(func() {
				m.buildsActive.Inc()
				started = true
				start = time.Now()
			})
			next.EmitOrdered(ctx, ev)
		},
		OnVertexDone: func(ctx context.Context, out domain.VertexOutcome) {
			switch o := out.(type) {
			case domain.Built:
				m.verticesTotal.WithLabelValues("built").Inc()
				if o.Result.Duration > 0 {
					m.vertexDuration.Observe(o.Result.Duration.Seconds())
				}
			case domain.Errored:
				m.verticesTotal.WithLabelValues("errored").Inc()
			case domain.Inactive:
				m.verticesTotal.WithLabelValues("inactive").Inc()
			}
			next.EmitVertexDone(ctx, out)
		},
		OnMessage: func(ctx context.Context, msg *domain.Message) {
			next.EmitMessage(ctx, msg)
		},
		OnMessageRemoved: func(ctx context.Context, id string) {
			next.EmitMessageRemoved(ctx, id)
		},
		OnToken: func(ctx context.Context, messageID, chunk string) {
			m.tokensTotal.Inc()
			next.EmitToken(ctx, messageID, chunk)
		},
		OnError: func(ctx context.Context, err *domain.BuildError) {
			m.errorsTotal.Inc()
			next.EmitError(ctx, err)
		},
		OnComplete: func(ctx context.Context, summary *domain.BuildSummary) {
			result := "valid"
			if !summary.Valid {
				result = "invalid"
			}
			done(result, true)
			next.EmitComplete(ctx, summary)
		},
		OnStopped: func(ctx context.Context) {
			done("stopped", false)
			next.EmitStopped(ctx)
		},
		OnFailed: func(ctx context.Context, err error) {
			done("failed", false)
			next.EmitFailed(ctx, err)
		},
	}
}
