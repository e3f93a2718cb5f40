package observability

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels.
const (
	OutcomeOK       = "ok"
	OutcomeConflict = "conflict"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Metrics records mutation counts and latencies.
type Metrics struct {
	registry  *prometheus.Registry
	mutations *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arbor_mutations_total",
				Help: "Tree mutations by operation and outcome",
			},
			[]string{"op", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "arbor_mutation_duration_seconds",
				Help:    "Latency of tree mutations, lock wait included",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
			},
			[]string{"op"},
		),
	}
	m.registry.MustRegister(m.mutations, m.duration)
	return m
}

// Registry exposes the underlying registry, e.g. to add Go runtime collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Observe records one mutation event.
func (m *Metrics) Observe(e *domain.MutationEvent) {
	op := string(e.Kind)
	m.mutations.WithLabelValues(op, Outcome(e.Err)).Inc()
	m.duration.WithLabelValues(op).Observe(e.Duration.Seconds())
}

// Hooks returns hooks feeding these metrics.
func (m *Metrics) Hooks() domain.Hooks {
	return domain.Hooks{
		OnMutation: func(_ context.Context, e *domain.MutationEvent) {
			m.Observe(e)
		},
	}
}

// Outcome classifies a mutation error into a low-cardinality label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, domain.ErrConcurrencyConflict):
		return OutcomeConflict
	case errors.Is(err, domain.ErrInvalidMove),
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrNotPersisted),
		errors.Is(err, domain.ErrUnsupportedPosition),
		errors.Is(err, domain.ErrUnsupportedPolicy),
		errors.Is(err, domain.ErrScopeMismatch):
		return OutcomeRejected
	}
	return OutcomeError
}

// LogHooks writes one line per mutation.
func LogHooks(logger *slog.Logger) domain.Hooks {
	return domain.Hooks{
		OnMutation: func(ctx context.Context, e *domain.MutationEvent) {
			attrs := []any{
				"op", e.Kind,
				"scope", e.Scope,
				"node_id", e.NodeID,
				"duration", e.Duration,
			}
			if e.Err != nil {
				logger.WarnContext(ctx, "mutation", append(attrs, "err", e.Err)...)
				return
			}
			logger.InfoContext(ctx, "mutation", attrs...)
		},
	}
}

// Chain merges hooks; each one is called in order.
func Chain(hooks ...domain.Hooks) domain.Hooks {
	return domain.Hooks{
		OnMutation: func(ctx context.Context, e *domain.MutationEvent) {
			for _, h := range hooks {
				if h.OnMutation != nil {
					h.OnMutation(ctx, e)
				}
			}
		},
	}
}
