package observability_test

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/observability"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/aretw0/arbor/pkg/tree"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutcome(t *testing.T) {
	assert.Equal(t, observability.OutcomeOK, observability.Outcome(nil))
	assert.Equal(t, observability.OutcomeConflict, observability.Outcome(fmt.Errorf("x: %w", domain.ErrConcurrencyConflict)))
	assert.Equal(t, observability.OutcomeRejected, observability.Outcome(domain.ErrInvalidMove))
	assert.Equal(t, observability.OutcomeError, observability.Outcome(fmt.Errorf("disk on fire")))
}

func TestMetrics_FromTree(t *testing.T) {
	metrics := observability.NewMetrics()
	var logs bytes.Buffer
	logger := logging.NewWithWriter(&logs, slog.LevelInfo, logging.FormatJSON)

	store := memory.NewStore()
	fx := ports.SeedFixture(t, store, domain.Scope{})
	tr, err := tree.New(store, tree.DefaultConfig(),
		tree.WithHooks(observability.Chain(metrics.Hooks(), observability.LogHooks(logger))))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = tr.MoveToChildOf(ctx, fx.Child2, fx.Child1)
	require.NoError(t, err)
	_, err = tr.MoveToChildOf(ctx, fx.Top, fx.Child21)
	require.Error(t, err)
	_, err = tr.Insert(ctx, domain.NewNode("x", domain.Scope{}))
	require.NoError(t, err)

	expected := `
# HELP arbor_mutations_total Tree mutations by operation and outcome
# TYPE arbor_mutations_total counter
arbor_mutations_total{op="insert",outcome="ok"} 1
arbor_mutations_total{op="move",outcome="ok"} 1
arbor_mutations_total{op="move",outcome="rejected"} 1
`
	require.NoError(t, testutil.GatherAndCompare(metrics.Registry(), strings.NewReader(expected), "arbor_mutations_total"))
	assert.Equal(t, 2, testutil.CollectAndCount(metrics.Registry(), "arbor_mutation_duration_seconds"))

	assert.Contains(t, logs.String(), `"op":"move"`)
	assert.Contains(t, logs.String(), `"err":`)
}

func TestMetrics_Handler(t *testing.T) {
	metrics := observability.NewMetrics()
	metrics.Observe(&domain.MutationEvent{Kind: domain.MutationRebuild, Duration: time.Millisecond})

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `arbor_mutations_total{op="rebuild",outcome="ok"} 1`)
}
