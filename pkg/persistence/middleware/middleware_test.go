package middleware_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/persistence/middleware"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyStore fails the first conflicts calls to Update with a conflict.
type flakyStore struct {
	ports.Store
	conflicts int
	calls     int
}

func (s *flakyStore) Update(ctx context.Context, scope domain.Scope, fn func(ctx context.Context, tx ports.Tx) error) error {
	s.calls++
	if s.calls <= s.conflicts {
		return domain.ErrConcurrencyConflict
	}
	return s.Store.Update(ctx, scope, fn)
}

func create(name string) func(ctx context.Context, tx ports.Tx) error {
	return func(ctx context.Context, tx ports.Tx) error {
		_, err := tx.Create(ctx, domain.Record{Name: name, Left: 1, Right: 2})
		return err
	}
}

func TestRetryMiddleware(t *testing.T) {
	ctx := context.Background()

	t.Run("Recovers From Conflicts", func(t *testing.T) {
		flaky := &flakyStore{Store: memory.NewStore(), conflicts: 2}
		store := middleware.Chain(flaky, middleware.NewRetryMiddleware(middleware.RetryConfig{Attempts: 3}))

		require.NoError(t, store.Update(ctx, domain.Scope{}, create("a")))
		assert.Equal(t, 3, flaky.calls)

		nodes, err := store.Filter(ctx, domain.ScopeFilter(domain.Scope{}))
		require.NoError(t, err)
		assert.Len(t, nodes, 1, "only the successful attempt commits")
	})

	t.Run("Gives Up", func(t *testing.T) {
		flaky := &flakyStore{Store: memory.NewStore(), conflicts: 5}
		store := middleware.NewRetryMiddleware(middleware.RetryConfig{Attempts: 2})(flaky)

		err := store.Update(ctx, domain.Scope{}, create("a"))
		assert.ErrorIs(t, err, domain.ErrConcurrencyConflict)
		assert.Equal(t, 2, flaky.calls)
	})

	t.Run("Other Errors Are Not Retried", func(t *testing.T) {
		flaky := &flakyStore{Store: memory.NewStore()}
		store := middleware.NewRetryMiddleware(middleware.RetryConfig{Attempts: 5})(flaky)

		boom := errors.New("boom")
		err := store.Update(ctx, domain.Scope{}, func(context.Context, ports.Tx) error { return boom })
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, flaky.calls)
	})

	t.Run("Honours Cancellation", func(t *testing.T) {
		flaky := &flakyStore{Store: memory.NewStore(), conflicts: 5}
		store := middleware.NewRetryMiddleware(middleware.RetryConfig{Attempts: 5, Backoff: time.Hour})(flaky)

		cctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()
		err := store.Update(cctx, domain.Scope{}, create("a"))
		assert.ErrorIs(t, err, domain.ErrConcurrencyConflict)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Equal(t, 1, flaky.calls)
	})
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter(&buf, slog.LevelDebug, logging.FormatText)
	store := middleware.NewLoggingMiddleware(logger)(memory.NewStore())

	ctx := context.Background()
	require.NoError(t, store.Update(ctx, domain.Scope{}, create("a")))
	assert.Contains(t, buf.String(), "store transaction committed")

	err := store.Update(ctx, domain.Scope{}, func(context.Context, ports.Tx) error { return domain.ErrNotFound })
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Contains(t, buf.String(), "store transaction aborted")
}
