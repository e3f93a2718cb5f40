package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

// RetryConfig bounds how often a conflicting transaction is replayed.
type RetryConfig struct {
	// Attempts is the total number of tries, including the first one.
	Attempts int
	// Backoff is the pause before the second attempt; it doubles after each conflict.
	Backoff time.Duration
	Logger  *slog.Logger
}

type retryMiddleware struct {
	ports.Store
	config RetryConfig
}

// NewRetryMiddleware replays Update when the store reports
// domain.ErrConcurrencyConflict. Every attempt runs fn in a fresh transaction,
// so fn must not keep state across calls. Other errors are returned at once.
func NewRetryMiddleware(config RetryConfig) Middleware {
	if config.Attempts < 1 {
		config.Attempts = 1
	}
	if config.Logger == nil {
		config.Logger = logging.NewNop()
	}
	return func(next ports.Store) ports.Store {
		return &retryMiddleware{Store: next, config: config}
	}
}

func (m *retryMiddleware) Update(ctx context.Context, scope domain.Scope, fn func(ctx context.Context, tx ports.Tx) error) error {
	backoff := m.config.Backoff
	var err error
	for attempt := 1; ; attempt++ {
		err = m.Store.Update(ctx, scope, fn)
		if err == nil || !errors.Is(err, domain.ErrConcurrencyConflict) || attempt >= m.config.Attempts {
			return err
		}
		m.config.Logger.Debug("retrying conflicting transaction", "scope", scope, "attempt", attempt, "err", err)

		if backoff > 0 {
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return errors.Join(err, ctx.Err())
			case <-timer.C:
			}
			backoff *= 2
		}
	}
}
