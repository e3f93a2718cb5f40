package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

type loggingMiddleware struct {
	ports.Store
	logger *slog.Logger
}

// NewLoggingMiddleware logs every transaction at debug level with its duration
// and outcome.
func NewLoggingMiddleware(logger *slog.Logger) Middleware {
	return func(next ports.Store) ports.Store {
		return &loggingMiddleware{Store: next, logger: logger}
	}
}

func (m *loggingMiddleware) Update(ctx context.Context, scope domain.Scope, fn func(ctx context.Context, tx ports.Tx) error) error {
	start := time.Now()
	err := m.Store.Update(ctx, scope, fn)
	attrs := []any{"scope", scope, "duration", time.Since(start)}
	if err != nil {
		m.logger.DebugContext(ctx, "store transaction aborted", append(attrs, "err", err)...)
		return err
	}
	m.logger.DebugContext(ctx, "store transaction committed", attrs...)
	return nil
}
