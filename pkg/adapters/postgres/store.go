// Package postgres stores nested sets in PostgreSQL using pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/internal/sqlstore"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SQLSTATE codes reported when a serializable transaction loses a race.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// Store implements ports.Store over a pgx pool. Every Update runs at
// SERIALIZABLE isolation.
type Store struct {
	pool   *pgxpool.Pool
	b      *sqlstore.Builder
	reader *sqlstore.Reader
	logger *slog.Logger
}

var _ ports.Store = (*Store)(nil)

type Option func(*Store)

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// Open connects to dsn and creates the table when missing.
func Open(ctx context.Context, dsn string, schema sqlstore.Schema, opts ...Option) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s, err := New(pool, schema, opts...)
	if err != nil {
		pool.Close()
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool, schema sqlstore.Schema, opts ...Option) (*Store, error) {
	b, err := sqlstore.NewBuilder(schema, sqlstore.Postgres)
	if err != nil {
		return nil, err
	}
	s := &Store{
		pool:   pool,
		b:      b,
		reader: sqlstore.NewReader(conn{pool}, b),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Migrate creates the table and indexes if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range s.b.CreateTable() {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	s.logger.Debug("postgres schema ready", "table", s.b.Schema().Table)
	return nil
}

// Drop removes the table and every node in it.
func (s *Store) Drop(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, s.b.DropTable())
	return err
}

func (s *Store) Get(ctx context.Context, id domain.ID) (*domain.Node, error) {
	return s.reader.Get(ctx, id)
}

func (s *Store) Filter(ctx context.Context, f domain.Filter) ([]*domain.Node, error) {
	return s.reader.Filter(ctx, f)
}

func (s *Store) MaxRight(ctx context.Context, scope domain.Scope) (int64, bool, error) {
	return s.reader.MaxRight(ctx, scope)
}

func (s *Store) Update(ctx context.Context, scope domain.Scope, fn func(ctx context.Context, tx ports.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return mapError(err)
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if err := fn(ctx, sqlstore.NewTx(conn{tx}, s.b, scope)); err != nil {
		return mapError(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return mapError(err)
	}
	return nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func mapError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil {
		switch pgErr.Code {
		case codeSerializationFailure, codeDeadlockDetected:
			return fmt.Errorf("%w: %w", domain.ErrConcurrencyConflict, err)
		}
	}
	return err
}

type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// conn adapts a pool or a pgx.Tx to sqlstore.Conn.
type conn struct {
	q pgQuerier
}

func (c conn) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	tag, err := c.q.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (c conn) Query(ctx context.Context, query string, args ...any) (sqlstore.Rows, error) {
	return c.q.Query(ctx, query, args...)
}
