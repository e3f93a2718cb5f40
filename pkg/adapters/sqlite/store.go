// Package sqlite stores nested sets in a SQLite database through the pure Go
// modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/internal/sqlstore"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Store implements ports.Store over SQLite.
type Store struct {
	db     *sql.DB
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

// DSN returns the connection string used for path: WAL journal, a busy timeout
// and IMMEDIATE transactions so writers take the lock up front.
func DSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
}

// Open opens the database at path and creates the table when missing.
func Open(ctx context.Context, path string, schema sqlstore.Schema, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", DSN(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	s, err := New(db, schema, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing handle. The caller keeps ownership of the DSN settings.
func New(db *sql.DB, schema sqlstore.Schema, opts ...Option) (*Store, error) {
	b, err := sqlstore.NewBuilder(schema, sqlstore.SQLite)
	if err != nil {
		return nil, err
	}
	s := &Store{
		db:     db,
		b:      b,
		reader: sqlstore.NewReader(conn{db}, b),
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
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	s.logger.Debug("sqlite schema ready", "table", s.b.Schema().Table)
	return nil
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

// Update runs fn in an IMMEDIATE transaction. A database locked by another
// writer past the busy timeout surfaces as domain.ErrConcurrencyConflict.
func (s *Store) Update(ctx context.Context, scope domain.Scope, fn func(ctx context.Context, tx ports.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapError(err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(ctx, sqlstore.NewTx(conn{tx}, s.b, scope)); err != nil {
		return mapError(err)
	}
	if err := tx.Commit(); err != nil {
		return mapError(err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func mapError(err error) error {
	var serr *sqlite.Error
	if errors.As(err, &serr) {
		switch serr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return fmt.Errorf("%w: %w", domain.ErrConcurrencyConflict, err)
		}
	}
	return err
}

type execQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// conn adapts *sql.DB and *sql.Tx to sqlstore.Conn.
type conn struct {
	q execQuerier
}

func (c conn) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := c.q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (c conn) Query(ctx context.Context, query string, args ...any) (sqlstore.Rows, error) {
	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return sqlRows{rows}, nil
}

type sqlRows struct {
	*sql.Rows
}

func (r sqlRows) Close() { _ = r.Rows.Close() }
