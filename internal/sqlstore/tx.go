package sqlstore

import (
	"context"
	"fmt"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

// Conn is the minimal surface the relational adapters expose, either over a
// pool or inside a transaction.
type Conn interface {
	// Exec runs a statement and returns the number of affected rows.
	Exec(ctx context.Context, query string, args ...any) (int64, error)
	Query(ctx context.Context, query string, args ...any) (Rows, error)
}

// Rows is a forward-only cursor.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

// Reader implements ports.Reader over a Conn.
type Reader struct {
	conn Conn
	b    *Builder
}

// NewReader binds a builder to a connection.
func NewReader(conn Conn, b *Builder) *Reader {
	return &Reader{conn: conn, b: b}
}

func (r *Reader) Get(ctx context.Context, id domain.ID) (*domain.Node, error) {
	st := r.b.Get(id)
	nodes, err := r.query(ctx, st)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, domain.ErrNotFound
	}
	return nodes[0], nil
}

func (r *Reader) Filter(ctx context.Context, f domain.Filter) ([]*domain.Node, error) {
	st, err := r.b.Filter(f)
	if err != nil {
		return nil, err
	}
	return r.query(ctx, st)
}

func (r *Reader) MaxRight(ctx context.Context, scope domain.Scope) (int64, bool, error) {
	st, err := r.b.MaxRight(scope)
	if err != nil {
		return 0, false, err
	}
	rows, err := r.conn.Query(ctx, st.SQL, st.Args...)
	if err != nil {
		return 0, false, fmt.Errorf("max right: %w", err)
	}
	defer rows.Close()

	var max *int64
	if rows.Next() {
		if err := rows.Scan(&max); err != nil {
			return 0, false, err
		}
	}
	if err := rows.Err(); err != nil {
		return 0, false, err
	}
	if max == nil {
		return 0, false, nil
	}
	return *max, true, nil
}

func (r *Reader) query(ctx context.Context, st Statement) ([]*domain.Node, error) {
	rows, err := r.conn.Query(ctx, st.SQL, st.Args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", r.b.s.Table, err)
	}
	defer rows.Close()

	var out []*domain.Node
	for rows.Next() {
		rec, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec.Node())
	}
	return out, rows.Err()
}

func (r *Reader) scan(rows Rows) (domain.Record, error) {
	var (
		id     int64
		rec    domain.Record
		parent *int64
	)
	scope := make([]string, len(r.b.s.ScopeColumns))
	dest := []any{&id, &rec.Name, &parent, &rec.Left, &rec.Right}
	for i := range scope {
		dest = append(dest, &scope[i])
	}
	if err := rows.Scan(dest...); err != nil {
		return domain.Record{}, fmt.Errorf("scan %s: %w", r.b.s.Table, err)
	}
	rec.ID = domain.ID(id)
	if parent != nil {
		rec.Parent = domain.ID(*parent)
	}
	if len(scope) > 0 {
		rec.Scope = scope
	}
	return rec, nil
}

// Tx implements ports.Tx over a Conn bound to a transaction.
type Tx struct {
	*Reader
	scope domain.Scope
}

var _ ports.Tx = (*Tx)(nil)

// NewTx binds a transaction connection to one scope.
func NewTx(conn Conn, b *Builder, scope domain.Scope) *Tx {
	return &Tx{Reader: NewReader(conn, b), scope: scope}
}

func (t *Tx) checkScope(scope domain.Scope) error {
	if !scope.Equal(t.scope) {
		return fmt.Errorf("%w: transaction holds %s, got %s", domain.ErrScopeMismatch, t.scope, scope)
	}
	return nil
}

func (t *Tx) exec(ctx context.Context, st Statement) (int64, error) {
	n, err := t.conn.Exec(ctx, st.SQL, st.Args...)
	if err != nil {
		return 0, fmt.Errorf("exec on %s: %w", t.b.s.Table, err)
	}
	return n, nil
}

func (t *Tx) Create(ctx context.Context, rec domain.Record) (*domain.Node, error) {
	if err := t.checkScope(domain.NewScope(rec.Scope...)); err != nil {
		return nil, err
	}
	st, err := t.b.Insert(rec)
	if err != nil {
		return nil, err
	}
	rows, err := t.conn.Query(ctx, st.SQL, st.Args...)
	if err != nil {
		return nil, fmt.Errorf("insert into %s: %w", t.b.s.Table, err)
	}
	defer rows.Close()

	var id int64
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("insert into %s returned no id", t.b.s.Table)
	}
	if err := rows.Scan(&id); err != nil {
		return nil, err
	}
	rec.ID = domain.ID(id)
	return rec.Node(), nil
}

func (t *Tx) Delete(ctx context.Context, id domain.ID) error {
	n, err := t.exec(ctx, t.b.Delete(id))
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (t *Tx) DeleteRange(ctx context.Context, scope domain.Scope, lo, hi int64) error {
	if err := t.checkScope(scope); err != nil {
		return err
	}
	st, err := t.b.DeleteRange(scope, lo, hi)
	if err != nil {
		return err
	}
	_, err = t.exec(ctx, st)
	return err
}

func (t *Tx) Remap(ctx context.Context, scope domain.Scope, r domain.Remap) error {
	if err := t.checkScope(scope); err != nil {
		return err
	}
	st, err := t.b.Remap(scope, r)
	if err != nil {
		return err
	}
	_, err = t.exec(ctx, st)
	return err
}

func (t *Tx) Shift(ctx context.Context, scope domain.Scope, span domain.Range, delta int64) error {
	if err := t.checkScope(scope); err != nil {
		return err
	}
	st, err := t.b.Shift(scope, span, delta)
	if err != nil {
		return err
	}
	_, err = t.exec(ctx, st)
	return err
}

func (t *Tx) SetParent(ctx context.Context, id, parent domain.ID) error {
	n, err := t.exec(ctx, t.b.SetParent(id, parent))
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (t *Tx) Reparent(ctx context.Context, scope domain.Scope, from, to domain.ID) error {
	if err := t.checkScope(scope); err != nil {
		return err
	}
	st, err := t.b.Reparent(scope, from, to)
	if err != nil {
		return err
	}
	_, err = t.exec(ctx, st)
	return err
}

func (t *Tx) SetBounds(ctx context.Context, bounds []domain.Bounds) error {
	for _, bd := range bounds {
		n, err := t.exec(ctx, t.b.SetBounds(bd))
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("node %d: %w", bd.ID, domain.ErrNotFound)
		}
	}
	return nil
}
