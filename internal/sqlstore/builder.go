package sqlstore

import (
	"fmt"
	"strings"

	"github.com/aretw0/arbor/pkg/domain"
)

// Statement is a query with its positional arguments.
type Statement struct {
	SQL  string
	Args []any
}

// args accumulates positional arguments and hands out dialect placeholders.
type args struct {
	d    Dialect
	vals []any
}

func (a *args) add(v any) string {
	a.vals = append(a.vals, v)
	return a.d.Placeholder(len(a.vals))
}

// Builder renders statements for one schema and dialect.
type Builder struct {
	s       Schema
	d       Dialect
	columns string
}

// NewBuilder validates the schema and prepares the column list.
func NewBuilder(s Schema, d Dialect) (*Builder, error) {
	s = s.WithDefaults()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	cols := append([]string{s.ID, s.Name, s.Parent, s.Left, s.Right}, s.ScopeColumns...)
	return &Builder{s: s, d: d, columns: strings.Join(cols, ", ")}, nil
}

// Schema returns the resolved schema.
func (b *Builder) Schema() Schema { return b.s }

func (b *Builder) newArgs() *args { return &args{d: b.d} }

func (b *Builder) scopeWhere(a *args, scope domain.Scope) ([]string, error) {
	values := scope.Values()
	if len(values) != len(b.s.ScopeColumns) {
		return nil, fmt.Errorf("%w: got %d values for columns %v", domain.ErrScopeMismatch, len(values), b.s.ScopeColumns)
	}
	conds := make([]string, 0, len(values))
	for i, col := range b.s.ScopeColumns {
		conds = append(conds, col+" = "+a.add(values[i]))
	}
	return conds, nil
}

func where(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

// rangeCond renders an inclusive range check; zero bounds are open.
func rangeCond(a *args, col string, r domain.Range) string {
	switch {
	case r.Lo != 0 && r.Hi != 0:
		return col + " BETWEEN " + a.add(r.Lo) + " AND " + a.add(r.Hi)
	case r.Lo != 0:
		return col + " >= " + a.add(r.Lo)
	case r.Hi != 0:
		return col + " <= " + a.add(r.Hi)
	}
	return "1 = 1"
}

// CreateTable returns the statements creating the table and its indexes.
func (b *Builder) CreateTable() []string {
	s := b.s
	var cols []string
	cols = append(cols,
		s.ID+" "+b.d.IDColumn,
		s.Name+" TEXT NOT NULL DEFAULT ''",
		s.Parent+" "+b.d.IntType+" NULL",
		s.Left+" "+b.d.IntType+" NOT NULL DEFAULT 0",
		s.Right+" "+b.d.IntType+" NOT NULL DEFAULT 0",
	)
	for _, c := range s.ScopeColumns {
		cols = append(cols, c+" TEXT NOT NULL DEFAULT ''")
	}
	lftIdx := append(append([]string{}, s.ScopeColumns...), s.Left)
	return []string{
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", s.Table, strings.Join(cols, ", ")),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_%s_idx ON %s (%s)", s.Table, s.Left, s.Table, strings.Join(lftIdx, ", ")),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_%s_idx ON %s (%s)", s.Table, s.Parent, s.Table, s.Parent),
	}
}

// DropTable removes the table.
func (b *Builder) DropTable() string {
	return "DROP TABLE IF EXISTS " + b.s.Table
}

// Get selects one row by id.
func (b *Builder) Get(id domain.ID) Statement {
	a := b.newArgs()
	q := fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s", b.columns, b.s.Table, b.s.ID, a.add(int64(id)))
	return Statement{SQL: q, Args: a.vals}
}

// Filter renders a domain.Filter, ordered by left then id.
func (b *Builder) Filter(f domain.Filter) (Statement, error) {
	a := b.newArgs()
	conds, err := b.scopeWhere(a, f.Scope)
	if err != nil {
		return Statement{}, err
	}
	if f.Exclude != domain.NoID {
		conds = append(conds, b.s.ID+" <> "+a.add(int64(f.Exclude)))
	}
	if !f.Left.Open() {
		conds = append(conds, rangeCond(a, b.s.Left, f.Left))
	}
	if !f.Right.Open() {
		conds = append(conds, rangeCond(a, b.s.Right, f.Right))
	}
	if f.ByParent {
		if f.Parent == domain.NoID {
			conds = append(conds, b.s.Parent+" IS NULL")
		} else {
			conds = append(conds, b.s.Parent+" = "+a.add(int64(f.Parent)))
		}
	}
	if f.Leaves {
		conds = append(conds, b.s.Right+" - "+b.s.Left+" = 1")
	}
	q := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s, %s", b.columns, b.s.Table, where(conds), b.s.Left, b.s.ID)
	return Statement{SQL: q, Args: a.vals}, nil
}

// MaxRight selects the largest numbered right boundary; NULL for an empty scope.
func (b *Builder) MaxRight(scope domain.Scope) (Statement, error) {
	a := b.newArgs()
	conds, err := b.scopeWhere(a, scope)
	if err != nil {
		return Statement{}, err
	}
	conds = append(conds, b.s.Right+" > 0")
	q := fmt.Sprintf("SELECT MAX(%s) FROM %s%s", b.s.Right, b.s.Table, where(conds))
	return Statement{SQL: q, Args: a.vals}, nil
}

// Insert adds a row and returns its id.
func (b *Builder) Insert(rec domain.Record) (Statement, error) {
	if len(rec.Scope) != len(b.s.ScopeColumns) {
		return Statement{}, fmt.Errorf("%w: got %d values for columns %v", domain.ErrScopeMismatch, len(rec.Scope), b.s.ScopeColumns)
	}
	a := b.newArgs()
	cols := append([]string{b.s.Name, b.s.Parent, b.s.Left, b.s.Right}, b.s.ScopeColumns...)
	vals := []string{a.add(rec.Name), a.add(nullableID(rec.Parent)), a.add(rec.Left), a.add(rec.Right)}
	for _, v := range rec.Scope {
		vals = append(vals, a.add(v))
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		b.s.Table, strings.Join(cols, ", "), strings.Join(vals, ", "), b.s.ID)
	return Statement{SQL: q, Args: a.vals}, nil
}

// Delete removes one row.
func (b *Builder) Delete(id domain.ID) Statement {
	a := b.newArgs()
	q := fmt.Sprintf("DELETE FROM %s WHERE %s = %s", b.s.Table, b.s.ID, a.add(int64(id)))
	return Statement{SQL: q, Args: a.vals}
}

// DeleteRange removes every row strictly inside (lo, hi).
func (b *Builder) DeleteRange(scope domain.Scope, lo, hi int64) (Statement, error) {
	a := b.newArgs()
	conds, err := b.scopeWhere(a, scope)
	if err != nil {
		return Statement{}, err
	}
	conds = append(conds, b.s.Left+" > "+a.add(lo), b.s.Right+" < "+a.add(hi))
	q := fmt.Sprintf("DELETE FROM %s%s", b.s.Table, where(conds))
	return Statement{SQL: q, Args: a.vals}, nil
}

// Remap swaps [A,B] and [C,D] over both boundary columns in one UPDATE.
func (b *Builder) Remap(scope domain.Scope, r domain.Remap) (Statement, error) {
	a := b.newArgs()
	remap := func(col string) string {
		return fmt.Sprintf("CASE WHEN %[1]s BETWEEN %[2]s AND %[3]s THEN %[1]s + %[4]s WHEN %[1]s BETWEEN %[5]s AND %[6]s THEN %[1]s + %[7]s ELSE %[1]s END",
			col, a.add(r.A), a.add(r.B), a.add(r.D-r.B), a.add(r.C), a.add(r.D), a.add(r.A-r.C))
	}
	set := b.s.Left + " = " + remap(b.s.Left) + ", " + b.s.Right + " = " + remap(b.s.Right)

	conds, err := b.scopeWhere(a, scope)
	if err != nil {
		return Statement{}, err
	}
	span := domain.Range{Lo: r.A, Hi: r.D}
	conds = append(conds, "("+rangeCond(a, b.s.Left, span)+" OR "+rangeCond(a, b.s.Right, span)+")")
	q := fmt.Sprintf("UPDATE %s SET %s%s", b.s.Table, set, where(conds))
	return Statement{SQL: q, Args: a.vals}, nil
}

// Shift adds delta to every numbered boundary inside span.
func (b *Builder) Shift(scope domain.Scope, span domain.Range, delta int64) (Statement, error) {
	a := b.newArgs()
	shift := func(col string) string {
		return fmt.Sprintf("CASE WHEN %s <> 0 AND %s THEN %s + %s ELSE %s END", col, rangeCond(a, col, span), col, a.add(delta), col)
	}
	set := b.s.Left + " = " + shift(b.s.Left) + ", " + b.s.Right + " = " + shift(b.s.Right)

	conds, err := b.scopeWhere(a, scope)
	if err != nil {
		return Statement{}, err
	}
	conds = append(conds, "("+rangeCond(a, b.s.Left, span)+" OR "+rangeCond(a, b.s.Right, span)+")")
	q := fmt.Sprintf("UPDATE %s SET %s%s", b.s.Table, set, where(conds))
	return Statement{SQL: q, Args: a.vals}, nil
}

// SetParent updates one parent pointer.
func (b *Builder) SetParent(id, parent domain.ID) Statement {
	a := b.newArgs()
	q := fmt.Sprintf("UPDATE %s SET %s = %s WHERE %s = %s",
		b.s.Table, b.s.Parent, a.add(nullableID(parent)), b.s.ID, a.add(int64(id)))
	return Statement{SQL: q, Args: a.vals}
}

// Reparent moves every direct child of from under to.
func (b *Builder) Reparent(scope domain.Scope, from, to domain.ID) (Statement, error) {
	a := b.newArgs()
	set := b.s.Parent + " = " + a.add(nullableID(to))
	conds, err := b.scopeWhere(a, scope)
	if err != nil {
		return Statement{}, err
	}
	conds = append(conds, b.s.Parent+" = "+a.add(int64(from)))
	q := fmt.Sprintf("UPDATE %s SET %s%s", b.s.Table, set, where(conds))
	return Statement{SQL: q, Args: a.vals}, nil
}

// SetBounds overwrites one boundary pair.
func (b *Builder) SetBounds(bd domain.Bounds) Statement {
	a := b.newArgs()
	q := fmt.Sprintf("UPDATE %s SET %s = %s, %s = %s WHERE %s = %s",
		b.s.Table, b.s.Left, a.add(bd.Left), b.s.Right, a.add(bd.Right), b.s.ID, a.add(int64(bd.ID)))
	return Statement{SQL: q, Args: a.vals}
}

func nullableID(id domain.ID) any {
	if id == domain.NoID {
		return nil
	}
	return int64(id)
}
