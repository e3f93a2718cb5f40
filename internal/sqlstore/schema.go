// Package sqlstore translates nested set store operations into SQL.
// It is shared by the relational adapters; each one supplies a Dialect and a Conn.
package sqlstore

import (
	"fmt"
	"regexp"
	"strconv"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Schema maps the node columns onto an existing or generated table.
type Schema struct {
	Table        string   `mapstructure:"table" yaml:"table"`
	ID           string   `mapstructure:"id" yaml:"id"`
	Name         string   `mapstructure:"name" yaml:"name"`
	Parent       string   `mapstructure:"parent" yaml:"parent"`
	Left         string   `mapstructure:"left" yaml:"left"`
	Right        string   `mapstructure:"right" yaml:"right"`
	ScopeColumns []string `mapstructure:"scope_columns" yaml:"scope_columns"`
}

// DefaultSchema returns the conventional column names.
func DefaultSchema(scopeColumns ...string) Schema {
	return Schema{
		Table:        "nodes",
		ID:           "id",
		Name:         "name",
		Parent:       "parent_id",
		Left:         "lft",
		Right:        "rgt",
		ScopeColumns: scopeColumns,
	}
}

// WithDefaults fills every empty column name from DefaultSchema.
func (s Schema) WithDefaults() Schema {
	d := DefaultSchema()
	fill := func(v *string, def string) {
		if *v == "" {
			*v = def
		}
	}
	fill(&s.Table, d.Table)
	fill(&s.ID, d.ID)
	fill(&s.Name, d.Name)
	fill(&s.Parent, d.Parent)
	fill(&s.Left, d.Left)
	fill(&s.Right, d.Right)
	return s
}

// Validate rejects identifiers that cannot be interpolated safely.
func (s Schema) Validate() error {
	names := append([]string{s.Table, s.ID, s.Name, s.Parent, s.Left, s.Right}, s.ScopeColumns...)
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if !identRe.MatchString(n) {
			return fmt.Errorf("invalid sql identifier %q", n)
		}
		if n != s.Table && seen[n] {
			return fmt.Errorf("duplicate column %q", n)
		}
		seen[n] = true
	}
	return nil
}

// Dialect captures the differences between SQL engines.
type Dialect struct {
	Name        string
	Placeholder func(n int) string
	IDColumn    string
	IntType     string
}

var (
	SQLite = Dialect{
		Name:        "sqlite",
		Placeholder: func(int) string { return "?" },
		IDColumn:    "INTEGER PRIMARY KEY AUTOINCREMENT",
		IntType:     "INTEGER",
	}
	Postgres = Dialect{
		Name:        "postgres",
		Placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
		IDColumn:    "BIGSERIAL PRIMARY KEY",
		IntType:     "BIGINT",
	}
)
