package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/arbor/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "arbor.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := config.Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), *cfg)
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	assert.Error(t, err)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := write(t, `
store:
  driver: postgres
  dsn: postgres://localhost/arbor
  schema:
    table: categories
    left: lft_col
tree:
  scope: [tenant]
  dependent: detach
redis:
  addr: localhost:6379
  lock_ttl: 10s
`)

	cfg, err := config.Load(path, []string{
		"ARBOR_HTTP_ADDR=:9090",
		"ARBOR_TREE_SCOPE=tenant,menu",
		"ARBOR_REDIS_DB=2",
		"HOME=/root",
	})
	require.NoError(t, err)

	assert.Equal(t, config.DriverPostgres, cfg.Store.Driver)
	assert.Equal(t, "categories", cfg.Store.Schema.Table)
	assert.Equal(t, []string{"tenant", "menu"}, cfg.Tree.Scope, "env wins over file")
	assert.Equal(t, "detach", cfg.Tree.Dependent)
	assert.Equal(t, 10*time.Second, cfg.Redis.LockTTL)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, "arbor:", cfg.Redis.Prefix, "unset keys keep defaults")
	assert.Equal(t, ":9090", cfg.HTTP.Addr)

	schema := cfg.Schema()
	assert.Equal(t, "lft_col", schema.Left)
	assert.Equal(t, "rgt", schema.Right)
	assert.Equal(t, []string{"tenant", "menu"}, schema.ScopeColumns)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"Unknown Driver", "store:\n  driver: mongo\n"},
		{"Postgres Without DSN", "store:\n  driver: postgres\n"},
		{"Postgres Empty DSN", "store:\n  driver: postgres\n  dsn: \"\"\n"},
		{"Bad Policy", "tree:\n  dependent: shred\n"},
		{"Unknown Key", "tree:\n  colour: green\n"},
		{"Not YAML", "store: [unclosed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(write(t, tt.content), nil)
			assert.Error(t, err)
		})
	}
}

func TestLoad_PostgresNeedsDSN(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := config.Load("", []string{"ARBOR_STORE_DRIVER=postgres"})
	assert.ErrorContains(t, err, "store.dsn is required")

	cfg, err := config.Load("", nil)
	require.NoError(t, err)
	cfg.Store.Driver = config.DriverPostgres
	assert.Error(t, cfg.Validate(), "switching driver after load keeps the guard")
}

func TestStoreConfig_ResolvedDSN(t *testing.T) {
	tests := []struct {
		driver, dsn, want string
	}{
		{config.DriverSQLite, "", config.DefaultSQLiteDSN},
		{config.DriverBadger, "", config.DefaultBadgerDSN},
		{config.DriverSQLite, "/data/tree.db", "/data/tree.db"},
		{config.DriverPostgres, "", ""},
		{config.DriverMemory, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.driver+"/"+tt.dsn, func(t *testing.T) {
			s := config.StoreConfig{Driver: tt.driver, DSN: tt.dsn}
			assert.Equal(t, tt.want, s.ResolvedDSN())
		})
	}
}
