package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/arbor/internal/config"
	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(driver, dsn string) *config.Config {
	cfg := config.Default()
	cfg.Store.Driver = driver
	cfg.Store.DSN = dsn
	cfg.Tree.Scope = []string{"tenant"}
	return &cfg
}

func TestBootstrap_Drivers(t *testing.T) {
	cases := map[string]*config.Config{
		"memory": testConfig(config.DriverMemory, ""),
		"sqlite": testConfig(config.DriverSQLite, filepath.Join(t.TempDir(), "arbor.db")),
		"badger": testConfig(config.DriverBadger, InMemoryDSN),
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			rt, err := Bootstrap(ctx, cfg, logging.NewNop())
			require.NoError(t, err)
			defer rt.Close()

			scope := domain.NewScope("acme")
			root, err := rt.Tree.Insert(ctx, domain.NewNode("Root", scope))
			require.NoError(t, err)
			child, err := rt.Tree.InsertChild(ctx, domain.NewNode("Child", scope), root.ID)
			require.NoError(t, err)

			assert.Equal(t, int64(2), child.Left())
			report, err := rt.Tree.Validate(ctx, scope)
			require.NoError(t, err)
			assert.NoError(t, report.Err())
		})
	}
}

func TestBootstrap_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	cfg := testConfig(config.DriverMemory, "")
	cfg.Redis.Addr = mr.Addr()
	rt, err := Bootstrap(ctx, cfg, logging.NewNop())
	require.NoError(t, err)
	defer rt.Close()

	_, err = rt.Tree.Insert(ctx, domain.NewNode("Root", domain.NewScope("acme")))
	require.NoError(t, err)
	assert.Empty(t, mr.Keys(), "scope lock released after commit")

	cfg.Redis.Addr = "127.0.0.1:1"
	_, err = Bootstrap(ctx, cfg, logging.NewNop())
	assert.ErrorContains(t, err, "redis")
}

func TestBootstrap_Metrics(t *testing.T) {
	ctx := context.Background()
	var logs bytes.Buffer
	logger := logging.NewWithWriter(&logs, 0, logging.FormatText)

	rt, err := Bootstrap(ctx, testConfig(config.DriverMemory, ""), logger)
	require.NoError(t, err)
	defer rt.Close()

	_, err = rt.Tree.Insert(ctx, domain.NewNode("Root", domain.NewScope("acme")))
	require.NoError(t, err)

	families, err := rt.Metrics.Registry().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
	assert.Contains(t, logs.String(), "op=insert")
}

func TestNewLogger(t *testing.T) {
	_, err := NewLogger(&bytes.Buffer{}, config.LogConfig{Level: "debug", Format: "json"})
	assert.NoError(t, err)
	_, err = NewLogger(&bytes.Buffer{}, config.LogConfig{Level: "loud"})
	assert.Error(t, err)
	_, err = NewLogger(&bytes.Buffer{}, config.LogConfig{Format: "xml"})
	assert.Error(t, err)
}
