// Package config loads arbor settings from a YAML file and ARBOR_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aretw0/arbor/internal/sqlstore"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// DefaultPath is read when no file is given explicitly.
const DefaultPath = "arbor.yaml"

// EnvPrefix marks environment overrides: ARBOR_<SECTION>_<KEY>, e.g. ARBOR_STORE_DSN.
const EnvPrefix = "ARBOR_"

// File locations used by the embedded drivers when store.dsn is empty.
const (
	DefaultSQLiteDSN = "arbor.db"
	DefaultBadgerDSN = "arbor.badger"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverBadger   = "badger"
)

type Config struct {
	Store StoreConfig `mapstructure:"store"`
	Tree  TreeConfig  `mapstructure:"tree"`
	Redis RedisConfig `mapstructure:"redis"`
	HTTP  HTTPConfig  `mapstructure:"http"`
	Log   LogConfig   `mapstructure:"log"`
}

type StoreConfig struct {
	Driver string          `mapstructure:"driver"`
	DSN    string          `mapstructure:"dsn"`
	Schema sqlstore.Schema `mapstructure:"schema"`

	// Retries is how many times a transaction is attempted when the store
	// reports a concurrent writer; RetryBackoff is the first pause between tries.
	Retries      int           `mapstructure:"retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`

	// GCInterval and MemTableSize only apply to the badger driver.
	GCInterval   time.Duration `mapstructure:"gc_interval"`
	MemTableSize int64         `mapstructure:"mem_table_size"`
}

// ResolvedDSN returns DSN, falling back to a local file for sqlite and badger.
// Postgres and memory get no fallback.
func (s StoreConfig) ResolvedDSN() string {
	if s.DSN != "" {
		return s.DSN
	}
	switch s.Driver {
	case DriverSQLite:
		return DefaultSQLiteDSN
	case DriverBadger:
		return DefaultBadgerDSN
	}
	return ""
}

type TreeConfig struct {
	Scope        []string `mapstructure:"scope"`
	Dependent    string   `mapstructure:"dependent"`
	RebuildOrder string   `mapstructure:"rebuild_order"`
}

// RedisConfig enables distributed scope locks when Addr is set.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	LockTTL  time.Duration `mapstructure:"lock_ttl"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Store: StoreConfig{
			Driver:       DriverSQLite,
			Retries:      3,
			RetryBackoff: 10 * time.Millisecond,
		},
		Tree: TreeConfig{
			Dependent:    string(domain.PolicyCascade),
			RebuildOrder: string(domain.RebuildByPosition),
		},
		Redis: RedisConfig{
			Prefix:  "arbor:",
			LockTTL: 30 * time.Second,
		},
		HTTP: HTTPConfig{Addr: ":8080"},
		Log:  LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads path (a missing DefaultPath is not an error), applies environment
// overrides from environ and decodes the result over Default().
func Load(path string, environ []string) (*Config, error) {
	raw := map[string]any{}

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	applyEnv(raw, environ)

	cfg := Default()
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv merges ARBOR_<SECTION>_<KEY>=value pairs into raw.
func applyEnv(raw map[string]any, environ []string) {
	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, EnvPrefix) {
			continue
		}
		section, key, ok := strings.Cut(strings.ToLower(strings.TrimPrefix(name, EnvPrefix)), "_")
		if !ok || key == "" {
			continue
		}
		sub, ok := raw[section].(map[string]any)
		if !ok {
			sub = map[string]any{}
			raw[section] = sub
		}
		sub[key] = value
	}
}

// Validate checks enumerations early so commands fail before opening stores.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverMemory, DriverSQLite, DriverPostgres, DriverBadger:
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Store.Driver == DriverPostgres && c.Store.DSN == "" {
		return errors.New("store.dsn is required for postgres")
	}
	if _, err := domain.ParsePolicy(c.Tree.Dependent); err != nil {
		return err
	}
	if _, err := domain.ParseRebuildOrder(c.Tree.RebuildOrder); err != nil {
		return err
	}
	return nil
}

// Schema returns the SQL schema with scope columns defaulting to the scope attributes.
func (c *Config) Schema() sqlstore.Schema {
	s := c.Store.Schema
	if len(s.ScopeColumns) == 0 {
		s.ScopeColumns = c.Tree.Scope
	}
	return s.WithDefaults()
}
