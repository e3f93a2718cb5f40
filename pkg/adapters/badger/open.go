// Package badger stores nested sets in an embedded BadgerDB.
//
// Layout:
//
//	n/<id>             JSON encoded domain.Record
//	s/<scope>\x00<id>  scope index, empty value
//	v/<scope>          write version, bumped by every Update of the scope
//	seq/node           id sequence
//
// Every Update runs in a single Badger transaction, so one mutation can touch
// at most as many keys as a transaction holds (roughly 15% of the memtable
// size). Inserts and small moves never come close; a Rebuild, or a move or
// prune that shifts most of a very large scope, can. Such an Update fails with
// ErrScopeTooLarge and commits nothing. Raise Config.MemTableSize or split
// the forest into more scopes.
package badger

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Config holds configuration for the embedded database.
type Config struct {
	// Path is the directory for database files. Ignored when InMemory is true.
	Path string `mapstructure:"path"`

	// InMemory keeps everything in RAM. Useful for tests.
	InMemory bool `mapstructure:"in_memory"`

	// SyncWrites fsyncs every commit.
	SyncWrites bool `mapstructure:"sync_writes"`

	// GCInterval is how often value log garbage collection runs. Zero disables it.
	GCInterval time.Duration `mapstructure:"gc_interval"`

	// GCDiscardRatio is the minimum garbage ratio that triggers a rewrite.
	GCDiscardRatio float64 `mapstructure:"gc_discard_ratio"`

	// MemTableSize bounds memtables and with them the largest transaction.
	// Zero keeps Badger's default of 64 MiB.
	MemTableSize int64 `mapstructure:"mem_table_size"`

	// Logger receives BadgerDB's internal logs. Nil silences them.
	Logger *slog.Logger `mapstructure:"-"`
}

// DefaultConfig returns durable defaults for a database at path.
func DefaultConfig(path string) Config {
	return Config{
		Path:           path,
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns a throwaway configuration for tests.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func openDB(cfg Config) (*badger.DB, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.MemTableSize > 0 {
		opts = opts.WithMemTableSize(cfg.MemTableSize)
	}

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return db, nil
}

// gcLoop periodically rewrites the value log until stop is closed.
func gcLoop(db *badger.DB, interval time.Duration, ratio float64, logger *slog.Logger, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			err := db.RunValueLogGC(ratio)
			switch {
			case err == nil:
				logger.Debug("badger value log GC completed")
			case !errors.Is(err, badger.ErrNoRewrite):
				logger.Warn("badger value log GC error", "err", err)
			}
		}
	}
}
