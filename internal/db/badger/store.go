// Package badger is an embedded key-value backend for the page cache.
package badger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"go.uber.org/zap"

	"github.com/nooikko/nightreign-query/internal/db"
)

// Compile-time checks.
var (
	_ db.KVStore = (*Store)(nil)
	_ db.Pinger  = (*Store)(nil)
)

// Config holds the location of the database directory.
type Config struct {
	Path     string
	InMemory bool
}

// Store implements db.KVStore on top of BadgerDB.
type Store struct {
	db *badger.DB
}

// zapLogger adapts zap to the badger.Logger interface.
type zapLogger struct {
	s *zap.SugaredLogger
}

var _ badger.Logger = (*zapLogger)(nil)

func (l *zapLogger) Errorf(msg string, args ...any) { l.s.Errorf(strings.TrimSpace(msg), args...) }
func (l *zapLogger) Warningf(msg string, args ...any) { l.s.Warnf(strings.TrimSpace(msg), args...) }
func (l *zapLogger) Infof(msg string, args ...any) { l.s.Debugf(strings.TrimSpace(msg), args...) }
func (l *zapLogger) Debugf(msg string, args ...any) { l.s.Debugf(strings.TrimSpace(msg), args...) }

// Open opens (or creates) the database. The directory is created if missing.
func Open(cfg Config, logger *zap.Logger) (*Store, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, errors.New("badger path is required")
		}
		if err := ensureDir(cfg.Path); err != nil {
			return nil, err
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	opts.Logger = &zapLogger{s: logger.Named("badger").Sugar()}
	// page bodies are HTML; ZSTD keeps the cache directory small
	opts.Compression = options.ZSTD

	bdb, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Store{db: bdb}, nil
}

func ensureDir(p string) error {
	info, err := os.Stat(p)
	if os.IsNotExist(err) {
		return os.MkdirAll(p, 0o755)
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", p)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is open.
func (s *Store) Ping(_ context.Context) error {
	if s.db.IsClosed() {
		return db.ErrClosed
	}
	return nil
}

// Get retrieves a value by key.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *badger.Txn) error {
		item, err := tx.Get([]byte(key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, db.ErrKeyNotFound
	}
	if err != nil {
		return nil, db.Wrap(db.OpGet, key, err)
	}
	return out, nil
}

// Set stores a value at the given key, overwriting any previous value.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	return db.Wrap(db.OpSet, key, s.db.Update(func(tx *badger.Txn) error {
		return tx.Set([]byte(key), value)
	}))
}

// Del deletes a key. Deleting a missing key is not an error.
func (s *Store) Del(_ context.Context, key string) error {
	return db.Wrap(db.OpDel, key, s.db.Update(func(tx *badger.Txn) error {
		return tx.Delete([]byte(key))
	}))
}

// Exists checks if a key exists.
func (s *Store) Exists(_ context.Context, key string) (bool, error) {
	err := s.db.View(func(tx *badger.Txn) error {
		_, err := tx.Get([]byte(key))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, db.Wrap(db.OpExists, key, err)
	}
	return true, nil
}

// Scan returns keys matching a glob pattern in key order. The literal prefix
// of the pattern (up to the first metacharacter) bounds the iteration.
func (s *Store) Scan(ctx context.Context, pattern string) ([]string, error) {
	prefix := literalPrefix(pattern)
	matchAll := pattern == prefix+"*"

	var keys []string
	err := s.db.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)
		it := tx.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			key := string(it.Item().Key())
			if !matchAll {
				ok, err := path.Match(pattern, key)
				if err != nil {
					return err
				}
				if !ok {
					continue
				}
			}
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, db.Wrap(db.OpScan, pattern, err)
	}
	return keys, nil
}

func literalPrefix(pattern string) string {
	if i := strings.IndexAny(pattern, `*?[\`); i >= 0 {
		return pattern[:i]
	}
	return pattern
}
