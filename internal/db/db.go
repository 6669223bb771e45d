// Package db defines the storage contracts shared by the Redis and Badger
// backends. Repositories depend on the narrow interfaces, never on Store.
package db

import (
	"context"
	"time"
)

// Store is everything the Redis backend offers: the chunk search index plus
// plain key-value access for the page cache.
//
//nolint:interfacebloat // composed of the narrow interfaces below
type Store interface {
	Pinger
	KVStore
	HashStore
	IndexManager
	Searcher
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks that the backend answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// KVStore is the page cache contract, implemented by both backends.
type KVStore interface {
	// Get returns ErrKeyNotFound for a missing key.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	// Scan returns every key matching a glob pattern such as "prefix:*",
	// each once.
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// HashSetItem is one hash written by HSetMulti.
type HashSetItem struct {
	Key    string
	Fields map[string]string
}

// HashStore reads and writes the hashes an FT index covers.
type HashStore interface {
	// HSetMulti writes all items in one pipelined round trip.
	HSetMulti(ctx context.Context, items []HashSetItem) error
	// HGetAll returns ErrKeyNotFound for a missing hash.
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// IndexManager creates and drops FT indexes.
type IndexManager interface {
	// CreateIndex returns ErrIndexExists when the name is taken.
	CreateIndex(ctx context.Context, def *IndexDefinition) error
	// DropIndex returns ErrIndexNotFound for an unknown name.
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// Searcher runs queries against an FT index.
type Searcher interface {
	SearchKNN(ctx context.Context, q *KNNQuery) (*SearchResult, error)
	SearchBM25(ctx context.Context, q *TextQuery) (*SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
}
