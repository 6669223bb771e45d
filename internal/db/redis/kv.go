package redis

import (
	"context"

	"github.com/redis/rueidis"

	"github.com/nooikko/nightreign-query/internal/db"
)

const scanBatch = 100

// Get returns db.ErrKeyNotFound for a missing key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.do(ctx, s.b().Get().Key(key).Build()).AsBytes()
	if rueidis.IsRedisNil(err) {
		return nil, db.ErrKeyNotFound
	}
	if err != nil {
		return nil, db.Wrap(db.OpGet, key, err)
	}
	return data, nil
}

// Set stores value without expiry.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	cmd := s.b().Set().Key(key).Value(rueidis.BinaryString(value)).Build()
	return db.Wrap(db.OpSet, key, s.do(ctx, cmd).Error())
}

// Del removes key. Deleting a missing key is not an error.
func (s *Store) Del(ctx context.Context, key string) error {
	return db.Wrap(db.OpDel, key, s.do(ctx, s.b().Del().Key(key).Build()).Error())
}

// Exists reports whether key is present.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.do(ctx, s.b().Exists().Key(key).Build()).AsInt64()
	if err != nil {
		return false, db.Wrap(db.OpExists, key, err)
	}
	return n > 0, nil
}

// Scan walks the keyspace with SCAN MATCH. SCAN may return a key more than
// once while the table rehashes, so results are deduplicated.
func (s *Store) Scan(ctx context.Context, pattern string) ([]string, error) {
	seen := make(map[string]struct{})
	var keys []string

	cursor := uint64(0)
	for {
		cmd := s.b().Scan().Cursor(cursor).Match(pattern).Count(scanBatch).Build()
		entry, err := s.do(ctx, cmd).AsScanEntry()
		if err != nil {
			return nil, db.Wrap(db.OpScan, pattern, err)
		}
		for _, k := range entry.Elements {
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
		if entry.Cursor == 0 {
			return keys, nil
		}
		cursor = entry.Cursor
	}
}
