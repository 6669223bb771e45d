package redis

import (
	"context"
	"sort"

	"github.com/redis/rueidis"

	"github.com/nooikko/nightreign-query/internal/db"
)

// HSetMulti pipelines one HSET per item and reports the first failure.
func (s *Store) HSetMulti(ctx context.Context, items []db.HashSetItem) error {
	if len(items) == 0 {
		return nil
	}

	cmds := make([]rueidis.Completed, 0, len(items))
	for _, item := range items {
		cmds = append(cmds, s.hset(item))
	}

	for i, res := range s.client.DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil {
			return db.Wrap(db.OpHSet, items[i].Key, err)
		}
	}
	return nil
}

// hset builds HSET with fields in sorted order so the command is stable.
func (s *Store) hset(item db.HashSetItem) rueidis.Completed {
	names := make([]string, 0, len(item.Fields))
	for name := range item.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	cmd := s.b().Hset().Key(item.Key).FieldValue()
	for _, name := range names {
		cmd = cmd.FieldValue(name, item.Fields[name])
	}
	return cmd.Build()
}

// HGetAll returns db.ErrKeyNotFound when the hash is absent.
func (s *Store) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	fields, err := s.do(ctx, s.b().Hgetall().Key(key).Build()).AsStrMap()
	if err != nil {
		return nil, db.Wrap(db.OpHGetAll, key, err)
	}
	if len(fields) == 0 {
		return nil, db.ErrKeyNotFound
	}
	return fields, nil
}
