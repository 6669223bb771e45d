package redis

import (
	"context"

	"github.com/nooikko/nightreign-query/internal/db"
)

// Server error fragments that map onto sentinels.
const (
	errIndexExists  = "index already exists"
	errUnknownIndex = "unknown index name"
)

// CreateIndex runs FT.CREATE for def.
func (s *Store) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	args, err := def.CreateArgs()
	if err != nil {
		return err
	}

	err = s.do(ctx, s.b().Arbitrary("FT.CREATE").Args(args...).Build()).Error()
	switch {
	case err == nil:
		return nil
	case isRedisErr(err, errIndexExists):
		return db.ErrIndexExists
	default:
		return db.Wrap(db.OpCreateIndex, def.Name, err)
	}
}

// DropIndex runs FT.DROPINDEX. The indexed hashes are kept.
func (s *Store) DropIndex(ctx context.Context, name string) error {
	err := s.do(ctx, s.b().Arbitrary("FT.DROPINDEX").Args(name).Build()).Error()
	switch {
	case err == nil:
		return nil
	case isRedisErr(err, errUnknownIndex):
		return db.ErrIndexNotFound
	default:
		return db.Wrap(db.OpDropIndex, name, err)
	}
}

// IndexExists asks FT.INFO about name.
func (s *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	err := s.do(ctx, s.b().Arbitrary("FT.INFO").Args(name).Build()).Error()
	switch {
	case err == nil:
		return true, nil
	case isRedisErr(err, errUnknownIndex):
		return false, nil
	default:
		return false, db.Wrap(db.OpIndexInfo, name, err)
	}
}
