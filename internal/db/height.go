package db

import (
	"context"

	sq "github.com/Masterminds/squirrel"

	"github.com/stellar/go/support/db"
)

const (
	heightTableName = "last_block_height"

	// Single-row sentinel key; the height is overwritten in place.
	heightKey = "height"
)

// LastBlockHeight returns the persisted high-water mark, or 0 when no sync
// has completed yet.
func (s *Store) LastBlockHeight(ctx context.Context) (uint32, error) {
	var results []uint32
	query := sq.Select("height").From(heightTableName).Where(sq.Eq{"key": heightKey})
	if err := s.sess.Select(ctx, &results, query); err != nil {
		return 0, err
	}
	if len(results) == 0 {
		return 0, nil
	}
	return results[0], nil
}

// SaveLastBlockHeight overwrites the persisted high-water mark.
func (s *Store) SaveLastBlockHeight(ctx context.Context, height uint32) error {
	return s.inWriteTx(ctx, func(sess db.SessionInterface) error {
		query := sq.Replace(heightTableName).Values(heightKey, height)
		_, err := sess.Exec(ctx, query)
		return err
	})
}
