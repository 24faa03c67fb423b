package db

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/stellar/go/support/db"
)

const transactionTableName = "transactions"

// Transaction is one raw ledger transaction as observed for the wallet's
// account. Rows are replaced wholesale on re-fetch, never mutated in place.
type Transaction struct {
	ID             string `db:"id"`
	PagingToken    string `db:"paging_token"`
	Hash           string `db:"transaction_hash"`
	Ledger         uint32 `db:"ledger"`
	Timestamp      int64  `db:"timestamp"`
	SourceAccount  string `db:"source_account"`
	FeeAccount     string `db:"fee_account"`
	MaxFee         int64  `db:"max_fee"`
	FeeCharged     int64  `db:"fee_charged"`
	OperationCount int32  `db:"operation_count"`
	MemoType       string `db:"memo_type"`
}

// SaveTransactions upserts the batch in one write transaction
// (replace-on-conflict by id).
func (s *Store) SaveTransactions(ctx context.Context, transactions []Transaction) error {
	if len(transactions) == 0 {
		return nil
	}
	return s.inWriteTx(ctx, func(sess db.SessionInterface) error {
		query := sq.Replace(transactionTableName).Columns(
			"id", "paging_token", "transaction_hash", "ledger", "timestamp",
			"source_account", "fee_account", "max_fee", "fee_charged",
			"operation_count", "memo_type",
		)
		for _, tx := range transactions {
			query = query.Values(
				tx.ID, tx.PagingToken, tx.Hash, tx.Ledger, tx.Timestamp,
				tx.SourceAccount, tx.FeeAccount, tx.MaxFee, tx.FeeCharged,
				tx.OperationCount, tx.MemoType,
			)
		}
		_, err := sess.Exec(ctx, query)
		return err
	})
}

// Transaction looks up a single transaction by hash.
func (s *Store) Transaction(ctx context.Context, hash string) (Transaction, error) {
	var results []Transaction
	query := sq.Select("*").From(transactionTableName).
		Where(sq.Eq{"transaction_hash": hash}).
		Limit(1)
	if err := s.sess.Select(ctx, &results, query); err != nil {
		return Transaction{}, fmt.Errorf("transaction lookup failed for hash %s: %w", hash, err)
	}
	if len(results) == 0 {
		return Transaction{}, ErrNotFound
	}
	return results[0], nil
}

// Transactions returns the stored transactions for the given hashes. Hashes
// with no stored row are silently absent from the result.
func (s *Store) Transactions(ctx context.Context, hashes []string) ([]Transaction, error) {
	var results []Transaction
	query := sq.Select("*").From(transactionTableName).
		Where(sq.Eq{"transaction_hash": hashes})
	if err := s.sess.Select(ctx, &results, query); err != nil {
		return nil, fmt.Errorf("transactions lookup failed: %w", err)
	}
	return results, nil
}

// TransactionsBefore is the paginated, tag-filtered transaction query.
//
// A transaction matches if it satisfies any of the supplied tag queries
// (each query being an AND over its non-wildcard fields). Empty tag queries
// are ignored; if none remain, no tag filtering is applied.
//
// fromHash, when non-empty, anchors keyset pagination: only transactions
// strictly older than the anchor (by timestamp, then hash) are returned,
// ordered newest first. limit <= 0 means unbounded.
func (s *Store) TransactionsBefore(ctx context.Context, tagQueries []TagQuery, fromHash string, limit int) ([]Transaction, error) {
	query := sq.Select(transactionTableName + ".*").
		Options("DISTINCT").
		From(transactionTableName)

	queries := make([]TagQuery, 0, len(tagQueries))
	for _, tq := range tagQueries {
		if !tq.IsEmpty() {
			queries = append(queries, tq)
		}
	}

	if len(queries) > 0 {
		query = query.Join(tagTableName + " ON " +
			transactionTableName + ".transaction_hash = " + tagTableName + ".transaction_hash")

		or := sq.Or{}
		for _, tq := range queries {
			and := sq.And{}
			if tq.Type != "" {
				and = append(and, sq.Eq{tagTableName + ".type": tq.Type})
			}
			if tq.Protocol != "" {
				and = append(and, sq.Eq{tagTableName + ".protocol": tq.Protocol})
			}
			if tq.ContractAddress != "" {
				and = append(and, sq.Eq{tagTableName + ".contract_address": tq.ContractAddress})
			}
			or = append(or, and)
		}
		query = query.Where(or)
	}

	if fromHash != "" {
		anchor, err := s.Transaction(ctx, fromHash)
		if err == ErrNotFound {
			return nil, ErrAnchorNotFound
		} else if err != nil {
			return nil, err
		}
		// Compound keyset condition: timestamps are not guaranteed unique.
		query = query.Where(sq.Or{
			sq.Lt{transactionTableName + ".timestamp": anchor.Timestamp},
			sq.And{
				sq.Eq{transactionTableName + ".timestamp": anchor.Timestamp},
				sq.Lt{transactionTableName + ".transaction_hash": anchor.Hash},
			},
		})
	}

	query = query.OrderBy(
		transactionTableName+".timestamp DESC",
		transactionTableName+".transaction_hash DESC",
	)
	if limit > 0 {
		query = query.Limit(uint64(limit))
	}

	var results []Transaction
	if err := s.sess.Select(ctx, &results, query); err != nil {
		return nil, fmt.Errorf("transactionsBefore query failed: %w", err)
	}
	return results, nil
}
