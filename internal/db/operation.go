package db

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/stellar/go/support/db"
)

const operationTableName = "operations"

// Operation type discriminators, matching the ledger's wire names.
const (
	OperationTypePayment               = "payment"
	OperationTypeCreateAccount         = "create_account"
	OperationTypePathPaymentStrictSend = "path_payment_strict_send"
)

// AssetTypeNative is the asset_type discriminator of the chain-native asset.
const AssetTypeNative = "native"

// Operation is the primary operation associated with a transaction hash.
// Type-specific payloads (payment, create_account, path payment) are
// flattened into one row; unused fields stay empty.
type Operation struct {
	ID              string `db:"id"`
	PagingToken     string `db:"paging_token"`
	Hash            string `db:"transaction_hash"`
	Timestamp       int64  `db:"timestamp"`
	SourceAccount   string `db:"source_account"`
	Type            string `db:"operation_type"`
	Successful      bool   `db:"transaction_successful"`
	Amount          string `db:"amount"`
	AssetType       string `db:"asset_type"`
	AssetCode       string `db:"asset_code"`
	AssetIssuer     string `db:"asset_issuer"`
	From            string `db:"from_account"`
	To              string `db:"to_account"`
	StartingBalance string `db:"starting_balance"`
}

// SaveOperations upserts the batch in one write transaction
// (replace-on-conflict by operation id).
func (s *Store) SaveOperations(ctx context.Context, operations []Operation) error {
	if len(operations) == 0 {
		return nil
	}
	return s.inWriteTx(ctx, func(sess db.SessionInterface) error {
		query := sq.Replace(operationTableName).Columns(
			"id", "paging_token", "transaction_hash", "timestamp",
			"source_account", "operation_type", "transaction_successful",
			"amount", "asset_type", "asset_code", "asset_issuer",
			"from_account", "to_account", "starting_balance",
		)
		for _, op := range operations {
			query = query.Values(
				op.ID, op.PagingToken, op.Hash, op.Timestamp,
				op.SourceAccount, op.Type, op.Successful,
				op.Amount, op.AssetType, op.AssetCode, op.AssetIssuer,
				op.From, op.To, op.StartingBalance,
			)
		}
		_, err := sess.Exec(ctx, query)
		return err
	})
}

// Operation returns the primary operation stored for a transaction hash.
func (s *Store) Operation(ctx context.Context, hash string) (Operation, error) {
	var results []Operation
	query := sq.Select("*").From(operationTableName).
		Where(sq.Eq{"transaction_hash": hash}).
		Limit(1)
	if err := s.sess.Select(ctx, &results, query); err != nil {
		return Operation{}, fmt.Errorf("operation lookup failed for hash %s: %w", hash, err)
	}
	if len(results) == 0 {
		return Operation{}, ErrNotFound
	}
	return results[0], nil
}
