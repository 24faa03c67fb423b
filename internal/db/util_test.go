package db

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stellar/go/support/log"
)

// newTestDB opens a fresh store in a temporary directory.
func newTestDB(t testing.TB) *Store {
	store, err := Open(filepath.Join(t.TempDir(), "test.sqlite"), log.DefaultLogger)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})
	return store
}

// txFixture builds a transaction with a distinct hash and the given
// timestamp.
func txFixture(n int, timestamp int64) Transaction {
	hash := fmt.Sprintf("hash-%04d", n)
	return Transaction{
		ID:             fmt.Sprintf("tx-%04d", n),
		PagingToken:    fmt.Sprintf("pt-%04d", n),
		Hash:           hash,
		Ledger:         uint32(100 + n),
		Timestamp:      timestamp,
		SourceAccount:  "GSOURCE",
		FeeAccount:     "GSOURCE",
		MaxFee:         100,
		FeeCharged:     100,
		OperationCount: 1,
		MemoType:       "none",
	}
}

// paymentFixture builds a payment operation bound to the given transaction
// hash.
func paymentFixture(hash, from, to, amount, assetType string) Operation {
	return Operation{
		ID:            "op-" + hash,
		PagingToken:   "pt-" + hash,
		Hash:          hash,
		Timestamp:     0,
		SourceAccount: from,
		Type:          OperationTypePayment,
		Successful:    true,
		Amount:        amount,
		AssetType:     assetType,
		From:          from,
		To:            to,
	}
}
