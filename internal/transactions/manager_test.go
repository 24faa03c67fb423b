package transactions

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stellar/go/support/log"

	"github.com/owlwallet/stellarkit/internal/db"
)

const localAccountID = "GLOCALACCOUNT"

func newTestStore(t *testing.T) *db.Store {
	store, err := db.Open(filepath.Join(t.TempDir(), "test.sqlite"), log.DefaultLogger)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})
	return store
}

func newTestManager(t *testing.T) (*Manager, *db.Store) {
	store := newTestStore(t)
	manager := NewManager(localAccountID, store, NewDecorator(store), log.DefaultLogger, nil)
	t.Cleanup(manager.Close)
	return manager, store
}

func txResponse(hash string, ledger uint32, ts time.Time) TransactionResponse {
	return TransactionResponse{
		ID:             "id-" + hash,
		PagingToken:    "pt-" + hash,
		Hash:           hash,
		Ledger:         ledger,
		CreatedAt:      ts,
		SourceAccount:  localAccountID,
		FeeAccount:     localAccountID,
		MaxFee:         100,
		FeeCharged:     100,
		OperationCount: 1,
		MemoType:       "none",
	}
}

func paymentResponse(hash, from, to, assetType, assetIssuer string) OperationResponse {
	return OperationResponse{
		ID:            "op-" + hash,
		Hash:          hash,
		CreatedAt:     time.Unix(1700000000, 0),
		SourceAccount: from,
		Type:          db.OperationTypePayment,
		Successful:    true,
		Amount:        "5.0000000",
		AssetType:     assetType,
		AssetIssuer:   assetIssuer,
		From:          from,
		To:            to,
	}
}

func TestTagDerivationIsDeterministic(t *testing.T) {
	cases := []struct {
		name     string
		op       *db.Operation
		wantType db.TagType
		wantProt db.TagProtocol
	}{
		{
			name:     "payment from local account is outgoing",
			op:       &db.Operation{Type: db.OperationTypePayment, From: localAccountID, AssetType: db.AssetTypeNative},
			wantType: db.TagOutgoing,
			wantProt: db.TagProtocolNative,
		},
		{
			name:     "payment from other account is incoming",
			op:       &db.Operation{Type: db.OperationTypePayment, From: "GOTHER", AssetType: db.AssetTypeNative},
			wantType: db.TagIncoming,
			wantProt: db.TagProtocolNative,
		},
		{
			name:     "create_account wins over direction",
			op:       &db.Operation{Type: db.OperationTypeCreateAccount, From: localAccountID, AssetType: db.AssetTypeNative},
			wantType: db.TagCreateAccount,
			wantProt: db.TagProtocolNative,
		},
		{
			name:     "custom asset carries issuer as contract address",
			op:       &db.Operation{Type: db.OperationTypePayment, From: "GOTHER", AssetType: "credit_alphanum4", AssetIssuer: "GISSUER"},
			wantType: db.TagIncoming,
			wantProt: db.TagProtocolCreditAlphanum4,
		},
		{
			name:     "missing operation falls back to incoming native",
			op:       nil,
			wantType: db.TagIncoming,
			wantProt: db.TagProtocolNative,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for i := 0; i < 3; i++ {
				tag := deriveTag(localAccountID, tc.op)
				assert.Equal(t, tc.wantType, tag.Type)
				assert.Equal(t, tc.wantProt, tag.Protocol)
				if tc.op != nil && tag.Protocol == db.TagProtocolCreditAlphanum4 {
					assert.Equal(t, tc.op.AssetIssuer, tag.ContractAddress)
				}
			}
		})
	}
}

func TestSaveTransactionsDerivesAndPersistsTags(t *testing.T) {
	manager, store := newTestManager(t)
	ctx := context.TODO()

	require.NoError(t, manager.SaveOperations(ctx, []OperationResponse{
		paymentResponse("abc123", localAccountID, "GOTHER", db.AssetTypeNative, ""),
	}))
	full, err := manager.SaveTransactions(ctx, []TransactionResponse{
		txResponse("abc123", 100, time.Unix(1700000000, 0)),
	})
	require.NoError(t, err)
	require.Len(t, full, 1)
	require.NotNil(t, full[0].Operation)

	tags, err := store.Tags(ctx, "abc123")
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, db.TagOutgoing, tags[0].Type)
	assert.Equal(t, db.TagProtocolNative, tags[0].Protocol)
}

func TestSaveTransactionsSkipsUnconvertibleResponses(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.TODO()

	full, err := manager.SaveTransactions(ctx, []TransactionResponse{
		{ID: "", Hash: "no-id"}, // unconvertible
		txResponse("good", 100, time.Unix(1700000000, 0)),
	})
	require.NoError(t, err)
	require.Len(t, full, 1)
	assert.Equal(t, "good", full[0].Transaction.Hash)
}

func TestSaveOperationsSkipsUnsupportedTypes(t *testing.T) {
	manager, store := newTestManager(t)
	ctx := context.TODO()

	unsupported := paymentResponse("x", "GOTHER", localAccountID, db.AssetTypeNative, "")
	unsupported.Type = "manage_offer"
	require.NoError(t, manager.SaveOperations(ctx, []OperationResponse{
		unsupported,
		paymentResponse("kept", "GOTHER", localAccountID, db.AssetTypeNative, ""),
	}))

	_, err := store.Operation(ctx, "x")
	require.ErrorIs(t, err, db.ErrNotFound)
	_, err = store.Operation(ctx, "kept")
	require.NoError(t, err)
}

func TestSubscribeFilteredEmitsOnlyMatchingSubsets(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.TODO()

	out, cancel := manager.SubscribeFiltered([]db.TagQuery{{Type: db.TagOutgoing}})
	defer cancel()

	require.NoError(t, manager.SaveOperations(ctx, []OperationResponse{
		paymentResponse("out1", localAccountID, "GOTHER", db.AssetTypeNative, ""),
		paymentResponse("in1", "GOTHER", localAccountID, db.AssetTypeNative, ""),
	}))

	// Batch with one match: only the matching subset is emitted.
	_, err := manager.SaveTransactions(ctx, []TransactionResponse{
		txResponse("out1", 100, time.Unix(1700000000, 0)),
		txResponse("in1", 100, time.Unix(1700000001, 0)),
	})
	require.NoError(t, err)

	select {
	case batch := <-out:
		require.Len(t, batch, 1)
		assert.Equal(t, "out1", batch[0].Transaction.Hash)
	case <-time.After(time.Second):
		t.Fatal("expected a filtered batch")
	}

	// Batch with no match: nothing is emitted.
	require.NoError(t, manager.SaveOperations(ctx, []OperationResponse{
		paymentResponse("in2", "GOTHER", localAccountID, db.AssetTypeNative, ""),
	}))
	_, err = manager.SaveTransactions(ctx, []TransactionResponse{
		txResponse("in2", 101, time.Unix(1700000002, 0)),
	})
	require.NoError(t, err)

	select {
	case batch := <-out:
		t.Fatalf("unexpected emission: %+v", batch)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestFullTransactionsQueriesAndDecorates(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.TODO()

	require.NoError(t, manager.SaveOperations(ctx, []OperationResponse{
		paymentResponse("out1", localAccountID, "GOTHER", db.AssetTypeNative, ""),
	}))
	_, err := manager.SaveTransactions(ctx, []TransactionResponse{
		txResponse("out1", 100, time.Unix(1700000000, 0)),
		txResponse("nop1", 101, time.Unix(1700000010, 0)), // no operation ingested
	})
	require.NoError(t, err)

	all, err := manager.FullTransactions(ctx, nil, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Nil(t, all[0].Operation, "transaction without operation decorates to nil")
	require.NotNil(t, all[1].Operation)

	outgoing, err := manager.FullTransactions(ctx, []db.TagQuery{{Type: db.TagOutgoing}}, "", 10)
	require.NoError(t, err)
	require.Len(t, outgoing, 1)
	assert.Equal(t, "out1", outgoing[0].Transaction.Hash)
}
