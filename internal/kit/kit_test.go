package kit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/owlwallet/stellarkit/internal/db"
	"github.com/owlwallet/stellarkit/internal/horizon"
	"github.com/owlwallet/stellarkit/internal/syncer"
	"github.com/owlwallet/stellarkit/internal/transactions"
)

const testAccountID = "GLOCALACCOUNT"

type staticSource struct {
	mu      sync.Mutex
	details horizon.AccountDetails
	txs     []transactions.TransactionResponse
	ops     []transactions.OperationResponse
	sent    []horizon.PaymentRequest
}

func (s *staticSource) FetchAccountDetails(ctx context.Context, accountID string) (horizon.AccountDetails, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.details, nil
}

func (s *staticSource) FetchTransactions(ctx context.Context, accountID, cursor string) (horizon.Page[transactions.TransactionResponse], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return horizon.Page[transactions.TransactionResponse]{Records: s.txs}, nil
}

func (s *staticSource) FetchOperations(ctx context.Context, accountID, cursor string) (horizon.Page[transactions.OperationResponse], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return horizon.Page[transactions.OperationResponse]{Records: s.ops}, nil
}

func (s *staticSource) SubmitPayment(ctx context.Context, req horizon.PaymentRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, req)
	return "submittedhash", nil
}

type alwaysReachable struct{}

func (alwaysReachable) Reachable() bool                  { return true }
func (alwaysReachable) Subscribe() (<-chan bool, func()) { return make(chan bool), func() {} }

func paymentFixture() *staticSource {
	return &staticSource{
		details: horizon.AccountDetails{
			AccountID: testAccountID,
			Balances:  []horizon.Balance{{AssetType: db.AssetTypeNative, Amount: 500_0000000}},
		},
		ops: []transactions.OperationResponse{{
			ID: "op-1", Hash: "abc123", CreatedAt: time.Unix(1700000000, 0),
			Type: db.OperationTypePayment, Successful: true,
			Amount: "5.0000000", AssetType: db.AssetTypeNative,
			From: testAccountID, To: "GOTHER",
		}},
		txs: []transactions.TransactionResponse{{
			ID: "tx-1", Hash: "abc123", Ledger: 100,
			CreatedAt: time.Unix(1700000000, 0), SourceAccount: testAccountID,
		}},
	}
}

func testConfig(t *testing.T, source horizon.DataSource) Config {
	return Config{
		WalletID:     "w1",
		Network:      "testnet",
		AccountID:    testAccountID,
		StorageDir:   t.TempDir(),
		SyncInterval: time.Hour,
		Source:       source,
		Probe:        alwaysReachable{},
	}
}

func waitSynced(t *testing.T, k *Kit) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if k.SyncState().Kind == syncer.KindSynced {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("kit never synced, state %s", k.SyncState())
}

func TestKitEndToEndSync(t *testing.T) {
	k, err := New(testConfig(t, paymentFixture()))
	require.NoError(t, err)
	t.Cleanup(k.Stop)

	k.Start()
	waitSynced(t, k)

	assert.Equal(t, int64(500_0000000), k.NativeBalance())

	height, err := k.LastBlockHeight(context.TODO())
	require.NoError(t, err)
	assert.Equal(t, uint32(100), height)

	outgoing, err := k.Transactions(context.TODO(), []db.TagQuery{{Type: db.TagOutgoing, Protocol: db.TagProtocolNative}}, "", 10)
	require.NoError(t, err)
	require.Len(t, outgoing, 1)
	assert.Equal(t, "abc123", outgoing[0].Transaction.Hash)
	require.NotNil(t, outgoing[0].Operation)
	assert.Equal(t, "GOTHER", outgoing[0].Operation.To)

	full, err := k.Transaction(context.TODO(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, uint32(100), full.Transaction.Ledger)
}

func TestKitConfiguredAssetBalance(t *testing.T) {
	source := paymentFixture()
	source.details.Balances = append(source.details.Balances,
		horizon.Balance{AssetType: "credit_alphanum4", AssetCode: "USDC", AssetIssuer: "GISSUER", Amount: 77_0000000})

	cfg := testConfig(t, source)
	cfg.AssetCode = "USDC"
	cfg.AssetIssuer = "GISSUER"
	k, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(k.Stop)
	k.Start()
	waitSynced(t, k)

	assert.Equal(t, int64(77_0000000), k.Balance())
	assert.Equal(t, int64(500_0000000), k.NativeBalance())
	assert.True(t, k.AccountActive())
}

func TestKitSendSubmitsAndRefreshes(t *testing.T) {
	source := paymentFixture()
	k, err := New(testConfig(t, source))
	require.NoError(t, err)
	t.Cleanup(k.Stop)
	k.Start()
	waitSynced(t, k)

	hash, err := k.Send(context.TODO(), horizon.PaymentRequest{
		Destination: "GOTHER",
		Amount:      "1.0000000",
	})
	require.NoError(t, err)
	assert.Equal(t, "submittedhash", hash)
	require.Len(t, source.sent, 1)
	assert.Equal(t, "GOTHER", source.sent[0].Destination)
}

func TestKitConfigRequiresAnAccount(t *testing.T) {
	cfg := testConfig(t, paymentFixture())
	cfg.AccountID = ""
	_, err := New(cfg)
	require.Error(t, err)
}

func TestKitRejectsInvalidSecretSeed(t *testing.T) {
	cfg := testConfig(t, paymentFixture())
	cfg.AccountID = ""
	cfg.SecretSeed = "not-a-seed"
	_, err := New(cfg)
	require.Error(t, err)
	assert.False(t, errors.Is(err, context.Canceled))
}
