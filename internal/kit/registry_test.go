package kit

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stellar/go/support/log"

	"github.com/owlwallet/stellarkit/internal/db"
)

func TestRegistryReturnsSameKitForSameKey(t *testing.T) {
	registry := NewRegistry(log.DefaultLogger)
	t.Cleanup(registry.CloseAll)

	cfg := testConfig(t, paymentFixture())
	first, err := registry.Acquire(cfg)
	require.NoError(t, err)
	second, err := registry.Acquire(cfg)
	require.NoError(t, err)
	assert.Same(t, first, second)

	got, ok := registry.Get(cfg.WalletID, cfg.Network)
	require.True(t, ok)
	assert.Same(t, first, got)
}

func TestRegistryKeysByWalletAndNetwork(t *testing.T) {
	registry := NewRegistry(log.DefaultLogger)
	t.Cleanup(registry.CloseAll)

	cfg := testConfig(t, paymentFixture())
	mainnet := cfg
	mainnet.Network = "mainnet"

	first, err := registry.Acquire(cfg)
	require.NoError(t, err)
	second, err := registry.Acquire(mainnet)
	require.NoError(t, err)
	assert.NotSame(t, first, second)
}

func TestRegistryEvictStopsAndForgets(t *testing.T) {
	registry := NewRegistry(log.DefaultLogger)
	t.Cleanup(registry.CloseAll)

	cfg := testConfig(t, paymentFixture())
	first, err := registry.Acquire(cfg)
	require.NoError(t, err)

	registry.Evict(cfg.WalletID, cfg.Network)
	_, ok := registry.Get(cfg.WalletID, cfg.Network)
	assert.False(t, ok)

	replacement, err := registry.Acquire(cfg)
	require.NoError(t, err)
	assert.NotSame(t, first, replacement)
}

func TestRegistryPurgeRemovesStorage(t *testing.T) {
	registry := NewRegistry(log.DefaultLogger)
	t.Cleanup(registry.CloseAll)

	cfg := testConfig(t, paymentFixture())
	_, err := registry.Acquire(cfg)
	require.NoError(t, err)

	path := db.FilePath(cfg.StorageDir, cfg.WalletID, cfg.Network)
	_, err = os.Stat(path)
	require.NoError(t, err)

	require.NoError(t, registry.Purge(cfg.WalletID, cfg.Network, cfg.StorageDir))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	_, ok := registry.Get(cfg.WalletID, cfg.Network)
	assert.False(t, ok)

	// Purging an already-absent wallet is not an error.
	require.NoError(t, registry.Purge("missing", cfg.Network, cfg.StorageDir))
}
