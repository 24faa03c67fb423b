package db

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClearKeepsExcludedWallets(t *testing.T) {
	dir := t.TempDir()

	keep := FilePath(dir, "wallet-a", "testnet")
	drop := FilePath(dir, "wallet-b", "testnet")
	require.NoError(t, os.WriteFile(keep, []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(drop, []byte("x"), 0o600))

	require.NoError(t, Clear(dir, []string{"wallet-a"}))

	_, err := os.Stat(keep)
	assert.NoError(t, err)
	_, err = os.Stat(drop)
	assert.True(t, os.IsNotExist(err))
}

func TestClearMissingDirIsNoOp(t *testing.T) {
	require.NoError(t, Clear(filepath.Join(t.TempDir(), "absent"), nil))
}
