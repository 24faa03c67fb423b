package db

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FilePath returns the per-account, per-network database file location under
// dir.
func FilePath(dir, walletID, network string) string {
	return filepath.Join(dir, fmt.Sprintf("transactions-storage-%s-%s.sqlite", walletID, network))
}

// Clear removes every database file under dir whose name does not reference
// one of the excluded wallet ids. Used for bulk cleanup after account
// deletion.
func Clear(dir string, exceptFor []string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		excluded := false
		for _, id := range exceptFor {
			if id != "" && strings.Contains(entry.Name(), id) {
				excluded = true
				break
			}
		}
		if excluded {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
			return fmt.Errorf("could not remove %s: %w", entry.Name(), err)
		}
	}
	return nil
}
