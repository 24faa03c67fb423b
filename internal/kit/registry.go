package kit

import (
	"fmt"
	"os"
	"sync"

	"github.com/stellar/go/support/log"

	"github.com/owlwallet/stellarkit/internal/db"
)

type registryKey struct {
	walletID string
	network  string
}

// Registry hands out one running kit per (wallet, network) pair. Asking for
// the same pair again returns the existing kit instead of racing a second
// sync loop against the same database file.
type Registry struct {
	log *log.Entry

	mu   sync.Mutex
	kits map[registryKey]*Kit
}

func NewRegistry(logger *log.Entry) *Registry {
	return &Registry{
		log:  logger.WithField("subservice", "registry"),
		kits: map[registryKey]*Kit{},
	}
}

// Acquire returns the kit for cfg's (WalletID, Network), building and
// starting it on first use.
func (r *Registry) Acquire(cfg Config) (*Kit, error) {
	key := registryKey{walletID: cfg.WalletID, network: cfg.Network}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.kits[key]; ok {
		return existing, nil
	}

	k, err := New(cfg)
	if err != nil {
		return nil, err
	}
	k.Start()
	r.kits[key] = k
	r.log.WithFields(log.F{"wallet": cfg.WalletID, "network": cfg.Network}).Info("kit started")
	return k, nil
}

// Get returns the kit for the pair if one is running.
func (r *Registry) Get(walletID, network string) (*Kit, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k, ok := r.kits[registryKey{walletID: walletID, network: network}]
	return k, ok
}

// Evict stops and removes the kit for the pair, if any.
func (r *Registry) Evict(walletID, network string) {
	key := registryKey{walletID: walletID, network: network}
	r.mu.Lock()
	k, ok := r.kits[key]
	delete(r.kits, key)
	r.mu.Unlock()
	if ok {
		k.Stop()
	}
}

// Purge stops the kit for the pair and deletes its database file. Used when
// the account is removed from the session.
func (r *Registry) Purge(walletID, network, storageDir string) error {
	r.Evict(walletID, network)
	path := db.FilePath(storageDir, walletID, network)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing wallet storage %s: %w", path, err)
	}
	r.log.WithFields(log.F{"wallet": walletID, "network": network}).Info("wallet storage purged")
	return nil
}

// ClearStorage removes the database files of every wallet not in keepWalletIDs.
func ClearStorage(storageDir string, keepWalletIDs []string) error {
	return db.Clear(storageDir, keepWalletIDs)
}

// CloseAll stops every kit. The registry stays usable afterwards.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	kits := r.kits
	r.kits = map[registryKey]*Kit{}
	r.mu.Unlock()
	for _, k := range kits {
		k.Stop()
	}
}
