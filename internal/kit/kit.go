// Package kit assembles the per-account wallet stack (store, transaction
// manager, data source, syncer, timer) behind a single facade, and the keyed
// registry that hands out one kit per account.
package kit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stellar/go/exp/crypto/derivation"
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/support/log"

	"github.com/owlwallet/stellarkit/internal/db"
	"github.com/owlwallet/stellarkit/internal/horizon"
	"github.com/owlwallet/stellarkit/internal/syncer"
	"github.com/owlwallet/stellarkit/internal/transactions"
)

// Config assembles one account's kit. Exactly one of SecretSeed, BinarySeed
// or AccountID must identify the account; SecretSeed and BinarySeed produce
// a signing kit, AccountID a watch-only one.
type Config struct {
	WalletID   string
	Network    string
	SecretSeed string
	BinarySeed []byte
	AccountID  string

	// AssetCode and AssetIssuer select the wallet's configured asset. Both
	// empty means the wallet transacts in the native asset.
	AssetCode   string
	AssetIssuer string

	HorizonURL        string
	NetworkPassphrase string
	StorageDir        string
	SyncInterval      time.Duration

	Logger   *log.Entry
	Registry *prometheus.Registry

	// Source overrides the Horizon-backed data source, for tests.
	Source horizon.DataSource
	// Probe overrides the dial-based reachability probe, for tests.
	Probe syncer.Reachability
}

// Kit is the full wallet engine for a single account.
type Kit struct {
	accountID string
	assetKey  string
	keypair   *keypair.Full
	source    horizon.DataSource
	manager   *transactions.Manager
	store     *db.Store
	syncer    *syncer.Syncer
	timer     *syncer.Timer
	probe     syncer.Reachability
	ownsProbe bool
	log       *log.Entry
}

// New builds a stopped kit. Call Start to begin syncing.
func New(cfg Config) (*Kit, error) {
	if cfg.Logger == nil {
		cfg.Logger = log.DefaultLogger
	}
	kp, accountID, err := resolveAccount(cfg)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger.WithFields(log.F{"wallet": cfg.WalletID, "account": accountID})

	store, err := db.Open(db.FilePath(cfg.StorageDir, cfg.WalletID, cfg.Network), logger)
	if err != nil {
		return nil, fmt.Errorf("opening transaction store: %w", err)
	}

	source := cfg.Source
	if source == nil {
		source = horizon.NewClient(cfg.HorizonURL, cfg.NetworkPassphrase, kp, logger)
	}

	probe := cfg.Probe
	ownsProbe := false
	if probe == nil {
		dialProbe, err := syncer.NewDialProbe(cfg.HorizonURL, logger)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("starting reachability probe: %w", err)
		}
		probe = dialProbe
		ownsProbe = true
	}

	manager := transactions.NewManager(accountID, store, transactions.NewDecorator(store), logger, cfg.Registry)
	sync := syncer.New(accountID, source, manager, store, logger, cfg.Registry)

	assetKey := ""
	if cfg.AssetCode != "" {
		assetKey = cfg.AssetCode + ":" + cfg.AssetIssuer
	}

	return &Kit{
		accountID: accountID,
		assetKey:  assetKey,
		keypair:   kp,
		source:    source,
		manager:   manager,
		store:     store,
		syncer:    sync,
		timer:     syncer.NewTimer(cfg.SyncInterval, probe, sync, logger),
		probe:     probe,
		ownsProbe: ownsProbe,
		log:       logger,
	}, nil
}

func resolveAccount(cfg Config) (*keypair.Full, string, error) {
	switch {
	case cfg.SecretSeed != "":
		kp, err := keypair.ParseFull(cfg.SecretSeed)
		if err != nil {
			return nil, "", fmt.Errorf("parsing secret seed: %w", err)
		}
		return kp, kp.Address(), nil
	case len(cfg.BinarySeed) > 0:
		key, err := derivation.DeriveForPath(fmt.Sprintf(derivation.StellarAccountPathFormat, 0), cfg.BinarySeed)
		if err != nil {
			return nil, "", fmt.Errorf("deriving account key: %w", err)
		}
		kp, err := keypair.FromRawSeed(key.RawSeed())
		if err != nil {
			return nil, "", fmt.Errorf("building keypair: %w", err)
		}
		return kp, kp.Address(), nil
	case cfg.AccountID != "":
		return nil, cfg.AccountID, nil
	default:
		return nil, "", errors.New("config needs a secret seed, a binary seed or an account id")
	}
}

// AccountID returns the Stellar account this kit syncs.
func (k *Kit) AccountID() string { return k.accountID }

// Start begins periodic syncing. The first attempt fires immediately when
// the network is reachable.
func (k *Kit) Start() { k.timer.Start() }

// Stop halts the timer, cancels any in-flight sync and closes the store.
func (k *Kit) Stop() {
	k.timer.Stop()
	k.syncer.Stop()
	k.manager.Close()
	if k.ownsProbe {
		if p, ok := k.probe.(*syncer.DialProbe); ok {
			p.Close()
		}
	}
	if err := k.store.Close(); err != nil {
		k.log.WithError(err).Warn("closing transaction store")
	}
}

// Refresh requests an immediate sync; it is a no-op while an attempt is
// already in flight. When the network is down it restarts the timer instead,
// so the first tick after connectivity returns happens right away.
func (k *Kit) Refresh() {
	state := k.syncer.State()
	if state.Kind == syncer.KindNotSynced && errors.Is(state.Err, syncer.ErrNoNetworkConnection) {
		k.timer.Stop()
		k.timer.Start()
		return
	}
	k.syncer.Refresh()
}

// SyncState returns the current sync state.
func (k *Kit) SyncState() syncer.State { return k.syncer.State() }

// NativeBalance returns the XLM balance in stroops as of the last sync. The
// native balance matters even for custom-asset wallets since it funds fees.
func (k *Kit) NativeBalance() int64 { return k.syncer.CurrentBalances().Native }

// Balance returns the configured asset's balance in stroops as of the last
// sync.
func (k *Kit) Balance() int64 {
	balances := k.syncer.CurrentBalances()
	if k.assetKey == "" {
		return balances.Native
	}
	return balances.Assets[k.assetKey]
}

// AccountActive reports whether the ledger has seen the account funded, as
// of the last sync.
func (k *Kit) AccountActive() bool { return k.syncer.CurrentBalances().AccountActive }

// Balances returns all balances as of the last sync.
func (k *Kit) Balances() syncer.Balances { return k.syncer.CurrentBalances() }

// LastBlockHeight returns the highest ledger observed for this account, or 0
// before the first successful sync.
func (k *Kit) LastBlockHeight(ctx context.Context) (uint32, error) {
	return k.store.LastBlockHeight(ctx)
}

// Transaction returns one decorated transaction by hash.
func (k *Kit) Transaction(ctx context.Context, hash string) (transactions.FullTransaction, error) {
	return k.manager.FullTransaction(ctx, hash)
}

// Transactions returns decorated transactions matching any of the tag
// queries, newest first, starting strictly after fromHash.
func (k *Kit) Transactions(ctx context.Context, tagQueries []db.TagQuery, fromHash string, limit int) ([]transactions.FullTransaction, error) {
	return k.manager.FullTransactions(ctx, tagQueries, fromHash, limit)
}

// SubscribeSyncState streams sync state changes.
func (k *Kit) SubscribeSyncState() (<-chan syncer.State, func()) { return k.syncer.SubscribeState() }

// SubscribeBalances streams balance updates after successful syncs.
func (k *Kit) SubscribeBalances() (<-chan syncer.Balances, func()) {
	return k.syncer.SubscribeBalances()
}

// SubscribeHeight streams last-block-height advances.
func (k *Kit) SubscribeHeight() (<-chan uint32, func()) { return k.syncer.SubscribeHeight() }

// SubscribeTransactions streams newly ingested transactions matching the tag
// queries; nil queries match everything.
func (k *Kit) SubscribeTransactions(tagQueries []db.TagQuery) (<-chan []transactions.FullTransaction, func()) {
	if len(tagQueries) == 0 {
		return k.manager.SubscribeLatest()
	}
	return k.manager.SubscribeFiltered(tagQueries)
}

// Send submits a payment and refreshes so the outgoing transaction shows up
// without waiting for the next timer tick.
func (k *Kit) Send(ctx context.Context, req horizon.PaymentRequest) (string, error) {
	hash, err := k.source.SubmitPayment(ctx, req)
	if err != nil {
		return "", err
	}
	k.syncer.Refresh()
	return hash, nil
}
