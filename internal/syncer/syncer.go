package syncer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stellar/go/support/log"

	"github.com/owlwallet/stellarkit/internal/db"
	"github.com/owlwallet/stellarkit/internal/horizon"
	"github.com/owlwallet/stellarkit/internal/transactions"
	"github.com/owlwallet/stellarkit/internal/util"
)

// Balances is the wallet's asset holdings in stroops, refreshed wholesale on
// every successful sync. Assets maps "CODE:ISSUER" to the held amount.
// AccountActive is false when the ledger has never seen the account funded.
type Balances struct {
	Native        int64
	Assets        map[string]int64
	AccountActive bool
}

// Syncer keeps one account's local store in step with the ledger. It is the
// timer's delegate: ticks trigger attempts, attempts are single-flight, and
// an attempt invalidated by network loss or Stop cannot publish its result.
type Syncer struct {
	accountID string
	source    horizon.DataSource
	manager   *transactions.Manager
	store     *db.Store
	log       *log.Entry

	attempts *prometheus.CounterVec
	duration prometheus.Histogram

	mu         sync.Mutex
	state      State
	balances   Balances
	syncing    bool
	generation uint64
	cancel     context.CancelFunc
	rootCtx    context.Context
	rootCancel context.CancelFunc

	stateStream   *util.Broadcaster[State]
	balanceStream *util.Broadcaster[Balances]
	heightStream  *util.Broadcaster[uint32]
}

func New(accountID string, source horizon.DataSource, manager *transactions.Manager, store *db.Store, logger *log.Entry, registry *prometheus.Registry) *Syncer {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Syncer{
		accountID:  accountID,
		source:     source,
		manager:    manager,
		store:      store,
		log:        logger.WithField("subservice", "syncer"),
		state:      NotSynced(ErrNotStarted),
		balances:   Balances{Assets: map[string]int64{}},
		rootCtx:    ctx,
		rootCancel: cancel,
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stellar_wallet", Subsystem: "syncer", Name: "attempts_total",
			Help: "Sync attempts by outcome.",
		}, []string{"status"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "stellar_wallet", Subsystem: "syncer", Name: "attempt_duration_seconds",
			Help:    "Wall-clock duration of completed sync attempts.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		stateStream:   util.NewBroadcaster[State](),
		balanceStream: util.NewBroadcaster[Balances](),
		heightStream:  util.NewBroadcaster[uint32](),
	}
	if registry != nil {
		registry.MustRegister(s.attempts, s.duration)
	}
	return s
}

// State returns the current sync state.
func (s *Syncer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Balances returns the last synced balances.
func (s *Syncer) CurrentBalances() Balances {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances
}

func (s *Syncer) SubscribeState() (<-chan State, func())       { return s.stateStream.Subscribe() }
func (s *Syncer) SubscribeBalances() (<-chan Balances, func()) { return s.balanceStream.Subscribe() }
func (s *Syncer) SubscribeHeight() (<-chan uint32, func())     { return s.heightStream.Subscribe() }

// TimerUpdated implements TimerDelegate. Losing the network parks the state
// on a not-synced error and cancels any in-flight attempt, so a fetch that
// completes after the loss cannot publish. Regaining the network is followed
// by a SyncTick, which does the actual recovery.
func (s *Syncer) TimerUpdated(state TimerState) {
	if state.Ready {
		return
	}
	s.mu.Lock()
	s.generation++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.syncing = false
	s.setStateLocked(NotSynced(state.Err))
	s.mu.Unlock()
}

// SyncTick implements TimerDelegate.
func (s *Syncer) SyncTick() {
	s.startAttempt()
}

// Refresh requests an immediate attempt. Like timer ticks it is
// single-flight: a refresh while an attempt is already running is a no-op.
func (s *Syncer) Refresh() {
	s.startAttempt()
}

// Stop cancels any in-flight attempt and closes the event streams. The
// syncer cannot be restarted.
func (s *Syncer) Stop() {
	s.mu.Lock()
	s.generation++
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	s.rootCancel()
	s.stateStream.Close()
	s.balanceStream.Close()
	s.heightStream.Close()
}

func (s *Syncer) startAttempt() {
	s.mu.Lock()
	if s.rootCtx.Err() != nil || s.syncing {
		s.mu.Unlock()
		return
	}
	s.syncing = true
	s.generation++
	gen := s.generation
	ctx, cancel := context.WithCancel(s.rootCtx)
	s.cancel = cancel
	s.setStateLocked(Syncing(nil))
	s.mu.Unlock()

	go s.run(ctx, gen)
}

func (s *Syncer) run(ctx context.Context, gen uint64) {
	start := time.Now()
	balances, height, err := s.sync(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		// Network loss or Stop invalidated this attempt; its view of the
		// ledger is stale and must not overwrite the current state.
		s.log.Debug("discarding stale sync result")
		return
	}
	s.syncing = false
	s.cancel = nil
	s.duration.Observe(time.Since(start).Seconds())

	if err != nil {
		s.attempts.WithLabelValues("error").Inc()
		s.log.WithError(err).Warn("sync attempt failed")
		s.setStateLocked(NotSynced(err))
		return
	}
	s.attempts.WithLabelValues("ok").Inc()
	s.balances = balances
	s.balanceStream.Publish(balances)
	if height > 0 {
		s.heightStream.Publish(height)
	}
	s.setStateLocked(Synced())
}

// sync performs one full attempt: account details first, then operations,
// then transactions, so that by the time a transaction is stored its tag can
// be derived from an already-present operation.
func (s *Syncer) sync(ctx context.Context) (Balances, uint32, error) {
	details, err := s.source.FetchAccountDetails(ctx, s.accountID)
	if errors.Is(err, horizon.ErrAccountNotFound) {
		// An account the ledger has never seen is fully synced with
		// nothing in it, not broken.
		return Balances{Assets: map[string]int64{}}, 0, nil
	}
	if err != nil {
		return Balances{}, 0, err
	}

	balances := Balances{Assets: map[string]int64{}, AccountActive: true}
	for _, b := range details.Balances {
		if b.AssetType == db.AssetTypeNative {
			balances.Native = b.Amount
			continue
		}
		balances.Assets[b.AssetCode+":"+b.AssetIssuer] = b.Amount
	}

	ops, err := s.source.FetchOperations(ctx, s.accountID, "")
	if err != nil {
		return Balances{}, 0, err
	}
	if err := s.manager.SaveOperations(ctx, ops.Records); err != nil {
		return Balances{}, 0, err
	}

	txs, err := s.source.FetchTransactions(ctx, s.accountID, "")
	if err != nil {
		return Balances{}, 0, err
	}
	if _, err := s.manager.SaveTransactions(ctx, txs.Records); err != nil {
		return Balances{}, 0, err
	}

	height, err := s.advanceHeight(ctx, txs.Records)
	if err != nil {
		return Balances{}, 0, err
	}
	return balances, height, nil
}

// advanceHeight persists the highest ledger seen, never regressing it.
func (s *Syncer) advanceHeight(ctx context.Context, txs []transactions.TransactionResponse) (uint32, error) {
	var maxLedger uint32
	for _, tx := range txs {
		if tx.Ledger > maxLedger {
			maxLedger = tx.Ledger
		}
	}
	if maxLedger == 0 {
		return 0, nil
	}
	current, err := s.store.LastBlockHeight(ctx)
	if err != nil {
		return 0, err
	}
	if maxLedger <= current {
		return 0, nil
	}
	if err := s.store.SaveLastBlockHeight(ctx, maxLedger); err != nil {
		return 0, err
	}
	return maxLedger, nil
}

// setStateLocked stores and publishes the state if it changed. Callers hold
// s.mu.
func (s *Syncer) setStateLocked(next State) {
	if s.state.Equal(next) {
		return
	}
	s.state = next
	s.stateStream.Publish(next)
}
