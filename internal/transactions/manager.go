package transactions

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/stellar/go/support/log"

	"github.com/owlwallet/stellarkit/internal/db"
	"github.com/owlwallet/stellarkit/internal/util"
)

type taggedTransaction struct {
	transaction FullTransaction
	tags        []db.Tag
}

// Manager owns transaction ingestion, tag derivation and the query/stream
// APIs. One instance per account kit.
type Manager struct {
	accountID string
	store     *db.Store
	decorator *Decorator
	log       *log.Entry

	latest *util.Broadcaster[[]FullTransaction]
	tagged *util.Broadcaster[[]taggedTransaction]

	ingestedCounter prometheus.Counter
}

func NewManager(accountID string, store *db.Store, decorator *Decorator, logger *log.Entry, registry *prometheus.Registry) *Manager {
	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "stellar_wallet", Subsystem: "transactions",
		Name: "ingested_total",
		Help: "count of transactions ingested into the local store",
	})
	if registry != nil {
		registry.MustRegister(counter)
	}

	return &Manager{
		accountID:       accountID,
		store:           store,
		decorator:       decorator,
		log:             logger,
		latest:          util.NewBroadcaster[[]FullTransaction](),
		tagged:          util.NewBroadcaster[[]taggedTransaction](),
		ingestedCounter: counter,
	}
}

// SaveTransactions converts, persists, decorates and tags a batch of raw
// transaction responses, then publishes the decorated batch. Responses that
// cannot be converted are logged and skipped; they never abort the batch.
func (m *Manager) SaveTransactions(ctx context.Context, responses []TransactionResponse) ([]FullTransaction, error) {
	converted := make([]db.Transaction, 0, len(responses))
	for _, r := range responses {
		tx, err := convertTransaction(r)
		if err != nil {
			m.log.WithField("id", r.ID).WithError(err).Warn("skipping unconvertible transaction response")
			continue
		}
		converted = append(converted, tx)
	}
	if len(converted) == 0 {
		return nil, nil
	}

	if err := m.store.SaveTransactions(ctx, converted); err != nil {
		return nil, err
	}

	full, err := m.decorator.Decorate(ctx, converted)
	if err != nil {
		return nil, err
	}

	tagRecords := make([]db.TagRecord, 0, len(full))
	tagged := make([]taggedTransaction, 0, len(full))
	for _, ft := range full {
		tag := deriveTag(m.accountID, ft.Operation)
		tagRecords = append(tagRecords, db.TagRecord{
			Hash:            ft.Transaction.Hash,
			Type:            tag.Type,
			Protocol:        tag.Protocol,
			ContractAddress: tag.ContractAddress,
		})
		tagged = append(tagged, taggedTransaction{transaction: ft, tags: []db.Tag{tag}})
	}
	if err := m.store.SaveTags(ctx, tagRecords); err != nil {
		return nil, err
	}

	m.ingestedCounter.Add(float64(len(full)))
	m.latest.Publish(full)
	m.tagged.Publish(tagged)
	return full, nil
}

// SaveOperations converts and persists a batch of raw operation responses.
// Tags are not re-derived here; they are derived at transaction-ingestion
// time from whatever operation is available then.
func (m *Manager) SaveOperations(ctx context.Context, responses []OperationResponse) error {
	converted := make([]db.Operation, 0, len(responses))
	for _, r := range responses {
		op, err := convertOperation(r)
		if err != nil {
			m.log.WithField("id", r.ID).WithField("type", r.Type).Debug("skipping unsupported operation response")
			continue
		}
		converted = append(converted, op)
	}
	return m.store.SaveOperations(ctx, converted)
}

// deriveTag classifies a transaction from its primary operation.
// create_account wins over direction; direction is decided by whether the
// payment originates from the local account.
func deriveTag(accountID string, op *db.Operation) db.Tag {
	tagType := db.TagIncoming
	switch {
	case op != nil && op.Type == db.OperationTypeCreateAccount:
		tagType = db.TagCreateAccount
	case op != nil && op.From == accountID:
		tagType = db.TagOutgoing
	}

	if op == nil || op.AssetType == db.AssetTypeNative {
		return db.Tag{Type: tagType, Protocol: db.TagProtocolNative}
	}
	return db.Tag{
		Type:            tagType,
		Protocol:        db.TagProtocolCreditAlphanum4,
		ContractAddress: op.AssetIssuer,
	}
}

// FullTransaction returns the decorated transaction for a hash.
func (m *Manager) FullTransaction(ctx context.Context, hash string) (FullTransaction, error) {
	tx, err := m.store.Transaction(ctx, hash)
	if err != nil {
		return FullTransaction{}, err
	}
	full, err := m.decorator.Decorate(ctx, []db.Transaction{tx})
	if err != nil {
		return FullTransaction{}, err
	}
	return full[0], nil
}

// FullTransactions is the pull-based query for initial page loads: a
// tag-filtered, keyset-paginated store query followed by decoration.
func (m *Manager) FullTransactions(ctx context.Context, tagQueries []db.TagQuery, fromHash string, limit int) ([]FullTransaction, error) {
	txs, err := m.store.TransactionsBefore(ctx, tagQueries, fromHash, limit)
	if err != nil {
		return nil, err
	}
	return m.decorator.Decorate(ctx, txs)
}

// SubscribeLatest streams every newly ingested decorated batch.
func (m *Manager) SubscribeLatest() (<-chan []FullTransaction, func()) {
	return m.latest.Subscribe()
}

// SubscribeFiltered streams, for each newly ingested batch, the subset
// matching any of the supplied tag queries. Batches with no match are not
// emitted.
func (m *Manager) SubscribeFiltered(tagQueries []db.TagQuery) (<-chan []FullTransaction, func()) {
	in, cancelIn := m.tagged.Subscribe()
	out := make(chan []FullTransaction, 16)

	go func() {
		defer close(out)
		for batch := range in {
			matched := make([]FullTransaction, 0, len(batch))
			for _, tt := range batch {
				if matchesAny(tt.tags, tagQueries) {
					matched = append(matched, tt.transaction)
				}
			}
			if len(matched) == 0 {
				continue
			}
			// Same non-blocking policy as the broadcaster: a subscriber
			// that stops draining loses batches rather than stalling
			// ingestion.
			select {
			case out <- matched:
			default:
			}
		}
	}()

	return out, cancelIn
}

func matchesAny(tags []db.Tag, queries []db.TagQuery) bool {
	for _, q := range queries {
		for _, tag := range tags {
			if tag.Conforms(q) {
				return true
			}
		}
	}
	return false
}

// Close releases all live subscriptions.
func (m *Manager) Close() {
	m.latest.Close()
	m.tagged.Close()
}

// IsNotFound reports whether err is the store's missing-record error.
func IsNotFound(err error) bool {
	return errors.Is(err, db.ErrNotFound)
}
