package transactions

import (
	"context"
	"errors"

	"github.com/owlwallet/stellarkit/internal/db"
)

// Decorator joins stored transactions with their primary operation. It is a
// pure store lookup: no network, no mutation.
type Decorator struct {
	store *db.Store
}

func NewDecorator(store *db.Store) *Decorator {
	return &Decorator{store: store}
}

// Decorate produces one FullTransaction per input transaction, preserving
// order. A transaction with no stored operation is kept with a nil
// operation, never dropped.
func (d *Decorator) Decorate(ctx context.Context, transactions []db.Transaction) ([]FullTransaction, error) {
	full := make([]FullTransaction, 0, len(transactions))
	for _, tx := range transactions {
		op, err := d.store.Operation(ctx, tx.Hash)
		if errors.Is(err, db.ErrNotFound) {
			full = append(full, FullTransaction{Transaction: tx})
			continue
		} else if err != nil {
			return nil, err
		}
		opCopy := op
		full = append(full, FullTransaction{Transaction: tx, Operation: &opCopy})
	}
	return full, nil
}
