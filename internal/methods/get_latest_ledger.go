package methods

import (
	"context"
	"fmt"

	"github.com/creachadair/jrpc2"

	"github.com/owlwallet/stellarkit/internal/kit"
)

type GetLatestLedgerResponse struct {
	// Sequence of the highest ledger observed for the wallet account, 0
	// before the first successful sync.
	Sequence uint32 `json:"sequence"`
}

// NewGetLatestLedgerHandler returns a JSON RPC handler to retrieve the
// highest ledger the wallet has seen a transaction in.
func NewGetLatestLedgerHandler(wallet *kit.Kit) jrpc2.Handler {
	return NewHandler(func(ctx context.Context) (GetLatestLedgerResponse, error) {
		height, err := wallet.LastBlockHeight(ctx)
		if err != nil {
			return GetLatestLedgerResponse{}, &jrpc2.Error{
				Code:    jrpc2.InternalError,
				Message: fmt.Errorf("could not read last block height: %w", err).Error(),
			}
		}
		return GetLatestLedgerResponse{Sequence: height}, nil
	})
}
