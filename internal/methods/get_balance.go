package methods

import (
	"context"

	"github.com/creachadair/jrpc2"

	"github.com/owlwallet/stellarkit/internal/kit"
)

type AssetBalance struct {
	// Asset in "CODE:ISSUER" form.
	Asset string `json:"asset"`
	// Held amount in stroops.
	Amount int64 `json:"amount"`
}

type GetBalanceResponse struct {
	// XLM balance in stroops as of the last successful sync.
	Native int64          `json:"native"`
	Assets []AssetBalance `json:"assets,omitempty"`
}

// NewGetBalanceHandler returns a JSON RPC handler reporting the last synced
// balances of the wallet account.
func NewGetBalanceHandler(wallet *kit.Kit) jrpc2.Handler {
	return NewHandler(func(ctx context.Context) (GetBalanceResponse, error) {
		balances := wallet.Balances()
		response := GetBalanceResponse{Native: balances.Native}
		for asset, amount := range balances.Assets {
			response.Assets = append(response.Assets, AssetBalance{Asset: asset, Amount: amount})
		}
		return response, nil
	})
}
