package methods

import (
	"context"

	"github.com/creachadair/jrpc2"

	"github.com/owlwallet/stellarkit/internal/kit"
	"github.com/owlwallet/stellarkit/internal/syncer"
)

type GetSyncStateResponse struct {
	// Status is "synced", "syncing" or "notSynced".
	Status string `json:"status"`
	// Progress of the running attempt in [0, 1], when known.
	Progress *float64 `json:"progress,omitempty"`
	// Error text for the notSynced status.
	Error string `json:"error,omitempty"`
}

// NewGetSyncStateHandler returns a JSON RPC handler reporting the sync state
// of the wallet account.
func NewGetSyncStateHandler(wallet *kit.Kit) jrpc2.Handler {
	return NewHandler(func(ctx context.Context) (GetSyncStateResponse, error) {
		state := wallet.SyncState()
		switch state.Kind {
		case syncer.KindSynced:
			return GetSyncStateResponse{Status: "synced"}, nil
		case syncer.KindSyncing:
			return GetSyncStateResponse{Status: "syncing", Progress: state.Progress}, nil
		default:
			response := GetSyncStateResponse{Status: "notSynced"}
			if state.Err != nil {
				response.Error = state.Err.Error()
			}
			return response, nil
		}
	})
}
