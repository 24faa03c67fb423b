package methods

import (
	"context"
	"errors"
	"fmt"

	"github.com/creachadair/jrpc2"

	"github.com/owlwallet/stellarkit/internal/horizon"
	"github.com/owlwallet/stellarkit/internal/kit"
)

type SendPaymentRequest struct {
	Destination string `json:"destination"`
	// Amount in the asset's decimal representation, e.g. "12.5000000".
	Amount      string `json:"amount"`
	AssetCode   string `json:"assetCode,omitempty"`
	AssetIssuer string `json:"assetIssuer,omitempty"`
	Memo        string `json:"memo,omitempty"`
}

type SendPaymentResponse struct {
	Hash string `json:"hash"`
}

// NewSendPaymentHandler returns a JSON RPC handler that submits a payment
// from the wallet account.
func NewSendPaymentHandler(wallet *kit.Kit) jrpc2.Handler {
	return NewHandler(func(ctx context.Context, request SendPaymentRequest) (SendPaymentResponse, error) {
		return sendPayment(ctx, wallet, request)
	})
}

func sendPayment(ctx context.Context, wallet *kit.Kit, request SendPaymentRequest) (SendPaymentResponse, error) {
	if request.Destination == "" || request.Amount == "" {
		return SendPaymentResponse{}, &jrpc2.Error{
			Code:    jrpc2.InvalidParams,
			Message: "destination and amount are required",
		}
	}
	if (request.AssetCode == "") != (request.AssetIssuer == "") {
		return SendPaymentResponse{}, &jrpc2.Error{
			Code:    jrpc2.InvalidParams,
			Message: "assetCode and assetIssuer must be set together",
		}
	}

	hash, err := wallet.Send(ctx, horizon.PaymentRequest{
		Destination: request.Destination,
		Amount:      request.Amount,
		AssetCode:   request.AssetCode,
		AssetIssuer: request.AssetIssuer,
		Memo:        request.Memo,
	})
	switch {
	case errors.Is(err, horizon.ErrDestinationRequiresMemo):
		return SendPaymentResponse{}, &jrpc2.Error{
			Code:    jrpc2.InvalidParams,
			Message: "destination account requires a memo",
		}
	case errors.Is(err, horizon.ErrAccountNotFound):
		return SendPaymentResponse{}, &jrpc2.Error{
			Code:    jrpc2.InvalidRequest,
			Message: "source account is not funded",
		}
	case err != nil:
		return SendPaymentResponse{}, &jrpc2.Error{
			Code:    jrpc2.InternalError,
			Message: fmt.Errorf("could not submit payment: %w", err).Error(),
		}
	}
	return SendPaymentResponse{Hash: hash}, nil
}
