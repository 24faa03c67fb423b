package methods

import (
	"context"
	"errors"
	"fmt"

	"github.com/creachadair/jrpc2"

	"github.com/owlwallet/stellarkit/internal/db"
	"github.com/owlwallet/stellarkit/internal/kit"
	"github.com/owlwallet/stellarkit/internal/transactions"
)

const maxTransactionsLimit = 200

type TagQuery struct {
	Type            string `json:"type,omitempty"`
	Protocol        string `json:"protocol,omitempty"`
	ContractAddress string `json:"contractAddress,omitempty"`
}

type GetTransactionsRequest struct {
	// Tags filters to transactions matching any of the queries; empty
	// fields within a query are wildcards.
	Tags []TagQuery `json:"tags,omitempty"`
	// FromHash resumes the descending walk strictly after this hash.
	FromHash string `json:"fromHash,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

type TransactionInfo struct {
	Hash          string         `json:"hash"`
	Ledger        uint32         `json:"ledger"`
	Timestamp     int64          `json:"timestamp"`
	SourceAccount string         `json:"sourceAccount"`
	FeeCharged    int64          `json:"feeCharged"`
	MemoType      string         `json:"memoType,omitempty"`
	Operation     *OperationInfo `json:"operation,omitempty"`
}

type OperationInfo struct {
	Type            string `json:"type"`
	Successful      bool   `json:"successful"`
	Amount          string `json:"amount,omitempty"`
	AssetType       string `json:"assetType,omitempty"`
	AssetCode       string `json:"assetCode,omitempty"`
	AssetIssuer     string `json:"assetIssuer,omitempty"`
	From            string `json:"from,omitempty"`
	To              string `json:"to,omitempty"`
	StartingBalance string `json:"startingBalance,omitempty"`
}

type GetTransactionsResponse struct {
	Transactions []TransactionInfo `json:"transactions"`
	// Cursor is the hash to pass as fromHash for the next page, empty when
	// this page is not full.
	Cursor string `json:"cursor,omitempty"`
}

// NewGetTransactionsHandler returns a JSON RPC handler for paging through
// the wallet's decorated transaction history.
func NewGetTransactionsHandler(wallet *kit.Kit) jrpc2.Handler {
	return NewHandler(func(ctx context.Context, request GetTransactionsRequest) (GetTransactionsResponse, error) {
		return getTransactions(ctx, wallet, request)
	})
}

func getTransactions(ctx context.Context, wallet *kit.Kit, request GetTransactionsRequest) (GetTransactionsResponse, error) {
	limit := request.Limit
	if limit <= 0 || limit > maxTransactionsLimit {
		limit = maxTransactionsLimit
	}
	queries := make([]db.TagQuery, 0, len(request.Tags))
	for _, tag := range request.Tags {
		queries = append(queries, db.TagQuery{
			Type:            db.TagType(tag.Type),
			Protocol:        db.TagProtocol(tag.Protocol),
			ContractAddress: tag.ContractAddress,
		})
	}

	full, err := wallet.Transactions(ctx, queries, request.FromHash, limit)
	if err != nil {
		if errors.Is(err, db.ErrAnchorNotFound) {
			return GetTransactionsResponse{}, &jrpc2.Error{
				Code:    jrpc2.InvalidParams,
				Message: fmt.Sprintf("unknown fromHash: %s", request.FromHash),
			}
		}
		return GetTransactionsResponse{}, &jrpc2.Error{
			Code:    jrpc2.InternalError,
			Message: fmt.Errorf("could not load transactions: %w", err).Error(),
		}
	}

	response := GetTransactionsResponse{Transactions: make([]TransactionInfo, 0, len(full))}
	for _, tx := range full {
		response.Transactions = append(response.Transactions, convertTransactionInfo(tx))
	}
	if len(full) == limit {
		response.Cursor = full[len(full)-1].Transaction.Hash
	}
	return response, nil
}

func convertTransactionInfo(tx transactions.FullTransaction) TransactionInfo {
	info := TransactionInfo{
		Hash:          tx.Transaction.Hash,
		Ledger:        tx.Transaction.Ledger,
		Timestamp:     tx.Transaction.Timestamp,
		SourceAccount: tx.Transaction.SourceAccount,
		FeeCharged:    tx.Transaction.FeeCharged,
		MemoType:      tx.Transaction.MemoType,
	}
	if op := tx.Operation; op != nil {
		info.Operation = &OperationInfo{
			Type:            op.Type,
			Successful:      op.Successful,
			Amount:          op.Amount,
			AssetType:       op.AssetType,
			AssetCode:       op.AssetCode,
			AssetIssuer:     op.AssetIssuer,
			From:            op.From,
			To:              op.To,
			StartingBalance: op.StartingBalance,
		}
	}
	return info
}
