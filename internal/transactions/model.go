// Package transactions owns ingestion of raw ledger records, tag derivation
// and the query/stream APIs over the decorated transaction history.
package transactions

import (
	"errors"
	"time"

	"github.com/owlwallet/stellarkit/internal/db"
)

// TransactionResponse is a raw transaction record as returned by the ledger
// data source, before conversion to the stored model.
type TransactionResponse struct {
	ID             string
	PagingToken    string
	Hash           string
	Ledger         uint32
	CreatedAt      time.Time
	SourceAccount  string
	FeeAccount     string
	MaxFee         int64
	FeeCharged     int64
	OperationCount int32
	MemoType       string
}

// OperationResponse is a raw operation record as returned by the ledger data
// source. Type-specific fields are populated according to Type.
type OperationResponse struct {
	ID              string
	PagingToken     string
	Hash            string
	CreatedAt       time.Time
	SourceAccount   string
	Type            string
	Successful      bool
	Amount          string
	AssetType       string
	AssetCode       string
	AssetIssuer     string
	From            string
	To              string
	StartingBalance string
}

// FullTransaction is a stored transaction joined with its decoded primary
// operation. Operation is nil when no operation has been ingested for the
// hash yet; such records render as generic/unknown entries.
type FullTransaction struct {
	Transaction db.Transaction
	Operation   *db.Operation
}

var errUnconvertible = errors.New("response cannot be converted")

func convertTransaction(r TransactionResponse) (db.Transaction, error) {
	if r.ID == "" || r.Hash == "" || r.CreatedAt.IsZero() {
		return db.Transaction{}, errUnconvertible
	}
	return db.Transaction{
		ID:             r.ID,
		PagingToken:    r.PagingToken,
		Hash:           r.Hash,
		Ledger:         r.Ledger,
		Timestamp:      r.CreatedAt.Unix(),
		SourceAccount:  r.SourceAccount,
		FeeAccount:     r.FeeAccount,
		MaxFee:         r.MaxFee,
		FeeCharged:     r.FeeCharged,
		OperationCount: r.OperationCount,
		MemoType:       r.MemoType,
	}, nil
}

func convertOperation(r OperationResponse) (db.Operation, error) {
	if r.ID == "" || r.Hash == "" {
		return db.Operation{}, errUnconvertible
	}
	switch r.Type {
	case db.OperationTypePayment, db.OperationTypePathPaymentStrictSend:
	case db.OperationTypeCreateAccount:
		// The created account starts with a native-asset balance.
		if r.AssetType == "" {
			r.AssetType = db.AssetTypeNative
		}
	default:
		return db.Operation{}, errUnconvertible
	}
	return db.Operation{
		ID:              r.ID,
		PagingToken:     r.PagingToken,
		Hash:            r.Hash,
		Timestamp:       r.CreatedAt.Unix(),
		SourceAccount:   r.SourceAccount,
		Type:            r.Type,
		Successful:      r.Successful,
		Amount:          r.Amount,
		AssetType:       r.AssetType,
		AssetCode:       r.AssetCode,
		AssetIssuer:     r.AssetIssuer,
		From:            r.From,
		To:              r.To,
		StartingBalance: r.StartingBalance,
	}, nil
}
