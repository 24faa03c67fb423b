// Package horizon implements the ledger data source on top of the Stellar
// Horizon API, plus the contract the syncer consumes it through.
package horizon

import (
	"context"
	"errors"

	"github.com/owlwallet/stellarkit/internal/transactions"
)

// ErrAccountNotFound reports that the account has never been funded. Callers
// treat this as a normal "inactive account" state rather than a failure.
var ErrAccountNotFound = errors.New("account not found")

// ErrDestinationRequiresMemo reports that the payment destination enforces
// the SEP-29 memo-required flag and no memo was supplied.
var ErrDestinationRequiresMemo = errors.New("destination account requires a memo")

// Balance is a single asset balance of an account, in stroops.
type Balance struct {
	AssetType   string
	AssetCode   string
	AssetIssuer string
	Amount      int64
}

// AccountDetails is the account state the syncer needs: the sequence-bearing
// existence proof and the current balances.
type AccountDetails struct {
	AccountID string
	Sequence  int64
	Balances  []Balance
}

// Page carries one page of records together with the cursor of the last
// record, for resuming a descending walk.
type Page[T any] struct {
	Records []T
	Cursor  string
}

// PaymentRequest describes an outgoing native or credit-asset payment.
type PaymentRequest struct {
	Destination string
	Amount      string
	AssetCode   string
	AssetIssuer string
	Memo        string
}

// DataSource is the remote ledger contract. Implementations must be safe for
// concurrent use; every call honors ctx cancellation.
type DataSource interface {
	// FetchAccountDetails returns the account state, or ErrAccountNotFound
	// for accounts that have never been funded.
	FetchAccountDetails(ctx context.Context, accountID string) (AccountDetails, error)

	// FetchTransactions returns transactions for the account in descending
	// ledger order, starting after cursor (empty cursor = newest).
	FetchTransactions(ctx context.Context, accountID, cursor string) (Page[transactions.TransactionResponse], error)

	// FetchOperations returns operations for the account in descending
	// ledger order, starting after cursor.
	FetchOperations(ctx context.Context, accountID, cursor string) (Page[transactions.OperationResponse], error)

	// SubmitPayment builds, signs and submits a payment transaction and
	// returns its hash.
	SubmitPayment(ctx context.Context, req PaymentRequest) (string, error)
}
