package horizon

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stellar/go/amount"
	"github.com/stellar/go/clients/horizonclient"
	"github.com/stellar/go/keypair"
	hProtocol "github.com/stellar/go/protocols/horizon"
	"github.com/stellar/go/protocols/horizon/operations"
	"github.com/stellar/go/support/log"
	"github.com/stellar/go/txnbuild"

	"github.com/owlwallet/stellarkit/internal/db"
	"github.com/owlwallet/stellarkit/internal/transactions"
)

const (
	pageLimit      = 100
	retryInterval  = 2 * time.Second
	maxFetchRetry  = 3
	paymentTimeout = 300
)

// Client is the Horizon-backed DataSource. It signs outgoing payments with
// the configured keypair and stamps them with the network passphrase.
type Client struct {
	horizon           horizonclient.ClientInterface
	keypair           *keypair.Full
	networkPassphrase string
	log               *log.Entry
}

var _ DataSource = (*Client)(nil)

func NewClient(horizonURL, networkPassphrase string, kp *keypair.Full, logger *log.Entry) *Client {
	return &Client{
		horizon: &horizonclient.Client{
			HorizonURL: horizonURL,
			HTTP:       &http.Client{Timeout: 30 * time.Second},
		},
		keypair:           kp,
		networkPassphrase: networkPassphrase,
		log:               logger.WithField("subservice", "horizon"),
	}
}

func (c *Client) fetchBackoff(ctx context.Context) backoff.BackOff {
	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(retryInterval), maxFetchRetry)
	return backoff.WithContext(b, ctx)
}

func (c *Client) FetchAccountDetails(ctx context.Context, accountID string) (AccountDetails, error) {
	var account hProtocol.Account
	err := backoff.Retry(func() error {
		var err error
		account, err = c.horizon.AccountDetail(horizonclient.AccountRequest{AccountID: accountID})
		if horizonclient.IsNotFoundError(err) {
			return backoff.Permanent(ErrAccountNotFound)
		}
		return err
	}, c.fetchBackoff(ctx))
	if err != nil {
		return AccountDetails{}, err
	}

	details := AccountDetails{
		AccountID: account.AccountID,
		Sequence:  account.Sequence,
	}
	for _, b := range account.Balances {
		stroops, err := amount.ParseInt64(b.Balance)
		if err != nil {
			c.log.WithError(err).WithField("asset", b.Asset.Code).
				Warn("skipping unparsable balance")
			continue
		}
		details.Balances = append(details.Balances, Balance{
			AssetType:   b.Asset.Type,
			AssetCode:   b.Asset.Code,
			AssetIssuer: b.Asset.Issuer,
			Amount:      stroops,
		})
	}
	return details, nil
}

func (c *Client) FetchTransactions(ctx context.Context, accountID, cursor string) (Page[transactions.TransactionResponse], error) {
	var page hProtocol.TransactionsPage
	err := backoff.Retry(func() error {
		var err error
		page, err = c.horizon.Transactions(horizonclient.TransactionRequest{
			ForAccount: accountID,
			Cursor:     cursor,
			Order:      horizonclient.OrderDesc,
			Limit:      pageLimit,
		})
		return err
	}, c.fetchBackoff(ctx))
	if err != nil {
		return Page[transactions.TransactionResponse]{}, fmt.Errorf("fetching transactions for %s: %w", accountID, err)
	}

	out := Page[transactions.TransactionResponse]{}
	for _, record := range page.Embedded.Records {
		out.Records = append(out.Records, transactions.TransactionResponse{
			ID:             record.ID,
			PagingToken:    record.PT,
			Hash:           record.Hash,
			Ledger:         uint32(record.Ledger),
			CreatedAt:      record.LedgerCloseTime,
			SourceAccount:  record.Account,
			FeeAccount:     record.FeeAccount,
			MaxFee:         record.MaxFee,
			FeeCharged:     record.FeeCharged,
			OperationCount: record.OperationCount,
			MemoType:       record.MemoType,
		})
		out.Cursor = record.PT
	}
	return out, nil
}

func (c *Client) FetchOperations(ctx context.Context, accountID, cursor string) (Page[transactions.OperationResponse], error) {
	var page operations.OperationsPage
	err := backoff.Retry(func() error {
		var err error
		page, err = c.horizon.Operations(horizonclient.OperationRequest{
			ForAccount: accountID,
			Cursor:     cursor,
			Order:      horizonclient.OrderDesc,
			Limit:      pageLimit,
		})
		return err
	}, c.fetchBackoff(ctx))
	if err != nil {
		return Page[transactions.OperationResponse]{}, fmt.Errorf("fetching operations for %s: %w", accountID, err)
	}

	out := Page[transactions.OperationResponse]{}
	for _, record := range page.Embedded.Records {
		converted, ok := convertOperationRecord(record)
		out.Cursor = record.PagingToken()
		if !ok {
			continue
		}
		out.Records = append(out.Records, converted)
	}
	return out, nil
}

// convertOperationRecord maps the Horizon operation types the wallet renders
// onto the flat response model. Other operation types are dropped here so the
// store never sees them.
func convertOperationRecord(record operations.Operation) (transactions.OperationResponse, bool) {
	switch op := record.(type) {
	case operations.Payment:
		return transactions.OperationResponse{
			ID:            op.Base.ID,
			PagingToken:   op.Base.PT,
			Hash:          op.Base.TransactionHash,
			CreatedAt:     op.Base.LedgerCloseTime,
			SourceAccount: op.Base.SourceAccount,
			Type:          db.OperationTypePayment,
			Successful:    op.Base.TransactionSuccessful,
			Amount:        op.Amount,
			AssetType:     op.Asset.Type,
			AssetCode:     op.Asset.Code,
			AssetIssuer:   op.Asset.Issuer,
			From:          op.From,
			To:            op.To,
		}, true
	case operations.PathPaymentStrictSend:
		return transactions.OperationResponse{
			ID:            op.Base.ID,
			PagingToken:   op.Base.PT,
			Hash:          op.Base.TransactionHash,
			CreatedAt:     op.Base.LedgerCloseTime,
			SourceAccount: op.Base.SourceAccount,
			Type:          db.OperationTypePathPaymentStrictSend,
			Successful:    op.Base.TransactionSuccessful,
			Amount:        op.Amount,
			AssetType:     op.Asset.Type,
			AssetCode:     op.Asset.Code,
			AssetIssuer:   op.Asset.Issuer,
			From:          op.From,
			To:            op.To,
		}, true
	case operations.CreateAccount:
		return transactions.OperationResponse{
			ID:              op.Base.ID,
			PagingToken:     op.Base.PT,
			Hash:            op.Base.TransactionHash,
			CreatedAt:       op.Base.LedgerCloseTime,
			SourceAccount:   op.Base.SourceAccount,
			Type:            db.OperationTypeCreateAccount,
			Successful:      op.Base.TransactionSuccessful,
			AssetType:       db.AssetTypeNative,
			From:            op.Funder,
			To:              op.Account,
			StartingBalance: op.StartingBalance,
		}, true
	default:
		return transactions.OperationResponse{}, false
	}
}

func (c *Client) SubmitPayment(ctx context.Context, req PaymentRequest) (string, error) {
	if c.keypair == nil {
		return "", fmt.Errorf("wallet is watch-only, no signing key configured")
	}

	source, err := c.horizon.AccountDetail(horizonclient.AccountRequest{AccountID: c.keypair.Address()})
	if horizonclient.IsNotFoundError(err) {
		return "", ErrAccountNotFound
	}
	if err != nil {
		return "", fmt.Errorf("loading source account: %w", err)
	}

	var asset txnbuild.Asset = txnbuild.NativeAsset{}
	if req.AssetCode != "" {
		asset = txnbuild.CreditAsset{Code: req.AssetCode, Issuer: req.AssetIssuer}
	}

	params := txnbuild.TransactionParams{
		SourceAccount:        &source,
		IncrementSequenceNum: true,
		BaseFee:              txnbuild.MinBaseFee,
		Preconditions: txnbuild.Preconditions{
			TimeBounds: txnbuild.NewTimeout(paymentTimeout),
		},
		Operations: []txnbuild.Operation{
			&txnbuild.Payment{
				Destination: req.Destination,
				Amount:      req.Amount,
				Asset:       asset,
			},
		},
	}
	if req.Memo != "" {
		params.Memo = txnbuild.MemoText(req.Memo)
	}

	tx, err := txnbuild.NewTransaction(params)
	if err != nil {
		return "", fmt.Errorf("building payment: %w", err)
	}
	tx, err = tx.Sign(c.networkPassphrase, c.keypair)
	if err != nil {
		return "", fmt.Errorf("signing payment: %w", err)
	}

	resp, err := c.horizon.SubmitTransaction(tx)
	if err != nil {
		if err == horizonclient.ErrAccountRequiresMemo {
			return "", ErrDestinationRequiresMemo
		}
		return "", fmt.Errorf("submitting payment: %w", err)
	}
	c.log.WithField("hash", resp.Hash).Info("payment submitted")
	return resp.Hash, nil
}
