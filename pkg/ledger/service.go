package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/coreledger/wallet-ledger/pkg/money"
)

const (
	defaultRetryLimit         = 3
	defaultSpendWindowSeconds = int64(24 * time.Hour / time.Second)
	defaultListLimit          = 50
	maxListLimit              = 100
)

// Service contains the domain logic over a Store. It owns no connection
// of its own; every operation runs inside a Store-managed transaction.
type Service struct {
	store              Store
	nowFn              func() time.Time
	logger             OperationLogger
	retryLimit         int
	spendWindowSeconds int64
	onRetry            func(operation string)
}

// NewService wires a Service. now supplies the wall clock the domain
// logic uses for hold/intent expiry and spend-window boundaries; tests
// pass a fixed clock.
func NewService(store Store, now func() time.Time, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{
		store:              store,
		nowFn:              now,
		retryLimit:         defaultRetryLimit,
		spendWindowSeconds: defaultSpendWindowSeconds,
	}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	return service, nil
}

func (service *Service) now() time.Time {
	return service.nowFn()
}

// Balance returns the derived (available, held, total) view for a
// wallet's account in the given currency.
func (service *Service) Balance(ctx context.Context, identity CallerIdentity, walletID WalletID, currency money.Currency) (Balance, error) {
	if !identity.HasScope(ScopeRead) {
		return Balance{}, ErrForbiddenScope
	}
	var balance Balance
	err := service.store.WithTx(ctx, func(ctx context.Context, tx Store) error {
		account, err := tx.GetAccountByWalletCurrency(ctx, walletID, currency)
		if err != nil {
			return WrapError("balance", "account", "not_found", ErrRecipientNotFound)
		}
		balance, err = computeBalance(ctx, tx, account)
		return err
	})
	if err != nil {
		return Balance{}, err
	}
	return balance, nil
}

// ListTransactions returns a newest-first page of journal entries
// touching the wallet's account in currency, strictly older than before
// (zero time for the first page). A limit of zero or less becomes
// defaultListLimit, and a limit above maxListLimit becomes maxListLimit.
func (service *Service) ListTransactions(ctx context.Context, identity CallerIdentity, walletID WalletID, currency money.Currency, before time.Time, limit int) ([]JournalEntry, error) {
	if !identity.HasScope(ScopeRead) {
		return nil, ErrForbiddenScope
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	var entries []JournalEntry
	err := service.store.WithTx(ctx, func(ctx context.Context, tx Store) error {
		account, err := tx.GetAccountByWalletCurrency(ctx, walletID, currency)
		if err != nil {
			return WrapError("list_transactions", "account", "not_found", ErrRecipientNotFound)
		}
		entries, err = tx.ListEntries(ctx, account.AccountID, before, limit)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}
