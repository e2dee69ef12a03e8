package ledger

import (
	"context"
	"errors"
	"testing"
)

func TestTransferMovesFundsBetweenAccounts(t *testing.T) {
	t.Parallel()
	store := newStubStore()
	usd := mustCurrency(t, "USD")
	payerWallet, payerAccount := newFundedAccount(t, store, usd, 10000)
	payeeWallet, _ := newFundedAccount(t, store, usd, 0)

	service := mustNewService(t, store)
	identity := identityWithScopes(mustAPIKeyID(t, "key-1"), payerWallet, ScopeTransfer, ScopeRead)
	amount := mustPositiveAmount(t, 2500)

	entry, err := service.Transfer(context.Background(), identity, payerWallet, usd, payeeWallet.String(), amount, "", nil, IdempotencyKey{}, "")
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if entry.Kind != EntryKindTransfer {
		t.Fatalf("expected transfer entry, got %s", entry.Kind)
	}

	balance, err := service.Balance(context.Background(), identity, payerWallet, usd)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Available.Int64() != 7500 {
		t.Fatalf("expected payer available 7500, got %d", balance.Available.Int64())
	}

	payeeBalance, err := service.Balance(context.Background(), identity, payeeWallet, usd)
	if err != nil {
		t.Fatalf("payee balance: %v", err)
	}
	if payeeBalance.Available.Int64() != 2500 {
		t.Fatalf("expected payee available 2500, got %d", payeeBalance.Available.Int64())
	}
	_ = payerAccount
}

func TestTransferInsufficientFunds(t *testing.T) {
	t.Parallel()
	store := newStubStore()
	usd := mustCurrency(t, "USD")
	payerWallet, _ := newFundedAccount(t, store, usd, 100)
	payeeWallet, _ := newFundedAccount(t, store, usd, 0)

	service := mustNewService(t, store)
	identity := identityWithScopes(mustAPIKeyID(t, "key-1"), payerWallet, ScopeTransfer)
	amount := mustPositiveAmount(t, 500)

	_, err := service.Transfer(context.Background(), identity, payerWallet, usd, payeeWallet.String(), amount, "", nil, IdempotencyKey{}, "")
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
}

func TestTransferRejectsFrozenAccount(t *testing.T) {
	t.Parallel()
	store := newStubStore()
	usd := mustCurrency(t, "USD")
	payerWallet, payerAccount := newFundedAccount(t, store, usd, 10000)
	payeeWallet, _ := newFundedAccount(t, store, usd, 0)
	if err := store.UpdateAccountStatus(context.Background(), payerAccount, AccountStatusFrozen); err != nil {
		t.Fatalf("freeze: %v", err)
	}

	service := mustNewService(t, store)
	identity := identityWithScopes(mustAPIKeyID(t, "key-1"), payerWallet, ScopeTransfer)
	amount := mustPositiveAmount(t, 100)

	_, err := service.Transfer(context.Background(), identity, payerWallet, usd, payeeWallet.String(), amount, "", nil, IdempotencyKey{}, "")
	if !errors.Is(err, ErrAccountFrozen) {
		t.Fatalf("expected ErrAccountFrozen, got %v", err)
	}
}

func TestTransferForbiddenScope(t *testing.T) {
	t.Parallel()
	store := newStubStore()
	usd := mustCurrency(t, "USD")
	payerWallet, _ := newFundedAccount(t, store, usd, 10000)
	payeeWallet, _ := newFundedAccount(t, store, usd, 0)

	service := mustNewService(t, store)
	identity := identityWithScopes(mustAPIKeyID(t, "key-1"), payerWallet, ScopeRead)
	amount := mustPositiveAmount(t, 100)

	_, err := service.Transfer(context.Background(), identity, payerWallet, usd, payeeWallet.String(), amount, "", nil, IdempotencyKey{}, "")
	if !errors.Is(err, ErrForbiddenScope) {
		t.Fatalf("expected ErrForbiddenScope, got %v", err)
	}
}

func TestTransferRecipientNotFound(t *testing.T) {
	t.Parallel()
	store := newStubStore()
	usd := mustCurrency(t, "USD")
	payerWallet, _ := newFundedAccount(t, store, usd, 10000)

	service := mustNewService(t, store)
	identity := identityWithScopes(mustAPIKeyID(t, "key-1"), payerWallet, ScopeTransfer)
	amount := mustPositiveAmount(t, 100)

	_, err := service.Transfer(context.Background(), identity, payerWallet, usd, "no-such-wallet", amount, "", nil, IdempotencyKey{}, "")
	if !errors.Is(err, ErrRecipientNotFound) {
		t.Fatalf("expected ErrRecipientNotFound, got %v", err)
	}
}

func TestTransferByHandle(t *testing.T) {
	t.Parallel()
	store := newStubStore()
	usd := mustCurrency(t, "USD")
	payerWallet, _ := newFundedAccount(t, store, usd, 1000)
	payeeWallet, _ := newFundedAccount(t, store, usd, 0)
	if err := store.SetWalletHandle(context.Background(), payeeWallet, "receiver"); err != nil {
		t.Fatalf("set handle: %v", err)
	}

	service := mustNewService(t, store)
	identity := identityWithScopes(mustAPIKeyID(t, "key-1"), payerWallet, ScopeTransfer, ScopeRead)
	amount := mustPositiveAmount(t, 300)

	if _, err := service.Transfer(context.Background(), identity, payerWallet, usd, "@receiver", amount, "", nil, IdempotencyKey{}, ""); err != nil {
		t.Fatalf("transfer by handle: %v", err)
	}
	balance, err := service.Balance(context.Background(), identity, payeeWallet, usd)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Available.Int64() != 300 {
		t.Fatalf("expected 300, got %d", balance.Available.Int64())
	}
}

func TestTransferIdempotentReplay(t *testing.T) {
	t.Parallel()
	store := newStubStore()
	usd := mustCurrency(t, "USD")
	payerWallet, _ := newFundedAccount(t, store, usd, 10000)
	payeeWallet, _ := newFundedAccount(t, store, usd, 0)

	service := mustNewService(t, store)
	identity := identityWithScopes(mustAPIKeyID(t, "key-1"), payerWallet, ScopeTransfer, ScopeRead)
	amount := mustPositiveAmount(t, 100)
	idemKey := mustIdempotencyKey(t, "idem-1")

	first, err := service.Transfer(context.Background(), identity, payerWallet, usd, payeeWallet.String(), amount, "", nil, idemKey, "fp-1")
	if err != nil {
		t.Fatalf("first transfer: %v", err)
	}
	second, err := service.Transfer(context.Background(), identity, payerWallet, usd, payeeWallet.String(), amount, "", nil, idemKey, "fp-1")
	if err != nil {
		t.Fatalf("replayed transfer: %v", err)
	}
	if first.EntryID != second.EntryID {
		t.Fatalf("expected replay to return the same entry, got %s and %s", first.EntryID, second.EntryID)
	}

	balance, err := service.Balance(context.Background(), identity, payerWallet, usd)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Available.Int64() != 9900 {
		t.Fatalf("expected the debit to apply exactly once, got available %d", balance.Available.Int64())
	}
}

func TestTransferIdempotencyConflictOnMismatchedFingerprint(t *testing.T) {
	t.Parallel()
	store := newStubStore()
	usd := mustCurrency(t, "USD")
	payerWallet, _ := newFundedAccount(t, store, usd, 10000)
	payeeWallet, _ := newFundedAccount(t, store, usd, 0)

	service := mustNewService(t, store)
	identity := identityWithScopes(mustAPIKeyID(t, "key-1"), payerWallet, ScopeTransfer)
	amount := mustPositiveAmount(t, 100)
	idemKey := mustIdempotencyKey(t, "idem-2")

	if _, err := service.Transfer(context.Background(), identity, payerWallet, usd, payeeWallet.String(), amount, "", nil, idemKey, "fp-a"); err != nil {
		t.Fatalf("first transfer: %v", err)
	}
	_, err := service.Transfer(context.Background(), identity, payerWallet, usd, payeeWallet.String(), amount, "", nil, idemKey, "fp-b")
	if !errors.Is(err, ErrIdempotencyConflict) {
		t.Fatalf("expected ErrIdempotencyConflict, got %v", err)
	}
}

func TestTransferRetriesOnTransientConflict(t *testing.T) {
	t.Parallel()
	store := newStubStore()
	usd := mustCurrency(t, "USD")
	payerWallet, _ := newFundedAccount(t, store, usd, 10000)
	payeeWallet, _ := newFundedAccount(t, store, usd, 0)
	store.withTxErrCount = 2

	var retries int
	service := mustNewService(t, store, WithRetryLimit(5), WithRetryObserver(func(operation string) { retries++ }))
	identity := identityWithScopes(mustAPIKeyID(t, "key-1"), payerWallet, ScopeTransfer)
	amount := mustPositiveAmount(t, 100)

	if _, err := service.Transfer(context.Background(), identity, payerWallet, usd, payeeWallet.String(), amount, "", nil, IdempotencyKey{}, ""); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if retries != 2 {
		t.Fatalf("expected 2 observed retries, got %d", retries)
	}
}

func TestTransferExhaustsRetriesOnPersistentConflict(t *testing.T) {
	t.Parallel()
	store := newStubStore()
	usd := mustCurrency(t, "USD")
	payerWallet, _ := newFundedAccount(t, store, usd, 10000)
	payeeWallet, _ := newFundedAccount(t, store, usd, 0)
	store.withTxErrCount = 100

	service := mustNewService(t, store, WithRetryLimit(2))
	identity := identityWithScopes(mustAPIKeyID(t, "key-1"), payerWallet, ScopeTransfer)
	amount := mustPositiveAmount(t, 100)

	_, err := service.Transfer(context.Background(), identity, payerWallet, usd, payeeWallet.String(), amount, "", nil, IdempotencyKey{}, "")
	if err == nil {
		t.Fatalf("expected exhausted-retry error, got nil")
	}
	if !errors.Is(err, ErrTransientConflict) {
		t.Fatalf("expected wrapped ErrTransientConflict, got %v", err)
	}
}

func TestTransferSpendCeilingExceeded(t *testing.T) {
	t.Parallel()
	store := newStubStore()
	usd := mustCurrency(t, "USD")
	payerWallet, _ := newFundedAccount(t, store, usd, 10000)
	payeeWallet, _ := newFundedAccount(t, store, usd, 0)

	ceiling := mustPositiveAmount(t, 500)
	identity := identityWithScopes(mustAPIKeyID(t, "key-1"), payerWallet, ScopeTransfer)
	identity.SpendCeiling = ceiling

	service := mustNewService(t, store)
	amount := mustPositiveAmount(t, 600)

	_, err := service.Transfer(context.Background(), identity, payerWallet, usd, payeeWallet.String(), amount, "", nil, IdempotencyKey{}, "")
	if !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("expected ErrLimitExceeded, got %v", err)
	}
}
