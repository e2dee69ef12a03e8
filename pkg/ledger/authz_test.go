package ledger

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestHasScope(t *testing.T) {
	t.Parallel()
	identity := identityWithScopes(mustAPIKeyID(t, "key-1"), WalletID{}, ScopeTransfer, ScopeRead)
	if !identity.HasScope(ScopeTransfer) {
		t.Fatalf("expected ScopeTransfer to be present")
	}
	if identity.HasScope(ScopeAdmin) {
		t.Fatalf("expected ScopeAdmin to be absent")
	}
}

func TestAuthorizeForbidsMissingScope(t *testing.T) {
	t.Parallel()
	store := newStubStore()
	identity := identityWithScopes(mustAPIKeyID(t, "key-1"), WalletID{}, ScopeRead)

	err := authorize(context.Background(), store, identity, ScopeTransfer, WalletID{}, mustPositiveAmount(t, 100), 86400, time.Now())
	if !errors.Is(err, ErrForbiddenScope) {
		t.Fatalf("expected ErrForbiddenScope, got %v", err)
	}
}

func TestAuthorizeSkipsSpendCheckWithZeroCeiling(t *testing.T) {
	t.Parallel()
	store := newStubStore()
	usd := mustCurrency(t, "USD")
	walletID, _ := newFundedAccount(t, store, usd, 0)
	identity := identityWithScopes(mustAPIKeyID(t, "key-1"), walletID, ScopeTransfer)

	err := authorize(context.Background(), store, identity, ScopeTransfer, walletID, mustPositiveAmount(t, 1_000_000), 86400, time.Now())
	if err != nil {
		t.Fatalf("expected no ceiling check with zero SpendCeiling, got %v", err)
	}
}

func TestAuthorizeEnforcesSpendCeiling(t *testing.T) {
	t.Parallel()
	store := newStubStore()
	usd := mustCurrency(t, "USD")
	walletID, accountID := newFundedAccount(t, store, usd, 10000)

	now := time.Unix(1_700_000_000, 0).UTC()
	entryID := NewGeneratedEntryID()
	store.entries[entryID.String()] = JournalEntry{
		EntryID:     entryID,
		Kind:        EntryKindTransfer,
		InitiatorID: walletID,
		Currency:    usd,
		CreatedAt:   now,
		Lines: []JournalLine{
			newLine(entryID, accountID, SideDebit, mustPositiveAmount(t, 400), BucketAvailable),
		},
	}
	store.entryOrder = append(store.entryOrder, entryID.String())

	identity := identityWithScopes(mustAPIKeyID(t, "key-1"), walletID, ScopeTransfer)
	identity.SpendCeiling = mustPositiveAmount(t, 500)

	if err := authorize(context.Background(), store, identity, ScopeTransfer, walletID, mustPositiveAmount(t, 50), 86400, now); err != nil {
		t.Fatalf("expected projected spend under ceiling to pass, got %v", err)
	}

	err := authorize(context.Background(), store, identity, ScopeTransfer, walletID, mustPositiveAmount(t, 200), 86400, now)
	if !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("expected ErrLimitExceeded, got %v", err)
	}
}

func TestAuthorizeIgnoresZeroDebitWallet(t *testing.T) {
	t.Parallel()
	store := newStubStore()
	identity := identityWithScopes(mustAPIKeyID(t, "key-1"), WalletID{}, ScopeTransfer)
	identity.SpendCeiling = mustPositiveAmount(t, 100)

	err := authorize(context.Background(), store, identity, ScopeTransfer, WalletID{}, mustPositiveAmount(t, 1_000_000), 86400, time.Now())
	if err != nil {
		t.Fatalf("expected no spend check for zero debit wallet, got %v", err)
	}
}
