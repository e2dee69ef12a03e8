package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/coreledger/wallet-ledger/pkg/money"
)

func TestHoldCreateReservesAvailableIntoHeld(t *testing.T) {
	t.Parallel()
	store := newStubStore()
	usd := mustCurrency(t, "USD")
	payerWallet, payerAccount := newFundedAccount(t, store, usd, 5000)

	service := mustNewService(t, store)
	identity := identityWithScopes(mustAPIKeyID(t, "key-1"), payerWallet, ScopeHold, ScopeRead)
	amount := mustPositiveAmount(t, 2000)

	hold, err := service.HoldCreate(context.Background(), identity, payerWallet, usd, amount, time.Time{}, IdempotencyKey{}, "")
	if err != nil {
		t.Fatalf("hold create: %v", err)
	}
	if hold.Status != HoldStatusActive {
		t.Fatalf("expected active hold, got %s", hold.Status)
	}

	balance, err := service.Balance(context.Background(), identity, payerWallet, usd)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Available.Int64() != 3000 {
		t.Fatalf("expected available 3000, got %d", balance.Available.Int64())
	}
	if balance.Held.Int64() != 2000 {
		t.Fatalf("expected held 2000, got %d", balance.Held.Int64())
	}
	_ = payerAccount
}

func TestHoldCreateInsufficientFunds(t *testing.T) {
	t.Parallel()
	store := newStubStore()
	usd := mustCurrency(t, "USD")
	payerWallet, _ := newFundedAccount(t, store, usd, 100)

	service := mustNewService(t, store)
	identity := identityWithScopes(mustAPIKeyID(t, "key-1"), payerWallet, ScopeHold)
	amount := mustPositiveAmount(t, 500)

	_, err := service.HoldCreate(context.Background(), identity, payerWallet, usd, amount, time.Time{}, IdempotencyKey{}, "")
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
}

func TestHoldCaptureFull(t *testing.T) {
	t.Parallel()
	store := newStubStore()
	usd := mustCurrency(t, "USD")
	payerWallet, _ := newFundedAccount(t, store, usd, 5000)
	payeeWallet, _ := newFundedAccount(t, store, usd, 0)

	service := mustNewService(t, store)
	identity := identityWithScopes(mustAPIKeyID(t, "key-1"), payerWallet, ScopeHold, ScopeCapture, ScopeRead)
	amount := mustPositiveAmount(t, 2000)

	hold, err := service.HoldCreate(context.Background(), identity, payerWallet, usd, amount, time.Time{}, IdempotencyKey{}, "")
	if err != nil {
		t.Fatalf("hold create: %v", err)
	}

	entry, remaining, err := service.HoldCapture(context.Background(), identity, hold.HoldID, payeeWallet.String(), money.Zero, IdempotencyKey{}, "")
	if err != nil {
		t.Fatalf("hold capture: %v", err)
	}
	if entry.Kind != EntryKindCapture {
		t.Fatalf("expected capture entry, got %s", entry.Kind)
	}
	if !remaining.IsZero() {
		t.Fatalf("expected remaining 0 after a full capture, got %d", remaining.Int64())
	}

	payeeBalance, err := service.Balance(context.Background(), identity, payeeWallet, usd)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if payeeBalance.Available.Int64() != 2000 {
		t.Fatalf("expected payee available 2000, got %d", payeeBalance.Available.Int64())
	}

	payerBalance, err := service.Balance(context.Background(), identity, payerWallet, usd)
	if err != nil {
		t.Fatalf("payer balance: %v", err)
	}
	if payerBalance.Held.Int64() != 0 {
		t.Fatalf("expected payer held 0 after full capture, got %d", payerBalance.Held.Int64())
	}
}

func TestHoldCapturePartial(t *testing.T) {
	t.Parallel()
	store := newStubStore()
	usd := mustCurrency(t, "USD")
	payerWallet, _ := newFundedAccount(t, store, usd, 5000)
	payeeWallet, _ := newFundedAccount(t, store, usd, 0)

	service := mustNewService(t, store)
	identity := identityWithScopes(mustAPIKeyID(t, "key-1"), payerWallet, ScopeHold, ScopeCapture, ScopeRead)
	amount := mustPositiveAmount(t, 2000)

	hold, err := service.HoldCreate(context.Background(), identity, payerWallet, usd, amount, time.Time{}, IdempotencyKey{}, "")
	if err != nil {
		t.Fatalf("hold create: %v", err)
	}

	partial := mustPositiveAmount(t, 700)
	_, remaining, err := service.HoldCapture(context.Background(), identity, hold.HoldID, payeeWallet.String(), partial, IdempotencyKey{}, "")
	if err != nil {
		t.Fatalf("hold capture: %v", err)
	}
	if remaining.Int64() != 1300 {
		t.Fatalf("expected remaining 1300 after a partial capture, got %d", remaining.Int64())
	}

	payerBalance, err := service.Balance(context.Background(), identity, payerWallet, usd)
	if err != nil {
		t.Fatalf("payer balance: %v", err)
	}
	if payerBalance.Held.Int64() != 1300 {
		t.Fatalf("expected payer held 1300 after partial capture, got %d", payerBalance.Held.Int64())
	}
}

func TestHoldCaptureExceedsRemaining(t *testing.T) {
	t.Parallel()
	store := newStubStore()
	usd := mustCurrency(t, "USD")
	payerWallet, _ := newFundedAccount(t, store, usd, 5000)
	payeeWallet, _ := newFundedAccount(t, store, usd, 0)

	service := mustNewService(t, store)
	identity := identityWithScopes(mustAPIKeyID(t, "key-1"), payerWallet, ScopeHold, ScopeCapture)
	amount := mustPositiveAmount(t, 2000)

	hold, err := service.HoldCreate(context.Background(), identity, payerWallet, usd, amount, time.Time{}, IdempotencyKey{}, "")
	if err != nil {
		t.Fatalf("hold create: %v", err)
	}

	over := mustPositiveAmount(t, 2001)
	_, _, err = service.HoldCapture(context.Background(), identity, hold.HoldID, payeeWallet.String(), over, IdempotencyKey{}, "")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestHoldCaptureExpiredHold(t *testing.T) {
	t.Parallel()
	store := newStubStore()
	usd := mustCurrency(t, "USD")
	payerWallet, _ := newFundedAccount(t, store, usd, 5000)
	payeeWallet, _ := newFundedAccount(t, store, usd, 0)

	service := mustNewService(t, store)
	identity := identityWithScopes(mustAPIKeyID(t, "key-1"), payerWallet, ScopeHold, ScopeCapture)
	amount := mustPositiveAmount(t, 2000)

	expiresAt := time.Unix(1_700_000_000, 0).UTC().Add(-time.Hour)
	hold, err := service.HoldCreate(context.Background(), identity, payerWallet, usd, amount, expiresAt, IdempotencyKey{}, "")
	if err != nil {
		t.Fatalf("hold create: %v", err)
	}

	_, _, err = service.HoldCapture(context.Background(), identity, hold.HoldID, payeeWallet.String(), money.Zero, IdempotencyKey{}, "")
	if !errors.Is(err, ErrHoldExpired) {
		t.Fatalf("expected ErrHoldExpired, got %v", err)
	}
}

func TestHoldReleaseReturnsRemainderToAvailable(t *testing.T) {
	t.Parallel()
	store := newStubStore()
	usd := mustCurrency(t, "USD")
	payerWallet, _ := newFundedAccount(t, store, usd, 5000)

	service := mustNewService(t, store)
	identity := identityWithScopes(mustAPIKeyID(t, "key-1"), payerWallet, ScopeHold, ScopeRead)
	amount := mustPositiveAmount(t, 2000)

	hold, err := service.HoldCreate(context.Background(), identity, payerWallet, usd, amount, time.Time{}, IdempotencyKey{}, "")
	if err != nil {
		t.Fatalf("hold create: %v", err)
	}

	entry, err := service.HoldRelease(context.Background(), identity, hold.HoldID, IdempotencyKey{}, "")
	if err != nil {
		t.Fatalf("hold release: %v", err)
	}
	if entry.Kind != EntryKindRelease {
		t.Fatalf("expected release entry, got %s", entry.Kind)
	}

	balance, err := service.Balance(context.Background(), identity, payerWallet, usd)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Available.Int64() != 5000 {
		t.Fatalf("expected available restored to 5000, got %d", balance.Available.Int64())
	}
	if balance.Held.Int64() != 0 {
		t.Fatalf("expected held 0, got %d", balance.Held.Int64())
	}
}

func TestHoldReleaseOnAlreadyReleasedHold(t *testing.T) {
	t.Parallel()
	store := newStubStore()
	usd := mustCurrency(t, "USD")
	payerWallet, _ := newFundedAccount(t, store, usd, 5000)

	service := mustNewService(t, store)
	identity := identityWithScopes(mustAPIKeyID(t, "key-1"), payerWallet, ScopeHold)
	amount := mustPositiveAmount(t, 2000)

	hold, err := service.HoldCreate(context.Background(), identity, payerWallet, usd, amount, time.Time{}, IdempotencyKey{}, "")
	if err != nil {
		t.Fatalf("hold create: %v", err)
	}
	if _, err := service.HoldRelease(context.Background(), identity, hold.HoldID, IdempotencyKey{}, ""); err != nil {
		t.Fatalf("first release: %v", err)
	}

	_, err = service.HoldRelease(context.Background(), identity, hold.HoldID, IdempotencyKey{}, "")
	if !errors.Is(err, ErrHoldNotActive) {
		t.Fatalf("expected ErrHoldNotActive, got %v", err)
	}
}

func TestHoldReleaseUnknownHold(t *testing.T) {
	t.Parallel()
	store := newStubStore()
	usd := mustCurrency(t, "USD")
	payerWallet, _ := newFundedAccount(t, store, usd, 5000)

	service := mustNewService(t, store)
	identity := identityWithScopes(mustAPIKeyID(t, "key-1"), payerWallet, ScopeHold)

	_, err := service.HoldRelease(context.Background(), identity, mustHoldID(t, "no-such-hold"), IdempotencyKey{}, "")
	if !errors.Is(err, ErrHoldNotActive) {
		t.Fatalf("expected ErrHoldNotActive, got %v", err)
	}
}
