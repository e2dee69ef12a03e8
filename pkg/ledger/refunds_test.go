package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/coreledger/wallet-ledger/pkg/money"
)

func captureForRefund(t *testing.T, store *stubStore, service *Service, payerWallet, payeeWallet WalletID, amount money.Amount) JournalEntry {
	t.Helper()
	identity := identityWithScopes(mustAPIKeyID(t, "setup-key"), payerWallet, ScopeHold, ScopeCapture)
	usd := mustCurrency(t, "USD")
	hold, err := service.HoldCreate(context.Background(), identity, payerWallet, usd, amount, time.Time{}, IdempotencyKey{}, "")
	if err != nil {
		t.Fatalf("hold create: %v", err)
	}
	entry, _, err := service.HoldCapture(context.Background(), identity, hold.HoldID, payeeWallet.String(), money.Zero, IdempotencyKey{}, "")
	if err != nil {
		t.Fatalf("hold capture: %v", err)
	}
	return entry
}

func TestRefundFull(t *testing.T) {
	t.Parallel()
	store := newStubStore()
	usd := mustCurrency(t, "USD")
	payerWallet, _ := newFundedAccount(t, store, usd, 5000)
	payeeWallet, _ := newFundedAccount(t, store, usd, 0)

	service := mustNewService(t, store)
	amount := mustPositiveAmount(t, 2000)
	capture := captureForRefund(t, store, service, payerWallet, payeeWallet, amount)

	identity := identityWithScopes(mustAPIKeyID(t, "payee-key"), payeeWallet, ScopeRefund, ScopeRead)
	refund, err := service.Refund(context.Background(), identity, capture.EntryID, money.Zero, IdempotencyKey{}, "")
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if refund.Status != RefundStatusPosted {
		t.Fatalf("expected posted refund, got %s", refund.Status)
	}

	payerBalance, err := service.Balance(context.Background(), identity, payerWallet, usd)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if payerBalance.Available.Int64() != 5000 {
		t.Fatalf("expected payer available restored to 5000, got %d", payerBalance.Available.Int64())
	}
}

func TestRefundPartial(t *testing.T) {
	t.Parallel()
	store := newStubStore()
	usd := mustCurrency(t, "USD")
	payerWallet, _ := newFundedAccount(t, store, usd, 5000)
	payeeWallet, _ := newFundedAccount(t, store, usd, 0)

	service := mustNewService(t, store)
	amount := mustPositiveAmount(t, 2000)
	capture := captureForRefund(t, store, service, payerWallet, payeeWallet, amount)

	identity := identityWithScopes(mustAPIKeyID(t, "payee-key"), payeeWallet, ScopeRefund, ScopeRead)
	partial := mustPositiveAmount(t, 500)
	if _, err := service.Refund(context.Background(), identity, capture.EntryID, partial, IdempotencyKey{}, ""); err != nil {
		t.Fatalf("refund: %v", err)
	}

	payerBalance, err := service.Balance(context.Background(), identity, payerWallet, usd)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if payerBalance.Available.Int64() != 3500 {
		t.Fatalf("expected payer available 3500, got %d", payerBalance.Available.Int64())
	}
}

func TestRefundExceedsCapture(t *testing.T) {
	t.Parallel()
	store := newStubStore()
	usd := mustCurrency(t, "USD")
	payerWallet, _ := newFundedAccount(t, store, usd, 5000)
	payeeWallet, _ := newFundedAccount(t, store, usd, 0)

	service := mustNewService(t, store)
	amount := mustPositiveAmount(t, 2000)
	capture := captureForRefund(t, store, service, payerWallet, payeeWallet, amount)

	identity := identityWithScopes(mustAPIKeyID(t, "payee-key"), payeeWallet, ScopeRefund)
	over := mustPositiveAmount(t, 2500)
	_, err := service.Refund(context.Background(), identity, capture.EntryID, over, IdempotencyKey{}, "")
	if !errors.Is(err, ErrRefundExceedsCapture) {
		t.Fatalf("expected ErrRefundExceedsCapture, got %v", err)
	}
}

func TestRefundSecondExceedsRemaining(t *testing.T) {
	t.Parallel()
	store := newStubStore()
	usd := mustCurrency(t, "USD")
	payerWallet, _ := newFundedAccount(t, store, usd, 5000)
	payeeWallet, _ := newFundedAccount(t, store, usd, 0)

	service := mustNewService(t, store)
	amount := mustPositiveAmount(t, 2000)
	capture := captureForRefund(t, store, service, payerWallet, payeeWallet, amount)

	identity := identityWithScopes(mustAPIKeyID(t, "payee-key"), payeeWallet, ScopeRefund)
	first := mustPositiveAmount(t, 1500)
	if _, err := service.Refund(context.Background(), identity, capture.EntryID, first, IdempotencyKey{}, ""); err != nil {
		t.Fatalf("first refund: %v", err)
	}

	second := mustPositiveAmount(t, 600)
	_, err := service.Refund(context.Background(), identity, capture.EntryID, second, IdempotencyKey{}, "")
	if !errors.Is(err, ErrRefundExceedsCapture) {
		t.Fatalf("expected ErrRefundExceedsCapture on second refund, got %v", err)
	}
}

func TestRefundCaptureNotFound(t *testing.T) {
	t.Parallel()
	store := newStubStore()
	usd := mustCurrency(t, "USD")
	payeeWallet, _ := newFundedAccount(t, store, usd, 5000)

	service := mustNewService(t, store)
	identity := identityWithScopes(mustAPIKeyID(t, "payee-key"), payeeWallet, ScopeRefund)

	_, err := service.Refund(context.Background(), identity, mustEntryID(t, "no-such-entry"), money.Zero, IdempotencyKey{}, "")
	if !errors.Is(err, ErrCaptureNotFound) {
		t.Fatalf("expected ErrCaptureNotFound, got %v", err)
	}
}

func TestRefundRejectsNonCaptureEntry(t *testing.T) {
	t.Parallel()
	store := newStubStore()
	usd := mustCurrency(t, "USD")
	payerWallet, _ := newFundedAccount(t, store, usd, 5000)
	payeeWallet, _ := newFundedAccount(t, store, usd, 0)

	service := mustNewService(t, store)
	transferIdentity := identityWithScopes(mustAPIKeyID(t, "payer-key"), payerWallet, ScopeTransfer)
	amount := mustPositiveAmount(t, 1000)
	entry, err := service.Transfer(context.Background(), transferIdentity, payerWallet, usd, payeeWallet.String(), amount, "", nil, IdempotencyKey{}, "")
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}

	refundIdentity := identityWithScopes(mustAPIKeyID(t, "payee-key"), payeeWallet, ScopeRefund)
	_, err = service.Refund(context.Background(), refundIdentity, entry.EntryID, money.Zero, IdempotencyKey{}, "")
	if !errors.Is(err, ErrCaptureNotFound) {
		t.Fatalf("expected ErrCaptureNotFound for a non-capture entry, got %v", err)
	}
}
