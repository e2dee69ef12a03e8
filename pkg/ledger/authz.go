package ledger

import (
	"context"
	"time"

	"github.com/coreledger/wallet-ledger/pkg/money"
)

// Scope names one capability a caller identity may exercise.
type Scope string

const (
	ScopeRead         Scope = "READ"
	ScopeTransfer     Scope = "TRANSFER"
	ScopeHold         Scope = "HOLD"
	ScopeCapture      Scope = "CAPTURE"
	ScopeRefund       Scope = "REFUND"
	ScopeIntentCreate Scope = "INTENT_CREATE"
	ScopeIntentPay    Scope = "INTENT_PAY"
	ScopeAdmin        Scope = "ADMIN"
)

// CallerIdentity is the authenticated principal behind a request,
// resolved by the adapter (e.g. from an API key or bearer token) and
// passed into every Service operation.
type CallerIdentity struct {
	APIKeyID APIKeyID
	WalletID WalletID
	Scopes   map[Scope]bool
	// SpendCeiling is the maximum sum of committed outgoing debits this
	// identity may accrue within the rolling window; zero means no ceiling.
	SpendCeiling money.Amount
}

// HasScope reports whether the identity carries the given scope.
func (c CallerIdentity) HasScope(scope Scope) bool {
	return c.Scopes[scope]
}

// authorize checks that the caller's scope covers the operation, and —
// for operations that debit a wallet — that the rolling sum of that
// wallet's committed outgoing debits plus this operation's amount does
// not exceed the identity's spend ceiling. The spend check is evaluated
// against store state visible inside tx, so it is race-free with any
// concurrently committing debit on the same wallet as long as the caller
// evaluates it after locking the payer account.
func authorize(ctx context.Context, tx Store, identity CallerIdentity, required Scope, debitWalletID WalletID, amount money.Amount, windowSeconds int64, now time.Time) error {
	if !identity.HasScope(required) {
		return ErrForbiddenScope
	}
	if identity.SpendCeiling.IsZero() || debitWalletID.IsZero() {
		return nil
	}
	since := now.Add(-time.Duration(windowSeconds) * time.Second)
	committed, err := tx.SumCommittedDebits(ctx, debitWalletID, since)
	if err != nil {
		return WrapError("authorize", "spend_ceiling", "store_error", err)
	}
	projected, err := money.Add(committed, amount)
	if err != nil {
		return WrapError("authorize", "spend_ceiling", "arithmetic", ErrArithmeticError)
	}
	if money.Compare(projected, identity.SpendCeiling) > 0 {
		return ErrLimitExceeded
	}
	return nil
}
