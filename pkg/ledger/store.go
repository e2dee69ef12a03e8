package ledger

import (
	"context"
	"time"

	"github.com/coreledger/wallet-ledger/pkg/money"
)

// Store is the persistence contract the core depends on. Callers never
// issue SQL directly; the core uses only these operations. All
// methods that mutate state must be called on the Store handed to the
// fn passed to WithTx, so that every effect of an operation commits or
// rolls back atomically together.
type Store interface {
	// WithTx runs fn inside a store transaction with isolation at least
	// read-committed. If fn returns a non-nil error the transaction is
	// rolled back and that error is returned; otherwise the transaction
	// is committed. Implementations MUST translate serialization
	// conflicts detected at commit time into ErrTransientConflict.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error

	// LockAccount acquires an exclusive row lock on the account, blocking
	// concurrent lockers until the enclosing transaction commits or rolls
	// back. Must only be called inside WithTx.
	LockAccount(ctx context.Context, accountID AccountID) (Account, error)

	// GetAccount reads an account without locking it.
	GetAccount(ctx context.Context, accountID AccountID) (Account, error)

	// GetAccountByWalletCurrency resolves the account for a wallet in a
	// given currency.
	GetAccountByWalletCurrency(ctx context.Context, walletID WalletID, currency money.Currency) (Account, error)

	// GetWalletByHandle resolves a wallet by its unique "@handle".
	GetWalletByHandle(ctx context.Context, handle string) (Wallet, error)

	// GetWalletByExternalRef resolves a wallet by an "ext:" external
	// identifier.
	GetWalletByExternalRef(ctx context.Context, externalRef string) (Wallet, error)

	// CreateWallet inserts a new wallet row.
	CreateWallet(ctx context.Context, wallet Wallet) error

	// SetWalletHandle assigns or replaces a wallet's unique "@handle".
	// Rejects with ErrValidation if the handle is already taken.
	SetWalletHandle(ctx context.Context, walletID WalletID, handle string) error

	// CreateAccount inserts a new (wallet, currency) account row.
	CreateAccount(ctx context.Context, account Account) error

	// UpdateAccountStatus flips an account between ACTIVE and FROZEN.
	UpdateAccountStatus(ctx context.Context, accountID AccountID, status AccountStatus) error

	// SumBuckets computes (available, held) from journal lines visible
	// inside the current transaction (including lines written earlier in
	// the same transaction).
	SumBuckets(ctx context.Context, accountID AccountID) (available, held money.Amount, err error)

	// InsertEntry atomically inserts a journal entry and its lines. It
	// does not check that the entry balances; the Service runs
	// verifyBalanced on every entry before calling it.
	InsertEntry(ctx context.Context, entry JournalEntry) error

	// GetEntry fetches a previously inserted journal entry by id.
	GetEntry(ctx context.Context, entryID EntryID) (JournalEntry, error)

	// ListEntries returns a newest-first page of entries touching
	// accountID, strictly older than the cursor (zero time = unbounded).
	ListEntries(ctx context.Context, accountID AccountID, before time.Time, limit int) ([]JournalEntry, error)

	// SumCommittedDebits sums an initiator wallet's committed outgoing
	// debit amounts within [since, now) for spend-ceiling enforcement.
	SumCommittedDebits(ctx context.Context, walletID WalletID, since time.Time) (money.Amount, error)

	// PutHold creates a new hold row.
	PutHold(ctx context.Context, hold Hold) error

	// GetHold locks and returns a hold row for mutation.
	GetHold(ctx context.Context, holdID HoldID) (Hold, error)

	// UpdateHold persists a hold's mutable fields (status, remaining).
	UpdateHold(ctx context.Context, hold Hold) error

	// PutIntent creates a new payment-intent row.
	PutIntent(ctx context.Context, intent PaymentIntent) error

	// GetIntent locks and returns a payment-intent row for mutation.
	GetIntent(ctx context.Context, intentID IntentID) (PaymentIntent, error)

	// UpdateIntent persists a payment-intent's mutable fields.
	UpdateIntent(ctx context.Context, intent PaymentIntent) error

	// PutRefund creates a new refund row.
	PutRefund(ctx context.Context, refund Refund) error

	// GetRefund fetches a previously inserted refund by id.
	GetRefund(ctx context.Context, refundID RefundID) (Refund, error)

	// SumRefundsForCapture sums amounts already refunded against a
	// capture entry.
	SumRefundsForCapture(ctx context.Context, captureEntryID EntryID) (money.Amount, error)

	// IdempotencyReserve atomically reserves (apiKeyID, key) for a new
	// operation. See reserveIdempotencyKey in idempotency.go for the outcome
	// semantics.
	IdempotencyReserve(ctx context.Context, apiKeyID APIKeyID, key IdempotencyKey, fingerprint string) (IdempotencyReservation, error)

	// IdempotencyComplete stores the final response snapshot for a
	// reserved key and marks it COMPLETED or FAILED. Must be called in
	// the same transaction as the operation it guards.
	IdempotencyComplete(ctx context.Context, apiKeyID APIKeyID, key IdempotencyKey, status IdempotencyStatus, snapshot []byte) error
}

// IdempotencyReservation is the outcome of IdempotencyReserve.
type IdempotencyReservation struct {
	Outcome  IdempotencyOutcome
	Snapshot []byte // populated only when Outcome == IdempotencyOutcomeReplay
}

// IdempotencyOutcome enumerates the four outcomes of a reserve attempt.
type IdempotencyOutcome int

const (
	IdempotencyOutcomeFresh IdempotencyOutcome = iota
	IdempotencyOutcomeReplay
	// IdempotencyOutcomeConflictInProgress: same key and fingerprint, but
	// the prior attempt has not yet completed.
	IdempotencyOutcomeConflictInProgress
	// IdempotencyOutcomeConflictMismatch: same key, different fingerprint.
	IdempotencyOutcomeConflictMismatch
)
