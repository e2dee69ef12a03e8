package ledger

import (
	"time"

	"github.com/coreledger/wallet-ledger/pkg/money"
)

// AccountType distinguishes user-owned accounts from system accounts
// (e.g. a platform fee sink or a store's settlement account).
type AccountType string

const (
	AccountTypeUser   AccountType = "USER"
	AccountTypeSystem AccountType = "SYSTEM"
)

// AccountStatus gates whether an account may participate in new postings.
type AccountStatus string

const (
	AccountStatusActive AccountStatus = "ACTIVE"
	AccountStatusFrozen AccountStatus = "FROZEN"
)

// Account is one ledger row owning a balance for a single (wallet, currency)
// pair. Balances are never stored on Account; they are always derived from
// journal lines by the Balance Calculator.
type Account struct {
	AccountID AccountID
	WalletID  WalletID
	Currency  money.Currency
	Type      AccountType
	Status    AccountStatus
	CreatedAt time.Time
}

// Wallet is the owner-level record. A wallet may own multiple accounts,
// one per currency.
type Wallet struct {
	WalletID    WalletID
	Handle      string // normalized without leading "@"; empty if unset
	DisplayName string
	CreatedAt   time.Time
}

// EntryKind enumerates journal entry kinds.
type EntryKind string

const (
	EntryKindTransfer  EntryKind = "TRANSFER"
	EntryKindHold      EntryKind = "HOLD"
	EntryKindCapture   EntryKind = "CAPTURE"
	EntryKindRelease   EntryKind = "RELEASE"
	EntryKindRefund    EntryKind = "REFUND"
	EntryKindIntentPay EntryKind = "INTENT_PAY"
)

// LineSide is the debit/credit side of a journal line.
type LineSide string

const (
	SideDebit  LineSide = "DEBIT"
	SideCredit LineSide = "CREDIT"
)

// Bucket is the balance bucket a line moves money into or out of.
type Bucket string

const (
	BucketAvailable Bucket = "AVAILABLE"
	BucketHeld      Bucket = "HELD"
)

// JournalLine belongs to exactly one JournalEntry. Amount is always a
// strictly positive integer in the entry's currency minor unit.
type JournalLine struct {
	LineID    string
	EntryID   EntryID
	AccountID AccountID
	Side      LineSide
	Amount    money.Amount
	Bucket    Bucket
}

// JournalEntry is an atomic, balanced set of journal lines. verifyBalanced
// rejects an entry whose debit and credit sums differ before it reaches
// Store.InsertEntry; the stores do not re-check it.
type JournalEntry struct {
	EntryID        EntryID
	Kind           EntryKind
	InitiatorID    WalletID
	Currency       money.Currency
	ReferenceID    string // optional client-supplied reference, may be empty
	Metadata       map[string]any
	IdempotencyKey IdempotencyKey // zero value if none
	LinkedEntryID  EntryID        // zero value if none (capture->hold, refund->capture)
	CreatedAt      time.Time
	Lines          []JournalLine
}

// HoldStatus is the lifecycle state of a Hold.
type HoldStatus string

const (
	HoldStatusActive            HoldStatus = "ACTIVE"
	HoldStatusCaptured          HoldStatus = "CAPTURED"
	HoldStatusPartiallyCaptured HoldStatus = "PARTIALLY_CAPTURED"
	HoldStatusReleased          HoldStatus = "RELEASED"
	HoldStatusExpired           HoldStatus = "EXPIRED"
)

// IsTerminal reports whether the hold can no longer be captured or released.
func (s HoldStatus) IsTerminal() bool {
	return s == HoldStatusCaptured || s == HoldStatusReleased || s == HoldStatusExpired
}

// IsOpen reports whether the hold may still be captured or released.
func (s HoldStatus) IsOpen() bool {
	return s == HoldStatusActive || s == HoldStatusPartiallyCaptured
}

// Hold is a reservation debiting a payer's available bucket and crediting
// its held bucket, later captured (in whole or in part) or released.
type Hold struct {
	HoldID        HoldID
	PayerAccount  AccountID
	Currency      money.Currency
	Amount        money.Amount // original amount
	Remaining     money.Amount
	Status        HoldStatus
	ExpiresAt     time.Time
	CreatedAt     time.Time
	CreatingEntry EntryID
}

// IntentStatus is the lifecycle state of a PaymentIntent.
type IntentStatus string

const (
	IntentStatusPending   IntentStatus = "PENDING"
	IntentStatusPaid      IntentStatus = "PAID"
	IntentStatusExpired   IntentStatus = "EXPIRED"
	IntentStatusCancelled IntentStatus = "CANCELLED"
)

// PaymentIntent is a payee-initiated request that a specific payer must
// complete.
type PaymentIntent struct {
	IntentID    IntentID
	PayeeID     AccountID
	Currency    money.Currency
	Amount      money.Amount
	Status      IntentStatus
	ExpiresAt   time.Time
	Metadata    map[string]any
	PaidEntryID EntryID // zero value until PAID
	CreatorID   WalletID
	CreatedAt   time.Time
}

// RefundStatus is the terminal outcome of a refund attempt.
type RefundStatus string

const (
	RefundStatusPosted RefundStatus = "POSTED"
	RefundStatusFailed RefundStatus = "FAILED"
)

// Refund links back to the capture entry it reverses, in whole or in part.
type Refund struct {
	RefundID      RefundID
	CaptureEntry  EntryID
	Amount        money.Amount
	Status        RefundStatus
	CreatingEntry EntryID
	CreatedAt     time.Time
}

// IdempotencyStatus tracks the lifecycle of an idempotency reservation.
type IdempotencyStatus string

const (
	IdempotencyStatusInFlight  IdempotencyStatus = "IN_FLIGHT"
	IdempotencyStatusCompleted IdempotencyStatus = "COMPLETED"
	IdempotencyStatusFailed    IdempotencyStatus = "FAILED"
)

// IdempotencyRecord is scoped by (APIKeyID, IdempotencyKey). Once
// COMPLETED or FAILED it is immutable; a retry with the same key and
// fingerprint replays Snapshot verbatim.
type IdempotencyRecord struct {
	APIKeyID    APIKeyID
	Key         IdempotencyKey
	Status      IdempotencyStatus
	Fingerprint string // hash of the canonical request body
	Snapshot    []byte // the operation's result id, or failedReplaySnapshot for FAILED, once final
	CreatedAt   time.Time
}

// Balance is the derived view of an account's buckets.
type Balance struct {
	Available money.Amount
	Held      money.Amount
	Total     money.Amount
	Currency  money.Currency
}
