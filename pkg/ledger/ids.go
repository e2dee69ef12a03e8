package ledger

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// WalletID identifies an owner-level wallet record.
type WalletID struct{ value string }

// AccountID identifies a single (wallet, currency) ledger account.
type AccountID struct{ value string }

// EntryID identifies a journal entry.
type EntryID struct{ value string }

// HoldID identifies a hold.
type HoldID struct{ value string }

// IntentID identifies a payment intent.
type IntentID struct{ value string }

// RefundID identifies a refund.
type RefundID struct{ value string }

// APIKeyID identifies the caller identity that scopes idempotency keys
// and authorization limits.
type APIKeyID struct{ value string }

// IdempotencyKey scopes duplicate-request detection within an APIKeyID.
type IdempotencyKey struct{ value string }

func newTrimmedID(raw string, errInvalid error) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", errInvalid
	}
	return trimmed, nil
}

// NewWalletID validates and normalizes a wallet id.
func NewWalletID(raw string) (WalletID, error) {
	v, err := newTrimmedID(raw, ErrInvalidWalletID)
	if err != nil {
		return WalletID{}, err
	}
	return WalletID{value: v}, nil
}

// NewAccountID validates and normalizes an account id.
func NewAccountID(raw string) (AccountID, error) {
	v, err := newTrimmedID(raw, ErrInvalidAccountID)
	if err != nil {
		return AccountID{}, err
	}
	return AccountID{value: v}, nil
}

// NewEntryID validates and normalizes an entry id.
func NewEntryID(raw string) (EntryID, error) {
	v, err := newTrimmedID(raw, ErrInvalidEntryID)
	if err != nil {
		return EntryID{}, err
	}
	return EntryID{value: v}, nil
}

// NewHoldID validates and normalizes a hold id.
func NewHoldID(raw string) (HoldID, error) {
	v, err := newTrimmedID(raw, ErrInvalidHoldID)
	if err != nil {
		return HoldID{}, err
	}
	return HoldID{value: v}, nil
}

// NewIntentID validates and normalizes a payment-intent id.
func NewIntentID(raw string) (IntentID, error) {
	v, err := newTrimmedID(raw, ErrInvalidIntentID)
	if err != nil {
		return IntentID{}, err
	}
	return IntentID{value: v}, nil
}

// NewRefundID validates and normalizes a refund id.
func NewRefundID(raw string) (RefundID, error) {
	v, err := newTrimmedID(raw, ErrInvalidRefundID)
	if err != nil {
		return RefundID{}, err
	}
	return RefundID{value: v}, nil
}

// NewAPIKeyID validates and normalizes a caller api-key id.
func NewAPIKeyID(raw string) (APIKeyID, error) {
	v, err := newTrimmedID(raw, ErrInvalidAPIKeyID)
	if err != nil {
		return APIKeyID{}, err
	}
	return APIKeyID{value: v}, nil
}

// NewIdempotencyKey validates and normalizes a client idempotency key.
func NewIdempotencyKey(raw string) (IdempotencyKey, error) {
	v, err := newTrimmedID(raw, ErrInvalidIdempotencyKey)
	if err != nil {
		return IdempotencyKey{}, err
	}
	if len(v) > 255 {
		return IdempotencyKey{}, fmt.Errorf("%w: exceeds 255 bytes", ErrInvalidIdempotencyKey)
	}
	return IdempotencyKey{value: v}, nil
}

// NewGeneratedEntryID mints a fresh random entry id.
func NewGeneratedEntryID() EntryID { return EntryID{value: uuid.NewString()} }

// NewGeneratedHoldID mints a fresh random hold id.
func NewGeneratedHoldID() HoldID { return HoldID{value: uuid.NewString()} }

// NewGeneratedIntentID mints a fresh random payment-intent id.
func NewGeneratedIntentID() IntentID { return IntentID{value: uuid.NewString()} }

// NewGeneratedRefundID mints a fresh random refund id.
func NewGeneratedRefundID() RefundID { return RefundID{value: uuid.NewString()} }

// NewGeneratedAccountID mints a fresh random account id.
func NewGeneratedAccountID() AccountID { return AccountID{value: uuid.NewString()} }

// NewGeneratedWalletID mints a fresh random wallet id.
func NewGeneratedWalletID() WalletID { return WalletID{value: uuid.NewString()} }

func (id WalletID) String() string       { return id.value }
func (id AccountID) String() string      { return id.value }
func (id EntryID) String() string        { return id.value }
func (id HoldID) String() string         { return id.value }
func (id IntentID) String() string       { return id.value }
func (id RefundID) String() string       { return id.value }
func (id APIKeyID) String() string       { return id.value }
func (id IdempotencyKey) String() string { return id.value }

func (id WalletID) IsZero() bool       { return id.value == "" }
func (id AccountID) IsZero() bool      { return id.value == "" }
func (id EntryID) IsZero() bool        { return id.value == "" }
func (id HoldID) IsZero() bool         { return id.value == "" }
func (id IntentID) IsZero() bool       { return id.value == "" }
func (id RefundID) IsZero() bool       { return id.value == "" }
func (id APIKeyID) IsZero() bool       { return id.value == "" }
func (id IdempotencyKey) IsZero() bool { return id.value == "" }
