package gormstore

import (
	"time"

	"gorm.io/datatypes"
)

// Wallet mirrors the wallets table.
type Wallet struct {
	WalletID    string `gorm:"primaryKey"`
	Handle      string `gorm:"uniqueIndex"`
	ExternalRef string `gorm:"uniqueIndex"`
	DisplayName string `gorm:"not null;default:''"`
	CreatedAt   time.Time
}

func (Wallet) TableName() string { return "wallets" }

// Account mirrors the accounts table, one row per (wallet, currency).
type Account struct {
	AccountID string `gorm:"primaryKey"`
	WalletID  string `gorm:"not null;index:idx_accounts_wallet_currency,unique,priority:1"`
	Currency  string `gorm:"not null;index:idx_accounts_wallet_currency,unique,priority:2"`
	Type      string `gorm:"not null"`
	Status    string `gorm:"not null"`
	CreatedAt time.Time
}

func (Account) TableName() string { return "accounts" }

// JournalEntry mirrors the journal_entries table.
type JournalEntry struct {
	EntryID           string `gorm:"primaryKey"`
	Kind              string `gorm:"not null"`
	InitiatorWalletID string `gorm:"not null;index:idx_entries_initiator,priority:1"`
	Currency          string `gorm:"not null"`
	ReferenceID       string `gorm:"not null;default:''"`
	Metadata          datatypes.JSON
	IdempotencyKey    string    `gorm:"not null;default:''"`
	LinkedEntryID     string    `gorm:"not null;default:'';index"`
	CreatedAt         time.Time `gorm:"index:idx_entries_initiator,priority:2"`
}

func (JournalEntry) TableName() string { return "journal_entries" }

// JournalLine mirrors the journal_lines table.
type JournalLine struct {
	LineID      string `gorm:"primaryKey"`
	EntryID     string `gorm:"not null;index"`
	AccountID   string `gorm:"not null;index:idx_lines_account_bucket,priority:1"`
	Side        string `gorm:"not null"`
	AmountMinor int64  `gorm:"not null"`
	Bucket      string `gorm:"not null;index:idx_lines_account_bucket,priority:2"`
}

func (JournalLine) TableName() string { return "journal_lines" }

// Hold mirrors the holds table.
type Hold struct {
	HoldID          string `gorm:"primaryKey"`
	PayerAccountID  string `gorm:"not null"`
	Currency        string `gorm:"not null"`
	AmountMinor     int64  `gorm:"not null"`
	RemainingMinor  int64  `gorm:"not null"`
	Status          string `gorm:"not null"`
	ExpiresAt       *time.Time
	CreatedAt       time.Time
	CreatingEntryID string `gorm:"not null"`
}

func (Hold) TableName() string { return "holds" }

// PaymentIntent mirrors the payment_intents table.
type PaymentIntent struct {
	IntentID        string `gorm:"primaryKey"`
	PayeeAccountID  string `gorm:"not null"`
	Currency        string `gorm:"not null"`
	AmountMinor     int64  `gorm:"not null"`
	Status          string `gorm:"not null"`
	ExpiresAt       *time.Time
	Metadata        datatypes.JSON
	PaidEntryID     string `gorm:"not null;default:''"`
	CreatorWalletID string `gorm:"not null"`
	CreatedAt       time.Time
}

func (PaymentIntent) TableName() string { return "payment_intents" }

// Refund mirrors the refunds table.
type Refund struct {
	RefundID        string `gorm:"primaryKey"`
	CaptureEntryID  string `gorm:"not null;index"`
	AmountMinor     int64  `gorm:"not null"`
	Status          string `gorm:"not null"`
	CreatingEntryID string `gorm:"not null"`
	CreatedAt       time.Time
}

func (Refund) TableName() string { return "refunds" }

// IdempotencyRecord mirrors the idempotency_records table.
type IdempotencyRecord struct {
	APIKeyID       string `gorm:"primaryKey"`
	IdempotencyKey string `gorm:"primaryKey"`
	Status         string `gorm:"not null"`
	Fingerprint    string `gorm:"not null"`
	Snapshot       []byte
	CreatedAt      time.Time
}

func (IdempotencyRecord) TableName() string { return "idempotency_records" }
