// Package gormstore implements ledger.Store on top of GORM, so the same
// core can run embedded against sqlite (tests, ledgerctl one-shots) or
// against postgres without a pgx dependency.
package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/coreledger/wallet-ledger/pkg/ledger"
	"github.com/coreledger/wallet-ledger/pkg/money"
)

const (
	constraintIdempotencyPrimary = "idempotency_records_pkey"
	pgUniqueViolationCode        = "23505"
	sqliteConstraintCode         = 19

	errorOperationStore = "store"
	errorSubjectAccount = "account"
	errorSubjectWallet  = "wallet"
	errorSubjectBalance = "balance"
	errorSubjectEntry   = "entry"
	errorSubjectHold    = "hold"
	errorSubjectIntent  = "intent"
	errorSubjectRefund  = "refund"
	errorSubjectIdemp   = "idempotency"

	errorCodeGet      = "get"
	errorCodeInsert   = "insert"
	errorCodeInvalid  = "invalid"
	errorCodeList     = "list"
	errorCodeLock     = "lock"
	errorCodeSum      = "sum"
	errorCodeUpdate   = "update"
	errorCodeReserve  = "reserve"
	errorCodeComplete = "complete"
)

// Store implements ledger.Store using GORM.
type Store struct {
	db *gorm.DB
}

// New returns a Store backed by db.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx ledger.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &Store{db: transaction})
	})
}

func (store *Store) LockAccount(ctx context.Context, accountID ledger.AccountID) (ledger.Account, error) {
	var row Account
	err := store.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("account_id = ?", accountID.String()).
		Take(&row).Error
	if err != nil {
		return ledger.Account{}, wrapStoreError(errorSubjectAccount, errorCodeLock, mapNotFound(err, ledger.ErrRecipientNotFound))
	}
	return mapAccount(row)
}

func (store *Store) GetAccount(ctx context.Context, accountID ledger.AccountID) (ledger.Account, error) {
	var row Account
	err := store.db.WithContext(ctx).Where("account_id = ?", accountID.String()).Take(&row).Error
	if err != nil {
		return ledger.Account{}, wrapStoreError(errorSubjectAccount, errorCodeGet, mapNotFound(err, ledger.ErrRecipientNotFound))
	}
	return mapAccount(row)
}

func (store *Store) GetAccountByWalletCurrency(ctx context.Context, walletID ledger.WalletID, currency money.Currency) (ledger.Account, error) {
	var row Account
	err := store.db.WithContext(ctx).
		Where("wallet_id = ? AND currency = ?", walletID.String(), currency.String()).
		Take(&row).Error
	if err != nil {
		return ledger.Account{}, wrapStoreError(errorSubjectAccount, errorCodeGet, mapNotFound(err, ledger.ErrRecipientNotFound))
	}
	return mapAccount(row)
}

func (store *Store) GetWalletByHandle(ctx context.Context, handle string) (ledger.Wallet, error) {
	var row Wallet
	err := store.db.WithContext(ctx).Where("handle = ?", handle).Take(&row).Error
	if err != nil {
		return ledger.Wallet{}, wrapStoreError(errorSubjectWallet, errorCodeGet, mapNotFound(err, ledger.ErrRecipientNotFound))
	}
	return mapWallet(row)
}

func (store *Store) GetWalletByExternalRef(ctx context.Context, externalRef string) (ledger.Wallet, error) {
	var row Wallet
	err := store.db.WithContext(ctx).Where("external_ref = ?", externalRef).Take(&row).Error
	if err != nil {
		return ledger.Wallet{}, wrapStoreError(errorSubjectWallet, errorCodeGet, mapNotFound(err, ledger.ErrRecipientNotFound))
	}
	return mapWallet(row)
}

func (store *Store) CreateWallet(ctx context.Context, wallet ledger.Wallet) error {
	row := Wallet{
		WalletID:    wallet.WalletID.String(),
		Handle:      wallet.Handle,
		DisplayName: wallet.DisplayName,
		CreatedAt:   wallet.CreatedAt,
	}
	if err := store.db.WithContext(ctx).Create(&row).Error; err != nil {
		return wrapStoreError(errorSubjectWallet, errorCodeInsert, err)
	}
	return nil
}

func (store *Store) SetWalletHandle(ctx context.Context, walletID ledger.WalletID, handle string) error {
	result := store.db.WithContext(ctx).Model(&Wallet{}).Where("wallet_id = ?", walletID.String()).Update("handle", handle)
	if result.Error != nil {
		if isDuplicateHandle(result.Error) {
			return wrapStoreError(errorSubjectWallet, "duplicate_handle", ledger.ErrValidation)
		}
		return wrapStoreError(errorSubjectWallet, errorCodeUpdate, result.Error)
	}
	return nil
}

func (store *Store) CreateAccount(ctx context.Context, account ledger.Account) error {
	row := Account{
		AccountID: account.AccountID.String(),
		WalletID:  account.WalletID.String(),
		Currency:  account.Currency.String(),
		Type:      string(account.Type),
		Status:    string(account.Status),
		CreatedAt: account.CreatedAt,
	}
	if err := store.db.WithContext(ctx).Create(&row).Error; err != nil {
		return wrapStoreError(errorSubjectAccount, errorCodeInsert, err)
	}
	return nil
}

func (store *Store) UpdateAccountStatus(ctx context.Context, accountID ledger.AccountID, status ledger.AccountStatus) error {
	result := store.db.WithContext(ctx).Model(&Account{}).Where("account_id = ?", accountID.String()).Update("status", string(status))
	if result.Error != nil {
		return wrapStoreError(errorSubjectAccount, errorCodeUpdate, result.Error)
	}
	return nil
}

func (store *Store) SumBuckets(ctx context.Context, accountID ledger.AccountID) (money.Amount, money.Amount, error) {
	var lines []JournalLine
	err := store.db.WithContext(ctx).Where("account_id = ?", accountID.String()).Find(&lines).Error
	if err != nil {
		return money.Zero, money.Zero, wrapStoreError(errorSubjectBalance, errorCodeSum, err)
	}
	var availableMinor, heldMinor int64
	for _, line := range lines {
		signed := line.AmountMinor
		if line.Side == string(ledger.SideDebit) {
			signed = -signed
		}
		switch line.Bucket {
		case string(ledger.BucketAvailable):
			availableMinor += signed
		case string(ledger.BucketHeld):
			heldMinor += signed
		}
	}
	available, err := money.NewAmount(availableMinor)
	if err != nil {
		return money.Zero, money.Zero, wrapStoreError(errorSubjectBalance, errorCodeInvalid, err)
	}
	held, err := money.NewAmount(heldMinor)
	if err != nil {
		return money.Zero, money.Zero, wrapStoreError(errorSubjectBalance, errorCodeInvalid, err)
	}
	return available, held, nil
}

func (store *Store) InsertEntry(ctx context.Context, entry ledger.JournalEntry) error {
	metadataJSON, err := json.Marshal(entry.Metadata)
	if err != nil {
		return wrapStoreError(errorSubjectEntry, errorCodeInvalid, err)
	}
	row := JournalEntry{
		EntryID:           entry.EntryID.String(),
		Kind:              string(entry.Kind),
		InitiatorWalletID: entry.InitiatorID.String(),
		Currency:          entry.Currency.String(),
		ReferenceID:       entry.ReferenceID,
		Metadata:          datatypes.JSON(metadataJSON),
		IdempotencyKey:    entry.IdempotencyKey.String(),
		LinkedEntryID:     entry.LinkedEntryID.String(),
		CreatedAt:         entry.CreatedAt,
	}
	if err := store.db.WithContext(ctx).Create(&row).Error; err != nil {
		return wrapStoreError(errorSubjectEntry, errorCodeInsert, err)
	}
	lines := make([]JournalLine, 0, len(entry.Lines))
	for _, line := range entry.Lines {
		lineID := line.LineID
		if lineID == "" {
			lineID = uuid.NewString()
		}
		lines = append(lines, JournalLine{
			LineID:      lineID,
			EntryID:     entry.EntryID.String(),
			AccountID:   line.AccountID.String(),
			Side:        string(line.Side),
			AmountMinor: line.Amount.Int64(),
			Bucket:      string(line.Bucket),
		})
	}
	if err := store.db.WithContext(ctx).Create(&lines).Error; err != nil {
		return wrapStoreError(errorSubjectEntry, errorCodeInsert, err)
	}
	return nil
}

func (store *Store) GetEntry(ctx context.Context, entryID ledger.EntryID) (ledger.JournalEntry, error) {
	var row JournalEntry
	err := store.db.WithContext(ctx).Where("entry_id = ?", entryID.String()).Take(&row).Error
	if err != nil {
		return ledger.JournalEntry{}, wrapStoreError(errorSubjectEntry, errorCodeGet, mapNotFound(err, ledger.ErrCaptureNotFound))
	}
	var lineRows []JournalLine
	if err := store.db.WithContext(ctx).Where("entry_id = ?", entryID.String()).Find(&lineRows).Error; err != nil {
		return ledger.JournalEntry{}, wrapStoreError(errorSubjectEntry, errorCodeGet, err)
	}
	return mapEntry(row, lineRows)
}

func (store *Store) ListEntries(ctx context.Context, accountID ledger.AccountID, before time.Time, limit int) ([]ledger.JournalEntry, error) {
	if before.IsZero() {
		before = time.Now().AddDate(100, 0, 0)
	}
	var entryIDs []string
	err := store.db.WithContext(ctx).
		Model(&JournalLine{}).
		Distinct("journal_lines.entry_id").
		Joins("JOIN journal_entries ON journal_entries.entry_id = journal_lines.entry_id").
		Where("journal_lines.account_id = ? AND journal_entries.created_at < ?", accountID.String(), before).
		Order("journal_entries.created_at DESC").
		Limit(limit).
		Pluck("journal_lines.entry_id", &entryIDs).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectEntry, errorCodeList, err)
	}
	entries := make([]ledger.JournalEntry, 0, len(entryIDs))
	for _, entryIDValue := range entryIDs {
		entryID, err := ledger.NewEntryID(entryIDValue)
		if err != nil {
			return nil, wrapStoreError(errorSubjectEntry, errorCodeInvalid, err)
		}
		entry, err := store.GetEntry(ctx, entryID)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (store *Store) SumCommittedDebits(ctx context.Context, walletID ledger.WalletID, since time.Time) (money.Amount, error) {
	type sumRow struct{ Total int64 }
	var sum sumRow
	err := store.db.WithContext(ctx).
		Model(&JournalLine{}).
		Select("coalesce(sum(journal_lines.amount_minor),0) as total").
		Joins("JOIN journal_entries ON journal_entries.entry_id = journal_lines.entry_id").
		Where("journal_entries.initiator_wallet_id = ?", walletID.String()).
		Where("journal_entries.kind IN ?", []string{string(ledger.EntryKindTransfer), string(ledger.EntryKindIntentPay)}).
		Where("journal_lines.side = ? AND journal_lines.bucket = ?", string(ledger.SideDebit), string(ledger.BucketAvailable)).
		Where("journal_entries.created_at >= ?", since).
		Scan(&sum).Error
	if err != nil {
		return money.Zero, wrapStoreError(errorSubjectBalance, errorCodeSum, err)
	}
	amount, err := money.NewAmount(sum.Total)
	if err != nil {
		return money.Zero, wrapStoreError(errorSubjectBalance, errorCodeInvalid, err)
	}
	return amount, nil
}

func (store *Store) PutHold(ctx context.Context, hold ledger.Hold) error {
	row := Hold{
		HoldID:          hold.HoldID.String(),
		PayerAccountID:  hold.PayerAccount.String(),
		Currency:        hold.Currency.String(),
		AmountMinor:     hold.Amount.Int64(),
		RemainingMinor:  hold.Remaining.Int64(),
		Status:          string(hold.Status),
		ExpiresAt:       nullableTime(hold.ExpiresAt),
		CreatedAt:       hold.CreatedAt,
		CreatingEntryID: hold.CreatingEntry.String(),
	}
	if err := store.db.WithContext(ctx).Create(&row).Error; err != nil {
		return wrapStoreError(errorSubjectHold, errorCodeInsert, err)
	}
	return nil
}

func (store *Store) GetHold(ctx context.Context, holdID ledger.HoldID) (ledger.Hold, error) {
	var row Hold
	err := store.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("hold_id = ?", holdID.String()).
		Take(&row).Error
	if err != nil {
		return ledger.Hold{}, wrapStoreError(errorSubjectHold, errorCodeGet, mapNotFound(err, ledger.ErrHoldNotActive))
	}
	return mapHold(row)
}

func (store *Store) UpdateHold(ctx context.Context, hold ledger.Hold) error {
	result := store.db.WithContext(ctx).
		Model(&Hold{}).
		Where("hold_id = ?", hold.HoldID.String()).
		Updates(map[string]any{"remaining_minor": hold.Remaining.Int64(), "status": string(hold.Status)})
	if result.Error != nil {
		return wrapStoreError(errorSubjectHold, errorCodeUpdate, result.Error)
	}
	return nil
}

func (store *Store) PutIntent(ctx context.Context, intent ledger.PaymentIntent) error {
	metadataJSON, err := json.Marshal(intent.Metadata)
	if err != nil {
		return wrapStoreError(errorSubjectIntent, errorCodeInvalid, err)
	}
	row := PaymentIntent{
		IntentID:        intent.IntentID.String(),
		PayeeAccountID:  intent.PayeeID.String(),
		Currency:        intent.Currency.String(),
		AmountMinor:     intent.Amount.Int64(),
		Status:          string(intent.Status),
		ExpiresAt:       nullableTime(intent.ExpiresAt),
		Metadata:        datatypes.JSON(metadataJSON),
		PaidEntryID:     intent.PaidEntryID.String(),
		CreatorWalletID: intent.CreatorID.String(),
		CreatedAt:       intent.CreatedAt,
	}
	if err := store.db.WithContext(ctx).Create(&row).Error; err != nil {
		return wrapStoreError(errorSubjectIntent, errorCodeInsert, err)
	}
	return nil
}

func (store *Store) GetIntent(ctx context.Context, intentID ledger.IntentID) (ledger.PaymentIntent, error) {
	var row PaymentIntent
	err := store.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("intent_id = ?", intentID.String()).
		Take(&row).Error
	if err != nil {
		return ledger.PaymentIntent{}, wrapStoreError(errorSubjectIntent, errorCodeGet, mapNotFound(err, ledger.ErrIntentExpired))
	}
	return mapIntent(row)
}

func (store *Store) UpdateIntent(ctx context.Context, intent ledger.PaymentIntent) error {
	result := store.db.WithContext(ctx).
		Model(&PaymentIntent{}).
		Where("intent_id = ?", intent.IntentID.String()).
		Updates(map[string]any{"status": string(intent.Status), "paid_entry_id": intent.PaidEntryID.String()})
	if result.Error != nil {
		return wrapStoreError(errorSubjectIntent, errorCodeUpdate, result.Error)
	}
	return nil
}

func (store *Store) PutRefund(ctx context.Context, refund ledger.Refund) error {
	row := Refund{
		RefundID:        refund.RefundID.String(),
		CaptureEntryID:  refund.CaptureEntry.String(),
		AmountMinor:     refund.Amount.Int64(),
		Status:          string(refund.Status),
		CreatingEntryID: refund.CreatingEntry.String(),
		CreatedAt:       refund.CreatedAt,
	}
	if err := store.db.WithContext(ctx).Create(&row).Error; err != nil {
		return wrapStoreError(errorSubjectRefund, errorCodeInsert, err)
	}
	return nil
}

func (store *Store) GetRefund(ctx context.Context, refundID ledger.RefundID) (ledger.Refund, error) {
	var row Refund
	err := store.db.WithContext(ctx).Where("refund_id = ?", refundID.String()).Take(&row).Error
	if err != nil {
		return ledger.Refund{}, wrapStoreError(errorSubjectRefund, errorCodeGet, mapNotFound(err, ledger.ErrCaptureNotFound))
	}
	return mapRefund(row)
}

func (store *Store) SumRefundsForCapture(ctx context.Context, captureEntryID ledger.EntryID) (money.Amount, error) {
	type sumRow struct{ Total int64 }
	var sum sumRow
	err := store.db.WithContext(ctx).
		Model(&Refund{}).
		Select("coalesce(sum(amount_minor),0) as total").
		Where("capture_entry_id = ? AND status = ?", captureEntryID.String(), string(ledger.RefundStatusPosted)).
		Scan(&sum).Error
	if err != nil {
		return money.Zero, wrapStoreError(errorSubjectRefund, errorCodeSum, err)
	}
	amount, err := money.NewAmount(sum.Total)
	if err != nil {
		return money.Zero, wrapStoreError(errorSubjectRefund, errorCodeInvalid, err)
	}
	return amount, nil
}

func (store *Store) IdempotencyReserve(ctx context.Context, apiKeyID ledger.APIKeyID, key ledger.IdempotencyKey, fingerprint string) (ledger.IdempotencyReservation, error) {
	row := IdempotencyRecord{
		APIKeyID:       apiKeyID.String(),
		IdempotencyKey: key.String(),
		Status:         string(ledger.IdempotencyStatusInFlight),
		Fingerprint:    fingerprint,
		CreatedAt:      time.Now().UTC(),
	}
	result := store.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if result.Error != nil && !isIdempotencyConflict(result.Error) {
		return ledger.IdempotencyReservation{}, wrapStoreError(errorSubjectIdemp, errorCodeReserve, result.Error)
	}
	if result.Error == nil && result.RowsAffected == 1 {
		return ledger.IdempotencyReservation{Outcome: ledger.IdempotencyOutcomeFresh}, nil
	}

	var existing IdempotencyRecord
	err := store.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("api_key_id = ? AND idempotency_key = ?", apiKeyID.String(), key.String()).
		Take(&existing).Error
	if err != nil {
		return ledger.IdempotencyReservation{}, wrapStoreError(errorSubjectIdemp, errorCodeGet, err)
	}
	if existing.Fingerprint != fingerprint {
		return ledger.IdempotencyReservation{Outcome: ledger.IdempotencyOutcomeConflictMismatch}, nil
	}
	if ledger.IdempotencyStatus(existing.Status) == ledger.IdempotencyStatusInFlight {
		return ledger.IdempotencyReservation{Outcome: ledger.IdempotencyOutcomeConflictInProgress}, nil
	}
	return ledger.IdempotencyReservation{Outcome: ledger.IdempotencyOutcomeReplay, Snapshot: existing.Snapshot}, nil
}

func (store *Store) IdempotencyComplete(ctx context.Context, apiKeyID ledger.APIKeyID, key ledger.IdempotencyKey, status ledger.IdempotencyStatus, snapshot []byte) error {
	result := store.db.WithContext(ctx).
		Model(&IdempotencyRecord{}).
		Where("api_key_id = ? AND idempotency_key = ?", apiKeyID.String(), key.String()).
		Updates(map[string]any{"status": string(status), "snapshot": snapshot})
	if result.Error != nil {
		return wrapStoreError(errorSubjectIdemp, errorCodeComplete, result.Error)
	}
	return nil
}

func wrapStoreError(subject, code string, err error) error {
	return ledger.WrapError(errorOperationStore, subject, code, err)
}

func mapNotFound(err error, notFound error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	return err
}

func mapAccount(row Account) (ledger.Account, error) {
	accountID, err := ledger.NewAccountID(row.AccountID)
	if err != nil {
		return ledger.Account{}, err
	}
	walletID, err := ledger.NewWalletID(row.WalletID)
	if err != nil {
		return ledger.Account{}, err
	}
	currency, err := money.NewCurrency(row.Currency)
	if err != nil {
		return ledger.Account{}, err
	}
	return ledger.Account{
		AccountID: accountID,
		WalletID:  walletID,
		Currency:  currency,
		Type:      ledger.AccountType(row.Type),
		Status:    ledger.AccountStatus(row.Status),
		CreatedAt: row.CreatedAt,
	}, nil
}

func mapWallet(row Wallet) (ledger.Wallet, error) {
	walletID, err := ledger.NewWalletID(row.WalletID)
	if err != nil {
		return ledger.Wallet{}, err
	}
	return ledger.Wallet{WalletID: walletID, Handle: row.Handle, DisplayName: row.DisplayName, CreatedAt: row.CreatedAt}, nil
}

func mapEntry(row JournalEntry, lineRows []JournalLine) (ledger.JournalEntry, error) {
	entryID, err := ledger.NewEntryID(row.EntryID)
	if err != nil {
		return ledger.JournalEntry{}, err
	}
	currency, err := money.NewCurrency(row.Currency)
	if err != nil {
		return ledger.JournalEntry{}, err
	}
	var initiatorID ledger.WalletID
	if row.InitiatorWalletID != "" {
		initiatorID, err = ledger.NewWalletID(row.InitiatorWalletID)
		if err != nil {
			return ledger.JournalEntry{}, err
		}
	}
	var idempotencyKey ledger.IdempotencyKey
	if row.IdempotencyKey != "" {
		idempotencyKey, err = ledger.NewIdempotencyKey(row.IdempotencyKey)
		if err != nil {
			return ledger.JournalEntry{}, err
		}
	}
	var linkedEntryID ledger.EntryID
	if row.LinkedEntryID != "" {
		linkedEntryID, err = ledger.NewEntryID(row.LinkedEntryID)
		if err != nil {
			return ledger.JournalEntry{}, err
		}
	}
	var metadata map[string]any
	if len(row.Metadata) > 0 {
		if err := json.Unmarshal(row.Metadata, &metadata); err != nil {
			return ledger.JournalEntry{}, err
		}
	}
	lines := make([]ledger.JournalLine, 0, len(lineRows))
	for _, lineRow := range lineRows {
		accountID, err := ledger.NewAccountID(lineRow.AccountID)
		if err != nil {
			return ledger.JournalEntry{}, err
		}
		amount, err := money.NewAmount(lineRow.AmountMinor)
		if err != nil {
			return ledger.JournalEntry{}, err
		}
		lines = append(lines, ledger.JournalLine{
			LineID:    lineRow.LineID,
			EntryID:   entryID,
			AccountID: accountID,
			Side:      ledger.LineSide(lineRow.Side),
			Amount:    amount,
			Bucket:    ledger.Bucket(lineRow.Bucket),
		})
	}
	return ledger.JournalEntry{
		EntryID:        entryID,
		Kind:           ledger.EntryKind(row.Kind),
		InitiatorID:    initiatorID,
		Currency:       currency,
		ReferenceID:    row.ReferenceID,
		Metadata:       metadata,
		IdempotencyKey: idempotencyKey,
		LinkedEntryID:  linkedEntryID,
		CreatedAt:      row.CreatedAt,
		Lines:          lines,
	}, nil
}

func mapHold(row Hold) (ledger.Hold, error) {
	holdID, err := ledger.NewHoldID(row.HoldID)
	if err != nil {
		return ledger.Hold{}, err
	}
	payerAccount, err := ledger.NewAccountID(row.PayerAccountID)
	if err != nil {
		return ledger.Hold{}, err
	}
	currency, err := money.NewCurrency(row.Currency)
	if err != nil {
		return ledger.Hold{}, err
	}
	amount, err := money.NewAmount(row.AmountMinor)
	if err != nil {
		return ledger.Hold{}, err
	}
	remaining, err := money.NewAmount(row.RemainingMinor)
	if err != nil {
		return ledger.Hold{}, err
	}
	creatingEntry, err := ledger.NewEntryID(row.CreatingEntryID)
	if err != nil {
		return ledger.Hold{}, err
	}
	hold := ledger.Hold{
		HoldID:        holdID,
		PayerAccount:  payerAccount,
		Currency:      currency,
		Amount:        amount,
		Remaining:     remaining,
		Status:        ledger.HoldStatus(row.Status),
		CreatedAt:     row.CreatedAt,
		CreatingEntry: creatingEntry,
	}
	if row.ExpiresAt != nil {
		hold.ExpiresAt = *row.ExpiresAt
	}
	return hold, nil
}

func mapIntent(row PaymentIntent) (ledger.PaymentIntent, error) {
	intentID, err := ledger.NewIntentID(row.IntentID)
	if err != nil {
		return ledger.PaymentIntent{}, err
	}
	payeeAccount, err := ledger.NewAccountID(row.PayeeAccountID)
	if err != nil {
		return ledger.PaymentIntent{}, err
	}
	currency, err := money.NewCurrency(row.Currency)
	if err != nil {
		return ledger.PaymentIntent{}, err
	}
	amount, err := money.NewAmount(row.AmountMinor)
	if err != nil {
		return ledger.PaymentIntent{}, err
	}
	var creatorID ledger.WalletID
	if row.CreatorWalletID != "" {
		creatorID, err = ledger.NewWalletID(row.CreatorWalletID)
		if err != nil {
			return ledger.PaymentIntent{}, err
		}
	}
	var paidEntryID ledger.EntryID
	if row.PaidEntryID != "" {
		paidEntryID, err = ledger.NewEntryID(row.PaidEntryID)
		if err != nil {
			return ledger.PaymentIntent{}, err
		}
	}
	var metadata map[string]any
	if len(row.Metadata) > 0 {
		if err := json.Unmarshal(row.Metadata, &metadata); err != nil {
			return ledger.PaymentIntent{}, err
		}
	}
	intent := ledger.PaymentIntent{
		IntentID:    intentID,
		PayeeID:     payeeAccount,
		Currency:    currency,
		Amount:      amount,
		Status:      ledger.IntentStatus(row.Status),
		Metadata:    metadata,
		PaidEntryID: paidEntryID,
		CreatorID:   creatorID,
		CreatedAt:   row.CreatedAt,
	}
	if row.ExpiresAt != nil {
		intent.ExpiresAt = *row.ExpiresAt
	}
	return intent, nil
}

func mapRefund(row Refund) (ledger.Refund, error) {
	refundID, err := ledger.NewRefundID(row.RefundID)
	if err != nil {
		return ledger.Refund{}, err
	}
	captureEntry, err := ledger.NewEntryID(row.CaptureEntryID)
	if err != nil {
		return ledger.Refund{}, err
	}
	creatingEntry, err := ledger.NewEntryID(row.CreatingEntryID)
	if err != nil {
		return ledger.Refund{}, err
	}
	amount, err := money.NewAmount(row.AmountMinor)
	if err != nil {
		return ledger.Refund{}, err
	}
	return ledger.Refund{
		RefundID:      refundID,
		CaptureEntry:  captureEntry,
		Amount:        amount,
		Status:        ledger.RefundStatus(row.Status),
		CreatingEntry: creatingEntry,
		CreatedAt:     row.CreatedAt,
	}, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func isDuplicateHandle(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xFF == sqliteConstraintCode
	}
	return false
}

func isIdempotencyConflict(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode && pgErr.ConstraintName == constraintIdempotencyPrimary
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xFF == sqliteConstraintCode
	}
	return false
}
