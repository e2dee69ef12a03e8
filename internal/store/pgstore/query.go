package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/coreledger/wallet-ledger/pkg/ledger"
	"github.com/coreledger/wallet-ledger/pkg/money"
)

func scanAccount(row pgx.Row) (ledger.Account, error) {
	var (
		accountIDValue, walletIDValue, currencyValue, typeValue, statusValue string
		createdAt                                                           time.Time
	)
	if err := row.Scan(&accountIDValue, &walletIDValue, &currencyValue, &typeValue, &statusValue, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ledger.Account{}, ledger.ErrRecipientNotFound
		}
		return ledger.Account{}, err
	}
	accountID, err := ledger.NewAccountID(accountIDValue)
	if err != nil {
		return ledger.Account{}, err
	}
	walletID, err := ledger.NewWalletID(walletIDValue)
	if err != nil {
		return ledger.Account{}, err
	}
	currency, err := money.NewCurrency(currencyValue)
	if err != nil {
		return ledger.Account{}, err
	}
	return ledger.Account{
		AccountID: accountID,
		WalletID:  walletID,
		Currency:  currency,
		Type:      ledger.AccountType(typeValue),
		Status:    ledger.AccountStatus(statusValue),
		CreatedAt: createdAt,
	}, nil
}

func lockAccount(ctx context.Context, db queryer, accountID ledger.AccountID) (ledger.Account, error) {
	account, err := scanAccount(db.QueryRow(ctx, sqlLockAccount, accountID.String()))
	if err != nil {
		return ledger.Account{}, wrapStoreErr("account", "lock", err)
	}
	return account, nil
}

func getAccount(ctx context.Context, db queryer, accountID ledger.AccountID) (ledger.Account, error) {
	account, err := scanAccount(db.QueryRow(ctx, sqlGetAccount, accountID.String()))
	if err != nil {
		return ledger.Account{}, wrapStoreErr("account", "get", err)
	}
	return account, nil
}

func getAccountByWalletCurrency(ctx context.Context, db queryer, walletID ledger.WalletID, currency money.Currency) (ledger.Account, error) {
	account, err := scanAccount(db.QueryRow(ctx, sqlGetAccountByWalletCurrency, walletID.String(), currency.String()))
	if err != nil {
		return ledger.Account{}, wrapStoreErr("account", "get_by_wallet_currency", err)
	}
	return account, nil
}

func createWallet(ctx context.Context, db queryer, wallet ledger.Wallet) error {
	_, err := db.Exec(ctx, sqlCreateWallet, wallet.WalletID.String(), wallet.Handle, wallet.DisplayName, wallet.CreatedAt)
	if err != nil {
		return wrapStoreErr("wallet", "create", err)
	}
	return nil
}

func setWalletHandle(ctx context.Context, db queryer, walletID ledger.WalletID, handle string) error {
	_, err := db.Exec(ctx, sqlSetWalletHandle, walletID.String(), handle)
	if err != nil {
		if isUniqueViolation(err, constraintWalletHandle) {
			return wrapStoreErr("wallet", "duplicate_handle", ledger.ErrValidation)
		}
		return wrapStoreErr("wallet", "set_handle", err)
	}
	return nil
}

func createAccount(ctx context.Context, db queryer, account ledger.Account) error {
	_, err := db.Exec(ctx, sqlCreateAccount, account.AccountID.String(), account.WalletID.String(),
		account.Currency.String(), string(account.Type), string(account.Status), account.CreatedAt)
	if err != nil {
		return wrapStoreErr("account", "create", err)
	}
	return nil
}

func updateAccountStatus(ctx context.Context, db queryer, accountID ledger.AccountID, status ledger.AccountStatus) error {
	_, err := db.Exec(ctx, sqlUpdateAccountStatus, accountID.String(), string(status))
	if err != nil {
		return wrapStoreErr("account", "update_status", err)
	}
	return nil
}

func getWalletByHandle(ctx context.Context, db queryer, handle string) (ledger.Wallet, error) {
	return scanWallet(ctx, db, sqlGetWalletByHandle, handle)
}

func getWalletByExternalRef(ctx context.Context, db queryer, externalRef string) (ledger.Wallet, error) {
	return scanWallet(ctx, db, sqlGetWalletByExternalRef, externalRef)
}

func scanWallet(ctx context.Context, db queryer, query string, arg string) (ledger.Wallet, error) {
	var walletIDValue, handleValue, displayName string
	var createdAt time.Time
	err := db.QueryRow(ctx, query, arg).Scan(&walletIDValue, &handleValue, &displayName, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ledger.Wallet{}, wrapStoreErr("wallet", "get", ledger.ErrRecipientNotFound)
		}
		return ledger.Wallet{}, wrapStoreErr("wallet", "get", err)
	}
	walletID, err := ledger.NewWalletID(walletIDValue)
	if err != nil {
		return ledger.Wallet{}, err
	}
	return ledger.Wallet{WalletID: walletID, Handle: handleValue, DisplayName: displayName, CreatedAt: createdAt}, nil
}

func sumBuckets(ctx context.Context, db queryer, accountID ledger.AccountID) (money.Amount, money.Amount, error) {
	var availableMinor, heldMinor int64
	if err := db.QueryRow(ctx, sqlSumBuckets, accountID.String()).Scan(&availableMinor, &heldMinor); err != nil {
		return money.Zero, money.Zero, wrapStoreErr("balance", "sum_buckets", err)
	}
	available, err := money.NewAmount(availableMinor)
	if err != nil {
		return money.Zero, money.Zero, wrapStoreErr("balance", "invalid", err)
	}
	held, err := money.NewAmount(heldMinor)
	if err != nil {
		return money.Zero, money.Zero, wrapStoreErr("balance", "invalid", err)
	}
	return available, held, nil
}

func insertEntry(ctx context.Context, db queryer, entry ledger.JournalEntry) error {
	metadataJSON, err := json.Marshal(entry.Metadata)
	if err != nil {
		return wrapStoreErr("entry", "marshal_metadata", err)
	}
	_, err = db.Exec(ctx, sqlInsertEntry,
		entry.EntryID.String(), string(entry.Kind), entry.InitiatorID.String(), entry.Currency.String(),
		entry.ReferenceID, metadataJSON, entry.IdempotencyKey.String(), entry.LinkedEntryID.String(), entry.CreatedAt)
	if err != nil {
		return wrapStoreErr("entry", "insert", err)
	}
	for _, line := range entry.Lines {
		_, err := db.Exec(ctx, sqlInsertLine, entry.EntryID.String(), line.AccountID.String(), string(line.Side), line.Amount.Int64(), string(line.Bucket))
		if err != nil {
			return wrapStoreErr("entry", "insert_line", err)
		}
	}
	return nil
}

func getEntry(ctx context.Context, db queryer, entryID ledger.EntryID) (ledger.JournalEntry, error) {
	entry, err := scanEntry(db.QueryRow(ctx, sqlGetEntry, entryID.String()))
	if err != nil {
		return ledger.JournalEntry{}, wrapStoreErr("entry", "get", err)
	}
	lines, err := scanLines(ctx, db, entryID)
	if err != nil {
		return ledger.JournalEntry{}, wrapStoreErr("entry", "get_lines", err)
	}
	entry.Lines = lines
	return entry, nil
}

func scanEntry(row pgx.Row) (ledger.JournalEntry, error) {
	var (
		entryIDValue, kindValue, initiatorValue, currencyValue string
		referenceID, idempotencyKeyValue, linkedEntryValue     string
		metadataJSON                                           []byte
		createdAt                                              time.Time
	)
	if err := row.Scan(&entryIDValue, &kindValue, &initiatorValue, &currencyValue, &referenceID, &metadataJSON, &idempotencyKeyValue, &linkedEntryValue, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ledger.JournalEntry{}, ledger.ErrCaptureNotFound
		}
		return ledger.JournalEntry{}, err
	}
	entryID, err := ledger.NewEntryID(entryIDValue)
	if err != nil {
		return ledger.JournalEntry{}, err
	}
	currency, err := money.NewCurrency(currencyValue)
	if err != nil {
		return ledger.JournalEntry{}, err
	}
	var initiatorID ledger.WalletID
	if initiatorValue != "" {
		initiatorID, err = ledger.NewWalletID(initiatorValue)
		if err != nil {
			return ledger.JournalEntry{}, err
		}
	}
	var linkedEntryID ledger.EntryID
	if linkedEntryValue != "" {
		linkedEntryID, err = ledger.NewEntryID(linkedEntryValue)
		if err != nil {
			return ledger.JournalEntry{}, err
		}
	}
	var idempotencyKey ledger.IdempotencyKey
	if idempotencyKeyValue != "" {
		idempotencyKey, err = ledger.NewIdempotencyKey(idempotencyKeyValue)
		if err != nil {
			return ledger.JournalEntry{}, err
		}
	}
	var metadata map[string]any
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &metadata); err != nil {
			return ledger.JournalEntry{}, err
		}
	}
	return ledger.JournalEntry{
		EntryID:        entryID,
		Kind:           ledger.EntryKind(kindValue),
		InitiatorID:    initiatorID,
		Currency:       currency,
		ReferenceID:    referenceID,
		Metadata:       metadata,
		IdempotencyKey: idempotencyKey,
		LinkedEntryID:  linkedEntryID,
		CreatedAt:      createdAt,
	}, nil
}

func scanLines(ctx context.Context, db queryer, entryID ledger.EntryID) ([]ledger.JournalLine, error) {
	rows, err := db.Query(ctx, sqlGetLines, entryID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	lines := make([]ledger.JournalLine, 0, 4)
	for rows.Next() {
		var lineID, rowEntryID, accountIDValue, sideValue, bucketValue string
		var amountMinor int64
		if err := rows.Scan(&lineID, &rowEntryID, &accountIDValue, &sideValue, &amountMinor, &bucketValue); err != nil {
			return nil, err
		}
		accountID, err := ledger.NewAccountID(accountIDValue)
		if err != nil {
			return nil, err
		}
		amount, err := money.NewAmount(amountMinor)
		if err != nil {
			return nil, err
		}
		lines = append(lines, ledger.JournalLine{
			LineID:    lineID,
			EntryID:   entryID,
			AccountID: accountID,
			Side:      ledger.LineSide(sideValue),
			Amount:    amount,
			Bucket:    ledger.Bucket(bucketValue),
		})
	}
	return lines, rows.Err()
}

func listEntries(ctx context.Context, db queryer, accountID ledger.AccountID, before time.Time, limit int) ([]ledger.JournalEntry, error) {
	if before.IsZero() {
		before = time.Now().AddDate(100, 0, 0)
	}
	rows, err := db.Query(ctx, sqlListEntries, accountID.String(), before, limit)
	if err != nil {
		return nil, wrapStoreErr("entry", "list", err)
	}
	defer rows.Close()
	entries := make([]ledger.JournalEntry, 0, limit)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, wrapStoreErr("entry", "list_scan", err)
		}
		lines, err := scanLines(ctx, db, entry.EntryID)
		if err != nil {
			return nil, wrapStoreErr("entry", "list_lines", err)
		}
		entry.Lines = lines
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func sumCommittedDebits(ctx context.Context, db queryer, walletID ledger.WalletID, since time.Time) (money.Amount, error) {
	var sumMinor int64
	if err := db.QueryRow(ctx, sqlSumCommittedDebits, walletID.String(), since).Scan(&sumMinor); err != nil {
		return money.Zero, wrapStoreErr("authorize", "sum_committed_debits", err)
	}
	amount, err := money.NewAmount(sumMinor)
	if err != nil {
		return money.Zero, wrapStoreErr("authorize", "invalid", err)
	}
	return amount, nil
}

func putHold(ctx context.Context, db queryer, hold ledger.Hold) error {
	_, err := db.Exec(ctx, sqlPutHold, hold.HoldID.String(), hold.PayerAccount.String(), hold.Currency.String(),
		hold.Amount.Int64(), hold.Remaining.Int64(), string(hold.Status), nullableTime(hold.ExpiresAt), hold.CreatedAt, hold.CreatingEntry.String())
	if err != nil {
		return wrapStoreErr("hold", "put", err)
	}
	return nil
}

func getHold(ctx context.Context, db queryer, holdID ledger.HoldID) (ledger.Hold, error) {
	var (
		holdIDValue, payerAccountValue, currencyValue, statusValue, creatingEntryValue string
		amountMinor, remainingMinor                                                    int64
		expiresAt                                                                      *time.Time
		createdAt                                                                       time.Time
	)
	err := db.QueryRow(ctx, sqlGetHold, holdID.String()).Scan(
		&holdIDValue, &payerAccountValue, &currencyValue, &amountMinor, &remainingMinor, &statusValue, &expiresAt, &createdAt, &creatingEntryValue)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ledger.Hold{}, wrapStoreErr("hold", "get", ledger.ErrHoldNotActive)
		}
		return ledger.Hold{}, wrapStoreErr("hold", "get", err)
	}
	holdIDParsed, err := ledger.NewHoldID(holdIDValue)
	if err != nil {
		return ledger.Hold{}, err
	}
	payerAccount, err := ledger.NewAccountID(payerAccountValue)
	if err != nil {
		return ledger.Hold{}, err
	}
	currency, err := money.NewCurrency(currencyValue)
	if err != nil {
		return ledger.Hold{}, err
	}
	amount, err := money.NewAmount(amountMinor)
	if err != nil {
		return ledger.Hold{}, err
	}
	remaining, err := money.NewAmount(remainingMinor)
	if err != nil {
		return ledger.Hold{}, err
	}
	creatingEntry, err := ledger.NewEntryID(creatingEntryValue)
	if err != nil {
		return ledger.Hold{}, err
	}
	hold := ledger.Hold{
		HoldID:        holdIDParsed,
		PayerAccount:  payerAccount,
		Currency:      currency,
		Amount:        amount,
		Remaining:     remaining,
		Status:        ledger.HoldStatus(statusValue),
		CreatedAt:     createdAt,
		CreatingEntry: creatingEntry,
	}
	if expiresAt != nil {
		hold.ExpiresAt = *expiresAt
	}
	return hold, nil
}

func updateHold(ctx context.Context, db queryer, hold ledger.Hold) error {
	_, err := db.Exec(ctx, sqlUpdateHold, hold.HoldID.String(), hold.Remaining.Int64(), string(hold.Status))
	if err != nil {
		return wrapStoreErr("hold", "update", err)
	}
	return nil
}

func putIntent(ctx context.Context, db queryer, intent ledger.PaymentIntent) error {
	metadataJSON, err := json.Marshal(intent.Metadata)
	if err != nil {
		return wrapStoreErr("intent", "marshal_metadata", err)
	}
	_, err = db.Exec(ctx, sqlPutIntent, intent.IntentID.String(), intent.PayeeID.String(), intent.Currency.String(),
		intent.Amount.Int64(), string(intent.Status), nullableTime(intent.ExpiresAt), metadataJSON,
		intent.PaidEntryID.String(), intent.CreatorID.String(), intent.CreatedAt)
	if err != nil {
		return wrapStoreErr("intent", "put", err)
	}
	return nil
}

func getIntent(ctx context.Context, db queryer, intentID ledger.IntentID) (ledger.PaymentIntent, error) {
	var (
		intentIDValue, payeeAccountValue, currencyValue, statusValue string
		amountMinor                                                  int64
		expiresAt                                                    *time.Time
		metadataJSON                                                 []byte
		paidEntryValue, creatorValue                                 string
		createdAt                                                    time.Time
	)
	err := db.QueryRow(ctx, sqlGetIntent, intentID.String()).Scan(
		&intentIDValue, &payeeAccountValue, &currencyValue, &amountMinor, &statusValue, &expiresAt, &metadataJSON, &paidEntryValue, &creatorValue, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ledger.PaymentIntent{}, wrapStoreErr("intent", "get", ledger.ErrIntentExpired)
		}
		return ledger.PaymentIntent{}, wrapStoreErr("intent", "get", err)
	}
	intentIDParsed, err := ledger.NewIntentID(intentIDValue)
	if err != nil {
		return ledger.PaymentIntent{}, err
	}
	payeeAccount, err := ledger.NewAccountID(payeeAccountValue)
	if err != nil {
		return ledger.PaymentIntent{}, err
	}
	currency, err := money.NewCurrency(currencyValue)
	if err != nil {
		return ledger.PaymentIntent{}, err
	}
	amount, err := money.NewAmount(amountMinor)
	if err != nil {
		return ledger.PaymentIntent{}, err
	}
	var creatorID ledger.WalletID
	if creatorValue != "" {
		creatorID, err = ledger.NewWalletID(creatorValue)
		if err != nil {
			return ledger.PaymentIntent{}, err
		}
	}
	var paidEntryID ledger.EntryID
	if paidEntryValue != "" {
		paidEntryID, err = ledger.NewEntryID(paidEntryValue)
		if err != nil {
			return ledger.PaymentIntent{}, err
		}
	}
	var metadata map[string]any
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &metadata); err != nil {
			return ledger.PaymentIntent{}, err
		}
	}
	intent := ledger.PaymentIntent{
		IntentID:    intentIDParsed,
		PayeeID:     payeeAccount,
		Currency:    currency,
		Amount:      amount,
		Status:      ledger.IntentStatus(statusValue),
		Metadata:    metadata,
		PaidEntryID: paidEntryID,
		CreatorID:   creatorID,
		CreatedAt:   createdAt,
	}
	if expiresAt != nil {
		intent.ExpiresAt = *expiresAt
	}
	return intent, nil
}

func updateIntent(ctx context.Context, db queryer, intent ledger.PaymentIntent) error {
	_, err := db.Exec(ctx, sqlUpdateIntent, intent.IntentID.String(), string(intent.Status), intent.PaidEntryID.String())
	if err != nil {
		return wrapStoreErr("intent", "update", err)
	}
	return nil
}

func putRefund(ctx context.Context, db queryer, refund ledger.Refund) error {
	_, err := db.Exec(ctx, sqlPutRefund, refund.RefundID.String(), refund.CaptureEntry.String(), refund.Amount.Int64(), string(refund.Status), refund.CreatingEntry.String(), refund.CreatedAt)
	if err != nil {
		return wrapStoreErr("refund", "put", err)
	}
	return nil
}

func getRefund(ctx context.Context, db queryer, refundID ledger.RefundID) (ledger.Refund, error) {
	var refundIDValue, captureEntryValue, statusValue, creatingEntryValue string
	var amountMinor int64
	var createdAt time.Time
	err := db.QueryRow(ctx, sqlGetRefund, refundID.String()).Scan(&refundIDValue, &captureEntryValue, &amountMinor, &statusValue, &creatingEntryValue, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ledger.Refund{}, wrapStoreErr("refund", "get", ledger.ErrCaptureNotFound)
		}
		return ledger.Refund{}, wrapStoreErr("refund", "get", err)
	}
	refundIDParsed, err := ledger.NewRefundID(refundIDValue)
	if err != nil {
		return ledger.Refund{}, err
	}
	captureEntry, err := ledger.NewEntryID(captureEntryValue)
	if err != nil {
		return ledger.Refund{}, err
	}
	creatingEntry, err := ledger.NewEntryID(creatingEntryValue)
	if err != nil {
		return ledger.Refund{}, err
	}
	amount, err := money.NewAmount(amountMinor)
	if err != nil {
		return ledger.Refund{}, err
	}
	return ledger.Refund{
		RefundID:      refundIDParsed,
		CaptureEntry:  captureEntry,
		Amount:        amount,
		Status:        ledger.RefundStatus(statusValue),
		CreatingEntry: creatingEntry,
		CreatedAt:     createdAt,
	}, nil
}

func sumRefundsForCapture(ctx context.Context, db queryer, captureEntryID ledger.EntryID) (money.Amount, error) {
	var sumMinor int64
	if err := db.QueryRow(ctx, sqlSumRefundsForCapture, captureEntryID.String()).Scan(&sumMinor); err != nil {
		return money.Zero, wrapStoreErr("refund", "sum", err)
	}
	amount, err := money.NewAmount(sumMinor)
	if err != nil {
		return money.Zero, wrapStoreErr("refund", "invalid", err)
	}
	return amount, nil
}

func idempotencyReserve(ctx context.Context, db queryer, apiKeyID ledger.APIKeyID, key ledger.IdempotencyKey, fingerprint string) (ledger.IdempotencyReservation, error) {
	tag, err := db.Exec(ctx, sqlIdempotencyReserve, apiKeyID.String(), key.String(), fingerprint)
	if err != nil {
		return ledger.IdempotencyReservation{}, wrapStoreErr("idempotency", "reserve", err)
	}
	if tag.RowsAffected() == 1 {
		return ledger.IdempotencyReservation{Outcome: ledger.IdempotencyOutcomeFresh}, nil
	}

	var statusValue, existingFingerprint string
	var snapshot []byte
	err = db.QueryRow(ctx, sqlIdempotencyLookup, apiKeyID.String(), key.String()).Scan(&statusValue, &existingFingerprint, &snapshot)
	if err != nil {
		return ledger.IdempotencyReservation{}, wrapStoreErr("idempotency", "lookup", err)
	}
	if existingFingerprint != fingerprint {
		return ledger.IdempotencyReservation{Outcome: ledger.IdempotencyOutcomeConflictMismatch}, nil
	}
	if ledger.IdempotencyStatus(statusValue) == ledger.IdempotencyStatusInFlight {
		return ledger.IdempotencyReservation{Outcome: ledger.IdempotencyOutcomeConflictInProgress}, nil
	}
	return ledger.IdempotencyReservation{Outcome: ledger.IdempotencyOutcomeReplay, Snapshot: snapshot}, nil
}

func idempotencyComplete(ctx context.Context, db queryer, apiKeyID ledger.APIKeyID, key ledger.IdempotencyKey, status ledger.IdempotencyStatus, snapshot []byte) error {
	_, err := db.Exec(ctx, sqlIdempotencyComplete, apiKeyID.String(), key.String(), string(status), snapshot)
	if err != nil {
		return wrapStoreErr("idempotency", "complete", err)
	}
	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
