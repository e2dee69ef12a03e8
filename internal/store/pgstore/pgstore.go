// Package pgstore implements ledger.Store on top of a pgx connection
// pool, using row-level locking ("for update") for every account, hold,
// and intent read the core mutates under.
package pgstore

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coreledger/wallet-ledger/pkg/ledger"
	"github.com/coreledger/wallet-ledger/pkg/money"
)

const (
	errOpStore = "store"

	pgSerializationFailure = "40001"
	pgUniqueViolation      = "23505"
	constraintIdempotency  = "idempotency_records_pkey"
	constraintWalletHandle = "wallets_handle_key"

	sqlLockAccount = `
		select account_id, wallet_id, currency, type, status, created_at
		from accounts where account_id = $1 for update`

	sqlGetAccount = `
		select account_id, wallet_id, currency, type, status, created_at
		from accounts where account_id = $1`

	sqlGetAccountByWalletCurrency = `
		select account_id, wallet_id, currency, type, status, created_at
		from accounts where wallet_id = $1 and currency = $2`

	sqlGetWalletByHandle = `
		select wallet_id, handle, display_name, created_at
		from wallets where handle = $1`

	sqlGetWalletByExternalRef = `
		select wallet_id, handle, display_name, created_at
		from wallets where external_ref = $1`

	sqlCreateWallet = `
		insert into wallets(wallet_id, handle, display_name, created_at)
		values ($1, nullif($2, ''), $3, $4)`

	sqlSetWalletHandle = `
		update wallets set handle = $2 where wallet_id = $1`

	sqlCreateAccount = `
		insert into accounts(account_id, wallet_id, currency, type, status, created_at)
		values ($1, $2, $3, $4, $5, $6)`

	sqlUpdateAccountStatus = `
		update accounts set status = $2 where account_id = $1`

	sqlSumBuckets = `
		select
			coalesce(sum(case when bucket = 'AVAILABLE' and side = 'CREDIT' then amount_minor
			                  when bucket = 'AVAILABLE' and side = 'DEBIT'  then -amount_minor else 0 end), 0),
			coalesce(sum(case when bucket = 'HELD' and side = 'CREDIT' then amount_minor
			                  when bucket = 'HELD' and side = 'DEBIT'  then -amount_minor else 0 end), 0)
		from journal_lines where account_id = $1`

	sqlInsertEntry = `
		insert into journal_entries(entry_id, kind, initiator_wallet_id, currency, reference_id, metadata, idempotency_key, linked_entry_id, created_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	sqlInsertLine = `
		insert into journal_lines(entry_id, account_id, side, amount_minor, bucket)
		values ($1, $2, $3, $4, $5)`

	sqlGetEntry = `
		select entry_id, kind, initiator_wallet_id, currency, reference_id, metadata, idempotency_key, linked_entry_id, created_at
		from journal_entries where entry_id = $1`

	sqlGetLines = `
		select line_id, entry_id, account_id, side, amount_minor, bucket
		from journal_lines where entry_id = $1`

	sqlListEntries = `
		select distinct je.entry_id, je.kind, je.initiator_wallet_id, je.currency, je.reference_id, je.metadata, je.idempotency_key, je.linked_entry_id, je.created_at
		from journal_entries je
		join journal_lines jl on jl.entry_id = je.entry_id
		where jl.account_id = $1 and je.created_at < $2
		order by je.created_at desc
		limit $3`

	sqlSumCommittedDebits = `
		select coalesce(sum(jl.amount_minor), 0)
		from journal_lines jl
		join journal_entries je on je.entry_id = jl.entry_id
		where je.initiator_wallet_id = $1
		  and je.kind in ('TRANSFER', 'INTENT_PAY')
		  and jl.side = 'DEBIT' and jl.bucket = 'AVAILABLE'
		  and je.created_at >= $2`

	sqlPutHold = `
		insert into holds(hold_id, payer_account_id, currency, amount_minor, remaining_minor, status, expires_at, created_at, creating_entry_id)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	sqlGetHold = `
		select hold_id, payer_account_id, currency, amount_minor, remaining_minor, status, expires_at, created_at, creating_entry_id
		from holds where hold_id = $1 for update`

	sqlUpdateHold = `
		update holds set remaining_minor = $2, status = $3 where hold_id = $1`

	sqlPutIntent = `
		insert into payment_intents(intent_id, payee_account_id, currency, amount_minor, status, expires_at, metadata, paid_entry_id, creator_wallet_id, created_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	sqlGetIntent = `
		select intent_id, payee_account_id, currency, amount_minor, status, expires_at, metadata, paid_entry_id, creator_wallet_id, created_at
		from payment_intents where intent_id = $1 for update`

	sqlUpdateIntent = `
		update payment_intents set status = $2, paid_entry_id = $3 where intent_id = $1`

	sqlPutRefund = `
		insert into refunds(refund_id, capture_entry_id, amount_minor, status, creating_entry_id, created_at)
		values ($1, $2, $3, $4, $5, $6)`

	sqlGetRefund = `
		select refund_id, capture_entry_id, amount_minor, status, creating_entry_id, created_at
		from refunds where refund_id = $1`

	sqlSumRefundsForCapture = `
		select coalesce(sum(amount_minor), 0) from refunds where capture_entry_id = $1 and status = 'POSTED'`

	sqlIdempotencyReserve = `
		insert into idempotency_records(api_key_id, idempotency_key, status, fingerprint, created_at)
		values ($1, $2, 'IN_FLIGHT', $3, now())
		on conflict (api_key_id, idempotency_key) do nothing`

	sqlIdempotencyLookup = `
		select status, fingerprint, snapshot from idempotency_records
		where api_key_id = $1 and idempotency_key = $2 for update`

	sqlIdempotencyComplete = `
		update idempotency_records set status = $3, snapshot = $4 where api_key_id = $1 and idempotency_key = $2`
)

// queryer is satisfied by both *pgxpool.Pool and pgx.Tx, letting the
// query helpers below run identically whether or not a transaction is
// active.
type queryer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store implements ledger.Store against a pgx connection pool outside
// any explicit transaction. Calls to it that take row locks (LockAccount,
// GetHold, GetIntent) hold those locks only for the duration of the
// single implicit statement-level transaction Postgres opens for them.
type Store struct {
	pool *pgxpool.Pool
}

// TxStore implements ledger.Store for the lifetime of one pgx
// transaction; every lock it takes is held until the transaction
// commits or rolls back.
type TxStore struct {
	tx pgx.Tx
}

// New returns a Store backed by pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx ledger.Store) error) error {
	pgxTx, err := store.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return wrapStoreErr("transaction", "begin", err)
	}
	if err := fn(ctx, &TxStore{tx: pgxTx}); err != nil {
		_ = pgxTx.Rollback(ctx)
		if isSerializationFailure(err) {
			return ledger.ErrTransientConflict
		}
		return err
	}
	if err := pgxTx.Commit(ctx); err != nil {
		if isSerializationFailure(err) {
			return ledger.ErrTransientConflict
		}
		return wrapStoreErr("transaction", "commit", err)
	}
	return nil
}

func (store *Store) LockAccount(ctx context.Context, accountID ledger.AccountID) (ledger.Account, error) {
	return lockAccount(ctx, store.pool, accountID)
}
func (store *Store) GetAccount(ctx context.Context, accountID ledger.AccountID) (ledger.Account, error) {
	return getAccount(ctx, store.pool, accountID)
}
func (store *Store) GetAccountByWalletCurrency(ctx context.Context, walletID ledger.WalletID, currency money.Currency) (ledger.Account, error) {
	return getAccountByWalletCurrency(ctx, store.pool, walletID, currency)
}
func (store *Store) GetWalletByHandle(ctx context.Context, handle string) (ledger.Wallet, error) {
	return getWalletByHandle(ctx, store.pool, handle)
}
func (store *Store) GetWalletByExternalRef(ctx context.Context, externalRef string) (ledger.Wallet, error) {
	return getWalletByExternalRef(ctx, store.pool, externalRef)
}
func (store *Store) CreateWallet(ctx context.Context, wallet ledger.Wallet) error {
	return createWallet(ctx, store.pool, wallet)
}
func (store *Store) SetWalletHandle(ctx context.Context, walletID ledger.WalletID, handle string) error {
	return setWalletHandle(ctx, store.pool, walletID, handle)
}
func (store *Store) CreateAccount(ctx context.Context, account ledger.Account) error {
	return createAccount(ctx, store.pool, account)
}
func (store *Store) UpdateAccountStatus(ctx context.Context, accountID ledger.AccountID, status ledger.AccountStatus) error {
	return updateAccountStatus(ctx, store.pool, accountID, status)
}
func (store *Store) SumBuckets(ctx context.Context, accountID ledger.AccountID) (money.Amount, money.Amount, error) {
	return sumBuckets(ctx, store.pool, accountID)
}
func (store *Store) InsertEntry(ctx context.Context, entry ledger.JournalEntry) error {
	return insertEntry(ctx, store.pool, entry)
}
func (store *Store) GetEntry(ctx context.Context, entryID ledger.EntryID) (ledger.JournalEntry, error) {
	return getEntry(ctx, store.pool, entryID)
}
func (store *Store) ListEntries(ctx context.Context, accountID ledger.AccountID, before time.Time, limit int) ([]ledger.JournalEntry, error) {
	return listEntries(ctx, store.pool, accountID, before, limit)
}
func (store *Store) SumCommittedDebits(ctx context.Context, walletID ledger.WalletID, since time.Time) (money.Amount, error) {
	return sumCommittedDebits(ctx, store.pool, walletID, since)
}
func (store *Store) PutHold(ctx context.Context, hold ledger.Hold) error { return putHold(ctx, store.pool, hold) }
func (store *Store) GetHold(ctx context.Context, holdID ledger.HoldID) (ledger.Hold, error) {
	return getHold(ctx, store.pool, holdID)
}
func (store *Store) UpdateHold(ctx context.Context, hold ledger.Hold) error {
	return updateHold(ctx, store.pool, hold)
}
func (store *Store) PutIntent(ctx context.Context, intent ledger.PaymentIntent) error {
	return putIntent(ctx, store.pool, intent)
}
func (store *Store) GetIntent(ctx context.Context, intentID ledger.IntentID) (ledger.PaymentIntent, error) {
	return getIntent(ctx, store.pool, intentID)
}
func (store *Store) UpdateIntent(ctx context.Context, intent ledger.PaymentIntent) error {
	return updateIntent(ctx, store.pool, intent)
}
func (store *Store) PutRefund(ctx context.Context, refund ledger.Refund) error {
	return putRefund(ctx, store.pool, refund)
}
func (store *Store) GetRefund(ctx context.Context, refundID ledger.RefundID) (ledger.Refund, error) {
	return getRefund(ctx, store.pool, refundID)
}
func (store *Store) SumRefundsForCapture(ctx context.Context, captureEntryID ledger.EntryID) (money.Amount, error) {
	return sumRefundsForCapture(ctx, store.pool, captureEntryID)
}
func (store *Store) IdempotencyReserve(ctx context.Context, apiKeyID ledger.APIKeyID, key ledger.IdempotencyKey, fingerprint string) (ledger.IdempotencyReservation, error) {
	return idempotencyReserve(ctx, store.pool, apiKeyID, key, fingerprint)
}
func (store *Store) IdempotencyComplete(ctx context.Context, apiKeyID ledger.APIKeyID, key ledger.IdempotencyKey, status ledger.IdempotencyStatus, snapshot []byte) error {
	return idempotencyComplete(ctx, store.pool, apiKeyID, key, status, snapshot)
}

func (store *TxStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx ledger.Store) error) error {
	return fn(ctx, store)
}
func (store *TxStore) LockAccount(ctx context.Context, accountID ledger.AccountID) (ledger.Account, error) {
	return lockAccount(ctx, store.tx, accountID)
}
func (store *TxStore) GetAccount(ctx context.Context, accountID ledger.AccountID) (ledger.Account, error) {
	return getAccount(ctx, store.tx, accountID)
}
func (store *TxStore) GetAccountByWalletCurrency(ctx context.Context, walletID ledger.WalletID, currency money.Currency) (ledger.Account, error) {
	return getAccountByWalletCurrency(ctx, store.tx, walletID, currency)
}
func (store *TxStore) GetWalletByHandle(ctx context.Context, handle string) (ledger.Wallet, error) {
	return getWalletByHandle(ctx, store.tx, handle)
}
func (store *TxStore) GetWalletByExternalRef(ctx context.Context, externalRef string) (ledger.Wallet, error) {
	return getWalletByExternalRef(ctx, store.tx, externalRef)
}
func (store *TxStore) CreateWallet(ctx context.Context, wallet ledger.Wallet) error {
	return createWallet(ctx, store.tx, wallet)
}
func (store *TxStore) SetWalletHandle(ctx context.Context, walletID ledger.WalletID, handle string) error {
	return setWalletHandle(ctx, store.tx, walletID, handle)
}
func (store *TxStore) CreateAccount(ctx context.Context, account ledger.Account) error {
	return createAccount(ctx, store.tx, account)
}
func (store *TxStore) UpdateAccountStatus(ctx context.Context, accountID ledger.AccountID, status ledger.AccountStatus) error {
	return updateAccountStatus(ctx, store.tx, accountID, status)
}
func (store *TxStore) SumBuckets(ctx context.Context, accountID ledger.AccountID) (money.Amount, money.Amount, error) {
	return sumBuckets(ctx, store.tx, accountID)
}
func (store *TxStore) InsertEntry(ctx context.Context, entry ledger.JournalEntry) error {
	return insertEntry(ctx, store.tx, entry)
}
func (store *TxStore) GetEntry(ctx context.Context, entryID ledger.EntryID) (ledger.JournalEntry, error) {
	return getEntry(ctx, store.tx, entryID)
}
func (store *TxStore) ListEntries(ctx context.Context, accountID ledger.AccountID, before time.Time, limit int) ([]ledger.JournalEntry, error) {
	return listEntries(ctx, store.tx, accountID, before, limit)
}
func (store *TxStore) SumCommittedDebits(ctx context.Context, walletID ledger.WalletID, since time.Time) (money.Amount, error) {
	return sumCommittedDebits(ctx, store.tx, walletID, since)
}
func (store *TxStore) PutHold(ctx context.Context, hold ledger.Hold) error { return putHold(ctx, store.tx, hold) }
func (store *TxStore) GetHold(ctx context.Context, holdID ledger.HoldID) (ledger.Hold, error) {
	return getHold(ctx, store.tx, holdID)
}
func (store *TxStore) UpdateHold(ctx context.Context, hold ledger.Hold) error {
	return updateHold(ctx, store.tx, hold)
}
func (store *TxStore) PutIntent(ctx context.Context, intent ledger.PaymentIntent) error {
	return putIntent(ctx, store.tx, intent)
}
func (store *TxStore) GetIntent(ctx context.Context, intentID ledger.IntentID) (ledger.PaymentIntent, error) {
	return getIntent(ctx, store.tx, intentID)
}
func (store *TxStore) UpdateIntent(ctx context.Context, intent ledger.PaymentIntent) error {
	return updateIntent(ctx, store.tx, intent)
}
func (store *TxStore) PutRefund(ctx context.Context, refund ledger.Refund) error {
	return putRefund(ctx, store.tx, refund)
}
func (store *TxStore) GetRefund(ctx context.Context, refundID ledger.RefundID) (ledger.Refund, error) {
	return getRefund(ctx, store.tx, refundID)
}
func (store *TxStore) SumRefundsForCapture(ctx context.Context, captureEntryID ledger.EntryID) (money.Amount, error) {
	return sumRefundsForCapture(ctx, store.tx, captureEntryID)
}
func (store *TxStore) IdempotencyReserve(ctx context.Context, apiKeyID ledger.APIKeyID, key ledger.IdempotencyKey, fingerprint string) (ledger.IdempotencyReservation, error) {
	return idempotencyReserve(ctx, store.tx, apiKeyID, key, fingerprint)
}
func (store *TxStore) IdempotencyComplete(ctx context.Context, apiKeyID ledger.APIKeyID, key ledger.IdempotencyKey, status ledger.IdempotencyStatus, snapshot []byte) error {
	return idempotencyComplete(ctx, store.tx, apiKeyID, key, status, snapshot)
}

func wrapStoreErr(subject, code string, err error) error {
	return ledger.WrapError(errOpStore, subject, code, err)
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgSerializationFailure
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == constraint
}
