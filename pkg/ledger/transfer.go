package ledger

import (
	"context"

	"github.com/coreledger/wallet-ledger/pkg/money"
)

// Transfer moves amount from the caller's wallet account to recipient
// (a wallet id, "@handle", or "ext:" reference) in the same currency.
// idempotencyKey may be the zero value to opt out of idempotency.
func (service *Service) Transfer(ctx context.Context, identity CallerIdentity, payerWalletID WalletID, currency money.Currency, recipient string, amount money.Amount, referenceID string, metadata map[string]any, idempotencyKey IdempotencyKey, fingerprint string) (JournalEntry, error) {
	if amount.IsZero() {
		return JournalEntry{}, WrapError("transfer", "amount", "invalid", ErrValidation)
	}

	var payerAccountID AccountID
	req := executionRequest{
		Identity:       identity,
		RequiredScope:  ScopeTransfer,
		IdempotencyKey: idempotencyKey,
		Fingerprint:    fingerprint,
		// Payer/recipient resolution runs here, inside the locked
		// transaction, so a RECIPIENT_NOT_FOUND from a stale handle or
		// not-yet-created account is reserved against the idempotency
		// key like any other posting failure, instead of short-circuiting
		// before reservation and leaving a retry free to re-resolve and
		// observe a different outcome.
		Operation: func(ctx context.Context, tx Store, _ map[AccountID]Account) ([]byte, error) {
			payerAccount, err := tx.GetAccountByWalletCurrency(ctx, payerWalletID, currency)
			if err != nil {
				return nil, WrapError("transfer", "payer_account", "not_found", ErrRecipientNotFound)
			}
			recipientAccount, err := resolveRecipient(ctx, tx, recipient, currency)
			if err != nil {
				return nil, err
			}
			locked, err := lockAccountsAscending(ctx, tx, payerAccount.AccountID, recipientAccount.AccountID)
			if err != nil {
				return nil, err
			}
			payer := locked[payerAccount.AccountID]
			payee := locked[recipientAccount.AccountID]
			if payer.Status == AccountStatusFrozen || payee.Status == AccountStatusFrozen {
				return nil, ErrAccountFrozen
			}
			if err := authorize(ctx, tx, identity, ScopeTransfer, payerWalletID, amount, service.spendWindowSeconds, service.now()); err != nil {
				return nil, err
			}
			available, _, err := tx.SumBuckets(ctx, payer.AccountID)
			if err != nil {
				return nil, WrapError("transfer", "sum_buckets", "store_error", err)
			}
			if !money.GreaterOrEqual(available, amount) {
				return nil, ErrInsufficientFunds
			}
			entryID := NewGeneratedEntryID()
			entry := buildTransferEntry(entryID, payerWalletID, currency, payer.AccountID, payee.AccountID, amount, referenceID, metadata, idempotencyKey, service.now())
			if err := verifyBalanced(entry); err != nil {
				return nil, err
			}
			if err := tx.InsertEntry(ctx, entry); err != nil {
				return nil, WrapError("transfer", "insert_entry", "store_error", err)
			}
			payerAccountID = payer.AccountID
			return []byte(entryID.String()), nil
		},
	}

	snapshot, err := service.execute(ctx, req)
	var entry JournalEntry
	if err == nil {
		entry, err = service.resolveEntrySnapshot(ctx, snapshot)
	}
	service.logOperation(OperationLog{
		Operation:      "transfer",
		APIKeyID:       identity.APIKeyID,
		WalletID:       payerWalletID,
		AccountID:      payerAccountID,
		EntryID:        entry.EntryID,
		AmountMinor:    amount.Int64(),
		IdempotencyKey: idempotencyKey,
		Error:          err,
	})
	if err != nil {
		return JournalEntry{}, err
	}
	return entry, nil
}

// resolveEntrySnapshot decodes an executor snapshot produced by an
// operation that returns an entry id, re-reading the full entry.
func (service *Service) resolveEntrySnapshot(ctx context.Context, snapshot []byte) (JournalEntry, error) {
	if snapshot == nil {
		return JournalEntry{}, nil
	}
	entryID, idErr := NewEntryID(string(snapshot))
	if idErr != nil {
		return JournalEntry{}, WrapError("resolve_entry_snapshot", "entry_id", "invalid", idErr)
	}
	entry, getErr := service.store.GetEntry(ctx, entryID)
	if getErr != nil {
		return JournalEntry{}, WrapError("resolve_entry_snapshot", "entry", "store_error", getErr)
	}
	return entry, nil
}
