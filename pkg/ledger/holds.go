package ledger

import (
	"context"
	"time"

	"github.com/coreledger/wallet-ledger/pkg/money"
)

// expireHoldIfDue lazily transitions an open hold past its expiry into
// HoldStatusExpired the first time it is touched after expiry, rather
// than relying on a background sweep.
func expireHoldIfDue(ctx context.Context, tx Store, hold Hold, now time.Time) (Hold, error) {
	if hold.Status.IsOpen() && !hold.ExpiresAt.IsZero() && now.After(hold.ExpiresAt) {
		hold.Status = HoldStatusExpired
		if err := tx.UpdateHold(ctx, hold); err != nil {
			return hold, WrapError("hold", "expire", "store_error", err)
		}
	}
	return hold, nil
}

// HoldCreate reserves amount out of the caller's available balance into
// its held bucket until captured or released.
func (service *Service) HoldCreate(ctx context.Context, identity CallerIdentity, payerWalletID WalletID, currency money.Currency, amount money.Amount, expiresAt time.Time, idempotencyKey IdempotencyKey, fingerprint string) (Hold, error) {
	if amount.IsZero() {
		return Hold{}, WrapError("hold_create", "amount", "invalid", ErrValidation)
	}

	var payerAccountID AccountID
	req := executionRequest{
		Identity:       identity,
		RequiredScope:  ScopeHold,
		IdempotencyKey: idempotencyKey,
		Fingerprint:    fingerprint,
		// Payer resolution runs inside the locked transaction, after
		// idempotency reservation, for the same replay-determinism
		// reason as Transfer.
		Operation: func(ctx context.Context, tx Store, _ map[AccountID]Account) ([]byte, error) {
			payerAccount, err := tx.GetAccountByWalletCurrency(ctx, payerWalletID, currency)
			if err != nil {
				return nil, WrapError("hold_create", "payer_account", "not_found", ErrRecipientNotFound)
			}
			locked, err := lockAccountsAscending(ctx, tx, payerAccount.AccountID)
			if err != nil {
				return nil, err
			}
			payer := locked[payerAccount.AccountID]
			if payer.Status == AccountStatusFrozen {
				return nil, ErrAccountFrozen
			}
			if err := authorize(ctx, tx, identity, ScopeHold, payerWalletID, amount, service.spendWindowSeconds, service.now()); err != nil {
				return nil, err
			}
			available, _, err := tx.SumBuckets(ctx, payer.AccountID)
			if err != nil {
				return nil, WrapError("hold_create", "sum_buckets", "store_error", err)
			}
			if !money.GreaterOrEqual(available, amount) {
				return nil, ErrInsufficientFunds
			}
			holdID := NewGeneratedHoldID()
			entryID := NewGeneratedEntryID()
			entry := buildHoldEntry(entryID, payerWalletID, currency, payer.AccountID, amount, idempotencyKey, service.now())
			if err := verifyBalanced(entry); err != nil {
				return nil, err
			}
			if err := tx.InsertEntry(ctx, entry); err != nil {
				return nil, WrapError("hold_create", "insert_entry", "store_error", err)
			}
			hold := Hold{
				HoldID:        holdID,
				PayerAccount:  payer.AccountID,
				Currency:      currency,
				Amount:        amount,
				Remaining:     amount,
				Status:        HoldStatusActive,
				ExpiresAt:     expiresAt,
				CreatedAt:     service.now(),
				CreatingEntry: entryID,
			}
			if err := tx.PutHold(ctx, hold); err != nil {
				return nil, WrapError("hold_create", "put_hold", "store_error", err)
			}
			payerAccountID = payer.AccountID
			return []byte(holdID.String()), nil
		},
	}

	snapshot, err := service.execute(ctx, req)
	var hold Hold
	if err == nil {
		hold, err = service.resolveHoldSnapshot(ctx, snapshot)
	}
	service.logOperation(OperationLog{
		Operation:      "hold_create",
		APIKeyID:       identity.APIKeyID,
		WalletID:       payerWalletID,
		AccountID:      payerAccountID,
		HoldID:         hold.HoldID,
		AmountMinor:    amount.Int64(),
		IdempotencyKey: idempotencyKey,
		Error:          err,
	})
	if err != nil {
		return Hold{}, err
	}
	return hold, nil
}

// HoldCapture settles part or all of an active hold, moving captured
// out of the hold's held bucket into payee's available balance. A zero
// captured amount captures the full remaining balance. The returned
// remaining is the hold's balance still open for capture after this
// call, zero once the hold is fully captured.
func (service *Service) HoldCapture(ctx context.Context, identity CallerIdentity, holdID HoldID, payee string, captured money.Amount, idempotencyKey IdempotencyKey, fingerprint string) (JournalEntry, money.Amount, error) {
	req := executionRequest{
		Identity:       identity,
		RequiredScope:  ScopeCapture,
		IdempotencyKey: idempotencyKey,
		Fingerprint:    fingerprint,
		Operation: func(ctx context.Context, tx Store, _ map[AccountID]Account) ([]byte, error) {
			hold, err := tx.GetHold(ctx, holdID)
			if err != nil {
				return nil, WrapError("hold_capture", "hold", "not_found", ErrHoldNotActive)
			}
			hold, err = expireHoldIfDue(ctx, tx, hold, service.now())
			if err != nil {
				return nil, err
			}
			if !hold.Status.IsOpen() {
				if hold.Status == HoldStatusExpired {
					return nil, ErrHoldExpired
				}
				return nil, ErrHoldNotActive
			}

			captureAmount := captured
			if captureAmount.IsZero() {
				captureAmount = hold.Remaining
			}
			if !money.GreaterOrEqual(hold.Remaining, captureAmount) {
				return nil, WrapError("hold_capture", "amount", "exceeds_remaining", ErrValidation)
			}

			payeeAccount, err := resolveRecipient(ctx, tx, payee, hold.Currency)
			if err != nil {
				return nil, err
			}
			locked, err := lockAccountsAscending(ctx, tx, hold.PayerAccount, payeeAccount.AccountID)
			if err != nil {
				return nil, err
			}
			payer := locked[hold.PayerAccount]
			finalPayee := locked[payeeAccount.AccountID]
			if payer.Status == AccountStatusFrozen || finalPayee.Status == AccountStatusFrozen {
				return nil, ErrAccountFrozen
			}

			entryID := NewGeneratedEntryID()
			entry := buildCaptureEntry(entryID, identity.WalletID, hold.Currency, payer.AccountID, finalPayee.AccountID, captureAmount, hold.CreatingEntry, idempotencyKey, service.now())
			if err := verifyBalanced(entry); err != nil {
				return nil, err
			}
			if err := tx.InsertEntry(ctx, entry); err != nil {
				return nil, WrapError("hold_capture", "insert_entry", "store_error", err)
			}

			remaining, err := money.Sub(hold.Remaining, captureAmount)
			if err != nil {
				return nil, WrapError("hold_capture", "remaining", "arithmetic", ErrArithmeticError)
			}
			hold.Remaining = remaining
			if hold.Remaining.IsZero() {
				hold.Status = HoldStatusCaptured
			} else {
				hold.Status = HoldStatusPartiallyCaptured
			}
			if err := tx.UpdateHold(ctx, hold); err != nil {
				return nil, WrapError("hold_capture", "update_hold", "store_error", err)
			}
			return []byte(entryID.String()), nil
		},
	}

	snapshot, err := service.execute(ctx, req)
	var entry JournalEntry
	var remaining money.Amount
	if err == nil {
		entry, err = service.resolveEntrySnapshot(ctx, snapshot)
	}
	if err == nil {
		var hold Hold
		hold, err = service.store.GetHold(ctx, holdID)
		if err != nil {
			err = WrapError("hold_capture", "hold", "store_error", err)
		}
		remaining = hold.Remaining
	}
	service.logOperation(OperationLog{
		Operation:      "hold_capture",
		APIKeyID:       identity.APIKeyID,
		HoldID:         holdID,
		EntryID:        entry.EntryID,
		AmountMinor:    captured.Int64(),
		IdempotencyKey: idempotencyKey,
		Error:          err,
	})
	if err != nil {
		return JournalEntry{}, money.Amount{}, err
	}
	return entry, remaining, nil
}

// HoldRelease returns an active or partially-captured hold's remaining
// balance to the payer's available bucket.
func (service *Service) HoldRelease(ctx context.Context, identity CallerIdentity, holdID HoldID, idempotencyKey IdempotencyKey, fingerprint string) (JournalEntry, error) {
	req := executionRequest{
		Identity:       identity,
		RequiredScope:  ScopeHold,
		IdempotencyKey: idempotencyKey,
		Fingerprint:    fingerprint,
		Operation: func(ctx context.Context, tx Store, _ map[AccountID]Account) ([]byte, error) {
			hold, err := tx.GetHold(ctx, holdID)
			if err != nil {
				return nil, WrapError("hold_release", "hold", "not_found", ErrHoldNotActive)
			}
			hold, err = expireHoldIfDue(ctx, tx, hold, service.now())
			if err != nil {
				return nil, err
			}
			if !hold.Status.IsOpen() {
				if hold.Status == HoldStatusExpired {
					return nil, ErrHoldExpired
				}
				return nil, ErrHoldNotActive
			}
			if _, err := tx.LockAccount(ctx, hold.PayerAccount); err != nil {
				return nil, WrapError("hold_release", "payer_account", "store_error", err)
			}

			remainder := hold.Remaining
			entryID := NewGeneratedEntryID()
			entry := buildReleaseEntry(entryID, identity.WalletID, hold.Currency, hold.PayerAccount, remainder, hold.CreatingEntry, idempotencyKey, service.now())
			if err := verifyBalanced(entry); err != nil {
				return nil, err
			}
			if err := tx.InsertEntry(ctx, entry); err != nil {
				return nil, WrapError("hold_release", "insert_entry", "store_error", err)
			}

			hold.Remaining = money.Zero
			hold.Status = HoldStatusReleased
			if err := tx.UpdateHold(ctx, hold); err != nil {
				return nil, WrapError("hold_release", "update_hold", "store_error", err)
			}
			return []byte(entryID.String()), nil
		},
	}

	snapshot, err := service.execute(ctx, req)
	var entry JournalEntry
	if err == nil {
		entry, err = service.resolveEntrySnapshot(ctx, snapshot)
	}
	service.logOperation(OperationLog{
		Operation:      "hold_release",
		APIKeyID:       identity.APIKeyID,
		HoldID:         holdID,
		EntryID:        entry.EntryID,
		IdempotencyKey: idempotencyKey,
		Error:          err,
	})
	if err != nil {
		return JournalEntry{}, err
	}
	return entry, nil
}

func (service *Service) resolveHoldSnapshot(ctx context.Context, snapshot []byte) (Hold, error) {
	if snapshot == nil {
		return Hold{}, nil
	}
	holdID, idErr := NewHoldID(string(snapshot))
	if idErr != nil {
		return Hold{}, WrapError("resolve_hold_snapshot", "hold_id", "invalid", idErr)
	}
	hold, getErr := service.store.GetHold(ctx, holdID)
	if getErr != nil {
		return Hold{}, WrapError("resolve_hold_snapshot", "hold", "store_error", getErr)
	}
	return hold, nil
}
