package ledger

import (
	"context"

	"github.com/coreledger/wallet-ledger/pkg/money"
)

// capturedLines extracts the payer (held, debit) and payee (available,
// credit) account ids from a capture entry's lines, and the captured
// amount.
func capturedLines(entry JournalEntry) (payer, payee AccountID, captured money.Amount, err error) {
	for _, line := range entry.Lines {
		switch {
		case line.Side == SideDebit && line.Bucket == BucketHeld:
			payer = line.AccountID
			captured = line.Amount
		case line.Side == SideCredit && line.Bucket == BucketAvailable:
			payee = line.AccountID
		}
	}
	if payer.IsZero() || payee.IsZero() {
		return AccountID{}, AccountID{}, money.Zero, WrapError("refund", "capture_entry", "malformed", ErrCaptureNotFound)
	}
	return payer, payee, captured, nil
}

// Refund reverses part or all of a capture, crediting the original
// payer and debiting the account that received the capture. A zero
// amount refunds the full amount still outstanding against the capture
// (the captured amount minus what has already been refunded).
func (service *Service) Refund(ctx context.Context, identity CallerIdentity, captureEntryID EntryID, amount money.Amount, idempotencyKey IdempotencyKey, fingerprint string) (Refund, error) {
	req := executionRequest{
		Identity:       identity,
		RequiredScope:  ScopeRefund,
		IdempotencyKey: idempotencyKey,
		Fingerprint:    fingerprint,
		Operation: func(ctx context.Context, tx Store, _ map[AccountID]Account) ([]byte, error) {
			captureEntry, err := tx.GetEntry(ctx, captureEntryID)
			if err != nil || captureEntry.Kind != EntryKindCapture {
				return nil, ErrCaptureNotFound
			}
			payerID, payeeID, captured, err := capturedLines(captureEntry)
			if err != nil {
				return nil, err
			}

			alreadyRefunded, err := tx.SumRefundsForCapture(ctx, captureEntryID)
			if err != nil {
				return nil, WrapError("refund", "sum_refunds", "store_error", err)
			}
			outstanding, err := money.Sub(captured, alreadyRefunded)
			if err != nil {
				return nil, WrapError("refund", "outstanding", "arithmetic", ErrArithmeticError)
			}
			refundAmount := amount
			if refundAmount.IsZero() {
				refundAmount = outstanding
			}
			if !money.GreaterOrEqual(outstanding, refundAmount) {
				return nil, ErrRefundExceedsCapture
			}

			locked, err := lockAccountsAscending(ctx, tx, payerID, payeeID)
			if err != nil {
				return nil, err
			}
			refunder := locked[payeeID]
			refundee := locked[payerID]
			if refunder.Status == AccountStatusFrozen || refundee.Status == AccountStatusFrozen {
				return nil, ErrAccountFrozen
			}

			available, _, err := tx.SumBuckets(ctx, refunder.AccountID)
			if err != nil {
				return nil, WrapError("refund", "sum_buckets", "store_error", err)
			}
			if !money.GreaterOrEqual(available, refundAmount) {
				return nil, ErrInsufficientFunds
			}

			entryID := NewGeneratedEntryID()
			entry := buildRefundEntry(entryID, identity.WalletID, captureEntry.Currency, refunder.AccountID, refundee.AccountID, refundAmount, captureEntryID, idempotencyKey, service.now())
			if err := verifyBalanced(entry); err != nil {
				return nil, err
			}
			if err := tx.InsertEntry(ctx, entry); err != nil {
				return nil, WrapError("refund", "insert_entry", "store_error", err)
			}

			refundID := NewGeneratedRefundID()
			refund := Refund{
				RefundID:      refundID,
				CaptureEntry:  captureEntryID,
				Amount:        refundAmount,
				Status:        RefundStatusPosted,
				CreatingEntry: entryID,
				CreatedAt:     service.now(),
			}
			if err := tx.PutRefund(ctx, refund); err != nil {
				return nil, WrapError("refund", "put_refund", "store_error", err)
			}
			return []byte(refundID.String()), nil
		},
	}

	snapshot, err := service.execute(ctx, req)
	var refund Refund
	if err == nil {
		refund, err = service.resolveRefundSnapshot(ctx, snapshot)
	}
	service.logOperation(OperationLog{
		Operation:      "refund",
		APIKeyID:       identity.APIKeyID,
		EntryID:        captureEntryID,
		RefundID:       refund.RefundID,
		AmountMinor:    amount.Int64(),
		IdempotencyKey: idempotencyKey,
		Error:          err,
	})
	if err != nil {
		return Refund{}, err
	}
	return refund, nil
}

func (service *Service) resolveRefundSnapshot(ctx context.Context, snapshot []byte) (Refund, error) {
	if snapshot == nil {
		return Refund{}, nil
	}
	refundID, idErr := NewRefundID(string(snapshot))
	if idErr != nil {
		return Refund{}, WrapError("resolve_refund_snapshot", "refund_id", "invalid", idErr)
	}
	refund, getErr := service.store.GetRefund(ctx, refundID)
	if getErr != nil {
		return Refund{}, WrapError("resolve_refund_snapshot", "refund", "store_error", getErr)
	}
	return refund, nil
}
