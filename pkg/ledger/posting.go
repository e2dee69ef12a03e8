package ledger

import (
	"time"

	"github.com/coreledger/wallet-ledger/pkg/money"
)

// newLine is a small constructor to keep the posting tables below
// readable — every line here is built the same way.
func newLine(entryID EntryID, accountID AccountID, side LineSide, amount money.Amount, bucket Bucket) JournalLine {
	return JournalLine{
		EntryID:   entryID,
		AccountID: accountID,
		Side:      side,
		Amount:    amount,
		Bucket:    bucket,
	}
}

// buildTransferEntry implements the Transfer posting rule: debit
// payer.available, credit payee.available.
func buildTransferEntry(entryID EntryID, initiator WalletID, currency money.Currency, payer, payee AccountID, amount money.Amount, referenceID string, metadata map[string]any, idempotencyKey IdempotencyKey, now time.Time) JournalEntry {
	entry := JournalEntry{
		EntryID:        entryID,
		Kind:           EntryKindTransfer,
		InitiatorID:    initiator,
		Currency:       currency,
		ReferenceID:    referenceID,
		Metadata:       metadata,
		IdempotencyKey: idempotencyKey,
		CreatedAt:      now,
	}
	entry.Lines = []JournalLine{
		newLine(entryID, payer, SideDebit, amount, BucketAvailable),
		newLine(entryID, payee, SideCredit, amount, BucketAvailable),
	}
	return entry
}

// buildHoldEntry implements the Hold-create posting rule: debit
// payer.available, credit payer.held.
func buildHoldEntry(entryID EntryID, initiator WalletID, currency money.Currency, payer AccountID, amount money.Amount, idempotencyKey IdempotencyKey, now time.Time) JournalEntry {
	entry := JournalEntry{
		EntryID:        entryID,
		Kind:           EntryKindHold,
		InitiatorID:    initiator,
		Currency:       currency,
		IdempotencyKey: idempotencyKey,
		CreatedAt:      now,
	}
	entry.Lines = []JournalLine{
		newLine(entryID, payer, SideDebit, amount, BucketAvailable),
		newLine(entryID, payer, SideCredit, amount, BucketHeld),
	}
	return entry
}

// buildCaptureEntry implements the Hold-capture posting rule: debit
// payer.held by the captured amount, credit payee.available.
// LinkedEntryID points back to the entry that created the hold.
func buildCaptureEntry(entryID EntryID, initiator WalletID, currency money.Currency, payer, payee AccountID, captured money.Amount, holdCreatingEntry EntryID, idempotencyKey IdempotencyKey, now time.Time) JournalEntry {
	entry := JournalEntry{
		EntryID:        entryID,
		Kind:           EntryKindCapture,
		InitiatorID:    initiator,
		Currency:       currency,
		IdempotencyKey: idempotencyKey,
		LinkedEntryID:  holdCreatingEntry,
		CreatedAt:      now,
	}
	entry.Lines = []JournalLine{
		newLine(entryID, payer, SideDebit, captured, BucketHeld),
		newLine(entryID, payee, SideCredit, captured, BucketAvailable),
	}
	return entry
}

// buildReleaseEntry implements the Hold-release posting rule: debit
// payer.held by the remainder, credit payer.available.
func buildReleaseEntry(entryID EntryID, initiator WalletID, currency money.Currency, payer AccountID, remainder money.Amount, holdCreatingEntry EntryID, idempotencyKey IdempotencyKey, now time.Time) JournalEntry {
	entry := JournalEntry{
		EntryID:        entryID,
		Kind:           EntryKindRelease,
		InitiatorID:    initiator,
		Currency:       currency,
		IdempotencyKey: idempotencyKey,
		LinkedEntryID:  holdCreatingEntry,
		CreatedAt:      now,
	}
	entry.Lines = []JournalLine{
		newLine(entryID, payer, SideDebit, remainder, BucketHeld),
		newLine(entryID, payer, SideCredit, remainder, BucketAvailable),
	}
	return entry
}

// buildIntentPayEntry implements the Intent-pay posting rule: debit
// payer.available, credit intent-payee.available.
func buildIntentPayEntry(entryID EntryID, initiator WalletID, currency money.Currency, payer, payee AccountID, amount money.Amount, idempotencyKey IdempotencyKey, now time.Time) JournalEntry {
	entry := JournalEntry{
		EntryID:        entryID,
		Kind:           EntryKindIntentPay,
		InitiatorID:    initiator,
		Currency:       currency,
		IdempotencyKey: idempotencyKey,
		CreatedAt:      now,
	}
	entry.Lines = []JournalLine{
		newLine(entryID, payer, SideDebit, amount, BucketAvailable),
		newLine(entryID, payee, SideCredit, amount, BucketAvailable),
	}
	return entry
}

// buildRefundEntry implements the Refund posting rule: debit the
// capture's payee (refunder).available, credit the original payer
// (refundee).available.
func buildRefundEntry(entryID EntryID, initiator WalletID, currency money.Currency, refunder, refundee AccountID, amount money.Amount, captureEntryID EntryID, idempotencyKey IdempotencyKey, now time.Time) JournalEntry {
	entry := JournalEntry{
		EntryID:        entryID,
		Kind:           EntryKindRefund,
		InitiatorID:    initiator,
		Currency:       currency,
		IdempotencyKey: idempotencyKey,
		LinkedEntryID:  captureEntryID,
		CreatedAt:      now,
	}
	entry.Lines = []JournalLine{
		newLine(entryID, refunder, SideDebit, amount, BucketAvailable),
		newLine(entryID, refundee, SideCredit, amount, BucketAvailable),
	}
	return entry
}

// verifyBalanced is the last defense before InsertEntry: re-derives that
// debit sum equals credit sum in a single currency. Store implementations
// do not repeat this check, so this is the only balance check an entry
// gets.
func verifyBalanced(entry JournalEntry) error {
	var debitSum, creditSum money.Amount
	var err error
	for _, line := range entry.Lines {
		if line.Amount.IsZero() {
			return WrapError("posting", "line_amount", "invalid", ErrValidation)
		}
		switch line.Side {
		case SideDebit:
			debitSum, err = money.Add(debitSum, line.Amount)
		case SideCredit:
			creditSum, err = money.Add(creditSum, line.Amount)
		default:
			return WrapError("posting", "line_side", "invalid", ErrValidation)
		}
		if err != nil {
			return WrapError("posting", "sum", "arithmetic", ErrArithmeticError)
		}
	}
	if money.Compare(debitSum, creditSum) != 0 {
		return WrapError("posting", "balance", "unbalanced", ErrArithmeticError)
	}
	return nil
}
