package ledger

import (
	"context"
	"time"

	"github.com/coreledger/wallet-ledger/pkg/money"
)

// IntentCreate registers a payee-initiated request that some payer must
// later complete with IntentPay.
func (service *Service) IntentCreate(ctx context.Context, identity CallerIdentity, payeeWalletID WalletID, currency money.Currency, amount money.Amount, expiresAt time.Time, metadata map[string]any, idempotencyKey IdempotencyKey, fingerprint string) (PaymentIntent, error) {
	if amount.IsZero() {
		return PaymentIntent{}, WrapError("intent_create", "amount", "invalid", ErrValidation)
	}

	var payeeAccountID AccountID
	req := executionRequest{
		Identity:       identity,
		RequiredScope:  ScopeIntentCreate,
		IdempotencyKey: idempotencyKey,
		Fingerprint:    fingerprint,
		// Payee resolution runs inside the locked transaction, after
		// idempotency reservation, for the same replay-determinism
		// reason as Transfer; IntentCreate never debits, so no account
		// lock or spend-ceiling check is needed here.
		Operation: func(ctx context.Context, tx Store, _ map[AccountID]Account) ([]byte, error) {
			payeeAccount, err := tx.GetAccountByWalletCurrency(ctx, payeeWalletID, currency)
			if err != nil {
				return nil, WrapError("intent_create", "payee_account", "not_found", ErrRecipientNotFound)
			}
			intentID := NewGeneratedIntentID()
			intent := PaymentIntent{
				IntentID:  intentID,
				PayeeID:   payeeAccount.AccountID,
				Currency:  currency,
				Amount:    amount,
				Status:    IntentStatusPending,
				ExpiresAt: expiresAt,
				Metadata:  metadata,
				CreatorID: payeeWalletID,
				CreatedAt: service.now(),
			}
			if err := tx.PutIntent(ctx, intent); err != nil {
				return nil, WrapError("intent_create", "put_intent", "store_error", err)
			}
			payeeAccountID = payeeAccount.AccountID
			return []byte(intentID.String()), nil
		},
	}

	snapshot, err := service.execute(ctx, req)
	var intent PaymentIntent
	if err == nil {
		intent, err = service.resolveIntentSnapshot(ctx, snapshot)
	}
	service.logOperation(OperationLog{
		Operation:      "intent_create",
		APIKeyID:       identity.APIKeyID,
		WalletID:       payeeWalletID,
		AccountID:      payeeAccountID,
		IntentID:       intent.IntentID,
		AmountMinor:    amount.Int64(),
		IdempotencyKey: idempotencyKey,
		Error:          err,
	})
	if err != nil {
		return PaymentIntent{}, err
	}
	return intent, nil
}

// IntentPay completes a pending intent by debiting payerWalletID's
// account in the intent's currency and crediting the intent's payee.
// The intent's creator may not pay their own intent.
func (service *Service) IntentPay(ctx context.Context, identity CallerIdentity, intentID IntentID, payerWalletID WalletID, idempotencyKey IdempotencyKey, fingerprint string) (JournalEntry, error) {
	req := executionRequest{
		Identity:       identity,
		RequiredScope:  ScopeIntentPay,
		IdempotencyKey: idempotencyKey,
		Fingerprint:    fingerprint,
		Operation: func(ctx context.Context, tx Store, _ map[AccountID]Account) ([]byte, error) {
			intent, err := tx.GetIntent(ctx, intentID)
			if err != nil {
				return nil, WrapError("intent_pay", "intent", "not_found", ErrIntentExpired)
			}
			if intent.Status == IntentStatusPending && !intent.ExpiresAt.IsZero() && service.now().After(intent.ExpiresAt) {
				intent.Status = IntentStatusExpired
				if err := tx.UpdateIntent(ctx, intent); err != nil {
					return nil, WrapError("intent_pay", "expire", "store_error", err)
				}
			}
			switch intent.Status {
			case IntentStatusPaid:
				return nil, ErrIntentAlreadyPaid
			case IntentStatusCancelled:
				return nil, ErrIntentCancelled
			case IntentStatusExpired:
				return nil, ErrIntentExpired
			}
			if intent.CreatorID == payerWalletID {
				return nil, ErrSelfPayForbidden
			}

			payerAccount, err := tx.GetAccountByWalletCurrency(ctx, payerWalletID, intent.Currency)
			if err != nil {
				return nil, WrapError("intent_pay", "payer_account", "not_found", ErrRecipientNotFound)
			}
			locked, err := lockAccountsAscending(ctx, tx, payerAccount.AccountID, intent.PayeeID)
			if err != nil {
				return nil, err
			}
			payer := locked[payerAccount.AccountID]
			payee := locked[intent.PayeeID]
			if payer.Status == AccountStatusFrozen || payee.Status == AccountStatusFrozen {
				return nil, ErrAccountFrozen
			}

			if err := authorize(ctx, tx, identity, ScopeIntentPay, payerWalletID, intent.Amount, service.spendWindowSeconds, service.now()); err != nil {
				return nil, err
			}

			available, _, err := tx.SumBuckets(ctx, payer.AccountID)
			if err != nil {
				return nil, WrapError("intent_pay", "sum_buckets", "store_error", err)
			}
			if !money.GreaterOrEqual(available, intent.Amount) {
				return nil, ErrInsufficientFunds
			}

			entryID := NewGeneratedEntryID()
			entry := buildIntentPayEntry(entryID, payerWalletID, intent.Currency, payer.AccountID, payee.AccountID, intent.Amount, idempotencyKey, service.now())
			if err := verifyBalanced(entry); err != nil {
				return nil, err
			}
			if err := tx.InsertEntry(ctx, entry); err != nil {
				return nil, WrapError("intent_pay", "insert_entry", "store_error", err)
			}

			intent.Status = IntentStatusPaid
			intent.PaidEntryID = entryID
			if err := tx.UpdateIntent(ctx, intent); err != nil {
				return nil, WrapError("intent_pay", "update_intent", "store_error", err)
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
		Operation:      "intent_pay",
		APIKeyID:       identity.APIKeyID,
		WalletID:       payerWalletID,
		IntentID:       intentID,
		EntryID:        entry.EntryID,
		IdempotencyKey: idempotencyKey,
		Error:          err,
	})
	if err != nil {
		return JournalEntry{}, err
	}
	return entry, nil
}

func (service *Service) resolveIntentSnapshot(ctx context.Context, snapshot []byte) (PaymentIntent, error) {
	if snapshot == nil {
		return PaymentIntent{}, nil
	}
	intentID, idErr := NewIntentID(string(snapshot))
	if idErr != nil {
		return PaymentIntent{}, WrapError("resolve_intent_snapshot", "intent_id", "invalid", idErr)
	}
	intent, getErr := service.store.GetIntent(ctx, intentID)
	if getErr != nil {
		return PaymentIntent{}, WrapError("resolve_intent_snapshot", "intent", "store_error", getErr)
	}
	return intent, nil
}
