package ledger

import (
	"context"
	"errors"
	"sort"

	"github.com/coreledger/wallet-ledger/pkg/money"
)

// operationFunc performs the locked, authorized body of a ledger
// operation and returns the bytes to snapshot for idempotency replay.
// locked contains every account named in executionRequest.AccountsToLock,
// keyed by id, each freshly re-read under its row lock.
type operationFunc func(ctx context.Context, tx Store, locked map[AccountID]Account) ([]byte, error)

// executionRequest describes one Service operation to the executor: what
// to authorize, what to lock, and what to run once both checks pass.
type executionRequest struct {
	Identity       CallerIdentity
	RequiredScope  Scope
	DebitWalletID  WalletID // zero if this operation does not debit a wallet
	DebitAmount    money.Amount
	AccountsToLock []AccountID
	IdempotencyKey IdempotencyKey // zero to skip idempotency entirely
	Fingerprint    string
	Operation      operationFunc
}

// execute is the single entry point every Service method funnels
// through. It performs, in order: a cheap scope check, then a bounded
// retry loop around a store transaction that reserves the idempotency
// key, locks the AccountsToLock in ascending id order (deadlock
// avoidance), re-checks authorization (including the spend ceiling when
// DebitWalletID is set), runs the caller's operation, and records the
// idempotency outcome — all before the transaction commits.
func (service *Service) execute(ctx context.Context, req executionRequest) ([]byte, error) {
	if !req.Identity.HasScope(req.RequiredScope) {
		return nil, ErrForbiddenScope
	}

	lockOrder := uniqueSortedAccountIDs(req.AccountsToLock)
	hasIdempotency := !req.IdempotencyKey.IsZero()

	var lastErr error
	for attempt := 0; attempt <= service.retryLimit; attempt++ {
		var (
			snapshot  []byte
			replay    bool
			domainErr error
		)

		txErr := service.store.WithTx(ctx, func(ctx context.Context, tx Store) error {
			if hasIdempotency {
				replaySnapshot, isReplay, err := reserveIdempotencyKey(ctx, tx, req.Identity.APIKeyID, req.IdempotencyKey, req.Fingerprint)
				if err != nil {
					return err
				}
				if isReplay {
					snapshot = replaySnapshot
					replay = true
					return nil
				}
			}

			locked := make(map[AccountID]Account, len(lockOrder))
			for _, accountID := range lockOrder {
				account, err := tx.LockAccount(ctx, accountID)
				if err != nil {
					return err
				}
				locked[accountID] = account
			}

			if err := authorize(ctx, tx, req.Identity, req.RequiredScope, req.DebitWalletID, req.DebitAmount, service.spendWindowSeconds, service.now()); err != nil {
				domainErr = err
			} else {
				snapshot, domainErr = req.Operation(ctx, tx, locked)
			}

			if domainErr == nil {
				if hasIdempotency {
					if err := completeIdempotencyKey(ctx, tx, req.Identity.APIKeyID, req.IdempotencyKey, IdempotencyStatusCompleted, snapshot); err != nil {
						return err
					}
				}
				return nil
			}

			if !isTerminalPostingError(domainErr) {
				// Transient or internal failure: roll back everything,
				// including the reservation, so a retry starts fresh.
				return domainErr
			}

			if hasIdempotency {
				if err := completeIdempotencyKey(ctx, tx, req.Identity.APIKeyID, req.IdempotencyKey, IdempotencyStatusFailed, nil); err != nil {
					return err
				}
			}
			return nil
		})

		if txErr != nil {
			if errors.Is(txErr, ErrTransientConflict) {
				lastErr = txErr
				if service.onRetry != nil && attempt < service.retryLimit {
					service.onRetry(string(req.RequiredScope))
				}
				continue
			}
			return nil, txErr
		}
		if replay {
			return snapshot, nil
		}
		if domainErr != nil {
			return nil, domainErr
		}
		return snapshot, nil
	}
	return nil, WrapError("execute", "retry", "exhausted", lastErr)
}

// lockAccountsAscending locks each distinct account in accountIDs in
// ascending id order and returns them keyed by id. Operations that
// discover the accounts they need to lock only after reading a hold,
// intent, or refund (rather than upfront, via executionRequest) call
// this directly instead of relying on the executor's pre-lock pass.
func lockAccountsAscending(ctx context.Context, tx Store, accountIDs ...AccountID) (map[AccountID]Account, error) {
	ordered := uniqueSortedAccountIDs(accountIDs)
	locked := make(map[AccountID]Account, len(ordered))
	for _, accountID := range ordered {
		account, err := tx.LockAccount(ctx, accountID)
		if err != nil {
			return nil, err
		}
		locked[accountID] = account
	}
	return locked, nil
}

func uniqueSortedAccountIDs(ids []AccountID) []AccountID {
	seen := make(map[string]struct{}, len(ids))
	ordered := make([]AccountID, 0, len(ids))
	for _, id := range ids {
		if id.IsZero() {
			continue
		}
		key := id.String()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		ordered = append(ordered, id)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].String() < ordered[j].String() })
	return ordered
}
