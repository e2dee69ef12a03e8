package ledger

import (
	"bytes"
	"context"
	"errors"
)

// failedReplaySnapshot marks a COMPLETED-as-FAILED idempotency record
// whose operation never produced a real snapshot. Replaying such a
// record must surface ErrIdempotencyReplayFailed rather than falling
// through to the caller's success path with an empty snapshot.
var failedReplaySnapshot = []byte("\x00idempotency:failed")

// reserveIdempotencyKey wraps Store.IdempotencyReserve with the
// reserve/replay/conflict decision table, translating the store's raw
// outcome into either a snapshot to replay or a terminal error the
// caller surfaces without ever reaching the posting logic.
func reserveIdempotencyKey(ctx context.Context, store Store, apiKeyID APIKeyID, key IdempotencyKey, fingerprint string) (replaySnapshot []byte, isReplay bool, err error) {
	reservation, err := store.IdempotencyReserve(ctx, apiKeyID, key, fingerprint)
	if err != nil {
		return nil, false, WrapError("idempotency", "reserve", "store_error", err)
	}
	switch reservation.Outcome {
	case IdempotencyOutcomeFresh:
		return nil, false, nil
	case IdempotencyOutcomeReplay:
		if bytes.Equal(reservation.Snapshot, failedReplaySnapshot) {
			return nil, false, ErrIdempotencyReplayFailed
		}
		return reservation.Snapshot, true, nil
	case IdempotencyOutcomeConflictInProgress:
		return nil, false, ErrIdempotencyInProgress
	case IdempotencyOutcomeConflictMismatch:
		return nil, false, ErrIdempotencyConflict
	default:
		return nil, false, WrapError("idempotency", "reserve", "unknown_outcome", ErrStoreError)
	}
}

// completeIdempotencyKey records the final response snapshot for a
// reserved key. Only client-input and state-precondition failures are
// snapshotted as FAILED; transient failures must not call this at all,
// leaving the key as if never reserved once the transaction rolls back.
// A FAILED completion with no caller-supplied snapshot is recorded with
// failedReplaySnapshot so a later replay reports the failure instead of
// manufacturing an empty success.
func completeIdempotencyKey(ctx context.Context, store Store, apiKeyID APIKeyID, key IdempotencyKey, status IdempotencyStatus, snapshot []byte) error {
	if status == IdempotencyStatusFailed && snapshot == nil {
		snapshot = failedReplaySnapshot
	}
	if err := store.IdempotencyComplete(ctx, apiKeyID, key, status, snapshot); err != nil {
		return WrapError("idempotency", "complete", "store_error", err)
	}
	return nil
}

// isTerminalPostingError reports whether err is a client-input or
// state-precondition error that should be snapshotted as a FAILED
// idempotency outcome (so a retry with the same key replays the same
// failure), as opposed to a transient error that must not be cached.
func isTerminalPostingError(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case isAny(err,
		ErrValidation, ErrCurrencyMismatch, ErrRecipientNotFound,
		ErrInsufficientFunds, ErrAccountFrozen, ErrHoldNotActive, ErrHoldExpired,
		ErrIntentExpired, ErrIntentAlreadyPaid, ErrIntentCancelled, ErrRefundExceedsCapture,
		ErrCaptureNotFound, ErrSelfPayForbidden):
		return true
	default:
		return false
	}
}

func isAny(err error, targets ...error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}
