package httpapi

import (
	"errors"
	"net/http"

	"github.com/coreledger/wallet-ledger/pkg/ledger"
	"github.com/coreledger/wallet-ledger/pkg/money"
)

// AppError is the wire shape of every error response this adapter sends.
type AppError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *AppError) Error() string { return e.Message }

var (
	errMissingIdempotencyKey = &AppError{http.StatusBadRequest, "MISSING_IDEMPOTENCY_KEY", "Idempotency-Key header is required"}
	errMalformedBody         = &AppError{http.StatusBadRequest, "MALFORMED_BODY", "request body is not valid JSON"}
	errMissingToken          = &AppError{http.StatusUnauthorized, "MISSING_TOKEN", "Authorization header required"}
	errInvalidToken          = &AppError{http.StatusUnauthorized, "INVALID_TOKEN", "token is invalid or expired"}
	errInternal              = &AppError{http.StatusInternalServerError, "INTERNAL_ERROR", "an unexpected error occurred"}
)

// mapError translates a ledger/money domain error into the AppError the
// client sees. Order matters: more specific sentinels are checked before
// the generic fallbacks they would otherwise also match via errors.Is.
func mapError(err error) *AppError {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ledger.ErrForbiddenScope):
		return &AppError{http.StatusForbidden, "FORBIDDEN_SCOPE", err.Error()}
	case errors.Is(err, ledger.ErrLimitExceeded):
		return &AppError{http.StatusTooManyRequests, "SPEND_LIMIT_EXCEEDED", err.Error()}
	case errors.Is(err, ledger.ErrIdempotencyConflict):
		return &AppError{http.StatusConflict, "IDEMPOTENCY_CONFLICT", "idempotency key reused with a different request body"}
	case errors.Is(err, ledger.ErrIdempotencyInProgress):
		return &AppError{http.StatusConflict, "IDEMPOTENCY_IN_PROGRESS", "a request with this idempotency key is still in flight"}
	case errors.Is(err, ledger.ErrIdempotencyReplayFailed):
		return &AppError{http.StatusConflict, "IDEMPOTENCY_REPLAY_FAILED", "a prior request with this idempotency key failed and cannot be retried with a new outcome"}
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return &AppError{http.StatusUnprocessableEntity, "INSUFFICIENT_FUNDS", err.Error()}
	case errors.Is(err, ledger.ErrAccountFrozen):
		return &AppError{http.StatusUnprocessableEntity, "ACCOUNT_FROZEN", err.Error()}
	case errors.Is(err, ledger.ErrHoldNotActive):
		return &AppError{http.StatusConflict, "HOLD_NOT_ACTIVE", err.Error()}
	case errors.Is(err, ledger.ErrHoldExpired):
		return &AppError{http.StatusConflict, "HOLD_EXPIRED", err.Error()}
	case errors.Is(err, ledger.ErrIntentExpired):
		return &AppError{http.StatusConflict, "INTENT_EXPIRED", err.Error()}
	case errors.Is(err, ledger.ErrIntentAlreadyPaid):
		return &AppError{http.StatusConflict, "INTENT_ALREADY_PAID", err.Error()}
	case errors.Is(err, ledger.ErrIntentCancelled):
		return &AppError{http.StatusUnprocessableEntity, "INTENT_CANCELLED", err.Error()}
	case errors.Is(err, ledger.ErrSelfPayForbidden):
		return &AppError{http.StatusUnprocessableEntity, "SELF_PAY_FORBIDDEN", err.Error()}
	case errors.Is(err, ledger.ErrRefundExceedsCapture):
		return &AppError{http.StatusUnprocessableEntity, "REFUND_EXCEEDS_CAPTURE", err.Error()}
	case errors.Is(err, ledger.ErrCaptureNotFound):
		return &AppError{http.StatusNotFound, "CAPTURE_NOT_FOUND", err.Error()}
	case errors.Is(err, ledger.ErrRecipientNotFound):
		return &AppError{http.StatusNotFound, "RECIPIENT_NOT_FOUND", err.Error()}
	case errors.Is(err, money.ErrCurrencyMismatch), errors.Is(err, ledger.ErrCurrencyMismatch):
		return &AppError{http.StatusUnprocessableEntity, "CURRENCY_MISMATCH", err.Error()}
	case errors.Is(err, money.ErrUnknownCurrency):
		return &AppError{http.StatusBadRequest, "INVALID_CURRENCY", err.Error()}
	case errors.Is(err, money.ErrNotPositive), errors.Is(err, money.ErrInvalidAmount), errors.Is(err, money.ErrTooManyDecimals):
		return &AppError{http.StatusBadRequest, "INVALID_AMOUNT", err.Error()}
	case errors.Is(err, ledger.ErrValidation):
		return &AppError{http.StatusBadRequest, "VALIDATION_FAILED", err.Error()}
	case errors.Is(err, ledger.ErrTimeout):
		return &AppError{http.StatusGatewayTimeout, "TIMEOUT", "the operation did not complete before its deadline"}
	case errors.Is(err, ledger.ErrTransientConflict):
		return &AppError{http.StatusServiceUnavailable, "TRY_AGAIN", "the operation could not complete under contention, retry with the same idempotency key"}
	default:
		return errInternal
	}
}
