// Package observability wires structured logging and metrics for ledgerd.
package observability

import (
	"go.uber.org/zap"

	"github.com/coreledger/wallet-ledger/pkg/ledger"
)

// NewLogger builds the process-wide zap logger. Production builds get
// JSON output; anything else gets the human-readable development
// encoder.
func NewLogger(production bool) (*zap.Logger, error) {
	if production {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// OperationLogger adapts a *zap.Logger to ledger.OperationLogger, so
// every state-changing Service call is emitted as a structured log
// line alongside its outcome.
type OperationLogger struct {
	log *zap.Logger
}

func NewOperationLogger(log *zap.Logger) OperationLogger {
	return OperationLogger{log: log}
}

func (o OperationLogger) LogOperation(entry ledger.OperationLog) {
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("status", entry.Status),
	}
	if !entry.APIKeyID.IsZero() {
		fields = append(fields, zap.String("api_key_id", entry.APIKeyID.String()))
	}
	if !entry.WalletID.IsZero() {
		fields = append(fields, zap.String("wallet_id", entry.WalletID.String()))
	}
	if !entry.AccountID.IsZero() {
		fields = append(fields, zap.String("account_id", entry.AccountID.String()))
	}
	if !entry.EntryID.IsZero() {
		fields = append(fields, zap.String("entry_id", entry.EntryID.String()))
	}
	if !entry.HoldID.IsZero() {
		fields = append(fields, zap.String("hold_id", entry.HoldID.String()))
	}
	if !entry.IntentID.IsZero() {
		fields = append(fields, zap.String("intent_id", entry.IntentID.String()))
	}
	if entry.AmountMinor != 0 {
		fields = append(fields, zap.Int64("amount_minor", entry.AmountMinor))
	}
	if !entry.IdempotencyKey.IsZero() {
		fields = append(fields, zap.String("idempotency_key", entry.IdempotencyKey.String()))
	}
	if entry.Error != nil {
		fields = append(fields, zap.Error(entry.Error))
		o.log.Error("ledger operation", fields...)
		return
	}
	o.log.Info("ledger operation", fields...)
}
