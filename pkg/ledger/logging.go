package ledger

// ServiceOption configures a Service instance.
type ServiceOption func(*Service)

// OperationLogger records domain-level events emitted by Service
// operations and by hold/intent state-machine transitions.
type OperationLogger interface {
	LogOperation(entry OperationLog)
}

// OperationLog describes a state-changing ledger operation.
type OperationLog struct {
	Operation      string
	APIKeyID       APIKeyID
	WalletID       WalletID
	AccountID      AccountID
	EntryID        EntryID
	HoldID         HoldID
	IntentID       IntentID
	RefundID       RefundID
	AmountMinor    int64
	IdempotencyKey IdempotencyKey
	Status         string
	Error          error
}

const (
	operationStatusOK    = "ok"
	operationStatusError = "error"
)

// WithOperationLogger wires a logger that receives a callback for every
// Service operation.
func WithOperationLogger(logger OperationLogger) ServiceOption {
	return func(service *Service) {
		service.logger = logger
	}
}

// WithRetryLimit overrides the default serialization-conflict retry
// count (default 3).
func WithRetryLimit(limit int) ServiceOption {
	return func(service *Service) {
		if limit > 0 {
			service.retryLimit = limit
		}
	}
}

// WithRetryObserver wires a callback invoked once per serialization
// conflict retry, named by the retried operation's required scope (for
// example "TRANSFER"). Used for metrics; never called on the terminal
// attempt's outcome.
func WithRetryObserver(observe func(operation string)) ServiceOption {
	return func(service *Service) {
		service.onRetry = observe
	}
}

// WithSpendWindow overrides the default rolling window used to enforce
// per-key spend ceilings (default 24h).
func WithSpendWindow(windowSeconds int64) ServiceOption {
	return func(service *Service) {
		if windowSeconds > 0 {
			service.spendWindowSeconds = windowSeconds
		}
	}
}

func (service *Service) logOperation(entry OperationLog) {
	if service.logger == nil {
		return
	}
	if entry.Status == "" {
		if entry.Error != nil {
			entry.Status = operationStatusError
		} else {
			entry.Status = operationStatusOK
		}
	}
	service.logger.LogOperation(entry)
}
