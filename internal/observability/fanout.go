package observability

import "github.com/coreledger/wallet-ledger/pkg/ledger"

// FanOutLogger dispatches each operation log entry to every wired
// ledger.OperationLogger in order, so the audit logger, the balance
// cache invalidator, and the event publisher can all be wired into the
// executor's single logging hook without any of them knowing about the
// others.
type FanOutLogger []ledger.OperationLogger

func (loggers FanOutLogger) LogOperation(entry ledger.OperationLog) {
	for _, logger := range loggers {
		if logger != nil {
			logger.LogOperation(entry)
		}
	}
}
