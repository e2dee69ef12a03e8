package ledger

import (
	"context"

	"github.com/coreledger/wallet-ledger/pkg/money"
)

// computeBalance derives (available, held, total) for an account from
// journal lines visible inside tx. Balances are never stored; this is
// the only path that produces one.
func computeBalance(ctx context.Context, tx Store, account Account) (Balance, error) {
	available, held, err := tx.SumBuckets(ctx, account.AccountID)
	if err != nil {
		return Balance{}, WrapError("balance", "sum_buckets", "store_error", err)
	}
	total, err := money.Add(available, held)
	if err != nil {
		return Balance{}, WrapError("balance", "total", "arithmetic", ErrArithmeticError)
	}
	return Balance{
		Available: available,
		Held:      held,
		Total:     total,
		Currency:  account.Currency,
	}, nil
}
