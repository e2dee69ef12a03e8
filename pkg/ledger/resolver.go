package ledger

import (
	"context"
	"strings"

	"github.com/coreledger/wallet-ledger/pkg/money"
)

const externalRefPrefix = "ext:"

// resolveRecipient turns a caller-supplied recipient string into a
// concrete Account in the given currency. Three forms are accepted:
// a bare wallet id, "@handle", or "ext:<external-ref>". This runs
// read-only, before any account locks are taken, so its result must be
// re-validated (status, existence) once the target account is locked
// inside the transaction.
func resolveRecipient(ctx context.Context, tx Store, recipient string, currency money.Currency) (Account, error) {
	trimmed := strings.TrimSpace(recipient)
	if trimmed == "" {
		return Account{}, WrapError("resolve_recipient", "recipient", "invalid", ErrValidation)
	}

	var walletID WalletID
	switch {
	case strings.HasPrefix(trimmed, "@"):
		wallet, err := tx.GetWalletByHandle(ctx, strings.TrimPrefix(trimmed, "@"))
		if err != nil {
			return Account{}, WrapError("resolve_recipient", "handle", "not_found", ErrRecipientNotFound)
		}
		walletID = wallet.WalletID
	case strings.HasPrefix(trimmed, externalRefPrefix):
		wallet, err := tx.GetWalletByExternalRef(ctx, strings.TrimPrefix(trimmed, externalRefPrefix))
		if err != nil {
			return Account{}, WrapError("resolve_recipient", "external_ref", "not_found", ErrRecipientNotFound)
		}
		walletID = wallet.WalletID
	default:
		id, err := NewWalletID(trimmed)
		if err != nil {
			return Account{}, WrapError("resolve_recipient", "wallet_id", "invalid", ErrValidation)
		}
		walletID = id
	}

	account, err := tx.GetAccountByWalletCurrency(ctx, walletID, currency)
	if err != nil {
		return Account{}, WrapError("resolve_recipient", "account", "not_found", ErrRecipientNotFound)
	}
	if !account.Currency.Equal(currency) {
		return Account{}, WrapError("resolve_recipient", "currency", "mismatch", ErrCurrencyMismatch)
	}
	return account, nil
}
