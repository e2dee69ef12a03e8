package ledger

import (
	"context"

	"github.com/coreledger/wallet-ledger/pkg/money"
)

// CreateWallet provisions a new owner-level wallet record. Requires
// ScopeAdmin; wallets are not self-service.
func (service *Service) CreateWallet(ctx context.Context, identity CallerIdentity, displayName string) (Wallet, error) {
	if !identity.HasScope(ScopeAdmin) {
		return Wallet{}, ErrForbiddenScope
	}
	wallet := Wallet{
		WalletID:    NewGeneratedWalletID(),
		DisplayName: displayName,
		CreatedAt:   service.now(),
	}
	err := service.store.WithTx(ctx, func(ctx context.Context, tx Store) error {
		return tx.CreateWallet(ctx, wallet)
	})
	if err != nil {
		return Wallet{}, err
	}
	return wallet, nil
}

// SetHandle assigns a wallet's unique "@handle", used by the recipient
// resolver's "@handle" path. Requires ScopeAdmin.
func (service *Service) SetHandle(ctx context.Context, identity CallerIdentity, walletID WalletID, handle string) error {
	if !identity.HasScope(ScopeAdmin) {
		return ErrForbiddenScope
	}
	return service.store.WithTx(ctx, func(ctx context.Context, tx Store) error {
		return tx.SetWalletHandle(ctx, walletID, handle)
	})
}

// CreateAccount provisions a wallet's account in a currency it does not
// yet hold one for. Requires ScopeAdmin.
func (service *Service) CreateAccount(ctx context.Context, identity CallerIdentity, walletID WalletID, currency money.Currency, accountType AccountType) (Account, error) {
	if !identity.HasScope(ScopeAdmin) {
		return Account{}, ErrForbiddenScope
	}
	account := Account{
		AccountID: NewGeneratedAccountID(),
		WalletID:  walletID,
		Currency:  currency,
		Type:      accountType,
		Status:    AccountStatusActive,
		CreatedAt: service.now(),
	}
	err := service.store.WithTx(ctx, func(ctx context.Context, tx Store) error {
		return tx.CreateAccount(ctx, account)
	})
	if err != nil {
		return Account{}, err
	}
	return account, nil
}

// FreezeAccount blocks an account from participating in any further
// posting until unfrozen. Requires ScopeAdmin.
func (service *Service) FreezeAccount(ctx context.Context, identity CallerIdentity, accountID AccountID) error {
	return service.setAccountStatus(ctx, identity, "account.freeze", accountID, AccountStatusFrozen)
}

// UnfreezeAccount restores an account to ACTIVE. Requires ScopeAdmin.
func (service *Service) UnfreezeAccount(ctx context.Context, identity CallerIdentity, accountID AccountID) error {
	return service.setAccountStatus(ctx, identity, "account.unfreeze", accountID, AccountStatusActive)
}

func (service *Service) setAccountStatus(ctx context.Context, identity CallerIdentity, operation string, accountID AccountID, status AccountStatus) error {
	if !identity.HasScope(ScopeAdmin) {
		return ErrForbiddenScope
	}
	err := service.store.WithTx(ctx, func(ctx context.Context, tx Store) error {
		if _, err := tx.LockAccount(ctx, accountID); err != nil {
			return err
		}
		return tx.UpdateAccountStatus(ctx, accountID, status)
	})
	service.logOperation(OperationLog{
		Operation: operation,
		APIKeyID:  identity.APIKeyID,
		AccountID: accountID,
		Error:     err,
	})
	return err
}
