package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	env "github.com/caarlos0/env/v11"
	"github.com/spf13/cobra"

	"github.com/coreledger/wallet-ledger/internal/authn"
	"github.com/coreledger/wallet-ledger/internal/storewiring"
	"github.com/coreledger/wallet-ledger/pkg/ledger"
	"github.com/coreledger/wallet-ledger/pkg/money"
)

// ctlConfig is ledgerctl's own small configuration surface: a
// standalone admin tool that never needs the full viper-bound Config
// ledgerd carries, just a database DSN and the signing secret for
// issue-token.
type ctlConfig struct {
	DatabaseURL string `env:"DATABASE_URL,required"`
	JWTSecret   string `env:"JWT_SECRET"`
}

func loadConfig() (ctlConfig, error) {
	cfg, err := env.ParseAs[ctlConfig]()
	if err != nil {
		return ctlConfig{}, fmt.Errorf("ledgerctl: config: %w", err)
	}
	return cfg, nil
}

// adminIdentity is the implicit caller every ledgerctl invocation acts
// as: full ADMIN scope, no spend ceiling. ledgerctl is an operator tool
// that already runs with direct database access, so it does not itself
// go through the bearer-token path httpapi enforces.
var adminIdentity = ledger.CallerIdentity{
	APIKeyID: mustAPIKeyID("ledgerctl"),
	Scopes:   map[ledger.Scope]bool{ledger.ScopeAdmin: true, ledger.ScopeRead: true},
}

func mustAPIKeyID(raw string) ledger.APIKeyID {
	id, err := ledger.NewAPIKeyID(raw)
	if err != nil {
		panic(err)
	}
	return id
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ledgerctl: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Operator CLI for the wallet ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newCreateWalletCommand(),
		newSetHandleCommand(),
		newCreateAccountCommand(),
		newFreezeCommand(),
		newUnfreezeCommand(),
		newIssueTokenCommand(),
		newSeedCommand(),
	)
	return root
}

func withService(fn func(ctx context.Context, service *ledger.Service) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()
	store, closeStore, err := storewiring.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer closeStore()
	service, err := ledger.NewService(store, func() time.Time { return time.Now().UTC() })
	if err != nil {
		return err
	}
	return fn(ctx, service)
}

func newCreateWalletCommand() *cobra.Command {
	var displayName string
	cmd := &cobra.Command{
		Use:   "create-wallet",
		Short: "Provision a new wallet",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(ctx context.Context, service *ledger.Service) error {
				wallet, err := service.CreateWallet(ctx, adminIdentity, displayName)
				if err != nil {
					return err
				}
				log.Printf("created wallet %s (%s)", wallet.WalletID, wallet.DisplayName)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&displayName, "display-name", "", "wallet display name")
	_ = cmd.MarkFlagRequired("display-name")
	return cmd
}

func newSetHandleCommand() *cobra.Command {
	var walletID, handle string
	cmd := &cobra.Command{
		Use:   "set-handle",
		Short: "Assign a wallet's @handle",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(ctx context.Context, service *ledger.Service) error {
				id, err := ledger.NewWalletID(walletID)
				if err != nil {
					return err
				}
				if err := service.SetHandle(ctx, adminIdentity, id, handle); err != nil {
					return err
				}
				log.Printf("wallet %s now @%s", walletID, handle)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&walletID, "wallet-id", "", "wallet id")
	cmd.Flags().StringVar(&handle, "handle", "", "handle, without leading @")
	_ = cmd.MarkFlagRequired("wallet-id")
	_ = cmd.MarkFlagRequired("handle")
	return cmd
}

func newCreateAccountCommand() *cobra.Command {
	var walletID, currency, accountType string
	cmd := &cobra.Command{
		Use:   "create-account",
		Short: "Provision a currency account for a wallet",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(ctx context.Context, service *ledger.Service) error {
				id, err := ledger.NewWalletID(walletID)
				if err != nil {
					return err
				}
				curr, err := money.NewCurrency(currency)
				if err != nil {
					return err
				}
				account, err := service.CreateAccount(ctx, adminIdentity, id, curr, ledger.AccountType(accountType))
				if err != nil {
					return err
				}
				log.Printf("created account %s for wallet %s in %s", account.AccountID, walletID, currency)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&walletID, "wallet-id", "", "wallet id")
	cmd.Flags().StringVar(&currency, "currency", "", "ISO currency code")
	cmd.Flags().StringVar(&accountType, "type", string(ledger.AccountTypeUser), "account type: USER or SYSTEM")
	_ = cmd.MarkFlagRequired("wallet-id")
	_ = cmd.MarkFlagRequired("currency")
	return cmd
}

func newFreezeCommand() *cobra.Command {
	return newAccountStatusCommand("freeze", "Freeze an account", func(ctx context.Context, service *ledger.Service, id ledger.AccountID) error {
		return service.FreezeAccount(ctx, adminIdentity, id)
	})
}

func newUnfreezeCommand() *cobra.Command {
	return newAccountStatusCommand("unfreeze", "Unfreeze an account", func(ctx context.Context, service *ledger.Service, id ledger.AccountID) error {
		return service.UnfreezeAccount(ctx, adminIdentity, id)
	})
}

func newAccountStatusCommand(use, short string, apply func(ctx context.Context, service *ledger.Service, id ledger.AccountID) error) *cobra.Command {
	var accountID string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(ctx context.Context, service *ledger.Service) error {
				id, err := ledger.NewAccountID(accountID)
				if err != nil {
					return err
				}
				if err := apply(ctx, service, id); err != nil {
					return err
				}
				log.Printf("%s: account %s", use, accountID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&accountID, "account-id", "", "account id")
	_ = cmd.MarkFlagRequired("account-id")
	return cmd
}

func newIssueTokenCommand() *cobra.Command {
	var apiKeyID, walletID string
	var scopes []string
	var expiry time.Duration
	cmd := &cobra.Command{
		Use:   "issue-token",
		Short: "Mint a bearer token for a caller identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.JWTSecret == "" {
				return fmt.Errorf("ledgerctl: JWT_SECRET is required to issue tokens")
			}
			keyID, err := ledger.NewAPIKeyID(apiKeyID)
			if err != nil {
				return err
			}
			identity := ledger.CallerIdentity{
				APIKeyID: keyID,
				Scopes:   make(map[ledger.Scope]bool, len(scopes)),
			}
			if walletID != "" {
				id, err := ledger.NewWalletID(walletID)
				if err != nil {
					return err
				}
				identity.WalletID = id
			}
			for _, scope := range scopes {
				identity.Scopes[ledger.Scope(scope)] = true
			}
			token, err := authn.NewIssuer(cfg.JWTSecret, expiry).Issue(identity)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().StringVar(&apiKeyID, "api-key-id", "", "caller identity's api key id")
	cmd.Flags().StringVar(&walletID, "wallet-id", "", "wallet id the token is scoped to, if any")
	cmd.Flags().StringSliceVar(&scopes, "scope", nil, "scope to grant, repeatable (READ, TRANSFER, HOLD, CAPTURE, REFUND, INTENT_CREATE, INTENT_PAY, ADMIN)")
	cmd.Flags().DurationVar(&expiry, "expiry", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("api-key-id")
	return cmd
}

func newSeedCommand() *cobra.Command {
	var count int
	var currency string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Provision a batch of demo wallets with one account each",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(ctx context.Context, service *ledger.Service) error {
				curr, err := money.NewCurrency(currency)
				if err != nil {
					return err
				}
				for i := 0; i < count; i++ {
					wallet, err := service.CreateWallet(ctx, adminIdentity, fmt.Sprintf("seed-wallet-%d", i))
					if err != nil {
						return fmt.Errorf("seed wallet %d: %w", i, err)
					}
					if _, err := service.CreateAccount(ctx, adminIdentity, wallet.WalletID, curr, ledger.AccountTypeUser); err != nil {
						return fmt.Errorf("seed account %d: %w", i, err)
					}
				}
				log.Printf("seeded %d wallets in %s", count, currency)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&count, "count", 10, "number of demo wallets to create")
	cmd.Flags().StringVar(&currency, "currency", "USD", "currency for each seeded account")
	return cmd
}
