//go:build integration

package pgstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/coreledger/wallet-ledger/pkg/ledger"
	"github.com/coreledger/wallet-ledger/pkg/money"
)

func setupTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("wallet_ledger_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate postgres container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatalf("open pool: %v", err)
	}
	t.Cleanup(pool.Close)

	schema, err := os.ReadFile("schema.sql")
	if err != nil {
		t.Fatalf("read schema.sql: %v", err)
	}
	if _, err := pool.Exec(ctx, string(schema)); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return pool
}

func seedFundedAccount(t *testing.T, ctx context.Context, store *Store, currency money.Currency, availableMinor int64) (ledger.WalletID, ledger.AccountID) {
	t.Helper()
	walletID := ledger.NewGeneratedWalletID()
	accountID := ledger.NewGeneratedAccountID()
	if err := store.CreateWallet(ctx, ledger.Wallet{WalletID: walletID, CreatedAt: time.Now()}); err != nil {
		t.Fatalf("create wallet: %v", err)
	}
	if err := store.CreateAccount(ctx, ledger.Account{
		AccountID: accountID,
		WalletID:  walletID,
		Currency:  currency,
		Type:      ledger.AccountTypeUser,
		Status:    ledger.AccountStatusActive,
		CreatedAt: time.Now(),
	}); err != nil {
		t.Fatalf("create account: %v", err)
	}
	if availableMinor > 0 {
		fundingWalletID := ledger.NewGeneratedWalletID()
		fundingAccountID := ledger.NewGeneratedAccountID()
		if err := store.CreateWallet(ctx, ledger.Wallet{WalletID: fundingWalletID, CreatedAt: time.Now()}); err != nil {
			t.Fatalf("create funding wallet: %v", err)
		}
		if err := store.CreateAccount(ctx, ledger.Account{
			AccountID: fundingAccountID,
			WalletID:  fundingWalletID,
			Currency:  currency,
			Type:      ledger.AccountTypeSystem,
			Status:    ledger.AccountStatusActive,
			CreatedAt: time.Now(),
		}); err != nil {
			t.Fatalf("create funding account: %v", err)
		}
		amount, err := money.NewPositiveAmount(availableMinor)
		if err != nil {
			t.Fatalf("seed amount: %v", err)
		}
		entry := ledger.JournalEntry{
			EntryID:     ledger.NewGeneratedEntryID(),
			Kind:        ledger.EntryKindTransfer,
			InitiatorID: fundingWalletID,
			Currency:    currency,
			CreatedAt:   time.Now(),
			Lines: []ledger.JournalLine{
				{AccountID: fundingAccountID, Side: ledger.SideDebit, Amount: amount, Bucket: ledger.BucketAvailable},
				{AccountID: accountID, Side: ledger.SideCredit, Amount: amount, Bucket: ledger.BucketAvailable},
			},
		}
		entry.Lines[0].EntryID = entry.EntryID
		entry.Lines[1].EntryID = entry.EntryID
		if err := store.InsertEntry(ctx, entry); err != nil {
			t.Fatalf("seed funding entry: %v", err)
		}
	}
	return walletID, accountID
}

func TestPgstoreTransferMovesFundsBetweenAccounts(t *testing.T) {
	ctx := context.Background()
	pool := setupTestPool(t)
	store := New(pool)

	usd, err := money.NewCurrency("USD")
	if err != nil {
		t.Fatalf("currency: %v", err)
	}

	payerWallet, _ := seedFundedAccount(t, ctx, store, usd, 10000)
	payeeWallet, _ := seedFundedAccount(t, ctx, store, usd, 0)

	service, err := ledger.NewService(store, time.Now)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	identity := ledger.CallerIdentity{
		APIKeyID: mustAPIKeyIDFor(t, "integration-key"),
		WalletID: payerWallet,
		Scopes:   map[ledger.Scope]bool{ledger.ScopeTransfer: true, ledger.ScopeRead: true},
	}
	amount, err := money.NewPositiveAmount(2500)
	if err != nil {
		t.Fatalf("amount: %v", err)
	}
	idemKey, err := ledger.NewIdempotencyKey("pgstore-transfer-1")
	if err != nil {
		t.Fatalf("idempotency key: %v", err)
	}

	_, err = service.Transfer(ctx, identity, payerWallet, usd, payeeWallet.String(), amount, "", nil, idemKey, "fp-1")
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}

	payerBalance, err := service.Balance(ctx, identity, payerWallet, usd)
	if err != nil {
		t.Fatalf("payer balance: %v", err)
	}
	if payerBalance.Available.Int64() != 7500 {
		t.Fatalf("expected payer available 7500, got %d", payerBalance.Available.Int64())
	}

	payeeIdentity := identity
	payeeIdentity.WalletID = payeeWallet
	payeeBalance, err := service.Balance(ctx, payeeIdentity, payeeWallet, usd)
	if err != nil {
		t.Fatalf("payee balance: %v", err)
	}
	if payeeBalance.Available.Int64() != 2500 {
		t.Fatalf("expected payee available 2500, got %d", payeeBalance.Available.Int64())
	}
}

func TestPgstoreTransferIdempotentReplayAcrossConnections(t *testing.T) {
	ctx := context.Background()
	pool := setupTestPool(t)
	store := New(pool)

	usd, err := money.NewCurrency("USD")
	if err != nil {
		t.Fatalf("currency: %v", err)
	}

	payerWallet, _ := seedFundedAccount(t, ctx, store, usd, 5000)
	payeeWallet, _ := seedFundedAccount(t, ctx, store, usd, 0)

	service, err := ledger.NewService(store, time.Now)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	identity := ledger.CallerIdentity{
		APIKeyID: mustAPIKeyIDFor(t, "integration-key-2"),
		WalletID: payerWallet,
		Scopes:   map[ledger.Scope]bool{ledger.ScopeTransfer: true},
	}
	amount, err := money.NewPositiveAmount(1000)
	if err != nil {
		t.Fatalf("amount: %v", err)
	}
	idemKey, err := ledger.NewIdempotencyKey("pgstore-transfer-replay")
	if err != nil {
		t.Fatalf("idempotency key: %v", err)
	}

	first, err := service.Transfer(ctx, identity, payerWallet, usd, payeeWallet.String(), amount, "", nil, idemKey, "fp-1")
	if err != nil {
		t.Fatalf("first transfer: %v", err)
	}
	second, err := service.Transfer(ctx, identity, payerWallet, usd, payeeWallet.String(), amount, "", nil, idemKey, "fp-1")
	if err != nil {
		t.Fatalf("replayed transfer: %v", err)
	}
	if first.EntryID.String() != second.EntryID.String() {
		t.Fatalf("expected the replay to return the original entry, got %q vs %q", first.EntryID.String(), second.EntryID.String())
	}
}

func mustAPIKeyIDFor(t *testing.T, raw string) ledger.APIKeyID {
	t.Helper()
	id, err := ledger.NewAPIKeyID(raw)
	if err != nil {
		t.Fatalf("api key id: %v", err)
	}
	return id
}
