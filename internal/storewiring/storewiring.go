// Package storewiring resolves a database DSN into the ledger.Store
// port implementation that serves it, shared by ledgerd and ledgerctl
// so both binaries open storage identically.
package storewiring

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/glebarez/sqlite"
	"github.com/jackc/pgx/v5/pgxpool"
	"gorm.io/gorm"
	gormpostgres "gorm.io/driver/postgres"

	"github.com/coreledger/wallet-ledger/internal/store/gormstore"
	"github.com/coreledger/wallet-ledger/internal/store/pgstore"
	"github.com/coreledger/wallet-ledger/pkg/ledger"
)

// gormPostgresPrefix selects the gorm+postgres secondary port instead of
// the pgx-based primary one, for operator tooling that would rather not
// carry a pgx dependency. Plain postgres:// / postgresql:// DSNs still
// resolve to pgstore, the production path.
const gormPostgresPrefix = "gorm+postgres://"

// Open resolves dsn into a ledger.Store: pgstore for a postgres:// or
// postgresql:// DSN, the gorm+postgres secondary port for a
// gorm+postgres:// DSN, gormstore over sqlite for everything else. The
// returned close func releases the underlying connection(s).
func Open(ctx context.Context, dsn string) (ledger.Store, func(), error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("storewiring: connect postgres: %w", err)
		}
		return pgstore.New(pool), pool.Close, nil
	}

	if strings.HasPrefix(dsn, gormPostgresPrefix) {
		return openGormStore(gormpostgres.Open(strings.TrimPrefix(dsn, "gorm+")))
	}

	sqlitePath, err := resolveSQLitePath(dsn)
	if err != nil {
		return nil, nil, err
	}
	return openGormStore(sqlite.Open(sqlitePath))
}

func openGormStore(dialector gorm.Dialector) (ledger.Store, func(), error) {
	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, nil, fmt.Errorf("storewiring: open gorm store: %w", err)
	}
	if err := db.AutoMigrate(
		&gormstore.Wallet{}, &gormstore.Account{}, &gormstore.JournalEntry{}, &gormstore.JournalLine{},
		&gormstore.Hold{}, &gormstore.PaymentIntent{}, &gormstore.Refund{}, &gormstore.IdempotencyRecord{},
	); err != nil {
		return nil, nil, fmt.Errorf("storewiring: auto migrate: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, err
	}
	return gormstore.New(db), func() { _ = sqlDB.Close() }, nil
}

func resolveSQLitePath(dsn string) (string, error) {
	path := strings.TrimPrefix(dsn, "sqlite://")
	if path == "" {
		return "ledger.db", nil
	}
	if path == ":memory:" {
		return path, nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", err
	}
	return abs, nil
}
