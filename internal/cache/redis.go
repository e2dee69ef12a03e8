// Package cache implements a non-authoritative, cache-aside acceleration
// layer for balance lookups. Every value it serves is derivable from the
// journal at any time; a cache miss or a flushed instance never changes
// the answer, only its latency.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/coreledger/wallet-ledger/pkg/ledger"
	"github.com/coreledger/wallet-ledger/pkg/money"
)

// Config names the redis instance backing the cache.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// NewClient dials redis and confirms connectivity with a bounded ping,
// matching how the rest of this domain's dependencies fail fast at
// startup rather than lazily on first use.
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("cache: connect to redis: %w", err)
	}
	return client, nil
}

// BalanceCache caches ledger.Balance results keyed by (walletID, currency).
type BalanceCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewBalanceCache(client *redis.Client, ttl time.Duration) *BalanceCache {
	return &BalanceCache{client: client, ttl: ttl}
}

func balanceKey(walletID, currency string) string {
	return fmt.Sprintf("balance:%s:%s", walletID, currency)
}

func indexKey(walletID string) string {
	return fmt.Sprintf("balance:idx:%s", walletID)
}

type cachedBalance struct {
	AvailableMinor int64  `json:"available_minor"`
	HeldMinor      int64  `json:"held_minor"`
	TotalMinor     int64  `json:"total_minor"`
	Currency       string `json:"currency"`
}

// Get returns the cached balance for walletID/currency, if present and
// unexpired. A miss (including a redis error) reports found=false so
// the caller falls through to the authoritative store read; a cache
// outage must degrade to slow-but-correct, never to an error.
func (c *BalanceCache) Get(ctx context.Context, walletID, currency string) (ledger.Balance, bool) {
	raw, err := c.client.Get(ctx, balanceKey(walletID, currency)).Bytes()
	if err != nil {
		return ledger.Balance{}, false
	}
	var cached cachedBalance
	if err := json.Unmarshal(raw, &cached); err != nil {
		return ledger.Balance{}, false
	}
	moneyCurrency, err := money.NewCurrency(cached.Currency)
	if err != nil {
		return ledger.Balance{}, false
	}
	available, errA := money.NewAmount(cached.AvailableMinor)
	held, errH := money.NewAmount(cached.HeldMinor)
	total, errT := money.NewAmount(cached.TotalMinor)
	if errA != nil || errH != nil || errT != nil {
		return ledger.Balance{}, false
	}
	return ledger.Balance{Available: available, Held: held, Total: total, Currency: moneyCurrency}, true
}

// Set stores balance for walletID/currency and records the currency in
// that wallet's invalidation index so Invalidate can find it later
// without a currency argument.
func (c *BalanceCache) Set(ctx context.Context, walletID string, balance ledger.Balance) {
	currency := balance.Currency.String()
	raw, err := json.Marshal(cachedBalance{
		AvailableMinor: balance.Available.Int64(),
		HeldMinor:      balance.Held.Int64(),
		TotalMinor:     balance.Total.Int64(),
		Currency:       currency,
	})
	if err != nil {
		return
	}
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, balanceKey(walletID, currency), raw, c.ttl)
	pipe.SAdd(ctx, indexKey(walletID), currency)
	pipe.Expire(ctx, indexKey(walletID), c.ttl)
	_, _ = pipe.Exec(ctx)
}

// Invalidate drops every cached currency balance for walletID. Called
// whenever a committed operation may have moved that wallet's balance.
func (c *BalanceCache) Invalidate(ctx context.Context, walletID string) {
	currencies, err := c.client.SMembers(ctx, indexKey(walletID)).Result()
	if err != nil || len(currencies) == 0 {
		return
	}
	keys := make([]string, 0, len(currencies)+1)
	for _, currency := range currencies {
		keys = append(keys, balanceKey(walletID, currency))
	}
	keys = append(keys, indexKey(walletID))
	c.client.Del(ctx, keys...)
}

// LogOperation implements ledger.OperationLogger so the cache can be
// wired into the same fan-out every committed operation already reports
// to, invalidating the payer and payee wallets' cached balances after
// each successful state change. Failed operations touch no committed
// state, so they need no invalidation.
func (c *BalanceCache) LogOperation(entry ledger.OperationLog) {
	if entry.Error != nil || entry.WalletID.IsZero() {
		return
	}
	c.Invalidate(context.Background(), entry.WalletID.String())
}
