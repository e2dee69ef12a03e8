package httpapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/coreledger/wallet-ledger/internal/authn"
	"github.com/coreledger/wallet-ledger/internal/observability"
	"github.com/coreledger/wallet-ledger/pkg/ledger"
)

// RouterConfig names the cross-cutting dependencies NewRouter wires
// into every route.
type RouterConfig struct {
	Service        *ledger.Service
	Validator      authn.Validator
	Metrics        *observability.Metrics
	AllowedOrigins []string
	// BalanceCache, if non-nil, front-runs Handler.getBalance's store read.
	BalanceCache balanceCache
}

// NewRouter builds the authenticated wallet-ledger API surface. Health
// and metrics are served separately by internal/opsserver, so a load
// balancer probe or a Prometheus scrape never has to pass through the
// CORS/auth middleware stack here.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Origin", "Accept", "Authorization", idempotencyHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	router.Use(metricsMiddleware(cfg.Metrics))

	handler := NewHandler(cfg.Service)
	if cfg.BalanceCache != nil {
		handler = handler.WithBalanceCache(cfg.BalanceCache)
	}

	api := router.Group("/api")
	api.Use(requireAuth(cfg.Validator))

	api.GET("/wallets/:wallet_id/accounts/:currency/balance", handler.getBalance)
	api.GET("/wallets/:wallet_id/accounts/:currency/transactions", handler.listTransactions)
	api.POST("/transfers", handler.createTransfer)
	api.POST("/holds", handler.createHold)
	api.POST("/holds/:hold_id/capture", handler.captureHold)
	api.POST("/holds/:hold_id/release", handler.releaseHold)
	api.POST("/intents", handler.createIntent)
	api.POST("/intents/:intent_id/pay", handler.payIntent)
	api.POST("/refunds", handler.createRefund)

	admin := api.Group("/admin")
	admin.POST("/wallets", handler.createWallet)
	admin.PUT("/wallets/:wallet_id/handle", handler.setHandle)
	admin.POST("/wallets/:wallet_id/accounts", handler.createAccount)
	admin.POST("/accounts/:account_id/freeze", handler.freezeAccount)
	admin.POST("/accounts/:account_id/unfreeze", handler.unfreezeAccount)

	return router
}
