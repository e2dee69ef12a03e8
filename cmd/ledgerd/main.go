package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/coreledger/wallet-ledger/internal/authn"
	"github.com/coreledger/wallet-ledger/internal/cache"
	"github.com/coreledger/wallet-ledger/internal/config"
	"github.com/coreledger/wallet-ledger/internal/events"
	"github.com/coreledger/wallet-ledger/internal/httpapi"
	"github.com/coreledger/wallet-ledger/internal/observability"
	"github.com/coreledger/wallet-ledger/internal/opsserver"
	"github.com/coreledger/wallet-ledger/internal/storewiring"
	"github.com/coreledger/wallet-ledger/pkg/ledger"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ledgerd: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "ledgerd",
		Short:         "Wallet ledger HTTP server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg)
		},
	}
	config.BindFlags(cmd)
	return cmd
}

func runServer(ctx context.Context, cfg config.Config) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	store, closeStore, err := storewiring.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("store open: %w", err)
	}
	defer closeStore()

	loggers := observability.FanOutLogger{observability.NewOperationLogger(logger)}

	var balanceCache *cache.BalanceCache
	if cfg.RedisAddr != "" {
		redisClient, err := cache.NewClient(ctx, cache.Config{Addr: cfg.RedisAddr})
		if err != nil {
			logger.Warn("balance cache disabled: redis unreachable", zap.Error(err))
		} else {
			balanceCache = cache.NewBalanceCache(redisClient, time.Minute)
			loggers = append(loggers, balanceCache)
		}
	}

	var closePublisher func() error
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := events.NewProducer(events.Config{Brokers: cfg.KafkaBrokers})
		if err != nil {
			logger.Warn("event publishing disabled: kafka unreachable", zap.Error(err))
		} else {
			publisher := events.NewPublisher(producer, logger, time.Now)
			loggers = append(loggers, publisher)
			closePublisher = publisher.Close
		}
	}
	if closePublisher != nil {
		defer func() { _ = closePublisher() }()
	}

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	service, err := ledger.NewService(store, func() time.Time { return time.Now().UTC() },
		ledger.WithOperationLogger(loggers),
		ledger.WithRetryLimit(cfg.RetryLimit),
		ledger.WithSpendWindow(int64(cfg.SpendWindow/time.Second)),
		ledger.WithRetryObserver(metrics.ObserveRetry),
	)
	if err != nil {
		return fmt.Errorf("service init: %w", err)
	}

	routerConfig := httpapi.RouterConfig{
		Service:        service,
		Validator:      authn.NewValidator(cfg.JWTSecret),
		Metrics:        metrics,
		AllowedOrigins: cfg.AllowedOrigins,
	}
	if balanceCache != nil {
		routerConfig.BalanceCache = balanceCache
	}
	router := httpapi.NewRouter(routerConfig)

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}
	opsHTTPServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: opsserver.New(registry),
	}

	errCh := make(chan error, 1)
	opsErrCh := make(chan error, 1)
	go func() {
		logger.Info("ledgerd listening", zap.String("listen_addr", cfg.ListenAddr))
		errCh <- httpServer.ListenAndServe()
	}()
	go func() {
		logger.Info("ledgerd ops server listening", zap.String("metrics_addr", cfg.MetricsAddr))
		opsErrCh <- opsHTTPServer.ListenAndServe()
	}()

	shutdown := func() error {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		apiErr := httpServer.Shutdown(shutdownCtx)
		opsErr := opsHTTPServer.Shutdown(shutdownCtx)
		if apiErr != nil {
			return apiErr
		}
		return opsErr
	}

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
		if err := shutdown(); err != nil {
			return err
		}
		if serveErr := <-errCh; serveErr != nil && serveErr != http.ErrServerClosed {
			return serveErr
		}
		if serveErr := <-opsErrCh; serveErr != nil && serveErr != http.ErrServerClosed {
			return serveErr
		}
		return nil
	case serveErr := <-errCh:
		_ = shutdown()
		if serveErr == http.ErrServerClosed {
			return nil
		}
		return serveErr
	case serveErr := <-opsErrCh:
		_ = shutdown()
		if serveErr == http.ErrServerClosed {
			return nil
		}
		return serveErr
	}
}
