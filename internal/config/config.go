// Package config binds ledgerd's runtime configuration from flags and
// environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	flagDatabaseURL   = "database-url"
	flagListenAddr    = "listen-addr"
	flagMetricsAddr   = "metrics-addr"
	flagJWTSecret     = "jwt-secret"
	flagRedisAddr     = "redis-addr"
	flagKafkaBrokers  = "kafka-brokers"
	flagAllowedOrigin = "allowed-origins"
	flagRetryLimit    = "retry-limit"
	flagSpendWindow   = "spend-window-seconds"

	keyDatabaseURL   = "database_url"
	keyListenAddr    = "listen_addr"
	keyMetricsAddr   = "metrics_addr"
	keyJWTSecret     = "jwt_secret"
	keyRedisAddr     = "redis_addr"
	keyKafkaBrokers  = "kafka_brokers"
	keyAllowedOrigin = "allowed_origins"
	keyRetryLimit    = "retry_limit"
	keySpendWindow   = "spend_window_seconds"

	defaultListenAddr  = ":8080"
	defaultMetricsAddr = ":9090"
	defaultDatabaseURL = "sqlite:///tmp/wallet-ledger.db"
	defaultRedisAddr   = "localhost:6379"
	defaultRetryLimit  = 3
	defaultSpendWindow = 24 * time.Hour
)

// Config aggregates ledgerd's runtime settings.
type Config struct {
	DatabaseURL    string
	ListenAddr     string
	MetricsAddr    string
	JWTSecret      string
	RedisAddr      string
	KafkaBrokers   []string
	AllowedOrigins []string
	RetryLimit     int
	SpendWindow    time.Duration
}

// BindFlags registers ledgerd's flags on cmd. Call once per command.
func BindFlags(cmd *cobra.Command) {
	cmd.Flags().String(flagDatabaseURL, defaultDatabaseURL, "database connection string (postgres://... or sqlite://path)")
	cmd.Flags().String(flagListenAddr, defaultListenAddr, "HTTP listen address for the authenticated API")
	cmd.Flags().String(flagMetricsAddr, defaultMetricsAddr, "listen address for /healthz and /metrics")
	cmd.Flags().String(flagJWTSecret, "", "HMAC secret for bearer token verification")
	cmd.Flags().String(flagRedisAddr, defaultRedisAddr, "redis address for the balance cache")
	cmd.Flags().String(flagKafkaBrokers, "", "comma-separated Kafka broker addresses; empty disables event publishing")
	cmd.Flags().String(flagAllowedOrigin, "", "comma-separated CORS allowed origins")
	cmd.Flags().Int(flagRetryLimit, defaultRetryLimit, "serialization-conflict retry limit")
	cmd.Flags().Duration(flagSpendWindow, defaultSpendWindow, "rolling window for the spend-ceiling check")
}

// Load reads ledgerd's configuration from cmd's flags and the process
// environment. A flag set explicitly on the command line wins over the
// environment; the environment wins over a flag's default value.
func Load(cmd *cobra.Command) (Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	bindings := map[string]string{
		keyDatabaseURL:   flagDatabaseURL,
		keyListenAddr:    flagListenAddr,
		keyMetricsAddr:   flagMetricsAddr,
		keyJWTSecret:     flagJWTSecret,
		keyRedisAddr:     flagRedisAddr,
		keyKafkaBrokers:  flagKafkaBrokers,
		keyAllowedOrigin: flagAllowedOrigin,
		keyRetryLimit:    flagRetryLimit,
		keySpendWindow:   flagSpendWindow,
	}
	for key, flag := range bindings {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return Config{}, fmt.Errorf("config: bind %s: %w", flag, err)
		}
	}

	cfg := Config{
		DatabaseURL:    v.GetString(keyDatabaseURL),
		ListenAddr:     v.GetString(keyListenAddr),
		MetricsAddr:    v.GetString(keyMetricsAddr),
		JWTSecret:      v.GetString(keyJWTSecret),
		RedisAddr:      v.GetString(keyRedisAddr),
		KafkaBrokers:   splitCommaList(v.GetString(keyKafkaBrokers)),
		AllowedOrigins: splitCommaList(v.GetString(keyAllowedOrigin)),
		RetryLimit:     v.GetInt(keyRetryLimit),
		SpendWindow:    v.GetDuration(keySpendWindow),
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg *Config) validate() error {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return fmt.Errorf("config: database url is required")
	}
	if strings.TrimSpace(cfg.ListenAddr) == "" {
		return fmt.Errorf("config: listen addr is required")
	}
	if strings.TrimSpace(cfg.MetricsAddr) == "" {
		cfg.MetricsAddr = defaultMetricsAddr
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return fmt.Errorf("config: jwt secret is required")
	}
	if cfg.RetryLimit <= 0 {
		cfg.RetryLimit = defaultRetryLimit
	}
	if cfg.SpendWindow <= 0 {
		cfg.SpendWindow = defaultSpendWindow
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}
	return nil
}

func splitCommaList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
