// Package config loads process configuration from the environment and an optional watchlist file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Default endpoints and program.
const (
	DefaultRPCURL    = "https://api.mainnet-beta.solana.com"
	DefaultWSURL     = "wss://api.mainnet-beta.solana.com"
	DefaultProgramID = "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"
)

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Config holds all runtime settings.
type Config struct {
	// Chain
	RPCURL    string
	WSURL     string
	ProgramID string

	// Telegram
	TelegramToken  string
	TelegramChatID string

	// Launch filters
	MinLiquiditySOL    float64
	MaxLiquiditySOL    float64 // 0 = no upper bound
	MaxAlertsPerMinute int     // 0 = unlimited
	AlertNewTokens     bool
	CreatorBlacklist   []string
	CreatorWhitelist   []string

	// Whales
	WhaleThresholdSOL   float64
	AlertOnAccumulation bool
	AlertOnDump         bool
	AccumulationWindow  time.Duration
	MinTxForPattern     int

	// Lifecycle
	LPRemovalPercent      float64
	SuspiciousSellPercent float64
	MaxDevSellPercent     float64
	DevSellAlert          bool

	// Scheduling
	HealthCheckInterval     time.Duration
	PatternAnalysisInterval time.Duration

	// Storage
	StorageBackend string
	SQLitePath     string
	PostgresDSN    string
	ClickHouseDSN  string

	// Process
	MetricsAddr   string
	LogLevel      string
	LogPretty     bool
	WatchlistFile string
}

// Load reads .env (if present) and the process environment.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		RPCURL:    envOr("SOLANA_RPC_URL", DefaultRPCURL),
		WSURL:     envOr("SOLANA_WS_URL", DefaultWSURL),
		ProgramID: envOr("PUMP_PROGRAM_ID", DefaultProgramID),

		TelegramToken:  os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID: os.Getenv("TELEGRAM_CHAT_ID"),

		MinLiquiditySOL:    envFloat("MIN_LIQUIDITY_SOL", 1.0),
		MaxLiquiditySOL:    envFloat("MAX_LIQUIDITY_SOL", 0),
		MaxAlertsPerMinute: envInt("MAX_ALERTS_PER_MINUTE", 10),
		AlertNewTokens:     envBool("ALERT_NEW_TOKENS"),
		CreatorBlacklist:   splitTrim(os.Getenv("CREATOR_BLACKLIST")),
		CreatorWhitelist:   splitTrim(os.Getenv("CREATOR_WHITELIST")),

		WhaleThresholdSOL:   envFloat("WHALE_THRESHOLD_SOL", 50),
		AlertOnAccumulation: envBool("ALERT_ON_ACCUMULATION"),
		AlertOnDump:         envBool("ALERT_ON_DUMP"),
		AccumulationWindow:  time.Duration(envInt("ACCUMULATION_WINDOW_SECONDS", 3600)) * time.Second,
		MinTxForPattern:     envInt("MIN_TRANSACTIONS_FOR_PATTERN", 3),

		LPRemovalPercent:      envFloat("LP_REMOVAL_THRESHOLD_PERCENT", 50),
		SuspiciousSellPercent: envFloat("SUSPICIOUS_SELL_PERCENT", 10),
		MaxDevSellPercent:     envFloat("MAX_DEV_SELL_PERCENT", 20),
		DevSellAlert:          envBool("DEV_WALLET_SELL_ALERT"),

		HealthCheckInterval:     time.Duration(envInt("HEALTH_CHECK_INTERVAL_SECONDS", 30)) * time.Second,
		PatternAnalysisInterval: time.Duration(envInt("PATTERN_ANALYSIS_INTERVAL_SECONDS", 60)) * time.Second,

		StorageBackend: strings.ToLower(envOr("STORAGE_BACKEND", BackendMemory)),
		SQLitePath:     envOr("SQLITE_PATH", "pumpguard.db"),
		PostgresDSN:    os.Getenv("POSTGRES_DSN"),
		ClickHouseDSN:  os.Getenv("CLICKHOUSE_DSN"),

		MetricsAddr:   envOr("METRICS_ADDR", ":9090"),
		LogLevel:      envOr("LOG_LEVEL", "info"),
		LogPretty:     os.Getenv("LOG_PRETTY") == "true",
		WatchlistFile: os.Getenv("WATCHLIST_FILE"),
	}
}

// TelegramEnabled reports whether both bot credentials are set.
func (c *Config) TelegramEnabled() bool {
	return c.TelegramToken != "" && c.TelegramChatID != ""
}

// Validate checks required fields and threshold ranges.
func (c *Config) Validate() error {
	var errs []error

	if c.RPCURL == "" {
		errs = append(errs, errors.New("SOLANA_RPC_URL is required"))
	}
	if c.WSURL == "" {
		errs = append(errs, errors.New("SOLANA_WS_URL is required"))
	}
	if c.ProgramID == "" {
		errs = append(errs, errors.New("PUMP_PROGRAM_ID is required"))
	}

	positive := []struct {
		name  string
		value float64
	}{
		{"WHALE_THRESHOLD_SOL", c.WhaleThresholdSOL},
		{"LP_REMOVAL_THRESHOLD_PERCENT", c.LPRemovalPercent},
		{"SUSPICIOUS_SELL_PERCENT", c.SuspiciousSellPercent},
		{"MAX_DEV_SELL_PERCENT", c.MaxDevSellPercent},
		{"ACCUMULATION_WINDOW_SECONDS", c.AccumulationWindow.Seconds()},
		{"MIN_TRANSACTIONS_FOR_PATTERN", float64(c.MinTxForPattern)},
		{"HEALTH_CHECK_INTERVAL_SECONDS", c.HealthCheckInterval.Seconds()},
		{"PATTERN_ANALYSIS_INTERVAL_SECONDS", c.PatternAnalysisInterval.Seconds()},
	}
	for _, p := range positive {
		if p.value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %v", p.name, p.value))
		}
	}

	if c.MinLiquiditySOL < 0 {
		errs = append(errs, fmt.Errorf("MIN_LIQUIDITY_SOL must not be negative, got %v", c.MinLiquiditySOL))
	}
	if c.MaxLiquiditySOL < 0 {
		errs = append(errs, fmt.Errorf("MAX_LIQUIDITY_SOL must not be negative, got %v", c.MaxLiquiditySOL))
	}
	if c.MaxAlertsPerMinute < 0 {
		errs = append(errs, fmt.Errorf("MAX_ALERTS_PER_MINUTE must not be negative, got %d", c.MaxAlertsPerMinute))
	}

	switch c.StorageBackend {
	case BackendMemory:
	case BackendSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH is required for the sqlite backend"))
		}
	case BackendPostgres:
		if c.PostgresDSN == "" {
			errs = append(errs, errors.New("POSTGRES_DSN is required for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend))
	}

	return errors.Join(errs...)
}

// helpers
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

// envBool is true unless the value is "false".
func envBool(key string) bool {
	return strings.ToLower(strings.TrimSpace(os.Getenv(key))) != "false"
}

func splitTrim(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	var result []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
