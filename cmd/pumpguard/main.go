package main

import (
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"pumpguard/internal/config"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("pumpguard")
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "pumpguard",
		Usage: "pump.fun launch, rug and whale watcher",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "rpc-url", Usage: "Solana RPC HTTP endpoint (SOLANA_RPC_URL)"},
			&cli.StringFlag{Name: "ws-url", Usage: "Solana WebSocket endpoint (SOLANA_WS_URL)"},
			&cli.StringFlag{Name: "storage", Aliases: []string{"s"}, Usage: "Storage backend: memory, sqlite or postgres (STORAGE_BACKEND)"},
			&cli.StringFlag{Name: "sqlite-path", Usage: "SQLite database file (SQLITE_PATH)"},
			&cli.StringFlag{Name: "postgres-dsn", Usage: "PostgreSQL connection string (POSTGRES_DSN)"},
			&cli.StringFlag{Name: "clickhouse-dsn", Usage: "ClickHouse DSN for movements and probes (CLICKHOUSE_DSN)"},
			&cli.StringFlag{Name: "watchlist", Aliases: []string{"w"}, Usage: "YAML watchlist file (WATCHLIST_FILE)"},
			&cli.StringFlag{Name: "metrics-addr", Usage: "Prometheus metrics listen address, empty to disable (METRICS_ADDR)"},
			&cli.StringFlag{Name: "log-level", Usage: "Log level (LOG_LEVEL)"},
			&cli.BoolFlag{Name: "log-pretty", Usage: "Human-readable console logs (LOG_PRETTY)"},
		},
		Action: runCommand,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Subscribe to the program and watch launches, rugs and whales",
				Action: runCommand,
			},
			{
				Name:   "migrate",
				Usage:  "Apply storage migrations and exit",
				Action: migrateCommand,
			},
			{
				Name:   "tokens",
				Usage:  "List recently detected tokens",
				Flags:  []cli.Flag{limitFlag(20)},
				Action: tokensCommand,
			},
			{
				Name:   "alerts",
				Usage:  "List recent alerts",
				Flags:  []cli.Flag{limitFlag(20)},
				Action: alertsCommand,
			},
			{
				Name:   "whales",
				Usage:  "List known whale wallets",
				Action: whalesCommand,
			},
		},
	}
}

func limitFlag(def int) cli.Flag {
	return &cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: def, Usage: "Maximum rows to print"}
}

// loadConfig reads the environment, then lets global flags override it.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg := config.Load()

	if c.IsSet("rpc-url") {
		cfg.RPCURL = c.String("rpc-url")
	}
	if c.IsSet("ws-url") {
		cfg.WSURL = c.String("ws-url")
	}
	if c.IsSet("storage") {
		cfg.StorageBackend = strings.ToLower(c.String("storage"))
	}
	if c.IsSet("sqlite-path") {
		cfg.SQLitePath = c.String("sqlite-path")
	}
	if c.IsSet("postgres-dsn") {
		cfg.PostgresDSN = c.String("postgres-dsn")
	}
	if c.IsSet("clickhouse-dsn") {
		cfg.ClickHouseDSN = c.String("clickhouse-dsn")
	}
	if c.IsSet("watchlist") {
		cfg.WatchlistFile = c.String("watchlist")
	}
	if c.IsSet("metrics-addr") {
		cfg.MetricsAddr = c.String("metrics-addr")
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if c.IsSet("log-pretty") {
		cfg.LogPretty = c.Bool("log-pretty")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
