package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"pumpguard/internal/domain"
	"pumpguard/internal/observability"
	"pumpguard/internal/storage"
)

func migrateCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := observability.NewLogger(cfg.LogLevel, cfg.LogPretty)

	stores, err := openStores(c.Context, cfg, logger)
	if err != nil {
		return err
	}
	stores.Close()
	logger.Info().Str("backend", cfg.StorageBackend).Msg("migrations applied")
	return nil
}

// withStores opens the configured backend quietly for a read-only command.
func withStores(c *cli.Context, fn func(ctx context.Context, s storage.Stores) error) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	stores, err := openStores(c.Context, cfg, zerolog.Nop())
	if err != nil {
		return err
	}
	defer stores.Close()
	return fn(c.Context, stores)
}

func tokensCommand(c *cli.Context) error {
	return withStores(c, func(ctx context.Context, s storage.Stores) error {
		tokens, err := s.Tokens.RecentTokens(ctx, c.Int("limit"))
		if err != nil {
			return fmt.Errorf("recent tokens: %w", err)
		}
		renderTokens(os.Stdout, tokens)
		return nil
	})
}

func alertsCommand(c *cli.Context) error {
	return withStores(c, func(ctx context.Context, s storage.Stores) error {
		list, err := s.Alerts.Recent(ctx, c.Int("limit"))
		if err != nil {
			return fmt.Errorf("recent alerts: %w", err)
		}
		renderAlerts(os.Stdout, list)
		return nil
	})
}

func whalesCommand(c *cli.Context) error {
	return withStores(c, func(ctx context.Context, s storage.Stores) error {
		list, err := s.Wallets.GetWhales(ctx)
		if err != nil {
			return fmt.Errorf("whales: %w", err)
		}
		renderWhales(os.Stdout, list)
		return nil
	})
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	t := tablewriter.NewWriter(w)
	t.SetHeader(header)
	t.SetAutoWrapText(false)
	t.SetBorder(false)
	return t
}

func renderTokens(w io.Writer, tokens []*domain.TokenRecord) {
	t := newTable(w, "Created", "Symbol", "Name", "Mint", "Creator", "Liquidity SOL", "Status")
	for _, tok := range tokens {
		status := color.GreenString("live")
		if tok.IsRugged {
			status = color.RedString("rugged: %s", tok.RugReason)
		}
		t.Append([]string{
			formatMs(tok.CreatedAt),
			tok.Symbol,
			tok.Name,
			tok.Mint,
			observability.Abbrev(tok.Creator),
			strconv.FormatFloat(tok.InitialLiquidity, 'f', 2, 64),
			status,
		})
	}
	t.Render()
}

func renderAlerts(w io.Writer, list []*domain.Alert) {
	t := newTable(w, "ID", "Time", "Severity", "Kind", "Title", "Mint")
	for _, a := range list {
		t.Append([]string{
			strconv.FormatUint(a.ID, 10),
			formatMs(a.CreatedAt),
			severity(a.Severity),
			string(a.Kind),
			a.Title,
			a.Mint,
		})
	}
	t.Render()
}

func renderWhales(w io.Writer, list []*domain.MonitoredWallet) {
	t := newTable(w, "Address", "Label", "Volume SOL", "First seen", "Last active")
	for _, wal := range list {
		t.Append([]string{
			wal.Address,
			wal.Label,
			strconv.FormatFloat(wal.TotalVolume, 'f', 2, 64),
			formatMs(wal.FirstSeen),
			formatMs(wal.LastActivity),
		})
	}
	t.Render()
}

func severity(s domain.Severity) string {
	switch s {
	case domain.SeverityCritical:
		return color.New(color.FgRed, color.Bold).Sprint(s)
	case domain.SeverityHigh:
		return color.RedString(string(s))
	case domain.SeverityMedium:
		return color.YellowString(string(s))
	default:
		return string(s)
	}
}

func formatMs(ms int64) string {
	if ms <= 0 {
		return "-"
	}
	return time.UnixMilli(ms).UTC().Format("2006-01-02 15:04:05")
}
