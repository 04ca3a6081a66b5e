package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"pumpguard/internal/alerts"
	"pumpguard/internal/config"
	"pumpguard/internal/engine"
	"pumpguard/internal/observability"
	"pumpguard/internal/solana"
)

const shutdownTimeout = 30 * time.Second

func runCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := observability.NewLogger(cfg.LogLevel, cfg.LogPretty)

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stopUptime := make(chan struct{})
	defer close(stopUptime)
	go observability.UptimeTicker(10*time.Second, stopUptime)

	var current atomic.Pointer[engine.Engine]
	if cfg.MetricsAddr != "" {
		srv := metricsServer(cfg.MetricsAddr, func() bool {
			e := current.Load()
			return e != nil && e.Running()
		})
		go func() {
			logger.Info().Str("addr", cfg.MetricsAddr).Msg("metrics server listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("metrics server")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	stores, err := openStores(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer stores.Close()

	watchlist, err := loadWatchlist(cfg)
	if err != nil {
		return err
	}

	rpc := solana.NewHTTPClient(cfg.RPCURL, solana.WithLogger(logger))
	ws, err := solana.NewWSClient(ctx, cfg.WSURL, &solana.WSClientConfig{Logger: &logger})
	if err != nil {
		return fmt.Errorf("connect websocket: %w", err)
	}
	defer ws.Close()

	opts := engine.Options{
		Config:    cfg,
		RPC:       rpc,
		WS:        ws,
		Stores:    stores,
		Watchlist: watchlist,
		Logger:    &logger,
	}
	if cfg.TelegramEnabled() {
		b, err := alerts.NewTelegramBot(cfg.TelegramToken)
		if err != nil {
			return err
		}
		opts.Telegram = b
		logger.Info().Msg("telegram delivery enabled")
	}

	eng, err := engine.New(ctx, opts)
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}
	current.Store(eng)
	if err := eng.Start(ctx); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}

	runErr := make(chan error, 1)
	go func() { runErr <- eng.Wait() }()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-runErr:
		if err != nil {
			eng.Stop()
			return fmt.Errorf("ingestion: %w", err)
		}
	}
	stop()

	// a second signal or a stuck shutdown forces exit
	force := make(chan os.Signal, 1)
	signal.Notify(force, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(force)

	stopped := make(chan struct{})
	go func() {
		eng.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case sig := <-force:
		logger.Warn().Str("signal", sig.String()).Msg("forced shutdown")
		os.Exit(1)
	case <-time.After(shutdownTimeout):
		logger.Warn().Dur("timeout", shutdownTimeout).Msg("graceful shutdown timed out")
		os.Exit(1)
	}

	printSummary(logger, eng.Stats())
	return nil
}

func loadWatchlist(cfg *config.Config) (*config.Watchlist, error) {
	wl := &config.Watchlist{}
	if cfg.WatchlistFile != "" {
		loaded, err := config.LoadWatchlist(cfg.WatchlistFile)
		if err != nil {
			return nil, err
		}
		wl = loaded
	}
	wl.Merge(cfg)
	return wl, nil
}

// metricsServer serves /metrics and /health. Health is 503 until the engine runs.
func metricsServer(addr string, healthy func() bool) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if !healthy() {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("starting"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
}

func printSummary(logger zerolog.Logger, s engine.Stats) {
	logger.Info().
		Uint64("events", s.Runner.Received).
		Uint64("tokens_detected", s.Launches.TokensDetected).
		Uint64("tokens_filtered", s.Launches.TokensFiltered).
		Uint64("tokens_watched", s.Lifecycle.TokensWatched).
		Uint64("rugs", s.Lifecycle.RugsDetected).
		Uint64("whales", s.Whales.WhalesIdentified).
		Float64("whale_volume_sol", s.Whales.TotalVolumeTracked).
		Uint64("alerts", s.AlertsPublished).
		Msg("shutdown complete")
}
