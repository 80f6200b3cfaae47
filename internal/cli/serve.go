package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mkovalchuk/ratechat/internal/audit"
	"github.com/mkovalchuk/ratechat/internal/exchange"
	"github.com/mkovalchuk/ratechat/internal/server"
)

const (
	httpShutdownTimeout = 10 * time.Second
	hubShutdownTimeout  = 5 * time.Second
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the chat server",
		Long:  "Start the WebSocket chat server. Configuration is read from the environment (and a .env file when present).",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	// A missing .env file is fine; the environment still applies.
	_ = godotenv.Load()

	cfg, err := server.NewConfigFromEnv()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	server.SetConfig(cfg)

	logger := newLogger(cfg.LogLevel)

	fetcher := exchange.NewFetcher(cfg.ExchangeAPIURL, cfg.ExchangeTimeout, logger)
	auditLog := audit.NewLogger(cfg.AuditDir, cfg.AuditFile, logger)

	hub := server.NewHub(logger)
	go hub.Run()

	dispatcher := server.NewDispatcher(hub, fetcher, auditLog, logger)
	mux := server.SetupRoutes(hub, dispatcher, logger)
	httpServer := server.CreateServer(cfg.Port, mux)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.StartServer(httpServer)
	}()
	logger.Info("server listening", "addr", cfg.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	if err := server.ShutdownServer(httpServer, httpShutdownTimeout, logger); err != nil {
		logger.Warn("http shutdown incomplete", "error", err)
	}
	if err := hub.Shutdown(hubShutdownTimeout); err != nil {
		logger.Warn("hub shutdown incomplete", "error", err)
	}
	return nil
}
