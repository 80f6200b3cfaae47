// Package cli defines the ratechat command line interface: a chat server
// (serve) and a standalone exchange-rate fetcher (fetch).
package cli

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "ratechat",
		Short:         "WebSocket chat server with an /exchange rate command",
		Long:          "ratechat serves a multi-client WebSocket chat where /exchange broadcasts historical currency exchange rates, and ships a standalone fetch command for the same data.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddCommand(
		newServeCmd(),
		newFetchCmd(),
	)

	return rootCmd
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
