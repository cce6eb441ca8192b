package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/erazemk/izposoja/internal/app"
	"github.com/erazemk/izposoja/internal/config"
	"github.com/erazemk/izposoja/internal/errs"
	"github.com/erazemk/izposoja/internal/logging"
)

var (
	configPath string
	dbPath     string
	remoteURL  string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", errs.Message(err))
		if errs.NeedsEndpointPrompt(err) {
			fmt.Fprintln(os.Stderr, "The service could not be reached. Check the address with 'izposoja endpoint <url>' or switch to 'izposoja mode local'.")
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "izposoja",
	Short:         "Equipment lending client with offline support",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "izposoja.yaml", "configuration file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "local database path (overrides config)")
	rootCmd.PersistentFlags().StringVar(&remoteURL, "remote", "", "service base URL (overrides config)")
}

// loadConfig reads the configuration and applies flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}
	if remoteURL != "" {
		cfg.Remote.BaseURL = remoteURL
	}
	return cfg, nil
}

// openApp sets up logging and opens the client. The returned function
// closes both.
func openApp(ctx context.Context) (*app.App, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	closeLog, err := logging.Setup(logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	})
	if err != nil {
		return nil, nil, err
	}

	a, err := app.Open(ctx, cfg, app.Options{Logger: slog.Default()})
	if err != nil {
		closeLog()
		return nil, nil, err
	}
	return a, func() {
		if err := a.Close(); err != nil {
			slog.Error("closing client", "error", err)
		}
		closeLog()
	}, nil
}

// withApp runs fn with an open client. The context is canceled on
// SIGINT or SIGTERM.
func withApp(fn func(ctx context.Context, a *app.App) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, closeApp, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer closeApp()

	err = fn(ctx, a)
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}
