package main

import (
	"context"
	"crypto/rand"
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/erazemk/izposoja/internal/db"
	"github.com/erazemk/izposoja/internal/devserver"
	"github.com/erazemk/izposoja/internal/jobs"
	"github.com/erazemk/izposoja/internal/logging"
	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/store"
)

func main() {
	fs := flag.NewFlagSet("izposoja-devserver", flag.ContinueOnError)

	var dbPath string
	fs.StringVar(&dbPath, "db", "izposoja-server.sqlite3", "")
	fs.StringVar(&dbPath, "d", "izposoja-server.sqlite3", "")

	var addr string
	fs.StringVar(&addr, "addr", ":8080", "")
	fs.StringVar(&addr, "a", ":8080", "")

	var adminContact string
	fs.StringVar(&adminContact, "admin", "admin@localhost", "")

	var logPath string
	fs.StringVar(&logPath, "log", "", "")
	fs.StringVar(&logPath, "l", "", "")

	var sweep string
	fs.StringVar(&sweep, "sweep", jobs.DefaultSweepSchedule, "")

	fs.Usage = func() {
		fmt.Fprint(os.Stdout, `Usage: izposoja-devserver [flags]

Runs a development instance of the lending service.

Flags:
  -d, -db <path>          SQLite database path (default: izposoja-server.sqlite3)
  -a, -addr <host:port>   listen address (default: :8080)
  -admin <contact>        admin login on first run (default: admin@localhost)
  -l, -log <path>         log file path, rotated (default: stdout/stderr only)
  -sweep <schedule>       overdue sweep schedule, empty to disable (default: @every 5m)
  -h, -help               show this help and exit
`)
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "unexpected argument: %s\n", fs.Arg(0))
		fs.Usage()
		os.Exit(1)
	}

	closeLog, err := logging.Setup(logging.Options{File: logPath, MaxSizeMB: 10, MaxBackups: 3})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	database, err := db.Open(dbPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := db.Migrate(database); err != nil {
		slog.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}
	slog.Info("database ready", "path", dbPath)

	ctx := context.Background()
	st := store.New(database, slog.Default())
	srv, err := devserver.New(ctx, st, devserver.Options{Logger: slog.Default()})
	if err != nil {
		slog.Error("failed to set up server", "error", err)
		os.Exit(1)
	}

	if err := bootstrapAdmin(ctx, srv, adminContact); err != nil {
		slog.Error("failed to create admin account", "error", err)
		os.Exit(1)
	}

	if sweep != "" {
		sweeper, err := jobs.NewSweeper(srv, sweep, slog.Default())
		if err != nil {
			slog.Error("invalid sweep schedule", "error", err)
			os.Exit(1)
		}
		sweeper.Start()
		defer sweeper.Stop()
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           devserver.LoggingMiddleware(slog.Default(), srv),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-quit
		slog.Info("shutdown signal received", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}()

	slog.Info("server started", "addr", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped, closing database")
}

// bootstrapAdmin creates the first administrator when the service has no
// users and prints its generated password.
func bootstrapAdmin(ctx context.Context, srv *devserver.Server, contact string) error {
	users, err := srv.Store().ListUsers(ctx, "")
	if err != nil {
		return err
	}
	if len(users) > 0 {
		return nil
	}

	password, err := generatePassword(16)
	if err != nil {
		return fmt.Errorf("generating password: %w", err)
	}
	u, err := srv.CreateUser(ctx, model.User{
		Name:    "Admin",
		Contact: contact,
		Role:    model.RoleAdmin,
	}, password)
	if err != nil {
		return err
	}

	fmt.Println("Admin account created:")
	fmt.Printf("  Login:    %s\n", u.Contact)
	fmt.Printf("  Password: %s\n", password)
	fmt.Println()
	fmt.Println("Save this password, it cannot be recovered.")
	fmt.Println()
	return nil
}

// generatePassword creates a random password of the given length.
func generatePassword(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%&*"
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}
