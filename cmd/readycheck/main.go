package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazz-dev/readycheck/internal/apiclient"
	"github.com/hazz-dev/readycheck/internal/config"
	"github.com/hazz-dev/readycheck/internal/readiness"
	"github.com/hazz-dev/readycheck/internal/server"
	"github.com/hazz-dev/readycheck/internal/storage"
	"github.com/hazz-dev/readycheck/internal/version"
)

var cfgFile string

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "readycheck",
		Short:        "Frontend-backend readiness check",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultPath, "config file path")

	root.AddCommand(versionCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(checkCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(backendCmd())

	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "readycheck %s (commit %s, built %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}

// loadConfig reads the --config file. The default file is optional; an
// explicitly named one is not.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config") {
			return config.Default(), nil
		}
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// resolveBaseURL loads .env.local and .env, then reads API_BASE_URL.
func resolveBaseURL() (string, error) {
	if err := config.LoadEnvFiles(config.EnvFiles...); err != nil {
		return "", err
	}
	return config.ResolveBaseURL(os.Getenv)
}

type checkRecorder interface {
	InsertCheck(ctx context.Context, r readiness.Result) error
}

// newPageFactory wires the shared API client into readiness pages. Settled
// checks are written to rec when it is non-nil.
func newPageFactory(baseURL string, rec checkRecorder, logger *slog.Logger) server.PageFactory {
	client := apiclient.New(baseURL)
	check := func(ctx context.Context) (apiclient.BackendHealth, error) {
		return apiclient.CheckBackendHealth(ctx, client)
	}

	opts := []readiness.Option{
		readiness.WithSetup(func() { apiclient.SetupInterceptors(client) }),
		readiness.WithLogger(logger),
	}
	if rec != nil {
		opts = append(opts, readiness.WithOnSettled(func(r readiness.Result) {
			if err := rec.InsertCheck(context.Background(), r); err != nil {
				logger.Error("recording check", "backend_url", r.BackendURL, "error", err)
			}
		}))
	}

	return func() *readiness.Page {
		return readiness.New(baseURL, check, opts...)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the readiness page",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	logger := slog.Default()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	baseURL, err := resolveBaseURL()
	if err != nil {
		return err
	}
	logger.Info("backend resolved", "backend_url", baseURL)

	var (
		rec   checkRecorder
		store server.HistoryStore
	)
	if cfg.Storage.Path != "" {
		db, err := storage.Open(cfg.Storage.Path)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer db.Close()
		rec, store = db, db
	} else {
		logger.Info("check history disabled")
	}

	srv := server.New(newPageFactory(baseURL, rec, logger), store, logger)
	httpServer := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: srv.Router(),
	}
	return listenAndServe(httpServer, cfg.Server.ShutdownTimeout.Duration, logger)
}

func backendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backend",
		Short: "Serve a stub backend health API",
		RunE:  runBackend,
	}
}

func runBackend(cmd *cobra.Command, _ []string) error {
	logger := slog.Default()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	api := server.NewHealthAPI(cfg.Backend.Service, cfg.Backend.CORSOrigins, logger)
	httpServer := &http.Server{
		Addr:    cfg.Backend.Address,
		Handler: api.Router(),
	}
	return listenAndServe(httpServer, cfg.Server.ShutdownTimeout.Duration, logger)
}

// listenAndServe runs httpServer until SIGINT or SIGTERM, then shuts it down
// within timeout.
func listenAndServe(httpServer *http.Server, timeout time.Duration, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		return fmt.Errorf("HTTP server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run a one-off backend readiness check",
		RunE:  runCheck,
	}
}

func runCheck(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	baseURL, err := resolveBaseURL()
	if err != nil {
		return err
	}

	var rec checkRecorder
	if cfg.Storage.Path != "" {
		db, err := storage.Open(cfg.Storage.Path)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer db.Close()
		rec = db
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()
	return executeCheck(ctx, cmd.OutOrStdout(), newPageFactory(baseURL, rec, slog.Default()))
}

func statusCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print recent check history from the database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Storage.Path == "" {
				return errors.New("check history is disabled: storage.path is empty")
			}

			db, err := storage.Open(cfg.Storage.Path)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer db.Close()

			return executeStatus(cmd, db, limit)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of checks to show")
	return cmd
}
