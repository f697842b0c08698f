package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/cardbook/internal/config"
	"github.com/JonMunkholm/cardbook/internal/core"
	"github.com/JonMunkholm/cardbook/internal/directory"
	"github.com/JonMunkholm/cardbook/internal/export"
	"github.com/JonMunkholm/cardbook/internal/history"
	"github.com/JonMunkholm/cardbook/internal/logging"
	"github.com/JonMunkholm/cardbook/internal/output"
	"github.com/JonMunkholm/cardbook/internal/web"
)

var envFiles []string

func main() {
	root := &cobra.Command{
		Use:           "cardbook",
		Short:         "Export CardDAV contacts to a phonebook file",
		Long:          `cardbook downloads every contact from a CardDAV server and writes a semicolon-delimited phonebook file (one row per phone number).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runExport,
	}
	root.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "Load environment from these files (default: .env)")

	root.AddCommand(&cobra.Command{
		Use:   "export",
		Short: "Run one export and exit",
		RunE:  runExport,
	})
	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Export on a schedule and serve the phonebook over HTTP",
		RunE:  runServe,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := root.ExecuteContext(ctx)
	stop()
	if err != nil {
		report(err)
		os.Exit(1)
	}
}

// report prints err for the operator: the technical error, then the mapped
// message and action when err has a known category.
func report(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	if core.IsUserFacing(err) {
		fmt.Fprintln(os.Stderr, core.FormatUserError(err))
	}
}

// app holds the wired components shared by both commands.
type app struct {
	cfg     *config.Config
	service *export.Service
	metrics *export.Metrics
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// setup loads configuration and wires the export service. Configuration
// problems are returned before any network or file activity.
func setup(ctx context.Context) (*app, error) {
	loaded, err := config.LoadEnvFiles(envFiles...)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	if len(loaded) > 0 {
		slog.Info("loaded env files", "files", loaded)
	}
	slog.Debug("configuration loaded", "config", cfg.String())

	dir, err := directory.New(directory.Config{
		URL:          cfg.CardDAV.URL,
		User:         cfg.CardDAV.User,
		Password:     cfg.CardDAV.Password,
		AddressBooks: cfg.CardDAV.AddressBooks,
		Timeout:      cfg.CardDAV.Timeout,
		RateLimit:    cfg.CardDAV.RateLimit,
		RateBurst:    cfg.CardDAV.RateBurst,
		MaxRetries:   cfg.CardDAV.MaxRetries,
		Concurrency:  cfg.CardDAV.FetchConcurrency,
	})
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg}

	var store history.Store
	if cfg.History.DatabaseURL != "" {
		pg, err := history.Connect(ctx, cfg.History.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect history database: %w", err)
		}
		a.closers = append(a.closers, pg.Close)
		store = pg
		slog.Info("run history stored in postgres")
	} else {
		store = history.NewMemoryStore(cfg.History.Limit)
	}

	metrics, err := export.NewMetrics()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.metrics = metrics

	a.service = export.NewService(dir, output.NewFileWriter(), export.Options{
		Path:             cfg.Phonebook.Path,
		LineEnding:       cfg.Phonebook.LineEnding,
		ParseConcurrency: cfg.Export.ParseConcurrency,
		MaxWait:          cfg.Export.MaxWait,
		History:          store,
		Metrics:          metrics,
	})
	return a, nil
}

func runExport(cmd *cobra.Command, _ []string) error {
	a, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.service.Export(cmd.Context(), export.TriggerCLI)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d rows for %d contacts to %s\n", res.Rows, res.Contacts, res.Path)
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	cfg := a.cfg

	server := web.NewServer(a.service, web.Options{
		Security:       cfg.Security,
		RequestTimeout: cfg.Server.RequestTimeout,
		RateLimit:      cfg.Server.RateLimit,
		HistoryLimit:   cfg.History.Limit,
		Metrics:        a.metrics.Handler(),
	})

	jobCtx, cancelJobs := context.WithCancel(ctx)
	defer cancelJobs()
	go export.NewScheduler(a.service, cfg.Export.Interval).Start(jobCtx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(cfg.Server.Addr())
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down...")
	cancelJobs()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if status := a.service.Limiter().Status(); status.Active > 0 {
		slog.Info("waiting for export to complete", "active", status.Active)
		if err := a.service.Limiter().WaitForDrain(shutdownCtx); err != nil {
			slog.Warn("export did not complete in time", "error", err)
		}
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	slog.Info("server stopped")
	return nil
}
