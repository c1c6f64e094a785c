/*
main.go - Application entry point

PURPOSE:
  The payroll-engine binary. `serve` runs the HTTP API; the other commands
  run one operation against the same database and exit, for cron jobs and
  back-office scripts.

COMMANDS:
  serve          Start the HTTP server (default)
  generate       Generate a payroll period
  finalize-day   Finalize a production day
  seed           Load a demo scenario

CONFIGURATION:
  config.toml and .env in --config-dir, then PAYROLL_* environment
  variables. --db overrides database.path. See config/config.go.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests (http.shutdown_timeout)
  3. Close database connection

EXAMPLES:
  payroll-engine serve --db ./data/payroll.db
  payroll-engine generate --name "March 2025" --from 2025-03-01 --to 2025-03-31 --overtime w1=10
  payroll-engine finalize-day --date 2025-03-03 --actor supervisor-1

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Configuration keys
*/
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/warp/payroll-engine/api"
	"github.com/warp/payroll-engine/config"
	"github.com/warp/payroll-engine/logger"
	"github.com/warp/payroll-engine/metrics"
	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/production"
	"github.com/warp/payroll-engine/slab"
	"github.com/warp/payroll-engine/store/sqlite"
)

var (
	configDir string
	dbPath    string
)

var rootCmd = &cobra.Command{
	Use:           "payroll-engine",
	Short:         "Production ledger, incentive slabs and payroll aggregation",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", ".", "directory holding config.toml and .env")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path, overrides database.path (\":memory:\" for a throwaway database)")

	rootCmd.AddCommand(serveCmd, generateCmd, finalizeDayCmd, seedCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// app is everything a command needs, built from configuration.
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	store   *sqlite.Store
	metrics *metrics.Recorder
	handler *api.Handler
}

func newApp() (*app, error) {
	cfg, err := config.Load(configDir)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	log = log.With(zap.String("app", cfg.App.Name), zap.String("env", cfg.App.Env))

	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	var rec *metrics.Recorder
	if cfg.Metrics.Enabled {
		rec = metrics.New()
	}

	runner := payroll.NewRunner(store, payroll.Config{
		Concurrency:          cfg.Payroll.Concurrency,
		RequireSalaryProfile: cfg.Payroll.RequireSalaryProfile,
	}, log, payroll.WithMetrics(rec))

	h := api.NewHandler(
		store,
		slab.NewService(store, log),
		production.NewLedger(store, log, production.WithMetrics(rec)),
		runner,
		log,
	)
	return &app{cfg: cfg, log: log, store: store, metrics: rec, handler: h}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.log.Error("close database", zap.Error(err))
	}
	_ = a.log.Sync()
}
