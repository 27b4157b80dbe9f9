/*
main.go - Application entry point

PURPOSE:
  Builds the worktime command: the HTTP server plus maintenance commands
  that operate on the same database without starting the server.

COMMANDS:
  serve       Start the HTTP API and the integrity scheduler
  backfill    Rebuild sessions and aggregates from recorded punches
  integrity   Audit users' sessions and aggregates, read-only

CONFIGURATION:
  Settings are layered: defaults, then --config YAML, then .env, then
  WORKTIME_* variables, then flags. See config/config.go.

EXAMPLES:
  # Run with file database
  ./worktime serve --db=./data/worktime.db

  # Run with in-memory database and console logs
  ./worktime serve --db=":memory:" --log-format=console

  # Rebuild March for two users
  ./worktime backfill --user emp-001 --user emp-002 --from 2025-03-01 --to 2025-03-31

SEE ALSO:
  - cmd/server/serve.go: Server startup and graceful shutdown
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/warp/worktime-engine/config"
	"github.com/warp/worktime-engine/legal"
	"github.com/warp/worktime-engine/logging"
	"github.com/warp/worktime-engine/store/sqlite"
)

var (
	configPath string
	dbPath     string
	logLevel   string
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:   "worktime",
	Short: "Worked-time classification engine",
	Long: `Records attendance punches, classifies worked minutes into the
day, night, overtime and dominical buckets of Colombian labor law, and
serves dashboards over HTTP.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", `SQLite database path (":memory:" for in-memory)`)
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format (json, console)")

	rootCmd.AddCommand(serveCmd, backfillCmd, integrityCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app is what every command needs: settings, a logger, the rule table
// and an open store.
type app struct {
	cfg    config.Config
	logger *zap.Logger
	rules  *legal.Config
	store  *sqlite.Store
}

func (rt *app) Close() {
	if err := rt.store.Close(); err != nil {
		rt.logger.Warn("close database", zap.Error(err))
	}
	_ = rt.logger.Sync()
}

// setup loads configuration, applies flag overrides and opens the database.
func setup() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if logFormat != "" {
		cfg.LogFormat = logFormat
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}
	rules, err := cfg.Legal()
	if err != nil {
		return nil, fmt.Errorf("load legal configuration: %w", err)
	}

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}

	logger.Info("configuration loaded",
		zap.String("db", cfg.DBPath),
		zap.String("timezone", rules.Location().String()))
	return &app{cfg: cfg, logger: logger, rules: rules, store: store}, nil
}
