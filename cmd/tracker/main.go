// Command tracker drives the dialogue state tracker: it runs live sessions
// over JSON lines, replays fixtures, inspects persisted episodes and serves
// or seeds the knowledge base.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/caochanhduong/CSE-Assistant-Server-Improve/internal/config"
	"github.com/caochanhduong/CSE-Assistant-Server-Improve/internal/kb"
	"github.com/caochanhduong/CSE-Assistant-Server-Improve/internal/logging"
	"github.com/caochanhduong/CSE-Assistant-Server-Improve/internal/tracker"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// #region root
var (
	configPath string
	envFile    string
	logLevel   string

	cfg    config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "tracker",
	Short:         "Dialogue state tracker for the CSE activity assistant",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadEnvFile(envFile); err != nil {
			return err
		}
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			loaded.Logging.Level = logLevel
		}
		cfg = loaded

		logger, err = logging.NewLogger(cfg.Logging.Level)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "dst.yaml", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the config")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")

	rootCmd.AddCommand(runCmd, replayCmd, inspectCmd, serveKBCmd, seedKBCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// #endregion root

// #region wiring
// openDatabase builds the knowledge base named by cfg. The returned close
// func is never nil.
func openDatabase(ctx context.Context, c config.KBConfig) (tracker.Database, func() error, error) {
	noop := func() error { return nil }
	switch c.Source {
	case "json":
		records, err := kb.LoadJSON(c.Path)
		if err != nil {
			return nil, noop, err
		}
		return kb.NewDatabase(records, cfg.Tracker.DefaultKey), noop, nil
	case "sqlite", "postgres":
		db, err := kb.OpenSQL(c.Source, c.DSN)
		if err != nil {
			return nil, noop, err
		}
		defer db.Close()
		records, err := kb.LoadSQL(ctx, db, c.Table)
		if err != nil {
			return nil, noop, err
		}
		return kb.NewDatabase(records, cfg.Tracker.DefaultKey), noop, nil
	case "remote":
		client, err := kb.NewClient(c.Addr)
		if err != nil {
			return nil, noop, err
		}
		return client, client.Close, nil
	}
	return nil, noop, fmt.Errorf("unknown knowledge base source %q", c.Source)
}

func newTracker(ctx context.Context) (*tracker.Tracker, func() error, error) {
	db, closeDB, err := openDatabase(ctx, cfg.KnowledgeBase)
	if err != nil {
		return nil, closeDB, err
	}
	tr, err := tracker.New(cfg.Tracker.TrackerConfig(), db, nil, logger)
	if err != nil {
		return nil, closeDB, err
	}
	return tr, closeDB, nil
}

// #endregion wiring
