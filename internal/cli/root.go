package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lazypower/mem/internal/config"
	"github.com/lazypower/mem/internal/logger"
	"github.com/lazypower/mem/internal/store"
)

var (
	dbPath     string
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:           "mem",
	Short:         "Persistent memory for AI coding sessions",
	Long:          "mem records session summaries and project docs in a local SQLite store and serves them back as searchable, decaying context.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and prints any error to stderr.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "mem: %v\n", err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (default ~/.mem/mem.db, env MEM_DATABASE_PATH)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.mem/config.toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(hookCmd)
	rootCmd.AddCommand(saveCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(recentCmd)
	rootCmd.AddCommand(contextCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(promoteCmd)
	rootCmd.AddCommand(demoteCmd)
	rootCmd.AddCommand(decayCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(gainCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(suggestRulesCmd)
	rootCmd.AddCommand(sessionCmd)
}

// env is what a command needs: resolved config, a logger and an open store.
type env struct {
	cfg config.Config
	log *logger.Logger
	db  *store.DB
}

// loadConfig applies the persistent flags on top of file and environment config.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, nil
}

// openEnv loads config, builds the logger and opens the store.
// Callers must Close the result.
func openEnv() (*env, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty, File: cfg.Log.File})
	if err != nil {
		return nil, err
	}
	db, err := store.Open(cfg.Database.Path, store.WithLogger(log.Logger))
	if err != nil {
		log.Close()
		return nil, fmt.Errorf("open database: %w", err)
	}
	return &env{cfg: cfg, log: log, db: db}, nil
}

func (e *env) Close() {
	e.db.Close()
	e.log.Close()
}
