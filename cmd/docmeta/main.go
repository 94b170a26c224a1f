package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"docmeta/internal/batch"
	"docmeta/internal/config"
	"docmeta/internal/github"
	"docmeta/internal/logging"
	"docmeta/internal/pages"
	"docmeta/internal/storage"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	rootCmd = &cobra.Command{
		Use:           "docmeta",
		Short:         "AI-generated frontmatter for documentation pages",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	configPath string
	dbPath     string
	logLevel   string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	switch {
	case err == nil:
	case errors.Is(err, batch.ErrEmptyBatch):
		fmt.Printf("✅ Nothing to do: %v\n", err)
	default:
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Path to the YAML config file")
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Path to the run ledger database (SQLite)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(createPRCmd)
	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(summarizeCmd)
	rootCmd.AddCommand(historyCmd)
}

// loadConfig reads the config file (optional when left at its default)
// and applies the persistent flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	optional := !cmd.Flags().Changed("config")
	cfg, err := config.LoadConfig(configPath, optional)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if dbPath != "" {
		cfg.Storage.Path = dbPath
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, nil
}

// setup loads config, validates it for stage and builds the logger.
func setup(cmd *cobra.Command, stage config.Stage) (*config.Config, *zap.Logger, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(stage); err != nil {
		return nil, nil, err
	}
	logger, err := setupLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	cmd.SetContext(logging.WithLogger(cmd.Context(), logger))
	return cfg, logger, nil
}

func newHosting(cfg *config.Config) *github.Client {
	return github.NewClient(cfg.GitHub.Owner, cfg.GitHub.Repo, cfg.GitHub.Token, github.WithBaseURL(cfg.GitHub.BaseURL))
}

func newFilter(cfg *config.Config) (pages.Filter, error) {
	return pages.NewFilter(cfg.Pages.Dir, cfg.Pages.Include, cfg.Pages.Exclude)
}

// openStore opens the run ledger. An empty path disables it.
func openStore(cfg *config.Config) (*storage.SQLiteStore, error) {
	if cfg.Storage.Path == "" {
		return nil, nil
	}
	if dir := filepath.Dir(cfg.Storage.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create ledger directory: %w", err)
		}
	}
	store, err := storage.NewSQLiteStore(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return store, nil
}

func readBatch(path string) (batch.Batch, error) {
	b, err := batch.ReadFile(path)
	if err != nil {
		return nil, err
	}
	fmt.Printf("📄 Read %d documents from %s\n", len(b), path)
	return b, b.RequireNonEmpty()
}

func setupLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.New(cfg.Log.Level, cfg.Log.Format)
}
