// Package main implements the reflect CLI for recording, analyzing,
// and promoting cross-repository learnings.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/reflectd/internal/config"
	"github.com/fyrsmithlabs/reflectd/internal/fingerprint"
	"github.com/fyrsmithlabs/reflectd/internal/ledger"
	"github.com/fyrsmithlabs/reflectd/internal/logging"
	"github.com/fyrsmithlabs/reflectd/internal/meta"
	"github.com/fyrsmithlabs/reflectd/internal/promotion"
	"github.com/fyrsmithlabs/reflectd/internal/scope"
)

var (
	// configPath overrides the default config file location
	configPath string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "reflect",
	Short: "Record, analyze, and promote cross-repository learnings",
	Long: `reflect maintains a ledger of learnings extracted from coding sessions.
Learnings are fingerprinted and deduplicated across repositories; once a
learning has been independently seen in enough repositories it can be
promoted to the global knowledge file.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/reflectd/config.yaml)")
}

// app holds the wired components a command needs. Close releases the
// ledger database.
type app struct {
	cfg      *config.Config
	logger   *logging.Logger
	store    *ledger.Store
	analyzer *scope.Analyzer
	promoter *promotion.Promoter
	scorer   *meta.Scorer
}

// newApp loads configuration and wires every component. The repository
// identity is computed once here from the working directory and
// injected; nothing downstream inspects the environment.
func newApp() (*app, error) {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return nil, err
	}
	if err := config.EnsureDirs(cfg); err != nil {
		return nil, err
	}

	level, err := logging.LevelFromString(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	logCfg := logging.NewDefaultConfig()
	logCfg.Level = level
	logCfg.Format = cfg.Logging.Format
	logger, err := logging.NewLogger(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	store, err := ledger.NewStore(cfg.Storage.LedgerPath, fingerprint.RepoID(""), logger)
	if err != nil {
		return nil, err
	}

	analyzer := scope.NewAnalyzer(store, cfg.Promotion.Threshold, logger)
	promoter := promotion.NewPromoter(store, analyzer,
		cfg.Storage.GlobalFile, cfg.Storage.BackupDir, cfg.Promotion.Threshold, logger)
	scorer := meta.NewScorer(cfg.Meta.Dir, cfg.Meta.MinSamples, logger)

	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		analyzer: analyzer,
		promoter: promoter,
		scorer:   scorer,
	}, nil
}

func (a *app) Close() {
	a.store.Close()
	a.logger.Sync()
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
