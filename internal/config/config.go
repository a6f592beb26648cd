// internal/config/config.go
package config

import (
	"fmt"
	"path/filepath"
)

// Config is the root configuration for reflectd.
//
// Core packages receive this struct (or a sub-struct) at construction and
// never resolve paths or read the environment themselves. Environment and
// home-directory resolution happens only in the loader and the CLI layer.
type Config struct {
	Storage   StorageConfig   `koanf:"storage"`
	Promotion PromotionConfig `koanf:"promotion"`
	Meta      MetaConfig      `koanf:"meta"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// StorageConfig holds durable storage locations.
type StorageConfig struct {
	// Root is the base directory for all reflectd state.
	Root string `koanf:"root"`

	// LedgerPath is the SQLite database holding learnings and promotions.
	LedgerPath string `koanf:"ledger_path"`

	// GlobalFile is the global knowledge file promotions append to.
	GlobalFile string `koanf:"global_file"`

	// BackupDir receives timestamped copies of GlobalFile before appends.
	BackupDir string `koanf:"backup_dir"`
}

// PromotionConfig holds promotion policy knobs.
type PromotionConfig struct {
	// Threshold is the number of distinct repositories a learning must be
	// seen in before it is eligible for promotion to global scope.
	Threshold int `koanf:"threshold"`
}

// MetaConfig holds feedback scoring (meta-learning) settings.
type MetaConfig struct {
	// Dir holds the feedback log and the cached pattern score snapshot.
	Dir string `koanf:"dir"`

	// MinSamples is the minimum feedback count per pattern before scores
	// influence confidence adjustments.
	MinSamples int `koanf:"min_samples"`
}

// LoggingConfig holds logger settings exposed through the config file.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Validate checks the configuration for unusable values.
func (c *Config) Validate() error {
	if c.Storage.Root == "" {
		return fmt.Errorf("storage.root cannot be empty")
	}
	if c.Storage.LedgerPath == "" {
		return fmt.Errorf("storage.ledger_path cannot be empty")
	}
	if c.Storage.GlobalFile == "" {
		return fmt.Errorf("storage.global_file cannot be empty")
	}
	if c.Promotion.Threshold < 1 {
		return fmt.Errorf("promotion.threshold must be at least 1, got %d", c.Promotion.Threshold)
	}
	if c.Meta.MinSamples < 1 {
		return fmt.Errorf("meta.min_samples must be at least 1, got %d", c.Meta.MinSamples)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

// applyDefaults sets default values for missing configuration fields.
// Paths default relative to the storage root so a single root override
// relocates all state.
func applyDefaults(cfg *Config, home string) {
	if cfg.Storage.Root == "" {
		cfg.Storage.Root = filepath.Join(home, ".config", "reflectd")
	}
	if cfg.Storage.LedgerPath == "" {
		cfg.Storage.LedgerPath = filepath.Join(cfg.Storage.Root, "learnings.db")
	}
	if cfg.Storage.GlobalFile == "" {
		cfg.Storage.GlobalFile = filepath.Join(cfg.Storage.Root, "global.md")
	}
	if cfg.Storage.BackupDir == "" {
		cfg.Storage.BackupDir = filepath.Join(cfg.Storage.Root, "backups")
	}
	if cfg.Promotion.Threshold == 0 {
		cfg.Promotion.Threshold = 2
	}
	if cfg.Meta.Dir == "" {
		cfg.Meta.Dir = filepath.Join(cfg.Storage.Root, "meta")
	}
	if cfg.Meta.MinSamples == 0 {
		cfg.Meta.MinSamples = 5
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}
