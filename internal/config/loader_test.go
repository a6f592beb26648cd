package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWithFileDefaults(t *testing.T) {
	// Point at a path that does not exist: defaults apply.
	cfg, err := LoadWithFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".config", "reflectd"), cfg.Storage.Root)
	assert.Equal(t, filepath.Join(cfg.Storage.Root, "learnings.db"), cfg.Storage.LedgerPath)
	assert.Equal(t, filepath.Join(cfg.Storage.Root, "global.md"), cfg.Storage.GlobalFile)
	assert.Equal(t, filepath.Join(cfg.Storage.Root, "backups"), cfg.Storage.BackupDir)
	assert.Equal(t, 2, cfg.Promotion.Threshold)
	assert.Equal(t, 5, cfg.Meta.MinSamples)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadWithFileYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
storage:
  root: /tmp/reflectd-test
promotion:
  threshold: 3
meta:
  min_samples: 10
logging:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/reflectd-test", cfg.Storage.Root)
	// Derived paths follow the overridden root.
	assert.Equal(t, "/tmp/reflectd-test/learnings.db", cfg.Storage.LedgerPath)
	assert.Equal(t, 3, cfg.Promotion.Threshold)
	assert.Equal(t, 10, cfg.Meta.MinSamples)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
}

func TestLoadWithFileEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("promotion:\n  threshold: 3\n"), 0o600))

	t.Setenv("REFLECTD_PROMOTION_THRESHOLD", "4")
	t.Setenv("REFLECTD_STORAGE_ROOT", dir)

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)

	// Environment beats YAML.
	assert.Equal(t, 4, cfg.Promotion.Threshold)
	assert.Equal(t, dir, cfg.Storage.Root)
}

func TestLoadWithFileInvalidValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("promotion:\n  threshold: -1\n"), 0o600))

	_, err := LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "promotion.threshold")
}

func TestValidateLoggingFormat(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg, t.TempDir())
	cfg.Logging.Format = "xml"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logging.format")
}

func TestEnsureDirs(t *testing.T) {
	root := filepath.Join(t.TempDir(), "state")
	cfg := &Config{}
	applyDefaults(cfg, t.TempDir())
	cfg.Storage.Root = root
	cfg.Storage.LedgerPath = filepath.Join(root, "learnings.db")
	cfg.Storage.GlobalFile = filepath.Join(root, "global.md")
	cfg.Storage.BackupDir = filepath.Join(root, "backups")
	cfg.Meta.Dir = filepath.Join(root, "meta")

	require.NoError(t, EnsureDirs(cfg))

	for _, dir := range []string{root, cfg.Storage.BackupDir, cfg.Meta.Dir} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}
