package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, filepath.Join("data", "famtree.db"), cfg.Storage.DatabasePath())
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "famtree.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
storage:
  data_dir: /var/lib/famtree
log:
  level: DEBUG
  format: json
tree:
  max_depth: 4
`), 0o600))
	t.Setenv("FAMTREE_MAX_DEPTH", "6")
	t.Setenv("FAMTREE_DATABASE", ":memory:")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/famtree", cfg.Storage.DataDir)
	assert.Equal(t, "persons.csv", cfg.Storage.PersonsFile, "unset keys keep defaults")
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 6, cfg.Tree.MaxDepth)
	assert.Equal(t, ":memory:", cfg.Storage.DatabasePath())
}

func TestLoad_Invalid(t *testing.T) {
	t.Run("amqp without url", func(t *testing.T) {
		t.Setenv("FAMTREE_NOTIFIER", "amqp")
		_, err := Load("")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Config.Notifier.URL")
	})
	t.Run("unknown log format", func(t *testing.T) {
		t.Setenv("FAMTREE_LOG_FORMAT", "xml")
		_, err := Load("")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Config.Log.Format (oneof)")
	})
	t.Run("bad depth", func(t *testing.T) {
		t.Setenv("FAMTREE_MAX_DEPTH", "deep")
		_, err := Load("")
		require.Error(t, err)
	})
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		require.Error(t, err)
	})
}
