package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wshanks/mansel/pkg/mansel/config"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.True(t, cfg.TrackSelectionSize)
	assert.Equal(t, config.DefaultSizerQueue, cfg.SizerQueue)
	assert.False(t, cfg.WatchInvalidation)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "warn", cfg.Logging.Components["lister"])
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	configDir := filepath.Join(dir, "mansel")
	require.NoError(t, os.MkdirAll(configDir, 0o755))
	content := `
track_selection_size: false
sizer_queue: 8
watch_invalidation: true
logging:
  level: debug
  components:
    sizer: error
`
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(content), 0o644))

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.False(t, cfg.TrackSelectionSize)
	assert.Equal(t, 8, cfg.SizerQueue)
	assert.True(t, cfg.WatchInvalidation)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "error", cfg.Logging.Components["sizer"])
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("MANSEL_SIZER_QUEUE", "16")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.SizerQueue)
}

func TestWriteDefault(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	require.NoError(t, config.WriteDefault())
	configPath := filepath.Join(dir, "mansel", "config.yaml")
	require.FileExists(t, configPath)

	// Loading the written defaults round-trips.
	cfg, err := config.Load()
	require.NoError(t, err)
	assert.True(t, cfg.TrackSelectionSize)

	// A second call leaves the existing file alone.
	require.NoError(t, os.WriteFile(configPath, []byte("sizer_queue: 3\n"), 0o644))
	require.NoError(t, config.WriteDefault())
	cfg, err = config.Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.SizerQueue)
}

func TestConfigDirRespectsXDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	got, err := config.ConfigDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "mansel"), got)
}
