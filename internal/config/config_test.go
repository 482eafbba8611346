package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	// An explicitly named file must exist.
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 5*time.Minute, cfg.Sync.Interval)
	assert.True(t, cfg.Sync.Subscribe)
	assert.NotEmpty(t, cfg.Database.Path)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  path: /tmp/grove-test.db
log:
  level: debug
  format: json
remote:
  url: https://grove.example.com
  token: tok-123
sync:
  interval: 30s
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/grove-test.db", cfg.Database.Path)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "https://grove.example.com", cfg.Remote.URL)
	assert.Equal(t, "tok-123", cfg.Remote.Token)
	assert.Equal(t, 30*time.Second, cfg.Sync.Interval)
}

func TestLoad_RejectsBadLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: loud\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestExpandPath_Home(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "x.db"), expandPath("~/x.db"))
	assert.Equal(t, "/plain/path.db", expandPath("/plain/path.db"))
}
