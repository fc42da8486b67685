package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CONFIG_DIR", dir)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, defaultServerAddress, cfg.ServerAddress)
	assert.Equal(t, 30, cfg.SyncInterval)
	assert.Equal(t, 4*time.Second, cfg.StatusClearAfter)
	assert.Equal(t, filepath.Join(dir, "studysync.db"), cfg.DataPath)
	assert.Equal(t, filepath.Join(dir, "token"), cfg.TokenPath)
	assert.Equal(t, "two-way", cfg.Calendar.Mode)
	assert.Equal(t, 5, cfg.Calendar.BatchSize)
	assert.True(t, cfg.IsLocal())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CONFIG_DIR", dir)

	file := filepath.Join(dir, "client.yaml")
	require.NoError(t, os.WriteFile(file, []byte("server_address: sync.example.com:443\nsync_interval_seconds: 120\n"), 0600))

	cfg, err := Load(file)
	require.NoError(t, err)

	assert.Equal(t, "sync.example.com:443", cfg.ServerAddress)
	assert.Equal(t, 120, cfg.SyncInterval)
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"bad id mode", "ID_MODE", "sequential"},
		{"bad calendar mode", "CALENDAR_MODE", "one-way"},
		{"zero interval", "SYNC_INTERVAL_SECONDS", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CONFIG_DIR", t.TempDir())
			t.Setenv(tt.key, tt.val)

			_, err := Load("")
			assert.Error(t, err)
		})
	}
}
