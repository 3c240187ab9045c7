package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoadNormalizesPartialConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("database: /tmp/events.db\nweek_start: Sunday\nimport_policy: whatever\n")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "/tmp/events.db", cfg.Database)
	assert.Equal(t, "sunday", cfg.WeekStart)
	assert.True(t, cfg.SundayFirst())
	assert.Equal(t, "skip", cfg.ImportPolicy)
	assert.Equal(t, "@every 60s", cfg.NotifySchedule)
	assert.Equal(t, 5000, cfg.MaxOccurrences)
}

func TestLoadRejectsInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database: [unclosed"), 0o600))

	_, err := Load(path)

	require.Error(t, err)
}

func TestLoadEmptyPath(t *testing.T) {
	_, err := Load("")

	require.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.Timezone = "Europe/Oslo"
	cfg.ImportPolicy = "abort"

	require.NoError(t, cfg.Save(path))
	got, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestLocation(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, time.Local, cfg.Location())

	cfg.Timezone = "UTC"
	assert.Equal(t, "UTC", cfg.Location().String())

	cfg.Timezone = "Nowhere/Atlantis"
	assert.Equal(t, time.Local, cfg.Location())
}
