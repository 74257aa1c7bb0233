package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), *cfg)
	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, "models/model.json", cfg.Model.Artifact)
}

func TestLoadFileOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 8081
  read_timeout: 5s
log:
  level: debug
training:
  dataset: /tmp/data.csv
  workers: 4
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8081, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 15*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/tmp/data.csv", cfg.Training.Dataset)
	assert.Equal(t, 4, cfg.Training.Workers)
	assert.Equal(t, 3, cfg.Training.SearchCV)
}

func TestEnvironmentWinsOverFile(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 8081\n")
	t.Setenv("MEDRISK_SERVER_PORT", "9090")
	t.Setenv("MEDRISK_MODEL_ARTIFACT", "/srv/model.json")
	t.Setenv("MEDRISK_SERVER_ALLOWED_ORIGINS", "http://a.test,http://b.test")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "/srv/model.json", cfg.Model.Artifact)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.AllowedOrigins)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"bad port":       "server:\n  port: 70000\n",
		"bad ratio":      "training:\n  test_ratio: 1.5\n",
		"bad level":      "log:\n  level: loud\n",
		"one fold":       "training:\n  search_cv: 1\n",
		"unknown field":  "serverr:\n  port: 1\n",
		"empty artifact": "model:\n  artifact: \"\"\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}
