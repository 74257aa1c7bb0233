package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{"", zapcore.InfoLevel, false},
		{"debug", zapcore.DebugLevel, false},
		{"WARN", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"verbose", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewWritesRotatingFile(t *testing.T) {
	cfg := DefaultConfig()
	cfg.File = filepath.Join(t.TempDir(), "medrisk.log")

	logger, err := New(cfg, false)
	require.NoError(t, err)
	logger.Info("model loaded", zap.Int("trees", 3))
	logger.Debug("hidden at info level")
	_ = logger.Sync()

	payload, err := os.ReadFile(cfg.File)
	require.NoError(t, err)
	assert.Contains(t, string(payload), `"msg":"model loaded"`)
	assert.Contains(t, string(payload), `"trees":3`)
	assert.NotContains(t, string(payload), "hidden at info level")
}

func TestDebugEnablesDebugLevel(t *testing.T) {
	logger, err := New(Config{Level: "error"}, true)
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"}, false)
	assert.Error(t, err)
}

func TestComponent(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	Component(zap.New(core), "training").Info("started")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "training", entries[0].ContextMap()["component"])

	assert.NotPanics(t, func() { Component(nil, "http").Info("dropped") })
}
