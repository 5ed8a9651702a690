package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chrisuehlinger/invalidator/css"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigurationDefaults(t *testing.T) {
	cfg, err := LoadConfiguration("")
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, "normal", cfg.Logging.ConsoleLogger.Level)
	assert.Equal(t, "none", cfg.Logging.FileLogger.Level)
	assert.NotEmpty(t, cfg.Logging.FileLogger.Destination)
	assert.Equal(t, css.DefaultFeatureSetOptions(), cfg.Invalidation.FeatureSetOptions())
	assert.True(t, cfg.Engine.HasInvalidation)
	assert.Equal(t, 4, cfg.Engine.MaxRecalcPasses)
}

func TestLoadConfigurationOverlaysFile(t *testing.T) {
	path := writeConfig(t, `version: 1
invalidation:
  bloom_threshold: 8
engine:
  has_invalidation: false
`)
	cfg, err := LoadConfiguration(path)
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Invalidation.BloomThreshold)
	// Values absent from the file keep their defaults.
	assert.EqualValues(t, 14, cfg.Invalidation.BloomBits)
	assert.False(t, cfg.Engine.HasInvalidation)

	opts := cfg.EngineOptions()
	assert.Equal(t, 8, opts.Features.BloomThreshold)
	assert.False(t, opts.HasInvalidation)
	assert.Equal(t, 4, opts.MaxRecalcPasses)
}

func TestLoadConfigurationRejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"wrong version", "version: 2\n"},
		{"unknown key", "version: 1\nengine:\n  turbo: true\n"},
		{"zero passes", "version: 1\nengine:\n  max_recalc_passes: 0\n"},
		{"equal salts", "version: 1\ninvalidation:\n  class_salt: 7\n  id_salt: 7\n"},
		{"bad log level", "version: 1\nlogging:\n  console:\n    level: loud\n"},
		{"file log without destination", "version: 1\nlogging:\n  file:\n    level: debug\n    destination: ''\n"},
		{"not yaml", "version: [1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfiguration(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoadConfigurationMissingFile(t *testing.T) {
	_, err := LoadConfiguration(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestPrepareAndDumpRoundTrip(t *testing.T) {
	data, err := Prepare()
	require.NoError(t, err)
	require.NotEmpty(t, data)

	cfg, err := unmarshalConfig(data, &Config{}, true)
	require.NoError(t, err)

	dumped, err := Dump(cfg)
	require.NoError(t, err)
	again, err := unmarshalConfig(dumped, &Config{}, true)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoggingPrepare(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "run.log")
	conf := LoggingConfig{
		ConsoleLogger: ConsoleLoggerConfig{Level: "none"},
		FileLogger:    FileLoggerConfig{Level: "debug", Destination: dest, Mode: "overwrite"},
	}
	log, err := conf.Prepare()
	require.NoError(t, err)
	log.Debug("written to file", zap.String("k", "v"))
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
	assert.Contains(t, string(data), "invalidator")

	conf.FileLogger.Destination = filepath.Join(t.TempDir(), "missing", "run.log")
	_, err = conf.Prepare()
	assert.Error(t, err)
}
