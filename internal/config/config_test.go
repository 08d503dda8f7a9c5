package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_MinimalJSON(t *testing.T) {
	cfg, err := Parse([]byte(`{"influx": {"database": "weather"}}`), ".json")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8086", cfg.Influx.ServerURL)
	assert.Equal(t, "weather", cfg.Influx.Database)
	assert.Equal(t, "record", cfg.Influx.Measurement)
	assert.Equal(t, "single-line", cfg.Influx.LineFormat)
	assert.Equal(t, "all", cfg.Influx.ObsToUpload)
	assert.Equal(t, "archive", cfg.Influx.Binding)
	assert.True(t, cfg.Influx.AppendUnitsLabel)
	assert.True(t, cfg.Influx.AugmentRecord)
	assert.True(t, cfg.Influx.CreateDatabase)
	assert.False(t, cfg.Influx.TokenMode())

	assert.Equal(t, 3, cfg.Upload.MaxTries)
	assert.Equal(t, 5, cfg.Upload.RetryWait)
	assert.Equal(t, 60, cfg.Upload.Timeout)
	assert.Equal(t, 0, cfg.Upload.MaxBacklog)
	assert.True(t, cfg.Upload.LogSuccess)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Encoding)
	assert.Equal(t, "stdout", cfg.Log.OutputPath)
}

func TestParse_YAML(t *testing.T) {
	data := []byte(`
influx:
  host: influx.example.com
  port: 9999
  database: wx
  tags: station=A
  line_format: multi-line-dotted
  append_units_label: false
  unit_system: METRICWX
  binding: Loop
  inputs:
    outTemp:
      name: outTemp_C
      format: "%.1f"
      units: degree_C
upload:
  max_backlog: 100
  stale: 1800
  max_tries: 5
log:
  level: debug
  encoding: console
`)
	cfg, err := Parse(data, ".yaml")
	require.NoError(t, err)

	assert.Equal(t, "http://influx.example.com:9999", cfg.Influx.ServerURL)
	assert.Equal(t, "multi-line-dotted", cfg.Influx.LineFormat)
	assert.False(t, cfg.Influx.AppendUnitsLabel)
	assert.Equal(t, "loop", cfg.Influx.Binding)
	assert.Equal(t, InputConfig{Name: "outTemp_C", Format: "%.1f", Units: "degree_C"}, cfg.Influx.Inputs["outTemp"])
	assert.Equal(t, 100, cfg.Upload.MaxBacklog)
	assert.Equal(t, 5, cfg.Upload.MaxTries)
	// Options absent from the file keep their defaults.
	assert.Equal(t, 5, cfg.Upload.RetryWait)

	_, stale, retryWait, timeout := cfg.Upload.Durations()
	assert.Equal(t, 30*time.Minute, stale)
	assert.Equal(t, 5*time.Second, retryWait)
	assert.Equal(t, time.Minute, timeout)
}

func TestParse_ServerURLWins(t *testing.T) {
	cfg, err := Parse([]byte(`{"influx": {"database": "wx", "host": "ignored", "server_url": "https://influx.example.com/"}}`), ".json")
	require.NoError(t, err)
	assert.Equal(t, "https://influx.example.com", cfg.Influx.ServerURL)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"missing database", `{"influx": {}}`},
		{"token without org", `{"influx": {"database": "wx", "token": "t"}}`},
		{"bad line format", `{"influx": {"database": "wx", "line_format": "csv"}}`},
		{"bad obs_to_upload", `{"influx": {"database": "wx", "obs_to_upload": "some"}}`},
		{"none without inputs", `{"influx": {"database": "wx", "obs_to_upload": "none"}}`},
		{"bad binding", `{"influx": {"database": "wx", "binding": "hourly"}}`},
		{"bad unit system", `{"influx": {"database": "wx", "unit_system": "imperial"}}`},
		{"negative stale", `{"influx": {"database": "wx"}, "upload": {"stale": -1}}`},
		{"mqtt without broker", `{"influx": {"database": "wx"}, "source": {"mqtt": {"enabled": true}}}`},
		{"http auth without password", `{"influx": {"database": "wx"}, "http": {"enabled": true, "basic_auth": true, "username": "u"}}`},
		{"bad log level", `{"influx": {"database": "wx"}, "log": {"level": "trace"}}`},
		{"bad json", `{"influx": `},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data), ".json")
			assert.Error(t, err)
		})
	}
}

func TestParse_MissingDatabaseIsMissingOption(t *testing.T) {
	_, err := Parse([]byte(`{"influx": {"host": "h"}}`), ".json")
	assert.True(t, errors.Is(err, ErrMissingOption))
}

func TestParse_EnvOverrides(t *testing.T) {
	t.Setenv(EnvToken, "secret-token")
	t.Setenv(EnvPassword, "secret-password")

	cfg, err := Parse([]byte(`{"influx": {"database": "wx", "org": "home"}}`), ".json")
	require.NoError(t, err)

	assert.Equal(t, "secret-token", cfg.Influx.Token)
	assert.Equal(t, "secret-password", cfg.Influx.Password)
	assert.True(t, cfg.Influx.TokenMode())
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "relay.yml")
	require.NoError(t, os.WriteFile(path, []byte("influx:\n  database: wx\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "wx", cfg.Influx.Database)

	_, err = LoadConfig(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
