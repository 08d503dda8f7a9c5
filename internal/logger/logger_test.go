package logger

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"influxrelay/internal/config"
)

func TestNewLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.log")
	log, err := NewLogger(&config.LogConfig{Level: "debug", Encoding: "console", OutputPath: path})
	require.NoError(t, err)
	log.Info("hello", "key", "value")
	_ = log.Sync()

	_, err = NewLogger(nil)
	assert.Error(t, err)
}

func TestWithAddsContext(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewWithCore(core).With("protocol", "influx")

	log.Warn("record dropped", "reason", "stale")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "record dropped", entries[0].Message)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "influx", ctx["protocol"])
	assert.Equal(t, "stale", ctx["reason"])
}
