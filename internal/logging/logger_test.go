package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/berfenger/rfxcom2mqtt/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewLoggerWithFile(t *testing.T) {

	assert := assert.New(t)

	path := filepath.Join(t.TempDir(), "rfxcom.log")
	logger, err := NewLogger(zap.InfoLevel, config.LoggingConfig{File: path, MaxSizeMB: 1, MaxBackups: 1, MaxAgeDays: 1})
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("reading decoded", zap.String("sensor", "Sensor 0xa3.2"))
	_ = logger.Sync()

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(string(content), `"msg":"reading decoded"`)
	assert.Contains(string(content), `"sensor":"Sensor 0xa3.2"`)
	assert.NotContains(string(content), "hidden")
}

func TestNewLoggerWithoutFile(t *testing.T) {

	logger, err := NewLogger(zap.WarnLevel, config.LoggingConfig{})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zap.InfoLevel))
	assert.True(t, logger.Core().Enabled(zap.WarnLevel))
}

func TestRotatingFile(t *testing.T) {

	lj := RotatingFile(config.LoggingConfig{File: "/var/log/rfxcom.log", MaxSizeMB: 10, MaxBackups: 3, MaxAgeDays: 28})
	assert.Equal(t, "/var/log/rfxcom.log", lj.Filename)
	assert.Equal(t, 10, lj.MaxSize)
	assert.Equal(t, 3, lj.MaxBackups)
	assert.Equal(t, 28, lj.MaxAge)
}
