package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew_WritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quest.log")

	log, err := New(Config{Level: "debug", Encoding: "json", OutputPath: path, Service: "quest-server"})
	require.NoError(t, err)

	log.Info("hello")
	_ = log.Sync()

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"msg":"hello"`)
	assert.Contains(t, string(raw), `"service":"quest-server"`)
}

func TestNew_InvalidLevelFallsBackToInfo(t *testing.T) {
	log, err := New(Config{Level: "verbose"})
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(zapcore.DebugLevel), "debug must be disabled at info level")
}
