package logger_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Tiliavir/billr/internal/logger"
)

func TestNew_WritesJSONFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "logs", "billr.log")

	log, closeFn, err := logger.New("info", file)
	require.NoError(t, err)
	log.Debug("hidden")
	log.Info("reconciled", zap.Int64("project_id", 7))
	closeFn()

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "reconciled", rec["msg"])
	assert.Equal(t, "info", rec["level"])
	assert.Equal(t, 7.0, rec["project_id"])
}

func TestNew_ConsoleOnly(t *testing.T) {
	log, closeFn, err := logger.New("debug", "")
	require.NoError(t, err)
	defer closeFn()
	assert.True(t, log.Core().Enabled(zap.DebugLevel))
}

func TestNew_InvalidLevel(t *testing.T) {
	_, _, err := logger.New("loud", "")
	assert.Error(t, err)
}
