package logging_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/aretw0/xplanning/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSON_RenamesError(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewJSON(&buf, slog.LevelInfo)

	logger.Debug("hidden")
	logger.Warn("solver lost", "error", errors.New("broken pipe"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "solver lost", line["msg"])
	assert.Equal(t, "broken pipe", line["err"])
	assert.NotContains(t, line, "error")
}

func TestNewText(t *testing.T) {
	var buf bytes.Buffer
	logging.NewText(&buf, slog.LevelDebug).Debug("evaluated", "policy", "abc")
	assert.Contains(t, buf.String(), "policy=abc")

	logging.NewNop().Error("dropped")
}
