package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_JSON(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })
	var buf bytes.Buffer

	Setup(Config{Level: "warn", Format: FormatJSON, Output: &buf})
	logger := NewLogger("gateway")
	logger.Info().Msg("dropped")
	logger.Warn().Str("repo", "octo/repo").Msg("kept")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "only the warning is written")
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "gateway", entry["component"])
	assert.Equal(t, "octo/repo", entry["repo"])
	assert.Equal(t, "kept", entry["message"])
}

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		input    string
		expected zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
	}
	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.expected, parseLevel(tc.input))
		})
	}
}
