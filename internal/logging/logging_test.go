package logging

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogFilePath(t *testing.T) {
	sessionStart := time.Date(2026, 2, 12, 21, 38, 36, 0, time.UTC)

	tests := []struct {
		name       string
		logsDir    string
		binaryName string
		want       string
	}{
		{
			name:       "basic path",
			logsDir:    "wayfindrlogs",
			binaryName: "wayfindr-server",
			want:       filepath.Join("wayfindrlogs", "wayfindr-server.20260212_213836.log"),
		},
		{
			name:       "relative path with dot",
			logsDir:    "./wayfindrlogs",
			binaryName: "wayfindr",
			want:       filepath.Join(".", "wayfindrlogs", "wayfindr.20260212_213836.log"),
		},
		{
			name:       "absolute path",
			logsDir:    filepath.Join("/var", "log", "wayfindr"),
			binaryName: "wayfindr-server",
			want:       filepath.Join("/var", "log", "wayfindr", "wayfindr-server.20260212_213836.log"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LogFilePath(tt.logsDir, tt.binaryName, sessionStart)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewZerolog(t *testing.T) {
	var buf bytes.Buffer
	log := NewZerolog(&buf, "warn", "database")

	log.Info().Msg("filtered")
	assert.Zero(t, buf.Len())

	log.Warn().Msg("kept")
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "kept", entry["message"])
	assert.Equal(t, "database", entry["component"])
	assert.Equal(t, "warn", entry["level"])
	assert.Contains(t, entry, "time")
}
