package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter_TagsServiceAndComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := Component(NewWithWriter(&buf, "oauth2-bridge", "debug"), "login")

	logger.Info().Str("client_id", "galette_app").Msg("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "oauth2-bridge", entry["service"])
	assert.Equal(t, "login", entry["component"])
	assert.Equal(t, "galette_app", entry["client_id"])
	assert.Equal(t, "info", entry["level"])
}

func TestNewWithWriter_LevelFiltering(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		wantOut bool
	}{
		{name: "debug passes at debug", level: "debug", wantOut: true},
		{name: "debug dropped at warn", level: "WARN", wantOut: false},
		{name: "invalid level falls back to info", level: "chatty", wantOut: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewWithWriter(&buf, "svc", tt.level)
			logger.Debug().Msg("debug line")
			assert.Equal(t, tt.wantOut, buf.Len() > 0)
		})
	}
}
