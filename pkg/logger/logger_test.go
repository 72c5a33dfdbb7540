package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zerolog.WarnLevel, parseLevel("warn"))
	assert.Equal(t, zerolog.InfoLevel, parseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("loud"))
}

func TestScopedFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("alert-service", "test", &buf)

	log.WithComponent("engine").WithAlert("a-1", "EXPIRED").WithProduct("p-9").Info().Msg("resolved")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "alert-service", line["service"])
	assert.Equal(t, "test", line["env"])
	assert.Equal(t, "engine", line["component"])
	assert.Equal(t, "a-1", line["alert_id"])
	assert.Equal(t, "EXPIRED", line["kind"])
	assert.Equal(t, "p-9", line["product_id"])
	assert.Equal(t, "resolved", line["message"])
}

func TestNop(t *testing.T) {
	assert.NotPanics(t, func() { Nop().WithRequestID("r").Error().Msg("dropped") })
}
