package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_BakesPNNIntoEveryLine(t *testing.T) {
	var buf bytes.Buffer
	pnn := uint32(3)
	Init(Config{Level: InfoLevel, JSONOutput: true, Output: &buf, PNN: &pnn})

	Logger.Info().Msg("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, float64(3), line["pnn"])
	assert.Equal(t, "hello", line["message"])
}

func TestInit_NoPNNOmitsField(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: InfoLevel, JSONOutput: true, Output: &buf})

	Logger.Info().Msg("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	_, hasPNN := line["pnn"]
	assert.False(t, hasPNN)
}

func TestWithComponent_AddsComponentField(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: InfoLevel, JSONOutput: true, Output: &buf})

	WithComponent("monitor").Info().Msg("tick")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "monitor", line["component"])
}
