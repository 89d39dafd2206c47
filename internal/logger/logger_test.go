package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, false)
	require.Equal(t, zerolog.InfoLevel, logger.GetLevel())

	logger.Debug().Msg("hidden")
	require.Zero(t, buf.Len())

	logger.Info().Str("file", "bundle.js").Msg("Built file")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "Built file", entry["message"])
	require.Equal(t, "bundle.js", entry["file"])
	require.Contains(t, entry, "time")
	require.Contains(t, entry, "caller")
}

func TestNew_debug(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, true)
	require.Equal(t, zerolog.DebugLevel, logger.GetLevel())

	logger.Debug().Msg("Rebuild started")
	require.Contains(t, buf.String(), "Rebuild started")
	require.False(t, json.Valid(buf.Bytes()))
}
