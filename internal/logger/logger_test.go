package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJSONFormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "warn", "json")
	log.Info().Msg("hidden")
	log.Warn().Str("k", "v").Msg("shown")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	require.Equal(t, "warn", entry["level"])
	require.Equal(t, "shown", entry["message"])
	require.Equal(t, "v", entry["k"])
	require.Contains(t, entry, "time")
}

func TestConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "bogus", "console")
	log.Info().Msg("hello")
	out := buf.String()
	require.Contains(t, out, "hello")
	require.False(t, json.Valid([]byte(strings.TrimSpace(out))))
}
