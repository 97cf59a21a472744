package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestSetLevel(t *testing.T) {
	t.Run("sets debug level", func(t *testing.T) {
		SetLevel("debug")
		require.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
	})

	t.Run("sets info level", func(t *testing.T) {
		SetLevel("info")
		require.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
	})

	t.Run("ignores case", func(t *testing.T) {
		SetLevel("WARN")
		require.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())
	})

	t.Run("sets error level", func(t *testing.T) {
		SetLevel("error")
		require.Equal(t, zerolog.ErrorLevel, zerolog.GlobalLevel())
	})

	t.Run("defaults to info for unknown level", func(t *testing.T) {
		SetLevel("unknown")
		require.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
	})

	t.Run("disables logging", func(t *testing.T) {
		SetLevel("disabled")
		require.Equal(t, zerolog.Disabled, zerolog.GlobalLevel())
	})

	t.Run("treats empty as info", func(t *testing.T) {
		SetLevel(" ")
		require.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
	})

	SetLevel("debug")
}

func TestSetOutput(t *testing.T) {
	original := Log
	defer func() { Log = original }()

	SetLevel("debug")
	var buf bytes.Buffer
	SetOutput(&buf)

	log := Component("store")
	log.Info().Str("group", HashID("g1")).Msg("expense added")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "store", line["component"])
	require.Equal(t, "expense added", line["message"])
	require.Equal(t, "info", line["level"])
	require.Len(t, line["group"], 8)
}

func TestLoggerInit(t *testing.T) {
	t.Run("can log with fields", func(t *testing.T) {
		Log.Info().
			Str("key", "value").
			Int("count", 42).
			Msg("test with fields")
	})
}
