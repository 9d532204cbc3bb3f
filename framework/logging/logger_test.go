package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/jhaber/guice/framework/config"
)

func TestNew_JSONAtLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(config.LogConfig{Level: "warn", Format: "json"}, &buf)

	log.Info().Msg("hidden")
	log.Warn().Str("abstract", "request").Msg("shown")

	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), `"abstract":"request"`)
	require.Contains(t, buf.String(), `"level":"warn"`)
}

func TestNew_UnknownLevelFallsBackToInfo(t *testing.T) {
	for _, level := range []string{"", "loud"} {
		log := New(config.LogConfig{Level: level, Format: "json"}, &bytes.Buffer{})
		require.Equal(t, zerolog.InfoLevel, log.GetLevel(), "level %q", level)
	}
}

func TestNew_Console(t *testing.T) {
	var buf bytes.Buffer
	log := New(config.LogConfig{Level: "debug", Format: "console"}, &buf)

	log.Debug().Msg("child container created")
	require.Contains(t, buf.String(), "child container created")
	require.NotContains(t, buf.String(), `"message"`)
}

func TestSetGlobalLogger(t *testing.T) {
	prev := Logger
	t.Cleanup(func() { SetGlobalLogger(prev) })

	var buf bytes.Buffer
	SetGlobalLogger(zerolog.New(&buf))
	Info().Msg("hello")

	require.Contains(t, buf.String(), "hello")
	require.Same(t, &Logger, zerolog.DefaultContextLogger)
}
