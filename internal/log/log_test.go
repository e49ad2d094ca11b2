package log

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]zerolog.Level{
		"":        zerolog.InfoLevel,
		"debug":   zerolog.DebugLevel,
		" WARN ":  zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"verbose": zerolog.InfoLevel,
	}
	for input, want := range cases {
		if got := ParseLevel(input); got != want {
			t.Fatalf("ParseLevel(%q) = %s, want %s", input, got, want)
		}
	}
}

func TestNewFiltersBelowLevel(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	logger := New(&out, "warn")

	logger.Info().Msg("quiet")
	logger.Warn().Str("component", "helper").Msg("loud")

	text := out.String()
	if strings.Contains(text, "quiet") {
		t.Fatalf("expected info message to be filtered, got %q", text)
	}
	if !strings.Contains(text, "loud") || !strings.Contains(text, "component=helper") || !strings.Contains(text, "pid=") {
		t.Fatalf("expected warn message with fields, got %q", text)
	}
}
