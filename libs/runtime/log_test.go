package runtime

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		raw  string
		want slog.Level
	}{
		{raw: "debug", want: slog.LevelDebug},
		{raw: " WARN ", want: slog.LevelWarn},
		{raw: "warning", want: slog.LevelWarn},
		{raw: "error", want: slog.LevelError},
		{raw: "", want: slog.LevelInfo},
		{raw: "verbose", want: slog.LevelInfo},
	}
	for _, c := range cases {
		if got := ParseLevel(c.raw, slog.LevelInfo); got != c.want {
			t.Fatalf("ParseLevel(%q): expected %v, got %v", c.raw, c.want, got)
		}
	}
}

func TestNewTextLoggerFiltersLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewTextLogger(&buf, slog.LevelWarn)
	logger.Info("hidden")
	logger.Warn("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info line should be filtered: %q", out)
	}
	if !strings.Contains(out, "shown") {
		t.Fatalf("warn line missing: %q", out)
	}
}
