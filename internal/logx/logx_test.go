package logx

import (
	"bytes"
	"log"
	"strings"
	"testing"
)

func newTestLogger(level Level) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return &Logger{std: log.New(&buf, "", 0), level: level}, &buf
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		"DEBUG":   LevelDebug,
		"info":    LevelInfo,
		"":        LevelInfo,
		"warn":    LevelWarn,
		"warning": LevelWarn,
		"error":   LevelError,
		"bogus":   LevelInfo,
	}
	for input, want := range cases {
		if got := ParseLevel(input); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestLoggerFiltersBelowConfiguredLevel(t *testing.T) {
	l, buf := newTestLogger(LevelWarn)
	l.Info("should not appear")
	if buf.Len() != 0 {
		t.Fatalf("Info logged below the configured Warn level: %q", buf.String())
	}
	l.Warn("should appear", "op", "clone")
	if !strings.Contains(buf.String(), "should appear") || !strings.Contains(buf.String(), "op=clone") {
		t.Fatalf("Warn output missing expected content: %q", buf.String())
	}
}

func TestLoggerIncludesStructuredFields(t *testing.T) {
	l, buf := newTestLogger(LevelDebug)
	l.Error("operation failed", "operation", "user/create", "err", "conflict")
	out := buf.String()
	for _, want := range []string{"level=error", `msg="operation failed"`, "operation=user/create", "err=conflict"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output %q missing %q", out, want)
		}
	}
}
