package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"strings"
	"testing"
)

func TestNewJSONLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := New(Config{Level: "debug", Format: "json"}, &buf)
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}

	logger.Debug("intake: name captured", slog.String("child_name", "민수"))

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected JSON line, got %q: %v", buf.String(), err)
	}
	if line["msg"] != "intake: name captured" || line["child_name"] != "민수" {
		t.Fatalf("unexpected line: %v", line)
	}
}

func TestNewConsoleLoggerFiltersLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := New(Config{Level: "warn"}, &buf)
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}

	logger.Info("hidden")
	logger.Warn("review: summary failed", slog.String("error", "boom"))

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info line should be filtered: %q", out)
	}
	if !strings.Contains(out, "review: summary failed") || !strings.Contains(out, "error=boom") {
		t.Fatalf("unexpected console output: %q", out)
	}
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("expected no color codes for a buffer: %q", out)
	}
}

func TestNewRejectsUnknownSettings(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{Format: "xml"}, &bytes.Buffer{}); err == nil {
		t.Fatalf("expected format error")
	}
	if _, err := New(Config{Level: "loud"}, &bytes.Buffer{}); err == nil {
		t.Fatalf("expected level error")
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]slog.Level{
		"":        slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		" error ": slog.LevelError,
	}
	for input, want := range cases {
		got, err := ParseLevel(input)
		if err != nil || got != want {
			t.Fatalf("ParseLevel(%q) = %v, %v", input, got, err)
		}
	}
}

func TestIsTerminalRejectsFilesAndBuffers(t *testing.T) {
	t.Parallel()

	if isTerminal(&bytes.Buffer{}) {
		t.Fatalf("buffer is not a terminal")
	}
	f, err := os.CreateTemp(t.TempDir(), "log")
	if err != nil {
		t.Fatalf("create temp failed: %v", err)
	}
	defer f.Close()
	if isTerminal(f) {
		t.Fatalf("regular file is not a terminal")
	}
}
