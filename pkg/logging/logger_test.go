package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func decodeEntries(t *testing.T, buf *bytes.Buffer) []LogEntry {
	t.Helper()
	var entries []LogEntry
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var e LogEntry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			t.Fatalf("invalid log line %q: %v", line, err)
		}
		entries = append(entries, e)
	}
	return entries
}

func TestStructuredLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger("svc", "1.0.0", WarnLevel)
	logger.SetOutput(&buf)

	ctx := context.Background()
	logger.Debug(ctx, "debug", nil)
	logger.Info(ctx, "info", nil)
	logger.Warn(ctx, "warn", nil)
	logger.Error(ctx, "error", Fields{"city": "Delhi"}, errors.New("boom"))

	entries := decodeEntries(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Level != "WARN" {
		t.Errorf("Level = %s, want WARN", entries[0].Level)
	}
	if entries[1].Error != "boom" {
		t.Errorf("Error = %q, want boom", entries[1].Error)
	}
	if entries[1].Fields["city"] != "Delhi" {
		t.Errorf("city field = %v, want Delhi", entries[1].Fields["city"])
	}
	if entries[1].File == "" || entries[1].Line == 0 {
		t.Error("error entries should carry caller information")
	}
}

func TestStructuredLogger_RunIDAndPipeline(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger("svc", "1.0.0", DebugLevel)
	logger.SetOutput(&buf)

	ctx := WithPipeline(WithRunID(context.Background(), "run-123"), "ingest")
	logger.Info(ctx, "hello", nil)

	entries := decodeEntries(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].RunID != "run-123" {
		t.Errorf("RunID = %q, want run-123", entries[0].RunID)
	}
	if entries[0].Pipeline != "ingest" {
		t.Errorf("Pipeline = %q, want ingest", entries[0].Pipeline)
	}
}

func TestContextLogger_MergesFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger("svc", "1.0.0", DebugLevel)
	logger.SetOutput(&buf)

	cl := logger.WithFields(Fields{"city": "Mumbai", "stage": "fetch"})
	cl.Info(context.Background(), "msg", Fields{"stage": "append"})

	entries := decodeEntries(t, &buf)
	if entries[0].Fields["city"] != "Mumbai" {
		t.Errorf("city = %v, want Mumbai", entries[0].Fields["city"])
	}
	if entries[0].Fields["stage"] != "append" {
		t.Errorf("stage = %v, want append (call fields win)", entries[0].Fields["stage"])
	}
}

func TestFatal_UsesExitHook(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger("svc", "1.0.0", InfoLevel)
	logger.SetOutput(&buf)
	code := -1
	logger.exit = func(c int) { code = c }

	logger.Fatal(context.Background(), "fatal", nil, errors.New("bad config"))

	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	entries := decodeEntries(t, &buf)
	if entries[0].StackTrace == "" {
		t.Error("fatal entries should carry a stack trace")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   DebugLevel,
		"DEBUG":   DebugLevel,
		"warn":    WarnLevel,
		"warning": WarnLevel,
		"error":   ErrorLevel,
		"info":    InfoLevel,
		"":        InfoLevel,
		"verbose": InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
