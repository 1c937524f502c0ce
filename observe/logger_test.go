package observe

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("invalid JSON line %q: %v", line, err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	log := NewLoggerWithWriter("warn", &buf)

	ctx := context.Background()
	log.Debug(ctx, "debug line")
	log.Info(ctx, "info line")
	log.Warn(ctx, "warn line")
	log.Error(ctx, "error line")

	entries := decodeLines(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	if entries[0]["level"] != "warn" || entries[1]["level"] != "error" {
		t.Errorf("levels = %v, %v; want warn, error", entries[0]["level"], entries[1]["level"])
	}
}

func TestLogger_Redaction(t *testing.T) {
	var buf bytes.Buffer
	log := NewLoggerWithWriter("info", &buf)

	log.Info(context.Background(), "connecting",
		F("token", "super-secret"),
		F("bucket", "heizung-daten"),
	)

	entries := decodeLines(t, &buf)
	if entries[0]["token"] != "[REDACTED]" {
		t.Errorf("token = %v, want [REDACTED]", entries[0]["token"])
	}
	if entries[0]["bucket"] != "heizung-daten" {
		t.Errorf("bucket = %v, want heizung-daten", entries[0]["bucket"])
	}
}

func TestLogger_WithComponent(t *testing.T) {
	var buf bytes.Buffer
	log := NewLoggerWithWriter("info", &buf)

	child := log.WithComponent("aggregator")
	child.Info(context.Background(), "fan-out started")
	log.Info(context.Background(), "parent line")

	entries := decodeLines(t, &buf)
	if entries[0]["component"] != "aggregator" {
		t.Errorf("component = %v, want aggregator", entries[0]["component"])
	}
	if _, ok := entries[1]["component"]; ok {
		t.Error("parent logger must not inherit the child's component tag")
	}
}

func TestParseLogLevel(t *testing.T) {
	cases := []struct {
		in   string
		want LogLevel
	}{
		{"debug", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"error", LevelError},
		{"bogus", LevelInfo},
		{"", LevelInfo},
	}

	for _, c := range cases {
		if got := ParseLogLevel(c.in); got != c.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}
