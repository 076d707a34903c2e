package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func readLog(t *testing.T, dir string) []map[string]any {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, "filetrack.log"))
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	var records []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			t.Fatalf("log line is not JSON: %q", line)
		}
		records = append(records, rec)
	}
	return records
}

func TestNewLoggerWritesJSON(t *testing.T) {
	dir := t.TempDir()
	log, err := NewLogger(dir, LevelInfo)
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}

	log.Info("handle closed", "file", "a.txt")
	if err := log.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	records := readLog(t, dir)
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0]["msg"] != "handle closed" {
		t.Errorf("msg = %v, want %q", records[0]["msg"], "handle closed")
	}
	if records[0]["file"] != "a.txt" {
		t.Errorf("file = %v, want a.txt", records[0]["file"])
	}
}

func TestLevelFiltering(t *testing.T) {
	dir := t.TempDir()
	log, err := NewLogger(dir, LevelWarn)
	if err != nil {
		t.Fatal(err)
	}

	log.Debug("debug message")
	log.Info("info message")
	log.Warn("warn message")
	log.Error("error message")
	log.Close()

	records := readLog(t, dir)
	if len(records) != 2 {
		t.Fatalf("got %d records at WARN level, want 2", len(records))
	}
	if records[0]["msg"] != "warn message" || records[1]["msg"] != "error message" {
		t.Errorf("records = %v, want warn then error", records)
	}
}

func TestChildLoggersCarryContext(t *testing.T) {
	dir := t.TempDir()
	log, err := NewLogger(dir, LevelDebug)
	if err != nil {
		t.Fatal(err)
	}

	child := log.WithOp("entry_close").WithFile("a.txt")
	child.Debug("handle closed")
	log.Info("no context here")
	log.Close()

	records := readLog(t, dir)
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0]["op"] != "entry_close" || records[0]["file"] != "a.txt" {
		t.Errorf("child record = %v, want op and file attrs", records[0])
	}
	if _, ok := records[1]["op"]; ok {
		t.Error("parent logger must not inherit child attributes")
	}
}

func TestWith(t *testing.T) {
	dir := t.TempDir()
	log, err := NewLogger(dir, LevelInfo)
	if err != nil {
		t.Fatal(err)
	}

	log.With("mode", "w", "kind", "open").Info("tracking handle")
	log.Close()

	records := readLog(t, dir)
	if records[0]["mode"] != "w" || records[0]["kind"] != "open" {
		t.Errorf("record = %v, want mode and kind attrs", records[0])
	}
}

func TestNewLoggerEmptyDirUsesStderr(t *testing.T) {
	log, err := NewLogger("", LevelInfo)
	if err != nil {
		t.Fatalf("NewLogger(\"\") error = %v", err)
	}
	// No file to close; Close is a no-op.
	if err := log.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestNopLogger(t *testing.T) {
	log := NopLogger()
	log.WithOp("entry_add").WithFile("a.txt").Error("discarded")
	if err := log.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"DEBUG", LevelDebug},
		{"debug", LevelDebug},
		{"Info", LevelInfo},
		{"WARN", LevelWarn},
		{"error", LevelError},
		{"bogus", LevelInfo},
		{"", LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
