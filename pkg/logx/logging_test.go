package logx

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFormatChatJSON(t *testing.T) {
	t.Parallel()
	got := formatChatJSON([]byte(`{"level":"warn","message":"task failed","task":"abc","time":"x"}` + "\n"))
	if !strings.HasPrefix(got, "[WARN] task failed") {
		t.Fatalf("unexpected prefix: %q", got)
	}
	if !strings.Contains(got, "- task=abc") {
		t.Fatalf("missing field: %q", got)
	}
	if strings.Contains(got, "time=") {
		t.Fatalf("time should be skipped: %q", got)
	}

	if got := formatChatJSON([]byte("  plain text  ")); got != "plain text" {
		t.Fatalf("raw fallback = %q", got)
	}
}

func TestLoggerWithFields(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := NewWriter(&buf, "debug").With(String("comp", "runner"))
	log.Info("task completed", String("task", "t1"), Int("files", 2))

	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("decode: %v (%s)", err, buf.String())
	}
	if m["comp"] != "runner" || m["task"] != "t1" || m["message"] != "task completed" {
		t.Fatalf("unexpected event: %v", m)
	}
	if _, ok := m["caller"]; !ok {
		t.Fatalf("caller missing: %v", m)
	}
}

func TestServiceWritesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "progress.log")

	svc, log := New(Config{Level: "info", File: FileConfig{Enabled: true, Path: path}}, nil)
	log.Info("hello")
	log.Debug("hidden")
	if svc.FilePath() != path {
		t.Fatalf("FilePath = %q", svc.FilePath())
	}
	if err := svc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(b), `"message":"hello"`) || strings.Contains(string(b), "hidden") {
		t.Fatalf("unexpected file contents: %s", b)
	}
}

func TestZeroLoggerIsSafe(t *testing.T) {
	t.Parallel()
	var l Logger
	if !l.IsZero() {
		t.Fatal("zero logger should report IsZero")
	}
	l.Info("dropped")
	if l.Enabled(LevelError) {
		t.Fatal("zero logger should not be enabled")
	}
}
