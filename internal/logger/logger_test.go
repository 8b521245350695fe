package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"Warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"garbage", LevelInfo},
		{"", LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, expected %v", tt.in, got, tt.want)
		}
	}
}

func TestParseFormat(t *testing.T) {
	if ParseFormat("json") != FormatJSON || ParseFormat("JSON") != FormatJSON {
		t.Error("json should parse as FormatJSON")
	}
	if ParseFormat("text") != FormatText || ParseFormat("") != FormatText {
		t.Error("anything else should parse as FormatText")
	}
}

func TestGetBeforeInit(t *testing.T) {
	log := Get()
	if log == nil {
		t.Fatal("Get must never return nil")
	}
	// Must not panic
	log.Info("message", "key", "value")
	log.With("a", 1).Debug("child message")
}

func TestInitAndShutdown(t *testing.T) {
	defer Shutdown()

	if err := Init(Config{Level: LevelDebug}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := Init(Config{}); err == nil {
		t.Error("expected an error for double Init")
	}

	if _, ok := Get().(*NullLogger); ok {
		t.Error("Get after Init should not return the null logger")
	}

	if err := Shutdown(); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if _, ok := Get().(*NullLogger); !ok {
		t.Error("Get after Shutdown should return the null logger")
	}

	// Re-init after shutdown is allowed
	if err := Init(Config{}); err != nil {
		t.Fatalf("re-Init failed: %v", err)
	}
}

func TestFileOutput(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "logs", "mirrorsync.log")

	log, err := NewSlogLogger(Config{
		Level:  LevelInfo,
		Format: FormatJSON,
		File: FileConfig{
			Enabled:   true,
			Path:      path,
			MaxSizeMB: 1,
		},
	})
	if err != nil {
		t.Fatalf("NewSlogLogger failed: %v", err)
	}

	log.Info("file output works", "run", 7)
	log.Debug("below threshold")

	if err := log.Shutdown(); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("log file missing: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "file output works") {
		t.Errorf("info line missing from log file: %q", content)
	}
	if strings.Contains(content, "below threshold") {
		t.Errorf("debug line should be filtered at info level: %q", content)
	}
}

func TestFileWriterRequiresPath(t *testing.T) {
	_, err := NewSlogLogger(Config{File: FileConfig{Enabled: true}})
	if err == nil {
		t.Fatal("expected an error for an empty log file path")
	}
}
