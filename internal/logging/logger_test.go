package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rmia46/roam-mc-server-manager/internal/config"
)

func TestInitAndCloseLogger(t *testing.T) {
	root := t.TempDir()
	logPath := filepath.Join(root, "app.log")

	_, err := Init(config.LoggingConfig{
		Level:      "info",
		Format:     "json",
		File:       logPath,
		MaxSize:    10,
		MaxBackups: 1,
		MaxAge:     1,
	})
	if err != nil {
		t.Fatalf("failed to init logger: %v", err)
	}

	L().Info("test_log")
	if err := Close(); err != nil {
		t.Fatalf("failed to close logger: %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "test_log") {
		t.Fatalf("expected log file to contain message, got %q", data)
	}
}

func TestSlogWriterExtractsComponent(t *testing.T) {
	var buf bytes.Buffer
	w := slogWriter{logger: slog.New(newHandler(&buf, config.LoggingConfig{Level: "debug"}))}

	if _, err := w.Write([]byte("[Supervisor] Warning: kill failed: boom\n")); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	var record map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("expected JSON record, got %q: %v", buf.String(), err)
	}
	if record["component"] != "Supervisor" {
		t.Fatalf("expected component Supervisor, got %v", record["component"])
	}
	if record["level"] != "WARN" {
		t.Fatalf("expected WARN level, got %v", record["level"])
	}
	if record["msg"] != "Warning: kill failed: boom" {
		t.Fatalf("unexpected msg %v", record["msg"])
	}
}

func TestLevelFor(t *testing.T) {
	cases := map[string]slog.Level{
		"Warning: kill failed: boom":                       slog.LevelWarn,
		"Warning: failed to kill orphan 42: access denied": slog.LevelWarn,
		"Launch failed: exec: not found":                   slog.LevelError,
		"Error reading config":                             slog.LevelError,
		"Server is ready":                                  slog.LevelInfo,
	}
	for msg, want := range cases {
		if got := levelFor(msg); got != want {
			t.Fatalf("levelFor(%q) = %v, want %v", msg, got, want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARNING": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for input, want := range cases {
		if got := parseLevel(input); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}
