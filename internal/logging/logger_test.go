package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bapple/internal/logging"
	"bapple/internal/services"
)

func TestNewWritesJSONLogFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "bapple.log")
	var console bytes.Buffer
	logger, err := logging.New(logging.Options{
		Level:     "error",
		Console:   &console,
		FilePath:  logPath,
		SessionID: "session-1",
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("filtered")
	logger.Error("archive failed", logging.String("tool", "ffmpeg"))

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one record, got %d: %s", len(lines), data)
	}
	var record map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &record); err != nil {
		t.Fatalf("log file is not JSON lines: %v", err)
	}
	if record["msg"] != "archive failed" || record["level"] != "error" || record["tool"] != "ffmpeg" {
		t.Fatalf("unexpected record %v", record)
	}
	if record[logging.FieldSessionID] != "session-1" {
		t.Fatalf("missing session id in %v", record)
	}
	if !strings.Contains(console.String(), "ERROR – archive failed") {
		t.Fatalf("expected console copy, got %q", console.String())
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewInvalidLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Level: "chatty", Console: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Debug("hidden")
	logger.Info("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestNewConsoleLevelOnlyAffectsConsole(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "bapple.log")
	var console bytes.Buffer
	logger, err := logging.New(logging.Options{
		Level:        "info",
		ConsoleLevel: "warn",
		Console:      &console,
		FilePath:     logPath,
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("playing")
	logger.Warn("audio unavailable")

	if strings.Contains(console.String(), "playing") || !strings.Contains(console.String(), "audio unavailable") {
		t.Fatalf("console should only carry warnings, got %q", console.String())
	}
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "playing") {
		t.Fatalf("log file should keep info records: %s", data)
	}
}

func TestWithContextAddsFields(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithSessionID(ctx, "abc")
	ctx = services.WithStage(ctx, "extract")
	ctx = services.WithArchive(ctx, "/tmp/clip.bapple")

	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Console: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WithContext(ctx, logger).Info("contextual log")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	for key, want := range map[string]string{
		logging.FieldSessionID: "abc",
		logging.FieldStage:     "extract",
		logging.FieldArchive:   "/tmp/clip.bapple",
	} {
		if record[key] != want {
			t.Fatalf("field %s = %v, want %q", key, record[key], want)
		}
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Console: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WarnWithContext(logger, "audio unavailable", "audio_start_failed",
		logging.String(logging.FieldImpact, "playback continues silently"))

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if record[logging.FieldEventType] != "audio_start_failed" {
		t.Fatalf("missing event type: %v", record)
	}
	if record[logging.FieldErrorHint] == nil {
		t.Fatalf("expected default hint: %v", record)
	}
	if record[logging.FieldImpact] != "playback continues silently" {
		t.Fatalf("caller impact overwritten: %v", record)
	}

	logging.WarnWithContext(nil, "ignored", "noop")
}
