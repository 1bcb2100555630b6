package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/conorfennell/wristreminder/internal/config"
)

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		in       string
		expected slog.Level
		wantErr  bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseLevel(tc.in)
			if (err != nil) != tc.wantErr {
				t.Fatalf("Unexpected error state: %v", err)
			}
			if got != tc.expected {
				t.Errorf("Expected %v, got %v", tc.expected, got)
			}
		})
	}
}

func TestSetupWritesToFileAndStream(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	path := filepath.Join(t.TempDir(), "logs", "wristreminder.log")
	var buf bytes.Buffer
	closer, err := Setup(config.LogConfig{Level: "warn", File: path, MaxSizeMB: 1, MaxBackups: 1}, &buf)
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}

	slog.Info("hidden")
	slog.Warn("visible", "id", 7)
	if err := closer.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if strings.Contains(buf.String(), "hidden") {
		t.Error("Expected info records to be filtered at warn level")
	}
	if !strings.Contains(buf.String(), "msg=visible id=7") {
		t.Errorf("Expected the warning on the stream, got %q", buf.String())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Expected a log file: %v", err)
	}
	if !strings.Contains(string(data), "msg=visible") {
		t.Errorf("Expected the warning in the file, got %q", data)
	}
}
