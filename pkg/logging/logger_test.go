package logging

import (
	"path/filepath"
	"testing"

	"sink-hole/pkg/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.LoggingConfig
	}{
		{"text stdout", config.LoggingConfig{Level: "info", Format: "text", Output: "stdout"}},
		{"json stderr", config.LoggingConfig{Level: "debug", Format: "json", Output: "stderr"}},
		{"unknown level falls back", config.LoggingConfig{Level: "whatever", Format: "text", Output: "stdout"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(&tt.cfg)
			if err != nil {
				t.Fatalf("New() failed: %v", err)
			}
			if logger.Logger == nil {
				t.Fatal("New() returned logger with nil slog.Logger")
			}
		})
	}
}

func TestNewFileOutput(t *testing.T) {
	cfg := &config.LoggingConfig{
		Level:    "info",
		Format:   "text",
		Output:   "file",
		FilePath: filepath.Join(t.TempDir(), "app.log"),
	}
	logger, err := New(cfg)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	logger.Info("hello")
}

func TestParseLevel(t *testing.T) {
	for level, want := range map[string]string{
		"debug": "DEBUG",
		"info":  "INFO",
		"warn":  "WARN",
		"error": "ERROR",
		"":      "INFO",
	} {
		if got := parseLevel(level).String(); got != want {
			t.Errorf("parseLevel(%q) = %s, want %s", level, got, want)
		}
	}
}

func TestGlobal(t *testing.T) {
	if Global() == nil {
		t.Fatal("Global() returned nil before SetGlobal")
	}
	logger := NewDefault()
	SetGlobal(logger)
	if Global() != logger {
		t.Error("Global() did not return the logger passed to SetGlobal")
	}
}
