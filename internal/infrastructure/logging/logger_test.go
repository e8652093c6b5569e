package logging

import (
	"log/slog"
	"testing"

	"github.com/probeworks/smokecore/internal/infrastructure/config"
)

func TestNew_JSONFormat(t *testing.T) {
	logger := New(config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}, "test-version")

	if logger == nil {
		t.Fatal("New() returned nil")
	}
	if logger.Logger == nil {
		t.Fatal("New() returned logger with nil slog.Logger")
	}
}

func TestNew_TextFormat(t *testing.T) {
	logger := New(config.LoggingConfig{
		Level:  "debug",
		Format: "text",
		Output: "stderr",
	}, "test-version")

	if logger == nil {
		t.Fatal("New() returned nil")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected slog.Level
	}{
		{"debug", "debug", slog.LevelDebug},
		{"info", "info", slog.LevelInfo},
		{"warn", "warn", slog.LevelWarn},
		{"warning alias", "warning", slog.LevelWarn},
		{"error", "error", slog.LevelError},
		{"unknown defaults to info", "verbose", slog.LevelInfo},
		{"empty defaults to info", "", slog.LevelInfo},
		{"case insensitive", "DEBUG", slog.LevelDebug},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestLogger_With(t *testing.T) {
	logger := New(config.LoggingConfig{Level: "info"}, "test")

	child := logger.With("component", "kafka")
	if child == nil {
		t.Fatal("With() returned nil")
	}
	if child == logger {
		t.Error("With() should return a new logger instance")
	}
}

func TestDefault(t *testing.T) {
	logger := Default()
	if logger == nil {
		t.Fatal("Default() returned nil")
	}
}
