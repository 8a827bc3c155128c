package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/bluewatt/bluewatt-core/internal/infrastructure/config"
)

func TestNew_ReturnsUsableLogger(t *testing.T) {
	cfgs := []config.LoggingConfig{
		{Level: "info", Format: "json", Output: "stdout"},
		{Level: "debug", Format: "text", Output: "stderr"},
		{Level: "nonsense", Format: "nonsense", Output: "nonsense"},
	}
	for _, cfg := range cfgs {
		if New(cfg, "1.0.0") == nil {
			t.Errorf("New(%+v) returned nil", cfg)
		}
	}
}

func TestDefault(t *testing.T) {
	if Default() == nil {
		t.Fatal("Default() returned nil")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"verbose", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestWith_ReturnsIndependentLogger(t *testing.T) {
	parent := New(config.LoggingConfig{Level: "info", Format: "json", Output: "stdout"}, "1.0.0")
	child := parent.With("component", "mqtt")

	if child == nil {
		t.Fatal("With() returned nil")
	}
	if child == parent {
		t.Error("With() returned the parent logger")
	}
}

func TestNewHandler_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newHandler(&buf, "json", slog.LevelWarn))

	logger.Info("dropped")
	logger.Warn("kept")

	if bytes.Contains(buf.Bytes(), []byte("dropped")) {
		t.Error("info record emitted at warn level")
	}
	if !bytes.Contains(buf.Bytes(), []byte("kept")) {
		t.Error("warn record missing")
	}
}

func TestLogger_DefaultFieldsInOutput(t *testing.T) {
	var buf bytes.Buffer
	handler := newHandler(&buf, "json", slog.LevelInfo).WithAttrs([]slog.Attr{
		slog.String("service", serviceName),
		slog.String("version", "test"),
	})

	logger := &Logger{Logger: slog.New(handler)}
	logger.Info("probe", "device_id", "dev-12345678")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}

	for key, want := range map[string]string{
		"service":   serviceName,
		"version":   "test",
		"msg":       "probe",
		"device_id": "dev-12345678",
	} {
		if record[key] != want {
			t.Errorf("record[%q] = %v, want %q", key, record[key], want)
		}
	}
}
