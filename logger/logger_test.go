package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: "INFO", want: slog.LevelInfo},
		{in: "", want: slog.LevelInfo},
		{in: "warning", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "loud", want: slog.LevelInfo, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestSetupWriter(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	if err := SetupWriter(&buf, "warn", "json"); err != nil {
		t.Fatalf("SetupWriter() error = %v", err)
	}

	WithComponent("mixer").Info("dropped")
	WithComponent("mixer").Warn("kept", slog.String("track", "rain"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d log lines, want 1: %q", len(lines), buf.String())
	}

	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("log line is not json: %v", err)
	}
	if rec["component"] != "mixer" || rec["track"] != "rain" || rec["msg"] != "kept" {
		t.Errorf("unexpected record %v", rec)
	}
}

func TestSetupRejectsUnknownLevel(t *testing.T) {
	if err := SetupWriter(&bytes.Buffer{}, "loud", "text"); err == nil {
		t.Error("SetupWriter() with unknown level returned nil error")
	}
}
