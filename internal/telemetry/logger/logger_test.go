package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func newJSON(t *testing.T, level string) (Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	l, err := New(Config{Level: level, Format: FormatJSON, Output: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return l, &buf
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	return entry
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"default config", DefaultConfig(), false},
		{"text format", Config{Level: "debug", Format: "text"}, false},
		{"console alias", Config{Level: "info", Format: "console"}, false},
		{"empty values", Config{}, false},
		{"unknown level", Config{Level: "loud"}, true},
		{"unknown format", Config{Format: "xml"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && l == nil {
				t.Fatal("New() returned nil logger")
			}
		})
	}
}

func TestLogger_Levels(t *testing.T) {
	l, buf := newJSON(t, "debug")

	tests := []struct {
		level   string
		logFunc func(string, ...any)
	}{
		{"DEBUG", l.Debug},
		{"INFO", l.Info},
		{"WARN", l.Warn},
		{"ERROR", l.Error},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			buf.Reset()
			tt.logFunc("agent connected", "endpoint", "wss://127.0.0.1:13579/")

			entry := decodeLine(t, buf)
			if entry["level"] != tt.level {
				t.Errorf("level = %v, want %s", entry["level"], tt.level)
			}
			if entry["msg"] != "agent connected" {
				t.Errorf("msg = %v", entry["msg"])
			}
			if entry["endpoint"] != "wss://127.0.0.1:13579/" {
				t.Errorf("endpoint = %v", entry["endpoint"])
			}
		})
	}
}

func TestLogger_Service(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Format: FormatJSON, Output: &buf, Service: "ncabridge"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	l.With("component", "bridge").Info("started")

	entry := decodeLine(t, &buf)
	if entry["service"] != "ncabridge" || entry["component"] != "bridge" {
		t.Errorf("entry = %v", entry)
	}
}

func TestLogger_RedactsThroughHandler(t *testing.T) {
	l, buf := newJSON(t, "info")

	l.Info("signed", "signature", "MIIBszCCAVmgAwIBAgIJAKx", "data", "QUJDRA==")

	out := buf.String()
	for _, secret := range []string{"MIIBszCCAVmgAwIBAgIJAKx", "QUJDRA=="} {
		if strings.Contains(out, secret) {
			t.Errorf("output leaks %q: %s", secret, out)
		}
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	l, buf := newJSON(t, "warn")

	l.Debug("debug message")
	l.Info("info message")
	if buf.Len() > 0 {
		t.Error("debug and info must be filtered at warn")
	}

	l.Warn("warn message")
	if buf.Len() == 0 {
		t.Error("warn must be logged")
	}
}

func TestSetLevel(t *testing.T) {
	l, buf := newJSON(t, "error")

	l.Info("before")
	if buf.Len() > 0 {
		t.Error("info must be filtered at error")
	}

	if err := SetLevel("debug"); err != nil {
		t.Fatalf("SetLevel() error = %v", err)
	}
	l.Info("after")
	if buf.Len() == 0 {
		t.Error("existing logger must follow the new level")
	}
	if got := GetLevel(); got != "debug" {
		t.Errorf("GetLevel() = %q, want debug", got)
	}

	if err := SetLevel("verbose"); err == nil {
		t.Error("SetLevel(verbose) should fail")
	}
	if got := GetLevel(); got != "debug" {
		t.Errorf("failed SetLevel changed level to %q", got)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"DEBUG", slog.LevelDebug, false},
		{"info", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{" warning ", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"trace", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input, want string
		wantErr     bool
	}{
		{"", FormatJSON, false},
		{"JSON", FormatJSON, false},
		{"text", FormatText, false},
		{"console", FormatText, false},
		{"logfmt", "", true},
	}

	for _, tt := range tests {
		got, err := ParseFormat(tt.input)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v", tt.input, got, err)
		}
	}
}

func TestPackageLevelFunctions(t *testing.T) {
	prev := Default()
	t.Cleanup(func() { SetDefault(prev) })

	l, buf := newJSON(t, "debug")
	SetDefault(l)

	tests := []struct {
		name    string
		logFunc func(string, ...any)
	}{
		{"Debug", Debug},
		{"Info", Info},
		{"Warn", Warn},
		{"Error", Error},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			tt.logFunc("test message")
			if buf.Len() == 0 {
				t.Errorf("%s() produced no output", tt.name)
			}
		})
	}
}

func TestLogger_WithContext(t *testing.T) {
	l, buf := newJSON(t, "info")

	l.WithContext(context.Background()).Info("test message")

	if buf.Len() == 0 {
		t.Error("expected log output")
	}
}

func TestLogger_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: "info", Format: FormatText, Output: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	l.Info("request completed", "status", 200)

	out := buf.String()
	if !strings.Contains(out, "request completed") || !strings.Contains(out, "status=200") {
		t.Errorf("text output = %s", out)
	}
}
