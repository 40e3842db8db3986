package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"nonsense", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "info", "json")

	logger.Debug("hidden")
	logger.Info("submission delivered", "form", "contact")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1 (debug should be filtered): %q", len(lines), buf.String())
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if entry["msg"] != "submission delivered" {
		t.Errorf("msg = %v, want %q", entry["msg"], "submission delivered")
	}
	if entry["form"] != "contact" {
		t.Errorf("form = %v, want %q", entry["form"], "contact")
	}
}

func TestFromContext_AddsRequestID(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(New(&buf, "info", "text"))
	t.Cleanup(func() { slog.SetDefault(prev) })

	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-42")
	FromContext(ctx).Info("hello", "form", "order")

	out := buf.String()
	if !strings.Contains(out, "request_id=req-42") {
		t.Errorf("log line missing request id: %q", out)
	}
	if !strings.Contains(out, "form=order") {
		t.Errorf("log line missing field: %q", out)
	}
}

func TestContextWith_TravelsWithContext(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(New(&buf, "info", "text"))
	t.Cleanup(func() { slog.SetDefault(prev) })

	base := ContextWith(context.Background(), "submission_id", "sub-1")
	a := ContextWith(base, "form", "contact")
	b := ContextWith(base, "form", "order")

	FromContext(a).Info("first")
	FromContext(b).Info("second")
	FromContext(context.Background()).Info("bare")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3: %q", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "submission_id=sub-1 form=contact") {
		t.Errorf("first line = %q", lines[0])
	}
	if !strings.Contains(lines[1], "submission_id=sub-1 form=order") || strings.Contains(lines[1], "contact") {
		t.Errorf("sibling contexts share attributes: %q", lines[1])
	}
	if strings.Contains(lines[2], "submission_id") {
		t.Errorf("bare context picked up attributes: %q", lines[2])
	}
}

func TestNew_DebugAddsSource(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "debug", "text").Debug("where")

	if !strings.Contains(buf.String(), "source=") {
		t.Errorf("debug logger should add source: %q", buf.String())
	}
}
