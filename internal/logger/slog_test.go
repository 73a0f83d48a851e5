package logger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

// captureSlog routes the package logger into a buffer for the test.
func captureSlog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slogger
	slogger = slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	t.Cleanup(func() { slogger = prev })
	return &buf
}

func TestWithContext(t *testing.T) {
	tests := []struct {
		name        string
		ctx         context.Context
		wantAttrs   []string
		absentAttrs []string
	}{
		{
			"both ids attached",
			context.WithValue(
				context.WithValue(context.Background(), ContextKeyRequestID, "req-1"),
				ContextKeySessionID, "sess-1"),
			[]string{"request_id=req-1", "session_id=sess-1"},
			nil,
		},
		{
			"session id only",
			context.WithValue(context.Background(), ContextKeySessionID, "sess-2"),
			[]string{"session_id=sess-2"},
			[]string{"request_id"},
		},
		{
			"bare context adds nothing",
			context.Background(),
			nil,
			[]string{"request_id", "session_id"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := captureSlog(t)
			WithContext(tt.ctx).Info("run opened")

			out := buf.String()
			for _, want := range tt.wantAttrs {
				if !strings.Contains(out, want) {
					t.Errorf("log line %q missing %q", out, want)
				}
			}
			for _, absent := range tt.absentAttrs {
				if strings.Contains(out, absent) {
					t.Errorf("log line %q unexpectedly carries %q", out, absent)
				}
			}
		})
	}
}

func TestContextLevelHelpers(t *testing.T) {
	ctx := context.WithValue(context.Background(), ContextKeySessionID, "sess-3")

	buf := captureSlog(t)
	InfoContext(ctx, "answer streamed")
	WarnContext(ctx, "run exceeded stream timeout")
	ErrorContext(ctx, "run emitter panicked", "panic", "boom")

	out := buf.String()
	for _, want := range []string{
		"level=INFO", "answer streamed",
		"level=WARN", "run exceeded stream timeout",
		"level=ERROR", "run emitter panicked", "panic=boom",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if got := strings.Count(out, "session_id=sess-3"); got != 3 {
		t.Errorf("session_id attached to %d lines, want 3", got)
	}
}
