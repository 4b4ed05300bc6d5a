// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"INFO", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"panic", zerolog.PanicLevel},
		{"disabled", zerolog.Disabled},
		{"bogus", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestNewTestLoggerOutput(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewTestLogger(&buf)
	logger.Info().Str("component", "indexer").Msg("scan started")

	out := buf.String()
	if !strings.Contains(out, `"component":"indexer"`) {
		t.Errorf("expected structured field in output, got %q", out)
	}
	if !strings.Contains(out, "scan started") {
		t.Errorf("expected message in output, got %q", out)
	}
}

func TestContextIDs(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	if got := RequestIDFromContext(ctx); got != "" {
		t.Errorf("empty context returned request id %q", got)
	}

	ctx = ContextWithRequestID(ctx, "req-1")
	if got := RequestIDFromContext(ctx); got != "req-1" {
		t.Errorf("RequestIDFromContext = %q, want req-1", got)
	}

	ctx = ContextWithNewCorrelationID(ctx)
	id := CorrelationIDFromContext(ctx)
	if len(id) != 8 {
		t.Errorf("correlation id %q, want 8-character id", id)
	}
}

func TestSlogHandlerBridgesToZerolog(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	handler := &SlogHandler{logger: NewTestLogger(&buf)}
	slogger := slog.New(handler)

	slogger.Info("supervisor event", "supervisor_name", "photarium-root", "restarts", int64(2))

	out := buf.String()
	if !strings.Contains(out, "supervisor event") {
		t.Errorf("expected message in output, got %q", out)
	}
	if !strings.Contains(out, `"supervisor_name":"photarium-root"`) {
		t.Errorf("expected string attr in output, got %q", out)
	}
	if !strings.Contains(out, `"restarts":2`) {
		t.Errorf("expected int attr in output, got %q", out)
	}
}

func TestSlogHandlerGroups(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	handler := &SlogHandler{logger: NewTestLogger(&buf)}
	slogger := slog.New(handler).WithGroup("suture").With("service", "watcher")

	slogger.Warn("service restarting")

	out := buf.String()
	if !strings.Contains(out, `"suture.service":"watcher"`) {
		t.Errorf("expected group-qualified key, got %q", out)
	}
}
