package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestTeeHandlerCollapses(t *testing.T) {
	if _, ok := TeeHandler(nil, nil).(NoopHandler); !ok {
		t.Fatal("expected NoopHandler when every handler is nil")
	}
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, nil)
	if TeeHandler(nil, inner) != inner {
		t.Fatal("expected a single handler to be returned unwrapped")
	}
}

func TestTeeHandlerRespectsPerHandlerLevels(t *testing.T) {
	var infoBuf, debugBuf bytes.Buffer
	h := TeeHandler(
		slog.NewJSONHandler(&infoBuf, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewJSONHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	)
	if !h.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("expected debug to be enabled through the debug handler")
	}

	logger := slog.New(h).With("component", "test")
	logger.Debug("debug only")
	logger.Info("both")

	if strings.Contains(infoBuf.String(), "debug only") {
		t.Fatalf("info handler received debug record: %q", infoBuf.String())
	}
	for _, out := range []string{infoBuf.String(), debugBuf.String()} {
		if !strings.Contains(out, `"msg":"both"`) || !strings.Contains(out, `"component":"test"`) {
			t.Fatalf("expected info record with attrs, got %q", out)
		}
	}
}

type failingHandler struct{ slog.Handler }

func (failingHandler) Handle(context.Context, slog.Record) error {
	return errors.New("disk full")
}

func TestTeeHandlerKeepsWritingAfterFailure(t *testing.T) {
	var buf bytes.Buffer
	h := TeeHandler(
		failingHandler{slog.NewJSONHandler(&bytes.Buffer{}, nil)},
		slog.NewJSONHandler(&buf, nil),
	)
	record := slog.NewRecord(time.Now(), slog.LevelInfo, "task completed", 0)
	err := h.Handle(context.Background(), record)
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("expected joined target error, got %v", err)
	}
	if !strings.Contains(buf.String(), "task completed") {
		t.Fatalf("second target missed the record: %q", buf.String())
	}
}

func TestJSONHandlerKeys(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newJSONHandler(&buf, lvl, true))
	logger.Warn("alignment slow", "elapsed", 1500*time.Millisecond, slog.Group("task", "duration", 2*time.Second))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode: %v (%q)", err, buf.String())
	}
	ts, _ := entry["ts"].(string)
	if _, err := time.Parse(jsonTimestampLayout, ts); err != nil || !strings.HasSuffix(ts, "Z") {
		t.Fatalf("unexpected ts %q", ts)
	}
	if entry["level"] != "warn" || entry["msg"] != "alignment slow" || entry["elapsed"] != "1.5s" {
		t.Fatalf("unexpected entry %v", entry)
	}
	if task, _ := entry["task"].(map[string]any); task["duration"] != "2s" {
		t.Fatalf("grouped duration not formatted: %v", entry["task"])
	}
	if src, _ := entry["source"].(string); !strings.HasPrefix(src, "fanout_handler_test.go:") {
		t.Fatalf("unexpected source %q", src)
	}
}
