package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"subalign/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "align", "stable-ts", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"align", "stable-ts", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected placeholder detail, got %q", err.Error())
	}
}

func TestClassify(t *testing.T) {
	cases := map[string]error{
		"":              nil,
		"validation":    services.Wrap(services.ErrValidation, "output", "format", "unknown", nil),
		"not_found":     services.Wrap(services.ErrNotFound, "align", "audio", "missing", nil),
		"external_tool": services.Wrap(services.ErrExternalTool, "align", "run", "exit 1", errors.New("exit")),
		"cancelled":     fmt.Errorf("run: %w", context.Canceled),
		"timeout":       context.DeadlineExceeded,
		"internal":      errors.New("plain"),
	}
	for want, err := range cases {
		if got := services.Classify(err); got != want {
			t.Fatalf("Classify(%v) = %q, want %q", err, got, want)
		}
	}
}
