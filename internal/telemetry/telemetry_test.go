package telemetry

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	ctx := context.Background()

	m.ChunkDone(ctx, "gemini", "ok", time.Second)
	m.SynthesisDone(ctx, "gemini", "ok", time.Second, time.Second)
	m.GenerationDone(ctx, "ok")
	m.RequestDone(ctx, "/health", 200)
	if m.Handler() != nil {
		t.Error("nil Metrics Handler() should be nil")
	}
	if err := m.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}

func TestNoop(t *testing.T) {
	m := Noop()
	if m == nil {
		t.Fatal("Noop() returned nil")
	}
	m.ChunkDone(context.Background(), "local", "failed", time.Millisecond)
	if m.Handler() != nil {
		t.Error("Noop Handler() should be nil")
	}
}

func TestSetupExposesPrometheus(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m, err := Setup("scenevoice-test", "test", logger)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	t.Cleanup(func() { _ = m.Shutdown(context.Background()) })

	ctx := context.Background()
	m.ChunkDone(ctx, "gemini", "ok", 250*time.Millisecond)
	m.SynthesisDone(ctx, "gemini", "partial", 2*time.Second, 30*time.Second)

	h := m.Handler()
	if h == nil {
		t.Fatal("Handler() = nil; want prometheus handler")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	for _, want := range []string{"scenevoice_synth_chunks", "scenevoice_synth_requests", "backend=\"gemini\""} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
