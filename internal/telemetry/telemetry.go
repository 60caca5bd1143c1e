// Package telemetry wires OpenTelemetry metrics to a Prometheus scrape
// endpoint and exposes the handful of instruments scenevoice records.
package telemetry

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.30.0"
)

const meterName = "github.com/example/go-scene-voice"

// Metrics holds the instruments. A nil *Metrics is valid and records nothing.
type Metrics struct {
	provider *sdkmetric.MeterProvider
	handler  http.Handler

	chunks       metric.Int64Counter
	chunkLatency metric.Float64Histogram
	syntheses    metric.Int64Counter
	synthLatency metric.Float64Histogram
	generations  metric.Int64Counter
	requests     metric.Int64Counter
	audioSeconds metric.Float64Counter
}

// Setup builds a meter provider backed by the Prometheus exporter. When the
// exporter cannot be created the provider still works but Handler is nil.
func Setup(serviceName, version string, logger *slog.Logger) (*Metrics, error) {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, err
	}

	var (
		provider *sdkmetric.MeterProvider
		handler  http.Handler
	)
	exporter, err := prometheus.New()
	if err != nil {
		logger.Warn("failed to initialize prometheus exporter", slog.String("error", err.Error()))
		provider = sdkmetric.NewMeterProvider(sdkmetric.WithResource(res))
	} else {
		provider = sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(exporter),
			sdkmetric.WithResource(res),
		)
		handler = promhttp.Handler()
	}

	m, err := newMetrics(provider.Meter(meterName))
	if err != nil {
		return nil, err
	}
	m.provider = provider
	m.handler = handler
	return m, nil
}

// Noop returns metrics bound to a no-op meter, for tests and one-shot CLI runs.
func Noop() *Metrics {
	m, _ := newMetrics(noop.NewMeterProvider().Meter(meterName))
	return m
}

func newMetrics(meter metric.Meter) (*Metrics, error) {
	var (
		m   Metrics
		err error
	)
	if m.chunks, err = meter.Int64Counter("scenevoice.synth.chunks",
		metric.WithDescription("Speech chunks processed, by outcome")); err != nil {
		return nil, err
	}
	if m.chunkLatency, err = meter.Float64Histogram("scenevoice.synth.chunk.duration",
		metric.WithDescription("Time spent on one speech chunk including retries"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.syntheses, err = meter.Int64Counter("scenevoice.synth.requests",
		metric.WithDescription("Synthesis batches, by outcome")); err != nil {
		return nil, err
	}
	if m.synthLatency, err = meter.Float64Histogram("scenevoice.synth.duration",
		metric.WithDescription("Wall time of a synthesis batch"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.generations, err = meter.Int64Counter("scenevoice.script.generations",
		metric.WithDescription("Script generation calls, by outcome")); err != nil {
		return nil, err
	}
	if m.requests, err = meter.Int64Counter("scenevoice.http.requests",
		metric.WithDescription("HTTP requests, by route and status")); err != nil {
		return nil, err
	}
	if m.audioSeconds, err = meter.Float64Counter("scenevoice.audio.seconds",
		metric.WithDescription("Seconds of audio synthesized"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	return &m, nil
}

// Handler serves the Prometheus exposition, or nil when unavailable.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return nil
	}
	return m.handler
}

// Shutdown flushes and stops the meter provider.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m == nil || m.provider == nil {
		return nil
	}
	return m.provider.Shutdown(ctx)
}

// ChunkDone records one chunk outcome.
func (m *Metrics) ChunkDone(ctx context.Context, backend, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("backend", backend),
		attribute.String("outcome", outcome),
	)
	m.chunks.Add(ctx, 1, attrs)
	m.chunkLatency.Record(ctx, elapsed.Seconds(), attrs)
}

// SynthesisDone records one synthesis batch.
func (m *Metrics) SynthesisDone(ctx context.Context, backend, outcome string, elapsed, audio time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("backend", backend),
		attribute.String("outcome", outcome),
	)
	m.syntheses.Add(ctx, 1, attrs)
	m.synthLatency.Record(ctx, elapsed.Seconds(), attrs)
	if audio > 0 {
		m.audioSeconds.Add(ctx, audio.Seconds(), metric.WithAttributes(attribute.String("backend", backend)))
	}
}

// GenerationDone records one script generation.
func (m *Metrics) GenerationDone(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.generations.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RequestDone records one HTTP request.
func (m *Metrics) RequestDone(ctx context.Context, route string, status int) {
	if m == nil {
		return
	}
	m.requests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("route", route),
		attribute.Int("status", status),
	))
}
