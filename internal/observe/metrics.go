// Package observe provides OpenTelemetry metrics for the alignment server and
// the HTTP middleware that records request latency.
//
// Instruments are created from any metric.MeterProvider. InitProvider wires a
// Prometheus exporter so the same instruments are scraped from /metrics; tests
// use NewNoop or a ManualReader-backed provider.
package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "subalign"

// Metrics holds the instruments used across the server. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	TasksSubmitted  metric.Int64Counter
	TasksFinished   metric.Int64Counter
	TasksActive     metric.Int64UpDownCounter
	ModelLoads      metric.Int64Counter
	ModelLoadTime   metric.Float64Histogram
	AlignDuration   metric.Float64Histogram
	HTTPRequestTime metric.Float64Histogram
}

// Alignment runs on CPU take from seconds to many minutes.
var alignBuckets = []float64{1, 5, 10, 30, 60, 120, 300, 600, 1200, 3600}

var httpBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// NewMetrics creates every instrument on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.TasksSubmitted, err = m.Int64Counter("subalign.tasks.submitted",
		metric.WithDescription("Alignment tasks accepted by the server."),
	); err != nil {
		return nil, err
	}
	if met.TasksFinished, err = m.Int64Counter("subalign.tasks.finished",
		metric.WithDescription("Alignment tasks that reached a terminal status, by status and error kind."),
	); err != nil {
		return nil, err
	}
	if met.TasksActive, err = m.Int64UpDownCounter("subalign.tasks.active",
		metric.WithDescription("Tasks queued or running."),
	); err != nil {
		return nil, err
	}
	if met.ModelLoads, err = m.Int64Counter("subalign.model.loads",
		metric.WithDescription("Model load attempts by size and status."),
	); err != nil {
		return nil, err
	}
	if met.ModelLoadTime, err = m.Float64Histogram("subalign.model.load.duration",
		metric.WithDescription("Time spent loading a model."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(alignBuckets...),
	); err != nil {
		return nil, err
	}
	if met.AlignDuration, err = m.Float64Histogram("subalign.align.duration",
		metric.WithDescription("Wall time of one alignment task from dequeue to terminal status."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(alignBuckets...),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestTime, err = m.Float64Histogram("subalign.http.request.duration",
		metric.WithDescription("HTTP request latency by method and route."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(httpBuckets...),
	); err != nil {
		return nil, err
	}
	return met, nil
}

// NewNoop returns instruments backed by the no-op provider.
func NewNoop() *Metrics {
	m, err := NewMetrics(noop.NewMeterProvider())
	if err != nil {
		panic("observe: noop metrics: " + err.Error())
	}
	return m
}

// TaskSubmitted records an accepted task.
func (m *Metrics) TaskSubmitted(ctx context.Context) {
	if m == nil {
		return
	}
	m.TasksSubmitted.Add(ctx, 1)
	m.TasksActive.Add(ctx, 1)
}

// TaskFinished records a terminal status and the task's wall time. A zero
// duration skips the histogram (tasks failed before running).
func (m *Metrics) TaskFinished(ctx context.Context, status, kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.TasksFinished.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", status),
		attribute.String("kind", kind),
	))
	m.TasksActive.Add(ctx, -1)
	if d > 0 {
		m.AlignDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("status", status)))
	}
}

// ModelLoaded records one model load attempt.
func (m *Metrics) ModelLoaded(ctx context.Context, size string, d time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	attrs := metric.WithAttributes(attribute.String("size", size), attribute.String("status", status))
	m.ModelLoads.Add(ctx, 1, attrs)
	m.ModelLoadTime.Record(ctx, d.Seconds(), attrs)
}
