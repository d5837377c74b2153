package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/dshills/instrument/internal/event"
	"github.com/dshills/instrument/internal/event/tag"
)

// Metric names.
const (
	MetricDuration = "instrument.duration"
	MetricCalls    = "instrument.calls"
	MetricFailures = "instrument.failures"
)

// MetricSink records duration and call counts per namespace and tag.
type MetricSink struct {
	duration metric.Int64Histogram
	calls    metric.Int64Counter
	failures metric.Int64Counter
}

// NewMetricSink creates the instruments on meter. A nil meter uses the
// global meter provider.
func NewMetricSink(meter metric.Meter) (*MetricSink, error) {
	if meter == nil {
		meter = otel.Meter(ScopeName)
	}

	duration, err := meter.Int64Histogram(MetricDuration,
		metric.WithUnit("ms"),
		metric.WithDescription("Duration of instrumented work."),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", MetricDuration, err)
	}
	calls, err := meter.Int64Counter(MetricCalls,
		metric.WithUnit("{call}"),
		metric.WithDescription("Instrumented calls observed."),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", MetricCalls, err)
	}
	failures, err := meter.Int64Counter(MetricFailures,
		metric.WithUnit("{call}"),
		metric.WithDescription("Instrumented calls whose work failed."),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", MetricFailures, err)
	}

	return &MetricSink{duration: duration, calls: calls, failures: failures}, nil
}

// Handler implements sink.Sink.
func (m *MetricSink) Handler(ns event.Namespace) event.TaggedHandler {
	return func(ctx context.Context, t tag.Tag, p event.Payload) error {
		opt := metric.WithAttributes(baseAttrs(ns, t, p)...)

		m.calls.Add(ctx, 1, opt)
		if ms, ok := p.Duration(); ok {
			m.duration.Record(ctx, ms, opt)
		}
		if p.Err() != nil {
			m.failures.Add(ctx, 1, opt)
		}
		return nil
	}
}
