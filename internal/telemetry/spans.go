package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dshills/instrument/internal/event"
	"github.com/dshills/instrument/internal/event/tag"
)

// SpanSink records one span per notification. Notifications arrive after
// the work finished, so the span is backdated by the measured duration.
type SpanSink struct {
	tracer trace.Tracer
	now    func() time.Time
}

// SpanOption configures a SpanSink.
type SpanOption func(*SpanSink)

// WithTracerProvider uses tp instead of the global provider.
func WithTracerProvider(tp trace.TracerProvider) SpanOption {
	return func(s *SpanSink) {
		if tp != nil {
			s.tracer = tp.Tracer(ScopeName)
		}
	}
}

// WithSpanClock sets the time source for span end times.
func WithSpanClock(now func() time.Time) SpanOption {
	return func(s *SpanSink) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSpanSink creates a span sink.
func NewSpanSink(opts ...SpanOption) *SpanSink {
	s := &SpanSink{
		tracer: otel.Tracer(ScopeName),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SpanName returns "namespace" or "namespace tag".
func SpanName(ns event.Namespace, t tag.Tag) string {
	if t.IsAbsent() {
		return ns.String()
	}
	return ns.String() + " " + t.String()
}

// Handler implements sink.Sink.
func (s *SpanSink) Handler(ns event.Namespace) event.TaggedHandler {
	return func(ctx context.Context, t tag.Tag, p event.Payload) error {
		end := s.now()
		ms, _ := p.Duration()
		start := end.Add(-time.Duration(ms) * time.Millisecond)

		attrs := append(baseAttrs(ns, t, p), AttrDuration.Int64(ms))
		attrs = append(attrs, payloadAttrs(p)...)

		_, span := s.tracer.Start(ctx, SpanName(ns, t),
			trace.WithTimestamp(start),
			trace.WithSpanKind(trace.SpanKindInternal),
			trace.WithAttributes(attrs...),
		)
		if err := p.Err(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End(trace.WithTimestamp(end))
		return nil
	}
}
