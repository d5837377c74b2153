package sink

import (
	"context"
	"log/slog"

	"github.com/dshills/instrument/internal/event"
	"github.com/dshills/instrument/internal/event/tag"
)

// LogSink writes one structured log record per notification.
type LogSink struct {
	logger       *slog.Logger
	level        slog.Level
	failureLevel slog.Level
	message      string
}

// LogOption configures a LogSink.
type LogOption func(*LogSink)

// WithLevel sets the level for successful work. Default is Debug.
func WithLevel(l slog.Level) LogOption {
	return func(s *LogSink) { s.level = l }
}

// WithFailureLevel sets the level for failed work. Default is Warn.
func WithFailureLevel(l slog.Level) LogOption {
	return func(s *LogSink) { s.failureLevel = l }
}

// WithMessage sets the log message. Default is "instrumented".
func WithMessage(msg string) LogOption {
	return func(s *LogSink) { s.message = msg }
}

// NewLogSink creates a logging sink. A nil logger uses slog.Default.
func NewLogSink(logger *slog.Logger, opts ...LogOption) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	s := &LogSink{
		logger:       logger,
		level:        slog.LevelDebug,
		failureLevel: slog.LevelWarn,
		message:      "instrumented",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler implements Sink.
func (s *LogSink) Handler(ns event.Namespace) event.TaggedHandler {
	return func(ctx context.Context, t tag.Tag, p event.Payload) error {
		level := s.level
		if p.Err() != nil {
			level = s.failureLevel
		}
		if !s.logger.Enabled(ctx, level) {
			return nil
		}
		s.logger.LogAttrs(ctx, level, s.message, payloadAttrs(ns, t, p)...)
		return nil
	}
}

// payloadAttrs renders a notification as log attributes with stable key order.
func payloadAttrs(ns event.Namespace, t tag.Tag, p event.Payload) []slog.Attr {
	attrs := make([]slog.Attr, 0, len(p)+2)
	attrs = append(attrs,
		slog.String("namespace", ns.String()),
		slog.String("tag", t.String()),
	)
	if d, ok := p.Duration(); ok {
		attrs = append(attrs, slog.Int64("duration_ms", d))
	}
	if err := p.Err(); err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}

	for _, k := range extraKeys(p) {
		attrs = append(attrs, slog.Any(k, p[k]))
	}
	return attrs
}
