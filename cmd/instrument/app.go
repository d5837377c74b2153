package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dshills/instrument/internal/config"
	"github.com/dshills/instrument/internal/event"
	"github.com/dshills/instrument/internal/logging"
	"github.com/dshills/instrument/internal/script"
	"github.com/dshills/instrument/internal/sink"
	"github.com/dshills/instrument/internal/telemetry"
)

// app is one bus with its sinks and script host.
type app struct {
	logger   *slog.Logger
	bus      *event.Bus
	host     *script.Host
	sinks    *event.Subscriber
	recorder *sink.Recorder
	closers  []io.Closer
}

func newApp(cfg *config.Config, logger *slog.Logger) (_ *app, err error) {
	a := &app{
		logger: logger,
		bus: event.NewBus(
			event.WithLogger(logger),
			event.WithFailurePolicy(cfg.FailurePolicy()),
		),
	}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.sinks = event.NewSubscriber(a.bus)
	namespaces := cfg.Namespaces()

	attached := []sink.Sink{sink.NewLogSink(logger)}

	if cfg.Bus.RecorderCapacity > 0 {
		a.recorder = sink.NewRecorder(cfg.Bus.RecorderCapacity)
		attached = append(attached, a.recorder)
	}

	if cfg.Sink.EventsFile != "" {
		events := &lumberjack.Logger{
			Filename:   cfg.Sink.EventsFile,
			MaxSize:    cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAge:     cfg.Log.MaxAgeDays,
			Compress:   cfg.Log.Compress,
		}
		a.closers = append(a.closers, events)
		attached = append(attached, sink.NewJSONLines(events))
	}

	if cfg.Telemetry.Enabled {
		metrics, err := telemetry.NewMetricSink(nil)
		if err != nil {
			return nil, fmt.Errorf("metric sink: %w", err)
		}
		attached = append(attached, telemetry.NewSpanSink(), metrics)
	}

	for _, s := range attached {
		if _, err := sink.Attach(a.sinks, s, namespaces); err != nil {
			return nil, fmt.Errorf("attach sink: %w", err)
		}
	}

	a.host = script.NewHost(a.bus, script.WithLogger(logger))
	return a, nil
}

// apply changes the settings that can follow a config reload.
func (a *app) apply(cfg *config.Config) {
	a.bus.SetFailurePolicy(cfg.FailurePolicy())
	logging.SetLevel(cfg.LogLevel())
	a.logger.Info("config reloaded",
		slog.String("failure_policy", cfg.FailurePolicy().String()),
		slog.String("log_level", cfg.LogLevel().String()),
	)
}

// runScripts executes each script in order and stops at the first failure.
// Log lines for a script carry its path.
func (a *app) runScripts(ctx context.Context, paths []string) error {
	ctx = logging.With(ctx, a.logger)
	for _, path := range paths {
		sctx := logging.WithAttrs(ctx, slog.String("script", path))
		logging.From(sctx).Debug("running script")
		if err := a.host.DoFile(sctx, path); err != nil {
			logging.From(sctx).Error("script failed", slog.Any("error", err))
			return err
		}
	}
	return nil
}

// watch applies config reloads until ctx is done.
func (a *app) watch(ctx context.Context, path string) error {
	w, err := config.NewWatcher(path, config.WithWatcherLogger(a.logger))
	if err != nil {
		return err
	}
	defer w.Close()

	w.OnChange(a.apply)
	if err := w.Start(); err != nil {
		return err
	}

	a.logger.Info("watching config", slog.String("path", w.Path()))
	<-ctx.Done()
	return nil
}

// report prints recorded notifications and bus counters.
func (a *app) report(w io.Writer) {
	if a.recorder != nil {
		for _, rec := range a.recorder.Records() {
			status := "ok"
			if rec.Failed() {
				status = "error: " + rec.Payload.Err().Error()
			}
			fmt.Fprintf(w, "%-24s %-16s %6dms  %s\n", rec.Namespace, rec.Tag, rec.Duration(), status)
		}
		if n := a.recorder.Dropped(); n > 0 {
			fmt.Fprintf(w, "(%d older notifications dropped)\n", n)
		}
	}

	stats := a.bus.Stats()
	fmt.Fprintf(w, "notifications=%d work_failures=%d handlers=%d handler_errors=%d handler_panics=%d subscriptions=%d\n",
		stats.Notifications,
		stats.WorkFailures,
		stats.HandlersExecuted,
		stats.HandlerErrors,
		stats.HandlerPanics,
		stats.ActiveSubscriptions,
	)
}

// Close releases the host, sinks, files and bus.
func (a *app) Close() {
	var errs []error
	if a.host != nil {
		errs = append(errs, a.host.Close())
	}
	if a.sinks != nil {
		errs = append(errs, a.sinks.Close())
	}
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	errs = append(errs, a.bus.Close())

	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("shutdown incomplete", slog.Any("error", err))
	}
}
