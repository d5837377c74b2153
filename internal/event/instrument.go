package event

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/dshills/instrument/internal/event/tag"
)

// outcome records how one run of instrumented work ended.
type outcome[T any] struct {
	value    T
	extra    Payload
	err      error
	panicked bool
	panicVal any
	elapsed  time.Duration
}

func run[T any](clock Clock, work func() (T, Payload, error)) (o outcome[T]) {
	start := clock.Now()
	defer func() {
		o.elapsed = clock.Now().Sub(start)
		if r := recover(); r != nil {
			o.panicked = true
			o.panicVal = r
			o.err = &WorkPanicError{Value: r, Stack: string(debug.Stack())}
		}
	}()
	o.value, o.extra, o.err = work()
	return o
}

// payload builds the notification payload. A failed run carries only the
// error and the duration; a successful run carries the work's extra fields
// with the duration set last so it cannot be overridden.
func (o outcome[T]) payload() Payload {
	ms := max(o.elapsed.Milliseconds(), 0)
	if o.err != nil {
		return Payload{KeyError: o.err, KeyDuration: ms}
	}
	p := o.extra.Clone()
	p[KeyDuration] = ms
	return p
}

// Instrument runs work, measures it and notifies subscribers of ns whose
// target matches t. Fields returned by work are added to the payload.
//
// Subscribers run synchronously after work completes, on the caller's
// goroutine, whether work succeeded or not. When work returns an error that
// error is returned unchanged and subscriber failures are only logged. When
// work panics, subscribers see a *WorkPanicError in the error field and the
// original panic is resumed once they have run. Otherwise the work's value
// is returned together with any subscriber failure surfaced by the bus
// failure policy.
//
// Namespace and tag are validated before work runs; a ConfigurationError
// means work was never called.
func Instrument[T any](ctx context.Context, b *Bus, ns Namespace, t tag.Tag, work func() (T, Payload, error)) (T, error) {
	var zero T
	if work == nil {
		return zero, configError("work", nil, ErrNilWork)
	}
	if err := validateDispatch(ns, t); err != nil {
		return zero, err
	}

	o := run(b.clock, work)
	notifyErr := b.notify(ctx, Notification{Namespace: ns, Tag: t, Payload: o.payload()})

	if o.err == nil {
		return o.value, notifyErr
	}

	b.workFailures.Add(1)
	if notifyErr != nil {
		b.logger.Warn("subscriber failure after failed work",
			slog.String("namespace", ns.String()),
			slog.String("tag", t.String()),
			slog.Any("error", notifyErr),
		)
	}
	if o.panicked {
		panic(o.panicVal)
	}
	return o.value, o.err
}

// Time is Instrument for work that contributes no payload fields.
// Subscribers receive the duration and, on failure, the error.
func Time[T any](ctx context.Context, b *Bus, ns Namespace, t tag.Tag, work func() (T, error)) (T, error) {
	if work == nil {
		var zero T
		return zero, configError("work", nil, ErrNilWork)
	}
	return Instrument[T](ctx, b, ns, t, func() (T, Payload, error) {
		v, err := work()
		return v, nil, err
	})
}

// Run is Time for work that produces no value.
func (b *Bus) Run(ctx context.Context, ns Namespace, t tag.Tag, work func() error) error {
	if work == nil {
		return configError("work", nil, ErrNilWork)
	}
	_, err := Time(ctx, b, ns, t, func() (struct{}, error) {
		return struct{}{}, work()
	})
	return err
}
