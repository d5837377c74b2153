package event

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/dshills/instrument/internal/event/dispatch"
	"github.com/dshills/instrument/internal/event/tag"
)

// Registrar is the subscription side of a Bus.
type Registrar interface {
	Subscribe(ns Namespace, target tag.Target, h PayloadHandler, opts ...SubscriptionOption) (Subscription, error)
	SubscribeTagged(ns Namespace, target tag.Target, h TaggedHandler, opts ...SubscriptionOption) (Subscription, error)
	Unsubscribe(sub Subscription) error
}

// Bus is an in-process instrumentation bus. It owns its registry; create
// one with NewBus and tear it down with Close. Independent buses share
// nothing.
type Bus struct {
	registry   *Registry
	dispatcher *dispatch.SyncDispatcher

	clock  Clock
	logger *slog.Logger
	newID  func() string

	policy atomic.Int32
	closed atomic.Bool

	notifications atomic.Uint64
	workFailures  atomic.Uint64
}

// NewBus creates a bus with an empty registry.
func NewBus(opts ...BusOption) *Bus {
	cfg := defaultBusConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	b := &Bus{
		registry: NewRegistry(),
		clock:    cfg.clock,
		logger:   cfg.logger,
		newID:    cfg.newID,
	}
	b.policy.Store(int32(cfg.policy))
	b.dispatcher = dispatch.NewSyncDispatcher(
		dispatch.WithClock(cfg.clock.Now),
	)
	return b
}

// Subscribe registers a single-argument callback for ns. The callback
// receives the payload with the dispatch tag stored under KeyTag.
func (b *Bus) Subscribe(ns Namespace, target tag.Target, h PayloadHandler, opts ...SubscriptionOption) (Subscription, error) {
	if h == nil {
		return nil, configError("handler", nil, ErrNilHandler)
	}
	return b.register(ns, target, callback{kind: CallbackPayload, payload: h}, opts)
}

// SubscribeTagged registers a dual-argument callback for ns. The callback
// receives the dispatch tag and the payload separately.
func (b *Bus) SubscribeTagged(ns Namespace, target tag.Target, h TaggedHandler, opts ...SubscriptionOption) (Subscription, error) {
	if h == nil {
		return nil, configError("handler", nil, ErrNilHandler)
	}
	return b.register(ns, target, callback{kind: CallbackTagged, tagged: h}, opts)
}

func (b *Bus) register(ns Namespace, target tag.Target, cb callback, opts []SubscriptionOption) (Subscription, error) {
	if b.closed.Load() {
		return nil, ErrBusClosed
	}
	if err := ns.Validate(); err != nil {
		return nil, configError("namespace", ns, err)
	}
	if err := target.Validate(); err != nil {
		return nil, configError("target", target.String(), err)
	}

	sub := newSubscription(b.newID(), ns, target, cb, opts...)
	b.registry.Add(sub)
	return sub, nil
}

// Unsubscribe cancels sub and removes it from the registry. A handle that
// was not issued by this bus is left untouched.
func (b *Bus) Unsubscribe(sub Subscription) error {
	if sub == nil {
		return ErrInvalidSubscription
	}
	registered, ok := b.registry.Get(sub.ID())
	if !ok || Subscription(registered) != sub {
		return ErrSubscriptionNotFound
	}
	registered.Cancel()
	if !b.registry.Remove(registered.id) {
		return ErrSubscriptionNotFound
	}
	return nil
}

// Compact drops subscriptions cancelled through their handle and returns
// how many were removed.
func (b *Bus) Compact() int {
	return b.registry.RemoveCancelled()
}

// Notify delivers payload to every active subscription under ns whose
// target matches t. Delivery is synchronous and sequential; Notify returns
// once every matching subscriber has run, or earlier under PolicyPropagate.
// The payload is delivered as given; Instrument and Time add the duration
// and error fields.
func (b *Bus) Notify(ctx context.Context, ns Namespace, t tag.Tag, payload Payload) error {
	if err := validateDispatch(ns, t); err != nil {
		return err
	}
	return b.notify(ctx, Notification{Namespace: ns, Tag: t, Payload: payload})
}

func validateDispatch(ns Namespace, t tag.Tag) error {
	if err := ns.Validate(); err != nil {
		return configError("namespace", ns, err)
	}
	if err := t.Validate(); err != nil {
		return configError("tag", t.String(), err)
	}
	return nil
}

func (b *Bus) notify(ctx context.Context, n Notification) error {
	if b.closed.Load() {
		return nil
	}
	subs := b.registry.Lookup(n.Namespace)
	if len(subs) == 0 {
		return nil
	}
	b.notifications.Add(1)

	policy := b.FailurePolicy()
	var errs []error
	for _, sub := range subs {
		if !sub.accepts(n) {
			continue
		}
		if sub.config.Once {
			if !sub.claim() {
				continue
			}
		}

		result := b.dispatcher.Dispatch(ctx, n, sub)
		if result.IsSuccess() {
			continue
		}

		err := subscriberError(sub, n, result)
		switch policy {
		case PolicyPropagate:
			return err
		case PolicyAggregate:
			errs = append(errs, err)
		default:
			b.logFailure(n, sub, err, result)
		}
	}
	return errors.Join(errs...)
}

func subscriberError(sub *subscription, n Notification, result dispatch.Result) error {
	if result.Panicked {
		return &PanicError{
			SubscriptionID: sub.id,
			Namespace:      n.Namespace,
			Value:          result.PanicValue,
			Stack:          string(result.PanicStack),
		}
	}
	return &HandlerError{
		SubscriptionID: sub.id,
		Namespace:      n.Namespace,
		Err:            result.Error,
	}
}

func (b *Bus) logFailure(n Notification, sub *subscription, err error, result dispatch.Result) {
	attrs := []any{
		slog.String("namespace", n.Namespace.String()),
		slog.String("tag", n.Tag.String()),
		slog.String("subscription", sub.id),
		slog.Any("error", err),
	}
	if result.Panicked {
		b.logger.Error("subscriber panicked", append(attrs, slog.String("stack", string(result.PanicStack)))...)
		return
	}
	b.logger.Warn("subscriber failed", attrs...)
}

// SetFailurePolicy changes the subscriber failure policy for subsequent
// notifications.
func (b *Bus) SetFailurePolicy(p FailurePolicy) {
	b.policy.Store(int32(p))
}

// FailurePolicy returns the current subscriber failure policy.
func (b *Bus) FailurePolicy() FailurePolicy {
	return FailurePolicy(b.policy.Load())
}

// Now returns the bus clock's current time.
func (b *Bus) Now() time.Time {
	return b.clock.Now()
}

// Logger returns the bus logger.
func (b *Bus) Logger() *slog.Logger {
	return b.logger
}

// Close tears the bus down: the registry is cleared and further
// subscriptions are refused. Instrumented work still runs after Close but
// notifies nobody. Close is idempotent.
func (b *Bus) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	b.registry.Clear()
	return nil
}

// IsClosed returns true after Close.
func (b *Bus) IsClosed() bool {
	return b.closed.Load()
}

// SubscriptionCount returns the number of registered subscriptions.
func (b *Bus) SubscriptionCount() int {
	return b.registry.Count()
}

// Namespaces returns every namespace with at least one subscription.
func (b *Bus) Namespaces() []Namespace {
	return b.registry.Namespaces()
}

// Stats returns current counters.
func (b *Bus) Stats() Stats {
	ds := b.dispatcher.Stats()
	return Stats{
		Notifications:       b.notifications.Load(),
		WorkFailures:        b.workFailures.Load(),
		HandlersExecuted:    ds.Dispatched,
		HandlerErrors:       ds.Failed,
		HandlerPanics:       ds.Panicked,
		AvgHandlerTime:      ds.AvgDuration,
		ActiveSubscriptions: b.registry.CountActive(),
	}
}
