package event

import (
	"context"
	"maps"
	"strings"
	"time"

	"github.com/dshills/instrument/internal/event/tag"
)

// Namespace groups related instrumentation points. It is compared by
// equality only.
type Namespace string

// String returns the namespace as a string.
func (n Namespace) String() string {
	return string(n)
}

// Validate rejects empty and blank namespaces.
func (n Namespace) Validate() error {
	if strings.TrimSpace(string(n)) == "" {
		return ErrInvalidNamespace
	}
	return nil
}

// Payload keys set by the bus.
const (
	KeyDuration = "duration"
	KeyError    = "error"
	KeyTag      = "tag"
)

// Payload is the key/value data delivered to subscribers.
type Payload map[string]any

// Clone returns a shallow copy. A nil payload clones to an empty one.
func (p Payload) Clone() Payload {
	out := make(Payload, len(p)+2)
	maps.Copy(out, p)
	return out
}

// Duration returns the duration field in milliseconds.
func (p Payload) Duration() (int64, bool) {
	d, ok := p[KeyDuration].(int64)
	return d, ok
}

// Err returns the captured work failure, if any.
func (p Payload) Err() error {
	err, _ := p[KeyError].(error)
	return err
}

// Tag returns the tag field injected for single-argument subscribers.
func (p Payload) Tag() (tag.Tag, bool) {
	t, ok := p[KeyTag].(tag.Tag)
	return t, ok
}

// Notification is one event travelling through the bus.
type Notification struct {
	Namespace Namespace
	Tag       tag.Tag
	Payload   Payload
}

// PayloadHandler is a single-argument subscriber. It receives the payload
// with the dispatch tag stored under KeyTag.
type PayloadHandler func(ctx context.Context, payload Payload) error

// TaggedHandler is a dual-argument subscriber. It receives the dispatch tag
// and the payload separately; the payload carries no KeyTag entry.
type TaggedHandler func(ctx context.Context, t tag.Tag, payload Payload) error

// CallbackKind identifies which invocation shape a subscription uses.
type CallbackKind int

const (
	// CallbackPayload is the single-argument shape.
	CallbackPayload CallbackKind = iota + 1

	// CallbackTagged is the dual-argument shape.
	CallbackTagged
)

// String returns a human-readable kind name.
func (k CallbackKind) String() string {
	switch k {
	case CallbackPayload:
		return "payload"
	case CallbackTagged:
		return "tagged"
	default:
		return "unknown"
	}
}

// callback holds exactly one of the two handler shapes.
type callback struct {
	kind    CallbackKind
	payload PayloadHandler
	tagged  TaggedHandler
}

func (c callback) invoke(ctx context.Context, n Notification) error {
	p := n.Payload.Clone()
	switch c.kind {
	case CallbackPayload:
		p[KeyTag] = n.Tag
		return c.payload(ctx, p)
	case CallbackTagged:
		return c.tagged(ctx, n.Tag, p)
	default:
		return &InvalidSubscriberError{Namespace: n.Namespace, Arity: -1}
	}
}

// Priority orders subscriptions within a namespace. Lower values run first;
// equal priorities keep registration order.
type Priority int

const (
	// PriorityCritical runs before everything else.
	PriorityCritical Priority = 0

	// PriorityHigh runs before normal subscribers.
	PriorityHigh Priority = 100

	// PriorityNormal is the default.
	PriorityNormal Priority = 200

	// PriorityLow is for sinks that should observe last (logging, export).
	PriorityLow Priority = 300
)

// String returns a human-readable priority name.
func (p Priority) String() string {
	switch {
	case p <= PriorityCritical:
		return "critical"
	case p <= PriorityHigh:
		return "high"
	case p <= PriorityNormal:
		return "normal"
	default:
		return "low"
	}
}

// FailurePolicy decides what happens when a subscriber fails.
type FailurePolicy int32

const (
	// PolicyIsolate logs and counts the failure and keeps notifying.
	PolicyIsolate FailurePolicy = iota

	// PolicyPropagate stops at the first failing subscriber and returns its error.
	PolicyPropagate

	// PolicyAggregate notifies every subscriber and returns all failures joined.
	PolicyAggregate
)

// String returns the policy name as used in configuration.
func (p FailurePolicy) String() string {
	switch p {
	case PolicyIsolate:
		return "isolate"
	case PolicyPropagate:
		return "propagate"
	case PolicyAggregate:
		return "aggregate"
	default:
		return "unknown"
	}
}

// ParseFailurePolicy parses a configuration value. The empty string is isolate.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "isolate":
		return PolicyIsolate, nil
	case "propagate":
		return PolicyPropagate, nil
	case "aggregate":
		return PolicyAggregate, nil
	default:
		return PolicyIsolate, configError("failure policy", s, ErrUnknownPolicy)
	}
}

// Clock is the time source used to measure work.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// Stats contains bus counters.
type Stats struct {
	// Notifications is the number of Notify calls that reached dispatch.
	Notifications uint64

	// WorkFailures is the number of instrumented calls whose work failed.
	WorkFailures uint64

	// HandlersExecuted is the number of subscriber invocations.
	HandlersExecuted uint64

	// HandlerErrors is the number of subscribers that returned an error.
	HandlerErrors uint64

	// HandlerPanics is the number of subscribers that panicked.
	HandlerPanics uint64

	// AvgHandlerTime is the mean time spent in a subscriber.
	AvgHandlerTime time.Duration

	// ActiveSubscriptions is the number of active registered subscriptions.
	ActiveSubscriptions int
}
