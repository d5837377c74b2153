package event

import (
	"context"
	"sync/atomic"

	"github.com/dshills/instrument/internal/event/tag"
)

// SubscriptionState represents the state of a subscription.
type SubscriptionState int32

const (
	// SubscriptionStateActive means the subscription is receiving notifications.
	SubscriptionStateActive SubscriptionState = iota

	// SubscriptionStatePaused means delivery is temporarily suspended.
	SubscriptionStatePaused

	// SubscriptionStateCancelled means the subscription is permanently revoked.
	SubscriptionStateCancelled
)

// String returns a human-readable state name.
func (s SubscriptionState) String() string {
	switch s {
	case SubscriptionStateActive:
		return "active"
	case SubscriptionStatePaused:
		return "paused"
	case SubscriptionStateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Subscription is the caller's handle on a registered callback.
type Subscription interface {
	// ID returns the unique subscription identifier.
	ID() string

	// Namespace returns the subscribed namespace.
	Namespace() Namespace

	// Target returns the tag filter.
	Target() tag.Target

	// Kind returns the callback invocation shape.
	Kind() CallbackKind

	// State returns the current state.
	State() SubscriptionState

	// IsActive returns true if the subscription can receive notifications.
	IsActive() bool

	// Pause temporarily stops delivery.
	Pause()

	// Resume restarts delivery after a pause.
	Resume()

	// Cancel permanently revokes the subscription. The registry entry is
	// dropped by Bus.Unsubscribe or Bus.Compact.
	Cancel()
}

// SubscriptionConfig contains per-subscription settings.
type SubscriptionConfig struct {
	// Priority orders subscribers within a namespace.
	Priority Priority

	// Filter, when set, must return true for the payload to be delivered.
	// It sees the payload before tag injection.
	Filter FilterFunc

	// Once cancels the subscription when it is first delivered to.
	Once bool
}

// DefaultSubscriptionConfig returns the default subscription settings.
func DefaultSubscriptionConfig() SubscriptionConfig {
	return SubscriptionConfig{Priority: PriorityNormal}
}

// SubscriptionOption configures a subscription.
type SubscriptionOption func(*SubscriptionConfig)

// WithPriority sets the subscription priority.
func WithPriority(p Priority) SubscriptionOption {
	return func(c *SubscriptionConfig) {
		c.Priority = p
	}
}

// WithFilter sets a payload predicate.
func WithFilter(f FilterFunc) SubscriptionOption {
	return func(c *SubscriptionConfig) {
		c.Filter = f
	}
}

// WithOnce makes the subscription fire at most once.
func WithOnce() SubscriptionOption {
	return func(c *SubscriptionConfig) {
		c.Once = true
	}
}

type subscription struct {
	id        string
	namespace Namespace
	target    tag.Target
	callback  callback
	config    SubscriptionConfig
	state     atomic.Int32
}

func newSubscription(id string, ns Namespace, target tag.Target, cb callback, opts ...SubscriptionOption) *subscription {
	config := DefaultSubscriptionConfig()
	for _, opt := range opts {
		opt(&config)
	}
	s := &subscription{
		id:        id,
		namespace: ns,
		target:    target,
		callback:  cb,
		config:    config,
	}
	s.state.Store(int32(SubscriptionStateActive))
	return s
}

func (s *subscription) ID() string { return s.id }
func (s *subscription) Namespace() Namespace { return s.namespace }
func (s *subscription) Target() tag.Target { return s.target }
func (s *subscription) Kind() CallbackKind { return s.callback.kind }
func (s *subscription) Config() SubscriptionConfig { return s.config }

func (s *subscription) State() SubscriptionState {
	return SubscriptionState(s.state.Load())
}

func (s *subscription) IsActive() bool {
	return s.State() == SubscriptionStateActive
}

func (s *subscription) IsCancelled() bool {
	return s.State() == SubscriptionStateCancelled
}

func (s *subscription) Pause() {
	s.state.CompareAndSwap(int32(SubscriptionStateActive), int32(SubscriptionStatePaused))
}

func (s *subscription) Resume() {
	s.state.CompareAndSwap(int32(SubscriptionStatePaused), int32(SubscriptionStateActive))
}

func (s *subscription) Cancel() {
	s.state.Store(int32(SubscriptionStateCancelled))
}

// claim cancels an active subscription and reports whether this caller won.
func (s *subscription) claim() bool {
	return s.state.CompareAndSwap(int32(SubscriptionStateActive), int32(SubscriptionStateCancelled))
}

// accepts reports whether a notification should be delivered here.
func (s *subscription) accepts(n Notification) bool {
	if !s.IsActive() {
		return false
	}
	if !tag.Matches(s.target, n.Tag) {
		return false
	}
	if s.config.Filter != nil && !s.config.Filter(n.Payload) {
		return false
	}
	return true
}

// Handle adapts the subscription to dispatch.Handler.
func (s *subscription) Handle(ctx context.Context, notification any) error {
	return s.callback.invoke(ctx, notification.(Notification))
}
