package event

import (
	"sync"

	"github.com/dshills/instrument/internal/event/tag"
)

// Subscriber tracks the subscriptions made by one component so they can be
// released together. Sinks and script hosts each own one.
type Subscriber struct {
	bus           Registrar
	subscriptions []Subscription
	mu            sync.Mutex
	closed        bool
}

// NewSubscriber creates a Subscriber on bus.
func NewSubscriber(bus Registrar) *Subscriber {
	return &Subscriber{bus: bus}
}

// Subscribe registers a single-argument callback and tracks it.
func (s *Subscriber) Subscribe(ns Namespace, target tag.Target, h PayloadHandler, opts ...SubscriptionOption) (Subscription, error) {
	return s.track(func() (Subscription, error) {
		return s.bus.Subscribe(ns, target, h, opts...)
	})
}

// SubscribeTagged registers a dual-argument callback and tracks it.
func (s *Subscriber) SubscribeTagged(ns Namespace, target tag.Target, h TaggedHandler, opts ...SubscriptionOption) (Subscription, error) {
	return s.track(func() (Subscription, error) {
		return s.bus.SubscribeTagged(ns, target, h, opts...)
	})
}

func (s *Subscriber) track(subscribe func() (Subscription, error)) (Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSubscriberClosed
	}
	sub, err := subscribe()
	if err != nil {
		return nil, err
	}
	s.subscriptions = append(s.subscriptions, sub)
	return sub, nil
}

// SubscribeOnce registers a single-argument callback that fires at most once.
func (s *Subscriber) SubscribeOnce(ns Namespace, target tag.Target, h PayloadHandler, opts ...SubscriptionOption) (Subscription, error) {
	return s.Subscribe(ns, target, h, append(opts, WithOnce())...)
}

// SubscribeLow registers a low-priority single-argument callback.
// Low-priority callbacks run after everything else in the namespace.
func (s *Subscriber) SubscribeLow(ns Namespace, target tag.Target, h PayloadHandler, opts ...SubscriptionOption) (Subscription, error) {
	return s.Subscribe(ns, target, h, append(opts, WithPriority(PriorityLow))...)
}

// Unsubscribe removes a specific subscription.
func (s *Subscriber) Unsubscribe(sub Subscription) error {
	if sub == nil {
		return ErrInvalidSubscription
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, tracked := range s.subscriptions {
		if tracked.ID() == sub.ID() {
			s.subscriptions = append(s.subscriptions[:i], s.subscriptions[i+1:]...)
			break
		}
	}
	return s.bus.Unsubscribe(sub)
}

// UnsubscribeAll removes every tracked subscription. The Subscriber stays usable.
func (s *Subscriber) UnsubscribeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sub := range s.subscriptions {
		_ = s.bus.Unsubscribe(sub)
	}
	s.subscriptions = s.subscriptions[:0]
}

// PauseAll pauses every tracked subscription.
func (s *Subscriber) PauseAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sub := range s.subscriptions {
		sub.Pause()
	}
}

// ResumeAll resumes every tracked subscription.
func (s *Subscriber) ResumeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sub := range s.subscriptions {
		sub.Resume()
	}
}

// Close removes every tracked subscription and refuses new ones.
func (s *Subscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	for _, sub := range s.subscriptions {
		_ = s.bus.Unsubscribe(sub)
	}
	s.subscriptions = nil
	return nil
}

// Count returns the number of tracked subscriptions.
func (s *Subscriber) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscriptions)
}

// IsClosed returns true if the subscriber has been closed.
func (s *Subscriber) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
