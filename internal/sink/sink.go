// Package sink provides ready-made subscribers for the instrumentation bus.
//
// A Sink builds one handler per namespace because bus callbacks are not
// told which namespace they were registered under. Attach registers a sink
// on a list of namespaces in one call.
package sink

import (
	"fmt"

	"github.com/dshills/instrument/internal/event"
	"github.com/dshills/instrument/internal/event/tag"
)

// Sink produces a bus handler bound to one namespace.
type Sink interface {
	Handler(ns event.Namespace) event.TaggedHandler
}

// Func adapts a function to Sink.
type Func func(ns event.Namespace) event.TaggedHandler

// Handler implements Sink.
func (f Func) Handler(ns event.Namespace) event.TaggedHandler {
	return f(ns)
}

// Attach subscribes s to every namespace with an Any target. Sinks observe
// after ordinary subscribers unless opts override the priority. On error,
// subscriptions made so far are returned along with it.
func Attach(r event.Registrar, s Sink, namespaces []event.Namespace, opts ...event.SubscriptionOption) ([]event.Subscription, error) {
	opts = append([]event.SubscriptionOption{event.WithPriority(event.PriorityLow)}, opts...)

	subs := make([]event.Subscription, 0, len(namespaces))
	for _, ns := range namespaces {
		sub, err := r.SubscribeTagged(ns, tag.Any(), s.Handler(ns), opts...)
		if err != nil {
			return subs, fmt.Errorf("attach sink to %q: %w", ns, err)
		}
		subs = append(subs, sub)
	}
	return subs, nil
}
