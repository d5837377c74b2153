package event

import (
	"slices"
	"sync"
	"sync/atomic"
)

// Registry maps namespaces to their subscriptions.
//
// Writers are serialised and publish a fresh snapshot on every change;
// readers load the current snapshot without locking. A lookup therefore
// never blocks on, nor observes part of, a concurrent registration.
type Registry struct {
	mu   sync.Mutex
	snap atomic.Pointer[registrySnapshot]
}

// registrySnapshot is immutable once published.
type registrySnapshot struct {
	byNamespace map[Namespace][]*subscription
	byID        map[string]*subscription
}

var emptySnapshot = &registrySnapshot{
	byNamespace: map[Namespace][]*subscription{},
	byID:        map[string]*subscription{},
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	r := &Registry{}
	r.snap.Store(emptySnapshot)
	return r
}

func (r *Registry) load() *registrySnapshot {
	return r.snap.Load()
}

// Add registers a subscription. Within a namespace, subscriptions are kept
// ordered by priority and then by registration order.
func (r *Registry) Add(sub *subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()

	old := r.load()
	next := &registrySnapshot{
		byNamespace: make(map[Namespace][]*subscription, len(old.byNamespace)+1),
		byID:        make(map[string]*subscription, len(old.byID)+1),
	}
	for ns, subs := range old.byNamespace {
		next.byNamespace[ns] = subs
	}
	for id, s := range old.byID {
		next.byID[id] = s
	}

	subs := old.byNamespace[sub.namespace]
	pos := len(subs)
	for i, s := range subs {
		if s.config.Priority > sub.config.Priority {
			pos = i
			break
		}
	}
	// Fresh backing array: published slices are never written again.
	next.byNamespace[sub.namespace] = slices.Insert(slices.Clone(subs), pos, sub)
	next.byID[sub.id] = sub

	r.snap.Store(next)
}

// Remove drops a subscription by ID.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	old := r.load()
	sub, ok := old.byID[id]
	if !ok {
		return false
	}
	r.snap.Store(old.without(map[string]*subscription{id: sub}))
	return true
}

// RemoveCancelled drops every cancelled subscription and returns how many
// were removed.
func (r *Registry) RemoveCancelled() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	old := r.load()
	gone := make(map[string]*subscription)
	for id, sub := range old.byID {
		if sub.IsCancelled() {
			gone[id] = sub
		}
	}
	if len(gone) == 0 {
		return 0
	}
	r.snap.Store(old.without(gone))
	return len(gone)
}

// without returns a copy of the snapshot minus the given subscriptions.
func (s *registrySnapshot) without(gone map[string]*subscription) *registrySnapshot {
	next := &registrySnapshot{
		byNamespace: make(map[Namespace][]*subscription, len(s.byNamespace)),
		byID:        make(map[string]*subscription, len(s.byID)),
	}
	for id, sub := range s.byID {
		if _, drop := gone[id]; !drop {
			next.byID[id] = sub
		}
	}

	touched := make(map[Namespace]bool, len(gone))
	for _, sub := range gone {
		touched[sub.namespace] = true
	}
	for ns, subs := range s.byNamespace {
		if !touched[ns] {
			next.byNamespace[ns] = subs
			continue
		}
		kept := slices.DeleteFunc(slices.Clone(subs), func(sub *subscription) bool {
			_, drop := gone[sub.id]
			return drop
		})
		if len(kept) > 0 {
			next.byNamespace[ns] = kept
		}
	}
	return next
}

// Get returns a subscription by ID.
func (r *Registry) Get(id string) (*subscription, bool) {
	sub, ok := r.load().byID[id]
	return sub, ok
}

// Lookup returns the subscriptions registered under ns at the moment of the
// call. The returned slice is shared and must not be modified.
func (r *Registry) Lookup(ns Namespace) []*subscription {
	return r.load().byNamespace[ns]
}

// Count returns the total number of subscriptions.
func (r *Registry) Count() int {
	return len(r.load().byID)
}

// CountByNamespace returns the number of subscriptions under ns.
func (r *Registry) CountByNamespace(ns Namespace) int {
	return len(r.load().byNamespace[ns])
}

// CountActive returns the number of active subscriptions.
func (r *Registry) CountActive() int {
	count := 0
	for _, sub := range r.load().byID {
		if sub.IsActive() {
			count++
		}
	}
	return count
}

// Namespaces returns every namespace with at least one subscription, sorted.
func (r *Registry) Namespaces() []Namespace {
	snap := r.load()
	if len(snap.byNamespace) == 0 {
		return nil
	}
	out := make([]Namespace, 0, len(snap.byNamespace))
	for ns := range snap.byNamespace {
		out = append(out, ns)
	}
	slices.Sort(out)
	return out
}

// Clear removes every subscription.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snap.Store(emptySnapshot)
}
