package event

// FilterFunc is a payload predicate used with WithFilter. It sees the
// payload as built by the bus, before KeyTag is injected.
type FilterFunc func(payload Payload) bool

// FilterFailed allows only notifications for work that failed.
func FilterFailed() FilterFunc {
	return func(p Payload) bool {
		_, ok := p[KeyError]
		return ok
	}
}

// FilterSucceeded allows only notifications for work that succeeded.
func FilterSucceeded() FilterFunc {
	return FilterNot(FilterFailed())
}

// FilterMinDuration allows notifications whose duration is at least ms.
// Payloads without a duration are rejected.
func FilterMinDuration(ms int64) FilterFunc {
	return func(p Payload) bool {
		d, ok := p.Duration()
		return ok && d >= ms
	}
}

// FilterHasKey allows payloads that carry key.
func FilterHasKey(key string) FilterFunc {
	return func(p Payload) bool {
		_, ok := p[key]
		return ok
	}
}

// FilterKeyEquals allows payloads whose key holds a value equal to want.
// Values that are not comparable never match.
func FilterKeyEquals(key string, want any) FilterFunc {
	return func(p Payload) (match bool) {
		v, ok := p[key]
		if !ok {
			return false
		}
		defer func() {
			if recover() != nil {
				match = false
			}
		}()
		return v == want
	}
}

// FilterPayload adapts a typed predicate on a single payload field.
// The filter rejects payloads where the field is missing or of another type.
func FilterPayload[T any](key string, predicate func(T) bool) FilterFunc {
	return func(p Payload) bool {
		v, ok := p[key].(T)
		if !ok {
			return false
		}
		return predicate(v)
	}
}

// FilterAnd combines multiple filters with AND logic.
// All filters must pass for the payload to be delivered.
func FilterAnd(filters ...FilterFunc) FilterFunc {
	return func(p Payload) bool {
		for _, f := range filters {
			if !f(p) {
				return false
			}
		}
		return true
	}
}

// FilterOr combines multiple filters with OR logic.
// At least one filter must pass for the payload to be delivered.
func FilterOr(filters ...FilterFunc) FilterFunc {
	return func(p Payload) bool {
		for _, f := range filters {
			if f(p) {
				return true
			}
		}
		return false
	}
}

// FilterNot negates a filter.
func FilterNot(filter FilterFunc) FilterFunc {
	return func(p Payload) bool {
		return !filter(p)
	}
}

// FilterAll allows every payload.
func FilterAll() FilterFunc {
	return func(Payload) bool {
		return true
	}
}

// FilterNone blocks every payload.
func FilterNone() FilterFunc {
	return func(Payload) bool {
		return false
	}
}
