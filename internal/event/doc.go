// Package event provides an in-process instrumentation bus.
//
// Code wraps a unit of work in Instrument or Time under a namespace and an
// optional tag. The bus measures how long the work took, builds a payload
// and synchronously notifies every subscriber of that namespace whose
// target matches the tag. Subscribers are pure observers: the work's value
// or error reaches the caller unchanged.
//
// # Namespaces and Tags
//
// A namespace is an opaque string compared by equality. A tag is either
// absent, a string or a symbol (see package tag). The two kinds never
// match each other: a subscriber for tag.ExactString("sql") does not see
// notifications tagged tag.Symbol("sql").
//
// # Targets
//
// A subscription names what tags it wants:
//
//	tag.Any()               every notification, tagged or not
//	tag.ExactString("sql")  string tag "sql" only
//	tag.ExactSymbol("sql")  symbol tag :sql only
//	tag.MustPattern(`^db`)  string tags matching the expression
//
// # Payloads
//
// A successful call delivers the fields returned by the work plus
// "duration" (whole milliseconds, int64). A failed call delivers only
// "error" and "duration". Single-argument subscribers also find the tag
// under "tag"; dual-argument subscribers receive it as a parameter.
// Every subscriber gets its own copy of the payload.
//
// # Basic Usage
//
//	bus := event.NewBus(event.WithLogger(logger))
//	defer bus.Close()
//
//	bus.Subscribe("db", tag.Any(), func(ctx context.Context, p event.Payload) error {
//	    d, _ := p.Duration()
//	    logger.Info("query", "tag", p["tag"], "ms", d)
//	    return nil
//	})
//
//	rows, err := event.Time(ctx, bus, "db", tag.String("users"), func() ([]User, error) {
//	    return store.Users(ctx)
//	})
//
// # Subscriber Failures
//
// By default a failing or panicking subscriber is logged and the remaining
// subscribers still run (PolicyIsolate). PolicyPropagate stops at the
// first failure and returns it; PolicyAggregate runs everyone and returns
// the failures joined. A work failure always wins over subscriber failures.
//
// # Thread Safety
//
// The Bus is safe for concurrent use. Each notification works from the
// registry snapshot taken when it starts, so concurrent subscribes are
// either fully visible to it or not at all. Subscribers run on the
// caller's goroutine and must manage their own synchronisation.
//
// # Subpackages
//
//   - tag: tags, targets and the matching rules
//   - dispatch: synchronous handler execution with panic recovery
package event
