// Package dispatch invokes subscriber callbacks for the instrumentation bus.
//
// Delivery is synchronous: every handler runs in the notifying goroutine, one
// after another, and Dispatch returns only when the handler has finished.
// There is no queue and no worker pool.
//
// # Panic Recovery
//
// A panicking handler never unwinds into the instrumented caller. The
// executor recovers the panic, captures the stack and records both in the
// Result. Reporting is left to the caller.
//
// # Usage
//
//	d := dispatch.NewSyncDispatcher(dispatch.WithClock(clock.Now))
//	result := d.Dispatch(ctx, notification, handler)
//	if !result.IsSuccess() {
//	    // apply the bus failure policy
//	}
package dispatch
