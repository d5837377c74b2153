package dispatch

import (
	"context"
	"time"
)

// Handler receives one notification.
// It mirrors the bus-level callback shape so this package has no dependency
// on the event package.
type Handler interface {
	Handle(ctx context.Context, notification any) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, notification any) error

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, notification any) error {
	return f(ctx, notification)
}

// Result is the outcome of one handler invocation.
type Result struct {
	// Success is true if the handler returned nil without panicking.
	Success bool

	// Error is the error returned by the handler.
	Error error

	// Panicked is true if the handler panicked.
	Panicked bool

	// PanicValue is the recovered panic value.
	PanicValue any

	// PanicStack is the stack captured at the panic site.
	PanicStack []byte

	// Duration is the time spent inside the handler.
	Duration time.Duration
}

// IsSuccess returns true if the handler completed cleanly.
func (r Result) IsSuccess() bool {
	return r.Success && !r.Panicked && r.Error == nil
}

// IsError returns true if the handler returned an error.
func (r Result) IsError() bool {
	return r.Error != nil && !r.Panicked
}

// IsPanic returns true if the handler panicked.
func (r Result) IsPanic() bool {
	return r.Panicked
}
