package dispatch

import (
	"context"
	"runtime/debug"
	"time"
)

// Executor runs a single handler with panic recovery and timing.
type Executor struct {
	now func() time.Time
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithExecutorClock sets the time source used to measure handler duration.
func WithExecutorClock(now func() time.Time) ExecutorOption {
	return func(e *Executor) {
		if now != nil {
			e.now = now
		}
	}
}

// NewExecutor creates an executor.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{
		now: time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute invokes handler with the notification and reports the outcome.
// The handler always runs; a cancelled context is passed through for the
// handler to observe but does not skip the call.
func (e *Executor) Execute(ctx context.Context, notification any, handler Handler) (result Result) {
	start := e.now()

	defer func() {
		result.Duration = e.now().Sub(start)

		r := recover()
		if r == nil {
			return
		}
		result.Success = false
		result.Panicked = true
		result.PanicValue = r
		result.PanicStack = debug.Stack()
	}()

	if err := handler.Handle(ctx, notification); err != nil {
		result.Error = err
		return result
	}
	result.Success = true
	return result
}
