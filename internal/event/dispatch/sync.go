package dispatch

import (
	"context"
	"sync/atomic"
	"time"
)

// SyncDispatcher invokes handlers in the caller's goroutine and keeps
// delivery counters.
type SyncDispatcher struct {
	executor *Executor

	dispatched  atomic.Uint64
	succeeded   atomic.Uint64
	failed      atomic.Uint64
	panicked    atomic.Uint64
	totalTimeNs atomic.Int64
}

// SyncOption configures a SyncDispatcher.
type SyncOption func(*syncConfig)

type syncConfig struct {
	executorOpts []ExecutorOption
}

// WithClock sets the time source used to measure handler duration.
func WithClock(now func() time.Time) SyncOption {
	return func(c *syncConfig) {
		c.executorOpts = append(c.executorOpts, WithExecutorClock(now))
	}
}

// NewSyncDispatcher creates a synchronous dispatcher.
func NewSyncDispatcher(opts ...SyncOption) *SyncDispatcher {
	var cfg syncConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return &SyncDispatcher{
		executor: NewExecutor(cfg.executorOpts...),
	}
}

// Dispatch runs handler and blocks until it returns or panics.
func (d *SyncDispatcher) Dispatch(ctx context.Context, notification any, handler Handler) Result {
	d.dispatched.Add(1)

	result := d.executor.Execute(ctx, notification, handler)
	d.totalTimeNs.Add(result.Duration.Nanoseconds())

	switch {
	case result.Panicked:
		d.panicked.Add(1)
	case result.Error != nil:
		d.failed.Add(1)
	default:
		d.succeeded.Add(1)
	}
	return result
}

// Stats returns delivery counters. Counters are read individually, so a
// snapshot taken during concurrent dispatch may be slightly inconsistent.
func (d *SyncDispatcher) Stats() Stats {
	dispatched := d.dispatched.Load()
	totalNs := d.totalTimeNs.Load()

	var avgNs int64
	if dispatched > 0 {
		avgNs = totalNs / int64(dispatched)
	}

	return Stats{
		Dispatched:    dispatched,
		Succeeded:     d.succeeded.Load(),
		Failed:        d.failed.Load(),
		Panicked:      d.panicked.Load(),
		TotalDuration: time.Duration(totalNs),
		AvgDuration:   time.Duration(avgNs),
	}
}

// Stats holds SyncDispatcher counters.
type Stats struct {
	Dispatched    uint64
	Succeeded     uint64
	Failed        uint64
	Panicked      uint64
	TotalDuration time.Duration
	AvgDuration   time.Duration
}
