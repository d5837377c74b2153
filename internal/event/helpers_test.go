package event

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dshills/instrument/internal/event/tag"
)

// manualClock only moves when told to.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recorder collects what a subscriber was handed.
type recorder struct {
	mu       sync.Mutex
	payloads []Payload
	tags     []tag.Tag
}

func (r *recorder) payload(_ context.Context, p Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloads = append(r.payloads, p)
	return nil
}

func (r *recorder) tagged(_ context.Context, t tag.Tag, p Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tags = append(r.tags, t)
	r.payloads = append(r.payloads, p)
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.payloads)
}

func (r *recorder) last() Payload {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.payloads) == 0 {
		return nil
	}
	return r.payloads[len(r.payloads)-1]
}

func newTestBus(opts ...BusOption) (*Bus, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return NewBus(append([]BusOption{WithLogger(logger)}, opts...)...), &buf
}
