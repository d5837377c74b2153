package sink

import (
	"context"
	"sync"
	"time"

	"github.com/eapache/queue"

	"github.com/dshills/instrument/internal/event"
	"github.com/dshills/instrument/internal/event/tag"
)

// DefaultRecorderCapacity is used when NewRecorder is given a non-positive capacity.
const DefaultRecorderCapacity = 256

// Record is one captured notification.
type Record struct {
	At        time.Time
	Namespace event.Namespace
	Tag       tag.Tag
	Payload   event.Payload
}

// Duration returns the recorded duration in milliseconds.
func (r Record) Duration() int64 {
	d, _ := r.Payload.Duration()
	return d
}

// Failed reports whether the recorded work failed.
func (r Record) Failed() bool {
	return r.Payload.Err() != nil
}

// Recorder keeps the most recent notifications in memory. When full, the
// oldest record is dropped.
type Recorder struct {
	mu       sync.Mutex
	q        *queue.Queue
	capacity int
	dropped  uint64
	now      func() time.Time
}

// NewRecorder creates a recorder holding at most capacity records.
func NewRecorder(capacity int) *Recorder {
	if capacity <= 0 {
		capacity = DefaultRecorderCapacity
	}
	return &Recorder{
		q:        queue.New(),
		capacity: capacity,
		now:      time.Now,
	}
}

// WithClock replaces the time source used to stamp records.
func (r *Recorder) WithClock(now func() time.Time) *Recorder {
	if now != nil {
		r.now = now
	}
	return r
}

// Handler implements Sink.
func (r *Recorder) Handler(ns event.Namespace) event.TaggedHandler {
	return func(_ context.Context, t tag.Tag, p event.Payload) error {
		r.add(Record{At: r.now(), Namespace: ns, Tag: t, Payload: p})
		return nil
	}
}

func (r *Recorder) add(rec Record) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for r.q.Length() >= r.capacity {
		r.q.Remove()
		r.dropped++
	}
	r.q.Add(rec)
}

// Records returns the retained records, oldest first.
func (r *Recorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Record, r.q.Length())
	for i := range out {
		out[i] = r.q.Get(i).(Record)
	}
	return out
}

// ByNamespace returns the retained records for ns, oldest first.
func (r *Recorder) ByNamespace(ns event.Namespace) []Record {
	var out []Record
	for _, rec := range r.Records() {
		if rec.Namespace == ns {
			out = append(out, rec)
		}
	}
	return out
}

// Last returns the most recent record.
func (r *Recorder) Last() (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.q.Length() == 0 {
		return Record{}, false
	}
	return r.q.Get(-1).(Record), true
}

// Len returns the number of retained records.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.q.Length()
}

// Capacity returns the maximum number of retained records.
func (r *Recorder) Capacity() int {
	return r.capacity
}

// Dropped returns how many records were evicted to make room.
func (r *Recorder) Dropped() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Reset discards all records and the drop counter.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.q = queue.New()
	r.dropped = 0
}
