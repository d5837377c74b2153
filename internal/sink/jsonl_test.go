package sink

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tidwall/gjson"

	"github.com/dshills/instrument/internal/event"
	"github.com/dshills/instrument/internal/event/tag"
)

var fixedTime = time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

func TestJSONLines_Success(t *testing.T) {
	var buf bytes.Buffer
	s := NewJSONLines(&buf).WithClock(func() time.Time { return fixedTime })

	err := s.Handler("db")(context.Background(), tag.String("select"), event.Payload{
		event.KeyDuration: int64(12),
		"table":           "users",
		"rows":            3,
		"a.b":             true,
	})
	if err != nil {
		t.Fatalf("handler error = %v", err)
	}

	line := buf.String()
	if !strings.HasSuffix(line, "\n") || strings.Count(line, "\n") != 1 {
		t.Fatalf("expected exactly one line, got %q", line)
	}
	if !gjson.Valid(line) {
		t.Fatalf("invalid JSON: %s", line)
	}

	checks := map[string]string{
		"time":          "2024-05-06T07:08:09Z",
		"namespace":     "db",
		"tag":           "select",
		"tag_kind":      "string",
		"duration_ms":   "12",
		"payload.table": "users",
		"payload.rows":  "3",
		`payload.a\.b`:  "true",
	}
	for path, want := range checks {
		if got := gjson.Get(line, path).String(); got != want {
			t.Errorf("%s = %q, want %q", path, got, want)
		}
	}
	if gjson.Get(line, "error").Exists() {
		t.Error("successful notification carries an error field")
	}
}

func TestJSONLines_Failure(t *testing.T) {
	var buf bytes.Buffer
	s := NewJSONLines(&buf)

	s.Handler("db")(context.Background(), tag.None(), event.Payload{
		event.KeyDuration: int64(3),
		event.KeyError:    errors.New("connection reset"),
	})

	line := buf.String()
	if got := gjson.Get(line, "error").String(); got != "connection reset" {
		t.Errorf("error = %q, want connection reset", got)
	}
	if tg := gjson.Get(line, "tag"); tg.Type != gjson.Null {
		t.Errorf("absent tag encoded as %s, want null", tg.Raw)
	}
	if got := gjson.Get(line, "tag_kind").String(); got != "absent" {
		t.Errorf("tag_kind = %q, want absent", got)
	}
	if !gjson.Get(line, "payload").IsObject() {
		t.Error("payload should be an empty object")
	}
}

func TestJSONLines_ValueConversion(t *testing.T) {
	var buf bytes.Buffer
	s := NewJSONLines(&buf)

	s.Handler("jobs")(context.Background(), tag.Symbol("sweep"), event.Payload{
		"cause":   errors.New("stale"),
		"timeout": 1500 * time.Millisecond,
		"parent":  tag.Symbol("batch"),
		"ids":     []int{1, 2},
	})

	line := buf.String()
	if got := gjson.Get(line, "tag").String(); got != "sweep" {
		t.Errorf("tag = %q, want sweep", got)
	}
	if got := gjson.Get(line, "payload.cause").String(); got != "stale" {
		t.Errorf("cause = %q, want stale", got)
	}
	if got := gjson.Get(line, "payload.timeout").Int(); got != 1500 {
		t.Errorf("timeout = %d, want 1500", got)
	}
	if got := gjson.Get(line, "payload.parent").String(); got != ":batch" {
		t.Errorf("parent = %q, want :batch", got)
	}
	if got := gjson.Get(line, "payload.ids.#").Int(); got != 2 {
		t.Errorf("ids length = %d, want 2", got)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestJSONLines_WriteError(t *testing.T) {
	s := NewJSONLines(failingWriter{})
	err := s.Handler("db")(context.Background(), tag.None(), event.Payload{})
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Errorf("expected write error, got %v", err)
	}
}

func TestJSONLines_ThroughBus(t *testing.T) {
	var buf bytes.Buffer
	bus := event.NewBus()
	Attach(bus, NewJSONLines(&buf), []event.Namespace{"db"})

	for range 3 {
		event.Time(context.Background(), bus, "db", tag.String("q"), func() (int, error) { return 0, nil })
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("wrote %d lines, want 3", len(lines))
	}
	for _, l := range lines {
		if !gjson.Get(l, "duration_ms").Exists() {
			t.Errorf("line missing duration_ms: %s", l)
		}
	}
}
