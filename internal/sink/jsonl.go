package sink

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/sjson"

	"github.com/dshills/instrument/internal/event"
	"github.com/dshills/instrument/internal/event/tag"
)

// JSONLines writes one JSON object per notification to w:
//
//	{"time":"...","namespace":"db","tag":"select","tag_kind":"string",
//	 "duration_ms":4,"error":"...","payload":{"rows":3}}
//
// "error" is present only for failed work. Writes are serialised.
type JSONLines struct {
	mu  sync.Mutex
	w   io.Writer
	now func() time.Time
}

// NewJSONLines creates a JSON-lines sink writing to w.
func NewJSONLines(w io.Writer) *JSONLines {
	return &JSONLines{w: w, now: time.Now}
}

// WithClock replaces the time source used for the "time" field.
func (j *JSONLines) WithClock(now func() time.Time) *JSONLines {
	if now != nil {
		j.now = now
	}
	return j
}

// Handler implements Sink.
func (j *JSONLines) Handler(ns event.Namespace) event.TaggedHandler {
	return func(_ context.Context, t tag.Tag, p event.Payload) error {
		line, err := j.encode(ns, t, p)
		if err != nil {
			return fmt.Errorf("encode %s notification: %w", ns, err)
		}

		j.mu.Lock()
		defer j.mu.Unlock()
		if _, err := io.WriteString(j.w, line+"\n"); err != nil {
			return fmt.Errorf("write %s notification: %w", ns, err)
		}
		return nil
	}
}

type jsonField struct {
	path  string
	value any
}

func (j *JSONLines) encode(ns event.Namespace, t tag.Tag, p event.Payload) (string, error) {
	var tagValue any
	if !t.IsAbsent() {
		tagValue = t.Value()
	}
	fields := []jsonField{
		{"time", j.now().UTC().Format(time.RFC3339Nano)},
		{"namespace", ns.String()},
		{"tag", tagValue},
		{"tag_kind", t.Kind().String()},
	}
	if d, ok := p.Duration(); ok {
		fields = append(fields, jsonField{"duration_ms", d})
	}
	if err := p.Err(); err != nil {
		fields = append(fields, jsonField{"error", err.Error()})
	}

	doc := "{}"
	var err error
	for _, f := range fields {
		if doc, err = sjson.Set(doc, f.path, f.value); err != nil {
			return "", fmt.Errorf("field %q: %w", f.path, err)
		}
	}
	if doc, err = sjson.SetRaw(doc, "payload", "{}"); err != nil {
		return "", err
	}
	for _, k := range extraKeys(p) {
		if doc, err = sjson.Set(doc, "payload."+escapePath(k), jsonValue(p[k])); err != nil {
			return "", fmt.Errorf("payload field %q: %w", k, err)
		}
	}
	return doc, nil
}

// extraKeys returns the work-supplied payload keys, sorted.
func extraKeys(p event.Payload) []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		switch k {
		case event.KeyDuration, event.KeyError, event.KeyTag:
			continue
		}
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// jsonValue converts values sjson would otherwise marshal badly.
func jsonValue(v any) any {
	switch v := v.(type) {
	case error:
		return v.Error()
	case tag.Tag:
		return v.String()
	case time.Duration:
		return v.Milliseconds()
	case fmt.Stringer:
		return v.String()
	default:
		return v
	}
}

var pathEscaper = strings.NewReplacer(`\`, `\\`, `.`, `\.`, `*`, `\*`, `?`, `\?`)

// escapePath turns a payload key into a single sjson path component.
func escapePath(key string) string {
	key = pathEscaper.Replace(key)
	if key != "" && strings.Trim(key, "0123456789") == "" {
		// Numeric components address arrays unless forced to be keys.
		return ":" + key
	}
	return key
}
