package telemetry

import (
	"slices"

	"go.opentelemetry.io/otel/attribute"

	"github.com/dshills/instrument/internal/event"
	"github.com/dshills/instrument/internal/event/tag"
)

// Attribute keys.
const (
	AttrNamespace = attribute.Key("instrument.namespace")
	AttrTag       = attribute.Key("instrument.tag")
	AttrTagKind   = attribute.Key("instrument.tag_kind")
	AttrOutcome   = attribute.Key("instrument.outcome")
	AttrDuration  = attribute.Key("instrument.duration_ms")

	payloadPrefix = "instrument.payload."
)

// Outcome values.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

func outcome(p event.Payload) string {
	if p.Err() != nil {
		return OutcomeError
	}
	return OutcomeOK
}

// baseAttrs are low-cardinality attributes shared by spans and metrics.
func baseAttrs(ns event.Namespace, t tag.Tag, p event.Payload) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrNamespace.String(ns.String()),
		AttrTag.String(t.String()),
		AttrTagKind.String(t.Kind().String()),
		AttrOutcome.String(outcome(p)),
	}
}

// payloadAttrs converts scalar payload fields. Other values are skipped.
func payloadAttrs(p event.Payload) []attribute.KeyValue {
	keys := make([]string, 0, len(p))
	for k := range p {
		switch k {
		case event.KeyDuration, event.KeyError, event.KeyTag:
			continue
		}
		keys = append(keys, k)
	}
	slices.Sort(keys)

	attrs := make([]attribute.KeyValue, 0, len(keys))
	for _, k := range keys {
		key := attribute.Key(payloadPrefix + k)
		switch v := p[k].(type) {
		case string:
			attrs = append(attrs, key.String(v))
		case bool:
			attrs = append(attrs, key.Bool(v))
		case int:
			attrs = append(attrs, key.Int(v))
		case int64:
			attrs = append(attrs, key.Int64(v))
		case float64:
			attrs = append(attrs, key.Float64(v))
		case tag.Tag:
			attrs = append(attrs, key.String(v.String()))
		}
	}
	return attrs
}
