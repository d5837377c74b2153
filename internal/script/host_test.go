package script

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/instrument/internal/event"
	"github.com/dshills/instrument/internal/event/tag"
)

func newTestHost(t *testing.T) (*Host, *event.Bus, *bytes.Buffer) {
	t.Helper()
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bus := event.NewBus(
		event.WithLogger(logger),
		event.WithClock(event.ClockFunc(func() time.Time { return fixed })),
	)
	h := NewHost(bus)
	t.Cleanup(func() { _ = h.Close() })
	return h, bus, &logs
}

func mustRun(t *testing.T, h *Host, code string) {
	t.Helper()
	if err := h.DoString(context.Background(), code); err != nil {
		t.Fatalf("DoString: %v", err)
	}
}

func global(h *Host, name string) lua.LValue {
	return h.L.GetGlobal(name)
}

func TestHost_TimeNotifiesGoSubscriber(t *testing.T) {
	h, bus, _ := newTestHost(t)

	var got []event.Payload
	_, err := bus.Subscribe("db.query", tag.Any(), func(_ context.Context, p event.Payload) error {
		got = append(got, p)
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	mustRun(t, h, `result = instrument.time("db.query", "users", function() return 41 + 1 end)`)

	if n, ok := global(h, "result").(lua.LNumber); !ok || n != 42 {
		t.Errorf("result = %v, want 42", global(h, "result"))
	}
	if len(got) != 1 {
		t.Fatalf("notifications = %d, want 1", len(got))
	}
	if tg, _ := got[0].Tag(); !tg.Equal(tag.String("users")) {
		t.Errorf("tag = %v, want users", tg)
	}
	if d, ok := got[0].Duration(); !ok || d != 0 {
		t.Errorf("duration = %v, %v; want 0", d, ok)
	}
}

func TestHost_LuaSubscriberShapes(t *testing.T) {
	h, bus, _ := newTestHost(t)

	mustRun(t, h, `
		single_tag = "unset"
		pair_tag = "unset"
		instrument.subscribe("cache", function(p)
			single_tag = p.tag
			single_hits = p.hits
		end)
		instrument.subscribe("cache", function(t, p)
			pair_tag = t
			pair_duration = p.duration
		end)
	`)

	err := bus.Notify(context.Background(), "cache", tag.String("get"), event.Payload{"hits": 3, "duration": int64(5)})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}

	if s, _ := global(h, "single_tag").(lua.LString); s != "get" {
		t.Errorf("single_tag = %v, want get", global(h, "single_tag"))
	}
	if n, _ := global(h, "single_hits").(lua.LNumber); n != 3 {
		t.Errorf("single_hits = %v, want 3", global(h, "single_hits"))
	}
	if s, _ := global(h, "pair_tag").(lua.LString); s != "get" {
		t.Errorf("pair_tag = %v, want get", global(h, "pair_tag"))
	}
	if n, _ := global(h, "pair_duration").(lua.LNumber); n != 5 {
		t.Errorf("pair_duration = %v, want 5", global(h, "pair_duration"))
	}
}

func TestHost_AbsentTagIsNil(t *testing.T) {
	h, bus, _ := newTestHost(t)

	mustRun(t, h, `
		seen = false
		instrument.subscribe("x", function(t, p)
			seen = true
			tag_is_nil = (t == nil)
		end)
	`)
	if err := bus.Notify(context.Background(), "x", tag.None(), event.Payload{}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if global(h, "seen") != lua.LTrue || global(h, "tag_is_nil") != lua.LTrue {
		t.Errorf("seen = %v, tag_is_nil = %v", global(h, "seen"), global(h, "tag_is_nil"))
	}
}

func TestHost_RejectsUnsupportedShapes(t *testing.T) {
	tests := []struct {
		name string
		fn   string
	}{
		{"no params", "function() end"},
		{"three params", "function(a, b, c) end"},
		{"variadic", "function(...) end"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, bus, _ := newTestHost(t)

			err := h.DoString(context.Background(), `instrument.subscribe("x", `+tt.fn+`)`)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), "invalid subscriber") {
				t.Errorf("error = %v, want invalid subscriber", err)
			}
			if bus.SubscriptionCount() != 0 {
				t.Errorf("SubscriptionCount = %d, want 0", bus.SubscriptionCount())
			}
		})
	}
}

func TestHost_SubscribeTypedError(t *testing.T) {
	h, _, _ := newTestHost(t)

	mustRun(t, h, `f = function(a, b, c) end`)
	fn := global(h, "f").(*lua.LFunction)

	_, err := h.Subscribe("x", tag.Any(), fn)
	var ise *event.InvalidSubscriberError
	if !errors.As(err, &ise) {
		t.Fatalf("error = %v, want *InvalidSubscriberError", err)
	}
	if ise.Arity != 3 {
		t.Errorf("Arity = %d, want 3", ise.Arity)
	}
	if !errors.Is(err, event.ErrUnsupportedArity) {
		t.Error("expected errors.Is ErrUnsupportedArity")
	}

	if _, err := h.Subscribe("x", tag.Any(), nil); !errors.Is(err, event.ErrNilHandler) {
		t.Errorf("nil fn error = %v, want ErrNilHandler", err)
	}
}

func TestHost_WorkErrorIsReraised(t *testing.T) {
	h, bus, _ := newTestHost(t)

	var got event.Payload
	_, _ = bus.Subscribe("job", tag.Any(), func(_ context.Context, p event.Payload) error {
		got = p
		return nil
	})

	mustRun(t, h, `
		ok, err = pcall(function()
			return instrument.time("job", function() error({code = 7}) end)
		end)
		code = err.code
	`)

	if global(h, "ok") != lua.LFalse {
		t.Errorf("ok = %v, want false", global(h, "ok"))
	}
	if n, _ := global(h, "code").(lua.LNumber); n != 7 {
		t.Errorf("code = %v, want 7", global(h, "code"))
	}
	if got.Err() == nil {
		t.Fatal("payload has no error")
	}
	if _, ok := got.Duration(); !ok {
		t.Error("payload has no duration")
	}
}

func TestHost_InstrumentMergesFields(t *testing.T) {
	h, bus, _ := newTestHost(t)

	var got event.Payload
	_, _ = bus.Subscribe("http", tag.Any(), func(_ context.Context, p event.Payload) error {
		got = p
		return nil
	})

	mustRun(t, h, `
		body = instrument.instrument("http", "GET", function()
			return "ok", {status = 200, path = "/", duration = 999, cb = function() end}
		end)
	`)

	if s, _ := global(h, "body").(lua.LString); s != "ok" {
		t.Errorf("body = %v, want ok", global(h, "body"))
	}
	if got["status"] != int64(200) {
		t.Errorf("status = %#v, want 200", got["status"])
	}
	if got["path"] != "/" {
		t.Errorf("path = %#v, want /", got["path"])
	}
	if d, _ := got.Duration(); d != 0 {
		t.Errorf("duration = %d, want measured 0", d)
	}
	if _, ok := got["cb"]; ok {
		t.Error("function field should be skipped")
	}
}

func TestHost_SymbolAndPatternTargets(t *testing.T) {
	h, bus, _ := newTestHost(t)

	mustRun(t, h, `
		symbol_hits = 0
		string_hits = 0
		pattern_hits = 0
		instrument.subscribe("q", instrument.symbol("read"), function(p) symbol_hits = symbol_hits + 1 end)
		instrument.subscribe("q", "read", function(p) string_hits = string_hits + 1 end)
		instrument.subscribe("q", instrument.pattern("^re"), function(p) pattern_hits = pattern_hits + 1 end)
	`)

	ctx := context.Background()
	for _, tg := range []tag.Tag{tag.Symbol("read"), tag.String("read"), tag.String("rebuild"), tag.Symbol("write")} {
		if err := bus.Notify(ctx, "q", tg, event.Payload{}); err != nil {
			t.Fatalf("Notify: %v", err)
		}
	}

	checks := map[string]lua.LNumber{"symbol_hits": 1, "string_hits": 1, "pattern_hits": 2}
	for name, want := range checks {
		if n, _ := global(h, name).(lua.LNumber); n != want {
			t.Errorf("%s = %v, want %v", name, global(h, name), want)
		}
	}
}

func TestHost_SymbolTagFromLua(t *testing.T) {
	h, bus, _ := newTestHost(t)

	var got tag.Tag
	_, _ = bus.SubscribeTagged("q", tag.ExactSymbol("load"), func(_ context.Context, tg tag.Tag, _ event.Payload) error {
		got = tg
		return nil
	})

	mustRun(t, h, `
		instrument.time("q", instrument.symbol("load"), function() end)
		same = instrument.symbol("a") == instrument.symbol("a")
		label = tostring(instrument.symbol("a"))
	`)

	if !got.Equal(tag.Symbol("load")) {
		t.Errorf("tag = %v, want :load", got)
	}
	if global(h, "same") != lua.LTrue {
		t.Error("equal symbols should compare equal")
	}
	if s, _ := global(h, "label").(lua.LString); s != lua.LString(tag.Symbol("a").String()) {
		t.Errorf("label = %v", global(h, "label"))
	}
}

func TestHost_InvalidArguments(t *testing.T) {
	tests := []struct {
		name string
		code string
		want string
	}{
		{"bad pattern", `instrument.pattern("(")`, "error parsing regexp"},
		{"empty symbol", `instrument.symbol("")`, tag.ErrEmptySymbol.Error()},
		{"missing fn", `instrument.time("x", "t")`, ErrNotFunction.Error()},
		{"table tag", `instrument.time("x", {}, function() end)`, "invalid tag"},
		{"pattern as tag", `instrument.time("x", instrument.pattern("a"), function() end)`, "invalid tag"},
		{"empty namespace", `instrument.time("", function() end)`, "invalid namespace"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _, _ := newTestHost(t)
			err := h.DoString(context.Background(), tt.code)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestHost_Unsubscribe(t *testing.T) {
	h, bus, _ := newTestHost(t)

	mustRun(t, h, `
		hits = 0
		id = instrument.subscribe("x", function(p) hits = hits + 1 end)
	`)
	if h.SubscriptionCount() != 1 {
		t.Fatalf("SubscriptionCount = %d, want 1", h.SubscriptionCount())
	}

	mustRun(t, h, `
		first = instrument.unsubscribe(id)
		second = instrument.unsubscribe(id)
	`)
	if global(h, "first") != lua.LTrue || global(h, "second") != lua.LFalse {
		t.Errorf("first = %v, second = %v", global(h, "first"), global(h, "second"))
	}

	_ = bus.Notify(context.Background(), "x", tag.None(), event.Payload{})
	if n, _ := global(h, "hits").(lua.LNumber); n != 0 {
		t.Errorf("hits = %v, want 0", n)
	}
}

func TestHost_NestedInstrumentFromSubscriber(t *testing.T) {
	h, bus, _ := newTestHost(t)

	mustRun(t, h, `
		inner = 0
		instrument.subscribe("inner", function(p) inner = inner + 1 end)
		instrument.subscribe("outer", function(p)
			instrument.time("inner", function() end)
		end)
	`)

	// From Go: the outer callback takes the lock, the inner one must not.
	if err := bus.Notify(context.Background(), "outer", tag.None(), event.Payload{}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	// From a script: neither callback takes the lock.
	mustRun(t, h, `instrument.time("outer", function() end)`)

	if n, _ := global(h, "inner").(lua.LNumber); n != 2 {
		t.Errorf("inner = %v, want 2", global(h, "inner"))
	}
}

func TestHost_ConcurrentNotify(t *testing.T) {
	h, bus, _ := newTestHost(t)

	mustRun(t, h, `
		total = 0
		instrument.subscribe("c", function(p) total = total + p.n end)
	`)

	const workers, each = 8, 25
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range each {
				_ = bus.Notify(context.Background(), "c", tag.None(), event.Payload{"n": 1})
			}
		}()
	}
	wg.Wait()

	if n, _ := global(h, "total").(lua.LNumber); n != workers*each {
		t.Errorf("total = %v, want %d", n, workers*each)
	}
}

func TestHost_LuaSubscriberErrorUnderPolicies(t *testing.T) {
	h, bus, logs := newTestHost(t)

	mustRun(t, h, `instrument.subscribe("x", function(p) error("boom") end)`)

	if err := bus.Notify(context.Background(), "x", tag.None(), event.Payload{}); err != nil {
		t.Errorf("isolate: Notify = %v, want nil", err)
	}
	if !strings.Contains(logs.String(), "subscriber failed") {
		t.Errorf("expected failure log, got %q", logs.String())
	}

	bus.SetFailurePolicy(event.PolicyPropagate)
	err := bus.Notify(context.Background(), "x", tag.None(), event.Payload{})
	var he *event.HandlerError
	if !errors.As(err, &he) {
		t.Fatalf("propagate: error = %v, want *HandlerError", err)
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("error = %v, want boom", err)
	}
}

func TestHost_Sandbox(t *testing.T) {
	h, _, logs := newTestHost(t)

	mustRun(t, h, `
		blocked = (io == nil) and (os == nil) and (debug == nil) and (require == nil)
			and (load == nil) and (loadstring == nil) and (dofile == nil)
		available = (string ~= nil) and (table ~= nil) and (math ~= nil)
		print("hello", 1)
	`)

	if global(h, "blocked") != lua.LTrue {
		t.Error("unsafe globals should be removed")
	}
	if global(h, "available") != lua.LTrue {
		t.Error("safe libraries should be open")
	}
	if !strings.Contains(logs.String(), "hello\t1") && !strings.Contains(logs.String(), `text="hello\t1"`) {
		t.Errorf("print output not logged: %q", logs.String())
	}
}

func TestHost_ContextCancellation(t *testing.T) {
	h, _, _ := newTestHost(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := h.DoString(ctx, `while true do end`)
	if err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestHost_Close(t *testing.T) {
	h, bus, _ := newTestHost(t)

	mustRun(t, h, `instrument.subscribe("x", function(p) end)`)
	if bus.SubscriptionCount() != 1 {
		t.Fatalf("SubscriptionCount = %d, want 1", bus.SubscriptionCount())
	}

	if err := h.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !h.IsClosed() {
		t.Error("IsClosed = false after Close")
	}
	if bus.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount = %d after Close, want 0", bus.SubscriptionCount())
	}
	if err := h.DoString(context.Background(), `x = 1`); !errors.Is(err, ErrHostClosed) {
		t.Errorf("DoString after Close = %v, want ErrHostClosed", err)
	}
	if err := h.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
