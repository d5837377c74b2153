package script

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/instrument/internal/event"
	"github.com/dshills/instrument/internal/event/tag"
)

// Host owns one Lua state bound to a bus.
//
// gopher-lua states are not goroutine-safe. The host serialises every entry
// into the state: script execution and subscriber callbacks delivered from
// other goroutines. Callbacks triggered by the running script itself reuse
// the state without locking again.
type Host struct {
	L *lua.LState

	mu     sync.Mutex
	bus    *event.Bus
	logger *slog.Logger

	// runCtx is the context of the current entry into the state; nil when idle.
	runCtx context.Context
	closed bool

	subs  *event.Subscriber
	idsMu sync.Mutex
	byID  map[string]event.Subscription
}

// inScriptKey marks contexts that originate inside a host's Lua state.
type inScriptKey struct{}

// HostOption configures a Host.
type HostOption func(*Host)

// WithLogger sets the logger used by print and for script diagnostics.
func WithLogger(l *slog.Logger) HostOption {
	return func(h *Host) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewHost creates a sandboxed Lua state with the instrument module installed.
func NewHost(bus *event.Bus, opts ...HostOption) *Host {
	h := &Host{
		bus:    bus,
		logger: bus.Logger(),
		subs:   event.NewSubscriber(bus),
		byID:   make(map[string]event.Subscription),
	}
	for _, opt := range opts {
		opt(h)
	}

	L := lua.NewState(lua.Options{
		SkipOpenLibs: true,
	})
	openSafeLibraries(L)
	installPrint(L, h.logger)
	registerTypes(L)
	h.installModule(L)
	h.L = L
	return h
}

// DoFile executes a Lua file. The call blocks until the script returns;
// cancelling ctx aborts it.
func (h *Host) DoFile(ctx context.Context, path string) error {
	if err := h.run(ctx, func() error { return h.L.DoFile(path) }); err != nil {
		return fmt.Errorf("run %s: %w", path, err)
	}
	return nil
}

// DoString executes a Lua chunk.
func (h *Host) DoString(ctx context.Context, code string) error {
	return h.run(ctx, func() error { return h.L.DoString(code) })
}

func (h *Host) run(ctx context.Context, fn func() error) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrHostClosed
	}

	h.runCtx = context.WithValue(ctx, inScriptKey{}, h)
	h.L.SetContext(ctx)
	defer func() {
		h.L.RemoveContext()
		h.runCtx = nil
	}()

	return doWithRecovery(fn)
}

// doWithRecovery executes a function with panic recovery.
func doWithRecovery(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	return fn()
}

// scriptContext returns the context for bus calls made from inside the state.
func (h *Host) scriptContext() context.Context {
	if h.runCtx != nil {
		return h.runCtx
	}
	return context.WithValue(context.Background(), inScriptKey{}, h)
}

// call invokes fn with the arguments built by args. Calls arriving from
// outside the state take the host lock first.
func (h *Host) call(ctx context.Context, fn *lua.LFunction, args func(L *lua.LState) []lua.LValue) error {
	if owner, _ := ctx.Value(inScriptKey{}).(*Host); owner != h {
		h.mu.Lock()
		defer h.mu.Unlock()

		if h.closed {
			return ErrHostClosed
		}
		prev := h.runCtx
		h.runCtx = context.WithValue(ctx, inScriptKey{}, h)
		defer func() { h.runCtx = prev }()
	}

	return doWithRecovery(func() error {
		return h.L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, args(h.L)...)
	})
}

// Subscribe registers a Lua function on the bus. A function declared with
// one parameter receives the payload table; with two it receives the tag
// and the payload. Any other shape fails with *event.InvalidSubscriberError,
// raised here at subscribe time rather than when a notification is dispatched.
func (h *Host) Subscribe(ns event.Namespace, target tag.Target, fn *lua.LFunction) (event.Subscription, error) {
	if fn == nil {
		return nil, &event.ConfigurationError{Field: "handler", Err: event.ErrNilHandler}
	}
	kind, err := callbackKind(ns, fn)
	if err != nil {
		return nil, err
	}

	var sub event.Subscription
	switch kind {
	case event.CallbackPayload:
		sub, err = h.subs.Subscribe(ns, target, func(ctx context.Context, p event.Payload) error {
			return h.call(ctx, fn, func(L *lua.LState) []lua.LValue {
				return []lua.LValue{payloadToLua(L, p)}
			})
		})
	default:
		sub, err = h.subs.SubscribeTagged(ns, target, func(ctx context.Context, t tag.Tag, p event.Payload) error {
			return h.call(ctx, fn, func(L *lua.LState) []lua.LValue {
				return []lua.LValue{tagToLua(L, t), payloadToLua(L, p)}
			})
		})
	}
	if err != nil {
		return nil, err
	}

	h.idsMu.Lock()
	h.byID[sub.ID()] = sub
	h.idsMu.Unlock()
	return sub, nil
}

// callbackKind picks the invocation shape from the declared parameters.
func callbackKind(ns event.Namespace, fn *lua.LFunction) (event.CallbackKind, error) {
	if fn.IsG {
		return 0, &event.InvalidSubscriberError{Namespace: ns, Arity: -1, Reason: "go function"}
	}
	n := int(fn.Proto.NumParameters)
	if fn.Proto.IsVarArg != 0 {
		return 0, &event.InvalidSubscriberError{Namespace: ns, Arity: n, Reason: "variadic"}
	}
	switch n {
	case 1:
		return event.CallbackPayload, nil
	case 2:
		return event.CallbackTagged, nil
	default:
		return 0, &event.InvalidSubscriberError{Namespace: ns, Arity: n}
	}
}

// Unsubscribe removes a subscription made by a script.
func (h *Host) Unsubscribe(id string) bool {
	h.idsMu.Lock()
	sub, ok := h.byID[id]
	delete(h.byID, id)
	h.idsMu.Unlock()

	if !ok {
		return false
	}
	return h.subs.Unsubscribe(sub) == nil
}

// SubscriptionCount returns the number of live script subscriptions.
func (h *Host) SubscriptionCount() int {
	return h.subs.Count()
}

// IsClosed returns true if the host has been closed.
func (h *Host) IsClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// Close unsubscribes every script callback and releases the Lua state.
func (h *Host) Close() error {
	if err := h.subs.Close(); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true
	h.L.Close()

	h.idsMu.Lock()
	clear(h.byID)
	h.idsMu.Unlock()
	return nil
}
