package script

import (
	"errors"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/instrument/internal/event"
	"github.com/dshills/instrument/internal/event/tag"
)

// ModuleName is the global the instrument API is installed under.
const ModuleName = "instrument"

func (h *Host) installModule(L *lua.LState) {
	mod := L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"subscribe":   h.luaSubscribe,
		"unsubscribe": h.luaUnsubscribe,
		"time":        h.luaTime,
		"instrument":  h.luaInstrument,
		"symbol":      luaSymbol,
		"pattern":     luaPattern,
	})
	L.SetGlobal(ModuleName, mod)
}

// splitArgs reads (ns, fn) or (ns, x, fn) and returns x and fn.
func splitArgs(L *lua.LState) (event.Namespace, lua.LValue, *lua.LFunction) {
	ns := event.Namespace(L.CheckString(1))
	var middle lua.LValue = lua.LNil
	fnIdx := 2
	if L.GetTop() >= 3 {
		middle = L.Get(2)
		fnIdx = 3
	}
	fn, ok := L.Get(fnIdx).(*lua.LFunction)
	if !ok {
		L.ArgError(fnIdx, ErrNotFunction.Error())
		return ns, middle, nil
	}
	return ns, middle, fn
}

func (h *Host) luaSubscribe(L *lua.LState) int {
	ns, targetArg, fn := splitArgs(L)

	target, err := targetFromLua(targetArg)
	if err != nil {
		L.ArgError(2, (&event.ConfigurationError{Field: "target", Err: err}).Error())
		return 0
	}
	sub, err := h.Subscribe(ns, target, fn)
	if err != nil {
		L.RaiseError("%s", err.Error())
		return 0
	}
	L.Push(lua.LString(sub.ID()))
	return 1
}

func (h *Host) luaUnsubscribe(L *lua.LState) int {
	L.Push(lua.LBool(h.Unsubscribe(L.CheckString(1))))
	return 1
}

func (h *Host) luaTime(L *lua.LState) int {
	return h.instrumentFromLua(L, false)
}

func (h *Host) luaInstrument(L *lua.LState) int {
	return h.instrumentFromLua(L, true)
}

// instrumentFromLua runs a Lua function as instrumented work. With fields
// set, the function's second result is merged into the payload.
func (h *Host) instrumentFromLua(L *lua.LState, fields bool) int {
	ns, tagArg, fn := splitArgs(L)

	t, err := tagFromLua(tagArg)
	if err != nil {
		L.ArgError(2, (&event.ConfigurationError{Field: "tag", Err: err}).Error())
		return 0
	}

	nret := 1
	if fields {
		nret = 2
	}
	result, err := event.Instrument(h.scriptContext(), h.bus, ns, t, func() (lua.LValue, event.Payload, error) {
		if err := L.CallByParam(lua.P{Fn: fn, NRet: nret, Protect: true}); err != nil {
			return lua.LNil, nil, err
		}
		var extra event.Payload
		if fields {
			extra = payloadFromLua(L.Get(-1))
			L.Pop(1)
		}
		res := L.Get(-1)
		L.Pop(1)
		return res, extra, nil
	})
	if err != nil {
		var apiErr *lua.ApiError
		if errors.As(err, &apiErr) {
			// Re-raise the script's own error value unchanged.
			L.Error(apiErr.Object, 0)
			return 0
		}
		L.RaiseError("%s", err.Error())
		return 0
	}

	L.Push(result)
	return 1
}

func luaSymbol(L *lua.LState) int {
	t := tag.Symbol(L.CheckString(1))
	if err := t.Validate(); err != nil {
		L.ArgError(1, err.Error())
		return 0
	}
	L.Push(newSymbol(L, t))
	return 1
}

func luaPattern(L *lua.LState) int {
	target, err := tag.CompilePattern(L.CheckString(1))
	if err != nil {
		L.ArgError(1, err.Error())
		return 0
	}
	L.Push(newPattern(L, target))
	return 1
}
