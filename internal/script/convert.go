package script

import (
	"fmt"
	"math"
	"strconv"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/instrument/internal/event"
	"github.com/dshills/instrument/internal/event/tag"
)

// Metatable names for the userdata types scripts can hold.
const (
	symbolTypeName  = "instrument.symbol"
	patternTypeName = "instrument.pattern"
)

func registerTypes(L *lua.LState) {
	sym := L.NewTypeMetatable(symbolTypeName)
	L.SetField(sym, "__tostring", L.NewFunction(func(L *lua.LState) int {
		t, _ := L.CheckUserData(1).Value.(tag.Tag)
		L.Push(lua.LString(t.String()))
		return 1
	}))
	L.SetField(sym, "__eq", L.NewFunction(func(L *lua.LState) int {
		a, _ := L.CheckUserData(1).Value.(tag.Tag)
		b, _ := L.CheckUserData(2).Value.(tag.Tag)
		L.Push(lua.LBool(a.Equal(b)))
		return 1
	}))

	pat := L.NewTypeMetatable(patternTypeName)
	L.SetField(pat, "__tostring", L.NewFunction(func(L *lua.LState) int {
		t, _ := L.CheckUserData(1).Value.(tag.Target)
		L.Push(lua.LString(t.String()))
		return 1
	}))
}

func newSymbol(L *lua.LState, t tag.Tag) *lua.LUserData {
	ud := L.NewUserData()
	ud.Value = t
	L.SetMetatable(ud, L.GetTypeMetatable(symbolTypeName))
	return ud
}

func newPattern(L *lua.LState, t tag.Target) *lua.LUserData {
	ud := L.NewUserData()
	ud.Value = t
	L.SetMetatable(ud, L.GetTypeMetatable(patternTypeName))
	return ud
}

// tagFromLua converts a dispatch tag argument.
func tagFromLua(lv lua.LValue) (tag.Tag, error) {
	switch v := lv.(type) {
	case *lua.LNilType:
		return tag.None(), nil
	case lua.LString:
		return tag.String(string(v)), nil
	case *lua.LUserData:
		return tag.Of(v.Value)
	default:
		return tag.Tag{}, fmt.Errorf("%w: lua %s", tag.ErrUnsupportedType, lv.Type())
	}
}

// targetFromLua converts a subscription target argument.
func targetFromLua(lv lua.LValue) (tag.Target, error) {
	switch v := lv.(type) {
	case *lua.LNilType:
		return tag.Any(), nil
	case lua.LString:
		return tag.ExactString(string(v)), nil
	case *lua.LUserData:
		return tag.TargetOf(v.Value)
	default:
		return tag.Target{}, fmt.Errorf("%w: lua %s", tag.ErrUnsupportedType, lv.Type())
	}
}

// tagToLua is nil for the absent tag, a string or a symbol userdata.
func tagToLua(L *lua.LState, t tag.Tag) lua.LValue {
	switch t.Kind() {
	case tag.KindString:
		return lua.LString(t.Value())
	case tag.KindSymbol:
		return newSymbol(L, t)
	default:
		return lua.LNil
	}
}

// payloadToLua builds the table handed to Lua subscribers.
func payloadToLua(L *lua.LState, p event.Payload) *lua.LTable {
	tbl := L.CreateTable(0, len(p))
	for k, v := range p {
		tbl.RawSetString(k, toLua(L, v))
	}
	return tbl
}

func toLua(L *lua.LState, v any) lua.LValue {
	switch v := v.(type) {
	case nil:
		return lua.LNil
	case lua.LValue:
		return v
	case bool:
		return lua.LBool(v)
	case string:
		return lua.LString(v)
	case int:
		return lua.LNumber(v)
	case int64:
		return lua.LNumber(v)
	case int32:
		return lua.LNumber(v)
	case uint64:
		return lua.LNumber(v)
	case float64:
		return lua.LNumber(v)
	case float32:
		return lua.LNumber(v)
	case time.Duration:
		return lua.LNumber(v.Milliseconds())
	case tag.Tag:
		return tagToLua(L, v)
	case *lua.ApiError:
		return v.Object
	case error:
		return lua.LString(v.Error())
	case []any:
		tbl := L.CreateTable(len(v), 0)
		for _, item := range v {
			tbl.Append(toLua(L, item))
		}
		return tbl
	case map[string]any:
		tbl := L.CreateTable(0, len(v))
		for k, item := range v {
			tbl.RawSetString(k, toLua(L, item))
		}
		return tbl
	case event.Payload:
		return payloadToLua(L, v)
	case fmt.Stringer:
		return lua.LString(v.String())
	default:
		return lua.LString(fmt.Sprint(v))
	}
}

// payloadFromLua converts the fields table returned by instrumented work.
// Non-table values yield an empty payload.
func payloadFromLua(lv lua.LValue) event.Payload {
	tbl, ok := lv.(*lua.LTable)
	if !ok {
		return event.Payload{}
	}
	p := make(event.Payload)
	tbl.ForEach(func(k, v lua.LValue) {
		if _, skip := v.(*lua.LFunction); skip {
			return
		}
		p[keyString(k)] = toGo(v, map[*lua.LTable]bool{tbl: true})
	})
	return p
}

func keyString(k lua.LValue) string {
	if n, ok := k.(lua.LNumber); ok {
		f := float64(n)
		if f == math.Trunc(f) {
			return strconv.FormatInt(int64(f), 10)
		}
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return k.String()
}

// toGo converts a Lua value to plain Go data. Cycles become nil.
func toGo(lv lua.LValue, visited map[*lua.LTable]bool) any {
	switch v := lv.(type) {
	case lua.LBool:
		return bool(v)
	case lua.LNumber:
		f := float64(v)
		if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			return int64(f)
		}
		return f
	case lua.LString:
		return string(v)
	case *lua.LUserData:
		return v.Value
	case *lua.LTable:
		if visited[v] {
			return nil
		}
		visited[v] = true
		defer delete(visited, v)
		return tableToGo(v, visited)
	default:
		return nil
	}
}

// tableToGo returns a slice for a 1..n sequence and a map otherwise.
func tableToGo(t *lua.LTable, visited map[*lua.LTable]bool) any {
	n := t.Len()
	count := 0
	t.ForEach(func(_, _ lua.LValue) { count++ })

	if n > 0 && count == n {
		arr := make([]any, n)
		for i := 1; i <= n; i++ {
			arr[i-1] = toGo(t.RawGetInt(i), visited)
		}
		return arr
	}

	m := make(map[string]any, count)
	t.ForEach(func(k, v lua.LValue) {
		m[keyString(k)] = toGo(v, visited)
	})
	return m
}
