package script

import (
	"log/slog"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// blockedGlobals can load or run code outside the sandbox.
var blockedGlobals = []string{
	"dofile",
	"loadfile",
	"load",
	"loadstring",
	"require",
	"module",
	"collectgarbage",
	"getfenv",
	"setfenv",
}

// openSafeLibraries opens only the libraries scripts need.
// io, os, debug and package are deliberately left closed.
func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	for _, name := range blockedGlobals {
		L.SetGlobal(name, lua.LNil)
	}
}

// installPrint routes print to logger at Info.
func installPrint(L *lua.LState, logger *slog.Logger) {
	L.SetGlobal("print", L.NewFunction(func(L *lua.LState) int {
		n := L.GetTop()
		parts := make([]string, 0, n)
		for i := 1; i <= n; i++ {
			parts = append(parts, L.ToStringMeta(L.Get(i)).String())
		}
		logger.Info("script output", slog.String("text", strings.Join(parts, "\t")))
		return 0
	}))
}
