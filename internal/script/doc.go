// Package script runs Lua scripts against an instrumentation bus.
//
// Scripts see a global "instrument" table:
//
//	instrument.subscribe(ns, [target], fn)   -> subscription id
//	instrument.unsubscribe(id)               -> bool
//	instrument.time(ns, [tag], fn)           -> fn's result
//	instrument.instrument(ns, [tag], fn)     -> first result of fn; fn returns (result, fields)
//	instrument.symbol(name)                  -> symbol tag
//	instrument.pattern(expr)                 -> pattern target
//
// A string tag or target is an exact string match, instrument.symbol makes
// the symbol form and instrument.pattern a regular-expression target. A
// subscriber declared with one parameter receives the payload table with a
// "tag" field; with two parameters it receives (tag, payload). Any other
// shape is rejected when subscribing.
//
// The Lua state runs with a restricted standard library: no io, os,
// debug or package, and no loading of code from files or strings.
// print writes to the host logger.
package script
