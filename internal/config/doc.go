// Package config loads the instrument host configuration.
//
// A configuration file is TOML or YAML, chosen by extension. Values are
// applied on top of Default, then INSTRUMENT_* environment variables
// override the file, then the result is validated:
//
//	[log]
//	level = "info"          # debug, info, warn, error
//	format = "auto"         # auto, text, json
//	file = ""               # rotate into this file instead of stderr
//
//	[bus]
//	failure_policy = "isolate"  # isolate, propagate, aggregate
//	recorder_capacity = 256
//	namespaces = ["db.query", "http.request"]
//
//	[telemetry]
//	enabled = false
//	endpoint = "http://localhost:4318"
//
//	[sink]
//	events_file = "events.jsonl"
//
// Watcher reloads the file when it changes and hands the new
// configuration to registered handlers.
package config
