// Package tag provides dispatch tags and subscription match targets for the
// instrumentation bus.
//
// # Tags
//
// A Tag narrows a namespace to a specific operation variant. It is one of:
//
//   - absent (the zero value)
//   - a string, e.g. tag.String("get")
//   - a symbol, e.g. tag.Symbol("get")
//
// Strings and symbols never compare equal, even when they carry the same text.
//
// # Targets
//
// A Target is what a subscription filters on:
//
//	tag.Any()                          every tag, including absent
//	tag.ExactString("get")             only the string tag "get"
//	tag.ExactSymbol("get")             only the symbol :get
//	tag.Pattern(regexp.MustCompile(…)) only string tags the pattern finds a match in
//
// # Matching
//
// Matches is a pure function over a target and a dispatch tag:
//
//	tag.Matches(tag.ExactSymbol("get"), tag.Symbol("get"))  // true
//	tag.Matches(tag.ExactSymbol("get"), tag.String("get"))  // false
//	tag.Matches(tag.MustPattern("^g"), tag.Symbol("get"))   // false
//
// # Dynamic values
//
// Of and TargetOf coerce loosely typed values (from scripts or config files)
// into tags and targets, failing for any other shape.
package tag
