package tag

import "regexp"

// TargetKind identifies the variant of a Target.
type TargetKind uint8

const (
	// TargetAny matches every tag.
	TargetAny TargetKind = iota

	// TargetExactString matches one string tag.
	TargetExactString

	// TargetExactSymbol matches one symbol tag.
	TargetExactSymbol

	// TargetPattern matches string tags a regular expression finds a match in.
	TargetPattern
)

// String returns a human-readable variant name.
func (k TargetKind) String() string {
	switch k {
	case TargetAny:
		return "any"
	case TargetExactString:
		return "exact-string"
	case TargetExactSymbol:
		return "exact-symbol"
	case TargetPattern:
		return "pattern"
	default:
		return "unknown"
	}
}

// Target is the filter a subscription applies to dispatch tags.
// The zero value is the Any target.
type Target struct {
	kind    TargetKind
	value   string
	pattern *regexp.Regexp

	// absent marks an exact target built from the absent tag.
	absent bool
}

// Any returns the target that matches every tag.
func Any() Target {
	return Target{}
}

// ExactString returns a target matching only the string tag s.
func ExactString(s string) Target {
	return Target{kind: TargetExactString, value: s}
}

// ExactSymbol returns a target matching only the symbol tag name.
func ExactSymbol(name string) Target {
	return Target{kind: TargetExactSymbol, value: name}
}

// Exact returns a target matching only t. An absent t yields an invalid
// target that fails Validate.
func Exact(t Tag) Target {
	switch t.kind {
	case KindString:
		return ExactString(t.value)
	case KindSymbol:
		return ExactSymbol(t.value)
	default:
		return Target{kind: TargetExactString, absent: true}
	}
}

// Pattern returns a target matching string tags re finds a match in.
func Pattern(re *regexp.Regexp) Target {
	return Target{kind: TargetPattern, pattern: re}
}

// CompilePattern compiles expr and returns a pattern target.
func CompilePattern(expr string) (Target, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return Target{}, err
	}
	return Pattern(re), nil
}

// MustPattern is like CompilePattern but panics if expr does not compile.
func MustPattern(expr string) Target {
	return Pattern(regexp.MustCompile(expr))
}

// Kind returns the target variant.
func (t Target) Kind() TargetKind {
	return t.kind
}

// Value returns the exact text for exact targets and the source expression
// for pattern targets.
func (t Target) Value() string {
	if t.kind == TargetPattern && t.pattern != nil {
		return t.pattern.String()
	}
	return t.value
}

// Regexp returns the compiled pattern of a pattern target.
func (t Target) Regexp() *regexp.Regexp {
	return t.pattern
}

// String renders the target for logs.
func (t Target) String() string {
	switch t.kind {
	case TargetExactString:
		return t.value
	case TargetExactSymbol:
		return ":" + t.value
	case TargetPattern:
		return "~/" + t.Value() + "/"
	default:
		return "*"
	}
}

// Validate checks that the target is well formed.
func (t Target) Validate() error {
	switch t.kind {
	case TargetAny:
		return nil
	case TargetExactString:
		if t.absent {
			return ErrAbsentExact
		}
		return nil
	case TargetExactSymbol:
		if t.value == "" {
			return ErrEmptySymbol
		}
		return nil
	case TargetPattern:
		if t.pattern == nil {
			return ErrNilPattern
		}
		return nil
	default:
		return ErrUnsupportedType
	}
}
