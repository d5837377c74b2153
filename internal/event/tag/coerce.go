package tag

import (
	"fmt"
	"regexp"
)

// Of coerces a loosely typed value into a dispatch tag.
// Accepted values are nil, string, Sym and Tag. A regular expression or any
// other value is rejected.
func Of(v any) (Tag, error) {
	var t Tag
	switch val := v.(type) {
	case nil:
		return None(), nil
	case string:
		t = String(val)
	case Sym:
		t = Symbol(string(val))
	case Tag:
		t = val
	case *regexp.Regexp, Target:
		return Tag{}, ErrPatternTag
	default:
		return Tag{}, fmt.Errorf("%w: %T", ErrUnsupportedType, v)
	}
	if err := t.Validate(); err != nil {
		return Tag{}, err
	}
	return t, nil
}

// TargetOf coerces a loosely typed value into a match target.
// nil and the absent Tag become Any; string, Sym and non-absent Tag become
// exact targets; *regexp.Regexp becomes a pattern; a Target passes through.
// Any other value is rejected.
func TargetOf(v any) (Target, error) {
	var target Target
	switch val := v.(type) {
	case nil:
		return Any(), nil
	case string:
		target = ExactString(val)
	case Sym:
		target = ExactSymbol(string(val))
	case Tag:
		if val.IsAbsent() {
			return Any(), nil
		}
		target = Exact(val)
	case *regexp.Regexp:
		target = Pattern(val)
	case Target:
		target = val
	default:
		return Target{}, fmt.Errorf("%w: %T", ErrUnsupportedType, v)
	}
	if err := target.Validate(); err != nil {
		return Target{}, err
	}
	return target, nil
}
