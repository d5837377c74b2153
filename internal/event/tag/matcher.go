package tag

// Matches reports whether target accepts the dispatch tag t.
//
//   - Any accepts every tag, including absent.
//   - ExactString accepts only a string tag with the same text.
//   - ExactSymbol accepts only a symbol tag with the same name.
//   - Pattern accepts only a string tag the expression finds a match in.
//
// Invalid targets match nothing.
func Matches(target Target, t Tag) bool {
	switch target.kind {
	case TargetAny:
		return true
	case TargetExactString:
		return !target.absent && t.kind == KindString && t.value == target.value
	case TargetExactSymbol:
		return t.kind == KindSymbol && t.value == target.value
	case TargetPattern:
		if target.pattern == nil || t.kind != KindString {
			return false
		}
		return target.pattern.MatchString(t.value)
	default:
		return false
	}
}

// Matches reports whether the target accepts t.
func (t Target) Matches(dispatch Tag) bool {
	return Matches(t, dispatch)
}
