package tag

// Kind is the representation kind of a Tag.
type Kind uint8

const (
	// KindAbsent is the kind of the zero Tag.
	KindAbsent Kind = iota

	// KindString is the kind of a string tag.
	KindString

	// KindSymbol is the kind of a symbolic-constant tag.
	KindSymbol
)

// String returns a human-readable kind name.
func (k Kind) String() string {
	switch k {
	case KindAbsent:
		return "absent"
	case KindString:
		return "string"
	case KindSymbol:
		return "symbol"
	default:
		return "unknown"
	}
}

// Sym is a symbolic constant. It exists so loosely typed callers can pass a
// symbol to Of and TargetOf without building a Tag first.
type Sym string

// Tag is an optional sub-identifier of a namespace.
// The zero value is the absent tag.
type Tag struct {
	kind  Kind
	value string
}

// None returns the absent tag.
func None() Tag {
	return Tag{}
}

// String returns a string tag.
func String(s string) Tag {
	return Tag{kind: KindString, value: s}
}

// Symbol returns a symbol tag.
func Symbol(name string) Tag {
	return Tag{kind: KindSymbol, value: name}
}

// Kind returns the representation kind.
func (t Tag) Kind() Kind {
	return t.kind
}

// IsAbsent returns true for the absent tag.
func (t Tag) IsAbsent() bool {
	return t.kind == KindAbsent
}

// IsString returns true for string tags.
func (t Tag) IsString() bool {
	return t.kind == KindString
}

// IsSymbol returns true for symbol tags.
func (t Tag) IsSymbol() bool {
	return t.kind == KindSymbol
}

// Value returns the raw text of the tag. It is empty for the absent tag.
func (t Tag) Value() string {
	return t.value
}

// Equal reports whether two tags have the same kind and text.
func (t Tag) Equal(other Tag) bool {
	return t == other
}

// String renders the tag for logs: symbols as ":name", strings verbatim,
// and the absent tag as "nil".
func (t Tag) String() string {
	switch t.kind {
	case KindString:
		return t.value
	case KindSymbol:
		return ":" + t.value
	default:
		return "nil"
	}
}

// Validate checks that the tag is well formed.
func (t Tag) Validate() error {
	switch t.kind {
	case KindAbsent, KindString:
		return nil
	case KindSymbol:
		if t.value == "" {
			return ErrEmptySymbol
		}
		return nil
	default:
		return ErrUnsupportedType
	}
}
