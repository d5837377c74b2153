package tag

import "errors"

// Sentinel errors for tag and target validation.
var (
	// ErrUnsupportedType is returned when a value cannot be used as a tag or target.
	ErrUnsupportedType = errors.New("unsupported tag type")

	// ErrPatternTag is returned when a regular expression is used as a dispatch tag.
	ErrPatternTag = errors.New("pattern cannot be used as a dispatch tag")

	// ErrEmptySymbol is returned for a symbol with no name.
	ErrEmptySymbol = errors.New("symbol name is empty")

	// ErrAbsentExact is returned for an exact target built over an absent tag.
	ErrAbsentExact = errors.New("exact target requires a string or symbol tag")

	// ErrNilPattern is returned for a pattern target without a regular expression.
	ErrNilPattern = errors.New("pattern target has no regular expression")
)
