package meta

import "fmt"

// ParseError is the common shape of every meta parse failure that carries a
// zero-based source line index. Typed, per-kind error values (below) are
// preferred over a single error string so that callers can distinguish
// failure kinds with errors.As, grounded in the teacher's own family of
// typed errors (ErrRepositoryUnknown, ErrManifestUnknown, …) in errors.go.
type ParseError interface {
	error
	Line() int
}

// InvalidType is returned when a line's type tag is not exactly one
// character, or is a character the parser doesn't recognize.
type InvalidType struct{ LineNo int }

func (e InvalidType) Error() string { return fmt.Sprintf("invalid type tag at line %d", e.LineNo) }
func (e InvalidType) Line() int     { return e.LineNo }

// MissingField is returned when a line has fewer than the fields its type
// tag requires.
type MissingField struct{ LineNo int }

func (e MissingField) Error() string { return fmt.Sprintf("missing field at line %d", e.LineNo) }
func (e MissingField) Line() int     { return e.LineNo }

// DuplicateType is returned for a second occurrence of an at-most-once tag
// (n, v, b, o, d).
type DuplicateType struct{ LineNo int }

func (e DuplicateType) Error() string {
	return fmt.Sprintf("duplicate type tag at line %d", e.LineNo)
}
func (e DuplicateType) Line() int { return e.LineNo }

// DuplicateAlias is returned when an input or output alias repeats.
type DuplicateAlias struct{ LineNo int }

func (e DuplicateAlias) Error() string {
	return fmt.Sprintf("duplicate alias at line %d", e.LineNo)
}
func (e DuplicateAlias) Line() int { return e.LineNo }

// InvalidOption is returned for an "x" line whose payload isn't in the
// known-option set.
type InvalidOption struct{ LineNo int }

func (e InvalidOption) Error() string { return fmt.Sprintf("invalid option at line %d", e.LineNo) }
func (e InvalidOption) Line() int     { return e.LineNo }

// InvalidId is returned for an "i" line whose id field is the literal "-".
type InvalidId struct{ LineNo int }

func (e InvalidId) Error() string { return fmt.Sprintf("invalid id at line %d", e.LineNo) }
func (e InvalidId) Line() int     { return e.LineNo }

// MissingName is returned at end-of-input if no "n" line ever appeared.
type MissingName struct{}

func (MissingName) Error() string { return "missing name" }

// MissingVersion is returned at end-of-input if no "v" line ever appeared.
type MissingVersion struct{}

func (MissingVersion) Error() string { return "missing version" }

// InvalidData covers fixed-digest contract violations (and similar
// end-of-parse data-consistency failures) that aren't tied to one line.
type InvalidData struct{ Msg string }

func (e InvalidData) Error() string { return "invalid data: " + e.Msg }
