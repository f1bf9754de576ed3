// Package meta implements the line-oriented build-recipe record described
// in spec.md §3-4.C: parsing, validation, canonical-order emission, and
// derivation of the output id from a record's canonical projection.
package meta

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/ashtneoi/axim/internal/digest"
)

// optFixedDigest is the only recognized "x" option at this revision.
const optFixedDigest = "fixed-digest"

// Input is one "i <alias> <id>" line.
type Input struct {
	Alias string
	ID    string
}

// Meta is the single-output dialect record: the one add-file emits and the
// default parse produces. OutputID and OutputDigest are pointers so that
// "absent" (nil) and "empty string" (non-nil, pointing at "") stay
// distinguishable, as spec.md §3 requires.
type Meta struct {
	Name         string
	Version      string
	Options      []string
	Inputs       []Input
	BuildCmd     *string
	OutputID     *string
	OutputDigest *string
	RuntimeDeps  []string
}

// HasOption reports whether opt is among the record's "x" lines.
func (m *Meta) HasOption(opt string) bool {
	for _, o := range m.Options {
		if o == opt {
			return true
		}
	}
	return false
}

// Parse reads a meta record from r, validates it per spec.md §4.C, and
// fills in OutputID from the canonical projection when no "o" line was
// present. Line numbers in returned errors are zero-based.
func Parse(r io.Reader) (*Meta, error) {
	m := &Meta{}
	var (
		haveName, haveVersion, haveBuild, haveOutputID, haveOutputDigest bool
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") {
			lineNo++
			continue
		}

		fields := strings.SplitN(line, " ", 3)
		if len(fields) < 2 {
			return nil, MissingField{LineNo: lineNo}
		}

		typ := fields[0]
		if len(typ) != 1 {
			return nil, InvalidType{LineNo: lineNo}
		}

		switch typ {
		case "n":
			if haveName {
				return nil, DuplicateType{LineNo: lineNo}
			}
			m.Name = afterTag(line, typ)
			haveName = true

		case "v":
			if haveVersion {
				return nil, DuplicateType{LineNo: lineNo}
			}
			m.Version = afterTag(line, typ)
			haveVersion = true

		case "x":
			opt := afterTag(line, typ)
			if opt != optFixedDigest {
				return nil, InvalidOption{LineNo: lineNo}
			}
			m.Options = append(m.Options, opt)

		case "b":
			if haveBuild {
				return nil, DuplicateType{LineNo: lineNo}
			}
			cmd := afterTag(line, typ)
			m.BuildCmd = &cmd
			haveBuild = true

		case "i":
			alias := fields[1]
			if len(fields) < 3 {
				return nil, MissingField{LineNo: lineNo}
			}
			id := fields[2]
			if id == "-" {
				return nil, InvalidId{LineNo: lineNo}
			}
			// WATCH OUT: this is quadratic in the number of inputs. For
			// expected input sizes (< 10^3) this is fine; switch to a
			// set-backed dedup if that bound loosens.
			for _, in := range m.Inputs {
				if in.Alias == alias {
					return nil, DuplicateAlias{LineNo: lineNo}
				}
			}
			m.Inputs = append(m.Inputs, Input{Alias: alias, ID: id})

		case "o":
			if haveOutputID {
				return nil, DuplicateType{LineNo: lineNo}
			}
			id := fields[1]
			m.OutputID = &id
			haveOutputID = true

		case "d":
			if haveOutputDigest {
				return nil, DuplicateType{LineNo: lineNo}
			}
			d := fields[1]
			m.OutputDigest = &d
			haveOutputDigest = true

		case "r":
			m.RuntimeDeps = append(m.RuntimeDeps, afterTag(line, typ))

		default:
			return nil, InvalidType{LineNo: lineNo}
		}

		lineNo++
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if !haveName {
		return nil, MissingName{}
	}
	if !haveVersion {
		return nil, MissingVersion{}
	}

	sort.Slice(m.Inputs, func(i, j int) bool { return m.Inputs[i].Alias < m.Inputs[j].Alias })

	if m.HasOption(optFixedDigest) {
		if m.OutputID != nil {
			return nil, InvalidData{Msg: "fixed-digest requires the output id to be unset"}
		}
		if m.OutputDigest == nil {
			return nil, InvalidData{Msg: "fixed-digest requires the output digest to be set"}
		}
		id := *m.OutputDigest
		m.OutputID = &id
	} else if m.OutputID == nil {
		id := string(m.OutputIDFromProjection())
		m.OutputID = &id
	}

	return m, nil
}

// afterTag returns the remainder of line after "<tag> ", used for
// single-field payloads (n, v, x, b, r) where the raw text — not a split
// field — is the value, preserving any embedded spaces.
func afterTag(line, typ string) string {
	return line[len(typ)+1:]
}

// CanonicalProjection returns the exact byte stream that the output id is
// derived from: n, v, each x (recorded order), each i (alias-sorted), then
// b if present — each line terminated by "\n". Notably this excludes r and
// d: the recipe's identity depends only on its intent, never on its
// realized output or discovered runtime deps.
func (m *Meta) CanonicalProjection() []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "n %s\n", m.Name)
	fmt.Fprintf(&b, "v %s\n", m.Version)
	for _, opt := range m.Options {
		fmt.Fprintf(&b, "x %s\n", opt)
	}
	inputs := append([]Input(nil), m.Inputs...)
	sort.Slice(inputs, func(i, j int) bool { return inputs[i].Alias < inputs[j].Alias })
	for _, in := range inputs {
		fmt.Fprintf(&b, "i %s %s\n", in.Alias, in.ID)
	}
	if m.BuildCmd != nil {
		fmt.Fprintf(&b, "b %s\n", *m.BuildCmd)
	}
	return []byte(b.String())
}

// OutputIDFromProjection hashes the canonical projection through the
// shared digest primitive and returns the resulting id.
func (m *Meta) OutputIDFromProjection() digest.Digest {
	return digest.Sum(m.CanonicalProjection())
}

// Dump writes the record in canonical tag order: n, v, each x, each i
// (alias-sorted), optional b, optional o, optional d, each r. A
// fixed-digest record is written without its o line, since Parse rejects a
// preset o there and derives it from d instead.
func (m *Meta) Dump(w io.Writer) error {
	bw := bufio.NewWriter(w)

	if _, err := fmt.Fprintf(bw, "n %s\n", m.Name); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(bw, "v %s\n", m.Version); err != nil {
		return err
	}
	for _, opt := range m.Options {
		if _, err := fmt.Fprintf(bw, "x %s\n", opt); err != nil {
			return err
		}
	}

	inputs := append([]Input(nil), m.Inputs...)
	sort.Slice(inputs, func(i, j int) bool { return inputs[i].Alias < inputs[j].Alias })
	for _, in := range inputs {
		if _, err := fmt.Fprintf(bw, "i %s %s\n", in.Alias, in.ID); err != nil {
			return err
		}
	}

	if m.BuildCmd != nil {
		if _, err := fmt.Fprintf(bw, "b %s\n", *m.BuildCmd); err != nil {
			return err
		}
	}

	if m.OutputID != nil && !m.HasOption(optFixedDigest) {
		if _, err := fmt.Fprintf(bw, "o %s\n", *m.OutputID); err != nil {
			return err
		}
	}
	if m.OutputDigest != nil {
		if _, err := fmt.Fprintf(bw, "d %s\n", *m.OutputDigest); err != nil {
			return err
		}
	}

	for _, dep := range m.RuntimeDeps {
		if _, err := fmt.Fprintf(bw, "r %s\n", dep); err != nil {
			return err
		}
	}

	return bw.Flush()
}
