package meta

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/ashtneoi/axim/internal/digest"
)

// canonicalTagOrder gives each type tag's position for the stable sort
// fix-meta performs. It mirrors the field order in spec.md §3's table,
// with "h" (the older output-digest tag fix-meta also strips) placed
// immediately after "o".
var canonicalTagOrder = map[byte]int{
	'n': 0,
	'v': 1,
	'x': 2,
	'i': 3,
	'b': 4,
	'o': 5,
	'h': 6,
	'd': 7,
	'r': 8,
}

// FixMeta implements the legacy standalone "fix-meta" text transform
// described in spec.md §4.C: a pure transform over the earlier
// multi-output meta dialect, operating on raw lines rather than a parsed
// Meta. It:
//
//  1. strips the trailing field from "o" and "h" lines, reducing each to
//     "<type> <alias> -",
//  2. accumulates a running hash of those normalized lines in their
//     original order,
//  3. stable-sorts the normalized lines by canonicalTagOrder,
//  4. for each "o" line, clones the accumulated hash as of the point the
//     original (pre-sort) stream had emitted that line, feeds it
//     "z <alias>\n", and prints "o <alias> <id>" with the derived id in
//     place of the original line.
func FixMeta(r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	if err := checkDuplicateAliases(lines); err != nil {
		return err
	}

	normalized := make([]string, len(lines))
	for i, line := range lines {
		normalized[i] = normalizeLine(line)
	}

	// Running hash of the normalized lines, snapshotted (via Clone) after
	// each line so that each "o" line can derive its id from the hash of
	// everything up to and including itself, in the ORIGINAL order.
	hh := digest.New()
	snapshotAfter := make([]*digest.Hasher, len(normalized))
	for i, line := range normalized {
		fmt.Fprintf(hh, "%s\n", line)
		snapshotAfter[i] = hh.Clone()
	}

	type indexed struct {
		pos  int
		line string
	}
	sorted := make([]indexed, len(normalized))
	for i, line := range normalized {
		sorted[i] = indexed{pos: i, line: line}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return tagRank(sorted[i].line) < tagRank(sorted[j].line)
	})

	bw := bufio.NewWriter(w)
	for _, entry := range sorted {
		fields := strings.SplitN(entry.line, " ", 3)
		if len(fields) >= 2 && fields[0] == "o" {
			alias := fields[1]
			clone := snapshotAfter[entry.pos].Clone()
			fmt.Fprintf(clone, "z %s\n", alias)
			id := clone.Finalize()
			fmt.Fprintf(bw, "o %s %s\n", alias, id)
			continue
		}
		fmt.Fprintf(bw, "%s\n", entry.line)
	}

	return bw.Flush()
}

// checkDuplicateAliases rejects a second "o" (id) or "h" (digest) line for
// the same alias, tracking the two fields independently so an alias may
// legitimately carry one of each — mirroring the per-field dup checks
// original_source/cli/src/meta.rs runs on its "o"/"d" output fields.
func checkDuplicateAliases(lines []string) error {
	seenID := make(map[string]bool)
	seenDigest := make(map[string]bool)

	for i, line := range lines {
		fields := strings.SplitN(line, " ", 3)
		if len(fields) < 2 {
			continue
		}

		var seen map[string]bool
		switch fields[0] {
		case "o":
			seen = seenID
		case "h":
			seen = seenDigest
		default:
			continue
		}

		alias := fields[1]
		if seen[alias] {
			return DuplicateAlias{LineNo: i}
		}
		seen[alias] = true
	}

	return nil
}

// normalizeLine reduces "o"/"h" lines to "<type> <alias> -" and passes
// everything else through unchanged.
func normalizeLine(line string) string {
	fields := strings.SplitN(line, " ", 3)
	if len(fields) < 2 {
		return line
	}
	if fields[0] == "o" || fields[0] == "h" {
		return fields[0] + " " + fields[1] + " -"
	}
	return line
}

// tagRank returns canonicalTagOrder's position for line's type tag,
// placing unrecognized tags (including comments) last so the sort never
// panics on malformed input it isn't asked to validate.
func tagRank(line string) int {
	if line == "" {
		return len(canonicalTagOrder)
	}
	if rank, ok := canonicalTagOrder[line[0]]; ok {
		return rank
	}
	return len(canonicalTagOrder)
}
