package meta

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ashtneoi/axim/internal/digest"
)

func TestParseMissingField(t *testing.T) {
	_, err := Parse(strings.NewReader("n\n"))
	require.ErrorAs(t, err, new(MissingField))
}

func TestParseMissingName(t *testing.T) {
	_, err := Parse(strings.NewReader("v 1.0\n"))
	require.ErrorAs(t, err, new(MissingName))
}

func TestParseMissingVersion(t *testing.T) {
	_, err := Parse(strings.NewReader("n foo\n"))
	require.ErrorAs(t, err, new(MissingVersion))
}

func TestParseDuplicateType(t *testing.T) {
	_, err := Parse(strings.NewReader("n foo\nn bar\nv 1\n"))
	require.ErrorAs(t, err, new(DuplicateType))
}

func TestParseDuplicateAlias(t *testing.T) {
	_, err := Parse(strings.NewReader("n foo\nv 1\ni a A\ni a B\n"))
	require.ErrorAs(t, err, new(DuplicateAlias))
}

func TestParseInvalidOption(t *testing.T) {
	_, err := Parse(strings.NewReader("n foo\nv 1\nx not-a-real-option\n"))
	require.ErrorAs(t, err, new(InvalidOption))
}

func TestParseInvalidId(t *testing.T) {
	_, err := Parse(strings.NewReader("n foo\nv 1\ni a -\n"))
	require.ErrorAs(t, err, new(InvalidId))
}

func TestParseCommentsSkipped(t *testing.T) {
	m, err := Parse(strings.NewReader("# a comment\nn foo\nv 1\n"))
	require.NoError(t, err)
	require.Equal(t, "foo", m.Name)
}

func TestOutputIDDerivedWhenAbsent(t *testing.T) {
	m, err := Parse(strings.NewReader("n foo\nv 1.0\n"))
	require.NoError(t, err)
	require.NotNil(t, m.OutputID)

	want := digest.Sum([]byte("n foo\nv 1.0\n"))
	require.Equal(t, string(want), *m.OutputID)
}

func TestOutputIDStableUnderRuntimeDepsAndDigest(t *testing.T) {
	base := "n foo\nv 1.0\ni a A\n"
	m1, err := Parse(strings.NewReader(base))
	require.NoError(t, err)

	m2, err := Parse(strings.NewReader(base + "r some-dep\nd aa/bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb\n"))
	require.NoError(t, err)

	require.Equal(t, *m1.OutputID, *m2.OutputID)
}

func TestOutputIDInvariantUnderInputOrder(t *testing.T) {
	m1, err := Parse(strings.NewReader("n foo\nv 1\ni b B\ni a A\n"))
	require.NoError(t, err)

	m2, err := Parse(strings.NewReader("n foo\nv 1\ni a A\ni b B\n"))
	require.NoError(t, err)

	require.Equal(t, *m1.OutputID, *m2.OutputID)
}

func TestInputsSortedOnEmission(t *testing.T) {
	m, err := Parse(strings.NewReader("n foo\nv 1\ni b B\ni a A\n"))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, m.Dump(&buf))
	require.Contains(t, buf.String(), "i a A\ni b B\n")
}

func TestFixedDigestRequiresDigest(t *testing.T) {
	_, err := Parse(strings.NewReader("n foo\nv 1\nx fixed-digest\n"))
	require.ErrorAs(t, err, new(InvalidData))
}

func TestFixedDigestRejectsPresetOutputID(t *testing.T) {
	_, err := Parse(strings.NewReader("n foo\nv 1\nx fixed-digest\no aa/bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb\nd aa/bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb\n"))
	require.ErrorAs(t, err, new(InvalidData))
}

func TestFixedDigestSetsOutputIDFromDigest(t *testing.T) {
	m, err := Parse(strings.NewReader("n foo\nv 1\nx fixed-digest\nd aa/bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb\n"))
	require.NoError(t, err)
	require.Equal(t, *m.OutputDigest, *m.OutputID)
}

func TestRoundTrip(t *testing.T) {
	src := "n foo\nv 1.0\ni a A\ni b B\nb make\n"
	m, err := Parse(strings.NewReader(src))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, m.Dump(&buf))

	m2, err := Parse(strings.NewReader(buf.String()))
	require.NoError(t, err)

	require.Equal(t, m.Name, m2.Name)
	require.Equal(t, m.Version, m2.Version)
	require.Equal(t, m.Inputs, m2.Inputs)
	require.Equal(t, m.BuildCmd, m2.BuildCmd)
	require.Equal(t, *m.OutputID, *m2.OutputID)
}
