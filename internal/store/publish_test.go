package store

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/ashtneoi/axim/internal/digest"
	"github.com/ashtneoi/axim/internal/meta"
	"github.com/ashtneoi/axim/internal/nar"
)

// recordingLogger is a Logger that records what AddFile logs, so tests can
// assert its error paths actually log through WithError rather than just
// declaring it on the interface.
type recordingLogger struct {
	mu     sync.Mutex
	errors []error
}

func (r *recordingLogger) Debugf(format string, args ...any) {}
func (r *recordingLogger) Infof(format string, args ...any)  {}

func (r *recordingLogger) WithError(err error) *logrus.Entry {
	r.mu.Lock()
	r.errors = append(r.errors, err)
	r.mu.Unlock()

	out := logrus.New()
	out.SetOutput(io.Discard)
	return logrus.NewEntry(out)
}

func (r *recordingLogger) sawError() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.errors) == 0 {
		return nil
	}
	return r.errors[len(r.errors)-1]
}

func withTempRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	old := Root
	Root = root
	t.Cleanup(func() { Root = old })
	return root
}

func writeSource(t *testing.T, dir, name string, content []byte, mode os.FileMode) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, content, mode))
	return path
}

func expectedFileDigest(t *testing.T, path string) string {
	t.Helper()
	hh := digest.New()
	require.NoError(t, nar.DumpFile(hh, path))
	return string(hh.Finalize())
}

func TestAddFileNonExecutable(t *testing.T) {
	root := withTempRoot(t)
	srcDir := t.TempDir()
	src := writeSource(t, srcDir, "hello", []byte("hi\n"), 0o644)

	want := expectedFileDigest(t, src)

	p := NewPublisher()
	outputDir, err := p.AddFile("foo", "1", src)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, want), outputDir)

	installed := filepath.Join(outputDir, "hello")
	info, err := os.Stat(installed)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o444), info.Mode().Perm())

	metaLink := outputDir + ".meta"
	linkInfo, err := os.Lstat(metaLink)
	require.NoError(t, err)
	require.True(t, linkInfo.Mode()&os.ModeSymlink != 0)

	target, err := os.Readlink(metaLink)
	require.NoError(t, err)

	m, err := meta.Parse(mustOpen(t, target))
	require.NoError(t, err)
	require.Equal(t, want, *m.OutputDigest)
	require.Equal(t, want, *m.OutputID)
}

func TestAddFileExecutableBit(t *testing.T) {
	withTempRoot(t)
	srcDir := t.TempDir()
	src := writeSource(t, srcDir, "run", []byte("#!/bin/sh\necho hi\n"), 0o755)

	p := NewPublisher()
	outputDir, err := p.AddFile("foo", "1", src)
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(outputDir, "run"))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o555), info.Mode().Perm())
}

func TestAddFileIdempotent(t *testing.T) {
	withTempRoot(t)
	srcDir := t.TempDir()
	src := writeSource(t, srcDir, "hello", []byte("hi\n"), 0o644)

	p := NewPublisher()
	dir1, err := p.AddFile("foo", "1", src)
	require.NoError(t, err)
	dir2, err := p.AddFile("foo", "1", src)
	require.NoError(t, err)

	require.Equal(t, dir1, dir2)

	target1, err := os.Readlink(dir1 + ".meta")
	require.NoError(t, err)
	target2, err := os.Readlink(dir2 + ".meta")
	require.NoError(t, err)
	require.Equal(t, target1, target2)
}

func TestAddFileRejectsDirectory(t *testing.T) {
	withTempRoot(t)
	srcDir := t.TempDir()

	p := NewPublisher()
	_, err := p.AddFile("foo", "1", srcDir)
	require.Error(t, err)
	require.ErrorAs(t, err, new(ErrUnsupportedIngestion))
}

func TestAddFileLogsErrorOnUnsupportedSource(t *testing.T) {
	withTempRoot(t)
	srcDir := t.TempDir()

	rec := &recordingLogger{}
	p := NewPublisher()
	p.Log = rec

	_, err := p.AddFile("foo", "1", srcDir)
	require.Error(t, err)

	logged := rec.sawError()
	require.Error(t, logged, "AddFile must log its failure through Log.WithError")
	require.ErrorAs(t, logged, new(ErrUnsupportedIngestion))
}

func TestAddFileRejectsSymlink(t *testing.T) {
	withTempRoot(t)
	srcDir := t.TempDir()
	target := writeSource(t, srcDir, "real", []byte("hi\n"), 0o644)
	link := filepath.Join(srcDir, "link")
	require.NoError(t, os.Symlink(target, link))

	p := NewPublisher()
	_, err := p.AddFile("foo", "1", link)
	require.Error(t, err)
	require.ErrorAs(t, err, new(ErrUnsupportedIngestion))
}

// TestAddFileConcurrentWithLockConverges drives several concurrent
// --lock-enabled AddFile calls against the same source (so they all derive
// the same fixed digest) and checks they all succeed and converge on a
// single published artifact, covering the "--lock" flock(2) extension
// WithLock wires in.
func TestAddFileConcurrentWithLockConverges(t *testing.T) {
	withTempRoot(t)
	srcDir := t.TempDir()
	src := writeSource(t, srcDir, "hello", []byte("concurrent\n"), 0o644)

	const n = 8
	outputs := make([]string, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		go func() {
			defer wg.Done()
			p := NewPublisher().WithLock()
			outputs[i], errs[i] = p.AddFile("foo", "1", src)
		}()
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, outputs[0], outputs[i])
	}

	installed := filepath.Join(outputs[0], "hello")
	info, err := os.Stat(installed)
	require.NoError(t, err)
	require.True(t, info.Mode().IsRegular())

	metaLink := outputs[0] + ".meta"
	target, err := os.Readlink(metaLink)
	require.NoError(t, err)
	_, err = os.Stat(target)
	require.NoError(t, err)
}

func mustOpen(t *testing.T, path string) *os.File {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}
