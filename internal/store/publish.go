// Package store implements the content-addressed publisher described in
// spec.md §4.D: add-file computes a fixed digest for a source file,
// materializes it under /axim/<digest>/, writes its meta record, and links
// the meta file in — each step crash-idempotent and durable via fsync
// ordering rather than rename-temp-then-swap.
package store

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ashtneoi/axim/internal/digest"
	"github.com/ashtneoi/axim/internal/meta"
	"github.com/ashtneoi/axim/internal/nar"
)

// Root is the store's root directory. It is a var, not a const, only so
// tests can point it at a temp directory; production callers never change
// it from DefaultRoot.
var Root = DefaultRoot

// DefaultRoot is "/axim", the store root spec.md §3 fixes by convention.
const DefaultRoot = "/axim"

// ErrUnsupportedIngestion is returned for any source that isn't a regular
// file: directory and symlink ingestion are explicit non-goals at this
// revision (spec.md §1, §4.D) and the publisher must refuse them loudly
// rather than guess a layout for them.
type ErrUnsupportedIngestion struct {
	Path string
	Mode os.FileMode
}

func (e ErrUnsupportedIngestion) Error() string {
	return fmt.Sprintf("add-file: ingestion of %q (mode %v) is unimplemented; only regular files are supported", e.Path, e.Mode)
}

// Publisher drives add-file. Its zero value is not usable directly (Log and
// Lock are nil) — callers construct with NewPublisher, which wires
// store.NewLogger() and a no-op Locker.
type Publisher struct {
	Log  Logger
	Lock Locker
}

// NewPublisher returns a Publisher logging through the default logrus
// backend, with advisory locking disabled (spec.md's documented contract
// is single-writer; locking is an explicit opt-in, see WithLock).
func NewPublisher() *Publisher {
	return &Publisher{Log: NewLogger(), Lock: noopLocker{}}
}

// WithLock enables the advisory flock(2) extension described in spec.md
// §5 around steps 3-5, guarding against two concurrent publishers
// targeting the same digest. Off by default.
func (p *Publisher) WithLock() *Publisher {
	p.Lock = newFlockLocker(Root)
	return p
}

// AddFile runs the full add-file procedure and returns the artifact
// directory path spec.md §4.D step 6 prints on success.
func (p *Publisher) AddFile(name, version, sourcePath string) (string, error) {
	info, err := os.Lstat(sourcePath)
	if err != nil {
		p.Log.WithError(err).Error("add-file: stat source")
		return "", err
	}
	if info.Mode()&os.ModeType != 0 || !info.Mode().IsRegular() {
		err := ErrUnsupportedIngestion{Path: sourcePath, Mode: info.Mode()}
		p.Log.WithError(err).Error("add-file: unsupported source")
		return "", err
	}

	m := &meta.Meta{
		Name:    name,
		Version: version,
		Options: []string{"fixed-digest"},
	}

	// Step 2: compute the fixed digest from a single-file NAR of the
	// source, piped directly into the hasher.
	p.Log.Debugf("add-file: computing fixed digest for %q", sourcePath)
	hh := digest.New()
	if err := nar.DumpFile(hh, sourcePath); err != nil {
		p.Log.WithError(err).Error("add-file: dump source for hashing")
		return "", err
	}
	d := string(hh.Finalize())
	m.OutputDigest = &d
	m.OutputID = &d
	p.Log.Debugf("add-file: fixed digest %s", d)

	if err := p.Lock.Lock(); err != nil {
		p.Log.WithError(err).Error("add-file: acquire store lock")
		return "", err
	}
	defer p.Lock.Unlock()

	outputDir := filepath.Join(Root, d)
	if err := materializeArtifact(outputDir, sourcePath, info); err != nil {
		p.Log.WithError(err).Error("add-file: materialize artifact")
		return "", err
	}
	p.Log.Debugf("add-file: artifact directory %s durable", outputDir)

	metaPath, err := writeMetaFile(m)
	if err != nil {
		p.Log.WithError(err).Error("add-file: write meta file")
		return "", err
	}
	p.Log.Debugf("add-file: meta file %s durable", metaPath)

	if err := linkMeta(outputDir, metaPath); err != nil {
		p.Log.WithError(err).Error("add-file: link meta file")
		return "", err
	}
	p.Log.Infof("add-file: published %s", outputDir)

	return outputDir, nil
}

// materializeArtifact implements spec.md §4.D step 3: remove any stale
// directory, recreate it, copy the source in under its original basename
// with the permission mapping from spec.md §4.D/§8 property 9, then
// fdatasync the file, its directory, and the digest's parent directory in
// that order.
func materializeArtifact(outputDir, sourcePath string, info os.FileInfo) error {
	if err := os.RemoveAll(outputDir); err != nil {
		return err
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return err
	}

	mode := os.FileMode(0o444)
	if info.Mode()&0o100 != 0 {
		mode = 0o555
	}

	destPath := filepath.Join(outputDir, filepath.Base(sourcePath))
	dest, err := os.OpenFile(destPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, mode)
	if err != nil {
		return err
	}
	defer dest.Close()

	src, err := os.Open(sourcePath)
	if err != nil {
		return err
	}
	defer src.Close()

	if _, err := io.Copy(dest, src); err != nil {
		return err
	}

	if err := fdatasync(dest); err != nil {
		return err
	}
	if err := syncDir(outputDir); err != nil {
		return err
	}
	return syncDir(filepath.Dir(outputDir))
}

// writeMetaFile implements spec.md §4.D step 4: serialize m into a hasher
// to get the meta digest, write the same bytes to
// /axim/<meta-digest>.meta (replacing any existing file to avoid a
// symlink-cycle deadlock on reopen), then fdatasync the file and its
// parent. Returns the written path.
func writeMetaFile(m *meta.Meta) (string, error) {
	var buf bytes.Buffer
	if err := m.Dump(&buf); err != nil {
		return "", err
	}

	md := digest.Sum(buf.Bytes())
	metaPath := filepath.Join(Root, string(md)+".meta")

	if err := os.Remove(metaPath); err != nil && !os.IsNotExist(err) {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(metaPath), 0o755); err != nil {
		return "", err
	}

	f, err := os.Create(metaPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := f.Write(buf.Bytes()); err != nil {
		return "", err
	}
	if err := fdatasync(f); err != nil {
		return "", err
	}
	return metaPath, syncDir(filepath.Dir(metaPath))
}

// linkMeta implements spec.md §4.D step 5: symlink
// /axim/<d>.meta -> <metaPath>, replacing any existing entry, then
// fdatasync the symlink path and its parent.
func linkMeta(outputDir, metaPath string) error {
	linkPath := outputDir + ".meta"

	if err := os.MkdirAll(filepath.Dir(linkPath), 0o755); err != nil {
		return err
	}
	if err := os.Remove(linkPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := os.Symlink(metaPath, linkPath); err != nil {
		return err
	}

	// A symlink has no portable "data-only" sync distinction; open it
	// (following the link, as the original's File::open does) and sync
	// that.
	f, err := os.Open(linkPath)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := fdatasync(f); err != nil {
		return err
	}
	return syncDir(filepath.Dir(linkPath))
}

// syncDir fsyncs a directory's inode so that entries created within it
// (including ones just removed and recreated) are durable.
func syncDir(path string) error {
	d, err := os.Open(path)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
