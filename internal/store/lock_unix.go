//go:build unix

package store

import (
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// flockLocker takes an advisory flock(2) on a sentinel file at
// <root>/.lock, implementing the opt-in multi-writer extension from
// spec.md §5 ("wrap steps 3-5 in an advisory file lock on /axim/").
type flockLocker struct {
	path string
	fd   int
}

func newFlockLocker(root string) *flockLocker {
	return &flockLocker{path: filepath.Join(root, ".lock")}
}

func (l *flockLocker) Lock() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return err
	}
	fd, err := unix.Open(l.path, unix.O_CREAT|unix.O_RDWR, 0o644)
	if err != nil {
		return err
	}
	if err := unix.Flock(fd, unix.LOCK_EX); err != nil {
		unix.Close(fd)
		return err
	}
	l.fd = fd
	return nil
}

func (l *flockLocker) Unlock() error {
	if l.fd == 0 {
		return nil
	}
	err := unix.Flock(l.fd, unix.LOCK_UN)
	closeErr := unix.Close(l.fd)
	l.fd = 0
	if err != nil {
		return err
	}
	return closeErr
}
