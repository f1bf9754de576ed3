//go:build unix

package store

import (
	"os"

	"golang.org/x/sys/unix"
)

// fdatasync flushes f's data (and only as much metadata as is needed to
// retrieve that data — notably not atime/mtime) to stable storage, per
// spec.md §4.D's durability ordering. This is unix.Fdatasync rather than
// (*os.File).Sync, which maps to the heavier fsync(2) and would also
// flush metadata the spec doesn't ask to make durable here.
func fdatasync(f *os.File) error {
	return unix.Fdatasync(int(f.Fd()))
}
