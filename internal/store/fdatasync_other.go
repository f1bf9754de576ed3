//go:build !unix

package store

import "os"

// fdatasync falls back to a full fsync on non-unix targets, which have no
// separate data-only sync syscall exposed through golang.org/x/sys.
func fdatasync(f *os.File) error {
	return f.Sync()
}
