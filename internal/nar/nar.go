// Package nar implements the canonical, bit-exact serialization of a
// filesystem subtree described in spec.md §6 ("NAR wire format"): a
// length-prefixed, 8-byte-aligned stream that distinguishes files,
// symlinks, and directories, in an order that depends only on file
// contents, executable bits, symlink targets, and directory-entry byte
// order — never on the host filesystem's iteration order.
package nar

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// Dump serializes the subtree rooted at top into w. The root node is
// emitted without an enclosing "entry" frame; nested nodes are wrapped in
// entry(name(...) node(...)).
func Dump(w io.Writer, top string) error {
	info, err := os.Lstat(top)
	if err != nil {
		return err
	}

	if err := str(w, "nix-archive-1"); err != nil {
		return err
	}
	if err := str(w, "("); err != nil {
		return err
	}

	if err := walk(w, task{path: top, info: info}); err != nil {
		return err
	}

	return str(w, ")")
}

// DumpFile synthesizes a one-entry directory wrapping a single file, so
// that single-file artifacts share the NAR algebra with directory
// artifacts. path MUST name a regular file; anything else is a hard error.
func DumpFile(w io.Writer, path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		return err
	}
	if info.Mode()&os.ModeType != 0 {
		return fmt.Errorf("nar: DumpFile requires a regular file, got %v", info.Mode())
	}

	if err := str(w, "nix-archive-1"); err != nil {
		return err
	}
	if err := str(w, "("); err != nil {
		return err
	}
	if err := str(w, "type"); err != nil {
		return err
	}
	if err := str(w, "directory"); err != nil {
		return err
	}

	entry := task{name: filepath.Base(path), path: path, info: info, wrapped: true}
	if err := walk(w, entry); err != nil {
		return err
	}

	return str(w, ")")
}

// task is one unit of pending work on the traversal stack: either "open and
// process this node" or "this directory's children are all emitted, write
// its closing tags". Splitting directory traversal into open/close tasks on
// an explicit stack (rather than letting a directory's children recurse
// through the Go call stack) keeps stack depth bounded by a heap-allocated
// slice instead of goroutine stack frames, per spec.md §5's explicit-stack
// requirement; it mirrors the original implementation's
// Vec<VecDeque<NarEntry>> work queue.
type task struct {
	close bool // true: this is a directory's deferred close marker

	name    string // entry name; meaningless for the unwrapped root
	path    string
	info    os.FileInfo
	wrapped bool // true unless this is the unwrapped top-level node
}

// walk drives the NAR body for root and everything beneath it using an
// explicit stack of tasks instead of recursive calls.
func walk(w io.Writer, root task) error {
	stack := []task{root}

	for len(stack) > 0 {
		t := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if t.close {
			if t.wrapped {
				if err := closeWrapper(w); err != nil {
					return err
				}
			}
			continue
		}

		if t.wrapped {
			if err := openWrapper(w, t.name); err != nil {
				return err
			}
		}

		switch {
		case t.info.Mode()&os.ModeSymlink != 0:
			if err := dumpSymlink(w, t.path); err != nil {
				return err
			}
			if t.wrapped {
				if err := closeWrapper(w); err != nil {
					return err
				}
			}

		case t.info.Mode().IsRegular():
			if err := dumpRegular(w, t.path, t.info); err != nil {
				return err
			}
			if t.wrapped {
				if err := closeWrapper(w); err != nil {
					return err
				}
			}

		case t.info.Mode().IsDir():
			if err := str(w, "type"); err != nil {
				return err
			}
			if err := str(w, "directory"); err != nil {
				return err
			}

			children, err := readSortedDir(t.path)
			if err != nil {
				return err
			}

			// Push this directory's own close marker first, then push its
			// children in reverse sorted order, so popping the stack
			// visits children in forward sorted order and only reaches
			// the close marker once every child (and its whole subtree)
			// has been fully popped.
			stack = append(stack, task{close: true, wrapped: t.wrapped})
			for i := len(children) - 1; i >= 0; i-- {
				c := children[i]
				stack = append(stack, task{name: c.name, path: c.path, info: c.info, wrapped: true})
			}

		default:
			return fmt.Errorf("nar: unsupported file type at %q: %v", t.path, t.info.Mode())
		}
	}

	return nil
}

// openWrapper writes entry(name(<name>) node( — the frame around one
// directory child.
func openWrapper(w io.Writer, name string) error {
	for _, s := range []string{"entry", "(", "name"} {
		if err := str(w, s); err != nil {
			return err
		}
	}
	if err := str(w, name); err != nil {
		return err
	}
	for _, s := range []string{"node", "("} {
		if err := str(w, s); err != nil {
			return err
		}
	}
	return nil
}

// closeWrapper closes the node(...) and entry(...) a prior openWrapper
// call opened.
func closeWrapper(w io.Writer) error {
	if err := str(w, ")"); err != nil {
		return err
	}
	return str(w, ")")
}

func dumpRegular(w io.Writer, path string, info os.FileInfo) error {
	if err := str(w, "type"); err != nil {
		return err
	}
	if err := str(w, "regular"); err != nil {
		return err
	}

	if info.Mode()&0o100 != 0 {
		if err := str(w, "executable"); err != nil {
			return err
		}
		if err := str(w, ""); err != nil {
			return err
		}
	}

	if err := str(w, "contents"); err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	length := uint64(info.Size())
	if err := writeU64(w, length); err != nil {
		return err
	}

	n, err := io.Copy(w, f)
	if err != nil {
		return err
	}
	if uint64(n) != length {
		return fmt.Errorf("nar: %q changed size while reading: declared %d, copied %d", path, length, n)
	}

	return pad(w, length)
}

func dumpSymlink(w io.Writer, path string) error {
	target, err := os.Readlink(path)
	if err != nil {
		return err
	}
	if err := str(w, "type"); err != nil {
		return err
	}
	if err := str(w, "symlink"); err != nil {
		return err
	}
	if err := str(w, "target"); err != nil {
		return err
	}
	return str(w, target)
}

// direntry pairs a child's name with its lstat'd info, so the directory's
// children can be sorted by raw name bytes before any is serialized.
type direntry struct {
	name string
	path string
	info os.FileInfo
}

// readSortedDir lstats every child of path and returns them sorted by name,
// so traversal order depends only on name bytes, never on readdir order.
func readSortedDir(path string) ([]direntry, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}

	children := make([]direntry, 0, len(entries))
	for _, e := range entries {
		childPath := filepath.Join(path, e.Name())
		info, err := os.Lstat(childPath)
		if err != nil {
			return nil, err
		}
		children = append(children, direntry{name: e.Name(), path: childPath, info: info})
	}

	sort.Slice(children, func(i, j int) bool {
		return children[i].name < children[j].name
	})

	return children, nil
}
