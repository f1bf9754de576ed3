//go:build unix

package main

import "golang.org/x/sys/unix"

// setUmask fixes the process umask at 0o022 so that the modes the
// publisher records (spec.md §4.D step 3, §8 property 9) are exact rather
// than further masked by whatever the shell happened to set.
func setUmask() {
	unix.Umask(0o022)
}
