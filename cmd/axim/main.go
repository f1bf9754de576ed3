// Command axim is the CLI glue described in spec.md §4.E: command
// dispatch, the dump-nar TTY guard, and error-to-exit-code mapping. This
// is deliberately thin — argument parsing and stdio wiring are out of
// scope for the core (spec.md §1); cobra owns both here, grounded in the
// teacher's own registry/root.go RootCmd/GCCmd pattern.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/ashtneoi/axim/internal/store"
)

// Exit codes per spec.md §7.
const (
	exitOK      = 0
	exitError   = 1
	exitUnknown = 10
)

func main() {
	// spec.md §4.D: the process sets umask 0o022 before any creation so
	// recorded modes are exact.
	setUmask()

	store.Root = store.DefaultRoot

	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if strings.HasPrefix(err.Error(), "unknown command") {
			os.Exit(exitUnknown)
		}
		os.Exit(exitError)
	}
}
