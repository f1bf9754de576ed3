package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ashtneoi/axim/internal/digest"
	"github.com/ashtneoi/axim/internal/meta"
	"github.com/ashtneoi/axim/internal/nar"
	"github.com/ashtneoi/axim/internal/store"
)

// RootCmd is the main command for the 'axim' binary, grounded in the
// teacher's registry/root.go RootCmd.
var RootCmd = &cobra.Command{
	Use:           "axim",
	Short:         "axim is a content-addressed artifact store",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Usage()
	},
}

var lockFlag bool

func init() {
	RootCmd.AddCommand(dumpNarCmd)
	RootCmd.AddCommand(hashCmd)
	RootCmd.AddCommand(normalizeMetaCmd)
	RootCmd.AddCommand(fixMetaCmd)
	RootCmd.AddCommand(addFileCmd)

	addFileCmd.Flags().BoolVar(&lockFlag, "lock", false, "take an advisory lock on the store root before publishing")
}

var dumpNarCmd = &cobra.Command{
	Use:   "dump-nar <path>",
	Short: "dump the canonical NAR serialization of a filesystem subtree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if term.IsTerminal(int(os.Stdout.Fd())) {
			return fmt.Errorf("refusing to dump binary data to a TTY")
		}
		return nar.Dump(os.Stdout, args[0])
	},
}

var hashCmd = &cobra.Command{
	Use:   "hash <path-or-dash>",
	Short: "print the digest of a file's contents, or stdin for \"-\"",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, closeFn, err := openPathOrStdin(args[0])
		if err != nil {
			return err
		}
		defer closeFn()

		hh := digest.New()
		if _, err := io.Copy(hh, r); err != nil {
			return err
		}
		fmt.Println(hh.Finalize())
		return nil
	},
}

var normalizeMetaCmd = &cobra.Command{
	Use:   "normalize-meta <path-or-dash>",
	Short: "parse a meta record and re-emit it in canonical form",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, closeFn, err := openPathOrStdin(args[0])
		if err != nil {
			return err
		}
		defer closeFn()

		m, err := meta.Parse(r)
		if err != nil {
			return err
		}
		return m.Dump(os.Stdout)
	},
}

var fixMetaCmd = &cobra.Command{
	Use:   "fix-meta <path-or-dash>",
	Short: "normalize a legacy multi-output meta record and derive its output ids",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, closeFn, err := openPathOrStdin(args[0])
		if err != nil {
			return err
		}
		defer closeFn()

		return meta.FixMeta(r, os.Stdout)
	},
}

var addFileCmd = &cobra.Command{
	Use:   "add-file <name> <version> <path>",
	Short: "publish a source file as a fixed-digest artifact",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		p := store.NewPublisher()
		if lockFlag {
			p = p.WithLock()
		}

		outputDir, err := p.AddFile(args[0], args[1], args[2])
		if err != nil {
			return err
		}
		fmt.Println(outputDir)
		return nil
	},
}

// openPathOrStdin opens path, or returns os.Stdin (with a no-op close) for
// the literal "-", matching the teacher's argv[2] == "-" convention from
// the original CLI.
func openPathOrStdin(path string) (io.Reader, func() error, error) {
	if path == "-" {
		return os.Stdin, func() error { return nil }, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}
