// Command esc is the E# compiler driver (spec.md §6): build, clean,
// check, new, help, and version subcommands over the compilation
// pipeline, parallel driver, and link session.
//
// Grounded on the teacher's cli.go/main.go subcommand dispatch
// (build/run/test/help/version) and RunCLI-style CommandContext,
// generalized onto spf13/cobra the way the example pack's cobra-based
// CLIs structure subcommand-builder functions and flag closures.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/aetherstudio/esc/internal/logging"
)

var versionString = "esc 0.1.0"

func main() {
	if _, err := maxprocs.Set(); err != nil {
		logging.Log().WithError(err).Debug("automaxprocs: could not set GOMAXPROCS")
	}

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "esc",
		Short:         "The E# compiler driver",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().String("target", "exe", "compilation target: asm|ir|exe|vm|eo")
	root.PersistentFlags().StringP("output", "o", "", "output path override")
	root.PersistentFlags().Bool("keep-temp", false, "keep intermediate artefacts")
	root.PersistentFlags().Bool("show-ir", false, "print generated IR to stderr")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	root.AddCommand(newBuildCmd())
	root.AddCommand(newCleanCmd())
	root.AddCommand(newCheckCmd())
	root.AddCommand(newNewCmd())
	root.AddCommand(newLspCmd())
	root.AddCommand(newVersionCmd())

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the esc version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), versionString)
			return nil
		},
	}
}
