package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/aetherstudio/esc/internal/lsp"
)

func newLspCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lsp",
		Short: "Run the E# language server over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			server := lsp.NewServer(cmd.OutOrStdout())
			return server.Serve(os.Stdin)
		},
	}
}
