package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/aetherstudio/esc/internal/build"
)

func newCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Remove a project's intermediate and output artefacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			projectPath, err := resolveProjectPath(args)
			if err != nil {
				return err
			}
			proj, err := build.Load(projectPath)
			if err != nil {
				return err
			}
			for _, dir := range []string{proj.IntermediatePath("debug"), proj.OutputPath("debug")} {
				if err := os.RemoveAll(dir); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
