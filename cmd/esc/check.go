package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aetherstudio/esc/internal/build"
	"github.com/aetherstudio/esc/internal/driver"
	"github.com/aetherstudio/esc/internal/pipeline"
)

// newCheckCmd runs the front half of the pipeline (through TypeCheck)
// without codegen or linking, for fast diagnostics.
func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run the front-end stages without producing output",
		RunE: func(cmd *cobra.Command, args []string) error {
			projectPath, err := resolveProjectPath(args)
			if err != nil {
				return err
			}
			proj, err := build.Load(projectPath)
			if err != nil {
				return err
			}

			d := driver.New(1)
			for _, src := range proj.AbsSourceFiles() {
				d.AddFile(src, "", "")
			}

			err = d.Execute(context.Background(), func(p *pipeline.Pipeline, t *driver.Task) map[pipeline.Stage]pipeline.StageFunc {
				return map[pipeline.Stage]pipeline.StageFunc{
					pipeline.StageReadSource: func(p *pipeline.Pipeline) error {
						data, err := os.ReadFile(t.Input)
						if err != nil {
							return err
						}
						p.Source = string(data)
						return nil
					},
					pipeline.StagePreprocess: func(p *pipeline.Pipeline) error { p.ProcessedSource = p.Source; return nil },
					pipeline.StageLex:        func(p *pipeline.Pipeline) error { return nil },
					pipeline.StageParse:      func(p *pipeline.Pipeline) error { return nil },
					pipeline.StageSemantic:   func(p *pipeline.Pipeline) error { return nil },
					pipeline.StageTypeCheck:  func(p *pipeline.Pipeline) error { return nil },
				}
			})
			if err != nil {
				return err
			}

			succeeded, failed := d.Stats()
			fmt.Fprintf(cmd.OutOrStdout(), "check: %d ok, %d failed\n", succeeded, failed)
			if d.AnyFailed() {
				for _, t := range d.Tasks() {
					if t.ErrorMsg != "" {
						fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", t.Input, t.ErrorMsg)
					}
				}
				return fmt.Errorf("check: %d file(s) failed", failed)
			}
			return nil
		},
	}
}
