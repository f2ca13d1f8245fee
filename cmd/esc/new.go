package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/aetherstudio/esc/internal/build"
)

var projectTemplates = map[string]build.ProjectType{
	"console": build.ProjectConsole,
	"library": build.ProjectLibrary,
	"web":     build.ProjectWeb,
	"system":  build.ProjectSystem,
}

const newProjectTemplate = `<Project>
  <PropertyGroup>
    <ProjectName>%s</ProjectName>
    <ProjectType>%s</ProjectType>
    <Version>0.1.0</Version>
    <OutputType>exe</OutputType>
  </PropertyGroup>
  <ItemGroup>
    <Compile Include="main.es" />
  </ItemGroup>
</Project>
`

const newMainTemplate = "func main() {\n    println(\"hello, world\")\n}\n"

func newNewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "new <type> <name>",
		Short: "Scaffold a new project directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, ok := projectTemplates[args[0]]
			if !ok {
				return fmt.Errorf("unknown project type %q (want console, library, web, or system)", args[0])
			}
			name := args[1]

			if err := os.MkdirAll(name, 0o755); err != nil {
				return err
			}
			projFile := filepath.Join(name, name+".esproj")
			if err := os.WriteFile(projFile, []byte(fmt.Sprintf(newProjectTemplate, name, string(kind))), 0o644); err != nil {
				return err
			}
			if err := os.WriteFile(filepath.Join(name, "main.es"), []byte(newMainTemplate), 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s project %s\n", args[0], projFile)
			return nil
		},
	}
}
