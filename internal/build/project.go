// Package build implements the build orchestrator (C8): project-file
// parsing, project-graph expansion, intermediate artefact layout, and
// an optional YAML overlay.
//
// Grounded on
// original_source/ESC/src/compiler/driver/project.c/project.h and
// project_parser.c for the project model shape (name/type/version/
// output-type/description, items, dependencies) and spec.md §6 for the
// exact XML element names.
package build

import (
	"encoding/xml"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aetherstudio/esc/internal/errs"
)

// ProjectType mirrors EsProjectType; only Console is named by spec.md,
// the rest are carried for round-trip fidelity with richer project
// files.
type ProjectType string

const (
	ProjectConsole ProjectType = "Console"
	ProjectLibrary ProjectType = "Library"
	ProjectWeb     ProjectType = "Web"
	ProjectSystem  ProjectType = "System"
)

// xmlProject mirrors the on-disk <Project> schema.
type xmlProject struct {
	XMLName       xml.Name        `xml:"Project"`
	PropertyGroup xmlPropertyGroup `xml:"PropertyGroup"`
	ItemGroups    []xmlItemGroup  `xml:"ItemGroup"`
}

type xmlPropertyGroup struct {
	ProjectName string `xml:"ProjectName"`
	ProjectType string `xml:"ProjectType"`
	Version     string `xml:"Version"`
	OutputType  string `xml:"OutputType"`
	Description string `xml:"Description"`
}

type xmlItemGroup struct {
	Compiles          []xmlCompile          `xml:"Compile"`
	PackageReferences []xmlPackageReference `xml:"PackageReference"`
}

type xmlCompile struct {
	Include string `xml:"Include,attr"`
}

type xmlPackageReference struct {
	Include string `xml:"Include,attr"`
	Version string `xml:"Version,attr"`
}

// PackageReference is one declared third-party dependency.
type PackageReference struct {
	Name    string
	Version string
}

// Project is the parsed, in-memory project model.
type Project struct {
	Name        string
	Type        ProjectType
	Version     string
	OutputType  string
	Description string

	SourceFiles []string
	References  []PackageReference

	ProjectRoot string

	// Overlay fields, populated from an optional <Name>.esc.yaml sitting
	// alongside the project file (supplemented feature, not in the
	// original XML schema).
	Overlay Overlay
}

// Overlay is additional configuration carried in a project's optional
// <Name>.esc.yaml sidecar file: build-only settings that don't belong in the
// portable XML project file (watch globs, extra defines).
type Overlay struct {
	WatchGlobs []string `yaml:"watch"`
	Defines    []string `yaml:"defines"`
}

// Load reads and parses a project file at path. A missing
// <ProjectName> is derived from the filename (spec.md §6).
func Load(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.IoError, "build", err)
	}

	var x xmlProject
	if err := xml.Unmarshal(data, &x); err != nil {
		return nil, errs.Wrap(errs.FormatError, "build", err)
	}

	root := filepath.Dir(path)
	p := &Project{
		Name:        x.PropertyGroup.ProjectName,
		Type:        ProjectType(x.PropertyGroup.ProjectType),
		Version:     x.PropertyGroup.Version,
		OutputType:  x.PropertyGroup.OutputType,
		Description: x.PropertyGroup.Description,
		ProjectRoot: root,
	}
	if p.Name == "" {
		base := filepath.Base(path)
		p.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if p.Type == "" {
		p.Type = ProjectConsole
	}

	for _, group := range x.ItemGroups {
		for _, c := range group.Compiles {
			p.SourceFiles = append(p.SourceFiles, c.Include)
		}
		for _, ref := range group.PackageReferences {
			p.References = append(p.References, PackageReference{Name: ref.Include, Version: ref.Version})
		}
	}

	overlayPath := filepath.Join(root, p.Name+".esc.yaml")
	if data, err := os.ReadFile(overlayPath); err == nil {
		var overlay Overlay
		if err := yaml.Unmarshal(data, &overlay); err == nil {
			p.Overlay = overlay
		}
	}

	return p, nil
}

// AbsSourceFiles resolves every declared source path against the
// project root.
func (p *Project) AbsSourceFiles() []string {
	out := make([]string, len(p.SourceFiles))
	for i, f := range p.SourceFiles {
		out[i] = filepath.Join(p.ProjectRoot, f)
	}
	return out
}

// IntermediatePath returns the intermediate-artefact directory for a
// given configuration name (e.g. "debug", "release").
func (p *Project) IntermediatePath(config string) string {
	return filepath.Join(p.ProjectRoot, "obj", config)
}

// OutputPath returns the final build output directory for a given
// configuration name.
func (p *Project) OutputPath(config string) string {
	return filepath.Join(p.ProjectRoot, "bin", config)
}

// FindProjectFile locates the first *.esproj file directly inside dir,
// in file-name order (spec.md §6: "build with no argument must locate
// the first *.esproj in the current directory").
func FindProjectFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", errs.Wrap(errs.IoError, "build", err)
	}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".esproj") {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", errs.New(errs.NotFound, "build", "no .esproj file found in "+dir)
}
