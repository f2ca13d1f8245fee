package build

import "github.com/aetherstudio/esc/internal/errs"

// Graph is the expanded project-reference graph rooted at one project.
// A PackageReference whose Name resolves to a local *.esproj path (as
// opposed to a published package) is expanded recursively.
type Graph struct {
	Root  *Project
	Nodes []*Project
	order []string
}

// Expand builds the project graph rooted at root, resolving local
// project references found under resolveDir. Cyclical references are
// rejected.
func Expand(root *Project, resolveDir func(ref PackageReference) (string, bool)) (*Graph, error) {
	g := &Graph{Root: root}
	visiting := make(map[string]bool)
	done := make(map[string]bool)
	if err := g.visit(root, resolveDir, visiting, done); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Graph) visit(p *Project, resolveDir func(PackageReference) (string, bool), visiting, done map[string]bool) error {
	if done[p.Name] {
		return nil
	}
	if visiting[p.Name] {
		return errs.New(errs.Unsupported, "build", "cyclic project reference involving "+p.Name)
	}
	visiting[p.Name] = true
	defer delete(visiting, p.Name)

	for _, ref := range p.References {
		path, ok := resolveDir(ref)
		if !ok {
			continue // a published package reference, not a local project
		}
		dep, err := Load(path)
		if err != nil {
			return err
		}
		if err := g.visit(dep, resolveDir, visiting, done); err != nil {
			return err
		}
	}

	g.Nodes = append(g.Nodes, p)
	g.order = append(g.order, p.Name)
	done[p.Name] = true
	return nil
}

// BuildOrder returns project names in dependency-first order: a
// project's local references always precede it.
func (g *Graph) BuildOrder() []string { return append([]string(nil), g.order...) }
