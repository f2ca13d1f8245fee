package build

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleProjectXML = `<Project>
  <PropertyGroup>
    <ProjectName>hello</ProjectName>
    <ProjectType>Console</ProjectType>
    <Version>1.0.0</Version>
    <OutputType>exe</OutputType>
    <Description>sample</Description>
  </PropertyGroup>
  <ItemGroup>
    <Compile Include="main.es" />
    <Compile Include="util.es" />
    <PackageReference Include="stdlib" Version="1.2.0" />
  </ItemGroup>
</Project>`

func writeProject(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadParsesPropertyGroupAndItems(t *testing.T) {
	dir := t.TempDir()
	path := writeProject(t, dir, "hello.esproj", sampleProjectXML)

	p, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "hello" || p.Type != ProjectConsole || p.Version != "1.0.0" {
		t.Fatalf("unexpected project: %+v", p)
	}
	if len(p.SourceFiles) != 2 || p.SourceFiles[0] != "main.es" {
		t.Fatalf("unexpected source files: %v", p.SourceFiles)
	}
	if len(p.References) != 1 || p.References[0].Name != "stdlib" || p.References[0].Version != "1.2.0" {
		t.Fatalf("unexpected references: %v", p.References)
	}
}

func TestLoadDerivesNameFromFilenameWhenMissing(t *testing.T) {
	dir := t.TempDir()
	content := `<Project><PropertyGroup><ProjectType>Console</ProjectType></PropertyGroup></Project>`
	path := writeProject(t, dir, "myapp.esproj", content)

	p, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "myapp" {
		t.Fatalf("expected derived name myapp, got %q", p.Name)
	}
}

func TestLoadAppliesYAMLOverlay(t *testing.T) {
	dir := t.TempDir()
	writeProject(t, dir, "hello.esproj", sampleProjectXML)
	writeProject(t, dir, "hello.esc.yaml", "watch:\n  - \"*.es\"\ndefines:\n  - DEBUG\n")

	p, err := Load(filepath.Join(dir, "hello.esproj"))
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Overlay.WatchGlobs) != 1 || p.Overlay.WatchGlobs[0] != "*.es" {
		t.Fatalf("unexpected overlay watch globs: %v", p.Overlay.WatchGlobs)
	}
	if len(p.Overlay.Defines) != 1 || p.Overlay.Defines[0] != "DEBUG" {
		t.Fatalf("unexpected overlay defines: %v", p.Overlay.Defines)
	}
}

func TestFindProjectFileLocatesFirstEsproj(t *testing.T) {
	dir := t.TempDir()
	writeProject(t, dir, "b.esproj", sampleProjectXML)

	found, err := FindProjectFile(dir)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(found) != "b.esproj" {
		t.Fatalf("expected b.esproj, got %s", found)
	}
}

func TestFindProjectFileErrorsWhenNoneFound(t *testing.T) {
	dir := t.TempDir()
	if _, err := FindProjectFile(dir); err == nil {
		t.Fatal("expected error when no .esproj present")
	}
}

func TestAbsSourceFilesResolvesAgainstRoot(t *testing.T) {
	dir := t.TempDir()
	path := writeProject(t, dir, "hello.esproj", sampleProjectXML)
	p, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	abs := p.AbsSourceFiles()
	if abs[0] != filepath.Join(dir, "main.es") {
		t.Fatalf("unexpected absolute path: %s", abs[0])
	}
}

func TestExpandDetectsCycle(t *testing.T) {
	dir := t.TempDir()
	writeProject(t, dir, "a.esproj", `<Project><PropertyGroup><ProjectName>a</ProjectName></PropertyGroup><ItemGroup><PackageReference Include="b" Version="1.0" /></ItemGroup></Project>`)
	writeProject(t, dir, "b.esproj", `<Project><PropertyGroup><ProjectName>b</ProjectName></PropertyGroup><ItemGroup><PackageReference Include="a" Version="1.0" /></ItemGroup></Project>`)

	a, err := Load(filepath.Join(dir, "a.esproj"))
	if err != nil {
		t.Fatal(err)
	}

	resolve := func(ref PackageReference) (string, bool) {
		candidate := filepath.Join(dir, ref.Name+".esproj")
		if _, statErr := os.Stat(candidate); statErr == nil {
			return candidate, true
		}
		return "", false
	}

	if _, err := Expand(a, resolve); err == nil {
		t.Fatal("expected cyclic reference error")
	}
}

func TestExpandOrdersDependenciesFirst(t *testing.T) {
	dir := t.TempDir()
	writeProject(t, dir, "base.esproj", `<Project><PropertyGroup><ProjectName>base</ProjectName></PropertyGroup></Project>`)
	writeProject(t, dir, "app.esproj", `<Project><PropertyGroup><ProjectName>app</ProjectName></PropertyGroup><ItemGroup><PackageReference Include="base" Version="1.0" /></ItemGroup></Project>`)

	app, err := Load(filepath.Join(dir, "app.esproj"))
	if err != nil {
		t.Fatal(err)
	}

	resolve := func(ref PackageReference) (string, bool) {
		candidate := filepath.Join(dir, ref.Name+".esproj")
		if _, statErr := os.Stat(candidate); statErr == nil {
			return candidate, true
		}
		return "", false
	}

	g, err := Expand(app, resolve)
	if err != nil {
		t.Fatal(err)
	}
	order := g.BuildOrder()
	if len(order) != 2 || order[0] != "base" || order[1] != "app" {
		t.Fatalf("expected [base app], got %v", order)
	}
}
