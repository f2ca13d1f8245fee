package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

const testProjectXML = `<Project>
  <PropertyGroup>
    <ProjectName>greet</ProjectName>
    <ProjectType>Console</ProjectType>
    <OutputType>exe</OutputType>
  </PropertyGroup>
  <ItemGroup>
    <Compile Include="main.es" />
  </ItemGroup>
</Project>`

func writeTestProject(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "greet.esproj")
	if err := os.WriteFile(path, []byte(testProjectXML), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "main.es"), []byte("func main() {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func runCmd(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(old) })

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err = root.Execute()
	return out.String(), err
}

func TestBuildExeTargetProducesOutputFile(t *testing.T) {
	dir := t.TempDir()
	writeTestProject(t, dir)

	if _, err := runCmd(t, dir, "build"); err != nil {
		t.Fatalf("build failed: %v", err)
	}

	out := filepath.Join(dir, "bin", "debug", "greet")
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("expected output binary at %s: %v", out, err)
	}
}

func TestBuildVMTargetRunsWithoutError(t *testing.T) {
	dir := t.TempDir()
	writeTestProject(t, dir)

	if _, err := runCmd(t, dir, "build", "--target=vm"); err != nil {
		t.Fatalf("build --target=vm failed: %v", err)
	}
}

func TestBuildIRTargetDumpsFunctionText(t *testing.T) {
	dir := t.TempDir()
	writeTestProject(t, dir)

	out, err := runCmd(t, dir, "build", "--target=ir")
	if err != nil {
		t.Fatalf("build --target=ir failed: %v", err)
	}
	if !bytes.Contains([]byte(out), []byte("func main")) {
		t.Fatalf("expected IR dump to mention func main, got %q", out)
	}
}

func TestCleanRemovesArtefacts(t *testing.T) {
	dir := t.TempDir()
	writeTestProject(t, dir)

	if _, err := runCmd(t, dir, "build"); err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if _, err := runCmd(t, dir, "clean"); err != nil {
		t.Fatalf("clean failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "bin")); !os.IsNotExist(err) {
		t.Fatalf("expected bin dir removed, stat err = %v", err)
	}
}

func TestCheckSucceedsOnValidProject(t *testing.T) {
	dir := t.TempDir()
	writeTestProject(t, dir)

	if _, err := runCmd(t, dir, "check"); err != nil {
		t.Fatalf("check failed: %v", err)
	}
}

func TestNewScaffoldsProject(t *testing.T) {
	dir := t.TempDir()

	if _, err := runCmd(t, dir, "new", "console", "widget"); err != nil {
		t.Fatalf("new failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "widget", "widget.esproj")); err != nil {
		t.Fatalf("expected scaffolded project file: %v", err)
	}
}

func TestBuildWithNoArgumentLocatesSingleEsproj(t *testing.T) {
	dir := t.TempDir()
	writeTestProject(t, dir)

	if _, err := runCmd(t, dir, "build"); err != nil {
		t.Fatalf("expected build to locate greet.esproj automatically: %v", err)
	}
}
