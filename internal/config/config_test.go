package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(old) })
}

func TestDefaultTargetsExe(t *testing.T) {
	cfg := Default()
	if cfg.Target != TargetExe {
		t.Fatalf("expected exe default, got %s", cfg.Target)
	}
}

func TestParseTargetRejectsUnknown(t *testing.T) {
	if _, ok := ParseTarget("bogus"); ok {
		t.Fatal("expected bogus target to be rejected")
	}
}

func TestLoadAppliesYAMLOverlay(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".esc.yaml"), []byte("target: ir\nverbose: true\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	chdir(t, dir)

	cfg, err := Load(nil)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Target != TargetIR || !cfg.Verbose {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestLoadFlagOverridesOutranksFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".esc.yaml"), []byte("target: ir\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	chdir(t, dir)

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("target", "exe", "")
	fs.String("output", "", "")
	fs.Bool("keep-temp", false, "")
	fs.Bool("show-ir", false, "")
	fs.Bool("verbose", false, "")
	if err := fs.Parse([]string{"--target=vm"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(fs)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Target != TargetVM {
		t.Fatalf("expected flag override to win, got %s", cfg.Target)
	}
}

func TestLoadUnchangedFlagDoesNotOverrideFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".esc.yaml"), []byte("target: ir\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	chdir(t, dir)

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("target", "exe", "")
	fs.String("output", "", "")
	fs.Bool("keep-temp", false, "")
	fs.Bool("show-ir", false, "")
	fs.Bool("verbose", false, "")
	if err := fs.Parse(nil); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(fs)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Target != TargetIR {
		t.Fatalf("expected file value to survive unchanged flag, got %s", cfg.Target)
	}
}
