package driver

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aetherstudio/esc/internal/pipeline"
)

// spec.md §8 scenario 4: two source files with a shared generic List<T>
// declaration; the pre-scan registers it once, final entry count is 1.
func TestPreScanDedupesSharedGenericAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	fileA := filepath.Join(dir, "a.es")
	fileB := filepath.Join(dir, "b.es")
	src := "generic List<T> { }\nfunc main() {}\n"
	if err := os.WriteFile(fileA, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(fileB, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}

	d := New(2)
	d.AddFile(fileA, fileA+".out", "")
	d.AddFile(fileB, fileB+".out", "")
	d.PreScan()

	if got := d.Registry().Count(); got != 1 {
		t.Fatalf("expected 1 registered generic, got %d", got)
	}
}

func TestExecuteSucceedsAndAggregatesResults(t *testing.T) {
	dir := t.TempDir()
	fileA := filepath.Join(dir, "a.es")
	os.WriteFile(fileA, []byte("func main() {}\n"), 0o644)

	d := New(2)
	d.AddFile(fileA, fileA+".out", "")

	err := d.Execute(context.Background(), func(p *pipeline.Pipeline, task *Task) map[pipeline.Stage]pipeline.StageFunc {
		return map[pipeline.Stage]pipeline.StageFunc{
			pipeline.StageReadSource: func(p *pipeline.Pipeline) error { return nil },
		}
	})
	if err != nil {
		t.Fatal(err)
	}
	succeeded, failed := d.Stats()
	if succeeded != 1 || failed != 0 {
		t.Fatalf("expected 1 succeeded 0 failed, got %d/%d", succeeded, failed)
	}
	if d.AnyFailed() {
		t.Fatal("expected AnyFailed false")
	}
}

func TestFindRuntimeObjectFallsBackToBaseName(t *testing.T) {
	got := FindRuntimeObject("definitely-not-present.o")
	if got != "definitely-not-present.o" {
		t.Fatalf("expected fallback to bare name, got %q", got)
	}
}
