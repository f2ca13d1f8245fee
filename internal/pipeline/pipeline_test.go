package pipeline

import "testing"

func TestExecuteShortCircuitsOnFirstFailure(t *testing.T) {
	p := New("main.es")
	var ran []Stage

	stages := map[Stage]StageFunc{
		StageReadSource: func(p *Pipeline) error {
			ran = append(ran, StageReadSource)
			return nil
		},
		StagePreprocess: func(p *Pipeline) error {
			ran = append(ran, StagePreprocess)
			return errUnexpected
		},
		StageLex: func(p *Pipeline) error {
			ran = append(ran, StageLex)
			return nil
		},
	}

	if p.Execute(stages) {
		t.Fatal("expected Execute to report failure")
	}
	if len(ran) != 2 {
		t.Fatalf("expected exactly 2 stages to run, got %d: %v", len(ran), ran)
	}
}

func TestExecuteRunsAllStagesOnSuccess(t *testing.T) {
	p := New("main.es")
	stages := map[Stage]StageFunc{
		StageReadSource: noop,
		StagePreprocess: noop,
		StageLex:        noop,
		StageParse:      noop,
		StageSemantic:   noop,
		StageTypeCheck:  noop,
		StageCodegen:    noop,
	}
	if !p.Execute(stages) {
		t.Fatalf("expected success, got error: %s", p.Error())
	}
	if len(p.StageResults()) != 8 {
		t.Fatalf("expected 8 recorded stage results, got %d", len(p.StageResults()))
	}
}

func TestDestroyRunsInReverseOrder(t *testing.T) {
	p := New("main.es")
	var order []int
	p.OnDestroy(func() { order = append(order, 1) })
	p.OnDestroy(func() { order = append(order, 2) })
	p.OnDestroy(func() { order = append(order, 3) })
	p.Destroy()
	want := []int{3, 2, 1}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected reverse teardown order %v, got %v", want, order)
		}
	}
}

func TestStandardMacrosInstalled(t *testing.T) {
	p := New("main.es")
	if p.Macros()["println"] != "Console.WriteLine" {
		t.Fatalf("expected println -> Console.WriteLine")
	}
}

func noop(p *Pipeline) error { return nil }

var errUnexpected = &stageErr{"boom"}

type stageErr struct{ msg string }

func (e *stageErr) Error() string { return e.msg }
