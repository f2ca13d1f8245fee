// Package pipeline implements the compilation pipeline (C6): a state
// machine over {ReadSource, Preprocess, Lex, Parse, Semantic, TypeCheck,
// Codegen, Complete}, reverse-order teardown of its owned artefacts, and
// the fixed print-macro table.
//
// Grounded on original_source/ESC/src/compiler/pipeline/compiler_pipeline.c
// for the exact stage list, the exact reverse-construction teardown
// order, and the exact macro table; and on the teacher's
// compilation_pipeline.go for the AdvanceTo-with-panic state-machine
// idiom.
package pipeline

import (
	"fmt"
	"time"

	"github.com/aetherstudio/esc/internal/logging"
)

// Stage is one of the eight pipeline stages, in the only order they may
// run.
type Stage int

const (
	StageReadSource Stage = iota
	StagePreprocess
	StageLex
	StageParse
	StageSemantic
	StageTypeCheck
	StageCodegen
	StageComplete
)

func (s Stage) String() string {
	switch s {
	case StageReadSource:
		return "read_source"
	case StagePreprocess:
		return "preprocess"
	case StageLex:
		return "lex"
	case StageParse:
		return "parse"
	case StageSemantic:
		return "semantic"
	case StageTypeCheck:
		return "type_check"
	case StageCodegen:
		return "codegen"
	case StageComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// StageResult records the outcome of one stage.
type StageResult struct {
	Stage    Stage
	Success  bool
	Duration time.Duration
	Error    string
}

// StandardMacros is the fixed table installed by Preprocess, mapping
// surface-level print helpers to runtime names. Additional macros may
// be appended by the caller before Execute runs.
var StandardMacros = map[string]string{
	"println":     "Console.WriteLine",
	"println_int": "Console.WriteLineInt",
	"print":       "Console.Write",
	"print_int":   "Console.WriteInt",
}

// StageFunc runs one stage of work against the pipeline's artefacts.
// Implementations mutate p's artefact fields and return an error on failure.
type StageFunc func(p *Pipeline) error

// Pipeline is a state machine owning every stage's artefact and
// advancing only while the previous stage succeeded.
type Pipeline struct {
	FileName string
	current  Stage
	results  []StageResult
	macros   map[string]string

	// Artefacts, owned in acquisition order: source, processed source,
	// lexer, parser, AST, semantic analyser, semantic result, type
	// context, code generator. Destroy() runs the teardowns registered
	// through OnDestroy in reverse; it does not release these fields itself.
	teardown []func()

	Source          string
	ProcessedSource string
	Lexer           any
	Parser          any
	AST             any
	SemanticAnalyzer any
	SemanticResult  any
	TypeContext     any
	CodeGenerator   any

	totalDuration time.Duration
	success       bool
	errorMessage  string
}

// New creates a pipeline for fileName, with the standard macro table
// installed (callers may add more before Execute).
func New(fileName string) *Pipeline {
	macros := make(map[string]string, len(StandardMacros))
	for k, v := range StandardMacros {
		macros[k] = v
	}
	return &Pipeline{FileName: fileName, macros: macros}
}

// AddMacro appends a caller-supplied macro before Preprocess runs.
func (p *Pipeline) AddMacro(from, to string) { p.macros[from] = to }

// Macros returns the effective macro table.
func (p *Pipeline) Macros() map[string]string { return p.macros }

// advanceTo panics on an out-of-order transition, matching the
// teacher's AdvanceTo idiom; stage functions never call this directly
// out of order because Execute drives the sequence itself.
func (p *Pipeline) advanceTo(s Stage) {
	if s != p.current+1 && !(s == StageReadSource && p.current == StageReadSource) {
		panic(fmt.Sprintf("pipeline: invalid transition from %s to %s", p.current, s))
	}
	p.current = s
}

func (p *Pipeline) record(stage Stage, success bool, dur time.Duration, errMsg string) {
	p.results = append(p.results, StageResult{Stage: stage, Success: success, Duration: dur, Error: errMsg})
	if !success {
		p.success = false
		p.errorMessage = errMsg
	}
}

// runStage times fn, records the result, and short-circuits the whole
// Execute call if it failed.
func (p *Pipeline) runStage(stage Stage, fn StageFunc) bool {
	p.advanceTo(stage)
	start := time.Now()
	err := fn(p)
	dur := time.Since(start)
	if err != nil {
		logging.Stage(stage.String()).WithField("file", p.FileName).Warn(err)
		p.record(stage, false, dur, err.Error())
		return false
	}
	p.record(stage, true, dur, "")
	return true
}

// Execute runs every stage in order, short-circuiting immediately on
// the first stage failure (spec.md §4.6's transition rule).
func (p *Pipeline) Execute(stages map[Stage]StageFunc) bool {
	p.success = true
	start := time.Now()

	order := []Stage{StageReadSource, StagePreprocess, StageLex, StageParse,
		StageSemantic, StageTypeCheck, StageCodegen}
	for _, s := range order {
		fn, ok := stages[s]
		if !ok {
			p.advanceTo(s)
			continue
		}
		if !p.runStage(s, fn) {
			p.totalDuration = time.Since(start)
			return false
		}
	}

	p.advanceTo(StageComplete)
	p.record(StageComplete, true, 0, "")
	p.totalDuration = time.Since(start)
	return true
}

func (p *Pipeline) Success() bool { return p.success }

func (p *Pipeline) Error() string {
	if p.errorMessage == "" {
		return "unknown error"
	}
	return p.errorMessage
}

func (p *Pipeline) StageResults() []StageResult  { return p.results }
func (p *Pipeline) TotalDuration() time.Duration { return p.totalDuration }

// OnDestroy registers a teardown func, called in reverse order by Destroy.
func (p *Pipeline) OnDestroy(fn func()) { p.teardown = append(p.teardown, fn) }

// Destroy calls every func registered with OnDestroy, last-registered
// first. The artefact fields are not released by Destroy itself: only
// what a stage registered through OnDestroy is torn down.
func (p *Pipeline) Destroy() {
	for i := len(p.teardown) - 1; i >= 0; i-- {
		p.teardown[i]()
	}
	p.teardown = nil
}
