package ssa

import "github.com/aetherstudio/esc/internal/ir"

// Construct collects definitions, places phis, then renames against fn's
// complete CFG: the three steps of spec.md §4.4.
func Construct(fn *ir.Function) {
	dom := computeDominance(fn)
	defs := collectDefs(fn)
	insertPhis(fn, dom, defs)
	rename(fn, dom)
}

// collectDefs scans store operands for every assigned variable name and
// the set of blocks where it is assigned (step 1).
func collectDefs(fn *ir.Function) map[string]map[*ir.Block]bool {
	defs := make(map[string]map[*ir.Block]bool)
	for _, b := range fn.Blocks {
		for _, inst := range b.Insts {
			if inst.Opcode != ir.OpStore || inst.Result == nil {
				continue
			}
			name := inst.Result.VarName
			if defs[name] == nil {
				defs[name] = make(map[*ir.Block]bool)
			}
			defs[name][b] = true
		}
	}
	return defs
}

// insertPhis iterates the dominance-frontier closure to fixpoint for
// every assigned variable (step 2), skipping blocks with <2
// predecessors — per spec.md's φ-node invariant, "no φ survives a
// block with <=1 predecessor".
func insertPhis(fn *ir.Function, dom *domInfo, defs map[string]map[*ir.Block]bool) {
	hasPhi := make(map[string]map[*ir.Block]bool)

	for name, defBlocks := range defs {
		hasPhi[name] = make(map[*ir.Block]bool)
		worklist := make([]*ir.Block, 0, len(defBlocks))
		inWork := make(map[*ir.Block]bool)
		for b := range defBlocks {
			worklist = append(worklist, b)
			inWork[b] = true
		}

		for len(worklist) > 0 {
			b := worklist[0]
			worklist = worklist[1:]
			inWork[b] = false

			for f := range dom.frontier[b] {
				if hasPhi[name][f] || len(preds(f)) < 2 {
					continue
				}
				phi := &ir.Phi{VarName: name, Block: f}
				for _, p := range preds(f) {
					phi.Incoming = append(phi.Incoming, ir.PhiOperand{Pred: p})
				}
				f.Phis = append(f.Phis, phi)
				hasPhi[name][f] = true

				if !defBlocks[f] {
					defBlocks[f] = true
					if !inWork[f] {
						worklist = append(worklist, f)
						inWork[f] = true
					}
				}
			}
		}
	}
}

func preds(b *ir.Block) []*ir.Block { return b.Preds }

// varStack is a per-variable version stack used while renaming.
type varStack struct {
	stacks map[string][]int
	next   map[string]int
}

func newVarStack() *varStack {
	return &varStack{stacks: make(map[string][]int), next: make(map[string]int)}
}

func (vs *varStack) push(name string) int {
	v := vs.next[name]
	vs.next[name] = v + 1
	vs.stacks[name] = append(vs.stacks[name], v)
	return v
}

func (vs *varStack) top(name string) int {
	s := vs.stacks[name]
	if len(s) == 0 {
		return -1
	}
	return s[len(s)-1]
}

func (vs *varStack) pop(name string, n int) {
	s := vs.stacks[name]
	if len(s) >= n {
		vs.stacks[name] = s[:len(s)-n]
	}
}

// rename walks the dominator tree in preorder, maintaining a stack per
// variable: each store pushes a fresh version, each load consumes the
// stack top, and each phi operand pair is filled when the successor
// block is visited from the corresponding predecessor (step 3).
func rename(fn *ir.Function, dom *domInfo) {
	vs := newVarStack()
	renameBlock(fn.Entry, dom, vs)
}

// renameBlock renames one block then recurses into its dominator-tree
// children, popping every version it pushed before returning — the
// stack-discipline that makes a flat preorder walk unsound without
// recursion (a sibling subtree must see the versions visible at their
// common dominator, not whatever a previously-visited subtree left
// behind).
func renameBlock(b *ir.Block, dom *domInfo, vs *varStack) {
	pushed := make(map[string]int)

	for _, phi := range b.Phis {
		phi.Version = vs.push(phi.VarName)
		pushed[phi.VarName]++
	}

	for _, inst := range b.Insts {
		for i, op := range inst.Operands {
			if inst.Opcode == ir.OpStore && i == 0 {
				continue
			}
			if op.Kind == ir.ValVar {
				inst.Operands[i] = ir.Var(op.VarName, vs.top(op.VarName))
			}
		}
		if inst.Opcode == ir.OpStore && inst.Result != nil {
			name := inst.Result.VarName
			v := vs.push(name)
			pushed[name]++
			*inst.Result = ir.Var(name, v)
			if len(inst.Operands) > 0 {
				inst.Operands[0] = *inst.Result
			}
		}
		if inst.Result != nil && inst.Opcode == ir.OpLoad {
			name := inst.Result.VarName
			*inst.Result = ir.Var(name, vs.top(name))
			if len(inst.Operands) > 0 {
				inst.Operands[0] = *inst.Result
			}
		}
	}

	// Fill phi operand pairs for every successor reached from b.
	for _, s := range dom.succs[b] {
		for _, phi := range s.Phis {
			for i, pred := range blockPreds(s) {
				if pred == b {
					phi.Incoming[i] = ir.PhiOperand{Pred: b, Version: vs.top(phi.VarName)}
				}
			}
		}
	}

	for _, c := range dom.children(b) {
		renameBlock(c, dom, vs)
	}

	for name, n := range pushed {
		vs.pop(name, n)
	}
}

func blockPreds(b *ir.Block) []*ir.Block { return b.Preds }
