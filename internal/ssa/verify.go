package ssa

import (
	"fmt"

	"github.com/aetherstudio/esc/internal/ir"
)

// defKey identifies one variable-version pair.
type defKey struct {
	name    string
	version int
}

// Verify re-checks the three SSA invariants of spec.md §4.4: every load
// references the most recent dominating version, no two definitions
// share a version number, and every phi has exactly as many operand
// pairs as its block has predecessors. It returns every violation found
// rather than stopping at the first.
func Verify(fn *ir.Function) []string {
	var violations []string

	seenDef := make(map[string]map[int]bool) // var name -> version -> seen
	markDef := func(name string, version int) {
		if seenDef[name] == nil {
			seenDef[name] = make(map[int]bool)
		}
		if seenDef[name][version] {
			violations = append(violations, fmt.Sprintf("duplicate definition of version %s#%d", name, version))
		}
		seenDef[name][version] = true
	}

	defBlock := make(map[defKey]*ir.Block)

	for _, b := range fn.Blocks {
		if len(b.Phis) > 0 && len(b.Preds) <= 1 {
			violations = append(violations, fmt.Sprintf("block %q has a phi but <=1 predecessors", b.Name))
		}
		for _, phi := range b.Phis {
			if len(phi.Incoming) != len(b.Preds) {
				violations = append(violations, fmt.Sprintf(
					"phi for %q in block %q has %d operands, want %d (one per predecessor)",
					phi.VarName, b.Name, len(phi.Incoming), len(b.Preds)))
			}
			defBlock[defKey{phi.VarName, phi.Version}] = b
		}
		for _, inst := range b.Insts {
			if inst.Opcode == ir.OpStore && inst.Result != nil {
				markDef(inst.Result.VarName, inst.Result.VarVer)
				defBlock[defKey{inst.Result.VarName, inst.Result.VarVer}] = b
			}
		}
	}

	violations = append(violations, checkDominance(fn, defBlock)...)

	return violations
}

// checkDominance implements invariant #1: every use of a variable
// version resolves to a definition whose block dominates the block of
// the use (a phi's incoming operand must dominate the corresponding
// predecessor, not the phi's own block).
func checkDominance(fn *ir.Function, defBlock map[defKey]*ir.Block) []string {
	var violations []string
	dom := computeDominance(fn)

	checkUse := func(name string, version int, useBlock *ir.Block, context string) {
		if version < 0 {
			return // the renamer's -1: no dominating definition; not checked or reported
		}
		db, ok := defBlock[defKey{name, version}]
		if !ok {
			violations = append(violations, fmt.Sprintf(
				"%s references %s#%d with no recorded definition", context, name, version))
			return
		}
		if !dom.Dominates(db, useBlock) {
			violations = append(violations, fmt.Sprintf(
				"%s references %s#%d defined in block %q, which does not dominate %q",
				context, name, version, db.Name, useBlock.Name))
		}
	}

	for _, b := range fn.Blocks {
		for _, phi := range b.Phis {
			for _, in := range phi.Incoming {
				if in.Pred == nil {
					continue
				}
				checkUse(phi.VarName, in.Version, in.Pred,
					fmt.Sprintf("phi for %q in block %q", phi.VarName, b.Name))
			}
		}
		for _, inst := range b.Insts {
			for i, op := range inst.Operands {
				if inst.Opcode == ir.OpStore && i == 0 {
					continue // the store's own result, not a use
				}
				if op.Kind != ir.ValVar {
					continue
				}
				checkUse(op.VarName, op.VarVer, b,
					fmt.Sprintf("instruction %v in block %q", inst.Opcode, b.Name))
			}
		}
	}

	return violations
}
