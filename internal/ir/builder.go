package ir

import (
	"fmt"

	"github.com/aetherstudio/esc/internal/errs"
)

// Builder maintains a "current function" and "current block" cursor
// (spec.md §4.3). Emitting an instruction appends to the current
// block; creating a block does not switch the cursor.
type Builder struct {
	module *Module
	fn     *Function
	block  *Block

	// versions is the pre-SSA name->variable-version mapping per
	// function; SSA construction (C4) rewrites it entirely.
	versions map[string]int
}

func NewBuilder(m *Module) *Builder {
	return &Builder{module: m}
}

// SetFunction makes fn the current function; the current block is reset.
func (b *Builder) SetFunction(fn *Function) {
	b.fn = fn
	b.block = fn.Entry
	b.versions = make(map[string]int)
}

// CreateBlock allocates a new block in fn's allocation order without
// moving the cursor. The block itself comes from the module's C1 block
// pool rather than a bare &Block{}, so block allocation counts toward
// the same hit/miss/fragmentation stats as every other pooled kind.
func (b *Builder) CreateBlock(name string) *Block {
	h := b.module.blocks.Alloc()
	blk := b.module.blocks.Ptr(h)
	*blk = Block{Name: name, Func: b.fn}
	b.fn.Blocks = append(b.fn.Blocks, blk)
	if b.fn.Entry == nil {
		b.fn.Entry = blk
	}
	return blk
}

// SetBlock moves the cursor to blk. Moving to an unterminated block is
// legal; moving to a terminated one is too (just future Emit calls
// against it will fail).
func (b *Builder) SetBlock(blk *Block) { b.block = blk }

// CurrentBlock returns the block the cursor currently points at.
func (b *Builder) CurrentBlock() *Block { return b.block }

// Emit appends inst to the current block. Inserting into a block that
// already has a terminator fails with IrMalformed. The caller's inst is
// a throwaway value; its contents are copied into a slot from the
// module's C1 instruction pool, which is what actually backs the block
// and everything built atop it (SSA renaming included).
func (b *Builder) Emit(inst *Instruction) error {
	if b.block == nil {
		return errs.New(errs.IrMalformed, "ir.builder", "no current block")
	}
	if b.block.Terminator() != nil {
		return errs.New(errs.IrMalformed, "ir.builder",
			fmt.Sprintf("cannot insert into block %q: already terminated", b.block.Name))
	}
	h := b.module.insts.Alloc()
	pooled := b.module.insts.Ptr(h)
	*pooled = *inst
	pooled.Block = b.block
	b.block.Insts = append(b.block.Insts, pooled)
	return nil
}

// Br emits an unconditional branch to target. No backward-edge
// restriction is enforced here — only the CFG shape matters, not the
// direction spec.md names "no backward edge is illegal" meaning loops
// via backward branches are permitted, not forbidden.
func (b *Builder) Br(target *Block, line int) error {
	target.Preds = append(target.Preds, b.block)
	return b.Emit(&Instruction{Opcode: OpBr, Operands: []Value{Label(target.Name)}, Line: line})
}

// CondBr emits a conditional branch to thenBlk/elseBlk.
func (b *Builder) CondBr(cond Value, thenBlk, elseBlk *Block, line int) error {
	thenBlk.Preds = append(thenBlk.Preds, b.block)
	elseBlk.Preds = append(elseBlk.Preds, b.block)
	return b.Emit(&Instruction{
		Opcode:   OpCondBr,
		Operands: []Value{cond, Label(thenBlk.Name), Label(elseBlk.Name)},
		Line:     line,
	})
}

// Return emits a return instruction with zero or one operand.
func (b *Builder) Return(v *Value, line int) error {
	var ops []Value
	if v != nil {
		ops = []Value{*v}
	}
	return b.Emit(&Instruction{Opcode: OpReturn, Operands: ops, Line: line})
}

// Store records a pre-SSA assignment: bumps the name's pre-SSA version
// counter and emits a store instruction against it.
func (b *Builder) Store(name string, val Value, line int) error {
	b.versions[name]++
	result := Var(name, b.versions[name])
	return b.Emit(&Instruction{Opcode: OpStore, Operands: []Value{result, val}, Result: &result, Line: line})
}

// Load reads the current pre-SSA version of name.
func (b *Builder) Load(name string, line int) (Value, error) {
	v := b.versions[name]
	result := Var(name, v)
	if err := b.Emit(&Instruction{Opcode: OpLoad, Operands: []Value{result}, Result: &result, Line: line}); err != nil {
		return Value{}, err
	}
	return result, nil
}

// BinOp emits an arithmetic/comparison/bitwise instruction and returns its result value.
func (b *Builder) BinOp(op Opcode, lhs, rhs Value, resultName string, line int) (Value, error) {
	b.versions[resultName]++
	result := Var(resultName, b.versions[resultName])
	err := b.Emit(&Instruction{Opcode: op, Operands: []Value{lhs, rhs}, Result: &result, Line: line})
	return result, err
}
