// Package ir implements the IR module, function, basic block and
// instruction data model plus the cursor-based builder (C3).
package ir

import (
	"fmt"

	"github.com/aetherstudio/esc/internal/arena"
	"github.com/aetherstudio/esc/internal/irtype"
)

// Opcode covers arithmetic, bitwise, comparison, load/store, branch,
// call, return, phi, and cast.
type Opcode int

const (
	OpAdd Opcode = iota
	OpSub
	OpMul
	OpDiv
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShr
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpLoad
	OpStore
	OpBr
	OpCondBr
	OpCall
	OpReturn
	OpPhi
	OpCast
)

// ValueKind is the discriminant of the Value sum type: immediate
// integer/float, named variable, block label, or constant index — no
// subtyping, per Design Notes §9.
type ValueKind int

const (
	ValImmInt ValueKind = iota
	ValImmFloat
	ValVar
	ValLabel
	ValConstIndex
)

// Value is a small, copyable, non-owning record.
type Value struct {
	Kind     ValueKind
	IntImm   int64
	FloatImm float64
	VarName  string
	VarVer   int
	Label    string
	ConstIdx int
}

func ImmInt(v int64) Value    { return Value{Kind: ValImmInt, IntImm: v} }
func ImmFloat(v float64) Value { return Value{Kind: ValImmFloat, FloatImm: v} }
func Var(name string, version int) Value {
	return Value{Kind: ValVar, VarName: name, VarVer: version}
}
func Label(name string) Value        { return Value{Kind: ValLabel, Label: name} }
func ConstIndex(idx int) Value       { return Value{Kind: ValConstIndex, ConstIdx: idx} }

// String renders a value the way a variable-version is spelled in
// spec.md's Glossary: name#n.
func (v Value) String() string {
	switch v.Kind {
	case ValImmInt:
		return fmt.Sprintf("%d", v.IntImm)
	case ValImmFloat:
		return fmt.Sprintf("%g", v.FloatImm)
	case ValVar:
		return fmt.Sprintf("%s#%d", v.VarName, v.VarVer)
	case ValLabel:
		return v.Label
	case ValConstIndex:
		return fmt.Sprintf("const[%d]", v.ConstIdx)
	default:
		return "?"
	}
}

// Instruction is one opcode, its operands, an optional result
// variable-version, the owning block, and a source-line annotation.
type Instruction struct {
	Opcode   Opcode
	Operands []Value
	Result   *Value // nil unless the instruction produces a named version
	Block    *Block
	Line     int
}

func (i *Instruction) IsTerminator() bool {
	return i.Opcode == OpBr || i.Opcode == OpCondBr || i.Opcode == OpReturn
}

// Phi is a variable name, its type, and one incoming version per
// predecessor, in predecessor order. Version is the version number the
// phi itself defines, filled in by SSA renaming the same way an
// OpStore's Result is.
type Phi struct {
	VarName  string
	Type     *irtype.Type
	Version  int
	Incoming []PhiOperand
	Block    *Block
}

type PhiOperand struct {
	Pred    *Block
	Version int
}

// Block is an ordered instruction sequence with predecessor/successor
// edges and block-entry phis.
type Block struct {
	Name         string
	Insts        []*Instruction
	Preds        []*Block
	Phis         []*Phi
	Func         *Function
}

// Terminator returns the block's last instruction if it is a
// terminator, else nil.
func (b *Block) Terminator() *Instruction {
	if len(b.Insts) == 0 {
		return nil
	}
	last := b.Insts[len(b.Insts)-1]
	if last.IsTerminator() {
		return last
	}
	return nil
}

// Successors derives successor edges from the terminator's label operands.
func (b *Block) Successors() []string {
	term := b.Terminator()
	if term == nil {
		return nil
	}
	var out []string
	for _, op := range term.Operands {
		if op.Kind == ValLabel {
			out = append(out, op.Label)
		}
	}
	return out
}

// Function is a name, signature, entry block, block list in allocation
// order, and a local symbol table.
type Function struct {
	Name       string
	ParamTypes []*irtype.Type
	ParamNames []string
	RetType    *irtype.Type
	Entry      *Block
	Blocks     []*Block
	Locals     map[string]*irtype.Type
}

func NewFunction(name string, paramNames []string, paramTypes []*irtype.Type, ret *irtype.Type) *Function {
	return &Function{
		Name: name, ParamNames: paramNames, ParamTypes: paramTypes,
		RetType: ret, Locals: make(map[string]*irtype.Type),
	}
}

// Module maps function name to function and global name to initial
// value, and owns the type pool plus the C1 object pools that every
// Instruction and Block in the module is allocated from.
type Module struct {
	Functions map[string]*Function
	Globals   map[string]Value
	Types     *irtype.Pool

	insts  *arena.Pool[Instruction]
	blocks *arena.Pool[Block]
}

func NewModule(types *irtype.Pool) *Module {
	return &Module{
		Functions: make(map[string]*Function),
		Globals:   make(map[string]Value),
		Types:     types,
		insts:     arena.NewPool[Instruction](arena.KindInstruction),
		blocks:    arena.NewPool[Block](arena.KindBasicBlock),
	}
}

// PoolStats reports the underlying instruction/block pool counters,
// the figures C11's profiler surfaces per compilation.
func (m *Module) PoolStats() (insts, blocks arena.Stats) {
	return m.insts.Stats(), m.blocks.Stats()
}

func (m *Module) AddFunction(f *Function) { m.Functions[f.Name] = f }
