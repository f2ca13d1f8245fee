// Package irtype implements the IR type pool (C2): a tagged-union type
// descriptor, primitive interning, derived-type construction, and the
// structural equality/assignability/castability/promotion algebra.
//
// The constructors and algebra are transcribed from
// original_source/ESC/src/compiler/middle/ir/ir_type.c, the ground
// truth for every size/alignment/promotion constant named here.
package irtype

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Kind is the tagged-union discriminant for an IR type.
type Kind int

const (
	Void Kind = iota
	Int8
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64
	Float32
	Float64
	Bool
	Char
	String
	Pointer
	Array
	Function
	Struct
	Class
	Any
	Unknown
)

// Modifier bits attach const/volatile/reference qualification.
type Modifier uint8

const (
	ModConst Modifier = 1 << iota
	ModVolatile
	ModReference
)

// Type is the IR type descriptor. Pointer/Array/Function/Struct kinds
// populate the corresponding fields; others leave them nil/zero.
type Type struct {
	Kind      Kind
	Modifiers Modifier
	Size      int
	Align     int

	Elem   *Type   // Pointer, Array
	Length int     // Array
	Params []*Type // Function
	Ret    *Type   // Function
	Name   string  // Struct
	Fields []Field // Struct
}

// Field is one member of a struct type.
type Field struct {
	Name string
	Type *Type
}

// Pool interns primitive type descriptors and caches derived shapes.
type Pool struct {
	primitives map[Kind]*Type
	derived    *lru.Cache[string, *Type]
}

// NewPool returns a pool with every primitive pre-interned.
func NewPool() *Pool {
	p := &Pool{primitives: make(map[Kind]*Type)}
	cache, _ := lru.New[string, *Type](4096)
	p.derived = cache

	for _, prim := range []struct {
		k          Kind
		size, algn int
	}{
		{Void, 0, 1},
		{Int8, 1, 1}, {Uint8, 1, 1},
		{Int16, 2, 2}, {Uint16, 2, 2},
		{Int32, 4, 4}, {Uint32, 4, 4},
		{Int64, 8, 8}, {Uint64, 8, 8},
		{Float32, 4, 4}, {Float64, 8, 8},
		{Bool, 1, 1},
		{Char, 1, 1},
		{String, 8, 8},
		{Any, 8, 8},
		{Unknown, 0, 1},
	} {
		p.primitives[prim.k] = &Type{Kind: prim.k, Size: prim.size, Align: prim.algn}
	}
	return p
}

// Primitive returns the canonical interned descriptor for a primitive kind.
func (p *Pool) Primitive(k Kind) *Type {
	if t, ok := p.primitives[k]; ok {
		return t
	}
	return p.primitives[Unknown]
}

// PointerTo returns a fresh Pointer(T) descriptor; equality is
// structural, not identity, so "fresh" is fine — the LRU cache below is
// purely an allocation-avoidance optimisation, never observable.
func (p *Pool) PointerTo(elem *Type) *Type {
	key := "ptr:" + shapeKey(elem)
	if t, ok := p.derived.Get(key); ok {
		return t
	}
	t := &Type{Kind: Pointer, Elem: elem, Size: 8, Align: 8}
	p.derived.Add(key, t)
	return t
}

// ArrayOf returns an Array(T,n) descriptor.
func (p *Pool) ArrayOf(elem *Type, length int) *Type {
	t := &Type{Kind: Array, Elem: elem, Length: length, Size: elem.Size * length, Align: elem.Align}
	return t
}

// FunctionOf returns a Function(params, ret) descriptor.
func (p *Pool) FunctionOf(params []*Type, ret *Type) *Type {
	return &Type{Kind: Function, Params: params, Ret: ret, Size: 8, Align: 8}
}

// StructOf returns a named struct descriptor.
func (p *Pool) StructOf(name string, fields []Field) *Type {
	size, align := 0, 1
	for _, f := range fields {
		if f.Type.Align > align {
			align = f.Type.Align
		}
		size += f.Type.Size
	}
	return &Type{Kind: Struct, Name: name, Fields: fields, Size: size, Align: align}
}

func shapeKey(t *Type) string {
	if t == nil {
		return "nil"
	}
	// Keyed by descriptor identity, so two different element types never
	// share one cached pointer descriptor.
	return fmt.Sprintf("%p", t)
}

func isNumeric(k Kind) bool {
	switch k {
	case Int8, Int16, Int32, Int64, Uint8, Uint16, Uint32, Uint64, Float32, Float64:
		return true
	}
	return false
}

func isFloat(k Kind) bool { return k == Float32 || k == Float64 }

func isInteger(k Kind) bool { return isNumeric(k) && !isFloat(k) }

func isPointer(k Kind) bool { return k == Pointer }

// Equal performs structural equality: identity-shortcut, then kind
// match, then recursive comparison for Pointer/Array, shallow kind
// equality otherwise (matches es_ir_type_equal exactly).
func Equal(a, b *Type) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case Pointer:
		return Equal(a.Elem, b.Elem)
	case Array:
		return a.Length == b.Length && Equal(a.Elem, b.Elem)
	default:
		return true
	}
}

// Compatible is assignability: equal, dst==Any, or both numeric.
func Compatible(src, dst *Type) bool {
	if Equal(src, dst) {
		return true
	}
	if dst.Kind == Any {
		return true
	}
	if isNumeric(src.Kind) && isNumeric(dst.Kind) {
		return true
	}
	return false
}

// CanAssign is an alias for Compatible (es_ir_type_can_assign).
func CanAssign(src, dst *Type) bool { return Compatible(src, dst) }

// CanCast extends Compatible with integer<->pointer in either direction
// and pointer<->pointer.
func CanCast(a, b *Type) bool {
	if Compatible(a, b) {
		return true
	}
	if isPointer(a.Kind) && isInteger(b.Kind) {
		return true
	}
	if isInteger(a.Kind) && isPointer(b.Kind) {
		return true
	}
	if isPointer(a.Kind) && isPointer(b.Kind) {
		return true
	}
	return false
}

// BinaryOp names the operator class feeding BinaryResult.
type BinaryOp int

const (
	OpArithmetic BinaryOp = iota
	OpComparison
	OpLogical
	OpBitwise
	OpEquality
)

// Promote widens an integer narrower than 32 bits to int32/uint32,
// preserving signedness; wider types and non-integers pass through.
func (p *Pool) Promote(t *Type) *Type {
	switch t.Kind {
	case Int8, Int16:
		return p.Primitive(Int32)
	case Uint8, Uint16:
		return p.Primitive(Uint32)
	default:
		return t
	}
}

// BinaryResult implements the binary-result rule of spec.md §4.2:
// comparison/logical -> bool; non-numeric -> unknown; float64
// dominates float32 dominates all integers; among integers the larger
// byte-size wins, ties favour the left (lhs) operand.
func (p *Pool) BinaryResult(lhs, rhs *Type, op BinaryOp) *Type {
	if op == OpComparison || op == OpLogical || op == OpEquality {
		return p.Primitive(Bool)
	}
	if !isNumeric(lhs.Kind) || !isNumeric(rhs.Kind) {
		return p.Primitive(Unknown)
	}

	l := p.Promote(lhs)
	r := p.Promote(rhs)

	if l.Kind == Float64 || r.Kind == Float64 {
		return p.Primitive(Float64)
	}
	if l.Kind == Float32 || r.Kind == Float32 {
		return p.Primitive(Float32)
	}
	if l.Size >= r.Size {
		return l
	}
	return r
}

// Common implements es_ir_type_common: null-coalesce (handled by caller
// via nil checks), equal->a, both numeric with either one
// float->float64-if-either-else-float32, both-int->larger-size-wins
// (tie->a), else->Any.
func (p *Pool) Common(a, b *Type) *Type {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if Equal(a, b) {
		return a
	}
	if isNumeric(a.Kind) && isNumeric(b.Kind) {
		if isFloat(a.Kind) || isFloat(b.Kind) {
			if a.Kind == Float64 || b.Kind == Float64 {
				return p.Primitive(Float64)
			}
			return p.Primitive(Float32)
		}
		if a.Size >= b.Size {
			return a
		}
		return b
	}
	return p.Primitive(Any)
}

// SupportsOp reports whether t is a valid operand for op.
func SupportsOp(t *Type, op BinaryOp) bool {
	switch op {
	case OpArithmetic, OpComparison:
		return isNumeric(t.Kind)
	case OpBitwise:
		return isInteger(t.Kind)
	case OpEquality:
		return true
	default:
		return false
	}
}

// DefaultValue is always a zero immediate, regardless of kind
// (es_ir_type_default_value).
func DefaultValue() int64 { return 0 }
