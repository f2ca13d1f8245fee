// Package vm implements the bytecode VM (C14): a single-threaded stack
// machine with a mark-sweep collector, consuming an on-disk bytecode
// chunk produced by a bytecode code-generator.
//
// Grounded on original_source/ESC/vm/bytecode.h (opcode enum, EsChunk
// shape) and vm_executor.c (exact on-disk chunk layout: magic/version
// header, code+lines arrays, constant-kind-tagged payload loop).
package vm

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/aetherstudio/esc/internal/errs"
)

// OpCode is one bytecode instruction opcode.
type OpCode byte

const (
	OpConstant OpCode = iota
	OpNull
	OpTrue
	OpFalse

	OpPop

	OpGetLocal
	OpSetLocal
	OpGetGlobal
	OpDefineGlobal
	OpSetGlobal

	OpEqual
	OpGreater
	OpLess

	OpAdd
	OpSub
	OpMul
	OpDiv
	OpNot
	OpNegate

	OpPrint

	OpJump
	OpJumpIfFalse
	OpLoop

	OpCall
	OpReturn

	OpStackAdjust

	OpIntToString

	OpHalt
)

// ValueType tags a constant-pool or stack Value.
type ValueType byte

const (
	ValBool ValueType = iota
	ValNull
	ValNumber
	ValObj
	ValString
)

// Value is the VM's tagged-union runtime value.
type Value struct {
	Type   ValueType
	Bool   bool
	Number float64
	Str    string
}

func BoolValue(b bool) Value    { return Value{Type: ValBool, Bool: b} }
func NullValue() Value          { return Value{Type: ValNull} }
func NumberValue(n float64) Value { return Value{Type: ValNumber, Number: n} }
func StringValue(s string) Value { return Value{Type: ValString, Str: s} }

func (v Value) IsNumber() bool { return v.Type == ValNumber }
func (v Value) IsString() bool { return v.Type == ValString }
func (v Value) IsFalsey() bool {
	return v.Type == ValNull || (v.Type == ValBool && !v.Bool)
}

// Chunk is one unit of executable bytecode: the code array, matching
// per-byte source-line annotations, and the constant pool.
type Chunk struct {
	Code      []byte
	Lines     []int
	Constants []Value
}

// Write appends one instruction byte tagged with its source line.
func (c *Chunk) Write(b byte, line int) {
	c.Code = append(c.Code, b)
	c.Lines = append(c.Lines, line)
}

// AddConstant appends value to the constant pool and returns its index.
func (c *Chunk) AddConstant(value Value) int {
	c.Constants = append(c.Constants, value)
	return len(c.Constants) - 1
}

const (
	magic       = 0x45534243
	fileVersion = uint16(1)
)

// Serialize writes chunk to w in the exact on-disk format: magic,
// version, code-count + code bytes + line ints, constant-count +
// type-tagged constant payloads.
func Serialize(w io.Writer, chunk *Chunk) error {
	bw := bufio.NewWriter(w)

	if err := binary.Write(bw, binary.LittleEndian, uint32(magic)); err != nil {
		return errs.Wrap(errs.IoError, "vm", err)
	}
	if err := binary.Write(bw, binary.LittleEndian, fileVersion); err != nil {
		return errs.Wrap(errs.IoError, "vm", err)
	}

	if err := binary.Write(bw, binary.LittleEndian, uint32(len(chunk.Code))); err != nil {
		return errs.Wrap(errs.IoError, "vm", err)
	}
	if len(chunk.Code) > 0 {
		if _, err := bw.Write(chunk.Code); err != nil {
			return errs.Wrap(errs.IoError, "vm", err)
		}
		for _, line := range chunk.Lines {
			if err := binary.Write(bw, binary.LittleEndian, int32(line)); err != nil {
				return errs.Wrap(errs.IoError, "vm", err)
			}
		}
	}

	if err := binary.Write(bw, binary.LittleEndian, uint32(len(chunk.Constants))); err != nil {
		return errs.Wrap(errs.IoError, "vm", err)
	}
	for _, value := range chunk.Constants {
		if err := binary.Write(bw, binary.LittleEndian, value.Type); err != nil {
			return errs.Wrap(errs.IoError, "vm", err)
		}
		switch value.Type {
		case ValBool:
			var b byte
			if value.Bool {
				b = 1
			}
			if err := binary.Write(bw, binary.LittleEndian, b); err != nil {
				return errs.Wrap(errs.IoError, "vm", err)
			}
		case ValNumber:
			if err := binary.Write(bw, binary.LittleEndian, value.Number); err != nil {
				return errs.Wrap(errs.IoError, "vm", err)
			}
		case ValString:
			if err := binary.Write(bw, binary.LittleEndian, uint16(len(value.Str))); err != nil {
				return errs.Wrap(errs.IoError, "vm", err)
			}
			if _, err := bw.WriteString(value.Str); err != nil {
				return errs.Wrap(errs.IoError, "vm", err)
			}
		case ValNull, ValObj:
			// no payload
		}
	}

	return bw.Flush()
}

// Deserialize reads a chunk written by Serialize, validating the magic
// and version fields.
func Deserialize(r io.Reader) (*Chunk, error) {
	br := bufio.NewReader(r)

	var m uint32
	if err := binary.Read(br, binary.LittleEndian, &m); err != nil {
		return nil, errs.Wrap(errs.IoError, "vm", err)
	}
	if m != magic {
		return nil, errs.New(errs.FormatError, "vm", "invalid bytecode file magic")
	}

	var version uint16
	if err := binary.Read(br, binary.LittleEndian, &version); err != nil {
		return nil, errs.Wrap(errs.IoError, "vm", err)
	}
	if version != fileVersion {
		return nil, errs.New(errs.Unsupported, "vm", "unsupported bytecode file version")
	}

	chunk := &Chunk{}

	var codeCount uint32
	if err := binary.Read(br, binary.LittleEndian, &codeCount); err != nil {
		return nil, errs.Wrap(errs.IoError, "vm", err)
	}
	if codeCount > 0 {
		chunk.Code = make([]byte, codeCount)
		if _, err := io.ReadFull(br, chunk.Code); err != nil {
			return nil, errs.Wrap(errs.IoError, "vm", err)
		}
		chunk.Lines = make([]int, codeCount)
		for i := range chunk.Lines {
			var line int32
			if err := binary.Read(br, binary.LittleEndian, &line); err != nil {
				return nil, errs.Wrap(errs.IoError, "vm", err)
			}
			chunk.Lines[i] = int(line)
		}
	}

	var constantCount uint32
	if err := binary.Read(br, binary.LittleEndian, &constantCount); err != nil {
		return nil, errs.Wrap(errs.IoError, "vm", err)
	}
	for i := uint32(0); i < constantCount; i++ {
		var typ ValueType
		if err := binary.Read(br, binary.LittleEndian, &typ); err != nil {
			return nil, errs.Wrap(errs.IoError, "vm", err)
		}
		var value Value
		value.Type = typ
		switch typ {
		case ValBool:
			var b byte
			if err := binary.Read(br, binary.LittleEndian, &b); err != nil {
				return nil, errs.Wrap(errs.IoError, "vm", err)
			}
			value.Bool = b != 0
		case ValNumber:
			if err := binary.Read(br, binary.LittleEndian, &value.Number); err != nil {
				return nil, errs.Wrap(errs.IoError, "vm", err)
			}
		case ValString:
			var length uint16
			if err := binary.Read(br, binary.LittleEndian, &length); err != nil {
				return nil, errs.Wrap(errs.IoError, "vm", err)
			}
			buf := make([]byte, length)
			if _, err := io.ReadFull(br, buf); err != nil {
				return nil, errs.Wrap(errs.IoError, "vm", err)
			}
			value.Str = string(buf)
		case ValNull, ValObj:
			// no payload
		}
		chunk.Constants = append(chunk.Constants, value)
	}

	return chunk, nil
}
