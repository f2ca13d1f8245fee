package vm

import (
	"bytes"
	"testing"
)

func emitConstant(c *Chunk, v Value, line int) {
	idx := c.AddConstant(v)
	c.Write(byte(OpConstant), line)
	c.Write(byte(idx), line)
}

// spec.md §8 scenario 5: PUSH "a"; PUSH "b"; ADD; HALT -> "ab".
func TestStringConcatenationScenario(t *testing.T) {
	c := &Chunk{}
	emitConstant(c, StringValue("a"), 1)
	emitConstant(c, StringValue("b"), 1)
	c.Write(byte(OpAdd), 1)
	c.Write(byte(OpHalt), 1)

	m := New(&bytes.Buffer{})
	if result := m.Interpret(c); result != InterpretOK {
		t.Fatalf("expected InterpretOK, got %v (err=%s)", result, m.LastError())
	}
	top := m.StackTop()
	if !top.IsString() || top.Str != "ab" {
		t.Fatalf("expected \"ab\", got %+v", top)
	}
}

// spec.md §8 scenario 5: PUSH 1; PUSH 2; ADD; HALT -> 3.
func TestNumericAdditionScenario(t *testing.T) {
	c := &Chunk{}
	emitConstant(c, NumberValue(1), 1)
	emitConstant(c, NumberValue(2), 1)
	c.Write(byte(OpAdd), 1)
	c.Write(byte(OpHalt), 1)

	m := New(&bytes.Buffer{})
	if result := m.Interpret(c); result != InterpretOK {
		t.Fatalf("expected InterpretOK, got %v (err=%s)", result, m.LastError())
	}
	top := m.StackTop()
	if !top.IsNumber() || top.Number != 3 {
		t.Fatalf("expected 3, got %+v", top)
	}
}

func TestAddMixedTypesIsRuntimeError(t *testing.T) {
	c := &Chunk{}
	emitConstant(c, NumberValue(1), 4)
	emitConstant(c, StringValue("x"), 4)
	c.Write(byte(OpAdd), 4)
	c.Write(byte(OpHalt), 4)

	m := New(&bytes.Buffer{})
	result := m.Interpret(c)
	if result != InterpretRuntimeError {
		t.Fatalf("expected InterpretRuntimeError, got %v", result)
	}
	if m.LastError() == "" {
		t.Fatal("expected a recorded runtime error message")
	}
}

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	c := &Chunk{}
	emitConstant(c, NumberValue(42), 7)
	emitConstant(c, StringValue("hello"), 8)
	c.Write(byte(OpAdd), 9)
	c.Write(byte(OpHalt), 9)

	var buf bytes.Buffer
	if err := Serialize(&buf, c); err != nil {
		t.Fatal(err)
	}

	got, err := Deserialize(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Code) != len(c.Code) || len(got.Constants) != len(c.Constants) {
		t.Fatalf("round-trip mismatch: %+v vs %+v", got, c)
	}
	for i := range c.Code {
		if got.Code[i] != c.Code[i] {
			t.Fatalf("code byte %d mismatch: %d vs %d", i, got.Code[i], c.Code[i])
		}
	}
	for i := range c.Constants {
		if got.Constants[i] != c.Constants[i] {
			t.Fatalf("constant %d mismatch: %+v vs %+v", i, got.Constants[i], c.Constants[i])
		}
	}
}

func TestDeserializeRejectsBadMagic(t *testing.T) {
	if _, err := Deserialize(bytes.NewReader([]byte{0, 0, 0, 0, 1, 0})); err == nil {
		t.Fatal("expected error for bad magic")
	}
}

// VM determinism (spec.md §7): two executions of a no-external-I/O
// program produce identical results.
func TestInterpretIsDeterministicAcrossRuns(t *testing.T) {
	c := &Chunk{}
	emitConstant(c, NumberValue(10), 1)
	emitConstant(c, NumberValue(32), 1)
	c.Write(byte(OpAdd), 1)
	c.Write(byte(OpHalt), 1)

	m1 := New(&bytes.Buffer{})
	m1.Interpret(c)
	m2 := New(&bytes.Buffer{})
	m2.Interpret(c)

	if m1.StackTop() != m2.StackTop() {
		t.Fatalf("expected deterministic result, got %+v vs %+v", m1.StackTop(), m2.StackTop())
	}
}

func TestNegateNonNumberIsRuntimeError(t *testing.T) {
	c := &Chunk{}
	emitConstant(c, StringValue("x"), 3)
	c.Write(byte(OpNegate), 3)
	c.Write(byte(OpHalt), 3)

	m := New(&bytes.Buffer{})
	result := m.Interpret(c)
	if result != InterpretRuntimeError {
		t.Fatalf("expected runtime error, got %v", result)
	}
}

func TestGarbageCollectionTracksDoublingThreshold(t *testing.T) {
	m := New(&bytes.Buffer{})
	m.nextGC = 4 // force an early collection
	m.chunk = &Chunk{}

	v := m.allocateString("abcdef")
	if !v.IsString() || v.Str != "abcdef" {
		t.Fatalf("unexpected allocated value: %+v", v)
	}
	if m.GCCollections() == 0 {
		t.Fatal("expected at least one GC collection to have run")
	}
	if m.nextGC < initialGCThreshold {
		t.Fatalf("expected GC threshold to remain at or above the floor, got %d", m.nextGC)
	}
}
