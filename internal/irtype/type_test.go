package irtype

import "testing"

func TestCommonIsCommutativeForNumerics(t *testing.T) {
	p := NewPool()
	pairs := [][2]Kind{{Int16, Int32}, {Int32, Float32}, {Float32, Float64}, {Int8, Uint64}}
	for _, pr := range pairs {
		a, b := p.Primitive(pr[0]), p.Primitive(pr[1])
		if !Equal(p.Common(a, b), p.Common(b, a)) {
			t.Fatalf("common(%v,%v) != common(%v,%v)", pr[0], pr[1], pr[1], pr[0])
		}
	}
}

func TestCommonWithAnyIsAlwaysAny(t *testing.T) {
	p := NewPool()
	any := p.Primitive(Any)
	for _, k := range []Kind{Int32, Float64, Bool, String} {
		if got := p.Common(p.Primitive(k), any); got.Kind != Any {
			t.Fatalf("common(%v, any) = %v, want any", k, got.Kind)
		}
	}
}

// spec.md §8 scenario 3: type promotion.
func TestPromotionScenario(t *testing.T) {
	p := NewPool()
	if got := p.Common(p.Primitive(Int16), p.Primitive(Int32)); got.Kind != Int32 {
		t.Fatalf("common(int16,int32) = %v, want int32", got.Kind)
	}
	if got := p.Common(p.Primitive(Int32), p.Primitive(Float32)); got.Kind != Float32 {
		t.Fatalf("common(int32,float32) = %v, want float32", got.Kind)
	}
	if got := p.Common(p.Primitive(Float32), p.Primitive(Float64)); got.Kind != Float64 {
		t.Fatalf("common(float32,float64) = %v, want float64", got.Kind)
	}
	if got := p.Common(p.Primitive(Int32), p.Primitive(Any)); got.Kind != Any {
		t.Fatalf("common(int32,any) = %v, want any", got.Kind)
	}
}

func TestBinaryResultTieFavoursLeft(t *testing.T) {
	p := NewPool()
	lhs, rhs := p.Primitive(Int32), p.Primitive(Uint32)
	got := p.BinaryResult(lhs, rhs, OpArithmetic)
	if got != lhs {
		t.Fatalf("expected tie to favour lhs")
	}
}

func TestBinaryResultNonNumericYieldsUnknown(t *testing.T) {
	p := NewPool()
	got := p.BinaryResult(p.Primitive(String), p.Primitive(Int32), OpArithmetic)
	if got.Kind != Unknown {
		t.Fatalf("expected unknown, got %v", got.Kind)
	}
}
