package stackcalc

import "testing"

func TestPredictMatchesClosedFormFormula(t *testing.T) {
	// base 16 + (8-6)*8=16 + 3*8=24 + 5*8=40 -> 96, aligned to 96? 96%16==0 -> 96, floor 128.
	got := Predict(8, 3)
	if got != 128 {
		t.Fatalf("expected floor of 128, got %d", got)
	}
}

func TestPredictAboveFloorAlignsTo16(t *testing.T) {
	// base 16 + (20-6)*8=112 + 10*8=80 + 40 = 248 -> align to 256.
	got := Predict(20, 10)
	if got != 256 {
		t.Fatalf("expected 256, got %d", got)
	}
}

func TestPredictNoExcessParamsContributesZero(t *testing.T) {
	got := Predict(2, 0)
	if got != minSize {
		t.Fatalf("expected floor of %d, got %d", minSize, got)
	}
}

func TestFrameAddUsageTracksOffsetsAndMax(t *testing.T) {
	f := &Frame{FunctionName: "f"}
	f.AddUsage(8, UsageLocalVar, "x", "f.es:1")
	f.AddUsage(16, UsageTempValue, "tmp", "f.es:2")

	usages := f.Usages()
	if len(usages) != 2 {
		t.Fatalf("expected 2 usages, got %d", len(usages))
	}
	if usages[0].Offset != 0 || usages[1].Offset != 8 {
		t.Fatalf("unexpected offsets: %+v", usages)
	}
	if f.maxUsage != 24 {
		t.Fatalf("expected max usage 24, got %d", f.maxUsage)
	}
}

func TestFrameAddUsageIgnoresZeroSize(t *testing.T) {
	f := &Frame{}
	f.AddUsage(0, UsageLocalVar, "nothing", "")
	if len(f.Usages()) != 0 {
		t.Fatal("expected zero-size usage to be ignored")
	}
}

func TestFrameTotalSizeBeforeOptimizeComputesOnDemand(t *testing.T) {
	f := &Frame{}
	f.AddUsage(4, UsageLocalVar, "x", "")
	if got := f.TotalSize(); got != minSize {
		t.Fatalf("expected floor %d, got %d", minSize, got)
	}
}

func TestCheckOverflowDetectsOverLimit(t *testing.T) {
	f := &Frame{}
	f.AddUsage(300, UsageLocalVar, "big", "")
	f.OptimizeLayout()

	overflow, _ := f.CheckOverflow(128)
	if !overflow {
		t.Fatal("expected overflow true")
	}
}

func TestCheckOverflowHighUsageBelowHardLimit(t *testing.T) {
	f := &Frame{}
	f.AddUsage(110, UsageLocalVar, "x", "")
	f.totalSize = 128

	overflow, highUsage := f.CheckOverflow(128)
	if overflow {
		t.Fatal("expected no hard overflow")
	}
	if !highUsage {
		t.Fatal("expected high-usage warning above 80%")
	}
}

func TestAnalyzerTracksMaxDepth(t *testing.T) {
	a := NewAnalyzer()
	a.BeginFunction("outer")
	a.BeginFunction("inner")
	if a.MaxDepth() != 2 {
		t.Fatalf("expected max depth 2, got %d", a.MaxDepth())
	}
	a.EndFunction()
	a.EndFunction()
	if len(a.Frames()) != 2 {
		t.Fatalf("expected 2 frames retained, got %d", len(a.Frames()))
	}
}

func TestAnalyzerEndFunctionAtZeroDepthIsNoOp(t *testing.T) {
	a := NewAnalyzer()
	a.EndFunction()
	if a.MaxDepth() != 0 {
		t.Fatal("expected max depth to remain 0")
	}
}
