package profiler

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRecordAccumulatesPhaseDuration(t *testing.T) {
	p := New(nil)
	p.Record(Phase("parse"), 10*time.Millisecond)
	p.Record(Phase("parse"), 5*time.Millisecond)

	if got := p.TotalDuration(); got != 15*time.Millisecond {
		t.Fatalf("expected total 15ms, got %v", got)
	}
}

func TestPoolHitRateComputesRatio(t *testing.T) {
	p := New(nil)
	p.RecordPool("instruction", true)
	p.RecordPool("instruction", true)
	p.RecordPool("instruction", false)

	if got := p.PoolHitRate("instruction"); got < 0.666 || got > 0.667 {
		t.Fatalf("expected ~0.667 hit rate, got %v", got)
	}
}

func TestPoolHitRateZeroWhenUnrecorded(t *testing.T) {
	p := New(nil)
	if got := p.PoolHitRate("nothing"); got != 0 {
		t.Fatalf("expected 0, got %v", got)
	}
}

func TestSummaryContainsPhaseAndPoolRows(t *testing.T) {
	p := New(nil)
	p.Record(Phase("codegen"), 2*time.Millisecond)
	p.RecordPool("value", true)

	out := p.Summary()
	if !strings.Contains(out, "codegen") {
		t.Fatalf("expected summary to mention phase name, got: %s", out)
	}
	if !strings.Contains(out, "value") {
		t.Fatalf("expected summary to mention pool name, got: %s", out)
	}
}

func TestAllocateTallies(t *testing.T) {
	p := New(nil)
	p.Allocate("instruction", 3)
	p.Allocate("instruction", 2)
	if p.allocations["instruction"] != 5 {
		t.Fatalf("expected 5 allocations, got %d", p.allocations["instruction"])
	}
}

func TestNewRegistersPrometheusCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := New(reg)
	p.Record(Phase("link"), time.Millisecond)

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	if len(families) == 0 {
		t.Fatal("expected at least one registered metric family")
	}
}
