package profiler

import (
	"testing"
	"time"
)

func TestTickReportsPassAverages(t *testing.T) {
	p := NewProfiler(WithUpdateInterval(time.Nanosecond))
	p.RecordPass("shadow map", 2*time.Millisecond)
	p.RecordPass("shadow map", 4*time.Millisecond)
	p.RecordPass("ray marching", 10*time.Millisecond)

	time.Sleep(time.Millisecond)
	if !p.Tick() {
		t.Fatalf("Tick did not report after the interval elapsed")
	}
	avg := p.PassAverages()
	if avg["shadow map"] != 3*time.Millisecond {
		t.Errorf("shadow map average = %v, want 3ms", avg["shadow map"])
	}
	if avg["ray marching"] != 10*time.Millisecond {
		t.Errorf("ray marching average = %v, want 10ms", avg["ray marching"])
	}
}

func TestTickWaitsForInterval(t *testing.T) {
	p := NewProfiler(WithUpdateInterval(time.Hour))
	p.RecordPass("shadow map", time.Millisecond)
	if p.Tick() {
		t.Fatalf("Tick reported before the interval elapsed")
	}
	if len(p.PassAverages()) != 0 {
		t.Fatalf("pass averages published before the first report")
	}
}
