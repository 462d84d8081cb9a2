package ratecontrol

import "testing"

func TestPrecisionTrackerNeutralBeforeEnoughSamples(t *testing.T) {
	pt := NewPrecisionTracker()
	pt.Record(1.1, PhaseSteady)
	pt.Record(1.1, PhaseSteady)
	if adj := pt.GetAdjustment(PhaseSteady); adj != 1.0 {
		t.Fatalf("adjustment with <5 samples = %v, want 1.0 (untouched)", adj)
	}
}

func TestPrecisionTrackerPullsDownOnOvershoot(t *testing.T) {
	pt := NewPrecisionTracker()
	for i := 0; i < 10; i++ {
		pt.Record(1.01, PhaseSteady)
	}
	if adj := pt.GetAdjustment(PhaseSteady); adj >= 1.0 {
		t.Fatalf("adjustment after sustained overshoot = %v, want < 1.0", adj)
	}
}

func TestPrecisionTrackerPullsUpOnUndershoot(t *testing.T) {
	pt := NewPrecisionTracker()
	for i := 0; i < 10; i++ {
		pt.Record(0.98, PhaseSteady)
	}
	if adj := pt.GetAdjustment(PhaseSteady); adj <= 1.0 {
		t.Fatalf("adjustment after sustained undershoot = %v, want > 1.0", adj)
	}
}

func TestPrecisionTrackerClampsAdjustment(t *testing.T) {
	pt := NewPrecisionTracker()
	for i := 0; i < 1000; i++ {
		pt.Record(1.5, PhaseSteady)
	}
	adj := pt.GetAdjustment(PhaseSteady)
	floor := 0.92 * 0.95
	if adj < floor {
		t.Fatalf("adjustment = %v, should never drop below the phase(0.92) x global(0.95) clamp floor %v", adj, floor)
	}
}

func TestPrecisionTrackerPerPhaseIsolation(t *testing.T) {
	pt := NewPrecisionTracker()
	for i := 0; i < 10; i++ {
		pt.Record(1.01, PhaseSteady)
		pt.Record(1.0, PhaseFinish)
	}
	steadyAdj := pt.GetAdjustment(PhaseSteady)
	finishAdj := pt.GetAdjustment(PhaseFinish)
	if steadyAdj == finishAdj {
		t.Fatalf("expected per-phase adjustments to diverge, both = %v", steadyAdj)
	}
}
