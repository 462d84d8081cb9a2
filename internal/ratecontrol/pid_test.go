package ratecontrol

import "testing"

func TestPIDFirstUpdateReturnsNeutral(t *testing.T) {
	p := NewPID(PhaseSteady)
	out := p.Update(1000, 500, 100)
	if out != 1.0 {
		t.Fatalf("first Update = %v, want 1.0 (neutral multiplier)", out)
	}
}

func TestPIDOutputClampedToRange(t *testing.T) {
	p := NewPID(PhaseFinish)
	p.Update(1000, 0, 100) // prime
	out := p.Update(1000, 0, 110)
	if out < 0.5 || out > 2.0 {
		t.Fatalf("Update = %v, want within [0.5, 2.0]", out)
	}
}

func TestPIDConvergesTowardSetpoint(t *testing.T) {
	p := NewPID(PhaseSteady)
	now := 0.0
	measured := 0.0
	p.Update(1000, measured, now)
	var last float64
	for i := 0; i < 20; i++ {
		now += 1
		out := p.Update(1000, measured, now)
		measured += out * 50 // pretend measured tracks output scaled by some rate
		last = out
	}
	if last <= 0 {
		t.Fatalf("expected a positive steady-state multiplier, got %v", last)
	}
}

func TestPIDResetClearsState(t *testing.T) {
	p := NewPID(PhaseCatch)
	p.Update(1000, 200, 10)
	p.Update(1000, 400, 20)
	p.Reset()
	if p.initialized {
		t.Fatal("Reset should clear initialized flag")
	}
	if p.integral != 0 || p.lastError != 0 {
		t.Fatal("Reset should zero integral/lastError")
	}
}

func TestPIDSetPhaseRetunesGainsWithoutResettingHistory(t *testing.T) {
	p := NewPID(PhaseWarmup)
	p.Update(1000, 500, 0)
	p.Update(1000, 500, 1)
	integralBefore := p.integral
	p.SetPhase(PhaseFinish)
	if p.integral != integralBefore {
		t.Fatal("SetPhase must not reset accumulated integral")
	}
	if p.kp != pidParamsByPhase[PhaseFinish].Kp {
		t.Fatalf("kp = %v, want finish-phase kp %v", p.kp, pidParamsByPhase[PhaseFinish].Kp)
	}
}
