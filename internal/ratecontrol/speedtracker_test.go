package ratecontrol

import "testing"

func TestMultiWindowTrackerWeightedAvgWithNoSamples(t *testing.T) {
	m := NewMultiWindowTracker()
	if got := m.GetWeightedAvg(100, PhaseSteady); got != 0 {
		t.Fatalf("GetWeightedAvg with no samples = %v, want 0", got)
	}
}

func TestMultiWindowTrackerWeightedAvgConstantSpeed(t *testing.T) {
	m := NewMultiWindowTracker()
	for i := 0; i < 100; i++ {
		m.Record(float64(i), 1000)
	}
	got := m.GetWeightedAvg(99, PhaseSteady)
	if got < 999 || got > 1001 {
		t.Fatalf("GetWeightedAvg with constant 1000 b/s samples = %v, want ~1000", got)
	}
}

func TestMultiWindowTrackerUnknownPhaseFallsBackToSteadyWeights(t *testing.T) {
	m := NewMultiWindowTracker()
	m.Record(0, 500)
	// Phase("bogus") has no entry in WindowWeightsByPhase, so it should still
	// produce a sensible (non-zero) average via the PhaseSteady fallback.
	if got := m.GetWeightedAvg(1, Phase("bogus")); got == 0 {
		t.Fatal("expected a non-zero weighted average via the steady-phase fallback")
	}
}

func TestMultiWindowTrackerBoundedHistory(t *testing.T) {
	m := NewMultiWindowTracker()
	for i := 0; i < 1500; i++ {
		m.Record(float64(i), 1)
	}
	if len(m.samples) != 1200 {
		t.Fatalf("expected samples to be bounded to maxLen=1200, got %d", len(m.samples))
	}
}

func TestGetRecentTrendNeedsMinimumSamples(t *testing.T) {
	m := NewMultiWindowTracker()
	m.Record(0, 100)
	m.Record(1, 100)
	if got := m.GetRecentTrend(1, 10); got != 0 {
		t.Fatalf("GetRecentTrend with <5 samples = %v, want 0", got)
	}
}

func TestGetRecentTrendDetectsIncrease(t *testing.T) {
	m := NewMultiWindowTracker()
	speeds := []float64{100, 100, 100, 200, 200, 200}
	for i, sp := range speeds {
		m.Record(float64(i), sp)
	}
	trend := m.GetRecentTrend(float64(len(speeds)-1), 10)
	if trend <= 0 {
		t.Fatalf("expected a positive trend for increasing speeds, got %v", trend)
	}
}

func TestMultiWindowTrackerClear(t *testing.T) {
	m := NewMultiWindowTracker()
	m.Record(0, 100)
	m.Clear()
	if len(m.samples) != 0 {
		t.Fatalf("expected Clear to empty samples, got %d remaining", len(m.samples))
	}
}

func TestSessionSpeedTrackerAvgSpeeds(t *testing.T) {
	s := NewSessionSpeedTracker()
	s.Record(0, 0, 0, 0, 0)
	s.Record(10, 1000, 500, 100, 50)

	avgUp, avgDown := s.GetAvgSpeeds(10, 20)
	if avgUp != 100 {
		t.Fatalf("avgUp = %v, want 100 (1000 bytes over 10s)", avgUp)
	}
	if avgDown != 50 {
		t.Fatalf("avgDown = %v, want 50 (500 bytes over 10s)", avgDown)
	}
}

func TestSessionSpeedTrackerNeedsTwoSamples(t *testing.T) {
	s := NewSessionSpeedTracker()
	s.Record(0, 0, 0, 0, 0)
	avgUp, avgDown := s.GetAvgSpeeds(0, 20)
	if avgUp != 0 || avgDown != 0 {
		t.Fatalf("expected (0, 0) with a single sample, got (%v, %v)", avgUp, avgDown)
	}
}

func TestSessionSpeedTrackerBoundedHistory(t *testing.T) {
	s := NewSessionSpeedTracker()
	for i := 0; i < 700; i++ {
		s.Record(float64(i), float64(i), float64(i), 0, 0)
	}
	if len(s.samples) != 600 {
		t.Fatalf("expected samples to be bounded to maxLen=600, got %d", len(s.samples))
	}
}

func TestSessionSpeedTrackerClear(t *testing.T) {
	s := NewSessionSpeedTracker()
	s.Record(0, 0, 0, 0, 0)
	s.Clear()
	if len(s.samples) != 0 {
		t.Fatalf("expected Clear to empty samples, got %d remaining", len(s.samples))
	}
}
