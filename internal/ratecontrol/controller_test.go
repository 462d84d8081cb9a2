package ratecontrol

import "testing"

func TestCalculateReturnsUnlimitedWhenTimeLeftIsZero(t *testing.T) {
	c := NewController()
	limit, reason, _ := c.Calculate(1000, 0, 0, 10, PhaseSteady, 100, 1.0)
	if limit != -1 {
		t.Errorf("expected -1 (unlimited) when timeLeft <= 0, got %d", limit)
	}
	if reason != "reporting" {
		t.Errorf("expected reason 'reporting', got %q", reason)
	}
}

func TestCalculateWarmupPhaseOverTargetPauses(t *testing.T) {
	c := NewController()
	// uploaded already exceeds the cycle target: warmup should clamp to
	// the minimum limit rather than keep pushing.
	limit, reason, _ := c.Calculate(1000, 200000, 100, 0, PhaseWarmup, 100, 1.0)
	if limit != MinLimit {
		t.Errorf("expected MinLimit when warmup progress >= 1.0, got %d", limit)
	}
	if reason[:1] != "W" {
		t.Errorf("expected a warmup reason code, got %q", reason)
	}
}

func TestCalculateCatchPhaseUnthrottlesWhenFarBehind(t *testing.T) {
	c := NewController()
	// A huge required speed (way behind target) should unthrottle
	// rather than compute a nonsensical limit.
	limit, reason, _ := c.Calculate(100, 0, 1, 1000, PhaseCatch, 100, 1.0)
	if limit != -1 {
		t.Errorf("expected -1 (unthrottled) when far behind target, got %d", limit)
	}
	if reason != "C:unthrottled" {
		t.Errorf("expected reason 'C:unthrottled', got %q", reason)
	}
}

func TestCalculateSteadyPhaseProducesPositiveLimit(t *testing.T) {
	c := NewController()
	c.RecordSpeed(99, 500)
	limit, reason, debug := c.Calculate(1000, 5000, 50, 50, PhaseSteady, 100, 1.0)
	if limit <= 0 {
		t.Errorf("expected a positive steady-phase limit, got %d", limit)
	}
	if reason == "" {
		t.Error("expected a non-empty reason code")
	}
	if debug.FinalLimit != limit {
		t.Errorf("debug.FinalLimit = %d, want %d matching returned limit", debug.FinalLimit, limit)
	}
}

func TestCalculateSmoothsLargeJumps(t *testing.T) {
	c := NewController()

	first, _, _ := c.Calculate(1000, 1000, 50, 50, PhaseSteady, 100, 1.0)
	if first <= 0 {
		t.Fatalf("expected positive first limit, got %d", first)
	}

	// A dramatically different second call shouldn't jump all the way
	// to the new raw value in one step.
	second, _, _ := c.Calculate(100000, 1000, 50, 50, PhaseSteady, 101, 1.0)
	if second <= first {
		t.Fatalf("expected second limit to move up from %d, got %d", first, second)
	}

	// Replay the same two calls with the smoothing state cleared before
	// the second one to recover the raw (unsmoothed) limit.
	ref := NewController()
	ref.Calculate(1000, 1000, 50, 50, PhaseSteady, 100, 1.0)
	ref.smoothLimit = -1
	raw, _, _ := ref.Calculate(100000, 1000, 50, 50, PhaseSteady, 101, 1.0)
	if raw <= second {
		t.Fatalf("expected smoothing to hold the limit below the raw %d, got %d", raw, second)
	}

	// A change of 50% or more is blended half-way from the previous limit.
	want := int64(0.5*float64(first) + 0.5*float64(raw))
	if second != want {
		t.Errorf("expected a half-way blend %d between %d and raw %d, got %d", want, first, raw, second)
	}
}

func TestControllerResetClearsSmoothingState(t *testing.T) {
	c := NewController()
	c.Calculate(1000, 1000, 50, 50, PhaseSteady, 100, 1.0)

	c.Reset()

	if c.smoothLimit != -1 {
		t.Errorf("expected smoothLimit to reset to -1, got %d", c.smoothLimit)
	}
}

func TestCalculateOverspeedBrakeForcesMinLimit(t *testing.T) {
	c := NewController()
	// ~100 MiB/s average over the cycle, well past 50 MiB/s*1.05.
	uploaded := int64(100 * 1024 * 1024 * 10)
	limit, reason, _ := c.Calculate(1000, uploaded, 100, 10, PhaseSteady, 100, 1.0)
	if limit != MinLimit {
		t.Errorf("expected MinLimit on overspeed brake, got %d", limit)
	}
	if reason != "overspeed brake" {
		t.Errorf("expected reason 'overspeed brake', got %q", reason)
	}
}

func TestCalculateOvershootGuardClampsToProtectLimit(t *testing.T) {
	c := NewController()
	c.RecordSpeed(99, 5000) // first Kalman update trusts the measurement directly

	// elapsed=90, timeLeft=10 -> targetTotal = 1000*100 = 100000.
	// uploaded=90000 -> progress = 0.9 >= ProgressProtect.
	// currentSpeed (5000) > SpeedProtectRatio*adjustedTarget (2500).
	// realAvgSpeed (90000/90=1000) stays well under the overspeed threshold.
	limit, reason, _ := c.Calculate(1000, 90000, 10, 90, PhaseSteady, 100, 1.0)
	want := int64(SpeedProtectLimit * 1000)
	if limit != want {
		t.Errorf("expected protect limit %d, got %d", want, limit)
	}
	if reason != "protect" {
		t.Errorf("expected reason 'protect', got %q", reason)
	}
}

func TestMaxMinAbsFloatHelpers(t *testing.T) {
	if got := maxFloat(1, 2); got != 2 {
		t.Errorf("maxFloat(1, 2) = %v, want 2", got)
	}
	if got := minFloat(1, 2); got != 1 {
		t.Errorf("minFloat(1, 2) = %v, want 1", got)
	}
	if got := absFloat(-3.5); got != 3.5 {
		t.Errorf("absFloat(-3.5) = %v, want 3.5", got)
	}
}
