package ratecontrol

import "testing"

func TestQuantize(t *testing.T) {
	cases := []struct {
		name         string
		limit        int64
		phase        Phase
		currentSpeed float64
		target       float64
		trend        float64
		want         int64
	}{
		{"non-positive passthrough", -5, PhaseSteady, 0, 0, 0, -5},
		{"below min limit floors to MinLimit", 100, PhaseSteady, 100, 1000, 0, MinLimit},
		// 256 step: (10000+128)/256 = 39 -> 9984.
		{"finish phase always uses 256 step", 10000, PhaseFinish, 1000, 1000, 0, 9984},
		// catch base 2048, ratio 1.0 -> 1024, volatile -> 512: 977*512 = 500224
		// (a 1024 step would give 499712).
		{"volatile trend halves the step", 500000, PhaseCatch, 1000, 1000, 0.5, 500224},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Quantize(tc.limit, tc.phase, tc.currentSpeed, tc.target, tc.trend)
			if tc.limit <= 0 {
				if got != tc.limit {
					t.Fatalf("Quantize(%d) = %d, want passthrough %d", tc.limit, got, tc.limit)
				}
				return
			}
			if got != tc.want {
				t.Fatalf("Quantize(%d) = %d, want %d", tc.limit, got, tc.want)
			}
		})
	}
}

func TestQuantizeNeverBelowMinLimit(t *testing.T) {
	got := Quantize(1, PhaseWarmup, 10, 1000, 0)
	if got < MinLimit {
		t.Fatalf("Quantize(1) = %d, want >= MinLimit (%d)", got, MinLimit)
	}
}

func TestClassifyPhase(t *testing.T) {
	cases := []struct {
		name   string
		tl     float64
		synced bool
		want   Phase
	}{
		{"unsynced is always warmup", 5, false, PhaseWarmup},
		{"synced and imminent is finish", 10, true, PhaseFinish},
		{"synced and mid-range is steady", 100, true, PhaseSteady},
		{"synced and far out is catch", 1000, true, PhaseCatch},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifyPhase(tc.tl, tc.synced); got != tc.want {
				t.Errorf("ClassifyPhase(%v, %v) = %v, want %v", tc.tl, tc.synced, got, tc.want)
			}
		})
	}
}
