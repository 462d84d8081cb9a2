package ratecontrol

import "sync"

type precisionSample struct {
	ratio float64
	phase Phase
}

// PrecisionTracker watches how close achieved upload ratio (actual
// uploaded / target uploaded) has been running per-phase and globally,
// and nudges a small multiplicative adjustment that feeds back into the
// next cycle's target — compensating for systematic over/undershoot the
// PID loop alone settles into but never fully eliminates. It is shared
// across all torrents in a process, since the bias it corrects for
// (e.g. consistently slow reannounce timing) is a process-wide effect.
type PrecisionTracker struct {
	mu        sync.Mutex
	history   []precisionSample
	maxLen    int
	phaseAdj  map[Phase]float64
	globalAdj float64
}

// NewPrecisionTracker returns a tracker with a 30-sample rolling
// history and neutral (1.0) adjustments, matching the Python original's
// default window.
func NewPrecisionTracker() *PrecisionTracker {
	return &PrecisionTracker{
		maxLen: 30,
		phaseAdj: map[Phase]float64{
			PhaseWarmup: 1.0,
			PhaseCatch:  1.0,
			PhaseSteady: 1.0,
			PhaseFinish: 1.0,
		},
		globalAdj: 1.0,
	}
}

// Record appends a new (achieved-ratio, phase) sample and recomputes
// the adjustments.
func (t *PrecisionTracker) Record(ratio float64, phase Phase) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.history = append(t.history, precisionSample{ratio: ratio, phase: phase})
	if len(t.history) > t.maxLen {
		t.history = t.history[len(t.history)-t.maxLen:]
	}
	t.update()
}

func (t *PrecisionTracker) update() {
	if len(t.history) < 5 {
		return
	}

	byPhase := make(map[Phase][]float64)
	var allRatios []float64
	for _, s := range t.history {
		byPhase[s.phase] = append(byPhase[s.phase], s.ratio)
		allRatios = append(allRatios, s.ratio)
	}

	for phase, ratios := range byPhase {
		if len(ratios) < 3 {
			continue
		}
		avg := mean(ratios)
		adj := 1.0
		switch {
		case avg > 1.005:
			adj = 0.998
		case avg > 1.001:
			adj = 0.999
		case avg < 0.99:
			adj = 1.002
		case avg < 0.995:
			adj = 1.001
		}
		t.phaseAdj[phase] = clamp(t.phaseAdj[phase]*adj, 0.92, 1.08)
	}

	globalAvg := mean(allRatios)
	switch {
	case globalAvg > 1.002:
		t.globalAdj = clamp(t.globalAdj*0.999, 0.95, 1.05)
	case globalAvg < 0.995:
		t.globalAdj = clamp(t.globalAdj*1.001, 0.95, 1.05)
	}
}

// GetAdjustment returns the combined per-phase × global multiplier to
// apply to a torrent's target for the given phase.
func (t *PrecisionTracker) GetAdjustment(phase Phase) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	adj, ok := t.phaseAdj[phase]
	if !ok {
		adj = 1.0
	}
	return adj * t.globalAdj
}

// GlobalAdjustment returns just the process-wide adjustment, used by
// the notifier to detect a persistent clamp worth alerting on.
func (t *PrecisionTracker) GlobalAdjustment() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.globalAdj
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
