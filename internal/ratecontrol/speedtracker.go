package ratecontrol

// speedSample is one (time, instantaneous speed) observation.
type speedSample struct {
	t float64
	v float64
}

// MultiWindowTracker keeps a bounded history of upload-speed samples and
// blends several trailing windows (SpeedWindows) into a single estimate,
// weighted per-phase via WindowWeightsByPhase.
type MultiWindowTracker struct {
	samples []speedSample
	maxLen  int
}

// NewMultiWindowTracker returns a tracker bounded to 1200 samples,
// matching the Python original's deque(maxlen=1200).
func NewMultiWindowTracker() *MultiWindowTracker {
	return &MultiWindowTracker{maxLen: 1200}
}

// Record appends an instantaneous speed sample at time t.
func (m *MultiWindowTracker) Record(t, speed float64) {
	m.samples = append(m.samples, speedSample{t: t, v: speed})
	if len(m.samples) > m.maxLen {
		m.samples = m.samples[len(m.samples)-m.maxLen:]
	}
}

// GetWeightedAvg blends the trailing SpeedWindows averages using the
// weights for phase (falling back to defaultWindowWeight for a window
// the phase doesn't tune). Windows with no samples contribute nothing.
func (m *MultiWindowTracker) GetWeightedAvg(now float64, phase Phase) float64 {
	weights := WindowWeightsByPhase[phase]
	if weights == nil {
		weights = WindowWeightsByPhase[PhaseSteady]
	}

	var total, weightSum float64
	for _, window := range SpeedWindows {
		avg, n := m.windowAverage(now, float64(window))
		if n == 0 {
			continue
		}
		w, ok := weights[window]
		if !ok {
			w = defaultWindowWeight
		}
		total += avg * w
		weightSum += w
	}
	if weightSum == 0 {
		return 0
	}
	return total / weightSum
}

func (m *MultiWindowTracker) windowAverage(now, window float64) (float64, int) {
	var sum float64
	var n int
	for _, s := range m.samples {
		if now-s.t <= window {
			sum += s.v
			n++
		}
	}
	if n == 0 {
		return 0, 0
	}
	return sum / float64(n), n
}

// GetRecentTrend compares the mean speed of the first half vs. the
// second half of the trailing window seconds of samples, returning the
// fractional change (second-half vs first-half). Fewer than 5 samples
// in the window yields 0 (no signal).
func (m *MultiWindowTracker) GetRecentTrend(now float64, window float64) float64 {
	if window <= 0 {
		window = 10
	}
	var recent []speedSample
	for _, s := range m.samples {
		if now-s.t <= window {
			recent = append(recent, s)
		}
	}
	if len(recent) < 5 {
		return 0
	}
	mid := len(recent) / 2
	var firstSum, secondSum float64
	for _, s := range recent[:mid] {
		firstSum += s.v
	}
	for _, s := range recent[mid:] {
		secondSum += s.v
	}
	first := firstSum / float64(mid)
	second := secondSum / float64(len(recent)-mid)
	return safeDiv(second-first, first, 0)
}

// Clear discards all recorded samples.
func (m *MultiWindowTracker) Clear() { m.samples = nil }

// sessionSample is one cumulative up/down byte-counter snapshot.
type sessionSample struct {
	t          float64
	up, down   float64
	upS, downS float64
}

// SessionSpeedTracker records cumulative uploaded/downloaded byte
// counters over the session and reports average speeds over a trailing
// window, used by the reannounce optimizer's saturation check.
type SessionSpeedTracker struct {
	samples []sessionSample
	maxLen  int
}

// NewSessionSpeedTracker returns a tracker bounded to 600 samples,
// matching the Python original's SpeedTracker deque(maxlen=600).
func NewSessionSpeedTracker() *SessionSpeedTracker {
	return &SessionSpeedTracker{maxLen: 600}
}

// Record appends a cumulative-counter + instantaneous-speed snapshot.
func (s *SessionSpeedTracker) Record(t, uploaded, downloaded, upSpeed, downSpeed float64) {
	s.samples = append(s.samples, sessionSample{t: t, up: uploaded, down: downloaded, upS: upSpeed, downS: downSpeed})
	if len(s.samples) > s.maxLen {
		s.samples = s.samples[len(s.samples)-s.maxLen:]
	}
}

// GetAvgSpeeds derives the average upload/download speed over the
// trailing windowSeconds from the change in cumulative byte counters
// between the oldest and newest sample in that window (not from the
// instantaneous speed fields), matching the reannounce optimizer's
// saturation check against real throughput rather than reported speed.
func (s *SessionSpeedTracker) GetAvgSpeeds(now, windowSeconds float64) (avgUp, avgDown float64) {
	var inWindow []sessionSample
	for _, sample := range s.samples {
		if now-sample.t <= windowSeconds {
			inWindow = append(inWindow, sample)
		}
	}
	if len(inWindow) < 2 {
		return 0, 0
	}
	first, last := inWindow[0], inWindow[len(inWindow)-1]
	dt := last.t - first.t
	if dt <= 0 {
		return 0, 0
	}
	return safeDiv(last.up-first.up, dt, 0), safeDiv(last.down-first.down, dt, 0)
}

// Clear discards all recorded samples.
func (s *SessionSpeedTracker) Clear() { s.samples = nil }
