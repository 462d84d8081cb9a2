package ratecontrol

import "fmt"

// CalcDebug captures the intermediate values behind a Controller.Calculate
// call, useful for logging and the status dashboard.
type CalcDebug struct {
	PredictedRatio float64
	RequiredSpeed  float64
	PIDOutput      float64
	FinalLimit     int64
}

// Controller combines a Kalman speed filter, a multi-window speed
// tracker, and a PID controller into the per-torrent upload rate
// decision described by the rate controller module: given a target
// speed and how much time is left before the next announce, it decides
// the upload limit (bytes/s, or -1 for "no limit") that should close the
// gap between uploaded-so-far and target-by-deadline.
type Controller struct {
	kalman       *Kalman
	speedTracker *MultiWindowTracker
	pid          *PID
	smoothLimit  int64
}

// NewController returns a fresh controller with its PID pre-tuned for
// the steady phase (retuned per-call via Calculate).
func NewController() *Controller {
	return &Controller{
		kalman:       NewKalman(),
		speedTracker: NewMultiWindowTracker(),
		pid:          NewPID(PhaseSteady),
		smoothLimit:  -1,
	}
}

// RecordSpeed folds a new instantaneous speed measurement into both the
// Kalman filter and the multi-window tracker.
func (c *Controller) RecordSpeed(now, speed float64) {
	c.kalman.Update(speed, now)
	c.speedTracker.Record(now, speed)
}

// Calculate computes the upload limit for a torrent given:
//   - target: the base target upload speed (bytes/s)
//   - uploaded: bytes uploaded so far in the current cycle
//   - timeLeft: seconds remaining until the next announce
//   - elapsed: seconds elapsed in the current cycle
//   - phase: the torrent's current operating phase
//   - now: wall-clock time
//   - precisionAdj: the precision tracker's feedback multiplier
//
// It returns the limit (bytes/s, -1 meaning "do not limit"), a short
// human-readable reason code, and debug values.
func (c *Controller) Calculate(target float64, uploaded int64, timeLeft, elapsed float64, phase Phase, now float64, precisionAdj float64) (int64, string, CalcDebug) {
	var debug CalcDebug
	adjustedTarget := target * precisionAdj

	kalmanSpeed := c.kalman.Speed()
	weightedSpeed := c.speedTracker.GetWeightedAvg(now, phase)
	trend := c.speedTracker.GetRecentTrend(now, 10)

	var currentSpeed float64
	switch {
	case phase == PhaseFinish && weightedSpeed > 0:
		currentSpeed = weightedSpeed
	case kalmanSpeed > 0:
		currentSpeed = kalmanSpeed
	default:
		currentSpeed = weightedSpeed
	}

	totalTime := elapsed + timeLeft
	targetTotal := adjustedTarget * totalTime
	debug.PredictedRatio = safeDiv(float64(uploaded)+c.kalman.PredictUpload(timeLeft), targetTotal, 0)

	if timeLeft <= 0 {
		return -1, "reporting", debug
	}

	progress := safeDiv(float64(uploaded), targetTotal, 0)
	realAvgSpeed := safeDiv(float64(uploaded), elapsed, 0)

	// Overspeed brake: the cycle's real average speed has blown past the
	// global saturation threshold — force the floor immediately,
	// regardless of phase.
	if realAvgSpeed > SpeedLimitBytes*1.05 {
		debug.FinalLimit = MinLimit
		return MinLimit, "overspeed brake", debug
	}

	// Overshoot guard: deep into the cycle and running well over the
	// adjusted target — clamp hard before the regular phase logic gets a
	// chance to react.
	if progress >= ProgressProtect && currentSpeed > SpeedProtectRatio*adjustedTarget {
		protectLimit := int64(SpeedProtectLimit * adjustedTarget)
		debug.FinalLimit = protectLimit
		return protectLimit, "protect", debug
	}

	need := targetTotal - float64(uploaded)
	if need < 0 {
		need = 0
	}
	requiredSpeed := need / timeLeft
	debug.RequiredSpeed = requiredSpeed

	c.pid.SetPhase(phase)
	pidOutput := c.pid.Update(targetTotal, float64(uploaded), now)
	debug.PIDOutput = pidOutput

	headroom := pidParamsByPhase[phase].Headroom
	if headroom == 0 {
		headroom = pidParamsByPhase[PhaseCatch].Headroom
	}

	var limit int64 = -1
	var reason string

	switch phase {
	case PhaseFinish:
		pred := debug.PredictedRatio
		correction := 1.0
		switch {
		case pred > 1.002:
			correction = maxFloat(0.8, 1-(pred-1)*3)
		case pred < 0.998:
			correction = minFloat(1.2, 1+(1-pred)*3)
		}
		limit = int64(requiredSpeed * pidOutput * correction)
		reason = fmt.Sprintf("F:%.0fK", requiredSpeed/1024)

	case PhaseSteady:
		if debug.PredictedRatio > 1.01 {
			headroom = 1.0
		}
		limit = int64(requiredSpeed * headroom * pidOutput)
		reason = fmt.Sprintf("S:%.0fK", requiredSpeed/1024)

	case PhaseCatch:
		if requiredSpeed > adjustedTarget*5 {
			limit = -1
			reason = "C:unthrottled"
		} else {
			limit = int64(requiredSpeed * headroom * pidOutput)
			reason = fmt.Sprintf("C:%.0fK", requiredSpeed/1024)
		}

	default: // PhaseWarmup
		switch {
		case progress >= 1.0:
			limit = MinLimit
			reason = fmt.Sprintf("W:over%.0f%%", (progress-1)*100)
		case progress >= 0.8:
			limit = int64(requiredSpeed * 1.01 * pidOutput)
			reason = "W:fine"
		case progress >= 0.5:
			limit = int64(requiredSpeed * 1.05)
			reason = "W:warm"
		default:
			limit = -1
			reason = "W:warmup"
		}
	}

	if limit > 0 {
		limit = Quantize(limit, phase, currentSpeed, adjustedTarget, trend)
	}
	limit = c.smooth(limit, phase)
	debug.FinalLimit = limit
	return limit, reason, debug
}

// smooth damps abrupt jumps in the computed limit: changes under 20%
// apply immediately, larger ones are blended in over successive calls
// (30% per call, or 50% if the jump is especially large) so the
// torrent client doesn't see the limit ping-pong every tick. The finish
// phase bypasses smoothing — there's no time left to ease into it.
func (c *Controller) smooth(newLimit int64, phase Phase) int64 {
	if newLimit <= 0 || c.smoothLimit <= 0 || phase == PhaseFinish {
		c.smoothLimit = newLimit
		return newLimit
	}
	change := absFloat(float64(newLimit-c.smoothLimit)) / float64(c.smoothLimit)
	if change < 0.2 {
		c.smoothLimit = newLimit
	} else {
		factor := 0.3
		if change >= 0.5 {
			factor = 0.5
		}
		c.smoothLimit = int64((1-factor)*float64(c.smoothLimit) + factor*float64(newLimit))
	}
	return c.smoothLimit
}

// Reset clears all internal filter/tracker/PID state, used when a
// torrent starts a fresh cycle after re-syncing with the tracker.
func (c *Controller) Reset() {
	c.kalman.Reset()
	c.speedTracker.Clear()
	c.pid.Reset()
	c.smoothLimit = -1
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func absFloat(a float64) float64 {
	if a < 0 {
		return -a
	}
	return a
}
