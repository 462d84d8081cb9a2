package ratecontrol

// PID is a normalized-error PID controller that outputs a multiplier
// (clamped to [0.5, 2.0], centered on 1.0) applied to a required-speed
// estimate elsewhere in the pipeline, rather than an absolute speed
// itself. Tuning is retuned per-phase via SetPhase.
type PID struct {
	kp, ki, kd float64

	integral         float64
	lastError        float64
	lastTime         float64
	lastOutput       float64
	derivativeFilter float64
	initialized      bool
}

const pidIntegralLimit = 0.3

// NewPID returns a controller pre-tuned for phase.
func NewPID(phase Phase) *PID {
	p := &PID{lastOutput: 1.0}
	p.SetPhase(phase)
	return p
}

// SetPhase retunes the controller's gains for phase without resetting
// its integral/derivative history — a phase change shouldn't discard
// accumulated error state mid-cycle.
func (p *PID) SetPhase(phase Phase) {
	params, ok := pidParamsByPhase[phase]
	if !ok {
		params = pidParamsByPhase[PhaseSteady]
	}
	p.kp, p.ki, p.kd = params.Kp, params.Ki, params.Kd
}

// Update advances the controller given the current setpoint and
// measured value at wall-clock time now, returning the output
// multiplier.
func (p *PID) Update(setpoint, measured, now float64) float64 {
	denom := setpoint
	if denom < 1 {
		denom = 1
	}
	err := safeDiv(setpoint-measured, denom, 0)

	if !p.initialized {
		p.lastError = err
		p.lastTime = now
		p.initialized = true
		return 1.0
	}

	dt := now - p.lastTime
	if dt <= 0.01 {
		return p.lastOutput
	}
	p.lastTime = now

	pTerm := p.kp * err
	p.integral = clamp(p.integral+err*dt, -pidIntegralLimit, pidIntegralLimit)
	iTerm := p.ki * p.integral

	rawDerivative := (err - p.lastError) / dt
	p.derivativeFilter = 0.3*rawDerivative + 0.7*p.derivativeFilter
	dTerm := p.kd * p.derivativeFilter
	p.lastError = err

	output := clamp(1.0+pTerm+iTerm+dTerm, 0.5, 2.0)
	p.lastOutput = output
	return output
}

// Reset clears all accumulated integral/derivative state.
func (p *PID) Reset() {
	p.integral = 0
	p.lastError = 0
	p.lastTime = 0
	p.lastOutput = 1.0
	p.derivativeFilter = 0
	p.initialized = false
}
