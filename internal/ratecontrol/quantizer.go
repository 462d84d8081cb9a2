package ratecontrol

// Quantize snaps a raw computed limit (bytes/s) to a step grid whose
// size depends on phase, how far current speed is running from target,
// and whether the speed trend is volatile (>10% swing recently halves
// the step for finer control). The result is never below MinLimit.
func Quantize(limit int64, phase Phase, currentSpeed, target, trend float64) int64 {
	if limit <= 0 {
		return limit
	}

	base, ok := QuantStepsByPhase[phase]
	if !ok {
		base = 1024
	}
	ratio := safeDiv(currentSpeed, target, 1)

	var step int64
	switch {
	case phase == PhaseFinish:
		step = 256
	case ratio > 1.2:
		step = base * 2
	case ratio > 1.05:
		step = base
	case ratio > 0.8:
		step = base / 2
	default:
		step = base
	}

	if trend < 0 {
		trend = -trend
	}
	if trend > 0.1 {
		step /= 2
		if step < 256 {
			step = 256
		}
	}

	step = int64(clamp(float64(step), 256, 8192))

	quantized := ((limit + step/2) / step) * step
	if quantized < MinLimit {
		return MinLimit
	}
	return quantized
}
