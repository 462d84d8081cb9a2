package ratecontrol

// Kalman is a two-state (speed, acceleration) Kalman filter tracking a
// torrent's upload speed so short stalls and bursts don't whipsaw the
// controller between measurements.
type Kalman struct {
	speed, accel       float64
	p00, p01, p10, p11 float64
	lastTime           float64
	initialized        bool
}

// NewKalman returns a filter with a large initial covariance, so the
// first few updates trust the measurement over the model.
func NewKalman() *Kalman {
	return &Kalman{p00: 1000, p01: 0, p10: 0, p11: 1000}
}

// Update folds a new speed measurement taken at wall-clock time now,
// returning the updated speed and acceleration estimates.
func (k *Kalman) Update(measurement, now float64) (float64, float64) {
	if !k.initialized {
		k.speed = measurement
		k.accel = 0
		k.lastTime = now
		k.initialized = true
		return k.speed, k.accel
	}

	dt := now - k.lastTime
	if dt <= 0.01 {
		return k.speed, k.accel
	}
	k.lastTime = now

	predSpeed := k.speed + k.accel*dt
	p00Pred := k.p00 + dt*(k.p10+k.p01) + dt*dt*k.p11 + KalmanQSpeed
	p01Pred := k.p01 + dt*k.p11
	p10Pred := k.p10 + dt*k.p11
	p11Pred := k.p11 + KalmanQAccel

	s := p00Pred + KalmanR
	if s < 0 && s > -1e-10 || s >= 0 && s < 1e-10 {
		return k.speed, k.accel
	}
	k0 := p00Pred / s
	k1 := p10Pred / s
	innovation := measurement - predSpeed

	k.speed = predSpeed + k0*innovation
	k.accel = k.accel + k1*innovation
	k.p00 = (1 - k0) * p00Pred
	k.p01 = (1 - k0) * p01Pred
	k.p10 = -k1*p00Pred + p10Pred
	k.p11 = -k1*p01Pred + p11Pred
	return k.speed, k.accel
}

// PredictUpload estimates the bytes that will be uploaded over the next
// seconds at the filter's current speed+acceleration trajectory,
// clamped to a non-negative total.
func (k *Kalman) PredictUpload(seconds float64) float64 {
	v := k.speed*seconds + 0.5*k.accel*seconds*seconds
	if v < 0 {
		return 0
	}
	return v
}

// Speed returns the filter's current speed estimate (bytes/s).
func (k *Kalman) Speed() float64 { return k.speed }

// Accel returns the filter's current acceleration estimate.
func (k *Kalman) Accel() float64 { return k.accel }

// Reset clears the filter back to its initial state.
func (k *Kalman) Reset() {
	*k = *NewKalman()
}
