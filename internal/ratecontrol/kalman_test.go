package ratecontrol

import "testing"

func TestKalmanFirstUpdateSnapsToMeasurement(t *testing.T) {
	k := NewKalman()
	speed, accel := k.Update(1000, 0)
	if speed != 1000 {
		t.Fatalf("speed = %v, want 1000", speed)
	}
	if accel != 0 {
		t.Fatalf("accel = %v, want 0", accel)
	}
}

func TestKalmanIgnoresSubThresholdDT(t *testing.T) {
	k := NewKalman()
	k.Update(1000, 0)
	speed, _ := k.Update(5000, 0.005) // dt = 0.005 <= 0.01
	if speed != 1000 {
		t.Fatalf("speed = %v, want unchanged 1000 for a too-small dt", speed)
	}
}

func TestKalmanTracksRisingSpeed(t *testing.T) {
	k := NewKalman()
	now := 0.0
	k.Update(1000, now)
	for i := 0; i < 30; i++ {
		now += 1
		k.Update(2000, now)
	}
	if k.Speed() < 1500 {
		t.Fatalf("after many updates at 2000, speed = %v, want closer to 2000", k.Speed())
	}
}

func TestKalmanPredictUploadNeverNegative(t *testing.T) {
	k := NewKalman()
	k.Update(100, 0)
	k.Update(50, 1)
	k.Update(10, 2)
	if got := k.PredictUpload(5); got < 0 {
		t.Fatalf("PredictUpload = %v, want >= 0", got)
	}
}

func TestKalmanReset(t *testing.T) {
	k := NewKalman()
	k.Update(1000, 0)
	k.Update(2000, 1)
	k.Reset()
	if k.initialized {
		t.Fatal("Reset should clear initialized flag")
	}
	if k.Speed() != 0 {
		t.Fatalf("Speed() after Reset = %v, want 0", k.Speed())
	}
}
