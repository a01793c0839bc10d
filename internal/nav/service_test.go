package nav

import (
	"math"
	"testing"
)

func TestDominantAxis(t *testing.T) {
	if got := dominantAxis(0.9, 0.1, 0.2); got != 1 {
		t.Fatalf("got=%d want=1", got)
	}
	if got := dominantAxis(-0.9, 0.1, 0.2); got != -1 {
		t.Fatalf("got=%d want=-1", got)
	}
	if got := dominantAxis(0.1, -0.8, 0.2); got != -2 {
		t.Fatalf("got=%d want=-2", got)
	}
	if got := dominantAxis(0.1, 0.2, 0.3); got != 3 {
		t.Fatalf("got=%d want=3", got)
	}
}

func TestPressureToAltitudeFeet_SeaLevel(t *testing.T) {
	alt := pressureToAltitudeFeet(101325.0)
	if math.Abs(alt) > 1.0 {
		t.Fatalf("alt=%v want ~0", alt)
	}
}

func TestApplyOrientationFromGravity_Identity(t *testing.T) {
	s := New(Config{Enable: false})
	s.forwardAxis = 1
	if err := s.applyOrientationFromGravity([3]float64{0, 0, 1}); err != nil {
		t.Fatalf("applyOrientationFromGravity: %v", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.orientationSet {
		t.Fatalf("expected orientationSet")
	}
	if math.Abs(s.bodyZInSensor[2]-1) > 1e-9 {
		t.Fatalf("bodyZ=%v want [0 0 1]", s.bodyZInSensor)
	}
	if math.Abs(s.bodyXInSensor[0]-1) > 1e-9 {
		t.Fatalf("bodyX=%v want [1 0 0]", s.bodyXInSensor)
	}
}

func TestApplyOrientationFromGravity_ForwardAxisNearlyVerticalErrors(t *testing.T) {
	s := New(Config{Enable: false})
	s.forwardAxis = 3
	if err := s.applyOrientationFromGravity([3]float64{0, 0, 1}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestApplyOrientationFromGravity_ZeroGravityErrors(t *testing.T) {
	s := New(Config{Enable: false})
	s.forwardAxis = 1
	if err := s.applyOrientationFromGravity([3]float64{0, 0, 0}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestLatLonToNED_OriginIsZero(t *testing.T) {
	north, east := latLonToNED(37.5, -122.0, 37.5, -122.0)
	if north != 0 || east != 0 {
		t.Fatalf("north=%v east=%v want 0,0 at origin", north, east)
	}
}

func TestLatLonToNED_OneDegreeNorthIsRoughly111Km(t *testing.T) {
	north, east := latLonToNED(1.0, 0.0, 0.0, 0.0)
	if math.Abs(north-111320) > 500 {
		t.Fatalf("north=%v want ~111320", north)
	}
	if east != 0 {
		t.Fatalf("east=%v want 0", east)
	}
}

func TestNewAppliesNoiseOverrides(t *testing.T) {
	s := New(Config{BaroStd: 2.0})
	if got := s.filter.Rbaro.At(0, 0); math.Abs(got-4.0) > 1e-9 {
		t.Fatalf("Rbaro=%v want 4.0 (2.0^2)", got)
	}
}

func TestSnapshotZeroValueIsInvalid(t *testing.T) {
	s := New(Config{Enable: false})
	if s.Snapshot().Valid {
		t.Fatalf("expected a fresh service to report an invalid snapshot")
	}
}

func TestStaleGPSFix_WithinOneIMUStepIsFresh(t *testing.T) {
	if staleGPSFix(imuPeriod.Seconds() - 0.001) {
		t.Fatalf("fix just under one IMU step old should not be stale")
	}
}

func TestStaleGPSFix_OlderThanOneIMUStepIsStale(t *testing.T) {
	if !staleGPSFix(imuPeriod.Seconds() + 0.001) {
		t.Fatalf("fix older than one IMU step should be stale")
	}
}
