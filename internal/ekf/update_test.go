package ekf

import (
	"math"
	"testing"

	"stratux-ng/internal/ekfmath"
)

func newLevelFilter() *Filter {
	f := New()
	f.SetInitialState(ekfmath.Vector3{}, ekfmath.Vector3{}, ekfmath.IdentityQuaternion())
	return f
}

func TestUpdateGPSPullsPositionTowardMeasurement(t *testing.T) {
	f := newLevelFilter()
	before := f.Position()

	if !f.UpdateGPS(ekfmath.Vector3{X: 100, Y: 50, Z: -10}, ekfmath.Vector3{}, false) {
		t.Fatalf("UpdateGPS returned false")
	}

	after := f.Position()
	if after.X <= before.X || after.Y <= before.Y {
		t.Fatalf("position did not move toward GPS fix: before=%+v after=%+v", before, after)
	}
}

func TestUpdateGPSWithVelocity(t *testing.T) {
	f := newLevelFilter()
	if !f.UpdateGPS(ekfmath.Vector3{X: 10}, ekfmath.Vector3{X: 5}, true) {
		t.Fatalf("UpdateGPS(useVel=true) returned false")
	}
	if vel := f.Velocity(); vel.X <= 0 {
		t.Fatalf("velocity did not move toward GPS velocity fix: %+v", vel)
	}
}

func TestUpdateBaroPullsAltitudeTowardMeasurement(t *testing.T) {
	f := newLevelFilter()
	if !f.UpdateBaro(-50) {
		t.Fatalf("UpdateBaro returned false")
	}
	if pos := f.Position(); pos.Z >= 0 {
		t.Fatalf("altitude did not move toward baro measurement: %+v", pos)
	}
}

func TestUpdateMagRecoversReferenceField(t *testing.T) {
	f := newLevelFilter()
	// Body frame == NED frame at identity attitude, so a mag reading equal
	// to the reference field should leave the filter's attitude estimate
	// essentially unperturbed (zero innovation).
	before := f.Attitude()
	if !f.UpdateMag(f.earthMagNED) {
		t.Fatalf("UpdateMag returned false")
	}
	after := f.Attitude()
	if math.Abs(after.W-before.W) > 1e-9 {
		t.Fatalf("attitude moved on zero mag innovation: before=%+v after=%+v", before, after)
	}
}

func TestUpdateRejectsUninitialized(t *testing.T) {
	f := New()
	if f.UpdateGPS(ekfmath.Vector3{}, ekfmath.Vector3{}, false) {
		t.Fatalf("expected UpdateGPS to fail on uninitialized filter")
	}
	if f.UpdateBaro(0) {
		t.Fatalf("expected UpdateBaro to fail on uninitialized filter")
	}
	if f.UpdateMag(ekfmath.Vector3{}) {
		t.Fatalf("expected UpdateMag to fail on uninitialized filter")
	}
}

func TestUpdateCovarianceStaysSymmetricAndNonNegative(t *testing.T) {
	f := newLevelFilter()
	f.UpdateGPS(ekfmath.Vector3{X: 1, Y: 2, Z: 3}, ekfmath.Vector3{X: 0.1}, true)
	f.UpdateBaro(-5)
	f.UpdateMag(ekfmath.Vector3{X: 0.3, Y: -0.05, Z: 0.4})

	P := f.Covariance()
	for i := 0; i < StateDim; i++ {
		if P.At(i, i) < 0 {
			t.Fatalf("P[%d][%d]=%v want >= 0", i, i, P.At(i, i))
		}
		for j := 0; j < StateDim; j++ {
			if diff := P.At(i, j) - P.At(j, i); math.Abs(diff) > 1e-6 {
				t.Fatalf("P not symmetric at [%d][%d]", i, j)
			}
		}
	}
}

func TestUpdateSingularInnovationCovarianceIsResisted(t *testing.T) {
	f := newLevelFilter()
	// Drive R to zero and P's position and velocity diagonal to zero: with no
	// uncertainty in the measured rows, S = H P H^T + R is singular.
	f.Rgps.Zero()
	for i := 0; i < 6; i++ {
		f.P.Set(i, i, 0)
	}
	if f.UpdateGPS(ekfmath.Vector3{X: 1}, ekfmath.Vector3{}, true) {
		t.Fatalf("expected UpdateGPS to fail on singular innovation covariance")
	}
}
