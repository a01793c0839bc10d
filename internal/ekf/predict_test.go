package ekf

import (
	"math"
	"testing"

	"stratux-ng/internal/ekfmath"
)

func TestPredictRejectsUninitialized(t *testing.T) {
	f := New()
	if f.Predict(ekfmath.Vector3{}, ekfmath.Vector3{}, 0.01) {
		t.Fatalf("expected Predict to fail on uninitialized filter")
	}
}

func TestPredictRejectsNonPositiveDt(t *testing.T) {
	f := New()
	f.SetInitialState(ekfmath.Vector3{}, ekfmath.Vector3{}, ekfmath.IdentityQuaternion())
	if f.Predict(ekfmath.Vector3{}, ekfmath.Vector3{}, 0) {
		t.Fatalf("expected Predict to fail for dt=0")
	}
	if f.Predict(ekfmath.Vector3{}, ekfmath.Vector3{}, -0.01) {
		t.Fatalf("expected Predict to fail for negative dt")
	}
}

func TestPredictStationaryAccumulatesNoPositionDrift(t *testing.T) {
	f := New()
	f.SetInitialState(ekfmath.Vector3{}, ekfmath.Vector3{}, ekfmath.IdentityQuaternion())

	// Level, stationary: specific force is +gravity along body Z, which
	// exactly cancels gravityNED in the predict step.
	accel := ekfmath.Vector3{Z: defaultGravity}
	for i := 0; i < 100; i++ {
		if !f.Predict(ekfmath.Vector3{}, accel, 0.01) {
			t.Fatalf("Predict failed at step %d", i)
		}
	}

	pos := f.Position()
	if math.Abs(pos.X) > 1e-6 || math.Abs(pos.Y) > 1e-6 || math.Abs(pos.Z) > 1e-6 {
		t.Fatalf("stationary position drifted: %+v", pos)
	}
}

func TestPredictPureRotationPreservesQuaternionNorm(t *testing.T) {
	f := New()
	f.SetInitialState(ekfmath.Vector3{}, ekfmath.Vector3{}, ekfmath.IdentityQuaternion())

	gyro := ekfmath.Vector3{Z: 0.5}
	accel := ekfmath.Vector3{Z: defaultGravity}
	for i := 0; i < 500; i++ {
		f.Predict(gyro, accel, 0.005)
	}

	q := f.Attitude()
	if math.Abs(ekfmath.MagnitudeQuaternion(q)-1) > 1e-9 {
		t.Fatalf("|q|=%v want 1 after sustained rotation", ekfmath.MagnitudeQuaternion(q))
	}
}

func TestPredictCovarianceStaysSymmetric(t *testing.T) {
	f := New()
	f.SetInitialState(ekfmath.Vector3{}, ekfmath.Vector3{}, ekfmath.IdentityQuaternion())

	for i := 0; i < 20; i++ {
		f.Predict(ekfmath.Vector3{X: 0.01, Y: -0.02}, ekfmath.Vector3{Z: defaultGravity, X: 0.1}, 0.01)
	}

	P := f.Covariance()
	for i := 0; i < StateDim; i++ {
		for j := 0; j < StateDim; j++ {
			if diff := P.At(i, j) - P.At(j, i); math.Abs(diff) > 1e-6 {
				t.Fatalf("P[%d][%d]=%v P[%d][%d]=%v want symmetric", i, j, P.At(i, j), j, i, P.At(j, i))
			}
		}
	}
}
