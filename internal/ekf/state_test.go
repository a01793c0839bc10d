package ekf

import (
	"math"
	"testing"

	"stratux-ng/internal/ekfmath"
)

func TestNewIsUninitialized(t *testing.T) {
	f := New()
	if f.Initialized() {
		t.Fatalf("expected New() to be uninitialized")
	}
	if pos := f.Position(); pos != (ekfmath.Vector3{}) {
		t.Fatalf("Position() on uninitialized filter = %+v want zero", pos)
	}
}

func TestSetInitialStateMarksInitialized(t *testing.T) {
	f := New()
	q := ekfmath.FromEuler(0, 0, 0.5)
	f.SetInitialState(ekfmath.Vector3{X: 1, Y: 2, Z: -3}, ekfmath.Vector3{X: 0.1}, q)

	if !f.Initialized() {
		t.Fatalf("expected Initialized() after SetInitialState")
	}
	if pos := f.Position(); pos.X != 1 || pos.Y != 2 || pos.Z != -3 {
		t.Fatalf("Position()=%+v want (1,2,-3)", pos)
	}
	if bias := f.GyroBias(); bias != (ekfmath.Vector3{}) {
		t.Fatalf("GyroBias()=%+v want zero after SetInitialState", bias)
	}
}

func TestResetClearsState(t *testing.T) {
	f := New()
	f.SetInitialState(ekfmath.Vector3{X: 5}, ekfmath.Vector3{}, ekfmath.IdentityQuaternion())
	f.Reset()

	if f.Initialized() {
		t.Fatalf("expected Reset() to leave the filter uninitialized")
	}
	q := f.Attitude()
	if math.Abs(q.W-1) > 1e-12 || q.X != 0 || q.Y != 0 || q.Z != 0 {
		t.Fatalf("Attitude() after Reset = %+v want identity", q)
	}
}

func TestAttitudeAlwaysNormalized(t *testing.T) {
	f := New()
	f.SetInitialState(ekfmath.Vector3{}, ekfmath.Vector3{}, ekfmath.Quaternion{W: 2})
	q := f.Attitude()
	if math.Abs(ekfmath.MagnitudeQuaternion(q)-1) > 1e-9 {
		t.Fatalf("|Attitude()|=%v want 1", ekfmath.MagnitudeQuaternion(q))
	}
}
