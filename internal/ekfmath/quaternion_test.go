package ekfmath

import (
	"math"
	"testing"
)

func TestMultiplyIdentityIsNoop(t *testing.T) {
	q := NormalizeQuaternion(Quaternion{W: 1, X: 0.2, Y: 0.3, Z: 0.1})
	got := MultiplyQuaternion(q, IdentityQuaternion())
	if got != q {
		t.Fatalf("q*identity=%+v want %+v", got, q)
	}
}

func TestQuaternionInverseRoundTrip(t *testing.T) {
	q := NormalizeQuaternion(Quaternion{W: 0.8, X: 0.1, Y: 0.4, Z: -0.2})
	got := MultiplyQuaternion(q, InverseQuaternion(q))
	id := IdentityQuaternion()
	if math.Abs(got.W-id.W) > 1e-9 || math.Abs(got.X) > 1e-9 || math.Abs(got.Y) > 1e-9 || math.Abs(got.Z) > 1e-9 {
		t.Fatalf("q*q^-1=%+v want identity", got)
	}
}

func TestFromEulerToEulerRoundTrip(t *testing.T) {
	cases := []struct{ roll, pitch, yaw float64 }{
		{0, 0, 0},
		{0.3, 0.2, 1.0},
		{-0.5, 0.4, -2.0},
		{1.5, -0.1, 3.0},
	}
	for _, c := range cases {
		q := FromEuler(c.roll, c.pitch, c.yaw)
		roll, pitch, yaw := ToEuler(q)
		if math.Abs(roll-c.roll) > 1e-6 {
			t.Fatalf("roll=%v want %v", roll, c.roll)
		}
		if math.Abs(pitch-c.pitch) > 1e-6 {
			t.Fatalf("pitch=%v want %v", pitch, c.pitch)
		}
		if math.Abs(yaw-c.yaw) > 1e-6 {
			t.Fatalf("yaw=%v want %v", yaw, c.yaw)
		}
	}
}

func TestRotateVectorIdentity(t *testing.T) {
	v := Vector3{X: 1, Y: 2, Z: 3}
	got := RotateVector(IdentityQuaternion(), v)
	if got != v {
		t.Fatalf("rotate by identity = %+v want %+v", got, v)
	}
}

func TestRotateVectorInverseUndoesRotate(t *testing.T) {
	q := FromEuler(0.4, -0.3, 1.2)
	v := Vector3{X: 1, Y: -2, Z: 0.5}
	rotated := RotateVector(q, v)
	back := RotateVectorInverse(q, rotated)
	if math.Abs(back.X-v.X) > 1e-9 || math.Abs(back.Y-v.Y) > 1e-9 || math.Abs(back.Z-v.Z) > 1e-9 {
		t.Fatalf("rotate-then-inverse = %+v want %+v", back, v)
	}
}

func TestRotateVectorPreservesMagnitude(t *testing.T) {
	q := FromEuler(0.1, 1.4, -0.7)
	v := Vector3{X: 3, Y: -1, Z: 2}
	got := RotateVector(q, v)
	if math.Abs(MagnitudeVector3(got)-MagnitudeVector3(v)) > 1e-9 {
		t.Fatalf("|rotated|=%v want %v", MagnitudeVector3(got), MagnitudeVector3(v))
	}
}

func TestToEulerGimbalClamp(t *testing.T) {
	// Straight up (pitch = +pi/2) shouldn't produce NaN from asin.
	q := FromEuler(0, math.Pi/2, 0)
	_, pitch, _ := ToEuler(q)
	if math.IsNaN(pitch) {
		t.Fatalf("pitch is NaN at gimbal")
	}
	if math.Abs(pitch-math.Pi/2) > 1e-6 {
		t.Fatalf("pitch=%v want ~pi/2", pitch)
	}
}

func TestNormalizeQuaternionDegenerate(t *testing.T) {
	got := NormalizeQuaternion(Quaternion{})
	if got != IdentityQuaternion() {
		t.Fatalf("normalize(zero)=%+v want identity", got)
	}
}
