package ekf

import (
	"math"
	"testing"

	"stratux-ng/internal/ekfmath"
)

func TestInitializeDefaultMagneticField(t *testing.T) {
	f := New()
	f.SetEarthMagneticField(ekfmath.Vector3{X: 1, Y: 1, Z: 1})
	f.InitializeDefaultMagneticField()
	if f.earthMagNED != defaultEarthMagNED {
		t.Fatalf("earthMagNED=%+v want default %+v", f.earthMagNED, defaultEarthMagNED)
	}
}

func TestInitializeMagneticFieldEmptyFallsBackToDefault(t *testing.T) {
	f := New()
	f.InitializeMagneticField(nil, nil)
	if f.earthMagNED != defaultEarthMagNED {
		t.Fatalf("earthMagNED=%+v want default on empty samples", f.earthMagNED)
	}
}

func TestInitializeMagneticFieldLevelYieldsUnitVector(t *testing.T) {
	f := New()
	// Vehicle level (gravity along body Z): the derived NED field should
	// be a unit vector regardless of the arbitrary heading reference.
	mag := []ekfmath.Vector3{{X: 1, Y: 0, Z: 0}}
	accel := []ekfmath.Vector3{{Z: defaultGravity}}

	f.InitializeMagneticField(mag, accel)

	got := f.earthMagNED
	if math.Abs(ekfmath.MagnitudeVector3(got)-1) > 1e-9 {
		t.Fatalf("|earthMagNED|=%v want 1 (normalized)", ekfmath.MagnitudeVector3(got))
	}
}

func TestInitializeMagneticFieldMismatchedLengthsFallsBack(t *testing.T) {
	f := New()
	f.InitializeMagneticField([]ekfmath.Vector3{{X: 1}}, nil)
	if f.earthMagNED != defaultEarthMagNED {
		t.Fatalf("earthMagNED=%+v want default on mismatched sample lengths", f.earthMagNED)
	}
}
