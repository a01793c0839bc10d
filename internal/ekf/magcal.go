package ekf

import "stratux-ng/internal/ekfmath"

// InitializeMagneticField derives a reference NED magnetic field from
// paired, stationary magnetometer/accelerometer samples and applies it to
// the filter via SetEarthMagneticField. If samples is empty or the two
// slices differ in length, it falls back to InitializeDefaultMagneticField.
//
// This is a one-shot field-direction calibration, not hard/soft-iron
// correction: it assumes the magnetometer samples are already
// offset-corrected and only recovers which direction "earth field" points
// in NED given the vehicle's attitude at capture time (inferred from
// gravity).
func (f *Filter) InitializeMagneticField(magSamples, accelSamples []ekfmath.Vector3) {
	if len(magSamples) == 0 || len(magSamples) != len(accelSamples) {
		f.InitializeDefaultMagneticField()
		return
	}

	avgMag := ekfmath.ZeroVector3()
	avgAccel := ekfmath.ZeroVector3()
	for i := range magSamples {
		avgMag = ekfmath.AddVector3(avgMag, magSamples[i])
		avgAccel = ekfmath.AddVector3(avgAccel, accelSamples[i])
	}
	n := float64(len(magSamples))
	avgMag = ekfmath.ScaleVector3(avgMag, 1.0/n)
	avgAccel = ekfmath.ScaleVector3(avgAccel, 1.0/n)

	north, east, down := bodyToNEDAxes(avgAccel)
	magNED := ekfmath.Vector3{
		X: ekfmath.DotVector3(north, avgMag),
		Y: ekfmath.DotVector3(east, avgMag),
		Z: ekfmath.DotVector3(down, avgMag),
	}

	f.SetEarthMagneticField(ekfmath.NormalizeVector3(magNED))
}

// InitializeDefaultMagneticField resets the filter's earth field to the
// built-in approximate NED reference, for use when a field calibration
// can't be run.
func (f *Filter) InitializeDefaultMagneticField() {
	f.SetEarthMagneticField(defaultEarthMagNED)
}

// bodyToNEDAxes derives an orthonormal body->NED basis from a single
// gravity-only accelerometer reading. Down is anti-parallel to the
// specific force; East is taken first as perpendicular to Down and the
// body Y axis (an arbitrary reference since true heading isn't
// observable from gravity alone); North is re-derived as East x Down so
// the triad stays right-handed, then East is rebuilt as North x Down to
// guarantee orthonormality against floating-point drift.
func bodyToNEDAxes(accel ekfmath.Vector3) (north, east, down ekfmath.Vector3) {
	down = ekfmath.NormalizeVector3(ekfmath.ScaleVector3(accel, -1))

	bodyYApprox := ekfmath.Vector3{Y: 1}
	east = ekfmath.NormalizeVector3(ekfmath.CrossVector3(down, bodyYApprox))
	north = ekfmath.NormalizeVector3(ekfmath.CrossVector3(east, down))
	east = ekfmath.NormalizeVector3(ekfmath.CrossVector3(north, down))

	return north, east, down
}
