// Package ekf implements the 16-state extended Kalman filter that fuses
// IMU, GPS, barometric altitude, and magnetometer samples into a NED
// navigation solution: position, velocity, attitude quaternion, and
// gyro/accel biases.
package ekf

import "stratux-ng/internal/ekfmath"

// StateDim is the dimension of the filter's state vector and covariance.
const StateDim = 16

// State vector layout.
const (
	idxPosX = 0
	idxPosY = 1
	idxPosZ = 2
	idxVelX = 3
	idxVelY = 4
	idxVelZ = 5
	idxQuatW = 6
	idxQuatX = 7
	idxQuatY = 8
	idxQuatZ = 9
	idxGyroBiasX = 10
	idxGyroBiasY = 11
	idxGyroBiasZ = 12
	idxAccBiasX = 13
	idxAccBiasY = 14
	idxAccBiasZ = 15
)

// defaultEarthMagNED is the fallback NED magnetic field vector (gauss,
// magnitude about 0.51) used until a calibration replaces it.
var defaultEarthMagNED = ekfmath.Vector3{X: 0.29, Y: -0.05, Z: 0.42}

const defaultGravity = 9.80665

// Filter holds the EKF's state vector, covariance, and noise models. The
// zero value is not usable; construct with New.
type Filter struct {
	x ekfmath.Matrix // 16x1 state vector
	P ekfmath.Matrix // 16x16 state covariance
	Q ekfmath.Matrix // 16x16 process noise covariance

	Rgps  ekfmath.Matrix // 6x6 GPS measurement noise (pos+vel)
	Rbaro ekfmath.Matrix // 1x1 baro measurement noise
	Rmag  ekfmath.Matrix // 3x3 magnetometer measurement noise

	gravity     float64
	earthMagNED ekfmath.Vector3

	initialized bool
}

// New returns a Filter with identity covariance, default process/measurement
// noise, standard gravity, and a placeholder earth field. Call
// SetInitialState before the first Predict.
func New() *Filter {
	f := &Filter{
		x:           ekfmath.NewMatrix(StateDim, 1),
		P:           ekfmath.Identity(StateDim),
		Q:           ekfmath.Diagonal(StateDim, StateDim, 0.01),
		Rgps:        ekfmath.DiagonalVector(6, 6, []float64{5.0, 5.0, 10.0, 0.5, 0.5, 1.0}),
		Rbaro:       ekfmath.Diagonal(1, 1, 1.0),
		Rmag:        ekfmath.Diagonal(3, 3, 0.1),
		gravity:     defaultGravity,
		earthMagNED: defaultEarthMagNED,
	}
	return f
}

// Initialized reports whether SetInitialState has been called since
// construction or the last Reset.
func (f *Filter) Initialized() bool { return f.initialized }

// SetInitialState seeds position, velocity, and attitude, zeroes both bias
// blocks, and resets the covariance to the filter's startup uncertainty.
// It marks the filter ready for Predict/Update* calls.
func (f *Filter) SetInitialState(pos, vel ekfmath.Vector3, q ekfmath.Quaternion) {
	qn := ekfmath.NormalizeQuaternion(q)

	f.x.Set(idxPosX, 0, pos.X)
	f.x.Set(idxPosY, 0, pos.Y)
	f.x.Set(idxPosZ, 0, pos.Z)

	f.x.Set(idxVelX, 0, vel.X)
	f.x.Set(idxVelY, 0, vel.Y)
	f.x.Set(idxVelZ, 0, vel.Z)

	f.x.Set(idxQuatW, 0, qn.W)
	f.x.Set(idxQuatX, 0, qn.X)
	f.x.Set(idxQuatY, 0, qn.Y)
	f.x.Set(idxQuatZ, 0, qn.Z)

	f.x.Set(idxGyroBiasX, 0, 0)
	f.x.Set(idxGyroBiasY, 0, 0)
	f.x.Set(idxGyroBiasZ, 0, 0)
	f.x.Set(idxAccBiasX, 0, 0)
	f.x.Set(idxAccBiasY, 0, 0)
	f.x.Set(idxAccBiasZ, 0, 0)

	f.P = ekfmath.DiagonalVector(StateDim, StateDim, []float64{
		10, 10, 10, // position (m^2)
		1, 1, 1, // velocity (m/s)^2
		0.1, 0.1, 0.1, 0.1, // attitude
		0.01, 0.01, 0.01, // gyro bias (rad/s)^2
		0.1, 0.1, 0.1, // accel bias (m/s^2)^2
	})

	f.initialized = true
}

// Reset clears the state vector to zero position/velocity/bias and the
// identity quaternion, restores the (larger) post-reset covariance, and
// marks the filter uninitialized until SetInitialState runs again.
func (f *Filter) Reset() {
	f.x.Zero()
	f.x.Set(idxQuatW, 0, 1)

	f.P = ekfmath.DiagonalVector(StateDim, StateDim, []float64{
		100, 100, 100,
		10, 10, 10,
		1, 1, 1, 1,
		0.01, 0.01, 0.01,
		0.1, 0.1, 0.1,
	})

	f.initialized = false
}

// SetProcessNoise rebuilds Q from per-block standard deviations.
func (f *Filter) SetProcessNoise(posStd, velStd, attStd, gyroBiasStd, accBiasStd float64) {
	f.Q.Zero()
	f.Q.Set(idxPosX, idxPosX, posStd*posStd)
	f.Q.Set(idxPosY, idxPosY, posStd*posStd)
	f.Q.Set(idxPosZ, idxPosZ, posStd*posStd)

	f.Q.Set(idxVelX, idxVelX, velStd*velStd)
	f.Q.Set(idxVelY, idxVelY, velStd*velStd)
	f.Q.Set(idxVelZ, idxVelZ, velStd*velStd)

	f.Q.Set(idxQuatW, idxQuatW, attStd*attStd)
	f.Q.Set(idxQuatX, idxQuatX, attStd*attStd)
	f.Q.Set(idxQuatY, idxQuatY, attStd*attStd)
	f.Q.Set(idxQuatZ, idxQuatZ, attStd*attStd)

	f.Q.Set(idxGyroBiasX, idxGyroBiasX, gyroBiasStd*gyroBiasStd)
	f.Q.Set(idxGyroBiasY, idxGyroBiasY, gyroBiasStd*gyroBiasStd)
	f.Q.Set(idxGyroBiasZ, idxGyroBiasZ, gyroBiasStd*gyroBiasStd)

	f.Q.Set(idxAccBiasX, idxAccBiasX, accBiasStd*accBiasStd)
	f.Q.Set(idxAccBiasY, idxAccBiasY, accBiasStd*accBiasStd)
	f.Q.Set(idxAccBiasZ, idxAccBiasZ, accBiasStd*accBiasStd)
}

// SetGPSNoise rebuilds Rgps from position and velocity standard deviations.
func (f *Filter) SetGPSNoise(posStd, velStd float64) {
	f.Rgps.Zero()
	f.Rgps.Set(0, 0, posStd*posStd)
	f.Rgps.Set(1, 1, posStd*posStd)
	f.Rgps.Set(2, 2, posStd*posStd)
	f.Rgps.Set(3, 3, velStd*velStd)
	f.Rgps.Set(4, 4, velStd*velStd)
	f.Rgps.Set(5, 5, velStd*velStd)
}

// SetBaroNoise sets Rbaro from an altitude standard deviation.
func (f *Filter) SetBaroNoise(baroStd float64) {
	f.Rbaro.Set(0, 0, baroStd*baroStd)
}

// SetMagNoise rebuilds Rmag from a per-axis standard deviation.
func (f *Filter) SetMagNoise(magStd float64) {
	f.Rmag.Zero()
	f.Rmag.Set(0, 0, magStd*magStd)
	f.Rmag.Set(1, 1, magStd*magStd)
	f.Rmag.Set(2, 2, magStd*magStd)
}

// SetGyroBias overwrites the filter's gyro bias state directly, e.g. from
// a stationary zero-drift calibration window run outside the filter.
func (f *Filter) SetGyroBias(bias ekfmath.Vector3) {
	f.x.Set(idxGyroBiasX, 0, bias.X)
	f.x.Set(idxGyroBiasY, 0, bias.Y)
	f.x.Set(idxGyroBiasZ, 0, bias.Z)
}

// SetAccelBias overwrites the filter's accelerometer bias state directly.
func (f *Filter) SetAccelBias(bias ekfmath.Vector3) {
	f.x.Set(idxAccBiasX, 0, bias.X)
	f.x.Set(idxAccBiasY, 0, bias.Y)
	f.x.Set(idxAccBiasZ, 0, bias.Z)
}

// SetEarthMagneticField overrides the reference NED magnetic field used by
// UpdateMag, e.g. with a value from InitializeMagneticField or a
// location-specific World Magnetic Model lookup.
func (f *Filter) SetEarthMagneticField(magNED ekfmath.Vector3) {
	f.earthMagNED = magNED
}

// SetGravity overrides the local gravity magnitude used by Predict.
func (f *Filter) SetGravity(gravity float64) {
	f.gravity = gravity
}

// Position returns a copy of the filter's estimated NED position.
func (f *Filter) Position() ekfmath.Vector3 {
	if !f.initialized {
		return ekfmath.Vector3{}
	}
	return ekfmath.Vector3{X: f.x.At(idxPosX, 0), Y: f.x.At(idxPosY, 0), Z: f.x.At(idxPosZ, 0)}
}

// Velocity returns a copy of the filter's estimated NED velocity.
func (f *Filter) Velocity() ekfmath.Vector3 {
	if !f.initialized {
		return ekfmath.Vector3{}
	}
	return ekfmath.Vector3{X: f.x.At(idxVelX, 0), Y: f.x.At(idxVelY, 0), Z: f.x.At(idxVelZ, 0)}
}

// Attitude returns a copy of the filter's estimated body-to-NED attitude
// quaternion, normalized.
func (f *Filter) Attitude() ekfmath.Quaternion {
	if !f.initialized {
		return ekfmath.IdentityQuaternion()
	}
	q := ekfmath.Quaternion{
		W: f.x.At(idxQuatW, 0),
		X: f.x.At(idxQuatX, 0),
		Y: f.x.At(idxQuatY, 0),
		Z: f.x.At(idxQuatZ, 0),
	}
	return ekfmath.NormalizeQuaternion(q)
}

// Euler returns the filter's attitude as ZYX roll/pitch/yaw, in radians.
func (f *Filter) Euler() (roll, pitch, yaw float64) {
	return ekfmath.ToEuler(f.Attitude())
}

// GyroBias returns a copy of the filter's estimated gyro bias, rad/s.
func (f *Filter) GyroBias() ekfmath.Vector3 {
	if !f.initialized {
		return ekfmath.Vector3{}
	}
	return ekfmath.Vector3{X: f.x.At(idxGyroBiasX, 0), Y: f.x.At(idxGyroBiasY, 0), Z: f.x.At(idxGyroBiasZ, 0)}
}

// AccelBias returns a copy of the filter's estimated accelerometer bias,
// m/s^2.
func (f *Filter) AccelBias() ekfmath.Vector3 {
	if !f.initialized {
		return ekfmath.Vector3{}
	}
	return ekfmath.Vector3{X: f.x.At(idxAccBiasX, 0), Y: f.x.At(idxAccBiasY, 0), Z: f.x.At(idxAccBiasZ, 0)}
}

// Covariance returns a copy of the state covariance matrix, mainly for
// tests and diagnostics.
func (f *Filter) Covariance() ekfmath.Matrix {
	return f.P
}
