package ekf

import "stratux-ng/internal/ekfmath"

// Predict advances the filter by dt seconds using a raw gyro (rad/s) and
// raw accelerometer (m/s^2) sample, both in body frame. It is a no-op
// returning false if the filter has not been initialized or dt is not
// strictly positive.
func (f *Filter) Predict(gyro, accel ekfmath.Vector3, dt float64) bool {
	if !f.initialized || dt <= 0 {
		return false
	}

	pos := f.Position()
	vel := f.Velocity()
	q := f.Attitude()
	gyroBias := f.GyroBias()
	accBias := f.AccelBias()

	gyroCorrected := ekfmath.SubVector3(gyro, gyroBias)
	accelCorrected := ekfmath.SubVector3(accel, accBias)

	// Attitude: first-order Euler integration of the quaternion derivative.
	qDot := ekfmath.DerivativeQuaternion(q, gyroCorrected)
	q = ekfmath.Quaternion{
		W: q.W + qDot.W*dt,
		X: q.X + qDot.X*dt,
		Y: q.Y + qDot.Y*dt,
		Z: q.Z + qDot.Z*dt,
	}
	q = ekfmath.NormalizeQuaternion(q)

	// Specific force rotated into NED, gravity removed, then integrated
	// into velocity and position.
	gravityNED := ekfmath.Vector3{Z: f.gravity}
	accelNED := ekfmath.SubVector3(ekfmath.RotateVector(q, accelCorrected), gravityNED)

	vel = ekfmath.AddVector3(vel, ekfmath.ScaleVector3(accelNED, dt))
	pos = ekfmath.AddVector3(pos, ekfmath.ScaleVector3(vel, dt))

	f.x.Set(idxPosX, 0, pos.X)
	f.x.Set(idxPosY, 0, pos.Y)
	f.x.Set(idxPosZ, 0, pos.Z)

	f.x.Set(idxVelX, 0, vel.X)
	f.x.Set(idxVelY, 0, vel.Y)
	f.x.Set(idxVelZ, 0, vel.Z)

	f.x.Set(idxQuatW, 0, q.W)
	f.x.Set(idxQuatX, 0, q.X)
	f.x.Set(idxQuatY, 0, q.Y)
	f.x.Set(idxQuatZ, 0, q.Z)

	// Biases are a random walk with zero mean drift; Predict leaves them
	// untouched, Update* corrects them via the Jacobian's bias columns.

	F := f.computeJacobian(q, dt)
	Ft := ekfmath.Transpose(F)

	fp, _ := ekfmath.Mul(F, f.P)
	fpft, _ := ekfmath.Mul(fp, Ft)

	scaledQ := ekfmath.Scale(f.Q, dt)
	P, _ := ekfmath.Add(fpft, scaledQ)
	f.P = P

	return true
}

// computeJacobian builds the 16x16 state transition Jacobian F at the
// attitude/velocity/bias working point already folded into q (the
// just-integrated, pre-update attitude) and f.x (velocity, accel bias).
func (f *Filter) computeJacobian(q ekfmath.Quaternion, dt float64) ekfmath.Matrix {
	F := ekfmath.Identity(StateDim)

	F.Set(idxPosX, idxVelX, dt)
	F.Set(idxPosY, idxVelY, dt)
	F.Set(idxPosZ, idxVelZ, dt)

	qw, qx, qy, qz := q.W, q.X, q.Y, q.Z

	// d(quaternion)/d(gyro bias): partial of q_dot = 0.5 * q (x) (omega - b)
	// with respect to b, integrated by dt.
	F.Set(idxQuatW, idxGyroBiasX, -0.5*qx*dt)
	F.Set(idxQuatW, idxGyroBiasY, -0.5*qy*dt)
	F.Set(idxQuatW, idxGyroBiasZ, -0.5*qz*dt)

	F.Set(idxQuatX, idxGyroBiasX, 0.5*qw*dt)
	F.Set(idxQuatX, idxGyroBiasY, -0.5*qz*dt)
	F.Set(idxQuatX, idxGyroBiasZ, 0.5*qy*dt)

	F.Set(idxQuatY, idxGyroBiasX, 0.5*qz*dt)
	F.Set(idxQuatY, idxGyroBiasY, 0.5*qw*dt)
	F.Set(idxQuatY, idxGyroBiasZ, -0.5*qx*dt)

	F.Set(idxQuatZ, idxGyroBiasX, -0.5*qy*dt)
	F.Set(idxQuatZ, idxGyroBiasY, 0.5*qx*dt)
	F.Set(idxQuatZ, idxGyroBiasZ, 0.5*qw*dt)

	// d(velocity)/d(accel bias) = -R(q) * dt, where R(q) is the body->NED
	// rotation matrix (quaternion.RotateVector's DCM, written out here
	// because the Jacobian needs the individual entries, not a rotated
	// vector).
	r11 := 1 - 2*(qy*qy+qz*qz)
	r12 := 2 * (qx*qy - qw*qz)
	r13 := 2 * (qx*qz + qw*qy)
	r21 := 2 * (qx*qy + qw*qz)
	r22 := 1 - 2*(qx*qx+qz*qz)
	r23 := 2 * (qy*qz - qw*qx)
	r31 := 2 * (qx*qz - qw*qy)
	r32 := 2 * (qy*qz + qw*qx)
	r33 := 1 - 2*(qx*qx+qy*qy)

	F.Set(idxVelX, idxAccBiasX, -r11*dt)
	F.Set(idxVelX, idxAccBiasY, -r12*dt)
	F.Set(idxVelX, idxAccBiasZ, -r13*dt)

	F.Set(idxVelY, idxAccBiasX, -r21*dt)
	F.Set(idxVelY, idxAccBiasY, -r22*dt)
	F.Set(idxVelY, idxAccBiasZ, -r23*dt)

	F.Set(idxVelZ, idxAccBiasX, -r31*dt)
	F.Set(idxVelZ, idxAccBiasY, -r32*dt)
	F.Set(idxVelZ, idxAccBiasZ, -r33*dt)

	return F
}
