package ekf

import "stratux-ng/internal/ekfmath"

// UpdateGPS applies a GPS fix to the filter. useVel selects between a
// 3-row position-only measurement and a 6-row position+velocity
// measurement; vel is ignored when useVel is false. It returns false if
// the filter is uninitialized or the innovation covariance is singular.
func (f *Filter) UpdateGPS(pos, vel ekfmath.Vector3, useVel bool) bool {
	if !f.initialized {
		return false
	}

	H := f.gpsJacobian(useVel)
	R := f.gpsNoise(useVel)

	predPos := f.Position()
	var z, zPred ekfmath.Matrix
	if useVel {
		predVel := f.Velocity()
		z = ekfmath.NewMatrix(6, 1)
		zPred = ekfmath.NewMatrix(6, 1)
		z.SetCol(0, []float64{pos.X, pos.Y, pos.Z, vel.X, vel.Y, vel.Z})
		zPred.SetCol(0, []float64{predPos.X, predPos.Y, predPos.Z, predVel.X, predVel.Y, predVel.Z})
	} else {
		z = ekfmath.NewMatrix(3, 1)
		zPred = ekfmath.NewMatrix(3, 1)
		z.SetCol(0, []float64{pos.X, pos.Y, pos.Z})
		zPred.SetCol(0, []float64{predPos.X, predPos.Y, predPos.Z})
	}

	y, ok := ekfmath.Sub(z, zPred)
	if !ok {
		return false
	}
	return f.applyUpdate(H, R, y)
}

// gpsJacobian builds the GPS measurement Jacobian for either the 3-row
// (position-only) or 6-row (position+velocity) case, per the generic
// builder called for by the filter's GPS measurement-dimension option.
func (f *Filter) gpsJacobian(useVel bool) ekfmath.Matrix {
	rows := 3
	if useVel {
		rows = 6
	}
	H := ekfmath.NewMatrix(rows, StateDim)
	H.Set(0, idxPosX, 1)
	H.Set(1, idxPosY, 1)
	H.Set(2, idxPosZ, 1)
	if useVel {
		H.Set(3, idxVelX, 1)
		H.Set(4, idxVelY, 1)
		H.Set(5, idxVelZ, 1)
	}
	return H
}

// gpsNoise returns the measurement noise block matching useVel's shape,
// sliced from the filter's full 6x6 Rgps.
func (f *Filter) gpsNoise(useVel bool) ekfmath.Matrix {
	if useVel {
		return f.Rgps
	}
	R := ekfmath.NewMatrix(3, 3)
	for i := 0; i < 3; i++ {
		R.Set(i, i, f.Rgps.At(i, i))
	}
	return R
}

// UpdateBaro applies a barometric altitude (NED down, meters) measurement.
func (f *Filter) UpdateBaro(altitude float64) bool {
	if !f.initialized {
		return false
	}

	H := ekfmath.NewMatrix(1, StateDim)
	H.Set(0, idxPosZ, 1)

	z := ekfmath.NewMatrix(1, 1)
	z.Set(0, 0, altitude)

	zPred := ekfmath.NewMatrix(1, 1)
	zPred.Set(0, 0, f.Position().Z)

	y, ok := ekfmath.Sub(z, zPred)
	if !ok {
		return false
	}
	return f.applyUpdate(H, f.Rbaro, y)
}

// UpdateMag applies a body-frame magnetometer sample against the filter's
// reference NED magnetic field, correcting attitude (and, through the
// coupled covariance, the gyro bias).
func (f *Filter) UpdateMag(mag ekfmath.Vector3) bool {
	if !f.initialized {
		return false
	}

	q := f.Attitude()
	H := f.magJacobian(q)

	magPred := ekfmath.RotateVectorInverse(q, f.earthMagNED)

	z := ekfmath.NewMatrix(3, 1)
	z.SetCol(0, []float64{mag.X, mag.Y, mag.Z})

	zPred := ekfmath.NewMatrix(3, 1)
	zPred.SetCol(0, []float64{magPred.X, magPred.Y, magPred.Z})

	y, ok := ekfmath.Sub(z, zPred)
	if !ok {
		return false
	}
	return f.applyUpdate(H, f.Rmag, y)
}

// magJacobian computes the hand-derived 3x4 block d(R(q)^-1 m_earth)/dq,
// written into the attitude columns of an otherwise-zero 3x16 matrix.
func (f *Filter) magJacobian(q ekfmath.Quaternion) ekfmath.Matrix {
	H := ekfmath.NewMatrix(3, StateDim)

	qw, qx, qy, qz := q.W, q.X, q.Y, q.Z
	mx, my, mz := f.earthMagNED.X, f.earthMagNED.Y, f.earthMagNED.Z

	H.Set(0, idxQuatW, 2*(-qz*my+qy*mz))
	H.Set(1, idxQuatW, 2*(qz*mx-qx*mz))
	H.Set(2, idxQuatW, 2*(-qy*mx+qx*my))

	H.Set(0, idxQuatX, 2*(qy*my+qz*mz))
	H.Set(1, idxQuatX, 2*(qy*mx-2*qx*my-qw*mz))
	H.Set(2, idxQuatX, 2*(qz*mx+qw*my-2*qx*mz))

	H.Set(0, idxQuatY, 2*(-2*qy*mx+qx*my+qw*mz))
	H.Set(1, idxQuatY, 2*(qx*mx+qz*mz))
	H.Set(2, idxQuatY, 2*(-qw*mx+qz*my-2*qy*mz))

	H.Set(0, idxQuatZ, 2*(-2*qz*mx-qw*my+qx*mz))
	H.Set(1, idxQuatZ, 2*(qw*mx-2*qz*my+qy*mz))
	H.Set(2, idxQuatZ, 2*(qx*mx+qy*my))

	return H
}

// applyUpdate runs the shared Kalman gain / state-and-covariance update
// for any H/R/innovation triple: K = P H^T (H P H^T + R)^-1,
// x += K y, P = (I - K H) P, then symmetrizes P and renormalizes the
// quaternion block of x. It returns false if the innovation covariance is
// singular.
func (f *Filter) applyUpdate(H, R, y ekfmath.Matrix) bool {
	Ht := ekfmath.Transpose(H)

	hp, ok := ekfmath.Mul(H, f.P)
	if !ok {
		return false
	}
	hpht, ok := ekfmath.Mul(hp, Ht)
	if !ok {
		return false
	}
	S, ok := ekfmath.Add(hpht, R)
	if !ok {
		return false
	}

	Sinv, ok := ekfmath.Inverse(S)
	if !ok {
		return false
	}

	pht, _ := ekfmath.Mul(f.P, Ht)
	K, ok := ekfmath.Mul(pht, Sinv)
	if !ok {
		return false
	}

	dx, _ := ekfmath.Mul(K, y)
	x, _ := ekfmath.Add(f.x, dx)
	f.x = x

	q := ekfmath.NormalizeQuaternion(ekfmath.Quaternion{
		W: f.x.At(idxQuatW, 0),
		X: f.x.At(idxQuatX, 0),
		Y: f.x.At(idxQuatY, 0),
		Z: f.x.At(idxQuatZ, 0),
	})
	f.x.Set(idxQuatW, 0, q.W)
	f.x.Set(idxQuatX, 0, q.X)
	f.x.Set(idxQuatY, 0, q.Y)
	f.x.Set(idxQuatZ, 0, q.Z)

	I := ekfmath.Identity(StateDim)
	KH, _ := ekfmath.Mul(K, H)
	IKH, _ := ekfmath.Sub(I, KH)
	Pnew, ok := ekfmath.Mul(IKH, f.P)
	if !ok {
		return false
	}

	// Symmetrize to cancel the asymmetry floating-point error accumulates
	// in P over repeated updates.
	Pt := ekfmath.Transpose(Pnew)
	Psum, _ := ekfmath.Add(Pnew, Pt)
	f.P = ekfmath.Scale(Psum, 0.5)

	return true
}
