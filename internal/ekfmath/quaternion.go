package ekfmath

import "math"

// Quaternion is (w, x, y, z), Hamilton convention, w scalar. It rotates a
// vector from body frame to NED frame via v_ned = Rotate(q, v_body).
type Quaternion struct {
	W, X, Y, Z float64
}

// IdentityQuaternion returns (1, 0, 0, 0).
func IdentityQuaternion() Quaternion {
	return Quaternion{W: 1}
}

// MagnitudeQuaternion returns |q|.
func MagnitudeQuaternion(q Quaternion) float64 {
	return math.Sqrt(q.W*q.W + q.X*q.X + q.Y*q.Y + q.Z*q.Z)
}

// NormalizeQuaternion returns q/|q|, or the identity quaternion if |q| is
// below the singularity threshold.
func NormalizeQuaternion(q Quaternion) Quaternion {
	mag := MagnitudeQuaternion(q)
	if mag < singularEpsilon {
		return IdentityQuaternion()
	}
	inv := 1.0 / mag
	return Quaternion{q.W * inv, q.X * inv, q.Y * inv, q.Z * inv}
}

// MultiplyQuaternion returns the Hamilton product q1*q2. Quaternion
// multiplication is non-commutative; when composing rotations this is
// used as q_world = q1 (world<-intermediate) applied after q2
// (intermediate<-body).
func MultiplyQuaternion(q1, q2 Quaternion) Quaternion {
	return Quaternion{
		W: q1.W*q2.W - q1.X*q2.X - q1.Y*q2.Y - q1.Z*q2.Z,
		X: q1.W*q2.X + q1.X*q2.W + q1.Y*q2.Z - q1.Z*q2.Y,
		Y: q1.W*q2.Y - q1.X*q2.Z + q1.Y*q2.W + q1.Z*q2.X,
		Z: q1.W*q2.Z + q1.X*q2.Y - q1.Y*q2.X + q1.Z*q2.W,
	}
}

// ConjugateQuaternion returns q's conjugate.
func ConjugateQuaternion(q Quaternion) Quaternion {
	return Quaternion{q.W, -q.X, -q.Y, -q.Z}
}

// InverseQuaternion returns q's inverse (conjugate over squared
// magnitude), or the identity quaternion if q is near-degenerate.
func InverseQuaternion(q Quaternion) Quaternion {
	magSq := q.W*q.W + q.X*q.X + q.Y*q.Y + q.Z*q.Z
	if magSq < singularEpsilon {
		return IdentityQuaternion()
	}
	c := ConjugateQuaternion(q)
	inv := 1.0 / magSq
	return Quaternion{c.W * inv, c.X * inv, c.Y * inv, c.Z * inv}
}

// RotateVector rotates v by q (equivalent to q (0,v) q^-1), computed via
// the direction-cosine-matrix form of q to avoid two quaternion
// multiplications.
func RotateVector(q Quaternion, v Vector3) Vector3 {
	qw2 := q.W * q.W
	qx2 := q.X * q.X
	qy2 := q.Y * q.Y
	qz2 := q.Z * q.Z

	qwx := q.W * q.X
	qwy := q.W * q.Y
	qwz := q.W * q.Z
	qxy := q.X * q.Y
	qxz := q.X * q.Z
	qyz := q.Y * q.Z

	m11 := qw2 + qx2 - qy2 - qz2
	m12 := 2 * (qxy - qwz)
	m13 := 2 * (qxz + qwy)

	m21 := 2 * (qxy + qwz)
	m22 := qw2 - qx2 + qy2 - qz2
	m23 := 2 * (qyz - qwx)

	m31 := 2 * (qxz - qwy)
	m32 := 2 * (qyz + qwx)
	m33 := qw2 - qx2 - qy2 + qz2

	return Vector3{
		X: m11*v.X + m12*v.Y + m13*v.Z,
		Y: m21*v.X + m22*v.Y + m23*v.Z,
		Z: m31*v.X + m32*v.Y + m33*v.Z,
	}
}

// RotateVectorInverse rotates v by q's inverse rotation, i.e.
// Rotate(Conjugate(q), v). It is used to bring a NED-frame vector into
// body frame.
func RotateVectorInverse(q Quaternion, v Vector3) Vector3 {
	return RotateVector(ConjugateQuaternion(q), v)
}

// DerivativeQuaternion returns 0.5 * q (0, omega), the attitude
// derivative driven by body rate omega (rad/s).
func DerivativeQuaternion(q Quaternion, omega Vector3) Quaternion {
	omegaQuat := Quaternion{0, omega.X, omega.Y, omega.Z}
	d := MultiplyQuaternion(q, omegaQuat)
	return Quaternion{d.W * 0.5, d.X * 0.5, d.Y * 0.5, d.Z * 0.5}
}

// FromEuler builds a quaternion from roll/pitch/yaw (radians) using the
// ZYX aerospace convention, then normalizes.
func FromEuler(roll, pitch, yaw float64) Quaternion {
	cr := math.Cos(roll * 0.5)
	sr := math.Sin(roll * 0.5)
	cp := math.Cos(pitch * 0.5)
	sp := math.Sin(pitch * 0.5)
	cy := math.Cos(yaw * 0.5)
	sy := math.Sin(yaw * 0.5)

	q := Quaternion{
		W: cr*cp*cy + sr*sp*sy,
		X: sr*cp*cy - cr*sp*sy,
		Y: cr*sp*cy + sr*cp*sy,
		Z: cr*cp*sy - sr*sp*cy,
	}
	return NormalizeQuaternion(q)
}

// ToEuler extracts roll/pitch/yaw (radians, ZYX convention) from q. Pitch
// is clamped to +/-pi/2 at the gimbal singularity.
func ToEuler(q Quaternion) (roll, pitch, yaw float64) {
	qn := NormalizeQuaternion(q)

	roll = math.Atan2(2*(qn.W*qn.X+qn.Y*qn.Z), 1-2*(qn.X*qn.X+qn.Y*qn.Y))

	sinp := 2 * (qn.W*qn.Y - qn.Z*qn.X)
	if math.Abs(sinp) >= 1 {
		pitch = math.Copysign(math.Pi/2, sinp)
	} else {
		pitch = math.Asin(sinp)
	}

	yaw = math.Atan2(2*(qn.W*qn.Z+qn.X*qn.Y), 1-2*(qn.Y*qn.Y+qn.Z*qn.Z))
	return roll, pitch, yaw
}
