package ekfmath

import "math"

// Vector3 is a 3-component vector in whatever frame the caller documents
// (body or NED, depending on context).
type Vector3 struct {
	X, Y, Z float64
}

// ZeroVector3 returns (0, 0, 0).
func ZeroVector3() Vector3 { return Vector3{} }

// AddVector3 returns v1+v2.
func AddVector3(v1, v2 Vector3) Vector3 {
	return Vector3{v1.X + v2.X, v1.Y + v2.Y, v1.Z + v2.Z}
}

// SubVector3 returns v1-v2.
func SubVector3(v1, v2 Vector3) Vector3 {
	return Vector3{v1.X - v2.X, v1.Y - v2.Y, v1.Z - v2.Z}
}

// ScaleVector3 returns v scaled by s.
func ScaleVector3(v Vector3, s float64) Vector3 {
	return Vector3{v.X * s, v.Y * s, v.Z * s}
}

// DotVector3 returns v1.v2.
func DotVector3(v1, v2 Vector3) float64 {
	return v1.X*v2.X + v1.Y*v2.Y + v1.Z*v2.Z
}

// CrossVector3 returns v1 x v2.
func CrossVector3(v1, v2 Vector3) Vector3 {
	return Vector3{
		v1.Y*v2.Z - v1.Z*v2.Y,
		v1.Z*v2.X - v1.X*v2.Z,
		v1.X*v2.Y - v1.Y*v2.X,
	}
}

// MagnitudeVector3 returns |v|.
func MagnitudeVector3(v Vector3) float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// NormalizeVector3 returns v/|v|, or the zero vector if |v| is below the
// singularity threshold.
func NormalizeVector3(v Vector3) Vector3 {
	mag := MagnitudeVector3(v)
	if mag < singularEpsilon {
		return ZeroVector3()
	}
	inv := 1.0 / mag
	return Vector3{v.X * inv, v.Y * inv, v.Z * inv}
}
