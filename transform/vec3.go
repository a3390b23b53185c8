package transform

import "math"

// Vec3 is a three-component vector used for translation and scale sub-tracks.
type Vec3 struct {
	X, Y, Z float32
}

// ZeroVec3 is the default translation value.
var ZeroVec3 = Vec3{}

// OneVec3 is the default (multiplicative) scale value.
var OneVec3 = Vec3{X: 1, Y: 1, Z: 1}

// IsFinite reports whether every component is neither NaN nor Inf.
func (v Vec3) IsFinite() bool {
	return isFiniteFloat32(v.X) && isFiniteFloat32(v.Y) && isFiniteFloat32(v.Z)
}

func isFiniteFloat32(f float32) bool {
	v := float64(f)

	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Add returns the componentwise sum.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

// Sub returns the componentwise difference v - o.
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z}
}

// Mul returns the componentwise product, used to compose scale sub-tracks.
func (v Vec3) Mul(o Vec3) Vec3 {
	return Vec3{X: v.X * o.X, Y: v.Y * o.Y, Z: v.Z * o.Z}
}

// Scale returns v scaled by a uniform factor.
func (v Vec3) Scale(s float32) Vec3 {
	return Vec3{X: v.X * s, Y: v.Y * s, Z: v.Z * s}
}

// Length returns the Euclidean norm of v.
func (v Vec3) Length() float32 {
	return float32(math.Sqrt(float64(v.X*v.X + v.Y*v.Y + v.Z*v.Z)))
}

// Lerp linearly interpolates between v and o by alpha in [0,1].
func (v Vec3) Lerp(o Vec3, alpha float32) Vec3 {
	return Vec3{
		X: v.X + (o.X-v.X)*alpha,
		Y: v.Y + (o.Y-v.Y)*alpha,
		Z: v.Z + (o.Z-v.Z)*alpha,
	}
}

// NearEqual reports whether v and o match within tolerance on every
// component.
func (v Vec3) NearEqual(o Vec3, tolerance float32) bool {
	return absf32(v.X-o.X) <= tolerance && absf32(v.Y-o.Y) <= tolerance && absf32(v.Z-o.Z) <= tolerance
}

func absf32(f float32) float32 {
	if f < 0 {
		return -f
	}

	return f
}

// CanonicalAxisPoint returns the unit vector along the given canonical axis
// (0=X, 1=Y, 2=Z) scaled by distance. Used by the error metric to build the
// three virtual vertices checked per bone.
func CanonicalAxisPoint(axis int, distance float32) Vec3 {
	switch axis {
	case 0:
		return Vec3{X: distance}
	case 1:
		return Vec3{Y: distance}
	default:
		return Vec3{Z: distance}
	}
}
