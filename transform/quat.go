package transform

import "math"

// Quat is a unit quaternion used for rotation sub-tracks, stored x,y,z,w.
type Quat struct {
	X, Y, Z, W float32
}

// IdentityQuat is the default rotation value.
var IdentityQuat = Quat{W: 1}

// IsFinite reports whether every component is neither NaN nor Inf.
func (q Quat) IsFinite() bool {
	return isFiniteFloat32(q.X) && isFiniteFloat32(q.Y) && isFiniteFloat32(q.Z) && isFiniteFloat32(q.W)
}

// Dot returns the 4-component dot product, used to detect hemisphere flips
// between adjacent samples.
func (q Quat) Dot(o Quat) float32 {
	return q.X*o.X + q.Y*o.Y + q.Z*o.Z + q.W*o.W
}

// Negate flips the sign of every component. A unit quaternion and its
// negation represent the same rotation; this is used to keep adjacent
// samples in the same hemisphere and to enforce the drop-W convention w ≥ 0.
func (q Quat) Negate() Quat {
	return Quat{X: -q.X, Y: -q.Y, Z: -q.Z, W: -q.W}
}

// Length returns the Euclidean norm of q's four components.
func (q Quat) Length() float32 {
	return float32(math.Sqrt(float64(q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W)))
}

// IsNormalized reports whether q is unit-length within tolerance.
func (q Quat) IsNormalized(tolerance float32) bool {
	return absf32(q.Length()-1) <= tolerance
}

// NLerp performs normalized linear interpolation between q and o by alpha in
// [0,1]. The codec deliberately uses nlerp rather than slerp at decode time:
// precision is enforced at compress time by the bit-rate search, so the
// cheaper operator is adequate for the small deltas the error budget allows.
func (q Quat) NLerp(o Quat, alpha float32) Quat {
	// Take the shorter path: if the dot product is negative, negate o so
	// interpolation does not take the long way around the hypersphere.
	if q.Dot(o) < 0 {
		o = o.Negate()
	}

	r := Quat{
		X: q.X + (o.X-q.X)*alpha,
		Y: q.Y + (o.Y-q.Y)*alpha,
		Z: q.Z + (o.Z-q.Z)*alpha,
		W: q.W + (o.W-q.W)*alpha,
	}

	return r.Normalized()
}

// Normalized returns q scaled to unit length. If q is (near) zero, the
// identity quaternion is returned rather than dividing by zero.
func (q Quat) Normalized() Quat {
	l := q.Length()
	if l < 1e-8 {
		return IdentityQuat
	}

	inv := 1 / l

	return Quat{X: q.X * inv, Y: q.Y * inv, Z: q.Z * inv, W: q.W * inv}
}

// DropW reconstructs w = sqrt(max(0, 1 - x^2 - y^2 - z^2)) from the x,y,z
// components stored on disk under the drop-W rotation formats. The caller
// must have already applied the w ≥ 0 convention at encode time.
func DropW(x, y, z float32) float32 {
	wSq := 1 - x*x - y*y - z*z
	if wSq < 0 {
		wSq = 0
	}

	return float32(math.Sqrt(float64(wSq)))
}

// Mul composes two rotations: applying the result to a vector is equivalent
// to applying o first, then q (q is the parent, o is the local rotation).
func (q Quat) Mul(o Quat) Quat {
	return Quat{
		X: q.W*o.X + q.X*o.W + q.Y*o.Z - q.Z*o.Y,
		Y: q.W*o.Y - q.X*o.Z + q.Y*o.W + q.Z*o.X,
		Z: q.W*o.Z + q.X*o.Y - q.Y*o.X + q.Z*o.W,
		W: q.W*o.W - q.X*o.X - q.Y*o.Y - q.Z*o.Z,
	}
}

// RotateVector applies q's rotation to a point, used by the error metric to
// transform a bone-local virtual vertex into its parent's space.
func (q Quat) RotateVector(v Vec3) Vec3 {
	// t = 2 * cross(q.xyz, v)
	qv := Vec3{X: q.X, Y: q.Y, Z: q.Z}
	t := cross(qv, v).Scale(2)
	// v' = v + q.w * t + cross(q.xyz, t)
	return v.Add(t.Scale(q.W)).Add(cross(qv, t))
}

func cross(a, b Vec3) Vec3 {
	return Vec3{
		X: a.Y*b.Z - a.Z*b.Y,
		Y: a.Z*b.X - a.X*b.Z,
		Z: a.X*b.Y - a.Y*b.X,
	}
}

// AngleAbout returns the rotation angle, in radians, of q's swing about the
// given canonical axis (0=X, 1=Y, 2=Z). Used by tests to check decoded
// rotations against an expected angle.
func (q Quat) AngleAbout(axis int) float32 {
	var comp float32
	switch axis {
	case 0:
		comp = q.X
	case 1:
		comp = q.Y
	default:
		comp = q.Z
	}

	return 2 * float32(math.Atan2(float64(comp), float64(q.W)))
}
