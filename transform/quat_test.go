package transform_test

import (
	"math"
	"testing"

	"github.com/animblob/animblob/transform"
	"github.com/stretchr/testify/require"
)

func TestQuat_IsNormalized(t *testing.T) {
	require.True(t, transform.IdentityQuat.IsNormalized(1e-6))

	notUnit := transform.Quat{X: 1, Y: 1, Z: 0, W: 0}
	require.False(t, notUnit.IsNormalized(1e-6))
}

func TestQuat_NLerp_Midpoint_BisectsAngle(t *testing.T) {
	half := float32(math.Sqrt2) / 2
	ninety := transform.Quat{Y: half, W: half} // 90 degrees about Y

	mid := transform.IdentityQuat.NLerp(ninety, 0.5)

	gotDeg := float64(mid.AngleAbout(1)) * 180 / math.Pi
	require.InDelta(t, 45.0, gotDeg, 0.5)
	require.True(t, mid.IsNormalized(1e-5))
}

func TestQuat_NLerp_TakesShortPath(t *testing.T) {
	q := transform.IdentityQuat
	negated := q.Negate() // represents the same rotation, opposite hemisphere

	mid := q.NLerp(negated, 0.5)

	// Taking the short path, nlerp(q, -q) should reproduce q (normalized),
	// not the degenerate zero vector an unadjusted average would produce.
	require.InDelta(t, float64(q.W), float64(mid.W), 1e-4)
}

func TestQuat_DropW_Reconstruction(t *testing.T) {
	q := transform.Quat{X: 0.383, Y: 0, Z: 0, W: 0.924}
	w := transform.DropW(q.X, q.Y, q.Z)
	require.InDelta(t, float64(q.W), float64(w), 1e-3)
}

func TestQuat_DropW_ClampsNegativeUnderSqrt(t *testing.T) {
	// x^2+y^2+z^2 over 1 (here 1.92) must not panic or NaN; w clamps to 0.
	w := transform.DropW(0.8, 0.8, 0.8)
	require.Equal(t, float32(0), w)
}

func TestQuat_RotateVector_Identity(t *testing.T) {
	v := transform.Vec3{X: 1, Y: 2, Z: 3}
	got := transform.IdentityQuat.RotateVector(v)
	require.InDelta(t, float64(v.X), float64(got.X), 1e-6)
	require.InDelta(t, float64(v.Y), float64(got.Y), 1e-6)
	require.InDelta(t, float64(v.Z), float64(got.Z), 1e-6)
}

func TestQuat_RotateVector_NinetyAboutY(t *testing.T) {
	half := float32(math.Sqrt2) / 2
	ninety := transform.Quat{Y: half, W: half}

	got := ninety.RotateVector(transform.Vec3{X: 1})

	require.InDelta(t, 0.0, float64(got.X), 1e-4)
	require.InDelta(t, 0.0, float64(got.Y), 1e-4)
	require.InDelta(t, -1.0, float64(got.Z), 1e-4)
}
