package ahrs

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quatInDelta(t *testing.T, want, got Quaternion, delta float64) {
	t.Helper()
	// q and -q are the same rotation.
	if want.W*got.W+want.X*got.X+want.Y*got.Y+want.Z*got.Z < 0 {
		got = Quaternion{W: -got.W, X: -got.X, Y: -got.Y, Z: -got.Z}
	}
	assert.InDelta(t, want.W, got.W, delta)
	assert.InDelta(t, want.X, got.X, delta)
	assert.InDelta(t, want.Y, got.Y, delta)
	assert.InDelta(t, want.Z, got.Z, delta)
}

func TestMulIdentity(t *testing.T) {
	q := Quaternion{W: 0.5, X: 0.5, Y: 0.5, Z: 0.5}
	assert.Equal(t, q, q.Mul(Identity()))
	assert.Equal(t, q, Identity().Mul(q))
}

func TestConjugateIsInverse(t *testing.T) {
	q, ok := Quaternion{W: 1, X: 2, Y: -3, Z: 0.5}.Normalized()
	require.True(t, ok)
	quatInDelta(t, Identity(), q.Mul(q.Conjugate()), 1e-6)
}

func TestNormalizedDegenerate(t *testing.T) {
	_, ok := Quaternion{}.Normalized()
	assert.False(t, ok)

	_, ok = Quaternion{W: math32.NaN()}.Normalized()
	assert.False(t, ok)

	_, ok = Quaternion{W: math32.Inf(1)}.Normalized()
	assert.False(t, ok)
}

func TestIntegrateZeroRate(t *testing.T) {
	q, ok := Quaternion{W: 0.9, X: 0.1, Y: 0.2, Z: 0.3}.Normalized()
	require.True(t, ok)
	assert.Equal(t, q, q.Integrate(Vector3{}, 0.01))
}

func TestIntegrateMatchesSmallAngle(t *testing.T) {
	// 0.01 rad about Z from identity.
	q, ok := Identity().Integrate(Vector3{Z: 1}, 0.01).Normalized()
	require.True(t, ok)
	want := Quaternion{W: math32.Cos(0.005), Z: math32.Sin(0.005)}
	quatInDelta(t, want, q, 1e-5)
}

func TestGravityBody(t *testing.T) {
	assert.Equal(t, Vector3{Z: 1}, Identity().GravityBody())

	// 90 degree roll moves gravity onto the body Y axis.
	s := math32.Sqrt(2) / 2
	q := Quaternion{W: s, X: s} // +90 deg about X
	g := q.GravityBody()
	assert.InDelta(t, 0, float64(g.X), 1e-6)
	assert.InDelta(t, 1, float64(g.Y), 1e-6)
	assert.InDelta(t, 0, float64(g.Z), 1e-6)
}

func TestEulerKnownAngles(t *testing.T) {
	s := math32.Sqrt(2) / 2

	roll, pitch, yaw := (Quaternion{W: s, X: s}).Euler()
	assert.InDelta(t, math32.Pi/2, float64(roll), 1e-5)
	assert.InDelta(t, 0, float64(pitch), 1e-5)
	assert.InDelta(t, 0, float64(yaw), 1e-5)

	roll, pitch, yaw = (Quaternion{W: s, Z: s}).Euler()
	assert.InDelta(t, 0, float64(roll), 1e-5)
	assert.InDelta(t, 0, float64(pitch), 1e-5)
	assert.InDelta(t, math32.Pi/2, float64(yaw), 1e-5)
}

func TestFromGravityLevel(t *testing.T) {
	assert.Equal(t, Identity(), FromGravity(Vector3{Z: 1}))
	// Magnitude does not matter, only direction.
	quatInDelta(t, Identity(), FromGravity(Vector3{Z: 0.98}), 1e-6)
}

func TestFromGravityDegenerate(t *testing.T) {
	assert.Equal(t, Identity(), FromGravity(Vector3{}))
}

// The seed must agree with the filter's gravity prediction: rotating the
// measured direction through the produced quaternion gives it back.
func TestFromGravityConsistentWithGravityBody(t *testing.T) {
	cases := []Vector3{
		{Z: 1},
		{X: 0.3, Z: 0.95},
		{Y: -0.5, Z: 0.87},
		{X: 0.2, Y: 0.2, Z: 0.96},
		{X: 1}, // nose straight down
	}
	for _, a := range cases {
		q := FromGravity(a)
		assert.InDelta(t, 1, float64(q.Norm()), 1e-6)

		an, ok := a.Normalized()
		require.True(t, ok)
		g := q.GravityBody()
		assert.InDelta(t, float64(an.X), float64(g.X), 1e-5)
		assert.InDelta(t, float64(an.Y), float64(g.Y), 1e-5)
		assert.InDelta(t, float64(an.Z), float64(g.Z), 1e-5)
	}
}

func TestVectorOps(t *testing.T) {
	v := Vector3{X: 1, Y: 2, Z: 3}
	assert.Equal(t, Vector3{X: 2, Y: 4, Z: 6}, v.Add(v))
	assert.Equal(t, Vector3{}, v.Sub(v))
	assert.Equal(t, float32(14), v.Dot(v))
	assert.Equal(t, Vector3{Z: 1}, Vector3{X: 1}.Cross(Vector3{Y: 1}))

	_, ok := Vector3{}.Normalized()
	assert.False(t, ok)

	n, ok := Vector3{X: 3, Y: 4}.Normalized()
	require.True(t, ok)
	assert.InDelta(t, 0.6, float64(n.X), 1e-6)
	assert.InDelta(t, 0.8, float64(n.Y), 1e-6)
}
