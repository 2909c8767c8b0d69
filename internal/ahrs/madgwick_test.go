package ahrs

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMadgwick_PureGyroIntegration(t *testing.T) {
	m := NewMadgwick(0.1)
	s := SensorSample{Gyro: Vector3{Z: 1}, Accel: Vector3{Z: 1}}

	q := stepN(t, m, Identity(), s, 100)

	_, _, yaw := q.Euler()
	assert.InDelta(t, 1, float64(yaw), 0.02)
}

func TestMadgwick_GainZeroIsGyroOnly(t *testing.T) {
	m := NewMadgwick(0.1)
	s := SensorSample{Accel: Vector3{X: 1}}

	q, ok := m.Step(Identity(), s, 0.01, 0)
	require.True(t, ok)
	quatInDelta(t, Identity(), q, 1e-6)
}

func TestMadgwick_ConvergesToMeasuredGravity(t *testing.T) {
	m := NewMadgwick(0.5)
	a := Vector3{Y: math32.Sin(20 * math32.Pi / 180), Z: math32.Cos(20 * math32.Pi / 180)}
	s := SensorSample{Accel: a}

	q := stepN(t, m, Identity(), s, 3000)

	g := q.GravityBody()
	assert.InDelta(t, float64(a.X), float64(g.X), 0.02)
	assert.InDelta(t, float64(a.Y), float64(g.Y), 0.02)
	assert.InDelta(t, float64(a.Z), float64(g.Z), 0.02)
}

func TestMadgwick_MagCorrectsYaw(t *testing.T) {
	m := NewMadgwick(0.5)
	mag := Vector3{X: 0.6, Z: 0.8}
	s := SensorSample{Accel: Vector3{Z: 1}, Mag: &mag}

	// 30 degree initial yaw error, level otherwise.
	start := Quaternion{W: math32.Cos(15 * math32.Pi / 180), Z: math32.Sin(15 * math32.Pi / 180)}
	q := stepN(t, m, start, s, 5000)

	_, _, yaw := q.Euler()
	assert.InDelta(t, 0, float64(yaw), 0.05)
}

func TestMadgwick_NoBiasEstimate(t *testing.T) {
	m := NewMadgwick(0.1)
	assert.Equal(t, Vector3{}, m.Bias())
	m.Reset()
	assert.Equal(t, Vector3{}, m.Bias())
}

func TestMadgwick_SetGain(t *testing.T) {
	m := NewMadgwick(0.1)
	m.SetGain(0.3)
	assert.Equal(t, float32(0.3), m.Beta)
}
