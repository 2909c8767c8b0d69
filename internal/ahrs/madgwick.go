package ahrs

import "github.com/chewxy/math32"

// Madgwick is the gradient-descent orientation filter from Madgwick's 2010
// report ("An efficient orientation filter for inertial and
// inertial/magnetic sensor arrays"). Beta trades convergence speed against
// noise rejection.
//
// Madgwick has no gyro bias estimate; Bias always reports zero.
type Madgwick struct {
	Beta float32
}

func NewMadgwick(beta float32) *Madgwick {
	return &Madgwick{Beta: beta}
}

func (m *Madgwick) Bias() Vector3 { return Vector3{} }

func (m *Madgwick) SetGain(g float32) {
	m.Beta = g
}

func (m *Madgwick) Reset() {}

func (m *Madgwick) Step(q Quaternion, s SensorSample, dt, gain float32) (Quaternion, bool) {
	beta := m.Beta * gain

	a, haveAccel := s.Accel.Normalized()
	if beta <= 0 || !haveAccel {
		return q.Integrate(s.Gyro, dt).Normalized()
	}

	if s.Mag != nil {
		if mn, ok := s.Mag.Normalized(); ok {
			return m.stepMARG(q, s.Gyro, a, mn, dt, beta)
		}
	}
	return m.stepIMU(q, s.Gyro, a, dt, beta)
}

// stepIMU is the 6-DOF corrective step: gradient of the gravity objective
// function only.
func (m *Madgwick) stepIMU(q Quaternion, g, a Vector3, dt, beta float32) (Quaternion, bool) {
	q0, q1, q2, q3 := q.W, q.X, q.Y, q.Z

	// Objective function: predicted gravity minus measurement.
	f1 := 2*(q1*q3-q0*q2) - a.X
	f2 := 2*(q0*q1+q2*q3) - a.Y
	f3 := 2*(0.5-q1*q1-q2*q2) - a.Z

	// Gradient (Jacobian transposed times objective).
	s0 := -2*q2*f1 + 2*q1*f2
	s1 := 2*q3*f1 + 2*q0*f2 - 4*q1*f3
	s2 := -2*q0*f1 + 2*q3*f2 - 4*q2*f3
	s3 := 2*q1*f1 + 2*q2*f2

	return integrateWithGradient(q, g, s0, s1, s2, s3, dt, beta)
}

// stepMARG is the 9-DOF corrective step including the magnetic field
// objective. The field reference (bx, bz) is recomputed from the measurement
// each step, so no declination/inclination model is required.
func (m *Madgwick) stepMARG(q Quaternion, g, a, mm Vector3, dt, beta float32) (Quaternion, bool) {
	q0, q1, q2, q3 := q.W, q.X, q.Y, q.Z
	mx, my, mz := mm.X, mm.Y, mm.Z

	q0q0, q1q1, q2q2, q3q3 := q0*q0, q1*q1, q2*q2, q3*q3

	// Reference direction of the Earth's field.
	hx := mx*q0q0 - 2*q0*my*q3 + 2*q0*mz*q2 + mx*q1q1 + 2*q1*my*q2 + 2*q1*mz*q3 - mx*q2q2 - mx*q3q3
	hy := 2*q0*mx*q3 + my*q0q0 - 2*q0*mz*q1 + 2*q1*mx*q2 - my*q1q1 + my*q2q2 + 2*q2*mz*q3 - my*q3q3
	bx := math32.Sqrt(hx*hx + hy*hy)
	bz := -2*q0*mx*q2 + 2*q0*my*q1 + mz*q0q0 + 2*q1*mx*q3 - mz*q1q1 + 2*q2*my*q3 - mz*q2q2 + mz*q3q3

	// Objective function: predicted gravity and field minus measurements.
	f1 := 2*(q1*q3-q0*q2) - a.X
	f2 := 2*(q0*q1+q2*q3) - a.Y
	f3 := 2*(0.5-q1q1-q2q2) - a.Z
	f4 := bx*2*(0.5-q2q2-q3q3) + bz*2*(q1*q3-q0*q2) - mx
	f5 := bx*2*(q1*q2-q0*q3) + bz*2*(q0*q1+q2*q3) - my
	f6 := bx*2*(q0*q2+q1*q3) + bz*2*(0.5-q1q1-q2q2) - mz

	s0 := -2*q2*f1 + 2*q1*f2 +
		(-2*bz*q2)*f4 + (-2*bx*q3+2*bz*q1)*f5 + (2*bx*q2)*f6
	s1 := 2*q3*f1 + 2*q0*f2 - 4*q1*f3 +
		(2*bz*q3)*f4 + (2*bx*q2+2*bz*q0)*f5 + (2*bx*q3-4*bz*q1)*f6
	s2 := -2*q0*f1 + 2*q3*f2 - 4*q2*f3 +
		(-4*bx*q2-2*bz*q0)*f4 + (2*bx*q1+2*bz*q3)*f5 + (2*bx*q0-4*bz*q2)*f6
	s3 := 2*q1*f1 + 2*q2*f2 +
		(-4*bx*q3+2*bz*q1)*f4 + (-2*bx*q0+2*bz*q2)*f5 + (2*bx*q1)*f6

	return integrateWithGradient(q, g, s0, s1, s2, s3, dt, beta)
}

func integrateWithGradient(q Quaternion, g Vector3, s0, s1, s2, s3, dt, beta float32) (Quaternion, bool) {
	norm := math32.Sqrt(s0*s0 + s1*s1 + s2*s2 + s3*s3)
	if norm > 0 {
		s0 /= norm
		s1 /= norm
		s2 /= norm
		s3 /= norm
	}

	qd := q.Integrate(g, dt)
	qd.W -= beta * s0 * dt
	qd.X -= beta * s1 * dt
	qd.Y -= beta * s2 * dt
	qd.Z -= beta * s3 * dt
	return qd.Normalized()
}
