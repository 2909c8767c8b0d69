package ahrs

import "github.com/chewxy/math32"

// Mahony is a proportional-integral complementary filter. The proportional
// term pulls the gyro-integrated attitude toward the measured gravity (and
// magnetic field) direction; the integral term absorbs slow gyro bias.
//
// Reference: Mahony, Hamel & Pflimlin, "Nonlinear complementary filters on
// the special orthogonal group".
type Mahony struct {
	Kp float32
	Ki float32

	// Integral feedback, rad/s. Approximately the negated gyro bias.
	ifb Vector3
}

// Feedback corrections are capped so a bad accel/mag sample cannot slew the
// attitude faster than this rate in rad/s.
const maxFeedbackRate = 0.5

func NewMahony(kp, ki float32) *Mahony {
	return &Mahony{Kp: kp, Ki: ki}
}

func (m *Mahony) Bias() Vector3 {
	return m.ifb.Scale(-1)
}

func (m *Mahony) SetGain(g float32) {
	m.Kp = g
}

func (m *Mahony) Reset() {
	m.ifb = Vector3{}
}

func (m *Mahony) Step(q Quaternion, s SensorSample, dt, gain float32) (Quaternion, bool) {
	omega := s.Gyro

	var e Vector3
	haveErr := false

	if gain > 0 {
		if a, ok := s.Accel.Normalized(); ok {
			// Error is the cross product between the measured and the
			// predicted gravity direction.
			e = e.Add(a.Cross(q.GravityBody()))
			haveErr = true
		}
		if s.Mag != nil {
			if mn, ok := s.Mag.Normalized(); ok {
				e = e.Add(mn.Cross(fieldBody(q, mn)))
				haveErr = true
			}
		}
	}

	if haveErr {
		if m.Ki > 0 {
			m.ifb = m.ifb.Add(e.Scale(m.Ki * gain * dt))
		}
		fb := e.Scale(m.Kp * gain)
		fb.X = clamp(fb.X, maxFeedbackRate)
		fb.Y = clamp(fb.Y, maxFeedbackRate)
		fb.Z = clamp(fb.Z, maxFeedbackRate)
		omega = omega.Add(fb)
	}
	omega = omega.Add(m.ifb)

	return q.Integrate(omega, dt).Normalized()
}

// fieldBody predicts the direction of the Earth's magnetic field in the body
// frame. The horizontal reference is taken from the measured field itself so
// no local declination/inclination model is needed.
func fieldBody(q Quaternion, mn Vector3) Vector3 {
	q0, q1, q2, q3 := q.W, q.X, q.Y, q.Z

	// Measured field rotated into the world frame; collapse the horizontal
	// components into a single north-aligned bx.
	hx := 2*mn.X*(0.5-q2*q2-q3*q3) + 2*mn.Y*(q1*q2-q0*q3) + 2*mn.Z*(q1*q3+q0*q2)
	hy := 2*mn.X*(q1*q2+q0*q3) + 2*mn.Y*(0.5-q1*q1-q3*q3) + 2*mn.Z*(q2*q3-q0*q1)
	bx := math32.Sqrt(hx*hx + hy*hy)
	bz := 2*mn.X*(q1*q3-q0*q2) + 2*mn.Y*(q2*q3+q0*q1) + 2*mn.Z*(0.5-q1*q1-q2*q2)

	return Vector3{
		X: 2*bx*(0.5-q2*q2-q3*q3) + 2*bz*(q1*q3-q0*q2),
		Y: 2*bx*(q1*q2-q0*q3) + 2*bz*(q0*q1+q2*q3),
		Z: 2*bx*(q0*q2+q1*q3) + 2*bz*(0.5-q1*q1-q2*q2),
	}
}

func clamp(v, limit float32) float32 {
	if v > limit {
		return limit
	}
	if v < -limit {
		return -limit
	}
	return v
}
