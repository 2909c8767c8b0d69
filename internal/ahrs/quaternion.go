package ahrs

import "github.com/chewxy/math32"

// NormTolerance is the maximum allowed deviation of the orientation
// quaternion norm from 1 after an update.
const NormTolerance = 1e-3

// Quaternion is a w+xi+yj+zk rotation quaternion. Orientation quaternions
// are kept unit-norm; every filter update re-normalizes on exit.
type Quaternion struct {
	W, X, Y, Z float32
}

func Identity() Quaternion {
	return Quaternion{W: 1}
}

// Mul returns the Hamilton product q*o.
func (q Quaternion) Mul(o Quaternion) Quaternion {
	return Quaternion{
		W: q.W*o.W - q.X*o.X - q.Y*o.Y - q.Z*o.Z,
		X: q.W*o.X + q.X*o.W + q.Y*o.Z - q.Z*o.Y,
		Y: q.W*o.Y - q.X*o.Z + q.Y*o.W + q.Z*o.X,
		Z: q.W*o.Z + q.X*o.Y - q.Y*o.X + q.Z*o.W,
	}
}

func (q Quaternion) Conjugate() Quaternion {
	return Quaternion{W: q.W, X: -q.X, Y: -q.Y, Z: -q.Z}
}

func (q Quaternion) Norm() float32 {
	return math32.Sqrt(q.W*q.W + q.X*q.X + q.Y*q.Y + q.Z*q.Z)
}

// Normalized returns the unit quaternion along q. ok is false when the norm
// is zero or non-finite; callers treat that as filter divergence.
func (q Quaternion) Normalized() (Quaternion, bool) {
	n := q.Norm()
	if n == 0 || math32.IsNaN(n) || math32.IsInf(n, 0) {
		return Identity(), false
	}
	inv := 1 / n
	return Quaternion{W: q.W * inv, X: q.X * inv, Y: q.Y * inv, Z: q.Z * inv}, true
}

// Integrate applies a first-order quaternion derivative for angular rate
// omega (rad/s, body frame) over dt seconds: q + 0.5*dt*(q ⊗ [0, omega]).
// The result is not normalized.
func (q Quaternion) Integrate(omega Vector3, dt float32) Quaternion {
	h := 0.5 * dt
	return Quaternion{
		W: q.W + h*(-q.X*omega.X-q.Y*omega.Y-q.Z*omega.Z),
		X: q.X + h*(q.W*omega.X+q.Y*omega.Z-q.Z*omega.Y),
		Y: q.Y + h*(q.W*omega.Y-q.X*omega.Z+q.Z*omega.X),
		Z: q.Z + h*(q.W*omega.Z+q.X*omega.Y-q.Y*omega.X),
	}
}

// GravityBody returns the direction of gravity in the body frame predicted
// by q (the rotated world +Z axis).
func (q Quaternion) GravityBody() Vector3 {
	return Vector3{
		X: 2 * (q.X*q.Z - q.W*q.Y),
		Y: 2 * (q.W*q.X + q.Y*q.Z),
		Z: q.W*q.W - q.X*q.X - q.Y*q.Y + q.Z*q.Z,
	}
}

// Euler returns roll, pitch and yaw in radians (aerospace Z-Y-X order).
func (q Quaternion) Euler() (roll, pitch, yaw float32) {
	roll = math32.Atan2(2*(q.W*q.X+q.Y*q.Z), 1-2*(q.X*q.X+q.Y*q.Y))

	sinp := 2 * (q.W*q.Y - q.Z*q.X)
	if sinp >= 1 {
		pitch = math32.Pi / 2
	} else if sinp <= -1 {
		pitch = -math32.Pi / 2
	} else {
		pitch = math32.Asin(sinp)
	}

	yaw = math32.Atan2(2*(q.W*q.Z+q.X*q.Y), 1-2*(q.Y*q.Y+q.Z*q.Z))
	return roll, pitch, yaw
}

// FromGravity builds the quaternion that rotates the measured gravity
// direction onto the world +Z axis, i.e. a roll/pitch-only attitude seed.
// Returns identity when accel is degenerate.
func FromGravity(accel Vector3) Quaternion {
	a, ok := accel.Normalized()
	if !ok {
		return Identity()
	}
	// Shortest-arc rotation from a to (0,0,1).
	w := 1 + a.Z
	if w < 1e-6 {
		// Upside down: rotate pi about X.
		return Quaternion{X: 1}
	}
	q := Quaternion{W: w, X: a.Y, Y: -a.X, Z: 0}
	q, _ = q.Normalized()
	return q
}
