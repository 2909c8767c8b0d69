package ahrs

import "github.com/chewxy/math32"

// Vector3 is a three-component float32 vector. Units depend on context:
// rad/s for angular rate, g for acceleration, gauss for magnetic field.
type Vector3 struct {
	X, Y, Z float32
}

func (v Vector3) Add(o Vector3) Vector3 {
	return Vector3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

func (v Vector3) Sub(o Vector3) Vector3 {
	return Vector3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

func (v Vector3) Scale(s float32) Vector3 {
	return Vector3{v.X * s, v.Y * s, v.Z * s}
}

func (v Vector3) Dot(o Vector3) float32 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

func (v Vector3) Cross(o Vector3) Vector3 {
	return Vector3{
		v.Y*o.Z - v.Z*o.Y,
		v.Z*o.X - v.X*o.Z,
		v.X*o.Y - v.Y*o.X,
	}
}

func (v Vector3) Norm() float32 {
	return math32.Sqrt(v.Dot(v))
}

// Normalized returns the unit vector along v. ok is false for a zero or
// non-finite vector, in which case the zero vector is returned.
func (v Vector3) Normalized() (Vector3, bool) {
	n := v.Norm()
	if n == 0 || math32.IsNaN(n) || math32.IsInf(n, 0) {
		return Vector3{}, false
	}
	return v.Scale(1 / n), true
}
