package ahrs

// Ticks is a monotonic scheduler tick count. One tick is one period of the
// configured sample rate; it wraps after ~497 days at 100 Hz.
type Ticks uint32

// SensorSample is one timestamped reading from the IMU, already converted to
// physical units and remapped into the body frame. Mag is nil when the
// magnetometer is absent or had no fresh data this tick.
type SensorSample struct {
	Ticks Ticks
	Gyro  Vector3  // rad/s
	Accel Vector3  // g
	Mag   *Vector3 // gauss
}

// FilterState is the fused orientation estimate after an update. It is owned
// by the scheduler tick; everything else sees copies.
type FilterState struct {
	Orientation Quaternion
	LastUpdate  Ticks
	GyroBias    Vector3
	State       State
}
