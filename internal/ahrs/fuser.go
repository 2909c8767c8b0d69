package ahrs

// Fuser is one step of a complementary fusion algorithm. Implementations
// integrate the gyro rate into q over dt seconds and blend in the
// accelerometer (and magnetometer, when present) correction.
//
// gain scales the corrective feedback: 1 in steady state, larger while the
// estimator is converging, smaller (down to 0) when the accelerometer is not
// trusted. gain 0 must reduce the step to pure gyro integration.
//
// The returned quaternion is unit-norm; ok is false when normalization
// failed (non-finite state), which the estimator treats as divergence.
//
// Fusers are not safe for concurrent use.
type Fuser interface {
	Step(q Quaternion, s SensorSample, dt, gain float32) (Quaternion, bool)

	// Bias reports the fuser's current gyro bias estimate in rad/s, or a
	// zero vector for fusers without bias estimation.
	Bias() Vector3

	// SetGain replaces the steady-state fusion gain (Kp for Mahony, beta
	// for Madgwick).
	SetGain(g float32)

	// Reset clears internal state (integral terms, bias estimate).
	Reset()
}
