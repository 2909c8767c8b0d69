package ahrs

import (
	"errors"

	"github.com/chewxy/math32"
)

var (
	// ErrStaleData reports that no valid sample arrived within the
	// configured coast window; the estimate is reverting to Converging.
	ErrStaleData = errors.New("ahrs: stale sensor data")

	// ErrDivergence reports that the orientation left the unit sphere
	// beyond tolerance; the estimate has been re-seeded.
	ErrDivergence = errors.New("ahrs: filter divergence")
)

// State is the estimator lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StateConverging
	StateTracking
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateConverging:
		return "converging"
	case StateTracking:
		return "tracking"
	}
	return "unknown"
}

type EstimatorConfig struct {
	// ConvergeTicks is how many updates run with boosted gain after
	// (re)initialization before the estimator reports Tracking.
	ConvergeTicks int
	// ConvergeBoost multiplies the fusion gain while converging.
	ConvergeBoost float32
	// MaxCoastTicks bounds how many consecutive missed samples are
	// tolerated before the estimate is declared stale.
	MaxCoastTicks int
	// AccelTrustBand is the deviation of |accel| from 1 g (in g) inside
	// which the accelerometer correction gets full weight.
	AccelTrustBand float32
	// AccelRejectBand is the deviation at which the correction weight
	// reaches zero. Between the two bands the weight falls off linearly.
	AccelRejectBand float32
}

func (c *EstimatorConfig) applyDefaults() {
	if c.ConvergeTicks <= 0 {
		c.ConvergeTicks = 100
	}
	if c.ConvergeBoost <= 0 {
		c.ConvergeBoost = 5
	}
	if c.MaxCoastTicks <= 0 {
		c.MaxCoastTicks = 25
	}
	if c.AccelTrustBand <= 0 {
		c.AccelTrustBand = 0.1
	}
	if c.AccelRejectBand <= c.AccelTrustBand {
		c.AccelRejectBand = c.AccelTrustBand + 0.3
	}
}

// Estimator wraps a Fuser with the Uninitialized/Converging/Tracking
// lifecycle, adaptive accelerometer trust, stale-data coasting and
// divergence recovery. It owns the FilterState; callers get copies.
//
// Not safe for concurrent use: exactly one goroutine (the scheduler tick)
// drives it.
type Estimator struct {
	cfg   EstimatorConfig
	fuser Fuser

	st           FilterState
	gyroBias     Vector3
	convergeLeft int
	coastTicks   int
	reconverges  uint64
}

func NewEstimator(f Fuser, cfg EstimatorConfig) *Estimator {
	cfg.applyDefaults()
	return &Estimator{
		cfg:   cfg,
		fuser: f,
		st:    FilterState{Orientation: Identity(), State: StateUninitialized},
	}
}

func (e *Estimator) State() FilterState { return e.st }

// Reconverges counts every reseed forced on an initialized estimator: stale
// data knocking Tracking back to Converging, and filter divergence in either
// state.
func (e *Estimator) Reconverges() uint64 { return e.reconverges }

// SetGyroBias installs a static gyro bias (rad/s) subtracted from every
// sample before fusion, e.g. from a stationary calibration window.
func (e *Estimator) SetGyroBias(b Vector3) {
	e.gyroBias = b
	e.st.GyroBias = b
}

// SetGain forwards a new steady-state fusion gain to the underlying fuser.
func (e *Estimator) SetGain(g float32) {
	e.fuser.SetGain(g)
}

// ResetOrientation discards the estimate. The next sample re-seeds from
// gravity and the estimator converges again.
func (e *Estimator) ResetOrientation() {
	e.st.Orientation = Identity()
	e.st.State = StateUninitialized
	e.convergeLeft = 0
	e.coastTicks = 0
	e.fuser.Reset()
}

// Update fuses one sample taken dt seconds after the previous one and
// returns the new state. dt computed from real timestamps absorbs scheduling
// jitter and missed ticks.
func (e *Estimator) Update(s SensorSample, dt float32) (FilterState, error) {
	s.Gyro = s.Gyro.Sub(e.gyroBias)

	if e.st.State == StateUninitialized {
		e.seed(s)
		return e.st, nil
	}

	gain := e.accelTrust(s.Accel.Norm())
	if e.st.State == StateConverging {
		gain *= e.cfg.ConvergeBoost
	}

	q, ok := e.fuser.Step(e.st.Orientation, s, dt, gain)
	if !ok || math32.Abs(q.Norm()-1) > NormTolerance {
		e.reconverges++
		e.seed(s)
		return e.st, ErrDivergence
	}

	e.st.Orientation = q
	e.st.LastUpdate = s.Ticks
	e.st.GyroBias = e.gyroBias.Add(e.fuser.Bias())
	e.coastTicks = 0

	if e.st.State == StateConverging {
		e.convergeLeft--
		if e.convergeLeft <= 0 {
			e.st.State = StateTracking
		}
	}
	return e.st, nil
}

// Miss records a tick with no usable sample. Time still advances (the next
// Update's dt covers the gap); past MaxCoastTicks the estimate is stale and
// the state reverts to Converging.
func (e *Estimator) Miss() error {
	if e.st.State == StateUninitialized {
		return nil
	}
	e.coastTicks++
	if e.coastTicks > e.cfg.MaxCoastTicks && e.st.State == StateTracking {
		e.st.State = StateConverging
		e.convergeLeft = e.cfg.ConvergeTicks
		e.reconverges++
		return ErrStaleData
	}
	return nil
}

func (e *Estimator) seed(s SensorSample) {
	e.st.Orientation = FromGravity(s.Accel)
	e.st.LastUpdate = s.Ticks
	e.st.State = StateConverging
	e.convergeLeft = e.cfg.ConvergeTicks
	e.coastTicks = 0
	e.fuser.Reset()
}

// accelTrust maps the accelerometer magnitude (g) to a correction weight.
// Near 1 g the reading is gravity and fully trusted; under high dynamic
// acceleration the correction fades to zero instead of corrupting attitude.
func (e *Estimator) accelTrust(norm float32) float32 {
	dev := math32.Abs(norm - 1)
	switch {
	case dev <= e.cfg.AccelTrustBand:
		return 1
	case dev >= e.cfg.AccelRejectBand:
		return 0
	default:
		return (e.cfg.AccelRejectBand - dev) / (e.cfg.AccelRejectBand - e.cfg.AccelTrustBand)
	}
}
