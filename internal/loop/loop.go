// Package loop drives the fixed-rate tick: command, sample, fuse, frame,
// transmit. One goroutine owns the filter state; everything outside sees
// read-only snapshots.
package loop

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"ahrsd/internal/ahrs"
	"ahrsd/internal/clock"
	"ahrsd/internal/frame"
	"ahrsd/internal/sampler"
	"ahrsd/internal/transport"
)

var nowFn = time.Now

// Sampler produces one reading per tick. *sampler.Sampler satisfies it.
type Sampler interface {
	Sample(tick ahrs.Ticks) (ahrs.SensorSample, error)
}

type Config struct {
	// RateHz is the tick rate. Default 100.
	RateHz int
	// Telemetry selects the outbound payload type. Default TypeAttitude.
	Telemetry byte
	// CommandQueue bounds pending decoded commands. Newest are dropped on
	// overflow. Default 8.
	CommandQueue int
	// MaxBiasWindow caps OpCalibrateBias sample counts. Default 2000.
	MaxBiasWindow int
}

func (c *Config) applyDefaults() {
	if c.RateHz <= 0 {
		c.RateHz = 100
	}
	if c.Telemetry == 0 {
		c.Telemetry = frame.TypeAttitude
	}
	if c.CommandQueue <= 0 {
		c.CommandQueue = 8
	}
	if c.MaxBiasWindow <= 0 {
		c.MaxBiasWindow = 2000
	}
}

// Snapshot is the externally visible loop state.
type Snapshot struct {
	Valid bool   `json:"valid"`
	State string `json:"state"`

	Quat     [4]float32 `json:"quat"` // w, x, y, z
	RollDeg  float64    `json:"roll_deg"`
	PitchDeg float64    `json:"pitch_deg"`
	YawDeg   float64    `json:"yaw_deg"`
	Tick     uint32     `json:"tick"`
	RateHz   int        `json:"rate_hz"`

	SensorFaults    uint64 `json:"sensor_faults"`
	MissedSamples   uint64 `json:"missed_samples"`
	CorruptFrames   uint64 `json:"corrupt_frames"`
	DroppedCommands uint64 `json:"dropped_commands"`
	Reconverges     uint64 `json:"reconverges"`

	LastError string    `json:"last_error,omitempty"`
	UpdatedAt time.Time `json:"updated_at_utc"`
}

type Service struct {
	cfg Config

	est   *ahrs.Estimator
	smp   Sampler
	pacer clock.Pacer
	host  transport.Transport
	aux   []transport.Transport

	// onState, when set, receives a copy of every published snapshot on
	// the loop goroutine; it must not block.
	onState func(Snapshot)

	// deviceRate, when set, reprograms the sensor's own sample dividers
	// on an OpSetRate command.
	deviceRate func(hz int) error

	dec  *frame.Decoder
	cmds chan frame.Command

	mu   sync.RWMutex
	snap Snapshot

	telemetry    byte
	tick         ahrs.Ticks
	lastSample   time.Time
	dropped      uint64
	faults       uint64
	missed       uint64
	badCommands  uint64
	biasLeft     int
	biasWindow   int
	biasSum      ahrs.Vector3
	readBuf      [256]byte

	started  bool
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func New(cfg Config, est *ahrs.Estimator, smp Sampler, pacer clock.Pacer, host transport.Transport) *Service {
	cfg.applyDefaults()
	return &Service{
		cfg:       cfg,
		est:       est,
		smp:       smp,
		pacer:     pacer,
		host:      host,
		dec:       frame.NewDecoder(),
		cmds:      make(chan frame.Command, cfg.CommandQueue),
		telemetry: cfg.Telemetry,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// AttachAux adds a write-only telemetry fan-out (e.g. UDP). Must be called
// before Start.
func (s *Service) AttachAux(t transport.Transport) {
	s.aux = append(s.aux, t)
}

// OnState installs a per-tick snapshot callback. Must be called before
// Start; the callback must not block.
func (s *Service) OnState(fn func(Snapshot)) {
	s.onState = fn
}

// OnSetRate installs the hook that reprograms the sensor for a new rate.
// Must be called before Start.
func (s *Service) OnSetRate(fn func(hz int) error) {
	s.deviceRate = fn
}

func (s *Service) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

func (s *Service) Start(ctx context.Context) error {
	if s.est == nil || s.smp == nil || s.pacer == nil || s.host == nil {
		return errors.New("loop: missing collaborator")
	}
	s.started = true
	go s.run(ctx)
	return nil
}

func (s *Service) Close() {
	if s == nil {
		return
	}
	s.stopOnce.Do(func() { close(s.stopCh) })
	if s.started {
		<-s.doneCh
	}
}

func (s *Service) run(ctx context.Context) {
	defer close(s.doneCh)
	defer s.pacer.Close()
	for {
		if err := s.pacer.Wait(ctx); err != nil {
			return
		}
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}
		s.tickOnce()
	}
}

// tickOnce runs one scheduler tick: drain at most one command, sample, fuse,
// frame, transmit. If a tick overruns we run late; the filter's dt comes
// from real timestamps, so the estimate stays numerically consistent.
func (s *Service) tickOnce() {
	s.tick++
	s.pollInbound()

	select {
	case cmd := <-s.cmds:
		s.apply(cmd)
	default:
	}

	now := nowFn()
	sample, err := s.smp.Sample(s.tick)
	if err != nil {
		s.handleSampleError(err, now)
		return
	}

	var dt float32
	if !s.lastSample.IsZero() {
		dt = float32(now.Sub(s.lastSample).Seconds())
	}
	s.lastSample = now

	if s.biasLeft > 0 {
		s.biasSum = s.biasSum.Add(sample.Gyro)
		s.biasLeft--
		if s.biasLeft == 0 {
			s.est.SetGyroBias(s.biasSum.Scale(1 / float32(s.biasWindow)))
		}
	}

	st, err := s.est.Update(sample, dt)
	lastErr := ""
	if err != nil {
		lastErr = err.Error()
	}

	payload := s.encodeTelemetry(st, sample)
	framed := frame.Encode(payload)
	if _, werr := s.host.TryWrite(framed); werr != nil && lastErr == "" {
		lastErr = werr.Error()
	}
	for _, t := range s.aux {
		_, _ = t.TryWrite(framed)
	}

	s.publish(st, now, lastErr)
}

func (s *Service) encodeTelemetry(st ahrs.FilterState, sample ahrs.SensorSample) []byte {
	if s.telemetry == frame.TypeExtended {
		return frame.EncodeExtended(st.Orientation, sample)
	}
	return frame.EncodeAttitude(st.Orientation, st.LastUpdate)
}

func (s *Service) handleSampleError(err error, now time.Time) {
	var busErr *sampler.BusError
	switch {
	case errors.Is(err, sampler.ErrNotReady):
		s.missed++
	case errors.As(err, &busErr):
		s.faults++
	default:
		s.faults++
	}

	msg := err.Error()
	if merr := s.est.Miss(); merr != nil {
		msg = merr.Error()
	}
	s.publish(s.est.State(), now, msg)
}

func (s *Service) apply(cmd frame.Command) {
	switch cmd.Op {
	case frame.OpResetOrientation:
		s.est.ResetOrientation()
	case frame.OpSetRate:
		hz := int(cmd.RateHz)
		if hz < 5 || hz > 500 {
			s.badCommands++
			return
		}
		// The device goes first: if its dividers cannot be reprogrammed the
		// old rate stays in force and the pacer must not drift away from it.
		if s.deviceRate != nil {
			if err := s.deviceRate(hz); err != nil {
				s.faults++
				return
			}
		}
		s.cfg.RateHz = hz
		s.pacer.SetPeriod(time.Second / time.Duration(hz))
	case frame.OpCalibrateBias:
		n := int(cmd.BiasCount)
		if n <= 0 {
			n = 200
		}
		if n > s.cfg.MaxBiasWindow {
			n = s.cfg.MaxBiasWindow
		}
		s.biasLeft = n
		s.biasWindow = n
		s.biasSum = ahrs.Vector3{}
	case frame.OpSetGain:
		if cmd.Gain > 0 {
			s.est.SetGain(cmd.Gain)
		}
	case frame.OpSetTelemetry:
		if cmd.Telemetry == frame.TypeAttitude || cmd.Telemetry == frame.TypeExtended {
			s.telemetry = cmd.Telemetry
		}
	}
}

// pollInbound pulls whatever the host sent since the last tick through the
// frame decoder and queues decoded commands for upcoming ticks.
func (s *Service) pollInbound() {
	n, err := s.host.TryRead(s.readBuf[:])
	if err != nil || n == 0 {
		return
	}
	for _, payload := range s.dec.Feed(s.readBuf[:n]) {
		cmd, perr := frame.ParseCommand(payload)
		if perr != nil {
			s.badCommands++
			continue
		}
		select {
		case s.cmds <- cmd:
		default:
			s.dropped++
		}
	}
}

func (s *Service) publish(st ahrs.FilterState, now time.Time, lastErr string) {
	roll, pitch, yaw := st.Orientation.Euler()
	snap := Snapshot{
		Valid:           st.State == ahrs.StateTracking,
		State:           st.State.String(),
		Quat:            [4]float32{st.Orientation.W, st.Orientation.X, st.Orientation.Y, st.Orientation.Z},
		RollDeg:         float64(roll) * 180 / math.Pi,
		PitchDeg:        float64(pitch) * 180 / math.Pi,
		YawDeg:          float64(yaw) * 180 / math.Pi,
		Tick:            uint32(s.tick),
		RateHz:          s.cfg.RateHz,
		SensorFaults:    s.faults,
		MissedSamples:   s.missed,
		CorruptFrames:   s.dec.Corrupt() + s.badCommands,
		DroppedCommands: s.dropped,
		Reconverges:     s.est.Reconverges(),
		LastError:       lastErr,
		UpdatedAt:       now.UTC(),
	}

	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()

	if s.onState != nil {
		s.onState(snap)
	}
}
