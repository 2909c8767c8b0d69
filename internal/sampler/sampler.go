// Package sampler turns raw IMU register counts into physical-unit,
// body-frame SensorSamples.
package sampler

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"

	"ahrsd/internal/ahrs"
	"ahrsd/internal/sensors/icm20948"
)

// ErrNotReady reports that the sensor had no fresh sample this tick. The
// caller skips the tick and lets the filter coast; data is never fabricated.
var ErrNotReady = errors.New("sampler: sensor data not ready")

// BusError wraps a bus-level communication failure.
type BusError struct {
	Err error
}

func (e *BusError) Error() string { return fmt.Sprintf("sampler: bus fault: %v", e.Err) }
func (e *BusError) Unwrap() error { return e.Err }

// Device is the sensor the sampler reads. *icm20948.Device satisfies it.
type Device interface {
	DataReady() (bool, error)
	Read() (icm20948.RawSample, error)
}

// Unit conversion factors for the driver's configured full-scale ranges.
const (
	gyroRadPerCount  = (math32.Pi / 180) / icm20948.GyroLSBPerDPS
	accelGPerCount   = 1.0 / icm20948.AccelLSBPerG
	magGaussPerCount = icm20948.MagMicroTeslaPerLSB / 100 // 1 gauss = 100 µT
)

type Config struct {
	// AxisMap maps sensor axes into the body frame: entry i (body X, Y, Z)
	// holds ±1..±3 selecting the signed sensor axis. The zero value means
	// identity.
	AxisMap [3]int

	// MagEnabled gates whether mag readings are forwarded at all.
	MagEnabled bool
}

type Sampler struct {
	dev  Device
	axis [3]int
	mag  bool
}

func New(dev Device, cfg Config) (*Sampler, error) {
	if dev == nil {
		return nil, fmt.Errorf("sampler: device is nil")
	}
	axis := cfg.AxisMap
	if axis == [3]int{} {
		axis = [3]int{1, 2, 3}
	}
	var seen [3]bool
	for _, v := range axis {
		a := v
		if a < 0 {
			a = -a
		}
		if a < 1 || a > 3 || seen[a-1] {
			return nil, fmt.Errorf("sampler: invalid axis map %v", cfg.AxisMap)
		}
		seen[a-1] = true
	}
	return &Sampler{dev: dev, axis: axis, mag: cfg.MagEnabled}, nil
}

// Sample performs one bus transaction burst and returns the reading stamped
// with tick. Returns ErrNotReady when the data-ready condition is not yet
// satisfied, or a *BusError on communication failure.
func (s *Sampler) Sample(tick ahrs.Ticks) (ahrs.SensorSample, error) {
	ready, err := s.dev.DataReady()
	if err != nil {
		return ahrs.SensorSample{}, &BusError{Err: err}
	}
	if !ready {
		return ahrs.SensorSample{}, ErrNotReady
	}

	raw, err := s.dev.Read()
	if err != nil {
		return ahrs.SensorSample{}, &BusError{Err: err}
	}

	out := ahrs.SensorSample{
		Ticks: tick,
		Gyro: s.remap(ahrs.Vector3{
			X: float32(raw.Gx) * gyroRadPerCount,
			Y: float32(raw.Gy) * gyroRadPerCount,
			Z: float32(raw.Gz) * gyroRadPerCount,
		}),
		Accel: s.remap(ahrs.Vector3{
			X: float32(raw.Ax) * accelGPerCount,
			Y: float32(raw.Ay) * accelGPerCount,
			Z: float32(raw.Az) * accelGPerCount,
		}),
	}

	if s.mag && raw.MagValid {
		m := s.remap(ahrs.Vector3{
			X: float32(raw.Mx) * magGaussPerCount,
			Y: float32(raw.My) * magGaussPerCount,
			Z: float32(raw.Mz) * magGaussPerCount,
		})
		out.Mag = &m
	}

	return out, nil
}

func (s *Sampler) remap(v ahrs.Vector3) ahrs.Vector3 {
	in := [3]float32{v.X, v.Y, v.Z}
	var out [3]float32
	for i, sel := range s.axis {
		if sel < 0 {
			out[i] = -in[-sel-1]
		} else {
			out[i] = in[sel-1]
		}
	}
	return ahrs.Vector3{X: out[0], Y: out[1], Z: out[2]}
}
