package sampler

import (
	"errors"
	"testing"

	"github.com/chewxy/math32"

	"ahrsd/internal/ahrs"
	"ahrsd/internal/sensors/icm20948"
)

type fakeDevice struct {
	ready    bool
	readyErr error
	raw      icm20948.RawSample
	readErr  error
}

func (f *fakeDevice) DataReady() (bool, error) { return f.ready, f.readyErr }

func (f *fakeDevice) Read() (icm20948.RawSample, error) { return f.raw, f.readErr }

func near(a, b float32) bool {
	return math32.Abs(a-b) < 1e-6
}

func TestNew_NilDevice(t *testing.T) {
	if _, err := New(nil, Config{}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestNew_InvalidAxisMap(t *testing.T) {
	cases := [][3]int{
		{1, 1, 2}, // duplicate
		{1, 2, 4}, // out of range
		{0, 2, 3}, // zero entry with others set
	}
	for _, m := range cases {
		if _, err := New(&fakeDevice{}, Config{AxisMap: m}); err == nil {
			t.Fatalf("axis map %v: expected error", m)
		}
	}
}

func TestSample_NotReady(t *testing.T) {
	s, err := New(&fakeDevice{ready: false}, Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = s.Sample(1)
	if !errors.Is(err, ErrNotReady) {
		t.Fatalf("err=%v want ErrNotReady", err)
	}
}

func TestSample_BusErrors(t *testing.T) {
	cause := errors.New("i2c timeout")

	s, err := New(&fakeDevice{readyErr: cause}, Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = s.Sample(1)
	var busErr *BusError
	if !errors.As(err, &busErr) {
		t.Fatalf("err=%v want *BusError", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be wrapped")
	}

	s, err = New(&fakeDevice{ready: true, readErr: cause}, Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = s.Sample(1)
	if !errors.As(err, &busErr) {
		t.Fatalf("err=%v want *BusError", err)
	}
}

func TestSample_UnitConversion(t *testing.T) {
	dev := &fakeDevice{
		ready: true,
		raw: icm20948.RawSample{
			Ax: 16384, // 1 g
			Gy: 131,   // 1 dps
			Mz: 100,   // 15 uT = 0.15 gauss
			Mx: 0, My: 0,
			MagValid: true,
		},
	}
	s, err := New(dev, Config{MagEnabled: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	out, err := s.Sample(7)
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if out.Ticks != 7 {
		t.Fatalf("ticks=%d want 7", out.Ticks)
	}
	if !near(out.Accel.X, 1) {
		t.Fatalf("accel.X=%v want 1 g", out.Accel.X)
	}
	if !near(out.Gyro.Y, math32.Pi/180) {
		t.Fatalf("gyro.Y=%v want 1 dps in rad/s", out.Gyro.Y)
	}
	if out.Mag == nil {
		t.Fatalf("expected mag")
	}
	if !near(out.Mag.Z, 0.15) {
		t.Fatalf("mag.Z=%v want 0.15 gauss", out.Mag.Z)
	}
}

func TestSample_MagGating(t *testing.T) {
	// Fresh mag data but the mag is disabled by config.
	dev := &fakeDevice{ready: true, raw: icm20948.RawSample{MagValid: true}}
	s, err := New(dev, Config{MagEnabled: false})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	out, err := s.Sample(1)
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if out.Mag != nil {
		t.Fatalf("expected Mag=nil when disabled")
	}

	// Enabled but no fresh data this tick.
	dev = &fakeDevice{ready: true, raw: icm20948.RawSample{MagValid: false}}
	s, err = New(dev, Config{MagEnabled: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	out, err = s.Sample(1)
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if out.Mag != nil {
		t.Fatalf("expected Mag=nil when stale")
	}
}

func TestSample_AxisRemap(t *testing.T) {
	// Body X = sensor Y, body Y = -sensor X, body Z = -sensor Z.
	dev := &fakeDevice{
		ready: true,
		raw: icm20948.RawSample{
			Ax: 16384,     // 1 g on sensor X
			Ay: 2 * 16384, // 2 g on sensor Y
			Az: 16384,     // 1 g on sensor Z
		},
	}
	s, err := New(dev, Config{AxisMap: [3]int{2, -1, -3}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	out, err := s.Sample(1)
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	want := ahrs.Vector3{X: 2, Y: -1, Z: -1}
	if !near(out.Accel.X, want.X) || !near(out.Accel.Y, want.Y) || !near(out.Accel.Z, want.Z) {
		t.Fatalf("accel=%+v want %+v", out.Accel, want)
	}
}
