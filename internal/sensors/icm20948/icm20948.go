package icm20948

import (
	"fmt"
	"time"

	"ahrsd/internal/i2c"
)

var sleep = time.Sleep

// ICM-20948 driver with the embedded AK09916 magnetometer reached over the
// I2C bypass mux. Returns raw register counts; unit scaling and axis
// remapping are the sampler's job.
//
// Register choices follow the ICM-20948 map:
// - WHO_AM_I at 0x00 returns 0xEA.
// - AK09916 WIA at 0x00/0x01 returns 0x48, 0x09.

const (
	addrDefault    = 0x68
	magAddrDefault = 0x0C

	regWhoAmI  = 0x00
	whoAmIVal  = 0xEA
	regBankSel = 0x7F

	// Bank 0.
	regUserCtrl   = 0x03
	regPwrMgmt1   = 0x06
	regIntPinCfg  = 0x0F
	regIntStatus1 = 0x1A
	regAccelXoutH = 0x2D // contiguous accel+gyro block
	regIntEnable  = 0x38

	bitReset      = 0x80
	bitClkPLL     = 0x01
	bitI2CMstRst  = 0x02
	bitBypassEn   = 0x02
	bitRawDataRdy = 0x01

	// Bank 2.
	bank2           = 2
	regGyroSmplrt   = 0x00
	regGyroConfig   = 0x01
	regAccelSmplrt2 = 0x11
	regAccelConfig  = 0x14

	fsGyro250dps = 0x00
	fsAccel2g    = 0x00

	// AK09916.
	magRegWhoAmI = 0x00
	magWhoAmIVal = 0x0948
	magRegSt1    = 0x10
	magRegCntl2  = 0x31
	magMode100Hz = 0x08
	bitMagDrdy   = 0x01

	// Internal sample base rate with the DLPF chain at defaults. The
	// sample-rate divider is 8 bits, so the slowest programmable rate is
	// 1125/256 Hz; minRateHz is the lowest integer rate the divider can hit.
	baseRateHz = 1125
	minRateHz  = 5
)

// Sensitivity constants for the configured full-scale ranges.
const (
	AccelLSBPerG        = 16384.0 // ±2 g
	GyroLSBPerDPS       = 131.0   // ±250 dps
	MagMicroTeslaPerLSB = 0.15
)

// RawSample is one burst read, in raw counts. Accel/gyro are big-endian on
// the wire, mag little-endian; both already byte-swapped here. MagValid is
// false when the magnetometer is absent or had no fresh data.
type RawSample struct {
	Ax, Ay, Az int16
	Gx, Gy, Gz int16
	Mx, My, Mz int16
	MagValid   bool
}

type regIO interface {
	ReadRegU8(reg byte) (byte, error)
	ReadReg(reg byte, dst []byte) error
	WriteReg(reg, value byte) error
}

type Device struct {
	imu regIO
	mag regIO // nil when the magnetometer is disabled

	curBank byte
}

func DefaultAddress() uint16    { return addrDefault }
func DefaultMagAddress() uint16 { return magAddrDefault }

// New probes and configures the IMU at rateHz. Pass a nil magDev to run
// without the magnetometer.
func New(imuDev, magDev *i2c.Dev, rateHz int) (*Device, error) {
	if imuDev == nil {
		return nil, fmt.Errorf("icm20948: imu dev is nil")
	}
	var mag regIO
	if magDev != nil {
		mag = magDev
	}
	return newWithIO(imuDev, mag, rateHz)
}

func newWithIO(imu, mag regIO, rateHz int) (*Device, error) {
	if imu == nil {
		return nil, fmt.Errorf("icm20948: imu dev is nil")
	}
	if rateHz < minRateHz || rateHz > baseRateHz {
		return nil, fmt.Errorf("icm20948: rate %d Hz out of range %d..%d", rateHz, minRateHz, baseRateHz)
	}
	d := &Device{imu: imu, mag: mag, curBank: 0xFF}

	who, err := d.imu.ReadRegU8(regWhoAmI)
	if err != nil {
		return nil, fmt.Errorf("icm20948: whoami read failed: %w", err)
	}
	if who != whoAmIVal {
		return nil, fmt.Errorf("icm20948: whoami=0x%02X want 0x%02X", who, whoAmIVal)
	}

	if err := d.init(rateHz); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Device) init(rateHz int) error {
	if err := d.setBank(0); err != nil {
		return err
	}

	// Interrupt routing stays disabled; data-ready is polled (or paced by
	// the external DRDY line, which needs no INT_ENABLE config for reads).
	_ = d.imu.WriteReg(regIntEnable, 0x00)

	if err := d.imu.WriteReg(regPwrMgmt1, bitReset); err != nil {
		return fmt.Errorf("icm20948: reset failed: %w", err)
	}
	sleep(100 * time.Millisecond)

	// Wake with the PLL clock; CLKSEL 1..5 is required for full gyro
	// performance per the register map.
	if err := d.imu.WriteReg(regPwrMgmt1, bitClkPLL); err != nil {
		return fmt.Errorf("icm20948: wake failed: %w", err)
	}
	sleep(10 * time.Millisecond)

	if d.mag != nil {
		if err := d.initMag(); err != nil {
			return err
		}
	}

	if err := d.SetRate(rateHz); err != nil {
		return err
	}

	if err := d.setBank(bank2); err != nil {
		return err
	}
	if err := d.imu.WriteReg(regGyroConfig, fsGyro250dps); err != nil {
		return fmt.Errorf("icm20948: gyro config failed: %w", err)
	}
	if err := d.imu.WriteReg(regAccelConfig, fsAccel2g); err != nil {
		return fmt.Errorf("icm20948: accel config failed: %w", err)
	}

	return d.setBank(0)
}

// initMag opens the bypass mux so the AK09916 appears directly on the bus,
// probes it and puts it in 100 Hz continuous mode.
func (d *Device) initMag() error {
	if err := d.setBank(0); err != nil {
		return err
	}
	if err := d.imu.WriteReg(regUserCtrl, bitI2CMstRst); err != nil {
		return fmt.Errorf("icm20948: i2c master reset failed: %w", err)
	}
	if err := d.imu.WriteReg(regIntPinCfg, bitBypassEn); err != nil {
		return fmt.Errorf("icm20948: bypass enable failed: %w", err)
	}
	sleep(10 * time.Millisecond)

	var wia [2]byte
	if err := d.mag.ReadReg(magRegWhoAmI, wia[:]); err != nil {
		return fmt.Errorf("icm20948: mag whoami read failed: %w", err)
	}
	got := uint16(wia[0]) | uint16(wia[1])<<8
	if got != magWhoAmIVal {
		return fmt.Errorf("icm20948: mag whoami=0x%04X want 0x%04X", got, magWhoAmIVal)
	}

	if err := d.mag.WriteReg(magRegCntl2, magMode100Hz); err != nil {
		return fmt.Errorf("icm20948: mag mode set failed: %w", err)
	}
	return nil
}

// SetRate reprograms the accel/gyro sample-rate dividers.
// Divided rate = 1125/(div+1). Rates below minRateHz would need a divider
// wider than the 8-bit register, so they are rejected rather than truncated.
func (d *Device) SetRate(rateHz int) error {
	if rateHz < minRateHz || rateHz > baseRateHz {
		return fmt.Errorf("icm20948: rate %d Hz out of range %d..%d", rateHz, minRateHz, baseRateHz)
	}
	if err := d.setBank(bank2); err != nil {
		return err
	}
	div := byte(baseRateHz/rateHz - 1)
	if err := d.imu.WriteReg(regGyroSmplrt, div); err != nil {
		return fmt.Errorf("icm20948: gyro rate set failed: %w", err)
	}
	if err := d.imu.WriteReg(regAccelSmplrt2, div); err != nil {
		return fmt.Errorf("icm20948: accel rate set failed: %w", err)
	}
	return d.setBank(0)
}

func (d *Device) setBank(bank byte) error {
	if d.curBank == bank {
		return nil
	}
	if err := d.imu.WriteReg(regBankSel, (bank<<4)&0x30); err != nil {
		return fmt.Errorf("icm20948: set bank %d failed: %w", bank, err)
	}
	d.curBank = bank
	return nil
}

// DataReady reports whether a new accel/gyro sample is waiting.
func (d *Device) DataReady() (bool, error) {
	if err := d.setBank(0); err != nil {
		return false, err
	}
	st, err := d.imu.ReadRegU8(regIntStatus1)
	if err != nil {
		return false, fmt.Errorf("icm20948: int status read failed: %w", err)
	}
	return st&bitRawDataRdy != 0, nil
}

// Read bursts the accel+gyro block and, when configured, the magnetometer.
// A mag with no fresh data leaves MagValid false; only bus failures error.
func (d *Device) Read() (RawSample, error) {
	if d == nil {
		return RawSample{}, fmt.Errorf("icm20948: device is nil")
	}
	if err := d.setBank(0); err != nil {
		return RawSample{}, err
	}

	var buf [12]byte
	if err := d.imu.ReadReg(regAccelXoutH, buf[:]); err != nil {
		return RawSample{}, fmt.Errorf("icm20948: read sensors failed: %w", err)
	}

	s := RawSample{
		Ax: int16(buf[0])<<8 | int16(buf[1]),
		Ay: int16(buf[2])<<8 | int16(buf[3]),
		Az: int16(buf[4])<<8 | int16(buf[5]),
		Gx: int16(buf[6])<<8 | int16(buf[7]),
		Gy: int16(buf[8])<<8 | int16(buf[9]),
		Gz: int16(buf[10])<<8 | int16(buf[11]),
	}

	if d.mag != nil {
		// 9-byte burst: ST1, 6 data bytes (LE), dummy, ST2. Reading
		// through ST2 is required to release the AK09916 data latch.
		var mb [9]byte
		if err := d.mag.ReadReg(magRegSt1, mb[:]); err != nil {
			return RawSample{}, fmt.Errorf("icm20948: mag read failed: %w", err)
		}
		if mb[0]&bitMagDrdy != 0 {
			s.Mx = int16(mb[1]) | int16(mb[2])<<8
			s.My = int16(mb[3]) | int16(mb[4])<<8
			s.Mz = int16(mb[5]) | int16(mb[6])<<8
			s.MagValid = true
		}
	}

	return s, nil
}
