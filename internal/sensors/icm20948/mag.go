package icm20948

import (
	"fmt"
	"time"

	"stratux-ng/internal/i2c"
)

// AK09916 magnetometer, wired behind the ICM-20948's I2C master as a
// separate slave address. Rather than drive the ICM's I2C-master FIFO, we
// put the ICM-20948 into bypass mode (INT_PIN_CFG.BYPASS_EN) so the AK09916
// appears directly on the bus at its own address, and talk to it with a
// second regIO the same way icm20948.Device talks to its own registers.

const (
	magAddrDefault = 0x0C

	regIntPinCfgBypass = 0x0F
	bitBypassEn        = 0x02

	magRegWIA2  = 0x01
	magWIA2Val  = 0x09
	magRegST1   = 0x10
	bitDataRdy  = 0x01
	magRegHXL   = 0x11 // HXL..HZH, 6 bytes, then ST2 at 0x18
	magRegCntl2 = 0x31
	magRegCntl3 = 0x32

	magModeContinuous100Hz = 0x08
	magSoftReset           = 0x01

	// 4912 uT full scale over 16-bit signed -> ~0.15 uT/LSB.
	magScaleUT = 4912.0 / 32752.0
)

// MagSample is a body-frame magnetometer reading in microtesla.
type MagSample struct {
	Time       time.Time
	Mx, My, Mz float64
}

// Magnetometer is the AK09916 reached through the ICM-20948's bypass mode.
type Magnetometer struct {
	dev regIO
}

func DefaultMagAddress() uint16 { return magAddrDefault }

// EnableBypass puts the ICM-20948 into I2C bypass mode so the AK09916
// becomes addressable directly on the shared bus.
func (d *Device) EnableBypass() error {
	if d == nil {
		return fmt.Errorf("icm20948: device is nil")
	}
	if err := d.setBank(0); err != nil {
		return err
	}
	if err := d.dev.WriteReg(regIntPinCfgBypass, bitBypassEn); err != nil {
		return fmt.Errorf("icm20948: enable bypass failed: %w", err)
	}
	sleep(10 * time.Millisecond)
	return nil
}

// NewMagnetometer probes and configures the AK09916. Call Device.EnableBypass
// first so it is visible on the bus.
func NewMagnetometer(dev *i2c.Dev) (*Magnetometer, error) {
	if dev == nil {
		return nil, fmt.Errorf("icm20948: mag dev is nil")
	}
	return newMagWithIO(dev)
}

func newMagWithIO(dev regIO) (*Magnetometer, error) {
	m := &Magnetometer{dev: dev}

	who, err := m.dev.ReadRegU8(magRegWIA2)
	if err != nil {
		return nil, fmt.Errorf("icm20948: mag whoami read failed: %w", err)
	}
	if who != magWIA2Val {
		return nil, fmt.Errorf("icm20948: mag whoami=0x%02X want 0x%02X", who, magWIA2Val)
	}

	if err := m.dev.WriteReg(magRegCntl3, magSoftReset); err != nil {
		return nil, fmt.Errorf("icm20948: mag reset failed: %w", err)
	}
	sleep(10 * time.Millisecond)

	if err := m.dev.WriteReg(magRegCntl2, magModeContinuous100Hz); err != nil {
		return nil, fmt.Errorf("icm20948: mag mode set failed: %w", err)
	}

	return m, nil
}

// Read returns the latest AK09916 sample, in microtesla. A stale reading
// (ST1.DRDY not set) is returned as an error rather than silently repeated.
func (m *Magnetometer) Read() (MagSample, error) {
	if m == nil {
		return MagSample{}, fmt.Errorf("icm20948: magnetometer is nil")
	}

	st1, err := m.dev.ReadRegU8(magRegST1)
	if err != nil {
		return MagSample{}, fmt.Errorf("icm20948: mag st1 read failed: %w", err)
	}
	if st1&bitDataRdy == 0 {
		return MagSample{}, fmt.Errorf("icm20948: mag data not ready")
	}

	buf := make([]byte, 8) // HXL..HZH + ST2, ST2 must be read to latch the next sample
	if err := m.dev.ReadReg(magRegHXL, buf); err != nil {
		return MagSample{}, fmt.Errorf("icm20948: mag read failed: %w", err)
	}

	// AK09916 is little-endian, unlike the ICM-20948's own accel/gyro block.
	hx := int16(buf[1])<<8 | int16(buf[0])
	hy := int16(buf[3])<<8 | int16(buf[2])
	hz := int16(buf[5])<<8 | int16(buf[4])

	return MagSample{
		Time: time.Now(),
		Mx:   float64(hx) * magScaleUT,
		My:   float64(hy) * magScaleUT,
		Mz:   float64(hz) * magScaleUT,
	}, nil
}
