package icm20948

import (
	"errors"
	"testing"
	"time"
)

type fakeMagI2C struct {
	regs   map[byte][]byte
	writes []byte
}

func (f *fakeMagI2C) ReadRegU8(reg byte) (byte, error) {
	b, ok := f.regs[reg]
	if !ok || len(b) < 1 {
		return 0, errors.New("no reg")
	}
	return b[0], nil
}

func (f *fakeMagI2C) ReadReg(reg byte, dst []byte) error {
	b, ok := f.regs[reg]
	if !ok {
		return errors.New("no reg")
	}
	copy(dst, b)
	return nil
}

func (f *fakeMagI2C) WriteReg(reg, value byte) error {
	f.writes = append(f.writes, reg, value)
	return nil
}

func TestNewMagnetometer_ProbesWhoAmI(t *testing.T) {
	oldSleep := sleep
	sleep = func(time.Duration) {}
	t.Cleanup(func() { sleep = oldSleep })

	f := &fakeMagI2C{regs: map[byte][]byte{magRegWIA2: {magWIA2Val}}}
	if _, err := newMagWithIO(f); err != nil {
		t.Fatalf("newMagWithIO failed: %v", err)
	}
}

func TestNewMagnetometer_RejectsWrongWhoAmI(t *testing.T) {
	oldSleep := sleep
	sleep = func(time.Duration) {}
	t.Cleanup(func() { sleep = oldSleep })

	f := &fakeMagI2C{regs: map[byte][]byte{magRegWIA2: {0x00}}}
	if _, err := newMagWithIO(f); err == nil {
		t.Fatalf("expected whoami mismatch error")
	}
}

func TestMagnetometerRead_RejectsStaleData(t *testing.T) {
	f := &fakeMagI2C{regs: map[byte][]byte{magRegST1: {0x00}}}
	m := &Magnetometer{dev: f}
	if _, err := m.Read(); err == nil {
		t.Fatalf("expected stale-data error when DRDY is clear")
	}
}

func TestMagnetometerRead_DecodesLittleEndianSamples(t *testing.T) {
	buf := make([]byte, 8)
	// Hx = 100 LSB, Hy = -50 LSB, Hz = 0, little-endian.
	buf[0], buf[1] = byte(100), 0
	hy16 := int16(-50)
	buf[2], buf[3] = byte(hy16), byte(hy16>>8)

	f := &fakeMagI2C{regs: map[byte][]byte{
		magRegST1: {bitDataRdy},
		magRegHXL: buf,
	}}
	m := &Magnetometer{dev: f}

	sample, err := m.Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	wantMx := 100 * magScaleUT
	if diff := sample.Mx - wantMx; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("Mx=%v want %v", sample.Mx, wantMx)
	}
	if sample.My >= 0 {
		t.Fatalf("My=%v want negative", sample.My)
	}
}
