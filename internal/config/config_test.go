package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "cfg.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	return path
}

func requireErrEq(t *testing.T, err error, want string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error %q, got nil", want)
	}
	if err.Error() != want {
		t.Fatalf("error=%q want %q", err.Error(), want)
	}
}

func TestLoad_RequiresDest(t *testing.T) {
	path := writeTempConfig(t, "gdl90: {}\n")
	_, err := Load(path)
	requireErrEq(t, err, "gdl90.dest is required")
}

func TestLoad_DefaultsApplied(t *testing.T) {
	path := writeTempConfig(t, "gdl90:\n  dest: '127.0.0.1:4000'\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.GDL90.Interval != 1*time.Second {
		t.Fatalf("interval=%s want 1s", cfg.GDL90.Interval)
	}
	if cfg.Web.Listen != "127.0.0.1:8080" {
		t.Fatalf("web.listen=%q want default", cfg.Web.Listen)
	}
}

func TestLoad_NavDefaultsAppliedOnlyWhenEnabled(t *testing.T) {
	path := writeTempConfig(t, "gdl90:\n  dest: '127.0.0.1:4000'\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Nav.I2CBus != 0 {
		t.Fatalf("i2c_bus=%d want 0 when nav disabled", cfg.Nav.I2CBus)
	}

	path = writeTempConfig(t, "gdl90:\n  dest: '127.0.0.1:4000'\nnav:\n  enable: true\n")
	cfg, err = Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Nav.I2CBus != 1 {
		t.Fatalf("i2c_bus=%d want 1", cfg.Nav.I2CBus)
	}
	if cfg.Nav.IMUAddr != 0x69 {
		t.Fatalf("imu_addr=0x%02X want 0x69", cfg.Nav.IMUAddr)
	}
	if cfg.Nav.BaroAddr != 0x76 {
		t.Fatalf("baro_addr=0x%02X want 0x76", cfg.Nav.BaroAddr)
	}
}

func TestLoad_NavMagAddrDefaultsOnlyWhenMagEnabled(t *testing.T) {
	path := writeTempConfig(t, "gdl90:\n  dest: '127.0.0.1:4000'\nnav:\n  enable: true\n  enable_mag: true\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Nav.MagAddr != 0x0C {
		t.Fatalf("mag_addr=0x%02X want 0x0C", cfg.Nav.MagAddr)
	}
}

func TestLoad_NavOrientationGravityMustHaveThreeElements(t *testing.T) {
	path := writeTempConfig(t, "gdl90:\n  dest: '127.0.0.1:4000'\nnav:\n  enable: true\n  orientation:\n    gravity_in_sensor: [0, 1]\n")
	_, err := Load(path)
	requireErrEq(t, err, "nav.orientation.gravity_in_sensor must have 3 elements")
}

func TestLoad_NavEarthMagNEDMustHaveThreeElements(t *testing.T) {
	path := writeTempConfig(t, "gdl90:\n  dest: '127.0.0.1:4000'\nnav:\n  enable: true\n  earth_mag_ned: [0.2, 0.0]\n")
	_, err := Load(path)
	requireErrEq(t, err, "nav.earth_mag_ned must have 3 elements")
}

func TestLoad_GPSSourceDefaultsToNMEA(t *testing.T) {
	path := writeTempConfig(t, "gdl90:\n  dest: '127.0.0.1:4000'\ngps:\n  enable: true\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.GPS.Source != "nmea" {
		t.Fatalf("gps.source=%q want nmea", cfg.GPS.Source)
	}
}
