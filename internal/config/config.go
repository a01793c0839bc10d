package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	GDL90 GDL90Config `yaml:"gdl90"`
	Nav   NavConfig   `yaml:"nav"`
	GPS   GPSConfig   `yaml:"gps"`
	Web   WebConfig   `yaml:"web"`
}

// GDL90Config controls the ForeFlight/Stratux AHRS broadcast, the only
// GDL90 traffic this build produces.
type GDL90Config struct {
	Dest     string        `yaml:"dest"`
	Interval time.Duration `yaml:"interval"`
}

// NavConfig wires the strapdown EKF to its sensors and lets a bench
// operator override its noise model without a rebuild.
type NavConfig struct {
	Enable   bool   `yaml:"enable"`
	I2CBus   int    `yaml:"i2c_bus"`
	IMUAddr  uint16 `yaml:"imu_addr"`
	BaroAddr uint16 `yaml:"baro_addr"`

	EnableMag bool   `yaml:"enable_mag"`
	MagAddr   uint16 `yaml:"mag_addr"`

	Orientation OrientationConfig `yaml:"orientation"`

	ProcessPosStd      float64 `yaml:"process_pos_std"`
	ProcessVelStd      float64 `yaml:"process_vel_std"`
	ProcessAttStd      float64 `yaml:"process_att_std"`
	ProcessGyroBiasStd float64 `yaml:"process_gyro_bias_std"`
	ProcessAccBiasStd  float64 `yaml:"process_acc_bias_std"`

	GPSPosStd float64 `yaml:"gps_pos_std"`
	GPSVelStd float64 `yaml:"gps_vel_std"`
	BaroStd   float64 `yaml:"baro_std"`
	MagStd    float64 `yaml:"mag_std"`

	// EarthMagNED overrides the local magnetic field vector (gauss, NED)
	// used by the magnetometer update. Leave empty to keep the filter's
	// built-in default field until nav.Service.CalibrateMagneticField replaces it.
	EarthMagNED []float64 `yaml:"earth_mag_ned,omitempty"`

	// GravityMS2 overrides the local gravity magnitude (m/s^2). Zero uses
	// the filter's built-in standard gravity (9.80665 m/s^2).
	GravityMS2 float64 `yaml:"gravity_ms2"`
}

type OrientationConfig struct {
	ForwardAxis     int       `yaml:"forward_axis"`
	GravityInSensor []float64 `yaml:"gravity_in_sensor,omitempty"`
}

type GPSConfig struct {
	Enable bool `yaml:"enable"`

	// Source selects how GPS is ingested: "nmea" (direct serial) or "gpsd".
	Source   string `yaml:"source"`
	GPSDAddr string `yaml:"gpsd_addr"`
	Device   string `yaml:"device"`
	Baud     int    `yaml:"baud"`
}

type WebConfig struct {
	Listen string `yaml:"listen"`
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}

	if err := DefaultAndValidate(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DefaultAndValidate fills in defaults and rejects config combinations the
// rest of the process cannot run with. It is safe to call more than once.
func DefaultAndValidate(cfg *Config) error {
	if cfg.GDL90.Dest == "" {
		return fmt.Errorf("gdl90.dest is required")
	}
	if cfg.GDL90.Interval <= 0 {
		cfg.GDL90.Interval = 1 * time.Second
	}

	if cfg.Nav.Enable {
		if cfg.Nav.I2CBus == 0 {
			cfg.Nav.I2CBus = 1
		}
		if cfg.Nav.IMUAddr == 0 {
			cfg.Nav.IMUAddr = 0x69
		}
		if cfg.Nav.BaroAddr == 0 {
			cfg.Nav.BaroAddr = 0x76
		}
		if cfg.Nav.EnableMag && cfg.Nav.MagAddr == 0 {
			cfg.Nav.MagAddr = 0x0C
		}
		if len(cfg.Nav.Orientation.GravityInSensor) != 0 && len(cfg.Nav.Orientation.GravityInSensor) != 3 {
			return fmt.Errorf("nav.orientation.gravity_in_sensor must have 3 elements")
		}
		if len(cfg.Nav.EarthMagNED) != 0 && len(cfg.Nav.EarthMagNED) != 3 {
			return fmt.Errorf("nav.earth_mag_ned must have 3 elements")
		}
	}

	if cfg.GPS.Enable && cfg.GPS.Source == "" {
		cfg.GPS.Source = "nmea"
	}

	if cfg.Web.Listen == "" {
		cfg.Web.Listen = "127.0.0.1:8080"
	}

	return nil
}
