// Package nav runs the strapdown inertial navigation filter against live
// IMU, barometer, magnetometer, and GPS sources and publishes the result
// under a mutex-guarded snapshot, the same shape the teacher's AHRS service
// used for its complementary filter.
package nav

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"stratux-ng/internal/ekf"
	"stratux-ng/internal/ekfmath"
	"stratux-ng/internal/gps"
	"stratux-ng/internal/i2c"
	"stratux-ng/internal/sensors/bmp280"
	"stratux-ng/internal/sensors/icm20948"
)

const (
	earthRadiusM = 6378137.0
	degToRad     = math.Pi / 180.0
	radToDeg     = 180.0 / math.Pi
	gToMS2       = 9.80665
	gaussPerUT   = 1.0 / 100.0

	imuPeriod = 20 * time.Millisecond // 50 Hz, matches the run loop's imuTick
)

type Config struct {
	Enable    bool
	I2CBus    int
	IMUAddr   uint16
	BaroAddr  uint16
	MagAddr   uint16
	EnableMag bool

	OrientationForwardAxis int
	OrientationGravitySet  bool
	OrientationGravity     [3]float64

	ProcessPosStd      float64
	ProcessVelStd      float64
	ProcessAttStd      float64
	ProcessGyroBiasStd float64
	ProcessAccBiasStd  float64

	GPSPosStd float64
	GPSVelStd float64
	BaroStd   float64
	MagStd    float64

	EarthMagNEDSet bool
	EarthMagNED    [3]float64
	GravityMS2     float64
}

type Snapshot struct {
	Valid bool

	IMUDetected  bool
	BaroDetected bool
	MagDetected  bool

	IMULastUpdateAt  time.Time
	BaroLastUpdateAt time.Time
	MagLastUpdateAt  time.Time
	GPSLastFixUTC    string

	OrientationSet         bool
	OrientationForwardAxis int

	PositionNED [3]float64
	VelocityNED [3]float64

	RollDeg    float64
	PitchDeg   float64
	HeadingDeg float64

	GyroBiasDegPerSec [3]float64
	AccelBiasG        [3]float64

	PressureAltFeet    float64
	PressureAltValid   bool
	VerticalSpeedFpm   int
	VerticalSpeedValid bool

	LastError string
	UpdatedAt time.Time
}

type Service struct {
	cfg Config

	filter *ekf.Filter

	imuErr string
	baroErr string
	magErr  string

	zeroDriftCh chan chan error
	orientCh    chan orientReq
	magCalCh    chan chan error

	startupOnce sync.Once

	orientationSet  bool
	forwardAxis     int
	gravityInSensor [3]float64
	bodyXInSensor   [3]float64
	bodyYInSensor   [3]float64
	bodyZInSensor   [3]float64

	mu   sync.RWMutex
	snap Snapshot

	gpsSrc *gps.Service
	gpsMu  sync.Mutex

	haveOrigin bool
	lat0, lon0 float64

	bus  *i2c.Bus
	imu  *icm20948.Device
	baro *bmp280.Device
	mag  *icm20948.Magnetometer

	stopOnce sync.Once
	stopCh   chan struct{}
}

func New(cfg Config) *Service {
	if cfg.I2CBus == 0 {
		cfg.I2CBus = 1
	}
	if cfg.IMUAddr == 0 {
		cfg.IMUAddr = icm20948.DefaultAddress()
	}
	if cfg.BaroAddr == 0 {
		cfg.BaroAddr = bmp280.DefaultAddress()
	}
	if cfg.MagAddr == 0 {
		cfg.MagAddr = icm20948.DefaultMagAddress()
	}

	f := ekf.New()
	if cfg.ProcessPosStd > 0 || cfg.ProcessVelStd > 0 || cfg.ProcessAttStd > 0 || cfg.ProcessGyroBiasStd > 0 || cfg.ProcessAccBiasStd > 0 {
		f.SetProcessNoise(cfg.ProcessPosStd, cfg.ProcessVelStd, cfg.ProcessAttStd, cfg.ProcessGyroBiasStd, cfg.ProcessAccBiasStd)
	}
	if cfg.GPSPosStd > 0 || cfg.GPSVelStd > 0 {
		f.SetGPSNoise(cfg.GPSPosStd, cfg.GPSVelStd)
	}
	if cfg.BaroStd > 0 {
		f.SetBaroNoise(cfg.BaroStd)
	}
	if cfg.MagStd > 0 {
		f.SetMagNoise(cfg.MagStd)
	}
	if cfg.EarthMagNEDSet {
		f.SetEarthMagneticField(ekfmath.Vector3{X: cfg.EarthMagNED[0], Y: cfg.EarthMagNED[1], Z: cfg.EarthMagNED[2]})
	}
	if cfg.GravityMS2 > 0 {
		f.SetGravity(cfg.GravityMS2)
	}

	s := &Service{
		cfg:         cfg,
		filter:      f,
		stopCh:      make(chan struct{}),
		zeroDriftCh: make(chan chan error, 1),
		orientCh:    make(chan orientReq, 1),
		magCalCh:    make(chan chan error, 1),
	}
	s.bodyXInSensor = [3]float64{1, 0, 0}
	s.bodyYInSensor = [3]float64{0, 1, 0}
	s.bodyZInSensor = [3]float64{0, 0, 1}
	return s
}

// AttachGPS wires a GPS source used to aid the filter. It must be called
// before Start.
func (s *Service) AttachGPS(g *gps.Service) {
	if s == nil {
		return
	}
	s.gpsMu.Lock()
	s.gpsSrc = g
	s.gpsMu.Unlock()
}

func (s *Service) Close() {
	if s == nil {
		return
	}
	s.stopOnce.Do(func() {
		close(s.stopCh)
		if s.bus != nil {
			_ = s.bus.Close()
			s.bus = nil
		}
	})
}

func (s *Service) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

func (s *Service) Start(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("nav: service is nil")
	}
	if !s.cfg.Enable {
		return nil
	}

	busPath := fmt.Sprintf("/dev/i2c-%d", s.cfg.I2CBus)
	bus, err := i2c.Open(busPath)
	if err != nil {
		s.setIMUErr(fmt.Sprintf("open %s: %v", busPath, err))
		return err
	}
	s.bus = bus

	imu, err := icm20948.New(bus.Dev(s.cfg.IMUAddr))
	if err != nil {
		s.setIMUErr(fmt.Sprintf("imu init: %v", err))
		_ = bus.Close()
		s.bus = nil
		return err
	}
	s.imu = imu
	s.mu.Lock()
	s.snap.IMUDetected = true
	if s.cfg.OrientationForwardAxis != 0 {
		s.forwardAxis = s.cfg.OrientationForwardAxis
		s.snap.OrientationForwardAxis = s.forwardAxis
	}
	s.mu.Unlock()
	if s.cfg.OrientationForwardAxis != 0 && s.cfg.OrientationGravitySet {
		_ = s.applyOrientationFromGravity(s.cfg.OrientationGravity)
	}

	baro, err := bmp280.New(bus.Dev(s.cfg.BaroAddr))
	if err != nil {
		s.setBaroErr(fmt.Sprintf("baro init: %v", err))
		_ = bus.Close()
		s.bus = nil
		return err
	}
	s.baro = baro
	s.mu.Lock()
	s.snap.BaroDetected = true
	s.mu.Unlock()

	if s.cfg.EnableMag {
		if err := s.imu.EnableBypass(); err != nil {
			s.setMagErr(fmt.Sprintf("mag bypass: %v", err))
		} else if mag, err := icm20948.NewMagnetometer(bus.Dev(s.cfg.MagAddr)); err != nil {
			s.setMagErr(fmt.Sprintf("mag init: %v", err))
		} else {
			s.mag = mag
			s.mu.Lock()
			s.snap.MagDetected = true
			s.mu.Unlock()
		}
	}

	go s.run(ctx)
	go s.startupCal(ctx)
	return nil
}

// Orientation returns the current persisted-or-pending orientation state.
func (s *Service) Orientation() (forwardAxis int, gravity [3]float64, gravityOK bool) {
	if s == nil {
		return 0, [3]float64{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	forwardAxis = s.forwardAxis
	if s.orientationSet {
		return forwardAxis, s.gravityInSensor, true
	}
	return forwardAxis, [3]float64{}, false
}

func (s *Service) OrientForward(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("nav: service is nil")
	}
	if ctx == nil {
		return fmt.Errorf("nav: ctx is nil")
	}
	done := make(chan error, 1)
	select {
	case s.orientCh <- orientReq{action: orientActionForward, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("nav: orientation already in progress")
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) OrientDone(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("nav: service is nil")
	}
	if ctx == nil {
		return fmt.Errorf("nav: ctx is nil")
	}
	done := make(chan error, 1)
	select {
	case s.orientCh <- orientReq{action: orientActionDone, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("nav: orientation already in progress")
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetLevel answers Stratux's "cage/level" control. Unlike the teacher's
// complementary filter, there is no separate roll/pitch offset to adjust:
// the EKF's own attitude state is authoritative, so SetLevel leaves the
// filter untouched and only confirms it is producing valid output.
func (s *Service) SetLevel() error {
	if s == nil {
		return fmt.Errorf("nav: service is nil")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.snap.Valid {
		return fmt.Errorf("nav: not valid (%s)", s.snap.LastError)
	}
	return nil
}

// ZeroDrift estimates stationary gyro bias over ~2 seconds and writes it
// directly into the filter state via ekf.Filter.SetGyroBias.
func (s *Service) ZeroDrift(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("nav: service is nil")
	}
	if ctx == nil {
		return fmt.Errorf("nav: ctx is nil")
	}
	s.mu.RLock()
	imuDetected := s.snap.IMUDetected
	s.mu.RUnlock()
	if !imuDetected {
		return fmt.Errorf("nav: imu not detected")
	}

	done := make(chan error, 1)
	select {
	case s.zeroDriftCh <- done:
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("nav: zero drift already in progress")
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CalibrateMagneticField collects ~2 seconds of stationary mag+accel samples
// and feeds them to ekf.Filter.InitializeMagneticField.
func (s *Service) CalibrateMagneticField(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("nav: service is nil")
	}
	if ctx == nil {
		return fmt.Errorf("nav: ctx is nil")
	}
	s.mu.RLock()
	magDetected := s.snap.MagDetected
	s.mu.RUnlock()
	if !magDetected {
		return fmt.Errorf("nav: magnetometer not detected")
	}

	done := make(chan error, 1)
	select {
	case s.magCalCh <- done:
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("nav: magnetic field calibration already in progress")
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) run(ctx context.Context) {
	imuTick := time.NewTicker(imuPeriod)               // 50 Hz
	baroTick := time.NewTicker(200 * time.Millisecond) // 5 Hz
	magTick := time.NewTicker(100 * time.Millisecond)  // 10 Hz
	gpsTick := time.NewTicker(1 * time.Second)
	defer imuTick.Stop()
	defer baroTick.Stop()
	defer magTick.Stop()
	defer gpsTick.Stop()

	var lastIMUAt time.Time

	var calActive bool
	var calDone chan error
	var calStart time.Time
	var calSumX, calSumY, calSumZ float64
	var calN int

	var magCalActive bool
	var magCalDone chan error
	var magCalStart time.Time
	var magSamples, accelSamples []ekfmath.Vector3

	var lastSample icm20948.Sample
	var haveLastSample bool
	var orientActive bool
	var orientAction orientAction
	var orientDone chan error
	var orientStart time.Time
	var orientSum [3]float64
	var orientN int

	var lastBaroAltFeet float64
	var lastBaroAt time.Time
	var vsFpm float64
	var baroConsecutiveFailures int
	var baroLastReinitAt time.Time

	var lastGPSFixUTC string

	for {
		select {
		case <-ctx.Done():
			s.Close()
			return
		case <-s.stopCh:
			return

		case done := <-s.zeroDriftCh:
			calActive = true
			calDone = done
			calStart = time.Now().UTC()
			calSumX, calSumY, calSumZ = 0, 0, 0
			calN = 0

		case done := <-s.magCalCh:
			magCalActive = true
			magCalDone = done
			magCalStart = time.Now().UTC()
			magSamples = magSamples[:0]
			accelSamples = accelSamples[:0]

		case req := <-s.orientCh:
			if req.done == nil {
				continue
			}
			if orientActive {
				req.done <- fmt.Errorf("nav: orientation already active")
				continue
			}
			if req.action == orientActionForward {
				if !haveLastSample {
					req.done <- fmt.Errorf("nav: no imu samples yet")
					continue
				}
				fa := dominantAxis(lastSample.Ax, lastSample.Ay, lastSample.Az)
				s.mu.Lock()
				s.forwardAxis = fa
				s.orientationSet = false
				s.gravityInSensor = [3]float64{}
				s.snap.OrientationForwardAxis = fa
				s.snap.OrientationSet = false
				s.mu.Unlock()
				req.done <- nil
				continue
			}
			if req.action == orientActionDone {
				s.mu.RLock()
				fa := s.forwardAxis
				s.mu.RUnlock()
				if fa == 0 {
					req.done <- fmt.Errorf("nav: forward direction not set")
					continue
				}
				orientActive = true
				orientAction = req.action
				orientDone = req.done
				orientStart = time.Now().UTC()
				orientSum = [3]float64{}
				orientN = 0
				continue
			}
			req.done <- fmt.Errorf("nav: unknown orientation action")

		case <-imuTick.C:
			sample, err := s.imu.Read()
			if err != nil {
				s.setIMUErr(err.Error())
				continue
			}
			lastSample = sample
			haveLastSample = true

			now := time.Now().UTC()
			dt := 0.0
			if !lastIMUAt.IsZero() {
				dt = now.Sub(lastIMUAt).Seconds()
			}
			lastIMUAt = now
			if dt <= 0 || dt > 0.5 {
				dt = 0
			}

			ax, ay, az := sample.Ax, sample.Ay, sample.Az
			gx, gy, gz := sample.Gx, sample.Gy, sample.Gz
			s.mu.RLock()
			orientSet := s.orientationSet
			xb, yb, zb := s.bodyXInSensor, s.bodyYInSensor, s.bodyZInSensor
			s.mu.RUnlock()
			if orientSet {
				ax, ay, az = dot3(ax, ay, az, xb), dot3(ax, ay, az, yb), dot3(ax, ay, az, zb)
				gx, gy, gz = dot3(gx, gy, gz, xb), dot3(gx, gy, gz, yb), dot3(gx, gy, gz, zb)
			}

			accelMS2 := ekfmath.Vector3{X: ax * gToMS2, Y: ay * gToMS2, Z: az * gToMS2}
			gyroRad := ekfmath.Vector3{X: gx * degToRad, Y: gy * degToRad, Z: gz * degToRad}

			if !s.filter.Initialized() && haveLastSample {
				roll := math.Atan2(ay, az)
				pitch := math.Atan2(-ax, math.Sqrt(ay*ay+az*az))
				q := ekfmath.FromEuler(roll, pitch, 0)
				s.filter.SetInitialState(ekfmath.Vector3{}, ekfmath.Vector3{}, q)
			} else if dt > 0 {
				s.filter.Predict(gyroRad, accelMS2, dt)
			}

			if calActive {
				calSumX += gx
				calSumY += gy
				calSumZ += gz
				calN++
				if now.Sub(calStart) >= 2*time.Second {
					if calN <= 0 {
						calDone <- fmt.Errorf("nav: zero drift failed (no samples)")
					} else {
						bias := ekfmath.Vector3{
							X: calSumX / float64(calN) * degToRad,
							Y: calSumY / float64(calN) * degToRad,
							Z: calSumZ / float64(calN) * degToRad,
						}
						s.filter.SetGyroBias(bias)
						calDone <- nil
					}
					calActive = false
					calDone = nil
				}
			}

			if magCalActive {
				accelSamples = append(accelSamples, accelMS2)
				if now.Sub(magCalStart) >= 2*time.Second && len(magSamples) > 0 {
					s.filter.InitializeMagneticField(magSamples, accelSamples)
					magCalDone <- nil
					magCalActive = false
					magCalDone = nil
				} else if now.Sub(magCalStart) >= 2*time.Second {
					magCalDone <- fmt.Errorf("nav: magnetic field calibration failed (no mag samples)")
					magCalActive = false
					magCalDone = nil
				}
			}

			if orientActive && orientAction == orientActionDone {
				orientSum[0] += ax
				orientSum[1] += ay
				orientSum[2] += az
				orientN++
				if now.Sub(orientStart) >= 1*time.Second {
					avg := [3]float64{orientSum[0] / float64(orientN), orientSum[1] / float64(orientN), orientSum[2] / float64(orientN)}
					err := s.applyOrientationFromGravity(avg)
					orientDone <- err
					orientActive = false
					orientDone = nil
				}
			}

			s.publishFromFilter(now)
			s.imuErr = ""

		case <-magTick.C:
			if s.mag == nil {
				continue
			}
			ms, err := s.mag.Read()
			if err != nil {
				// Data-not-ready is expected between DRDY pulses; not an error worth surfacing.
				continue
			}
			mx, my, mz := ms.Mx, ms.My, ms.Mz
			s.mu.RLock()
			orientSet := s.orientationSet
			xb, yb, zb := s.bodyXInSensor, s.bodyYInSensor, s.bodyZInSensor
			s.mu.RUnlock()
			if orientSet {
				mx, my, mz = dot3(mx, my, mz, xb), dot3(mx, my, mz, yb), dot3(mx, my, mz, zb)
			}
			magGauss := ekfmath.Vector3{X: mx * gaussPerUT, Y: my * gaussPerUT, Z: mz * gaussPerUT}

			if magCalActive {
				magSamples = append(magSamples, magGauss)
			} else if s.filter.Initialized() {
				s.filter.UpdateMag(magGauss)
			}

			now := time.Now().UTC()
			s.mu.Lock()
			s.snap.MagLastUpdateAt = now
			s.mu.Unlock()
			s.magErr = ""

		case <-baroTick.C:
			tc, p, err := s.baro.Read()
			_ = tc
			if err != nil {
				baroConsecutiveFailures++
				s.setBaroErr(err.Error())
				s.maybeReinitBaro(&baroConsecutiveFailures, &baroLastReinitAt)
				continue
			}
			if p <= 0 {
				baroConsecutiveFailures++
				s.setBaroErr("baro pressure invalid")
				s.maybeReinitBaro(&baroConsecutiveFailures, &baroLastReinitAt)
				continue
			}
			baroConsecutiveFailures = 0

			altFeet := pressureToAltitudeFeet(p)
			now := time.Now().UTC()
			if !lastBaroAt.IsZero() {
				dt := now.Sub(lastBaroAt).Seconds()
				if dt > 0 {
					rawVs := (altFeet - lastBaroAltFeet) / dt * 60.0
					alpha := 0.2
					vsFpm = (1-alpha)*vsFpm + alpha*rawVs
				}
			}
			lastBaroAt = now
			lastBaroAltFeet = altFeet

			if s.filter.Initialized() {
				altMeters := altFeet / 3.28084
				s.filter.UpdateBaro(-altMeters)
			}

			s.mu.Lock()
			s.snap.PressureAltFeet = altFeet
			s.snap.PressureAltValid = true
			s.snap.VerticalSpeedFpm = int(math.Round(vsFpm))
			s.snap.VerticalSpeedValid = true
			s.snap.BaroLastUpdateAt = now
			s.mu.Unlock()
			s.baroErr = ""

		case <-gpsTick.C:
			s.gpsMu.Lock()
			src := s.gpsSrc
			s.gpsMu.Unlock()
			if src == nil {
				continue
			}
			fix := src.Snapshot()
			if !fix.Valid || fix.LastFixUTC == "" || fix.LastFixUTC == lastGPSFixUTC {
				continue
			}
			if !lastIMUAt.IsZero() && staleGPSFix(fix.FixAgeSec) {
				continue
			}
			lastGPSFixUTC = fix.LastFixUTC

			altMeters := 0.0
			if fix.AltFeet != nil {
				altMeters = float64(*fix.AltFeet) / 3.28084
			}

			if !s.haveOrigin {
				s.lat0, s.lon0 = fix.LatDeg, fix.LonDeg
				s.haveOrigin = true
				if !s.filter.Initialized() {
					s.filter.SetInitialState(ekfmath.Vector3{Z: -altMeters}, ekfmath.Vector3{}, ekfmath.IdentityQuaternion())
				}
			}

			north, east := latLonToNED(fix.LatDeg, fix.LonDeg, s.lat0, s.lon0)
			useVel := fix.GroundKt != nil && fix.TrackDeg != nil
			var vel ekfmath.Vector3
			if useVel {
				speedMS := float64(*fix.GroundKt) * 0.514444
				trackRad := *fix.TrackDeg * degToRad
				vel = ekfmath.Vector3{X: speedMS * math.Cos(trackRad), Y: speedMS * math.Sin(trackRad)}
			}

			if s.filter.Initialized() {
				s.filter.UpdateGPS(ekfmath.Vector3{X: north, Y: east, Z: -altMeters}, vel, useVel)
			}

			s.mu.Lock()
			s.snap.GPSLastFixUTC = fix.LastFixUTC
			s.mu.Unlock()
		}
	}
}

func (s *Service) maybeReinitBaro(failures *int, lastReinitAt *time.Time) {
	if *failures < 10 || time.Since(*lastReinitAt) < 2*time.Second {
		return
	}
	if s.bus == nil {
		return
	}
	if b, err := bmp280.New(s.bus.Dev(s.cfg.BaroAddr)); err == nil {
		s.baro = b
		*failures = 0
		*lastReinitAt = time.Now().UTC()
	} else {
		*lastReinitAt = time.Now().UTC()
		s.setBaroErr(fmt.Sprintf("baro reinit: %v", err))
	}
}

func (s *Service) publishFromFilter(now time.Time) {
	pos := s.filter.Position()
	vel := s.filter.Velocity()
	roll, pitch, yaw := s.filter.Euler()
	gyroBias := s.filter.GyroBias()
	accBias := s.filter.AccelBias()

	s.mu.Lock()
	s.snap.Valid = s.filter.Initialized()
	s.snap.PositionNED = [3]float64{pos.X, pos.Y, pos.Z}
	s.snap.VelocityNED = [3]float64{vel.X, vel.Y, vel.Z}
	s.snap.RollDeg = roll * radToDeg
	s.snap.PitchDeg = pitch * radToDeg
	s.snap.HeadingDeg = math.Mod(yaw*radToDeg+360, 360)
	s.snap.GyroBiasDegPerSec = [3]float64{gyroBias.X * radToDeg, gyroBias.Y * radToDeg, gyroBias.Z * radToDeg}
	s.snap.AccelBiasG = [3]float64{accBias.X / gToMS2, accBias.Y / gToMS2, accBias.Z / gToMS2}
	s.snap.UpdatedAt = now
	s.snap.IMULastUpdateAt = now
	s.snap.OrientationForwardAxis = s.forwardAxis
	s.snap.OrientationSet = s.orientationSet
	if s.baroErr == "" && s.magErr == "" {
		s.snap.LastError = ""
	}
	s.mu.Unlock()
}

func (s *Service) setIMUErr(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	s.imuErr = msg
	s.snap.LastError = "imu: " + msg
	s.snap.Valid = false
	s.snap.UpdatedAt = now
}

func (s *Service) setBaroErr(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	s.baroErr = msg
	s.snap.PressureAltValid = false
	s.snap.VerticalSpeedValid = false
	s.snap.LastError = "baro: " + msg
	s.snap.UpdatedAt = now
}

func (s *Service) setMagErr(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	s.magErr = msg
	s.snap.LastError = "mag: " + msg
	s.snap.UpdatedAt = now
}

type orientAction int

const (
	orientActionForward orientAction = iota
	orientActionDone
)

type orientReq struct {
	action orientAction
	done   chan error
}

func dominantAxis(ax, ay, az float64) int {
	a1, a2, a3 := math.Abs(ax), math.Abs(ay), math.Abs(az)
	if a1 >= a2 && a1 >= a3 {
		if ax >= 0 {
			return 1
		}
		return -1
	}
	if a2 >= a1 && a2 >= a3 {
		if ay >= 0 {
			return 2
		}
		return -2
	}
	if az >= 0 {
		return 3
	}
	return -3
}

func dot3(ax, ay, az float64, b [3]float64) float64 {
	return ax*b[0] + ay*b[1] + az*b[2]
}

func norm3(v [3]float64) float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

func unit3(v [3]float64) ([3]float64, error) {
	n := norm3(v)
	if n <= 0 {
		return [3]float64{}, fmt.Errorf("zero vector")
	}
	return [3]float64{v[0] / n, v[1] / n, v[2] / n}, nil
}

func cross3(a, b [3]float64) [3]float64 {
	return [3]float64{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func (s *Service) applyOrientationFromGravity(avgAccel [3]float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fa := s.forwardAxis
	if fa == 0 {
		return fmt.Errorf("nav: forward direction not set")
	}

	z, err := unit3(avgAccel)
	if err != nil {
		return fmt.Errorf("nav: invalid gravity vector: %v", err)
	}

	x := [3]float64{}
	idx := fa
	sign := 1.0
	if idx < 0 {
		idx = -idx
		sign = -1.0
	}
	if idx < 1 || idx > 3 {
		return fmt.Errorf("nav: invalid forward axis %d", fa)
	}
	x[idx-1] = sign

	dot := x[0]*z[0] + x[1]*z[1] + x[2]*z[2]
	xh := [3]float64{x[0] - dot*z[0], x[1] - dot*z[1], x[2] - dot*z[2]}
	xu, err := unit3(xh)
	if err != nil {
		return fmt.Errorf("nav: forward axis nearly vertical; try again")
	}

	yu := cross3(z, xu)
	yu, err = unit3(yu)
	if err != nil {
		return fmt.Errorf("nav: invalid basis; try again")
	}

	s.gravityInSensor = z
	s.bodyXInSensor = xu
	s.bodyYInSensor = yu
	s.bodyZInSensor = z
	s.orientationSet = true
	s.snap.OrientationSet = true
	s.snap.OrientationForwardAxis = s.forwardAxis
	return nil
}

func (s *Service) startupCal(ctx context.Context) {
	s.startupOnce.Do(func() {
		if s == nil {
			return
		}
		settle := time.NewTimer(3 * time.Second)
		defer settle.Stop()
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-settle.C:
		}

		zdCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
		defer cancel()
		_ = s.ZeroDrift(zdCtx)
	})
}

// staleGPSFix reports whether a fix predates the last predict by more than
// one IMU step and should be discarded rather than applied to the filter.
func staleGPSFix(fixAgeSec float64) bool {
	return fixAgeSec > imuPeriod.Seconds()
}

func pressureToAltitudeFeet(pressurePa float64) float64 {
	p0 := 101325.0
	hMeters := 44330.0 * (1.0 - math.Pow(pressurePa/p0, 1.0/5.255))
	return hMeters * 3.28084
}

// latLonToNED projects a lat/lon fix onto the local tangent plane anchored
// at (lat0, lon0) using an equirectangular approximation. This is adequate
// over the few-kilometer extent a single flight's EKF solution spans.
func latLonToNED(latDeg, lonDeg, lat0Deg, lon0Deg float64) (north, east float64) {
	lat0Rad := lat0Deg * degToRad
	north = (latDeg - lat0Deg) * degToRad * earthRadiusM
	east = (lonDeg - lon0Deg) * degToRad * earthRadiusM * math.Cos(lat0Rad)
	return north, east
}
