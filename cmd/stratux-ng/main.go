package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stratux-ng/internal/config"
	"stratux-ng/internal/gdl90"
	"stratux-ng/internal/gps"
	"stratux-ng/internal/nav"
	"stratux-ng/internal/udp"
	"stratux-ng/internal/web"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "./dev.yaml", "Path to YAML config")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	broadcaster, err := udp.NewBroadcaster(cfg.GDL90.Dest)
	if err != nil {
		log.Fatalf("udp broadcaster init failed: %v", err)
	}
	defer broadcaster.Close()

	status := web.NewStatus()
	status.SetStatic("live", cfg.GDL90.Dest, cfg.GDL90.Interval.String())

	var gpsSvc *gps.Service
	if cfg.GPS.Enable {
		gpsSvc = gps.New(gps.Config{
			Enable:   cfg.GPS.Enable,
			Source:   cfg.GPS.Source,
			GPSDAddr: cfg.GPS.GPSDAddr,
			Device:   cfg.GPS.Device,
			Baud:     cfg.GPS.Baud,
		})
		if err := gpsSvc.Start(ctx); err != nil {
			// Keep running with dead-reckoning navigation even if GPS fails to init.
			log.Printf("gps init failed: %v", err)
		}
		defer gpsSvc.Close()
	}

	var gravity [3]float64
	var gravitySet bool
	if g := cfg.Nav.Orientation.GravityInSensor; len(g) == 3 {
		gravity = [3]float64{g[0], g[1], g[2]}
		gravitySet = true
	}
	var earthMag [3]float64
	var earthMagSet bool
	if m := cfg.Nav.EarthMagNED; len(m) == 3 {
		earthMag = [3]float64{m[0], m[1], m[2]}
		earthMagSet = true
	}

	navSvc := nav.New(nav.Config{
		Enable:    cfg.Nav.Enable,
		I2CBus:    cfg.Nav.I2CBus,
		IMUAddr:   cfg.Nav.IMUAddr,
		BaroAddr:  cfg.Nav.BaroAddr,
		MagAddr:   cfg.Nav.MagAddr,
		EnableMag: cfg.Nav.EnableMag,

		OrientationForwardAxis: cfg.Nav.Orientation.ForwardAxis,
		OrientationGravitySet:  gravitySet,
		OrientationGravity:     gravity,

		ProcessPosStd:      cfg.Nav.ProcessPosStd,
		ProcessVelStd:      cfg.Nav.ProcessVelStd,
		ProcessAttStd:      cfg.Nav.ProcessAttStd,
		ProcessGyroBiasStd: cfg.Nav.ProcessGyroBiasStd,
		ProcessAccBiasStd:  cfg.Nav.ProcessAccBiasStd,

		GPSPosStd: cfg.Nav.GPSPosStd,
		GPSVelStd: cfg.Nav.GPSVelStd,
		BaroStd:   cfg.Nav.BaroStd,
		MagStd:    cfg.Nav.MagStd,

		EarthMagNEDSet: earthMagSet,
		EarthMagNED:    earthMag,
		GravityMS2:     cfg.Nav.GravityMS2,
	})
	if gpsSvc != nil {
		navSvc.AttachGPS(gpsSvc)
	}
	if cfg.Nav.Enable {
		if err := navSvc.Start(ctx); err != nil {
			// Keep the process running even if the filter fails to init; the
			// web UI and GDL90 output stay up and report an invalid solution.
			log.Printf("nav init failed: %v", err)
		}
	}
	defer navSvc.Close()

	log.Printf("stratux-ng starting")
	log.Printf("udp dest=%s interval=%s", cfg.GDL90.Dest, cfg.GDL90.Interval)

	go runGDL90Broadcast(ctx, cfg, broadcaster, navSvc, status)

	go func() {
		if err := web.Serve(ctx, cfg.Web.Listen, status, navSvc); err != nil && ctx.Err() == nil {
			log.Printf("web server stopped: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("stratux-ng stopping")
}

// runGDL90Broadcast periodically publishes the current attitude/airdata
// solution as ForeFlight and Stratux "LE" AHRS GDL90 frames.
func runGDL90Broadcast(ctx context.Context, cfg config.Config, b *udp.Broadcaster, navSvc *nav.Service, status *web.Status) {
	ticker := time.NewTicker(cfg.GDL90.Interval)
	defer ticker.Stop()

	sent := 0
	heartbeatEvery := 0
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			snap := navSvc.Snapshot()
			att := gdl90.Attitude{
				Valid:                snap.Valid,
				RollDeg:              snap.RollDeg,
				PitchDeg:             snap.PitchDeg,
				HeadingDeg:           snap.HeadingDeg,
				PressureAltitudeFeet: snap.PressureAltFeet,
				PressureAltValid:     snap.PressureAltValid,
				VerticalSpeedFpm:     snap.VerticalSpeedFpm,
				VerticalSpeedValid:   snap.VerticalSpeedValid,
			}

			frames := 0
			if err := b.Send(gdl90.ForeFlightAHRSFrame(att)); err == nil {
				frames++
			}
			if err := b.Send(gdl90.AHRSGDL90LEFrame(att)); err == nil {
				frames++
			}

			heartbeatEvery++
			if heartbeatEvery >= 5 {
				heartbeatEvery = 0
				gpsValid := snap.GPSLastFixUTC != ""
				if err := b.Send(gdl90.StratuxHeartbeatFrame(gpsValid, snap.Valid)); err == nil {
					frames++
				}
			}

			sent += frames
			status.MarkTick(now.UTC(), frames)

			var roll, pitch, heading *float64
			if snap.Valid {
				r, p, h := snap.RollDeg, snap.PitchDeg, snap.HeadingDeg
				roll, pitch, heading = &r, &p, &h
			}
			status.SetAttitude(now.UTC(), web.AttitudeSnapshot{
				Valid:       snap.Valid,
				RollDeg:     roll,
				PitchDeg:    pitch,
				HeadingDeg:  heading,
				PositionNED: &snap.PositionNED,
				VelocityNED: &snap.VelocityNED,
				GyroBiasDps: &snap.GyroBiasDegPerSec,
				AccelBiasG:  &snap.AccelBiasG,
			})
		}
	}
}
