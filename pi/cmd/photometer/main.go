/*
DESCRIPTION
  photometer is the field instrument program. It walks the operator through
  blanking, analyte choice and sample measurement using the push button and
  indicator LEDs, and writes each nitrate or phosphate concentration to a
  result file.

AUTHOR
  the Australian Ocean Lab (AusOcean)

LICENSE
  Copyright (C) 2026 the Australian Ocean Lab (AusOcean)

  It is free software: you can redistribute it and/or modify them
  under the terms of the GNU General Public License as published by the
  Free Software Foundation, either version 3 of the License, or (at your
  option) any later version.

  It is distributed in the hope that it will be useful, but WITHOUT
  ANY WARRANTY; without even the implied warranty of MERCHANTABILITY or
  FITNESS FOR A PARTICULAR PURPOSE. See the GNU General Public License
  for more details.

  You should have received a copy of the GNU General Public License
  in gpl.txt. If not, see http://www.gnu.org/licenses.
*/

// Photometer is the field photometer program for a Raspberry Pi with an
// LTR-329 light sensor (or an LDR on an MCP3008), a light source, a push
// button and ready and busy LEDs.
//
// Send SIGUSR1 to take a new blank before the next measurement.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/v22/daemon"
	_ "github.com/kidoman/embd/host/rpi"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"github.com/ausocean/photometer/pi/als"
	"github.com/ausocean/photometer/pi/calibration"
	"github.com/ausocean/photometer/pi/config"
	"github.com/ausocean/photometer/pi/gpio"
	"github.com/ausocean/photometer/pi/indicator"
	"github.com/ausocean/photometer/pi/photometer"
	"github.com/ausocean/photometer/pi/results"
	"github.com/ausocean/photometer/pi/thermometer"
	"github.com/ausocean/utils/logging"
)

// Logging configuration.
const (
	logPath      = "/var/log/photometer/photometer.log"
	logMaxSize   = 500 // MB
	logMaxBackup = 10
	logMaxAge    = 28 // days
	logSuppress  = true
)

func main() {
	var (
		configPath = flag.String("config", "", "YAML configuration file")
		pins       = flag.String("pins", "", `pin overrides, e.g. "light=26,ready=24,busy=23,button=4"`)
		sensor     = flag.String("sensor", "", "intensity source, ltr329 or adc")
		calDir     = flag.String("caldir", "", "directory holding N_cal.txt and P_cal.txt")
		resultDir  = flag.String("resultdir", "", "directory for result files")
		trace      = flag.Bool("trace", false, "also write the raw samples of each measurement as CSV")
		debug      = flag.Bool("debug", false, "log at debug level")
	)
	flag.Parse()

	verbosity := logging.Info
	if *debug {
		verbosity = logging.Debug
	}

	// Create lumberjack logger to handle logging to file.
	fileLog := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    logMaxSize,
		MaxBackups: logMaxBackup,
		MaxAge:     logMaxAge,
	}
	log := logging.New(verbosity, io.MultiWriter(fileLog, os.Stderr), logSuppress)

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatal("could not load config", "error", err)
		}
	}
	err := cfg.ApplyPins(*pins)
	if err != nil {
		log.Fatal("could not apply pins", "error", err)
	}
	if *sensor != "" {
		cfg.Sensor = *sensor
	}
	if *calDir != "" {
		cfg.CalDir = *calDir
	}
	if *resultDir != "" {
		cfg.ResultDir = *resultDir
	}
	cfg.Trace = cfg.Trace || *trace
	err = cfg.Validate()
	if err != nil {
		log.Fatal("invalid config", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = run(ctx, cfg, log)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("photometer failed", "error", err)
	}
}

// run sets up the hardware and runs the instrument until ctx is cancelled.
func run(ctx context.Context, cfg config.Config, log logging.Logger) error {
	defer func() {
		err := gpio.Close()
		if err != nil {
			log.Warning("could not release GPIO drivers", "error", err)
		}
	}()

	src, err := newSource(cfg, log)
	if err != nil {
		return err
	}
	defer src.Close()

	light, err := gpio.NewOutput(cfg.Pins.Light)
	if err != nil {
		return fmt.Errorf("could not set up light: %w", err)
	}
	defer light.Close()
	ready, err := gpio.NewOutput(cfg.Pins.Ready)
	if err != nil {
		return fmt.Errorf("could not set up ready LED: %w", err)
	}
	defer ready.Close()
	busy, err := gpio.NewOutput(cfg.Pins.Busy)
	if err != nil {
		return fmt.Errorf("could not set up busy LED: %w", err)
	}
	defer busy.Close()
	button, err := gpio.NewButton(cfg.Pins.Button)
	if err != nil {
		return fmt.Errorf("could not set up button: %w", err)
	}
	defer button.Close()

	ind := indicator.New(map[indicator.Channel]indicator.Output{indicator.Ready: ready, indicator.Busy: busy}, cfg.BlinkHalfPeriod, log)

	cals := calibration.NewStore(cfg.CalDir, log)
	err = checkCalibrations(cals, cfg.CalDir, log)
	if err != nil {
		return err
	}

	store := results.NewWriter(cfg.ResultDir, log)
	opts := []photometer.Option{photometer.WithSettings(cfg.Instrument())}
	if cfg.Trace {
		opts = append(opts, photometer.WithTraceStore(store))
	}
	if cfg.Thermometer {
		probe, err := thermometer.New()
		if err != nil {
			log.Warning("no temperature probe, continuing without", "error", err)
		} else {
			log.Info("using temperature probe", "id", probe.ID())
			opts = append(opts, photometer.WithThermometer(probe))
		}
	}

	hw := photometer.Hardware{Source: src, Light: light, Button: button, Indicators: ind}
	in, err := photometer.New(hw, cals, store, log, opts...)
	if err != nil {
		return fmt.Errorf("could not create instrument: %w", err)
	}

	go reblankOnSignal(ctx, in, log)

	_, err = daemon.SdNotify(false, daemon.SdNotifyReady)
	if err != nil {
		log.Warning("could not notify service manager", "error", err)
	}
	log.Info("photometer started", "sensor", cfg.Sensor, "calDir", cfg.CalDir, "resultDir", cfg.ResultDir)
	return in.Run(ctx)
}

// source is an intensity source that holds a device open.
type source interface {
	photometer.IntensitySource
	Close() error
}

func newSource(cfg config.Config, log logging.Logger) (source, error) {
	switch cfg.Sensor {
	case config.SensorLTR329:
		bus, err := gpio.I2CBus(byte(cfg.I2CBus))
		if err != nil {
			return nil, err
		}
		s, err := als.New(bus, cfg.ALS, log)
		if err != nil {
			return nil, fmt.Errorf("could not set up light sensor: %w", err)
		}
		return s, nil
	case config.SensorADC:
		a, err := gpio.NewADC(cfg.ADC.Channel, cfg.ADC.VRef)
		if err != nil {
			return nil, fmt.Errorf("could not set up ADC: %w", err)
		}
		log.Info("using ADC intensity source", "channel", cfg.ADC.Channel, "vref", cfg.ADC.VRef, "darkFloor", cfg.DarkFloor)
		return a, nil
	default:
		return nil, fmt.Errorf("unknown sensor: %q", cfg.Sensor)
	}
}

// checkCalibrations logs the state of each calibration. A missing one only
// aborts measurements of that analyte, and may be added while running, but
// with none at all there is nothing to measure.
func checkCalibrations(cals *calibration.Store, dir string, log logging.Logger) error {
	var found int
	for _, a := range calibration.Analytes {
		rec, err := cals.Calibration(a)
		if err != nil {
			log.Error("calibration missing, measurements will be aborted until it is added", "analyte", a, "error", err)
			continue
		}
		found++
		log.Info("calibration loaded", "analyte", a, "slope", rec.Slope, "intercept", rec.Intercept, "rSquared", rec.RSquared)
	}
	if found == 0 {
		return fmt.Errorf("no calibrations in %s: %w", dir, calibration.ErrMissingCalibration)
	}
	return nil
}

// reblankOnSignal requests a new blank on each SIGUSR1 until ctx is done.
func reblankOnSignal(ctx context.Context, in *photometer.Instrument, log logging.Logger) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGUSR1)
	defer signal.Stop(sig)

	for {
		select {
		case <-ctx.Done():
			return
		case <-sig:
			log.Info("new blank requested by signal")
			in.RequestBlank()
		}
	}
}
