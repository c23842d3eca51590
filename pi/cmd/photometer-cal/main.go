/*
DESCRIPTION
  photometer-cal is the calibration program. For each analyte it measures a
  blank and a series of standard solutions, fits a straight line of
  absorbance against concentration and writes the calibration file read by
  the field instrument.

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

// Photometer-cal calibrates the field photometer. The operator is prompted
// on the terminal for the blank and each standard, or with the ready LED and
// push button when run with -button.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	_ "github.com/kidoman/embd/host/rpi"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"github.com/ausocean/photometer/pi/als"
	"github.com/ausocean/photometer/pi/calibration"
	"github.com/ausocean/photometer/pi/config"
	"github.com/ausocean/photometer/pi/gpio"
	"github.com/ausocean/photometer/pi/indicator"
	"github.com/ausocean/photometer/pi/photometer"
	"github.com/ausocean/utils/logging"
)

// Logging configuration.
const (
	logPath      = "/var/log/photometer/photometer-cal.log"
	logMaxSize   = 500 // MB
	logMaxBackup = 10
	logMaxAge    = 28 // days
	logSuppress  = false
)

const plotDir = "plots"

func main() {
	var (
		configPath = flag.String("config", "", "YAML configuration file")
		pins       = flag.String("pins", "", `pin overrides, e.g. "light=26,ready=24,busy=23,button=4"`)
		sensor     = flag.String("sensor", "", "intensity source, ltr329 or adc")
		calDir     = flag.String("caldir", "", "directory to write N_cal.txt and P_cal.txt to")
		analytes   = flag.String("analytes", "N,P", "comma separated analytes to calibrate")
		standards  = flag.String("standards", "", "comma separated standard concentrations in mg/L, for a single analyte")
		useButton  = flag.Bool("button", false, "prompt with the ready LED and button instead of the terminal")
		plot       = flag.Bool("plot", true, "plot each calibration curve")
		debug      = flag.Bool("debug", false, "log at debug level")
	)
	flag.Parse()

	verbosity := logging.Info
	if *debug {
		verbosity = logging.Debug
	}
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
	err = cfg.Validate()
	if err != nil {
		log.Fatal("invalid config", "error", err)
	}

	plan, err := parsePlan(*analytes, *standards)
	if err != nil {
		log.Fatal("invalid calibration plan", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = run(ctx, cfg, plan, *useButton, *plot, log)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("calibration failed", "error", err)
	}
}

// step is the calibration of one analyte.
type step struct {
	analyte   calibration.Analyte
	standards []float64
}

// parsePlan returns the calibration steps for a list of analytes such as
// "N,P", using each analyte's default standards unless standards, a list
// such as "0.1,0.5,1", is given for a single analyte.
func parsePlan(analytes, standards string) ([]step, error) {
	var plan []step
	for _, s := range strings.Split(analytes, ",") {
		if strings.TrimSpace(s) == "" {
			continue
		}
		a, err := calibration.ParseAnalyte(s)
		if err != nil {
			return nil, err
		}
		plan = append(plan, step{analyte: a, standards: calibration.DefaultStandards(a)})
	}
	if len(plan) == 0 {
		return nil, errors.New("no analytes")
	}
	if standards == "" {
		return plan, nil
	}

	if len(plan) != 1 {
		return nil, errors.New("standards may only be given for a single analyte")
	}
	var conc []float64
	for _, s := range strings.Split(standards, ",") {
		c, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid standard %q: %w", s, err)
		}
		if c < 0 {
			return nil, fmt.Errorf("negative standard: %v", c)
		}
		conc = append(conc, c)
	}
	plan[0].standards = conc
	return plan, nil
}

func run(ctx context.Context, cfg config.Config, plan []step, useButton, plot bool, log logging.Logger) error {
	defer func() {
		err := gpio.Close()
		if err != nil {
			log.Warning("could not release GPIO drivers", "error", err)
		}
	}()

	err := os.MkdirAll(cfg.CalDir, 0755)
	if err != nil {
		return fmt.Errorf("could not create calibration directory: %w", err)
	}

	var src interface {
		photometer.IntensitySource
		Close() error
	}
	switch cfg.Sensor {
	case config.SensorLTR329:
		bus, err := gpio.I2CBus(byte(cfg.I2CBus))
		if err != nil {
			return err
		}
		src, err = als.New(bus, cfg.ALS, log)
		if err != nil {
			return fmt.Errorf("could not set up light sensor: %w", err)
		}
	case config.SensorADC:
		src, err = gpio.NewADC(cfg.ADC.Channel, cfg.ADC.VRef)
		if err != nil {
			return fmt.Errorf("could not set up ADC: %w", err)
		}
	}
	defer src.Close()

	light, err := gpio.NewOutput(cfg.Pins.Light)
	if err != nil {
		return fmt.Errorf("could not set up light: %w", err)
	}
	defer light.Close()

	var prompt photometer.Prompter = &terminalPrompter{in: bufio.NewReader(os.Stdin), out: os.Stdout}
	if useButton {
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
		defer ind.Off()
		prompt = &photometer.ButtonPrompter{Button: button, Indicators: ind, Poll: cfg.PollInterval, Log: log}
	}

	s := cfg.Instrument()
	seq := photometer.NewSequencer(src, light, photometer.SystemClock, s.Timing, log)
	for _, st := range plan {
		rec, res, err := photometer.Calibrate(ctx, seq, prompt, st.analyte, st.standards, s.DarkFloor, log)
		if err != nil {
			return fmt.Errorf("could not calibrate %v: %w", st.analyte, err)
		}

		path, err := calibration.Save(cfg.CalDir, rec, res, time.Now())
		if err != nil {
			return err
		}
		log.Info("calibration saved", "analyte", st.analyte, "file", path)
		fmt.Printf("%v: absorbance = %g * c + %g, R^2 = %g, saved to %s\n", st.analyte, rec.Slope, rec.Intercept, rec.RSquared, path)

		if !plot {
			continue
		}
		dir := filepath.Join(cfg.CalDir, plotDir)
		err = os.MkdirAll(dir, 0755)
		if err == nil {
			err = calibration.Plot(dir, rec, res)
		}
		if err != nil {
			log.Warning("could not plot calibration", "analyte", st.analyte, "error", err)
		}
	}
	return nil
}

// terminalPrompter prompts on a terminal and waits for Enter.
type terminalPrompter struct {
	in  *bufio.Reader
	out io.Writer
}

// Prompt returns early if ctx is cancelled, leaving the pending read blocked
// on the terminal. This only happens when the program is exiting, so the
// read is never resumed.
func (p *terminalPrompter) Prompt(ctx context.Context, msg string) error {
	fmt.Fprintf(p.out, "%s, then press Enter: ", msg)

	done := make(chan error, 1)
	go func() {
		_, err := p.in.ReadString('\n')
		done <- err
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil {
			return fmt.Errorf("could not read from terminal: %w", err)
		}
		return nil
	}
}
