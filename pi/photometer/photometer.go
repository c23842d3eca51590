/*
DESCRIPTION
  photometer.go provides the collaborator interfaces of the photometer core
  and shared types.

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

// Package photometer implements the measurement sequencing and photometric
// computation of a field photometer. Timed raw light readings are turned
// into a blank reference, a sample measurement into an absorbance, and that
// absorbance into a nitrate or phosphate concentration using a calibration
// record. The analyte is chosen by the operator within a timed window after
// each measurement.
//
// Hardware is reached only through the small interfaces below so the whole
// state machine can be driven by fakes.
package photometer

import (
	"context"
	"errors"
	"time"

	"github.com/ausocean/photometer/pi/calibration"
	"github.com/ausocean/photometer/pi/indicator"
)

// Errors.
var (
	// ErrDegenerateMeasurement marks a measurement whose math could not give
	// a meaningful value; a fallback is reported instead. Only logged.
	ErrDegenerateMeasurement = errors.New("degenerate measurement")

	// ErrSensorRead wraps a failed intensity read. A failed tick contributes
	// no sample.
	ErrSensorRead = errors.New("sensor read failure")

	// ErrNoBlank is returned when a sample is measured before any blank.
	ErrNoBlank = errors.New("no blank measurement")
)

// IntensitySource supplies one light intensity reading per sampling tick.
type IntensitySource interface {
	Intensity() (float64, error)
}

// Switch is a binary output, such as the light source.
type Switch interface {
	Set(on bool) error
}

// Button is the operator push button.
type Button interface {
	IsPressed() (bool, error)
}

// Indicators drives the operator facing LEDs. It is satisfied by
// *indicator.Controller.
type Indicators interface {
	Set(ch indicator.Channel, on bool) error
	StartBlink(ch indicator.Channel) error
	StopBlink(ch indicator.Channel)
	Off() error
}

// Calibrations provides calibration records. It is satisfied by
// *calibration.Store.
type Calibrations interface {
	Calibration(a calibration.Analyte) (calibration.Record, error)
}

// ResultStore persists the result of a completed measurement cycle and
// returns where it was written.
type ResultStore interface {
	Save(r ConcentrationResult) (string, error)
}

// TraceStore persists the raw samples of a measurement.
type TraceStore interface {
	SaveTrace(t Trace) (string, error)
}

// Thermometer reads the sample temperature in degrees Celsius.
type Thermometer interface {
	Temperature() (float64, error)
}

// Clock provides the current time and timers. Tests substitute a fake.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Trace is the raw record of one measurement, written when a TraceStore is
// configured.
type Trace struct {
	Label       string // "blank" or the analyte tag.
	Time        time.Time
	Event       MeasurementEvent
	Absorbance  *AbsorbanceResult    // Nil for a blank.
	Result      *ConcentrationResult // Nil for a blank.
	Temperature *float64             // Nil without a thermometer.
}

// sleep waits for d on clk, returning early with the context error if ctx is
// cancelled.
func sleep(ctx context.Context, clk Clock, d time.Duration) error {
	err := ctx.Err()
	if err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-clk.After(d):
		return nil
	}
}
