/*
DESCRIPTION
  instrument.go provides the Instrument, the control loop that walks the
  operator through blanking, analyte choice and measurement.

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

package photometer

import (
	"context"
	"errors"
	"fmt"

	"github.com/ausocean/photometer/pi/calibration"
	"github.com/ausocean/photometer/pi/indicator"
	"github.com/ausocean/utils/logging"
)

// State is the state of the control loop.
type State int

// Control loop states.
const (
	AwaitingBlank State = iota
	Ready
	AwaitingAnalyteChoice
	Measuring
)

func (s State) String() string {
	switch s {
	case AwaitingBlank:
		return "awaiting-blank"
	case Ready:
		return "ready"
	case AwaitingAnalyteChoice:
		return "awaiting-analyte-choice"
	case Measuring:
		return "measuring"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Hardware groups the devices the Instrument drives.
type Hardware struct {
	Source     IntensitySource
	Light      Switch
	Button     Button
	Indicators Indicators
}

func (h Hardware) validate() error {
	switch {
	case h.Source == nil:
		return errors.New("no intensity source")
	case h.Light == nil:
		return errors.New("no light source")
	case h.Button == nil:
		return errors.New("no button")
	case h.Indicators == nil:
		return errors.New("no indicators")
	}
	return nil
}

// Instrument runs measurement cycles. All of its state is owned by the
// goroutine calling Run; only RequestBlank may be called concurrently.
type Instrument struct {
	hw      Hardware
	cals    Calibrations
	results ResultStore
	traces  TraceStore
	thermo  Thermometer
	hook    func(State)
	clock   Clock
	cfg     Settings
	log     logging.Logger

	seq     *Sequencer
	sel     *Selector
	state   State
	analyte calibration.Analyte
	blank   *MeasurementEvent
	reblank chan struct{}
}

// New returns a new Instrument.
func New(hw Hardware, cals Calibrations, results ResultStore, l logging.Logger, options ...Option) (*Instrument, error) {
	err := hw.validate()
	if err != nil {
		return nil, fmt.Errorf("invalid hardware: %w", err)
	}
	if cals == nil || results == nil {
		return nil, errors.New("calibrations and result store are required")
	}

	in := &Instrument{
		hw:      hw,
		cals:    cals,
		results: results,
		clock:   SystemClock,
		cfg:     DefaultSettings(),
		log:     l,
		reblank: make(chan struct{}, 1),
	}
	for i, opt := range options {
		err := opt(in)
		if err != nil {
			return nil, fmt.Errorf("could not apply option %d: %w", i, err)
		}
	}

	in.seq = NewSequencer(hw.Source, hw.Light, in.clock, in.cfg.Timing, l)
	in.sel = NewSelector(hw.Button, hw.Indicators, in.clock, in.cfg.ChoiceWindow, in.cfg.PollInterval, l)
	return in, nil
}

// RequestBlank asks the control loop to take a new blank the next time it
// is Ready. Multiple requests before then collapse into one.
func (in *Instrument) RequestBlank() {
	select {
	case in.reblank <- struct{}{}:
	default:
	}
}

// Run drives the control loop until ctx is cancelled, then turns the light
// and all indicators off and returns the context error. Failures inside a
// cycle are logged and the loop carries on.
func (in *Instrument) Run(ctx context.Context) error {
	defer in.shutdown()

	in.setState(AwaitingBlank)
	for {
		err := ctx.Err()
		if err != nil {
			return err
		}

		switch in.state {
		case AwaitingBlank:
			err = in.takeBlank(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				in.log.Error("could not take blank", "error", err)
				err = in.settle(ctx)
				break
			}
			in.setState(Ready)

		case Ready:
			select {
			case <-in.reblank:
				in.log.Info("new blank requested")
				in.setState(AwaitingBlank)
				continue
			default:
			}
			in.setState(AwaitingAnalyteChoice)

		case AwaitingAnalyteChoice:
			in.analyte, err = in.sel.Select(ctx)
			if err != nil {
				return err
			}
			in.setState(Measuring)

		case Measuring:
			err = in.measure(ctx, in.analyte)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				in.log.Error("measurement cycle aborted", "analyte", in.analyte, "error", err)
			}
			in.setState(Ready)
			err = in.settle(ctx)
		}
		if err != nil {
			return err
		}
	}
}

func (in *Instrument) setState(s State) {
	in.log.Debug("state transition", "from", in.state, "to", s)
	in.state = s
	if in.hook != nil {
		in.hook(s)
	}
}

func (in *Instrument) settle(ctx context.Context) error {
	if in.cfg.SettlePause == 0 {
		return nil
	}
	return sleep(ctx, in.clock, in.cfg.SettlePause)
}

// takeBlank waits for the operator to insert the blank and press the
// button, then measures it.
func (in *Instrument) takeBlank(ctx context.Context) error {
	in.set(indicator.Busy, false)
	in.set(indicator.Ready, true)
	in.log.Info("insert blank and press button")

	err := waitForPress(ctx, in.hw.Button, in.clock, in.cfg.PollInterval, in.log)
	if err != nil {
		return err
	}

	in.set(indicator.Ready, false)
	in.set(indicator.Busy, true)
	ev, err := in.seq.Measure(ctx)
	in.set(indicator.Busy, false)
	if err != nil {
		return fmt.Errorf("could not measure blank: %w", err)
	}

	if ev.Intensity <= in.cfg.DarkFloor {
		in.log.Warning("blank is at or below dark floor, absorbances will be degenerate", "error", ErrDegenerateMeasurement, "intensity", ev.Intensity, "darkFloor", in.cfg.DarkFloor)
	}
	in.blank = &ev
	in.log.Info("blank recorded", "intensity", ev.Intensity, "samples", len(ev.Samples))
	in.trace(Trace{Label: "blank", Time: ev.Start, Event: ev})
	return nil
}

// measure runs one sample measurement for analyte a and saves its result.
// The calibration is loaded before the operator is asked for the sample, so
// a missing calibration aborts the cycle without measuring.
func (in *Instrument) measure(ctx context.Context, a calibration.Analyte) error {
	// The selector leaves ready blinking for nitrate.
	defer in.hw.Indicators.StopBlink(indicator.Ready)

	if in.blank == nil {
		return ErrNoBlank
	}
	rec, err := in.cals.Calibration(a)
	if err != nil {
		return fmt.Errorf("could not get %v calibration: %w", a, err)
	}

	if a != calibration.Nitrate {
		in.set(indicator.Ready, true)
	}
	in.log.Info("insert sample and press button", "analyte", a)
	err = waitForPress(ctx, in.hw.Button, in.clock, in.cfg.PollInterval, in.log)
	if err != nil {
		return err
	}
	if a != calibration.Nitrate {
		in.set(indicator.Ready, false)
	}

	temp := in.temperature()
	in.set(indicator.Busy, true)
	ev, err := in.seq.Measure(ctx)
	in.set(indicator.Busy, false)
	if err != nil {
		return fmt.Errorf("could not measure sample: %w", err)
	}

	abs := Absorbance(*in.blank, ev, in.cfg.DarkFloor)
	if abs.Degenerate {
		in.log.Warning("absorbance undefined, reporting 0", "error", ErrDegenerateMeasurement, "blank", in.blank.Intensity, "sample", ev.Intensity)
	}
	res := Convert(abs, rec)
	res.Time = in.clock.Now()
	if rec.Slope == 0 {
		in.log.Warning("calibration slope is zero, reporting 0", "error", ErrDegenerateMeasurement, "analyte", a)
	}

	path, err := in.results.Save(res)
	if err != nil {
		in.log.Error("could not save result", "error", err)
	}
	in.log.Info("measurement complete", "analyte", a, "intensity", ev.Intensity, "absorbance", abs.Value, "concentration", res.Value, "unit", res.Unit, "file", path)
	in.trace(Trace{Label: a.Tag(), Time: ev.Start, Event: ev, Absorbance: &abs, Result: &res, Temperature: temp})
	return nil
}

func (in *Instrument) temperature() *float64 {
	if in.thermo == nil {
		return nil
	}
	t, err := in.thermo.Temperature()
	if err != nil {
		in.log.Warning("could not read temperature", "error", err)
		return nil
	}
	in.log.Debug("sample temperature", "celsius", t)
	return &t
}

func (in *Instrument) trace(t Trace) {
	if in.traces == nil {
		return
	}
	path, err := in.traces.SaveTrace(t)
	if err != nil {
		in.log.Warning("could not save trace", "error", err)
		return
	}
	in.log.Debug("saved trace", "file", path)
}

func (in *Instrument) set(ch indicator.Channel, on bool) {
	err := in.hw.Indicators.Set(ch, on)
	if err != nil {
		in.log.Warning("could not set indicator", "indicator", ch, "error", err)
	}
}

// shutdown leaves the hardware in a safe state.
func (in *Instrument) shutdown() {
	err := in.hw.Light.Set(false)
	if err != nil {
		in.log.Error("could not turn light off", "error", err)
	}
	err = in.hw.Indicators.Off()
	if err != nil {
		in.log.Error("could not turn indicators off", "error", err)
	}
	in.log.Info("instrument stopped")
}
