/*
DESCRIPTION
  calibrate.go provides the calibration session, which measures a blank and a
  series of standard solutions and fits a calibration record to them.

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
	"time"

	"github.com/ausocean/photometer/pi/calibration"
	"github.com/ausocean/photometer/pi/indicator"
	"github.com/ausocean/utils/logging"
)

// Prompter asks the operator to do something and returns once they have.
type Prompter interface {
	Prompt(ctx context.Context, msg string) error
}

// ButtonPrompter prompts through the log and the ready indicator and waits
// for a button press, for calibrating without a terminal.
type ButtonPrompter struct {
	Button     Button
	Indicators Indicators
	Clock      Clock
	Poll       time.Duration
	Log        logging.Logger
}

// Prompt implements Prompter.
func (p *ButtonPrompter) Prompt(ctx context.Context, msg string) error {
	clk := p.Clock
	if clk == nil {
		clk = SystemClock
	}
	poll := p.Poll
	if poll <= 0 {
		poll = DefaultPollInterval
	}

	p.Log.Info(msg)
	err := p.Indicators.Set(indicator.Ready, true)
	if err != nil {
		p.Log.Warning("could not set ready indicator", "error", err)
	}
	defer func() {
		err := p.Indicators.Set(indicator.Ready, false)
		if err != nil {
			p.Log.Warning("could not clear ready indicator", "error", err)
		}
	}()
	return waitForPress(ctx, p.Button, clk, poll, p.Log)
}

// Calibrate runs a calibration session for analyte a. One blank is measured
// first, then each standard concentration in turn, every measurement going
// through the same sequencing and absorbance calculation as a field
// measurement. The fitted record is returned along with the absorbances it
// was fitted to.
func Calibrate(ctx context.Context, seq *Sequencer, p Prompter, a calibration.Analyte, standards []float64, darkFloor float64, l logging.Logger) (calibration.Record, *calibration.Results, error) {
	if len(standards) < 2 {
		return calibration.Record{}, nil, errors.New("at least two standards are required")
	}

	err := p.Prompt(ctx, fmt.Sprintf("Insert the blank for %v calibration", a))
	if err != nil {
		return calibration.Record{}, nil, err
	}
	blank, err := seq.Measure(ctx)
	if err != nil {
		return calibration.Record{}, nil, fmt.Errorf("could not measure blank: %w", err)
	}
	if blank.Intensity <= darkFloor {
		l.Warning("blank is at or below dark floor", "error", ErrDegenerateMeasurement, "intensity", blank.Intensity)
	}
	l.Info("blank recorded", "analyte", a, "intensity", blank.Intensity)

	res := calibration.NewResults(len(standards))
	for _, c := range standards {
		err = p.Prompt(ctx, fmt.Sprintf("Insert the %v %g %s standard", a, c, Unit))
		if err != nil {
			return calibration.Record{}, res, err
		}
		ev, err := seq.Measure(ctx)
		if err != nil {
			return calibration.Record{}, res, fmt.Errorf("could not measure %g %s standard: %w", c, Unit, err)
		}
		abs := Absorbance(blank, ev, darkFloor)
		if abs.Degenerate {
			l.Warning("absorbance undefined, using 0", "error", ErrDegenerateMeasurement, "standard", c)
		}
		res.Add(c, abs.Value)
		l.Info("standard measured", "analyte", a, "concentration", c, "intensity", ev.Intensity, "absorbance", abs.Value)
	}

	rec, err := res.Fit(a)
	if err != nil {
		return calibration.Record{}, res, fmt.Errorf("could not fit %v calibration: %w", a, err)
	}
	l.Info("calibration fitted", "analyte", a, "slope", rec.Slope, "intercept", rec.Intercept, "rSquared", rec.RSquared)
	return rec, res, nil
}
