/*
DESCRIPTION
  selector.go provides the operator press wait and the timed analyte choice.

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
	"time"

	"github.com/ausocean/photometer/pi/calibration"
	"github.com/ausocean/photometer/pi/indicator"
	"github.com/ausocean/utils/logging"
)

// Analyte choice defaults.
const (
	DefaultChoiceWindow = 10 * time.Second
	DefaultPollInterval = 50 * time.Millisecond
)

// pressed reads b, treating a failed read as held down so that a press is
// only recognised after a clean release has been seen.
func pressed(b Button, l logging.Logger) bool {
	p, err := b.IsPressed()
	if err != nil {
		l.Warning("could not read button", "error", err)
		return true
	}
	return p
}

// waitForPress polls b every poll interval until a press edge is seen. A
// button already held when the wait starts must be released first.
func waitForPress(ctx context.Context, b Button, clk Clock, poll time.Duration, l logging.Logger) error {
	prev := pressed(b, l)
	for {
		err := sleep(ctx, clk, poll)
		if err != nil {
			return err
		}
		p, err := b.IsPressed()
		if err != nil {
			l.Warning("could not read button", "error", err)
			continue
		}
		if p && !prev {
			return nil
		}
		prev = p
	}
}

// Selector races an operator press against a timeout to choose the analyte
// of the next measurement. A press chooses Nitrate and the timeout chooses
// Phosphate.
type Selector struct {
	button Button
	ind    Indicators
	clock  Clock
	window time.Duration
	poll   time.Duration
	log    logging.Logger
}

// NewSelector returns a new Selector.
func NewSelector(b Button, ind Indicators, clk Clock, window, poll time.Duration, l logging.Logger) *Selector {
	return &Selector{button: b, ind: ind, clock: clk, window: window, poll: poll, log: l}
}

// Select runs one choice window. The busy indicator blinks while the window
// is open. A press edge seen at or before the deadline chooses Nitrate and
// ends the window at once, leaving the ready indicator blinking; otherwise
// Phosphate is chosen when the deadline passes. The button is always polled
// exactly at the deadline. Only a cancelled ctx produces an error.
func (s *Selector) Select(ctx context.Context) (calibration.Analyte, error) {
	err := s.ind.StartBlink(indicator.Busy)
	if err != nil {
		s.log.Warning("could not blink busy indicator", "error", err)
	}
	defer s.ind.StopBlink(indicator.Busy)

	deadline := s.clock.Now().Add(s.window)
	prev := pressed(s.button, s.log)
	s.log.Info("waiting for analyte choice", "window", s.window)

	choice := calibration.Phosphate
	for {
		now := s.clock.Now()
		p, err := s.button.IsPressed()
		switch {
		case err != nil:
			s.log.Warning("could not read button", "error", err)
		case p && !prev && !now.After(deadline):
			choice = calibration.Nitrate
		default:
			prev = p
		}
		if choice == calibration.Nitrate || !now.Before(deadline) {
			break
		}

		wait := s.poll
		if rem := deadline.Sub(now); rem < wait {
			wait = rem
		}
		err = sleep(ctx, s.clock, wait)
		if err != nil {
			return choice, err
		}
	}

	// Busy must have stopped before ready starts to blink.
	s.ind.StopBlink(indicator.Busy)
	if choice == calibration.Nitrate {
		err = s.ind.StartBlink(indicator.Ready)
		if err != nil {
			s.log.Warning("could not blink ready indicator", "error", err)
		}
	}
	s.log.Info("analyte selected", "analyte", choice)
	return choice, nil
}
