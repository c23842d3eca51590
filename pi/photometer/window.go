/*
DESCRIPTION
  window.go provides timed sampling windows of intensity readings.

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
	"fmt"
	"time"

	"github.com/ausocean/utils/logging"
)

// Phase names the part of a measurement a sample was taken in.
type Phase string

// Measurement phases.
const (
	PhaseDarkBefore  Phase = "dark-before"
	PhaseIlluminated Phase = "illuminated"
	PhaseDarkAfter   Phase = "dark-after"
)

// Sample is one intensity reading.
type Sample struct {
	Phase Phase
	Time  time.Time
	Value float64
}

// Window samples an IntensitySource at a fixed cadence for a fixed duration.
type Window struct {
	Phase    Phase
	Duration time.Duration
	Cadence  time.Duration
}

// Run reads src once per cadence tick, starting immediately, for as long as
// the window lasts and returns the samples in acquisition order. Ticks fall
// at fixed offsets from the start of the window, so a slow read delays only
// its own sample and a tick that has already passed is skipped. Run never
// reads or waits past the window's end. A failed read is logged and
// contributes no sample; the returned slice is empty if every read failed.
// Run returns early with the context error if ctx is cancelled.
func (w Window) Run(ctx context.Context, src IntensitySource, clk Clock, l logging.Logger) ([]Sample, error) {
	if w.Cadence <= 0 {
		return nil, fmt.Errorf("invalid cadence for %s window: %v", w.Phase, w.Cadence)
	}
	if w.Duration < 0 {
		return nil, fmt.Errorf("invalid duration for %s window: %v", w.Phase, w.Duration)
	}

	start := clk.Now()
	end := start.Add(w.Duration)
	samples := make([]Sample, 0, int(w.Duration/w.Cadence)+1)
	for tick := 0; ; {
		now := clk.Now()
		if now.After(end) {
			return samples, nil
		}
		v, err := src.Intensity()
		if err != nil {
			l.Warning("skipping sample", "phase", w.Phase, "error", fmt.Errorf("%w: %w", ErrSensorRead, err))
		} else {
			samples = append(samples, Sample{Phase: w.Phase, Time: now, Value: v})
		}

		now = clk.Now()
		tick++
		next := start.Add(time.Duration(tick) * w.Cadence)
		for next.Before(now) {
			l.Debug("skipping late tick", "phase", w.Phase, "tick", tick)
			tick++
			next = start.Add(time.Duration(tick) * w.Cadence)
		}
		if next.After(end) {
			return samples, nil
		}
		err = sleep(ctx, clk, next.Sub(now))
		if err != nil {
			return samples, err
		}
	}
}
