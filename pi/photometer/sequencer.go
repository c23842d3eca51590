/*
DESCRIPTION
  sequencer.go provides the measurement sequencer, which runs the
  dark/illuminated/dark sampling pattern and pools the samples into a single
  measurement event.

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
	"gonum.org/v1/gonum/floats"
)

// Default measurement timing.
const (
	DefaultDarkBefore = 3 * time.Second
	DefaultLit        = 2 * time.Second
	DefaultDarkAfter  = 3 * time.Second
	DefaultCadence    = 500 * time.Millisecond
)

// DegenerateIntensity is the representative intensity of a measurement in
// which no sample could be read.
const DegenerateIntensity = 0.0

// Timing holds the durations of the three sampling windows and the sampling
// cadence shared by all of them.
type Timing struct {
	DarkBefore time.Duration
	Lit        time.Duration
	DarkAfter  time.Duration
	Cadence    time.Duration
}

// DefaultTiming returns the standard 3s dark, 2s lit, 3s dark pattern sampled
// every half second.
func DefaultTiming() Timing {
	return Timing{
		DarkBefore: DefaultDarkBefore,
		Lit:        DefaultLit,
		DarkAfter:  DefaultDarkAfter,
		Cadence:    DefaultCadence,
	}
}

// Validate checks that all durations are usable.
func (t Timing) Validate() error {
	switch {
	case t.Cadence <= 0:
		return fmt.Errorf("cadence must be positive, got %v", t.Cadence)
	case t.DarkBefore < 0 || t.Lit < 0 || t.DarkAfter < 0:
		return fmt.Errorf("window durations must not be negative, got %v/%v/%v", t.DarkBefore, t.Lit, t.DarkAfter)
	}
	return nil
}

// MeasurementEvent is the pooled outcome of one full measurement. Intensity
// is the largest value seen across all three windows, or
// DegenerateIntensity if there were no samples.
type MeasurementEvent struct {
	Start     time.Time
	Intensity float64
	Samples   []Sample
}

// Sequencer runs measurements.
type Sequencer struct {
	src    IntensitySource
	light  Switch
	clock  Clock
	timing Timing
	log    logging.Logger
}

// NewSequencer returns a new Sequencer reading src and driving light.
func NewSequencer(src IntensitySource, light Switch, clk Clock, t Timing, l logging.Logger) *Sequencer {
	return &Sequencer{src: src, light: light, clock: clk, timing: t, log: l}
}

// Measure runs a dark window, an illuminated window and a second dark window
// back to back and pools their samples. The light is on only during the
// illuminated window and is off whenever Measure returns, including on
// cancellation.
func (s *Sequencer) Measure(ctx context.Context) (MeasurementEvent, error) {
	ev := MeasurementEvent{Start: s.clock.Now()}
	s.log.Debug("starting measurement")

	dark := Window{Phase: PhaseDarkBefore, Duration: s.timing.DarkBefore, Cadence: s.timing.Cadence}
	samples, err := dark.Run(ctx, s.src, s.clock, s.log)
	ev.Samples = append(ev.Samples, samples...)
	if err != nil {
		return ev, err
	}

	samples, err = s.illuminated(ctx)
	ev.Samples = append(ev.Samples, samples...)
	if err != nil {
		return ev, err
	}

	dark = Window{Phase: PhaseDarkAfter, Duration: s.timing.DarkAfter, Cadence: s.timing.Cadence}
	samples, err = dark.Run(ctx, s.src, s.clock, s.log)
	ev.Samples = append(ev.Samples, samples...)
	if err != nil {
		return ev, err
	}

	ev.Intensity = representative(ev.Samples)
	if len(ev.Samples) == 0 {
		s.log.Warning("no samples read, using degenerate intensity", "error", ErrDegenerateMeasurement, "intensity", ev.Intensity)
	}
	s.log.Debug("finished measurement", "samples", len(ev.Samples), "intensity", ev.Intensity)
	return ev, nil
}

func (s *Sequencer) illuminated(ctx context.Context) ([]Sample, error) {
	err := s.light.Set(true)
	if err != nil {
		// Try to leave the light off even if switching on half failed.
		s.lightOff()
		return nil, fmt.Errorf("could not turn light on: %w", err)
	}
	defer s.lightOff()

	w := Window{Phase: PhaseIlluminated, Duration: s.timing.Lit, Cadence: s.timing.Cadence}
	return w.Run(ctx, s.src, s.clock, s.log)
}

func (s *Sequencer) lightOff() {
	err := s.light.Set(false)
	if err != nil {
		s.log.Error("could not turn light off", "error", err)
	}
}

// representative returns the largest sample value, or DegenerateIntensity
// when there are none.
func representative(samples []Sample) float64 {
	if len(samples) == 0 {
		return DegenerateIntensity
	}
	vals := make([]float64, len(samples))
	for i, s := range samples {
		vals[i] = s.Value
	}
	return floats.Max(vals)
}
