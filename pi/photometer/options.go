/*
DESCRIPTION
  options.go provides functional options for the Instrument.

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
	"errors"
	"fmt"
	"time"
)

// Option is the function signature returned by option functions below for
// use in the Instrument initialiser.
type Option func(*Instrument) error

// WithSettings returns an Option that replaces the default Settings.
func WithSettings(s Settings) Option {
	return func(in *Instrument) error {
		err := s.Validate()
		if err != nil {
			return fmt.Errorf("invalid settings: %w", err)
		}
		in.cfg = s
		return nil
	}
}

// WithClock returns an Option that sets the clock used for all timing.
func WithClock(c Clock) Option {
	return func(in *Instrument) error {
		if c == nil {
			return errors.New("nil clock")
		}
		in.clock = c
		return nil
	}
}

// WithTraceStore returns an Option that records the raw samples of every
// blank and measurement to ts.
func WithTraceStore(ts TraceStore) Option {
	return func(in *Instrument) error {
		in.traces = ts
		return nil
	}
}

// WithThermometer returns an Option that reads the sample temperature before
// each measurement.
func WithThermometer(t Thermometer) Option {
	return func(in *Instrument) error {
		in.thermo = t
		return nil
	}
}

// WithStateHook returns an Option that calls f on every state transition.
// f runs on the control loop and must not block.
func WithStateHook(f func(State)) Option {
	return func(in *Instrument) error {
		in.hook = f
		return nil
	}
}

// Settings holds the timing and photometric parameters of the instrument.
type Settings struct {
	Timing       Timing
	DarkFloor    float64
	ChoiceWindow time.Duration
	PollInterval time.Duration
	SettlePause  time.Duration // Pause between measurement cycles.
}

// DefaultSettings returns the standard instrument settings.
func DefaultSettings() Settings {
	return Settings{
		Timing:       DefaultTiming(),
		DarkFloor:    DefaultDarkFloor,
		ChoiceWindow: DefaultChoiceWindow,
		PollInterval: DefaultPollInterval,
		SettlePause:  time.Second,
	}
}

// Validate checks that s is usable.
func (s Settings) Validate() error {
	err := s.Timing.Validate()
	if err != nil {
		return err
	}
	switch {
	case s.ChoiceWindow <= 0:
		return fmt.Errorf("choice window must be positive, got %v", s.ChoiceWindow)
	case s.PollInterval <= 0:
		return fmt.Errorf("poll interval must be positive, got %v", s.PollInterval)
	case s.SettlePause < 0:
		return fmt.Errorf("settle pause must not be negative, got %v", s.SettlePause)
	case s.DarkFloor < 0:
		return fmt.Errorf("dark floor must not be negative, got %v", s.DarkFloor)
	}
	return nil
}
