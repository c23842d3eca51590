/*
DESCRIPTION
  config_test.go tests configuration defaults, loading, pin overrides and
  validation.

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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	c := Default()
	err := c.Validate()
	if err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	want := Pins{Light: 26, Ready: 24, Busy: 23, Button: 4}
	if c.Pins != want {
		t.Errorf("did not get expected pins. Got: %+v, Want: %+v", c.Pins, want)
	}
	if c.ALS.Gain != 96 || c.ALS.Integration != 400 || c.ALS.Rate != 2000 {
		t.Errorf("did not get expected light sensor settings. Got: %+v", c.ALS)
	}
	s := c.Instrument()
	if s.Timing.DarkBefore != 3*time.Second || s.Timing.Lit != 2*time.Second || s.Timing.DarkAfter != 3*time.Second || s.Timing.Cadence != 500*time.Millisecond {
		t.Errorf("did not get expected timing. Got: %+v", s.Timing)
	}
	if s.ChoiceWindow != 10*time.Second || s.PollInterval != 50*time.Millisecond || s.DarkFloor != 0.0004 || s.SettlePause != time.Second {
		t.Errorf("did not get expected settings. Got: %+v", s)
	}
}

func TestLoad(t *testing.T) {
	const file = `
sensor: adc
adc:
  channel: 2
  vref: 5
dark_floor: 1.11
lit: 30s
cadence: 250ms
pins:
  light: 17
trace: true
`
	path := filepath.Join(t.TempDir(), "photometer.yaml")
	err := os.WriteFile(path, []byte(file), 0644)
	if err != nil {
		t.Fatalf("could not write config: %v", err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := Default()
	want.Sensor = SensorADC
	want.ADC = ADC{Channel: 2, VRef: 5}
	want.DarkFloor = 1.11
	want.Lit = 30 * time.Second
	want.Cadence = 250 * time.Millisecond
	want.Pins.Light = 17
	want.Trace = true
	if c != want {
		t.Errorf("did not get expected config.\nGot:  %+v\nWant: %+v", c, want)
	}
	err = c.Validate()
	if err != nil {
		t.Errorf("loaded config invalid: %v", err)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
	}{
		{name: "unknown.yaml", content: "sensr: adc\n"},
		{name: "badduration.yaml", content: "lit: two seconds\n"},
		{name: "notyaml.yaml", content: "pins: [1, 2\n"},
	}
	for _, test := range tests {
		path := filepath.Join(dir, test.name)
		err := os.WriteFile(path, []byte(test.content), 0644)
		if err != nil {
			t.Fatalf("could not write config: %v", err)
		}
		_, err = Load(path)
		if err == nil {
			t.Errorf("expected error loading %s", test.name)
		}
	}

	_, err := Load(filepath.Join(dir, "absent.yaml"))
	if err == nil {
		t.Error("expected error loading absent file")
	}
}

func TestApplyPins(t *testing.T) {
	tests := []struct {
		in      string
		want    Pins
		wantErr bool
	}{
		{in: "", want: Pins{Light: 26, Ready: 24, Busy: 23, Button: 4}},
		{in: "light=5,button=6", want: Pins{Light: 5, Ready: 24, Busy: 23, Button: 6}},
		{in: "light=5, ready = 13", want: Pins{Light: 5, Ready: 13, Busy: 23, Button: 4}},
		{in: "lamp=5", wantErr: true},
		{in: "light=five", wantErr: true},
		{in: "light", wantErr: true},
	}
	for i, test := range tests {
		c := Default()
		err := c.ApplyPins(test.in)
		if (err != nil) != test.wantErr {
			t.Errorf("did not get expected error for test %d. Got: %v, Want error: %v", i, err, test.wantErr)
			continue
		}
		if !test.wantErr && c.Pins != test.want {
			t.Errorf("did not get expected pins for test %d. Got: %+v, Want: %+v", i, c.Pins, test.want)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"unknown sensor", func(c *Config) { c.Sensor = "tsl2591" }},
		{"bad gain", func(c *Config) { c.ALS.Gain = 3 }},
		{"bad adc channel", func(c *Config) { c.Sensor = SensorADC; c.ADC.Channel = 8 }},
		{"zero cadence", func(c *Config) { c.Cadence = 0 }},
		{"negative window", func(c *Config) { c.DarkAfter = -time.Second }},
		{"zero choice window", func(c *Config) { c.ChoiceWindow = 0 }},
		{"zero blink", func(c *Config) { c.BlinkHalfPeriod = 0 }},
		{"negative dark floor", func(c *Config) { c.DarkFloor = -1 }},
		{"duplicate pin", func(c *Config) { c.Pins.Button = c.Pins.Light }},
		{"pin out of range", func(c *Config) { c.Pins.Busy = 40 }},
		{"no result dir", func(c *Config) { c.ResultDir = "" }},
	}
	for _, test := range tests {
		c := Default()
		test.modify(&c)
		err := c.Validate()
		if err == nil {
			t.Errorf("expected error for %s", test.name)
		}
	}
}
