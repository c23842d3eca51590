/*
DESCRIPTION
  config.go provides the photometer configuration, loaded from defaults, a
  YAML file and a pin map string.

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

// Package config provides configuration for the photometer programs.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ausocean/utils/filemap"
	"gopkg.in/yaml.v2"

	"github.com/ausocean/photometer/pi/als"
	"github.com/ausocean/photometer/pi/indicator"
	"github.com/ausocean/photometer/pi/photometer"
)

// Intensity source kinds.
const (
	SensorLTR329 = "ltr329"
	SensorADC    = "adc"
)

// Default pins (BCM numbering).
const (
	defaultLightPin  = 26
	defaultReadyPin  = 24 // Green.
	defaultBusyPin   = 23 // Red.
	defaultButtonPin = 4
)

// Other defaults.
const (
	defaultI2CBus     = 1
	defaultADCChannel = 0
	defaultADCVRef    = 3.3
	defaultCalDir     = "/home/pi/photometer"
	defaultResultDir  = "/home/pi/photometer/results"
)

// Pins holds the GPIO pin of each device.
type Pins struct {
	Light  int `yaml:"light"`
	Ready  int `yaml:"ready"`
	Busy   int `yaml:"busy"`
	Button int `yaml:"button"`
}

// ADC configures the analog intensity source.
type ADC struct {
	Channel int     `yaml:"channel"`
	VRef    float64 `yaml:"vref"`
}

// Config is the complete photometer configuration.
type Config struct {
	Sensor string       `yaml:"sensor"`
	I2CBus int          `yaml:"i2c_bus"`
	ALS    als.Settings `yaml:"als"`
	ADC    ADC          `yaml:"adc"`
	Pins   Pins         `yaml:"pins"`

	DarkFloor       float64       `yaml:"dark_floor"`
	DarkBefore      time.Duration `yaml:"dark_before"`
	Lit             time.Duration `yaml:"lit"`
	DarkAfter       time.Duration `yaml:"dark_after"`
	Cadence         time.Duration `yaml:"cadence"`
	ChoiceWindow    time.Duration `yaml:"choice_window"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	BlinkHalfPeriod time.Duration `yaml:"blink_half_period"`
	SettlePause     time.Duration `yaml:"settle_pause"`

	CalDir      string `yaml:"cal_dir"`
	ResultDir   string `yaml:"result_dir"`
	Trace       bool   `yaml:"trace"`
	Thermometer bool   `yaml:"thermometer"`
}

// Default returns the configuration of the standard field instrument.
func Default() Config {
	t := photometer.DefaultTiming()
	return Config{
		Sensor: SensorLTR329,
		I2CBus: defaultI2CBus,
		ALS:    als.DefaultSettings(),
		ADC:    ADC{Channel: defaultADCChannel, VRef: defaultADCVRef},
		Pins: Pins{
			Light:  defaultLightPin,
			Ready:  defaultReadyPin,
			Busy:   defaultBusyPin,
			Button: defaultButtonPin,
		},
		DarkFloor:       photometer.DefaultDarkFloor,
		DarkBefore:      t.DarkBefore,
		Lit:             t.Lit,
		DarkAfter:       t.DarkAfter,
		Cadence:         t.Cadence,
		ChoiceWindow:    photometer.DefaultChoiceWindow,
		PollInterval:    photometer.DefaultPollInterval,
		BlinkHalfPeriod: indicator.DefaultHalfPeriod,
		SettlePause:     time.Second,
		CalDir:          defaultCalDir,
		ResultDir:       defaultResultDir,
	}
}

// Load returns the defaults overridden by the YAML file at path. Unknown
// keys are an error. Durations are written like "500ms" or "3s".
func Load(path string) (Config, error) {
	c := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("could not read config: %w", err)
	}
	err = yaml.UnmarshalStrict(b, &c)
	if err != nil {
		return c, fmt.Errorf("could not parse config %s: %w", path, err)
	}
	return c, nil
}

// ApplyPins overrides pins from a string such as
// "light=26,ready=24,busy=23,button=4". Pins not named keep their value.
func (c *Config) ApplyPins(s string) error {
	for k, v := range filemap.Split(s, ",", "=") {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid pin number for %s: %q", k, v)
		}
		switch strings.TrimSpace(k) {
		case "light":
			c.Pins.Light = n
		case "ready":
			c.Pins.Ready = n
		case "busy":
			c.Pins.Busy = n
		case "button":
			c.Pins.Button = n
		default:
			return fmt.Errorf("unknown pin: %q", k)
		}
	}
	return nil
}

// Validate checks that c describes a usable instrument.
func (c Config) Validate() error {
	switch c.Sensor {
	case SensorLTR329:
		err := c.ALS.Validate()
		if err != nil {
			return fmt.Errorf("invalid light sensor settings: %w", err)
		}
	case SensorADC:
		if c.ADC.Channel < 0 || c.ADC.Channel > 7 {
			return fmt.Errorf("invalid ADC channel: %d", c.ADC.Channel)
		}
		if c.ADC.VRef <= 0 {
			return fmt.Errorf("invalid ADC reference voltage: %v", c.ADC.VRef)
		}
	default:
		return fmt.Errorf("unknown sensor: %q", c.Sensor)
	}

	durations := []struct {
		name string
		d    time.Duration
	}{
		{"dark_before", c.DarkBefore},
		{"lit", c.Lit},
		{"dark_after", c.DarkAfter},
		{"cadence", c.Cadence},
		{"choice_window", c.ChoiceWindow},
		{"poll_interval", c.PollInterval},
		{"blink_half_period", c.BlinkHalfPeriod},
		{"settle_pause", c.SettlePause},
	}
	for _, d := range durations {
		if d.d <= 0 {
			return fmt.Errorf("%s must be positive, got %v", d.name, d.d)
		}
	}
	err := c.Instrument().Validate()
	if err != nil {
		return err
	}
	if c.CalDir == "" || c.ResultDir == "" {
		return errors.New("calibration and result directories are required")
	}
	return c.Pins.validate()
}

func (p Pins) validate() error {
	named := map[string]int{"light": p.Light, "ready": p.Ready, "busy": p.Busy, "button": p.Button}
	names := make([]string, 0, len(named))
	for k := range named {
		names = append(names, k)
	}
	sort.Strings(names)

	used := make(map[int]string)
	for _, k := range names {
		n := named[k]
		if n < 0 || n > 27 {
			return fmt.Errorf("%s pin out of range: %d", k, n)
		}
		if other, ok := used[n]; ok {
			return fmt.Errorf("pin %d used for both %s and %s", n, other, k)
		}
		used[n] = k
	}
	return nil
}

// Instrument returns the control loop settings.
func (c Config) Instrument() photometer.Settings {
	return photometer.Settings{
		Timing: photometer.Timing{
			DarkBefore: c.DarkBefore,
			Lit:        c.Lit,
			DarkAfter:  c.DarkAfter,
			Cadence:    c.Cadence,
		},
		DarkFloor:    c.DarkFloor,
		ChoiceWindow: c.ChoiceWindow,
		PollInterval: c.PollInterval,
		SettlePause:  c.SettlePause,
	}
}
