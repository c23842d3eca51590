/*
DESCRIPTION
  ltr329.go provides a driver for the Lite-On LTR-329ALS ambient light sensor
  over I2C, used as the photodiode of the photometer.

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

// Package als provides the ambient light sensor used to measure light
// transmitted through a sample, and the conversion of its two photodiode
// channel counts into a single intensity.
package als

import (
	"errors"
	"fmt"
	"time"

	"github.com/ausocean/utils/logging"
)

// I2C address of the LTR-329.
const Addr = 0x29

// Registers.
const (
	regControl   = 0x80
	regMeasRate  = 0x85
	regPartID    = 0x86
	regManufacID = 0x87
	regCh1Low    = 0x88 // CH1 low, CH1 high, CH0 low, CH0 high follow.
	regStatus    = 0x8C
)

// Identification and status values.
const (
	partID        = 0xA
	manufacID     = 0x05
	modeActive    = 0x01
	statusInvalid = 0x80
)

// Time for the sensor to wake from standby.
const wakeupWait = 10 * time.Millisecond

// Default settings, matching the field instrument.
const (
	DefaultGain        = 96
	DefaultIntegration = 400  // ms.
	DefaultRate        = 2000 // ms.
)

// ErrInvalidData is returned when the sensor flags its latest reading as
// invalid, e.g. after a settings change or on saturation.
var ErrInvalidData = errors.New("sensor data invalid")

var gainCodes = map[int]byte{1: 0, 2: 1, 4: 2, 8: 3, 48: 6, 96: 7}

var integrationCodes = map[int]byte{100: 0, 50: 1, 200: 2, 400: 3, 150: 4, 250: 5, 300: 6, 350: 7}

var rateCodes = map[int]byte{50: 0, 100: 1, 200: 2, 500: 3, 1000: 4, 2000: 5}

// Bus is the subset of an I2C bus (e.g. embd.I2CBus) used by the driver.
type Bus interface {
	ReadByteFromReg(addr, reg byte) (byte, error)
	ReadFromReg(addr, reg byte, value []byte) error
	WriteByteToReg(addr, reg, value byte) error
}

// Settings holds the sensor configuration.
type Settings struct {
	Gain        int // Analog gain; one of 1, 2, 4, 8, 48, 96.
	Integration int // Integration time in ms; 50 to 400 in steps of 50.
	Rate        int // Measurement repeat rate in ms; 50, 100, 200, 500, 1000 or 2000.
}

// DefaultSettings returns the settings used by the field instrument.
func DefaultSettings() Settings {
	return Settings{Gain: DefaultGain, Integration: DefaultIntegration, Rate: DefaultRate}
}

// Validate checks s can be programmed into the sensor.
func (s Settings) Validate() error {
	if _, ok := gainCodes[s.Gain]; !ok {
		return fmt.Errorf("unsupported gain: %d", s.Gain)
	}
	if _, ok := integrationCodes[s.Integration]; !ok {
		return fmt.Errorf("unsupported integration time: %dms", s.Integration)
	}
	if _, ok := rateCodes[s.Rate]; !ok {
		return fmt.Errorf("unsupported measurement rate: %dms", s.Rate)
	}
	if s.Rate < s.Integration {
		return fmt.Errorf("measurement rate %dms shorter than integration time %dms", s.Rate, s.Integration)
	}
	return nil
}

// LTR329 is an LTR-329ALS sensor.
type LTR329 struct {
	bus      Bus
	settings Settings
	log      logging.Logger
}

// New checks the identity of the sensor on bus, programs settings s and
// puts it in active mode.
func New(bus Bus, s Settings, l logging.Logger) (*LTR329, error) {
	err := s.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	part, err := bus.ReadByteFromReg(Addr, regPartID)
	if err != nil {
		return nil, fmt.Errorf("could not read part id: %w", err)
	}
	manufac, err := bus.ReadByteFromReg(Addr, regManufacID)
	if err != nil {
		return nil, fmt.Errorf("could not read manufacturer id: %w", err)
	}
	if part>>4 != partID || manufac != manufacID {
		return nil, fmt.Errorf("unexpected device at 0x%02x: part 0x%02x, manufacturer 0x%02x", Addr, part, manufac)
	}

	err = bus.WriteByteToReg(Addr, regControl, gainCodes[s.Gain]<<2|modeActive)
	if err != nil {
		return nil, fmt.Errorf("could not write control register: %w", err)
	}
	err = bus.WriteByteToReg(Addr, regMeasRate, integrationCodes[s.Integration]<<3|rateCodes[s.Rate])
	if err != nil {
		return nil, fmt.Errorf("could not write measurement rate register: %w", err)
	}
	time.Sleep(wakeupWait)

	l.Info("light sensor configured", "gain", s.Gain, "integration(ms)", s.Integration, "rate(ms)", s.Rate)
	return &LTR329{bus: bus, settings: s, log: l}, nil
}

// Channels returns the latest CH0 (visible+IR) and CH1 (IR) counts.
func (s *LTR329) Channels() (ch0, ch1 uint16, err error) {
	status, err := s.bus.ReadByteFromReg(Addr, regStatus)
	if err != nil {
		return 0, 0, fmt.Errorf("could not read status: %w", err)
	}
	if status&statusInvalid != 0 {
		return 0, 0, ErrInvalidData
	}

	// CH1 must be read before CH0; a block read from CH1 low does both.
	b := make([]byte, 4)
	err = s.bus.ReadFromReg(Addr, regCh1Low, b)
	if err != nil {
		return 0, 0, fmt.Errorf("could not read channel data: %w", err)
	}
	ch1 = uint16(b[1])<<8 | uint16(b[0])
	ch0 = uint16(b[3])<<8 | uint16(b[2])
	return ch0, ch1, nil
}

// Intensity returns the current light intensity, rounded to 4 decimals.
func (s *LTR329) Intensity() (float64, error) {
	ch0, ch1, err := s.Channels()
	if err != nil {
		return 0, err
	}
	lux := round4(Lux(ch0, ch1, float64(s.settings.Gain), float64(s.settings.Integration)))
	s.log.Debug("read light sensor", "ch0", ch0, "ch1", ch1, "intensity", lux)
	return lux, nil
}

// Close puts the sensor in standby.
func (s *LTR329) Close() error {
	err := s.bus.WriteByteToReg(Addr, regControl, 0)
	if err != nil {
		return fmt.Errorf("could not put sensor in standby: %w", err)
	}
	return nil
}
