/*
DESCRIPTION
  thermometer.go provides a sample temperature probe using a DS18B20 one-wire
  sensor.

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

// Package thermometer reads the sample temperature from a DS18B20 probe on
// the one-wire bus.
package thermometer

import (
	"errors"
	"fmt"

	"github.com/yryz/ds18b20"
)

// DS18B20 measurement range in degrees Celsius.
const (
	minTemp = -55.0
	maxTemp = 125.0
)

// ErrNoProbe is returned by New when no sensor is on the bus.
var ErrNoProbe = errors.New("no DS18B20 sensors connected")

// Swapped in tests.
var (
	sensors     = ds18b20.Sensors
	temperature = ds18b20.Temperature
)

// Probe is one DS18B20 sensor.
type Probe struct {
	id string
}

// New returns the first probe found on the bus.
func New() (*Probe, error) {
	ids, err := sensors()
	if err != nil {
		return nil, fmt.Errorf("could not list one-wire sensors: %w", err)
	}
	for _, id := range ids {
		if id != "" {
			return &Probe{id: id}, nil
		}
	}
	return nil, ErrNoProbe
}

// ID returns the probe's one-wire device id.
func (p *Probe) ID() string { return p.id }

// Temperature returns the temperature in degrees Celsius.
func (p *Probe) Temperature() (float64, error) {
	t, err := temperature(p.id)
	if err != nil {
		return 0, fmt.Errorf("could not read probe %s: %w", p.id, err)
	}
	if t < minTemp || t > maxTemp {
		return 0, fmt.Errorf("probe %s reading out of range: %v", p.id, t)
	}
	return t, nil
}
