/*
DESCRIPTION
  gpio.go provides Raspberry Pi digital outputs, a push button input and an
  MCP3008 analog input using embd.

AUTHOR
  Jack Richardson <richardson.jack@outlook.com>
  Saxon Nelson-Milton <saxon@ausocean.org>

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

// Package gpio provides the Raspberry Pi devices of the photometer: digital
// outputs for the light source and indicator LEDs, the operator push button
// and an MCP3008 analog to digital converter. A host driver such as
// github.com/kidoman/embd/host/rpi must be imported by the program.
package gpio

import (
	"fmt"
	"math"
	"sync"

	"github.com/kidoman/embd"
	"github.com/kidoman/embd/convertors/mcp3008"
)

// SPI bus properties.
const (
	spiMode    = embd.SPIMode0
	spiChannel = 0
	spiSpeed   = 1000000
	spiBPW     = 0
	spiDelay   = 0
)

// adcMax is the largest reading of the 10 bit MCP3008.
const adcMax = 1023

// Driver initialisation state.
var (
	mu     sync.Mutex
	gpioOn bool
	spiOn  bool
	i2cOn  bool
	spiBus embd.SPIBus
	i2cBus = make(map[byte]embd.I2CBus)
)

func initGPIO() error {
	mu.Lock()
	defer mu.Unlock()
	if gpioOn {
		return nil
	}
	err := embd.InitGPIO()
	if err != nil {
		return fmt.Errorf("could not initialise GPIO drivers: %w", err)
	}
	gpioOn = true
	return nil
}

func initSPI() (embd.SPIBus, error) {
	mu.Lock()
	defer mu.Unlock()
	if spiOn {
		return spiBus, nil
	}
	err := embd.InitSPI()
	if err != nil {
		return nil, fmt.Errorf("could not initialise SPI drivers: %w", err)
	}
	spiBus = embd.NewSPIBus(spiMode, spiChannel, spiSpeed, spiBPW, spiDelay)
	spiOn = true
	return spiBus, nil
}

// I2CBus initialises the I2C drivers if needed and returns bus n.
func I2CBus(n byte) (embd.I2CBus, error) {
	mu.Lock()
	defer mu.Unlock()
	if !i2cOn {
		err := embd.InitI2C()
		if err != nil {
			return nil, fmt.Errorf("could not initialise I2C drivers: %w", err)
		}
		i2cOn = true
	}
	b, ok := i2cBus[n]
	if !ok {
		b = embd.NewI2CBus(n)
		i2cBus[n] = b
	}
	return b, nil
}

// Close releases every driver that was initialised.
func Close() error {
	mu.Lock()
	defer mu.Unlock()

	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if spiOn {
		keep(spiBus.Close())
		keep(embd.CloseSPI())
		spiOn = false
	}
	if i2cOn {
		for n, b := range i2cBus {
			keep(b.Close())
			delete(i2cBus, n)
		}
		keep(embd.CloseI2C())
		i2cOn = false
	}
	if gpioOn {
		keep(embd.CloseGPIO())
		gpioOn = false
	}
	return firstErr
}

// pin is the part of embd.DigitalPin used here.
type pin interface {
	N() int
	Write(val int) error
	Read() (int, error)
	SetDirection(dir embd.Direction) error
	ActiveLow(b bool) error
	Close() error
}

// Output is a digital output pin, such as the light source or an LED.
type Output struct {
	pin pin
}

// NewOutput configures GPIO pin n as an output driven low.
func NewOutput(n int) (*Output, error) {
	err := initGPIO()
	if err != nil {
		return nil, err
	}
	p, err := embd.NewDigitalPin(n)
	if err != nil {
		return nil, fmt.Errorf("could not open pin %d: %w", n, err)
	}
	return newOutput(p)
}

func newOutput(p pin) (*Output, error) {
	err := p.SetDirection(embd.Out)
	if err != nil {
		return nil, fmt.Errorf("could not set pin %d as output: %w", p.N(), err)
	}
	err = p.Write(embd.Low)
	if err != nil {
		return nil, fmt.Errorf("could not write pin %d: %w", p.N(), err)
	}
	return &Output{pin: p}, nil
}

// Set drives the output high when on and low otherwise.
func (o *Output) Set(on bool) error {
	v := embd.Low
	if on {
		v = embd.High
	}
	err := o.pin.Write(v)
	if err != nil {
		return fmt.Errorf("could not write pin %d: %w", o.pin.N(), err)
	}
	return nil
}

// Close drives the output low and releases the pin.
func (o *Output) Close() error {
	err := o.pin.Write(embd.Low)
	if err != nil {
		return fmt.Errorf("could not write pin %d: %w", o.pin.N(), err)
	}
	return o.pin.Close()
}

// Button is a push button wired between a GPIO pin and ground. The sysfs
// GPIO driver cannot enable the internal pull-up, so it must be enabled at
// boot (gpio=4=ip,pu in config.txt) or fitted externally.
type Button struct {
	pin pin
}

// NewButton configures GPIO pin n as an active low input.
func NewButton(n int) (*Button, error) {
	err := initGPIO()
	if err != nil {
		return nil, err
	}
	p, err := embd.NewDigitalPin(n)
	if err != nil {
		return nil, fmt.Errorf("could not open pin %d: %w", n, err)
	}
	return newButton(p)
}

func newButton(p pin) (*Button, error) {
	err := p.SetDirection(embd.In)
	if err != nil {
		return nil, fmt.Errorf("could not set pin %d as input: %w", p.N(), err)
	}
	err = p.ActiveLow(true)
	if err != nil {
		return nil, fmt.Errorf("could not set pin %d active low: %w", p.N(), err)
	}
	return &Button{pin: p}, nil
}

// IsPressed reports whether the button is held down.
func (b *Button) IsPressed() (bool, error) {
	v, err := b.pin.Read()
	if err != nil {
		return false, fmt.Errorf("could not read pin %d: %w", b.pin.N(), err)
	}
	return v == embd.High, nil
}

// Close releases the pin.
func (b *Button) Close() error { return b.pin.Close() }

// converter is satisfied by *mcp3008.MCP3008.
type converter interface {
	AnalogValueAt(ch int) (int, error)
}

// ADC reads a voltage from one channel of an MCP3008.
type ADC struct {
	conv    converter
	channel int
	vref    float64
}

// NewADC returns an ADC reading the given single ended channel against
// reference voltage vref.
func NewADC(channel int, vref float64) (*ADC, error) {
	if channel < 0 || channel > 7 {
		return nil, fmt.Errorf("invalid MCP3008 channel: %d", channel)
	}
	if vref <= 0 {
		return nil, fmt.Errorf("invalid reference voltage: %v", vref)
	}
	bus, err := initSPI()
	if err != nil {
		return nil, err
	}
	return &ADC{conv: mcp3008.New(mcp3008.SingleMode, bus), channel: channel, vref: vref}, nil
}

// Voltage returns the channel's voltage rounded to four decimal places.
func (a *ADC) Voltage() (float64, error) {
	raw, err := a.conv.AnalogValueAt(a.channel)
	if err != nil {
		return 0, fmt.Errorf("could not read ADC channel %d: %w", a.channel, err)
	}
	return math.Round(float64(raw)*a.vref/adcMax*1e4) / 1e4, nil
}

// Intensity implements photometer.IntensitySource. With a light dependent
// resistor divider, a brighter light gives a higher voltage.
func (a *ADC) Intensity() (float64, error) { return a.Voltage() }

// Close is a no-op; the SPI bus is released by the package Close.
func (a *ADC) Close() error { return nil }
