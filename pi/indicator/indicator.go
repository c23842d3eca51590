/*
DESCRIPTION
  indicator.go provides a controller for the operator facing LEDs. Each
  channel may be driven steady on/off or blinked by a cancellable background
  task.

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

// Package indicator drives the operator facing indicator LEDs of the
// photometer. A channel is either steady or blinking; blinking is performed by
// one background routine per channel which is stopped, and has driven its LED
// off, before any other write to that channel happens.
package indicator

import (
	"fmt"
	"sync"
	"time"

	"github.com/ausocean/utils/logging"
)

// DefaultHalfPeriod is the on (and off) time of a blinking indicator.
const DefaultHalfPeriod = 500 * time.Millisecond

// Channel identifies an indicator.
type Channel int

// Indicator channels.
const (
	Ready Channel = iota // Green; ready for operator action.
	Busy                 // Red; working or awaiting analyte choice.
)

func (c Channel) String() string {
	switch c {
	case Ready:
		return "ready"
	case Busy:
		return "busy"
	default:
		return fmt.Sprintf("channel(%d)", int(c))
	}
}

// Output is a binary output such as a GPIO pin driving an LED.
type Output interface {
	Set(on bool) error
}

// blinkTask is a running blink routine. stop is closed to request
// termination and done is closed by the routine once its LED is off.
type blinkTask struct {
	stop chan struct{}
	done chan struct{}
}

// Controller drives a set of indicator channels.
type Controller struct {
	outputs    map[Channel]Output
	halfPeriod time.Duration
	log        logging.Logger

	mu     sync.Mutex
	blinks map[Channel]*blinkTask
}

// New returns a new Controller for the given outputs. A halfPeriod of zero
// selects DefaultHalfPeriod.
func New(outputs map[Channel]Output, halfPeriod time.Duration, l logging.Logger) *Controller {
	if halfPeriod <= 0 {
		halfPeriod = DefaultHalfPeriod
	}
	return &Controller{
		outputs:    outputs,
		halfPeriod: halfPeriod,
		log:        l,
		blinks:     make(map[Channel]*blinkTask),
	}
}

// Set stops any blinking on channel ch and drives it steady on or off.
func (c *Controller) Set(ch Channel, on bool) error {
	out, ok := c.outputs[ch]
	if !ok {
		return fmt.Errorf("no output for indicator: %v", ch)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopBlink(ch)

	err := out.Set(on)
	if err != nil {
		return fmt.Errorf("could not set %v indicator: %w", ch, err)
	}
	return nil
}

// StartBlink starts blinking channel ch. It is a no-op if ch is already
// blinking.
func (c *Controller) StartBlink(ch Channel) error {
	out, ok := c.outputs[ch]
	if !ok {
		return fmt.Errorf("no output for indicator: %v", ch)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.blinks[ch]; ok {
		return nil
	}

	t := &blinkTask{stop: make(chan struct{}), done: make(chan struct{})}
	c.blinks[ch] = t
	c.log.Debug("starting blink", "indicator", ch)
	go c.blink(ch, out, t)
	return nil
}

// StopBlink stops blinking channel ch and returns once the blink routine has
// finished with the LED off. It is a no-op if ch is not blinking.
func (c *Controller) StopBlink(ch Channel) {
	c.mu.Lock()
	c.stopBlink(ch)
	c.mu.Unlock()
}

// Blinking reports whether channel ch is blinking.
func (c *Controller) Blinking(ch Channel) bool {
	c.mu.Lock()
	_, ok := c.blinks[ch]
	c.mu.Unlock()
	return ok
}

// Off stops all blinking and drives every channel off.
func (c *Controller) Off() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	for ch, out := range c.outputs {
		c.stopBlink(ch)
		err := out.Set(false)
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("could not turn off %v indicator: %w", ch, err)
		}
	}
	return firstErr
}

// stopBlink must be called with c.mu held.
func (c *Controller) stopBlink(ch Channel) {
	t, ok := c.blinks[ch]
	if !ok {
		return
	}
	delete(c.blinks, ch)
	close(t.stop)
	<-t.done
	c.log.Debug("stopped blink", "indicator", ch)
}

// blink toggles out every half period until t.stop is closed, then turns
// it off and closes t.done.
func (c *Controller) blink(ch Channel, out Output, t *blinkTask) {
	defer close(t.done)

	ticker := time.NewTicker(c.halfPeriod)
	defer ticker.Stop()

	on := true
	c.write(ch, out, on)
	for {
		select {
		case <-t.stop:
			c.write(ch, out, false)
			return
		case <-ticker.C:
			on = !on
			c.write(ch, out, on)
		}
	}
}

func (c *Controller) write(ch Channel, out Output, on bool) {
	err := out.Set(on)
	if err != nil {
		c.log.Warning("could not write blinking indicator", "indicator", ch, "error", err)
	}
}
