/*
DESCRIPTION
  fakes_test.go provides fake hardware and a fake clock for testing the
  photometer without a Raspberry Pi.

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
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ausocean/photometer/pi/calibration"
	"github.com/ausocean/photometer/pi/indicator"
)

var epoch = time.Date(2026, time.March, 2, 10, 30, 0, 0, time.UTC)

// fakeClock advances only when a timer is requested, and then does so
// instantly.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{now: epoch} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

func (c *fakeClock) elapsed() time.Duration { return c.Now().Sub(epoch) }

// advance moves the clock on by d without a timer, as a slow read would.
func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// span is a half open interval of time since epoch.
type span struct{ from, to time.Duration }

func at(from time.Duration) span { return span{from, from + 200*time.Millisecond} }

// fakeButton is pressed during its spans.
type fakeButton struct {
	clock *fakeClock
	held  []span
	reads int
}

func (b *fakeButton) IsPressed() (bool, error) {
	b.reads++
	t := b.clock.elapsed()
	for _, s := range b.held {
		if t >= s.from && t < s.to {
			return true, nil
		}
	}
	return false, nil
}

// fakeLight records its transitions.
type fakeLight struct {
	on   bool
	ons  int
	fail bool
}

func (l *fakeLight) Set(on bool) error {
	if on && l.fail {
		return errors.New("light failure")
	}
	if on && !l.on {
		l.ons++
	}
	l.on = on
	return nil
}

// fakeSource reads dark while the light is off. While it is on, the nth
// illumination reads lit[n], repeating the last value when lit runs out.
type fakeSource struct {
	light  *fakeLight
	dark   float64
	lit    []float64
	fail   func(n int) bool
	reads  int
	onRead func()
}

func (s *fakeSource) Intensity() (float64, error) {
	s.reads++
	if s.onRead != nil {
		s.onRead()
	}
	if s.fail != nil && s.fail(s.reads) {
		return 0, errors.New("i2c read failed")
	}
	if !s.light.on {
		return s.dark, nil
	}
	i := s.light.ons - 1
	if i >= len(s.lit) {
		i = len(s.lit) - 1
	}
	return s.lit[i], nil
}

// fakeIndicators records indicator writes without any timing.
type fakeIndicators struct {
	steady   map[indicator.Channel]bool
	blinking map[indicator.Channel]bool
	events   []string
	setErr   error
}

func newFakeIndicators() *fakeIndicators {
	return &fakeIndicators{
		steady:   make(map[indicator.Channel]bool),
		blinking: make(map[indicator.Channel]bool),
	}
}

func (f *fakeIndicators) Set(ch indicator.Channel, on bool) error {
	f.blinking[ch] = false
	f.steady[ch] = on
	f.events = append(f.events, fmt.Sprintf("%v=%v", ch, on))
	return f.setErr
}

func (f *fakeIndicators) StartBlink(ch indicator.Channel) error {
	if !f.blinking[ch] {
		f.blinking[ch] = true
		f.events = append(f.events, fmt.Sprintf("%v blink", ch))
	}
	return nil
}

func (f *fakeIndicators) StopBlink(ch indicator.Channel) {
	if f.blinking[ch] {
		f.blinking[ch] = false
		f.steady[ch] = false
		f.events = append(f.events, fmt.Sprintf("%v stop", ch))
	}
}

func (f *fakeIndicators) Off() error {
	for _, ch := range []indicator.Channel{indicator.Ready, indicator.Busy} {
		f.blinking[ch] = false
		f.steady[ch] = false
	}
	f.events = append(f.events, "off")
	return nil
}

type fakeCalibrations map[calibration.Analyte]calibration.Record

func (f fakeCalibrations) Calibration(a calibration.Analyte) (calibration.Record, error) {
	rec, ok := f[a]
	if !ok {
		return calibration.Record{}, fmt.Errorf("no %v record: %w", a, calibration.ErrMissingCalibration)
	}
	return rec, nil
}

type fakeResults struct {
	saved []ConcentrationResult
}

func (f *fakeResults) Save(r ConcentrationResult) (string, error) {
	f.saved = append(f.saved, r)
	return fmt.Sprintf("result%d.txt", len(f.saved)), nil
}

type fakeTraces struct {
	saved []Trace
}

func (f *fakeTraces) SaveTrace(t Trace) (string, error) {
	f.saved = append(f.saved, t)
	return fmt.Sprintf("trace%d.csv", len(f.saved)), nil
}

type fakeThermometer float64

func (f fakeThermometer) Temperature() (float64, error) { return float64(f), nil }

type fakePrompter struct {
	prompts []string
}

func (p *fakePrompter) Prompt(ctx context.Context, msg string) error {
	p.prompts = append(p.prompts, msg)
	return ctx.Err()
}
