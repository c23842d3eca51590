/*
DESCRIPTION
  selector_test.go tests the timed analyte choice and the press wait.

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
	"testing"
	"time"

	"github.com/ausocean/photometer/pi/calibration"
	"github.com/ausocean/photometer/pi/indicator"
	"github.com/ausocean/utils/logging"
)

const ms = time.Millisecond

func TestSelect(t *testing.T) {
	tests := []struct {
		name        string
		held        []span
		want        calibration.Analyte
		wantElapsed time.Duration
	}{
		{name: "timeout", want: calibration.Phosphate, wantElapsed: 10 * time.Second},
		{name: "press", held: []span{at(5 * time.Second)}, want: calibration.Nitrate, wantElapsed: 5 * time.Second},
		{name: "press between polls", held: []span{at(5020 * ms)}, want: calibration.Nitrate, wantElapsed: 5050 * ms},
		{name: "press just before deadline", held: []span{at(9990 * ms)}, want: calibration.Nitrate, wantElapsed: 10 * time.Second},
		{name: "press at deadline", held: []span{at(10 * time.Second)}, want: calibration.Nitrate, wantElapsed: 10 * time.Second},
		{name: "press just after deadline", held: []span{at(10010 * ms)}, want: calibration.Phosphate, wantElapsed: 10 * time.Second},
		{name: "held from before window", held: []span{{-time.Second, 3 * time.Second}}, want: calibration.Phosphate, wantElapsed: 10 * time.Second},
		{
			name:        "held then pressed again",
			held:        []span{{-time.Second, 3 * time.Second}, at(4 * time.Second)},
			want:        calibration.Nitrate,
			wantElapsed: 4 * time.Second,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			clk := newFakeClock()
			ind := newFakeIndicators()
			b := &fakeButton{clock: clk, held: test.held}
			s := NewSelector(b, ind, clk, DefaultChoiceWindow, DefaultPollInterval, (*logging.TestLogger)(t))

			got, err := s.Select(context.Background())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != test.want {
				t.Errorf("did not get expected analyte. Got: %v, Want: %v", got, test.want)
			}
			if elapsed := clk.elapsed(); elapsed != test.wantElapsed {
				t.Errorf("did not get expected decision time. Got: %v, Want: %v", elapsed, test.wantElapsed)
			}
			if ind.blinking[indicator.Busy] {
				t.Error("busy indicator still blinking after decision")
			}
			wantReady := test.want == calibration.Nitrate
			if ind.blinking[indicator.Ready] != wantReady {
				t.Errorf("did not get expected ready blink. Got: %v, Want: %v", ind.blinking[indicator.Ready], wantReady)
			}
		})
	}
}

func TestSelectIndicatorOrder(t *testing.T) {
	clk := newFakeClock()
	ind := newFakeIndicators()
	b := &fakeButton{clock: clk, held: []span{at(time.Second)}}
	s := NewSelector(b, ind, clk, DefaultChoiceWindow, DefaultPollInterval, (*logging.TestLogger)(t))

	_, err := s.Select(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"busy blink", "busy stop", "ready blink"}
	if len(ind.events) != len(want) {
		t.Fatalf("did not get expected indicator events. Got: %v, Want: %v", ind.events, want)
	}
	for i := range want {
		if ind.events[i] != want[i] {
			t.Errorf("did not get expected indicator event %d. Got: %v, Want: %v", i, ind.events[i], want[i])
		}
	}
}

func TestSelectCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	clk := newFakeClock()
	ind := newFakeIndicators()
	s := NewSelector(&fakeButton{clock: clk}, ind, clk, DefaultChoiceWindow, DefaultPollInterval, (*logging.TestLogger)(t))
	_, err := s.Select(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("did not get expected error. Got: %v, Want: %v", err, context.Canceled)
	}
	if ind.blinking[indicator.Busy] || ind.blinking[indicator.Ready] {
		t.Error("indicator left blinking after cancellation")
	}
}

func TestWaitForPress(t *testing.T) {
	tests := []struct {
		held        []span
		wantElapsed time.Duration
	}{
		{held: []span{at(2 * time.Second)}, wantElapsed: 2 * time.Second},
		{held: []span{{0, time.Second}, at(3 * time.Second)}, wantElapsed: 3 * time.Second},
		{held: []span{{-time.Second, 500 * ms}, {550 * ms, 600 * ms}}, wantElapsed: 550 * ms},
	}

	for i, test := range tests {
		clk := newFakeClock()
		b := &fakeButton{clock: clk, held: test.held}
		err := waitForPress(context.Background(), b, clk, DefaultPollInterval, (*logging.TestLogger)(t))
		if err != nil {
			t.Errorf("unexpected error for test %d: %v", i, err)
			continue
		}
		if got := clk.elapsed(); got != test.wantElapsed {
			t.Errorf("did not get expected press time for test %d. Got: %v, Want: %v", i, got, test.wantElapsed)
		}
	}
}
