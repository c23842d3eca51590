/*
DESCRIPTION
  measure_test.go tests sampling windows, the measurement sequencer and the
  absorbance and concentration calculations.

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
	"math"
	"testing"
	"time"

	"github.com/ausocean/photometer/pi/calibration"
	"github.com/ausocean/utils/logging"
)

func TestWindow(t *testing.T) {
	tests := []struct {
		duration    time.Duration
		cadence     time.Duration
		fail        func(n int) bool
		wantSamples int
		wantElapsed time.Duration
	}{
		{duration: 3 * time.Second, cadence: 500 * time.Millisecond, wantSamples: 7, wantElapsed: 3 * time.Second},
		{duration: 2 * time.Second, cadence: 500 * time.Millisecond, wantSamples: 5, wantElapsed: 2 * time.Second},
		{duration: time.Second, cadence: 300 * time.Millisecond, wantSamples: 4, wantElapsed: 900 * time.Millisecond},
		{duration: 0, cadence: 500 * time.Millisecond, wantSamples: 1, wantElapsed: 0},
		{
			duration:    3 * time.Second,
			cadence:     500 * time.Millisecond,
			fail:        func(n int) bool { return n%2 == 0 },
			wantSamples: 4,
			wantElapsed: 3 * time.Second,
		},
		{
			duration:    3 * time.Second,
			cadence:     500 * time.Millisecond,
			fail:        func(int) bool { return true },
			wantSamples: 0,
			wantElapsed: 3 * time.Second,
		},
	}

	for i, test := range tests {
		clk := newFakeClock()
		src := &fakeSource{light: &fakeLight{}, dark: 0.01, fail: test.fail}
		w := Window{Phase: PhaseDarkBefore, Duration: test.duration, Cadence: test.cadence}
		samples, err := w.Run(context.Background(), src, clk, (*logging.TestLogger)(t))
		if err != nil {
			t.Errorf("unexpected error for test %d: %v", i, err)
			continue
		}
		if len(samples) != test.wantSamples {
			t.Errorf("did not get expected number of samples for test %d. Got: %d, Want: %d", i, len(samples), test.wantSamples)
		}
		if got := clk.elapsed(); got != test.wantElapsed {
			t.Errorf("did not get expected window duration for test %d. Got: %v, Want: %v", i, got, test.wantElapsed)
		}
		for j := 1; j < len(samples); j++ {
			if !samples[j].Time.After(samples[j-1].Time) {
				t.Errorf("samples out of order for test %d at %d", i, j)
			}
		}
	}
}

func TestWindowSlowSource(t *testing.T) {
	tests := []struct {
		latency     time.Duration
		want        []time.Duration
		wantElapsed time.Duration
	}{
		{
			latency:     300 * time.Millisecond,
			want:        []time.Duration{0, 500 * time.Millisecond, time.Second, 1500 * time.Millisecond, 2 * time.Second, 2500 * time.Millisecond, 3 * time.Second},
			wantElapsed: 3300 * time.Millisecond,
		},
		{
			latency:     700 * time.Millisecond,
			want:        []time.Duration{0, time.Second, 2 * time.Second, 3 * time.Second},
			wantElapsed: 3700 * time.Millisecond,
		},
		{
			latency:     500 * time.Millisecond,
			want:        []time.Duration{0, 500 * time.Millisecond, time.Second, 1500 * time.Millisecond, 2 * time.Second, 2500 * time.Millisecond, 3 * time.Second},
			wantElapsed: 3500 * time.Millisecond,
		},
	}

	for i, test := range tests {
		clk := newFakeClock()
		src := &fakeSource{light: &fakeLight{}, dark: 0.01}
		src.onRead = func() { clk.advance(test.latency) }
		w := Window{Phase: PhaseDarkAfter, Duration: 3 * time.Second, Cadence: 500 * time.Millisecond}
		samples, err := w.Run(context.Background(), src, clk, (*logging.TestLogger)(t))
		if err != nil {
			t.Errorf("unexpected error for test %d: %v", i, err)
			continue
		}
		var got []time.Duration
		for _, s := range samples {
			got = append(got, s.Time.Sub(epoch))
		}
		if len(got) != len(test.want) {
			t.Errorf("did not get expected sample times for test %d. Got: %v, Want: %v", i, got, test.want)
			continue
		}
		for j := range got {
			if got[j] != test.want[j] {
				t.Errorf("did not get expected sample time for test %d at %d. Got: %v, Want: %v", i, j, got[j], test.want[j])
			}
			if got[j] > w.Duration {
				t.Errorf("sample %d of test %d taken after window end: %v", j, i, got[j])
			}
		}
		if e := clk.elapsed(); e != test.wantElapsed {
			t.Errorf("did not get expected elapsed time for test %d. Got: %v, Want: %v", i, e, test.wantElapsed)
		}
	}
}

func TestWindowInvalid(t *testing.T) {
	tests := []Window{
		{Phase: PhaseIlluminated, Duration: time.Second},
		{Phase: PhaseIlluminated, Duration: time.Second, Cadence: -time.Second},
		{Phase: PhaseIlluminated, Duration: -2 * time.Second, Cadence: 500 * time.Millisecond},
	}

	for i, w := range tests {
		src := &fakeSource{light: &fakeLight{}}
		samples, err := w.Run(context.Background(), src, newFakeClock(), (*logging.TestLogger)(t))
		if err == nil {
			t.Errorf("expected error for test %d", i)
		}
		if len(samples) != 0 || src.reads != 0 {
			t.Errorf("did not expect any reads for test %d. Got: %d", i, src.reads)
		}
	}
}

func TestMeasure(t *testing.T) {
	clk := newFakeClock()
	light := &fakeLight{}
	src := &fakeSource{light: light, dark: 0.002, lit: []float64{4.25}}
	var lightDuringLit, lightDuringDark int
	seq := NewSequencer(src, light, clk, DefaultTiming(), (*logging.TestLogger)(t))

	ev, err := seq.Measure(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, s := range ev.Samples {
		switch {
		case s.Phase == PhaseIlluminated && s.Value == 4.25:
			lightDuringLit++
		case s.Phase != PhaseIlluminated && s.Value == 0.002:
			lightDuringDark++
		default:
			t.Errorf("unexpected sample: %+v", s)
		}
	}
	if lightDuringLit != 5 || lightDuringDark != 14 {
		t.Errorf("did not get expected samples. Got: %d lit %d dark, Want: 5 lit 14 dark", lightDuringLit, lightDuringDark)
	}
	if ev.Intensity != 4.25 {
		t.Errorf("did not get expected intensity. Got: %v, Want: %v", ev.Intensity, 4.25)
	}
	if light.on || light.ons != 1 {
		t.Errorf("light not used once and left off. Got on: %v, ons: %d", light.on, light.ons)
	}
	if got, want := clk.elapsed(), 8*time.Second; got != want {
		t.Errorf("did not get expected measurement duration. Got: %v, Want: %v", got, want)
	}
	if !ev.Start.Equal(epoch) {
		t.Errorf("did not get expected start. Got: %v, Want: %v", ev.Start, epoch)
	}
}

func TestMeasureAllReadsFail(t *testing.T) {
	light := &fakeLight{}
	src := &fakeSource{light: light, lit: []float64{1}, fail: func(int) bool { return true }}
	seq := NewSequencer(src, light, newFakeClock(), DefaultTiming(), (*logging.TestLogger)(t))

	ev, err := seq.Measure(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Intensity != DegenerateIntensity || len(ev.Samples) != 0 {
		t.Errorf("did not get expected degenerate event. Got: %+v", ev)
	}
}

func TestMeasureCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	light := &fakeLight{}
	src := &fakeSource{light: light, dark: 0.001, lit: []float64{2}}
	src.onRead = func() {
		if light.on {
			cancel()
		}
	}
	seq := NewSequencer(src, light, newFakeClock(), DefaultTiming(), (*logging.TestLogger)(t))

	_, err := seq.Measure(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("did not get expected error. Got: %v, Want: %v", err, context.Canceled)
	}
	if light.on {
		t.Error("light left on after cancellation")
	}
}

func TestMeasureLightFailure(t *testing.T) {
	light := &fakeLight{fail: true}
	src := &fakeSource{light: light, dark: 0.001, lit: []float64{2}}
	seq := NewSequencer(src, light, newFakeClock(), DefaultTiming(), (*logging.TestLogger)(t))

	_, err := seq.Measure(context.Background())
	if err == nil {
		t.Error("expected error when light cannot be switched on")
	}
	if light.on {
		t.Error("light left on")
	}
}

func TestAbsorbance(t *testing.T) {
	tests := []struct {
		blank, sample  float64
		want           float64
		wantDegenerate bool
	}{
		{blank: 5.0, sample: 5.0, want: 0},
		{blank: 5.0, sample: 0.50036, want: 1.0},
		{blank: 5.0, sample: 1.5811, want: 0.5001},
		{blank: 5.0, sample: 4.5, want: 0.0458},
		{blank: 1.0, sample: 2.0, want: -0.3011},
		{blank: 5.0, sample: DefaultDarkFloor, want: 0, wantDegenerate: true},
		{blank: 5.0, sample: 0.0001, want: 0, wantDegenerate: true},
		{blank: 0, sample: 1.0, want: 0, wantDegenerate: true},
		{blank: DegenerateIntensity, sample: DegenerateIntensity, want: 0, wantDegenerate: true},
	}

	for i, test := range tests {
		got := Absorbance(MeasurementEvent{Intensity: test.blank}, MeasurementEvent{Intensity: test.sample}, DefaultDarkFloor)
		if got.Value != test.want || got.Degenerate != test.wantDegenerate {
			t.Errorf("did not get expected absorbance for test %d. Got: %+v, Want: {Value:%v Degenerate:%v}", i, got, test.want, test.wantDegenerate)
		}
		if math.Signbit(got.Value) && got.Value == 0 {
			t.Errorf("got negative zero for test %d", i)
		}
	}
}

func TestConvert(t *testing.T) {
	nitrate := calibration.Record{Analyte: calibration.Nitrate, RSquared: 0.999, Slope: 0.45, Intercept: 0.02}
	tests := []struct {
		abs            AbsorbanceResult
		rec            calibration.Record
		want           float64
		wantDegenerate bool
	}{
		{abs: AbsorbanceResult{Value: 0.47}, rec: nitrate, want: 1.0},
		{abs: AbsorbanceResult{Value: 0.02}, rec: nitrate, want: 0},
		{abs: AbsorbanceResult{Value: 0}, rec: nitrate, want: -0.02 / 0.45},
		{abs: AbsorbanceResult{Value: 0, Degenerate: true}, rec: nitrate, want: -0.02 / 0.45, wantDegenerate: true},
		{
			abs:            AbsorbanceResult{Value: 0.8},
			rec:            calibration.Record{Analyte: calibration.Phosphate, Slope: 0, Intercept: 0.1},
			want:           0,
			wantDegenerate: true,
		},
	}

	for i, test := range tests {
		got := Convert(test.abs, test.rec)
		if math.Abs(got.Value-test.want) > 1e-9 || got.Degenerate != test.wantDegenerate {
			t.Errorf("did not get expected concentration for test %d. Got: %+v, Want: %v (degenerate %v)", i, got, test.want, test.wantDegenerate)
		}
		if got.Analyte != test.rec.Analyte || got.Unit != "mg/L" || got.Absorbance != test.abs.Value {
			t.Errorf("did not get expected result fields for test %d. Got: %+v", i, got)
		}
	}
}
