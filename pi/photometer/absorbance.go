/*
DESCRIPTION
  absorbance.go provides the Beer-Lambert absorbance of a sample measurement
  relative to a blank.

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

import "math"

// DefaultDarkFloor is the sensor's intensity reading with no light reaching
// it. It is subtracted from both blank and sample before taking their ratio.
const DefaultDarkFloor = 0.0004

// AbsorbanceResult is a unitless absorbance rounded to four decimal places.
// Degenerate is set when the computation was not defined and Value holds the
// fallback of 0.
type AbsorbanceResult struct {
	Value      float64
	Degenerate bool
}

// Absorbance returns -log10((sample-floor)/(blank-floor)) rounded to four
// decimal places. If either intensity is at or below the dark floor the
// logarithm is undefined and a degenerate result of 0 is returned. Values are
// not clamped, so a sample brighter than its blank gives a negative
// absorbance.
func Absorbance(blank, sample MeasurementEvent, darkFloor float64) AbsorbanceResult {
	b := blank.Intensity - darkFloor
	s := sample.Intensity - darkFloor
	if b <= 0 || s <= 0 {
		return AbsorbanceResult{Degenerate: true}
	}

	a := round4(-math.Log10(s / b))
	if math.IsNaN(a) || math.IsInf(a, 0) {
		return AbsorbanceResult{Degenerate: true}
	}
	if a == 0 {
		a = 0 // Normalise -0.
	}
	return AbsorbanceResult{Value: a}
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
