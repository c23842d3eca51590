/*
DESCRIPTION
  convert.go provides conversion of an absorbance to an analyte concentration
  using a linear calibration.

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
	"math"
	"time"

	"github.com/ausocean/photometer/pi/calibration"
)

// Unit is the unit of every reported concentration.
const Unit = "mg/L"

// ConcentrationResult is the outcome of one completed measurement cycle.
// Degenerate is set if the absorbance or the conversion fell back to 0.
type ConcentrationResult struct {
	Analyte    calibration.Analyte
	Value      float64
	Unit       string
	Absorbance float64
	Time       time.Time
	Degenerate bool
}

// Convert inverts the calibration line absorbance = slope*c + intercept for
// c. A zero slope yields a degenerate result of 0. Negative concentrations
// are reported as computed. The Time field is left for the caller to set.
func Convert(abs AbsorbanceResult, rec calibration.Record) ConcentrationResult {
	r := ConcentrationResult{
		Analyte:    rec.Analyte,
		Unit:       Unit,
		Absorbance: abs.Value,
		Degenerate: abs.Degenerate,
	}
	if rec.Slope == 0 {
		r.Degenerate = true
		return r
	}

	c := (abs.Value - rec.Intercept) / rec.Slope
	if math.IsNaN(c) || math.IsInf(c, 0) {
		r.Degenerate = true
		return r
	}
	if c == 0 {
		c = 0
	}
	r.Value = c
	return r
}
