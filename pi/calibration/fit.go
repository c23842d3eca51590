/*
DESCRIPTION
  fit.go provides a results type for collecting (concentration, absorbance)
  data points from a calibration session and an ordinary least squares
  line fit over them.

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

package calibration

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ErrDegenerateFit is returned when the standards do not span a range of
// concentrations, so no line can be fitted.
var ErrDegenerateFit = errors.New("standards do not span a concentration range")

// Results holds the data points from a calibration session, one absorbance
// per standard concentration, in the order the standards were measured.
type Results struct {
	Concentrations, Absorbances []float64
}

// NewResults returns a new Results with capacity for n standards.
func NewResults(n int) *Results {
	return &Results{
		Concentrations: make([]float64, 0, n),
		Absorbances:    make([]float64, 0, n),
	}
}

// Add adds a data point to the Results.
func (r *Results) Add(conc, abs float64) {
	r.Concentrations = append(r.Concentrations, conc)
	r.Absorbances = append(r.Absorbances, abs)
}

// Len returns the number of data points.
func (r *Results) Len() int { return len(r.Concentrations) }

// Fit fits a line to the data points for analyte a.
func (r *Results) Fit(a Analyte) (Record, error) {
	return Fit(a, r.Concentrations, r.Absorbances)
}

// Fit fits absorbance = slope*concentration + intercept by ordinary least
// squares. The coefficient of determination is rounded to 4 decimals.
func Fit(a Analyte, conc, abs []float64) (Record, error) {
	if len(conc) != len(abs) {
		return Record{}, fmt.Errorf("have %d concentrations but %d absorbances", len(conc), len(abs))
	}
	if len(conc) == 0 {
		return Record{}, errors.New("no data points to fit")
	}
	if len(conc) < 2 || floats.Min(conc) == floats.Max(conc) {
		return Record{}, ErrDegenerateFit
	}

	intercept, slope := stat.LinearRegression(conc, abs, nil, false)

	// Constant absorbances leave R^2 undefined; report no fit.
	r2 := stat.RSquared(conc, abs, nil, intercept, slope)
	if math.IsNaN(r2) || math.IsInf(r2, 0) {
		r2 = 0
	}

	return Record{
		Analyte:   a,
		RSquared:  math.Round(r2*1e4) / 1e4,
		Slope:     slope,
		Intercept: intercept,
	}, nil
}
