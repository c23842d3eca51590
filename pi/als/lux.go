/*
DESCRIPTION
  lux.go provides conversion of LTR-329 channel counts to a light intensity
  using the piecewise formula of the sensor's application note.

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

package als

import "math"

// Channel ratio thresholds, CH1/(CH0+CH1), separating the formula branches.
const (
	ratioLow  = 0.45
	ratioMid  = 0.64
	ratioHigh = 0.85
)

// ratioEpsilon avoids division by zero when both channels read zero.
const ratioEpsilon = 1e-7

// saturatedLux is reported when the channel ratio is outside the range
// covered by the formula.
const saturatedLux = 1e-5

// Formula branches, as returned by Branch.
const (
	BranchLow = iota
	BranchMid
	BranchHigh
	BranchOut
)

// Ratio returns the channel ratio CH1/(CH0+CH1) used to select a branch.
func Ratio(ch0, ch1 uint16) float64 {
	return float64(ch1) / (float64(ch0) + float64(ch1) + ratioEpsilon)
}

// Branch returns the formula branch selected by ratio. Branches are half
// open intervals, so every ratio selects exactly one.
func Branch(ratio float64) int {
	switch {
	case ratio < ratioLow:
		return BranchLow
	case ratio < ratioMid:
		return BranchMid
	case ratio < ratioHigh:
		return BranchHigh
	default:
		return BranchOut
	}
}

// Lux converts channel counts into an intensity, given the sensor gain
// (e.g. 96) and integration time in milliseconds (e.g. 400).
func Lux(ch0, ch1 uint16, gain, integration float64) float64 {
	c0, c1 := float64(ch0), float64(ch1)
	switch Branch(Ratio(ch0, ch1)) {
	case BranchLow:
		return (1.7743*c0 + 1.1059*c1) / gain / integration
	case BranchMid:
		return (4.2785*c0 - 1.9548*c1) / gain / integration
	case BranchHigh:
		return (0.5926*c0 + 0.1185*c1) / gain / integration
	default:
		return saturatedLux
	}
}

// round4 rounds v to 4 decimal places.
func round4(v float64) float64 { return math.Round(v*1e4) / 1e4 }
