/*
DESCRIPTION
  utils.go provides plotting of calibration sessions.

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
	"fmt"
	"path/filepath"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// Plot plots the standards of a calibration session with the fitted line
// superimposed, and saves it as a PNG in dir.
func Plot(dir string, rec Record, res *Results) error {
	if res.Len() == 0 {
		return fmt.Errorf("no data points to plot")
	}

	name := rec.Analyte.Tag() + " calibration"
	err := plotToFile(
		filepath.Join(dir, rec.Analyte.Tag()+"_calibration.png"),
		fmt.Sprintf("%s (R^2 = %v)", name, rec.RSquared),
		rec.Analyte.String()+" (mg/L)",
		"Absorbance",
		func(p *plot.Plot) error {
			err := plotutil.AddScatters(p, "standards", plotterXY(res.Concentrations, res.Absorbances))
			if err != nil {
				return err
			}
			line := plotter.NewFunction(func(x float64) float64 { return rec.Slope*x + rec.Intercept })
			line.Color = plotutil.Color(1)
			p.Add(line)
			p.Legend.Add("fit", line)
			p.X.Min = 0
			p.X.Max = floats.Max(res.Concentrations)
			return nil
		},
	)
	if err != nil {
		return fmt.Errorf("could not plot calibration: %w", err)
	}
	return nil
}

// plotToFile creates a plot with a specified title and x&y titles using the
// provided draw function, and then saves to a PNG file at path.
func plotToFile(path, title, xTitle, yTitle string, draw func(*plot.Plot) error) error {
	p := plot.New()

	p.Title.Text = title
	p.X.Label.Text = xTitle
	p.Y.Label.Text = yTitle

	err := draw(p)
	if err != nil {
		return fmt.Errorf("could not draw plot contents: %w", err)
	}

	if err := p.Save(15*vg.Centimeter, 15*vg.Centimeter, path); err != nil {
		return fmt.Errorf("could not save plot: %w", err)
	}
	return nil
}

// plotterXY provides a plotter.XYs type value based on the given x and y data.
func plotterXY(x, y []float64) plotter.XYs {
	xy := make(plotter.XYs, len(x))
	for i := range x {
		xy[i].X = x[i]
		xy[i].Y = y[i]
	}
	return xy
}
