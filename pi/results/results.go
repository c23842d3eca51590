/*
DESCRIPTION
  results.go provides writers for measurement result records and raw sample
  traces.

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

// Package results persists the outcome of each photometer measurement cycle
// as a one line text file, and optionally the raw samples as CSV.
package results

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/ausocean/photometer/pi/photometer"
	"github.com/ausocean/utils/logging"
)

// timeLayout is the minute resolution timestamp that starts every file name.
const timeLayout = "2006_01_02_15_04"

// maxSuffix bounds the numeric suffixes tried for files written in the same
// minute.
const maxSuffix = 1000

// Writer writes result records and traces into a directory.
type Writer struct {
	dir string
	log logging.Logger
	mu  sync.Mutex
}

// NewWriter returns a new Writer for dir, which is created on first use.
func NewWriter(dir string, l logging.Logger) *Writer {
	return &Writer{dir: dir, log: l}
}

// Line returns the content of a result record, e.g. "1.25 NNO3 (mg/L)".
func Line(r photometer.ConcentrationResult) string {
	unit := r.Unit
	if unit == "" {
		unit = photometer.Unit
	}
	return fmt.Sprintf("%s %s (%s)", formatValue(r.Value), r.Analyte.Tag(), unit)
}

// formatValue writes v with the fewest digits that read back as v, always
// with a decimal point in positional form, e.g. "1.0", "0.0444", "1e-05".
// Exponent form is used below 1e-4 and from 1e16.
func formatValue(v float64) string {
	switch {
	case math.IsNaN(v):
		return "nan"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}

	e := strconv.FormatFloat(v, 'e', -1, 64)
	exp, err := strconv.Atoi(e[strings.IndexByte(e, 'e')+1:])
	if err == nil && (exp < -4 || exp >= 16) {
		return e
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// Save writes r to <dir>/YYYY_MM_DD_HH_MM_<tag>.txt and returns the path.
// A result from the same minute and analyte as an existing file is written
// with a _1, _2, ... suffix instead of replacing it.
func (w *Writer) Save(r photometer.ConcentrationResult) (string, error) {
	name := r.Time.Format(timeLayout) + "_" + r.Analyte.Tag()
	path, err := w.create(name, ".txt", func(wr io.Writer) error {
		_, err := io.WriteString(wr, Line(r))
		return err
	})
	if err != nil {
		return "", fmt.Errorf("could not save result: %w", err)
	}
	w.log.Debug("wrote result", "file", path, "result", Line(r))
	return path, nil
}

// Trace columns.
var traceHeader = []string{"phase", "offset_s", "intensity", "absorbance", "concentration", "unit", "temperature_c"}

// SaveTrace writes t as CSV to <dir>/YYYY_MM_DD_HH_MM_<label>_trace.csv and
// returns the path. Each sample is a row with its offset from the start of
// the measurement. A final "peak" row holds the representative intensity and,
// for a sample measurement, its absorbance, concentration and temperature.
func (w *Writer) SaveTrace(t photometer.Trace) (string, error) {
	name := t.Time.Format(timeLayout) + "_" + t.Label + "_trace"
	path, err := w.create(name, ".csv", func(wr io.Writer) error {
		cw := csv.NewWriter(wr)
		err := cw.Write(traceHeader)
		if err != nil {
			return err
		}
		for _, s := range t.Event.Samples {
			err = cw.Write([]string{
				string(s.Phase),
				formatFloat(s.Time.Sub(t.Event.Start).Seconds()),
				formatFloat(s.Value),
				"", "", "", "",
			})
			if err != nil {
				return err
			}
		}
		err = cw.Write(peakRow(t))
		if err != nil {
			return err
		}
		cw.Flush()
		return cw.Error()
	})
	if err != nil {
		return "", fmt.Errorf("could not save trace: %w", err)
	}
	return path, nil
}

func peakRow(t photometer.Trace) []string {
	row := []string{"peak", "", formatFloat(t.Event.Intensity), "", "", "", ""}
	if t.Absorbance != nil {
		row[3] = formatFloat(t.Absorbance.Value)
	}
	if t.Result != nil {
		row[4] = formatFloat(t.Result.Value)
		row[5] = t.Result.Unit
	}
	if t.Temperature != nil {
		row[6] = formatFloat(*t.Temperature)
	}
	return row
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

// create exclusively creates the first free file among name+ext,
// name_1+ext, ... and fills it using write.
func (w *Writer) create(name, ext string, write func(io.Writer) error) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	err := os.MkdirAll(w.dir, 0755)
	if err != nil {
		return "", fmt.Errorf("could not create directory: %w", err)
	}

	for i := 0; i < maxSuffix; i++ {
		base := name
		if i > 0 {
			base = name + "_" + strconv.Itoa(i)
		}
		path := filepath.Join(w.dir, base+ext)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", err
		}

		err = write(f)
		if err != nil {
			f.Close()
			return "", fmt.Errorf("could not write %s: %w", path, err)
		}
		err = f.Close()
		if err != nil {
			return "", fmt.Errorf("could not close %s: %w", path, err)
		}
		return path, nil
	}
	return "", fmt.Errorf("too many files named %s%s", name, ext)
}
