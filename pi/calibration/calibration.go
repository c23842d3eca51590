/*
DESCRIPTION
  calibration.go provides the analyte and calibration record types, along
  with persistence of calibration records to the line oriented text files
  shared between the calibration program and the field instrument.

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

// Package calibration provides the per-analyte linear calibration model used
// to map absorbance to concentration. Records are fitted from a session of
// standard solutions (see Results) and persisted to a small text file per
// analyte; the field instrument loads them through a Store.
package calibration

import (
	"bufio"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ausocean/utils/logging"
)

// ErrMissingCalibration is returned when a calibration record is absent or
// does not follow the expected file layout.
var ErrMissingCalibration = errors.New("missing calibration")

// Analyte is a chemical species the photometer can quantify.
type Analyte int

// Supported analytes.
const (
	Nitrate Analyte = iota
	Phosphate
)

// Analytes lists every supported analyte.
var Analytes = []Analyte{Nitrate, Phosphate}

// String returns the name used when talking to the operator.
func (a Analyte) String() string {
	switch a {
	case Nitrate:
		return "N-NO3"
	case Phosphate:
		return "P-PO4"
	default:
		return "unknown(" + strconv.Itoa(int(a)) + ")"
	}
}

// Tag returns the short tag used in result filenames and contents.
func (a Analyte) Tag() string {
	switch a {
	case Nitrate:
		return "NNO3"
	case Phosphate:
		return "PPO4"
	default:
		return "UNKNOWN"
	}
}

// FileName returns the name of the calibration file for the analyte.
func (a Analyte) FileName() string {
	switch a {
	case Nitrate:
		return "N_cal.txt"
	case Phosphate:
		return "P_cal.txt"
	default:
		return ""
	}
}

// ParseAnalyte maps operator input such as "n", "NNO3" or "phosphate" to an
// Analyte.
func ParseAnalyte(s string) (Analyte, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "n", "nno3", "n-no3", "no3", "nitrate":
		return Nitrate, nil
	case "p", "ppo4", "p-po4", "po4", "phosphate":
		return Phosphate, nil
	default:
		return 0, fmt.Errorf("unknown analyte: %q", s)
	}
}

// DefaultStandards returns the standard solution concentrations (mg/L)
// presented to the operator during calibration of the given analyte.
func DefaultStandards(a Analyte) []float64 {
	switch a {
	case Nitrate:
		return []float64{0.2, 0.5, 1, 2, 5, 10}
	case Phosphate:
		return []float64{0.02, 0.05, 0.1, 0.2, 0.5, 1}
	default:
		return nil
	}
}

// Record is a fitted linear model, absorbance = Slope*concentration + Intercept,
// for one analyte. A zero Slope is a valid (degenerate) record.
type Record struct {
	Analyte   Analyte
	RSquared  float64
	Slope     float64
	Intercept float64
}

// Calibration file layout. Lines before rSquaredLine are free-form and
// ignored when loading.
const (
	rSquaredLine  = 6
	slopeLine     = 7
	interceptLine = 8
	minLines      = 9
)

// Save writes rec to its analyte's calibration file in dir and returns the
// path written. The data points in res, if not nil, are recorded in the
// file header for reference.
func Save(dir string, rec Record, res *Results, t time.Time) (string, error) {
	name := rec.Analyte.FileName()
	if name == "" {
		return "", fmt.Errorf("no calibration file for analyte: %v", rec.Analyte)
	}

	var conc, abs []float64
	if res != nil {
		conc, abs = res.Concentrations, res.Absorbances
	}

	lines := []string{
		rec.Analyte.String() + " calibration results",
		"date: " + t.Format("2006-01-02 15:04"),
		"standards (mg/L): " + joinFloats(conc),
		"absorbances: " + joinFloats(abs),
		"model: absorbance = slope * concentration + intercept",
		"lines below: R^2, slope, intercept",
		strconv.FormatFloat(rec.RSquared, 'f', -1, 64),
		strconv.FormatFloat(rec.Slope, 'f', -1, 64),
		strconv.FormatFloat(rec.Intercept, 'f', -1, 64),
	}

	path := filepath.Join(dir, name)
	tmp := path + ".tmp"
	err := os.WriteFile(tmp, []byte(strings.Join(lines, "\n")+"\n"), 0644)
	if err != nil {
		return "", fmt.Errorf("could not write calibration file: %w", err)
	}
	err = os.Rename(tmp, path)
	if err != nil {
		return "", fmt.Errorf("could not move calibration file into place: %w", err)
	}
	return path, nil
}

// Load reads the calibration record of analyte a from dir. Any failure is
// reported as ErrMissingCalibration.
func Load(dir string, a Analyte) (Record, error) {
	name := a.FileName()
	if name == "" {
		return Record{}, fmt.Errorf("%w: no calibration file for analyte: %v", ErrMissingCalibration, a)
	}
	path := filepath.Join(dir, name)

	f, err := os.Open(path)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %w", ErrMissingCalibration, err)
	}
	defer f.Close()

	var lines []string
	s := bufio.NewScanner(f)
	for s.Scan() {
		lines = append(lines, s.Text())
	}
	if err := s.Err(); err != nil {
		return Record{}, fmt.Errorf("%w: could not read %s: %w", ErrMissingCalibration, path, err)
	}
	if len(lines) < minLines {
		return Record{}, fmt.Errorf("%w: %s has %d lines, need at least %d", ErrMissingCalibration, path, len(lines), minLines)
	}

	rec := Record{Analyte: a}
	for _, field := range []struct {
		name string
		line int
		dst  *float64
	}{
		{"R^2", rSquaredLine, &rec.RSquared},
		{"slope", slopeLine, &rec.Slope},
		{"intercept", interceptLine, &rec.Intercept},
	} {
		v, err := strconv.ParseFloat(strings.TrimSpace(lines[field.line]), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return Record{}, fmt.Errorf("%w: %s line %d: invalid %s: %q", ErrMissingCalibration, path, field.line, field.name, lines[field.line])
		}
		*field.dst = v
	}
	return rec, nil
}

// Store provides read access to the calibration records in a directory.
// Successfully loaded records are cached; missing ones are looked up again
// on each request so a record copied in while running is picked up.
type Store struct {
	dir string
	log logging.Logger

	mu      sync.Mutex
	records map[Analyte]Record
}

// NewStore returns a Store reading calibration files from dir.
func NewStore(dir string, l logging.Logger) *Store {
	return &Store{dir: dir, log: l, records: make(map[Analyte]Record)}
}

// Calibration returns the calibration record for analyte a.
func (s *Store) Calibration(a Analyte) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[a]; ok {
		return rec, nil
	}
	rec, err := Load(s.dir, a)
	if err != nil {
		return Record{}, err
	}
	s.log.Info("loaded calibration", "analyte", a, "r2", rec.RSquared, "slope", rec.Slope, "intercept", rec.Intercept)
	s.records[a] = rec
	return rec, nil
}

func joinFloats(v []float64) string {
	s := make([]string, len(v))
	for i := range v {
		s[i] = strconv.FormatFloat(v[i], 'f', -1, 64)
	}
	return strings.Join(s, ", ")
}
