// Package tppd detects ligand-protein interactions in 2D thermal proteome
// profiling data. Per protein it fits a null (no dose effect) and an
// alternative (sigmoidal dose-response) model, compares them with an
// F-statistic, and calls hits against a bootstrapped null distribution
// of that statistic.
package tppd

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// stderr is for logging to Stderr (without an annoying timestamp)
var stderr = log.New(os.Stderr, "", 0)

// Measurement is one observed signal: a single protein at a single
// temperature, drug concentration, and MS experiment
type Measurement struct {
	// Clustername is the protein group's identity. Groups are disjoint
	// and exhaustive over the dataset
	Clustername string

	// Representative is the display name. Not used computationally
	Representative string

	// Temperature of the 2D-TPP heat step
	Temperature float64

	// Experiment identifies the MS run this row was measured in
	Experiment string

	// LogConcentration is the log10 drug concentration
	LogConcentration float64

	// Log2Value is the measured response signal
	Log2Value float64

	// NObs is the number of observations in this protein's whole
	// profile. Constant within a Clustername group
	NObs int
}

// Profile is all of one protein group's measurements, in dataset order.
// Row order is load-bearing: fitted prediction and residual vectors are
// aligned to it
type Profile struct {
	Clustername string
	NObs        int
	Rows        []Measurement
}

// requiredColumns must all be present in an input table before any
// fitting is attempted
var requiredColumns = []string{
	"clustername",
	"temperature",
	"experiment",
	"logConcentration",
	"log2Value",
	"nObs",
}

// SchemaError is a fatal input error: one or more required columns are
// absent from the measurement table
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("input table is missing required column(s): %s", strings.Join(e.Missing, ", "))
}

// ReadMeasurements parses a delimited measurement table. The header row
// is checked against requiredColumns before any row is parsed; columns
// beyond the required ones are ignored
func ReadMeasurements(r io.Reader, comma rune) ([]Measurement, error) {
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header row: %v", err)
	}

	cols := make(map[string]int)
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}

	var missing []string
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Missing: missing}
	}

	var data []Measurement
	line := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %v", line, err)
		}
		line++

		m := Measurement{
			Clustername: record[cols["clustername"]],
			Experiment:  record[cols["experiment"]],
		}
		if i, ok := cols["representative"]; ok {
			m.Representative = record[i]
		}
		if m.Temperature, err = strconv.ParseFloat(record[cols["temperature"]], 64); err != nil {
			return nil, fmt.Errorf("row %d: bad temperature %q", line, record[cols["temperature"]])
		}
		if m.LogConcentration, err = strconv.ParseFloat(record[cols["logConcentration"]], 64); err != nil {
			return nil, fmt.Errorf("row %d: bad logConcentration %q", line, record[cols["logConcentration"]])
		}
		if m.Log2Value, err = strconv.ParseFloat(record[cols["log2Value"]], 64); err != nil {
			return nil, fmt.Errorf("row %d: bad log2Value %q", line, record[cols["log2Value"]])
		}
		if m.NObs, err = strconv.Atoi(record[cols["nObs"]]); err != nil {
			return nil, fmt.Errorf("row %d: bad nObs %q", line, record[cols["nObs"]])
		}

		data = append(data, m)
	}

	return data, nil
}

// ReadMeasurementsFile reads a measurement table from a file, choosing
// tab or comma delimiting from the extension (.tsv/.txt vs .csv)
func ReadMeasurementsFile(path string) ([]Measurement, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open measurement table: %v", err)
	}
	defer f.Close()

	comma := ','
	switch filepath.Ext(path) {
	case ".tsv", ".txt":
		comma = '\t'
	}

	return ReadMeasurements(f, comma)
}

// Group splits a flat measurement table into per-protein profiles,
// ordered by first appearance. Row order within each profile matches
// the input table
func Group(data []Measurement) []Profile {
	index := make(map[string]int)
	var profiles []Profile

	for _, m := range data {
		i, seen := index[m.Clustername]
		if !seen {
			index[m.Clustername] = len(profiles)
			profiles = append(profiles, Profile{
				Clustername: m.Clustername,
				NObs:        m.NObs,
			})
			i = len(profiles) - 1
		}
		profiles[i].Rows = append(profiles[i].Rows, m)
	}

	return profiles
}

// temperatures returns the distinct temperatures in a profile, in order
// of first appearance
func temperatures(rows []Measurement) []float64 {
	seen := make(map[float64]bool)
	var temps []float64
	for _, m := range rows {
		if !seen[m.Temperature] {
			seen[m.Temperature] = true
			temps = append(temps, m.Temperature)
		}
	}
	return temps
}
