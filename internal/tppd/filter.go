package tppd

import (
	"fmt"
	"math"
)

// ConcentrationLimits bound the midpoint parameter of the alternative
// model to the dose range that was actually tested
type ConcentrationLimits struct {
	Min float64
	Max float64
}

// FindConcentrationLimits derives the min and max log-concentration
// across the whole dataset
func FindConcentrationLimits(data []Measurement) (ConcentrationLimits, error) {
	if len(data) == 0 {
		return ConcentrationLimits{}, fmt.Errorf("cannot derive concentration limits from an empty dataset")
	}

	limits := ConcentrationLimits{
		Min: data[0].LogConcentration,
		Max: data[0].LogConcentration,
	}
	for _, m := range data[1:] {
		limits.Min = math.Min(limits.Min, m.LogConcentration)
		limits.Max = math.Max(limits.Max, m.LogConcentration)
	}

	return limits, nil
}

// MinObsFilter removes every protein group whose observation count is
// below minObs. Sparse profiles produce unstable fits
func MinObsFilter(data []Measurement, minObs int) []Measurement {
	var kept []Measurement
	for _, m := range data {
		if m.NObs >= minObs {
			kept = append(kept, m)
		}
	}
	return kept
}

// IndependentFilter removes protein groups whose maximal absolute
// log2 fold change, relative to the lowest tested concentration of the
// same temperature and experiment, never reaches log2(fcThreshold).
// Run before fitting so the filter stays independent of the test
// statistic
func IndependentFilter(data []Measurement, fcThreshold float64) []Measurement {
	cutoff := math.Log2(fcThreshold)

	// reference value per (protein, temperature, experiment): the signal
	// at that stratum's lowest concentration
	type stratum struct {
		clustername string
		temperature float64
		experiment  string
	}
	refConc := make(map[stratum]float64)
	refValue := make(map[stratum]float64)
	for _, m := range data {
		s := stratum{m.Clustername, m.Temperature, m.Experiment}
		if c, ok := refConc[s]; !ok || m.LogConcentration < c {
			refConc[s] = m.LogConcentration
			refValue[s] = m.Log2Value
		}
	}

	maxFC := make(map[string]float64)
	for _, m := range data {
		s := stratum{m.Clustername, m.Temperature, m.Experiment}
		fc := math.Abs(m.Log2Value - refValue[s])
		if fc > maxFC[m.Clustername] {
			maxFC[m.Clustername] = fc
		}
	}

	var kept []Measurement
	for _, m := range data {
		if maxFC[m.Clustername] >= cutoff {
			kept = append(kept, m)
		}
	}
	return kept
}
