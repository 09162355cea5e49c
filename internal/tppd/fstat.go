package tppd

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// ObservedTag marks F-statistics computed on the real dataset, as
// opposed to a bootstrap round
const ObservedTag = "observed"

// FStat is the nested-model F-statistic for one protein in one dataset
// (observed or a single bootstrap round)
type FStat struct {
	Clustername string `json:"clustername"`

	// F is the test statistic. +Inf for degenerate (perfect) fits
	F float64 `json:"F"`

	// DF1 is the numerator degrees of freedom (df0 - df1)
	DF1 int `json:"df1"`

	// DF2 is the denominator degrees of freedom (df1)
	DF2 int `json:"df2"`

	NObs int `json:"nObs"`

	// Dataset tags the source: ObservedTag or "bootstrap_<i>"
	Dataset string `json:"dataset"`

	// PValue is the theoretical F-distribution tail probability. The
	// empirical FDR from the bootstrapped null remains the decision
	// statistic; this column is for external diagnostics
	PValue float64 `json:"pValue"`

	// Degenerate marks the F = +Inf policy case
	Degenerate bool `json:"degenerate"`
}

// fFromRSS is the closed-form statistic:
// F = [(RSS0 - RSS1)/(df0 - df1)] / [RSS1/df1]
func fFromRSS(rss0, rss1 float64, df0, df1 int) float64 {
	if rss1 <= degenerateRSS {
		return math.Inf(1)
	}
	return ((rss0 - rss1) / float64(df0-df1)) / (rss1 / float64(df1))
}

// ComputeFStat derives one protein's F-statistic from its fitted model
// pair. The second return is false for records excluded from the
// statistic: invalid fits and violations of the nesting precondition
// df0 > df1
func ComputeFStat(mp ModelParams, dataset string) (FStat, bool) {
	if !mp.Valid || mp.DF0 <= mp.DF1 || mp.DF1 <= 0 {
		return FStat{}, false
	}

	fs := FStat{
		Clustername: mp.Clustername,
		DF1:         mp.DF0 - mp.DF1,
		DF2:         mp.DF1,
		NObs:        mp.NObs,
		Dataset:     dataset,
		Degenerate:  mp.Degenerate || mp.Alt.RSS <= degenerateRSS,
	}

	fs.F = fFromRSS(mp.Null.RSS, mp.Alt.RSS, mp.DF0, mp.DF1)
	if math.IsInf(fs.F, 1) {
		// perfect fit ranks as maximally significant
		fs.PValue = 0
		return fs, true
	}

	dist := distuv.F{D1: float64(fs.DF1), D2: float64(fs.DF2)}
	fs.PValue = dist.Survival(fs.F)

	return fs, true
}

// ComputeFStats maps ComputeFStat over a batch of fitted records,
// dropping the invalid ones
func ComputeFStats(params []ModelParams, dataset string) []FStat {
	var stats []FStat
	for _, mp := range params {
		if fs, ok := ComputeFStat(mp, dataset); ok {
			stats = append(stats, fs)
		}
	}
	return stats
}
