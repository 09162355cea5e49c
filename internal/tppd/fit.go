package tppd

import "sort"

// degenerateRSS is the threshold below which an alternative-model RSS
// is treated as a perfect fit
const degenerateRSS = 1e-12

// ModelParams is the nested pair of model fits for one protein group
type ModelParams struct {
	Clustername string
	NObs        int

	// Null is the per-temperature mean fit
	Null FitResult

	// Alt is the dose-response fit
	Alt FitResult

	// DF0 and DF1 are the residual degrees of freedom of the null and
	// alternative models. DF0 > DF1 must hold for a valid record
	DF0 int
	DF1 int

	// Infl and Slope are the fitted midpoint and slope, populated when
	// the alternative strategy uses the midpoint-slope parameterization
	Infl  float64
	Slope float64

	// Plateaus maps temperature to its fitted plateau
	Plateaus map[float64]float64

	// Valid is false when the fit failed to converge or the nesting
	// precondition does not hold; invalid records carry no statistics
	Valid bool

	// Degenerate marks a perfect alternative fit (RSS of zero), which
	// yields an infinite F-statistic by policy
	Degenerate bool
}

// Fitter fits the null and alternative models to protein profiles
type Fitter struct {
	// Null and Alt are the model strategies for the two fits
	Null FitStrategy
	Alt  FitStrategy

	// Refine is an optional second stage applied to the alternative fit,
	// e.g. a trimmed-RSS objective. A failed refinement keeps the
	// first-stage fit
	Refine RefineStrategy

	// Limits bound the midpoint parameter
	Limits ConcentrationLimits

	// MaxIterations caps each optimizer run
	MaxIterations int
}

// FitProfile fits both models to one protein. Convergence failure is
// non-fatal: the returned record is marked invalid and carries no fit
// fields
func (f *Fitter) FitProfile(p Profile) ModelParams {
	mp := ModelParams{Clustername: p.Clustername, NObs: p.NObs}

	null, err := f.Null.Fit(p, f.Limits, f.MaxIterations)
	if err != nil {
		return mp
	}

	alt, err := f.Alt.Fit(p, f.Limits, f.MaxIterations)
	if err != nil {
		return mp
	}

	if f.Refine != nil {
		if refined, err := f.Refine.Refine(p, alt, f.Limits, f.MaxIterations); err == nil {
			alt = refined
		}
	}

	mp.Null = null
	mp.Alt = alt
	mp.DF0 = len(p.Rows) - null.NParams
	mp.DF1 = len(p.Rows) - alt.NParams

	// nested-model precondition: the alternative must have strictly more
	// free parameters
	if alt.NParams <= null.NParams || mp.DF1 <= 0 {
		return mp
	}

	mp.Valid = true
	mp.Degenerate = alt.RSS <= degenerateRSS

	if f.Alt.UsesMidpointSlope() && len(alt.Params) >= 2 {
		mp.Infl = alt.Params[0]
		mp.Slope = alt.Params[1]
		mp.Plateaus = make(map[float64]float64)
		for i, t := range temperatures(p.Rows) {
			if 2+i < len(alt.Params) {
				mp.Plateaus[t] = alt.Params[2+i]
			}
		}
	}

	return mp
}

// FitDataset fits every protein group in a flat measurement table,
// sequentially. Batch-parallel fitting goes through Dispatcher.FitAll
func (f *Fitter) FitDataset(data []Measurement) []ModelParams {
	profiles := Group(data)
	params := make([]ModelParams, len(profiles))
	for i, p := range profiles {
		params[i] = f.FitProfile(p)
	}
	return DedupeParams(params)
}

// DedupeParams keeps exactly one record per protein when duplicate
// filtering passes produced ties on nObs: the record at maximal nObs
// wins. Input order of the surviving records is preserved
func DedupeParams(params []ModelParams) []ModelParams {
	best := make(map[string]int)
	for i, mp := range params {
		if j, ok := best[mp.Clustername]; !ok || mp.NObs > params[j].NObs {
			best[mp.Clustername] = i
		}
	}

	keep := make([]int, 0, len(best))
	for _, i := range best {
		keep = append(keep, i)
	}
	sort.Ints(keep)

	deduped := make([]ModelParams, 0, len(keep))
	for _, i := range keep {
		deduped = append(deduped, params[i])
	}
	return deduped
}
