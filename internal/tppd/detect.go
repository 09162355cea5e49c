package tppd

import (
	"fmt"

	"tppd/config"
)

// Results holds the four output tables of one pipeline run
type Results struct {
	// Params is the fitted model pair per protein
	Params []ModelParams

	// Observed is the F-statistic per validly fitted protein
	Observed []FStat

	// Null is the bootstrapped null distribution, all rounds and proteins
	Null []FStat

	// FDR is the observed statistics with estimated FDR, ranked
	FDR []FDRRow

	// Hits are the FDR rows at or below alpha
	Hits []FDRRow
}

// Detect runs the whole pipeline on a measurement table:
// filter -> fit -> F-statistic -> bootstrap null -> FDR -> hits.
// Configuration errors surface before any fitting begins; per-protein
// convergence failures are non-fatal and appear as invalid records
func Detect(data []Measurement, conf *config.Config) (*Results, error) {
	method, err := ParseOptimMethod(conf.Method)
	if err != nil {
		return nil, err
	}
	strategy, err := ParseBootstrapStrategy(conf.Strategy)
	if err != nil {
		return nil, err
	}
	if conf.Rounds <= 0 {
		return nil, fmt.Errorf("bootstrap rounds must be positive, got %d", conf.Rounds)
	}
	if conf.Rounds < MinRecommendedRounds {
		stderr.Printf("warning: only %d bootstrap rounds, FDR estimates may be unstable below %d", conf.Rounds, MinRecommendedRounds)
	}

	data = MinObsFilter(data, conf.MinObs)
	if conf.IndependentFiltering {
		data = IndependentFilter(data, conf.FCThreshold)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("no protein profiles left after filtering")
	}

	limits, err := FindConcentrationLimits(data)
	if err != nil {
		return nil, err
	}

	fitter := &Fitter{
		Null:          ConstantNull{},
		Alt:           SigmoidAlt{Method: method, Gradient: conf.Gradient},
		Limits:        limits,
		MaxIterations: conf.MaxIterations,
	}
	if conf.Trimmed {
		fitter.Refine = TrimmedSigmoid{Keep: conf.TrimKeep}
	}

	profiles := Group(data)
	dispatcher := &Dispatcher{Workers: conf.Workers}

	params := dispatcher.FitAll(fitter, profiles)
	observed := ComputeFStats(params, ObservedTag)

	resampler := &Resampler{
		Fitter:   fitter,
		Strategy: strategy,
		Rounds:   conf.Rounds,
		ByMsExp:  conf.ByMsExp,
		Seed:     conf.Seed,
	}
	null, err := resampler.NullDistribution(profiles, params, dispatcher)
	if err != nil {
		return nil, err
	}

	fdr := GetFDR(observed, null, conf.Rounds)

	return &Results{
		Params:   params,
		Observed: observed,
		Null:     null,
		FDR:      fdr,
		Hits:     FindHits(fdr, conf.Alpha),
	}, nil
}
