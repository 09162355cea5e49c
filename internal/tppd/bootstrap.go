package tppd

import (
	"fmt"
	"hash/fnv"
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

// MinRecommendedRounds is the minimum bootstrap round count below which
// FDR estimates become unstable. Smaller values are accepted with a
// warning
const MinRecommendedRounds = 20

// BootstrapStrategy selects how the empirical null distribution of
// F-statistics is generated
type BootstrapStrategy int

const (
	// NullRefit fits a fresh null model per protein and, per round,
	// resamples its residuals onto its predictions and refits both
	// models on the synthetic profile. Most faithful to the null
	// hypothesis, most expensive
	NullRefit BootstrapStrategy = iota

	// AltResidual reuses the observed fit parameters and resamples the
	// alternative model's residuals onto the null predictions, refitting
	// both models per round. Same cost as NullRefit, but the residual
	// structure comes from the better-fitting model
	AltResidual

	// FastShuffle fits once per protein on a single resampled dataset,
	// then per round resamples the stored residual vectors in place and
	// recomputes the F-statistic analytically with no refit. An
	// approximation: a single-round refit stands in for refitting at
	// every round, which is not statistically equivalent to the
	// full-refit strategies
	FastShuffle
)

// ParseBootstrapStrategy maps a config string onto a strategy
func ParseBootstrapStrategy(s string) (BootstrapStrategy, error) {
	switch s {
	case "null-refit":
		return NullRefit, nil
	case "alt-residual":
		return AltResidual, nil
	case "fast-shuffle", "":
		return FastShuffle, nil
	}
	return 0, fmt.Errorf("unknown bootstrap strategy %q", s)
}

// String names the strategy for logs and output tables
func (s BootstrapStrategy) String() string {
	switch s {
	case NullRefit:
		return "null-refit"
	case AltResidual:
		return "alt-residual"
	case FastShuffle:
		return "fast-shuffle"
	}
	return "unknown"
}

// Resampler builds the empirical null distribution of F-statistics by
// repeatedly perturbing real profiles under the null model
type Resampler struct {
	// Fitter runs the per-round model fits
	Fitter *Fitter

	// Strategy selects the resampling semantics
	Strategy BootstrapStrategy

	// Rounds is the bootstrap round count B
	Rounds int

	// ByMsExp stratifies residual resampling by MS experiment,
	// preserving experiment-level heteroscedasticity and each
	// experiment's sample count
	ByMsExp bool

	// Seed feeds the per-protein generators. Two runs with the same
	// seed and rounds produce identical null distributions regardless
	// of worker scheduling
	Seed int64
}

// Validate rejects unusable round counts before any work is dispatched
func (r *Resampler) Validate() error {
	if r.Rounds <= 0 {
		return fmt.Errorf("bootstrap rounds must be positive, got %d", r.Rounds)
	}
	return nil
}

// NullDistribution generates B rounds of null F-statistics for every
// profile, fanned out per protein by the dispatcher. Rounds whose fit
// fails contribute no rows. Requires observed fit parameters for the
// AltResidual strategy
func (r *Resampler) NullDistribution(profiles []Profile, observed []ModelParams, d *Dispatcher) ([]FStat, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	byProtein := make(map[string]ModelParams, len(observed))
	for _, mp := range observed {
		byProtein[mp.Clustername] = mp
	}

	return d.Collect(profiles, func(p Profile) []FStat {
		switch r.Strategy {
		case NullRefit:
			return r.nullRefitRounds(p)
		case AltResidual:
			return r.altResidualRounds(p, byProtein)
		default:
			return r.fastShuffleRounds(p)
		}
	}), nil
}

// proteinSeed derives an independent, reproducible generator seed per
// protein so resampling does not depend on cross-worker ordering
func (r *Resampler) proteinSeed(clustername string) int64 {
	h := fnv.New64a()
	h.Write([]byte(clustername))
	return r.Seed ^ int64(h.Sum64())
}

func roundTag(i int) string { return fmt.Sprintf("bootstrap_%d", i) }

// nullRefitRounds is the full-refit bootstrap seeded from a fresh null
// fit
func (r *Resampler) nullRefitRounds(p Profile) []FStat {
	null, err := r.Fitter.Null.Fit(p, r.Fitter.Limits, r.Fitter.MaxIterations)
	if err != nil {
		return nil
	}

	rng := rand.New(rand.NewSource(r.proteinSeed(p.Clustername)))
	var stats []FStat
	for i := 0; i < r.Rounds; i++ {
		sampled := resampleResiduals(null.Residuals, p.Rows, r.ByMsExp, rng)
		mp := r.Fitter.FitProfile(syntheticProfile(p, null.Predicted, sampled))
		if fs, ok := ComputeFStat(mp, roundTag(i)); ok {
			stats = append(stats, fs)
		}
	}
	return stats
}

// altResidualRounds reuses the observed fits: alternative-model
// residuals are resampled onto the null-model predictions
func (r *Resampler) altResidualRounds(p Profile, observed map[string]ModelParams) []FStat {
	mp0, ok := observed[p.Clustername]
	if !ok || !mp0.Valid || len(mp0.Alt.Residuals) != len(p.Rows) {
		return nil
	}

	rng := rand.New(rand.NewSource(r.proteinSeed(p.Clustername)))
	var stats []FStat
	for i := 0; i < r.Rounds; i++ {
		sampled := resampleResiduals(mp0.Alt.Residuals, p.Rows, r.ByMsExp, rng)
		mp := r.Fitter.FitProfile(syntheticProfile(p, mp0.Null.Predicted, sampled))
		if fs, ok := ComputeFStat(mp, roundTag(i)); ok {
			stats = append(stats, fs)
		}
	}
	return stats
}

// fastShuffleRounds fits once on a single resampled profile, then per
// round resamples the stored residual vectors and recomputes the
// statistic analytically
func (r *Resampler) fastShuffleRounds(p Profile) []FStat {
	null, err := r.Fitter.Null.Fit(p, r.Fitter.Limits, r.Fitter.MaxIterations)
	if err != nil {
		return nil
	}

	seed := r.proteinSeed(p.Clustername)
	rng := rand.New(rand.NewSource(seed))

	sampled := resampleResiduals(null.Residuals, p.Rows, r.ByMsExp, rng)
	ref := r.Fitter.FitProfile(syntheticProfile(p, null.Predicted, sampled))
	if !ref.Valid {
		return nil
	}

	stats := make([]FStat, 0, r.Rounds)
	for i := 0; i < r.Rounds; i++ {
		// each round draws from its own generator so rounds stay
		// independent of one another under any scheduling
		roundRNG := rand.New(rand.NewSource(seed ^ int64(i+1)*0x9e3779b9))

		res0 := resampleResiduals(ref.Null.Residuals, p.Rows, r.ByMsExp, roundRNG)
		res1 := resampleResiduals(ref.Alt.Residuals, p.Rows, r.ByMsExp, roundRNG)
		rss0 := floats.Dot(res0, res0)
		rss1 := floats.Dot(res1, res1)

		stats = append(stats, FStat{
			Clustername: p.Clustername,
			F:           fFromRSS(rss0, rss1, ref.DF0, ref.DF1),
			DF1:         ref.DF0 - ref.DF1,
			DF2:         ref.DF1,
			NObs:        p.NObs,
			Dataset:     roundTag(i),
			Degenerate:  rss1 <= degenerateRSS,
		})
	}
	return stats
}

// syntheticProfile copies a profile with its signal replaced by
// prediction plus resampled residual. The source profile is never
// mutated
func syntheticProfile(p Profile, predicted, residuals []float64) Profile {
	rows := make([]Measurement, len(p.Rows))
	copy(rows, p.Rows)
	for i := range rows {
		rows[i].Log2Value = predicted[i] + residuals[i]
	}
	return Profile{Clustername: p.Clustername, NObs: p.NObs, Rows: rows}
}

// resampleResiduals draws len(res) residuals with replacement. When
// byExp is set, every draw for a row comes only from rows of the same
// experiment, so per-experiment sample counts are preserved exactly
func resampleResiduals(res []float64, rows []Measurement, byExp bool, rng *rand.Rand) []float64 {
	out := make([]float64, len(res))

	if !byExp {
		for i := range out {
			out[i] = res[rng.Intn(len(res))]
		}
		return out
	}

	strata := make(map[string][]int)
	for i, m := range rows {
		strata[m.Experiment] = append(strata[m.Experiment], i)
	}
	for i, m := range rows {
		pool := strata[m.Experiment]
		out[i] = res[pool[rng.Intn(len(pool))]]
	}
	return out
}
