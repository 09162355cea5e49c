package tppd

import (
	"fmt"
	"math/rand"
	"reflect"
	"strings"
	"testing"
)

func testFitter() *Fitter {
	return &Fitter{
		Null:          ConstantNull{},
		Alt:           SigmoidAlt{Method: MethodNelderMead},
		Limits:        ConcentrationLimits{Min: -9, Max: -5},
		MaxIterations: 500,
	}
}

// noisyProfile has no dose effect, only a deterministic noise pattern
func noisyProfile(name string, seed int64) Profile {
	rng := rand.New(rand.NewSource(seed))
	return makeProfile(name,
		[]float64{40, 44, 48},
		[]float64{-9, -8, -7, -6, -5},
		[]string{"e1", "e2"},
		func(temp, conc float64, _, _ int) float64 {
			return 0.1 * rng.NormFloat64()
		})
}

func Test_ParseBootstrapStrategy(t *testing.T) {
	type result struct {
		strategy BootstrapStrategy
		fails    bool
	}
	tests := []struct {
		name string
		in   string
		want result
	}{
		{"null refit", "null-refit", result{NullRefit, false}},
		{"alt residual", "alt-residual", result{AltResidual, false}},
		{"fast shuffle", "fast-shuffle", result{FastShuffle, false}},
		{"default", "", result{FastShuffle, false}},
		{"unknown", "jackknife", result{0, true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBootstrapStrategy(tt.in)
			if (err != nil) != tt.want.fails {
				t.Fatalf("ParseBootstrapStrategy(%q) err = %v", tt.in, err)
			}
			if err == nil && got != tt.want.strategy {
				t.Errorf("ParseBootstrapStrategy(%q) = %v, want %v", tt.in, got, tt.want.strategy)
			}
		})
	}
}

func Test_Resampler_Validate(t *testing.T) {
	for _, rounds := range []int{0, -5} {
		r := &Resampler{Rounds: rounds}
		if err := r.Validate(); err == nil {
			t.Errorf("Validate() with %d rounds expected an error, got nil", rounds)
		}
	}

	r := &Resampler{Rounds: 20}
	if err := r.Validate(); err != nil {
		t.Errorf("Validate() with 20 rounds err = %v", err)
	}
}

func Test_resampleResiduals_counts(t *testing.T) {
	// residual values double as indices so each draw's source stratum
	// can be recovered
	rows := []Measurement{
		{Experiment: "e1"}, {Experiment: "e1"}, {Experiment: "e1"},
		{Experiment: "e2"}, {Experiment: "e2"},
	}
	res := []float64{0, 1, 2, 3, 4}
	expOf := map[float64]string{0: "e1", 1: "e1", 2: "e1", 3: "e2", 4: "e2"}

	rng := rand.New(rand.NewSource(7))

	t.Run("stratified draws stay within their experiment", func(t *testing.T) {
		for trial := 0; trial < 25; trial++ {
			out := resampleResiduals(res, rows, true, rng)
			if len(out) != len(res) {
				t.Fatalf("resampleResiduals() length = %d, want %d", len(out), len(res))
			}
			for i, v := range out {
				if expOf[v] != rows[i].Experiment {
					t.Fatalf("row %d (%s) drew residual %v from experiment %s", i, rows[i].Experiment, v, expOf[v])
				}
			}
		}
	})

	t.Run("pooled draws keep the total count", func(t *testing.T) {
		out := resampleResiduals(res, rows, false, rng)
		if len(out) != len(res) {
			t.Errorf("resampleResiduals() length = %d, want %d", len(out), len(res))
		}
	})
}

func Test_NullDistribution_reproducible(t *testing.T) {
	profiles := []Profile{noisyProfile("P1", 1), noisyProfile("P2", 2)}
	d := &Dispatcher{Workers: 2}

	run := func() []FStat {
		r := &Resampler{
			Fitter:   testFitter(),
			Strategy: FastShuffle,
			Rounds:   20,
			ByMsExp:  true,
			Seed:     99,
		}
		null, err := r.NullDistribution(profiles, nil, d)
		if err != nil {
			t.Fatalf("NullDistribution() err = %v", err)
		}
		return null
	}

	first := run()
	second := run()

	if !reflect.DeepEqual(first, second) {
		t.Error("NullDistribution() differs between two runs with the same seed")
	}
}

func Test_NullDistribution_roundTags(t *testing.T) {
	p := noisyProfile("P1", 3)
	d := &Dispatcher{Workers: 1}
	r := &Resampler{
		Fitter:   testFitter(),
		Strategy: FastShuffle,
		Rounds:   5,
		ByMsExp:  true,
		Seed:     4,
	}

	null, err := r.NullDistribution([]Profile{p}, nil, d)
	if err != nil {
		t.Fatalf("NullDistribution() err = %v", err)
	}

	if len(null) != 5 {
		t.Fatalf("NullDistribution() produced %d rows, want one per round", len(null))
	}
	for i, fs := range null {
		if want := fmt.Sprintf("bootstrap_%d", i); fs.Dataset != want {
			t.Errorf("round %d Dataset = %q, want %q", i, fs.Dataset, want)
		}
		if fs.Clustername != "P1" {
			t.Errorf("round %d Clustername = %q, want P1", i, fs.Clustername)
		}
		if fs.NObs != p.NObs {
			t.Errorf("round %d NObs = %d, want %d", i, fs.NObs, p.NObs)
		}
	}
}

func Test_NullDistribution_rejectsBadRounds(t *testing.T) {
	r := &Resampler{Fitter: testFitter(), Strategy: FastShuffle, Rounds: 0}

	_, err := r.NullDistribution([]Profile{noisyProfile("P1", 1)}, nil, &Dispatcher{Workers: 1})
	if err == nil {
		t.Fatal("NullDistribution() with zero rounds expected an error, got nil")
	}
	if !strings.Contains(err.Error(), "rounds") {
		t.Errorf("NullDistribution() err = %v, want a rounds configuration error", err)
	}
}

func Test_NullDistribution_fullRefitStrategies(t *testing.T) {
	profiles := []Profile{noisyProfile("P1", 5)}
	d := &Dispatcher{Workers: 1}
	fitter := testFitter()

	observed := []ModelParams{fitter.FitProfile(profiles[0])}
	if !observed[0].Valid {
		t.Fatal("observed fit is invalid, cannot exercise the refit strategies")
	}

	for _, strategy := range []BootstrapStrategy{NullRefit, AltResidual} {
		t.Run(strategy.String(), func(t *testing.T) {
			r := &Resampler{
				Fitter:   fitter,
				Strategy: strategy,
				Rounds:   3,
				ByMsExp:  true,
				Seed:     11,
			}

			null, err := r.NullDistribution(profiles, observed, d)
			if err != nil {
				t.Fatalf("NullDistribution() err = %v", err)
			}
			if len(null) > 3 {
				t.Fatalf("NullDistribution() produced %d rows from 3 rounds", len(null))
			}
			for _, fs := range null {
				if fs.DF1 != 2 {
					t.Errorf("numerator df = %d, want 2 (shared midpoint and slope)", fs.DF1)
				}
			}
		})
	}
}

func Test_AltResidual_needsObservedParams(t *testing.T) {
	// without observed fit parameters the strategy has nothing to
	// resample: the protein contributes no rows rather than failing
	r := &Resampler{
		Fitter:   testFitter(),
		Strategy: AltResidual,
		Rounds:   3,
		ByMsExp:  true,
		Seed:     1,
	}

	null, err := r.NullDistribution([]Profile{noisyProfile("P1", 1)}, nil, &Dispatcher{Workers: 1})
	if err != nil {
		t.Fatalf("NullDistribution() err = %v", err)
	}
	if len(null) != 0 {
		t.Errorf("NullDistribution() = %v, want no rows without observed parameters", null)
	}
}
