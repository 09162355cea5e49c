package tppd

import (
	"math"
	"reflect"
	"testing"
)

// makeProfile builds a synthetic profile over the cross product of
// temperatures, concentrations and experiments, with the signal given
// by value(temperature, concentration, experiment index, row index)
func makeProfile(name string, temps, concs []float64, exps []string, value func(temp, conc float64, exp, row int) float64) Profile {
	var rows []Measurement
	i := 0
	for _, temp := range temps {
		for _, conc := range concs {
			for e, exp := range exps {
				rows = append(rows, Measurement{
					Clustername:      name,
					Temperature:      temp,
					Experiment:       exp,
					LogConcentration: conc,
					Log2Value:        value(temp, conc, e, i),
				})
				i++
			}
		}
	}
	for j := range rows {
		rows[j].NObs = len(rows)
	}
	return Profile{Clustername: name, NObs: len(rows), Rows: rows}
}

func Test_ConstantNull(t *testing.T) {
	p := Profile{
		Clustername: "P1",
		Rows: []Measurement{
			{Temperature: 42, Log2Value: 1},
			{Temperature: 42, Log2Value: 3},
			{Temperature: 46, Log2Value: 2},
			{Temperature: 46, Log2Value: 4},
		},
	}

	fit, err := ConstantNull{}.Fit(p, ConcentrationLimits{}, 0)
	if err != nil {
		t.Fatalf("ConstantNull.Fit() err = %v", err)
	}

	if want := []float64{2, 3}; !reflect.DeepEqual(fit.Params, want) {
		t.Errorf("ConstantNull.Fit() Params = %v, want %v", fit.Params, want)
	}
	if want := []float64{2, 2, 3, 3}; !reflect.DeepEqual(fit.Predicted, want) {
		t.Errorf("ConstantNull.Fit() Predicted = %v, want %v", fit.Predicted, want)
	}
	if want := []float64{-1, 1, -1, 1}; !reflect.DeepEqual(fit.Residuals, want) {
		t.Errorf("ConstantNull.Fit() Residuals = %v, want %v", fit.Residuals, want)
	}
	if fit.RSS != 4 {
		t.Errorf("ConstantNull.Fit() RSS = %v, want 4", fit.RSS)
	}
	if fit.NParams != 2 {
		t.Errorf("ConstantNull.Fit() NParams = %v, want 2", fit.NParams)
	}
}

func Test_SigmoidAlt_recovers(t *testing.T) {
	// a clean dose-response: shared midpoint -7 and slope 2,
	// per-temperature plateaus
	plateau := map[float64]float64{40: 1.0, 44: 0.8, 48: 0.6}
	p := makeProfile("P1",
		[]float64{40, 44, 48},
		[]float64{-9, -8, -7, -6, -5},
		[]string{"e1", "e2"},
		func(temp, conc float64, _, _ int) float64 {
			return plateau[temp] * logistic(2*(conc - -7))
		})

	limits := ConcentrationLimits{Min: -9, Max: -5}
	fit, err := SigmoidAlt{Method: MethodNelderMead}.Fit(p, limits, 500)
	if err != nil {
		t.Fatalf("SigmoidAlt.Fit() err = %v", err)
	}

	if fit.NParams != 5 {
		t.Errorf("SigmoidAlt.Fit() NParams = %d, want 5 (2 shared + 3 plateaus)", fit.NParams)
	}
	if got := fit.Params[0]; math.Abs(got - -7) > 0.3 {
		t.Errorf("SigmoidAlt.Fit() midpoint = %v, want -7 +/- 0.3", got)
	}
	if got := fit.Params[1]; math.Abs(got-2) > 0.5 {
		t.Errorf("SigmoidAlt.Fit() slope = %v, want 2 +/- 0.5", got)
	}
	if fit.RSS > 0.01 {
		t.Errorf("SigmoidAlt.Fit() RSS = %v, want near zero on noiseless data", fit.RSS)
	}
	if len(fit.Residuals) != len(p.Rows) {
		t.Errorf("SigmoidAlt.Fit() residual length = %d, want %d", len(fit.Residuals), len(p.Rows))
	}
}

func Test_SigmoidAlt_midpointBounds(t *testing.T) {
	// the true midpoint sits outside the tested range; the fitted one
	// must stay inside it
	p := makeProfile("P1",
		[]float64{40, 44},
		[]float64{-9, -8, -7},
		[]string{"e1"},
		func(temp, conc float64, _, _ int) float64 {
			return logistic(2 * (conc - -4))
		})

	limits := ConcentrationLimits{Min: -9, Max: -7}
	fit, err := SigmoidAlt{Method: MethodNelderMead}.Fit(p, limits, 500)
	if err != nil {
		t.Fatalf("SigmoidAlt.Fit() err = %v", err)
	}

	if fit.Params[0] < limits.Min || fit.Params[0] > limits.Max {
		t.Errorf("SigmoidAlt.Fit() midpoint = %v, want within [%v, %v]", fit.Params[0], limits.Min, limits.Max)
	}
}

func Test_FitProfile_invalidNesting(t *testing.T) {
	// one observation per temperature: the alternative model has more
	// parameters than observations, so df1 <= 0 and the record must be
	// flagged invalid, not crash
	p := makeProfile("P1",
		[]float64{40, 44},
		[]float64{-7},
		[]string{"e1"},
		func(temp, conc float64, _, _ int) float64 { return 1 })

	f := &Fitter{
		Null:          ConstantNull{},
		Alt:           SigmoidAlt{Method: MethodNelderMead},
		Limits:        ConcentrationLimits{Min: -9, Max: -5},
		MaxIterations: 500,
	}

	mp := f.FitProfile(p)
	if mp.Valid {
		t.Errorf("FitProfile() Valid = true, want invalid for df1 = %d", mp.DF1)
	}
	if _, ok := ComputeFStat(mp, ObservedTag); ok {
		t.Error("ComputeFStat() accepted an invalid record, want excluded")
	}
}

func Test_FitProfile_midpointSlopeTag(t *testing.T) {
	p := makeProfile("P1",
		[]float64{40, 44},
		[]float64{-9, -8, -7, -6, -5},
		[]string{"e1", "e2"},
		func(temp, conc float64, _, _ int) float64 {
			return 1.5 * logistic(2*(conc - -7))
		})

	f := &Fitter{
		Null:          ConstantNull{},
		Alt:           SigmoidAlt{Method: MethodNelderMead},
		Limits:        ConcentrationLimits{Min: -9, Max: -5},
		MaxIterations: 500,
	}

	mp := f.FitProfile(p)
	if !mp.Valid {
		t.Fatal("FitProfile() Valid = false, want a valid fit")
	}
	if mp.Infl != mp.Alt.Params[0] || mp.Slope != mp.Alt.Params[1] {
		t.Errorf("FitProfile() Infl/Slope = %v/%v, want %v/%v from the tagged parameterization",
			mp.Infl, mp.Slope, mp.Alt.Params[0], mp.Alt.Params[1])
	}
	if len(mp.Plateaus) != 2 {
		t.Errorf("FitProfile() Plateaus = %v, want one per temperature", mp.Plateaus)
	}
	if mp.DF0 <= mp.DF1 {
		t.Errorf("FitProfile() df0 = %d, df1 = %d, want df0 > df1", mp.DF0, mp.DF1)
	}
}

func Test_DedupeParams(t *testing.T) {
	params := []ModelParams{
		{Clustername: "P1", NObs: 10},
		{Clustername: "P2", NObs: 8},
		{Clustername: "P1", NObs: 20},
	}

	got := DedupeParams(params)

	want := []ModelParams{
		{Clustername: "P2", NObs: 8},
		{Clustername: "P1", NObs: 20},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("DedupeParams() = %v, want %v", got, want)
	}
}
