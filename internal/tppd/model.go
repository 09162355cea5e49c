package tppd

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/optimize"
)

// outOfBoundsPenalty steers the midpoint back inside the tested
// concentration range without making the objective discontinuous
const outOfBoundsPenalty = 1e4

// FitResult is one model fit to one protein profile. Predicted and
// Residuals are aligned to the profile's row order
type FitResult struct {
	// Params is the fitted parameter vector. Its interpretation is
	// strategy specific, see FitStrategy.UsesMidpointSlope
	Params []float64

	// Predicted values, one per profile row
	Predicted []float64

	// Residuals (observed - predicted), one per profile row
	Residuals []float64

	// RSS is the residual sum of squares
	RSS float64

	// NParams is the number of free model parameters, used for the
	// residual degrees of freedom
	NParams int
}

// FitStrategy fits one model family to a protein profile by minimizing
// a residual sum of squares. The midpoint parameter, where one exists,
// is bounded to the supplied concentration limits
type FitStrategy interface {
	Name() string

	// UsesMidpointSlope reports whether the fitted parameter vector is
	// laid out as [midpoint, slope, plateau per temperature]. Downstream
	// code keys on this tag, never on the identity of the strategy value
	UsesMidpointSlope() bool

	Fit(p Profile, limits ConcentrationLimits, maxIter int) (FitResult, error)
}

// RefineStrategy is an optional second fitting stage that starts from an
// already fitted alternative model, e.g. a trimmed-RSS objective that
// down-weights outlying residuals
type RefineStrategy interface {
	Name() string
	Refine(p Profile, start FitResult, limits ConcentrationLimits, maxIter int) (FitResult, error)
}

// OptimMethod selects the gonum minimizer used for the alternative
// model fit
type OptimMethod int

const (
	MethodNelderMead OptimMethod = iota
	MethodLBFGS
	MethodGradient
)

// ParseOptimMethod maps a config string onto an OptimMethod
func ParseOptimMethod(s string) (OptimMethod, error) {
	switch s {
	case "nelder-mead", "":
		return MethodNelderMead, nil
	case "lbfgs":
		return MethodLBFGS, nil
	case "gradient":
		return MethodGradient, nil
	}
	return 0, fmt.Errorf("unknown optimization method %q", s)
}

func (m OptimMethod) toGonum() optimize.Method {
	switch m {
	case MethodLBFGS:
		return &optimize.LBFGS{}
	case MethodGradient:
		return &optimize.GradientDescent{}
	default:
		return &optimize.NelderMead{}
	}
}

// ConstantNull is the null model: a per-temperature mean response,
// independent of concentration. The fit is analytic. Params holds the
// per-temperature means in order of first appearance
type ConstantNull struct{}

// Name of the strategy
func (ConstantNull) Name() string { return "constant-null" }

// UsesMidpointSlope is false: the null model has no dose-response shape
func (ConstantNull) UsesMidpointSlope() bool { return false }

// Fit computes the per-temperature means and their residuals
func (ConstantNull) Fit(p Profile, _ ConcentrationLimits, _ int) (FitResult, error) {
	if len(p.Rows) == 0 {
		return FitResult{}, fmt.Errorf("profile %s has no rows", p.Clustername)
	}

	temps := temperatures(p.Rows)
	sums := make(map[float64]float64)
	counts := make(map[float64]int)
	for _, m := range p.Rows {
		sums[m.Temperature] += m.Log2Value
		counts[m.Temperature]++
	}

	means := make(map[float64]float64)
	params := make([]float64, len(temps))
	for i, t := range temps {
		means[t] = sums[t] / float64(counts[t])
		params[i] = means[t]
	}

	fit := FitResult{
		Params:    params,
		Predicted: make([]float64, len(p.Rows)),
		Residuals: make([]float64, len(p.Rows)),
		NParams:   len(temps),
	}
	for i, m := range p.Rows {
		fit.Predicted[i] = means[m.Temperature]
		fit.Residuals[i] = m.Log2Value - fit.Predicted[i]
		fit.RSS += fit.Residuals[i] * fit.Residuals[i]
	}

	return fit, nil
}

// SigmoidAlt is the alternative model: a logistic dose-response with a
// midpoint and slope shared across all temperatures and a free plateau
// per temperature,
//
//	y(c) = plateau[T] * logistic(slope * (c - midpoint))
//
// The null model is nested inside it (slope -> 0 gives a constant
// response per temperature). Plateaus are profiled out in closed form,
// so the optimizer only searches (midpoint, slope). Params is
// [midpoint, slope, plateau per temperature]
type SigmoidAlt struct {
	// Method is the gonum minimizer to run
	Method OptimMethod

	// Gradient supplies the analytic gradient of the profiled objective
	// to the minimizer; without it gradient methods fall back to finite
	// differences
	Gradient bool
}

// Name of the strategy
func (s SigmoidAlt) Name() string { return "sigmoid-alt" }

// UsesMidpointSlope is true: Params[0] is the midpoint, Params[1] the slope
func (s SigmoidAlt) UsesMidpointSlope() bool { return true }

// Fit minimizes the profiled RSS over (midpoint, slope), with the
// midpoint bounded to the tested concentration range and the iteration
// count capped. Starts from both slope signs and keeps the better
// optimum
func (s SigmoidAlt) Fit(p Profile, limits ConcentrationLimits, maxIter int) (FitResult, error) {
	if len(p.Rows) == 0 {
		return FitResult{}, fmt.Errorf("profile %s has no rows", p.Clustername)
	}

	obj := newSigmoidObjective(p, limits)
	problem := optimize.Problem{Func: obj.rss}
	if s.Gradient {
		problem.Grad = obj.grad
	}
	settings := &optimize.Settings{MajorIterations: maxIter}

	mid := (limits.Min + limits.Max) / 2
	var best *optimize.Result
	for _, x0 := range [][]float64{{mid, 1}, {mid, -1}} {
		result, err := optimize.Minimize(problem, x0, settings, s.Method.toGonum())
		if err != nil || result.Status == optimize.IterationLimit || math.IsNaN(result.F) {
			continue
		}
		if best == nil || result.F < best.F {
			best = result
		}
	}
	if best == nil {
		return FitResult{}, fmt.Errorf("sigmoid fit for %s did not converge within %d iterations", p.Clustername, maxIter)
	}

	return obj.fitResult(best.X), nil
}

// sigmoidObjective is the profiled sum-of-squares objective for one
// profile: plateaus are solved in closed form for each candidate
// (midpoint, slope)
type sigmoidObjective struct {
	rows   []Measurement
	temps  []float64
	tIdx   []int // row -> temperature index
	limits ConcentrationLimits
}

func newSigmoidObjective(p Profile, limits ConcentrationLimits) *sigmoidObjective {
	temps := temperatures(p.Rows)
	index := make(map[float64]int, len(temps))
	for i, t := range temps {
		index[t] = i
	}

	tIdx := make([]int, len(p.Rows))
	for i, m := range p.Rows {
		tIdx[i] = index[m.Temperature]
	}

	return &sigmoidObjective{rows: p.Rows, temps: temps, tIdx: tIdx, limits: limits}
}

func logistic(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

// plateaus solves the per-temperature plateau minimizing the RSS at a
// fixed (midpoint, slope): plateau = sum(y*s) / sum(s^2) per temperature
func (o *sigmoidObjective) plateaus(infl, slope float64) []float64 {
	num := make([]float64, len(o.temps))
	den := make([]float64, len(o.temps))
	for i, m := range o.rows {
		s := logistic(slope * (m.LogConcentration - infl))
		num[o.tIdx[i]] += m.Log2Value * s
		den[o.tIdx[i]] += s * s
	}

	delta := make([]float64, len(o.temps))
	for i := range delta {
		if den[i] > 0 {
			delta[i] = num[i] / den[i]
		}
	}
	return delta
}

// boundsExcess is how far the midpoint sits outside the tested
// concentration range
func (o *sigmoidObjective) boundsExcess(infl float64) float64 {
	if infl < o.limits.Min {
		return infl - o.limits.Min
	}
	if infl > o.limits.Max {
		return infl - o.limits.Max
	}
	return 0
}

func (o *sigmoidObjective) rss(x []float64) float64 {
	infl, slope := x[0], x[1]
	delta := o.plateaus(infl, slope)

	var rss float64
	for i, m := range o.rows {
		s := logistic(slope * (m.LogConcentration - infl))
		r := m.Log2Value - delta[o.tIdx[i]]*s
		rss += r * r
	}

	excess := o.boundsExcess(infl)
	return rss + outOfBoundsPenalty*excess*excess
}

// grad is the analytic gradient of the profiled objective. Because the
// plateaus minimize the RSS at every (midpoint, slope), their implicit
// dependence contributes nothing (envelope theorem), so the gradient is
// taken with the plateaus held fixed
func (o *sigmoidObjective) grad(g, x []float64) {
	infl, slope := x[0], x[1]
	delta := o.plateaus(infl, slope)

	g[0], g[1] = 0, 0
	for i, m := range o.rows {
		s := logistic(slope * (m.LogConcentration - infl))
		r := m.Log2Value - delta[o.tIdx[i]]*s
		ds := s * (1 - s)
		g[0] += -2 * r * delta[o.tIdx[i]] * (-slope * ds)
		g[1] += -2 * r * delta[o.tIdx[i]] * ((m.LogConcentration - infl) * ds)
	}

	excess := o.boundsExcess(infl)
	g[0] += 2 * outOfBoundsPenalty * excess
}

// fitResult expands an optimal (midpoint, slope) into the full fit
// record, clamping the midpoint to the tested range
func (o *sigmoidObjective) fitResult(x []float64) FitResult {
	infl := math.Max(o.limits.Min, math.Min(o.limits.Max, x[0]))
	slope := x[1]
	delta := o.plateaus(infl, slope)

	fit := FitResult{
		Params:    append([]float64{infl, slope}, delta...),
		Predicted: make([]float64, len(o.rows)),
		Residuals: make([]float64, len(o.rows)),
		NParams:   2 + len(o.temps),
	}
	for i, m := range o.rows {
		s := logistic(slope * (m.LogConcentration - infl))
		fit.Predicted[i] = delta[o.tIdx[i]] * s
		fit.Residuals[i] = m.Log2Value - fit.Predicted[i]
		fit.RSS += fit.Residuals[i] * fit.Residuals[i]
	}

	return fit
}

// TrimmedSigmoid is a robust refinement of SigmoidAlt: it re-minimizes
// over (midpoint, slope) with the largest squared residuals excluded
// from the objective, starting from the first-stage optimum. The
// trimmed objective is non-smooth, so it always runs Nelder-Mead
type TrimmedSigmoid struct {
	// Keep is the fraction of observations retained by the trimmed sum,
	// e.g. 0.9 drops the worst 10% of residuals
	Keep float64
}

// Name of the strategy
func (t TrimmedSigmoid) Name() string { return "trimmed-sigmoid" }

// Refine runs the trimmed minimization from the fitted (midpoint, slope)
func (t TrimmedSigmoid) Refine(p Profile, start FitResult, limits ConcentrationLimits, maxIter int) (FitResult, error) {
	if len(start.Params) < 2 {
		return FitResult{}, fmt.Errorf("trimmed refinement of %s needs a midpoint-slope start", p.Clustername)
	}

	obj := newSigmoidObjective(p, limits)
	keep := int(math.Ceil(t.Keep * float64(len(p.Rows))))
	if keep < 1 || keep > len(p.Rows) {
		keep = len(p.Rows)
	}

	trimmed := func(x []float64) float64 {
		infl, slope := x[0], x[1]
		delta := obj.plateaus(infl, slope)

		sq := make([]float64, len(obj.rows))
		for i, m := range obj.rows {
			s := logistic(slope * (m.LogConcentration - infl))
			r := m.Log2Value - delta[obj.tIdx[i]]*s
			sq[i] = r * r
		}
		sort.Float64s(sq)

		var rss float64
		for _, v := range sq[:keep] {
			rss += v
		}
		excess := obj.boundsExcess(infl)
		return rss + outOfBoundsPenalty*excess*excess
	}

	problem := optimize.Problem{Func: trimmed}
	settings := &optimize.Settings{MajorIterations: maxIter}
	result, err := optimize.Minimize(problem, start.Params[:2], settings, &optimize.NelderMead{})
	if err != nil {
		return FitResult{}, fmt.Errorf("trimmed refinement of %s failed: %v", p.Clustername, err)
	}
	if result.Status == optimize.IterationLimit || math.IsNaN(result.F) {
		return FitResult{}, fmt.Errorf("trimmed refinement of %s did not converge within %d iterations", p.Clustername, maxIter)
	}

	fit := obj.fitResult(result.X)
	fit.RSS = result.F
	return fit, nil
}
