package pacing

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	fitMaxEvaluations = 1000
	fitTolerance      = 1e-8
	fitMaxDamping     = 1e16
	// fitMinStartB keeps a zero B estimate off w = 0, where dv/dw vanishes.
	fitMinStartB = 1e-6
)

// ResponseModel is the saturating spend→value curve v(s) = (sqrt(B² + 2·A·s) − B) / A.
// Equivalently s = A·v²/2 + B·v.
type ResponseModel struct {
	A float64 `json:"a" yaml:"a"`
	B float64 `json:"b" yaml:"b"`
}

// initialResponseModel is the fallback starting point and the value reported on failure.
var initialResponseModel = ResponseModel{A: 1, B: 1}

// Value returns the cumulative value the model predicts for a cumulative spend.
func (m ResponseModel) Value(spend float64) float64 {
	return (math.Sqrt(m.B*m.B+2*m.A*spend) - m.B) / m.A
}

// OptimalSpend returns (2 − 2B) / A, the iteration spend the SPB controller aims for once the
// model is trusted. It is negative when B > 1.
func (m ResponseModel) OptimalSpend() float64 {
	return (2.0 - 2.0*m.B) / m.A
}

// partials returns dv/dA and dv/dB at spend. v(0) is 0 for every model, so both are 0 there.
func (m ResponseModel) partials(spend float64) (float64, float64) {
	if spend == 0 {
		return 0, 0
	}
	r := math.Sqrt(m.B*m.B + 2*m.A*spend)
	dA := spend/(m.A*r) - (r-m.B)/(m.A*m.A)
	dB := (m.B/r - 1) / m.A
	return dA, dB
}

// fitParams is the unconstrained search space: A = exp(U), B = W².
type fitParams struct {
	U, W float64
}

func newFitParams(m ResponseModel) fitParams {
	return fitParams{U: math.Log(m.A), W: math.Sqrt(math.Max(m.B, fitMinStartB))}
}

func (p fitParams) model() ResponseModel {
	return ResponseModel{A: math.Exp(p.U), B: p.W * p.W}
}

// FitResponseCurve fits a ResponseModel to per-iteration (spend, value) totals by
// Levenberg–Marquardt least squares on value, with A > 0 and B >= 0 enforced through the
// substitution A = exp(u), B = w². The search starts from the linear least-squares solution of
// s = A·v²/2 + B·v when that is feasible, and from (1, 1); the lower-cost fit wins.
//
// The fit reports ok=false (with the model (1, 1)) instead of failing when there are fewer
// than two points, the histories differ in length, the data are non-finite, or no start
// converges within the evaluation budget.
func FitResponseCurve(spend, value []float64) (ResponseModel, bool) {
	if len(spend) < 2 || len(spend) != len(value) || !allFinite(spend) || !allFinite(value) {
		return initialResponseModel, false
	}

	starts := []ResponseModel{initialResponseModel}
	if m, ok := linearResponseModel(spend, value); ok {
		starts = append([]ResponseModel{m}, starts...)
	}

	var best ResponseModel
	bestCost := math.Inf(1)
	found := false
	for _, start := range starts {
		m, cost, ok := levenbergMarquardt(newFitParams(start), spend, value)
		if ok && cost < bestCost {
			best, bestCost, found = m, cost, true
		}
	}
	if !found {
		return initialResponseModel, false
	}
	return best, true
}

// linearResponseModel solves s = A·v²/2 + B·v for (A, B) by least squares. A negative B is
// refitted with B = 0; a non-positive A has no feasible starting point.
func linearResponseModel(spend, value []float64) (ResponseModel, bool) {
	n := len(spend)
	half := make([]float64, n)
	design := mat.NewDense(n, 2, nil)
	for i, v := range value {
		half[i] = v * v / 2
		design.Set(i, 0, half[i])
		design.Set(i, 1, v)
	}

	var coef mat.VecDense
	if err := coef.SolveVec(design, mat.NewVecDense(n, spend)); err != nil {
		return ResponseModel{}, false
	}
	m := ResponseModel{A: coef.AtVec(0), B: coef.AtVec(1)}
	if m.B < 0 {
		norm := floats.Dot(half, half)
		if norm == 0 {
			return ResponseModel{}, false
		}
		m = ResponseModel{A: floats.Dot(half, spend) / norm}
	}
	if !allFinite([]float64{m.A, m.B}) || m.A <= 0 {
		return ResponseModel{}, false
	}
	return m, true
}

// levenbergMarquardt minimizes the squared value residuals from p and returns the fitted model
// and its cost.
func levenbergMarquardt(p fitParams, spend, value []float64) (ResponseModel, float64, bool) {
	cost, ok := fitCost(p.model(), spend, value)
	evaluations := 1
	if !ok {
		return ResponseModel{}, 0, false
	}

	damping := 1e-3
	jac := mat.NewDense(len(spend), 2, nil)
	res := mat.NewVecDense(len(spend), nil)

	for evaluations < fitMaxEvaluations {
		m := p.model()
		for i, s := range spend {
			dA, dB := m.partials(s)
			jac.Set(i, 0, dA*m.A)
			jac.Set(i, 1, dB*2*p.W)
			res.SetVec(i, m.Value(s)-value[i])
		}
		if !allFinite(jac.RawMatrix().Data) {
			return ResponseModel{}, 0, false
		}

		var jtj mat.Dense
		jtj.Mul(jac.T(), jac)
		var grad mat.VecDense
		grad.MulVec(jac.T(), res)
		if mat.Norm(&grad, math.Inf(1)) < fitTolerance {
			return m, cost, true
		}

		improved := false
		for !improved {
			if damping > fitMaxDamping || evaluations >= fitMaxEvaluations {
				return ResponseModel{}, 0, false
			}

			lhs := mat.DenseCopyOf(&jtj)
			for k := 0; k < 2; k++ {
				d := jtj.At(k, k)
				if d == 0 {
					d = 1
				}
				lhs.Set(k, k, jtj.At(k, k)+damping*d)
			}
			var step mat.VecDense
			if err := step.SolveVec(lhs, &grad); err != nil {
				damping *= 10
				continue
			}

			next := fitParams{U: p.U - step.AtVec(0), W: p.W - step.AtVec(1)}
			nextCost, finite := fitCost(next.model(), spend, value)
			evaluations++
			if !finite || nextCost >= cost {
				damping *= 10
				continue
			}

			improved = true
			moved := math.Hypot(next.U-p.U, next.W-p.W)
			size := math.Hypot(p.U, p.W)
			converged := cost-nextCost <= fitTolerance*cost || moved <= fitTolerance*(fitTolerance+size)
			p, cost = next, nextCost
			damping = math.Max(damping/10, 1e-12)
			if converged {
				return p.model(), cost, true
			}
		}
	}
	return ResponseModel{}, 0, false
}

// fitCost returns half the squared residual norm of m over the data.
func fitCost(m ResponseModel, spend, value []float64) (float64, bool) {
	residuals := make([]float64, len(spend))
	for i, s := range spend {
		residuals[i] = m.Value(s) - value[i]
	}
	if !allFinite(residuals) {
		return 0, false
	}
	return 0.5 * floats.Dot(residuals, residuals), true
}

func allFinite(xs []float64) bool {
	for _, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
