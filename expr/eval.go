package expr

import (
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/num/dual"
)

// DefaultStep is the finite-difference half-width used by NumericDerivative
// when h is not positive.
const DefaultStep = 1e-6

// Eval evaluates e at x.
func (e *Expression) Eval(x float64) (float64, error) {
	return e.root.eval(x)
}

// ParseAndEval parses src and evaluates it once at x.
func ParseAndEval(src string, x float64) (float64, error) {
	e, err := Parse(src)
	if err != nil {
		return 0, err
	}
	return e.Eval(x)
}

// NumericDerivative approximates f'(x) with the centered difference
// (f(x+h) - f(x-h)) / 2h. A non-positive h selects DefaultStep. The first
// failing end point is returned as the error.
func NumericDerivative(e *Expression, x, h float64) (float64, error) {
	if h <= 0 {
		h = DefaultStep
	}
	var evalErr error
	d := fd.Derivative(func(v float64) float64 {
		if evalErr != nil {
			return 0
		}
		fv, err := e.Eval(v)
		if err != nil {
			evalErr = err
		}
		return fv
	}, x, &fd.Settings{Formula: fd.Central, Step: h})
	if evalErr != nil {
		return 0, evalErr
	}
	return d, nil
}

// DualDerivative returns f(x) and the exact f'(x) computed in a single
// forward-mode pass over the tree.
func DualDerivative(e *Expression, x float64) (fx, dfx float64, err error) {
	v, err := e.root.evalDual(dual.Number{Real: x, Emag: 1})
	if err != nil {
		return 0, 0, err
	}
	return v.Real, v.Emag, nil
}
