// Package newton finds roots of scalar expressions with damped
// Newton–Raphson iteration.
//
// Design goals:
//   - Expressions come from untrusted text and are evaluated by a closed
//     grammar (package expr), never by a general code evaluator
//   - Deterministic: identical inputs give bit-identical outcomes and traces
//   - No process-wide state; concurrent runs need no coordination
//   - Observability through an injected Tracer, not through formatting
//     inside the loop
package newton

import (
	"fmt"
	"math"

	"github.com/njchilds90/gonewton/expr"
	"github.com/njchilds90/gonewton/internal/options"
)

// ============================================================
// Outcome
// ============================================================

// Status tags how a run ended.
type Status int

const (
	// Converged: the step test passed; X is the root.
	Converged Status = iota + 1
	// MaxIterationsReached: the cap was hit; X is the best estimate.
	MaxIterationsReached
	// DerivativeVanished: |f'(x)| < VanishingDerivative at X.
	DerivativeVanished
)

func (s Status) String() string {
	switch s {
	case Converged:
		return "converged"
	case MaxIterationsReached:
		return "max_iter_reached"
	case DerivativeVanished:
		return "derivative_vanished"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Class is the coarse result seen at process boundaries.
type Class int

const (
	ClassSuccess Class = iota
	ClassStoppedEarly
	ClassFailure
)

func (c Class) String() string {
	switch c {
	case ClassSuccess:
		return "success"
	case ClassStoppedEarly:
		return "stopped_early"
	case ClassFailure:
		return "failure"
	}
	return fmt.Sprintf("Class(%d)", int(c))
}

// MarshalText encodes the class by name.
func (c Class) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// Outcome is the terminal result of a run.
type Outcome struct {
	Status Status `json:"status"`

	// X is the root when Converged, the best estimate when
	// MaxIterationsReached and the point where the derivative vanished
	// when DerivativeVanished.
	X float64 `json:"x"`

	// Iterations is the 1-based index of the final iteration.
	Iterations int `json:"iterations"`

	// Last is the final traced state. Zero when the derivative vanished
	// on the first iteration.
	Last State `json:"last"`
}

// Class maps the status to success, stopped-early or failure.
func (o Outcome) Class() Class {
	switch o.Status {
	case Converged:
		return ClassSuccess
	case MaxIterationsReached:
		return ClassStoppedEarly
	}
	return ClassFailure
}

// Message describes the outcome in one line.
func (o Outcome) Message() string {
	switch o.Status {
	case Converged:
		return "converged"
	case MaxIterationsReached:
		return "max_iter_reached"
	case DerivativeVanished:
		return fmt.Sprintf("Derivative ~ 0 at iteration %d (x=%.6g).", o.Iterations, o.X)
	}
	return o.Status.String()
}

// Summary is the one-line report printed for a finished run.
func (o Outcome) Summary(tol float64) string {
	switch o.Status {
	case Converged:
		return fmt.Sprintf("Root ≈ %.12g  (iterations: %d, tol: %g)", o.X, o.Iterations, tol)
	case MaxIterationsReached:
		return fmt.Sprintf("Stopped after %d iterations (max_iter reached). Best x ≈ %.12g", o.Iterations, o.X)
	}
	return "Failed: " + o.Message()
}

// ============================================================
// Iteration
// ============================================================

// Iterate runs damped Newton–Raphson on f from x0. df, when non-nil, is the
// analytic derivative; otherwise Config.Derivative selects numeric or dual
// differentiation of f.
//
// A parse or evaluation failure aborts the run and is returned as the
// error; errors.Is(err, expr.ErrEvaluation) identifies evaluation faults.
// DerivativeVanished and MaxIterationsReached are outcomes, not errors.
func Iterate(f, df *expr.Expression, x0 float64, opts ...Option) (Outcome, error) {
	if f == nil {
		return Outcome{}, fmt.Errorf("%w: nil expression", ErrInvalidOption)
	}
	cfg := DefaultConfig()
	if err := options.Apply(&cfg, opts...); err != nil {
		return Outcome{}, err
	}

	x := x0
	var last State
	for k := 1; k <= cfg.MaxIterations; k++ {
		fx, dfx, err := evalStep(f, df, x, &cfg)
		if err != nil {
			return Outcome{}, fmt.Errorf("iteration %d: %w", k, err)
		}
		if dfx == 0 || math.Abs(dfx) < VanishingDerivative {
			return Outcome{Status: DerivativeVanished, X: x, Iterations: k, Last: last}, nil
		}

		step := cfg.Alpha * fx / dfx
		xNew := x - step

		last = State{K: k, X: x, FX: fx, DFX: dfx, Step: step}
		if cfg.Tracer != nil {
			cfg.Tracer.Trace(last)
		}

		if math.Abs(xNew-x) <= cfg.Tolerance*math.Max(1.0, math.Abs(xNew)) {
			return Outcome{Status: Converged, X: xNew, Iterations: k, Last: last}, nil
		}
		x = xNew
	}
	return Outcome{Status: MaxIterationsReached, X: x, Iterations: cfg.MaxIterations, Last: last}, nil
}

// evalStep computes f(x) and f'(x). f is evaluated exactly once per call;
// the numeric derivative adds two more evaluations of f.
func evalStep(f, df *expr.Expression, x float64, cfg *Config) (fx, dfx float64, err error) {
	fx, err = f.Eval(x)
	if err != nil {
		return 0, 0, fmt.Errorf("f(x): %w", err)
	}
	switch {
	case df != nil:
		dfx, err = df.Eval(x)
		if err != nil {
			return 0, 0, fmt.Errorf("df(x): %w", err)
		}
	case cfg.Derivative == DerivativeDual:
		_, dfx, err = expr.DualDerivative(f, x)
		if err != nil {
			return 0, 0, fmt.Errorf("dual derivative: %w", err)
		}
	default:
		dfx, err = expr.NumericDerivative(f, x, cfg.Step)
		if err != nil {
			return 0, 0, fmt.Errorf("numeric derivative: %w", err)
		}
	}
	return fx, dfx, nil
}

// Solve parses fText (and dfText, when non-empty) and runs Iterate.
func Solve(fText, dfText string, x0 float64, opts ...Option) (Outcome, error) {
	f, err := expr.Parse(fText)
	if err != nil {
		return Outcome{}, fmt.Errorf("f: %w", err)
	}
	var df *expr.Expression
	if dfText != "" {
		df, err = expr.Parse(dfText)
		if err != nil {
			return Outcome{}, fmt.Errorf("df: %w", err)
		}
	}
	return Iterate(f, df, x0, opts...)
}
