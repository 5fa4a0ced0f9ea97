package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	newton "github.com/njchilds90/gonewton"
	"github.com/njchilds90/gonewton/expr"
	"github.com/njchilds90/gonewton/internal/config"
	"github.com/njchilds90/gonewton/internal/logging"
)

type solveFlags struct {
	f, df      string
	x0         float64
	tol        float64
	maxIter    int
	alpha      float64
	step       float64
	derivative string
	verbose    bool
}

func (s *solveFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&s.f, "f", "", `function of x, e.g. "x**3 - x - 2" or "cos(x) - x"`)
	fl.StringVar(&s.df, "df", "", `analytic derivative of f, e.g. "3*x**2 - 1"; numeric when omitted`)
	fl.Float64Var(&s.x0, "x0", 0, "initial guess")
	fl.Float64Var(&s.tol, "tol", newton.DefaultTolerance, "relative tolerance on x")
	fl.IntVar(&s.maxIter, "max-iter", newton.DefaultMaxIterations, "maximum iterations")
	fl.Float64Var(&s.alpha, "alpha", newton.DefaultAlpha, "damping, normally 0 < alpha <= 1")
	fl.Float64Var(&s.step, "step", expr.DefaultStep, "finite-difference step h")
	fl.StringVar(&s.derivative, "derivative", "numeric", "derivative when --df is omitted: numeric or dual")
	fl.BoolVarP(&s.verbose, "verbose", "v", false, "print iteration details")
	_ = cmd.MarkFlagRequired("f")
	_ = cmd.MarkFlagRequired("x0")
}

// solverConfig merges the config file with the flags the user set.
func (s *solveFlags) solverConfig(cmd *cobra.Command, file config.SolverConfig) config.SolverConfig {
	fl := cmd.Flags()
	if fl.Changed("tol") {
		file.Tolerance = s.tol
	}
	if fl.Changed("max-iter") {
		file.MaxIterations = s.maxIter
	}
	if fl.Changed("alpha") {
		file.Alpha = s.alpha
	}
	if fl.Changed("step") {
		file.Step = s.step
	}
	if fl.Changed("derivative") {
		file.Derivative = s.derivative
	}
	return file
}

func (s *solveFlags) run(cmd *cobra.Command, cfg *config.Config, logger *zap.Logger, stdout, stderr io.Writer) error {
	sc := s.solverConfig(cmd, cfg.Solver)
	if !(sc.Alpha > 0 && sc.Alpha <= 1) {
		logger.Warn("alpha outside (0, 1]; the iteration may stall or diverge", zap.Float64("alpha", sc.Alpha))
	}
	opts, err := sc.Options()
	if err != nil {
		return &exitError{code: exitFailed, err: err}
	}

	var tracers []newton.Tracer
	if s.verbose {
		tracers = append(tracers, newton.WriterTracer(stdout))
	}
	if logger.Core().Enabled(zap.DebugLevel) {
		tracers = append(tracers, logging.Tracer(logger))
	}
	if len(tracers) > 0 {
		opts = append(opts, newton.WithTrace(newton.TracerFunc(func(st newton.State) {
			for _, t := range tracers {
				t.Trace(st)
			}
		})))
	}

	f, df, err := parsePair(s.f, s.df)
	if err != nil {
		return evalFailure(stderr, err)
	}
	out, err := newton.Iterate(f, df, s.x0, opts...)
	if errors.Is(err, newton.ErrInvalidOption) {
		return &exitError{code: exitFailed, err: err}
	}
	if err != nil {
		return evalFailure(stderr, err)
	}
	logger.Debug("run finished",
		zap.Stringer("status", out.Status),
		zap.Float64("x", out.X),
		zap.Int("iterations", out.Iterations),
	)

	fmt.Fprintf(stdout, "\n%s\n", out.Summary(sc.Tolerance))
	switch out.Status {
	case newton.Converged:
		if r, err := f.Eval(out.X); err == nil {
			fmt.Fprintf(stdout, "Check: f(root) ≈ %.3e\n", r)
		}
		return nil
	case newton.MaxIterationsReached:
		if r, err := f.Eval(out.X); err == nil {
			fmt.Fprintf(stdout, "f(x) ≈ %.3e\n", r)
		}
		return &exitError{code: exitStopped}
	}
	return &exitError{code: exitFailed}
}

func parsePair(fText, dfText string) (f, df *expr.Expression, err error) {
	if f, err = expr.Parse(fText); err != nil {
		return nil, nil, fmt.Errorf("f: %w", err)
	}
	if dfText == "" {
		return f, nil, nil
	}
	if df, err = expr.Parse(dfText); err != nil {
		return nil, nil, fmt.Errorf("df: %w", err)
	}
	return f, df, nil
}

func evalFailure(stderr io.Writer, err error) error {
	fmt.Fprintf(stderr, "Error while evaluating expressions: %v\n", err)
	return &exitError{code: exitFailed}
}
