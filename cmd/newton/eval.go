package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/njchilds90/gonewton/expr"
)

func newEvalCmd(g *globalFlags, stdout, stderr io.Writer) *cobra.Command {
	var (
		src        string
		x          float64
		derivative bool
		step       float64
	)
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Evaluate f at one point",
		Example: `  newton eval --f "x**3 - x - 2" --x 1.5
  newton eval --f "cos(x) - x" --x 1 --derivative`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, logger, err := g.setup(cmd, stderr)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			e, err := expr.Parse(src)
			if err != nil {
				return evalFailure(stderr, err)
			}
			logger.Debug("evaluating", zap.Stringer("expr", e), zap.Float64("x", x))

			v, err := e.Eval(x)
			if err != nil {
				return evalFailure(stderr, err)
			}
			fmt.Fprintf(stdout, "f(x) = %.12g\n", v)
			if !derivative {
				return nil
			}

			num, err := expr.NumericDerivative(e, x, step)
			if err != nil {
				return evalFailure(stderr, err)
			}
			_, exact, err := expr.DualDerivative(e, x)
			if err != nil {
				return evalFailure(stderr, err)
			}
			fmt.Fprintf(stdout, "f'(x) ≈ %.12g (numeric, h=%g)\n", num, step)
			fmt.Fprintf(stdout, "f'(x) = %.12g (dual)\n", exact)
			return nil
		},
	}
	cmd.Flags().StringVar(&src, "f", "", "function of x")
	cmd.Flags().Float64Var(&x, "x", 0, "point to evaluate at")
	cmd.Flags().BoolVar(&derivative, "derivative", false, "also print f'(x)")
	cmd.Flags().Float64Var(&step, "step", expr.DefaultStep, "finite-difference step h")
	_ = cmd.MarkFlagRequired("f")
	_ = cmd.MarkFlagRequired("x")
	return cmd
}
