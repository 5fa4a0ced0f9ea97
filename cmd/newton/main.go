// Command newton finds a root of f(x) with damped Newton–Raphson.
//
// Usage:
//
//	newton --f "x**3 - x - 2" --x0 1.5 [--df "3*x**2 - 1"] [--verbose]
//	newton eval --f "cos(x) - x" --x 1 --derivative
//	newton config init [path]
//
// Exit status: 0 converged, 1 iteration cap reached, 2 derivative vanished
// or the expressions could not be parsed or evaluated.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/njchilds90/gonewton/internal/config"
	"github.com/njchilds90/gonewton/internal/logging"
)

const (
	exitConverged = 0
	exitStopped   = 1
	exitFailed    = 2
)

// exitError carries a process exit status. err, when set, is printed to
// stderr by run.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return exitConverged
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintln(stderr, "Error:", ee.err)
		}
		return ee.code
	}
	fmt.Fprintln(stderr, "Error:", err)
	return exitFailed
}

type globalFlags struct {
	configPath string
	logLevel   string
}

// setup loads the configuration and builds a logger writing to stderr.
func (g *globalFlags) setup(cmd *cobra.Command, stderr io.Writer) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, nil, err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Logging.Level = g.logLevel
	}
	logger, err := logging.NewWriter(cfg.Logging, stderr)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	g := &globalFlags{}
	s := &solveFlags{}

	cmd := &cobra.Command{
		Use:   "newton",
		Short: "Newton–Raphson root finder with optional analytic derivative",
		Long: `Finds a root of f(x) starting from x0.

Expressions use x as the only variable, the operators + - * / % ** (^ is an
alias for **), the constants pi, e, tau, inf, nan and a fixed set of math
functions such as sin, cos, exp, log, sqrt and pow. Nothing else is evaluated.

When --df is omitted the derivative is estimated with a centered difference
(--derivative numeric, step --step) or computed exactly with dual numbers
(--derivative dual).`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.setup(cmd, stderr)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			return s.run(cmd, cfg, logger, stdout, stderr)
		},
	}

	cmd.PersistentFlags().StringVar(&g.configPath, "config", "", "path to YAML config")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "info", "log level: debug, info, warn, error")

	s.register(cmd)
	cmd.AddCommand(newEvalCmd(g, stdout, stderr), newConfigCmd(stdout))
	return cmd
}
