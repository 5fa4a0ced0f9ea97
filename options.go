package newton

import (
	"errors"
	"fmt"
	"math"

	"github.com/njchilds90/gonewton/expr"
	"github.com/njchilds90/gonewton/internal/options"
)

// Defaults applied by Iterate when no option overrides them.
const (
	DefaultTolerance     = 1e-8
	DefaultMaxIterations = 100
	DefaultAlpha         = 1.0

	// VanishingDerivative is the |f'(x)| threshold below which a Newton
	// step is undefined.
	VanishingDerivative = 1e-14
)

// ErrInvalidOption is returned when an option is given a value the
// iteration cannot run with.
var ErrInvalidOption = errors.New("newton: invalid option")

// DerivativeMode selects how f'(x) is obtained when no analytic derivative
// expression is supplied.
type DerivativeMode int

const (
	// DerivativeNumeric uses the centered finite difference.
	DerivativeNumeric DerivativeMode = iota
	// DerivativeDual uses forward-mode dual numbers (exact to rounding).
	DerivativeDual
)

func (m DerivativeMode) String() string {
	switch m {
	case DerivativeNumeric:
		return "numeric"
	case DerivativeDual:
		return "dual"
	}
	return fmt.Sprintf("DerivativeMode(%d)", int(m))
}

// ParseDerivativeMode maps "numeric" or "dual" to a DerivativeMode.
func ParseDerivativeMode(s string) (DerivativeMode, error) {
	switch s {
	case "", "numeric":
		return DerivativeNumeric, nil
	case "dual":
		return DerivativeDual, nil
	}
	return 0, fmt.Errorf("%w: unknown derivative mode %q", ErrInvalidOption, s)
}

// Config holds the iteration parameters. Start from DefaultConfig.
type Config struct {
	// Tolerance is the relative step tolerance. Must be finite and >= 0;
	// zero only accepts an exact fixed point.
	Tolerance float64

	// MaxIterations bounds the number of Newton steps. Must be >= 1.
	MaxIterations int

	// Alpha damps each step. 1.0 is plain Newton. Not validated: values
	// outside (0, 1] are legal and simply change convergence.
	Alpha float64

	// Step is the finite-difference half-width h. Non-positive selects
	// expr.DefaultStep.
	Step float64

	// Derivative selects the fallback derivative when no df is given.
	Derivative DerivativeMode

	// Tracer receives one State per iteration. Nil disables tracing.
	Tracer Tracer
}

// DefaultConfig returns tol 1e-8, 100 iterations, undamped steps and the
// numeric derivative.
func DefaultConfig() Config {
	return Config{
		Tolerance:     DefaultTolerance,
		MaxIterations: DefaultMaxIterations,
		Alpha:         DefaultAlpha,
		Step:          expr.DefaultStep,
		Derivative:    DerivativeNumeric,
	}
}

// Option configures an iteration.
type Option = options.Option[*Config]

// WithTolerance sets the relative tolerance.
func WithTolerance(tol float64) Option {
	return options.New(func(c *Config) error {
		if err := checkTolerance(tol); err != nil {
			return err
		}
		c.Tolerance = tol
		return nil
	})
}

// WithMaxIterations sets the iteration cap.
func WithMaxIterations(n int) Option {
	return options.New(func(c *Config) error {
		if n < 1 {
			return fmt.Errorf("%w: max iterations must be >= 1, got %d", ErrInvalidOption, n)
		}
		c.MaxIterations = n
		return nil
	})
}

// WithAlpha sets the damping factor. Any value is accepted.
func WithAlpha(alpha float64) Option {
	return options.NoError(func(c *Config) {
		c.Alpha = alpha
	})
}

// WithStep sets the finite-difference half-width.
func WithStep(h float64) Option {
	return options.NoError(func(c *Config) {
		c.Step = h
	})
}

// WithDerivative selects the fallback derivative mode.
func WithDerivative(mode DerivativeMode) Option {
	return options.New(func(c *Config) error {
		if mode != DerivativeNumeric && mode != DerivativeDual {
			return fmt.Errorf("%w: unknown derivative mode %d", ErrInvalidOption, int(mode))
		}
		c.Derivative = mode
		return nil
	})
}

// WithTrace installs a per-iteration trace sink.
func WithTrace(t Tracer) Option {
	return options.NoError(func(c *Config) {
		c.Tracer = t
	})
}

// WithConfig replaces the whole configuration. Later options still apply
// on top of it.
func WithConfig(cfg Config) Option {
	return options.New(func(c *Config) error {
		if err := checkTolerance(cfg.Tolerance); err != nil {
			return err
		}
		if cfg.MaxIterations < 1 {
			return fmt.Errorf("%w: max iterations must be >= 1, got %d", ErrInvalidOption, cfg.MaxIterations)
		}
		*c = cfg
		return nil
	})
}

func checkTolerance(tol float64) error {
	if !(tol >= 0) || math.IsInf(tol, 0) {
		return fmt.Errorf("%w: tolerance must be finite and non-negative, got %g", ErrInvalidOption, tol)
	}
	return nil
}
