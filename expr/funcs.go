package expr

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/num/dual"
)

// VariableName is the only free variable an expression may reference.
const VariableName = "x"

var constants = map[string]float64{
	"pi":  math.Pi,
	"e":   math.E,
	"tau": 2 * math.Pi,
	"inf": math.Inf(1),
	"nan": math.NaN(),
}

// function is one entry of the call whitelist. guard returns a non-empty
// message when the arguments are outside the function's domain in a way the
// NaN/Inf check would miss (or would word less helpfully).
type function struct {
	minArgs, maxArgs int
	eval             func(a []float64) float64
	dual             func(a []dual.Number) dual.Number
	guard            func(a []float64) string
}

func unary(f func(float64) float64, d func(dual.Number) dual.Number) *function {
	return &function{
		minArgs: 1, maxArgs: 1,
		eval: func(a []float64) float64 { return f(a[0]) },
		dual: func(a []dual.Number) dual.Number { return d(a[0]) },
	}
}

// flat is a piecewise constant function: derivative zero where defined.
func flat(f func(float64) float64) *function {
	return unary(f, func(d dual.Number) dual.Number { return dual.Number{Real: f(d.Real)} })
}

func positiveGuard(a []float64) string {
	if a[0] <= 0 && !math.IsNaN(a[0]) {
		return "math domain error"
	}
	return ""
}

var functions = map[string]*function{
	"sin":   unary(math.Sin, dual.Sin),
	"cos":   unary(math.Cos, dual.Cos),
	"tan":   unary(math.Tan, dual.Tan),
	"asin":  unary(math.Asin, dual.Asin),
	"acos":  unary(math.Acos, dual.Acos),
	"atan":  unary(math.Atan, dual.Atan),
	"sinh":  unary(math.Sinh, dual.Sinh),
	"cosh":  unary(math.Cosh, dual.Cosh),
	"tanh":  unary(math.Tanh, dual.Tanh),
	"asinh": unary(math.Asinh, dual.Asinh),
	"acosh": unary(math.Acosh, dual.Acosh),
	"atanh": unary(math.Atanh, dual.Atanh),
	"exp":   unary(math.Exp, dual.Exp),
	"expm1": unary(math.Expm1, func(d dual.Number) dual.Number {
		return dual.Number{Real: math.Expm1(d.Real), Emag: math.Exp(d.Real) * d.Emag}
	}),
	"log": {
		minArgs: 1, maxArgs: 2,
		eval: func(a []float64) float64 {
			if len(a) == 2 {
				return math.Log(a[0]) / math.Log(a[1])
			}
			return math.Log(a[0])
		},
		dual: func(a []dual.Number) dual.Number {
			if len(a) == 2 {
				return dual.Mul(dual.Log(a[0]), dual.Inv(dual.Log(a[1])))
			}
			return dual.Log(a[0])
		},
		guard: func(a []float64) string {
			if msg := positiveGuard(a); msg != "" {
				return msg
			}
			if len(a) == 2 {
				if a[1] <= 0 {
					return "math domain error"
				}
				if a[1] == 1 {
					return "logarithm base 1"
				}
			}
			return ""
		},
	},
	"log10": {
		minArgs: 1, maxArgs: 1,
		eval:  func(a []float64) float64 { return math.Log10(a[0]) },
		dual:  func(a []dual.Number) dual.Number { return dual.Scale(1/math.Ln10, dual.Log(a[0])) },
		guard: positiveGuard,
	},
	"log2": {
		minArgs: 1, maxArgs: 1,
		eval:  func(a []float64) float64 { return math.Log2(a[0]) },
		dual:  func(a []dual.Number) dual.Number { return dual.Scale(1/math.Ln2, dual.Log(a[0])) },
		guard: positiveGuard,
	},
	"log1p": unary(math.Log1p, func(d dual.Number) dual.Number {
		return dual.Number{Real: math.Log1p(d.Real), Emag: d.Emag / (1 + d.Real)}
	}),
	"sqrt": {
		minArgs: 1, maxArgs: 1,
		eval: func(a []float64) float64 { return math.Sqrt(a[0]) },
		dual: func(a []dual.Number) dual.Number { return dual.Sqrt(a[0]) },
		guard: func(a []float64) string {
			if a[0] < 0 {
				return "math domain error"
			}
			return ""
		},
	},
	"cbrt": unary(math.Cbrt, func(d dual.Number) dual.Number {
		r := math.Cbrt(d.Real)
		return dual.Number{Real: r, Emag: d.Emag / (3 * r * r)}
	}),
	"abs":   unary(math.Abs, dual.Abs),
	"fabs":  unary(math.Abs, dual.Abs),
	"floor": flat(math.Floor),
	"ceil":  flat(math.Ceil),
	"trunc": flat(math.Trunc),
	"pow": {
		minArgs: 2, maxArgs: 2,
		eval: func(a []float64) float64 { return math.Pow(a[0], a[1]) },
		dual: func(a []dual.Number) dual.Number { return powDual(a[0], a[1]) },
		guard: func(a []float64) string {
			if a[0] == 0 && a[1] < 0 {
				return "zero raised to a negative power"
			}
			return ""
		},
	},
	"atan2": {
		minArgs: 2, maxArgs: 2,
		eval: func(a []float64) float64 { return math.Atan2(a[0], a[1]) },
		dual: func(a []dual.Number) dual.Number {
			y, x := a[0], a[1]
			den := x.Real*x.Real + y.Real*y.Real
			return dual.Number{
				Real: math.Atan2(y.Real, x.Real),
				Emag: (x.Real*y.Emag - y.Real*x.Emag) / den,
			}
		},
	},
	"hypot": {
		minArgs: 2, maxArgs: 2,
		eval: func(a []float64) float64 { return math.Hypot(a[0], a[1]) },
		dual: func(a []dual.Number) dual.Number {
			h := math.Hypot(a[0].Real, a[1].Real)
			return dual.Number{Real: h, Emag: (a[0].Real*a[0].Emag + a[1].Real*a[1].Emag) / h}
		},
	},
	"copysign": {
		minArgs: 2, maxArgs: 2,
		eval: func(a []float64) float64 { return math.Copysign(a[0], a[1]) },
		dual: func(a []dual.Number) dual.Number {
			v := math.Copysign(a[0].Real, a[1].Real)
			if math.Signbit(v) != math.Signbit(a[0].Real) {
				return dual.Number{Real: v, Emag: -a[0].Emag}
			}
			return dual.Number{Real: v, Emag: a[0].Emag}
		},
	},
	"fmod": {
		minArgs: 2, maxArgs: 2,
		eval: func(a []float64) float64 { return math.Mod(a[0], a[1]) },
		dual: func(a []dual.Number) dual.Number {
			q := math.Trunc(a[0].Real / a[1].Real)
			return dual.Number{Real: math.Mod(a[0].Real, a[1].Real), Emag: a[0].Emag - q*a[1].Emag}
		},
		guard: func(a []float64) string {
			if a[1] == 0 {
				return "math domain error"
			}
			return ""
		},
	},
}

// Functions returns the sorted names of the whitelisted functions.
func Functions() []string {
	names := make([]string, 0, len(functions))
	for name := range functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Constants returns the sorted names of the predefined constants.
func Constants() []string {
	names := make([]string, 0, len(constants))
	for name := range constants {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
