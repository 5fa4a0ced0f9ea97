// Package expr parses and evaluates scalar expressions over a single free
// variable x.
//
// The grammar is closed: numeric literals, the variable x, the operators
// + - * / % and ** (^ is accepted as a synonym), parentheses, and a fixed
// whitelist of math functions and constants (sin, cos, tan, exp, log, sqrt,
// pow, abs, pi, e, ...). Any other name is rejected by Parse before a single
// arithmetic operation runs.
//
// An Expression is parsed once into a tree of Literal, Variable, UnaryOp,
// BinaryOp and Call nodes and evaluated by walking that tree. Evaluation is
// pure: it touches no global state and performs no I/O, so one Expression may
// be evaluated from many goroutines at once.
//
//	e, err := expr.Parse("x**3 - x - 2")
//	if err != nil {
//	    return err
//	}
//	y, err := e.Eval(1.5)
//
// Derivatives are available as a centered finite difference
// (NumericDerivative) or exactly, via forward-mode dual numbers
// (DualDerivative).
package expr
