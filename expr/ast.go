package expr

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/num/dual"
)

// ============================================================
// Node: closed set of syntax tree kinds
// ============================================================

// Node is a syntax tree node. The set of implementations is closed:
// *Literal, *Variable, *UnaryOp, *BinaryOp and *Call.
type Node interface {
	String() string
	Pos() int
	eval(x float64) (float64, error)
	evalDual(x dual.Number) (dual.Number, error)
	toJSON() map[string]interface{}
}

// Op is a unary or binary operator.
type Op string

const (
	OpAdd Op = "+"
	OpSub Op = "-"
	OpMul Op = "*"
	OpDiv Op = "/"
	OpMod Op = "%"
	OpPow Op = "**"
)

// ============================================================
// Literal: numeric literal or named constant
// ============================================================

// Literal is a number. Name is set when it came from a constant such as pi.
type Literal struct {
	Value  float64
	Name   string
	offset int
}

func (l *Literal) Pos() int { return l.offset }

func (l *Literal) String() string {
	if l.Name != "" {
		return l.Name
	}
	return strconv.FormatFloat(l.Value, 'g', -1, 64)
}

func (l *Literal) eval(float64) (float64, error) { return l.Value, nil }

func (l *Literal) evalDual(dual.Number) (dual.Number, error) {
	return dual.Number{Real: l.Value}, nil
}

func (l *Literal) toJSON() map[string]interface{} {
	m := map[string]interface{}{"type": "literal", "value": l.String()}
	if l.Name != "" {
		m["name"] = l.Name
	}
	return m
}

// ============================================================
// Variable: the free variable x
// ============================================================

// Variable is the free variable.
type Variable struct {
	offset int
}

func (v *Variable) Pos() int       { return v.offset }
func (v *Variable) String() string { return VariableName }

func (v *Variable) eval(x float64) (float64, error)             { return x, nil }
func (v *Variable) evalDual(x dual.Number) (dual.Number, error) { return x, nil }

func (v *Variable) toJSON() map[string]interface{} {
	return map[string]interface{}{"type": "variable", "name": VariableName}
}

// ============================================================
// UnaryOp: prefix + and -
// ============================================================

// UnaryOp applies a prefix sign to Operand.
type UnaryOp struct {
	Op      Op
	Operand Node
	offset  int
}

func (u *UnaryOp) Pos() int       { return u.offset }
func (u *UnaryOp) String() string { return string(u.Op) + u.Operand.String() }

func (u *UnaryOp) eval(x float64) (float64, error) {
	v, err := u.Operand.eval(x)
	if err != nil {
		return 0, err
	}
	if u.Op == OpSub {
		return -v, nil
	}
	return v, nil
}

func (u *UnaryOp) evalDual(x dual.Number) (dual.Number, error) {
	v, err := u.Operand.evalDual(x)
	if err != nil {
		return dual.Number{}, err
	}
	if u.Op == OpSub {
		return dual.Scale(-1, v), nil
	}
	return v, nil
}

func (u *UnaryOp) toJSON() map[string]interface{} {
	return map[string]interface{}{"type": "unary", "op": string(u.Op), "operand": u.Operand.toJSON()}
}

// ============================================================
// BinaryOp: + - * / % **
// ============================================================

// BinaryOp combines Left and Right with an arithmetic operator.
type BinaryOp struct {
	Op          Op
	Left, Right Node
	offset      int
}

func (b *BinaryOp) Pos() int { return b.offset }

func (b *BinaryOp) String() string {
	return "(" + b.Left.String() + " " + string(b.Op) + " " + b.Right.String() + ")"
}

// eval follows IEEE semantics for + - and *; division, modulo and power
// fault on the inputs the host math library treats as errors.
func (b *BinaryOp) eval(x float64) (float64, error) {
	l, err := b.Left.eval(x)
	if err != nil {
		return 0, err
	}
	r, err := b.Right.eval(x)
	if err != nil {
		return 0, err
	}
	switch b.Op {
	case OpAdd:
		return l + r, nil
	case OpSub:
		return l - r, nil
	case OpMul:
		return l * r, nil
	case OpDiv:
		if r == 0 {
			return 0, domainError(b, x, "division by zero")
		}
		return l / r, nil
	case OpMod:
		if r == 0 {
			return 0, domainError(b, x, "modulo by zero")
		}
		return floorMod(l, r), nil
	case OpPow:
		if l == 0 && r < 0 {
			return 0, domainError(b, x, "zero raised to a negative power")
		}
		v := math.Pow(l, r)
		if err := checkResult(b, x, v, l, r); err != nil {
			return 0, err
		}
		return v, nil
	}
	return 0, domainError(b, x, "unknown operator "+string(b.Op))
}

func (b *BinaryOp) evalDual(x dual.Number) (dual.Number, error) {
	l, err := b.Left.evalDual(x)
	if err != nil {
		return dual.Number{}, err
	}
	r, err := b.Right.evalDual(x)
	if err != nil {
		return dual.Number{}, err
	}
	var v dual.Number
	switch b.Op {
	case OpAdd:
		v = dual.Add(l, r)
	case OpSub:
		v = dual.Sub(l, r)
	case OpMul:
		v = dual.Mul(l, r)
	case OpDiv:
		if r.Real == 0 {
			return dual.Number{}, domainError(b, x.Real, "division by zero")
		}
		v = dual.Mul(l, dual.Inv(r))
	case OpMod:
		if r.Real == 0 {
			return dual.Number{}, domainError(b, x.Real, "modulo by zero")
		}
		q := math.Floor(l.Real / r.Real)
		v = dual.Number{Real: floorMod(l.Real, r.Real), Emag: l.Emag - q*r.Emag}
	case OpPow:
		if l.Real == 0 && r.Real < 0 {
			return dual.Number{}, domainError(b, x.Real, "zero raised to a negative power")
		}
		v = powDual(l, r)
		if err := checkResult(b, x.Real, v.Real, l.Real, r.Real); err != nil {
			return dual.Number{}, err
		}
	default:
		return dual.Number{}, domainError(b, x.Real, "unknown operator "+string(b.Op))
	}
	if err := checkDual(b, x.Real, v, l, r); err != nil {
		return dual.Number{}, err
	}
	return v, nil
}

func (b *BinaryOp) toJSON() map[string]interface{} {
	return map[string]interface{}{"type": "binary", "op": string(b.Op), "left": b.Left.toJSON(), "right": b.Right.toJSON()}
}

// ============================================================
// Call: whitelisted function application
// ============================================================

// Call applies a whitelisted function. The function is resolved and its
// arity checked at parse time.
type Call struct {
	Name   string
	Args   []Node
	fn     *function
	offset int
}

func (c *Call) Pos() int { return c.offset }

func (c *Call) String() string {
	parts := make([]string, len(c.Args))
	for i, a := range c.Args {
		parts[i] = a.String()
	}
	return c.Name + "(" + strings.Join(parts, ", ") + ")"
}

func (c *Call) eval(x float64) (float64, error) {
	args := make([]float64, len(c.Args))
	for i, a := range c.Args {
		v, err := a.eval(x)
		if err != nil {
			return 0, err
		}
		args[i] = v
	}
	if c.fn.guard != nil {
		if msg := c.fn.guard(args); msg != "" {
			return 0, domainError(c, x, msg)
		}
	}
	v := c.fn.eval(args)
	if err := checkResult(c, x, v, args...); err != nil {
		return 0, err
	}
	return v, nil
}

func (c *Call) evalDual(x dual.Number) (dual.Number, error) {
	args := make([]dual.Number, len(c.Args))
	reals := make([]float64, len(c.Args))
	for i, a := range c.Args {
		v, err := a.evalDual(x)
		if err != nil {
			return dual.Number{}, err
		}
		args[i] = v
		reals[i] = v.Real
	}
	if c.fn.guard != nil {
		if msg := c.fn.guard(reals); msg != "" {
			return dual.Number{}, domainError(c, x.Real, msg)
		}
	}
	v := c.fn.dual(args)
	if err := checkResult(c, x.Real, v.Real, reals...); err != nil {
		return dual.Number{}, err
	}
	if err := checkDual(c, x.Real, v, args...); err != nil {
		return dual.Number{}, err
	}
	return v, nil
}

func (c *Call) toJSON() map[string]interface{} {
	args := make([]interface{}, len(c.Args))
	for i, a := range c.Args {
		args[i] = a.toJSON()
	}
	return map[string]interface{}{"type": "call", "name": c.Name, "args": args}
}

// ============================================================
// Shared numeric helpers
// ============================================================

// checkResult turns a NaN produced from non-NaN inputs into a domain error
// and an infinity produced from finite inputs into a range error.
func checkResult(n Node, x, v float64, in ...float64) error {
	if math.IsNaN(v) {
		for _, a := range in {
			if math.IsNaN(a) {
				return nil
			}
		}
		return domainError(n, x, "math domain error")
	}
	if math.IsInf(v, 0) {
		for _, a := range in {
			if math.IsInf(a, 0) || math.IsNaN(a) {
				return nil
			}
		}
		return domainError(n, x, "math range error")
	}
	return nil
}

// floorMod returns a mod b with the sign of b.
func floorMod(a, b float64) float64 {
	r := math.Mod(a, b)
	if r != 0 && (r < 0) != (b < 0) {
		r += b
	}
	return r
}

// checkDual rejects a derivative part that is infinite or NaN while the
// value and every input are finite, as for sqrt(x) at 0.
func checkDual(n Node, x float64, v dual.Number, in ...dual.Number) error {
	if !finite(v.Real) || finite(v.Emag) {
		return nil
	}
	for _, a := range in {
		if !finite(a.Real) || !finite(a.Emag) {
			return nil
		}
	}
	return domainError(n, x, "derivative undefined")
}

func finite(f float64) bool { return !math.IsInf(f, 0) && !math.IsNaN(f) }

// powDual raises a to b. A constant exponent avoids taking the log of a
// negative base, so (-2)**3 keeps a finite derivative. The power rule is
// applied directly because dual.PowReal clamps a zero base to 1e-15.
func powDual(a, b dual.Number) dual.Number {
	if b.Emag != 0 {
		return dual.Pow(a, b)
	}
	p := b.Real
	if p == 0 {
		return dual.Number{Real: 1}
	}
	v := dual.Number{Real: math.Pow(a.Real, p)}
	if a.Emag != 0 {
		v.Emag = a.Emag * p * math.Pow(a.Real, p-1)
	}
	return v
}

// ============================================================
// JSON
// ============================================================

// MarshalJSON encodes the syntax tree.
func (e *Expression) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"source": e.src,
		"tree":   e.root.toJSON(),
	})
}
