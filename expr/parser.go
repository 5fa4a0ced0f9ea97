package expr

import (
	"fmt"
	"strconv"
	"strings"
)

// maxDepth bounds nesting so hostile input cannot exhaust the stack.
const maxDepth = 200

// Expression is an immutable parsed formula over x.
type Expression struct {
	src  string
	root Node
}

// Parse parses src. Unknown names and misuse of whitelisted names are
// reported here, before any evaluation.
func Parse(src string) (*Expression, error) {
	if strings.TrimSpace(src) == "" {
		return nil, syntaxError(0, "", "empty expression")
	}
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	root, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, syntaxError(t.pos, t.describe(), "unexpected")
	}
	return &Expression{src: src, root: root}, nil
}

// MustParse is like Parse but panics on error. Meant for constant
// expressions in tests and examples.
func MustParse(src string) *Expression {
	e, err := Parse(src)
	if err != nil {
		panic("expr: " + err.Error())
	}
	return e
}

// Source returns the text the expression was parsed from.
func (e *Expression) Source() string { return e.src }

// String renders the tree fully parenthesised.
func (e *Expression) String() string { return e.root.String() }

// ============================================================
// Recursive descent
// ============================================================

type parser struct {
	toks  []token
	pos   int
	depth int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) isOp(ops ...string) bool {
	t := p.peek()
	if t.kind != tokOp {
		return false
	}
	for _, op := range ops {
		if t.text == op {
			return true
		}
	}
	return false
}

func (p *parser) enter(t token) error {
	p.depth++
	if p.depth > maxDepth {
		return syntaxError(t.pos, "", "expression nested too deeply")
	}
	return nil
}

func (p *parser) leave() { p.depth-- }

// expr := term (('+'|'-') term)*
func (p *parser) parseExpr() (Node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.isOp("+", "-") {
		op := p.next()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = &BinaryOp{Op: Op(op.text), Left: left, Right: right, offset: op.pos}
	}
	return left, nil
}

// term := unary (('*'|'/'|'%') unary)*
func (p *parser) parseTerm() (Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.isOp("*", "/", "%") {
		op := p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &BinaryOp{Op: Op(op.text), Left: left, Right: right, offset: op.pos}
	}
	return left, nil
}

// unary := ('+'|'-') unary | power
func (p *parser) parseUnary() (Node, error) {
	if p.isOp("+", "-") {
		op := p.next()
		if err := p.enter(op); err != nil {
			return nil, err
		}
		defer p.leave()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryOp{Op: Op(op.text), Operand: operand, offset: op.pos}, nil
	}
	return p.parsePower()
}

// power := primary ('**' unary)?
//
// The exponent is parsed as a unary so that 2**-1 is accepted and
// 2**3**2 groups to the right.
func (p *parser) parsePower() (Node, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if !p.isOp("**") {
		return base, nil
	}
	op := p.next()
	if err := p.enter(op); err != nil {
		return nil, err
	}
	defer p.leave()
	exp, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return &BinaryOp{Op: OpPow, Left: base, Right: exp, offset: op.pos}, nil
}

// primary := number | name | name '(' args ')' | '(' expr ')'
func (p *parser) parsePrimary() (Node, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		return &Literal{Value: t.num, offset: t.pos}, nil
	case tokIdent:
		if p.peek().kind == tokLParen {
			return p.parseCall(t)
		}
		return p.resolveName(t)
	case tokLParen:
		if err := p.enter(t); err != nil {
			return nil, err
		}
		defer p.leave()
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if c := p.next(); c.kind != tokRParen {
			return nil, syntaxError(c.pos, c.describe(), "expected ')' but found")
		}
		return inner, nil
	}
	return nil, syntaxError(t.pos, t.describe(), "unexpected")
}

func (p *parser) resolveName(t token) (Node, error) {
	if t.text == VariableName {
		return &Variable{offset: t.pos}, nil
	}
	if v, ok := constants[t.text]; ok {
		return &Literal{Value: v, Name: t.text, offset: t.pos}, nil
	}
	if _, ok := functions[t.text]; ok {
		return nil, syntaxError(t.pos, t.text, "function used without call")
	}
	return nil, &Error{Kind: KindUnknownName, Pos: t.pos, Construct: t.text, Msg: "unknown identifier"}
}

func (p *parser) parseCall(name token) (Node, error) {
	fn, ok := functions[name.text]
	if !ok {
		if name.text == VariableName {
			return nil, syntaxError(name.pos, name.text, "variable is not callable")
		}
		if _, isConst := constants[name.text]; isConst {
			return nil, syntaxError(name.pos, name.text, "constant is not callable")
		}
		return nil, &Error{Kind: KindUnknownName, Pos: name.pos, Construct: name.text, Msg: "unknown function"}
	}
	if err := p.enter(name); err != nil {
		return nil, err
	}
	defer p.leave()

	p.next() // '('
	var args []Node
	if p.peek().kind != tokRParen {
		for {
			arg, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.peek().kind != tokComma {
				break
			}
			p.next()
		}
	}
	if c := p.next(); c.kind != tokRParen {
		return nil, syntaxError(c.pos, c.describe(), "expected ')' but found")
	}
	if len(args) < fn.minArgs || len(args) > fn.maxArgs {
		return nil, &Error{
			Kind:      KindArity,
			Pos:       name.pos,
			Construct: name.text,
			Msg:       arityMessage(fn, len(args)),
		}
	}
	return &Call{Name: name.text, Args: args, fn: fn, offset: name.pos}, nil
}

func arityMessage(fn *function, got int) string {
	want := strconv.Itoa(fn.minArgs)
	if fn.maxArgs != fn.minArgs {
		want += " or " + strconv.Itoa(fn.maxArgs)
	}
	return fmt.Sprintf("wrong number of arguments (want %s, got %d) for", want, got)
}
