package expr

import (
	"errors"
	"fmt"
)

// Sentinel errors matched with errors.Is. Every *Error matches exactly one
// of them.
var (
	// ErrParse reports malformed syntax or a whitelisted function called
	// with the wrong number of arguments.
	ErrParse = errors.New("parse error")

	// ErrEvaluation reports a disallowed identifier or a math domain fault
	// hit while evaluating.
	ErrEvaluation = errors.New("evaluation error")
)

// Kind classifies an *Error.
type Kind int

const (
	KindSyntax Kind = iota + 1
	KindArity
	KindUnknownName
	KindDomain
)

func (k Kind) String() string {
	switch k {
	case KindSyntax:
		return "syntax"
	case KindArity:
		return "arity"
	case KindUnknownName:
		return "unknown name"
	case KindDomain:
		return "domain"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is returned by Parse and by evaluation. Construct holds the source
// fragment (or rendered node) the error is about; Pos is its byte offset in
// the source, or -1 when unknown.
type Error struct {
	Kind      Kind
	Pos       int
	Construct string
	X         float64 // value of x for KindDomain
	Msg       string
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindDomain:
		return fmt.Sprintf("evaluation error: %s in %s at x=%g", e.Msg, e.Construct, e.X)
	case KindUnknownName:
		return fmt.Sprintf("evaluation error: %s %q at offset %d", e.Msg, e.Construct, e.Pos)
	}
	if e.Construct == "" {
		return fmt.Sprintf("parse error: %s at offset %d", e.Msg, e.Pos)
	}
	return fmt.Sprintf("parse error: %s %q at offset %d", e.Msg, e.Construct, e.Pos)
}

// Is reports whether target is the sentinel matching e.Kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrParse:
		return e.Kind == KindSyntax || e.Kind == KindArity
	case ErrEvaluation:
		return e.Kind == KindUnknownName || e.Kind == KindDomain
	}
	return false
}

func syntaxError(pos int, construct, format string, args ...interface{}) *Error {
	return &Error{Kind: KindSyntax, Pos: pos, Construct: construct, Msg: fmt.Sprintf(format, args...)}
}

func domainError(n Node, x float64, msg string) *Error {
	return &Error{Kind: KindDomain, Pos: n.Pos(), Construct: n.String(), X: x, Msg: msg}
}
