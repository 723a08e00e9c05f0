// Package value provides the universal value algebra shared by every stage
// of the interpreter: the reader produces values, the macro expander and CPS
// transformer rewrite them, and the evaluator reduces them.
package value

import (
	"fmt"
	"math/big"
	"strings"
)

// FloatPrecision is the significand width of Float values, matching an
// IEEE-754 double.
const FloatPrecision = 53

// Value is a node in the expression tree. Values are shared by reference and
// never mutated; rewriting stages build fresh nodes on top of shared leaves.
type Value interface {
	// String renders the value in its display form.
	String() string
	// Equal reports structural equality with another value.
	Equal(other Value) bool
}

// Nil is the empty list and unit value.
type Nil struct{}

// NilVal is the canonical Nil instance.
var NilVal = Nil{}

// Bool is a boolean value.
type Bool bool

// Integer is an arbitrary-precision signed integer.
type Integer struct {
	Val *big.Int
}

// Float is a multi-precision floating point value at 53-bit precision.
type Float struct {
	Val *big.Float
}

// String is UTF-8 text, stored including any surrounding quote characters
// from the source.
type String string

// Name is an identifier. After the formatting pass every user identifier is
// prefixed with "&".
type Name string

// Cons is an ordered pair, the universal list shape.
type Cons struct {
	Car Value
	Cdr Value
}

// Lambda is a procedure: a formal-parameter component (a cons list of Names,
// a single Name, or Nil) and a CPS-converted body. Lambdas are produced by
// the CPS transformer and are never cons pairs at runtime.
type Lambda struct {
	Args Value
	Body Value

	// DisplayName is filled in by def for nicer printing. It has no
	// semantic meaning.
	DisplayName string
}

// Quote wraps a value, preventing its evaluation.
type Quote struct {
	Inner Value
}

// NewInt builds an Integer from a machine integer.
func NewInt(i int64) Integer {
	return Integer{Val: big.NewInt(i)}
}

// NewFloat builds a Float from a machine float.
func NewFloat(f float64) Float {
	return Float{Val: big.NewFloat(f).SetPrec(FloatPrecision)}
}

// List builds a proper cons list from the given elements.
func List(xs ...Value) Value {
	var list Value = NilVal
	for i := len(xs) - 1; i >= 0; i-- {
		list = &Cons{Car: xs[i], Cdr: list}
	}
	return list
}

// ToList converts a proper cons list to a slice. Nil converts to an empty
// slice. The second return is false when v is not a proper list.
func ToList(v Value) ([]Value, bool) {
	if _, isNil := v.(Nil); isNil {
		return nil, true
	}
	var elems []Value
	cursor := v
	for {
		cons, ok := cursor.(*Cons)
		if !ok {
			break
		}
		elems = append(elems, cons.Car)
		cursor = cons.Cdr
	}
	if len(elems) == 0 {
		return nil, false
	}
	if _, isNil := cursor.(Nil); !isNil {
		return nil, false
	}
	return elems, true
}

// NameOf returns the identifier text when v is a Name, and "" otherwise.
func NameOf(v Value) string {
	if n, ok := v.(Name); ok {
		return string(n)
	}
	return ""
}

// IsAtom reports whether v is not a cons pair.
func IsAtom(v Value) bool {
	_, isCons := v.(*Cons)
	return !isCons
}

// Substitute returns expr with every node identical to old replaced by new.
// Identity means the same shared node, not structural equality; the
// conditional hoisting pass relies on this to relocate one specific
// sub-expression.
func Substitute(expr, old, new Value) Value {
	if expr == old {
		return new
	}
	if cons, ok := expr.(*Cons); ok {
		return &Cons{
			Car: Substitute(cons.Car, old, new),
			Cdr: Substitute(cons.Cdr, old, new),
		}
	}
	return expr
}

func (Nil) String() string { return "nil" }

func (b Bool) String() string {
	if b {
		return "true"
	}
	return "false"
}

func (i Integer) String() string { return i.Val.String() }

func (f Float) String() string { return f.Val.Text('g', -1) }

func (s String) String() string { return string(s) }

func (n Name) String() string { return string(n) }

func (c *Cons) String() string {
	var sb strings.Builder
	sb.WriteByte('(')
	cursor := Value(c)
	first := true
	for {
		cons, ok := cursor.(*Cons)
		if !ok {
			break
		}
		if !first {
			sb.WriteByte(' ')
		}
		sb.WriteString(cons.Car.String())
		cursor = cons.Cdr
		first = false
	}
	if _, isNil := cursor.(Nil); !isNil {
		sb.WriteString(" . ")
		sb.WriteString(cursor.String())
	}
	sb.WriteByte(')')
	return sb.String()
}

func (l *Lambda) String() string {
	if l.DisplayName != "" {
		return fmt.Sprintf("<function '%s'>", l.DisplayName)
	}
	return "<function>"
}

func (q *Quote) String() string { return "'" + q.Inner.String() }

func (Nil) Equal(other Value) bool {
	_, ok := other.(Nil)
	return ok
}

func (b Bool) Equal(other Value) bool {
	o, ok := other.(Bool)
	return ok && b == o
}

func (i Integer) Equal(other Value) bool {
	o, ok := other.(Integer)
	return ok && i.Val.Cmp(o.Val) == 0
}

func (f Float) Equal(other Value) bool {
	o, ok := other.(Float)
	return ok && f.Val.Cmp(o.Val) == 0
}

func (s String) Equal(other Value) bool {
	o, ok := other.(String)
	return ok && s == o
}

func (n Name) Equal(other Value) bool {
	o, ok := other.(Name)
	return ok && n == o
}

func (c *Cons) Equal(other Value) bool {
	o, ok := other.(*Cons)
	return ok && c.Car.Equal(o.Car) && c.Cdr.Equal(o.Cdr)
}

func (l *Lambda) Equal(other Value) bool {
	o, ok := other.(*Lambda)
	return ok && l.Args.Equal(o.Args) && l.Body.Equal(o.Body)
}

func (q *Quote) Equal(other Value) bool {
	o, ok := other.(*Quote)
	return ok && q.Inner.Equal(o.Inner)
}
