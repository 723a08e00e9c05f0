package preprocess

import (
	"fmt"

	"github.com/thsfranca/liszp/internal/interpreter/lisperr"
	"github.com/thsfranca/liszp/internal/interpreter/value"
)

// Sentinel is the initial continuation of every top-level expression. When
// the trampoline reaches (no-continuation v) it halts with v.
const Sentinel = "no-continuation"

// converter accumulates the non-atomic components of one expression during
// the depth-first labeling walk. Component i is bound to the continuation
// parameter "@@k<i>" during assembly.
type converter struct {
	components   []value.Value
	continuation value.Value
}

// ConvertExpr converts an expression to continuation-passing style with the
// sentinel as its terminal continuation.
func ConvertExpr(expr value.Value) (value.Value, error) {
	return ConvertExprWithContinuation(expr, value.Name(Sentinel))
}

// ConvertExprWithContinuation converts an expression to CPS, delivering its
// result to the supplied continuation.
func ConvertExprWithContinuation(expr, continuation value.Value) (value.Value, error) {
	c := &converter{continuation: continuation}

	restructured, err := c.hoistConditionals(expr)
	if err != nil {
		return nil, err
	}

	if conditional, err := c.convertConditional(restructured); err != nil {
		return nil, err
	} else if conditional != nil {
		return conditional, nil
	}

	atom, err := c.convert(restructured)
	if err != nil {
		return nil, err
	}
	return c.assemble(atom), nil
}

/* Expression rearranging */

// findConditional returns an &if expression nested anywhere inside expr, or
// nil. Lambda and quote bodies are skipped: an &if under a lambda belongs to
// that lambda's own conversion.
func (c *converter) findConditional(expr value.Value) value.Value {
	cons, ok := expr.(*value.Cons)
	if !ok {
		return nil
	}
	switch value.NameOf(cons.Car) {
	case "&if":
		return expr
	case "&lambda", "&quote", "&quasiquote":
		return nil
	}
	if found := c.findConditional(cons.Car); found != nil {
		return found
	}
	return c.findConditional(cons.Cdr)
}

// hoistConditionals moves every nested &if to the top of the expression:
// E[if c t f] becomes (&if c E[t] E[f]), recursively. In CPS a conditional
// commits to a continuation, so it must head each continuation body.
func (c *converter) hoistConditionals(expr value.Value) (value.Value, error) {
	conditional := c.findConditional(expr)
	if conditional == nil {
		return expr, nil
	}

	comps, ok := value.ToList(conditional)
	if !ok || len(comps) != 4 {
		return nil, lisperr.New(lisperr.Transform, "expected syntax (if <cond> <true-case> <false-case>)")
	}
	condition, trueCase, falseCase := comps[1], comps[2], comps[3]

	hoistedTrue, err := c.hoistConditionals(value.Substitute(expr, conditional, trueCase))
	if err != nil {
		return nil, err
	}
	hoistedFalse, err := c.hoistConditionals(value.Substitute(expr, conditional, falseCase))
	if err != nil {
		return nil, err
	}

	return value.List(value.Name("&if"), condition, hoistedTrue, hoistedFalse), nil
}

/* CPS conversion */

// convertConditional converts expr when it is an &if form, returning nil
// when it is not. Both branches share the surrounding continuation; the
// condition is computed first and fed to a fresh @@k-if parameter.
func (c *converter) convertConditional(expr value.Value) (value.Value, error) {
	comps, ok := value.ToList(expr)
	if !ok || len(comps) == 0 || value.NameOf(comps[0]) != "&if" {
		return nil, nil
	}
	if len(comps) != 4 {
		return nil, lisperr.New(lisperr.Transform, "expected syntax (if <condition> <true case> <false case>)")
	}
	condition, trueCase, falseCase := comps[1], comps[2], comps[3]

	convertedTrue, err := ConvertExprWithContinuation(trueCase, c.continuation)
	if err != nil {
		return nil, err
	}
	convertedFalse, err := ConvertExprWithContinuation(falseCase, c.continuation)
	if err != nil {
		return nil, err
	}

	conditionalExpr := value.List(comps[0], value.Name("@@k-if"), convertedTrue, convertedFalse)
	conditionContinuation := &value.Lambda{
		Args: value.Name("@@k-if"),
		Body: conditionalExpr,
	}

	return ConvertExprWithContinuation(condition, conditionContinuation)
}

// convertLambda converts a (&lambda <args> <body>) form into a Lambda value:
// the formals gain a fresh continuation parameter on the left, and the body
// is converted with that parameter as its terminal continuation.
func convertLambda(comps []value.Value) (value.Value, error) {
	if len(comps) != 3 {
		return nil, lisperr.New(lisperr.Transform, "expected syntax (lambda <args> <body>)")
	}
	k := value.Name("@@k")

	var args value.Value
	switch formal := comps[1].(type) {
	case *value.Cons:
		args = &value.Cons{Car: k, Cdr: formal}
	case value.Nil:
		args = value.List(k)
	default:
		args = &value.Cons{Car: k, Cdr: formal}
	}

	body, err := ConvertExprWithContinuation(comps[2], k)
	if err != nil {
		return nil, err
	}

	return &value.Lambda{Args: args, Body: body}, nil
}

// convertQuote records a (&quote v) component, splicing in any &unquote
// computations first. Quasiquote forms normalize to plain quote here.
func (c *converter) convertQuote(comps []value.Value) (value.Value, error) {
	if len(comps) != 2 {
		return nil, lisperr.New(lisperr.Transform, "quote expressions take exactly 1 argument")
	}

	quoted, err := c.applyUnquote(comps[1])
	if err != nil {
		return nil, err
	}

	c.components = append(c.components, value.List(value.Name("&quote"), quoted))
	return c.continuationLabel(), nil
}

// applyUnquote searches a quoted tree for &unquote expressions; each one's
// inner expression is converted so its value is computed and spliced in at
// evaluation time.
func (c *converter) applyUnquote(expr value.Value) (value.Value, error) {
	comps, ok := value.ToList(expr)
	if !ok || len(comps) == 0 {
		return expr, nil
	}

	if value.NameOf(comps[0]) == "&unquote" {
		if len(comps) != 2 {
			return nil, lisperr.New(lisperr.Transform, "unquote expressions must contain exactly 1 argument")
		}
		// An atomic expression splices in directly; anything else is
		// labeled so its value is computed before the quote.
		return c.convert(comps[1])
	}

	converted := make([]value.Value, len(comps))
	for i, comp := range comps {
		inner, err := c.applyUnquote(comp)
		if err != nil {
			return nil, err
		}
		converted[i] = inner
	}
	return value.List(converted...), nil
}

// convert collects the components of an expression depth first, returning
// expr with each non-atomic sub-expression replaced by its numbered
// continuation label.
func (c *converter) convert(expr value.Value) (value.Value, error) {
	comps, ok := value.ToList(expr)
	if !ok {
		if value.IsAtom(expr) {
			return expr, nil
		}
		return nil, lisperr.New(lisperr.Transform, "expected a proper list expression")
	}
	if len(comps) == 0 {
		return value.NilVal, nil
	}

	switch value.NameOf(comps[0]) {
	case "&defmacro":
		return expr, nil
	case "&lambda":
		return convertLambda(comps)
	case "&quote", "&quasiquote":
		return c.convertQuote(comps)
	}

	labels := make([]value.Value, 0, len(comps))

	// A lambda form in operator position is converted in place so the
	// call sees a callable value.
	if head, isCons := comps[0].(*value.Cons); isCons && value.NameOf(head.Car) == "&lambda" {
		headComps, ok := value.ToList(comps[0])
		if !ok {
			return nil, lisperr.New(lisperr.Transform, "expected syntax (lambda <args> <body>)")
		}
		converted, err := convertLambda(headComps)
		if err != nil {
			return nil, err
		}
		labels = append(labels, converted)
	} else {
		labels = append(labels, comps[0])
	}

	for _, comp := range comps[1:] {
		label, err := c.convert(comp)
		if err != nil {
			return nil, err
		}
		labels = append(labels, label)
	}

	c.components = append(c.components, value.List(labels...))
	return c.continuationLabel(), nil
}

func (c *converter) continuationLabel() value.Value {
	return value.Name(fmt.Sprintf("@@k%d", len(c.components)-1))
}

// assemble builds the CPS expression from the collected components, starting
// at the last computation and wrapping each earlier one in the continuation
// that receives its result. With no components the expression is atomic and
// the continuation is applied to it directly.
func (c *converter) assemble(atom value.Value) value.Value {
	converted := c.continuation
	atomic := true

	for i := len(c.components) - 1; i >= 0; i-- {
		cons, ok := c.components[i].(*value.Cons)
		if !ok {
			continue
		}

		var continuation value.Value
		if atomic {
			atomic = false
			continuation = converted
		} else {
			continuation = &value.Lambda{
				Args: value.Name(fmt.Sprintf("@@k%d", i)),
				Body: converted,
			}
		}

		converted = &value.Cons{
			Car: cons.Car,
			Cdr: &value.Cons{Car: continuation, Cdr: cons.Cdr},
		}
	}

	if atomic {
		return value.List(converted, atom)
	}
	return converted
}
