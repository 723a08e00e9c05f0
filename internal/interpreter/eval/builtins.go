package eval

import (
	"fmt"

	"github.com/thsfranca/liszp/internal/interpreter/lisperr"
	"github.com/thsfranca/liszp/internal/interpreter/preprocess"
	"github.com/thsfranca/liszp/internal/interpreter/value"
)

// yield builds the (continuation result) step every builtin returns to the
// trampoline.
func yield(continuation, result value.Value) value.Value {
	return value.List(continuation, result)
}

// defineValue installs (def <name> <value>) in the globals and yields nil.
// Redefinition overwrites. A lambda defined this way gains a display name.
func (ev *Evaluator) defineValue(args []value.Value) (value.Value, error) {
	if len(args) != 3 {
		return nil, ev.evalError("expected syntax (def <name> <value>)")
	}
	continuation, name, val := args[0], args[1], args[2]

	n, ok := name.(value.Name)
	if !ok {
		return nil, ev.evalError("expected name in def expression")
	}

	if lambda, isLambda := val.(*value.Lambda); isLambda && lambda.DisplayName == "" {
		named := *lambda
		named.DisplayName = unformatted(string(n))
		val = &named
	}
	ev.globals[string(n)] = val

	return yield(continuation, value.NilVal), nil
}

// ifExpr commits to one branch. The branches already carry the surrounding
// continuation from CPS conversion. A quoted condition is unwrapped once so
// macros can branch on their (quoted) arguments.
func (ev *Evaluator) ifExpr(args []value.Value) (value.Value, error) {
	if len(args) != 3 {
		return nil, ev.evalError("if expression has syntax (if <condition> <true case> <false case>)")
	}

	cond, err := ev.resolve(args[0])
	if err != nil {
		return nil, err
	}
	if q, ok := cond.(*value.Quote); ok {
		cond = q.Inner
	}

	b, ok := cond.(value.Bool)
	if !ok {
		return nil, ev.evalError("if expression expected a boolean condition")
	}
	if bool(b) {
		return ev.resolve(args[1])
	}
	return ev.resolve(args[2])
}

// quoteValue wraps a value in a Quote unless it already is one.
func (ev *Evaluator) quoteValue(args []value.Value) (value.Value, error) {
	if len(args) != 2 {
		return nil, ev.evalError("function 'quote' takes exactly one value")
	}
	continuation, val := args[0], args[1]

	if _, isQuote := val.(*value.Quote); isQuote {
		return yield(continuation, val), nil
	}
	return yield(continuation, &value.Quote{Inner: val}), nil
}

// evalQuoted converts a quoted expression to CPS with the caller's
// continuation and yields the converted form; non-quotes pass through.
func (ev *Evaluator) evalQuoted(args []value.Value) (value.Value, error) {
	if len(args) != 2 {
		return nil, ev.evalError("function 'eval' takes exactly one argument")
	}
	continuation, val := args[0], args[1]

	resolved, err := ev.resolve(val)
	if err != nil {
		return nil, err
	}
	q, isQuote := resolved.(*value.Quote)
	if !isQuote {
		return yield(continuation, val), nil
	}

	converted, err := preprocess.ConvertExprWithContinuation(q.Inner, continuation)
	if err != nil {
		return nil, err
	}
	return converted, nil
}

// consPair builds a quoted cons pair, stripping one Quote layer from each
// side so that quoted lists compose.
func (ev *Evaluator) consPair(args []value.Value) (value.Value, error) {
	if len(args) != 3 {
		return nil, ev.evalError("function 'cons' expected 2 arguments")
	}
	continuation := args[0]

	car, err := ev.resolve(args[1])
	if err != nil {
		return nil, err
	}
	cdr, err := ev.resolve(args[2])
	if err != nil {
		return nil, err
	}

	if q, ok := car.(*value.Quote); ok {
		car = q.Inner
	}
	if q, ok := cdr.(*value.Quote); ok {
		cdr = q.Inner
	}

	pair := &value.Quote{Inner: &value.Cons{Car: car, Cdr: cdr}}
	return yield(continuation, pair), nil
}

// listAccess implements car and cdr. The argument must be a quoted cons
// pair; a selected Cons or Name is quoted again so it stays data.
func (ev *Evaluator) listAccess(op string, args []value.Value, wantCar bool) (value.Value, error) {
	if len(args) != 2 {
		return nil, ev.evalError("function '%s' takes 1 argument", unformatted(op))
	}
	continuation := args[0]

	resolved, err := ev.resolve(args[1])
	if err != nil {
		return nil, err
	}
	q, ok := resolved.(*value.Quote)
	if !ok {
		return nil, ev.evalError("function '%s' expected to receive a cons pair", unformatted(op))
	}
	cons, ok := q.Inner.(*value.Cons)
	if !ok {
		return nil, ev.evalError("function '%s' expected to receive a cons pair", unformatted(op))
	}

	selected := cons.Car
	if !wantCar {
		selected = cons.Cdr
	}

	switch selected.(type) {
	case *value.Cons, value.Name:
		selected = &value.Quote{Inner: selected}
	}
	return yield(continuation, selected), nil
}

// valueLength yields the number of elements in a (possibly quoted) list.
func (ev *Evaluator) valueLength(args []value.Value) (value.Value, error) {
	if len(args) != 2 {
		return nil, ev.evalError("function 'len' takes exactly one value")
	}
	continuation := args[0]

	resolved, err := ev.resolve(args[1])
	if err != nil {
		return nil, err
	}
	if q, ok := resolved.(*value.Quote); ok {
		resolved = q.Inner
	}

	length := 0
	switch list := resolved.(type) {
	case value.Nil:
	case *value.Cons:
		cursor := value.Value(list)
		for {
			cons, ok := cursor.(*value.Cons)
			if !ok {
				break
			}
			length++
			cursor = cons.Cdr
		}
	default:
		return nil, ev.evalError("attempt to get length of something that isn't a list")
	}

	return yield(continuation, value.NewInt(int64(length))), nil
}

// printValue writes a value to stdout and yields it unchanged.
func (ev *Evaluator) printValue(args []value.Value, newline bool) (value.Value, error) {
	if len(args) != 2 {
		suffix := ""
		if newline {
			suffix = "ln"
		}
		return nil, ev.evalError("function print%s takes 1 argument only", suffix)
	}
	continuation := args[0]

	resolved, err := ev.resolve(args[1])
	if err != nil {
		return nil, err
	}

	if newline {
		fmt.Fprintln(ev.stdout, resolved)
	} else {
		fmt.Fprint(ev.stdout, resolved)
	}
	return yield(continuation, resolved), nil
}

// panicValue aborts the evaluation with the supplied message.
func (ev *Evaluator) panicValue(args []value.Value) (value.Value, error) {
	if len(args) != 2 {
		return nil, ev.evalError("expected syntax (panic <message>)")
	}
	msg, err := ev.resolve(args[1])
	if err != nil {
		return nil, err
	}
	return nil, lisperr.New(lisperr.Panic, "%s", msg)
}

// valuesAreEqual yields structural equality of two values.
func (ev *Evaluator) valuesAreEqual(args []value.Value) (value.Value, error) {
	if len(args) != 3 {
		return nil, ev.evalError("function 'equals?' takes exactly 2 parameters")
	}
	continuation := args[0]

	x, err := ev.resolve(args[1])
	if err != nil {
		return nil, err
	}
	y, err := ev.resolve(args[2])
	if err != nil {
		return nil, err
	}
	return yield(continuation, value.Bool(x.Equal(y))), nil
}

// typePredicate yields whether a value has the named type. Every predicate
// except quote? sees through one Quote wrapper.
func (ev *Evaluator) typePredicate(op string, args []value.Value) (value.Value, error) {
	if len(args) != 2 {
		return nil, ev.evalError("function '%s' takes exactly one argument", unformatted(op))
	}
	continuation := args[0]

	resolved, err := ev.resolve(args[1])
	if err != nil {
		return nil, err
	}

	var result bool
	if op == "&quote?" {
		_, result = resolved.(*value.Quote)
		return yield(continuation, value.Bool(result)), nil
	}

	if q, ok := resolved.(*value.Quote); ok {
		resolved = q.Inner
	}

	switch op {
	case "&bool?":
		_, result = resolved.(value.Bool)
	case "&cons?", "&pair?":
		_, result = resolved.(*value.Cons)
	case "&float?":
		_, result = resolved.(value.Float)
	case "&int?":
		_, result = resolved.(value.Integer)
	case "&name?":
		_, result = resolved.(value.Name)
	case "&nil?", "&null?", "&empty?":
		_, result = resolved.(value.Nil)
	case "&str?":
		_, result = resolved.(value.String)
	}
	return yield(continuation, value.Bool(result)), nil
}
