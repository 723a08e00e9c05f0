package eval

import (
	"math"
	"math/big"

	"github.com/thsfranca/liszp/internal/interpreter/value"
)

// arithmetic computes a variadic +, -, * or / expression. Any Float operand
// widens the whole computation to Float; the accumulator starts at the first
// operand, and a unary minus negates.
func (ev *Evaluator) arithmetic(op string, args []value.Value) (value.Value, error) {
	if len(args) < 2 {
		return nil, ev.evalError("'%s' expression takes at least 1 argument", unformatted(op))
	}
	continuation := args[0]

	operands := make([]value.Value, 0, len(args)-1)
	resultIsFloat := false
	for _, arg := range args[1:] {
		resolved, err := ev.resolve(arg)
		if err != nil {
			return nil, err
		}
		switch resolved.(type) {
		case value.Float:
			resultIsFloat = true
		case value.Integer:
		default:
			return nil, ev.evalError("'%s' expression takes numeric arguments", unformatted(op))
		}
		operands = append(operands, resolved)
	}

	var result value.Value
	var err error
	if resultIsFloat {
		result, err = ev.floatArithmetic(op, operands)
	} else {
		result, err = ev.integerArithmetic(op, operands)
	}
	if err != nil {
		return nil, err
	}
	return yield(continuation, result), nil
}

// asFloat widens an operand to a 53-bit Float.
func asFloat(v value.Value) *big.Float {
	switch n := v.(type) {
	case value.Float:
		return n.Val
	case value.Integer:
		return new(big.Float).SetPrec(value.FloatPrecision).SetInt(n.Val)
	default:
		return nil
	}
}

func (ev *Evaluator) floatArithmetic(op string, operands []value.Value) (value.Value, error) {
	result := new(big.Float).SetPrec(value.FloatPrecision).Set(asFloat(operands[0]))

	for _, operand := range operands[1:] {
		f := asFloat(operand)
		switch op {
		case "&+":
			result.Add(result, f)
		case "&-":
			result.Sub(result, f)
		case "&*":
			result.Mul(result, f)
		case "&/":
			if f.Sign() == 0 && result.Sign() == 0 {
				return nil, ev.evalError("division of zero by zero")
			}
			result.Quo(result, f)
		}
	}

	if op == "&-" && len(operands) == 1 {
		result.Neg(result)
	}
	return value.Float{Val: result}, nil
}

func (ev *Evaluator) integerArithmetic(op string, operands []value.Value) (value.Value, error) {
	result := new(big.Int).Set(operands[0].(value.Integer).Val)

	for _, operand := range operands[1:] {
		i := operand.(value.Integer).Val
		switch op {
		case "&+":
			result.Add(result, i)
		case "&-":
			result.Sub(result, i)
		case "&*":
			result.Mul(result, i)
		case "&/":
			if i.Sign() == 0 {
				return nil, ev.evalError("division by zero")
			}
			// Quo truncates towards zero.
			result.Quo(result, i)
		}
	}

	if op == "&-" && len(operands) == 1 {
		result.Neg(result)
	}
	return value.Integer{Val: result}, nil
}

// modulo takes the modulus of two Integers or two Floats; mixing the two is
// an error.
func (ev *Evaluator) modulo(args []value.Value) (value.Value, error) {
	if len(args) != 3 {
		return nil, ev.evalError("modulo expressions take exactly 2 arguments")
	}
	continuation := args[0]

	dividend, err := ev.resolve(args[1])
	if err != nil {
		return nil, err
	}
	divisor, err := ev.resolve(args[2])
	if err != nil {
		return nil, err
	}

	var result value.Value
	switch x := dividend.(type) {
	case value.Integer:
		y, ok := divisor.(value.Integer)
		if !ok {
			return nil, ev.evalError("cannot take the integer modulo of a float")
		}
		if y.Val.Sign() == 0 {
			return nil, ev.evalError("division by zero")
		}
		result = value.Integer{Val: new(big.Int).Rem(x.Val, y.Val)}
	case value.Float:
		y, ok := divisor.(value.Float)
		if !ok {
			return nil, ev.evalError("cannot take the integer modulo of a float")
		}
		xf, _ := x.Val.Float64()
		yf, _ := y.Val.Float64()
		if yf == 0 {
			return nil, ev.evalError("division by zero")
		}
		result = value.NewFloat(math.Mod(xf, yf))
	default:
		return nil, ev.evalError("modulo expressions take numeric arguments")
	}

	return yield(continuation, result), nil
}

// binaryLogic evaluates and, or and xor on two Bool operands.
func (ev *Evaluator) binaryLogic(op string, args []value.Value) (value.Value, error) {
	if len(args) != 3 {
		return nil, ev.evalError("%s expressions take exactly 2 arguments", unformatted(op))
	}
	continuation := args[0]

	x, err := ev.resolveBool(op, args[1])
	if err != nil {
		return nil, err
	}
	y, err := ev.resolveBool(op, args[2])
	if err != nil {
		return nil, err
	}

	var result bool
	switch op {
	case "&and":
		result = x && y
	case "&or":
		result = x || y
	case "&xor":
		result = x != y
	}
	return yield(continuation, value.Bool(result)), nil
}

// logicalNegation negates a Bool.
func (ev *Evaluator) logicalNegation(args []value.Value) (value.Value, error) {
	if len(args) != 2 {
		return nil, ev.evalError("not expressions take exactly 1 argument")
	}
	continuation := args[0]

	x, err := ev.resolveBool("&not", args[1])
	if err != nil {
		return nil, err
	}
	return yield(continuation, value.Bool(!x)), nil
}

func (ev *Evaluator) resolveBool(op string, arg value.Value) (bool, error) {
	resolved, err := ev.resolve(arg)
	if err != nil {
		return false, err
	}
	b, ok := resolved.(value.Bool)
	if !ok {
		return false, ev.evalError("%s expressions take boolean arguments", unformatted(op))
	}
	return bool(b), nil
}

// comparison compares two numbers, widening Integer to Float when the
// operands mix.
func (ev *Evaluator) comparison(op string, args []value.Value) (value.Value, error) {
	if len(args) != 3 {
		return nil, ev.evalError("%s expressions take exactly 2 values", unformatted(op))
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

	var cmp int
	xi, xIsInt := x.(value.Integer)
	yi, yIsInt := y.(value.Integer)
	switch {
	case xIsInt && yIsInt:
		cmp = xi.Val.Cmp(yi.Val)
	default:
		xf, yf := asFloat(x), asFloat(y)
		if xf == nil || yf == nil {
			return nil, ev.evalError("%s expressions take two numeric values", unformatted(op))
		}
		cmp = xf.Cmp(yf)
	}

	var result bool
	switch op {
	case "&==":
		result = cmp == 0
	case "&!=":
		result = cmp != 0
	case "&<":
		result = cmp < 0
	case "&>":
		result = cmp > 0
	case "&<=":
		result = cmp <= 0
	case "&>=":
		result = cmp >= 0
	}
	return yield(continuation, value.Bool(result)), nil
}
