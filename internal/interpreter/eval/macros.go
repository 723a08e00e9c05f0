package eval

import (
	"go.uber.org/zap"

	"github.com/thsfranca/liszp/internal/interpreter/lisperr"
	"github.com/thsfranca/liszp/internal/interpreter/value"
)

// Macro is a user-defined rewrite installed by (defmacro (name args..) body).
// Its body runs through the full evaluator with the call-site arguments
// supplied as quoted values.
type Macro struct {
	Name string
	// Args is the cons list of formal parameter names.
	Args value.Value
	Body value.Value
}

// toExecutableExpression builds the expression whose evaluation performs one
// expansion of this macro: ((lambda <args> <body>) 'v1 .. 'vn). Quoting the
// arguments hands the macro syntax rather than evaluated values.
func (m *Macro) toExecutableExpression(suppliedArgs []value.Value) value.Value {
	lambda := value.List(value.Name("lambda"), m.Args, m.Body)

	quoted := make([]value.Value, len(suppliedArgs))
	for i, arg := range suppliedArgs {
		quoted[i] = value.List(value.Name("quote"), arg)
	}

	return &value.Cons{Car: lambda, Cdr: value.List(quoted...)}
}

// paramCount returns the number of formal parameters.
func (m *Macro) paramCount() int {
	params, _ := value.ToList(m.Args)
	return len(params)
}

// parseMacroDefinition recognizes a (defmacro <signature> <body>) form,
// returning nil when expr is something else. Macro-generated definitions
// arrive with formatted names, so the "&" prefix is ignored throughout.
func parseMacroDefinition(expr value.Value) (*Macro, error) {
	comps, ok := value.ToList(expr)
	if !ok || len(comps) == 0 || unformatted(value.NameOf(comps[0])) != "defmacro" {
		return nil, nil
	}
	if len(comps) != 3 {
		return nil, lisperr.New(lisperr.Expansion, "expected syntax (defmacro <macro-signature> <macro-body>)")
	}

	signature, ok := value.ToList(comps[1])
	if !ok || len(signature) == 0 {
		return nil, lisperr.New(lisperr.Expansion, "expected the macro signature to be a list (<name> <args>..)")
	}
	for _, comp := range signature {
		if _, isName := comp.(value.Name); !isName {
			return nil, lisperr.New(lisperr.Expansion, "the macro signature should consist only of names")
		}
	}

	return &Macro{
		Name: unformatted(value.NameOf(signature[0])),
		Args: value.List(signature[1:]...),
		Body: comps[2],
	}, nil
}

// installMacro adds a macro to the table; redefinition is an error.
func (ev *Evaluator) installMacro(m *Macro) error {
	if _, exists := ev.macros[m.Name]; exists {
		return lisperr.New(lisperr.Expansion, "macro '%s' has already been defined", m.Name)
	}
	ev.macros[m.Name] = m
	return nil
}

// expandMacros returns expr with all macros expanded. The second return is
// true when expr was a defmacro form and was installed instead of expanded;
// that is only legal at the top level.
func (ev *Evaluator) expandMacros(expr value.Value, topLevel bool) (value.Value, bool, error) {
	if m, err := parseMacroDefinition(expr); err != nil {
		return nil, false, err
	} else if m != nil {
		if !topLevel {
			return nil, false, lisperr.New(lisperr.Expansion, "defmacro is only allowed at the top level")
		}
		if err := ev.installMacro(m); err != nil {
			return nil, false, err
		}
		ev.log.Debug("installed macro", zap.String("name", m.Name))
		return value.NilVal, true, nil
	}

	comps, ok := value.ToList(expr)
	if !ok || len(comps) == 0 {
		return expr, false, nil
	}

	if m, bound := ev.macros[unformatted(value.NameOf(comps[0]))]; bound {
		expanded, err := ev.expandMacroCall(m, comps[1:])
		if err != nil {
			return nil, false, err
		}
		result, _, err := ev.expandMacros(expanded, topLevel)
		return result, false, err
	}

	newComps := make([]value.Value, len(comps))
	for i, comp := range comps {
		expanded, _, err := ev.expandMacros(comp, false)
		if err != nil {
			return nil, false, err
		}
		newComps[i] = expanded
	}
	return value.List(newComps...), false, nil
}

// expandMacroCall evaluates one macro application and returns the resulting
// syntax. A Quote wrapper on the result is stripped so the expansion splices
// back into the tree as code.
func (ev *Evaluator) expandMacroCall(m *Macro, suppliedArgs []value.Value) (value.Value, error) {
	if want := m.paramCount(); want != len(suppliedArgs) {
		return nil, lisperr.New(lisperr.Expansion, "macro '%s' expects %d arguments, got %d",
			m.Name, want, len(suppliedArgs))
	}

	executable := m.toExecutableExpression(suppliedArgs)
	result, err := ev.Eval(executable)
	if err != nil {
		return nil, err
	}

	if q, ok := result.(*value.Quote); ok {
		result = q.Inner
	}

	ev.log.Debug("expanded macro",
		zap.String("name", m.Name),
		zap.String("result", result.String()))

	return result, nil
}
