// Package eval owns the two process-wide stores (the global environment and
// the macro table) and drives evaluation: macro expansion, preprocessing and
// the trampoline loop that reduces CPS expressions one step at a time.
package eval

import (
	"io"
	"os"

	"go.uber.org/zap"
	"golang.org/x/exp/maps"

	"github.com/thsfranca/liszp/internal/interpreter/lisperr"
	"github.com/thsfranca/liszp/internal/interpreter/preprocess"
	"github.com/thsfranca/liszp/internal/interpreter/reader"
	"github.com/thsfranca/liszp/internal/interpreter/value"
)

// StdlibFiles are loaded in order at evaluator startup, by fixed relative
// path.
var StdlibFiles = []string{
	"liszp-stdlib/std-macros.lzp",
	"liszp-stdlib/std-functions.lzp",
}

// recentCallDepth bounds how many call frames are kept for error traces.
const recentCallDepth = 32

// maxResolveHops bounds name-to-name resolution chains so a cyclic def
// surfaces as an error instead of a hang.
const maxResolveHops = 1024

// Config controls evaluator construction.
type Config struct {
	// Logger receives per-stage debug output. Nil means no logging.
	Logger *zap.Logger
	// Stdout is the destination of print and println. Nil means os.Stdout.
	Stdout io.Writer
}

// Evaluator holds the global environment and the macro table, and evaluates
// expressions against them. It is strictly single-threaded.
type Evaluator struct {
	globals map[string]value.Value
	macros  map[string]*Macro

	log    *zap.Logger
	stdout io.Writer

	// recentCalls is a bounded trail of lambda call names, attached to
	// evaluation errors as a stack trace.
	recentCalls []string
}

// New creates an evaluator with empty globals and macro table.
func New(cfg Config) *Evaluator {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	stdout := cfg.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	return &Evaluator{
		globals: make(map[string]value.Value),
		macros:  make(map[string]*Macro),
		log:     logger,
		stdout:  stdout,
	}
}

// Globals returns a snapshot of the global environment.
func (ev *Evaluator) Globals() map[string]value.Value {
	return maps.Clone(ev.globals)
}

// Eval runs one top-level expression through the full pipeline: macro
// expansion, name formatting, CPS conversion and the trampoline. A defmacro
// form installs its macro and yields nil.
func (ev *Evaluator) Eval(expr value.Value) (value.Value, error) {
	converted, err := ev.preprocess(expr)
	if err != nil {
		return nil, err
	}
	if converted == nil {
		return value.NilVal, nil
	}
	return ev.run(converted)
}

// preprocess expands macros, formats names and CPS-converts an expression.
// It returns nil (and no error) when the expression was a macro definition.
func (ev *Evaluator) preprocess(expr value.Value) (value.Value, error) {
	expanded, installed, err := ev.expandMacros(expr, true)
	if err != nil {
		return nil, err
	}
	if installed {
		return nil, nil
	}

	formatted := preprocess.FormatNames(expanded)
	converted, err := preprocess.ConvertExpr(formatted)
	if err != nil {
		return nil, err
	}

	ev.log.Debug("preprocessed expression",
		zap.String("expanded", expanded.String()),
		zap.String("cps", converted.String()))

	return converted, nil
}

// EvalFile reads and evaluates every top-level expression of a source file,
// returning the evaluated values in order.
func (ev *Evaluator) EvalFile(path string) ([]value.Value, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, lisperr.New(lisperr.Fatal, "cannot open file '%s'", path)
	}

	exprs, err := reader.Read(string(source), path)
	if err != nil {
		return nil, err
	}

	results := make([]value.Value, 0, len(exprs))
	for _, expr := range exprs {
		evaluated, err := ev.Eval(expr)
		if err != nil {
			return nil, lisperr.AsError(err).WithFilename(path)
		}
		results = append(results, evaluated)
	}
	return results, nil
}

// EvalSource evaluates a source string that must contain exactly one
// expression. The REPL uses this for each balanced input chunk.
func (ev *Evaluator) EvalSource(source, filename string) (value.Value, error) {
	exprs, err := reader.Read(source, filename)
	if err != nil {
		return nil, err
	}
	if len(exprs) != 1 {
		return nil, lisperr.New(lisperr.Evaluation,
			"can only evaluate one expression at a time, not %d", len(exprs))
	}
	return ev.Eval(exprs[0])
}

// LoadStdlib evaluates the standard library files into this evaluator.
func (ev *Evaluator) LoadStdlib() error {
	for _, path := range StdlibFiles {
		if _, err := ev.EvalFile(path); err != nil {
			e := lisperr.AsError(err)
			return lisperr.New(lisperr.Fatal, "failed to load standard library '%s': %s", path, e.Message)
		}
		ev.log.Debug("loaded stdlib file", zap.String("path", path))
	}
	return nil
}

/* Trampoline */

// run reduces a CPS expression one step per iteration until the sentinel
// continuation is reached or the current value is no longer a call.
func (ev *Evaluator) run(expr value.Value) (value.Value, error) {
	current := expr
	for {
		cons, ok := current.(*value.Cons)
		if !ok {
			return current, nil
		}

		args, ok := value.ToList(cons.Cdr)
		if !ok {
			return nil, ev.evalError("expected a list of arguments")
		}

		var err error
		switch name := value.NameOf(cons.Car); name {
		case preprocess.Sentinel:
			if len(args) != 1 {
				return nil, ev.evalError("no-continuation should be supplied with exactly one argument")
			}
			return ev.resolve(args[0])
		case "&def":
			current, err = ev.defineValue(args)
		case "&if":
			current, err = ev.ifExpr(args)
		case "&quote":
			current, err = ev.quoteValue(args)
		case "&eval":
			current, err = ev.evalQuoted(args)
		case "&cons":
			current, err = ev.consPair(args)
		case "&car", "&first":
			current, err = ev.listAccess(name, args, true)
		case "&cdr", "&rest":
			current, err = ev.listAccess(name, args, false)
		case "&len":
			current, err = ev.valueLength(args)
		case "&print":
			current, err = ev.printValue(args, false)
		case "&println":
			current, err = ev.printValue(args, true)
		case "&panic":
			current, err = ev.panicValue(args)
		case "&equals?":
			current, err = ev.valuesAreEqual(args)
		case "&bool?", "&cons?", "&pair?", "&float?", "&int?", "&name?",
			"&nil?", "&null?", "&empty?", "&quote?", "&str?":
			current, err = ev.typePredicate(name, args)
		case "&+", "&-", "&*", "&/":
			current, err = ev.arithmetic(name, args)
		case "&%":
			current, err = ev.modulo(args)
		case "&and", "&or", "&xor":
			current, err = ev.binaryLogic(name, args)
		case "&not":
			current, err = ev.logicalNegation(args)
		case "&<", "&>", "&<=", "&>=", "&==", "&!=":
			current, err = ev.comparison(name, args)
		default:
			current, err = ev.lambdaFuncall(cons.Car, args)
		}
		if err != nil {
			return nil, ev.withTrace(err)
		}
	}
}

/* Environment */

// resolve follows a Name through the global environment until a non-name
// value is reached. Non-names resolve to themselves.
func (ev *Evaluator) resolve(v value.Value) (value.Value, error) {
	current := v
	for hops := 0; ; hops++ {
		name, ok := current.(value.Name)
		if !ok {
			return current, nil
		}
		if hops > maxResolveHops {
			return nil, ev.evalError("cyclic binding for name '%s'", unformatted(value.NameOf(v)))
		}
		bound, exists := ev.globals[string(name)]
		if !exists {
			return nil, ev.evalError("unbound name '%s'", unformatted(string(name)))
		}
		current = bound
	}
}

// unformatted strips the "&" formatting prefix for user-facing messages.
func unformatted(name string) string {
	if len(name) > 0 && name[0] == '&' {
		return name[1:]
	}
	return name
}

/* Lambda calls */

// lambdaFuncall evaluates a call whose operator is not a builtin: the
// operator must resolve to a lambda, whose body is returned with every
// formal replaced by its argument value.
func (ev *Evaluator) lambdaFuncall(function value.Value, argValues []value.Value) (value.Value, error) {
	resolved, err := ev.resolve(function)
	if err != nil {
		return nil, err
	}

	lambda, ok := resolved.(*value.Lambda)
	if !ok {
		return nil, ev.evalError("attempt to call a non-function value")
	}

	argNames, err := ev.argNames(lambda.Args)
	if err != nil {
		return nil, err
	}
	if len(argNames) != len(argValues) {
		return nil, ev.evalError("function takes %d arguments but received %d",
			len(argNames), len(argValues))
	}

	argMap := make(map[string]value.Value, len(argNames))
	for i, name := range argNames {
		argMap[name] = argValues[i]
	}

	ev.pushCall(lambda.DisplayName)
	return ev.bindArgs(lambda.Body, argMap), nil
}

// argNames flattens a formal-parameter component into identifier strings. A
// single Name is one formal; a trailing Name after an improper list is the
// final formal.
func (ev *Evaluator) argNames(args value.Value) ([]string, error) {
	switch formal := args.(type) {
	case value.Nil:
		return nil, nil
	case value.Name:
		return []string{string(formal)}, nil
	case *value.Cons:
		var names []string
		cursor := value.Value(formal)
		for {
			cons, ok := cursor.(*value.Cons)
			if !ok {
				break
			}
			name, ok := cons.Car.(value.Name)
			if !ok {
				return nil, ev.evalError("expected name in function argument")
			}
			names = append(names, string(name))
			cursor = cons.Cdr
		}
		if tail, ok := cursor.(value.Name); ok {
			names = append(names, string(tail))
		} else if _, isNil := cursor.(value.Nil); !isNil {
			return nil, ev.evalError("expected name in function argument")
		}
		return names, nil
	default:
		return nil, ev.evalError("function expected a list of arguments or a single argument in lambda expression")
	}
}

// bindArgs returns expr with every bound Name replaced by its value. Inner
// lambdas shadow: their formals are removed from the map for the extent of
// their body. Quoted trees are left untouched.
func (ev *Evaluator) bindArgs(expr value.Value, argMap map[string]value.Value) value.Value {
	switch n := expr.(type) {
	case value.Name:
		if bound, ok := argMap[string(n)]; ok {
			return bound
		}
		return expr
	case *value.Cons:
		return &value.Cons{
			Car: ev.bindArgs(n.Car, argMap),
			Cdr: ev.bindArgs(n.Cdr, argMap),
		}
	case *value.Lambda:
		shadowed := ev.removeShadowed(n.Args, argMap)
		body := ev.bindArgs(n.Body, argMap)
		for name, val := range shadowed {
			argMap[name] = val
		}
		return &value.Lambda{Args: n.Args, Body: body, DisplayName: n.DisplayName}
	default:
		return expr
	}
}

// removeShadowed removes an inner lambda's formals from the binding map,
// returning the removed entries so they can be restored afterwards.
func (ev *Evaluator) removeShadowed(args value.Value, argMap map[string]value.Value) map[string]value.Value {
	shadowed := make(map[string]value.Value)
	names, err := ev.argNames(args)
	if err != nil {
		return shadowed
	}
	for _, name := range names {
		if val, ok := argMap[name]; ok {
			shadowed[name] = val
			delete(argMap, name)
		}
	}
	return shadowed
}

/* Error helpers */

func (ev *Evaluator) evalError(format string, args ...interface{}) *lisperr.Error {
	return lisperr.New(lisperr.Evaluation, format, args...)
}

// pushCall records a lambda call for error traces, keeping only the most
// recent frames.
func (ev *Evaluator) pushCall(name string) {
	ev.recentCalls = append(ev.recentCalls, name)
	if len(ev.recentCalls) > recentCallDepth {
		ev.recentCalls = ev.recentCalls[len(ev.recentCalls)-recentCallDepth:]
	}
}

// withTrace attaches the recent call trail to an error leaving other kinds
// untouched.
func (ev *Evaluator) withTrace(err error) error {
	e := lisperr.AsError(err)
	if e.Kind != lisperr.Evaluation || len(e.Trace) > 0 {
		return e
	}
	for _, name := range ev.recentCalls {
		e = e.PushFrame(name)
	}
	return e
}
