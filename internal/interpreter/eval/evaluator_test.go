package eval

import (
	"bytes"
	"strings"
	"testing"

	"github.com/thsfranca/liszp/internal/interpreter/lisperr"
	"github.com/thsfranca/liszp/internal/interpreter/reader"
	"github.com/thsfranca/liszp/internal/interpreter/value"
)

func newTestEvaluator() (*Evaluator, *bytes.Buffer) {
	var out bytes.Buffer
	return New(Config{Stdout: &out}), &out
}

// runProgram evaluates every expression in source and returns the last
// value.
func runProgram(t *testing.T, ev *Evaluator, source string) value.Value {
	t.Helper()
	exprs, err := reader.Read(source, "<test>")
	if err != nil {
		t.Fatalf("Read(%q) failed: %v", source, err)
	}

	var result value.Value = value.NilVal
	for _, expr := range exprs {
		result, err = ev.Eval(expr)
		if err != nil {
			t.Fatalf("Eval(%q) failed: %v", source, err)
		}
	}
	return result
}

// runExpectingError evaluates source and returns the error of the failing
// expression.
func runExpectingError(t *testing.T, ev *Evaluator, source string) *lisperr.Error {
	t.Helper()
	exprs, err := reader.Read(source, "<test>")
	if err != nil {
		t.Fatalf("Read(%q) failed: %v", source, err)
	}
	for _, expr := range exprs {
		if _, err = ev.Eval(expr); err != nil {
			return lisperr.AsError(err)
		}
	}
	t.Fatalf("evaluating %q should fail", source)
	return nil
}

func TestEval_Scenarios(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{"definition and use", "(def x 7) (+ x 3)", "10"},
		{
			"recursive factorial",
			"(def fact (lambda (n) (if (== n 0) 1 (* n (fact (- n 1)))))) (fact 5)",
			"120",
		},
		{"cons list display", "(cons 1 (cons 2 (cons 3 nil)))", "'(1 2 3)"},
		{"car of quoted list", "(car '(a b c))", "'&a"},
		{"cdr of quoted list", "(cdr '(a b c))", "'(&b &c)"},
		{"conditional true branch", "(if true 1 2)", "1"},
		{"conditional false branch", "(if false 1 2)", "2"},
		{"conditional with computed condition", "(if (< 1 2) 10 20)", "10"},
		{"redefinition overwrites", "(def x 1) (def x 2) x", "2"},
		{"definition yields nil", "(def x 1)", "nil"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, _ := newTestEvaluator()
			if got := runProgram(t, ev, tt.source).String(); got != tt.want {
				t.Errorf("evaluated to %s, want %s", got, tt.want)
			}
		})
	}
}

func TestEval_Arithmetic(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{"addition", "(+ 1 2)", "3"},
		{"variadic addition", "(+ 1 2 3 4)", "10"},
		{"unary plus", "(+ 5)", "5"},
		{"subtraction", "(- 10 4)", "6"},
		{"unary minus negates", "(- 5)", "-5"},
		{"variadic product", "(* 2 3 4)", "24"},
		{"integer division truncates", "(/ 7 2)", "3"},
		{"truncation towards zero", "(/ (- 7) 2)", "-3"},
		{"mixed promotes to float", "(+ 1 2.5)", "3.5"},
		{"float division", "(/ 1.0 2)", "0.5"},
		{"unary float minus", "(- 2.5)", "-2.5"},
		{
			"arbitrary precision",
			"(def fact (lambda (n) (if (== n 0) 1 (* n (fact (- n 1)))))) (fact 25)",
			"15511210043330985984000000",
		},
		{"integer modulo", "(% 7 3)", "1"},
		{"float modulo", "(% 7.5 2.0)", "1.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, _ := newTestEvaluator()
			if got := runProgram(t, ev, tt.source).String(); got != tt.want {
				t.Errorf("%s evaluated to %s, want %s", tt.source, got, tt.want)
			}
		})
	}
}

func TestEval_ArithmeticErrors(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		wantMsg string
	}{
		{"integer division by zero", "(/ 1 0)", "division"},
		{"modulo by zero", "(% 5 0)", "division"},
		{"mixed modulo", "(% 7.5 2)", "modulo of a float"},
		{"non-numeric operand", "(+ 1 true)", "numeric"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, _ := newTestEvaluator()
			err := runExpectingError(t, ev, tt.source)
			if !strings.Contains(err.Message, tt.wantMsg) {
				t.Errorf("error %q should mention %q", err.Message, tt.wantMsg)
			}
		})
	}
}

func TestEval_ComparisonAndLogic(t *testing.T) {
	tests := []struct {
		source string
		want   string
	}{
		{"(< 1 2)", "true"},
		{"(> 1 2)", "false"},
		{"(<= 2 2)", "true"},
		{"(>= 1 2)", "false"},
		{"(== 2 2)", "true"},
		{"(!= 2 2)", "false"},
		{"(== 2 2.0)", "true"},
		{"(< 2.5 3)", "true"},
		{"(and true false)", "false"},
		{"(and true true)", "true"},
		{"(or true false)", "true"},
		{"(or false false)", "false"},
		{"(xor true false)", "true"},
		{"(xor true true)", "false"},
		{"(not true)", "false"},
		{"(not false)", "true"},
	}

	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			ev, _ := newTestEvaluator()
			if got := runProgram(t, ev, tt.source).String(); got != tt.want {
				t.Errorf("%s evaluated to %s, want %s", tt.source, got, tt.want)
			}
		})
	}
}

func TestEval_TypePredicates(t *testing.T) {
	tests := []struct {
		source string
		want   string
	}{
		{"(int? 5)", "true"},
		{"(int? 2.5)", "false"},
		{"(int? '5)", "true"},
		{"(float? 2.5)", "true"},
		{"(float? 5)", "false"},
		{"(bool? true)", "true"},
		{"(bool? nil)", "false"},
		{"(nil? nil)", "true"},
		{"(nil? 0)", "false"},
		{"(null? nil)", "true"},
		{"(str? \"a\")", "true"},
		{"(str? 'a)", "false"},
		{"(name? 'a)", "true"},
		{"(name? 5)", "false"},
		{"(cons? '(1 2))", "true"},
		{"(cons? nil)", "false"},
		{"(pair? '(1))", "true"},
		{"(quote? '5)", "true"},
		{"(quote? 5)", "false"},
	}

	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			ev, _ := newTestEvaluator()
			if got := runProgram(t, ev, tt.source).String(); got != tt.want {
				t.Errorf("%s evaluated to %s, want %s", tt.source, got, tt.want)
			}
		})
	}
}

func TestEval_Equality(t *testing.T) {
	tests := []struct {
		source string
		want   string
	}{
		{"(equals? 1 1)", "true"},
		{"(equals? 1 2)", "false"},
		{"(equals? 1 1.0)", "false"},
		{"(equals? '(1 2) '(1 2))", "true"},
		{"(equals? '(1 2) '(1 3))", "false"},
		{"(equals? 'a 'a)", "true"},
		{"(equals? nil nil)", "true"},
		{"(equals? \"x\" \"x\")", "true"},
	}

	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			ev, _ := newTestEvaluator()
			if got := runProgram(t, ev, tt.source).String(); got != tt.want {
				t.Errorf("%s evaluated to %s, want %s", tt.source, got, tt.want)
			}
		})
	}
}

func TestEval_ListOperations(t *testing.T) {
	tests := []struct {
		source string
		want   string
	}{
		{"(cons 1 nil)", "'(1)"},
		{"(cons 1 2)", "'(1 . 2)"},
		{"(cons '(1) '(2))", "'((1) 2)"},
		{"(first '(1 2))", "1"},
		{"(rest '(1 2))", "'(2)"},
		{"(car (cdr '(1 2 3)))", "2"},
		{"(len '(1 2 3))", "3"},
		{"(len nil)", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			ev, _ := newTestEvaluator()
			if got := runProgram(t, ev, tt.source).String(); got != tt.want {
				t.Errorf("%s evaluated to %s, want %s", tt.source, got, tt.want)
			}
		})
	}
}

func TestEval_QuoteAndEval(t *testing.T) {
	tests := []struct {
		source string
		want   string
	}{
		{"(quote (a b))", "'(&a &b)"},
		{"(quote 5)", "'5"},
		{"(eval '(+ 1 2))", "3"},
		{"(eval 5)", "5"},
		{"(eval '(if (< 1 2) 10 20))", "10"},
		{"`(1 ,(+ 1 2) 3)", "'(1 3 3)"},
		{"`(a ,(* 2 2))", "'(&a 4)"},
	}

	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			ev, _ := newTestEvaluator()
			if got := runProgram(t, ev, tt.source).String(); got != tt.want {
				t.Errorf("%s evaluated to %s, want %s", tt.source, got, tt.want)
			}
		})
	}
}

func TestEval_Print(t *testing.T) {
	ev, out := newTestEvaluator()

	result := runProgram(t, ev, "(println \"hi\")")

	if got := out.String(); got != "\"hi\"\n" {
		t.Errorf("println wrote %q", got)
	}
	if result.String() != "\"hi\"" {
		t.Errorf("println yielded %s", result)
	}

	out.Reset()
	runProgram(t, ev, "(print 42)")
	if got := out.String(); got != "42" {
		t.Errorf("print wrote %q", got)
	}
}

func TestEval_EffectOrdering(t *testing.T) {
	ev, out := newTestEvaluator()

	runProgram(t, ev, "(+ (print 1) (print 2))")

	if got := out.String(); got != "12" {
		t.Errorf("effects ran out of order: %q", got)
	}
}

func TestEval_LambdaScoping(t *testing.T) {
	ev, _ := newTestEvaluator()

	result := runProgram(t, ev, "(def n 100) (def id (lambda (n) n)) (id 42)")
	if result.String() != "42" {
		t.Fatalf("(id 42) evaluated to %s", result)
	}

	// The parameter binding never disturbs the global.
	globals := ev.Globals()
	if got := globals["&n"]; got == nil || got.String() != "100" {
		t.Errorf("global n = %v after the call, want 100", got)
	}
}

func TestEval_LambdaDisplayName(t *testing.T) {
	ev, _ := newTestEvaluator()

	runProgram(t, ev, "(def double (lambda (x) (* 2 x)))")

	if got := ev.Globals()["&double"].String(); got != "<function 'double'>" {
		t.Errorf("defined lambda prints as %s", got)
	}
}

func TestEval_HigherOrderFunctions(t *testing.T) {
	ev, _ := newTestEvaluator()

	source := `
(def twice (lambda (f x) (f (f x))))
(def inc (lambda (n) (+ n 1)))
(twice inc 5)
`
	if got := runProgram(t, ev, source).String(); got != "7" {
		t.Errorf("(twice inc 5) evaluated to %s, want 7", got)
	}
}

func TestEval_ImmediateLambdaApplication(t *testing.T) {
	ev, _ := newTestEvaluator()

	if got := runProgram(t, ev, "((lambda (x y) (+ x y)) 3 4)").String(); got != "7" {
		t.Errorf("immediate application evaluated to %s, want 7", got)
	}
}

func TestEval_Errors(t *testing.T) {
	tests := []struct {
		name     string
		source   string
		wantKind lisperr.Kind
		wantMsg  string
	}{
		{"unbound name", "(+ x 1)", lisperr.Evaluation, "unbound name 'x'"},
		{"call non-function", "(5 1)", lisperr.Evaluation, "non-function"},
		{"arity mismatch", "((lambda (x) x) 1 2)", lisperr.Evaluation, "arguments but received"},
		{"car of non-cons", "(car 5)", lisperr.Evaluation, "cons pair"},
		{"len of non-list", "(len 5)", lisperr.Evaluation, "isn't a list"},
		{"if non-boolean condition", "(if 1 2 3)", lisperr.Evaluation, "boolean condition"},
		{"and non-boolean", "(and 1 true)", lisperr.Evaluation, "boolean"},
		{"panic", "(panic \"boom\")", lisperr.Panic, "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, _ := newTestEvaluator()
			err := runExpectingError(t, ev, tt.source)
			if err.Kind != tt.wantKind {
				t.Errorf("error kind = %v, want %v", err.Kind, tt.wantKind)
			}
			if !strings.Contains(err.Message, tt.wantMsg) {
				t.Errorf("error %q should mention %q", err.Message, tt.wantMsg)
			}
		})
	}
}

func TestEval_Determinism(t *testing.T) {
	source := "(def fib (lambda (n) (if (< n 2) n (+ (fib (- n 1)) (fib (- n 2)))))) (fib 15)"

	first, _ := newTestEvaluator()
	second, _ := newTestEvaluator()

	a := runProgram(t, first, source)
	b := runProgram(t, second, source)

	if !a.Equal(b) || a.String() != "610" {
		t.Errorf("evaluation is not deterministic: %s vs %s", a, b)
	}
}

func TestEval_DeepRecursionDoesNotGrowTheStack(t *testing.T) {
	// The trampoline gives unbounded source recursion depth; counting down
	// from 100000 would overflow a recursive host-language evaluator.
	ev, _ := newTestEvaluator()

	source := "(def count (lambda (n) (if (== n 0) 0 (count (- n 1))))) (count 100000)"
	if got := runProgram(t, ev, source).String(); got != "0" {
		t.Errorf("(count 100000) evaluated to %s, want 0", got)
	}
}
