// Package repl implements the interactive read-eval-print loop: a prompt, a
// continuation prompt until brackets balance, then one expression evaluated
// and printed.
package repl

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/thsfranca/liszp/internal/interpreter/eval"
	"github.com/thsfranca/liszp/internal/interpreter/lisperr"
)

// REPL drives interactive evaluation against one evaluator.
type REPL struct {
	evaluator *eval.Evaluator
	in        *bufio.Reader
	out       io.Writer
	errOut    io.Writer
	fullTrace bool
}

// New creates a REPL reading from in and writing results to out and error
// displays to errOut.
func New(evaluator *eval.Evaluator, in io.Reader, out, errOut io.Writer, fullTrace bool) *REPL {
	return &REPL{
		evaluator: evaluator,
		in:        bufio.NewReader(in),
		out:       out,
		errOut:    errOut,
		fullTrace: fullTrace,
	}
}

// Run loops until stdin closes or the user types exit. Errors are printed
// and the loop resumes on the next iteration.
func (r *REPL) Run() error {
	for {
		input, err := r.readBalancedInput()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			fmt.Fprintln(r.errOut, lisperr.AsError(err).Display(r.fullTrace))
			continue
		}

		if strings.TrimSpace(input) == "exit" {
			return nil
		}
		if strings.TrimSpace(input) == "" {
			continue
		}

		result, err := r.evaluator.EvalSource(input, "<repl>")
		if err != nil {
			fmt.Fprintln(r.errOut, lisperr.AsError(err).Display(r.fullTrace))
			continue
		}
		fmt.Fprintln(r.out, result)
	}
}

// readBalancedInput reads lines until the bracket balance returns to zero.
func (r *REPL) readBalancedInput() (string, error) {
	input, err := r.readLine(true)
	if err != nil {
		return "", err
	}

	for {
		balanced, err := BracketsBalanced(input)
		if err != nil {
			return "", err
		}
		if balanced {
			return input, nil
		}
		line, err := r.readLine(false)
		if err != nil {
			return "", err
		}
		input += line
	}
}

func (r *REPL) readLine(displayPrompt bool) (string, error) {
	if displayPrompt {
		fmt.Fprint(r.out, "> ")
	} else {
		fmt.Fprint(r.out, "  ")
	}
	line, err := r.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return line, nil
}

// BracketsBalanced reports whether a string has balanced brackets, ignoring
// brackets inside string and character literals. More closers than openers
// is an error.
func BracketsBalanced(input string) (bool, error) {
	depth := 0
	runes := []rune(input)

	for i := 0; i < len(runes); i++ {
		switch runes[i] {
		case '"':
			for i++; i < len(runes) && runes[i] != '"'; i++ {
			}
		case '\'':
			// A character literal 'c'; a bare quote is left alone.
			if i+2 < len(runes) && runes[i+1] != '\'' && runes[i+2] == '\'' {
				i += 2
			}
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		}
		if depth < 0 {
			return false, lisperr.New(lisperr.Reader,
				"input string has more closing brackets than opening brackets")
		}
	}
	return depth == 0, nil
}
