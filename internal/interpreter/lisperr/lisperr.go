// Package lisperr defines the error type shared by every interpreter stage.
// Each stage returns either a value or one of these errors; the top-level
// loop decides whether to print and continue (REPL) or abort (file mode).
package lisperr

import (
	"fmt"
	"strings"
)

// Kind classifies an error by the stage that produced it.
type Kind int

const (
	// Reader errors are lexical or bracket-matching failures.
	Reader Kind = iota
	// Expansion errors cover macro redefinition and malformed defmacro.
	Expansion
	// Transform errors cover malformed lambda and if structure.
	Transform
	// Evaluation errors cover arity mismatches, unbound names and type
	// mismatches on builtins.
	Evaluation
	// Panic is raised by the panic operator from user code.
	Panic
	// Fatal marks unrecoverable failures such as a missing stdlib.
	Fatal
)

func (k Kind) String() string {
	switch k {
	case Reader:
		return "reader error"
	case Expansion:
		return "expansion error"
	case Transform:
		return "transform error"
	case Evaluation:
		return "evaluation error"
	case Panic:
		return "panic"
	case Fatal:
		return "fatal error"
	default:
		return "error"
	}
}

// shortTraceFrames is how many of the most recent call frames Display shows
// when a full trace was not requested.
const shortTraceFrames = 4

// Error carries a message plus the diagnostics accumulated on the way up:
// the source filename, an optional line/column, and the most recent call
// frames.
type Error struct {
	Kind     Kind
	Message  string
	Filename string
	Line     int
	Column   int
	Trace    []string
}

// New creates an error of the given kind.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

// NewReader creates a reader error with a source position.
func NewReader(filename string, line, column int, format string, args ...interface{}) *Error {
	return &Error{
		Kind:     Reader,
		Message:  fmt.Sprintf(format, args...),
		Filename: filename,
		Line:     line,
		Column:   column,
	}
}

func (e *Error) Error() string {
	return e.Message
}

// WithFilename returns a copy of e labeled with a filename, unless one is
// already present.
func (e *Error) WithFilename(filename string) *Error {
	if e.Filename != "" {
		return e
	}
	clone := *e
	clone.Filename = filename
	return &clone
}

// PushFrame returns a copy of e with one more stack-trace entry. An empty
// name records an anonymous lambda frame.
func (e *Error) PushFrame(functionName string) *Error {
	clone := *e
	clone.Trace = make([]string, len(e.Trace), len(e.Trace)+1)
	copy(clone.Trace, e.Trace)
	if functionName == "" {
		clone.Trace = append(clone.Trace, "-> in lambda function")
	} else {
		clone.Trace = append(clone.Trace, fmt.Sprintf("-> in function '%s'", functionName))
	}
	return &clone
}

// Display renders the error for the user: "Liszp: <message>", with the
// filename and line:column in front of the message when known, plus either
// the whole stack trace or the most recent frames.
func (e *Error) Display(fullTrace bool) string {
	var sb strings.Builder

	sb.WriteString("Liszp: ")
	if e.Filename != "" {
		sb.WriteString(e.Filename)
		if e.Line > 0 {
			fmt.Fprintf(&sb, ":%d:%d", e.Line, e.Column)
		}
		sb.WriteString(": ")
	} else if e.Line > 0 {
		fmt.Fprintf(&sb, "%d:%d: ", e.Line, e.Column)
	}
	sb.WriteString(e.Message)

	if len(e.Trace) == 0 {
		return sb.String()
	}

	count := shortTraceFrames
	if fullTrace {
		count = len(e.Trace)
	}
	sb.WriteString("\nstack trace:")
	for i := len(e.Trace) - 1; i >= 0 && count > 0; i-- {
		sb.WriteString("\n")
		sb.WriteString(e.Trace[i])
		count--
	}
	return sb.String()
}

// AsError converts any error to *Error, wrapping foreign errors as
// evaluation errors.
func AsError(err error) *Error {
	if e, ok := err.(*Error); ok {
		return e
	}
	return New(Evaluation, "%v", err)
}
