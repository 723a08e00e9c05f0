// Package reader turns Liszp source text into values, one per top-level
// expression. It is a single pass: a rune scanner classifies tokens and a
// bracket stack accumulates nested lists.
package reader

import (
	"math/big"
	"strings"
	"unicode"

	"github.com/thsfranca/liszp/internal/interpreter/lisperr"
	"github.com/thsfranca/liszp/internal/interpreter/value"
)

// identStart holds the punctuation runes that may begin an identifier, in
// addition to letters and '_'.
const identStart = "_-+*/=<>:.@%?!"

// identContinue extends identStart for subsequent runes; '&' never begins a
// user identifier but appears in formatted names.
const identContinue = identStart + "&"

// readerMacros maps the shorthand prefix runes to the forms they wrap the
// following expression in.
var readerMacros = map[rune]string{
	'\'': "quote",
	'`':  "quasiquote",
	',':  "unquote",
}

type openList struct {
	vals  []value.Value
	delim rune
	line  int
	col   int
	// wraps are the reader-macro names pending on this list when it was
	// opened, applied once the list closes.
	wraps []string
}

type reader struct {
	src      []rune
	pos      int
	line     int
	col      int
	filename string

	stack []*openList
	// pending reader-macro wraps for the next atom.
	pending []string
}

// Read parses a UTF-8 source string into its top-level expressions. The
// filename is used only for diagnostics.
func Read(source, filename string) ([]value.Value, error) {
	r := &reader{
		src:      []rune(source),
		line:     1,
		col:      1,
		filename: filename,
		stack:    []*openList{{delim: 0}},
	}
	if err := r.run(); err != nil {
		return nil, err
	}
	if len(r.stack) > 1 {
		top := r.stack[len(r.stack)-1]
		return nil, r.errAt(top.line, top.col, "expression opened with '%c' is never closed", top.delim)
	}
	if len(r.pending) > 0 {
		return nil, r.err("'%s' is not followed by an expression", r.pending[len(r.pending)-1])
	}
	return r.stack[0].vals, nil
}

func (r *reader) run() error {
	for r.pos < len(r.src) {
		c := r.src[r.pos]
		switch {
		case c == '\n':
			r.advance()
		case c == '#':
			r.skipComment()
		case unicode.IsSpace(c):
			r.advance()
		case c == '(' || c == '[' || c == '{':
			r.openBracket(c)
		case c == ')' || c == ']' || c == '}':
			if err := r.closeBracket(c); err != nil {
				return err
			}
		case c == '"':
			if err := r.readString(); err != nil {
				return err
			}
		case c == '\'' && r.isCharLiteral():
			r.readCharLiteral()
		case readerMacros[c] != "":
			r.pending = append(r.pending, readerMacros[c])
			r.advance()
		case c >= '0' && c <= '9':
			if err := r.readNumber(); err != nil {
				return err
			}
		case isIdentStart(c):
			r.readIdentifier()
		default:
			return r.err("unexpected character '%c'", c)
		}
	}
	return nil
}

func (r *reader) advance() {
	if r.src[r.pos] == '\n' {
		r.line++
		r.col = 1
	} else {
		r.col++
	}
	r.pos++
}

func (r *reader) skipComment() {
	for r.pos < len(r.src) && r.src[r.pos] != '\n' {
		r.advance()
	}
}

func (r *reader) openBracket(c rune) {
	r.stack = append(r.stack, &openList{
		delim: c,
		line:  r.line,
		col:   r.col,
		wraps: r.pending,
	})
	r.pending = nil
	r.advance()
}

func closingFor(open rune) rune {
	switch open {
	case '(':
		return ')'
	case '[':
		return ']'
	default:
		return '}'
	}
}

func (r *reader) closeBracket(c rune) error {
	if len(r.stack) == 1 {
		return r.err("unexpected closing bracket '%c'", c)
	}
	top := r.stack[len(r.stack)-1]
	if expected := closingFor(top.delim); c != expected {
		return r.err("expected expr opened with '%c' to be closed with '%c', found '%c' instead",
			top.delim, expected, c)
	}
	r.stack = r.stack[:len(r.stack)-1]
	list := value.List(top.vals...)
	for i := len(top.wraps) - 1; i >= 0; i-- {
		list = value.List(value.Name(top.wraps[i]), list)
	}
	r.appendValue(list)
	r.advance()
	return nil
}

// emit applies any pending reader-macro wraps to an atom and appends it to
// the innermost open list.
func (r *reader) emit(v value.Value) {
	for i := len(r.pending) - 1; i >= 0; i-- {
		v = value.List(value.Name(r.pending[i]), v)
	}
	r.pending = nil
	r.appendValue(v)
}

func (r *reader) appendValue(v value.Value) {
	top := r.stack[len(r.stack)-1]
	top.vals = append(top.vals, v)
}

func (r *reader) readString() error {
	startLine, startCol := r.line, r.col
	r.advance() // opening quote
	var sb strings.Builder
	for r.pos < len(r.src) && r.src[r.pos] != '"' {
		sb.WriteRune(r.src[r.pos])
		r.advance()
	}
	if r.pos >= len(r.src) {
		return r.errAt(startLine, startCol, "unterminated string literal")
	}
	r.advance() // closing quote
	r.emit(value.String("\"" + sb.String() + "\""))
	return nil
}

// isCharLiteral distinguishes 'c' from the bare quote reader macro by
// looking for the closing single quote two runes ahead.
func (r *reader) isCharLiteral() bool {
	return r.pos+2 < len(r.src) &&
		r.src[r.pos+1] != '\'' &&
		r.src[r.pos+1] != '\n' &&
		r.src[r.pos+2] == '\''
}

func (r *reader) readCharLiteral() {
	c := r.src[r.pos+1]
	r.advance()
	r.advance()
	r.advance()
	r.emit(value.String(c))
}

func (r *reader) readNumber() error {
	startLine, startCol := r.line, r.col
	var sb strings.Builder
	for r.pos < len(r.src) {
		c := r.src[r.pos]
		if unicode.IsLetter(c) || unicode.IsDigit(c) || c == '_' || c == '.' {
			sb.WriteRune(c)
			r.advance()
			continue
		}
		break
	}
	v, err := parseNumber(sb.String())
	if err != nil {
		return r.errAt(startLine, startCol, "could not parse '%s' as a number", sb.String())
	}
	r.emit(v)
	return nil
}

func parseNumber(text string) (value.Value, error) {
	digits := strings.ReplaceAll(text, "_", "")

	if strings.ContainsRune(digits, '.') {
		f, _, err := big.ParseFloat(digits, 10, value.FloatPrecision, big.ToNearestEven)
		if err != nil {
			return nil, err
		}
		return value.Float{Val: f}, nil
	}

	base := 10
	if strings.HasPrefix(digits, "0b") || strings.HasPrefix(digits, "0B") {
		base, digits = 2, digits[2:]
	} else if strings.HasPrefix(digits, "0x") || strings.HasPrefix(digits, "0X") {
		base, digits = 16, digits[2:]
	}
	i, ok := new(big.Int).SetString(digits, base)
	if !ok {
		return nil, lisperr.New(lisperr.Reader, "invalid integer literal")
	}
	return value.Integer{Val: i}, nil
}

func (r *reader) readIdentifier() {
	var sb strings.Builder
	for r.pos < len(r.src) {
		c := r.src[r.pos]
		if unicode.IsLetter(c) || unicode.IsDigit(c) || strings.ContainsRune(identContinue, c) {
			sb.WriteRune(c)
			r.advance()
			continue
		}
		break
	}
	r.emit(atomForIdentifier(sb.String()))
}

// atomForIdentifier recognizes the reserved literals; everything else is a
// Name.
func atomForIdentifier(text string) value.Value {
	switch text {
	case "true":
		return value.Bool(true)
	case "false":
		return value.Bool(false)
	case "nil", "null":
		return value.NilVal
	default:
		return value.Name(text)
	}
}

func isIdentStart(c rune) bool {
	return unicode.IsLetter(c) || strings.ContainsRune(identStart, c)
}

func (r *reader) err(format string, args ...interface{}) error {
	return lisperr.NewReader(r.filename, r.line, r.col, format, args...)
}

func (r *reader) errAt(line, col int, format string, args ...interface{}) error {
	return lisperr.NewReader(r.filename, line, col, format, args...)
}
